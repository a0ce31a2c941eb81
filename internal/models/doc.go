// Package models defines the core domain models for the Accord engine.
//
// # Aggregates
//
// The engine owns a small set of aggregates, each keyed by trip, slot,
// member, and activity identifiers supplied by the surrounding product:
//   - Trip: fixed member roster for the duration of a trip
//   - Slot: the engine's read model of one itinerary slot (day, sort
//     order, category, swap state)
//   - Ballot: per-slot vote tally for a contested itinerary slot
//   - Debt: one member's row in the trip-scoped fairness ledger
//   - PivotEvent: one proposed mid-trip change and its lifecycle state
//   - BehavioralSignal / IntentionSignal: append-only signal records
//   - GateAuditEntry: one row per free-text submission through the prompt gate
//   - ModerationItem: flagged activity nodes awaiting human review
//
// # Design Principles
//
// 1. **Plain data**: models carry no behavior; the consensus, fairness,
// pivot, gate, and trust packages own the rules that mutate them
// 2. **String identifiers**: trips, slots, members, and activities are
// referenced by opaque string ids (UUID format where generated locally)
// to avoid circular references between aggregates
// 3. **Unix timestamps**: all times are stored as Unix seconds (int64) so
// the storage layer stays driver-agnostic
// 4. **Terminal states are final**: resolved ballots and resolved pivots
// are never mutated again; later decisions create new records
package models
