package models

// TriggerType classifies what caused a pivot to be proposed.
type TriggerType string

// Trigger types accepted by the pivot lifecycle. Free-text disruption
// reports are mapped onto these by the prompt classification gate.
const (
	TriggerWeatherChange TriggerType = "weather_change"
	TriggerVenueClosed   TriggerType = "venue_closed"
	TriggerTimeOverrun   TriggerType = "time_overrun"
	TriggerUserMood      TriggerType = "user_mood"
	TriggerUserRequest   TriggerType = "user_request"
)

// Valid reports whether t is one of the known trigger types.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerWeatherChange, TriggerVenueClosed, TriggerTimeOverrun,
		TriggerUserMood, TriggerUserRequest:
		return true
	}
	return false
}

// PivotStatus is the lifecycle state of a pivot event.
type PivotStatus string

// Pivot lifecycle states. A pivot is created as proposed and reaches exactly
// one of the three terminal states; terminal pivots are never mutated again.
const (
	PivotProposed PivotStatus = "proposed"
	PivotAccepted PivotStatus = "accepted"
	PivotRejected PivotStatus = "rejected"
	PivotExpired  PivotStatus = "expired"
)

// Terminal reports whether s is a final lifecycle state.
func (s PivotStatus) Terminal() bool {
	return s == PivotAccepted || s == PivotRejected || s == PivotExpired
}

// PivotEvent represents one proposed mid-trip change to a single slot.
type PivotEvent struct {
	// ID is the unique identifier for the pivot event (UUID format).
	ID string

	// TripID is the trip the target slot belongs to.
	TripID string

	// SlotID is the slot this pivot proposes to change.
	SlotID string

	// TriggerType records what kind of disruption produced the proposal.
	TriggerType TriggerType

	// TriggerPayload is a short human-readable description of the trigger,
	// e.g. the weather condition or the gate-truncated report text.
	TriggerPayload string

	// Status is the current lifecycle state.
	Status PivotStatus

	// PivotDepth is how many accepted pivots the slot had absorbed when
	// this proposal was created. Depth 0 means the slot still held its
	// original activity.
	PivotDepth int

	// ProposedActivityID is the engine's suggested replacement activity,
	// empty when the proposal carries no suggestion.
	ProposedActivityID string

	// ReplacementActivityID is the activity actually applied on acceptance,
	// empty unless Status is accepted.
	ReplacementActivityID string

	// ProposedBy is the member who reported the disruption, or "system"
	// for weather-driven proposals.
	ProposedBy string

	// CreatedAt is the Unix timestamp when the pivot was proposed.
	CreatedAt int64

	// ExpiresAt is the Unix timestamp after which the proposal lapses.
	ExpiresAt int64

	// ResolvedAt is the Unix timestamp when the pivot reached a terminal
	// state, zero while still proposed.
	ResolvedAt int64
}
