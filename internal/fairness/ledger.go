// Package fairness maintains the per-trip compromise ledger: a zero-sum
// running balance of who has been getting their way and who has been
// giving in across settled group decisions.
package fairness

import (
	"fmt"
	"math"
	"sort"

	"github.com/tripmates/accord/internal/models"
)

// DefaultWeight is the resolution weight used when the caller does not
// override it.
const DefaultWeight = 1.0

// Epsilon is the tolerance for the conservation check. Balances are sums
// of exact divisions, so drift beyond this means a logic bug, not noise.
const Epsilon = 1e-9

// Ledger is the trip-scoped fairness aggregate. It is owned by a single
// writer; callers serialize access per trip.
type Ledger struct {
	tripID string
	roster []string
	debts  map[string]float64
}

// NewLedger creates a zeroed ledger over the trip's full roster.
func NewLedger(tripID string, roster []string) *Ledger {
	debts := make(map[string]float64, len(roster))
	for _, m := range roster {
		debts[m] = 0
	}
	return &Ledger{tripID: tripID, roster: roster, debts: debts}
}

// FromDebts rebuilds a ledger from persisted rows. Roster members without a
// row start at zero; a row for a member missing from the roster is an error
// because the roster is fixed for the trip's lifetime.
func FromDebts(tripID string, roster []string, rows []models.Debt) (*Ledger, error) {
	l := NewLedger(tripID, roster)
	for _, row := range rows {
		if _, ok := l.debts[row.MemberID]; !ok {
			return nil, fmt.Errorf("ledger row for unknown member %q", row.MemberID)
		}
		l.debts[row.MemberID] = row.Balance
	}
	return l, nil
}

// RecordResolution applies one settled decision to the ledger.
//
// perMember = weight / roster size. Each winner's balance moves up by
// perMember for every loser, each loser's moves down by perMember for every
// winner, so the transfer conserves the ledger sum for any side sizes. A
// unanimous decision (either side empty) transfers nothing: nobody
// compromised. Members named on neither side are unaffected.
func (l *Ledger) RecordResolution(winners, losers []string, weight float64) error {
	n := len(l.roster)
	if n == 0 {
		return nil
	}
	if weight <= 0 {
		return fmt.Errorf("weight must be positive, got %v", weight)
	}
	if err := l.checkSides(winners, losers); err != nil {
		return err
	}

	perMember := weight / float64(n)
	for _, w := range winners {
		l.debts[w] += perMember * float64(len(losers))
	}
	for _, lo := range losers {
		l.debts[lo] -= perMember * float64(len(winners))
	}
	return nil
}

// checkSides validates that both sides are drawn from the roster and that
// nobody appears on both.
func (l *Ledger) checkSides(winners, losers []string) error {
	seen := make(map[string]bool, len(winners))
	for _, m := range winners {
		if _, ok := l.debts[m]; !ok {
			return fmt.Errorf("winner %q is not on the trip roster", m)
		}
		seen[m] = true
	}
	for _, m := range losers {
		if _, ok := l.debts[m]; !ok {
			return fmt.Errorf("loser %q is not on the trip roster", m)
		}
		if seen[m] {
			return fmt.Errorf("member %q appears as both winner and loser", m)
		}
	}
	return nil
}

// Debt returns the member's current balance, 0 for unknown members.
func (l *Ledger) Debt(memberID string) float64 {
	return l.debts[memberID]
}

// Sum returns the total of all balances. It stays within Epsilon of zero
// unless the ledger has been corrupted.
func (l *Ledger) Sum() float64 {
	var sum float64
	for _, b := range l.debts {
		sum += b
	}
	return sum
}

// CheckInvariant verifies conservation and returns a descriptive error if
// the ledger sum has drifted beyond Epsilon.
func (l *Ledger) CheckInvariant() error {
	if sum := l.Sum(); math.Abs(sum) >= Epsilon {
		return fmt.Errorf("ledger for trip %s is not conserved: sum = %v", l.tripID, sum)
	}
	return nil
}

// Snapshot returns a copy of all balances keyed by member id.
func (l *Ledger) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(l.debts))
	for m, b := range l.debts {
		out[m] = b
	}
	return out
}

// Rows converts the ledger to persistable rows, sorted by member id so
// writes and comparisons are deterministic.
func (l *Ledger) Rows(now int64) []models.Debt {
	rows := make([]models.Debt, 0, len(l.debts))
	for m, b := range l.debts {
		rows = append(rows, models.Debt{
			TripID:    l.tripID,
			MemberID:  m,
			Balance:   b,
			UpdatedAt: now,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MemberID < rows[j].MemberID })
	return rows
}
