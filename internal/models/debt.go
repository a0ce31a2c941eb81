package models

// Debt represents one member's row in a trip's fairness ledger: the running
// compromise balance accumulated across settled resolutions.
//
// Positive means the member has been getting their way and owes the group
// deference; negative means the member has been compromising and is owed
// some. Rows for one trip always sum to zero within floating-point
// tolerance.
type Debt struct {
	// TripID is the trip whose ledger this row belongs to.
	TripID string

	// MemberID is the roster member this balance is tracked for.
	MemberID string

	// Balance is the member's accumulated compromise debt.
	Balance float64

	// UpdatedAt is the Unix timestamp of the last resolution applied.
	UpdatedAt int64
}
