package models

// VoteChoice is one member's stance on a contested slot.
type VoteChoice string

// Vote choices. Abstentions count for quorum display but are excluded from
// the approval rate denominator.
const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
	VoteAbstain VoteChoice = "abstain"
)

// Valid reports whether c is one of the known vote choices.
func (c VoteChoice) Valid() bool {
	return c == VoteApprove || c == VoteReject || c == VoteAbstain
}

// BallotOutcome is the terminal result of a resolved ballot.
type BallotOutcome string

const (
	// OutcomeConfirmed means the approval rate met the trip's threshold
	// and the slot stays in the itinerary.
	OutcomeConfirmed BallotOutcome = "confirmed"

	// OutcomeContested means the threshold was not met; the slot is
	// surfaced back to the group for renegotiation.
	OutcomeContested BallotOutcome = "contested"
)

// Ballot represents the persisted vote tally for one contested slot.
//
// A slot holds at most one ballot. Re-voting before resolution replaces the
// member's earlier choice (last write wins). Once resolved the ballot is
// immutable; renegotiation happens on a replacement slot with its own ballot.
type Ballot struct {
	// TripID is the trip the contested slot belongs to.
	TripID string

	// SlotID is the contested slot. Together with TripID it identifies
	// the open ballot.
	SlotID string

	// Threshold is the approval rate required to confirm, captured at
	// open time so later config changes never move a live ballot's bar.
	Threshold float64

	// Votes maps member id to that member's current choice.
	Votes map[string]VoteChoice

	// Resolved reports whether the ballot has been closed.
	Resolved bool

	// Outcome is the terminal result, empty while the ballot is open.
	Outcome BallotOutcome

	// CreatedAt is the Unix timestamp when the ballot was opened.
	CreatedAt int64

	// ResolvedAt is the Unix timestamp when the ballot was resolved,
	// zero while open.
	ResolvedAt int64
}
