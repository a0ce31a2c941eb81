// Package consensus implements the vote aggregation rules for contested
// itinerary slots: last-write-wins ballots, an approval rate computed over
// non-abstaining voters only, and a single irreversible resolution.
package consensus

import (
	"errors"
	"fmt"

	"github.com/tripmates/accord/internal/models"
)

// DefaultThreshold is the approval rate a slot needs to be confirmed when
// the trip does not configure its own.
const DefaultThreshold = 0.6

// Errors returned by vote state transitions. The service layer maps these
// onto RPC codes, so they stay as distinguishable sentinels.
var (
	ErrNotOnRoster     = errors.New("member is not on the trip roster")
	ErrInvalidChoice   = errors.New("invalid vote choice")
	ErrBallotResolved  = errors.New("ballot is already resolved")
	ErrBallotUnderVote = errors.New("ballot is still open")
)

// Tally is a point-in-time summary of a ballot.
type Tally struct {
	Approve int
	Reject  int
	Abstain int

	// Rate is approvals divided by non-abstaining votes, 0 when nobody
	// has taken a side yet.
	Rate float64
}

// VoteState is the in-memory aggregate for one slot's ballot. It is not
// safe for concurrent use; callers serialize access per slot.
type VoteState struct {
	roster    map[string]bool
	threshold float64
	votes     map[string]models.VoteChoice
	resolved  bool
	outcome   models.BallotOutcome
}

// NewVoteState opens a fresh ballot over the full trip roster.
// The threshold must be in (0, 1]; pass DefaultThreshold when the trip has
// no override.
func NewVoteState(roster []string, threshold float64) (*VoteState, error) {
	if len(roster) == 0 {
		return nil, fmt.Errorf("roster cannot be empty")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
	}

	members := make(map[string]bool, len(roster))
	for _, m := range roster {
		members[m] = true
	}

	return &VoteState{
		roster:    members,
		threshold: threshold,
		votes:     make(map[string]models.VoteChoice),
	}, nil
}

// FromBallot rebuilds the aggregate from a persisted ballot and the trip
// roster. Votes from members no longer resolvable against the roster are an
// error; the roster is fixed for a trip's lifetime so this means corruption.
func FromBallot(b *models.Ballot, roster []string) (*VoteState, error) {
	vs, err := NewVoteState(roster, b.Threshold)
	if err != nil {
		return nil, err
	}
	for member, choice := range b.Votes {
		if !vs.roster[member] {
			return nil, fmt.Errorf("ballot vote from unknown member %q", member)
		}
		if !choice.Valid() {
			return nil, fmt.Errorf("ballot holds invalid choice %q", choice)
		}
		vs.votes[member] = choice
	}
	vs.resolved = b.Resolved
	vs.outcome = b.Outcome
	return vs, nil
}

// CastVote records or replaces the member's choice. Re-voting before
// resolution is allowed and overwrites silently; only the latest choice
// counts.
func (v *VoteState) CastVote(memberID string, choice models.VoteChoice) error {
	if v.resolved {
		return ErrBallotResolved
	}
	if !v.roster[memberID] {
		return ErrNotOnRoster
	}
	if !choice.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}
	v.votes[memberID] = choice
	return nil
}

// Tally summarizes the current votes. Abstentions appear in the counts but
// never in the rate denominator.
func (v *VoteState) Tally() Tally {
	var t Tally
	for _, choice := range v.votes {
		switch choice {
		case models.VoteApprove:
			t.Approve++
		case models.VoteReject:
			t.Reject++
		case models.VoteAbstain:
			t.Abstain++
		}
	}
	if decided := t.Approve + t.Reject; decided > 0 {
		t.Rate = float64(t.Approve) / float64(decided)
	}
	return t
}

// Resolve closes the ballot and fixes its outcome. A ballot where every
// vote is an abstention (or no votes at all) resolves to contested: nobody
// took a side, so the slot cannot be called confirmed.
func (v *VoteState) Resolve() (models.BallotOutcome, error) {
	if v.resolved {
		return "", ErrBallotResolved
	}
	v.resolved = true
	if v.Tally().Rate >= v.threshold {
		v.outcome = models.OutcomeConfirmed
	} else {
		v.outcome = models.OutcomeContested
	}
	return v.outcome, nil
}

// Outcome returns the terminal result, or ErrBallotUnderVote while open.
func (v *VoteState) Outcome() (models.BallotOutcome, error) {
	if !v.resolved {
		return "", ErrBallotUnderVote
	}
	return v.outcome, nil
}

// Resolved reports whether the ballot has been closed.
func (v *VoteState) Resolved() bool { return v.resolved }

// Threshold returns the approval rate the ballot was opened with.
func (v *VoteState) Threshold() float64 { return v.threshold }

// Votes returns a copy of the current choices keyed by member id.
func (v *VoteState) Votes() map[string]models.VoteChoice {
	out := make(map[string]models.VoteChoice, len(v.votes))
	for m, c := range v.votes {
		out[m] = c
	}
	return out
}

// Pending lists roster members who have not voted yet, in no fixed order.
func (v *VoteState) Pending() []string {
	var pending []string
	for m := range v.roster {
		if _, ok := v.votes[m]; !ok {
			pending = append(pending, m)
		}
	}
	return pending
}
