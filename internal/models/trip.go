package models

// Trip represents the engine's view of one registered trip: a stable id and
// the member roster that consensus and fairness computations divide over.
//
// The roster is fixed for the lifetime of the trip. Mid-trip roster edits are
// out of scope; a changed group is registered as a new trip.
type Trip struct {
	// ID is the unique identifier for the trip (UUID format).
	ID string

	// Name is the display name of the trip (e.g., "Lisbon, March").
	Name string

	// Members is the full list of member ids on the roster, including
	// members who never vote. Ledger shares are always divided by
	// len(Members), not by the count of active voters.
	Members []string

	// CreatedAt is the Unix timestamp when the trip was registered.
	CreatedAt int64
}

// HasMember reports whether the given member id is on the roster.
func (t *Trip) HasMember(memberID string) bool {
	for _, m := range t.Members {
		if m == memberID {
			return true
		}
	}
	return false
}
