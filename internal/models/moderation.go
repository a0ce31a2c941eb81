package models

// ModerationFlagged is the status stamped on an activity node when a
// member reports its information as wrong.
const ModerationFlagged = "flagged"

// Moderation review states.
const (
	ReviewPending   = "pending"
	ReviewConfirmed = "confirmed"
	ReviewDismissed = "dismissed"
)

// ModerationItem is one flagged activity awaiting human review, produced
// when a member reports an activity's information as wrong.
type ModerationItem struct {
	// ID is the unique identifier for the queue item (UUID format).
	ID string

	// ActivityID is the flagged activity node.
	ActivityID string

	// TripID and SlotID locate where the member saw the activity.
	TripID string
	SlotID string

	// ReportedBy is the member who raised the flag.
	ReportedBy string

	// Note is the member's optional free-text description of the problem,
	// already passed through the prompt gate.
	Note string

	// Status mirrors the flag applied to the activity node.
	Status string

	// ReviewStatus is the human review state, starting at pending.
	ReviewStatus string

	// CreatedAt is the Unix timestamp when the flag was raised.
	CreatedAt int64
}
