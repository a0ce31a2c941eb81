package models

// Slot represents the engine's read model of one itinerary slot. The full
// itinerary graph lives in the product's own store; the engine only tracks
// the fields it needs to run ballots, order cascades, and record swaps.
type Slot struct {
	// ID is the unique identifier for the slot (UUID format).
	ID string

	// TripID is the trip this slot belongs to.
	TripID string

	// Title is the human-readable name for the slot (e.g., "Miradouro walk").
	Title string

	// ActivityID references the activity node currently scheduled in this
	// slot. Activity content is owned by the product; the engine treats the
	// id as opaque.
	ActivityID string

	// Category is the activity category used for disruption matching
	// (e.g., "outdoor", "museum", "restaurant").
	Category string

	// DayNumber is the 1-based day of the trip this slot is scheduled on.
	DayNumber int

	// SortOrder is the slot's position within its day. Slots on the same
	// day with a greater SortOrder come later in the day.
	SortOrder int

	// PivotDepth counts accepted pivots absorbed by this slot. Proposals
	// and rejections never move it; only an accepted pivot does.
	PivotDepth int

	// WasSwapped reports whether an accepted pivot has replaced this slot's
	// activity at least once.
	WasSwapped bool

	// ReplacementActivityID is the activity applied by the most recent
	// accepted pivot, empty when WasSwapped is false.
	ReplacementActivityID string

	// PivotEventID is the id of the accepted pivot that produced the
	// current replacement, empty when WasSwapped is false.
	PivotEventID string

	// CreatedAt is the Unix timestamp when the slot was synced into the engine.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last engine-side mutation.
	UpdatedAt int64
}
