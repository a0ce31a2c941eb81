package models

// TripPhase tags a signal with when in the trip it was emitted.
type TripPhase string

const (
	PhasePreTrip  TripPhase = "pre_trip"
	PhaseMidTrip  TripPhase = "mid_trip"
	PhasePostTrip TripPhase = "post_trip"
)

// Behavioral signal types emitted by the engine.
const (
	SignalPivotAccepted      = "pivot_accepted"
	SignalPivotRejected      = "pivot_rejected"
	SignalPivotExpired       = "pivot_expired"
	SignalSlotFlagPreference = "slot_flag_preference"
)

// BehavioralSignal is an append-only record of an observed group action,
// consumed downstream by ranking and personalization.
type BehavioralSignal struct {
	ID          string
	TripID      string
	SlotID      string
	MemberID    string
	SignalType  string
	SignalValue float64
	TripPhase   TripPhase
	CreatedAt   int64
}

// Intention signal types and sources.
const (
	IntentionRejection = "rejection"
	SourceUserExplicit = "user_explicit"
)

// IntentionSignal is an append-only record of a member's explicit statement
// about their own taste, always stored with full confidence because the user
// said it outright rather than the engine inferring it.
type IntentionSignal struct {
	ID            string
	TripID        string
	MemberID      string
	ActivityID    string
	IntentionType string
	Source        string
	Confidence    float64
	UserProvided  bool
	CreatedAt     int64
}
