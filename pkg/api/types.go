package api

// Trip is the wire form of a registered trip.
type Trip struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
	CreatedAt int64    `json:"created_at"`
}

// Slot is the wire form of the engine's slot read model.
type Slot struct {
	ID                    string `json:"id"`
	TripID                string `json:"trip_id"`
	Title                 string `json:"title"`
	ActivityID            string `json:"activity_id"`
	Category              string `json:"category"`
	DayNumber             int    `json:"day_number"`
	SortOrder             int    `json:"sort_order"`
	PivotDepth            int    `json:"pivot_depth"`
	WasSwapped            bool   `json:"was_swapped"`
	ReplacementActivityID string `json:"replacement_activity_id,omitempty"`
	PivotEventID          string `json:"pivot_event_id,omitempty"`
	CreatedAt             int64  `json:"created_at"`
	UpdatedAt             int64  `json:"updated_at"`
}

// Ballot is the wire form of a slot's vote record.
type Ballot struct {
	TripID     string            `json:"trip_id"`
	SlotID     string            `json:"slot_id"`
	Threshold  float64           `json:"threshold"`
	Votes      map[string]string `json:"votes,omitempty"`
	Resolved   bool              `json:"resolved"`
	Outcome    string            `json:"outcome,omitempty"`
	CreatedAt  int64             `json:"created_at"`
	ResolvedAt int64             `json:"resolved_at,omitempty"`
}

// Tally is a point-in-time summary of a ballot.
type Tally struct {
	Approve      int     `json:"approve"`
	Reject       int     `json:"reject"`
	Abstain      int     `json:"abstain"`
	Pending      int     `json:"pending"`
	ApprovalRate float64 `json:"approval_rate"`
}

// LedgerEntry is one member's row in the trip's fairness ledger.
type LedgerEntry struct {
	MemberID  string  `json:"member_id"`
	Balance   float64 `json:"balance"`
	UpdatedAt int64   `json:"updated_at"`
}

// GateResult is the gate's verdict on submitted free text. Rejected and
// low-confidence prompts share this shape.
type GateResult struct {
	Prompt     string  `json:"prompt"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Pivot is the wire form of a pivot event.
type Pivot struct {
	ID                    string `json:"id"`
	TripID                string `json:"trip_id"`
	SlotID                string `json:"slot_id"`
	TriggerType           string `json:"trigger_type"`
	TriggerPayload        string `json:"trigger_payload,omitempty"`
	Status                string `json:"status"`
	PivotDepth            int    `json:"pivot_depth"`
	ProposedActivityID    string `json:"proposed_activity_id,omitempty"`
	ReplacementActivityID string `json:"replacement_activity_id,omitempty"`
	ProposedBy            string `json:"proposed_by"`
	CreatedAt             int64  `json:"created_at"`
	ExpiresAt             int64  `json:"expires_at"`
	ResolvedAt            int64  `json:"resolved_at,omitempty"`
}

// ModerationItem is one flagged activity awaiting review.
type ModerationItem struct {
	ID           string `json:"id"`
	ActivityID   string `json:"activity_id"`
	TripID       string `json:"trip_id"`
	SlotID       string `json:"slot_id,omitempty"`
	ReportedBy   string `json:"reported_by"`
	Note         string `json:"note,omitempty"`
	Status       string `json:"status"`
	ReviewStatus string `json:"review_status"`
	CreatedAt    int64  `json:"created_at"`
}

// ConsensusService messages.

type OpenBallotRequest struct {
	TripID string `json:"trip_id"`
	SlotID string `json:"slot_id"`
	// Threshold overrides the server default when non-zero.
	Threshold float64 `json:"threshold,omitempty"`
}

type OpenBallotResponse struct {
	Ballot *Ballot `json:"ballot"`
}

type CastVoteRequest struct {
	TripID string `json:"trip_id"`
	SlotID string `json:"slot_id"`
	Choice string `json:"choice"`
}

type CastVoteResponse struct {
	Tally *Tally `json:"tally"`
}

type GetBallotRequest struct {
	TripID string `json:"trip_id"`
	SlotID string `json:"slot_id"`
}

type GetBallotResponse struct {
	Ballot *Ballot `json:"ballot"`
	Tally  *Tally  `json:"tally"`
}

type ResolveBallotRequest struct {
	TripID string `json:"trip_id"`
	SlotID string `json:"slot_id"`
	// Weight overrides the default resolution weight of 1.0 when non-zero.
	Weight float64 `json:"weight,omitempty"`
}

type ResolveBallotResponse struct {
	Outcome string `json:"outcome"`
	Tally   *Tally `json:"tally"`
	// LedgerApplied is true when this call recorded the fairness
	// resolution; false for contested outcomes and idempotent retries.
	LedgerApplied bool `json:"ledger_applied"`
}

type GetLedgerRequest struct {
	TripID string `json:"trip_id"`
}

type GetLedgerResponse struct {
	Entries []*LedgerEntry `json:"entries"`
	// ZeroSum reports whether the rows sum to zero within tolerance.
	ZeroSum bool `json:"zero_sum"`
}

// PivotService messages.

type ReportDisruptionRequest struct {
	TripID string `json:"trip_id"`
	SlotID string `json:"slot_id"`
	Text   string `json:"text"`
	// ProposedActivityID optionally carries the reporter's suggested swap.
	ProposedActivityID string `json:"proposed_activity_id,omitempty"`
}

type ReportDisruptionResponse struct {
	Gate *GateResult `json:"gate"`
	// Pivot is set only when the report produced a proposal.
	Pivot *Pivot `json:"pivot,omitempty"`
}

type IngestWeatherRequest struct {
	TripID    string `json:"trip_id"`
	SlotID    string `json:"slot_id"`
	Condition string `json:"condition"`
}

type IngestWeatherResponse struct {
	// Triggered is false for quiet non-events (dry forecast or indoor slot).
	Triggered bool   `json:"triggered"`
	Pivot     *Pivot `json:"pivot,omitempty"`
}

type RespondToPivotRequest struct {
	PivotID string `json:"pivot_id"`
	// Action is "accept" or "reject".
	Action                string `json:"action"`
	ReplacementActivityID string `json:"replacement_activity_id,omitempty"`
}

type RespondToPivotResponse struct {
	Pivot *Pivot `json:"pivot"`
	// CascadeSlots lists same-day later slots to re-check after an accept.
	CascadeSlots []*Slot `json:"cascade_slots,omitempty"`
}

type GetPivotRequest struct {
	PivotID string `json:"pivot_id"`
}

type GetPivotResponse struct {
	Pivot *Pivot `json:"pivot"`
}

type ListPivotsRequest struct {
	TripID string `json:"trip_id"`
	// SlotID narrows the listing to one slot when non-empty.
	SlotID string `json:"slot_id,omitempty"`
}

type ListPivotsResponse struct {
	Pivots []*Pivot `json:"pivots"`
}

// TrustService messages.

type ReactToActivityRequest struct {
	TripID     string `json:"trip_id"`
	SlotID     string `json:"slot_id"`
	ActivityID string `json:"activity_id"`
	ReasonCode string `json:"reason_code"`
	Note       string `json:"note,omitempty"`
}

type ReactToActivityResponse struct {
	IntentionWritten  bool   `json:"intention_written"`
	PreferenceWritten bool   `json:"preference_written"`
	Flagged           bool   `json:"flagged"`
	ModerationID      string `json:"moderation_id,omitempty"`
}

type ListModerationQueueRequest struct {
	TripID string `json:"trip_id"`
}

type ListModerationQueueResponse struct {
	Items []*ModerationItem `json:"items"`
}

// TripService messages.

type RegisterTripRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

type RegisterTripResponse struct {
	Trip *Trip `json:"trip"`
}

type SyncSlotRequest struct {
	Slot *Slot `json:"slot"`
}

type SyncSlotResponse struct {
	Slot *Slot `json:"slot"`
}
