package models

// Gate decision methods recorded in the audit trail.
const (
	GateMethodLLM      = "llm"
	GateMethodKeyword  = "keyword"
	GateMethodRejected = "rejected"
)

// GateAuditEntry records one pass through the prompt classification gate.
// Every submission is logged, including rejected and degraded ones, so
// abuse patterns stay visible after the fact.
type GateAuditEntry struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	// TripID and MemberID identify who submitted the text, either may be
	// empty for unauthenticated probes recorded by outer layers.
	TripID   string
	MemberID string

	// Prompt is the submitted text after truncation to the gate's limit.
	// Raw over-length input is never stored.
	Prompt string

	// Label is the classification result ("custom" for rejected input).
	Label string

	// Confidence is the classifier's confidence, 0 for rejected input.
	Confidence float64

	// Method records how the label was produced: "llm", "keyword" for the
	// degraded fallback, or "rejected".
	Method string

	// CreatedAt is the Unix timestamp of the gate decision.
	CreatedAt int64
}
