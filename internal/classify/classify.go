// Package classify defines the boundary to the external prompt classifier:
// the collaborator that turns a free-text disruption report into one of a
// small set of labels the pivot lifecycle understands.
package classify

import "context"

// Labels the classifier vocabulary is allowed to produce. Anything outside
// this set is treated as a classifier fault, never passed downstream.
const (
	LabelMoodShift    = "mood_shift"
	LabelVenueClosure = "venue_closure"
	LabelTimeOverrun  = "time_overrun"
	LabelCustom       = "custom"
)

// KnownLabel reports whether label is part of the classifier vocabulary.
func KnownLabel(label string) bool {
	switch label {
	case LabelMoodShift, LabelVenueClosure, LabelTimeOverrun, LabelCustom:
		return true
	}
	return false
}

// Result is one classification outcome.
type Result struct {
	// Label is one of the vocabulary labels above.
	Label string `json:"label"`

	// Confidence is the classifier's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Entities are free-form extracted spans (venue names, times). The
	// engine passes them through to callers untouched.
	Entities []string `json:"entities,omitempty"`

	// Method names the classifier that produced the result. Clients set
	// this to their own name regardless of what the remote reports.
	Method string `json:"method,omitempty"`
}

// Classifier labels a sanitized prompt. Implementations must respect the
// context deadline; the gate treats any error as a degraded-classifier
// condition and falls back to keyword matching.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (Result, error)
}

// Func adapts a plain function to the Classifier interface, mirroring
// http.HandlerFunc. Used heavily in tests.
type Func func(ctx context.Context, prompt string) (Result, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, prompt string) (Result, error) {
	return f(ctx, prompt)
}
