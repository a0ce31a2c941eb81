// Package gate guards the free-text path into the engine. All user prose
// passes through here exactly once: it is truncated to a hard ceiling,
// scanned against injection heuristics, and only then classified. Rejection
// is a policy outcome with a well-formed result shape, not an error.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tripmates/accord/internal/classify"
	"github.com/tripmates/accord/internal/models"
)

// DegradedConfidence is assigned to keyword-matched labels when the
// classifier is down. It sits at the trigger bar rather than above it, so
// a classifier outage can never create pivots on its own.
const DegradedConfidence = 0.5

// AuditSink records one entry per gate decision. The storage layer
// satisfies this; failures are logged and swallowed because auditing must
// never block the caller's request.
type AuditSink interface {
	AppendGateAudit(ctx context.Context, entry *models.GateAuditEntry) error
}

// Config configures the gate.
type Config struct {
	// Classifier is the external semantic classifier collaborator.
	Classifier classify.Classifier

	// Audit receives one entry per call, accepted or rejected.
	Audit AuditSink

	// PromRegistry receives the gate's metrics when non-nil.
	PromRegistry prometheus.Registerer
}

// Decision is the gate's verdict on one piece of free text.
type Decision struct {
	// Prompt is the text that was actually processed, post-truncation.
	// Callers must persist this, never the raw input.
	Prompt string

	// Label is the classification result; "custom" for rejected input.
	Label string

	// Confidence is the classifier's confidence, 0 for rejected input.
	Confidence float64

	// Method is how the label was produced: the classifier's name,
	// "keyword" for the degraded fallback, or "rejected".
	Method string

	// Entities are spans extracted by the classifier, empty otherwise.
	Entities []string
}

// Rejected reports whether the input tripped an injection heuristic.
func (d Decision) Rejected() bool { return d.Method == models.GateMethodRejected }

// Gate runs the truncate-scan-classify pipeline.
type Gate struct {
	classifier classify.Classifier
	audit      AuditSink
	decisions  *prometheus.CounterVec
}

// New creates a gate. Both the classifier and the audit sink are required.
func New(cfg Config) (*Gate, error) {
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("gate requires a classifier")
	}
	if cfg.Audit == nil {
		return nil, fmt.Errorf("gate requires an audit sink")
	}
	return &Gate{
		classifier: cfg.Classifier,
		audit:      cfg.Audit,
		decisions: promauto.With(cfg.PromRegistry).NewCounterVec(prometheus.CounterOpts{
			Name: "accord_gate_decisions_total",
			Help: "gate decisions by method",
		}, []string{"method"}),
	}, nil
}

// Check runs one piece of raw free text through the gate.
//
// The order is the security contract: truncate first, scan second, classify
// last. A prompt that trips a heuristic is never forwarded to the
// classifier. A classifier timeout or error degrades to keyword matching
// capped at DegradedConfidence; it never fails the request. Every call is
// audited regardless of outcome.
func (g *Gate) Check(ctx context.Context, tripID, memberID, text string) Decision {
	prompt := stripControlChars(Truncate(text))

	var d Decision
	if heuristic := injectionMatch(prompt); heuristic != "" {
		slog.Warn("prompt gate rejected input",
			"trip_id", tripID,
			"member_id", memberID,
			"heuristic", heuristic,
		)
		d = Decision{
			Prompt:     prompt,
			Label:      classify.LabelCustom,
			Confidence: 0,
			Method:     models.GateMethodRejected,
		}
	} else if result, err := g.classifier.Classify(ctx, prompt); err != nil {
		slog.Warn("classifier degraded, using keyword fallback",
			"trip_id", tripID,
			"error", err,
		)
		d = keywordFallback(prompt)
	} else {
		d = Decision{
			Prompt:     prompt,
			Label:      result.Label,
			Confidence: result.Confidence,
			Method:     result.Method,
			Entities:   result.Entities,
		}
	}

	g.decisions.WithLabelValues(d.Method).Inc()
	g.appendAudit(ctx, tripID, memberID, d)
	return d
}

// keywordLabels is the degraded-mode lookup, checked in order. First match
// wins; no match means "custom" with zero confidence.
var keywordLabels = []struct {
	substr string
	label  string
}{
	{"closed", classify.LabelVenueClosure},
	{"shut", classify.LabelVenueClosure},
	{"closure", classify.LabelVenueClosure},
	{"running late", classify.LabelTimeOverrun},
	{"behind schedule", classify.LabelTimeOverrun},
	{"taking longer", classify.LabelTimeOverrun},
	{"overrun", classify.LabelTimeOverrun},
	{"tired", classify.LabelMoodShift},
	{"exhausted", classify.LabelMoodShift},
	{"bored", classify.LabelMoodShift},
	{"not feeling", classify.LabelMoodShift},
}

func keywordFallback(prompt string) Decision {
	lower := strings.ToLower(prompt)
	for _, kw := range keywordLabels {
		if strings.Contains(lower, kw.substr) {
			return Decision{
				Prompt:     prompt,
				Label:      kw.label,
				Confidence: DegradedConfidence,
				Method:     models.GateMethodKeyword,
			}
		}
	}
	return Decision{
		Prompt: prompt,
		Label:  classify.LabelCustom,
		Method: models.GateMethodKeyword,
	}
}

// appendAudit records the decision. The sink assigns ID and CreatedAt.
func (g *Gate) appendAudit(ctx context.Context, tripID, memberID string, d Decision) {
	entry := &models.GateAuditEntry{
		TripID:     tripID,
		MemberID:   memberID,
		Prompt:     d.Prompt,
		Label:      d.Label,
		Confidence: d.Confidence,
		Method:     d.Method,
	}
	if err := g.audit.AppendGateAudit(ctx, entry); err != nil {
		slog.Error("failed to append gate audit entry",
			"trip_id", tripID,
			"member_id", memberID,
			"error", err,
		)
	}
}
