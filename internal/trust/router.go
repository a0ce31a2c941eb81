// Package trust routes a member's negative reaction to an activity into
// exactly one of two disjoint recovery paths: a personal-taste signal or a
// factual-error flag. The reason code is the sole discriminator; the two
// paths never mix.
package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tripmates/accord/internal/models"
)

// Reason codes a reaction must carry exactly one of.
const (
	ReasonWrongForMe       = "wrong_for_me"
	ReasonWrongInformation = "wrong_information"
)

// preferenceSignalValue is the behavioral weight of a wrong_for_me flag.
const preferenceSignalValue = -1.0

// ErrAmbiguousReason means the reaction carried no recognizable reason
// code. The router writes nothing in that case.
var ErrAmbiguousReason = errors.New("reaction must carry exactly one known reason code")

// Effects is the persistence surface the router writes through. The
// storage layer satisfies it.
type Effects interface {
	AppendIntentionSignal(ctx context.Context, signal *models.IntentionSignal) error
	AppendBehavioralSignal(ctx context.Context, signal *models.BehavioralSignal) error
	EnqueueModeration(ctx context.Context, item *models.ModerationItem) error
}

// Config configures the Router.
type Config struct {
	// Effects is the persistence sink. Required.
	Effects Effects

	// PromRegistry receives the router's metrics when non-nil.
	PromRegistry prometheus.Registerer
}

// Reaction is one member's negative response to an activity.
type Reaction struct {
	TripID     string
	SlotID     string
	ActivityID string
	MemberID   string

	// ReasonCode discriminates the recovery path: ReasonWrongForMe or
	// ReasonWrongInformation, nothing else.
	ReasonCode string

	// Note is optional gated free text attached to a wrong_information
	// report.
	Note string
}

// Outcome reports which effects actually fired.
type Outcome struct {
	IntentionWritten  bool
	PreferenceWritten bool
	Flagged           bool
	ModerationID      string
}

// Router dispatches reactions.
type Router struct {
	effects   Effects
	reactions *prometheus.CounterVec
}

// NewRouter creates a Router over the given effects sink.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Effects == nil {
		return nil, fmt.Errorf("trust router requires an effects sink")
	}
	return &Router{
		effects: cfg.Effects,
		reactions: promauto.With(cfg.PromRegistry).NewCounterVec(prometheus.CounterOpts{
			Name: "accord_trust_reactions_total",
			Help: "routed reactions by recovery path",
		}, []string{"path"}),
	}, nil
}

// Route executes the recovery path selected by the reason code.
//
// wrong_for_me records what the member told us about their own taste:
// one intention signal at full confidence plus one negative preference
// signal. The activity node is never flagged on this path.
//
// wrong_information flags the activity node for human review. No taste
// signal of any kind is written: a factual-error report says nothing
// about what the member likes.
func (r *Router) Route(ctx context.Context, reaction Reaction) (Outcome, error) {
	if reaction.ActivityID == "" || reaction.MemberID == "" {
		return Outcome{}, fmt.Errorf("reaction requires activity and member ids")
	}

	switch reaction.ReasonCode {
	case ReasonWrongForMe:
		return r.routeWrongForMe(ctx, reaction)
	case ReasonWrongInformation:
		return r.routeWrongInformation(ctx, reaction)
	}
	return Outcome{}, fmt.Errorf("%w: got %q", ErrAmbiguousReason, reaction.ReasonCode)
}

func (r *Router) routeWrongForMe(ctx context.Context, reaction Reaction) (Outcome, error) {
	var out Outcome

	intention := &models.IntentionSignal{
		TripID:        reaction.TripID,
		MemberID:      reaction.MemberID,
		ActivityID:    reaction.ActivityID,
		IntentionType: models.IntentionRejection,
		Source:        models.SourceUserExplicit,
		Confidence:    1.0,
		UserProvided:  true,
	}
	if err := r.effects.AppendIntentionSignal(ctx, intention); err != nil {
		return out, fmt.Errorf("failed to write intention signal: %w", err)
	}
	out.IntentionWritten = true

	behavioral := &models.BehavioralSignal{
		TripID:      reaction.TripID,
		SlotID:      reaction.SlotID,
		MemberID:    reaction.MemberID,
		SignalType:  models.SignalSlotFlagPreference,
		SignalValue: preferenceSignalValue,
		TripPhase:   models.PhaseMidTrip,
	}
	if err := r.effects.AppendBehavioralSignal(ctx, behavioral); err != nil {
		// The intention signal is already durable; report the partial
		// write instead of faking atomicity or crossing paths.
		slog.Error("preference signal write failed after intention write",
			"trip_id", reaction.TripID,
			"member_id", reaction.MemberID,
			"error", err,
		)
		return out, fmt.Errorf("failed to write preference signal: %w", err)
	}
	out.PreferenceWritten = true
	r.reactions.WithLabelValues("preference").Inc()
	return out, nil
}

func (r *Router) routeWrongInformation(ctx context.Context, reaction Reaction) (Outcome, error) {
	item := &models.ModerationItem{
		ActivityID:   reaction.ActivityID,
		TripID:       reaction.TripID,
		SlotID:       reaction.SlotID,
		ReportedBy:   reaction.MemberID,
		Note:         reaction.Note,
		Status:       models.ModerationFlagged,
		ReviewStatus: models.ReviewPending,
	}
	if err := r.effects.EnqueueModeration(ctx, item); err != nil {
		return Outcome{}, fmt.Errorf("failed to enqueue moderation item: %w", err)
	}
	r.reactions.WithLabelValues("moderation").Inc()
	return Outcome{Flagged: true, ModerationID: item.ID}, nil
}
