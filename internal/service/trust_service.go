package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/tripmates/accord/internal/gate"
	"github.com/tripmates/accord/internal/middleware"
	"github.com/tripmates/accord/internal/storage"
	"github.com/tripmates/accord/internal/trust"
	"github.com/tripmates/accord/pkg/api"
)

// TrustService implements the Connect TrustService: negative reaction
// routing and the moderation review queue.
type TrustService struct {
	api.UnimplementedTrustServiceHandler
	store  storage.Store
	gate   *gate.Gate
	router *trust.Router
}

// NewTrustService creates a TrustService. Reaction notes are free text and
// pass through the gate before anything is persisted.
func NewTrustService(store storage.Store, g *gate.Gate, router *trust.Router) *TrustService {
	return &TrustService{store: store, gate: g, router: router}
}

// ReactToActivity routes a member's negative reaction into exactly one
// recovery path: a taste correction or a truth flag, never both.
func (s *TrustService) ReactToActivity(ctx context.Context, req *connect.Request[api.ReactToActivityRequest]) (*connect.Response[api.ReactToActivityResponse], error) {
	slog.Info("ReactToActivity request received",
		"trip_id", req.Msg.TripID,
		"activity_id", req.Msg.ActivityID,
		"reason_code", req.Msg.ReasonCode,
	)

	memberID := middleware.GetMemberID(ctx)
	if memberID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("member identity required"))
	}

	trip, err := s.store.GetTrip(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if !trip.HasMember(memberID) {
		return nil, connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("member %s is not on the trip roster", memberID))
	}
	if req.Msg.ActivityID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("activity_id is required"))
	}

	// The note is member prose. Gate it like any other free text; a
	// rejected note drops silently while the structured reaction stands.
	note := req.Msg.Note
	if note != "" {
		decision := s.gate.Check(ctx, trip.ID, memberID, note)
		if decision.Rejected() {
			note = ""
		} else {
			note = decision.Prompt
		}
	}

	outcome, err := s.router.Route(ctx, trust.Reaction{
		TripID:     trip.ID,
		SlotID:     req.Msg.SlotID,
		ActivityID: req.Msg.ActivityID,
		MemberID:   memberID,
		ReasonCode: req.Msg.ReasonCode,
		Note:       note,
	})
	if err != nil {
		if errors.Is(err, trust.ErrAmbiguousReason) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		slog.Error("ReactToActivity failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Reaction routed",
		"trip_id", trip.ID,
		"activity_id", req.Msg.ActivityID,
		"reason_code", req.Msg.ReasonCode,
		"flagged", outcome.Flagged,
	)

	return connect.NewResponse(&api.ReactToActivityResponse{
		IntentionWritten:  outcome.IntentionWritten,
		PreferenceWritten: outcome.PreferenceWritten,
		Flagged:           outcome.Flagged,
		ModerationID:      outcome.ModerationID,
	}), nil
}

// ListModerationQueue returns the trip's pending flags, oldest first.
func (s *TrustService) ListModerationQueue(ctx context.Context, req *connect.Request[api.ListModerationQueueRequest]) (*connect.Response[api.ListModerationQueueResponse], error) {
	slog.Info("ListModerationQueue request received", "trip_id", req.Msg.TripID)

	memberID := middleware.GetMemberID(ctx)
	if memberID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("member identity required"))
	}
	trip, err := s.store.GetTrip(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if !trip.HasMember(memberID) {
		return nil, connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("member %s is not on the trip roster", memberID))
	}

	items, err := s.store.ListModerationQueue(ctx, trip.ID)
	if err != nil {
		slog.Error("ListModerationQueue failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]*api.ModerationItem, len(items))
	for i := range items {
		out[i] = toAPIModerationItem(&items[i])
	}

	return connect.NewResponse(&api.ListModerationQueueResponse{
		Items: out,
	}), nil
}
