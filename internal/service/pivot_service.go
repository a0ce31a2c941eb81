package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/tripmates/accord/internal/gate"
	"github.com/tripmates/accord/internal/middleware"
	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/internal/pivot"
	"github.com/tripmates/accord/internal/storage"
	"github.com/tripmates/accord/internal/weather"
	"github.com/tripmates/accord/pkg/api"
)

// PivotService implements the Connect PivotService: trigger ingestion, the
// proposal lifecycle, and pivot queries.
type PivotService struct {
	api.UnimplementedPivotServiceHandler
	store  storage.Store
	gate   *gate.Gate
	pivots *pivot.Manager
}

// NewPivotService creates a PivotService. All free text entering through
// ReportDisruption passes through the gate before the manager sees it.
func NewPivotService(store storage.Store, g *gate.Gate, manager *pivot.Manager) *PivotService {
	return &PivotService{store: store, gate: g, pivots: manager}
}

// mapPivotErr translates pivot policy errors onto RPC codes. Policy
// refusals are preconditions the caller can observe; everything else is
// internal.
func mapPivotErr(err error) *connect.Error {
	var depthErr *pivot.DepthLimitError
	switch {
	case errors.Is(err, pivot.ErrAlreadyProposed), errors.Is(err, pivot.ErrTerminal):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.As(err, &depthErr):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, pivot.ErrMissingReplacement):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// ReportDisruption ingests a member's free-text disruption report. The text
// is gated first; a rejected or low-confidence report returns the gate
// verdict with no pivot rather than an error.
func (s *PivotService) ReportDisruption(ctx context.Context, req *connect.Request[api.ReportDisruptionRequest]) (*connect.Response[api.ReportDisruptionResponse], error) {
	slog.Info("ReportDisruption request received",
		"trip_id", req.Msg.TripID,
		"slot_id", req.Msg.SlotID,
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
	if _, err := s.store.GetSlot(ctx, trip.ID, req.Msg.SlotID); err != nil {
		slog.Error("ReportDisruption failed", "slot_id", req.Msg.SlotID, "error", err)
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if req.Msg.Text == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("text is required"))
	}

	decision := s.gate.Check(ctx, trip.ID, memberID, req.Msg.Text)

	event, err := s.pivots.ProposeFromText(ctx, trip.ID, req.Msg.SlotID, memberID, decision, req.Msg.ProposedActivityID)
	if err != nil {
		slog.Warn("ReportDisruption did not produce a pivot",
			"trip_id", trip.ID,
			"slot_id", req.Msg.SlotID,
			"error", err,
		)
		return nil, mapPivotErr(err)
	}

	return connect.NewResponse(&api.ReportDisruptionResponse{
		Gate: &api.GateResult{
			Prompt:     decision.Prompt,
			Label:      decision.Label,
			Confidence: decision.Confidence,
			Method:     decision.Method,
		},
		Pivot: toAPIPivot(event),
	}), nil
}

// IngestWeather ingests a pushed weather observation. The caller is the
// product's forecast relay, not a trip member, so no roster check applies;
// a dry condition or an indoor slot is a quiet non-event.
func (s *PivotService) IngestWeather(ctx context.Context, req *connect.Request[api.IngestWeatherRequest]) (*connect.Response[api.IngestWeatherResponse], error) {
	slog.Info("IngestWeather request received",
		"trip_id", req.Msg.TripID,
		"slot_id", req.Msg.SlotID,
		"condition", req.Msg.Condition,
	)

	if _, err := weather.Normalize(req.Msg.Condition); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if _, err := s.store.GetTrip(ctx, req.Msg.TripID); err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if _, err := s.store.GetSlot(ctx, req.Msg.TripID, req.Msg.SlotID); err != nil {
		slog.Error("IngestWeather failed", "slot_id", req.Msg.SlotID, "error", err)
		return nil, connect.NewError(connect.CodeNotFound, err)
	}

	event, err := s.pivots.ProposeFromWeather(ctx, req.Msg.TripID, req.Msg.SlotID, req.Msg.Condition)
	if err != nil {
		slog.Warn("IngestWeather did not produce a pivot",
			"trip_id", req.Msg.TripID,
			"slot_id", req.Msg.SlotID,
			"error", err,
		)
		return nil, mapPivotErr(err)
	}

	return connect.NewResponse(&api.IngestWeatherResponse{
		Triggered: event != nil,
		Pivot:     toAPIPivot(event),
	}), nil
}

// RespondToPivot applies a member's accept or reject to a proposed pivot.
// Accepting returns the same-day later slots eligible for cascade re-check.
func (s *PivotService) RespondToPivot(ctx context.Context, req *connect.Request[api.RespondToPivotRequest]) (*connect.Response[api.RespondToPivotResponse], error) {
	slog.Info("RespondToPivot request received",
		"pivot_id", req.Msg.PivotID,
		"action", req.Msg.Action,
	)

	memberID := middleware.GetMemberID(ctx)
	if memberID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("member identity required"))
	}

	event, err := s.store.GetPivot(ctx, req.Msg.PivotID)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	trip, err := s.store.GetTrip(ctx, event.TripID)
	if err != nil {
		slog.Error("RespondToPivot failed", "pivot_id", req.Msg.PivotID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !trip.HasMember(memberID) {
		return nil, connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("member %s is not on the trip roster", memberID))
	}

	var cascade []models.Slot
	switch req.Msg.Action {
	case "accept":
		event, cascade, err = s.pivots.Accept(ctx, req.Msg.PivotID, memberID, req.Msg.ReplacementActivityID)
	case "reject":
		event, err = s.pivots.Reject(ctx, req.Msg.PivotID, memberID)
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("action must be accept or reject, got %q", req.Msg.Action))
	}
	if err != nil {
		slog.Warn("RespondToPivot refused",
			"pivot_id", req.Msg.PivotID,
			"action", req.Msg.Action,
			"error", err,
		)
		return nil, mapPivotErr(err)
	}

	slots := make([]*api.Slot, len(cascade))
	for i := range cascade {
		slots[i] = toAPISlot(&cascade[i])
	}

	return connect.NewResponse(&api.RespondToPivotResponse{
		Pivot:        toAPIPivot(event),
		CascadeSlots: slots,
	}), nil
}

// GetPivot returns a pivot event, expiring it first if its response window
// has lapsed.
func (s *PivotService) GetPivot(ctx context.Context, req *connect.Request[api.GetPivotRequest]) (*connect.Response[api.GetPivotResponse], error) {
	slog.Info("GetPivot request received", "pivot_id", req.Msg.PivotID)

	memberID := middleware.GetMemberID(ctx)
	if memberID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("member identity required"))
	}

	event, err := s.pivots.Get(ctx, req.Msg.PivotID)
	if err != nil {
		slog.Error("GetPivot failed", "pivot_id", req.Msg.PivotID, "error", err)
		return nil, connect.NewError(connect.CodeNotFound, err)
	}

	trip, err := s.store.GetTrip(ctx, event.TripID)
	if err != nil {
		slog.Error("GetPivot failed", "pivot_id", req.Msg.PivotID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !trip.HasMember(memberID) {
		return nil, connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("member %s is not on the trip roster", memberID))
	}

	return connect.NewResponse(&api.GetPivotResponse{
		Pivot: toAPIPivot(event),
	}), nil
}

// ListPivots returns a trip's pivot events, newest first, optionally
// narrowed to one slot.
func (s *PivotService) ListPivots(ctx context.Context, req *connect.Request[api.ListPivotsRequest]) (*connect.Response[api.ListPivotsResponse], error) {
	slog.Info("ListPivots request received",
		"trip_id", req.Msg.TripID,
		"slot_id", req.Msg.SlotID,
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

	events, err := s.pivots.List(ctx, trip.ID, req.Msg.SlotID)
	if err != nil {
		slog.Error("ListPivots failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	pivots := make([]*api.Pivot, len(events))
	for i := range events {
		pivots[i] = toAPIPivot(&events[i])
	}

	slog.Info("ListPivots successful", "trip_id", trip.ID, "count", len(pivots))

	return connect.NewResponse(&api.ListPivotsResponse{
		Pivots: pivots,
	}), nil
}
