package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/tripmates/accord/internal/middleware"
	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/internal/storage"
	"github.com/tripmates/accord/pkg/api"
)

// TripService implements the Connect TripService: the registration and
// slot-sync surface the surrounding product uses to feed the engine its
// read model.
type TripService struct {
	api.UnimplementedTripServiceHandler
	store storage.Store
}

// NewTripService creates a TripService with the given storage backend.
func NewTripService(store storage.Store) *TripService {
	return &TripService{store: store}
}

// RegisterTrip registers a trip with its full member roster and seeds a
// zeroed fairness ledger. The roster is fixed for the trip's lifetime; a
// changed group registers a new trip.
func (s *TripService) RegisterTrip(ctx context.Context, req *connect.Request[api.RegisterTripRequest]) (*connect.Response[api.RegisterTripResponse], error) {
	slog.Info("RegisterTrip request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.MemberIDs),
	)

	if middleware.GetMemberID(ctx) == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("member identity required"))
	}
	if len(req.Msg.MemberIDs) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("roster cannot be empty"))
	}
	seen := make(map[string]bool, len(req.Msg.MemberIDs))
	for _, m := range req.Msg.MemberIDs {
		if m == "" {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("member ids cannot be empty"))
		}
		if seen[m] {
			return nil, connect.NewError(connect.CodeInvalidArgument,
				fmt.Errorf("duplicate member id %q in roster", m))
		}
		seen[m] = true
	}

	trip := &models.Trip{
		Name:    req.Msg.Name,
		Members: req.Msg.MemberIDs,
	}
	if err := s.store.CreateTrip(ctx, trip); err != nil {
		slog.Error("RegisterTrip failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Trip registered", "trip_id", trip.ID, "members_count", len(trip.Members))

	return connect.NewResponse(&api.RegisterTripResponse{
		Trip: toAPITrip(trip),
	}), nil
}

// SyncSlot creates or refreshes the engine's read model of one itinerary
// slot. Product metadata is replaced wholesale; engine-owned swap state
// survives the sync untouched.
func (s *TripService) SyncSlot(ctx context.Context, req *connect.Request[api.SyncSlotRequest]) (*connect.Response[api.SyncSlotResponse], error) {
	in := req.Msg.Slot
	if in == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("slot is required"))
	}

	slog.Info("SyncSlot request received",
		"trip_id", in.TripID,
		"slot_id", in.ID,
		"day_number", in.DayNumber,
	)

	if in.ID == "" || in.TripID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("slot id and trip id are required"))
	}
	if in.DayNumber < 1 {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("day number must be 1-based, got %d", in.DayNumber))
	}

	if _, err := s.store.GetTrip(ctx, in.TripID); err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}

	slot := &models.Slot{
		ID:         in.ID,
		TripID:     in.TripID,
		Title:      in.Title,
		ActivityID: in.ActivityID,
		Category:   in.Category,
		DayNumber:  in.DayNumber,
		SortOrder:  in.SortOrder,
	}
	if err := s.store.UpsertSlot(ctx, slot); err != nil {
		slog.Error("SyncSlot failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	// Return the stored view so the caller sees the preserved swap state.
	stored, err := s.store.GetSlot(ctx, in.TripID, in.ID)
	if err != nil {
		slog.Error("SyncSlot failed to reload slot", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Slot synced",
		"trip_id", stored.TripID,
		"slot_id", stored.ID,
		"pivot_depth", stored.PivotDepth,
	)

	return connect.NewResponse(&api.SyncSlotResponse{
		Slot: toAPISlot(stored),
	}), nil
}
