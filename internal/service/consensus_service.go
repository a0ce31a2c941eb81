package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tripmates/accord/internal/consensus"
	"github.com/tripmates/accord/internal/fairness"
	"github.com/tripmates/accord/internal/middleware"
	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/internal/storage"
	"github.com/tripmates/accord/pkg/api"
)

// ConsensusService implements the Connect ConsensusService: ballots over
// contested slots and the trip-scoped fairness ledger.
type ConsensusService struct {
	api.UnimplementedConsensusServiceHandler
	store            storage.Store
	defaultThreshold float64

	metrics struct {
		votesCast     prometheus.Counter
		resolutions   *prometheus.CounterVec
		ledgerUpdates prometheus.Counter
	}

	// locks serialize ballot mutations per slot. The vote aggregate is a
	// single-writer structure; the lock is what makes that true. tripLocks
	// serialize ledger transfers per trip: resolutions on different slots
	// share one ledger and must not interleave their read-modify-write.
	locksMu   sync.Mutex
	locks     map[string]*sync.Mutex
	tripLocks map[string]*sync.Mutex
}

// NewConsensusService creates a ConsensusService with the given storage
// backend. defaultThreshold is used when a trip opens a ballot without an
// override; out-of-range values fall back to the engine default.
func NewConsensusService(store storage.Store, defaultThreshold float64, reg prometheus.Registerer) *ConsensusService {
	if defaultThreshold <= 0 || defaultThreshold > 1 {
		defaultThreshold = consensus.DefaultThreshold
	}
	s := &ConsensusService{
		store:            store,
		defaultThreshold: defaultThreshold,
		locks:            make(map[string]*sync.Mutex),
		tripLocks:        make(map[string]*sync.Mutex),
	}
	factory := promauto.With(reg)
	s.metrics.votesCast = factory.NewCounter(prometheus.CounterOpts{
		Name: "accord_votes_cast_total",
		Help: "votes recorded on open ballots",
	})
	s.metrics.resolutions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "accord_ballots_resolved_total",
		Help: "ballot resolutions by outcome",
	}, []string{"outcome"})
	s.metrics.ledgerUpdates = factory.NewCounter(prometheus.CounterOpts{
		Name: "accord_ledger_updates_total",
		Help: "fairness transfers applied to trip ledgers",
	})
	return s
}

func (s *ConsensusService) slotLock(tripID, slotID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	key := tripID + "/" + slotID
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *ConsensusService) tripLock(tripID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.tripLocks[tripID]
	if !ok {
		l = &sync.Mutex{}
		s.tripLocks[tripID] = l
	}
	return l
}

// memberOnRoster loads the trip and verifies the caller is on its roster.
// Shared by every handler in this service.
func (s *ConsensusService) memberOnRoster(ctx context.Context, tripID string) (*models.Trip, string, error) {
	memberID := middleware.GetMemberID(ctx)
	if memberID == "" {
		return nil, "", connect.NewError(connect.CodeUnauthenticated, errors.New("member identity required"))
	}

	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, "", connect.NewError(connect.CodeNotFound, err)
	}
	if !trip.HasMember(memberID) {
		return nil, "", connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("member %s is not on the trip roster", memberID))
	}
	return trip, memberID, nil
}

// OpenBallot opens a fresh ballot for a contested slot. The threshold is
// captured at open time; later configuration changes never move it.
func (s *ConsensusService) OpenBallot(ctx context.Context, req *connect.Request[api.OpenBallotRequest]) (*connect.Response[api.OpenBallotResponse], error) {
	slog.Info("OpenBallot request received",
		"trip_id", req.Msg.TripID,
		"slot_id", req.Msg.SlotID,
	)

	trip, _, err := s.memberOnRoster(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetSlot(ctx, trip.ID, req.Msg.SlotID); err != nil {
		slog.Error("OpenBallot failed", "slot_id", req.Msg.SlotID, "error", err)
		return nil, connect.NewError(connect.CodeNotFound, err)
	}

	threshold := req.Msg.Threshold
	if threshold == 0 {
		threshold = s.defaultThreshold
	}
	if threshold <= 0 || threshold > 1 {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("threshold must be in (0, 1], got %v", threshold))
	}

	lock := s.slotLock(trip.ID, req.Msg.SlotID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.GetBallot(ctx, trip.ID, req.Msg.SlotID)
	switch {
	case err == nil:
		// Resolved ballots are immutable; renegotiation needs a new slot
		// sync, not a second ballot on the same one.
		slog.Warn("OpenBallot refused, ballot exists",
			"trip_id", trip.ID,
			"slot_id", req.Msg.SlotID,
			"resolved", existing.Resolved,
		)
		return nil, connect.NewError(connect.CodeAlreadyExists,
			fmt.Errorf("ballot already exists for slot %s", req.Msg.SlotID))
	case !errors.Is(err, storage.ErrNotFound):
		// Only proven absence clears the way; a failing lookup must not
		// cascade into a create attempt.
		slog.Error("OpenBallot failed", "slot_id", req.Msg.SlotID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	ballot := &models.Ballot{
		TripID:    trip.ID,
		SlotID:    req.Msg.SlotID,
		Threshold: threshold,
		Votes:     make(map[string]models.VoteChoice),
	}
	if err := s.store.CreateBallot(ctx, ballot); err != nil {
		slog.Error("OpenBallot failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Ballot opened",
		"trip_id", ballot.TripID,
		"slot_id", ballot.SlotID,
		"threshold", ballot.Threshold,
	)

	return connect.NewResponse(&api.OpenBallotResponse{
		Ballot: toAPIBallot(ballot),
	}), nil
}

// CastVote records or replaces the caller's choice on an open ballot.
func (s *ConsensusService) CastVote(ctx context.Context, req *connect.Request[api.CastVoteRequest]) (*connect.Response[api.CastVoteResponse], error) {
	slog.Info("CastVote request received",
		"trip_id", req.Msg.TripID,
		"slot_id", req.Msg.SlotID,
		"choice", req.Msg.Choice,
	)

	trip, memberID, err := s.memberOnRoster(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	lock := s.slotLock(trip.ID, req.Msg.SlotID)
	lock.Lock()
	defer lock.Unlock()

	ballot, err := s.store.GetBallot(ctx, trip.ID, req.Msg.SlotID)
	if err != nil {
		slog.Error("CastVote failed", "slot_id", req.Msg.SlotID, "error", err)
		return nil, connect.NewError(connect.CodeNotFound, err)
	}

	state, err := consensus.FromBallot(ballot, trip.Members)
	if err != nil {
		slog.Error("CastVote failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	choice := models.VoteChoice(req.Msg.Choice)
	if err := state.CastVote(memberID, choice); err != nil {
		slog.Warn("CastVote refused",
			"trip_id", trip.ID,
			"slot_id", req.Msg.SlotID,
			"member_id", memberID,
			"error", err,
		)
		switch {
		case errors.Is(err, consensus.ErrBallotResolved):
			return nil, connect.NewError(connect.CodeFailedPrecondition, err)
		case errors.Is(err, consensus.ErrInvalidChoice):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		case errors.Is(err, consensus.ErrNotOnRoster):
			return nil, connect.NewError(connect.CodePermissionDenied, err)
		default:
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}

	if err := s.store.SaveVote(ctx, trip.ID, req.Msg.SlotID, memberID, choice); err != nil {
		slog.Error("CastVote failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.metrics.votesCast.Inc()
	tally := state.Tally()
	slog.Info("Vote recorded",
		"trip_id", trip.ID,
		"slot_id", req.Msg.SlotID,
		"member_id", memberID,
		"approve", tally.Approve,
		"reject", tally.Reject,
		"abstain", tally.Abstain,
	)

	return connect.NewResponse(&api.CastVoteResponse{
		Tally: toAPITally(tally, len(state.Pending())),
	}), nil
}

// GetBallot returns a ballot snapshot with its current tally.
func (s *ConsensusService) GetBallot(ctx context.Context, req *connect.Request[api.GetBallotRequest]) (*connect.Response[api.GetBallotResponse], error) {
	slog.Info("GetBallot request received",
		"trip_id", req.Msg.TripID,
		"slot_id", req.Msg.SlotID,
	)

	trip, _, err := s.memberOnRoster(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	ballot, err := s.store.GetBallot(ctx, trip.ID, req.Msg.SlotID)
	if err != nil {
		slog.Error("GetBallot failed", "slot_id", req.Msg.SlotID, "error", err)
		return nil, connect.NewError(connect.CodeNotFound, err)
	}

	state, err := consensus.FromBallot(ballot, trip.Members)
	if err != nil {
		slog.Error("GetBallot failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&api.GetBallotResponse{
		Ballot: toAPIBallot(ballot),
		Tally:  toAPITally(state.Tally(), len(state.Pending())),
	}), nil
}

// ResolveBallot closes the ballot, fixes its outcome, and applies the
// fairness transfer for confirmed outcomes. Resolving an already-resolved
// ballot returns the recorded outcome without touching the ledger again.
func (s *ConsensusService) ResolveBallot(ctx context.Context, req *connect.Request[api.ResolveBallotRequest]) (*connect.Response[api.ResolveBallotResponse], error) {
	slog.Info("ResolveBallot request received",
		"trip_id", req.Msg.TripID,
		"slot_id", req.Msg.SlotID,
	)

	trip, _, err := s.memberOnRoster(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	weight := req.Msg.Weight
	if weight == 0 {
		weight = fairness.DefaultWeight
	}
	if weight < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("weight must be positive, got %v", weight))
	}

	// Trip lock first, slot lock second; ResolveBallot is the only path
	// that holds both. The trip lock covers the ledger read-modify-write,
	// which spans slots.
	tripLock := s.tripLock(trip.ID)
	tripLock.Lock()
	defer tripLock.Unlock()

	lock := s.slotLock(trip.ID, req.Msg.SlotID)
	lock.Lock()
	defer lock.Unlock()

	ballot, err := s.store.GetBallot(ctx, trip.ID, req.Msg.SlotID)
	if err != nil {
		slog.Error("ResolveBallot failed", "slot_id", req.Msg.SlotID, "error", err)
		return nil, connect.NewError(connect.CodeNotFound, err)
	}

	state, err := consensus.FromBallot(ballot, trip.Members)
	if err != nil {
		slog.Error("ResolveBallot failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	if ballot.Resolved {
		// Idempotent retry: the outcome stands and the ledger was already
		// settled by the first call.
		slog.Info("ResolveBallot replayed",
			"trip_id", trip.ID,
			"slot_id", req.Msg.SlotID,
			"outcome", ballot.Outcome,
		)
		return connect.NewResponse(&api.ResolveBallotResponse{
			Outcome:       string(ballot.Outcome),
			Tally:         toAPITally(state.Tally(), len(state.Pending())),
			LedgerApplied: false,
		}), nil
	}

	outcome, err := state.Resolve()
	if err != nil {
		slog.Error("ResolveBallot failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	now := time.Now().Unix()
	ballot.Resolved = true
	ballot.Outcome = outcome
	ballot.ResolvedAt = now

	var (
		debts         []models.Debt
		ledgerApplied bool
	)
	if outcome == models.OutcomeConfirmed {
		rows, err := s.store.GetDebts(ctx, trip.ID)
		if err != nil {
			slog.Error("ResolveBallot failed", "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		ledger, err := fairness.FromDebts(trip.ID, trip.Members, rows)
		if err != nil {
			slog.Error("ResolveBallot failed", "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}

		var winners, losers []string
		for member, choice := range state.Votes() {
			switch choice {
			case models.VoteApprove:
				winners = append(winners, member)
			case models.VoteReject:
				losers = append(losers, member)
			}
		}
		if err := ledger.RecordResolution(winners, losers, weight); err != nil {
			slog.Error("ResolveBallot failed", "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		if err := ledger.CheckInvariant(); err != nil {
			slog.Error("ResolveBallot failed", "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		debts = ledger.Rows(now)
		ledgerApplied = true
	}

	if err := s.store.ApplyResolution(ctx, ballot, debts); err != nil {
		slog.Error("ResolveBallot failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.metrics.resolutions.WithLabelValues(string(outcome)).Inc()
	if ledgerApplied {
		s.metrics.ledgerUpdates.Inc()
	}
	slog.Info("Ballot resolved",
		"trip_id", trip.ID,
		"slot_id", req.Msg.SlotID,
		"outcome", outcome,
		"ledger_applied", ledgerApplied,
	)

	return connect.NewResponse(&api.ResolveBallotResponse{
		Outcome:       string(outcome),
		Tally:         toAPITally(state.Tally(), len(state.Pending())),
		LedgerApplied: ledgerApplied,
	}), nil
}

// GetLedger returns the trip's fairness ledger rows and a conservation
// verdict.
func (s *ConsensusService) GetLedger(ctx context.Context, req *connect.Request[api.GetLedgerRequest]) (*connect.Response[api.GetLedgerResponse], error) {
	slog.Info("GetLedger request received", "trip_id", req.Msg.TripID)

	trip, _, err := s.memberOnRoster(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.GetDebts(ctx, trip.ID)
	if err != nil {
		slog.Error("GetLedger failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	ledger, err := fairness.FromDebts(trip.ID, trip.Members, rows)
	if err != nil {
		slog.Error("GetLedger failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	entries := make([]*api.LedgerEntry, len(rows))
	for i, row := range rows {
		entries[i] = &api.LedgerEntry{
			MemberID:  row.MemberID,
			Balance:   row.Balance,
			UpdatedAt: row.UpdatedAt,
		}
	}

	return connect.NewResponse(&api.GetLedgerResponse{
		Entries: entries,
		ZeroSum: ledger.CheckInvariant() == nil,
	}), nil
}
