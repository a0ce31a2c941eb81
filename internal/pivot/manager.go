// Package pivot implements the mid-trip adaptation lifecycle. Each slot
// carries at most one live proposal at a time and an adaptation budget of
// MaxPivotDepth accepted changes; proposals expire on a wall-clock deadline
// enforced both lazily on access and by a background sweeper.
package pivot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tripmates/accord/internal/gate"
	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/internal/weather"
)

// MaxPivotDepth is the number of accepted pivots one slot can absorb.
// After that the slot is done adapting; further triggers are refused.
const MaxPivotDepth = 1

// Defaults for the manager configuration.
const (
	DefaultResponseWindow = 30 * time.Minute
	DefaultSweepInterval  = time.Minute
)

// Signal values written on pivot resolution.
const (
	acceptedSignalValue = 1.0
	rejectedSignalValue = -0.5
	expiredSignalValue  = 0.0
)

// Store is the persistence surface the manager needs. The full storage
// layer satisfies it.
type Store interface {
	// GetSlot returns the slot or an error when it is unknown.
	GetSlot(ctx context.Context, tripID, slotID string) (*models.Slot, error)

	// GetPivot returns the pivot event or an error when it is unknown.
	GetPivot(ctx context.Context, pivotID string) (*models.PivotEvent, error)

	// ActivePivot returns the slot's proposed pivot, or nil when the slot
	// has none.
	ActivePivot(ctx context.Context, tripID, slotID string) (*models.PivotEvent, error)

	// CreatePivot persists a new pivot event, assigning ID and CreatedAt.
	CreatePivot(ctx context.Context, pivot *models.PivotEvent) error

	// ResolvePivot persists a terminal transition, updating the slot in
	// the same transaction when slot is non-nil.
	ResolvePivot(ctx context.Context, pivot *models.PivotEvent, slot *models.Slot) error

	// ListPivots returns a trip's pivot events, optionally filtered to one
	// slot, newest first.
	ListPivots(ctx context.Context, tripID, slotID string) ([]models.PivotEvent, error)

	// ListExpiredProposed returns proposed pivots whose deadline is at or
	// before cutoff.
	ListExpiredProposed(ctx context.Context, cutoff int64) ([]models.PivotEvent, error)

	// ListSlotsByDay returns a trip's slots for one day.
	ListSlotsByDay(ctx context.Context, tripID string, dayNumber int) ([]models.Slot, error)
}

// SignalWriter receives behavioral signals emitted on resolutions. Writes
// are fire-and-forget: a failure is logged and the transition stands.
type SignalWriter interface {
	AppendBehavioralSignal(ctx context.Context, signal *models.BehavioralSignal) error
}

// Config configures the Manager.
type Config struct {
	Store        Store
	Signals      SignalWriter
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer

	// ResponseWindow is how long a proposal stays actionable
	// (default: 30m).
	ResponseWindow time.Duration

	// MaxDepth overrides MaxPivotDepth, mainly for tests.
	MaxDepth int

	// SweepInterval is the cadence of the expiry sweeper (default: 1m).
	SweepInterval time.Duration
}

// Manager serializes pivot mutations per slot and owns the expiry sweeper.
type Manager struct {
	store         Store
	signals       SignalWriter
	logger        *slog.Logger
	window        time.Duration
	maxDepth      int
	sweepInterval time.Duration

	// now is swapped out in tests.
	now func() time.Time

	metrics struct {
		proposed    prometheus.Counter
		accepted    prometheus.Counter
		rejected    prometheus.Counter
		expired     prometheus.Counter
		depthDenied prometheus.Counter
	}

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a Manager. The sweeper is not running until Start.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("pivot manager requires a store")
	}
	if cfg.Signals == nil {
		return nil, fmt.Errorf("pivot manager requires a signal writer")
	}

	m := &Manager{
		store:         cfg.Store,
		signals:       cfg.Signals,
		logger:        cfg.Logger,
		window:        cfg.ResponseWindow,
		maxDepth:      cfg.MaxDepth,
		sweepInterval: cfg.SweepInterval,
		now:           time.Now,
		locks:         make(map[string]*sync.Mutex),
		stopCh:        make(chan struct{}),
	}
	if m.logger == nil {
		// Throw away logs rather than guard every call site.
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if m.window <= 0 {
		m.window = DefaultResponseWindow
	}
	if m.maxDepth <= 0 {
		m.maxDepth = MaxPivotDepth
	}
	if m.sweepInterval <= 0 {
		m.sweepInterval = DefaultSweepInterval
	}

	factory := promauto.With(cfg.PromRegistry)
	m.metrics.proposed = factory.NewCounter(prometheus.CounterOpts{
		Name: "accord_pivots_proposed_total",
		Help: "pivot proposals created",
	})
	m.metrics.accepted = factory.NewCounter(prometheus.CounterOpts{
		Name: "accord_pivots_accepted_total",
		Help: "pivots accepted by members",
	})
	m.metrics.rejected = factory.NewCounter(prometheus.CounterOpts{
		Name: "accord_pivots_rejected_total",
		Help: "pivots rejected by members",
	})
	m.metrics.expired = factory.NewCounter(prometheus.CounterOpts{
		Name: "accord_pivots_expired_total",
		Help: "pivot proposals that lapsed unanswered",
	})
	m.metrics.depthDenied = factory.NewCounter(prometheus.CounterOpts{
		Name: "accord_pivots_depth_denied_total",
		Help: "trigger ingestions refused by the depth gate",
	})
	return m, nil
}

// slotLock returns the mutex serializing mutations for one slot.
func (m *Manager) slotLock(tripID, slotID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	key := tripID + "/" + slotID
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// ProposeFromWeather ingests a pushed weather observation for a slot. A dry
// condition or an indoor slot is a quiet non-event: (nil, nil). The slot's
// stored category is authoritative, not whatever the collaborator echoed.
func (m *Manager) ProposeFromWeather(ctx context.Context, tripID, slotID, condition string) (*models.PivotEvent, error) {
	cond, err := weather.Normalize(condition)
	if err != nil {
		return nil, err
	}

	lock := m.slotLock(tripID, slotID)
	lock.Lock()
	defer lock.Unlock()

	slot, err := m.store.GetSlot(ctx, tripID, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot: %w", err)
	}

	obs := weather.Observation{Condition: cond, SlotCategory: slot.Category}
	if !WeatherTriggers(obs) {
		m.logger.Debug("weather observation does not trigger",
			"trip_id", tripID,
			"slot_id", slotID,
			"condition", cond,
			"category", slot.Category,
		)
		return nil, nil
	}
	return m.proposeLocked(ctx, slot, "system", models.TriggerWeatherChange, cond, "")
}

// ProposeFromText ingests a gated free-text disruption report. Rejected and
// low-confidence gate results are quiet non-events: (nil, nil). The
// confidence bar is strict; a result at exactly MinTriggerConfidence does
// not pass.
func (m *Manager) ProposeFromText(ctx context.Context, tripID, slotID, memberID string, d gate.Decision, proposedActivityID string) (*models.PivotEvent, error) {
	if d.Rejected() || d.Confidence <= MinTriggerConfidence {
		m.logger.Debug("gated report below trigger bar",
			"trip_id", tripID,
			"slot_id", slotID,
			"method", d.Method,
			"confidence", d.Confidence,
		)
		return nil, nil
	}
	trigger, err := TriggerForLabel(d.Label)
	if err != nil {
		m.logger.Warn("classification label outside trigger table",
			"trip_id", tripID,
			"slot_id", slotID,
			"label", d.Label,
		)
		return nil, err
	}

	lock := m.slotLock(tripID, slotID)
	lock.Lock()
	defer lock.Unlock()

	slot, err := m.store.GetSlot(ctx, tripID, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot: %w", err)
	}
	return m.proposeLocked(ctx, slot, memberID, trigger, d.Prompt, proposedActivityID)
}

// proposeLocked runs the common proposal path. The slot lock is held.
func (m *Manager) proposeLocked(ctx context.Context, slot *models.Slot, proposedBy string, trigger models.TriggerType, payload, proposedActivityID string) (*models.PivotEvent, error) {
	// A lapsed proposal must not block a fresh trigger.
	active, err := m.store.ActivePivot(ctx, slot.TripID, slot.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active pivot: %w", err)
	}
	if active != nil {
		expired, err := m.expireIfDueLocked(ctx, active)
		if err != nil {
			return nil, err
		}
		if !expired {
			return nil, ErrAlreadyProposed
		}
	}

	if slot.PivotDepth >= m.maxDepth {
		m.metrics.depthDenied.Inc()
		return nil, &DepthLimitError{SlotID: slot.ID, Depth: slot.PivotDepth, Max: m.maxDepth}
	}

	pivot := &models.PivotEvent{
		TripID:             slot.TripID,
		SlotID:             slot.ID,
		TriggerType:        trigger,
		TriggerPayload:     payload,
		Status:             models.PivotProposed,
		PivotDepth:         slot.PivotDepth,
		ProposedActivityID: proposedActivityID,
		ProposedBy:         proposedBy,
		ExpiresAt:          m.now().Add(m.window).Unix(),
	}
	if err := m.store.CreatePivot(ctx, pivot); err != nil {
		return nil, fmt.Errorf("failed to create pivot: %w", err)
	}

	m.metrics.proposed.Inc()
	m.logger.Info("pivot proposed",
		"pivot_id", pivot.ID,
		"trip_id", pivot.TripID,
		"slot_id", pivot.SlotID,
		"trigger_type", pivot.TriggerType,
		"depth", pivot.PivotDepth,
		"expires_at", pivot.ExpiresAt,
	)
	return pivot, nil
}

// Accept applies a proposed pivot: the slot swaps to the replacement
// activity, its depth increments, and a pivot_accepted signal is emitted.
// Returns the slots eligible for automatic cascade re-check: same day,
// strictly later sort order. Cross-day slots are never returned.
func (m *Manager) Accept(ctx context.Context, pivotID, memberID, replacementActivityID string) (*models.PivotEvent, []models.Slot, error) {
	if replacementActivityID == "" {
		return nil, nil, ErrMissingReplacement
	}

	pivot, unlock, err := m.lockPivot(ctx, pivotID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	if err := m.requireProposed(ctx, pivot); err != nil {
		return nil, nil, err
	}

	slot, err := m.store.GetSlot(ctx, pivot.TripID, pivot.SlotID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load slot: %w", err)
	}

	now := m.now().Unix()
	pivot.Status = models.PivotAccepted
	pivot.ReplacementActivityID = replacementActivityID
	pivot.ResolvedAt = now

	slot.WasSwapped = true
	slot.ReplacementActivityID = replacementActivityID
	slot.PivotEventID = pivot.ID
	slot.PivotDepth++
	slot.UpdatedAt = now

	if err := m.store.ResolvePivot(ctx, pivot, slot); err != nil {
		return nil, nil, fmt.Errorf("failed to persist pivot acceptance: %w", err)
	}

	m.metrics.accepted.Inc()
	m.logger.Info("pivot accepted",
		"pivot_id", pivot.ID,
		"trip_id", pivot.TripID,
		"slot_id", pivot.SlotID,
		"replacement_activity_id", replacementActivityID,
		"new_depth", slot.PivotDepth,
	)
	m.writeSignal(ctx, pivot, memberID, models.SignalPivotAccepted, acceptedSignalValue)

	cascade, err := m.cascadeScope(ctx, slot)
	if err != nil {
		// The acceptance is committed; a cascade listing failure only
		// costs the re-check hint.
		m.logger.Warn("failed to compute cascade scope",
			"pivot_id", pivot.ID,
			"error", err,
		)
		return pivot, nil, nil
	}
	return pivot, cascade, nil
}

// Reject declines a proposed pivot. The slot is left untouched and its
// depth is not consumed; a pivot_rejected signal is emitted.
func (m *Manager) Reject(ctx context.Context, pivotID, memberID string) (*models.PivotEvent, error) {
	pivot, unlock, err := m.lockPivot(ctx, pivotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := m.requireProposed(ctx, pivot); err != nil {
		return nil, err
	}

	pivot.Status = models.PivotRejected
	pivot.ResolvedAt = m.now().Unix()
	if err := m.store.ResolvePivot(ctx, pivot, nil); err != nil {
		return nil, fmt.Errorf("failed to persist pivot rejection: %w", err)
	}

	m.metrics.rejected.Inc()
	m.logger.Info("pivot rejected",
		"pivot_id", pivot.ID,
		"trip_id", pivot.TripID,
		"slot_id", pivot.SlotID,
	)
	m.writeSignal(ctx, pivot, memberID, models.SignalPivotRejected, rejectedSignalValue)
	return pivot, nil
}

// Get returns a pivot, expiring it first if its deadline has lapsed.
func (m *Manager) Get(ctx context.Context, pivotID string) (*models.PivotEvent, error) {
	pivot, err := m.store.GetPivot(ctx, pivotID)
	if err != nil {
		return nil, err
	}
	if pivot.Status != models.PivotProposed {
		return pivot, nil
	}

	pivot, unlock, err := m.lockPivot(ctx, pivotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := m.expireIfDueLocked(ctx, pivot); err != nil {
		return nil, err
	}
	return pivot, nil
}

// List returns a trip's pivots, optionally filtered to one slot, expiring
// any lapsed proposals on the way out.
func (m *Manager) List(ctx context.Context, tripID, slotID string) ([]models.PivotEvent, error) {
	pivots, err := m.store.ListPivots(ctx, tripID, slotID)
	if err != nil {
		return nil, err
	}
	now := m.now().Unix()
	for i := range pivots {
		if pivots[i].Status != models.PivotProposed || pivots[i].ExpiresAt > now {
			continue
		}
		refreshed, err := m.Get(ctx, pivots[i].ID)
		if err != nil {
			return nil, err
		}
		pivots[i] = *refreshed
	}
	return pivots, nil
}

// lockPivot loads the pivot, acquires its slot lock, and reloads it under
// the lock so concurrent resolutions cannot interleave.
func (m *Manager) lockPivot(ctx context.Context, pivotID string) (*models.PivotEvent, func(), error) {
	pivot, err := m.store.GetPivot(ctx, pivotID)
	if err != nil {
		return nil, nil, err
	}

	lock := m.slotLock(pivot.TripID, pivot.SlotID)
	lock.Lock()

	pivot, err = m.store.GetPivot(ctx, pivotID)
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}
	return pivot, lock.Unlock, nil
}

// requireProposed lazily expires the pivot and then demands it still be
// actionable.
func (m *Manager) requireProposed(ctx context.Context, pivot *models.PivotEvent) error {
	expired, err := m.expireIfDueLocked(ctx, pivot)
	if err != nil {
		return err
	}
	if expired || pivot.Status.Terminal() {
		return fmt.Errorf("%w: status is %s", ErrTerminal, pivot.Status)
	}
	return nil
}

// expireIfDueLocked transitions a proposed pivot past its deadline to
// expired, emitting the pivot_expired signal. The slot lock is held.
func (m *Manager) expireIfDueLocked(ctx context.Context, pivot *models.PivotEvent) (bool, error) {
	if pivot.Status != models.PivotProposed {
		return pivot.Status == models.PivotExpired, nil
	}
	if m.now().Unix() < pivot.ExpiresAt {
		return false, nil
	}

	pivot.Status = models.PivotExpired
	pivot.ResolvedAt = m.now().Unix()
	if err := m.store.ResolvePivot(ctx, pivot, nil); err != nil {
		// Leave it proposed in memory; the caller aborts rather than act
		// on a pivot in an unknown state.
		pivot.Status = models.PivotProposed
		pivot.ResolvedAt = 0
		return false, fmt.Errorf("failed to persist pivot expiry: %w", err)
	}

	m.metrics.expired.Inc()
	m.logger.Info("pivot expired",
		"pivot_id", pivot.ID,
		"trip_id", pivot.TripID,
		"slot_id", pivot.SlotID,
	)
	m.writeSignal(ctx, pivot, pivot.ProposedBy, models.SignalPivotExpired, expiredSignalValue)
	return true, nil
}

// cascadeScope lists slots eligible for automatic re-check after an accept.
// The day boundary is a hard invariant, so the day is re-checked here even
// though the store query is already day-scoped.
func (m *Manager) cascadeScope(ctx context.Context, changed *models.Slot) ([]models.Slot, error) {
	slots, err := m.store.ListSlotsByDay(ctx, changed.TripID, changed.DayNumber)
	if err != nil {
		return nil, err
	}

	var eligible []models.Slot
	for _, s := range slots {
		if s.DayNumber != changed.DayNumber {
			continue
		}
		if s.SortOrder > changed.SortOrder {
			eligible = append(eligible, s)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].SortOrder < eligible[j].SortOrder })
	return eligible, nil
}

// writeSignal emits a behavioral signal for a resolution. Failures are
// logged; the resolution has already been committed and stands.
func (m *Manager) writeSignal(ctx context.Context, pivot *models.PivotEvent, memberID, signalType string, value float64) {
	signal := &models.BehavioralSignal{
		TripID:      pivot.TripID,
		SlotID:      pivot.SlotID,
		MemberID:    memberID,
		SignalType:  signalType,
		SignalValue: value,
		TripPhase:   models.PhaseMidTrip,
	}
	if err := m.signals.AppendBehavioralSignal(ctx, signal); err != nil {
		m.logger.Error("failed to write behavioral signal",
			"signal_type", signalType,
			"pivot_id", pivot.ID,
			"error", err,
		)
	}
}
