// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/tripmates/accord/internal/models"
)

// ErrNotFound is wrapped by lookups when the requested row does not exist,
// so callers can tell absence apart from a failing backend with errors.Is.
var ErrNotFound = errors.New("not found")

// Store defines the interface for engine storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer. It is a superset of the narrow
// consumer interfaces declared by the engine packages (pivot.Store,
// pivot.SignalWriter, gate.AuditSink, trust.Effects), so one backend
// serves them all.
type Store interface {
	// CreateTrip persists a new trip, its roster, and a zeroed ledger row
	// per member in one transaction. The trip.ID and trip.CreatedAt fields
	// will be populated by the store when unset.
	CreateTrip(ctx context.Context, trip *models.Trip) error

	// GetTrip retrieves a trip with its full roster. A missing trip is
	// reported with an error wrapping ErrNotFound.
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)

	// UpsertSlot creates or replaces the engine's read model of a slot.
	// Engine-owned fields (PivotDepth, WasSwapped, replacement links) are
	// preserved across upserts of an existing slot.
	UpsertSlot(ctx context.Context, slot *models.Slot) error

	// GetSlot retrieves a slot scoped to its trip. A missing slot is
	// reported with an error wrapping ErrNotFound.
	GetSlot(ctx context.Context, tripID, slotID string) (*models.Slot, error)

	// ListSlotsByDay returns a trip's slots for one day ordered by
	// SortOrder.
	ListSlotsByDay(ctx context.Context, tripID string, dayNumber int) ([]models.Slot, error)

	// CreateBallot persists a newly opened ballot. A slot holds at most
	// one ballot; opening a second returns an error.
	CreateBallot(ctx context.Context, ballot *models.Ballot) error

	// GetBallot retrieves a ballot with its current votes. A slot without
	// a ballot is reported with an error wrapping ErrNotFound.
	GetBallot(ctx context.Context, tripID, slotID string) (*models.Ballot, error)

	// SaveVote upserts one member's current choice on an open ballot.
	SaveVote(ctx context.Context, tripID, slotID, memberID string, choice models.VoteChoice) error

	// ApplyResolution marks the ballot resolved and upserts the given debt
	// rows in the same transaction. Debts may be empty for contested
	// outcomes.
	ApplyResolution(ctx context.Context, ballot *models.Ballot, debts []models.Debt) error

	// GetDebts returns a trip's ledger rows ordered by member id.
	GetDebts(ctx context.Context, tripID string) ([]models.Debt, error)

	// CreatePivot persists a new pivot event. The pivot.ID and
	// pivot.CreatedAt fields will be populated by the store when unset.
	CreatePivot(ctx context.Context, pivot *models.PivotEvent) error

	// GetPivot retrieves a pivot event by its ID. A missing event is
	// reported with an error wrapping ErrNotFound.
	GetPivot(ctx context.Context, pivotID string) (*models.PivotEvent, error)

	// ActivePivot returns the slot's proposed pivot, or nil when the slot
	// has none.
	ActivePivot(ctx context.Context, tripID, slotID string) (*models.PivotEvent, error)

	// ResolvePivot persists a terminal pivot transition, updating the slot
	// in the same transaction when slot is non-nil.
	ResolvePivot(ctx context.Context, pivot *models.PivotEvent, slot *models.Slot) error

	// ListPivots returns a trip's pivot events, optionally filtered to one
	// slot when slotID is non-empty, newest first.
	ListPivots(ctx context.Context, tripID, slotID string) ([]models.PivotEvent, error)

	// ListExpiredProposed returns proposed pivots whose deadline is at or
	// before cutoff.
	ListExpiredProposed(ctx context.Context, cutoff int64) ([]models.PivotEvent, error)

	// AppendBehavioralSignal appends one behavioral signal row.
	AppendBehavioralSignal(ctx context.Context, signal *models.BehavioralSignal) error

	// AppendIntentionSignal appends one intention signal row.
	AppendIntentionSignal(ctx context.Context, signal *models.IntentionSignal) error

	// ListBehavioralSignals returns a trip's behavioral signals, newest
	// first.
	ListBehavioralSignals(ctx context.Context, tripID string) ([]models.BehavioralSignal, error)

	// ListIntentionSignals returns a trip's intention signals, newest
	// first.
	ListIntentionSignals(ctx context.Context, tripID string) ([]models.IntentionSignal, error)

	// AppendGateAudit appends one gate audit entry.
	AppendGateAudit(ctx context.Context, entry *models.GateAuditEntry) error

	// ListGateAudit returns a trip's gate audit trail, newest first.
	ListGateAudit(ctx context.Context, tripID string) ([]models.GateAuditEntry, error)

	// EnqueueModeration appends one flagged activity to the review queue.
	// The item.ID and item.CreatedAt fields will be populated by the store
	// when unset.
	EnqueueModeration(ctx context.Context, item *models.ModerationItem) error

	// ListModerationQueue returns a trip's pending moderation items,
	// oldest first so reviewers work in arrival order.
	ListModerationQueue(ctx context.Context, tripID string) ([]models.ModerationItem, error)

	// Close releases any resources held by the store.
	Close() error
}
