package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/internal/storage"
)

const pivotColumns = `id, trip_id, slot_id, trigger_type, trigger_payload, status,
	pivot_depth, proposed_activity_id, replacement_activity_id, proposed_by,
	created_at, expires_at, resolved_at`

// CreatePivot persists a new pivot event to the database.
func (s *SQLiteStore) CreatePivot(ctx context.Context, pivot *models.PivotEvent) error {
	// Generate ID if not set
	if pivot.ID == "" {
		pivot.ID = uuid.New().String()
	}
	if pivot.CreatedAt == 0 {
		pivot.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pivot_events (`+pivotColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pivot.ID, pivot.TripID, pivot.SlotID, string(pivot.TriggerType),
		nullableString(pivot.TriggerPayload), string(pivot.Status),
		pivot.PivotDepth, nullableString(pivot.ProposedActivityID),
		nullableString(pivot.ReplacementActivityID), pivot.ProposedBy,
		pivot.CreatedAt, pivot.ExpiresAt, nullableInt(pivot.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pivot event: %w", err)
	}

	return nil
}

// GetPivot retrieves a pivot event by ID.
func (s *SQLiteStore) GetPivot(ctx context.Context, pivotID string) (*models.PivotEvent, error) {
	pivot, err := scanPivot(s.db.QueryRowContext(ctx,
		`SELECT `+pivotColumns+` FROM pivot_events WHERE id = ?`,
		pivotID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pivot event %s: %w", pivotID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pivot event: %w", err)
	}
	return pivot, nil
}

// ActivePivot returns the slot's proposed pivot, or nil when the slot has
// none. At most one proposed pivot per slot exists (enforced by a partial
// unique index).
func (s *SQLiteStore) ActivePivot(ctx context.Context, tripID, slotID string) (*models.PivotEvent, error) {
	pivot, err := scanPivot(s.db.QueryRowContext(ctx,
		`SELECT `+pivotColumns+` FROM pivot_events
		 WHERE trip_id = ? AND slot_id = ? AND status = ?`,
		tripID, slotID, string(models.PivotProposed),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active pivot: %w", err)
	}
	return pivot, nil
}

// ResolvePivot persists a terminal pivot transition, updating the slot in
// the same transaction when slot is non-nil.
func (s *SQLiteStore) ResolvePivot(ctx context.Context, pivot *models.PivotEvent, slot *models.Slot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE pivot_events
		 SET status = ?, replacement_activity_id = ?, resolved_at = ?
		 WHERE id = ?`,
		string(pivot.Status), nullableString(pivot.ReplacementActivityID),
		nullableInt(pivot.ResolvedAt), pivot.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pivot event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check pivot update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pivot event not found: %s", pivot.ID)
	}

	if slot != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE slots
			 SET pivot_depth = ?, was_swapped = ?, replacement_activity_id = ?,
			     pivot_event_id = ?, updated_at = ?
			 WHERE trip_id = ? AND id = ?`,
			slot.PivotDepth, boolToInt(slot.WasSwapped),
			nullableString(slot.ReplacementActivityID), nullableString(slot.PivotEventID),
			slot.UpdatedAt,
			slot.TripID, slot.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListPivots retrieves a trip's pivot events, optionally filtered to one
// slot, newest first.
func (s *SQLiteStore) ListPivots(ctx context.Context, tripID, slotID string) ([]models.PivotEvent, error) {
	query := `SELECT ` + pivotColumns + ` FROM pivot_events WHERE trip_id = ?`
	args := []interface{}{tripID}
	if slotID != "" {
		query += " AND slot_id = ?"
		args = append(args, slotID)
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pivot events: %w", err)
	}
	defer rows.Close()

	var pivots []models.PivotEvent
	for rows.Next() {
		pivot, err := scanPivot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pivot event: %w", err)
		}
		pivots = append(pivots, *pivot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pivot events: %w", err)
	}

	return pivots, nil
}

// ListExpiredProposed returns proposed pivots whose deadline is at or
// before cutoff, oldest first so the sweeper expires in deadline order.
func (s *SQLiteStore) ListExpiredProposed(ctx context.Context, cutoff int64) ([]models.PivotEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pivotColumns+` FROM pivot_events
		 WHERE status = ? AND expires_at <= ?
		 ORDER BY expires_at`,
		string(models.PivotProposed), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pivots: %w", err)
	}
	defer rows.Close()

	var pivots []models.PivotEvent
	for rows.Next() {
		pivot, err := scanPivot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pivot event: %w", err)
		}
		pivots = append(pivots, *pivot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired pivots: %w", err)
	}

	return pivots, nil
}

func scanPivot(row rowScanner) (*models.PivotEvent, error) {
	pivot := &models.PivotEvent{}
	var (
		triggerType string
		payload     sql.NullString
		status      string
		proposedID  sql.NullString
		replID      sql.NullString
		resolvedAt  sql.NullInt64
	)
	err := row.Scan(
		&pivot.ID, &pivot.TripID, &pivot.SlotID, &triggerType, &payload, &status,
		&pivot.PivotDepth, &proposedID, &replID, &pivot.ProposedBy,
		&pivot.CreatedAt, &pivot.ExpiresAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	pivot.TriggerType = models.TriggerType(triggerType)
	pivot.TriggerPayload = payload.String
	pivot.Status = models.PivotStatus(status)
	pivot.ProposedActivityID = proposedID.String
	pivot.ReplacementActivityID = replID.String
	pivot.ResolvedAt = resolvedAt.Int64
	return pivot, nil
}

// nullableInt maps zero to NULL for optional timestamps.
func nullableInt(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
