package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tripmates/accord/internal/models"
)

// AppendBehavioralSignal appends one behavioral signal row.
func (s *SQLiteStore) AppendBehavioralSignal(ctx context.Context, signal *models.BehavioralSignal) error {
	if signal.ID == "" {
		signal.ID = uuid.New().String()
	}
	if signal.CreatedAt == 0 {
		signal.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO behavioral_signals (id, trip_id, slot_id, member_id, signal_type, signal_value, trip_phase, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		signal.ID, signal.TripID, nullableString(signal.SlotID), nullableString(signal.MemberID),
		signal.SignalType, signal.SignalValue, string(signal.TripPhase), signal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert behavioral signal: %w", err)
	}

	return nil
}

// AppendIntentionSignal appends one intention signal row.
func (s *SQLiteStore) AppendIntentionSignal(ctx context.Context, signal *models.IntentionSignal) error {
	if signal.ID == "" {
		signal.ID = uuid.New().String()
	}
	if signal.CreatedAt == 0 {
		signal.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO intention_signals (id, trip_id, member_id, activity_id, intention_type, source, confidence, user_provided, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		signal.ID, signal.TripID, signal.MemberID, signal.ActivityID,
		signal.IntentionType, signal.Source, signal.Confidence,
		boolToInt(signal.UserProvided), signal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert intention signal: %w", err)
	}

	return nil
}

// ListBehavioralSignals retrieves a trip's behavioral signals, newest first.
func (s *SQLiteStore) ListBehavioralSignals(ctx context.Context, tripID string) ([]models.BehavioralSignal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, slot_id, member_id, signal_type, signal_value, trip_phase, created_at
		 FROM behavioral_signals WHERE trip_id = ? ORDER BY created_at DESC, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list behavioral signals: %w", err)
	}
	defer rows.Close()

	var signals []models.BehavioralSignal
	for rows.Next() {
		var (
			signal   models.BehavioralSignal
			slotID   sql.NullString
			memberID sql.NullString
			phase    string
		)
		if err := rows.Scan(&signal.ID, &signal.TripID, &slotID, &memberID,
			&signal.SignalType, &signal.SignalValue, &phase, &signal.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan behavioral signal: %w", err)
		}
		signal.SlotID = slotID.String
		signal.MemberID = memberID.String
		signal.TripPhase = models.TripPhase(phase)
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate behavioral signals: %w", err)
	}

	return signals, nil
}

// ListIntentionSignals retrieves a trip's intention signals, newest first.
func (s *SQLiteStore) ListIntentionSignals(ctx context.Context, tripID string) ([]models.IntentionSignal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, member_id, activity_id, intention_type, source, confidence, user_provided, created_at
		 FROM intention_signals WHERE trip_id = ? ORDER BY created_at DESC, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list intention signals: %w", err)
	}
	defer rows.Close()

	var signals []models.IntentionSignal
	for rows.Next() {
		var (
			signal       models.IntentionSignal
			userProvided int
		)
		if err := rows.Scan(&signal.ID, &signal.TripID, &signal.MemberID, &signal.ActivityID,
			&signal.IntentionType, &signal.Source, &signal.Confidence,
			&userProvided, &signal.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan intention signal: %w", err)
		}
		signal.UserProvided = userProvided != 0
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intention signals: %w", err)
	}

	return signals, nil
}

// AppendGateAudit appends one gate audit entry.
func (s *SQLiteStore) AppendGateAudit(ctx context.Context, entry *models.GateAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gate_audit (id, trip_id, member_id, prompt, label, confidence, method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, nullableString(entry.TripID), nullableString(entry.MemberID),
		entry.Prompt, entry.Label, entry.Confidence, entry.Method, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert gate audit entry: %w", err)
	}

	return nil
}

// ListGateAudit retrieves a trip's gate audit trail, newest first.
func (s *SQLiteStore) ListGateAudit(ctx context.Context, tripID string) ([]models.GateAuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, member_id, prompt, label, confidence, method, created_at
		 FROM gate_audit WHERE trip_id = ? ORDER BY created_at DESC, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list gate audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.GateAuditEntry
	for rows.Next() {
		var (
			entry      models.GateAuditEntry
			entryTrip  sql.NullString
			entryActor sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entryTrip, &entryActor, &entry.Prompt,
			&entry.Label, &entry.Confidence, &entry.Method, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan gate audit entry: %w", err)
		}
		entry.TripID = entryTrip.String
		entry.MemberID = entryActor.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gate audit entries: %w", err)
	}

	return entries, nil
}

// EnqueueModeration appends one flagged activity to the review queue.
func (s *SQLiteStore) EnqueueModeration(ctx context.Context, item *models.ModerationItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt == 0 {
		item.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO moderation_queue (id, activity_id, trip_id, slot_id, reported_by, note, status, review_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ActivityID, item.TripID, nullableString(item.SlotID),
		item.ReportedBy, nullableString(item.Note),
		item.Status, item.ReviewStatus, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert moderation item: %w", err)
	}

	return nil
}

// ListModerationQueue retrieves a trip's pending moderation items, oldest
// first so reviewers work in arrival order.
func (s *SQLiteStore) ListModerationQueue(ctx context.Context, tripID string) ([]models.ModerationItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, activity_id, trip_id, slot_id, reported_by, note, status, review_status, created_at
		 FROM moderation_queue WHERE trip_id = ? AND review_status = ?
		 ORDER BY created_at, id`,
		tripID, models.ReviewPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation queue: %w", err)
	}
	defer rows.Close()

	var items []models.ModerationItem
	for rows.Next() {
		var (
			item   models.ModerationItem
			slotID sql.NullString
			note   sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.ActivityID, &item.TripID, &slotID,
			&item.ReportedBy, &note, &item.Status, &item.ReviewStatus, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan moderation item: %w", err)
		}
		item.SlotID = slotID.String
		item.Note = note.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate moderation queue: %w", err)
	}

	return items, nil
}
