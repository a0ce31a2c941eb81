// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTrip persists a new trip, its roster, and a zeroed debt row per
// member in one transaction.
func (s *SQLiteStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	// Generate IDs if not set
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.CreatedAt == 0 {
		trip.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Insert trip
	_, err = tx.ExecContext(ctx,
		"INSERT INTO trips (id, name, created_at) VALUES (?, ?, ?)",
		trip.ID, trip.Name, trip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}

	// Insert roster members with zeroed ledger rows
	for _, memberID := range trip.Members {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO trip_members (trip_id, member_id) VALUES (?, ?)",
			trip.ID, memberID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trip member: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO debts (trip_id, member_id, balance, updated_at) VALUES (?, ?, 0, ?)",
			trip.ID, memberID, trip.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert debt row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTrip retrieves a trip by ID, including its full roster.
func (s *SQLiteStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip := &models.Trip{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM trips WHERE id = ?",
		tripID,
	).Scan(&trip.ID, &trip.Name, &trip.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id FROM trip_members WHERE trip_id = ? ORDER BY member_id",
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("failed to scan trip member: %w", err)
		}
		trip.Members = append(trip.Members, memberID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trip members: %w", err)
	}

	return trip, nil
}

// UpsertSlot creates or replaces the engine's read model of a slot.
// Engine-owned fields (pivot depth, swap links) survive product re-syncs.
func (s *SQLiteStore) UpsertSlot(ctx context.Context, slot *models.Slot) error {
	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		depth     int
		swapped   int
		replID    sql.NullString
		pivotID   sql.NullString
		createdAt int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT pivot_depth, was_swapped, replacement_activity_id, pivot_event_id, created_at
		 FROM slots WHERE trip_id = ? AND id = ?`,
		slot.TripID, slot.ID,
	).Scan(&depth, &swapped, &replID, &pivotID, &createdAt)

	switch {
	case err == sql.ErrNoRows:
		if slot.CreatedAt == 0 {
			slot.CreatedAt = now
		}
		slot.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO slots (id, trip_id, title, activity_id, category, day_number, sort_order,
			                    pivot_depth, was_swapped, replacement_activity_id, pivot_event_id,
			                    created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			slot.ID, slot.TripID, slot.Title, slot.ActivityID, slot.Category,
			slot.DayNumber, slot.SortOrder,
			slot.PivotDepth, boolToInt(slot.WasSwapped),
			nullableString(slot.ReplacementActivityID), nullableString(slot.PivotEventID),
			slot.CreatedAt, slot.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert slot: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to check slot existence: %w", err)
	default:
		// Keep the engine-owned fields; only product metadata changes.
		slot.PivotDepth = depth
		slot.WasSwapped = swapped != 0
		slot.ReplacementActivityID = replID.String
		slot.PivotEventID = pivotID.String
		slot.CreatedAt = createdAt
		slot.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE slots SET title = ?, activity_id = ?, category = ?, day_number = ?,
			                  sort_order = ?, updated_at = ?
			 WHERE trip_id = ? AND id = ?`,
			slot.Title, slot.ActivityID, slot.Category, slot.DayNumber,
			slot.SortOrder, slot.UpdatedAt,
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

// GetSlot retrieves a slot scoped to its trip.
func (s *SQLiteStore) GetSlot(ctx context.Context, tripID, slotID string) (*models.Slot, error) {
	slot, err := scanSlot(s.db.QueryRowContext(ctx,
		`SELECT id, trip_id, title, activity_id, category, day_number, sort_order,
		        pivot_depth, was_swapped, replacement_activity_id, pivot_event_id,
		        created_at, updated_at
		 FROM slots WHERE trip_id = ? AND id = ?`,
		tripID, slotID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("slot %s: %w", slotID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// ListSlotsByDay returns a trip's slots for one day ordered by sort order.
func (s *SQLiteStore) ListSlotsByDay(ctx context.Context, tripID string, dayNumber int) ([]models.Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, title, activity_id, category, day_number, sort_order,
		        pivot_depth, was_swapped, replacement_activity_id, pivot_event_id,
		        created_at, updated_at
		 FROM slots WHERE trip_id = ? AND day_number = ? ORDER BY sort_order`,
		tripID, dayNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}

	return slots, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*models.Slot, error) {
	slot := &models.Slot{}
	var (
		swapped int
		replID  sql.NullString
		pivotID sql.NullString
	)
	err := row.Scan(
		&slot.ID, &slot.TripID, &slot.Title, &slot.ActivityID, &slot.Category,
		&slot.DayNumber, &slot.SortOrder,
		&slot.PivotDepth, &swapped, &replID, &pivotID,
		&slot.CreatedAt, &slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	slot.WasSwapped = swapped != 0
	slot.ReplacementActivityID = replID.String
	slot.PivotEventID = pivotID.String
	return slot, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableString maps the empty string to NULL so optional links stay
// absent instead of empty.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
