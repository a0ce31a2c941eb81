package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/internal/storage"
)

// CreateBallot inserts a newly opened ballot.
func (s *SQLiteStore) CreateBallot(ctx context.Context, ballot *models.Ballot) error {
	if ballot.CreatedAt == 0 {
		ballot.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ballots (trip_id, slot_id, threshold, resolved, outcome, created_at, resolved_at)
		 VALUES (?, ?, ?, 0, NULL, ?, NULL)`,
		ballot.TripID, ballot.SlotID, ballot.Threshold, ballot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ballot: %w", err)
	}

	return nil
}

// GetBallot retrieves a ballot with its current votes.
func (s *SQLiteStore) GetBallot(ctx context.Context, tripID, slotID string) (*models.Ballot, error) {
	ballot := &models.Ballot{}
	var (
		resolved   int
		outcome    sql.NullString
		resolvedAt sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT trip_id, slot_id, threshold, resolved, outcome, created_at, resolved_at
		 FROM ballots WHERE trip_id = ? AND slot_id = ?`,
		tripID, slotID,
	).Scan(&ballot.TripID, &ballot.SlotID, &ballot.Threshold,
		&resolved, &outcome, &ballot.CreatedAt, &resolvedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ballot for slot %s: %w", slotID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ballot: %w", err)
	}

	ballot.Resolved = resolved != 0
	ballot.Outcome = models.BallotOutcome(outcome.String)
	ballot.ResolvedAt = resolvedAt.Int64

	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id, choice FROM ballot_votes WHERE trip_id = ? AND slot_id = ?",
		tripID, slotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get ballot votes: %w", err)
	}
	defer rows.Close()

	ballot.Votes = make(map[string]models.VoteChoice)
	for rows.Next() {
		var memberID, choice string
		if err := rows.Scan(&memberID, &choice); err != nil {
			return nil, fmt.Errorf("failed to scan ballot vote: %w", err)
		}
		ballot.Votes[memberID] = models.VoteChoice(choice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ballot votes: %w", err)
	}

	return ballot, nil
}

// SaveVote upserts one member's current choice on an open ballot.
// Votes on resolved ballots are refused.
func (s *SQLiteStore) SaveVote(ctx context.Context, tripID, slotID, memberID string, choice models.VoteChoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var resolved int
	err = tx.QueryRowContext(ctx,
		"SELECT resolved FROM ballots WHERE trip_id = ? AND slot_id = ?",
		tripID, slotID,
	).Scan(&resolved)
	if err == sql.ErrNoRows {
		return fmt.Errorf("ballot for slot %s: %w", slotID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check ballot state: %w", err)
	}
	if resolved != 0 {
		return fmt.Errorf("ballot already resolved for slot: %s", slotID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ballot_votes (trip_id, slot_id, member_id, choice)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(trip_id, slot_id, member_id) DO UPDATE SET choice = excluded.choice`,
		tripID, slotID, memberID, string(choice),
	)
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ApplyResolution marks the ballot resolved and upserts the given debt rows
// in the same transaction. Debts may be empty for contested outcomes.
func (s *SQLiteStore) ApplyResolution(ctx context.Context, ballot *models.Ballot, debts []models.Debt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE ballots SET resolved = 1, outcome = ?, resolved_at = ?
		 WHERE trip_id = ? AND slot_id = ? AND resolved = 0`,
		string(ballot.Outcome), ballot.ResolvedAt,
		ballot.TripID, ballot.SlotID,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve ballot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check ballot resolution: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("ballot missing or already resolved for slot: %s", ballot.SlotID)
	}

	for _, debt := range debts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO debts (trip_id, member_id, balance, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(trip_id, member_id) DO UPDATE
			 SET balance = excluded.balance, updated_at = excluded.updated_at`,
			debt.TripID, debt.MemberID, debt.Balance, debt.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert debt row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetDebts returns a trip's ledger rows ordered by member id.
func (s *SQLiteStore) GetDebts(ctx context.Context, tripID string) ([]models.Debt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trip_id, member_id, balance, updated_at
		 FROM debts WHERE trip_id = ? ORDER BY member_id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get debts: %w", err)
	}
	defer rows.Close()

	var debts []models.Debt
	for rows.Next() {
		var debt models.Debt
		if err := rows.Scan(&debt.TripID, &debt.MemberID, &debt.Balance, &debt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan debt row: %w", err)
		}
		debts = append(debts, debt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate debts: %w", err)
	}

	return debts, nil
}
