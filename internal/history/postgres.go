package history

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRepository stores entries in the command_history table.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append implements Repository. A transaction-scoped advisory lock on the
// user id serialises concurrent writers for the same user.
func (r *PostgresRepository) Append(ctx context.Context, userID int64, command string, limit int) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		return false, fmt.Errorf("lock: %w", err)
	}
	var ids []int64
	if err := tx.SelectContext(ctx, &ids, `
		SELECT id FROM command_history
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`, userID); err != nil {
		return false, fmt.Errorf("select: %w", err)
	}

	evicted := false
	if limit > 0 && len(ids) >= limit {
		stale := ids[:len(ids)-limit+1]
		if _, err := tx.ExecContext(ctx, `DELETE FROM command_history WHERE id = ANY($1)`, pq.Array(stale)); err != nil {
			return false, fmt.Errorf("delete oldest: %w", err)
		}
		evicted = true
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO command_history (user_id, command) VALUES ($1, $2)`, userID, command); err != nil {
		return false, fmt.Errorf("insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return evicted, nil
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, userID int64) ([]Entry, error) {
	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, command, created_at FROM command_history
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
