package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alienxp03/gempt/internal/core"
)

// Schema creates the scores table.
const Schema = `
CREATE TABLE IF NOT EXISTS scores (
	project_id TEXT PRIMARY KEY,
	solver INTEGER NOT NULL DEFAULT 0,
	verifier INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLLedger stores scores in a SQL database, one row per project.
type SQLLedger struct {
	db *sql.DB
}

// NewSQLLedger creates a ledger on db and ensures its table exists.
func NewSQLLedger(db *sql.DB) (*SQLLedger, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to create scores table: %w", err)
	}
	return &SQLLedger{db: db}, nil
}

// Load returns the scores of projectID.
func (l *SQLLedger) Load(ctx context.Context, projectID string) core.Scores {
	var s core.Scores
	err := l.db.QueryRowContext(ctx,
		`SELECT solver, verifier FROM scores WHERE project_id = ?`, projectID,
	).Scan(&s.Solver, &s.Verifier)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Failed to load scores, using default", "project_id", projectID, "error", err)
		}
		return core.Scores{}
	}
	return s.NonNegative()
}

// Save upserts the scores of projectID in a single transaction.
func (l *SQLLedger) Save(ctx context.Context, projectID string, scores core.Scores) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scores (project_id, solver, verifier, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project_id) DO UPDATE SET
			solver = excluded.solver,
			verifier = excluded.verifier,
			updated_at = excluded.updated_at
	`, projectID, scores.Solver, scores.Verifier)
	if err != nil {
		return fmt.Errorf("failed to save scores: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scores: %w", err)
	}
	return nil
}
