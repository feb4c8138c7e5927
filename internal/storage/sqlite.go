package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alienxp03/gempt/internal/core"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStorage{
		db:   db,
		path: dbPath,
	}, nil
}

// Initialize creates the database schema.
func (s *SQLiteStorage) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		question TEXT NOT NULL,
		dialect TEXT NOT NULL,
		media_name TEXT NOT NULL DEFAULT '',
		media_type TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		initial_solution TEXT NOT NULL DEFAULT '',
		initial_verification TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		winner TEXT NOT NULL DEFAULT '',
		rounds INTEGER NOT NULL DEFAULT 0,
		decision_json TEXT,
		process_json TEXT NOT NULL DEFAULT '[]',
		summary TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_project_id ON sessions(project_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// DB returns the database handle.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// sessionColumns holds the JSON-encoded and derived columns of a session.
type sessionColumns struct {
	decision *string
	process  string
	winner   string
	rounds   int
}

func encodeSession(session *core.Session) (sessionColumns, error) {
	var cols sessionColumns

	if session.Decision != nil {
		data, err := json.Marshal(session.Decision)
		if err != nil {
			return cols, fmt.Errorf("failed to marshal decision: %w", err)
		}
		str := string(data)
		cols.decision = &str
		cols.winner = string(session.Decision.Winner.Kind)
		cols.rounds = len(session.Decision.Transcript)
	}

	process := session.Process
	if process == nil {
		process = []core.Step{}
	}
	data, err := json.Marshal(process)
	if err != nil {
		return cols, fmt.Errorf("failed to marshal process: %w", err)
	}
	cols.process = string(data)

	return cols, nil
}

// CreateSession creates a new session.
func (s *SQLiteStorage) CreateSession(session *core.Session) error {
	cols, err := encodeSession(session)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO sessions (id, project_id, question, dialect, media_name, media_type, subject,
		initial_solution, initial_verification, status, winner, rounds, decision_json, process_json,
		summary, error, created_at, updated_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		session.ID,
		session.ProjectID,
		session.Question,
		session.Dialect,
		session.MediaName,
		session.MediaType,
		session.Subject,
		session.InitialSolution,
		session.InitialVerification,
		session.Status,
		cols.winner,
		cols.rounds,
		cols.decision,
		cols.process,
		session.Summary,
		session.Error,
		session.CreatedAt,
		session.UpdatedAt,
		session.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID. It returns nil, nil when absent.
func (s *SQLiteStorage) GetSession(id string) (*core.Session, error) {
	query := `
	SELECT id, project_id, question, dialect, media_name, media_type, subject,
		initial_solution, initial_verification, status, decision_json, process_json,
		summary, error, created_at, updated_at, completed_at
	FROM sessions
	WHERE id = ?
	`

	var session core.Session
	var decisionJSON sql.NullString
	var processJSON string
	var completedAt sql.NullTime

	err := s.db.QueryRow(query, id).Scan(
		&session.ID,
		&session.ProjectID,
		&session.Question,
		&session.Dialect,
		&session.MediaName,
		&session.MediaType,
		&session.Subject,
		&session.InitialSolution,
		&session.InitialVerification,
		&session.Status,
		&decisionJSON,
		&processJSON,
		&session.Summary,
		&session.Error,
		&session.CreatedAt,
		&session.UpdatedAt,
		&completedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if decisionJSON.Valid {
		var decision core.DecisionRecord
		if err := json.Unmarshal([]byte(decisionJSON.String), &decision); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
		}
		session.Decision = &decision
	}

	if err := json.Unmarshal([]byte(processJSON), &session.Process); err != nil {
		return nil, fmt.Errorf("failed to unmarshal process: %w", err)
	}

	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}

	return &session, nil
}

// UpdateSession updates an existing session.
func (s *SQLiteStorage) UpdateSession(session *core.Session) error {
	cols, err := encodeSession(session)
	if err != nil {
		return err
	}

	session.UpdatedAt = time.Now()

	query := `
	UPDATE sessions
	SET project_id = ?, question = ?, dialect = ?, media_name = ?, media_type = ?, subject = ?,
		initial_solution = ?, initial_verification = ?, status = ?, winner = ?, rounds = ?,
		decision_json = ?, process_json = ?, summary = ?, error = ?, updated_at = ?, completed_at = ?
	WHERE id = ?
	`

	res, err := s.db.Exec(query,
		session.ProjectID,
		session.Question,
		session.Dialect,
		session.MediaName,
		session.MediaType,
		session.Subject,
		session.InitialSolution,
		session.InitialVerification,
		session.Status,
		cols.winner,
		cols.rounds,
		cols.decision,
		cols.process,
		session.Summary,
		session.Error,
		session.UpdatedAt,
		session.CompletedAt,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update session %s: %w", session.ID, ErrNotFound)
	}

	return nil
}

// DeleteSession deletes a session.
func (s *SQLiteStorage) DeleteSession(id string) error {
	res, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns session summaries, newest first. An empty projectID
// lists every project.
func (s *SQLiteStorage) ListSessions(limit, offset int, projectID string) ([]*core.SessionSummary, error) {
	query := `
	SELECT id, project_id, question, status, winner, rounds, created_at
	FROM sessions
	WHERE (? = '' OR project_id = ?)
	ORDER BY created_at DESC
	LIMIT ? OFFSET ?
	`

	rows, err := s.db.Query(query, projectID, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []*core.SessionSummary
	for rows.Next() {
		var summary core.SessionSummary

		err := rows.Scan(
			&summary.ID,
			&summary.ProjectID,
			&summary.Question,
			&summary.Status,
			&summary.Winner,
			&summary.Rounds,
			&summary.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}

		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return summaries, nil
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gempt.db"
	}
	return filepath.Join(home, ".gempt", "gempt.db")
}
