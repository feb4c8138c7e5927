// Package storage provides persistence for debate sessions.
package storage

import (
	"database/sql"
	"errors"

	"github.com/alienxp03/gempt/internal/core"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Storage defines the interface for session persistence.
type Storage interface {
	// Initialize sets up the storage (creates tables, etc.)
	Initialize() error

	// Close closes the storage connection.
	Close() error

	// DB exposes the underlying handle so the SQL ledger can share it.
	DB() *sql.DB

	// Session operations
	CreateSession(session *core.Session) error
	GetSession(id string) (*core.Session, error)
	UpdateSession(session *core.Session) error
	DeleteSession(id string) error
	ListSessions(limit, offset int, projectID string) ([]*core.SessionSummary, error)
}
