// Package ledger persists per-project credit scores.
package ledger

import (
	"context"
	"sync"

	"github.com/alienxp03/gempt/internal/core"
)

// Ledger maps a project ID to the cumulative scores of both participants.
//
// Load never fails: a missing, unreadable or corrupt record yields the zero
// scores. Save replaces one project's entry and leaves every other project
// untouched; its errors must be reported.
type Ledger interface {
	Load(ctx context.Context, projectID string) core.Scores
	Save(ctx context.Context, projectID string, scores core.Scores) error
}

// Memory is an in-process ledger.
type Memory struct {
	mu     sync.RWMutex
	scores map[string]core.Scores

	// SaveErr, when set, is returned by every Save.
	SaveErr error
	saves   int
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{scores: make(map[string]core.Scores)}
}

// Load returns the stored scores or the zero default.
func (m *Memory) Load(ctx context.Context, projectID string) core.Scores {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scores[projectID]
}

// Save stores the scores for projectID.
func (m *Memory) Save(ctx context.Context, projectID string, scores core.Scores) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.scores[projectID] = scores
	m.saves++
	return nil
}

// Saves returns the number of successful saves.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
