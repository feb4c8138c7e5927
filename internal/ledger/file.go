package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/alienxp03/gempt/internal/core"
)

// DefaultFileName is the ledger file name used when no path is configured.
const DefaultFileName = "project_db.json"

var errCorrupt = errors.New("corrupt ledger")

// FileLedger stores all projects in one JSON document:
//
//	{"<project_id>": {"Solver": n, "Verifier": n}, ...}
//
// Writes go to a temp file in the same directory that is then renamed over
// the ledger, so a crash leaves either the old or the new document.
type FileLedger struct {
	mu       sync.Mutex
	filePath string
}

// NewFileLedger creates a ledger backed by the JSON file at path.
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{filePath: path}
}

// DefaultFilePath returns ~/.gempt/project_db.json.
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(home, ".gempt", DefaultFileName)
}

// Path returns the ledger file location.
func (l *FileLedger) Path() string {
	return l.filePath
}

// Load returns the scores of projectID.
func (l *FileLedger) Load(ctx context.Context, projectID string) core.Scores {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.read()
	if err != nil {
		slog.Warn("Ledger unreadable, using default scores", "path", l.filePath, "project_id", projectID, "error", err)
		return core.Scores{}
	}
	return all[projectID]
}

// Save upserts the scores of projectID.
func (l *FileLedger) Save(ctx context.Context, projectID string, scores core.Scores) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.read()
	if err != nil {
		if !errors.Is(err, errCorrupt) {
			return fmt.Errorf("failed to read ledger: %w", err)
		}
		// Nothing else in a corrupt document can be recovered.
		slog.Warn("Replacing corrupt ledger", "path", l.filePath, "error", err)
		all = make(map[string]core.Scores)
	}
	all[projectID] = scores

	return l.write(all)
}

// All returns every stored project.
func (l *FileLedger) All() (map[string]core.Scores, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// read loads the document. A missing file is an empty ledger.
func (l *FileLedger) read() (map[string]core.Scores, error) {
	all := make(map[string]core.Scores)

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return all, nil
		}
		return all, err
	}
	if len(data) == 0 {
		return all, nil
	}

	if err := json.Unmarshal(data, &all); err != nil {
		return make(map[string]core.Scores), fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return all, nil
}

func (l *FileLedger) write(all map[string]core.Scores) error {
	dir := filepath.Dir(l.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set ledger permissions: %w", err)
	}

	if err := os.Rename(tmpName, l.filePath); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}
