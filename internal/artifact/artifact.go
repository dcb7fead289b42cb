// Package artifact persists per-run pipeline artifacts for audit. The
// supervisor dumps each stage's input or output as its own document
// under <root>/<run_id>/; nothing is ever rewritten after a run.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"concierge/internal/logging"
)

// Store writes artifacts for one pipeline run.
type Store struct {
	dir string
}

// NewStore creates the run directory under root.
func NewStore(root, runID string) (*Store, error) {
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the run directory path.
func (s *Store) Dir() string {
	return s.dir
}

// SaveJSON dumps v as an indented JSON document named <name>.json.
func (s *Store) SaveJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	logging.Get(logging.CategorySupervisor).Debug("artifact %s written (%d bytes)", name, len(data))
	return nil
}

// SaveText dumps raw text as <name>.txt. Used for the operator's typed
// input before any processing touches it.
func (s *Store) SaveText(name, text string) error {
	path := filepath.Join(s.dir, name+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return nil
}
