// Package prompt stores and renders prompt templates. Built-in
// templates and dynamically synthesized worker templates share one
// store; worker templates live in their own namespace so a synthesized
// worker is indistinguishable from a built-in one at lookup time.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"concierge/internal/logging"
)

// ErrNotFound is returned when no template exists under a name.
var ErrNotFound = errors.New("prompt: template not found")

// Store is the template repository. Implementations are injected into
// components at construction so tests can use fixtures without
// filesystem side effects.
type Store interface {
	// Lookup returns a built-in template by name.
	Lookup(name string) (string, error)

	// LookupWorker returns the template bound to a worker type.
	LookupWorker(workerType string) (string, error)

	// SaveWorker persists a worker template. Last write wins.
	SaveWorker(workerType, text string) error

	// WorkerTypes lists all worker types with a stored template.
	WorkerTypes() ([]string, error)
}

// DirStore is the file-backed store: one <name>.txt per template under
// the template directory, worker templates under a "workers"
// subdirectory. Templates are read at lookup time, so a template
// written mid-run is visible to subsequent lookups.
type DirStore struct {
	dir string
}

const workerSubdir = "workers"

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Lookup reads a built-in template.
func (s *DirStore) Lookup(name string) (string, error) {
	return s.read(filepath.Join(s.dir, name+".txt"), name)
}

// LookupWorker reads a worker template by type.
func (s *DirStore) LookupWorker(workerType string) (string, error) {
	return s.read(filepath.Join(s.dir, workerSubdir, workerType+".txt"), workerType)
}

func (s *DirStore) read(path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveWorker writes a worker template, creating the namespace directory
// on first use.
func (s *DirStore) SaveWorker(workerType, text string) error {
	dir := filepath.Join(s.dir, workerSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create worker template directory: %w", err)
	}
	path := filepath.Join(dir, workerType+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write worker template %s: %w", workerType, err)
	}
	logging.Get(logging.CategoryStore).Info("saved worker template %s (%d bytes)", workerType, len(text))
	return nil
}

// WorkerTypes lists stored worker types in sorted order.
func (s *DirStore) WorkerTypes() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, workerSubdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list worker templates: %w", err)
	}
	var types []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		types = append(types, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(types)
	return types, nil
}

// MemStore is an in-memory Store for tests and fixtures.
type MemStore struct {
	mu       sync.RWMutex
	builtins map[string]string
	workers  map[string]string
}

// NewMemStore creates a MemStore preloaded with built-in templates.
func NewMemStore(builtins map[string]string) *MemStore {
	b := make(map[string]string, len(builtins))
	for k, v := range builtins {
		b[k] = v
	}
	return &MemStore{
		builtins: b,
		workers:  make(map[string]string),
	}
}

func (s *MemStore) Lookup(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.builtins[name]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (s *MemStore) LookupWorker(workerType string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.workers[workerType]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, workerType)
}

func (s *MemStore) SaveWorker(workerType, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[workerType] = text
	return nil
}

func (s *MemStore) WorkerTypes() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.workers))
	for t := range s.workers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}
