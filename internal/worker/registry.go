// Package worker models the routing table of worker kinds. Routing is
// a dispatch through this registry rather than ad hoc string
// comparison: built-in kinds are seeded at startup, synthesized kinds
// register into the same table at runtime, and once registered the two
// are indistinguishable to the router.
package worker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"concierge/internal/logging"
	"concierge/internal/prompt"
)

// Unknown is the sentinel classification outcome meaning no existing
// worker kind matches. It is never a routable kind.
const Unknown = "unknown"

// ErrTemplateMissing is returned when a worker kind resolves to no
// stored template. This indicates a synthesis or bookkeeping bug; the
// affected Action is skipped, not retried.
var ErrTemplateMissing = errors.New("worker: no template for worker type")

// ErrUnknownKind is returned when routing is attempted for a kind that
// never registered.
var ErrUnknownKind = errors.New("worker: unregistered worker type")

// Origin records how a kind entered the table.
type Origin string

const (
	OriginBuiltin     Origin = "builtin"
	OriginSynthesized Origin = "synthesized"
)

// Kind is one entry in the routing table.
type Kind struct {
	Name         string
	Origin       Origin
	Description  string
	RegisteredAt time.Time
}

// Registry is the dispatch table. Template text is read through the
// prompt store at resolve time, so a template written after
// registration is picked up without re-registration.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
	store prompt.Store
}

// NewRegistry creates an empty registry over the given template store.
func NewRegistry(store prompt.Store) *Registry {
	return &Registry{
		kinds: make(map[string]Kind),
		store: store,
	}
}

// SeedBuiltins registers one builtin kind per capability registry
// entry, plus any worker type that already has a stored template from a
// previous run (synthesized then, builtin now as far as routing cares).
func (r *Registry) SeedBuiltins(capabilities map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, desc := range capabilities {
		if name == Unknown {
			continue
		}
		r.kinds[name] = Kind{
			Name:         name,
			Origin:       OriginBuiltin,
			Description:  desc,
			RegisteredAt: time.Now(),
		}
	}

	stored, err := r.store.WorkerTypes()
	if err != nil {
		return fmt.Errorf("failed to list stored worker templates: %w", err)
	}
	for _, name := range stored {
		if _, ok := r.kinds[name]; ok {
			continue
		}
		r.kinds[name] = Kind{
			Name:         name,
			Origin:       OriginBuiltin,
			RegisteredAt: time.Now(),
		}
	}

	logging.Get(logging.CategoryStore).Info("seeded worker registry with %d kinds", len(r.kinds))
	return nil
}

// Register adds a synthesized kind to the table. Registering an
// existing name overwrites it (last write wins, matching template
// persistence).
func (r *Registry) Register(name, description string) (Kind, error) {
	if name == "" || name == Unknown {
		return Kind{}, fmt.Errorf("worker: invalid kind name %q", name)
	}
	kind := Kind{
		Name:         name,
		Origin:       OriginSynthesized,
		Description:  description,
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	r.kinds[name] = kind
	r.mu.Unlock()

	logging.Routing("registered synthesized worker kind %s", name)
	return kind, nil
}

// IsKnown reports whether a kind is in the table.
func (r *Registry) IsKnown(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[name]
	return ok
}

// Resolve returns the kind and its template text. A kind without a
// stored template yields ErrTemplateMissing.
func (r *Registry) Resolve(name string) (Kind, string, error) {
	if name == "" || name == Unknown {
		return Kind{}, "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}

	r.mu.RLock()
	kind, ok := r.kinds[name]
	r.mu.RUnlock()
	if !ok {
		return Kind{}, "", fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}

	tmpl, err := r.store.LookupWorker(name)
	if err != nil {
		if errors.Is(err, prompt.ErrNotFound) {
			return kind, "", fmt.Errorf("%w: %s", ErrTemplateMissing, name)
		}
		return kind, "", err
	}
	return kind, tmpl, nil
}

// Kinds returns all registered kinds sorted by name.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Name < kinds[j].Name })
	return kinds
}
