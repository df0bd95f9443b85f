package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tsuzi/internal/logging"
)

// LifecycleState tracks a managed capability through its lifetime.
type LifecycleState int

const (
	// StateUnloaded means the manager has not been constructed yet.
	StateUnloaded LifecycleState = iota
	// StateReady means the manager initialized successfully.
	StateReady
	// StateFailed means initialization failed; the error is cached and the
	// constructor is not retried until an explicit Reload.
	StateFailed
)

// String returns the state name.
func (s LifecycleState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Constructor builds a manager instance. It is invoked at most once per
// handle lifetime, on first access.
type Constructor func() (Manager, error)

// Handle describes a manager's lifecycle as seen by callers.
type Handle struct {
	ID    string
	State LifecycleState
	Err   error
}

// managerHandle guards a single manager's lazy construction. The per-handle
// mutex is the registry's only init-time critical section.
type managerHandle struct {
	mu      sync.Mutex
	state   LifecycleState
	err     error
	manager Manager
}

// Registry lazily constructs and health-tracks manager instances. A failed
// manager never blocks another: each handle initializes independently and
// failures are cached rather than propagated.
type Registry struct {
	log zerolog.Logger

	mu           sync.RWMutex
	constructors map[string]Constructor
	handles      map[string]*managerHandle
	order        []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		log:          logging.Component("registry"),
		constructors: make(map[string]Constructor),
		handles:      make(map[string]*managerHandle),
	}
}

// Register adds a manager constructor under the given identifier.
// Registration order determines aggregate query order.
func (r *Registry) Register(id string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[id]; exists {
		return
	}
	r.constructors[id] = ctor
	r.handles[id] = &managerHandle{}
	r.order = append(r.order, id)
}

// IDs returns the registered manager identifiers in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Get returns the manager for id, constructing it on first access. A cached
// init failure is returned immediately without re-running the constructor.
func (r *Registry) Get(id string) (Manager, error) {
	r.mu.RLock()
	h, ok := r.handles[id]
	ctor := r.constructors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("manager %q not registered", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateReady:
		return h.manager, nil
	case StateFailed:
		return nil, h.err
	}

	start := time.Now()
	mgr, err := ctor()
	if err != nil {
		h.state = StateFailed
		h.err = fmt.Errorf("init manager %q: %w", id, err)
		r.log.Error().Err(err).Str("manager", id).Msg("manager init failed")
		return nil, h.err
	}

	h.state = StateReady
	h.manager = mgr
	r.log.Debug().
		Str("manager", id).
		Dur("took", time.Since(start)).
		Msg("manager initialized")
	return mgr, nil
}

// Handle reports the lifecycle state for id without triggering construction.
func (r *Registry) Handle(id string) Handle {
	r.mu.RLock()
	h, ok := r.handles[id]
	r.mu.RUnlock()
	if !ok {
		return Handle{ID: id, State: StateUnloaded, Err: fmt.Errorf("manager %q not registered", id)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return Handle{ID: id, State: h.state, Err: h.err}
}

// Reload clears a FAILED handle so the next Get retries construction. It is
// the only path out of the failed state.
func (r *Registry) Reload(id string) error {
	r.mu.RLock()
	h, ok := r.handles[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("manager %q not registered", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateReady {
		return nil
	}
	h.state = StateUnloaded
	h.err = nil
	h.manager = nil
	return nil
}

// SnapshotEntry is one manager's contribution to an aggregate system query.
type SnapshotEntry struct {
	Manager   string
	Available bool
	Lines     []string
	Err       string
}

// SnapshotAll collects status from every registered manager. A failed or
// erroring manager contributes an unavailable entry; it never suppresses the
// others.
func (r *Registry) SnapshotAll(ctx context.Context) []SnapshotEntry {
	entries := make([]SnapshotEntry, 0, len(r.order))
	for _, id := range r.IDs() {
		mgr, err := r.Get(id)
		if err != nil {
			entries = append(entries, SnapshotEntry{Manager: id, Available: false, Err: err.Error()})
			continue
		}
		lines, err := mgr.Status(ctx)
		if err != nil {
			entries = append(entries, SnapshotEntry{Manager: id, Available: false, Err: err.Error()})
			continue
		}
		entries = append(entries, SnapshotEntry{Manager: id, Available: true, Lines: lines})
	}
	return entries
}

// Close shuts down every constructed manager.
func (r *Registry) Close() error {
	var firstErr error
	for _, id := range r.IDs() {
		r.mu.RLock()
		h := r.handles[id]
		r.mu.RUnlock()

		h.mu.Lock()
		if h.state == StateReady && h.manager != nil {
			if err := h.manager.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		h.mu.Unlock()
	}
	return firstErr
}
