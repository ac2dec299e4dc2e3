package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler executes one job attempt. It receives only the payload, never the
// claim, so handlers cannot observe or mutate queue columns. The returned
// value is JSON-serialized into the run's result summary.
//
// Handlers must be idempotent: a lease expiry can let another worker execute
// the same job concurrently with the original.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Registry maps job type identifiers to handlers. Registration is
// process-lifetime; only the dispatch loop consults it.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a job type. Registering an empty type or the
// same type twice is a programming error.
func (r *Registry) Register(jobType string, h Handler) error {
	if jobType == "" {
		return fmt.Errorf("job type is required")
	}
	if h == nil {
		return fmt.Errorf("handler for %q is nil", jobType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("handler for %q already registered", jobType)
	}
	r.handlers[jobType] = h
	return nil
}

// Resolve returns the handler for a job type, if any.
func (r *Registry) Resolve(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types returns the registered job types, for startup logging.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
