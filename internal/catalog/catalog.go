// Package catalog holds the in-memory tool registry: descriptors, their
// executors, the active-context binding, and argument validation at the
// execution boundary.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"webpilot/internal/domain"
)

// ErrNotFound is returned by Execute for a name absent from the catalog.
// Callers decide how to surface it: the RPC server maps it to ToolNotFound,
// the in-process client returns it as-is.
var ErrNotFound = errors.New("tool not found")

// Registry implements domain.Catalog. Tools are registered during setup;
// once a registry is handed to a running server or orchestrator its tool set
// must not change. The context binding is the only mutable part.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	tools   map[string]domain.Tool
	binding domain.ContextRef
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

// Register adds a tool. Names must be unique within the registry.
func (r *Registry) Register(t domain.Tool) error {
	desc := t.Descriptor()
	if desc.Name == "" {
		return fmt.Errorf("tool has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("tool %q already registered", desc.Name)
	}
	r.tools[desc.Name] = t
	r.order = append(r.order, desc.Name)
	r.logger.Debug("registered tool", "name", desc.Name)
	return nil
}

// List returns descriptors in registration order.
func (r *Registry) List() []domain.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]domain.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.tools[name].Descriptor())
	}
	return descs
}

func (r *Registry) Get(name string) (domain.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return domain.ToolDescriptor{}, false
	}
	return t.Descriptor(), true
}

// Bind replaces the active-context binding for subsequent executions.
func (r *Registry) Bind(ref domain.ContextRef) {
	r.mu.Lock()
	r.binding = ref
	r.mu.Unlock()
}

func (r *Registry) Binding() domain.ContextRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.binding
}

// Execute validates args against the tool's parameter specs and runs the
// executor. A nil ref uses the current binding. A panicking tool is
// converted to a failed ToolResult rather than unwinding the caller.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, ref domain.ContextRef) (result domain.ToolResult, err error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	if ref == nil {
		ref = r.binding
	}
	r.mu.RUnlock()

	if !ok {
		return domain.ToolResult{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if args == nil {
		args = make(map[string]any)
	}
	if verr := ValidateArgs(t.Descriptor(), args); verr != nil {
		return domain.ToolResult{}, verr
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", rec)
			result = domain.Failf("tool %s panicked: %v", name, rec)
			err = nil
		}
	}()

	return t.Execute(ctx, args, ref), nil
}
