package plugins

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps namespaces to their registered entry points, preserving
// registration order within each namespace. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]EntryPoint
	logger  *zap.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string][]EntryPoint),
		logger:  logger.With(zap.String("component", "plugins")),
	}
}

// defaultRegistry is the process-wide registry init()-time registrations
// target.
var defaultRegistry = NewRegistry(nil)

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Register adds ep to the default registry's namespace.
func Register(namespace string, ep EntryPoint) error {
	return defaultRegistry.Register(namespace, ep)
}

// MustRegister adds ep to the default registry, panicking on error.
func MustRegister(namespace string, ep EntryPoint) {
	defaultRegistry.MustRegister(namespace, ep)
}

// SetLogger attaches the host's logger; registries start with a noop one
// because init()-time registration runs before logging is configured.
func (r *Registry) SetLogger(logger *zap.Logger) {
	if logger == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger.With(zap.String("component", "plugins"))
}

// Register adds ep under namespace. Entry point names are unique within a
// namespace.
func (r *Registry) Register(namespace string, ep EntryPoint) error {
	if ep.Name == "" {
		return ErrEmptyEntryPointName
	}
	if ep.Loader == nil {
		return fmt.Errorf("%w: %q", ErrNilFactoryLoader, ep.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries[namespace] {
		if existing.Name == ep.Name {
			return fmt.Errorf("%w: %q in namespace %q", ErrDuplicateEntryPoint, ep.Name, namespace)
		}
	}
	r.entries[namespace] = append(r.entries[namespace], ep)
	return nil
}

// MustRegister is Register panicking on error, for init()-time use.
func (r *Registry) MustRegister(namespace string, ep EntryPoint) {
	if err := r.Register(namespace, ep); err != nil {
		panic(err)
	}
}

// HasNamespace reports whether any entry point is registered under
// namespace.
func (r *Registry) HasNamespace(namespace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[namespace]) > 0
}

// EntryPoints returns the namespace's entry points in registration order.
func (r *Registry) EntryPoints(namespace string) []EntryPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EntryPoint(nil), r.entries[namespace]...)
}

// Namespaces returns every namespace with at least one entry point, sorted.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for namespace, eps := range r.entries {
		if len(eps) > 0 {
			names = append(names, namespace)
		}
	}
	sort.Strings(names)
	return names
}
