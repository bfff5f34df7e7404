package connector

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/credential"
)

// Source describes one registered data source: how to build instances, which
// credentials it may use, and how much work one credential can absorb.
type Source struct {
	Name string
	New  Factory

	// Credentials may be nil for sources without authentication. A
	// registered source whose pool is empty while MaxPerCredential > 0 is
	// quota-gated but inert: the dispatcher assigns it zero partitions.
	Credentials *credential.Pool

	// MaxPerCredential caps the number of entities one credential-bound
	// instance is given, aligned with the credential's external quota.
	// Zero means unlimited.
	MaxPerCredential int

	// RateLimit is advisory metadata mirrored from the connector; kept here
	// so partitioning can reason about a source without instantiating it.
	RateLimit time.Duration
}

// Usable reports whether the dispatcher may assign entities to this source.
func (s Source) Usable() bool {
	if s.MaxPerCredential > 0 && (s.Credentials == nil || s.Credentials.Size() == 0) {
		return false
	}
	return s.New != nil
}

// Registry maps source names to their descriptors, preserving registration
// order so partitioning is reproducible across runs.
type Registry struct {
	sources map[string]Source
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) {
	if _, exists := r.sources[s.Name]; !exists {
		r.order = append(r.order, s.Name)
	}
	r.sources[s.Name] = s
}

// Get returns a source by name.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return Source{}, eris.Errorf("connector: unknown source %q", name)
	}
	return s, nil
}

// Usable returns all sources eligible for dispatch, in registration order.
func (r *Registry) Usable() []Source {
	var result []Source
	for _, name := range r.order {
		if s := r.sources[name]; s.Usable() {
			result = append(result, s)
		}
	}
	return result
}

// All returns all sources in registration order.
func (r *Registry) All() []Source {
	result := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.sources[name])
	}
	return result
}

// Names returns all registered source names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
