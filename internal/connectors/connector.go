package connectors

import (
	"context"

	"trendscope/internal/models"
)

// Connector is the fixed capability surface every data source implements.
// Fetch returns the raw fetch outcome or an error; the gateway owns the
// policy that turns either into a resolved SourceResult.
type Connector interface {
	// Name returns the stable machine identifier ("twitter", "websearch").
	Name() string

	// DisplayName returns the human-readable source name used in messages.
	DisplayName() string

	// IsConfigured reports whether the connector has the credentials or
	// endpoints it needs. Unconfigured connectors are never fetched.
	IsConfigured() bool

	// Fetch collects up to limit items for the query. On success the
	// returned result has Status unset; the gateway assigns it.
	Fetch(ctx context.Context, query string, limit int) (models.SourceResult, error)

	// DegradedFallback returns clearly-labeled sample data for the query,
	// used when the live fetch fails. An empty result (ItemCount == 0)
	// means no fallback is available.
	DegradedFallback(query string) models.SourceResult
}

// Registry holds the configured connectors in a stable order.
// The set is fixed at startup; lookups never mutate it.
type Registry struct {
	ordered []Connector
	byName  map[string]Connector
}

// NewRegistry creates a registry over the given connectors, preserving order.
func NewRegistry(conns ...Connector) *Registry {
	r := &Registry{
		byName: make(map[string]Connector, len(conns)),
	}
	for _, c := range conns {
		if _, dup := r.byName[c.Name()]; dup {
			continue
		}
		r.ordered = append(r.ordered, c)
		r.byName[c.Name()] = c
	}
	return r
}

// All returns the connectors in registration order.
func (r *Registry) All() []Connector {
	out := make([]Connector, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Get returns the connector with the given name, or nil.
func (r *Registry) Get(name string) Connector {
	return r.byName[name]
}

// Len returns the number of registered connectors.
func (r *Registry) Len() int {
	return len(r.ordered)
}
