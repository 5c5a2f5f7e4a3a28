package sources

import (
	"fmt"

	"github.com/stocknews/newsbot/internal/models"
)

// Registry is the fixed set of adapters assembled at startup
type Registry struct {
	sources    []Source
	byProvider map[models.Provider]Source
}

// NewRegistry keeps the given order and rejects two adapters for the same provider
func NewRegistry(srcs ...Source) (*Registry, error) {
	r := &Registry{
		sources:    make([]Source, 0, len(srcs)),
		byProvider: make(map[models.Provider]Source, len(srcs)),
	}
	for _, src := range srcs {
		if src == nil {
			continue
		}
		provider := src.Supports()
		if _, exists := r.byProvider[provider]; exists {
			return nil, fmt.Errorf("duplicate adapter for provider %s", provider)
		}
		r.byProvider[provider] = src
		r.sources = append(r.sources, src)
	}
	return r, nil
}

// All returns every registered adapter in registration order
func (r *Registry) All() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Enabled returns the adapters that have their credentials configured
func (r *Registry) Enabled() []Source {
	var out []Source
	for _, src := range r.sources {
		if src.IsEnabled() {
			out = append(out, src)
		}
	}
	return out
}

func (r *Registry) Get(provider models.Provider) (Source, bool) {
	src, ok := r.byProvider[provider]
	return src, ok
}

func (r *Registry) Len() int {
	return len(r.sources)
}
