package provider

import (
	"go.uber.org/zap"
)

// Registry dispatches model identifiers to the adapter that serves them.
//
// Exactly-claimed models are resolved through an index built at
// registration time. Models nothing claims exactly fall back to a linear
// scan over CanHandle in registration order, which covers adapters with
// pattern-based claims.
type Registry struct {
	adapters []Adapter
	exact    map[string]Adapter
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		exact:  make(map[string]Adapter),
		logger: logger,
	}
}

// Register adds an adapter. Overlapping exact claims keep the first
// registration and are logged; they indicate a configuration mistake.
func (r *Registry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
	for _, model := range a.Models() {
		if prev, ok := r.exact[model]; ok {
			r.logger.Warn("model claimed by multiple providers, keeping first",
				zap.String("model", model),
				zap.String("kept", prev.Name()),
				zap.String("ignored", a.Name()))
			continue
		}
		r.exact[model] = a
	}
}

// Resolve returns the adapter serving model, or ErrNoProvider.
func (r *Registry) Resolve(model string) (Adapter, error) {
	if a, ok := r.exact[model]; ok {
		return a, nil
	}
	for _, a := range r.adapters {
		if a.CanHandle(model) {
			return a, nil
		}
	}
	return nil, ErrNoProvider
}

// Models returns every exactly-claimed model identifier across all
// registered adapters.
func (r *Registry) Models() []string {
	var out []string
	for _, a := range r.adapters {
		out = append(out, a.Models()...)
	}
	return out
}
