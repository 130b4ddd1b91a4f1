package event

import "fmt"

// InputModality enumerates what a model can accept as input.
type InputModality string

const (
	InputText  InputModality = "text"
	InputImage InputModality = "image"
)

// ModelCost is per-million-token pricing for a model.
type ModelCost struct {
	Input      float64
	Output     float64
	CacheRead  float64
	CacheWrite float64
}

// Model describes a callable model and how to price and size calls to it.
type Model struct {
	ID             string
	Name           string
	API            string // wire protocol identifier, e.g. "anthropic-messages"
	Provider       string
	BaseURL        string
	Reasoning      bool
	Input          []InputModality
	Cost           ModelCost
	ContextWindow  int
	MaxTokens      int
	Headers        map[string]string
	Compat         map[string]any
}

// Key returns the registry key "{provider}/{id}" used to look up a model or
// its adapter.
func (m Model) Key() string { return ModelKey(m.Provider, m.ID) }

// ModelKey formats the canonical provider/id registry key.
func ModelKey(provider, id string) string {
	return fmt.Sprintf("%s/%s", provider, id)
}

// Registry maps a model key to its descriptor.
type Registry struct {
	models map[string]Model
}

// NewRegistry builds a Registry from a list of model descriptors.
func NewRegistry(models []Model) *Registry {
	r := &Registry{models: make(map[string]Model, len(models))}
	for _, m := range models {
		r.models[m.Key()] = m
	}
	return r
}

// Lookup resolves a model by provider/id key.
func (r *Registry) Lookup(key string) (Model, bool) {
	if r == nil {
		return Model{}, false
	}
	m, ok := r.models[key]
	return m, ok
}

// All returns every registered model.
func (r *Registry) All() []Model {
	if r == nil {
		return nil
	}
	out := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	return out
}
