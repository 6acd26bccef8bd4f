package tools

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Registry maps tool names to their descriptors. Lookup is the hot path:
// the orchestration loop resolves every model-proposed call through it.
//
// Thread safety: the registry is populated once at startup and read-only
// afterwards, so no locking is required.
type Registry struct {
	byName map[string]*Tool
	order  []string
}

// NewRegistry creates a registry from the given tools.
// Duplicate names are a programming error and are rejected.
func NewRegistry(list ...*Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Tool, len(list))}
	for _, t := range list {
		if t == nil {
			return nil, fmt.Errorf("registry: nil tool")
		}
		if _, dup := r.byName[t.Name()]; dup {
			return nil, fmt.Errorf("registry: duplicate tool %q", t.Name())
		}
		r.byName[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r, nil
}

// Lookup returns the tool registered under name, or false when the model
// proposed a name nothing answers to.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int { return len(r.order) }

// Define registers every tool with Genkit and returns the references to
// pass on generate calls so the model is prompted with the tool schemas.
func (r *Registry) Define(g *genkit.Genkit) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(r.order))
	for _, name := range r.order {
		refs = append(refs, r.byName[name].Define(g))
	}
	return refs
}
