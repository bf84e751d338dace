// Package privileges defines the static privilege catalog: named
// capabilities with display metadata, declared once at startup and injected
// wherever privilege names are rendered or validated. Enforcement itself
// only ever compares name strings; the catalog is not consulted for
// authorization decisions.
package privileges

import (
	"fmt"
	"sort"
)

// Definition describes a single named privilege. Name is the key compared
// during enforcement; VerboseName and Description are display-only.
type Definition struct {
	Name        string
	VerboseName string
	Description string
}

// Registry is an immutable catalog of privilege definitions.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry builds a Registry from the given definitions. Declaring the
// same name twice is an error: a silent last-write-wins would hide typoed
// duplicate declarations.
func NewRegistry(defs ...Definition) (*Registry, error) {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("privilege with empty name")
		}
		if _, ok := m[d.Name]; ok {
			return nil, fmt.Errorf("duplicate privilege %q", d.Name)
		}
		m[d.Name] = d
	}
	return &Registry{defs: m}, nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// All returns every definition sorted by name.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
