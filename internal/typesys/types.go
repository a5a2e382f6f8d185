// Package typesys holds the node-type registry: type names, supertype
// chains, property protection flags and child orderability.
package typesys

import (
	"fmt"
	"slices"
	"sort"
)

// PropertyDef declares one property on a node type.
type PropertyDef struct {
	Name string `json:"name"`
	// Protected properties are maintained by the repository and never
	// written by clients.
	Protected bool `json:"protected"`
}

// NodeType describes a primary or mixin node type.
type NodeType struct {
	Name              string        `json:"name"`
	Supertypes        []string      `json:"supertypes,omitempty"`
	Mixin             bool          `json:"mixin,omitempty"`
	OrderableChildren bool          `json:"orderable,omitempty"`
	Properties        []PropertyDef `json:"properties,omitempty"`
}

// UnknownTypeError reports a type name the registry cannot resolve.
// Callers treat it as fatal; the referencing node is corrupt or the
// registry is incomplete.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown node type %q", e.Name)
}

// Registry resolves node types by name. It is immutable after Build and
// safe for concurrent use.
type Registry struct {
	types map[string]*NodeType
	// closure caches the transitive supertype set per type, self included.
	closure map[string]map[string]bool
}

// NewRegistry validates the definitions and precomputes supertype closures.
func NewRegistry(defs ...NodeType) (*Registry, error) {
	r := &Registry{
		types:   make(map[string]*NodeType, len(defs)),
		closure: make(map[string]map[string]bool, len(defs)),
	}
	for i := range defs {
		d := defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("node type %d: empty name", i)
		}
		if _, dup := r.types[d.Name]; dup {
			return nil, fmt.Errorf("node type %q defined twice", d.Name)
		}
		r.types[d.Name] = &d
	}
	for _, t := range r.types {
		for _, st := range t.Supertypes {
			if _, ok := r.types[st]; !ok {
				return nil, fmt.Errorf("node type %q: %w", t.Name, &UnknownTypeError{Name: st})
			}
		}
	}
	if cycle := findInheritanceCycle(r.types); cycle != nil {
		return nil, fmt.Errorf("inheritance cycle: %v", cycle)
	}
	for name := range r.types {
		r.closure[name] = r.computeClosure(name)
	}
	return r, nil
}

// Lookup returns the named type.
func (r *Registry) Lookup(name string) (*NodeType, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, &UnknownTypeError{Name: name}
	}
	return t, nil
}

// Names lists all registered type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supertypes returns the transitive supertypes of name, excluding name
// itself, sorted.
func (r *Registry) Supertypes(name string) ([]string, error) {
	c, ok := r.closure[name]
	if !ok {
		return nil, &UnknownTypeError{Name: name}
	}
	out := make([]string, 0, len(c))
	for st := range c {
		if st != name {
			out = append(out, st)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Subtypes returns every registered type that is name or inherits from
// it, sorted. A backend filters on this set to evaluate a type constraint
// natively.
func (r *Registry) Subtypes(name string) ([]string, error) {
	if _, ok := r.types[name]; !ok {
		return nil, &UnknownTypeError{Name: name}
	}
	var out []string
	for t, c := range r.closure {
		if c[name] {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsA reports whether typeName equals want or inherits from it.
func (r *Registry) IsA(typeName, want string) (bool, error) {
	c, ok := r.closure[typeName]
	if !ok {
		return false, &UnknownTypeError{Name: typeName}
	}
	return c[want], nil
}

// IsNodeType reports whether a node with the given primary type and mixins
// satisfies want.
func (r *Registry) IsNodeType(primary string, mixins []string, want string) (bool, error) {
	for _, name := range append([]string{primary}, mixins...) {
		ok, err := r.IsA(name, want)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ProtectedProperties returns the protected property names declared on
// name or any of its supertypes.
func (r *Registry) ProtectedProperties(name string) ([]string, error) {
	c, ok := r.closure[name]
	if !ok {
		return nil, &UnknownTypeError{Name: name}
	}
	var out []string
	for st := range c {
		for _, pd := range r.types[st].Properties {
			if pd.Protected && !slices.Contains(out, pd.Name) {
				out = append(out, pd.Name)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// HasOrderableChildren reports whether name, or a supertype, declares
// orderable children.
func (r *Registry) HasOrderableChildren(name string) (bool, error) {
	c, ok := r.closure[name]
	if !ok {
		return false, &UnknownTypeError{Name: name}
	}
	for st := range c {
		if r.types[st].OrderableChildren {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) computeClosure(name string) map[string]bool {
	seen := map[string]bool{}
	stack := []string{name}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, r.types[cur].Supertypes...)
	}
	return seen
}

// findInheritanceCycle returns one cycle path through the supertype graph,
// or nil when the graph is acyclic.
func findInheritanceCycle(types map[string]*NodeType) []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(types))
	var path []string
	var visit func(name string) []string
	visit = func(name string) []string {
		switch state[name] {
		case active:
			start := slices.Index(path, name)
			return append(slices.Clone(path[start:]), name)
		case done:
			return nil
		}
		state[name] = active
		path = append(path, name)
		for _, st := range types[name].Supertypes {
			if c := visit(st); c != nil {
				return c
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}
	names := make([]string, 0, len(types))
	for n := range types {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if c := visit(n); c != nil {
			return c
		}
	}
	return nil
}
