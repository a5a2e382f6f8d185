package content

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// MemTree is an in-memory Accessor. Nodes are stored as given; child
// order follows insertion order unless Reorder is called.
type MemTree struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	types *typesys.Registry
}

var _ Accessor = (*MemTree)(nil)

// NewMemTree returns a tree holding only a root node.
func NewMemTree(types *typesys.Registry) *MemTree {
	t := &MemTree{
		nodes: make(map[string]*Node),
		types: types,
	}
	t.nodes[Root] = NewNode(Root, "nt:unstructured")
	return t
}

// Put stores n, creating missing ancestors as nt:unstructured nodes.
// An existing node at the same path is replaced but keeps its children.
func (t *MemTree) Put(n *Node) error {
	if err := ValidatePath(n.Path); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	c := n.Clone()
	if old, ok := t.nodes[c.Path]; ok {
		c.ChildNames = old.ChildNames
	} else {
		c.ChildNames = nil
		t.linkLocked(c.Path)
	}
	t.nodes[c.Path] = c
	return nil
}

// MustPut is Put for fixtures; it panics on invalid paths.
func (t *MemTree) MustPut(nodes ...*Node) *MemTree {
	for _, n := range nodes {
		if err := t.Put(n); err != nil {
			panic(err)
		}
	}
	return t
}

func (t *MemTree) linkLocked(p string) {
	for p != Root {
		parent := Parent(p)
		pn, ok := t.nodes[parent]
		if !ok {
			pn = NewNode(parent, "nt:unstructured")
			t.nodes[parent] = pn
		}
		name := Name(p)
		if slices.Contains(pn.ChildNames, name) {
			return
		}
		pn.ChildNames = append(pn.ChildNames, name)
		p = parent
	}
}

// Delete removes the node at p and its subtree.
func (t *MemTree) Delete(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path := range t.nodes {
		if path != Root && IsSameOrDescendant(p, path) {
			delete(t.nodes, path)
		}
	}
	if parent, ok := t.nodes[Parent(p)]; ok {
		parent.ChildNames = slices.DeleteFunc(parent.ChildNames, func(n string) bool { return n == Name(p) })
	}
}

// Reorder replaces the child order of p. names must be a permutation of
// the current children.
func (t *MemTree) Reorder(p string, names ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[p]
	if !ok {
		return fmt.Errorf("reorder %s: %w", p, ErrNotFound)
	}
	cur := slices.Clone(n.ChildNames)
	want := slices.Clone(names)
	slices.Sort(cur)
	slices.Sort(want)
	if !slices.Equal(cur, want) {
		return fmt.Errorf("reorder %s: %v is not a permutation of the children", p, names)
	}
	n.ChildNames = slices.Clone(names)
	return nil
}

func (t *MemTree) GetNode(_ context.Context, p string) (*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return n.Clone(), nil
}

func (t *MemTree) ListChildren(_ context.Context, p string) ([]*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	children := make([]*Node, 0, len(n.ChildNames))
	for _, name := range n.ChildNames {
		if c, ok := t.nodes[Join(p, name)]; ok {
			children = append(children, c.Clone())
		}
	}
	return children, nil
}

func (t *MemTree) Types() *typesys.Registry {
	return t.types
}
