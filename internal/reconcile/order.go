package reconcile

import (
	"context"
	"fmt"

	"github.com/ist-dresden/composum-platform-sub002/internal/canonical"
	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// ChildrenOrderInfo records the child order of one node.
type ChildrenOrderInfo struct {
	Path       string   `json:"path"`
	ChildNames []string `json:"childNames"`
}

// Digest is a content address of the order record.
func (c ChildrenOrderInfo) Digest() (string, error) {
	return canonical.Digest(canonical.DomainChildrenOrder, map[string]any{
		"path":       c.Path,
		"childNames": c.ChildNames,
	})
}

// ChildrenOrder returns the order record of n, or nil when n's primary
// type has unordered children or n has at most one child.
func ChildrenOrder(ctx context.Context, acc content.Accessor, n *content.Node) (*ChildrenOrderInfo, error) {
	orderable, err := acc.Types().HasOrderableChildren(n.PrimaryType)
	if err != nil {
		return nil, fmt.Errorf("children order %s: %w", n.Path, err)
	}
	if !orderable {
		return nil, nil
	}
	children, err := acc.ListChildren(ctx, n.Path)
	if err != nil {
		return nil, fmt.Errorf("children order %s: %w", n.Path, err)
	}
	if len(children) <= 1 {
		return nil, nil
	}
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name()
	}
	return &ChildrenOrderInfo{Path: n.Path, ChildNames: names}, nil
}

// CollectChildrenOrders records the child orders of every node below roots
// that a replication transfers as attributes. Like marker collection it
// does not descend into versionables or content nodes; their subtrees
// travel with the version.
func CollectChildrenOrders(ctx context.Context, acc content.Accessor, roots []string) ([]ChildrenOrderInfo, error) {
	out := []ChildrenOrderInfo{}
	var visit func(n *content.Node) error
	visit = func(n *content.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		leaf, err := isLeaf(n, acc.Types())
		if err != nil {
			return fmt.Errorf("children orders: %w", err)
		}
		if leaf {
			return nil
		}
		info, err := ChildrenOrder(ctx, acc, n)
		if err != nil {
			return err
		}
		if info != nil {
			out = append(out, *info)
		}
		children, err := acc.ListChildren(ctx, n.Path)
		if err != nil {
			return fmt.Errorf("children orders %s: %w", n.Path, err)
		}
		for _, c := range children {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		n, err := content.Lookup(ctx, acc, root)
		if err != nil {
			return nil, fmt.Errorf("children orders %s: %w", root, err)
		}
		if n == nil {
			continue
		}
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}
