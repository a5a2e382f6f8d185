package content

import (
	"context"
	"errors"

	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// ErrNotFound is returned by accessors when no node exists at a path.
var ErrNotFound = errors.New("node not found")

// Accessor reads a content tree. Implementations return ErrNotFound
// (possibly wrapped) for absent nodes and list children in stored order.
type Accessor interface {
	GetNode(ctx context.Context, path string) (*Node, error)
	ListChildren(ctx context.Context, path string) ([]*Node, error)
	// Types resolves node type descriptors for nodes of this tree.
	Types() *typesys.Registry
}

// Lookup wraps GetNode, mapping ErrNotFound to (nil, nil).
func Lookup(ctx context.Context, acc Accessor, path string) (*Node, error) {
	n, err := acc.GetNode(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return n, err
}
