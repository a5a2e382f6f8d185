package query

import (
	"context"
	"fmt"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/store"
	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// ArchiveLookup loads a captured node by archive path.
type ArchiveLookup func(ctx context.Context, archivePath string) (*content.Node, error)

// TypeChecker decides whether archived nodes satisfy a type constraint.
// The backend cannot evaluate supertypes over captured type attributes,
// so every archive row is checked here.
//
// Decisions are cached per type name for the lifetime of one query; a
// checker must not be shared between goroutines.
type TypeChecker struct {
	types  *typesys.Registry
	want   string
	lookup ArchiveLookup
	cache  map[string]bool
}

// NewTypeChecker returns a checker for want.
func NewTypeChecker(types *typesys.Registry, want string, lookup ArchiveLookup) *TypeChecker {
	return &TypeChecker{types: types, want: want, lookup: lookup, cache: make(map[string]bool)}
}

// Want returns the requested type.
func (c *TypeChecker) Want() string {
	return c.want
}

// matchesType reports whether name is want or one of its subtypes.
// An unknown type is an error: it means the archive references a type the
// registry cannot resolve.
func (c *TypeChecker) matchesType(name string) (bool, error) {
	if ok, hit := c.cache[name]; hit {
		return ok, nil
	}
	ok, err := c.types.IsA(name, c.want)
	if err != nil {
		return false, err
	}
	c.cache[name] = ok
	return ok, nil
}

// Matches checks an archive row's primary node. The captured primary type
// and head mixin come with the row; the full mixin list is looked up only
// when neither matches and the node has more mixins.
func (c *TypeChecker) Matches(ctx context.Context, row *store.ScanRow) (bool, error) {
	n := row.Nodes[0]
	primary := n.String(content.PropFrozenPrimaryType)
	if ok, err := c.matchesType(primary); err != nil || ok {
		return ok, err
	}
	if row.HeadMixin == "" {
		return false, nil
	}
	if ok, err := c.matchesType(row.HeadMixin); err != nil || ok {
		return ok, err
	}
	if row.MixinCount <= 1 {
		return false, nil
	}
	full, err := c.lookup(ctx, n.Path)
	if err != nil {
		return false, fmt.Errorf("resolve mixins of %s: %w", n.Path, err)
	}
	mixins, _ := full.Property(content.PropFrozenMixinTypes)
	for _, v := range mixins.Values {
		if ok, err := c.matchesType(v.String()); err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
