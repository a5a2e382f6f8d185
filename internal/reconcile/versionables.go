// Package reconcile compares the versionable nodes of a content tree with
// a marker set received from the other side of a replication, and
// collects the child orders a replication has to restore.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// VersionableInfo marks one versionable node and the version it carries.
type VersionableInfo struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

func (v VersionableInfo) String() string {
	return fmt.Sprintf("VersionableInfo[path=%s,version=%s]", v.Path, v.Version)
}

// SubpathError reports a path outside the subtree an operation was
// restricted to.
type SubpathError struct {
	Subpath string
	Path    string
}

// Error implements the error interface.
func (e *SubpathError) Error() string {
	return fmt.Sprintf("not subpath of %s: %s", e.Subpath, e.Path)
}

// IsSubpathError returns true if err is or wraps a *SubpathError.
func IsSubpathError(err error) bool {
	var se *SubpathError
	return errors.As(err, &se)
}

// IsVersionable reports whether n carries the versioning capability,
// directly or through a mixin's supertypes.
func IsVersionable(n *content.Node, types *typesys.Registry) (bool, error) {
	return types.IsNodeType(n.PrimaryType, n.Mixins, content.MixinVersionable)
}

// InfoOf returns the marker of n, or nil if n is not versionable or has no
// replicated version. With relativeTo set the marker path is made
// relative to it, keeping a leading slash.
func InfoOf(n *content.Node, types *typesys.Registry, relativeTo string) (*VersionableInfo, error) {
	versionable, err := IsVersionable(n, types)
	if err != nil {
		return nil, fmt.Errorf("versionable info %s: %w", n.Path, err)
	}
	if !versionable {
		if n.Name() == content.ContentNodeName {
			slog.Warn("content node is not versionable", "path", n.Path)
		}
		return nil, nil
	}
	version := strings.TrimSpace(n.String(content.PropReplicatedVersion))
	if version == "" {
		slog.Warn("versionable has no replicated version", "path", n.Path, "property", content.PropReplicatedVersion)
		return nil, nil
	}
	p := n.Path
	if relativeTo != "" {
		rel, err := content.RelativePath(relativeTo, p)
		if err != nil {
			return nil, &SubpathError{Subpath: relativeTo, Path: p}
		}
		p = content.Join(content.Root, rel)
	}
	return &VersionableInfo{Path: p, Version: version}, nil
}

// isLeaf reports whether a walk stops at n: versionables and content
// nodes are never descended into.
func isLeaf(n *content.Node, types *typesys.Registry) (bool, error) {
	versionable, err := IsVersionable(n, types)
	if err != nil {
		return false, err
	}
	return versionable || n.Name() == content.ContentNodeName, nil
}

// CollectOptions tune marker collection.
type CollectOptions struct {
	// RelativeTo makes marker paths relative to this path.
	RelativeTo string
	// PathMapping, if set, translates every marker path.
	PathMapping func(string) string
}

// WalkVersionables calls fn for every marker below roots in tree order.
// Missing roots are skipped. The walk does not descend into versionables.
// A versionable below another one is a modeling error; with debug logging
// on, each reported subtree is checked and every nested versionable is
// logged as a warning. Nested ones are never reported to fn.
func WalkVersionables(ctx context.Context, acc content.Accessor, roots []string, opts CollectOptions,
	fn func(VersionableInfo) error) error {
	types := acc.Types()
	for _, root := range roots {
		n, err := content.Lookup(ctx, acc, root)
		if err != nil {
			return fmt.Errorf("collect versionables %s: %w", root, err)
		}
		if n == nil {
			slog.Debug("versionable root does not exist", "path", root)
			continue
		}
		if err := walk(ctx, acc, types, n, opts, fn); err != nil {
			return err
		}
	}
	return nil
}

func walk(ctx context.Context, acc content.Accessor, types *typesys.Registry, n *content.Node,
	opts CollectOptions, fn func(VersionableInfo) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	leaf, err := isLeaf(n, types)
	if err != nil {
		return fmt.Errorf("collect versionables: %w", err)
	}
	if leaf {
		info, err := InfoOf(n, types, opts.RelativeTo)
		if err != nil || info == nil {
			return err
		}
		if opts.PathMapping != nil {
			info.Path = opts.PathMapping(info.Path)
		}
		if slog.Default().Enabled(ctx, slog.LevelDebug) {
			if err := warnNested(ctx, acc, types, n.Path, n.Path); err != nil {
				return err
			}
		}
		return fn(*info)
	}
	children, err := acc.ListChildren(ctx, n.Path)
	if err != nil {
		return fmt.Errorf("collect versionables %s: %w", n.Path, err)
	}
	for _, c := range children {
		if err := walk(ctx, acc, types, c, opts, fn); err != nil {
			return err
		}
	}
	return nil
}

// warnNested logs every versionable strictly below p.
func warnNested(ctx context.Context, acc content.Accessor, types *typesys.Registry, outer, p string) error {
	children, err := acc.ListChildren(ctx, p)
	if err != nil {
		return fmt.Errorf("collect versionables %s: %w", p, err)
	}
	for _, c := range children {
		versionable, err := IsVersionable(c, types)
		if err != nil {
			return fmt.Errorf("collect versionables: %w", err)
		}
		if versionable {
			slog.Warn("versionable nested in another versionable is ignored", "path", c.Path, "outer", outer)
		}
		if err := warnNested(ctx, acc, types, outer, c.Path); err != nil {
			return err
		}
	}
	return nil
}

// Collect returns every marker below roots.
func Collect(ctx context.Context, acc content.Accessor, roots []string, opts CollectOptions) ([]VersionableInfo, error) {
	out := []VersionableInfo{}
	err := WalkVersionables(ctx, acc, roots, opts, func(info VersionableInfo) error {
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
