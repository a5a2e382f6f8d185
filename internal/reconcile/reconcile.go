package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// Options tune reconciliation against a received marker set.
type Options struct {
	// CheckSubpath, if set, rejects markers outside this subtree.
	CheckSubpath string
	// PathMapping translates a received path into a local one. An empty
	// result counts as unresolvable.
	PathMapping func(string) string
}

// Result classifies the received markers that no longer match the tree.
// Markers that still match are not recorded.
type Result struct {
	Deleted []VersionableInfo
	Changed []VersionableInfo
}

// DeletedPaths lists the received paths that no longer resolve.
func (r *Result) DeletedPaths() []string {
	return paths(r.Deleted)
}

// ChangedPaths lists the received paths whose version differs or that are
// no longer versionable.
func (r *Result) ChangedPaths() []string {
	return paths(r.Changed)
}

func paths(infos []VersionableInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Path
	}
	return out
}

// Reconciler classifies received markers one at a time, so a marker
// stream never has to be held in memory.
type Reconciler struct {
	acc    content.Accessor
	opts   Options
	result Result
}

// NewReconciler returns a reconciler over the local tree acc.
func NewReconciler(acc content.Accessor, opts Options) *Reconciler {
	return &Reconciler{
		acc:    acc,
		opts:   opts,
		result: Result{Deleted: []VersionableInfo{}, Changed: []VersionableInfo{}},
	}
}

// Process classifies one received marker.
func (r *Reconciler) Process(ctx context.Context, info VersionableInfo) error {
	if r.opts.CheckSubpath != "" && !content.IsSameOrDescendant(r.opts.CheckSubpath, info.Path) {
		return &SubpathError{Subpath: r.opts.CheckSubpath, Path: info.Path}
	}
	p := info.Path
	if r.opts.PathMapping != nil {
		p = r.opts.PathMapping(p)
	}
	var n *content.Node
	if p != "" {
		var err error
		if n, err = content.Lookup(ctx, r.acc, p); err != nil {
			return fmt.Errorf("reconcile %s: %w", info.Path, err)
		}
	}
	if n == nil {
		slog.Debug("versionable deleted", "path", info.Path)
		r.result.Deleted = append(r.result.Deleted, info)
		return nil
	}
	current, err := InfoOf(n, r.acc.Types(), "")
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", info.Path, err)
	}
	if current == nil || current.Version != info.Version {
		slog.Debug("versionable changed", "path", info.Path, "version", info.Version)
		r.result.Changed = append(r.result.Changed, info)
	}
	return nil
}

// Result returns the classification so far.
func (r *Reconciler) Result() *Result {
	return &r.result
}

// Reconcile classifies every marker of prior against acc.
func Reconcile(ctx context.Context, acc content.Accessor, prior []VersionableInfo, opts Options) (*Result, error) {
	r := NewReconciler(acc, opts)
	for _, info := range prior {
		if err := r.Process(ctx, info); err != nil {
			return nil, err
		}
	}
	return r.Result(), nil
}
