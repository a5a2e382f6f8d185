package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/ist-dresden/composum-platform-sub002/internal/condition"
	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/store"
)

// Row is one result row. Rows from the archive report live-shaped paths.
type Row struct {
	scan      *store.ScanRow
	selectors []string
	lookup    ArchiveLookup
	paths     []string
}

func newRow(scan *store.ScanRow, selectors []string, lookup ArchiveLookup) (*Row, error) {
	r := &Row{scan: scan, selectors: selectors, lookup: lookup, paths: make([]string, len(scan.Nodes))}
	for i, n := range scan.Nodes {
		if n == nil {
			continue
		}
		if !scan.Archived() {
			r.paths[i] = n.Path
			continue
		}
		p, err := content.ReconstructOriginalPath(scan.OriginPath, n.Path)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", n.Path, err)
		}
		r.paths[i] = p
	}
	return r, nil
}

// Path returns the live-shaped path of the primary node.
func (r *Row) Path() string {
	return r.paths[0]
}

// Archived reports whether the row comes from the archive.
func (r *Row) Archived() bool {
	return r.scan.Archived()
}

// VersionID returns the archive version of the row, "" for live rows.
func (r *Row) VersionID() string {
	return r.scan.VersionID
}

// Node returns the primary node as scanned. For archive rows that is the
// captured node at its archive path.
func (r *Row) Node() *content.Node {
	return r.scan.Nodes[0]
}

func (r *Row) index(selector string) (int, error) {
	if selector == "" {
		return 0, nil
	}
	for i, s := range r.selectors {
		if s == selector {
			return i, nil
		}
	}
	return 0, usagef("unknown selector %q", selector)
}

// JoinNode returns the node bound to a join selector as scanned, or nil
// when an outer join found no match.
func (r *Row) JoinNode(selector string) (*content.Node, error) {
	i, err := r.index(selector)
	if err != nil {
		return nil, err
	}
	return r.scan.Nodes[i], nil
}

// JoinPath returns the live-shaped path of a join selector's node, "" for
// an outer join miss.
func (r *Row) JoinPath(selector string) (string, error) {
	i, err := r.index(selector)
	if err != nil {
		return "", err
	}
	return r.paths[i], nil
}

// LiveNode returns the primary node in live shape: live path, captured
// type attributes restored to their live names.
func (r *Row) LiveNode(ctx context.Context) (*content.Node, error) {
	return r.liveNode(ctx, 0)
}

// LiveJoinNode is LiveNode for a join selector. It returns nil for an
// outer join miss.
func (r *Row) LiveJoinNode(ctx context.Context, selector string) (*content.Node, error) {
	i, err := r.index(selector)
	if err != nil {
		return nil, err
	}
	return r.liveNode(ctx, i)
}

func (r *Row) liveNode(ctx context.Context, i int) (*content.Node, error) {
	n := r.scan.Nodes[i]
	if n == nil || !r.Archived() {
		return n, nil
	}
	mixins, err := r.mixins(ctx, i)
	if err != nil {
		return nil, err
	}
	live := &content.Node{
		Path:        r.paths[i],
		PrimaryType: n.String(content.PropFrozenPrimaryType),
		Mixins:      mixins,
		Properties:  make(map[string]content.Property, len(n.Properties)),
		ChildNames:  n.ChildNames,
	}
	for name, p := range n.Properties {
		switch name {
		case content.PropFrozenPrimaryType, content.PropFrozenMixinTypes:
		case content.PropFrozenUUID:
			p.Name = content.PropUUID
			live.Set(p)
		default:
			live.Set(p)
		}
	}
	return live, nil
}

// mixins returns the captured mixins of an archive node. Scan rows only
// carry the head mixin of the primary node; the rest is looked up.
func (r *Row) mixins(ctx context.Context, i int) ([]string, error) {
	n := r.scan.Nodes[i]
	if p, ok := n.Property(content.PropFrozenMixinTypes); ok {
		return valueStrings(p), nil
	}
	if i == 0 {
		switch r.scan.MixinCount {
		case 0:
			return nil, nil
		case 1:
			return []string{r.scan.HeadMixin}, nil
		}
	}
	full, err := r.lookup(ctx, n.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve mixins of %s: %w", n.Path, err)
	}
	p, _ := full.Property(content.PropFrozenMixinTypes)
	return valueStrings(p), nil
}

func valueStrings(p content.Property) []string {
	out := make([]string, len(p.Values))
	for i, v := range p.Values {
		out[i] = v.String()
	}
	return out
}

// property resolves a live property name on one selector's node.
func (r *Row) property(ctx context.Context, i int, name string) (content.Property, bool, error) {
	n := r.scan.Nodes[i]
	if n == nil {
		return content.Property{}, false, nil
	}
	if name == content.PseudoPath {
		return content.Single(name, content.NewPath(r.paths[i])), true, nil
	}
	if !r.Archived() {
		p, ok := n.Property(name)
		return p, ok, nil
	}
	if name == content.PropMixinTypes {
		mixins, err := r.mixins(ctx, i)
		if err != nil || len(mixins) == 0 {
			return content.Property{}, false, err
		}
		vals := make([]content.Value, len(mixins))
		for j, m := range mixins {
			vals[j] = content.NewName(m)
		}
		return content.Multi(name, content.TypeName, vals...), true, nil
	}
	p, ok := n.Property(condition.AttributeName(name, condition.Archive))
	if ok {
		p.Name = name
	}
	return p, ok, nil
}

// orderValue is the comparison key of the primary node for a property.
// It never touches the store: archive rows order by their head mixin.
func (r *Row) orderValue(name string) content.Value {
	if r.Archived() && name == content.PropMixinTypes {
		if r.scan.HeadMixin == "" {
			return nil
		}
		return content.NewName(r.scan.HeadMixin)
	}
	p, ok, err := r.property(context.Background(), 0, name)
	if err != nil || !ok {
		return nil
	}
	return p.Value()
}

// columnKey identifies a column independent of how it was spelled.
type columnKey struct {
	selector string
	name     string
}

func (k columnKey) String() string {
	return k.selector + ".[" + k.name + "]"
}

// parseColumn accepts "name", "[name]", "s.name" and "s.[name]". A prefix
// only qualifies the name when it is one of the query's selectors.
func parseColumn(column string, selectors []string) (columnKey, error) {
	s := strings.TrimSpace(column)
	key := columnKey{selector: condition.DefaultSelector}
	if i := strings.IndexByte(s, '.'); i > 0 {
		for _, sel := range selectors {
			if s[:i] == sel {
				key.selector, s = sel, s[i+1:]
				break
			}
		}
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return columnKey{}, usagef("empty column name %q", column)
	}
	key.name = s
	return key, nil
}

type cell struct {
	prop content.Property
	ok   bool
}

// Projection gives access to the selected columns of a row. Each column
// is resolved on first access and memoized; columns that were not
// selected are a usage error.
type Projection struct {
	row      *Row
	columns  []columnKey
	selected map[columnKey]bool
	resolved map[columnKey]cell
}

func newProjection(row *Row, columns []columnKey) *Projection {
	p := &Projection{
		row:      row,
		columns:  columns,
		selected: make(map[columnKey]bool, len(columns)),
		resolved: make(map[columnKey]cell, len(columns)),
	}
	for _, c := range columns {
		p.selected[c] = true
	}
	return p
}

// Row returns the underlying row.
func (p *Projection) Row() *Row {
	return p.row
}

// Path returns the live-shaped path of the primary node.
func (p *Projection) Path() string {
	return p.row.Path()
}

// Columns lists the selected columns in their normalized spelling.
func (p *Projection) Columns() []string {
	out := make([]string, len(p.columns))
	for i, c := range p.columns {
		out[i] = c.String()
	}
	return out
}

// Get resolves a selected column. ok is false when the node has no such
// property or an outer join found no node.
func (p *Projection) Get(ctx context.Context, column string) (content.Property, bool, error) {
	key, err := parseColumn(column, p.row.selectors)
	if err != nil {
		return content.Property{}, false, err
	}
	if !p.selected[key] {
		return content.Property{}, false, usagef("column %s was not selected", key)
	}
	if c, hit := p.resolved[key]; hit {
		return c.prop, c.ok, nil
	}
	i, err := p.row.index(key.selector)
	if err != nil {
		return content.Property{}, false, err
	}
	prop, ok, err := p.row.property(ctx, i, key.name)
	if err != nil {
		return content.Property{}, false, err
	}
	p.resolved[key] = cell{prop: prop, ok: ok}
	return prop, ok, nil
}

// Value returns the first value of a selected column, nil if absent.
func (p *Projection) Value(ctx context.Context, column string) (content.Value, error) {
	prop, ok, err := p.Get(ctx, column)
	if err != nil || !ok {
		return nil, err
	}
	return prop.Value(), nil
}

// String returns the first value of a selected column as text.
func (p *Projection) String(ctx context.Context, column string) (string, error) {
	v, err := p.Value(ctx, column)
	if err != nil || v == nil {
		return "", err
	}
	return v.String(), nil
}
