package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ist-dresden/composum-platform-sub002/internal/condition"
	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/store"
)

// Dialect selects the tables a scan reads.
type Dialect int

const (
	// Live scans the nodes table.
	Live Dialect = iota
	// Archive scans captured nodes carrying one release label.
	Archive
)

func (d Dialect) String() string {
	if d == Archive {
		return "archive"
	}
	return "live"
}

func (d Dialect) namespace() condition.Namespace {
	if d == Archive {
		return condition.Archive
	}
	return condition.Live
}

// JoinType is the kind of SQL join for a joined selector.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftOuterJoin
)

// JoinAxis relates a joined node to the primary node.
type JoinAxis int

const (
	// ChildAxis joins the children of the primary node.
	ChildAxis JoinAxis = iota
	// DescendantAxis joins every descendant of the primary node.
	DescendantAxis
)

// Join binds a selector to children or descendants of the primary node.
type Join struct {
	Selector string
	Type     JoinType
	Axis     JoinAxis
	// ExactType, if set, must equal the joined node's primary type.
	ExactType string
	// Where restricts the joined nodes; it references Selector.
	Where condition.Expr
}

// Scan describes one physical scan.
type Scan struct {
	// Path selects the node at Path and its descendants.
	Path string
	// Exclude, if set, removes a subtree from a live scan.
	Exclude string
	// Element restricts the node name.
	Element string
	// Types restricts a live scan to nodes whose primary type or any mixin
	// is in the set. Archive scans ignore it.
	Types []string
	// Label selects the archive versions to scan. Required for Archive.
	Label string
	Where condition.Expr
	Joins []Join
	// OrderBy names a property or jcr:path; "" orders by path only.
	OrderBy    string
	Descending bool
	// Limit 0 means unbounded.
	Limit  int
	Offset int
}

var selectorPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reserved aliases are used by the statement itself.
var reserved = map[string]bool{"v": true, "l": true, "a": true, "e": true}

// Compile converts a scan to parameterized SQL for SQLite. The column
// layout is the one store.QueryNodes decodes for 1+len(scan.Joins)
// selectors.
//
// MANDATORY: Every statement ends in ORDER BY with a path tiebreaker,
// COLLATE BINARY, so paging through a scan is deterministic.
// Values are never interpolated; every value is a ? parameter.
func Compile(scan Scan, d Dialect) (string, []any, error) {
	if err := content.ValidatePath(scan.Path); err != nil {
		return "", nil, fmt.Errorf("scan path: %w", err)
	}
	if d == Archive && scan.Label == "" {
		return "", nil, fmt.Errorf("archive scan without label")
	}
	if scan.Limit < 0 || scan.Offset < 0 {
		return "", nil, fmt.Errorf("negative limit or offset")
	}
	selectors := []string{condition.DefaultSelector}
	for _, j := range scan.Joins {
		if !selectorPattern.MatchString(j.Selector) || reserved[j.Selector] {
			return "", nil, fmt.Errorf("invalid join selector %q", j.Selector)
		}
		for _, s := range selectors {
			if s == j.Selector {
				return "", nil, fmt.Errorf("duplicate selector %q", j.Selector)
			}
		}
		selectors = append(selectors, j.Selector)
	}

	c := &compiler{d: d, selectors: selectors}
	var params []any

	// SELECT
	cols := make([]string, 0, len(selectors)+1)
	if d == Archive {
		cols = append(cols, store.ArchivePrefixColumns("n", "v"))
		for _, s := range selectors {
			cols = append(cols, store.ArchiveColumns(s))
		}
	} else {
		cols = append(cols, store.LivePrefixColumns("n"))
		for _, s := range selectors {
			cols = append(cols, store.LiveColumns(s))
		}
	}

	// FROM and joins
	var from string
	if d == Archive {
		from = "archive_nodes n\n" +
			"JOIN archive_versions v ON v.version_id = n.version_id\n" +
			"JOIN archive_labels l ON l.version_id = n.version_id AND l.label = ?"
		params = append(params, scan.Label)
	} else {
		from = "nodes n"
	}
	for _, j := range scan.Joins {
		sql, jp, err := c.compileJoin(j)
		if err != nil {
			return "", nil, fmt.Errorf("join %s: %w", j.Selector, err)
		}
		from += "\n" + sql
		params = append(params, jp...)
	}

	// WHERE
	var where []string
	scope, sp := c.sameOrDescendant(c.pathExpr("n"), scan.Path)
	where = append(where, scope)
	params = append(params, sp...)
	if scan.Exclude != "" && d == Live {
		if err := content.ValidatePath(scan.Exclude); err != nil {
			return "", nil, fmt.Errorf("scan exclude: %w", err)
		}
		ex, ep := c.sameOrDescendant("n.path", scan.Exclude)
		where = append(where, "NOT "+ex)
		params = append(params, ep...)
	}
	if scan.Element != "" {
		where = append(where, "n.name = ?")
		params = append(params, scan.Element)
	}
	if len(scan.Types) > 0 && d == Live {
		marks := placeholders(len(scan.Types))
		where = append(where, "(n.primary_type IN ("+marks+") OR EXISTS (SELECT 1 FROM json_each(n.mixins) AS e WHERE e.value IN ("+marks+")))")
		for range 2 {
			for _, t := range scan.Types {
				params = append(params, t)
			}
		}
	}
	if scan.Where != nil {
		sql, wp, err := c.compilePredicate(scan.Where)
		if err != nil {
			return "", nil, fmt.Errorf("compile condition: %w", err)
		}
		where = append(where, sql)
		params = append(params, wp...)
	}

	// ORDER BY
	order, op, err := c.orderBy(scan)
	if err != nil {
		return "", nil, err
	}
	params = append(params, op...)

	sql := "SELECT " + strings.Join(cols, ", ") + "\nFROM " + from +
		"\nWHERE " + strings.Join(where, "\n  AND ") +
		"\nORDER BY " + order
	switch {
	case scan.Limit > 0:
		sql += "\nLIMIT ? OFFSET ?"
		params = append(params, scan.Limit, scan.Offset)
	case scan.Offset > 0:
		sql += "\nLIMIT -1 OFFSET ?"
		params = append(params, scan.Offset)
	}
	return sql, params, nil
}

// Predicate compiles a condition alone for d; selectors other than the
// primary one refer to join aliases of the same name.
func Predicate(e condition.Expr, d Dialect) (string, []any, error) {
	c := &compiler{d: d}
	return c.compilePredicate(e)
}

type compiler struct {
	d         Dialect
	selectors []string
}

// pathExpr is the live-shaped path of a selector. Archive paths are
// reconstructed from the version's originating path.
func (c *compiler) pathExpr(sel string) string {
	if c.d == Archive {
		return "(v.origin_path || " + sel + ".rel_path)"
	}
	return sel + ".path"
}

func (c *compiler) sameOrDescendant(expr, p string) (string, []any) {
	lo, hi := store.DescendantRange(p)
	return "(" + expr + " = ? OR (" + expr + " > ? AND " + expr + " < ?))", []any{p, lo, hi}
}

func (c *compiler) compileJoin(j Join) (string, []any, error) {
	kw := "JOIN"
	switch j.Type {
	case InnerJoin:
	case LeftOuterJoin:
		kw = "LEFT OUTER JOIN"
	default:
		return "", nil, fmt.Errorf("unsupported join type %d", j.Type)
	}
	o := j.Selector
	var on []string
	var params []any
	table := "nodes"
	typeCol := o + ".primary_type"
	if c.d == Archive {
		table = "archive_nodes"
		typeCol = o + ".frozen_primary_type"
		on = append(on, o+".version_id = n.version_id")
	}
	switch j.Axis {
	case ChildAxis:
		on = append(on, o+".parent = n.path")
	case DescendantAxis:
		base := "(CASE n.path WHEN '/' THEN '' ELSE n.path END)"
		on = append(on, "("+o+".path > "+base+" || '/' AND "+o+".path < "+base+" || '0')")
	default:
		return "", nil, fmt.Errorf("unsupported join axis %d", j.Axis)
	}
	if j.ExactType != "" {
		on = append(on, typeCol+" = ?")
		params = append(params, j.ExactType)
	}
	if j.Where != nil {
		for _, s := range condition.Selectors(j.Where) {
			if s != o {
				return "", nil, fmt.Errorf("join condition references selector %q", s)
			}
		}
		sql, wp, err := c.compilePredicate(j.Where)
		if err != nil {
			return "", nil, err
		}
		on = append(on, sql)
		params = append(params, wp...)
	}
	return kw + " " + table + " " + o + " ON " + strings.Join(on, " AND "), params, nil
}

// orderBy returns the ORDER BY clause. The path tiebreakers always run
// ascending.
func (c *compiler) orderBy(scan Scan) (string, []any, error) {
	var parts []string
	var params []any
	if scan.OrderBy != "" {
		src, err := c.propertySource(condition.DefaultSelector, scan.OrderBy)
		if err != nil {
			return "", nil, fmt.Errorf("order by: %w", err)
		}
		expr := src.column
		if expr == "" {
			expr = "(SELECT e.value FROM " + src.table + " AS e LIMIT 1)"
			params = append(params, src.args...)
		}
		dir := "ASC"
		if scan.Descending {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
	}
	parts = append(parts, c.pathExpr("n")+" COLLATE BINARY ASC")
	if c.d == Archive {
		parts = append(parts, "n.path COLLATE BINARY ASC")
	}
	for _, s := range c.selectors[1:] {
		parts = append(parts, s+".path COLLATE BINARY ASC")
	}
	return strings.Join(parts, ", "), params, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
