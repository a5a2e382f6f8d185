// Package query runs queries over the live tree and, inside a release,
// over the archive versions carrying the release label.
//
// A query inside a release whose path is release mapped runs two scans
// (live and archive) concurrently, filters both in application code and
// merges them into one ordered, paginated result. Archive rows expose
// live-shaped paths.
package query

import (
	"fmt"

	"github.com/ist-dresden/composum-platform-sub002/internal/condition"
	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/release"
)

// JoinKind is the kind of join for a joined selector.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
	// RightOuterJoin is accepted by the builder but rejected on execution:
	// a right outer join would yield rows without a primary node.
	RightOuterJoin
)

// JoinAxis relates joined nodes to the primary node.
type JoinAxis int

const (
	// ChildJoin joins the children of the primary node.
	ChildJoin JoinAxis = iota
	// DescendantJoin joins all descendants of the primary node.
	DescendantJoin
)

// Join describes one joined selector.
type Join struct {
	// Selector names the joined node in conditions and columns. If empty
	// the next free selector is used: o, p, q, ...
	Selector string
	Kind     JoinKind
	Axis     JoinAxis
	// ExactType, if set, must equal the joined node's primary type.
	ExactType string
	// Where restricts the joined nodes and may only reference Selector.
	Where condition.Expr
}

// Query is a query under construction. Builder methods record the first
// misuse; it is reported as a *UsageError on execution. A Query is not
// safe for concurrent use.
type Query struct {
	path       string
	element    string
	typeName   string
	where      condition.Expr
	joins      []Join
	orderBy    string
	descending bool
	limit      int
	limited    bool
	offset     int
	release    *release.Release
	err        error

	checker *TypeChecker
}

// New starts a query for the node at path and its descendants.
func New(path string) *Query {
	q := &Query{}
	return q.Path(path)
}

func (q *Query) fail(format string, args ...any) *Query {
	if q.err == nil {
		q.err = usagef(format, args...)
	}
	return q
}

// Path sets the query path. The node at the path is part of the result.
func (q *Query) Path(p string) *Query {
	p = content.CleanPath(p)
	if err := content.ValidatePath(p); err != nil {
		return q.fail("path: %v", err)
	}
	q.path = p
	return q
}

// Element restricts results to nodes with the given name.
func (q *Query) Element(name string) *Query {
	q.element = name
	return q
}

// Type restricts results to nodes of the type or one of its subtypes,
// through the primary type or any mixin. Setting a type discards the
// cached type decisions of earlier executions.
func (q *Query) Type(name string) *Query {
	if name != q.typeName {
		q.checker = nil
	}
	q.typeName = name
	return q
}

// Condition sets the condition on the primary selector and joins.
func (q *Query) Condition(e condition.Expr) *Query {
	q.where = e
	return q
}

// Join adds a joined selector and returns the query.
func (q *Query) Join(j Join) *Query {
	if j.Selector == "" {
		j.Selector = q.nextSelector()
	}
	for _, other := range q.joins {
		if other.Selector == j.Selector {
			return q.fail("duplicate join selector %q", j.Selector)
		}
	}
	if j.Selector == condition.DefaultSelector {
		return q.fail("join selector %q is the primary selector", j.Selector)
	}
	q.joins = append(q.joins, j)
	return q
}

// NextSelector returns the selector the next anonymous Join will use.
func (q *Query) NextSelector() string {
	return q.nextSelector()
}

func (q *Query) nextSelector() string {
	for c := 'o'; c <= 'z'; c++ {
		s := string(c)
		taken := false
		for _, j := range q.joins {
			taken = taken || j.Selector == s
		}
		if !taken {
			return s
		}
	}
	return fmt.Sprintf("j%d", len(q.joins))
}

// OrderBy orders results by a property of the primary selector, or by path
// with "jcr:path". Without OrderBy results have no defined order.
func (q *Query) OrderBy(name string) *Query {
	q.orderBy = name
	return q
}

// Ascending sets ascending order, the default.
func (q *Query) Ascending() *Query {
	q.descending = false
	return q
}

// Descending reverses the order.
func (q *Query) Descending() *Query {
	q.descending = true
	return q
}

// Limit bounds the number of results. A limit of zero yields no results
// without running any scan.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		return q.fail("negative limit %d", n)
	}
	q.limit, q.limited = n, true
	return q
}

// Offset skips the first n results of the merged result.
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		return q.fail("negative offset %d", n)
	}
	q.offset = n
	return q
}

// InRelease evaluates the query as of r. Nil queries live content only.
func (q *Query) InRelease(r *release.Release) *Query {
	q.release = r
	return q
}

// Selectors lists the primary selector followed by the join selectors.
func (q *Query) Selectors() []string {
	out := []string{condition.DefaultSelector}
	for _, j := range q.joins {
		out = append(out, j.Selector)
	}
	return out
}

func (q *Query) String() string {
	s := fmt.Sprintf("Query(path=%s", q.path)
	if q.typeName != "" {
		s += " type=" + q.typeName
	}
	if q.element != "" {
		s += " element=" + q.element
	}
	if q.orderBy != "" {
		dir := "asc"
		if q.descending {
			dir = "desc"
		}
		s += fmt.Sprintf(" order=%s %s", q.orderBy, dir)
	}
	if q.limited {
		s += fmt.Sprintf(" limit=%d", q.limit)
	}
	if q.offset > 0 {
		s += fmt.Sprintf(" offset=%d", q.offset)
	}
	if q.release != nil {
		s += " release=" + q.release.Name
	}
	return s + ")"
}
