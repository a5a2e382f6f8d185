package query

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/querysql"
	"github.com/ist-dresden/composum-platform-sub002/internal/release"
	"github.com/ist-dresden/composum-platform-sub002/internal/store"
)

// Scope is the execution strategy chosen for a query path.
type Scope int

const (
	// ScopeNoRelease runs one live scan.
	ScopeNoRelease Scope = iota
	// ScopeLiveExcluded runs one live scan inside a release, restricted to
	// the content copy or excluding it.
	ScopeLiveExcluded
	// ScopeArchiveRouted runs an archive and a live scan and merges them.
	ScopeArchiveRouted
)

func (s Scope) String() string {
	switch s {
	case ScopeNoRelease:
		return "no-release"
	case ScopeLiveExcluded:
		return "live-excluded"
	case ScopeArchiveRouted:
		return "archive-routed"
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

// Plan is the physical execution of one query.
type Plan struct {
	Scope   Scope
	Release *release.Release
	Live    querysql.Scan
	// Archive is only set for ScopeArchiveRouted.
	Archive *querysql.Scan
}

// DefaultPageSize is the batch size of filtered scans.
const DefaultPageSize = 500

// Executor runs queries against a store.
type Executor struct {
	store    *store.Store
	mapper   release.Mapper
	pageSize int
}

// Option configures an Executor.
type Option func(*Executor)

// WithMapper sets the release mapper. The default allows mapping
// everywhere.
func WithMapper(m release.Mapper) Option {
	return func(e *Executor) {
		if m != nil {
			e.mapper = m
		}
	}
}

// WithPageSize sets the batch size used when scans are filtered in
// application code. Zero reads each scan in one statement.
func WithPageSize(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.pageSize = n
		}
	}
}

// NewExecutor returns an executor over s.
func NewExecutor(s *store.Store, opts ...Option) *Executor {
	e := &Executor{store: s, mapper: release.AllPermissive, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan validates q and decides how it runs. It does not touch the store.
func (e *Executor) Plan(q *Query) (*Plan, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.path == "" {
		return nil, usagef("query without path")
	}
	scan := querysql.Scan{
		Path:       q.path,
		Element:    q.element,
		Where:      q.where,
		OrderBy:    q.orderBy,
		Descending: q.descending,
	}
	for _, j := range q.joins {
		var kind querysql.JoinType
		switch j.Kind {
		case InnerJoin:
			kind = querysql.InnerJoin
		case LeftOuterJoin:
			kind = querysql.LeftOuterJoin
		default:
			return nil, usagef("join %s: only inner and left outer joins are supported", j.Selector)
		}
		axis := querysql.ChildAxis
		if j.Axis == DescendantJoin {
			axis = querysql.DescendantAxis
		}
		scan.Joins = append(scan.Joins, querysql.Join{
			Selector: j.Selector, Type: kind, Axis: axis, ExactType: j.ExactType, Where: j.Where,
		})
	}
	if q.typeName != "" {
		types, err := e.store.Types().Subtypes(q.typeName)
		if err != nil {
			return nil, fmt.Errorf("type constraint: %w", err)
		}
		scan.Types = types
	}

	r := q.release
	if r == nil {
		return &Plan{Scope: ScopeNoRelease, Live: pushDown(scan, q)}, nil
	}
	inCopy := r.InContentCopy(q.path)
	routed := !inCopy &&
		((r.AppliesToPath(q.path) && e.mapper.MappingAllowed(q.path)) || content.IsDescendant(q.path, r.SiteRoot))
	if !routed {
		if !inCopy {
			scan.Exclude = r.ContentCopy
		}
		return &Plan{Scope: ScopeLiveExcluded, Release: r, Live: pushDown(scan, q)}, nil
	}
	archive := scan
	archive.Label = r.Label
	scan.Exclude = r.ContentCopy
	return &Plan{Scope: ScopeArchiveRouted, Release: r, Live: scan, Archive: &archive}, nil
}

// pushDown moves pagination into a scan that is the only source.
func pushDown(scan querysql.Scan, q *Query) querysql.Scan {
	if q.limited {
		scan.Limit = q.limit
	}
	scan.Offset = q.offset
	return scan
}

// Rows executes q.
func (e *Executor) Rows(ctx context.Context, q *Query) ([]*Row, error) {
	plan, err := e.Plan(q)
	if err != nil {
		return nil, err
	}
	if q.limited && q.limit == 0 {
		return []*Row{}, nil
	}
	start := time.Now()
	defer func() {
		executeDuration.WithLabelValues(plan.Scope.String()).Observe(time.Since(start).Seconds())
	}()
	slog.Debug("executing query", "query", q.String(), "scope", plan.Scope.String())

	selectors := q.Selectors()
	if plan.Scope != ScopeArchiveRouted {
		scanned, err := e.run(ctx, plan.Live, querysql.Live)
		if err != nil {
			return nil, err
		}
		return e.wrap(scanned, selectors)
	}
	return e.routed(ctx, q, plan, selectors)
}

// routed runs both scans concurrently. Each delivers at least offset+limit
// survivors; pagination applies to the merged result only.
func (e *Executor) routed(ctx context.Context, q *Query, plan *Plan, selectors []string) ([]*Row, error) {
	need := 0
	if q.limited {
		need = q.offset + q.limit
	}
	if q.typeName != "" && (q.checker == nil || q.checker.Want() != q.typeName) {
		q.checker = NewTypeChecker(e.store.Types(), q.typeName, e.store.GetArchiveNode)
	}
	checker := q.checker
	if q.typeName == "" {
		checker = nil
	}
	r := plan.Release

	var archived, live []*store.ScanRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		archived, err = e.collect(gctx, *plan.Archive, querysql.Archive, need, func(row *store.ScanRow) (bool, error) {
			p, err := content.ReconstructOriginalPath(row.OriginPath, row.Nodes[0].Path)
			if err != nil {
				return false, err
			}
			if !e.mapper.MappingAllowed(p) {
				rowsFilteredTotal.WithLabelValues("archive", "unmapped").Inc()
				return false, nil
			}
			if checker != nil {
				ok, err := checker.Matches(gctx, row)
				if err != nil {
					return false, err
				}
				if !ok {
					rowsFilteredTotal.WithLabelValues("archive", "type").Inc()
					return false, nil
				}
			}
			return true, nil
		})
		return err
	})
	g.Go(func() error {
		anchors, err := e.store.VersionAnchors(gctx, r.Label)
		if err != nil {
			return &BackendError{Source: "archive", Op: "execute", Err: err}
		}
		origins := make(map[string]bool, len(anchors))
		for _, origin := range anchors {
			origins[origin] = true
		}
		live, err = e.collect(gctx, plan.Live, querysql.Live, need, func(row *store.ScanRow) (bool, error) {
			p := row.Nodes[0].Path
			if !r.AppliesToPath(p) || !e.mapper.MappingAllowed(p) {
				return true, nil
			}
			if row.Versionable != "" {
				rowsFilteredTotal.WithLabelValues("live", "versioned").Inc()
				return false, nil
			}
			if coveredBy(origins, p) {
				rowsFilteredTotal.WithLabelValues("live", "archived").Inc()
				return false, nil
			}
			return true, nil
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	archiveRows, err := e.wrap(archived, selectors)
	if err != nil {
		return nil, err
	}
	liveRows, err := e.wrap(live, selectors)
	if err != nil {
		return nil, err
	}
	var merged []*Row
	if q.orderBy == "" {
		merged = append(archiveRows, liveRows...)
	} else {
		compare := RowComparator(q.orderBy, !q.descending)
		slices.SortStableFunc(archiveRows, compare)
		slices.SortStableFunc(liveRows, compare)
		merged = MergeSorted(compare, archiveRows, liveRows)
	}
	limit := -1
	if q.limited {
		limit = q.limit
	}
	return Paginate(merged, q.offset, limit), nil
}

// collect pages through a scan until need rows survive keep or the scan
// is exhausted. need 0 collects every survivor.
func (e *Executor) collect(ctx context.Context, scan querysql.Scan, d querysql.Dialect, need int,
	keep func(*store.ScanRow) (bool, error)) ([]*store.ScanRow, error) {
	batch := e.pageSize
	if need > batch {
		batch = need
	}
	out := []*store.ScanRow{}
	for offset := 0; ; offset += batch {
		scan.Limit, scan.Offset = batch, offset
		rows, err := e.run(ctx, scan, d)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			ok, err := keep(row)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, row)
			}
		}
		if batch == 0 || len(rows) < batch || (need > 0 && len(out) >= need) {
			break
		}
	}
	if need > 0 && len(out) > need {
		out = out[:need]
	}
	return out, nil
}

func (e *Executor) run(ctx context.Context, scan querysql.Scan, d querysql.Dialect) ([]*store.ScanRow, error) {
	query, args, err := querysql.Compile(scan, d)
	if err != nil {
		return nil, &BackendError{Source: d.String(), Op: "compile", Err: err}
	}
	scansTotal.WithLabelValues(d.String()).Inc()
	slog.Debug("scan", "source", d.String(), "path", scan.Path, "limit", scan.Limit, "offset", scan.Offset)
	rows, err := e.store.QueryNodes(ctx, d == querysql.Archive, 1+len(scan.Joins), query, args...)
	if err != nil {
		return nil, &BackendError{Source: d.String(), Op: "execute", Err: err}
	}
	return rows, nil
}

func (e *Executor) wrap(scanned []*store.ScanRow, selectors []string) ([]*Row, error) {
	rows := make([]*Row, 0, len(scanned))
	for _, s := range scanned {
		r, err := newRow(s, selectors, e.store.GetArchiveNode)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// coveredBy reports whether p or an ancestor is an archive anchor.
func coveredBy(origins map[string]bool, p string) bool {
	for ; p != ""; p = content.Parent(p) {
		if origins[p] {
			return true
		}
	}
	return false
}

// Execute runs q and returns the primary nodes in live shape.
func (e *Executor) Execute(ctx context.Context, q *Query) ([]*content.Node, error) {
	rows, err := e.Rows(ctx, q)
	if err != nil {
		return nil, err
	}
	nodes := make([]*content.Node, 0, len(rows))
	for _, r := range rows {
		n, err := r.LiveNode(ctx)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Select runs q and returns projections over the given columns. Column
// names are validated before any scan runs.
func (e *Executor) Select(ctx context.Context, q *Query, columns ...string) ([]*Projection, error) {
	selectors := q.Selectors()
	keys := make([]columnKey, 0, len(columns))
	for _, c := range columns {
		key, err := parseColumn(c, selectors)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	rows, err := e.Rows(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*Projection, len(rows))
	for i, r := range rows {
		out[i] = newProjection(r, keys)
	}
	return out, nil
}
