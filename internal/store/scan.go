package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// Scan statements select a fixed column layout that QueryNodes decodes:
//
//	live:    LivePrefixColumns(n), then LiveColumns(s) per selector
//	archive: ArchivePrefixColumns(n, v), then ArchiveColumns(s) per selector
//
// The first selector is the primary node; later ones are joined nodes.

// LiveColumns lists the columns of one live selector.
func LiveColumns(alias string) string {
	return fmt.Sprintf("%[1]s.path, %[1]s.primary_type, %[1]s.mixins, %[1]s.props", alias)
}

// LivePrefixColumns selects the nearest versionable ancestor-or-self of the
// primary live node, or NULL.
func LivePrefixColumns(alias string) string {
	return fmt.Sprintf(`(SELECT a.path FROM nodes a
		WHERE a.path <> '/' AND a.mixins LIKE '%%"%[2]s"%%'
		AND (a.path = %[1]s.path OR (%[1]s.path > a.path || '/' AND %[1]s.path < a.path || '0'))
		AND EXISTS (SELECT 1 FROM json_each(a.mixins) WHERE json_each.value = '%[2]s')
		ORDER BY length(a.path) DESC LIMIT 1)`, alias, content.MixinVersionable)
}

// ArchiveColumns lists the columns of one archive selector.
func ArchiveColumns(alias string) string {
	return fmt.Sprintf("%[1]s.path, %[1]s.frozen_primary_type, %[1]s.frozen_uuid, %[1]s.props", alias)
}

// ArchivePrefixColumns selects the version, its originating path and the
// head and count of the primary node's captured mixins.
func ArchivePrefixColumns(alias, versionAlias string) string {
	return fmt.Sprintf("%[1]s.version_id, %[2]s.origin_path, json_extract(%[1]s.frozen_mixins, '$[0]'), json_array_length(%[1]s.frozen_mixins)",
		alias, versionAlias)
}

// ScanRow is one decoded row of a scan statement.
type ScanRow struct {
	// Nodes holds one node per selector in statement order. A nil entry
	// is a joined selector without a match in an outer join.
	Nodes []*content.Node

	// Versionable is the nearest versionable ancestor-or-self of a live
	// primary node, "" if there is none.
	Versionable string

	// VersionID and OriginPath locate the version of an archive row.
	VersionID  string
	OriginPath string
	// HeadMixin and MixinCount describe the captured mixins of the primary
	// archive node. Archive scan nodes carry no jcr:frozenMixinTypes; use
	// GetArchiveNode to resolve the full list.
	HeadMixin  string
	MixinCount int
}

// Archived reports whether the row comes from the archive.
func (r *ScanRow) Archived() bool {
	return r.VersionID != ""
}

// QueryNodes runs a scan statement and decodes its rows. All rows are read
// before returning, so the caller may issue further queries on a
// single-connection store.
func (s *Store) QueryNodes(ctx context.Context, archive bool, selectors int, query string, args ...any) ([]*ScanRow, error) {
	if selectors < 1 {
		return nil, fmt.Errorf("query nodes: need at least one selector")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	out := []*ScanRow{}
	for rows.Next() {
		var r *ScanRow
		if archive {
			r, err = s.scanArchiveRow(rows, selectors)
		} else {
			r, err = s.scanLiveRow(rows, selectors)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	return out, nil
}

func (s *Store) scanLiveRow(rows *sql.Rows, selectors int) (*ScanRow, error) {
	var versionable sql.NullString
	cols := make([]sql.NullString, 4*selectors)
	dest := make([]any, 0, 1+len(cols))
	dest = append(dest, &versionable)
	for i := range cols {
		dest = append(dest, &cols[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("query nodes: scan live row: %w", err)
	}
	r := &ScanRow{Versionable: versionable.String, Nodes: make([]*content.Node, selectors)}
	for i := range selectors {
		c := cols[4*i : 4*i+4]
		if !c[0].Valid {
			continue
		}
		n, err := s.decodeLive(c[0].String, c[1].String, c[2].String, c[3].String)
		if err != nil {
			return nil, err
		}
		r.Nodes[i] = n
	}
	if r.Nodes[0] == nil {
		return nil, fmt.Errorf("query nodes: row without primary node")
	}
	return r, nil
}

func (s *Store) scanArchiveRow(rows *sql.Rows, selectors int) (*ScanRow, error) {
	var versionID, origin, head sql.NullString
	var count sql.NullInt64
	cols := make([]sql.NullString, 4*selectors)
	dest := []any{&versionID, &origin, &head, &count}
	for i := range cols {
		dest = append(dest, &cols[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("query nodes: scan archive row: %w", err)
	}
	if !versionID.Valid || !origin.Valid {
		return nil, fmt.Errorf("query nodes: archive row without version")
	}
	r := &ScanRow{
		Nodes:      make([]*content.Node, selectors),
		VersionID:  versionID.String,
		OriginPath: origin.String,
		HeadMixin:  head.String,
		MixinCount: int(count.Int64),
	}
	for i := range selectors {
		c := cols[4*i : 4*i+4]
		if !c[0].Valid {
			continue
		}
		n, err := s.decodeFrozen(c[0].String, c[1].String, nil, c[2].String, c[3].String)
		if err != nil {
			return nil, err
		}
		r.Nodes[i] = n
	}
	if r.Nodes[0] == nil {
		return nil, fmt.Errorf("query nodes: row without primary node")
	}
	return r, nil
}

// DescendantRange returns bounds selecting the strict descendants of p as
// path > lo AND path < hi.
func DescendantRange(p string) (lo, hi string) {
	return descendantRange(p)
}
