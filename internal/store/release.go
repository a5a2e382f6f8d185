package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReleaseRecord is the stored form of a release.
type ReleaseRecord struct {
	SiteRoot    string
	Name        string
	Label       string
	ContentCopy string
	// Marks lists the marks pointing at this release, sorted.
	Marks []string
}

// ErrNoRelease is returned when no release record matches a lookup.
var ErrNoRelease = errors.New("no such release")

// PutRelease inserts or replaces a release record. Marks are not touched;
// use SetReleaseMark.
func (s *Store) PutRelease(ctx context.Context, r ReleaseRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO releases (site_root, name, label, content_copy) VALUES (?, ?, ?, ?)
		ON CONFLICT(site_root, name) DO UPDATE SET
			label = excluded.label,
			content_copy = excluded.content_copy
	`, r.SiteRoot, r.Name, r.Label, r.ContentCopy)
	if err != nil {
		return fmt.Errorf("put release %s %s: %w", r.SiteRoot, r.Name, err)
	}
	return nil
}

// DeleteRelease removes a release and its marks.
func (s *Store) DeleteRelease(ctx context.Context, siteRoot, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM releases WHERE site_root = ? AND name = ?`, siteRoot, name)
	if err != nil {
		return fmt.Errorf("delete release %s %s: %w", siteRoot, name, err)
	}
	return nil
}

// GetRelease returns the named release of a site.
func (s *Store) GetRelease(ctx context.Context, siteRoot, name string) (*ReleaseRecord, error) {
	r := &ReleaseRecord{SiteRoot: siteRoot, Name: name}
	err := s.db.QueryRowContext(ctx, `
		SELECT label, content_copy FROM releases WHERE site_root = ? AND name = ?
	`, siteRoot, name).Scan(&r.Label, &r.ContentCopy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("release %s of %s: %w", name, siteRoot, ErrNoRelease)
	}
	if err != nil {
		return nil, fmt.Errorf("get release %s %s: %w", siteRoot, name, err)
	}
	if r.Marks, err = s.marksOf(ctx, siteRoot, name); err != nil {
		return nil, err
	}
	return r, nil
}

// ReleaseByMark returns the release a mark of the site points at.
func (s *Store) ReleaseByMark(ctx context.Context, siteRoot, mark string) (*ReleaseRecord, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
		SELECT name FROM release_marks WHERE site_root = ? AND mark = ?
	`, siteRoot, mark).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark %s of %s: %w", mark, siteRoot, ErrNoRelease)
	}
	if err != nil {
		return nil, fmt.Errorf("release by mark %s %s: %w", siteRoot, mark, err)
	}
	return s.GetRelease(ctx, siteRoot, name)
}

// SetReleaseMark points mark at the named release, moving it from any
// other release of the site.
func (s *Store) SetReleaseMark(ctx context.Context, siteRoot, mark, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO release_marks (site_root, mark, name) VALUES (?, ?, ?)
		ON CONFLICT(site_root, mark) DO UPDATE SET name = excluded.name
	`, siteRoot, mark, name)
	if err != nil {
		return fmt.Errorf("set mark %s of %s: %w", mark, siteRoot, err)
	}
	return nil
}

// ListReleases returns the releases of a site ordered by name.
func (s *Store) ListReleases(ctx context.Context, siteRoot string) ([]*ReleaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, label, content_copy FROM releases
		WHERE site_root = ?
		ORDER BY name COLLATE BINARY ASC
	`, siteRoot)
	if err != nil {
		return nil, fmt.Errorf("list releases %s: %w", siteRoot, err)
	}
	out := []*ReleaseRecord{}
	for rows.Next() {
		r := &ReleaseRecord{SiteRoot: siteRoot}
		if err := rows.Scan(&r.Name, &r.Label, &r.ContentCopy); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list releases %s: scan: %w", siteRoot, err)
		}
		out = append(out, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list releases %s: %w", siteRoot, err)
	}
	for _, r := range out {
		if r.Marks, err = s.marksOf(ctx, siteRoot, r.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SiteRoots lists every site root with at least one release.
func (s *Store) SiteRoots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT site_root FROM releases ORDER BY site_root COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("site roots: %w", err)
	}
	defer rows.Close()

	roots := []string{}
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("site roots: scan: %w", err)
		}
		roots = append(roots, root)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("site roots: %w", err)
	}
	return roots, nil
}

func (s *Store) marksOf(ctx context.Context, siteRoot, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mark FROM release_marks WHERE site_root = ? AND name = ?
		ORDER BY mark COLLATE BINARY ASC
	`, siteRoot, name)
	if err != nil {
		return nil, fmt.Errorf("marks of %s %s: %w", siteRoot, name, err)
	}
	defer rows.Close()

	marks := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("marks of %s %s: scan: %w", siteRoot, name, err)
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("marks of %s %s: %w", siteRoot, name, err)
	}
	return marks, nil
}
