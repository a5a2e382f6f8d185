package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/store"
)

// Manager keeps releases in a store.
type Manager struct {
	store *store.Store
}

// NewManager returns a manager over s.
func NewManager(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Create validates and stores a release. Releases of one site must not
// share a label.
func (m *Manager) Create(ctx context.Context, r Release) (*Release, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	existing, err := m.List(ctx, r.SiteRoot)
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		if other.Name != r.Name && other.Label == r.Label {
			return nil, &ValidationError{Field: "label", Message: fmt.Sprintf("%q already used by %s", r.Label, other)}
		}
	}
	if err := m.store.PutRelease(ctx, store.ReleaseRecord{
		SiteRoot:    r.SiteRoot,
		Name:        r.Name,
		Label:       r.Label,
		ContentCopy: r.ContentCopy,
	}); err != nil {
		return nil, fmt.Errorf("create release %s: %w", r.Name, err)
	}
	slog.Debug("release stored", "site", r.SiteRoot, "name", r.Name, "label", r.Label)
	return m.FindByName(ctx, r.SiteRoot, r.Name)
}

// Delete removes a release and its marks.
func (m *Manager) Delete(ctx context.Context, siteRoot, name string) error {
	if err := m.store.DeleteRelease(ctx, siteRoot, name); err != nil {
		return fmt.Errorf("delete release %s: %w", name, err)
	}
	return nil
}

// SetMark points mark at the named release, moving it away from any other
// release of the site.
func (m *Manager) SetMark(ctx context.Context, siteRoot, mark, name string) error {
	if mark == "" {
		return &ValidationError{Field: "mark", Message: "empty"}
	}
	if _, err := m.FindByName(ctx, siteRoot, name); err != nil {
		return err
	}
	if err := m.store.SetReleaseMark(ctx, siteRoot, mark, name); err != nil {
		return fmt.Errorf("set mark %s: %w", mark, err)
	}
	return nil
}

// FindByName returns the named release of a site.
func (m *Manager) FindByName(ctx context.Context, siteRoot, name string) (*Release, error) {
	rec, err := m.store.GetRelease(ctx, siteRoot, name)
	if err != nil {
		return nil, translate(err, "release %s of %s", name, siteRoot)
	}
	return fromRecord(rec), nil
}

// FindReleaseByMark finds the site root at or above path and returns the
// release the mark points to there.
func (m *Manager) FindReleaseByMark(ctx context.Context, path, mark string) (*Release, error) {
	root, err := m.SiteRootOf(ctx, path)
	if err != nil {
		return nil, err
	}
	rec, err := m.store.ReleaseByMark(ctx, root, mark)
	if err != nil {
		return nil, translate(err, "mark %s of %s", mark, root)
	}
	return fromRecord(rec), nil
}

// SiteRootOf returns the nearest site root at or above path. A path
// inside a content copy resolves to the site the copy belongs to.
func (m *Manager) SiteRootOf(ctx context.Context, path string) (string, error) {
	if err := content.ValidatePath(path); err != nil {
		return "", err
	}
	roots, err := m.store.SiteRoots(ctx)
	if err != nil {
		return "", fmt.Errorf("site roots: %w", err)
	}
	best := ""
	for _, r := range roots {
		if content.IsSameOrDescendant(r, path) && len(r) > len(best) {
			best = r
		}
	}
	if best != "" {
		return best, nil
	}
	for _, r := range roots {
		list, err := m.List(ctx, r)
		if err != nil {
			return "", err
		}
		for _, rel := range list {
			if rel.InContentCopy(path) {
				return r, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no site root above %s", ErrNoSuchRelease, path)
}

// List returns the releases of a site ordered by name.
func (m *Manager) List(ctx context.Context, siteRoot string) ([]*Release, error) {
	recs, err := m.store.ListReleases(ctx, siteRoot)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	out := make([]*Release, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

func fromRecord(rec *store.ReleaseRecord) *Release {
	return &Release{
		SiteRoot:    rec.SiteRoot,
		Name:        rec.Name,
		Label:       rec.Label,
		ContentCopy: rec.ContentCopy,
		Marks:       rec.Marks,
	}
}

func translate(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNoRelease) {
		return fmt.Errorf("%w: %s", ErrNoSuchRelease, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
