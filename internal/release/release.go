// Package release models release scopes: a site root whose versionables
// are resolved through archive versions tagged with the release label,
// plus a content copy holding the unversioned parts of the next release.
package release

import (
	"errors"
	"fmt"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// ErrNoSuchRelease reports that no release matches a name or mark. It is
// recoverable: callers may fall back to live content.
var ErrNoSuchRelease = errors.New("no such release")

// Release is one release of a site.
type Release struct {
	// SiteRoot is the top of the working tree the release covers.
	SiteRoot string
	Name     string
	// Label tags the archive versions belonging to the release.
	Label string
	// ContentCopy holds the tree copy of the release. It is disjoint from
	// SiteRoot.
	ContentCopy string
	Marks       []string
}

// ValidationError reports an inconsistent release definition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("release %s: %s", e.Field, e.Message)
}

// Validate checks paths and names, and that root and content copy are
// disjoint trees.
func (r *Release) Validate() error {
	if err := content.ValidatePath(r.SiteRoot); err != nil {
		return &ValidationError{Field: "site root", Message: err.Error()}
	}
	if r.SiteRoot == content.Root {
		return &ValidationError{Field: "site root", Message: "must not be the root node"}
	}
	if err := content.ValidatePath(r.ContentCopy); err != nil {
		return &ValidationError{Field: "content copy", Message: err.Error()}
	}
	if content.IsSameOrDescendant(r.SiteRoot, r.ContentCopy) || content.IsSameOrDescendant(r.ContentCopy, r.SiteRoot) {
		return &ValidationError{Field: "content copy", Message: fmt.Sprintf("%s overlaps site root %s", r.ContentCopy, r.SiteRoot)}
	}
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "empty"}
	}
	if r.Label == "" {
		return &ValidationError{Field: "label", Message: "empty"}
	}
	return nil
}

// AppliesToPath reports whether p lies within the tree spanned by the site
// root. It does not check whether a node exists there.
func (r *Release) AppliesToPath(p string) bool {
	return p != "" && content.IsSameOrDescendant(r.SiteRoot, content.CleanPath(p))
}

// InContentCopy reports whether p lies within the content copy.
func (r *Release) InContentCopy(p string) bool {
	return p != "" && content.IsSameOrDescendant(r.ContentCopy, content.CleanPath(p))
}

// MapToContentCopy maps a path inside the site root to its location in the
// content copy. Other paths are returned unchanged.
func (r *Release) MapToContentCopy(p string) string {
	if !r.AppliesToPath(p) {
		return p
	}
	rel, err := content.RelativePath(r.SiteRoot, content.CleanPath(p))
	if err != nil {
		return p
	}
	return content.Join(r.ContentCopy, rel)
}

// UnmapFromContentCopy is the inverse of MapToContentCopy.
func (r *Release) UnmapFromContentCopy(p string) string {
	if !r.InContentCopy(p) {
		return p
	}
	rel, err := content.RelativePath(r.ContentCopy, content.CleanPath(p))
	if err != nil {
		return p
	}
	return content.Join(r.SiteRoot, rel)
}

func (r *Release) String() string {
	return fmt.Sprintf("Release(%s@%s)", r.Name, r.SiteRoot)
}
