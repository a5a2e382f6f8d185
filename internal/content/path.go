package content

import (
	"fmt"
	"strings"
)

// Root is the path of the tree root.
const Root = "/"

// ValidatePath reports whether p is an absolute, normalized content path.
// Normalized means no empty, "." or ".." segments and no trailing slash
// (except for the root itself).
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if p[0] != '/' {
		return fmt.Errorf("path %q is not absolute", p)
	}
	if p == Root {
		return nil
	}
	if strings.HasSuffix(p, "/") {
		return fmt.Errorf("path %q has trailing slash", p)
	}
	for _, seg := range strings.Split(p[1:], "/") {
		switch seg {
		case "":
			return fmt.Errorf("path %q has empty segment", p)
		case ".", "..":
			return fmt.Errorf("path %q has relative segment %q", p, seg)
		}
	}
	return nil
}

// CleanPath collapses repeated slashes and strips a trailing slash.
// It does not resolve "." or "..".
func CleanPath(p string) string {
	if p == "" {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	out := b.String()
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

// IsSameOrDescendant reports whether p equals ancestor or lies below it.
func IsSameOrDescendant(ancestor, p string) bool {
	if ancestor == Root {
		return strings.HasPrefix(p, "/")
	}
	return p == ancestor || strings.HasPrefix(p, ancestor+"/")
}

// IsDescendant reports whether p lies strictly below ancestor.
func IsDescendant(ancestor, p string) bool {
	return p != ancestor && IsSameOrDescendant(ancestor, p)
}

// Parent returns the parent path of p. The parent of the root is "".
func Parent(p string) string {
	if p == Root || p == "" {
		return ""
	}
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return Root
	}
	return p[:i]
}

// Name returns the last segment of p. The root has an empty name.
func Name(p string) string {
	if p == Root {
		return ""
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}

// LocalName strips a namespace prefix ("jcr:content" becomes "content").
func LocalName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Join appends relative segments to base.
func Join(base string, rel ...string) string {
	out := base
	for _, r := range rel {
		r = strings.Trim(r, "/")
		if r == "" {
			continue
		}
		if out == Root {
			out = "/" + r
		} else {
			out = out + "/" + r
		}
	}
	return out
}

// RelativePath returns p relative to base, without a leading slash, or an
// error if p is not at or below base. The relative path of base itself is "".
func RelativePath(base, p string) (string, error) {
	if !IsSameOrDescendant(base, p) {
		return "", fmt.Errorf("path %q is not below %q", p, base)
	}
	if p == base {
		return "", nil
	}
	if base == Root {
		return p[1:], nil
	}
	return p[len(base)+1:], nil
}
