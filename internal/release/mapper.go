package release

import (
	"fmt"
	"slices"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// Mapper decides per path whether release mapping applies, i.e. whether
// queries should resolve versionables through the archive.
//
// If MappingAllowed is false for a path inside a release it must be false
// for every path below it.
type Mapper interface {
	MappingAllowed(path string) bool
}

// MapperFunc adapts a function to Mapper.
type MapperFunc func(path string) bool

// MappingAllowed calls f.
func (f MapperFunc) MappingAllowed(path string) bool { return f(path) }

// AllPermissive allows mapping everywhere.
var AllPermissive Mapper = MapperFunc(func(string) bool { return true })

// PatternMapper allows mapping by path prefix rules. A path is allowed
// when no exclude prefix covers it and, if includes are configured, it
// lies on the way to or below an include prefix.
type PatternMapper struct {
	include []string
	exclude []string
}

// NewPatternMapper validates and sorts the prefixes.
func NewPatternMapper(include, exclude []string) (*PatternMapper, error) {
	m := &PatternMapper{}
	for _, set := range []struct {
		name string
		in   []string
		out  *[]string
	}{{"include", include, &m.include}, {"exclude", exclude, &m.exclude}} {
		for _, p := range set.in {
			p = content.CleanPath(p)
			if err := content.ValidatePath(p); err != nil {
				return nil, fmt.Errorf("mapper %s %q: %w", set.name, p, err)
			}
			*set.out = append(*set.out, p)
		}
		slices.Sort(*set.out)
		*set.out = slices.Compact(*set.out)
	}
	return m, nil
}

// MappingAllowed implements Mapper.
func (m *PatternMapper) MappingAllowed(path string) bool {
	path = content.CleanPath(path)
	for _, ex := range m.exclude {
		if content.IsSameOrDescendant(ex, path) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, in := range m.include {
		// Ancestors of an include stay allowed so a false answer holds
		// for the whole subtree.
		if content.IsSameOrDescendant(in, path) || content.IsSameOrDescendant(path, in) {
			return true
		}
	}
	return false
}
