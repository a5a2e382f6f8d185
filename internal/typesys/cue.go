package typesys

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed default.cue
var defaultTypes string

// Default returns the built-in registry of standard node types.
func Default() *Registry {
	r, err := LoadCUE("default.cue", defaultTypes)
	if err != nil {
		panic(fmt.Sprintf("built-in node types: %v", err))
	}
	return r
}

// LoadCUEFile reads type definitions from a CUE file.
func LoadCUEFile(path string) (*Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node types: %w", err)
	}
	return LoadCUE(path, string(src))
}

// LoadCUE compiles CUE source of the form
//
//	types: "nt:folder": {
//		supertypes: ["nt:base"]
//		orderable:  true
//		properties: "jcr:created": protected: true
//	}
//
// into a Registry.
func LoadCUE(filename, src string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &CompileError{Field: "types", Message: "types is required", Pos: v.Pos()}
	}
	defs, err := compileTypes(typesVal)
	if err != nil {
		return nil, err
	}
	return NewRegistry(defs...)
}

func compileTypes(v cue.Value) ([]NodeType, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var defs []NodeType
	for iter.Next() {
		def, err := compileType(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func compileType(name string, v cue.Value) (NodeType, error) {
	def := NodeType{Name: name}

	if st := v.LookupPath(cue.ParsePath("supertypes")); st.Exists() {
		list, err := st.List()
		if err != nil {
			return def, formatCUEError(err)
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return def, &CompileError{Field: name + ".supertypes", Message: "must be strings", Pos: list.Value().Pos()}
			}
			def.Supertypes = append(def.Supertypes, s)
		}
	}

	var err error
	if def.Mixin, err = optionalBool(v, "mixin"); err != nil {
		return def, err
	}
	if def.OrderableChildren, err = optionalBool(v, "orderable"); err != nil {
		return def, err
	}

	if props := v.LookupPath(cue.ParsePath("properties")); props.Exists() {
		iter, err := props.Fields()
		if err != nil {
			return def, formatCUEError(err)
		}
		for iter.Next() {
			pd := PropertyDef{Name: iter.Selector().Unquoted()}
			if pd.Protected, err = optionalBool(iter.Value(), "protected"); err != nil {
				return def, err
			}
			def.Properties = append(def.Properties, pd)
		}
	}
	return def, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, &CompileError{Field: field, Message: "must be a boolean", Pos: f.Pos()}
	}
	return b, nil
}

// CompileError represents a type definition error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
