package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// TypeView describes one node type of the registry.
type TypeView struct {
	Name       string   `json:"name"`
	Mixin      bool     `json:"mixin"`
	Orderable  bool     `json:"orderable"`
	Supertypes []string `json:"supertypes"`
	Protected  []string `json:"protected"`
}

// TypesResult is the output of the types command.
type TypesResult struct {
	Types []TypeView `json:"types"`
}

// RenderText prints one line per type.
func (r *TypesResult) RenderText(w io.Writer) error {
	for _, t := range r.Types {
		flags := []string{}
		if t.Mixin {
			flags = append(flags, "mixin")
		}
		if t.Orderable {
			flags = append(flags, "orderable")
		}
		fmt.Fprintf(w, "%s\t[%s]\tsupertypes=%s\tprotected=%s\n", t.Name,
			strings.Join(flags, ","), strings.Join(t.Supertypes, ","), strings.Join(t.Protected, ","))
	}
	return nil
}

// NewTypesCommand creates the types command.
func NewTypesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types [name]...",
		Short: "Show the node type registry",
		Long: `Show the node types of the registry, either the built-in one or the
CUE file named by types.file. Each type lists its transitive supertypes
and the properties protected through them.

Examples:
  versa types
  versa types cpp:Page mix:versionable --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypes(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runTypes(opts *RootOptions, names []string, cmd *cobra.Command) error {
	e, err := loadEnv(opts, cmd)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = e.types.Names()
	}
	result := &TypesResult{Types: make([]TypeView, 0, len(names))}
	for _, name := range names {
		view, err := describeType(e.types, name)
		if err != nil {
			return e.out.Fail(ExitCommandError, "failed to describe type", err)
		}
		result.Types = append(result.Types, view)
	}
	return e.out.Success(result)
}

func describeType(types *typesys.Registry, name string) (TypeView, error) {
	t, err := types.Lookup(name)
	if err != nil {
		return TypeView{}, err
	}
	supertypes, err := types.Supertypes(name)
	if err != nil {
		return TypeView{}, err
	}
	protected, err := types.ProtectedProperties(name)
	if err != nil {
		return TypeView{}, err
	}
	orderable, err := types.HasOrderableChildren(name)
	if err != nil {
		return TypeView{}, err
	}
	return TypeView{
		Name:       t.Name,
		Mixin:      t.Mixin,
		Orderable:  orderable,
		Supertypes: append([]string{}, supertypes...),
		Protected:  append([]string{}, protected...),
	}, nil
}
