package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ist-dresden/composum-platform-sub002/internal/fixture"
)

// LoadResult is the output of the load command.
type LoadResult struct {
	File string `json:"file"`
	*fixture.Summary
}

// RenderText prints a one line summary.
func (r *LoadResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s: %d nodes written, %d deleted, %d versions captured, %d releases\n",
		r.File, r.Nodes, r.Deleted, len(r.Versions), len(r.Releases))
	return err
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <fixture.yaml>...",
		Short: "Apply YAML content fixtures to the database",
		Long: `Apply YAML content fixtures to the database. A fixture is a list of
steps: put nodes, capture a versionable into the archive, delete or
reorder nodes, create a release.

Example:
  versa --db ./versa.db load site.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runLoad(opts *RootOptions, files []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	results := make([]*LoadResult, 0, len(files))
	for _, file := range files {
		f, err := fixture.Load(file)
		if err != nil {
			return e.out.FailCode(ErrCodeInput, ExitCommandError, "failed to load fixture", err)
		}
		sum, err := f.Apply(ctx, e.store)
		if err != nil {
			return e.out.Fail(ExitCommandError, fmt.Sprintf("failed to apply %s", file), err)
		}
		e.out.VerboseLog("applied %s", file)
		results = append(results, &LoadResult{File: file, Summary: sum})
	}
	if opts.Format == "json" {
		return e.out.Success(results)
	}
	for _, r := range results {
		if err := e.out.Success(r); err != nil {
			return err
		}
	}
	return nil
}
