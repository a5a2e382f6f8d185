package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ist-dresden/composum-platform-sub002/internal/reconcile"
)

// VersionablesOptions holds flags for the versionables command.
type VersionablesOptions struct {
	*RootOptions
	RelativeTo string
	Map        string
}

// NewVersionablesCommand creates the versionables command.
func NewVersionablesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VersionablesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "versionables <root>...",
		Short: "List the replication markers below one or more roots",
		Long: `List the path and replicated version of every versionable below the
given roots. The walk stops at versionables and at jcr:content nodes.

In text format the markers are streamed as a JSON array, the input format
of "versa reconcile". Missing roots are skipped.

Examples:
  versa versionables /content/site > markers.json
  versa versionables /content/site --relative-to /content/site --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersionables(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RelativeTo, "relative-to", "", "make marker paths relative to this path")
	cmd.Flags().StringVar(&opts.Map, "map", "", "path prefix mapping from=to applied to every marker")

	return cmd
}

func runVersionables(opts *VersionablesOptions, roots []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	mapping, err := prefixMapping(opts.Map)
	if err != nil {
		return e.out.FailCode(ErrCodeUsage, ExitCommandError, "invalid --map", err)
	}
	collect := reconcile.CollectOptions{RelativeTo: opts.RelativeTo, PathMapping: mapping}

	if opts.Format == "json" {
		infos, err := reconcile.Collect(ctx, e.store, roots, collect)
		if err != nil {
			return e.out.Fail(ExitCommandError, "failed to collect versionables", err)
		}
		return e.out.Success(infos)
	}
	if err := reconcile.StreamVersionables(ctx, cmd.OutOrStdout(), e.store, roots, collect); err != nil {
		return WrapExitError(ExitCommandError, "failed to collect versionables", err)
	}
	return nil
}

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	CheckSubpath string
	Map          string
}

// ReconcileResult is the output of the reconcile command.
type ReconcileResult struct {
	Deleted []reconcile.VersionableInfo `json:"deleted"`
	Changed []reconcile.VersionableInfo `json:"changed"`
}

// RenderText prints one line per difference.
func (r *ReconcileResult) RenderText(w io.Writer) error {
	for _, info := range r.Deleted {
		fmt.Fprintf(w, "deleted\t%s\t%s\n", info.Path, info.Version)
	}
	for _, info := range r.Changed {
		fmt.Fprintf(w, "changed\t%s\t%s\n", info.Path, info.Version)
	}
	if len(r.Deleted)+len(r.Changed) == 0 {
		fmt.Fprintln(w, "up to date")
	}
	return nil
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <markers.json|->",
		Short: "Compare received replication markers with the local tree",
		Long: `Compare a JSON array of replication markers, as written by
"versa versionables", with the local tree. Markers whose path no longer
resolves are reported as deleted; markers whose version differs, or whose
node is no longer versionable, as changed.

The array is processed element by element. Exits with 1 when anything
differs.

Examples:
  versa reconcile markers.json --check-subpath /content/site
  versa versionables /content/site | versa --db other.db reconcile -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CheckSubpath, "check-subpath", "", "reject markers outside this subtree")
	cmd.Flags().StringVar(&opts.Map, "map", "", "path prefix mapping from=to applied to received markers")

	return cmd
}

func runReconcile(opts *ReconcileOptions, file string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	mapping, err := prefixMapping(opts.Map)
	if err != nil {
		return e.out.FailCode(ErrCodeUsage, ExitCommandError, "invalid --map", err)
	}

	var in io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return e.out.FailCode(ErrCodeInput, ExitCommandError, "failed to open markers", err)
		}
		defer f.Close()
		in = f
	}

	res, err := reconcile.DecodeStream(ctx, in, e.store, reconcile.Options{
		CheckSubpath: opts.CheckSubpath,
		PathMapping:  mapping,
	})
	if err != nil {
		if reconcile.IsSubpathError(err) {
			return e.out.FailCode(ErrCodeUsage, ExitCommandError, "marker outside checked subtree", err)
		}
		return e.out.FailCode(ErrCodeInput, ExitCommandError, "failed to reconcile markers", err)
	}

	e.out.VerboseLog("reconciled: %d deleted, %d changed", len(res.Deleted), len(res.Changed))
	if err := e.out.Success(&ReconcileResult{Deleted: res.Deleted, Changed: res.Changed}); err != nil {
		return err
	}
	if len(res.Deleted)+len(res.Changed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d deleted, %d changed", len(res.Deleted), len(res.Changed)))
	}
	return nil
}
