package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ist-dresden/composum-platform-sub002/internal/release"
)

// ReleaseView is the printed form of a release.
type ReleaseView struct {
	SiteRoot    string   `json:"siteRoot"`
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	ContentCopy string   `json:"contentCopy"`
	Marks       []string `json:"marks"`
}

// ReleasesResult is the output of the releases commands.
type ReleasesResult struct {
	Releases []ReleaseView `json:"releases"`
}

// RenderText prints one line per release.
func (r *ReleasesResult) RenderText(w io.Writer) error {
	for _, rel := range r.Releases {
		fmt.Fprintf(w, "%s\t%s\tlabel=%s\tcopy=%s\tmarks=%s\n",
			rel.SiteRoot, rel.Name, rel.Label, rel.ContentCopy, strings.Join(rel.Marks, ","))
	}
	return nil
}

func viewOfRelease(r *release.Release) ReleaseView {
	return ReleaseView{
		SiteRoot:    r.SiteRoot,
		Name:        r.Name,
		Label:       r.Label,
		ContentCopy: r.ContentCopy,
		Marks:       append([]string{}, r.Marks...),
	}
}

// NewReleasesCommand creates the releases command and its subcommands.
func NewReleasesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List and maintain releases",
		Long: `List and maintain the releases of sites.

A release names the archive label its versionables are tagged with and the
content copy holding its unversioned content. Marks such as "public" point
to one release of a site.

Examples:
  versa releases list
  versa releases create /content/site r2 --label site-r2 --copy /var/releases/site/r2
  versa releases mark /content/site public r2`,
	}

	cmd.AddCommand(newReleasesListCommand(rootOpts))
	cmd.AddCommand(newReleasesCreateCommand(rootOpts))
	cmd.AddCommand(newReleasesMarkCommand(rootOpts))
	cmd.AddCommand(newReleasesDeleteCommand(rootOpts))
	return cmd
}

func withManager(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, e *env, m *release.Manager) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e, release.NewManager(e.store))
}

func newReleasesListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list [site-root]...",
		Short:         "List releases, of all sites by default",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(ctx context.Context, e *env, m *release.Manager) error {
				roots := args
				if len(roots) == 0 {
					var err error
					if roots, err = e.store.SiteRoots(ctx); err != nil {
						return e.out.Fail(ExitCommandError, "failed to list sites", err)
					}
				}
				result := &ReleasesResult{Releases: []ReleaseView{}}
				for _, root := range roots {
					list, err := m.List(ctx, root)
					if err != nil {
						return e.out.Fail(ExitCommandError, "failed to list releases", err)
					}
					for _, r := range list {
						result.Releases = append(result.Releases, viewOfRelease(r))
					}
				}
				return e.out.Success(result)
			})
		},
	}
}

func newReleasesCreateCommand(opts *RootOptions) *cobra.Command {
	var label, contentCopy string
	cmd := &cobra.Command{
		Use:           "create <site-root> <name>",
		Short:         "Create or redefine a release",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(ctx context.Context, e *env, m *release.Manager) error {
				r, err := m.Create(ctx, release.Release{
					SiteRoot:    args[0],
					Name:        args[1],
					Label:       label,
					ContentCopy: contentCopy,
				})
				if err != nil {
					return e.out.Fail(ExitCommandError, "failed to create release", err)
				}
				return e.out.Success(&ReleasesResult{Releases: []ReleaseView{viewOfRelease(r)}})
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "archive label of the release (required)")
	cmd.Flags().StringVar(&contentCopy, "copy", "", "content copy path (required)")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("copy")
	return cmd
}

func newReleasesMarkCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "mark <site-root> <mark> <name>",
		Short:         "Point a mark at a release",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(ctx context.Context, e *env, m *release.Manager) error {
				if err := m.SetMark(ctx, args[0], args[1], args[2]); err != nil {
					return e.out.Fail(ExitCommandError, "failed to set mark", err)
				}
				r, err := m.FindByName(ctx, args[0], args[2])
				if err != nil {
					return e.out.Fail(ExitCommandError, "failed to read release", err)
				}
				return e.out.Success(&ReleasesResult{Releases: []ReleaseView{viewOfRelease(r)}})
			})
		},
	}
}

func newReleasesDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <site-root> <name>",
		Short:         "Delete a release and its marks",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(ctx context.Context, e *env, m *release.Manager) error {
				if err := m.Delete(ctx, args[0], args[1]); err != nil {
					return e.out.Fail(ExitCommandError, "failed to delete release", err)
				}
				return e.out.Success(fmt.Sprintf("deleted release %s of %s", args[1], args[0]))
			})
		},
	}
}
