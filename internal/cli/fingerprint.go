package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ist-dresden/composum-platform-sub002/internal/fingerprint"
)

// FingerprintOptions holds flags for the fingerprint command.
type FingerprintOptions struct {
	*RootOptions
	Against string
	Map     string
}

// FingerprintResult is the output of the fingerprint command.
type FingerprintResult struct {
	Record      *fingerprint.Record `json:"record"`
	Digest      string              `json:"digest"`
	Against     *fingerprint.Record `json:"against,omitempty"`
	Equal       *bool               `json:"equal,omitempty"`
	Differences []string            `json:"differences,omitempty"`
	Description string              `json:"description,omitempty"`
}

// RenderText prints the property tokens sorted by name, then the
// comparison if one was requested.
func (r *FingerprintResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "%s\t%s\n", r.Record.Path, r.Digest)
	names := make([]string, 0, len(r.Record.PropertyHashes))
	for name := range r.Record.PropertyHashes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s=%s\n", name, r.Record.PropertyHashes[name])
	}
	if r.Equal == nil {
		return nil
	}
	if *r.Equal {
		fmt.Fprintf(w, "equal to %s\n", r.Against.Path)
		return nil
	}
	fmt.Fprintf(w, "differs from %s: %s\n", r.Against.Path, r.Description)
	return nil
}

// NewFingerprintCommand creates the fingerprint command.
func NewFingerprintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FingerprintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fingerprint <path>",
		Short: "Compute the attribute fingerprint of a node",
		Long: `Compute the attribute fingerprint of a node: one token per
property that is neither bookkeeping nor protected by the node's types.

With --against the fingerprint is compared with a second node and the
command exits with 1 when they differ. --map from=to rewrites the path
prefix of the first node so nodes at different locations can be compared.

Examples:
  versa fingerprint /content/site/home/jcr:content
  versa fingerprint /content/site/home/jcr:content --against /var/releases/site/r1/home/jcr:content \
    --map /content/site=/var/releases/site/r1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Against, "against", "", "node to compare with")
	cmd.Flags().StringVar(&opts.Map, "map", "", "path prefix mapping from=to for the first node")

	return cmd
}

func runFingerprint(opts *FingerprintOptions, path string, cmd *cobra.Command) error {
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

	cache := fingerprint.NewProtectedCache(e.cfg.Fingerprint.CacheSize)
	session, err := cache.Session("cli", e.types)
	if err != nil {
		return e.out.Fail(ExitCommandError, "failed to start fingerprint session", err)
	}
	defer cache.Release("cli")

	n, err := e.store.GetNode(ctx, path)
	if err != nil {
		return e.out.Fail(ExitCommandError, "failed to read node", err)
	}
	// Protected property lists are shared between both nodes through the
	// session.
	fpOpts := []fingerprint.Option{fingerprint.WithSession(session)}
	if mapping != nil {
		fpOpts = append(fpOpts, fingerprint.WithPathMapping(mapping))
	}
	rec, err := fingerprint.Of(ctx, n, e.types, fpOpts...)
	if err != nil {
		return e.out.Fail(ExitCommandError, "failed to fingerprint node", err)
	}
	digest, err := rec.Digest()
	if err != nil {
		return e.out.Fail(ExitCommandError, "failed to digest fingerprint", err)
	}
	result := &FingerprintResult{Record: rec, Digest: digest}

	if opts.Against == "" {
		return e.out.Success(result)
	}
	other, err := e.store.GetNode(ctx, opts.Against)
	if err != nil {
		return e.out.Fail(ExitCommandError, "failed to read node", err)
	}
	otherRec, err := fingerprint.Of(ctx, other, e.types, fingerprint.WithSession(session))
	if err != nil {
		return e.out.Fail(ExitCommandError, "failed to fingerprint node", err)
	}
	equal := rec.Equal(otherRec)
	result.Against = otherRec
	result.Equal = &equal
	if !equal {
		result.Differences = rec.Difference(otherRec)
		result.Description = rec.Describe(otherRec)
	}
	if err := e.out.Success(result); err != nil {
		return err
	}
	if !equal {
		return NewExitError(ExitFailure, fmt.Sprintf("fingerprints of %s and %s differ", path, opts.Against))
	}
	return nil
}

// prefixMapping parses from=to into a function replacing the prefix from
// of a path at or below it. An empty spec returns nil.
func prefixMapping(spec string) (func(string) string, error) {
	if spec == "" {
		return nil, nil
	}
	from, to, ok := strings.Cut(spec, "=")
	if !ok || from == "" || to == "" {
		return nil, fmt.Errorf("expected from=to, got %q", spec)
	}
	return func(p string) string {
		if p == from {
			return to
		}
		if rest, ok := strings.CutPrefix(p, from+"/"); ok {
			return strings.TrimSuffix(to, "/") + "/" + rest
		}
		return p
	}, nil
}
