package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ist-dresden/composum-platform-sub002/internal/reconcile"
)

// ChildrenOrderView is one ordered node with the digest of its order.
type ChildrenOrderView struct {
	reconcile.ChildrenOrderInfo
	Digest string `json:"digest"`
}

// OrderResult is the output of the order command.
type OrderResult struct {
	Orders []ChildrenOrderView `json:"orders"`
}

// RenderText prints path, digest and child names per node.
func (r *OrderResult) RenderText(w io.Writer) error {
	for _, o := range r.Orders {
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Path, o.Digest[:12], strings.Join(o.ChildNames, ","))
	}
	return nil
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order <root>...",
		Short: "List the child order of orderable nodes",
		Long: `List the child names of every node below the roots whose type keeps
its children ordered and that has more than one child. Versionables and
jcr:content nodes are not descended into.

Examples:
  versa order /content/site
  versa order /content/site --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runOrder(opts *RootOptions, roots []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	infos, err := reconcile.CollectChildrenOrders(ctx, e.store, roots)
	if err != nil {
		return e.out.Fail(ExitCommandError, "failed to collect children orders", err)
	}
	result := &OrderResult{Orders: make([]ChildrenOrderView, 0, len(infos))}
	for _, info := range infos {
		digest, err := info.Digest()
		if err != nil {
			return e.out.Fail(ExitCommandError, "failed to digest children order", err)
		}
		result.Orders = append(result.Orders, ChildrenOrderView{ChildrenOrderInfo: info, Digest: digest})
	}
	return e.out.Success(result)
}
