package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ist-dresden/composum-platform-sub002/internal/condition"
	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/query"
	"github.com/ist-dresden/composum-platform-sub002/internal/release"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Type       string
	Element    string
	Where      string
	Bind       []string
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
	Release    string
	Mark       string
	Columns    []string
}

// NodeView is the printed form of a query result node.
type NodeView struct {
	Path        string         `json:"path"`
	PrimaryType string         `json:"primaryType"`
	Mixins      []string       `json:"mixins"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// QueryResult is the output of the query command.
type QueryResult struct {
	Query   string              `json:"query"`
	Release string              `json:"release,omitempty"`
	Nodes   []NodeView          `json:"nodes,omitempty"`
	Columns []string            `json:"columns,omitempty"`
	Rows    []map[string]string `json:"rows,omitempty"`
}

// RenderText prints one line per node, or a tab separated table when
// columns were selected.
func (r *QueryResult) RenderText(w io.Writer) error {
	if len(r.Columns) > 0 {
		fmt.Fprintln(w, strings.Join(append([]string{"path"}, r.Columns...), "\t"))
		for _, row := range r.Rows {
			cells := []string{row[content.PseudoPath]}
			for _, c := range r.Columns {
				cells = append(cells, row[c])
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		return nil
	}
	for _, n := range r.Nodes {
		fmt.Fprintf(w, "%s\t%s\n", n.Path, n.PrimaryType)
	}
	return nil
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <path>",
		Short: "Query nodes at and below a path",
		Long: `Query the node at a path and its descendants.

With --release or --mark the query sees the content of that release:
versionables resolve to their archived version, everything else is read
from the live tree. Conditions use bound values only; bind them with
--bind name=value or --bind name=Type:value.

Examples:
  versa query /content/site --type cpp:PageContent
  versa query /content/site --where "n.[rank] >= $min" --bind min=Long:2 --order rank
  versa query /content/site --mark public --column jcr:title --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "node type constraint (primary type or mixin)")
	cmd.Flags().StringVar(&opts.Element, "element", "", "node name constraint")
	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "condition statement")
	cmd.Flags().StringArrayVar(&opts.Bind, "bind", nil, "bound value name=value or name=Type:value (repeatable)")
	cmd.Flags().StringVar(&opts.OrderBy, "order", "", "order by property, or jcr:path")
	cmd.Flags().BoolVar(&opts.Descending, "desc", false, "descending order")
	cmd.Flags().IntVar(&opts.Limit, "limit", -1, "maximum number of results (-1 for no limit)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "results to skip")
	cmd.Flags().StringVar(&opts.Release, "release", "", "release name")
	cmd.Flags().StringVar(&opts.Mark, "mark", "", "release mark, e.g. public")
	cmd.Flags().StringSliceVarP(&opts.Columns, "column", "c", nil, "columns to select (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("release", "mark")

	return cmd
}

func runQuery(opts *QueryOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	q, err := buildQuery(opts, path)
	if err != nil {
		return e.out.Fail(ExitCommandError, "invalid query", err)
	}
	r, err := resolveRelease(ctx, release.NewManager(e.store), path, opts.Release, opts.Mark)
	if err != nil {
		return e.out.Fail(ExitCommandError, "failed to resolve release", err)
	}
	q.InRelease(r)

	mapper, err := release.NewPatternMapper(e.cfg.Mapper.Include, e.cfg.Mapper.Exclude)
	if err != nil {
		return e.out.Fail(ExitCommandError, "invalid mapper config", err)
	}
	exec := query.NewExecutor(e.store,
		query.WithMapper(mapper),
		query.WithPageSize(e.cfg.Query.PageSize))

	if plan, err := exec.Plan(q); err == nil {
		e.out.VerboseLog("plan: %s", plan.Scope)
	}

	result := &QueryResult{Query: q.String()}
	if r != nil {
		result.Release = r.String()
	}
	if len(opts.Columns) > 0 {
		projections, err := exec.Select(ctx, q, opts.Columns...)
		if err != nil {
			return e.out.Fail(ExitCommandError, "query failed", err)
		}
		result.Columns = opts.Columns
		result.Rows = make([]map[string]string, 0, len(projections))
		for _, p := range projections {
			row := map[string]string{content.PseudoPath: p.Path()}
			for _, c := range opts.Columns {
				s, err := p.String(ctx, c)
				if err != nil {
					return e.out.Fail(ExitCommandError, "query failed", err)
				}
				row[c] = s
			}
			result.Rows = append(result.Rows, row)
		}
	} else {
		nodes, err := exec.Execute(ctx, q)
		if err != nil {
			return e.out.Fail(ExitCommandError, "query failed", err)
		}
		result.Nodes = make([]NodeView, 0, len(nodes))
		for _, n := range nodes {
			result.Nodes = append(result.Nodes, viewOf(n))
		}
	}
	return e.out.Success(result)
}

func buildQuery(opts *QueryOptions, path string) (*query.Query, error) {
	q := query.New(path)
	if opts.Type != "" {
		q.Type(opts.Type)
	}
	if opts.Element != "" {
		q.Element(opts.Element)
	}
	if opts.Where != "" {
		values, err := parseBindings(opts.Bind)
		if err != nil {
			return nil, err
		}
		expr, err := condition.Parse(opts.Where, values)
		if err != nil {
			return nil, err
		}
		q.Condition(expr)
	}
	if opts.OrderBy != "" {
		q.OrderBy(opts.OrderBy)
		if opts.Descending {
			q.Descending()
		}
	}
	if opts.Limit >= 0 {
		q.Limit(opts.Limit)
	}
	q.Offset(opts.Offset)
	return q, nil
}

// parseBindings reads name=value pairs. A value prefixed with a property
// type name and a colon is parsed as that type, anything else is a String.
func parseBindings(pairs []string) (map[string]content.Value, error) {
	values := make(map[string]content.Value, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimPrefix(name, "$")
		if !ok || name == "" {
			return nil, fmt.Errorf("binding %q: expected name=value", pair)
		}
		v := content.NewString(raw)
		if typeName, rest, ok := strings.Cut(raw, ":"); ok {
			if t, err := content.ParsePropertyType(typeName); err == nil {
				parsed, err := content.ParseValue(t, rest)
				if err != nil {
					return nil, fmt.Errorf("binding %s: %w", name, err)
				}
				v = parsed
			}
		}
		values[name] = v
	}
	return values, nil
}

// resolveRelease returns nil when neither a release name nor a mark is
// given.
func resolveRelease(ctx context.Context, m *release.Manager, path, name, mark string) (*release.Release, error) {
	switch {
	case mark != "":
		return m.FindReleaseByMark(ctx, path, mark)
	case name != "":
		root, err := m.SiteRootOf(ctx, path)
		if err != nil {
			return nil, err
		}
		return m.FindByName(ctx, root, name)
	}
	return nil, nil
}

func viewOf(n *content.Node) NodeView {
	v := NodeView{
		Path:        n.Path,
		PrimaryType: n.PrimaryType,
		Mixins:      append([]string{}, n.Mixins...),
		Properties:  make(map[string]any, len(n.Properties)),
	}
	for name, p := range n.Properties {
		if !p.Multiple {
			v.Properties[name] = content.Native(p.Value())
			continue
		}
		vals := make([]any, len(p.Values))
		for i, val := range p.Values {
			vals[i] = content.Native(val)
		}
		v.Properties[name] = vals
	}
	return v
}
