package querysql

import (
	"fmt"
	"strings"

	"github.com/ist-dresden/composum-platform-sub002/internal/condition"
	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/store"
)

// source is where the values of an operand come from. A scalar source is
// one column expression; a multi-valued source is a json_each table whose
// value column holds one row per value.
type source struct {
	column string
	table  string
	args   []any
}

// match applies fn to the value expression of a source and appends cond,
// reading multi-valued sources through the table alias e.
func (s source) match(fn func(string) string, cond string, args ...any) (string, []any) {
	if s.column != "" {
		return fn(s.column) + cond, args
	}
	return "EXISTS (SELECT 1 FROM " + s.table + " AS e WHERE " + fn("e.value") + cond + ")",
		append(append([]any{}, s.args...), args...)
}

func identity(x string) string { return x }

// compilePredicate generates a WHERE fragment from a condition tree.
func (c *compiler) compilePredicate(e condition.Expr) (string, []any, error) {
	switch x := e.(type) {
	case condition.Comparison:
		return c.compileComparison(x)
	case condition.IsNull:
		src, err := c.propertySource(x.Property.Selector, x.Property.Name)
		if err != nil {
			return "", nil, err
		}
		if src.column != "" {
			return src.column + " IS NULL", nil, nil
		}
		return "NOT EXISTS (SELECT 1 FROM " + src.table + ")", src.args, nil
	case condition.IsNotNull:
		src, err := c.propertySource(x.Property.Selector, x.Property.Name)
		if err != nil {
			return "", nil, err
		}
		if src.column != "" {
			return src.column + " IS NOT NULL", nil, nil
		}
		return "EXISTS (SELECT 1 FROM " + src.table + ")", src.args, nil
	case condition.Contains:
		return c.compileContains(x)
	case condition.Descendant:
		lo, hi := store.DescendantRange(x.Path)
		p := c.pathExpr(x.Selector)
		return "(" + p + " > ? AND " + p + " < ?)", []any{lo, hi}, nil
	case condition.Child:
		if c.d == Live {
			return x.Selector + ".parent = ?", []any{x.Path}, nil
		}
		lo, hi := store.DescendantRange(x.Path)
		p := c.pathExpr(x.Selector)
		return "(" + p + " > ? AND " + p + " < ? AND instr(substr(" + p + ", ?), '/') = 0)",
			[]any{lo, hi, len(lo) + 1}, nil
	case condition.SameNode:
		return c.pathExpr(x.Selector) + " = ?", []any{x.Path}, nil
	case condition.And:
		return c.compileJunction("AND", x.Terms)
	case condition.Or:
		return c.compileJunction("OR", x.Terms)
	case condition.Not:
		sql, params, err := c.compilePredicate(x.Term)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case nil:
		return "", nil, fmt.Errorf("nil condition")
	default:
		return "", nil, fmt.Errorf("unsupported condition %T", e)
	}
}

func (c *compiler) compileJunction(word string, terms []condition.Expr) (string, []any, error) {
	parts := make([]string, 0, len(terms))
	var params []any
	for _, t := range terms {
		sql, p, err := c.compilePredicate(t)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return "(" + strings.Join(parts, " "+word+" ") + ")", params, nil
}

func (c *compiler) compileComparison(x condition.Comparison) (string, []any, error) {
	if !x.Op.Valid() {
		return "", nil, fmt.Errorf("unknown operator %q", x.Op)
	}
	if x.Value == nil {
		return "", nil, fmt.Errorf("comparison without value")
	}
	src, fn, err := c.operand(x.Left)
	if err != nil {
		return "", nil, err
	}
	if x.Op == condition.OpLike {
		sv, ok := x.Value.(content.StringValue)
		if !ok {
			return "", nil, fmt.Errorf("LIKE needs a string pattern, got %s", x.Value.Type())
		}
		// SQLite LIKE folds ASCII case; GLOB matches exactly.
		sql, params := src.match(fn, " GLOB ?", likeToGlob(sv.S))
		return sql, params, nil
	}
	sql, params := src.match(fn, " "+string(x.Op)+" ?", content.Native(x.Value))
	return sql, params, nil
}

// operand resolves an operand to its value source and the function applied
// to each value.
func (c *compiler) operand(o condition.Operand) (source, func(string) string, error) {
	switch op := o.(type) {
	case condition.Property:
		src, err := c.propertySource(op.Selector, op.Name)
		return src, identity, err
	case condition.Length:
		src, err := c.propertySource(op.Of.Selector, op.Of.Name)
		return src, func(x string) string { return "length(" + x + ")" }, err
	case condition.NodeName:
		return source{column: op.Selector + ".name"}, identity, nil
	case condition.LocalName:
		n := op.Selector + ".name"
		return source{column: "(CASE WHEN instr(" + n + ", ':') > 0 THEN substr(" + n + ", instr(" + n + ", ':') + 1) ELSE " + n + " END)"},
			identity, nil
	case condition.Lower:
		src, fn, err := c.operand(op.Of)
		return src, func(x string) string { return "lower(" + fn(x) + ")" }, err
	case condition.Upper:
		src, fn, err := c.operand(op.Of)
		return src, func(x string) string { return "upper(" + fn(x) + ")" }, err
	case nil:
		return source{}, nil, fmt.Errorf("nil operand")
	default:
		return source{}, nil, fmt.Errorf("unsupported operand %T", o)
	}
}

// propertySource maps a property name to its storage. Names are first
// mapped into the scan's namespace, so a live name reads the captured
// attribute of an archived node.
func (c *compiler) propertySource(sel, name string) (source, error) {
	if sel == "" {
		sel = condition.DefaultSelector
	}
	name = condition.AttributeName(name, c.d.namespace())
	if name == content.PseudoPath {
		return source{column: c.pathExpr(sel)}, nil
	}
	if c.d == Archive {
		switch name {
		case content.PropPrimaryType:
			return source{column: "'" + content.FrozenNodeType + "'"}, nil
		case content.PropFrozenPrimaryType:
			return source{column: sel + ".frozen_primary_type"}, nil
		case content.PropFrozenMixinTypes:
			return source{table: "json_each(" + sel + ".frozen_mixins)"}, nil
		case content.PropFrozenUUID:
			return source{column: sel + ".frozen_uuid"}, nil
		}
	} else {
		switch name {
		case content.PropPrimaryType:
			return source{column: sel + ".primary_type"}, nil
		case content.PropMixinTypes:
			return source{table: "json_each(" + sel + ".mixins)"}, nil
		case content.PropUUID:
			return source{column: sel + ".uuid"}, nil
		}
	}
	jp, err := valuesPath(name)
	if err != nil {
		return source{}, err
	}
	return source{table: "json_each(" + sel + ".props, ?)", args: []any{jp}}, nil
}

// valuesPath is the JSON path of a property's value array in the props
// column. It is bound as a parameter like every other value.
func valuesPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "\"\\") {
		return "", fmt.Errorf("invalid property name %q", name)
	}
	return `$."` + name + `".values`, nil
}

// compileContains requires every whitespace separated term, case
// insensitively. A term with a leading "-" must be absent.
func (c *compiler) compileContains(x condition.Contains) (string, []any, error) {
	terms := strings.Fields(x.Text)
	if len(terms) == 0 {
		return "", nil, fmt.Errorf("contains: empty text")
	}
	var src source
	if x.Property == condition.AllProperties {
		sel := x.Selector
		if sel == "" {
			sel = condition.DefaultSelector
		}
		src = source{table: "(SELECT value FROM json_tree(" + sel + ".props) WHERE type = 'text' AND path LIKE '%.values')"}
	} else {
		var err error
		if src, err = c.propertySource(x.Selector, x.Property); err != nil {
			return "", nil, err
		}
	}
	parts := make([]string, 0, len(terms))
	var params []any
	for _, term := range terms {
		negate := false
		if len(term) > 1 && term[0] == '-' {
			negate, term = true, term[1:]
		}
		sql, p := src.match(func(v string) string { return "instr(lower(" + v + "), ?)" }, " > 0", strings.ToLower(term))
		if negate {
			sql = "NOT " + sql
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// likeToGlob translates a LIKE pattern: % and _ become * and ?, a
// backslash escapes the next character and glob metacharacters are
// bracketed.
func likeToGlob(pattern string) string {
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		if escaped {
			escaped = false
			writeGlobLiteral(&b, r)
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '%':
			b.WriteByte('*')
		case '_':
			b.WriteByte('?')
		default:
			writeGlobLiteral(&b, r)
		}
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}

func writeGlobLiteral(b *strings.Builder, r rune) {
	switch r {
	case '*', '?', '[':
		b.WriteByte('[')
		b.WriteRune(r)
		b.WriteByte(']')
	default:
		b.WriteRune(r)
	}
}
