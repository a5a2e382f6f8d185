package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// Namespace selects the attribute names a statement is rendered with.
type Namespace int

const (
	// Live names attributes as stored on live nodes.
	Live Namespace = iota
	// Archive names the captured attributes of archived nodes.
	Archive
)

func (ns Namespace) String() string {
	if ns == Archive {
		return "archive"
	}
	return "live"
}

var archiveNames = map[string]string{
	content.PropPrimaryType: content.PropFrozenPrimaryType,
	content.PropMixinTypes:  content.PropFrozenMixinTypes,
	content.PropUUID:        content.PropFrozenUUID,
}

// AttributeName maps a live property name into ns.
func AttributeName(name string, ns Namespace) string {
	if ns == Archive {
		if a, ok := archiveNames[name]; ok {
			return a
		}
	}
	return name
}

// LiveName maps a property name of either namespace back to its live name.
func LiveName(name string) string {
	for live, archived := range archiveNames {
		if name == archived {
			return live
		}
	}
	return name
}

// BindingPrefix prefixes every bound value placeholder.
const BindingPrefix = "$val"

// Binding is one bound value. Name omits the leading "$".
type Binding struct {
	Name  string
	Value content.Value
}

// Statement is a condition rendered for both namespaces.
type Statement struct {
	Live     string
	Archive  string
	Bindings []Binding
}

// Values returns bindings keyed by name, as Parse expects them.
func (s *Statement) Values() map[string]content.Value {
	out := make(map[string]content.Value, len(s.Bindings))
	for _, b := range s.Bindings {
		out[b.Name] = b.Value
	}
	return out
}

// Compile renders e in both namespaces with one shared binding list.
// A nil expression compiles to empty statements.
func Compile(e Expr) (*Statement, error) {
	if e == nil {
		return &Statement{Bindings: []Binding{}}, nil
	}
	live, bindings, err := Render(e, Live)
	if err != nil {
		return nil, err
	}
	archive, _, err := Render(e, Archive)
	if err != nil {
		return nil, err
	}
	return &Statement{Live: live, Archive: archive, Bindings: bindings}, nil
}

// Render writes e as statement text in ns. Bindings are numbered in
// left-to-right order, so rendering one tree twice yields identical lists.
func Render(e Expr, ns Namespace) (string, []Binding, error) {
	r := &renderer{ns: ns, bindings: []Binding{}}
	if err := r.expr(e, false); err != nil {
		return "", nil, err
	}
	return r.sb.String(), r.bindings, nil
}

type renderer struct {
	ns       Namespace
	sb       strings.Builder
	bindings []Binding
}

func (r *renderer) bind(v content.Value) error {
	if v == nil {
		return fmt.Errorf("nil binding value, use IsNull")
	}
	name := "val" + strconv.Itoa(len(r.bindings)+1)
	r.bindings = append(r.bindings, Binding{Name: name, Value: v})
	r.sb.WriteString("$" + name)
	return nil
}

func (r *renderer) expr(e Expr, nested bool) error {
	switch x := e.(type) {
	case Comparison:
		if !x.Op.Valid() {
			return fmt.Errorf("invalid operator %q", x.Op)
		}
		if err := r.operand(x.Left); err != nil {
			return err
		}
		r.sb.WriteString(" " + string(x.Op) + " ")
		return r.bind(x.Value)
	case IsNull:
		if err := r.property(x.Property); err != nil {
			return err
		}
		r.sb.WriteString(" IS NULL")
	case IsNotNull:
		if err := r.property(x.Property); err != nil {
			return err
		}
		r.sb.WriteString(" IS NOT NULL")
	case Contains:
		r.sb.WriteString("CONTAINS(")
		if x.Property == AllProperties {
			r.sb.WriteString(x.Selector + ".*")
		} else if err := r.property(Property{Selector: x.Selector, Name: x.Property}); err != nil {
			return err
		}
		r.sb.WriteString(", ")
		if err := r.bind(content.NewString(x.Text)); err != nil {
			return err
		}
		r.sb.WriteString(")")
	case Descendant:
		r.position("ISDESCENDANTNODE", x.Selector, x.Path)
	case Child:
		r.position("ISCHILDNODE", x.Selector, x.Path)
	case SameNode:
		r.position("ISSAMENODE", x.Selector, x.Path)
	case And:
		return r.junction("AND", x.Terms, nested)
	case Or:
		return r.junction("OR", x.Terms, nested)
	case Not:
		r.sb.WriteString("NOT ")
		return r.expr(x.Term, true)
	case nil:
		return fmt.Errorf("nil expression")
	default:
		return fmt.Errorf("unknown expression type %T", e)
	}
	return nil
}

func (r *renderer) junction(word string, terms []Expr, nested bool) error {
	if len(terms) < 2 {
		return fmt.Errorf("%s needs at least two terms, got %d", word, len(terms))
	}
	if nested {
		r.sb.WriteString("(")
	}
	for i, t := range terms {
		if i > 0 {
			r.sb.WriteString(" " + word + " ")
		}
		if err := r.expr(t, true); err != nil {
			return err
		}
	}
	if nested {
		r.sb.WriteString(")")
	}
	return nil
}

func (r *renderer) position(fn, selector, path string) {
	r.sb.WriteString(fn + "(" + selector + ", " + QuoteLiteral(path) + ")")
}

func (r *renderer) operand(o Operand) error {
	switch x := o.(type) {
	case Property:
		return r.property(x)
	case Length:
		r.sb.WriteString("LENGTH(")
		if err := r.property(x.Of); err != nil {
			return err
		}
		r.sb.WriteString(")")
	case NodeName:
		r.sb.WriteString("NAME(" + x.Selector + ")")
	case LocalName:
		r.sb.WriteString("LOCALNAME(" + x.Selector + ")")
	case Lower:
		r.sb.WriteString("LOWER(")
		if err := r.operand(x.Of); err != nil {
			return err
		}
		r.sb.WriteString(")")
	case Upper:
		r.sb.WriteString("UPPER(")
		if err := r.operand(x.Of); err != nil {
			return err
		}
		r.sb.WriteString(")")
	default:
		return fmt.Errorf("unknown operand type %T", o)
	}
	return nil
}

func (r *renderer) property(p Property) error {
	if p.Name == "" || strings.ContainsAny(p.Name, "[]") {
		return fmt.Errorf("invalid property name %q", p.Name)
	}
	if p.Selector == "" {
		return fmt.Errorf("property %q without selector", p.Name)
	}
	r.sb.WriteString(p.Selector + ".[" + AttributeName(p.Name, r.ns) + "]")
	return nil
}

// QuoteLiteral quotes s as a statement string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
