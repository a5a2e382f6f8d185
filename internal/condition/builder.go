package condition

import (
	"fmt"
	"time"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// BuildError reports misuse of the Builder. It is returned by Build and is
// sticky: the first misuse wins and later calls are ignored.
type BuildError struct {
	Step    string
	Message string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("condition %s: %s", e.Step, e.Message)
}

// Builder assembles a condition fluently:
//
//	cond, err := condition.New().
//		Property("jcr:title").Eq("Home").
//		And().StartGroup().
//		IsNull("hidden").Or().Property("hidden").Eq(false).
//		EndGroup().
//		Build()
//
// Terms chained with And bind tighter than terms chained with Or. Builders
// are not safe for concurrent use.
type Builder struct {
	selector string
	frames   []*frame
	pending  Operand
	err      error
}

// frame collects the terms of one group. Terms are held as or-separated
// runs of and-joined terms.
type frame struct {
	runs       [][]Expr
	expectOp   bool
	negateNext bool
	negated    bool
}

// New starts a condition on the default selector.
func New() *Builder {
	return On(DefaultSelector)
}

// On starts a condition on the given selector.
func On(selector string) *Builder {
	return &Builder{selector: selector, frames: []*frame{{runs: [][]Expr{nil}}}}
}

func (b *Builder) fail(step, format string, args ...any) *Builder {
	if b.err == nil {
		b.err = &BuildError{Step: step, Message: fmt.Sprintf(format, args...)}
	}
	return b
}

func (b *Builder) top() *frame {
	return b.frames[len(b.frames)-1]
}

func (b *Builder) term(step string, e Expr) *Builder {
	if b.err != nil {
		return b
	}
	f := b.top()
	if f.expectOp {
		return b.fail(step, "missing And/Or before term")
	}
	if b.pending != nil {
		return b.fail(step, "operand without comparison")
	}
	if f.negateNext {
		e = Not{Term: e}
		f.negateNext = false
	}
	last := len(f.runs) - 1
	f.runs[last] = append(f.runs[last], e)
	f.expectOp = true
	return b
}

func (b *Builder) operand(step string, o Operand) *Builder {
	if b.err != nil {
		return b
	}
	if b.top().expectOp {
		return b.fail(step, "missing And/Or before operand")
	}
	if b.pending != nil {
		return b.fail(step, "operand already pending")
	}
	b.pending = o
	return b
}

// Property selects a property of the current selector as operand.
func (b *Builder) Property(name string) *Builder {
	return b.operand("Property", Property{Selector: b.selector, Name: name})
}

// Length selects the length of a property value as operand.
func (b *Builder) Length(name string) *Builder {
	return b.operand("Length", Length{Of: Property{Selector: b.selector, Name: name}})
}

// Name selects the node name as operand.
func (b *Builder) Name() *Builder {
	return b.operand("Name", NodeName{Selector: b.selector})
}

// LocalName selects the node name without prefix as operand.
func (b *Builder) LocalName() *Builder {
	return b.operand("LocalName", LocalName{Selector: b.selector})
}

// Lower folds the pending operand to lower case.
func (b *Builder) Lower() *Builder {
	if b.err != nil {
		return b
	}
	if b.pending == nil {
		return b.fail("Lower", "no operand to fold")
	}
	b.pending = Lower{Of: b.pending}
	return b
}

// Upper folds the pending operand to upper case.
func (b *Builder) Upper() *Builder {
	if b.err != nil {
		return b
	}
	if b.pending == nil {
		return b.fail("Upper", "no operand to fold")
	}
	b.pending = Upper{Of: b.pending}
	return b
}

func (b *Builder) compare(op Op, v any) *Builder {
	step := string(op)
	if b.err != nil {
		return b
	}
	if b.pending == nil {
		return b.fail(step, "comparison without operand")
	}
	val, err := ToValue(v)
	if err != nil {
		return b.fail(step, "%v", err)
	}
	left := b.pending
	b.pending = nil
	return b.term(step, Comparison{Left: left, Op: op, Value: val})
}

// Eq compares the pending operand for equality.
func (b *Builder) Eq(v any) *Builder { return b.compare(OpEq, v) }

// Neq compares the pending operand for inequality.
func (b *Builder) Neq(v any) *Builder { return b.compare(OpNe, v) }

// Lt compares the pending operand with <.
func (b *Builder) Lt(v any) *Builder { return b.compare(OpLt, v) }

// Leq compares the pending operand with <=.
func (b *Builder) Leq(v any) *Builder { return b.compare(OpLe, v) }

// Gt compares the pending operand with >.
func (b *Builder) Gt(v any) *Builder { return b.compare(OpGt, v) }

// Geq compares the pending operand with >=.
func (b *Builder) Geq(v any) *Builder { return b.compare(OpGe, v) }

// Like matches the pending operand against a pattern with % and _.
func (b *Builder) Like(pattern string) *Builder { return b.compare(OpLike, pattern) }

// IsNull requires the property to be absent.
func (b *Builder) IsNull(name string) *Builder {
	return b.term("IsNull", IsNull{Property: Property{Selector: b.selector, Name: name}})
}

// IsNotNull requires the property to be present.
func (b *Builder) IsNotNull(name string) *Builder {
	return b.term("IsNotNull", IsNotNull{Property: Property{Selector: b.selector, Name: name}})
}

// Contains adds a full text match on one property, or on all with "*".
func (b *Builder) Contains(name, text string) *Builder {
	return b.term("Contains", Contains{Selector: b.selector, Property: name, Text: text})
}

// IsDescendantOf requires the node to lie strictly below path.
func (b *Builder) IsDescendantOf(path string) *Builder {
	if err := content.ValidatePath(path); err != nil {
		return b.fail("IsDescendantOf", "%v", err)
	}
	return b.term("IsDescendantOf", Descendant{Selector: b.selector, Path: path})
}

// IsChildOf requires the node to be a direct child of path.
func (b *Builder) IsChildOf(path string) *Builder {
	if err := content.ValidatePath(path); err != nil {
		return b.fail("IsChildOf", "%v", err)
	}
	return b.term("IsChildOf", Child{Selector: b.selector, Path: path})
}

// IsSameNodeAs requires the node to be the one at path.
func (b *Builder) IsSameNodeAs(path string) *Builder {
	if err := content.ValidatePath(path); err != nil {
		return b.fail("IsSameNodeAs", "%v", err)
	}
	return b.term("IsSameNodeAs", SameNode{Selector: b.selector, Path: path})
}

// In requires the property to equal one of values. With no values it
// degrades to IsNull.
func (b *Builder) In(name string, values ...any) *Builder {
	if len(values) == 0 {
		return b.IsNull(name)
	}
	terms := make([]Expr, 0, len(values))
	for _, v := range values {
		val, err := ToValue(v)
		if err != nil {
			return b.fail("In", "%v", err)
		}
		terms = append(terms, Comparison{Left: Property{Selector: b.selector, Name: name}, Op: OpEq, Value: val})
	}
	if len(terms) == 1 {
		return b.term("In", terms[0])
	}
	return b.term("In", Or{Terms: terms})
}

// Expr adds a prebuilt expression as one term.
func (b *Builder) Expr(e Expr) *Builder {
	if e == nil {
		return b
	}
	return b.term("Expr", e)
}

// Not negates the next term or group.
func (b *Builder) Not() *Builder {
	if b.err != nil {
		return b
	}
	f := b.top()
	if f.expectOp {
		return b.fail("Not", "missing And/Or before Not")
	}
	f.negateNext = !f.negateNext
	return b
}

// And joins the previous and next terms.
func (b *Builder) And() *Builder {
	if b.err != nil {
		return b
	}
	f := b.top()
	if !f.expectOp {
		return b.fail("And", "no term before And")
	}
	f.expectOp = false
	return b
}

// Or separates the previous and next terms.
func (b *Builder) Or() *Builder {
	if b.err != nil {
		return b
	}
	f := b.top()
	if !f.expectOp {
		return b.fail("Or", "no term before Or")
	}
	f.runs = append(f.runs, nil)
	f.expectOp = false
	return b
}

// StartGroup opens a parenthesized group.
func (b *Builder) StartGroup() *Builder {
	if b.err != nil {
		return b
	}
	f := b.top()
	if f.expectOp {
		return b.fail("StartGroup", "missing And/Or before group")
	}
	b.frames = append(b.frames, &frame{runs: [][]Expr{nil}, negated: f.negateNext})
	f.negateNext = false
	return b
}

// EndGroup closes the innermost group.
func (b *Builder) EndGroup() *Builder {
	if b.err != nil {
		return b
	}
	if len(b.frames) == 1 {
		return b.fail("EndGroup", "no open group")
	}
	if b.pending != nil {
		return b.fail("EndGroup", "operand without comparison")
	}
	f := b.top()
	if !f.expectOp {
		return b.fail("EndGroup", "group ends without a term")
	}
	e, err := f.fold()
	if err != nil {
		return b.fail("EndGroup", "%v", err)
	}
	b.frames = b.frames[:len(b.frames)-1]
	if f.negated {
		e = Not{Term: e}
	}
	return b.term("EndGroup", e)
}

// Build closes open groups and returns the expression. An empty builder
// yields a nil expression.
func (b *Builder) Build() (Expr, error) {
	for b.err == nil && len(b.frames) > 1 {
		b.EndGroup()
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.pending != nil {
		return nil, &BuildError{Step: "Build", Message: "operand without comparison"}
	}
	f := b.top()
	if !f.expectOp && (len(f.runs) > 1 || len(f.runs[0]) > 0) {
		return nil, &BuildError{Step: "Build", Message: "dangling And/Or"}
	}
	return f.fold()
}

func (f *frame) fold() (Expr, error) {
	var alts []Expr
	for _, run := range f.runs {
		if len(run) == 0 {
			if len(f.runs) == 1 {
				return nil, nil
			}
			return nil, fmt.Errorf("empty alternative")
		}
		alts = append(alts, Conjoin(run...))
	}
	return Disjoin(alts...), nil
}

// ToValue converts a Go value to a typed property value. Nil is rejected;
// absence is expressed with IsNull.
func ToValue(v any) (content.Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil value, use IsNull")
	case content.Value:
		return val, nil
	case string:
		return content.NewString(val), nil
	case int:
		return content.LongValue(val), nil
	case int32:
		return content.LongValue(val), nil
	case int64:
		return content.LongValue(val), nil
	case float64:
		return content.DoubleValue(val), nil
	case float32:
		return content.DoubleValue(val), nil
	case bool:
		return content.BooleanValue(val), nil
	case time.Time:
		return content.NewDate(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
