package condition

import "github.com/ist-dresden/composum-platform-sub002/internal/content"

// Expr is a boolean condition over node attributes.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern lets renderers switch exhaustively over the
// tree; the text renderer and every backend renderer walk the same tree,
// so the live and archive forms of one condition cannot drift apart.
//
// Expr types:
//   - Comparison: operand op value
//   - IsNull / IsNotNull: property presence
//   - Contains: full text containment
//   - Descendant / Child / SameNode: structural position
//   - And / Or / Not: combinators
type Expr interface {
	exprNode()
}

// Operand is the left-hand side of a Comparison.
//
// This is a sealed interface. Operand types:
//   - Property: a property value of a selector
//   - Length: the length of a property value
//   - NodeName / LocalName: the node's own name
//   - Lower / Upper: case folding over another operand
type Operand interface {
	operandNode()
}

// DefaultSelector names the primary node of a query.
const DefaultSelector = "n"

// Op is a comparison operator.
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLike Op = "LIKE"
)

// Valid reports whether op is a known operator.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike:
		return true
	}
	return false
}

// Property references a property of the node bound to Selector.
//
// Rendered as:
//
//	n.[jcr:title]
type Property struct {
	Selector string
	Name     string
}

func (Property) operandNode() {}

// Length is the string length of a property value.
//
// Rendered as:
//
//	LENGTH(n.[jcr:title])
type Length struct {
	Of Property
}

func (Length) operandNode() {}

// NodeName is the name of the node bound to Selector.
type NodeName struct {
	Selector string
}

func (NodeName) operandNode() {}

// LocalName is the node name without its namespace prefix.
type LocalName struct {
	Selector string
}

func (LocalName) operandNode() {}

// Lower folds an operand to lower case.
type Lower struct {
	Of Operand
}

func (Lower) operandNode() {}

// Upper folds an operand to upper case.
type Upper struct {
	Of Operand
}

func (Upper) operandNode() {}

// Comparison compares an operand with a bound value.
//
// Rendered as:
//
//	n.[jcr:title] = $val1
//
// The value is never inlined into statement text; it is emitted as a
// positional binding so both statement forms bind the same typed value.
type Comparison struct {
	Left  Operand
	Op    Op
	Value content.Value
}

func (Comparison) exprNode() {}

// IsNull matches nodes without the property.
type IsNull struct {
	Property Property
}

func (IsNull) exprNode() {}

// IsNotNull matches nodes carrying the property.
type IsNotNull struct {
	Property Property
}

func (IsNotNull) exprNode() {}

// Contains is a full text match. Property "*" searches every property.
//
// Rendered as:
//
//	CONTAINS(n.[jcr:title], $val1)
//	CONTAINS(n.*, $val1)
type Contains struct {
	Selector string
	Property string
	Text     string
}

func (Contains) exprNode() {}

// AllProperties is the Contains wildcard.
const AllProperties = "*"

// Descendant matches nodes strictly below Path.
type Descendant struct {
	Selector string
	Path     string
}

func (Descendant) exprNode() {}

// Child matches direct children of Path.
type Child struct {
	Selector string
	Path     string
}

func (Child) exprNode() {}

// SameNode matches the node at Path.
type SameNode struct {
	Selector string
	Path     string
}

func (SameNode) exprNode() {}

// And is a conjunction. It always has at least two terms.
type And struct {
	Terms []Expr
}

func (And) exprNode() {}

// Or is a disjunction. It always has at least two terms.
type Or struct {
	Terms []Expr
}

func (Or) exprNode() {}

// Not negates its term.
type Not struct {
	Term Expr
}

func (Not) exprNode() {}

// Selectors returns every selector referenced by e, in first-use order.
func Selectors(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	var operand func(o Operand)
	operand = func(o Operand) {
		switch op := o.(type) {
		case Property:
			add(op.Selector)
		case Length:
			add(op.Of.Selector)
		case NodeName:
			add(op.Selector)
		case LocalName:
			add(op.Selector)
		case Lower:
			operand(op.Of)
		case Upper:
			operand(op.Of)
		}
	}
	var walk func(e Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case Comparison:
			operand(x.Left)
		case IsNull:
			add(x.Property.Selector)
		case IsNotNull:
			add(x.Property.Selector)
		case Contains:
			add(x.Selector)
		case Descendant:
			add(x.Selector)
		case Child:
			add(x.Selector)
		case SameNode:
			add(x.Selector)
		case And:
			for _, t := range x.Terms {
				walk(t)
			}
		case Or:
			for _, t := range x.Terms {
				walk(t)
			}
		case Not:
			walk(x.Term)
		}
	}
	if e != nil {
		walk(e)
	}
	return out
}

// Conjoin combines non-nil terms with And, flattening nested conjunctions.
// It returns nil for no terms and the term itself for one.
func Conjoin(terms ...Expr) Expr {
	var flat []Expr
	for _, t := range terms {
		switch x := t.(type) {
		case nil:
		case And:
			flat = append(flat, x.Terms...)
		default:
			flat = append(flat, t)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return And{Terms: flat}
}

// Disjoin combines non-nil terms with Or, flattening nested disjunctions.
func Disjoin(terms ...Expr) Expr {
	var flat []Expr
	for _, t := range terms {
		switch x := t.(type) {
		case nil:
		case Or:
			flat = append(flat, x.Terms...)
		default:
			flat = append(flat, t)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return Or{Terms: flat}
}
