// Package condition defines the condition model used by content queries.
//
// A condition is a sealed expression tree built once per query, either with
// the fluent Builder or by parsing a previously rendered statement. The tree
// is immutable after construction and renders to two statement forms:
//
//   - Live, which names node attributes as they appear in the live tree
//     (jcr:primaryType, jcr:mixinTypes, jcr:uuid).
//   - Archive, which names the captured counterparts of those attributes in
//     the version archive (jcr:frozenPrimaryType, jcr:frozenMixinTypes,
//     jcr:frozenUuid).
//
// Both forms share one ordered list of value bindings ($val1..$valN), so a
// value bound once decodes identically wherever it is used.
//
// # Statement form
//
// The statement grammar is a small subset of JCR-SQL2 WHERE clauses:
//
//	expr     = or
//	or       = and { "OR" and }
//	and      = unary { "AND" unary }
//	unary    = "NOT" unary | primary
//	primary  = "(" expr ")" | position | contains | operand cmp
//	position = ("ISDESCENDANTNODE" | "ISCHILDNODE" | "ISSAMENODE") "(" sel "," literal ")"
//	contains = "CONTAINS" "(" sel "." ( "[" name "]" | "*" ) "," binding ")"
//	operand  = prop | "LENGTH(" prop ")" | "NAME(" sel ")" | "LOCALNAME(" sel ")"
//	         | "LOWER(" operand ")" | "UPPER(" operand ")"
//	cmp      = op binding | "IS NULL" | "IS NOT NULL"
//	prop     = sel "." "[" name "]"
//
// Parse accepts either form and recovers an equivalent tree.
package condition
