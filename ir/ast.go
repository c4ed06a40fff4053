package ir

import "github.com/latticedb/lattice/concept"

// StatementKind tags one parsed-pattern statement: the shape a TypeQL text
// parser would hand to Translate (spec.md §1 "the TypeQL text parser (its
// AST is an input)" — the parser itself is out of scope, but the AST it
// produces, and the translation consuming it, are not). Fields mirror
// Constraint's variant layout one-for-one, except vertices are still bare
// names (VertexRef) rather than resolved Vertex/VariableID values.
type StatementKind uint8

const (
	StatementIsa StatementKind = iota
	StatementHas
	StatementLinks
	StatementSub
	StatementOwns
	StatementPlays
	StatementRelates
	StatementLabel
	StatementKindOf
	StatementIID
	StatementIs
	StatementComparison
	StatementExpressionBinding
	StatementFunctionCallBinding
	StatementDisjunction
	StatementNegation
	StatementOptional
)

// RefKind is the shape of one AST-level vertex reference, resolved against
// a PipelineTranslationContext during translation.
type RefKind uint8

const (
	RefVariable RefKind = iota
	RefLabel
	RefParameter
)

// VertexRef names an AST-level vertex before name resolution: a variable
// by name, a literal type label, or a named parameter still to be added to
// the ParameterRegistry.
type VertexRef struct {
	Kind  RefKind
	Name  string         // RefVariable: variable name without its "$" sigil
	Label string         // RefLabel
	Value concept.Value  // RefParameter
}

func VarRef(name string) VertexRef              { return VertexRef{Kind: RefVariable, Name: name} }
func LabelRef(label string) VertexRef           { return VertexRef{Kind: RefLabel, Label: label} }
func ParamRef(value concept.Value) VertexRef    { return VertexRef{Kind: RefParameter, Value: value} }

// ExpressionRef mirrors ExpressionTree with variables still referenced by
// name (spec.md §4.7 "Expression compilation" consumes the resolved
// ExpressionTree this is translated into).
type ExpressionRef struct {
	Kind ExpressionKind

	ConstantValue concept.Value
	VariableName  string

	ListElements []*ExpressionRef

	ListTarget *ExpressionRef
	IndexExpr  *ExpressionRef
	RangeFrom  *ExpressionRef
	RangeTo    *ExpressionRef

	CastTo  string
	Operand *ExpressionRef

	BinOp BinaryOp
	Left  *ExpressionRef
	Right *ExpressionRef

	UnOp UnaryOp

	CallName string
	CallArgs []*ExpressionRef
}

// FunctionCallRef mirrors FunctionCall with its argument vertices still
// unresolved.
type FunctionCallRef struct {
	FunctionLabel string
	Arguments     []VertexRef
}

// Statement is one parsed-pattern AST node (spec.md §4.6 "Translation from
// parsed AST"): a StatementKind discriminant, the populated fields for
// that variant, or — for disjunction/negation/optional — nested statement
// lists forming sub-blocks. Translate walks a []Statement the same way the
// compiler's Annotator walks a Conjunction, one level at a time.
type Statement struct {
	Kind StatementKind

	// isa / sub / owns / plays / relates / label / kind / is / comparison
	// (comparison's operands are Left/Right too, alongside CompareOp below)
	Left  VertexRef
	Right VertexRef

	// has
	Owner     VertexRef
	Attribute VertexRef

	// links
	Relation VertexRef
	Player   VertexRef
	Role     VertexRef

	// iid
	IID []byte

	// comparison
	CompareOp ComparisonOp

	// expression-binding / function-call-binding: the variable names on the
	// left-hand side of the assignment, e.g. `$x = len($y)` -> Assigned ==
	// []string{"x"}.
	Assigned   []string
	Expression *ExpressionRef
	Call       *FunctionCallRef

	// StatementDisjunction: one sub-statement list per branch (spec.md §4.6
	// "Disjunction branches become sub-conjunctions of a shared Disjunction
	// node, each with its own scope and a unique BranchID").
	Branches [][]Statement

	// StatementNegation / StatementOptional: the wrapped sub-block.
	Inner []Statement
}
