package ir

// ConstraintKind tags the constraint shapes of spec.md §3 "Constraint".
type ConstraintKind uint8

const (
	ConstraintIsa ConstraintKind = iota
	ConstraintHas
	ConstraintLinks
	ConstraintSub
	ConstraintOwns
	ConstraintPlays
	ConstraintRelates
	ConstraintLabel
	ConstraintKindOf // "kind" constraint, e.g. `$x isa! entity;` restricting to a meta-kind
	ConstraintIID
	ConstraintIs
	ConstraintComparison
	ConstraintExpressionBinding
	ConstraintFunctionCallBinding

	// Internal optimizer constraints (spec.md §3), inserted by the planner
	// rather than translation.
	ConstraintIndexedRelation
	ConstraintLinksDeduplication
	ConstraintUnsatisfiable
)

// ComparisonOp is the operator of a ConstraintComparison.
type ComparisonOp uint8

const (
	CompareEQ ComparisonOp = iota
	CompareNEQ
	CompareLT
	CompareLTE
	CompareGT
	CompareGTE
	CompareContains
	CompareLike
)

// Constraint is a tagged record over vertices, generalizing the variant set
// named in spec.md §3. Only the fields relevant to Kind are populated; this
// mirrors the teacher's tagged-struct style (ir/ir.go ChainElement) rather
// than a Go interface per kind, since spec.md §9 "Polymorphic dispatch"
// calls for a tagged variant matched on, not virtual dispatch.
type Constraint struct {
	Kind ConstraintKind

	// isa(Thing, Type) / sub(Sub, Super) / owns / plays / relates / label / kind / is
	Left  Vertex
	Right Vertex

	// has(Owner, Attribute)
	Owner     Vertex
	Attribute Vertex

	// links(Relation, Player, Role)
	Relation Vertex
	Player   Vertex
	Role     Vertex

	// iid(Thing, Parameter)
	IIDParam ParameterID

	// comparison(op, lhs, rhs)
	CompareOp ComparisonOp

	// expression-binding(assigned, tree) / function-call-binding(assigned, call)
	Assigned   []VariableID
	Expression *ExpressionTree
	Call       *FunctionCall

	// ConstraintIndexedRelation: relation, player1, player2, role1, role2
	IndexRelation Vertex
	IndexPlayer1  Vertex
	IndexPlayer2  Vertex
	IndexRole1    Vertex
	IndexRole2    Vertex
}

// FunctionCall is the payload of a function-call-binding constraint
// (spec.md §3).
type FunctionCall struct {
	FunctionLabel string
	Arguments     []Vertex
}

// Equal compares two constraints up to the given variable bijection
// (spec.md §4.6 "Structural equality").
func (c Constraint) Equal(other Constraint, bij *VariableBijection) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case ConstraintIsa, ConstraintSub, ConstraintOwns, ConstraintPlays, ConstraintRelates, ConstraintLabel, ConstraintKindOf, ConstraintIs:
		return c.Left.Equal(other.Left, bij) && c.Right.Equal(other.Right, bij)
	case ConstraintHas:
		return c.Owner.Equal(other.Owner, bij) && c.Attribute.Equal(other.Attribute, bij)
	case ConstraintLinks:
		return c.Relation.Equal(other.Relation, bij) && c.Player.Equal(other.Player, bij) && c.Role.Equal(other.Role, bij)
	case ConstraintIID:
		return c.Left.Equal(other.Left, bij) && c.IIDParam == other.IIDParam
	case ConstraintComparison:
		return c.CompareOp == other.CompareOp && c.Left.Equal(other.Left, bij) && c.Right.Equal(other.Right, bij)
	case ConstraintExpressionBinding:
		return assignedEqual(c.Assigned, other.Assigned, bij) && c.Expression.Equal(other.Expression, bij)
	case ConstraintFunctionCallBinding:
		return assignedEqual(c.Assigned, other.Assigned, bij) && c.Call.Equal(other.Call, bij)
	default:
		return false // internal optimizer constraints never appear pre-planning
	}
}

// assignedEqual compares two binding constraints' assigned-variable lists up
// to bij, positionally: `$x, $y = ...` and `$y, $x = ...` are not the same
// binding.
func assignedEqual(a, b []VariableID, bij *VariableBijection) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bij.Match(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Equal compares two function calls up to bij.
func (c *FunctionCall) Equal(other *FunctionCall, bij *VariableBijection) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.FunctionLabel != other.FunctionLabel || len(c.Arguments) != len(other.Arguments) {
		return false
	}
	for i := range c.Arguments {
		if !c.Arguments[i].Equal(other.Arguments[i], bij) {
			return false
		}
	}
	return true
}
