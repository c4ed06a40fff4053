package ir

import "github.com/latticedb/lattice/concept"

// ExpressionKind tags one node of a parsed inline expression tree, the
// input the compiler's expression-compilation phase consumes (spec.md §4.7
// "Expression compilation").
type ExpressionKind uint8

const (
	ExprConstant ExpressionKind = iota
	ExprVariable
	ExprListLiteral
	ExprListIndex
	ExprListRange
	ExprCast
	ExprBinaryOp
	ExprUnaryOp
	ExprCall // built-in function call, e.g. length(), upper(), lower()
)

// BinaryOp is an arithmetic/string/temporal binary operator (spec.md §3
// "Expression bytecode").
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpConcat
	OpDurationAdd
	OpDurationSub
)

type UnaryOp uint8

const (
	OpNeg UnaryOp = iota
	OpAbs
	OpCeil
	OpFloor
	OpRound
)

// ExpressionTree is the parsed expression AST node, a tagged-variant struct
// in the same style as Constraint above rather than one Go interface per
// node kind (spec.md §9 "Polymorphic dispatch").
type ExpressionTree struct {
	Kind ExpressionKind

	ConstantValue concept.Value
	Variable      VariableID

	ListElements []*ExpressionTree

	ListTarget *ExpressionTree
	IndexExpr  *ExpressionTree
	RangeFrom  *ExpressionTree
	RangeTo    *ExpressionTree

	CastTo   string // target value-type category name
	Operand  *ExpressionTree

	BinOp BinaryOp
	Left  *ExpressionTree
	Right *ExpressionTree

	UnOp UnaryOp

	CallName string
	CallArgs []*ExpressionTree
}

// Equal compares two expression trees up to the given variable bijection
// (spec.md §4.6 "Structural equality"), used by Constraint.Equal for
// expression-binding constraints.
func (e *ExpressionTree) Equal(other *ExpressionTree, bij *VariableBijection) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Kind != other.Kind {
		return false
	}
	switch e.Kind {
	case ExprConstant:
		if e.ConstantValue.Type != other.ConstantValue.Type {
			return false
		}
		return string(e.ConstantValue.EncodeKeyBytes()) == string(other.ConstantValue.EncodeKeyBytes())
	case ExprVariable:
		return bij.Match(e.Variable, other.Variable)
	case ExprListLiteral:
		return exprListEqual(e.ListElements, other.ListElements, bij)
	case ExprListIndex:
		return e.ListTarget.Equal(other.ListTarget, bij) && e.IndexExpr.Equal(other.IndexExpr, bij)
	case ExprListRange:
		return e.ListTarget.Equal(other.ListTarget, bij) && e.RangeFrom.Equal(other.RangeFrom, bij) && e.RangeTo.Equal(other.RangeTo, bij)
	case ExprCast:
		return e.CastTo == other.CastTo && e.Operand.Equal(other.Operand, bij)
	case ExprBinaryOp:
		return e.BinOp == other.BinOp && e.Left.Equal(other.Left, bij) && e.Right.Equal(other.Right, bij)
	case ExprUnaryOp:
		return e.UnOp == other.UnOp && e.Operand.Equal(other.Operand, bij)
	case ExprCall:
		return e.CallName == other.CallName && exprListEqual(e.CallArgs, other.CallArgs, bij)
	}
	return false
}

func exprListEqual(a, b []*ExpressionTree, bij *VariableBijection) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i], bij) {
			return false
		}
	}
	return true
}
