package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/ir"
)

// TestTranslateIsaAndHas covers the plain case: `match $x isa person; $x has
// name $n;` — two statements, a shared variable ($x) referenced by both.
func TestTranslateIsaAndHas(t *testing.T) {
	stmts := []ir.Statement{
		{Kind: ir.StatementIsa, Left: ir.VarRef("x"), Right: ir.LabelRef("person")},
		{Kind: ir.StatementHas, Owner: ir.VarRef("x"), Attribute: ir.VarRef("n")},
	}

	ctx := ir.NewPipelineTranslationContext()
	block, err := ir.Translate(ctx, stmts)
	require.NoError(t, err)
	require.Len(t, block.Root.Constraints, 2)
	assert.Equal(t, ir.ConstraintIsa, block.Root.Constraints[0].Kind)
	assert.Equal(t, ir.ConstraintHas, block.Root.Constraints[1].Kind)

	// $x in the isa constraint must be the same variable as $x in the has
	// constraint's Owner (spec.md §4.6 "reuse of a name... binds to the
	// same variable").
	assert.Equal(t, block.Root.Constraints[0].Left, block.Root.Constraints[1].Owner)
	assert.Equal(t, 2, ctx.Variables.Len(), "x and n, no more")
}

// TestTranslateMatchesHandBuiltEquivalent checks that Translate's output is
// structurally equal (up to variable bijection) to the same pattern built
// directly against the IR, the way every other package's tests do it (e.g.
// query/manager_test.go's buildBlock closure).
func TestTranslateMatchesHandBuiltEquivalent(t *testing.T) {
	stmts := []ir.Statement{
		{Kind: ir.StatementIsa, Left: ir.VarRef("x"), Right: ir.LabelRef("person")},
	}
	ctx := ir.NewPipelineTranslationContext()
	translated, err := ir.Translate(ctx, stmts)
	require.NoError(t, err)

	handCtx := ir.NewPipelineTranslationContext()
	handBlock := handCtx.NewRootBlock()
	y := handCtx.Variables.Declare(handBlock.RootScope, "y", ir.CategoryThingKind, handCtx.Scopes)
	handBlock.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(y), Right: ir.LabelVertex("person")})

	assert.True(t, translated.Equal(handBlock))
}

// TestTranslateComparisonWithParameter covers a comparison against a
// literal parameter, e.g. `match $x isa age; $x > 18;`.
func TestTranslateComparisonWithParameter(t *testing.T) {
	stmts := []ir.Statement{
		{Kind: ir.StatementIsa, Left: ir.VarRef("x"), Right: ir.LabelRef("age")},
		{
			Kind:      ir.StatementComparison,
			CompareOp: ir.CompareGT,
			Left:      ir.VarRef("x"),
			Right:     ir.ParamRef(concept.Value{Type: concept.ValueTypeLong, Long: 18}),
		},
	}
	ctx := ir.NewPipelineTranslationContext()
	block, err := ir.Translate(ctx, stmts)
	require.NoError(t, err)
	require.Len(t, block.Root.Constraints, 2)

	cmp := block.Root.Constraints[1]
	assert.Equal(t, ir.ConstraintComparison, cmp.Kind)
	assert.Equal(t, ir.CompareGT, cmp.CompareOp)
	require.Equal(t, ir.VertexParameter, cmp.Right.Kind)
	param := ctx.Parameters.Get(cmp.Right.Parameter)
	assert.Equal(t, int64(18), param.Value.Long)
}

// TestTranslateDisjunction covers `match $x isa person; { $x has name "ann";
// } or { $x has name "bob"; };` — two branches, each referencing the
// outer $x by name and comparing it against its own literal parameter.
func TestTranslateDisjunction(t *testing.T) {
	stmts := []ir.Statement{
		{Kind: ir.StatementIsa, Left: ir.VarRef("x"), Right: ir.LabelRef("person")},
		{
			Kind: ir.StatementDisjunction,
			Branches: [][]ir.Statement{
				{{Kind: ir.StatementHas, Owner: ir.VarRef("x"), Attribute: ir.ParamRef(concept.Value{Type: concept.ValueTypeString, String: "ann"})}},
				{{Kind: ir.StatementHas, Owner: ir.VarRef("x"), Attribute: ir.ParamRef(concept.Value{Type: concept.ValueTypeString, String: "bob"})}},
			},
		},
	}
	ctx := ir.NewPipelineTranslationContext()
	block, err := ir.Translate(ctx, stmts)
	require.NoError(t, err)
	require.Len(t, block.Root.Constraints, 1)
	require.Len(t, block.Root.Nested, 1)

	disjunction := block.Root.Nested[0]
	require.Len(t, disjunction.Branches, 2)
	for _, branch := range disjunction.Branches {
		require.Len(t, branch.Constraints, 1)
		owner := branch.Constraints[0].Owner
		require.Equal(t, ir.VertexVariable, owner.Kind)
		assert.Equal(t, block.Root.Constraints[0].Left.Variable, owner.Variable, "$x inside a disjunction branch must resolve to the outer variable")
	}
}

// TestTranslateNegation covers `match $x isa person; not { $x isa banned;
// };`.
func TestTranslateNegation(t *testing.T) {
	stmts := []ir.Statement{
		{Kind: ir.StatementIsa, Left: ir.VarRef("x"), Right: ir.LabelRef("person")},
		{
			Kind:  ir.StatementNegation,
			Inner: []ir.Statement{{Kind: ir.StatementIsa, Left: ir.VarRef("x"), Right: ir.LabelRef("banned")}},
		},
	}
	ctx := ir.NewPipelineTranslationContext()
	block, err := ir.Translate(ctx, stmts)
	require.NoError(t, err)
	require.Len(t, block.Root.Nested, 1)

	negation := block.Root.Nested[0]
	require.NotNil(t, negation.Inner)
	require.Len(t, negation.Inner.Constraints, 1)
	assert.Equal(t, block.Root.Constraints[0].Left, negation.Inner.Constraints[0].Left, "$x inside the negation must resolve to the outer variable")
}

// TestTranslateFunctionCallBinding covers `match $x isa node; $y = reach($x);`.
func TestTranslateFunctionCallBinding(t *testing.T) {
	stmts := []ir.Statement{
		{Kind: ir.StatementIsa, Left: ir.VarRef("x"), Right: ir.LabelRef("node")},
		{
			Kind:     ir.StatementFunctionCallBinding,
			Assigned: []string{"y"},
			Call:     &ir.FunctionCallRef{FunctionLabel: "reach", Arguments: []ir.VertexRef{ir.VarRef("x")}},
		},
	}
	ctx := ir.NewPipelineTranslationContext()
	block, err := ir.Translate(ctx, stmts)
	require.NoError(t, err)
	require.Len(t, block.Root.Constraints, 2)

	binding := block.Root.Constraints[1]
	require.Equal(t, ir.ConstraintFunctionCallBinding, binding.Kind)
	require.Len(t, binding.Assigned, 1)
	require.NotNil(t, binding.Call)
	assert.Equal(t, "reach", binding.Call.FunctionLabel)
	require.Len(t, binding.Call.Arguments, 1)
	assert.Equal(t, block.Root.Constraints[0].Left, binding.Call.Arguments[0], "reach's argument must resolve to the same $x variable as the isa constraint")
}

// TestTranslateExpressionBinding covers `$n = length($s);`.
func TestTranslateExpressionBinding(t *testing.T) {
	stmts := []ir.Statement{
		{
			Kind:       ir.StatementExpressionBinding,
			Assigned:   []string{"n"},
			Expression: &ir.ExpressionRef{Kind: ir.ExprCall, CallName: "length", CallArgs: []*ir.ExpressionRef{{Kind: ir.ExprVariable, VariableName: "s"}}},
		},
	}
	ctx := ir.NewPipelineTranslationContext()
	block, err := ir.Translate(ctx, stmts)
	require.NoError(t, err)
	require.Len(t, block.Root.Constraints, 1)

	binding := block.Root.Constraints[0]
	require.Equal(t, ir.ConstraintExpressionBinding, binding.Kind)
	require.NotNil(t, binding.Expression)
	assert.Equal(t, "length", binding.Expression.CallName)
	require.Len(t, binding.Expression.CallArgs, 1)
	assert.Equal(t, ir.ExprVariable, binding.Expression.CallArgs[0].Kind)
}
