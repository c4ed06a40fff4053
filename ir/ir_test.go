package ir_test

import (
	"testing"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableRegistryDeclareReusesNameInScope(t *testing.T) {
	tree := ir.NewScopeTree()
	root := tree.Root()
	reg := ir.NewVariableRegistry()

	x1 := reg.Declare(root, "x", ir.CategoryThingKind, tree)
	x2 := reg.Declare(root, "x", ir.CategoryThingKind, tree)
	require.Equal(t, x1, x2, "declaring the same name twice in one scope must return the same variable")

	y := reg.Declare(root, "y", ir.CategoryThingKind, tree)
	assert.NotEqual(t, x1, y)
}

func TestVariableRegistryChildScopeInheritsParentBinding(t *testing.T) {
	tree := ir.NewScopeTree()
	root := tree.Root()
	child := tree.Child(root)
	reg := ir.NewVariableRegistry()

	x1 := reg.Declare(root, "x", ir.CategoryThingKind, tree)
	x2 := reg.Declare(child, "x", ir.CategoryThingKind, tree)
	assert.Equal(t, x1, x2, "a name reused in a child scope must bind to the parent's variable")
}

func TestConjunctionStructuralEqualityUpToBijection(t *testing.T) {
	ctx := ir.NewPipelineTranslationContext()
	a := ctx.NewRootBlock()
	x := ctx.Variables.Declare(a.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
	a.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(x), Right: ir.LabelVertex("person")})

	ctx2 := ir.NewPipelineTranslationContext()
	b := ctx2.NewRootBlock()
	y := ctx2.Variables.Declare(b.RootScope, "y", ir.CategoryThingKind, ctx2.Scopes)
	b.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(y), Right: ir.LabelVertex("person")})

	assert.True(t, a.Equal(b), "differently-named variables with identical constraint shape must be structurally equal")
}

func TestConjunctionStructuralInequalityOnDifferentLabel(t *testing.T) {
	ctx := ir.NewPipelineTranslationContext()
	a := ctx.NewRootBlock()
	x := ctx.Variables.Declare(a.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
	a.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(x), Right: ir.LabelVertex("person")})

	ctx2 := ir.NewPipelineTranslationContext()
	b := ctx2.NewRootBlock()
	y := ctx2.Variables.Declare(b.RootScope, "y", ir.CategoryThingKind, ctx2.Scopes)
	b.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(y), Right: ir.LabelVertex("animal")})

	assert.False(t, a.Equal(b))
}

func TestStructuralHashStableUnderVariableRenaming(t *testing.T) {
	ctx := ir.NewPipelineTranslationContext()
	a := ctx.NewRootBlock()
	x := ctx.Variables.Declare(a.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
	z := ctx.Variables.Declare(a.RootScope, "z", ir.CategoryThingKind, ctx.Scopes)
	a.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(x), Right: ir.LabelVertex("person")})
	a.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintHas, Owner: ir.VarVertex(x), Attribute: ir.VarVertex(z)})

	ctx2 := ir.NewPipelineTranslationContext()
	b := ctx2.NewRootBlock()
	p := ctx2.Variables.Declare(b.RootScope, "p", ir.CategoryThingKind, ctx2.Scopes)
	q := ctx2.Variables.Declare(b.RootScope, "q", ir.CategoryThingKind, ctx2.Scopes)
	b.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(p), Right: ir.LabelVertex("person")})
	b.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintHas, Owner: ir.VarVertex(p), Attribute: ir.VarVertex(q)})

	assert.Equal(t, a.Root.StructuralHash64(), b.Root.StructuralHash64())
}

func TestNestedNegationStructuralEquality(t *testing.T) {
	ctx := ir.NewPipelineTranslationContext()
	a := ctx.NewRootBlock()
	x := ctx.Variables.Declare(a.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
	innerA := ctx.NewNestedConjunction(a.RootScope)
	innerA.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(x), Right: ir.LabelVertex("banned")})
	a.Root.AddNegation(innerA.ScopeID, innerA)

	ctx2 := ir.NewPipelineTranslationContext()
	b := ctx2.NewRootBlock()
	y := ctx2.Variables.Declare(b.RootScope, "y", ir.CategoryThingKind, ctx2.Scopes)
	innerB := ctx2.NewNestedConjunction(b.RootScope)
	innerB.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(y), Right: ir.LabelVertex("banned")})
	b.Root.AddNegation(innerB.ScopeID, innerB)

	assert.True(t, a.Equal(b))
}

func TestExpressionTreeHoldsConceptValue(t *testing.T) {
	tree := &ir.ExpressionTree{Kind: ir.ExprConstant, ConstantValue: concept.Value{Type: concept.ValueTypeLong, Long: 42}}
	assert.Equal(t, int64(42), tree.ConstantValue.Long)
}
