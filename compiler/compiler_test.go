package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/compiler"
	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/ir"
	"github.com/latticedb/lattice/storage"
)

// fakeKV is a minimal in-memory KVReader/KVWriter used only to exercise the
// TypeManager in isolation from the durability-backed Storage, grounded on
// the teacher's sdk/executor mock_transport.go fake-dependency style.
type fakeKV struct {
	data map[string][]byte
}

func (f *fakeKV) Get(ks storage.KeyspaceID, key []byte) ([]byte, bool) {
	if f.data == nil {
		return nil, false
	}
	v, ok := f.data[string(key)]
	return v, ok
}

func (f *fakeKV) Iterate(ks storage.KeyspaceID, start, end []byte, fn func(key, value []byte) bool) {
	for k, v := range f.data {
		if k >= string(start) && (end == nil || k < string(end)) {
			if !fn([]byte(k), v) {
				return
			}
		}
	}
}

func (f *fakeKV) Insert(ks storage.KeyspaceID, key, value []byte) {
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[string(key)] = value
}

func (f *fakeKV) Put(ks storage.KeyspaceID, key, value []byte, preExisted bool) { f.Insert(ks, key, value) }
func (f *fakeKV) Delete(ks storage.KeyspaceID, key []byte) {
	delete(f.data, string(key))
}

func TestAnnotatorSeedsAndNarrowsTypeSet(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	person, err := tm.CreateType(kv, concept.KindEntity, "person")
	require.NoError(t, err)

	ctx := ir.NewPipelineTranslationContext()
	block := ctx.NewRootBlock()
	x := ctx.Variables.Declare(block.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
	block.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(x), Right: ir.LabelVertex("person")})

	ann := compiler.NewAnnotator(tm).AnnotateBlock(block, ctx.Variables)
	assert.Contains(t, ann.VariableTypes[x], person.ID)
	assert.Len(t, ann.VariableTypes[x], 1)
}

func TestExpressionCompilerInsertsImplicitCast(t *testing.T) {
	tree := &ir.ExpressionTree{
		Kind: ir.ExprBinaryOp,
		BinOp: ir.OpAdd,
		Left:  &ir.ExpressionTree{Kind: ir.ExprConstant, ConstantValue: concept.Value{Type: concept.ValueTypeLong, Long: 2}},
		Right: &ir.ExpressionTree{Kind: ir.ExprConstant, ConstantValue: concept.Value{Type: concept.ValueTypeDouble, Double: 3.5}},
	}
	prog, err := compiler.CompileExpression(tree, nil)
	require.NoError(t, err)
	assert.Equal(t, concept.ValueTypeDouble, prog.ResultType)

	var sawCast, sawAdd bool
	for _, instr := range prog.Instructions {
		if instr.Op == executable.OpCastIntegerToDouble {
			sawCast = true
		}
		if instr.Op == executable.OpAddDouble {
			sawAdd = true
		}
	}
	assert.True(t, sawCast, "mixed integer+double addition must insert an implicit cast")
	assert.True(t, sawAdd)
}

func TestExpressionCompilerEmptyListRejected(t *testing.T) {
	tree := &ir.ExpressionTree{Kind: ir.ExprListLiteral}
	_, err := compiler.CompileExpression(tree, nil)
	assert.ErrorIs(t, err, errs.Sentinel(compiler.ErrEmptyList))
}

func TestPlannerOrdersIsaBeforeComparison(t *testing.T) {
	ctx := ir.NewPipelineTranslationContext()
	block := ctx.NewRootBlock()
	x := ctx.Variables.Declare(block.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
	y := ctx.Variables.Declare(block.RootScope, "y", ir.CategoryValue, ctx.Scopes)
	block.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintComparison, CompareOp: ir.CompareEQ, Left: ir.VarVertex(x), Right: ir.VarVertex(y)})
	block.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(x), Right: ir.LabelVertex("person")})

	planner := compiler.NewPlanner(nil, nil)
	pipe := planner.PlanBlock(block)
	require.Len(t, pipe.Instructions, 2)
	assert.Equal(t, executable.OpTypeList, pipe.Instructions[0].Op, "isa constraints must be scheduled before comparisons")
}

// TestPlannerSelectsHasBoundedAttributeWhenAttributeBoundFirst mirrors
// `match $n isa name; $x has name $n;`: isa ranks ahead of has (see rank),
// so by the time the has constraint is scheduled its attribute variable
// ($n) is already bound and its owner variable ($x) is not — the planner
// must select OpHasBoundedAttribute, which executor/match.go implements as
// a real reverse scan (see executor/match_test.go's
// TestMatchExecutorHasBoundedAttributeReverseScan), not the unreachable op
// the code once claimed it was.
func TestPlannerSelectsHasBoundedAttributeWhenAttributeBoundFirst(t *testing.T) {
	ctx := ir.NewPipelineTranslationContext()
	block := ctx.NewRootBlock()
	n := ctx.Variables.Declare(block.RootScope, "n", ir.CategoryThingKind, ctx.Scopes)
	x := ctx.Variables.Declare(block.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
	block.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(n), Right: ir.LabelVertex("name")})
	block.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintHas, Owner: ir.VarVertex(x), Attribute: ir.VarVertex(n)})

	planner := compiler.NewPlanner(nil, nil)
	pipe := planner.PlanBlock(block)
	require.Len(t, pipe.Instructions, 2)
	assert.Equal(t, executable.OpTypeList, pipe.Instructions[0].Op)
	assert.Equal(t, executable.OpHasBoundedAttribute, pipe.Instructions[1].Op)
}

// TestAnnotatorAndPlannerHandleFunctionCallBinding drives a function-call
// binding constraint through the real Annotate->Plan path (spec.md §4.6
// "Function calls... each produce a binding constraint with an assigned
// variable and an expression or call payload"), the caller side of the
// gap executor/match_test.go's TestTablerConvergesOnCyclicGraph documents.
func TestAnnotatorAndPlannerHandleFunctionCallBinding(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	node, err := tm.CreateType(kv, concept.KindEntity, "node")
	require.NoError(t, err)

	ctx := ir.NewPipelineTranslationContext()
	block := ctx.NewRootBlock()
	x := ctx.Variables.Declare(block.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
	y := ctx.Variables.Declare(block.RootScope, "y", ir.CategoryThingKind, ctx.Scopes)
	block.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(x), Right: ir.LabelVertex("node")})
	block.Root.AddConstraint(ir.Constraint{
		Kind:     ir.ConstraintFunctionCallBinding,
		Assigned: []ir.VariableID{y},
		Call:     &ir.FunctionCall{FunctionLabel: "reach", Arguments: []ir.Vertex{ir.VarVertex(x)}},
	})

	ann := compiler.NewAnnotator(tm).AnnotateBlock(block, ctx.Variables)
	require.Empty(t, ann.Errors)
	assert.True(t, ann.ValueVariables[y], "a function-call-bound variable must be recorded as seen, not silently dropped")
	assert.False(t, ann.Unsatisfiable[block.RootScope])

	planner := compiler.NewPlanner(nil, ann)
	pipe := planner.PlanBlock(block)
	require.Len(t, pipe.Instructions, 2)
	last := pipe.Instructions[1]
	assert.Equal(t, executable.OpFunctionCallBinding, last.Op)
	assert.Equal(t, "reach", last.CallLabel)
	assert.Equal(t, []ir.VariableID{y}, last.AssignedVars)
	assert.Equal(t, []ir.VariableID{x}, last.CallArgs)
	_ = node
}

// TestAnnotatorAndPlannerHandleExpressionBinding mirrors the function-call
// case for an inline expression-binding constraint, e.g. `$n = length($s);`.
func TestAnnotatorAndPlannerHandleExpressionBinding(t *testing.T) {
	ctx := ir.NewPipelineTranslationContext()
	block := ctx.NewRootBlock()
	s := ctx.Variables.Declare(block.RootScope, "s", ir.CategoryValue, ctx.Scopes)
	n := ctx.Variables.Declare(block.RootScope, "n", ir.CategoryValue, ctx.Scopes)
	block.Root.AddConstraint(ir.Constraint{
		Kind:     ir.ConstraintExpressionBinding,
		Assigned: []ir.VariableID{n},
		Expression: &ir.ExpressionTree{
			Kind:     ir.ExprCall,
			CallName: "length",
			CallArgs: []*ir.ExpressionTree{{Kind: ir.ExprVariable, Variable: s}},
		},
	})

	ann := compiler.NewAnnotator(nil).AnnotateBlock(block, ctx.Variables)
	assert.True(t, ann.ValueVariables[n])

	planner := compiler.NewPlanner(nil, ann)
	pipe := planner.PlanBlock(block)
	require.Len(t, pipe.Instructions, 1)
	assert.Equal(t, executable.OpExpressionBinding, pipe.Instructions[0].Op)
	assert.Equal(t, []ir.VariableID{n}, pipe.Instructions[0].AssignedVars)
}
