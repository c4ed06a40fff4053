package query_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/functions"
	"github.com/latticedb/lattice/ir"
	"github.com/latticedb/lattice/query"
	"github.com/latticedb/lattice/storage"
)

type fakeKV struct{ data map[string][]byte }

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
func (f *fakeKV) Delete(ks storage.KeyspaceID, key []byte)                     { delete(f.data, string(key)) }

func TestManagerPlanCacheHitsOnSecondRun(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)
	person, err := tm.CreateType(kv, concept.KindEntity, "person")
	require.NoError(t, err)
	_, err = things.CreateEntity(kv, person)
	require.NoError(t, err)

	mgr := query.NewManager(tm, things, functions.NewRegistry(), 8)

	buildBlock := func() (*ir.Block, *ir.VariableRegistry) {
		ctx := ir.NewPipelineTranslationContext()
		block := ctx.NewRootBlock()
		x := ctx.Variables.Declare(block.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
		block.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(x), Right: ir.LabelVertex("person")})
		return block, ctx.Variables
	}

	block1, vars1 := buildBlock()
	ann1 := mgr.Annotate(block1, vars1)
	pipe1, err := mgr.Plan(block1, ann1, nil)
	require.NoError(t, err)
	require.Len(t, pipe1.Instructions, 1)

	batch, err := mgr.Run(kv, nil, 1, &pipe1)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Len())

	// A second, structurally identical block must hit the cache and return
	// an equal plan without re-invoking the planner.
	block2, vars2 := buildBlock()
	ann2 := mgr.Annotate(block2, vars2)
	pipe2, err := mgr.Plan(block2, ann2, nil)
	require.NoError(t, err)
	assert.Equal(t, pipe1.Instructions[0].Op, pipe2.Instructions[0].Op)
	if diff := cmp.Diff(pipe1.Instructions, pipe2.Instructions); diff != "" {
		t.Errorf("cached and freshly planned pipelines diverged (-want +got):\n%s", diff)
	}
}

func TestManagerPlanRejectsUnknownLabel(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)
	mgr := query.NewManager(tm, things, functions.NewRegistry(), 8)

	ctx := ir.NewPipelineTranslationContext()
	block := ctx.NewRootBlock()
	x := ctx.Variables.Declare(block.RootScope, "x", ir.CategoryThingKind, ctx.Scopes)
	block.Root.AddConstraint(ir.Constraint{Kind: ir.ConstraintIsa, Left: ir.VarVertex(x), Right: ir.LabelVertex("persn")})

	ann := mgr.Annotate(block, ctx.Variables)
	require.Len(t, ann.Errors, 1)

	_, err := mgr.Plan(block, ann, nil)
	require.Error(t, err)
}
