package executor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/encoding"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/executor"
	"github.com/latticedb/lattice/ir"
	"github.com/latticedb/lattice/storage"
)

// fakeKV is a minimal in-memory KVReader/KVWriter, mirroring the compiler
// package's test double (compiler/compiler_test.go), used here to exercise
// the executor against a real TypeManager/ThingManager without a durability
// backend.
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
func (f *fakeKV) Delete(ks storage.KeyspaceID, key []byte)                     { delete(f.data, string(key)) }

func TestMatchExecutorIsaThenHas(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)

	person, err := tm.CreateType(kv, concept.KindEntity, "person")
	require.NoError(t, err)
	name, err := tm.CreateType(kv, concept.KindAttribute, "name")
	require.NoError(t, err)
	tm.SetValueType(name, concept.ValueTypeString)
	tm.SetOwns(kv, person, name, concept.Annotations{CardMax: -1})

	alice, err := things.CreateEntity(kv, person)
	require.NoError(t, err)
	bob, err := things.CreateEntity(kv, person)
	require.NoError(t, err)
	aliceName, err := things.PutAttribute(kv, name, concept.Value{Type: concept.ValueTypeString, String: "alice"})
	require.NoError(t, err)
	bobName, err := things.PutAttribute(kv, name, concept.Value{Type: concept.ValueTypeString, String: "bob"})
	require.NoError(t, err)
	require.NoError(t, things.SetHas(kv, person, alice, name, aliceName))
	require.NoError(t, things.SetHas(kv, person, bob, name, bobName))

	pipe := &executable.Pipeline{Instructions: []executable.Instruction{
		{Op: executable.OpTypeList, TypeIDs: []encoding.TypeID{person.ID}, Output1: 0, SortVariable: 0},
		{Op: executable.OpHasUnboundedSortedOwner, Output1: 0, Output2: 1},
	}}

	exec := executor.NewMatchExecutor(kv, tm, things, nil, 2)
	batch, err := exec.Run(pipe)
	require.NoError(t, err)
	require.Equal(t, 2, batch.Len())

	owners := map[string]bool{}
	attrs := map[string]bool{}
	for _, row := range batch.Rows {
		owners[string(row.Cells[0].Concept.Vertex)] = true
		attrs[string(row.Cells[1].Concept.Vertex)] = true
	}
	assert.True(t, owners[string(alice.Vertex)])
	assert.True(t, owners[string(bob.Vertex)])
	assert.True(t, attrs[string(aliceName.Vertex)])
	assert.True(t, attrs[string(bobName.Vertex)])
}

// TestMatchExecutorHasBoundedAttributeReverseScan exercises OpHasBoundedAttribute,
// the reverse-indexed has category the planner selects once a has
// constraint's attribute side is already bound (spec.md §4.7
// "bounded-by-attribute"), e.g. for `match $n isa name; $x has name $n;`.
// Alice and Bob share one interned "shared" name value, so scanning owners
// of that attribute must return both.
func TestMatchExecutorHasBoundedAttributeReverseScan(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)

	person, err := tm.CreateType(kv, concept.KindEntity, "person")
	require.NoError(t, err)
	name, err := tm.CreateType(kv, concept.KindAttribute, "name")
	require.NoError(t, err)
	tm.SetValueType(name, concept.ValueTypeString)
	tm.SetOwns(kv, person, name, concept.Annotations{CardMax: -1})

	alice, err := things.CreateEntity(kv, person)
	require.NoError(t, err)
	bob, err := things.CreateEntity(kv, person)
	require.NoError(t, err)
	shared, err := things.PutAttribute(kv, name, concept.Value{Type: concept.ValueTypeString, String: "shared"})
	require.NoError(t, err)
	require.NoError(t, things.SetHas(kv, person, alice, name, shared))
	require.NoError(t, things.SetHas(kv, person, bob, name, shared))

	pipe := &executable.Pipeline{Instructions: []executable.Instruction{
		{Op: executable.OpTypeList, TypeIDs: []encoding.TypeID{person.ID}, Output1: 0, SortVariable: 0},
		{Op: executable.OpHasUnboundedSortedOwner, Output1: 0, Output2: 1},
		{Op: executable.OpHasBoundedAttribute, Output1: 2, Output2: 1},
	}}

	exec := executor.NewMatchExecutor(kv, tm, things, nil, 3)
	batch, err := exec.Run(pipe)
	require.NoError(t, err)
	require.Equal(t, 4, batch.Len(), "2 initial owners x 2 reverse-scanned owners of the shared attribute")

	pairs := map[[2]string]bool{}
	for _, row := range batch.Rows {
		pairs[[2]string{string(row.Cells[0].Concept.Vertex), string(row.Cells[2].Concept.Vertex)}] = true
	}
	for _, o1 := range []string{string(alice.Vertex), string(bob.Vertex)} {
		for _, o2 := range []string{string(alice.Vertex), string(bob.Vertex)} {
			assert.True(t, pairs[[2]string{o1, o2}], "owner pair (%q,%q) missing from reverse scan", o1, o2)
		}
	}
}

func TestWriteExecutorThenMatchExecutorReadsBack(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)

	person, err := tm.CreateType(kv, concept.KindEntity, "person")
	require.NoError(t, err)

	we := executor.NewWriteExecutor(kv, tm, things)
	writeInstrs := []executable.WriteInstruction{
		{Op: executable.WritePutEntity, TypeLabel: "person", Output: 0},
	}
	seed := executor.NewRow(1)
	rows, err := we.Run(writeInstrs, []executor.Row{seed})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	created := rows[0].Cells[0].Concept

	pipe := &executable.Pipeline{Instructions: []executable.Instruction{
		{Op: executable.OpTypeList, TypeIDs: []encoding.TypeID{person.ID}, Output1: 0, SortVariable: 0},
	}}
	exec := executor.NewMatchExecutor(kv, tm, things, nil, 1)
	batch, err := exec.Run(pipe)
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, created.Vertex, batch.Rows[0].Cells[0].Concept.Vertex)
}

// TestTablerConvergesOnCyclicGraph exercises the recursive tabled-function
// scenario directly against a hand-built FunctionDef/Pipeline. This bypasses
// Manager.Annotate/Plan not because of any Annotator limitation (the
// Annotator and planner both handle ConstraintFunctionCallBinding fine, see
// compiler/compiler_test.go) but because
// executor.FunctionDef.Body is itself a pre-planned executable.Pipeline
// rather than an ir.Block — a function's own body never goes through
// annotate/plan, only the query that calls it does (see
// compiler/compiler_test.go's TestAnnotatorAndPlannerHandleFunctionCallBinding
// and TestAnnotatorAndPlannerHandleExpressionBinding for the caller-side
// coverage). The graph is a 3-cycle a->b->c->a, so reach(a) must equal
// exactly {b, c, a}.
func TestTablerConvergesOnCyclicGraph(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)

	node, err := tm.CreateType(kv, concept.KindEntity, "node")
	require.NoError(t, err)
	edge, err := tm.CreateType(kv, concept.KindRelation, "edge")
	require.NoError(t, err)
	from, err := tm.CreateType(kv, concept.KindRole, "from")
	require.NoError(t, err)
	to, err := tm.CreateType(kv, concept.KindRole, "to")
	require.NoError(t, err)
	tm.SetRelates(kv, edge, from)
	tm.SetRelates(kv, edge, to)
	tm.SetPlays(kv, node, from)
	tm.SetPlays(kv, node, to)

	a, err := things.CreateEntity(kv, node)
	require.NoError(t, err)
	b, err := things.CreateEntity(kv, node)
	require.NoError(t, err)
	c, err := things.CreateEntity(kv, node)
	require.NoError(t, err)

	mkEdge := func(from_, to_ concept.ThingVertexRef) {
		rel, err := things.CreateRelation(kv, edge)
		require.NoError(t, err)
		require.NoError(t, things.AddPlayer(kv, rel, node, from_, from))
		require.NoError(t, things.AddPlayer(kv, rel, node, to_, to))
	}
	mkEdge(a, b)
	mkEdge(b, c)
	mkEdge(c, a)

	// reach(x) body, variables: 0=x (param), 1=y (return), 2=rel, 3=z.
	findNeighbor := func(xVar, relVar ir.VariableID) []executable.Instruction {
		return []executable.Instruction{
			{Op: executable.OpLinksBoundedByPlayer, Output1: relVar, Output2: xVar, RoleTypeID: from.ID},
		}
	}
	branchDirect := executable.Pipeline{Instructions: append(findNeighbor(0, 2),
		executable.Instruction{Op: executable.OpLinksBounded, Output1: 2, Output2: 1, RoleTypeID: to.ID},
	)}
	branchRecursive := executable.Pipeline{Instructions: append(findNeighbor(0, 2),
		executable.Instruction{Op: executable.OpLinksBounded, Output1: 2, Output2: 3, RoleTypeID: to.ID},
		executable.Instruction{Op: executable.OpFunctionCallBinding, CallLabel: "reach", CallArgs: []ir.VariableID{3}, AssignedVars: []ir.VariableID{1}},
	)}
	body := &executable.Pipeline{Nested: []executable.NestedPipeline{{
		Kind:      ir.NestedDisjunction,
		Branches:  []executable.Pipeline{branchDirect, branchRecursive},
		BranchIDs: []ir.BranchID{0, 1},
	}}}

	exec := executor.NewMatchExecutor(kv, tm, things, nil, 4)
	tabler := executor.NewTabler(exec, map[string]executor.FunctionDef{
		"reach": {Name: "reach", Params: []ir.VariableID{0}, Returns: []ir.VariableID{1}, Body: body, Width: 4},
	})

	tuples, err := tabler.Call("reach", []executor.Cell{{Kind: executor.CellConcept, Concept: a}})
	require.NoError(t, err)

	got := map[string]bool{}
	for _, tuple := range tuples {
		got[string(tuple[0].Concept.Vertex)] = true
	}
	assert.Len(t, got, 3)
	assert.True(t, got[string(a.Vertex)])
	assert.True(t, got[string(b.Vertex)])
	assert.True(t, got[string(c.Vertex)])
}
