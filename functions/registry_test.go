package functions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/executor"
	"github.com/latticedb/lattice/functions"
	"github.com/latticedb/lattice/ir"
)

func TestClassifyRecursionMarksSelfCall(t *testing.T) {
	reach := executor.FunctionDef{
		Name: "reach",
		Body: &executable.Pipeline{Nested: []executable.NestedPipeline{{
			Kind: ir.NestedDisjunction,
			Branches: []executable.Pipeline{
				{Instructions: []executable.Instruction{{Op: executable.OpTypeList}}},
				{Instructions: []executable.Instruction{{Op: executable.OpFunctionCallBinding, CallLabel: "reach"}}},
			},
		}}},
	}
	straight := executor.FunctionDef{
		Name: "double",
		Body: &executable.Pipeline{Instructions: []executable.Instruction{{Op: executable.OpExpressionBinding}}},
	}

	c := functions.ClassifyRecursion(map[string]executor.FunctionDef{"reach": reach, "double": straight})
	assert.True(t, c.Tabled["reach"])
	assert.False(t, c.Tabled["double"])
}

func TestClassifyRecursionMarksMutualCycle(t *testing.T) {
	even := executor.FunctionDef{
		Name: "even",
		Body: &executable.Pipeline{Instructions: []executable.Instruction{
			{Op: executable.OpFunctionCallBinding, CallLabel: "odd"},
		}},
	}
	odd := executor.FunctionDef{
		Name: "odd",
		Body: &executable.Pipeline{Instructions: []executable.Instruction{
			{Op: executable.OpFunctionCallBinding, CallLabel: "even"},
		}},
	}
	c := functions.ClassifyRecursion(map[string]executor.FunctionDef{"even": even, "odd": odd})
	assert.True(t, c.Tabled["even"])
	assert.True(t, c.Tabled["odd"])
}

func TestRegistryAllSnapshotsIndependently(t *testing.T) {
	r := functions.NewRegistry()
	r.Define(executor.FunctionDef{Name: "f"})
	snap := r.All()
	r.Define(executor.FunctionDef{Name: "g"})
	_, ok := snap["g"]
	assert.False(t, ok, "All() must return an independent snapshot, not a live view")
}

func TestBuiltinsLength(t *testing.T) {
	table := functions.Builtins()
	fn, ok := table["length"]
	assert.True(t, ok)
	_ = fn
}
