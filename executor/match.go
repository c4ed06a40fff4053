// Package executor (continued): the pattern executor. Runs a compiled
// executable.Pipeline as a nested-loop join over Row batches, matching on
// each executable.Op tag rather than dispatching through an iterator
// interface (spec.md §4.8 "Pattern executor", §9). Grounded on the
// teacher's executor/tree_runner.go control-tree recursion, generalized
// from a command tree to a constraint pipeline.
package executor

import (
	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/encoding"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/ir"
)

var ErrInterrupted = errs.Code{Component: "executor", Number: 1, Name: "interrupted"}

// MatchExecutor runs match pipelines against one transaction's read
// surface. It is safe to reuse across Run calls within the same query.
type MatchExecutor struct {
	Reader    concept.KVReader
	Types     *concept.TypeManager
	Things    *concept.ThingManager
	Params    *ir.ParameterRegistry
	Width     int
	Interrupt *ExecutionInterrupt
	Functions *FunctionCaller
	Builtins  map[string]Builtin
}

// FunctionCaller resolves an OpFunctionCallBinding's callee to a tabled or
// inlined invocation (spec.md §4.8 "Tabled functions"). Wired in from the
// query package; nil here means no function calls are in scope. Arguments
// and returned tuples are Cells rather than bare Values so a function's
// parameters and returns may be concepts (things) as well as values.
type FunctionCaller struct {
	Call func(label string, args []Cell) ([][]Cell, error)
}

func NewMatchExecutor(reader concept.KVReader, types *concept.TypeManager, things *concept.ThingManager, params *ir.ParameterRegistry, width int) *MatchExecutor {
	return &MatchExecutor{Reader: reader, Types: types, Things: things, Params: params, Width: width}
}

// Run executes pipe from a single empty seed row, returning every matching
// row (spec.md §4.8 "PatternStart: seeds a single empty row").
func (m *MatchExecutor) Run(pipe *executable.Pipeline) (*Batch, error) {
	rows, err := m.runConjunction(pipe, []Row{NewRow(m.Width)})
	if err != nil {
		return nil, err
	}
	batch := NewBatch(m.Width)
	for _, r := range rows {
		batch.Append(r)
	}
	return batch, nil
}

func (m *MatchExecutor) runConjunction(pipe *executable.Pipeline, rows []Row) ([]Row, error) {
	var err error
	for _, instr := range pipe.Instructions {
		if m.Interrupt != nil && m.Interrupt.Signaled() {
			return nil, errs.New(ErrInterrupted, "execution interrupted: %v", m.Interrupt.Reason())
		}
		rows, err = m.runInstruction(instr, rows)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return rows, nil
		}
	}
	for _, n := range pipe.Nested {
		rows, err = m.runNested(n, rows)
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// runInstruction joins every row in rows against instr's iterator, the
// nested-loop join step of the pattern executor (spec.md §4.8
// "ExecuteImmediate").
func (m *MatchExecutor) runInstruction(instr executable.Instruction, rows []Row) ([]Row, error) {
	var out []Row
	for _, row := range rows {
		produced, err := m.expand(instr, row)
		if err != nil {
			return nil, err
		}
		out = append(out, produced...)
	}
	return out, nil
}

func (m *MatchExecutor) expand(instr executable.Instruction, row Row) ([]Row, error) {
	switch instr.Op {
	case executable.OpTypeList:
		kind, types := m.resolveTypes(instr.TypeIDs)
		it := NewTypeListIterator(m.Reader, m.Things, kind, types)
		return m.bindSingle(instr, row, it, instr.Output1)

	case executable.OpHasUnboundedSortedOwner, executable.OpHasBoundedOwner:
		owner, ok := cellVertex(row, instr.Output1)
		if !ok {
			return nil, nil
		}
		it := NewHasIterator(m.Reader, m.Things, owner)
		return m.bindPair(instr, row, it)

	case executable.OpHasBoundedAttribute:
		attribute, ok := cellVertex(row, instr.Output2)
		if !ok {
			return nil, nil
		}
		it := NewHasByAttributeIterator(m.Reader, m.Things, attribute)
		return m.bindOwnerFromAttribute(instr, row, it)

	case executable.OpLinksUnbounded, executable.OpLinksBounded:
		relation, ok := cellVertex(row, instr.Output1)
		if !ok {
			return nil, nil
		}
		it := NewLinksIterator(m.Reader, relation, instr.RoleTypeID)
		return m.bindLinks(instr, row, it)

	case executable.OpLinksBoundedByPlayer:
		player, ok := cellVertex(row, instr.Output2)
		if !ok {
			return nil, nil
		}
		it := NewLinksByPlayerIterator(m.Reader, player, instr.RoleTypeID)
		return m.bindSingle(instr, row, it, instr.Output1)

	case executable.OpCheck:
		if m.applyChecks(instr.Checks, row) {
			return []Row{row}, nil
		}
		return nil, nil

	case executable.OpExpressionBinding:
		if instr.Program == nil || len(instr.AssignedVars) == 0 {
			return []Row{row}, nil
		}
		result, err := EvaluateProgram(instr.Program, func(id int) concept.Value {
			c := row.Cells[ir.VariableID(id)]
			return c.Value
		}, m.Builtins)
		if err != nil {
			return nil, err
		}
		next := row.Clone()
		next.Cells[instr.AssignedVars[0]] = Cell{Kind: CellValue, Value: result}
		return []Row{next}, nil

	case executable.OpFunctionCallBinding:
		return m.expandFunctionCall(instr, row)

	default:
		if m.applyChecks(instr.Checks, row) {
			return []Row{row}, nil
		}
		return nil, nil
	}
}

func (m *MatchExecutor) bindSingle(instr executable.Instruction, row Row, it *TupleIterator, out ir.VariableID) ([]Row, error) {
	var rows []Row
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		next := row.Clone()
		next.Cells[out] = Cell{Kind: CellConcept, Concept: t.V1}
		if m.applyChecks(instr.Checks, next) {
			rows = append(rows, next)
		}
	}
	return rows, nil
}

func (m *MatchExecutor) bindPair(instr executable.Instruction, row Row, it *TupleIterator) ([]Row, error) {
	var rows []Row
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		next := row.Clone()
		next.Cells[instr.Output2] = Cell{Kind: CellConcept, Concept: t.V2}
		if m.applyChecks(instr.Checks, next) {
			rows = append(rows, next)
		}
	}
	return rows, nil
}

// bindOwnerFromAttribute is bindPair's mirror image for the
// bounded-by-attribute has category: the attribute side is already bound in
// row, and the iterator yields candidate owners to bind into Output1.
func (m *MatchExecutor) bindOwnerFromAttribute(instr executable.Instruction, row Row, it *TupleIterator) ([]Row, error) {
	var rows []Row
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		next := row.Clone()
		next.Cells[instr.Output1] = Cell{Kind: CellConcept, Concept: t.V1}
		if m.applyChecks(instr.Checks, next) {
			rows = append(rows, next)
		}
	}
	return rows, nil
}

func (m *MatchExecutor) bindLinks(instr executable.Instruction, row Row, it *TupleIterator) ([]Row, error) {
	var rows []Row
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		next := row.Clone()
		next.Cells[instr.Output2] = Cell{Kind: CellConcept, Concept: t.V2}
		if m.applyChecks(instr.Checks, next) {
			rows = append(rows, next)
		}
	}
	return rows, nil
}

// resolveTypes maps a set of annotated type ids back to TypeRecords,
// inferring kind by trying entity, then relation, since executable.
// Instruction carries only bare TypeIDs, not which Kind namespace they
// belong to (a simplification over threading Kind through the scheduled
// instruction).
func (m *MatchExecutor) resolveTypes(ids []encoding.TypeID) (concept.Kind, []*concept.TypeRecord) {
	var out []*concept.TypeRecord
	kind := concept.KindEntity
	for _, id := range ids {
		if rec, ok := m.Types.GetByID(concept.KindEntity, id); ok {
			out = append(out, rec)
			continue
		}
		if rec, ok := m.Types.GetByID(concept.KindRelation, id); ok {
			kind = concept.KindRelation
			out = append(out, rec)
		}
	}
	return kind, out
}

func cellVertex(row Row, v ir.VariableID) (concept.ThingVertexRef, bool) {
	c := row.Cells[v]
	if c.Kind != CellConcept {
		return concept.ThingVertexRef{}, false
	}
	return c.Concept, true
}

func (m *MatchExecutor) applyChecks(checks []executable.CheckPredicate, row Row) bool {
	for _, pred := range checks {
		left, lok := m.vertexValue(pred.Left, row)
		right, rok := m.vertexValue(pred.Right, row)
		if !lok || !rok {
			return false
		}
		if !evaluateCheck(pred, left, right) {
			return false
		}
	}
	return true
}

func (m *MatchExecutor) vertexValue(v ir.Vertex, row Row) (concept.Value, bool) {
	switch v.Kind {
	case ir.VertexVariable:
		c := row.Cells[v.Variable]
		if c.Kind != CellValue {
			return concept.Value{}, false
		}
		return c.Value, true
	case ir.VertexParameter:
		if m.Params == nil {
			return concept.Value{}, false
		}
		return m.Params.Get(v.Parameter).Value, true
	}
	return concept.Value{}, false
}

// runNested dispatches one NestedPipeline to its control instruction:
// ExecuteDisjunction, ExecuteNegation, or ExecuteOptional (spec.md §4.8).
func (m *MatchExecutor) runNested(n executable.NestedPipeline, rows []Row) ([]Row, error) {
	switch n.Kind {
	case ir.NestedDisjunction:
		return m.executeDisjunction(n, rows)
	case ir.NestedNegation:
		return m.executeNegation(n, rows)
	case ir.NestedOptional:
		return m.executeOptional(n, rows)
	default:
		return m.runConjunction(n.Inner, rows)
	}
}

// executeDisjunction runs every branch against the incoming rows and
// unions the results, recording which branch contributed in each output
// row's provenance bitmask (spec.md §4.8 "ExecuteDisjunction... branch-id
// recorded in provenance").
func (m *MatchExecutor) executeDisjunction(n executable.NestedPipeline, rows []Row) ([]Row, error) {
	var out []Row
	for i, branch := range n.Branches {
		branchID := uint8(0)
		if i < len(n.BranchIDs) {
			branchID = uint8(n.BranchIDs[i])
		}
		produced, err := m.runConjunction(&branch, cloneRows(rows))
		if err != nil {
			return nil, err
		}
		for _, r := range produced {
			out = append(out, r.WithBranch(branchID))
		}
	}
	return out, nil
}

// executeNegation keeps only the rows for which the inner pipeline
// produces no match (spec.md §4.8 "ExecuteNegation").
func (m *MatchExecutor) executeNegation(n executable.NestedPipeline, rows []Row) ([]Row, error) {
	var out []Row
	for _, r := range rows {
		produced, err := m.runConjunction(n.Inner, []Row{r.Clone()})
		if err != nil {
			return nil, err
		}
		if len(produced) == 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

// executeOptional runs the inner pipeline and keeps the original row
// unmodified when it produces nothing, rather than dropping it (spec.md
// §4.8 "ExecuteOptional").
func (m *MatchExecutor) executeOptional(n executable.NestedPipeline, rows []Row) ([]Row, error) {
	var out []Row
	for _, r := range rows {
		produced, err := m.runConjunction(n.Inner, []Row{r.Clone()})
		if err != nil {
			return nil, err
		}
		if len(produced) == 0 {
			out = append(out, r)
			continue
		}
		out = append(out, produced...)
	}
	return out, nil
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// expandFunctionCall invokes a tabled or inlined function through
// Functions, binding each returned tuple's values into instr.AssignedVars
// (spec.md §4.8 "ExecuteTabledCall" / "ExecuteInlinedFunction").
func (m *MatchExecutor) expandFunctionCall(instr executable.Instruction, row Row) ([]Row, error) {
	if m.Functions == nil || m.Functions.Call == nil {
		return nil, errs.New(ErrInterrupted, "function %q called with no function caller wired", instr.CallLabel)
	}
	args := make([]Cell, len(instr.CallArgs))
	for i, a := range instr.CallArgs {
		args[i] = row.Cells[a]
	}
	tuples, err := m.Functions.Call(instr.CallLabel, args)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, tuple := range tuples {
		next := row.Clone()
		for i, v := range instr.AssignedVars {
			if i < len(tuple) {
				next.Cells[v] = tuple[i]
			}
		}
		rows = append(rows, next)
	}
	return rows, nil
}
