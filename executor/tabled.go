package executor

import (
	"strings"

	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/ir"
)

var (
	ErrUnknownFunction   = errs.Code{Component: "executor", Number: 10, Name: "unknown_function"}
	ErrTableNotConverged = errs.Code{Component: "executor", Number: 11, Name: "table_not_converged"}
)

// maxTabledPasses bounds the fixed-point loop against a malformed function
// that never stops growing its own table; a well-founded recursive
// function over a finite database always converges well under this.
const maxTabledPasses = 10000

// FunctionDef is one compiled function body: its parameter variables, the
// match pipeline computing its body, and the variables whose bindings form
// each output tuple (spec.md §4.8 "Tabled functions").
type FunctionDef struct {
	Name    string
	Params  []ir.VariableID
	Returns []ir.VariableID
	Body    *executable.Pipeline
	Width   int
}

// table is a per-call memoization table: every distinct output tuple
// produced so far for one (function, argument-tuple) key (spec.md §4.8 "a
// per-function-call table indexed by input-argument tuple").
type table struct {
	rows []([]Cell)
	seen map[string]bool
}

func newTable() *table { return &table{seen: map[string]bool{}} }

func (t *table) add(row []Cell) bool {
	key := rowKey(row)
	if t.seen[key] {
		return false
	}
	t.seen[key] = true
	t.rows = append(t.rows, row)
	return true
}

func rowKey(row []Cell) string {
	var b strings.Builder
	for _, c := range row {
		b.WriteByte(byte(c.Kind))
		switch c.Kind {
		case CellConcept:
			b.Write(c.Concept.Vertex)
		case CellValue:
			b.WriteByte(byte(c.Value.Type))
			b.Write(c.Value.EncodeKeyBytes())
		}
		b.WriteByte(0)
	}
	return b.String()
}

// Tabler evaluates recursive user-defined functions by naive fixed-point
// iteration: each pass re-runs the function body with the in-progress table
// standing in for the function's own recursive calls, until a pass adds no
// new rows (spec.md §4.8 "The fixed-point is reached when a full pass
// produces no new table rows"). This trades the spec's incremental
// suspend/resume scheduling for a simpler whole-pass re-evaluation with
// the same termination condition and the same answer set.
type Tabler struct {
	exec   *MatchExecutor
	defs   map[string]FunctionDef
	tables map[string]*table
}

func NewTabler(exec *MatchExecutor, defs map[string]FunctionDef) *Tabler {
	t := &Tabler{exec: exec, defs: defs, tables: map[string]*table{}}
	exec.Functions = &FunctionCaller{Call: t.Call}
	return t
}

// Call resolves name(args) to its output tuple set, computing it to a
// fixed point on first reference and memoizing for every later reference
// to the same (name, args) pair (spec.md §4.8 "A tabled call first checks
// the table; if not present, it seeds a fresh table, runs the function").
// A call re-entering its own in-progress table (direct or mutual
// recursion) sees the partial table as it stands, which is what lets
// repeated passes monotonically grow it to a fixed point.
func (t *Tabler) Call(name string, args []Cell) ([][]Cell, error) {
	key := name + "(" + rowKey(args) + ")"
	if tbl, ok := t.tables[key]; ok {
		return tbl.rows, nil
	}
	def, ok := t.defs[name]
	if !ok {
		return nil, errs.New(ErrUnknownFunction, "no function registered for %q", name)
	}
	tbl := newTable()
	t.tables[key] = tbl

	for pass := 0; pass < maxTabledPasses; pass++ {
		grew, err := t.runPass(def, args, tbl)
		if err != nil {
			return nil, err
		}
		if !grew {
			return tbl.rows, nil
		}
	}
	return nil, errs.New(ErrTableNotConverged, "function %q did not converge within %d passes", name, maxTabledPasses)
}

// runPass re-runs def's body with args bound to its parameters, merging
// every produced tuple into tbl and reporting whether any were new.
func (t *Tabler) runPass(def FunctionDef, args []Cell, tbl *table) (bool, error) {
	seed := NewRow(def.Width)
	for i, p := range def.Params {
		if i < len(args) {
			seed.Cells[p] = args[i]
		}
	}
	rows, err := t.exec.runConjunction(def.Body, []Row{seed})
	if err != nil {
		return false, err
	}
	grew := false
	for _, row := range rows {
		tuple := make([]Cell, len(def.Returns))
		for i, v := range def.Returns {
			tuple[i] = row.Cells[v]
		}
		if tbl.add(tuple) {
			grew = true
		}
	}
	return grew, nil
}
