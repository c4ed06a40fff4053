// Package executor runs a compiled executable.Pipeline as a tree of
// suspendable iterators over batches of rows (spec.md §4.8). Grounded on
// the teacher's executor/tree_runner.go tagged-node recursion shape and
// executor/context.go's execution-context plumbing, generalized from shell
// process trees to pattern-match/write pipelines.
package executor

import "github.com/latticedb/lattice/concept"

// CellKind tags one Row entry (spec.md §6 "Query output": "empty, a
// concept, a value, a list of concepts, or a list of values").
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellConcept
	CellValue
	CellConceptList
	CellValueList
)

// Cell is one row entry, a tagged union over the CellKind variants (spec.md
// §9 "Polymorphic dispatch": matched on, not virtually dispatched).
type Cell struct {
	Kind        CellKind
	Concept     concept.ThingVertexRef
	Value       concept.Value
	ConceptList []concept.ThingVertexRef
	ValueList   []concept.Value
}

// Row is a fixed-width array of typed variable values plus a multiplicity
// count and a provenance bitmask recording which disjunction branches
// contributed (spec.md §3 "Row").
type Row struct {
	Cells        []Cell
	Multiplicity uint64
	Provenance   uint64
}

func NewRow(width int) Row {
	return Row{Cells: make([]Cell, width), Multiplicity: 1}
}

// Clone returns an independent copy, since lendingCursor.next hands out a view that
// is only valid until the following call (spec.md §9 "Lending iterators").
func (r Row) Clone() Row {
	cells := make([]Cell, len(r.Cells))
	copy(cells, r.Cells)
	return Row{Cells: cells, Multiplicity: r.Multiplicity, Provenance: r.Provenance}
}

// WithBranch returns a copy of r with bit id set in its provenance mask
// (spec.md §4.8 "ExecuteDisjunction... its outputs feed back into the
// parent with branch-id recorded in provenance").
func (r Row) WithBranch(id uint8) Row {
	out := r.Clone()
	out.Provenance |= 1 << id
	return out
}

// Batch packs rows of equal width contiguously, the unit of inter-stage
// transfer (spec.md §3 "Batch").
type Batch struct {
	Width int
	Rows  []Row
}

func NewBatch(width int) *Batch { return &Batch{Width: width} }

func (b *Batch) Append(r Row) { b.Rows = append(b.Rows, r) }

func (b *Batch) Len() int { return len(b.Rows) }

// lendingCursor is a lending iterator over a Batch: Next returns a view
// into b.Rows valid only until the next call, per spec.md §9's "Lending
// iterators" note — here the view is simply an index, so aliasing is moot,
// but the discipline is documented because instruction iterators built on
// top of a cursor must not retain it past one step.
type lendingCursor struct {
	batch *Batch
	pos   int
}

func newCursor(b *Batch) *lendingCursor { return &lendingCursor{batch: b} }

func (c *lendingCursor) next() (Row, bool) {
	if c.pos >= len(c.batch.Rows) {
		return Row{}, false
	}
	r := c.batch.Rows[c.pos]
	c.pos++
	return r, true
}
