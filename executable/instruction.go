// Package executable defines the scheduled, per-stage instruction set the
// compiler's planner emits and the executor runs (spec.md §4.7 "Planning",
// §4.8 "Executable instruction"). Instructions are a tagged variant matched
// on by the executor rather than dispatched through an interface, per
// spec.md §9 "Polymorphic dispatch".
package executable

import (
	"github.com/latticedb/lattice/encoding"
	"github.com/latticedb/lattice/ir"
)

// Op tags one executable instruction's iterator category (spec.md §4.8
// "Instruction iterators", §9).
type Op uint8

const (
	OpTypeList Op = iota
	OpTypeFromIID
	OpSub
	OpSubReverse
	OpOwns
	OpPlays
	OpRelates
	OpHasUnboundedSortedOwner
	OpHasUnboundedSortedAttribute
	OpHasBoundedOwner
	OpHasBoundedAttribute
	OpLinksUnbounded
	OpLinksBounded
	OpLinksBoundedByPlayer
	OpIs
	OpIID
	OpCheck
	OpExpressionBinding
	OpFunctionCallBinding
	OpIndexedRelation
)

// IterationMode describes which side of a two-variable instruction is
// already bound when this instruction runs (spec.md §4.8 "iteration mode").
type IterationMode uint8

const (
	ModeUnbound IterationMode = iota
	ModeLeftBound
	ModeRightBound
	ModeFullyBound
)

// Instruction is one scheduled step of a compiled match/write pipeline
// (spec.md §3 "Executable instruction").
type Instruction struct {
	Op   Op
	Mode IterationMode

	// Variable bindings, populated per Op; unused fields are simply zero.
	Output1, Output2, Output3 ir.VariableID
	InputVar                  ir.VariableID
	RoleTypeID                encoding.TypeID
	TypeIDs                   []encoding.TypeID // candidate type-list / sub-closure

	IIDParam ir.ParameterID

	// SortVariable is the variable this instruction's output stream is
	// sorted on, letting consecutive instructions be merged by co-sorted
	// iteration (spec.md §4.7 "Emits a sort variable...").
	SortVariable ir.VariableID

	// Checks are comparison/filter predicates attached to this instruction
	// because all their inputs first become bound here (spec.md §4.7
	// "Attaches check predicates...").
	Checks []CheckPredicate

	// Program is populated for OpExpressionBinding.
	Program      *Program
	AssignedVars []ir.VariableID

	// Call is populated for OpFunctionCallBinding.
	CallLabel string
	CallArgs  []ir.VariableID
}

// CheckPredicate is a comparison or filter evaluated without driving an
// iterator (spec.md §4.7).
type CheckPredicate struct {
	Op    ir.ComparisonOp
	Left  ir.Vertex
	Right ir.Vertex
}

// Pipeline is a scheduled instruction sequence for one match block, plus
// the nested pipelines for its disjunction branches/negation/optional
// patterns, mirroring ir.Conjunction/NestedPattern's shape (spec.md §4.8
// "Pattern executor").
type Pipeline struct {
	Instructions []Instruction
	Nested       []NestedPipeline
}

type NestedPipeline struct {
	Kind     ir.NestedKind
	Branches []Pipeline // disjunction
	BranchIDs []ir.BranchID
	Inner    *Pipeline // negation / optional
}

// WriteOp tags one write-stage instruction (spec.md §4.7 "For write stages
// the planner outputs vertex-level instructions ... and edge-level
// instructions").
type WriteOp uint8

const (
	WritePutEntity WriteOp = iota
	WritePutRelation
	WritePutAttribute
	WriteHas
	WriteRolePlayer
	WriteDeleteHas
	WriteDeleteRolePlayer
	WriteDeleteThing
)

// WriteInstruction is one scheduled step of a compiled insert/delete/update
// stage, keyed by the variable position it populates in the output row
// (spec.md §4.7).
type WriteInstruction struct {
	Op        WriteOp
	TypeLabel string
	TypeID    encoding.TypeID
	Owner     ir.VariableID
	Attribute ir.VariableID
	Relation  ir.VariableID
	Player    ir.VariableID
	Role      ir.VariableID
	Output    ir.VariableID
	Program   *Program // for attribute values computed by expression
}
