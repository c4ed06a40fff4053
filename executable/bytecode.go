package executable

import (
	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/ir"
)

// BytecodeOp is one expression bytecode instruction (spec.md §3 "Expression
// bytecode"). Each op pops a fixed number of operands and pushes one
// result. Defined here (rather than in compiler) so both the compiler that
// produces a Program and the executor that runs one depend on a single
// neutral data definition.
type BytecodeOp uint8

const (
	OpLoadConstant BytecodeOp = iota
	OpLoadVariable
	OpListConstruct
	OpListIndex
	OpListRange
	OpCastIntegerToDouble
	OpCastIntegerToDecimal
	OpCastDoubleToDecimal
	OpAddInteger
	OpAddDouble
	OpAddDecimal
	OpSubInteger
	OpSubDouble
	OpSubDecimal
	OpMulInteger
	OpMulDouble
	OpMulDecimal
	OpDivInteger
	OpDivDouble
	OpDivDecimal
	OpModInteger
	OpPowDouble
	OpConcatString
	OpDurationAddDate
	OpDurationSubDate
	OpNegInteger
	OpNegDouble
	OpNegDecimal
	OpAbs
	OpCeil
	OpFloor
	OpRound
	OpCall
)

// BytecodeInstruction is one compiled bytecode step.
type BytecodeInstruction struct {
	Op          BytecodeOp
	ConstantIdx int
	VariableID  ir.VariableID
	ListLen     int
	CallName    string
	CallArity   int
}

// Program is a compiled expression: a linear op-code sequence, a constants
// pool, and the ordered set of variables it reads (spec.md §4.7).
type Program struct {
	Instructions []BytecodeInstruction
	Constants    []concept.Value
	InputVars    []ir.VariableID
	ResultType   concept.ValueType
}
