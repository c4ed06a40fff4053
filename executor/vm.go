package executor

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/executable"
)

var ErrVMStackUnderflow = errs.Code{Component: "executor", Number: 20, Name: "vm_stack_underflow"}

// vmItem is a single expression-VM stack slot: either a scalar value or a
// list of them, mirroring the two shapes executable.BytecodeOp's list ops
// produce and consume.
type vmItem struct {
	scalar concept.Value
	list   []concept.Value
	isList bool
}

// Builtin is one named built-in scalar function available to OpCall, taking
// its already-evaluated arguments left-to-right (spec.md §3 "Expression
// bytecode": "... and built-in functions").
type Builtin func(args []concept.Value) (concept.Value, error)

// EvaluateProgram runs prog's bytecode against variable, the row-local
// lookup function for OpLoadVariable, and builtins, the named scalar
// functions OpCall may invoke (nil rejects every OpCall), returning the
// single resulting value (spec.md §4.7 "Expression compilation", §3
// "Expression bytecode").
func EvaluateProgram(prog *executable.Program, variable func(id int) concept.Value, builtins map[string]Builtin) (concept.Value, error) {
	var stack []vmItem
	push := func(v vmItem) { stack = append(stack, v) }
	pop := func() (vmItem, error) {
		if len(stack) == 0 {
			return vmItem{}, errs.New(ErrVMStackUnderflow, "expression stack underflow")
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, nil
	}

	for _, instr := range prog.Instructions {
		switch instr.Op {
		case executable.OpLoadConstant:
			push(vmItem{scalar: prog.Constants[instr.ConstantIdx]})

		case executable.OpLoadVariable:
			push(vmItem{scalar: variable(int(instr.VariableID))})

		case executable.OpListConstruct:
			items := make([]concept.Value, instr.ListLen)
			for i := instr.ListLen - 1; i >= 0; i-- {
				v, err := pop()
				if err != nil {
					return concept.Value{}, err
				}
				items[i] = v.scalar
			}
			push(vmItem{list: items, isList: true})

		case executable.OpListIndex:
			idx, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			lst, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			i := int(idx.scalar.Long)
			if i < 0 || i >= len(lst.list) {
				return concept.Value{}, errs.New(ErrVMStackUnderflow, "list index %d out of range", i)
			}
			push(vmItem{scalar: lst.list[i]})

		case executable.OpListRange:
			hi, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			lo, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			lst, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			a, b := int(lo.scalar.Long), int(hi.scalar.Long)
			if a < 0 {
				a = 0
			}
			if b > len(lst.list) {
				b = len(lst.list)
			}
			push(vmItem{list: lst.list[a:b], isList: true})

		case executable.OpCastIntegerToDouble:
			v, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeDouble, Double: float64(v.scalar.Long)}})

		case executable.OpCastIntegerToDecimal:
			v, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeDecimal, Decimal: decimal.NewFromInt(v.scalar.Long)}})

		case executable.OpCastDoubleToDecimal:
			v, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeDecimal, Decimal: decimal.NewFromFloat(v.scalar.Double)}})

		case executable.OpAddInteger, executable.OpSubInteger, executable.OpMulInteger, executable.OpDivInteger, executable.OpModInteger:
			r, l, err := popTwo(pop)
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeLong, Long: intArith(instr.Op, l.scalar.Long, r.scalar.Long)}})

		case executable.OpAddDouble, executable.OpSubDouble, executable.OpMulDouble, executable.OpDivDouble, executable.OpPowDouble:
			r, l, err := popTwo(pop)
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeDouble, Double: doubleArith(instr.Op, l.scalar.Double, r.scalar.Double)}})

		case executable.OpAddDecimal, executable.OpSubDecimal, executable.OpMulDecimal, executable.OpDivDecimal:
			r, l, err := popTwo(pop)
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeDecimal, Decimal: decimalArith(instr.Op, l.scalar.Decimal, r.scalar.Decimal)}})

		case executable.OpConcatString:
			r, l, err := popTwo(pop)
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeString, String: l.scalar.String + r.scalar.String}})

		case executable.OpDurationAddDate:
			r, l, err := popTwo(pop)
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: dateAddDuration(l.scalar, r.scalar, 1)})

		case executable.OpDurationSubDate:
			r, l, err := popTwo(pop)
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: dateAddDuration(l.scalar, r.scalar, -1)})

		case executable.OpNegInteger:
			v, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeLong, Long: -v.scalar.Long}})

		case executable.OpNegDouble:
			v, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeDouble, Double: -v.scalar.Double}})

		case executable.OpNegDecimal:
			v, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: concept.Value{Type: concept.ValueTypeDecimal, Decimal: v.scalar.Decimal.Neg()}})

		case executable.OpAbs, executable.OpCeil, executable.OpFloor, executable.OpRound:
			v, err := pop()
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: unaryMath(instr.Op, v.scalar)})

		case executable.OpCall:
			fn, ok := builtins[instr.CallName]
			if !ok {
				return concept.Value{}, errs.New(ErrVMStackUnderflow, "unresolved call op %q in bytecode program", instr.CallName)
			}
			args := make([]concept.Value, instr.CallArity)
			for i := instr.CallArity - 1; i >= 0; i-- {
				v, err := pop()
				if err != nil {
					return concept.Value{}, err
				}
				args[i] = v.scalar
			}
			result, err := fn(args)
			if err != nil {
				return concept.Value{}, err
			}
			push(vmItem{scalar: result})
		}
	}

	top, err := pop()
	if err != nil {
		return concept.Value{}, err
	}
	return top.scalar, nil
}

func popTwo(pop func() (vmItem, error)) (right, left vmItem, err error) {
	right, err = pop()
	if err != nil {
		return
	}
	left, err = pop()
	return
}

func intArith(op executable.BytecodeOp, l, r int64) int64 {
	switch op {
	case executable.OpAddInteger:
		return l + r
	case executable.OpSubInteger:
		return l - r
	case executable.OpMulInteger:
		return l * r
	case executable.OpDivInteger:
		return l / r
	case executable.OpModInteger:
		return l % r
	}
	return 0
}

func doubleArith(op executable.BytecodeOp, l, r float64) float64 {
	switch op {
	case executable.OpAddDouble:
		return l + r
	case executable.OpSubDouble:
		return l - r
	case executable.OpMulDouble:
		return l * r
	case executable.OpDivDouble:
		return l / r
	case executable.OpPowDouble:
		return math.Pow(l, r)
	}
	return 0
}

func decimalArith(op executable.BytecodeOp, l, r decimal.Decimal) decimal.Decimal {
	switch op {
	case executable.OpAddDecimal:
		return l.Add(r)
	case executable.OpSubDecimal:
		return l.Sub(r)
	case executable.OpMulDecimal:
		return l.Mul(r)
	case executable.OpDivDecimal:
		return l.Div(r)
	}
	return decimal.Zero
}

func unaryMath(op executable.BytecodeOp, v concept.Value) concept.Value {
	switch op {
	case executable.OpAbs:
		switch v.Type {
		case concept.ValueTypeLong:
			if v.Long < 0 {
				v.Long = -v.Long
			}
		case concept.ValueTypeDouble:
			v.Double = math.Abs(v.Double)
		case concept.ValueTypeDecimal:
			v.Decimal = v.Decimal.Abs()
		}
	case executable.OpCeil:
		v.Type, v.Double = concept.ValueTypeDouble, math.Ceil(v.Double)
	case executable.OpFloor:
		v.Type, v.Double = concept.ValueTypeDouble, math.Floor(v.Double)
	case executable.OpRound:
		v.Type, v.Double = concept.ValueTypeDouble, math.Round(v.Double)
	}
	return v
}

// dateAddDuration adds (sign=1) or subtracts (sign=-1) a duration value
// from a date/datetime value (spec.md §4.7 "date/datetime + duration").
func dateAddDuration(date, dur concept.Value, sign int) concept.Value {
	d := dur.Duration
	if sign < 0 {
		d = -d
	}
	switch date.Type {
	case concept.ValueTypeDate:
		return concept.Value{Type: concept.ValueTypeDate, Date: date.Date.Add(d)}
	case concept.ValueTypeDateTime:
		return concept.Value{Type: concept.ValueTypeDateTime, DateTime: date.DateTime.Add(d)}
	default:
		return date
	}
}
