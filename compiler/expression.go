package compiler

import (
	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/ir"
)

var (
	ErrEmptyStack           = errs.Code{Component: "compiler", Number: 10, Name: "empty_stack"}
	ErrValueTypeMismatch    = errs.Code{Component: "compiler", Number: 11, Name: "value_type_mismatch"}
	ErrUnsupportedOperands  = errs.Code{Component: "compiler", Number: 12, Name: "unsupported_operands"}
	ErrHeterogeneousList    = errs.Code{Component: "compiler", Number: 13, Name: "heterogeneous_list"}
	ErrEmptyList            = errs.Code{Component: "compiler", Number: 14, Name: "empty_list"}
	ErrListIndexNonInteger  = errs.Code{Component: "compiler", Number: 15, Name: "list_index_non_integer"}
)

// stackCat tracks the compile-time value-type category on the expression
// compiler's type stack, mirroring how the executor categorizes values.
type stackCat uint8

const (
	catInteger stackCat = iota
	catDouble
	catDecimal
	catString
	catBoolean
	catDate
	catDateTime
	catDuration
	catList
)

// ExpressionCompiler compiles a parsed ir.ExpressionTree bottom-up into a
// linear Program, inserting implicit casts, per spec.md §4.7 "Expression
// compilation". Grounded on the teacher's planner/expr.go bottom-up
// AST-to-bytecode walk, generalized from shell arithmetic to the typed
// numeric/temporal/string operator set spec.md §3 names.
type ExpressionCompiler struct {
	prog  executable.Program
	stack []stackCat
}

func CompileExpression(tree *ir.ExpressionTree, varCategory func(ir.VariableID) stackCategoryHint) (*executable.Program, error) {
	c := &ExpressionCompiler{}
	cat, err := c.compile(tree, varCategory)
	if err != nil {
		return nil, err
	}
	c.prog.ResultType = cat.valueType()
	return &c.prog, nil
}

// stackCategoryHint lets a caller (the planner) tell the expression
// compiler what category a bound input variable holds, without the
// compiler package depending on the annotation phase's TypeSet directly.
type stackCategoryHint uint8

const (
	HintInteger stackCategoryHint = iota
	HintDouble
	HintDecimal
	HintString
	HintBoolean
	HintDate
	HintDateTime
	HintDuration
)

func (h stackCategoryHint) cat() stackCat { return stackCat(h) }

func (c stackCat) valueType() concept.ValueType {
	switch c {
	case catInteger:
		return concept.ValueTypeLong
	case catDouble:
		return concept.ValueTypeDouble
	case catDecimal:
		return concept.ValueTypeDecimal
	case catString:
		return concept.ValueTypeString
	case catBoolean:
		return concept.ValueTypeBoolean
	case catDate:
		return concept.ValueTypeDate
	case catDateTime:
		return concept.ValueTypeDateTime
	case catDuration:
		return concept.ValueTypeDuration
	default:
		return concept.ValueTypeNone
	}
}

func (c *ExpressionCompiler) emit(instr executable.BytecodeInstruction) {
	c.prog.Instructions = append(c.prog.Instructions, instr)
}

func (c *ExpressionCompiler) pop() (stackCat, error) {
	if len(c.stack) == 0 {
		return 0, errs.New(ErrEmptyStack, "expression compiler: popped an empty stack")
	}
	top := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return top, nil
}

func (c *ExpressionCompiler) push(cat stackCat) { c.stack = append(c.stack, cat) }

func (c *ExpressionCompiler) compile(tree *ir.ExpressionTree, varCategory func(ir.VariableID) stackCategoryHint) (stackCat, error) {
	switch tree.Kind {
	case ir.ExprConstant:
		idx := len(c.prog.Constants)
		c.prog.Constants = append(c.prog.Constants, tree.ConstantValue)
		c.emit(executable.BytecodeInstruction{Op: executable.OpLoadConstant, ConstantIdx: idx})
		cat := valueTypeToCat(tree.ConstantValue.Type)
		c.push(cat)
		return cat, nil

	case ir.ExprVariable:
		c.prog.InputVars = append(c.prog.InputVars, tree.Variable)
		c.emit(executable.BytecodeInstruction{Op: executable.OpLoadVariable, VariableID: tree.Variable})
		cat := varCategory(tree.Variable).cat()
		c.push(cat)
		return cat, nil

	case ir.ExprListLiteral:
		if len(tree.ListElements) == 0 {
			return 0, errs.New(ErrEmptyList, "list literal must have at least one element")
		}
		var elemCat stackCat
		for i, el := range tree.ListElements {
			cat, err := c.compile(el, varCategory)
			if err != nil {
				return 0, err
			}
			if _, err := c.pop(); err != nil {
				return 0, err
			}
			if i == 0 {
				elemCat = cat
			} else if cat != elemCat {
				return 0, errs.New(ErrHeterogeneousList, "list elements must share one value-type category")
			}
		}
		c.emit(executable.BytecodeInstruction{Op: executable.OpListConstruct, ListLen: len(tree.ListElements)})
		c.push(catList)
		return catList, nil

	case ir.ExprListIndex:
		if _, err := c.compile(tree.ListTarget, varCategory); err != nil {
			return 0, err
		}
		idxCat, err := c.compile(tree.IndexExpr, varCategory)
		if err != nil {
			return 0, err
		}
		if idxCat != catInteger {
			return 0, errs.New(ErrListIndexNonInteger, "list index must be an integer")
		}
		if _, err := c.pop(); err != nil {
			return 0, err
		}
		elemCat, err := c.pop()
		if err != nil {
			return 0, err
		}
		c.emit(executable.BytecodeInstruction{Op: executable.OpListIndex})
		c.push(elemCat)
		return elemCat, nil

	case ir.ExprBinaryOp:
		left, err := c.compile(tree.Left, varCategory)
		if err != nil {
			return 0, err
		}
		leftEnd := len(c.prog.Instructions)
		right, err := c.compile(tree.Right, varCategory)
		if err != nil {
			return 0, err
		}
		return c.compileBinaryOp(tree.BinOp, left, right, leftEnd)

	case ir.ExprUnaryOp:
		cat, err := c.compile(tree.Operand, varCategory)
		if err != nil {
			return 0, err
		}
		return c.compileUnaryOp(tree.UnOp, cat)

	case ir.ExprCall:
		var argCat stackCat
		for i, arg := range tree.CallArgs {
			cat, err := c.compile(arg, varCategory)
			if err != nil {
				return 0, err
			}
			if i == 0 {
				argCat = cat
			}
		}
		for range tree.CallArgs {
			if _, err := c.pop(); err != nil {
				return 0, err
			}
		}
		c.emit(executable.BytecodeInstruction{Op: executable.OpCall, CallName: tree.CallName, CallArity: len(tree.CallArgs)})
		c.push(argCat)
		return argCat, nil
	}
	return 0, errs.New(ErrUnsupportedExpression, "unsupported expression node kind %v", tree.Kind)
}

// compileBinaryOp inserts an implicit integer→double or integer/double→decimal
// cast on mixed-type arithmetic (spec.md §4.7), then emits the category-typed
// op-code. leftEnd is the instruction index just past the left operand.
func (c *ExpressionCompiler) compileBinaryOp(op ir.BinaryOp, left, right stackCat, leftEnd int) (stackCat, error) {
	if _, err := c.pop(); err != nil {
		return 0, err
	}
	if _, err := c.pop(); err != nil {
		return 0, err
	}

	if op == ir.OpConcat {
		if left != catString || right != catString {
			return 0, errs.New(ErrUnsupportedOperands, "concat requires two strings")
		}
		c.emit(executable.BytecodeInstruction{Op: executable.OpConcatString})
		c.push(catString)
		return catString, nil
	}
	if op == ir.OpDurationAdd || op == ir.OpDurationSub {
		if left != catDate && left != catDateTime {
			return 0, errs.New(ErrUnsupportedOperands, "duration arithmetic requires a date or datetime operand")
		}
		if right != catDuration {
			return 0, errs.New(ErrUnsupportedOperands, "duration arithmetic requires a duration operand")
		}
		if op == ir.OpDurationAdd {
			c.emit(executable.BytecodeInstruction{Op: executable.OpDurationAddDate})
		} else {
			c.emit(executable.BytecodeInstruction{Op: executable.OpDurationSubDate})
		}
		c.push(left)
		return left, nil
	}

	numeric := map[stackCat]bool{catInteger: true, catDouble: true, catDecimal: true}
	if !numeric[left] || !numeric[right] {
		return 0, errs.New(ErrUnsupportedOperands, "arithmetic requires numeric operands")
	}
	result := promote(left, right)
	leftEnd += c.insertCast(leftEnd, left, result)
	c.insertCast(len(c.prog.Instructions), right, result)

	var opcode executable.BytecodeOp
	switch {
	case op == ir.OpAdd && result == catInteger:
		opcode = executable.OpAddInteger
	case op == ir.OpAdd && result == catDouble:
		opcode = executable.OpAddDouble
	case op == ir.OpAdd && result == catDecimal:
		opcode = executable.OpAddDecimal
	case op == ir.OpSub && result == catInteger:
		opcode = executable.OpSubInteger
	case op == ir.OpSub && result == catDouble:
		opcode = executable.OpSubDouble
	case op == ir.OpSub && result == catDecimal:
		opcode = executable.OpSubDecimal
	case op == ir.OpMul && result == catInteger:
		opcode = executable.OpMulInteger
	case op == ir.OpMul && result == catDouble:
		opcode = executable.OpMulDouble
	case op == ir.OpMul && result == catDecimal:
		opcode = executable.OpMulDecimal
	case op == ir.OpDiv && result == catInteger:
		opcode = executable.OpDivInteger
	case op == ir.OpDiv && result == catDouble:
		opcode = executable.OpDivDouble
	case op == ir.OpDiv && result == catDecimal:
		opcode = executable.OpDivDecimal
	case op == ir.OpMod:
		if result != catInteger {
			return 0, errs.New(ErrUnsupportedOperands, "modulo requires integer operands")
		}
		opcode = executable.OpModInteger
	case op == ir.OpPow:
		if result != catDouble {
			c.insertCast(leftEnd, result, catDouble)
			c.insertCast(len(c.prog.Instructions), result, catDouble)
			result = catDouble
		}
		opcode = executable.OpPowDouble
	default:
		return 0, errs.New(ErrUnsupportedOperands, "unsupported binary operator/category combination")
	}
	c.emit(executable.BytecodeInstruction{Op: opcode})
	c.push(result)
	return result, nil
}

func (c *ExpressionCompiler) compileUnaryOp(op ir.UnaryOp, cat stackCat) (stackCat, error) {
	if _, err := c.pop(); err != nil {
		return 0, err
	}
	numeric := map[stackCat]bool{catInteger: true, catDouble: true, catDecimal: true}
	if !numeric[cat] {
		return 0, errs.New(ErrUnsupportedOperands, "unary math requires a numeric operand")
	}
	var opcode executable.BytecodeOp
	switch op {
	case ir.OpNeg:
		switch cat {
		case catInteger:
			opcode = executable.OpNegInteger
		case catDouble:
			opcode = executable.OpNegDouble
		default:
			opcode = executable.OpNegDecimal
		}
	case ir.OpAbs:
		opcode = executable.OpAbs
	case ir.OpCeil:
		opcode = executable.OpCeil
	case ir.OpFloor:
		opcode = executable.OpFloor
	case ir.OpRound:
		opcode = executable.OpRound
	}
	c.emit(executable.BytecodeInstruction{Op: opcode})
	c.push(cat)
	return cat, nil
}

// insertCast places a cast op-code at instruction index pos (right after
// the operand it converts is loaded) when from != to, used to unify mixed
// numeric operands before an arithmetic op (spec.md §4.7 "inserts implicit
// casts"). It returns the number of instructions inserted.
func (c *ExpressionCompiler) insertCast(pos int, from, to stackCat) int {
	var cast executable.BytecodeInstruction
	switch {
	case from == to:
		return 0
	case from == catInteger && to == catDouble:
		cast = executable.BytecodeInstruction{Op: executable.OpCastIntegerToDouble}
	case from == catInteger && to == catDecimal:
		cast = executable.BytecodeInstruction{Op: executable.OpCastIntegerToDecimal}
	case from == catDouble && to == catDecimal:
		cast = executable.BytecodeInstruction{Op: executable.OpCastDoubleToDecimal}
	default:
		return 0
	}
	c.prog.Instructions = append(c.prog.Instructions[:pos], append([]executable.BytecodeInstruction{cast}, c.prog.Instructions[pos:]...)...)
	return 1
}

// promote picks the wider numeric category of two operands: decimal widens
// over double widens over integer (spec.md §8 scenario 4: `2 + 3.5` yields a
// double).
func promote(a, b stackCat) stackCat {
	rank := map[stackCat]int{catInteger: 0, catDouble: 1, catDecimal: 2}
	if rank[a] >= rank[b] {
		return a
	}
	return b
}

func valueTypeToCat(vt concept.ValueType) stackCat {
	switch vt {
	case concept.ValueTypeLong:
		return catInteger
	case concept.ValueTypeDouble:
		return catDouble
	case concept.ValueTypeDecimal:
		return catDecimal
	case concept.ValueTypeString:
		return catString
	case concept.ValueTypeBoolean:
		return catBoolean
	case concept.ValueTypeDate:
		return catDate
	case concept.ValueTypeDateTime, concept.ValueTypeDateTimeTZ:
		return catDateTime
	case concept.ValueTypeDuration:
		return catDuration
	default:
		return catInteger
	}
}
