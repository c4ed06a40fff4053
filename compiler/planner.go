package compiler

import (
	"sort"

	"github.com/latticedb/lattice/encoding"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/ir"
)

// Statistics holds per-type instance counts and per-edge-kind counts. The
// Planner keeps a reference to it, but order does not read it: the
// schedule depends on constraint kind alone, so no count changes a plan.
type Statistics struct {
	InstanceCount map[concreteTypeKey]int
	EdgeCount     map[concreteTypeKey]int
}

type concreteTypeKey struct {
	kind string
	id   uint16
}

func NewStatistics() *Statistics {
	return &Statistics{InstanceCount: map[concreteTypeKey]int{}, EdgeCount: map[concreteTypeKey]int{}}
}

// Planner converts an annotated conjunction into a scheduled
// executable.Pipeline (spec.md §4.7 "Planning").
type Planner struct {
	stats *Statistics
	ann   *Annotation
	roles func(label string) encoding.TypeID
}

func NewPlanner(stats *Statistics, ann *Annotation) *Planner {
	if stats == nil {
		stats = NewStatistics()
	}
	return &Planner{stats: stats, ann: ann}
}

// WithRoleResolver sets the label->TypeID lookup used for links constraints
// whose role is a literal label rather than a variable (spec.md §4.7); the
// planner itself holds no schema reference.
func (p *Planner) WithRoleResolver(resolve func(label string) encoding.TypeID) *Planner {
	p.roles = resolve
	return p
}

// PlanBlock schedules every constraint of block's root conjunction (and,
// recursively, its nested patterns) into an executable.Pipeline.
func (p *Planner) PlanBlock(block *ir.Block) executable.Pipeline {
	return p.planConjunction(block.Root)
}

func (p *Planner) planConjunction(c *ir.Conjunction) executable.Pipeline {
	ordered := p.order(c.Constraints)
	bound := map[ir.VariableID]bool{}
	attached := make([]bool, len(c.Constraints))
	pipe := executable.Pipeline{}

	for _, ct := range ordered {
		instr := p.selectInstruction(ct, bound)
		p.attachChecks(&instr, c.Constraints, bound, attached)
		pipe.Instructions = append(pipe.Instructions, instr)
	}

	for _, n := range c.Nested {
		switch n.Kind {
		case ir.NestedDisjunction:
			np := executable.NestedPipeline{Kind: n.Kind, BranchIDs: n.BranchIDs}
			for _, b := range n.Branches {
				np.Branches = append(np.Branches, p.planConjunction(b))
			}
			pipe.Nested = append(pipe.Nested, np)
		default:
			inner := p.planConjunction(n.Inner)
			pipe.Nested = append(pipe.Nested, executable.NestedPipeline{Kind: n.Kind, Inner: &inner})
		}
	}
	return pipe
}

// order stable-sorts constraints by rank of their kind, putting isa/kind
// constraints first (they bind a variable from nothing) and keeping input
// order among equal ranks. It does not estimate output cardinality, does
// not read p.stats, and does not look at which variables are already bound.
func (p *Planner) order(constraints []ir.Constraint) []ir.Constraint {
	out := make([]ir.Constraint, len(constraints))
	copy(out, constraints)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Kind) < rank(out[j].Kind)
	})
	return out
}

func rank(k ir.ConstraintKind) int {
	switch k {
	case ir.ConstraintIsa, ir.ConstraintKindOf:
		return 0
	case ir.ConstraintHas, ir.ConstraintLinks:
		return 1
	case ir.ConstraintSub, ir.ConstraintOwns, ir.ConstraintPlays, ir.ConstraintRelates, ir.ConstraintLabel:
		return 2
	case ir.ConstraintIID, ir.ConstraintIs:
		return 3
	case ir.ConstraintComparison:
		return 4
	case ir.ConstraintExpressionBinding, ir.ConstraintFunctionCallBinding:
		return 5
	default:
		return 6
	}
}

// selectInstruction picks the candidate executable instruction implied by
// a constraint and the current binding state, choosing the iteration mode
// from which side is already bound (spec.md §4.7 step 1).
func (p *Planner) selectInstruction(ct ir.Constraint, bound map[ir.VariableID]bool) executable.Instruction {
	switch ct.Kind {
	case ir.ConstraintIsa:
		instr := executable.Instruction{Op: executable.OpTypeList}
		if ct.Left.Kind == ir.VertexVariable {
			if p.ann != nil {
				instr.TypeIDs = p.ann.VariableTypes[ct.Left.Variable].Sorted()
			}
			instr.Output1 = ct.Left.Variable
			instr.SortVariable = ct.Left.Variable
			bound[ct.Left.Variable] = true
		}
		return instr

	case ir.ConstraintHas:
		op := executable.OpHasUnboundedSortedOwner
		mode := executable.ModeUnbound
		switch {
		case ct.Owner.Kind == ir.VertexVariable && bound[ct.Owner.Variable]:
			op, mode = executable.OpHasBoundedOwner, executable.ModeLeftBound
		case ct.Attribute.Kind == ir.VertexVariable && bound[ct.Attribute.Variable]:
			op, mode = executable.OpHasBoundedAttribute, executable.ModeRightBound
		}
		instr := executable.Instruction{Op: op, Mode: mode}
		if ct.Owner.Kind == ir.VertexVariable {
			instr.Output1 = ct.Owner.Variable
			bound[ct.Owner.Variable] = true
		}
		if ct.Attribute.Kind == ir.VertexVariable {
			instr.Output2 = ct.Attribute.Variable
			bound[ct.Attribute.Variable] = true
		}
		instr.SortVariable = instr.Output1
		return instr

	case ir.ConstraintLinks:
		op := executable.OpLinksUnbounded
		mode := executable.ModeUnbound
		switch {
		case ct.Relation.Kind == ir.VertexVariable && bound[ct.Relation.Variable]:
			op, mode = executable.OpLinksBounded, executable.ModeLeftBound
		case ct.Player.Kind == ir.VertexVariable && bound[ct.Player.Variable]:
			op, mode = executable.OpLinksBoundedByPlayer, executable.ModeRightBound
		}
		instr := executable.Instruction{Op: op, Mode: mode}
		if ct.Relation.Kind == ir.VertexVariable {
			instr.Output1 = ct.Relation.Variable
			bound[ct.Relation.Variable] = true
		}
		if ct.Player.Kind == ir.VertexVariable {
			instr.Output2 = ct.Player.Variable
			bound[ct.Player.Variable] = true
		}
		if ct.Role.Kind == ir.VertexVariable {
			instr.Output3 = ct.Role.Variable
			bound[ct.Role.Variable] = true
		} else if ct.Role.Kind == ir.VertexLabel && p.roles != nil {
			instr.RoleTypeID = p.roles(ct.Role.Label)
		}
		instr.SortVariable = instr.Output1
		return instr

	case ir.ConstraintSub:
		instr := executable.Instruction{Op: executable.OpSub}
		if ct.Left.Kind == ir.VertexVariable {
			instr.Output1 = ct.Left.Variable
			bound[ct.Left.Variable] = true
		}
		return instr

	case ir.ConstraintIID:
		instr := executable.Instruction{Op: executable.OpIID, IIDParam: ct.IIDParam}
		if ct.Left.Kind == ir.VertexVariable {
			instr.Output1 = ct.Left.Variable
			bound[ct.Left.Variable] = true
		}
		return instr

	case ir.ConstraintIs:
		instr := executable.Instruction{Op: executable.OpIs}
		if ct.Left.Kind == ir.VertexVariable {
			instr.Output1 = ct.Left.Variable
		}
		if ct.Right.Kind == ir.VertexVariable {
			instr.InputVar = ct.Right.Variable
		}
		return instr

	case ir.ConstraintExpressionBinding:
		for _, v := range ct.Assigned {
			bound[v] = true
		}
		instr := executable.Instruction{Op: executable.OpExpressionBinding, AssignedVars: ct.Assigned}
		if prog, err := CompileExpression(ct.Expression, p.hintFor); err == nil {
			instr.Program = prog
		}
		return instr

	case ir.ConstraintFunctionCallBinding:
		for _, v := range ct.Assigned {
			bound[v] = true
		}
		var args []ir.VariableID
		for _, a := range ct.Call.Arguments {
			if a.Kind == ir.VertexVariable {
				args = append(args, a.Variable)
			}
		}
		return executable.Instruction{Op: executable.OpFunctionCallBinding, AssignedVars: ct.Assigned, CallLabel: ct.Call.FunctionLabel, CallArgs: args}

	default:
		return executable.Instruction{Op: executable.OpCheck}
	}
}

// attachChecks appends comparison constraints to instr's Checks list once
// every variable the comparison reads has just become bound (spec.md §4.7
// step 3 "Attaches check predicates... to the earliest instruction where
// all their inputs are bound").
func (p *Planner) attachChecks(instr *executable.Instruction, all []ir.Constraint, bound map[ir.VariableID]bool, attached []bool) {
	for i, ct := range all {
		if attached[i] || ct.Kind != ir.ConstraintComparison {
			continue
		}
		if vertexBound(ct.Left, bound) && vertexBound(ct.Right, bound) {
			instr.Checks = append(instr.Checks, executable.CheckPredicate{Op: ct.CompareOp, Left: ct.Left, Right: ct.Right})
			attached[i] = true
		}
	}
}

// hintFor reports the stack-category hint the expression compiler should
// assume for a bound variable it loads. The annotator tracks concept kinds
// and concrete type sets, not scalar value types, so this defaults to
// HintInteger; a richer value-type annotation pass would remove the need
// for this default.
func (p *Planner) hintFor(ir.VariableID) stackCategoryHint {
	return HintInteger
}

func vertexBound(v ir.Vertex, bound map[ir.VariableID]bool) bool {
	switch v.Kind {
	case ir.VertexVariable:
		return bound[v.Variable]
	default:
		return true
	}
}
