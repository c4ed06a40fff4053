package compiler

import (
	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/ir"
)

// PlanWriteStage converts an insert/delete/update block's constraints into
// vertex-level and edge-level write instructions keyed by the variable
// position they populate in the output row (spec.md §4.7 "For write stages
// the planner outputs vertex-level instructions... and edge-level
// instructions").
func PlanWriteStage(block *ir.Block, kindOf func(label string) concept.Kind) []executable.WriteInstruction {
	return planWriteConjunction(block.Root, kindOf)
}

func planWriteConjunction(c *ir.Conjunction, kindOf func(label string) concept.Kind) []executable.WriteInstruction {
	var out []executable.WriteInstruction
	for _, ct := range c.Constraints {
		switch ct.Kind {
		case ir.ConstraintIsa:
			if ct.Left.Kind != ir.VertexVariable || ct.Right.Kind != ir.VertexLabel {
				continue
			}
			op := executable.WritePutEntity
			if kindOf(ct.Right.Label) == concept.KindRelation {
				op = executable.WritePutRelation
			}
			out = append(out, executable.WriteInstruction{Op: op, TypeLabel: ct.Right.Label, Output: ct.Left.Variable})

		case ir.ConstraintHas:
			if ct.Owner.Kind != ir.VertexVariable {
				continue
			}
			instr := executable.WriteInstruction{Op: executable.WriteHas, Owner: ct.Owner.Variable}
			if ct.Attribute.Kind == ir.VertexVariable {
				instr.Attribute = ct.Attribute.Variable
			}
			out = append(out, instr)

		case ir.ConstraintLinks:
			instr := executable.WriteInstruction{Op: executable.WriteRolePlayer}
			if ct.Relation.Kind == ir.VertexVariable {
				instr.Relation = ct.Relation.Variable
			}
			if ct.Player.Kind == ir.VertexVariable {
				instr.Player = ct.Player.Variable
			}
			if ct.Role.Kind == ir.VertexVariable {
				instr.Role = ct.Role.Variable
			}
			out = append(out, instr)

		case ir.ConstraintExpressionBinding:
			prog, err := CompileExpression(ct.Expression, func(ir.VariableID) stackCategoryHint { return HintInteger })
			if err != nil {
				continue
			}
			for _, assigned := range ct.Assigned {
				out = append(out, executable.WriteInstruction{Op: executable.WritePutAttribute, Output: assigned, Program: prog})
			}
		}
	}
	return out
}

// PlanDeleteStage reverses insertion order: edges are deleted before the
// vertices they reference, matching spec.md §4.8 "Delete processes in
// reverse: collect to-be-deleted edges and vertices from the row; delete
// edges first, then vertices."
func PlanDeleteStage(block *ir.Block, kindOf func(label string) concept.Kind) []executable.WriteInstruction {
	insertShape := planWriteConjunction(block.Root, kindOf)
	var edges, vertices []executable.WriteInstruction
	for _, instr := range insertShape {
		switch instr.Op {
		case executable.WriteHas:
			edges = append(edges, executable.WriteInstruction{Op: executable.WriteDeleteHas, Owner: instr.Owner, Attribute: instr.Attribute})
		case executable.WriteRolePlayer:
			edges = append(edges, executable.WriteInstruction{Op: executable.WriteDeleteRolePlayer, Relation: instr.Relation, Player: instr.Player, Role: instr.Role})
		case executable.WritePutEntity, executable.WritePutRelation, executable.WritePutAttribute:
			vertices = append(vertices, executable.WriteInstruction{Op: executable.WriteDeleteThing, Output: instr.Output})
		}
	}
	return append(edges, vertices...)
}
