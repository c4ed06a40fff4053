package ir

import "hash/fnv"

// canonicalize renders a conjunction into a byte sequence that depends only
// on shape, not on variable identity: variables are renumbered in
// first-occurrence order so alpha-equivalent IRs serialize identically
// (spec.md §8 "Structural equality is an equivalence"; SPEC_FULL §11 plan
// cache key).
func canonicalize(c *Conjunction) []byte {
	ren := &renamer{ids: map[VariableID]VariableID{}}
	buf := make([]byte, 0, 256)
	buf = appendConjunction(buf, c, ren)
	return buf
}

type renamer struct {
	ids  map[VariableID]VariableID
	next VariableID
}

func (r *renamer) of(v VariableID) VariableID {
	if id, ok := r.ids[v]; ok {
		return id
	}
	id := r.next
	r.ids[v] = id
	r.next++
	return id
}

func appendVarint(buf []byte, v int64) []byte {
	u := uint64(v)
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

func appendVertex(buf []byte, v Vertex, ren *renamer) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case VertexVariable:
		buf = appendVarint(buf, int64(ren.of(v.Variable)))
	case VertexLabel:
		buf = append(buf, v.Label...)
		buf = append(buf, 0)
	case VertexParameter:
		buf = appendVarint(buf, int64(v.Parameter))
	}
	return buf
}

func appendConstraint(buf []byte, ct Constraint, ren *renamer) []byte {
	buf = append(buf, byte(ct.Kind))
	switch ct.Kind {
	case ConstraintHas:
		buf = appendVertex(buf, ct.Owner, ren)
		buf = appendVertex(buf, ct.Attribute, ren)
	case ConstraintLinks:
		buf = appendVertex(buf, ct.Relation, ren)
		buf = appendVertex(buf, ct.Player, ren)
		buf = appendVertex(buf, ct.Role, ren)
	case ConstraintIID:
		buf = appendVertex(buf, ct.Left, ren)
		buf = appendVarint(buf, int64(ct.IIDParam))
	case ConstraintComparison:
		buf = append(buf, byte(ct.CompareOp))
		buf = appendVertex(buf, ct.Left, ren)
		buf = appendVertex(buf, ct.Right, ren)
	case ConstraintExpressionBinding, ConstraintFunctionCallBinding:
		buf = appendVarint(buf, int64(len(ct.Assigned)))
		for _, v := range ct.Assigned {
			buf = appendVarint(buf, int64(ren.of(v)))
		}
		if ct.Call != nil {
			buf = append(buf, ct.Call.FunctionLabel...)
			buf = append(buf, 0)
			for _, a := range ct.Call.Arguments {
				buf = appendVertex(buf, a, ren)
			}
		}
		buf = appendExpression(buf, ct.Expression, ren)
	default:
		buf = appendVertex(buf, ct.Left, ren)
		buf = appendVertex(buf, ct.Right, ren)
	}
	return buf
}

// appendExpression renders an ExpressionTree canonically, nil-safe since
// only expression-binding constraints populate it.
func appendExpression(buf []byte, e *ExpressionTree, ren *renamer) []byte {
	if e == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1, byte(e.Kind))
	switch e.Kind {
	case ExprConstant:
		buf = append(buf, e.ConstantValue.EncodeKeyBytes()...)
	case ExprVariable:
		buf = appendVarint(buf, int64(ren.of(e.Variable)))
	case ExprListLiteral:
		buf = appendVarint(buf, int64(len(e.ListElements)))
		for _, el := range e.ListElements {
			buf = appendExpression(buf, el, ren)
		}
	case ExprListIndex:
		buf = appendExpression(buf, e.ListTarget, ren)
		buf = appendExpression(buf, e.IndexExpr, ren)
	case ExprListRange:
		buf = appendExpression(buf, e.ListTarget, ren)
		buf = appendExpression(buf, e.RangeFrom, ren)
		buf = appendExpression(buf, e.RangeTo, ren)
	case ExprCast:
		buf = append(buf, e.CastTo...)
		buf = append(buf, 0)
		buf = appendExpression(buf, e.Operand, ren)
	case ExprBinaryOp:
		buf = append(buf, byte(e.BinOp))
		buf = appendExpression(buf, e.Left, ren)
		buf = appendExpression(buf, e.Right, ren)
	case ExprUnaryOp:
		buf = append(buf, byte(e.UnOp))
		buf = appendExpression(buf, e.Operand, ren)
	case ExprCall:
		buf = append(buf, e.CallName...)
		buf = append(buf, 0)
		buf = appendVarint(buf, int64(len(e.CallArgs)))
		for _, a := range e.CallArgs {
			buf = appendExpression(buf, a, ren)
		}
	}
	return buf
}

func appendConjunction(buf []byte, c *Conjunction, ren *renamer) []byte {
	buf = appendVarint(buf, int64(len(c.Constraints)))
	for _, ct := range c.Constraints {
		buf = appendConstraint(buf, ct, ren)
	}
	buf = appendVarint(buf, int64(len(c.Nested)))
	for _, n := range c.Nested {
		buf = append(buf, byte(n.Kind))
		switch n.Kind {
		case NestedDisjunction:
			buf = appendVarint(buf, int64(len(n.Branches)))
			for _, b := range n.Branches {
				buf = appendConjunction(buf, b, ren)
			}
		default:
			buf = appendConjunction(buf, n.Inner, ren)
		}
	}
	return buf
}

func fnv64(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}
