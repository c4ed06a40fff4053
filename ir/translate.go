package ir

// Translate builds a Block from a parsed-pattern AST (spec.md §4.6
// "Translation from parsed AST"). The TypeQL text parser that produces a
// []Statement is out of scope (spec.md §1, "its AST is an input"); this is
// the consumer side, and is squarely in scope. One Translate call handles
// one pipeline stage (match/insert/delete/...); a multi-stage pipeline
// calls it once per stage against the same ctx, so variables declared in
// an earlier stage are visible (by name) to later ones.
func Translate(ctx *PipelineTranslationContext, stmts []Statement) (*Block, error) {
	block := ctx.NewRootBlock()
	if err := translateInto(ctx, block.Root, stmts); err != nil {
		return nil, err
	}
	return block, nil
}

// translateInto appends stmts' constraints and nested patterns to conj,
// one statement producing one or more constraints or nested patterns
// (spec.md §4.6 "each TypeQL statement becomes one or more constraints").
func translateInto(ctx *PipelineTranslationContext, conj *Conjunction, stmts []Statement) error {
	for _, stmt := range stmts {
		if err := translateStatement(ctx, conj, stmt); err != nil {
			return err
		}
	}
	return nil
}

func translateStatement(ctx *PipelineTranslationContext, conj *Conjunction, stmt Statement) error {
	switch stmt.Kind {
	case StatementIsa:
		left := ctx.resolveVertex(conj, stmt.Left, CategoryThingKind)
		right := ctx.resolveVertex(conj, stmt.Right, CategoryTypeKind)
		conj.AddConstraint(Constraint{Kind: ConstraintIsa, Left: left, Right: right})

	case StatementHas:
		owner := ctx.resolveVertex(conj, stmt.Owner, CategoryThingKind)
		attribute := ctx.resolveVertex(conj, stmt.Attribute, CategoryThingKind)
		conj.AddConstraint(Constraint{Kind: ConstraintHas, Owner: owner, Attribute: attribute})

	case StatementLinks:
		relation := ctx.resolveVertex(conj, stmt.Relation, CategoryThingKind)
		player := ctx.resolveVertex(conj, stmt.Player, CategoryThingKind)
		role := ctx.resolveVertex(conj, stmt.Role, CategoryTypeKind)
		conj.AddConstraint(Constraint{Kind: ConstraintLinks, Relation: relation, Player: player, Role: role})

	case StatementSub, StatementOwns, StatementPlays, StatementRelates, StatementLabel, StatementKindOf:
		left := ctx.resolveVertex(conj, stmt.Left, CategoryTypeKind)
		right := ctx.resolveVertex(conj, stmt.Right, CategoryTypeKind)
		conj.AddConstraint(Constraint{Kind: schemaKind(stmt.Kind), Left: left, Right: right})

	case StatementIID:
		left := ctx.resolveVertex(conj, stmt.Left, CategoryThingKind)
		conj.AddConstraint(Constraint{Kind: ConstraintIID, Left: left, IIDParam: ctx.Parameters.AddIID(stmt.IID)})

	case StatementIs:
		left := ctx.resolveVertex(conj, stmt.Left, CategoryThingKind)
		right := ctx.resolveVertex(conj, stmt.Right, CategoryThingKind)
		conj.AddConstraint(Constraint{Kind: ConstraintIs, Left: left, Right: right})

	case StatementComparison:
		left := ctx.resolveVertex(conj, stmt.Left, CategoryValue)
		right := ctx.resolveVertex(conj, stmt.Right, CategoryValue)
		conj.AddConstraint(Constraint{Kind: ConstraintComparison, CompareOp: stmt.CompareOp, Left: left, Right: right})

	case StatementExpressionBinding:
		tree, err := ctx.resolveExpression(conj, stmt.Expression)
		if err != nil {
			return err
		}
		assigned := ctx.declareAssigned(conj, stmt.Assigned, CategoryValue)
		conj.AddConstraint(Constraint{Kind: ConstraintExpressionBinding, Assigned: assigned, Expression: tree})

	case StatementFunctionCallBinding:
		args := make([]Vertex, len(stmt.Call.Arguments))
		for i, a := range stmt.Call.Arguments {
			args[i] = ctx.resolveVertex(conj, a, CategoryThingKind)
		}
		assigned := ctx.declareAssigned(conj, stmt.Assigned, CategoryThingKind)
		conj.AddConstraint(Constraint{
			Kind:     ConstraintFunctionCallBinding,
			Assigned: assigned,
			Call:     &FunctionCall{FunctionLabel: stmt.Call.FunctionLabel, Arguments: args},
		})

	case StatementDisjunction:
		disjunctionScope := ctx.Scopes.Child(conj.ScopeID)
		branches := make([]*Conjunction, len(stmt.Branches))
		for i, branchStmts := range stmt.Branches {
			branch := ctx.NewNestedConjunction(disjunctionScope)
			if err := translateInto(ctx, branch, branchStmts); err != nil {
				return err
			}
			branches[i] = branch
		}
		conj.AddDisjunction(disjunctionScope, branches)

	case StatementNegation:
		inner := ctx.NewNestedConjunction(conj.ScopeID)
		if err := translateInto(ctx, inner, stmt.Inner); err != nil {
			return err
		}
		conj.AddNegation(inner.ScopeID, inner)

	case StatementOptional:
		inner := ctx.NewNestedConjunction(conj.ScopeID)
		if err := translateInto(ctx, inner, stmt.Inner); err != nil {
			return err
		}
		conj.AddOptional(inner.ScopeID, inner)
		for _, v := range inner.declaredHere(ctx) {
			ctx.Variables.SetOptional(v, true)
		}
	}
	return nil
}

// schemaKind maps a schema-statement StatementKind to its ConstraintKind
// counterpart (the two enums are deliberately kept parallel).
func schemaKind(k StatementKind) ConstraintKind {
	switch k {
	case StatementSub:
		return ConstraintSub
	case StatementOwns:
		return ConstraintOwns
	case StatementPlays:
		return ConstraintPlays
	case StatementRelates:
		return ConstraintRelates
	case StatementLabel:
		return ConstraintLabel
	default:
		return ConstraintKindOf
	}
}

// resolveVertex resolves an AST-level VertexRef against ctx's registries,
// declaring a new variable (or reusing one already declared by name in
// this scope or an ancestor) for RefVariable (spec.md §4.6 "reuse of a
// name in a child scope binds to the parent's variable").
func (ctx *PipelineTranslationContext) resolveVertex(conj *Conjunction, ref VertexRef, cat Category) Vertex {
	switch ref.Kind {
	case RefVariable:
		if ref.Name == "" || ref.Name == "_" {
			return VarVertex(ctx.Variables.DeclareAnonymous(conj.ScopeID, cat))
		}
		return VarVertex(ctx.Variables.Declare(conj.ScopeID, ref.Name, cat, ctx.Scopes))
	case RefLabel:
		return LabelVertex(ref.Label)
	case RefParameter:
		return ParamVertex(ctx.Parameters.AddValue(ref.Value))
	}
	return Vertex{}
}

// declareAssigned resolves the left-hand-side variable names of a binding
// statement into fresh/reused VariableIDs.
func (ctx *PipelineTranslationContext) declareAssigned(conj *Conjunction, names []string, cat Category) []VariableID {
	out := make([]VariableID, len(names))
	for i, name := range names {
		out[i] = ctx.Variables.Declare(conj.ScopeID, name, cat, ctx.Scopes)
	}
	return out
}

// resolveExpression translates an ExpressionRef (variables still named)
// into an ExpressionTree (variables resolved to VariableID), recursively,
// mirroring the compiler's own bottom-up expression walk (spec.md §4.7
// "Expression compilation").
func (ctx *PipelineTranslationContext) resolveExpression(conj *Conjunction, ref *ExpressionRef) (*ExpressionTree, error) {
	if ref == nil {
		return nil, nil
	}
	tree := &ExpressionTree{Kind: ref.Kind, ConstantValue: ref.ConstantValue, CastTo: ref.CastTo, BinOp: ref.BinOp, UnOp: ref.UnOp, CallName: ref.CallName}

	if ref.Kind == ExprVariable {
		tree.Variable = ctx.Variables.Declare(conj.ScopeID, ref.VariableName, CategoryValue, ctx.Scopes)
	}

	for _, el := range ref.ListElements {
		child, err := ctx.resolveExpression(conj, el)
		if err != nil {
			return nil, err
		}
		tree.ListElements = append(tree.ListElements, child)
	}

	var err error
	if tree.ListTarget, err = ctx.resolveExpression(conj, ref.ListTarget); err != nil {
		return nil, err
	}
	if tree.IndexExpr, err = ctx.resolveExpression(conj, ref.IndexExpr); err != nil {
		return nil, err
	}
	if tree.RangeFrom, err = ctx.resolveExpression(conj, ref.RangeFrom); err != nil {
		return nil, err
	}
	if tree.RangeTo, err = ctx.resolveExpression(conj, ref.RangeTo); err != nil {
		return nil, err
	}
	if tree.Operand, err = ctx.resolveExpression(conj, ref.Operand); err != nil {
		return nil, err
	}
	if tree.Left, err = ctx.resolveExpression(conj, ref.Left); err != nil {
		return nil, err
	}
	if tree.Right, err = ctx.resolveExpression(conj, ref.Right); err != nil {
		return nil, err
	}
	for _, a := range ref.CallArgs {
		child, err := ctx.resolveExpression(conj, a)
		if err != nil {
			return nil, err
		}
		tree.CallArgs = append(tree.CallArgs, child)
	}
	return tree, nil
}

// declaredHere returns every variable whose ScopeID is exactly c's own
// scope (not a nested one), used to mark an optional pattern's locally
// introduced variables optional (spec.md §4.6; SPEC_FULL §13 Open
// Question 1, "optional inside disjunction" decision).
func (c *Conjunction) declaredHere(ctx *PipelineTranslationContext) []VariableID {
	var out []VariableID
	for _, v := range ctx.Variables.All() {
		if v.ScopeID == c.ScopeID {
			out = append(out, v.ID)
		}
	}
	return out
}
