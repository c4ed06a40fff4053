// Package compiler implements spec.md §4.7: type annotation by constraint
// propagation, expression bytecode compilation, and match/write planning.
// Grounded on the teacher's planner/resolver.go scope-resolution fixed-point
// style and validation/recursion.go's DFS-over-call-graph shape, generalized
// from shell-command resolution to schema-type inference.
package compiler

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/encoding"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/ir"
)

var (
	ErrUnsupportedExpression = errs.Code{Component: "compiler", Number: 1, Name: "unsupported_expression"}
	ErrUnknownFunction       = errs.Code{Component: "compiler", Number: 2, Name: "unknown_function"}
	ErrUnknownLabel          = errs.Code{Component: "compiler", Number: 3, Name: "unknown_label"}
)

// suggestLabel returns the closest known label to want by fuzzy rank-match
// (spec.md §4.7, §7 "compilation errors"), or "" if candidates is empty.
func suggestLabel(want string, candidates []string) string {
	best := fuzzy.RankFind(want, candidates)
	if len(best) == 0 {
		return ""
	}
	sort.Slice(best, func(i, j int) bool { return best[i].Distance < best[j].Distance })
	return best[0].Target
}

// TypeSet is the set of candidate concrete type ids a variable or vertex may
// take, keyed by encoding.TypeID; the kind a variable ranges over is kept
// separately in Annotation.VariableKind.
type TypeSet map[encoding.TypeID]bool

func (s TypeSet) Clone() TypeSet {
	out := make(TypeSet, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

// Intersect mutates s to the intersection with other, reporting whether
// anything changed (used to detect fixed-point convergence).
func (s TypeSet) Intersect(other TypeSet) (changed bool) {
	for k := range s {
		if !other[k] {
			delete(s, k)
			changed = true
		}
	}
	return changed
}

func (s TypeSet) Sorted() []encoding.TypeID {
	out := make([]encoding.TypeID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Annotation holds, per variable, its candidate type set and kind, the
// output of spec.md §4.7 "Annotation" inference.
type Annotation struct {
	VariableTypes map[ir.VariableID]TypeSet
	VariableKind  map[ir.VariableID]concept.Kind
	// ValueVariables marks variables bound by an expression or function-call
	// binding constraint (spec.md §3 "expression-binding", "function-call-
	// binding"): they range over scalar values, not concept.Kind-typed
	// things, so they carry no TypeSet/VariableKind entry, but still need to
	// be distinguishable from a variable no constraint has touched at all.
	ValueVariables map[ir.VariableID]bool
	Unsatisfiable  map[ir.ScopeID]bool
	// Errors accumulates unknown-label errors found while seeding; inference
	// still proceeds (the offending variable is simply left untyped) so a
	// caller sees every unknown label in one pass instead of just the first.
	Errors []error
}

func newAnnotation() *Annotation {
	return &Annotation{
		VariableTypes:  make(map[ir.VariableID]TypeSet),
		VariableKind:   make(map[ir.VariableID]concept.Kind),
		ValueVariables: make(map[ir.VariableID]bool),
		Unsatisfiable:  make(map[ir.ScopeID]bool),
	}
}

// Annotator runs fixed-point type inference over a conjunction tree against
// a schema (spec.md §4.7).
type Annotator struct {
	types *concept.TypeManager
}

func NewAnnotator(types *concept.TypeManager) *Annotator {
	return &Annotator{types: types}
}

// AnnotateBlock iterates constraint propagation to a fixed point (spec.md
// §4.7 "Inference iterates to a fixed point"), pruning unsatisfiable
// disjunction branches and marking conjunctions unsatisfiable when a
// variable's type set empties.
func (a *Annotator) AnnotateBlock(block *ir.Block, reg *ir.VariableRegistry) *Annotation {
	ann := newAnnotation()
	a.seedUniverses(block.Root, reg, ann)
	for {
		changed := a.propagate(block.Root, ann)
		if !changed {
			break
		}
	}
	a.pruneUnsatisfiable(block.Root, ann)
	return ann
}

// seedUniverses seeds type sets from each constraint before narrowing via
// constraint propagation, recursing into nested patterns: a variable isa a
// label gets that label's subtype closure, while a has/links variable gets
// an empty set tagged with the kind its position implies; binding
// constraints mark their assigned variables as value variables.
func (a *Annotator) seedUniverses(c *ir.Conjunction, reg *ir.VariableRegistry, ann *Annotation) {
	for _, ct := range c.Constraints {
		a.seedFromConstraint(ct, reg, ann)
	}
	for _, n := range c.Nested {
		switch n.Kind {
		case ir.NestedDisjunction:
			for _, b := range n.Branches {
				a.seedUniverses(b, reg, ann)
			}
		default:
			a.seedUniverses(n.Inner, reg, ann)
		}
	}
}

func (a *Annotator) seedFromConstraint(ct ir.Constraint, reg *ir.VariableRegistry, ann *Annotation) {
	switch ct.Kind {
	case ir.ConstraintIsa:
		if ct.Left.Kind == ir.VertexVariable && ct.Right.Kind == ir.VertexLabel {
			a.seedVariableFromLabel(ct.Left.Variable, ct.Right.Label, ann)
		}
	case ir.ConstraintHas:
		if ct.Owner.Kind == ir.VertexVariable {
			a.ensureUniverse(ct.Owner.Variable, concept.KindEntity, ann)
		}
		if ct.Attribute.Kind == ir.VertexVariable {
			a.ensureUniverse(ct.Attribute.Variable, concept.KindAttribute, ann)
		}
	case ir.ConstraintLinks:
		if ct.Relation.Kind == ir.VertexVariable {
			a.ensureUniverse(ct.Relation.Variable, concept.KindRelation, ann)
		}
		if ct.Player.Kind == ir.VertexVariable {
			a.ensureUniverse(ct.Player.Variable, concept.KindEntity, ann)
		}
	case ir.ConstraintExpressionBinding, ir.ConstraintFunctionCallBinding:
		// spec.md §4.6 "Function calls and expressions each produce a
		// binding constraint with an assigned variable"; §4.7 "Functions
		// are annotated after their callers and are recursively
		// fixed-pointed across strongly connected components." The callee
		// side of that (re-deriving a function's own return type from its
		// body) isn't reachable here: FunctionDef bodies are stored as
		// already-planned executable.Pipeline, not IR, so there is nothing
		// to recurse into at annotation time. What IS owed to every caller
		// is that an assigned variable is recorded as seen and scalar-typed
		// rather than silently skipped, so propagate/pruneUnsatisfiable
		// never mistake it for an unconstrained, still-untouched variable.
		for _, v := range ct.Assigned {
			ann.ValueVariables[v] = true
		}
	}
}

func (a *Annotator) seedVariableFromLabel(v ir.VariableID, label string, ann *Annotation) {
	rec, err := a.types.GetByLabel(label)
	if err != nil {
		msg := "unknown type label %q"
		args := []any{label}
		if suggestion := suggestLabel(label, a.types.AllLabels()); suggestion != "" {
			msg += " (did you mean %q?)"
			args = append(args, suggestion)
		}
		ann.Errors = append(ann.Errors, errs.New(ErrUnknownLabel, msg, args...))
		return
	}
	ts := make(TypeSet)
	for _, id := range a.types.SubtypeClosure(rec) {
		ts[id] = true
	}
	ann.VariableTypes[v] = ts
	ann.VariableKind[v] = rec.Kind
}

func (a *Annotator) ensureUniverse(v ir.VariableID, kind concept.Kind, ann *Annotation) {
	if _, ok := ann.VariableTypes[v]; ok {
		return
	}
	ts := make(TypeSet)
	ann.VariableTypes[v] = ts
	ann.VariableKind[v] = kind
}

// propagate runs one pass of constraint-edge intersection, returning
// whether any variable's type set shrank.
func (a *Annotator) propagate(c *ir.Conjunction, ann *Annotation) bool {
	changed := false
	for _, ct := range c.Constraints {
		if ct.Kind == ir.ConstraintHas {
			changed = a.propagateHas(ct, ann) || changed
		}
		// ConstraintExpressionBinding/ConstraintFunctionCallBinding are seeded
		// (seedFromConstraint) but never narrowed here: their assigned
		// variables are scalar-valued (ir.CategoryValue), not
		// concept.Kind-typed, so there is no candidate type set for this
		// pass's constraint-edge intersection to shrink.
	}
	for _, n := range c.Nested {
		switch n.Kind {
		case ir.NestedDisjunction:
			for _, b := range n.Branches {
				changed = a.propagate(b, ann) || changed
			}
		default:
			changed = a.propagate(n.Inner, ann) || changed
		}
	}
	return changed
}

// propagateHas narrows an owner variable's type set to those types that
// transitively own (at least one of) the attribute's candidate types,
// per spec.md §4.5 inheritance rule for "has" constraints.
func (a *Annotator) propagateHas(ct ir.Constraint, ann *Annotation) bool {
	if ct.Owner.Kind != ir.VertexVariable {
		return false
	}
	owners, ok := ann.VariableTypes[ct.Owner.Variable]
	if !ok {
		return false
	}
	var attrIDs []encoding.TypeID
	if ct.Attribute.Kind == ir.VertexVariable {
		for id := range ann.VariableTypes[ct.Attribute.Variable] {
			attrIDs = append(attrIDs, id)
		}
	}
	if len(attrIDs) == 0 {
		return false
	}
	narrowed := make(TypeSet)
	for ownerID := range owners {
		rec, ok := a.types.GetByID(ann.VariableKind[ct.Owner.Variable], ownerID)
		if !ok {
			continue
		}
		for _, attrID := range attrIDs {
			if _, owns := a.types.TransitivelyOwns(rec, attrID); owns {
				narrowed[ownerID] = true
				break
			}
		}
	}
	return owners.Intersect(narrowed)
}

// pruneUnsatisfiable marks a conjunction unsatisfiable when any of its
// (non-optional) variables' type sets are empty, prunes unsatisfiable
// disjunction branches, and marks the enclosing conjunction unsatisfiable
// if every branch was pruned (spec.md §4.7).
func (a *Annotator) pruneUnsatisfiable(c *ir.Conjunction, ann *Annotation) {
	for _, ct := range c.Constraints {
		if ct.Kind == ir.ConstraintIsa && ct.Left.Kind == ir.VertexVariable {
			if ts, ok := ann.VariableTypes[ct.Left.Variable]; ok && len(ts) == 0 {
				ann.Unsatisfiable[c.ScopeID] = true
			}
		}
	}
	kept := c.Nested[:0]
	for _, n := range c.Nested {
		switch n.Kind {
		case ir.NestedDisjunction:
			live := n.Branches[:0]
			liveIDs := n.BranchIDs[:0]
			for i, b := range n.Branches {
				a.pruneUnsatisfiable(b, ann)
				if !ann.Unsatisfiable[b.ScopeID] {
					live = append(live, b)
					liveIDs = append(liveIDs, n.BranchIDs[i])
				}
			}
			n.Branches = live
			n.BranchIDs = liveIDs
			if len(n.Branches) == 0 {
				ann.Unsatisfiable[c.ScopeID] = true
				continue
			}
		default:
			a.pruneUnsatisfiable(n.Inner, ann)
		}
		kept = append(kept, n)
	}
	c.Nested = kept
}
