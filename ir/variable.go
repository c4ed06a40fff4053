// Package ir implements the intermediate representation spec.md §3-4.6
// describes: variable/parameter registries, blocks, conjunctions, nested
// patterns and constraints. Grounded on the teacher's planner/scope_graph.go
// and planner/resolver.go variable-scoping discipline, generalized from
// shell-variable scopes to query-pattern variable scopes.
package ir

// VariableID identifies a variable within one query's VariableRegistry.
type VariableID int

// Category is the kind of value a variable may be bound to (spec.md §3
// "Variable / Parameter").
type Category uint8

const (
	CategoryTypeKind Category = iota
	CategoryThingKind
	CategoryValue
	CategoryListOf
)

// Variable is one entry in a VariableRegistry.
type Variable struct {
	ID         VariableID
	Name       string // empty for anonymous variables
	Category   Category
	Optional   bool
	ScopeID    ScopeID
	ElemOf     Category // for CategoryListOf, the element category
}

// VariableRegistry assigns stable integer ids to every variable a query
// pattern declares, scoped across nested blocks (spec.md §4.6
// "PipelineTranslationContext").
type VariableRegistry struct {
	vars []Variable
	byNameInScope map[ScopeID]map[string]VariableID
}

func NewVariableRegistry() *VariableRegistry {
	return &VariableRegistry{byNameInScope: make(map[ScopeID]map[string]VariableID)}
}

// Declare creates a new variable in scope, or returns the existing one if
// name was already declared in scope or an ancestor scope (spec.md §4.6
// "reuse of a name in a child scope binds to the parent's variable").
func (r *VariableRegistry) Declare(scope ScopeID, name string, cat Category, tree *ScopeTree) VariableID {
	if name != "" {
		for s := scope; ; {
			if m, ok := r.byNameInScope[s]; ok {
				if id, ok := m[name]; ok {
					return id
				}
			}
			parent, ok := tree.Parent(s)
			if !ok {
				break
			}
			s = parent
		}
	}
	id := VariableID(len(r.vars))
	r.vars = append(r.vars, Variable{ID: id, Name: name, Category: cat, ScopeID: scope})
	if name != "" {
		if r.byNameInScope[scope] == nil {
			r.byNameInScope[scope] = make(map[string]VariableID)
		}
		r.byNameInScope[scope][name] = id
	}
	return id
}

// DeclareAnonymous always creates a fresh variable, never reusing an
// existing binding (used for `$_` and compiler-internal temporaries).
func (r *VariableRegistry) DeclareAnonymous(scope ScopeID, cat Category) VariableID {
	id := VariableID(len(r.vars))
	r.vars = append(r.vars, Variable{ID: id, Category: cat, ScopeID: scope})
	return id
}

func (r *VariableRegistry) Get(id VariableID) Variable { return r.vars[id] }

func (r *VariableRegistry) SetOptional(id VariableID, optional bool) {
	r.vars[id].Optional = optional
}

func (r *VariableRegistry) Len() int { return len(r.vars) }

func (r *VariableRegistry) All() []Variable {
	out := make([]Variable, len(r.vars))
	copy(out, r.vars)
	return out
}
