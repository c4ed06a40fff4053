// Package functions is the user-defined-function layer (spec.md §4.8
// "Tabled functions", §4.6 "Functions are annotated after their callers and
// are recursively fixed-pointed across strongly connected components").
// Grounded on the teacher's runtime/validation/recursion.go cycle-detection
// shape, generalized from a command-reference graph to a function-call
// graph, and repurposed from rejecting cycles to classifying them: a
// function reachable from itself needs tabling, everything else can be
// inlined once per call site.
package functions

import (
	"sort"

	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/executor"
)

var ErrUnknownFunction = errs.Code{Component: "functions", Number: 1, Name: "unknown_function"}

// Registry holds every function defined in the current schema, keyed by
// label (spec.md §4.6 "Preambles are user-defined functions").
type Registry struct {
	defs map[string]executor.FunctionDef
}

func NewRegistry() *Registry {
	return &Registry{defs: map[string]executor.FunctionDef{}}
}

// Define installs or replaces a function body (spec.md Open Question #2:
// "UDF freshness... pinned at query-start" — callers snapshot Registry.All
// once per query rather than reading through Registry for every call).
func (r *Registry) Define(def executor.FunctionDef) {
	r.defs[def.Name] = def
}

func (r *Registry) Get(name string) (executor.FunctionDef, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// All returns an independent copy (a map, in no particular order) of every defined function, the
// pinned-at-query-start view a query manager hands to a Tabler.
func (r *Registry) All() map[string]executor.FunctionDef {
	out := make(map[string]executor.FunctionDef, len(r.defs))
	for k, v := range r.defs {
		out[k] = v
	}
	return out
}

// Classification records, per function, whether it needs a memoization
// table (it or a mutual partner calls back into itself) or can be inlined
// once with no table at all (spec.md §4.8 "ExecuteInlinedFunction" vs
// "ExecuteTabledCall").
type Classification struct {
	Tabled map[string]bool
}

// ClassifyRecursion walks each function's call graph with the same
// visiting-set depth-first search the teacher uses to find `@cmd()` cycles,
// except a cycle here is recorded rather than rejected: every function on a
// discovered cycle is marked tabled; a function that only calls into a
// cycle is not.
func ClassifyRecursion(defs map[string]executor.FunctionDef) Classification {
	edges := make(map[string][]string, len(defs))
	names := make([]string, 0, len(defs))
	for name, def := range defs {
		edges[name] = callees(def)
		names = append(names, name)
	}
	sort.Strings(names)

	tabled := map[string]bool{}
	for _, name := range names {
		if tabled[name] {
			continue
		}
		detectCycle(name, edges, nil, map[string]bool{}, tabled)
	}
	return Classification{Tabled: tabled}
}

// detectCycle mirrors runtime/validation/recursion.go's detectRecursion: a
// back edge into the current path means every function on the path from the
// revisited name onward is part of a recursive (possibly mutual) cycle.
func detectCycle(name string, edges map[string][]string, path []string, visiting map[string]bool, tabled map[string]bool) {
	if visiting[name] {
		cycleStart := -1
		for i, p := range path {
			if p == name {
				cycleStart = i
				break
			}
		}
		if cycleStart >= 0 {
			for _, p := range path[cycleStart:] {
				tabled[p] = true
			}
		}
		return
	}
	if _, ok := edges[name]; !ok {
		return
	}
	visiting[name] = true
	newPath := append(append([]string{}, path...), name)
	for _, callee := range edges[name] {
		detectCycle(callee, edges, newPath, visiting, tabled)
	}
	delete(visiting, name)
}

// callees collects every CallLabel a function body's pipeline reaches,
// including inside nested disjunction/negation/optional patterns.
func callees(def executor.FunctionDef) []string {
	if def.Body == nil {
		return nil
	}
	var out []string
	collectCallees(def.Body, &out)
	return out
}

func collectCallees(pipe *executable.Pipeline, out *[]string) {
	if pipe == nil {
		return
	}
	for _, instr := range pipe.Instructions {
		if instr.Op == executable.OpFunctionCallBinding {
			*out = append(*out, instr.CallLabel)
		}
	}
	for _, n := range pipe.Nested {
		for _, b := range n.Branches {
			collectCallees(&b, out)
		}
		collectCallees(n.Inner, out)
	}
}
