package functions

import (
	"strings"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/executor"
)

var ErrBuiltinArity = errs.Code{Component: "functions", Number: 2, Name: "builtin_arity"}

// Builtins returns the fixed table of scalar built-in functions the
// expression bytecode's OpCall resolves against (spec.md §3 "Expression
// bytecode": "... and built-in functions"). Unlike user-defined functions,
// this table never changes at runtime; each call returns a new map holding
// the same entries.
func Builtins() map[string]executor.Builtin {
	return map[string]executor.Builtin{
		"length": builtinLength,
		"upper":  builtinStringMap(strings.ToUpper),
		"lower":  builtinStringMap(strings.ToLower),
	}
}

func builtinLength(args []concept.Value) (concept.Value, error) {
	if len(args) != 1 {
		return concept.Value{}, errs.New(ErrBuiltinArity, "length takes exactly one argument, got %d", len(args))
	}
	return concept.Value{Type: concept.ValueTypeLong, Long: int64(len(args[0].String))}, nil
}

func builtinStringMap(f func(string) string) executor.Builtin {
	return func(args []concept.Value) (concept.Value, error) {
		if len(args) != 1 {
			return concept.Value{}, errs.New(ErrBuiltinArity, "string function takes exactly one argument, got %d", len(args))
		}
		return concept.Value{Type: concept.ValueTypeString, String: f(args[0].String)}, nil
	}
}
