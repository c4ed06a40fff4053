package ir

import "github.com/latticedb/lattice/concept"

// ParameterID references a literal value or binary IID in a query's
// ParameterRegistry (spec.md §3 "Variable / Parameter").
type ParameterID int

// ParameterKind discriminates the two parameter payload shapes.
type ParameterKind uint8

const (
	ParameterValue ParameterKind = iota
	ParameterIID
)

type Parameter struct {
	ID    ParameterID
	Kind  ParameterKind
	Value concept.Value
	IID   []byte
}

// ParameterRegistry holds the literal values and binary IIDs a compiled
// query references by id, keeping the IR itself free of embedded literals
// (so structurally equal IRs with different literals still compare equal
// up to parameter identity, per spec.md §4.6).
type ParameterRegistry struct {
	params []Parameter
}

func NewParameterRegistry() *ParameterRegistry { return &ParameterRegistry{} }

func (p *ParameterRegistry) AddValue(v concept.Value) ParameterID {
	id := ParameterID(len(p.params))
	p.params = append(p.params, Parameter{ID: id, Kind: ParameterValue, Value: v})
	return id
}

func (p *ParameterRegistry) AddIID(iid []byte) ParameterID {
	id := ParameterID(len(p.params))
	p.params = append(p.params, Parameter{ID: id, Kind: ParameterIID, IID: iid})
	return id
}

func (p *ParameterRegistry) Get(id ParameterID) Parameter { return p.params[id] }
