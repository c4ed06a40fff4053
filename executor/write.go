package executor

import (
	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/encoding"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/ir"
	"github.com/latticedb/lattice/storage"
)

var ErrUnresolvableOwner = errs.Code{Component: "executor", Number: 30, Name: "unresolvable_owner_type"}

// WriteExecutor runs a compiled insert/delete/update stage's
// executable.WriteInstruction sequence against one row at a time (spec.md
// §4.8 "Write executors"), delegating to concept.ThingManager/TypeManager
// for the actual vertex/edge mutations.
type WriteExecutor struct {
	Writer   concept.KVWriter
	Types    *concept.TypeManager
	Things   *concept.ThingManager
	Builtins map[string]Builtin
}

func NewWriteExecutor(w concept.KVWriter, types *concept.TypeManager, things *concept.ThingManager) *WriteExecutor {
	return &WriteExecutor{Writer: w, Types: types, Things: things}
}

// Run applies instrs to every row in rows in order, returning the rows with
// their write-introduced variables populated.
func (we *WriteExecutor) Run(instrs []executable.WriteInstruction, rows []Row) ([]Row, error) {
	for _, instr := range instrs {
		next := make([]Row, 0, len(rows))
		for _, row := range rows {
			updated, err := we.apply(instr, row)
			if err != nil {
				return nil, err
			}
			next = append(next, updated)
		}
		rows = next
	}
	return rows, nil
}

func (we *WriteExecutor) apply(instr executable.WriteInstruction, row Row) (Row, error) {
	switch instr.Op {
	case executable.WritePutEntity:
		rec, err := we.Types.GetByLabel(instr.TypeLabel)
		if err != nil {
			return row, err
		}
		ref, err := we.Things.CreateEntity(we.Writer, rec)
		if err != nil {
			return row, err
		}
		return we.bind(row, instr.Output, ref), nil

	case executable.WritePutRelation:
		rec, err := we.Types.GetByLabel(instr.TypeLabel)
		if err != nil {
			return row, err
		}
		ref, err := we.Things.CreateRelation(we.Writer, rec)
		if err != nil {
			return row, err
		}
		return we.bind(row, instr.Output, ref), nil

	case executable.WritePutAttribute:
		rec, err := we.Types.GetByLabel(instr.TypeLabel)
		if err != nil {
			return row, err
		}
		var value concept.Value
		if instr.Program != nil {
			value, err = EvaluateProgram(instr.Program, func(id int) concept.Value {
				return row.Cells[id].Value
			}, we.Builtins)
			if err != nil {
				return row, err
			}
		}
		value.Type = rec.ValueType
		ref, err := we.Things.PutAttribute(we.Writer, rec, value)
		if err != nil {
			return row, err
		}
		return we.bind(row, instr.Output, ref), nil

	case executable.WriteHas:
		owner, attr, err := we.pairVertices(row, instr.Owner, instr.Attribute)
		if err != nil {
			return row, err
		}
		ownerType, err := we.typeOf(owner)
		if err != nil {
			return row, err
		}
		attrType, err := we.typeOf(attr)
		if err != nil {
			return row, err
		}
		if err := we.Things.SetHas(we.Writer, ownerType, owner, attrType, attr); err != nil {
			return row, err
		}
		return row, nil

	case executable.WriteRolePlayer:
		relation, player, err := we.pairVertices(row, instr.Relation, instr.Player)
		if err != nil {
			return row, err
		}
		playerType, err := we.typeOf(player)
		if err != nil {
			return row, err
		}
		roleCell := row.Cells[instr.Role]
		roleType, err := we.typeOf(roleCell.Concept)
		if err != nil {
			return row, err
		}
		if err := we.Things.AddPlayer(we.Writer, relation, playerType, player, roleType); err != nil {
			return row, err
		}
		return row, nil

	case executable.WriteDeleteHas:
		owner, attr, err := we.pairVertices(row, instr.Owner, instr.Attribute)
		if err != nil {
			return row, err
		}
		we.Things.UnsetHas(we.Writer, owner, attr)
		return row, nil

	case executable.WriteDeleteRolePlayer:
		relation, player, err := we.pairVertices(row, instr.Relation, instr.Player)
		if err != nil {
			return row, err
		}
		roleType, err := we.typeOf(row.Cells[instr.Role].Concept)
		if err != nil {
			return row, err
		}
		we.Things.RemovePlayer(we.Writer, relation, player, roleType)
		return row, nil

	case executable.WriteDeleteThing:
		thing, ok := cellVertex(row, instr.Output)
		if !ok {
			return row, nil
		}
		we.Writer.Delete(keyspaceForVertex(thing.Vertex), thing.Vertex)
		return row, nil
	}
	return row, nil
}

func (we *WriteExecutor) bind(row Row, v ir.VariableID, ref concept.ThingVertexRef) Row {
	next := row.Clone()
	next.Cells[v] = Cell{Kind: CellConcept, Concept: ref}
	return next
}

func (we *WriteExecutor) pairVertices(row Row, a, b ir.VariableID) (concept.ThingVertexRef, concept.ThingVertexRef, error) {
	av, ok := cellVertex(row, a)
	if !ok {
		return concept.ThingVertexRef{}, concept.ThingVertexRef{}, errs.New(ErrUnresolvableOwner, "variable has no concept binding")
	}
	bv, ok := cellVertex(row, b)
	if !ok {
		return concept.ThingVertexRef{}, concept.ThingVertexRef{}, errs.New(ErrUnresolvableOwner, "variable has no concept binding")
	}
	return av, bv, nil
}

// typeOf recovers ref's TypeRecord by decoding its vertex prefix and type
// id, since a row cell carries only the thing's vertex bytes, not a
// pointer back to its schema record.
func (we *WriteExecutor) typeOf(ref concept.ThingVertexRef) (*concept.TypeRecord, error) {
	if len(ref.Vertex) < 3 {
		return nil, errs.New(ErrUnresolvableOwner, "malformed thing vertex")
	}
	prefix, typeID := encoding.DecodeTypeVertex(ref.Vertex[:3])
	kind := kindFromPrefix(prefix)
	rec, ok := we.Types.GetByID(kind, typeID)
	if !ok {
		return nil, errs.New(ErrUnresolvableOwner, "no type registered for vertex prefix %d id %d", prefix, typeID)
	}
	return rec, nil
}

func kindFromPrefix(p encoding.Prefix) concept.Kind {
	switch p {
	case encoding.PrefixThingRelation:
		return concept.KindRelation
	case encoding.PrefixAttrBoolean, encoding.PrefixAttrLong, encoding.PrefixAttrDouble,
		encoding.PrefixAttrDecimal, encoding.PrefixAttrString, encoding.PrefixAttrStringLong,
		encoding.PrefixAttrDate, encoding.PrefixAttrDateTime, encoding.PrefixAttrDateTimeTZ,
		encoding.PrefixAttrDuration, encoding.PrefixAttrStruct:
		return concept.KindAttribute
	default:
		return concept.KindEntity
	}
}

// keyspaceForVertex recovers which keyspace a thing vertex lives in: long
// strings are interned separately from the fixed-width thing-vertex
// keyspace (spec.md §4.3 "Keyspace").
func keyspaceForVertex(vertex []byte) storage.KeyspaceID {
	if len(vertex) > 0 && encoding.Prefix(vertex[0]) == encoding.PrefixAttrStringLong {
		return storage.KeyspaceAttributeLong
	}
	return storage.KeyspaceThingVertex
}
