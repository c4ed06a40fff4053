package concept

import "github.com/latticedb/lattice/encoding"

// Kind is one of the four type-vertex kinds (spec.md §3 "Type vertex").
type Kind uint8

const (
	KindEntity Kind = iota
	KindRelation
	KindAttribute
	KindRole
)

func (k Kind) prefix() encoding.Prefix {
	switch k {
	case KindEntity:
		return encoding.PrefixTypeEntity
	case KindRelation:
		return encoding.PrefixTypeRelation
	case KindAttribute:
		return encoding.PrefixTypeAttribute
	case KindRole:
		return encoding.PrefixTypeRole
	default:
		panic("concept: unknown kind")
	}
}

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindRelation:
		return "relation"
	case KindAttribute:
		return "attribute"
	case KindRole:
		return "role"
	default:
		return "unknown"
	}
}

// ValueType names an attribute type's declared value category.
type ValueType uint8

const (
	ValueTypeNone ValueType = iota
	ValueTypeBoolean
	ValueTypeLong
	ValueTypeDouble
	ValueTypeDecimal
	ValueTypeString
	ValueTypeDate
	ValueTypeDateTime
	ValueTypeDateTimeTZ
	ValueTypeDuration
	ValueTypeStruct
)
