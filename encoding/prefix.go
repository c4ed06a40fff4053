// Package encoding implements the bit-exact byte layout for types, things,
// edges, properties, values and attribute IDs described in spec.md §3-4.4,
// §6 "Key layout summary".
package encoding

// Prefix is the single byte identifying the kind of key a byte string
// encodes (spec.md §3 "Prefix tag"). Values follow the ranges in spec.md §6.
type Prefix byte

const (
	PrefixTypeEntity   Prefix = 10
	PrefixTypeRelation Prefix = 11
	PrefixTypeAttribute Prefix = 12
	PrefixTypeRole     Prefix = 13

	PrefixThingEntity   Prefix = 30
	PrefixThingRelation Prefix = 31

	// Attribute thing vertices are partitioned by value-type category so
	// fixed-width categories (boolean..datetime-tz) get their own prefix and
	// a uniform per-category key length.
	PrefixAttrBoolean  Prefix = 50
	PrefixAttrLong     Prefix = 51
	PrefixAttrDouble   Prefix = 52
	PrefixAttrString   Prefix = 53
	PrefixAttrDecimal  Prefix = 54
	PrefixAttrDate     Prefix = 55
	PrefixAttrDateTime Prefix = 56
	PrefixAttrDateTimeTZ Prefix = 57
	PrefixAttrDuration Prefix = 58
	PrefixAttrStruct   Prefix = 59
	// PrefixAttrStringLong indexes strings over the inline threshold by
	// hash+tiebreaker instead of the raw value (spec.md §4.4).
	PrefixAttrStringLong Prefix = 60

	PrefixSub            Prefix = 100
	PrefixSubReverse     Prefix = 101
	PrefixOwns           Prefix = 102
	PrefixOwnsReverse    Prefix = 103
	PrefixPlays          Prefix = 104
	PrefixPlaysReverse   Prefix = 105
	PrefixRelates        Prefix = 106
	PrefixRelatesReverse Prefix = 107

	PrefixHas        Prefix = 130
	PrefixHasReverse Prefix = 131
	PrefixLinks        Prefix = 132
	PrefixLinksReverse Prefix = 133
	PrefixRolePlayerIndex Prefix = 140

	PrefixPropertyType     Prefix = 160
	PrefixPropertyTypeEdge Prefix = 161

	PrefixDefinitionStruct   Prefix = 170
	PrefixDefinitionFunction Prefix = 171
	PrefixDefinitionProperty Prefix = 172

	PrefixLabelIndex Prefix = 182
)

// LongStringThreshold is the inline-encoding cutoff named in spec.md §4.4
// and §8 "Long string": strings at or under this many bytes are encoded
// inline (order-preserving); longer strings are routed to
// PrefixAttrStringLong, indexed by hash with a tiebreaker counter.
const LongStringThreshold = 64
