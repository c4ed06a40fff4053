package concept_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/storage"
)

type fakeKV struct{ data map[string][]byte }

func fakeKVKey(ks storage.KeyspaceID, key []byte) string {
	return fmt.Sprintf("%d:%s", ks, key)
}

func (f *fakeKV) Get(ks storage.KeyspaceID, key []byte) ([]byte, bool) {
	if f.data == nil {
		return nil, false
	}
	v, ok := f.data[fakeKVKey(ks, key)]
	return v, ok
}

func (f *fakeKV) Iterate(ks storage.KeyspaceID, start, end []byte, fn func(key, value []byte) bool) {
	prefix := fmt.Sprintf("%d:", ks)
	for k, v := range f.data {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		kb := []byte(k[len(prefix):])
		if string(kb) >= string(start) && (end == nil || string(kb) < string(end)) {
			if !fn(kb, v) {
				return
			}
		}
	}
}

func (f *fakeKV) Insert(ks storage.KeyspaceID, key, value []byte) {
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[fakeKVKey(ks, key)] = value
}

func (f *fakeKV) Put(ks storage.KeyspaceID, key, value []byte, preExisted bool) {
	f.Insert(ks, key, value)
}

func (f *fakeKV) Delete(ks storage.KeyspaceID, key []byte) {
	delete(f.data, fakeKVKey(ks, key))
}

func TestCreateTypeIsIdempotentForSameKind(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)

	first, err := tm.CreateType(kv, concept.KindEntity, "person")
	require.NoError(t, err)
	second, err := tm.CreateType(kv, concept.KindEntity, "person")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateTypeRejectsKindMismatchOnSameLabel(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)

	_, err := tm.CreateType(kv, concept.KindEntity, "person")
	require.NoError(t, err)
	_, err = tm.CreateType(kv, concept.KindRelation, "person")
	assert.Error(t, err)
}

func TestGetByLabelReportsUnknownLabel(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	_, err := tm.GetByLabel("nobody")
	assert.ErrorIs(t, err, errs.Sentinel(concept.ErrUnknownLabel))
}

func TestSubtypeClosureIncludesTransitiveSubtypes(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)

	animal, err := tm.CreateType(kv, concept.KindEntity, "animal")
	require.NoError(t, err)
	mammal, err := tm.CreateType(kv, concept.KindEntity, "mammal")
	require.NoError(t, err)
	dog, err := tm.CreateType(kv, concept.KindEntity, "dog")
	require.NoError(t, err)

	require.NoError(t, tm.SetSupertype(kv, mammal, animal))
	require.NoError(t, tm.SetSupertype(kv, dog, mammal))

	closure := tm.SubtypeClosure(animal)
	assert.ElementsMatch(t, []int{int(animal.ID), int(mammal.ID), int(dog.ID)}, toInts(closure))
}

func toInts[T ~uint16](ids []T) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

func TestTransitivelyOwnsFollowsSupertypeChain(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)

	animal, err := tm.CreateType(kv, concept.KindEntity, "animal")
	require.NoError(t, err)
	dog, err := tm.CreateType(kv, concept.KindEntity, "dog")
	require.NoError(t, err)
	require.NoError(t, tm.SetSupertype(kv, dog, animal))

	name, err := tm.CreateType(kv, concept.KindAttribute, "name")
	require.NoError(t, err)
	tm.SetValueType(name, concept.ValueTypeString)
	tm.SetOwns(kv, animal, name, concept.Annotations{CardMax: -1})

	_, ok := tm.TransitivelyOwns(dog, name.ID)
	assert.True(t, ok)
}

func TestAllLabelsIsSortedAndComplete(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	_, err := tm.CreateType(kv, concept.KindEntity, "zebra")
	require.NoError(t, err)
	_, err = tm.CreateType(kv, concept.KindEntity, "apple")
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "zebra"}, tm.AllLabels())
}

func TestThingManagerCreateEntityRejectsAbstractType(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)

	abstractType, err := tm.CreateType(kv, concept.KindEntity, "shape")
	require.NoError(t, err)
	tm.SetAnnotations(abstractType, concept.Annotations{Abstract: true, CardMax: -1})

	_, err = things.CreateEntity(kv, abstractType)
	assert.Error(t, err)
}

func TestPutAttributeIsIdempotentForEqualValues(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)

	name, err := tm.CreateType(kv, concept.KindAttribute, "name")
	require.NoError(t, err)
	tm.SetValueType(name, concept.ValueTypeString)

	v := concept.Value{Type: concept.ValueTypeString, String: "Alice"}
	first, err := things.PutAttribute(kv, name, v)
	require.NoError(t, err)
	second, err := things.PutAttribute(kv, name, v)
	require.NoError(t, err)
	assert.Equal(t, first.Vertex, second.Vertex)
}

func TestPutAttributeRejectsValueTypeMismatch(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)

	age, err := tm.CreateType(kv, concept.KindAttribute, "age")
	require.NoError(t, err)
	tm.SetValueType(age, concept.ValueTypeLong)

	_, err = things.PutAttribute(kv, age, concept.Value{Type: concept.ValueTypeString, String: "old"})
	assert.Error(t, err)
}

func TestSetHasRejectsUndeclaredOwnership(t *testing.T) {
	kv := &fakeKV{}
	tm := concept.NewTypeManager(kv)
	things := concept.NewThingManager(tm)

	person, err := tm.CreateType(kv, concept.KindEntity, "person")
	require.NoError(t, err)
	name, err := tm.CreateType(kv, concept.KindAttribute, "name")
	require.NoError(t, err)
	tm.SetValueType(name, concept.ValueTypeString)

	alice, err := things.CreateEntity(kv, person)
	require.NoError(t, err)
	nameValue, err := things.PutAttribute(kv, name, concept.Value{Type: concept.ValueTypeString, String: "Alice"})
	require.NoError(t, err)

	err = things.SetHas(kv, person, alice, name, nameValue)
	assert.Error(t, err)

	tm.SetOwns(kv, person, name, concept.Annotations{CardMax: -1})
	assert.NoError(t, things.SetHas(kv, person, alice, name, nameValue))
}
