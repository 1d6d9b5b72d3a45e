package vm

import (
	"github.com/benbjohnson/immutable"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// ---------------------------------------------------------------------------
// Persistent maps and sets
//
// Maps are sorted by key so that Keys and Values come out in a stable
// order. A set is a map whose values are all 1.
// ---------------------------------------------------------------------------

type valueComparer struct{}

func (valueComparer) Compare(a, b Value) int { return decimal.Compare(a, b) }

type objectComparer struct{}

func (objectComparer) Compare(a, b Object) int { return CompareObjects(a, b) }

// Map is an immutable sorted map.
type Map[K, V any] struct {
	typ     bytecode.ObjectType
	entries *immutable.SortedMap[K, V]
}

type (
	ValueToValueMap   = Map[Value, Value]
	ValueToObjectMap  = Map[Value, Object]
	ObjectToValueMap  = Map[Object, Value]
	ObjectToObjectMap = Map[Object, Object]
)

func NewValueToValueMap() *ValueToValueMap {
	return &ValueToValueMap{typ: bytecode.ObjectValueToValueMap, entries: immutable.NewSortedMap[Value, Value](valueComparer{})}
}

func NewValueToObjectMap() *ValueToObjectMap {
	return &ValueToObjectMap{typ: bytecode.ObjectValueToObjectMap, entries: immutable.NewSortedMap[Value, Object](valueComparer{})}
}

func NewObjectToValueMap() *ObjectToValueMap {
	return &ObjectToValueMap{typ: bytecode.ObjectObjectToValueMap, entries: immutable.NewSortedMap[Object, Value](objectComparer{})}
}

func NewObjectToObjectMap() *ObjectToObjectMap {
	return &ObjectToObjectMap{typ: bytecode.ObjectObjectToObjectMap, entries: immutable.NewSortedMap[Object, Object](objectComparer{})}
}

func (m *Map[K, V]) Type() bytecode.ObjectType { return m.typ }

func (m *Map[K, V]) Len() int { return m.entries.Len() }

func (m *Map[K, V]) Get(key K) (V, bool) { return m.entries.Get(key) }

func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.entries.Get(key)
	return ok
}

// Set returns a copy with key bound to v.
func (m *Map[K, V]) Set(key K, v V) *Map[K, V] {
	return &Map[K, V]{typ: m.typ, entries: m.entries.Set(key, v)}
}

// Delete returns a copy without key. Deleting a missing key is not an
// error.
func (m *Map[K, V]) Delete(key K) *Map[K, V] {
	return &Map[K, V]{typ: m.typ, entries: m.entries.Delete(key)}
}

// Each calls fn for every entry in key order.
func (m *Map[K, V]) Each(fn func(K, V)) {
	itr := m.entries.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		fn(k, v)
	}
}

func (m *Map[K, V]) Keys() []K {
	out := make([]K, 0, m.entries.Len())
	m.Each(func(k K, _ V) { out = append(out, k) })
	return out
}

func (m *Map[K, V]) Values() []V {
	out := make([]V, 0, m.entries.Len())
	m.Each(func(_ K, v V) { out = append(out, v) })
	return out
}
