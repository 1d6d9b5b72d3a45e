package vm

import (
	"github.com/benbjohnson/immutable"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Persistent lists
// ---------------------------------------------------------------------------

// List is an immutable, zero-based list. Every update returns a new list
// that shares structure with the receiver.
type List[T any] struct {
	typ   bytecode.ObjectType
	items *immutable.List[T]
}

// ValueList holds numbers, booleans or dates.
type ValueList = List[Value]

// ObjectList holds objects.
type ObjectList = List[Object]

func NewValueList(items ...Value) *ValueList {
	return &ValueList{typ: bytecode.ObjectValueList, items: immutable.NewList(items...)}
}

func NewObjectList(items ...Object) *ObjectList {
	return &ObjectList{typ: bytecode.ObjectObjectList, items: immutable.NewList(items...)}
}

func (l *List[T]) Type() bytecode.ObjectType { return l.typ }

func (l *List[T]) Len() int { return l.items.Len() }

func (l *List[T]) inRange(i int64) bool {
	return i >= 0 && i < int64(l.items.Len())
}

// Get returns element i. The caller checks the range.
func (l *List[T]) Get(i int) T { return l.items.Get(i) }

func (l *List[T]) with(items *immutable.List[T]) *List[T] {
	return &List[T]{typ: l.typ, items: items}
}

// Set returns a copy with element i replaced.
func (l *List[T]) Set(i int, v T) *List[T] {
	return l.with(l.items.Set(i, v))
}

// Append returns a copy with v added at the end.
func (l *List[T]) Append(v T) *List[T] {
	return l.with(l.items.Append(v))
}

// Insert returns a copy with v inserted before element i. i may equal Len.
func (l *List[T]) Insert(i int, v T) *List[T] {
	n := l.items.Len()
	switch i {
	case 0:
		return l.with(l.items.Prepend(v))
	case n:
		return l.Append(v)
	}
	items := l.items.Slice(0, i).Append(v)
	for j := i; j < n; j++ {
		items = items.Append(l.items.Get(j))
	}
	return l.with(items)
}

// Remove returns a copy without element i.
func (l *List[T]) Remove(i int) *List[T] {
	n := l.items.Len()
	switch i {
	case 0:
		return l.with(l.items.Slice(1, n))
	case n - 1:
		return l.with(l.items.Slice(0, n-1))
	}
	items := l.items.Slice(0, i)
	for j := i + 1; j < n; j++ {
		items = items.Append(l.items.Get(j))
	}
	return l.with(items)
}

// Concat returns the elements of l followed by those of other.
func (l *List[T]) Concat(other *List[T]) *List[T] {
	items := l.items
	itr := other.items.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		items = items.Append(v)
	}
	return l.with(items)
}

// Slice copies the elements into a Go slice.
func (l *List[T]) Slice() []T {
	out := make([]T, 0, l.items.Len())
	itr := l.items.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		out = append(out, v)
	}
	return out
}

// listBuilder accumulates elements between the ListBuilderBegin and
// ListBuilderEnd opcodes.
type listBuilder[T any] struct {
	typ bytecode.ObjectType
	b   *immutable.ListBuilder[T]
}

func newListBuilder[T any](typ bytecode.ObjectType) *listBuilder[T] {
	return &listBuilder[T]{typ: typ, b: immutable.NewListBuilder[T]()}
}

func (b *listBuilder[T]) add(v T) { b.b.Append(v) }

func (b *listBuilder[T]) list() *List[T] {
	return &List[T]{typ: b.typ, items: b.b.List()}
}
