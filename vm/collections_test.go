package vm

import (
	"testing"

	"github.com/nalgeon/be"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

func num(n int64) Value { return decimal.FromInt64(n) }

func formatValues(vs []Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = decimal.Format(v)
	}
	return out
}

func TestListUpdatesLeaveOriginal(t *testing.T) {
	orig := NewValueList(num(1), num(2), num(3))

	set := orig.Set(1, num(9))
	inserted := orig.Insert(1, num(7))
	removed := orig.Remove(1)
	appended := orig.Append(num(4))

	be.Equal(t, formatValues(orig.Slice()), []string{"1", "2", "3"})
	be.Equal(t, formatValues(set.Slice()), []string{"1", "9", "3"})
	be.Equal(t, formatValues(inserted.Slice()), []string{"1", "7", "2", "3"})
	be.Equal(t, formatValues(removed.Slice()), []string{"1", "3"})
	be.Equal(t, formatValues(appended.Slice()), []string{"1", "2", "3", "4"})
}

func TestListInsertAndRemoveAtEnds(t *testing.T) {
	l := NewValueList(num(1), num(2))
	be.Equal(t, formatValues(l.Insert(0, num(0)).Slice()), []string{"0", "1", "2"})
	be.Equal(t, formatValues(l.Insert(2, num(3)).Slice()), []string{"1", "2", "3"})
	be.Equal(t, formatValues(l.Remove(0).Slice()), []string{"2"})
	be.Equal(t, formatValues(l.Remove(1).Slice()), []string{"1"})
	be.Equal(t, NewValueList(num(1)).Remove(0).Len(), 0)
}

func TestListConcat(t *testing.T) {
	a := NewValueList(num(1))
	b := NewValueList(num(2), num(3))
	be.Equal(t, formatValues(a.Concat(b).Slice()), []string{"1", "2", "3"})
	be.Equal(t, a.Len(), 1)
}

func TestListBuilder(t *testing.T) {
	b := newListBuilder[Object](NewObjectList().Type())
	b.add(NewString("a"))
	b.add(NewString("b"))
	l := b.list()
	be.Equal(t, l.Len(), 2)
	be.Equal(t, l.Get(1).(*String).Value, "b")
}

func TestMapKeysAreSorted(t *testing.T) {
	m := NewValueToObjectMap().
		Set(num(3), NewString("c")).
		Set(num(1), NewString("a")).
		Set(num(2), NewString("b"))
	be.Equal(t, formatValues(m.Keys()), []string{"1", "2", "3"})

	var values []string
	for _, v := range m.Values() {
		values = append(values, v.(*String).Value)
	}
	be.Equal(t, values, []string{"a", "b", "c"})
}

func TestMapUpdatesLeaveOriginal(t *testing.T) {
	m := NewObjectToValueMap().Set(NewString("x"), num(1))
	m2 := m.Set(NewString("x"), num(2)).Set(NewString("y"), num(3))
	m3 := m2.Delete(NewString("x"))

	v, ok := m.Get(NewString("x"))
	be.True(t, ok)
	be.Equal(t, decimal.Format(v), "1")
	be.Equal(t, m2.Len(), 2)
	be.True(t, !m3.Has(NewString("x")))
	be.True(t, m2.Has(NewString("x")))
	be.Equal(t, m3.Delete(NewString("missing")).Len(), 1)
}

func TestCompareObjects(t *testing.T) {
	tests := []struct {
		name string
		a, b Object
		want int
	}{
		{"strings", NewString("a"), NewString("b"), -1},
		{"equal strings", NewString("a"), NewString("a"), 0},
		{"nil first", nil, NewString(""), -1},
		{"records by value", &Record{Values: []Value{num(2)}}, &Record{Values: []Value{num(1)}}, 1},
		{"records by object", &Record{Objects: []Object{NewString("a")}}, &Record{Objects: []Object{NewString("a")}}, 0},
		{"missing before present", &ValueOptional{}, &ValueOptional{Value: num(0), Present: true}, -1},
		{"lists", NewValueList(num(1), num(2)), NewValueList(num(1), num(3)), -1},
		{"shorter list first", NewValueList(num(1)), NewValueList(num(1), num(0)), -1},
		{"maps", NewValueToValueMap().Set(num(1), num(1)), NewValueToValueMap().Set(num(1), num(1)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be.Equal(t, CompareObjects(tt.a, tt.b), tt.want)
			be.Equal(t, CompareObjects(tt.b, tt.a), -tt.want)
		})
	}
}

func TestRecordStoreCopies(t *testing.T) {
	r := &Record{Values: []Value{num(1)}, Objects: []Object{NewString("a")}}
	r2 := r.withValue(0, num(2)).withObject(0, NewString("b"))
	be.Equal(t, decimal.Format(r.Values[0]), "1")
	be.Equal(t, r.Objects[0].(*String).Value, "a")
	be.Equal(t, decimal.Format(r2.Values[0]), "2")
	be.Equal(t, r2.Objects[0].(*String).Value, "b")
}
