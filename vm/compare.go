package vm

import (
	"strings"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// CompareObjects is the total order used for object map keys and
// structural equality. Objects of different types order by type tag; nil
// sorts first.
func CompareObjects(a, b Object) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if ta, tb := a.Type(), b.Type(); ta != tb {
		return cmpInt(int(ta), int(tb))
	}

	switch a := a.(type) {
	case *String:
		return strings.Compare(a.Value, b.(*String).Value)
	case *TimeZone:
		return strings.Compare(a.Name, b.(*TimeZone).Name)
	case *ProcedureReference:
		return cmpInt(a.Index, b.(*ProcedureReference).Index)
	case *Record:
		o := b.(*Record)
		if c := compareSlices(a.Values, o.Values, decimal.Compare); c != 0 {
			return c
		}
		return compareSlices(a.Objects, o.Objects, CompareObjects)
	case *ValueOptional:
		o := b.(*ValueOptional)
		if a.Present != o.Present || !a.Present {
			return cmpBool(a.Present, o.Present)
		}
		return decimal.Compare(a.Value, o.Value)
	case *ObjectOptional:
		o := b.(*ObjectOptional)
		if a.Present != o.Present || !a.Present {
			return cmpBool(a.Present, o.Present)
		}
		return CompareObjects(a.Value, o.Value)
	case *ValueList:
		return compareSlices(a.Slice(), b.(*ValueList).Slice(), decimal.Compare)
	case *ObjectList:
		return compareSlices(a.Slice(), b.(*ObjectList).Slice(), CompareObjects)
	case *ValueToValueMap:
		return compareMaps(a, b.(*ValueToValueMap), decimal.Compare, decimal.Compare)
	case *ValueToObjectMap:
		return compareMaps(a, b.(*ValueToObjectMap), decimal.Compare, CompareObjects)
	case *ObjectToValueMap:
		return compareMaps(a, b.(*ObjectToValueMap), CompareObjects, decimal.Compare)
	case *ObjectToObjectMap:
		return compareMaps(a, b.(*ObjectToObjectMap), CompareObjects, CompareObjects)
	}
	return 0
}

// EqualObjects reports structural equality.
func EqualObjects(a, b Object) bool {
	return CompareObjects(a, b) == 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case b:
		return -1
	}
	return 1
}

func compareSlices[T any](a, b []T, cmp func(T, T) int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := cmp(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func compareMaps[K, V any](a, b *Map[K, V], ck func(K, K) int, cv func(V, V) int) int {
	if c := compareSlices(a.Keys(), b.Keys(), ck); c != 0 {
		return c
	}
	return compareSlices(a.Values(), b.Values(), cv)
}
