package vm

import (
	"time"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
)

// Object is the content of an object stack slot. Implementations are
// immutable once they are visible to the program.
type Object interface {
	Type() bytecode.ObjectType
}

// String is a text value held as UTF-8.
type String struct {
	Value string
}

func NewString(s string) *String { return &String{Value: s} }

func (*String) Type() bytecode.ObjectType { return bytecode.ObjectString }

// Record holds the fields of a record split by storage: value fields and
// object fields, each in declaration order.
type Record struct {
	Values  []Value
	Objects []Object
}

func (*Record) Type() bytecode.ObjectType { return bytecode.ObjectRecord }

// withValue returns a copy of r with value field i replaced.
func (r *Record) withValue(i int, v Value) *Record {
	values := make([]Value, len(r.Values))
	copy(values, r.Values)
	values[i] = v
	return &Record{Values: values, Objects: r.Objects}
}

// withObject returns a copy of r with object field i replaced.
func (r *Record) withObject(i int, o Object) *Record {
	objects := make([]Object, len(r.Objects))
	copy(objects, r.Objects)
	objects[i] = o
	return &Record{Values: r.Values, Objects: objects}
}

// ValueOptional is an optional number, boolean or date.
type ValueOptional struct {
	Value   Value
	Present bool
}

func (*ValueOptional) Type() bytecode.ObjectType { return bytecode.ObjectValueOptional }

// ObjectOptional is an optional object.
type ObjectOptional struct {
	Value   Object
	Present bool
}

func (*ObjectOptional) Type() bytecode.ObjectType { return bytecode.ObjectObjectOptional }

// ProcedureReference names a procedure by index.
type ProcedureReference struct {
	Index int
}

func (*ProcedureReference) Type() bytecode.ObjectType { return bytecode.ObjectProcedureReference }

// TimeZone is a named IANA time zone.
type TimeZone struct {
	Name     string
	Location *time.Location
}

func (*TimeZone) Type() bytecode.ObjectType { return bytecode.ObjectTimeZone }

// recordBuilder accumulates fields between RecordBuilderBegin and
// RecordBuilderEnd.
type recordBuilder struct {
	values  []Value
	objects []Object
}

func newRecordBuilder(numValues, numObjects int) *recordBuilder {
	return &recordBuilder{
		values:  make([]Value, 0, numValues),
		objects: make([]Object, 0, numObjects),
	}
}

func (b *recordBuilder) record() *Record {
	return &Record{Values: b.values, Objects: b.objects}
}
