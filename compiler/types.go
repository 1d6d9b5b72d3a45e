package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Type construction and relations
// ---------------------------------------------------------------------------

// NewType returns a fresh primitive type node.
func NewType(kind TypeKind) *TypeNode {
	return &TypeNode{Kind: kind}
}

// ListOf returns "List of item".
func ListOf(item *TypeNode) *TypeNode {
	return &TypeNode{Kind: KindList, Item: item}
}

// SetOf returns "Set of item".
func SetOf(item *TypeNode) *TypeNode {
	return &TypeNode{Kind: KindSet, Item: item}
}

// OptionalOf returns "Optional item".
func OptionalOf(item *TypeNode) *TypeNode {
	return &TypeNode{Kind: KindOptional, Item: item}
}

// MapOf returns "Map from key to value".
func MapOf(key, value *TypeNode) *TypeNode {
	return &TypeNode{Kind: KindMap, Key: key, Value: value}
}

// RecordOf returns an anonymous record type.
func RecordOf(fields ...*Parameter) *TypeNode {
	return &TypeNode{Kind: KindRecord, Fields: fields}
}

// IsValueType reports whether values of t live on the value stack.
func (t *TypeNode) IsValueType() bool {
	switch t.Kind {
	case KindBoolean, KindNumber, KindDate, KindDateTime, KindTimeSpan:
		return true
	}
	return false
}

// Is reports whether t has the given kind.
func (t *TypeNode) Is(kind TypeKind) bool {
	return t != nil && t.Kind == kind
}

// IsGeneric reports whether t mentions a generic placeholder.
func (t *TypeNode) IsGeneric() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindGeneric1, KindGeneric2:
		return true
	case KindList, KindSet, KindOptional:
		return t.Item.IsGeneric()
	case KindMap:
		return t.Key.IsGeneric() || t.Value.IsGeneric()
	}
	return false
}

var primitiveTypeNames = map[TypeKind]string{
	KindBoolean:        "Boolean",
	KindNumber:         "Number",
	KindString:         "String",
	KindDate:           "Date",
	KindDateTime:       "DateTime",
	KindDateTimeOffset: "DateTimeOffset",
	KindTimeSpan:       "TimeSpan",
	KindTimeZone:       "TimeZone",
	KindGeneric1:       "T1",
	KindGeneric2:       "T2",
}

func (t *TypeNode) String() string {
	if t == nil {
		return "<none>"
	}
	if name, ok := primitiveTypeNames[t.Kind]; ok {
		return name
	}
	switch t.Kind {
	case KindList:
		return "List of " + t.Item.String()
	case KindSet:
		return "Set of " + t.Item.String()
	case KindOptional:
		return "Optional " + t.Item.String()
	case KindMap:
		return fmt.Sprintf("Map from %s to %s", t.Key, t.Value)
	case KindRecord:
		if t.RecordName != "" {
			return t.RecordName
		}
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + " as " + f.Type.String()
		}
		return "Record (" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprintf("Type(%d)", t.Kind)
}

// EqualTypes reports structural type equality. Named records compare by
// name; anonymous records compare field by field.
func EqualTypes(a, b *TypeNode) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindList, KindSet, KindOptional:
		return EqualTypes(a.Item, b.Item)
	case KindMap:
		return EqualTypes(a.Key, b.Key) && EqualTypes(a.Value, b.Value)
	case KindRecord:
		if a.RecordName != "" && b.RecordName != "" {
			return strings.EqualFold(a.RecordName, b.RecordName)
		}
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !strings.EqualFold(a.Fields[i].Name, b.Fields[i].Name) ||
				!EqualTypes(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return true
}

// CanImplicitlyConvert reports whether a value of type from may be used
// where to is expected without an explicit "as".
func CanImplicitlyConvert(from, to *TypeNode) bool {
	if EqualTypes(from, to) {
		return true
	}
	if from == nil || to == nil {
		return false
	}
	if to.Kind == KindOptional {
		if from.Kind == KindOptional {
			return EqualTypes(from.Item, to.Item)
		}
		return EqualTypes(from, to.Item)
	}
	return false
}

// CanExplicitlyConvert reports whether "value as to" is legal.
func CanExplicitlyConvert(from, to *TypeNode) bool {
	if CanImplicitlyConvert(from, to) {
		return true
	}
	switch {
	case to.Kind == KindString:
		switch from.Kind {
		case KindNumber, KindBoolean, KindDate, KindDateTime, KindTimeSpan:
			return true
		}
	case from.Kind == KindDate && to.Kind == KindDateTime:
		return true
	case from.Kind == KindDateTime && to.Kind == KindDate:
		return true
	}
	return false
}

// unifyType matches an argument type against a built-in parameter type,
// binding generic placeholders as it goes.
func unifyType(param, arg *TypeNode, generics *[2]*TypeNode) bool {
	switch param.Kind {
	case KindGeneric1, KindGeneric2:
		slot := 0
		if param.Kind == KindGeneric2 {
			slot = 1
		}
		if generics[slot] == nil {
			generics[slot] = arg
			return true
		}
		return EqualTypes(generics[slot], arg)
	case KindList, KindSet, KindOptional:
		if !param.IsGeneric() {
			return CanImplicitlyConvert(arg, param)
		}
		return arg.Kind == param.Kind && unifyType(param.Item, arg.Item, generics)
	case KindMap:
		if !param.IsGeneric() {
			return CanImplicitlyConvert(arg, param)
		}
		return arg.Kind == KindMap &&
			unifyType(param.Key, arg.Key, generics) &&
			unifyType(param.Value, arg.Value, generics)
	}
	return CanImplicitlyConvert(arg, param)
}

// substituteGenerics replaces placeholders in t with their bindings.
func substituteGenerics(t *TypeNode, generics [2]*TypeNode) *TypeNode {
	if t == nil || !t.IsGeneric() {
		return t
	}
	switch t.Kind {
	case KindGeneric1:
		return generics[0]
	case KindGeneric2:
		return generics[1]
	case KindList:
		return ListOf(substituteGenerics(t.Item, generics))
	case KindSet:
		return SetOf(substituteGenerics(t.Item, generics))
	case KindOptional:
		return OptionalOf(substituteGenerics(t.Item, generics))
	case KindMap:
		return MapOf(substituteGenerics(t.Key, generics), substituteGenerics(t.Value, generics))
	}
	return t
}

// recordFields returns the field list of a record-like type. DateTimeOffset
// is stored as a record of a DateTime and a TimeSpan offset.
func recordFields(t *TypeNode) []*Parameter {
	if t.Kind == KindDateTimeOffset {
		return dateTimeOffsetFields
	}
	return t.Fields
}

var dateTimeOffsetFields = []*Parameter{
	{Name: "DateTime", Type: NewType(KindDateTime)},
	{Name: "Offset", Type: NewType(KindTimeSpan)},
}

// fieldSlot returns the value or object slot of field i within a record.
func fieldSlot(fields []*Parameter, i int) (slot int, isValue bool) {
	isValue = fields[i].Type.IsValueType()
	for j := 0; j < i; j++ {
		if fields[j].Type.IsValueType() == isValue {
			slot++
		}
	}
	return slot, isValue
}

// findField looks up a field by case-insensitive name.
func findField(fields []*Parameter, name string) int {
	for i, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// countStorage splits a field list into value and object counts.
func countStorage(fields []*Parameter) (values, objects int) {
	for _, f := range fields {
		if f.Type.IsValueType() {
			values++
		} else {
			objects++
		}
	}
	return values, objects
}
