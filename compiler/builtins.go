package compiler

import (
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// ---------------------------------------------------------------------------
// Built-in procedures, constants and record types
// ---------------------------------------------------------------------------

// Lowering selects how a built-in call is emitted.
type Lowering int

const (
	LowerSystemCall Lowering = iota
	LowerCount
	LowerErrorCode
	LowerErrorMessage
	LowerListInsert
	LowerSetInsert
	LowerListRemove
	LowerMapRemove
	LowerContainsKey
	LowerKeys
	LowerValues
	LowerHasValue
	LowerValue
)

// Builtin is a procedure implemented by the VM.
type Builtin struct {
	Name       string
	Parameters []*TypeNode
	Return     *TypeNode // nil for subs
	Lowering   Lowering
	SystemCall bytecode.SystemCall
}

// IsFunction reports whether the built-in returns a value.
func (b *Builtin) IsFunction() bool { return b.Return != nil }

// Signature renders the declaration of b, e.g. "function Len(String) as Number".
func (b *Builtin) Signature() string {
	params := make([]string, len(b.Parameters))
	for i, p := range b.Parameters {
		params[i] = p.String()
	}
	if b.Return == nil {
		return "sub " + b.Name + "(" + strings.Join(params, ", ") + ")"
	}
	return "function " + b.Name + "(" + strings.Join(params, ", ") + ") as " + b.Return.String()
}

var (
	tNumber   = NewType(KindNumber)
	tBoolean  = NewType(KindBoolean)
	tString   = NewType(KindString)
	tDate     = NewType(KindDate)
	tDateTime = NewType(KindDateTime)
	tOffset   = NewType(KindDateTimeOffset)
	tTimeSpan = NewType(KindTimeSpan)
	tTimeZone = NewType(KindTimeZone)
	tT1       = NewType(KindGeneric1)
	tT2       = NewType(KindGeneric2)
)

func sys(name string, id bytecode.SystemCall, ret *TypeNode, params ...*TypeNode) *Builtin {
	return &Builtin{Name: name, Parameters: params, Return: ret, SystemCall: id}
}

func lowered(name string, l Lowering, ret *TypeNode, params ...*TypeNode) *Builtin {
	return &Builtin{Name: name, Parameters: params, Return: ret, Lowering: l}
}

func repeatType(t *TypeNode, n int) []*TypeNode {
	out := make([]*TypeNode, n)
	for i := range out {
		out[i] = t
	}
	return out
}

// Builtins is the built-in procedure table in resolution order.
var Builtins = newBuiltins()

func newBuiltins() []*Builtin {
	b := []*Builtin{
		sys("Abs", bytecode.SysAbs, tNumber, tNumber),
		sys("Acos", bytecode.SysAcos, tNumber, tNumber),
		sys("Asin", bytecode.SysAsin, tNumber, tNumber),
		sys("Atan", bytecode.SysAtan, tNumber, tNumber),
		sys("Atan2", bytecode.SysAtan2, tNumber, tNumber, tNumber),
		sys("AvailableTimeZones", bytecode.SysAvailableTimeZones, ListOf(tString)),
		sys("Ceil", bytecode.SysCeil, tNumber, tNumber),
		sys("Characters", bytecode.SysCharacters, ListOf(tString), tString),
		sys("Chr", bytecode.SysChr, tString, tNumber),
		sys("CodePoints", bytecode.SysCodePoints, ListOf(tNumber), tString),
		sys("CodeUnit", bytecode.SysCodeUnit1, tNumber, tString),
		sys("CodeUnit", bytecode.SysCodeUnit2, tNumber, tString, tNumber),
		sys("CodeUnits", bytecode.SysCodeUnits, ListOf(tNumber), tString),
		sys("Concat", bytecode.SysConcat1, tString, ListOf(tString)),
		sys("Concat", bytecode.SysConcat2, tString, ListOf(tString), tString),
		sys("Cos", bytecode.SysCos, tNumber, tNumber),
		sys("DateFromParts", bytecode.SysDateFromParts, tDate, repeatType(tNumber, 3)...),
		sys("DateTimeFromParts", bytecode.SysDateTimeFromParts, tDateTime, repeatType(tNumber, 7)...),
		sys("DateTimeOffsetFromParts", bytecode.SysDateTimeOffsetFromParts, tOffset,
			append(repeatType(tNumber, 7), tTimeZone)...),
		sys("Days", bytecode.SysDays, tTimeSpan, tNumber),
		sys("DeleteFile", bytecode.SysDeleteFile, nil, tString),
		lowered("ErrorCode", LowerErrorCode, tNumber),
		lowered("ErrorMessage", LowerErrorMessage, tString),
		sys("Exp", bytecode.SysExp, tNumber, tNumber),
		sys("Floor", bytecode.SysFloor, tNumber, tNumber),
		sys("Hours", bytecode.SysHours, tTimeSpan, tNumber),
		lowered("Len", LowerCount, tNumber, ListOf(tT1)),
		sys("Len", bytecode.SysStringLen, tNumber, tString),
		lowered("Len", LowerCount, tNumber, MapOf(tT1, tT2)),
		lowered("Len", LowerCount, tNumber, SetOf(tT1)),
		sys("Log", bytecode.SysLog, tNumber, tNumber),
		sys("Log10", bytecode.SysLog10, tNumber, tNumber),
		sys("Milliseconds", bytecode.SysMilliseconds, tTimeSpan, tNumber),
		sys("Minutes", bytecode.SysMinutes, tTimeSpan, tNumber),
		sys("ReadFileLines", bytecode.SysReadFileLines, ListOf(tString), tString),
		sys("ReadFileText", bytecode.SysReadFileText, tString, tString),
		sys("Round", bytecode.SysRound, tNumber, tNumber),
		sys("Seconds", bytecode.SysSeconds, tTimeSpan, tNumber),
		sys("Sin", bytecode.SysSin, tNumber, tNumber),
		sys("Sqr", bytecode.SysSqr, tNumber, tNumber),
		sys("StringFromCodePoints", bytecode.SysStringFromCodePoints, tString, ListOf(tNumber)),
		sys("StringFromCodeUnits", bytecode.SysStringFromCodeUnits, tString, ListOf(tNumber)),
		sys("Tan", bytecode.SysTan, tNumber, tNumber),
		sys("TimeZoneFromName", bytecode.SysTimeZoneFromName, tTimeZone, tString),
		sys("TotalDays", bytecode.SysTotalDays, tNumber, tTimeSpan),
		sys("TotalHours", bytecode.SysTotalHours, tNumber, tTimeSpan),
		sys("TotalMilliseconds", bytecode.SysTotalMilliseconds, tNumber, tTimeSpan),
		sys("TotalMinutes", bytecode.SysTotalMinutes, tNumber, tTimeSpan),
		sys("TotalSeconds", bytecode.SysTotalSeconds, tNumber, tTimeSpan),
		sys("Trunc", bytecode.SysTrunc, tNumber, tNumber),
		sys("WriteFileLines", bytecode.SysWriteFileLines, nil, tString, ListOf(tString)),
		sys("WriteFileText", bytecode.SysWriteFileText, nil, tString, tString),

		// Collections and optionals.
		lowered("Insert", LowerListInsert, ListOf(tT1), ListOf(tT1), tNumber, tT1),
		lowered("Insert", LowerSetInsert, SetOf(tT1), SetOf(tT1), tT1),
		lowered("Remove", LowerListRemove, ListOf(tT1), ListOf(tT1), tNumber),
		lowered("Remove", LowerMapRemove, MapOf(tT1, tT2), MapOf(tT1, tT2), tT1),
		lowered("Remove", LowerMapRemove, SetOf(tT1), SetOf(tT1), tT1),
		lowered("ContainsKey", LowerContainsKey, tBoolean, MapOf(tT1, tT2), tT1),
		lowered("ContainsKey", LowerContainsKey, tBoolean, SetOf(tT1), tT1),
		lowered("Keys", LowerKeys, ListOf(tT1), MapOf(tT1, tT2)),
		lowered("Keys", LowerKeys, ListOf(tT1), SetOf(tT1)),
		lowered("Values", LowerValues, ListOf(tT2), MapOf(tT1, tT2)),
		lowered("HasValue", LowerHasValue, tBoolean, OptionalOf(tT1)),
		lowered("Value", LowerValue, tT1, OptionalOf(tT1)),
	}
	return b
}

// BuiltinConstant is a named number available to every procedure.
type BuiltinConstant struct {
	Name  string
	Value *apd.Decimal
}

// BuiltinConstants are bound in the outermost scope.
var BuiltinConstants = []*BuiltinConstant{
	{"PI", decimal.MustParse("3.141592653589793238462643383279502")},
	{"EULER", decimal.MustParse("2.718281828459045235360287471352662")},
	{"ERR_INVALID_LOCALE_NAME", decimal.FromInt64(bytecode.ErrInvalidLocaleName)},
	{"ERR_VALUE_NOT_PRESENT", decimal.FromInt64(bytecode.ErrValueNotPresent)},
	{"ERR_INVALID_DATETIME", decimal.FromInt64(bytecode.ErrInvalidDateTime)},
	{"ERR_INVALID_TIMEZONE", decimal.FromInt64(bytecode.ErrInvalidTimeZone)},
	{"ERR_INTERNAL_ICU_ERROR", decimal.FromInt64(bytecode.ErrInternalIcuError)},
	{"ERR_IO_FAILURE", decimal.FromInt64(bytecode.ErrIoFailure)},
	{"ERR_FILE_NOT_FOUND", decimal.FromInt64(bytecode.ErrFileNotFound)},
	{"ERR_ACCESS_DENIED", decimal.FromInt64(bytecode.ErrAccessDenied)},
	{"ERR_PATH_TOO_LONG", decimal.FromInt64(bytecode.ErrPathTooLong)},
	{"ERR_DISK_FULL", decimal.FromInt64(bytecode.ErrDiskFull)},
	{"ERR_PATH_IS_DIRECTORY", decimal.FromInt64(bytecode.ErrPathIsDirectory)},
	{"ERR_MAP_KEY_NOT_FOUND", decimal.FromInt64(bytecode.ErrMapKeyNotFound)},
	{"ERR_LIST_INDEX_OUT_OF_RANGE", decimal.FromInt64(bytecode.ErrListIndexOutOfRange)},
}

func numberFields(names ...string) []*Parameter {
	fields := make([]*Parameter, len(names))
	for i, n := range names {
		fields[i] = &Parameter{Name: n, Type: tNumber, Index: i}
	}
	return fields
}

// builtinRecords are record types usable by name without a declaration.
var builtinRecords = map[string]*TypeDeclaration{
	"rectangle": {Name: "Rectangle", Fields: numberFields("Left", "Top", "Width", "Height")},
	"color":     {Name: "Color", Fields: numberFields("Red", "Green", "Blue")},
}
