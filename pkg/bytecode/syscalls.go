package bytecode

import "fmt"

// ReturnKind says what a procedure or system call leaves on the stacks.
type ReturnKind byte

const (
	ReturnNone ReturnKind = iota
	ReturnValue
	ReturnObject
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnNone:
		return "none"
	case ReturnValue:
		return "value"
	case ReturnObject:
		return "object"
	}
	return fmt.Sprintf("ReturnKind(%d)", k)
}

// ObjectType tags heap objects, both at run time and in serialized global
// object sections.
type ObjectType byte

const (
	ObjectString ObjectType = iota
	ObjectValueList
	ObjectObjectList
	ObjectValueToValueMap
	ObjectValueToObjectMap
	ObjectObjectToValueMap
	ObjectObjectToObjectMap
	ObjectRecord
	ObjectValueOptional
	ObjectObjectOptional
	ObjectProcedureReference
	ObjectTimeZone
)

var objectTypeNames = [...]string{
	"String", "ValueList", "ObjectList", "ValueToValueMap", "ValueToObjectMap",
	"ObjectToValueMap", "ObjectToObjectMap", "Record", "ValueOptional",
	"ObjectOptional", "ProcedureReference", "TimeZone",
}

func (t ObjectType) String() string {
	if int(t) < len(objectTypeNames) {
		return objectTypeNames[t]
	}
	return fmt.Sprintf("ObjectType(%d)", t)
}

// ErrorCode values raised by the VM and exposed as ERR_* constants.
const (
	ErrInvalidLocaleName   = 1000
	ErrValueNotPresent     = 1001
	ErrInvalidDateTime     = 1002
	ErrInvalidTimeZone     = 1003
	ErrInternalIcuError    = 1004
	ErrIoFailure           = 1005
	ErrFileNotFound        = 1006
	ErrAccessDenied        = 1007
	ErrPathTooLong         = 1008
	ErrDiskFull            = 1009
	ErrPathIsDirectory     = 1010
	ErrMapKeyNotFound      = 1011
	ErrListIndexOutOfRange = 1012
	ErrInvalidNumberFormat = 1013
)

// SystemCall identifies a host routine invoked by OpSystemCall.
type SystemCall uint16

const (
	SysAbs SystemCall = iota
	SysAcos
	SysAsin
	SysAtan
	SysAtan2
	SysCeil
	SysCos
	SysExp
	SysFloor
	SysLog
	SysLog10
	SysRound
	SysSin
	SysSqr
	SysTan
	SysTrunc

	SysAvailableTimeZones
	SysTimeZoneFromName
	SysUtcTimeZone

	SysCharacters
	SysChr
	SysCodePoints
	SysCodeUnit1
	SysCodeUnit2
	SysCodeUnits
	SysStringFromCodePoints
	SysStringFromCodeUnits
	SysConcat1
	SysConcat2
	SysStringLen

	SysDateFromParts
	SysDateTimeFromParts
	SysDateTimeOffsetFromParts
	SysDays
	SysHours
	SysMilliseconds
	SysMinutes
	SysSeconds
	SysTotalDays
	SysTotalHours
	SysTotalMilliseconds
	SysTotalMinutes
	SysTotalSeconds

	SysDeleteFile
	SysReadFileLines
	SysReadFileText
	SysWriteFileLines
	SysWriteFileText

	SysPrintString
	SysInputString
	SysNumberFromString

	systemCallCount
)

// SystemCallInfo is the fixed stack signature of a system call.
type SystemCallInfo struct {
	Name       string
	NumValues  int
	NumObjects int
	Returns    ReturnKind
}

func num(name string, n int) SystemCallInfo {
	return SystemCallInfo{Name: name, NumValues: n, Returns: ReturnValue}
}

var systemCallTable = [systemCallCount]SystemCallInfo{
	SysAbs:   num("Abs", 1),
	SysAcos:  num("Acos", 1),
	SysAsin:  num("Asin", 1),
	SysAtan:  num("Atan", 1),
	SysAtan2: num("Atan2", 2),
	SysCeil:  num("Ceil", 1),
	SysCos:   num("Cos", 1),
	SysExp:   num("Exp", 1),
	SysFloor: num("Floor", 1),
	SysLog:   num("Log", 1),
	SysLog10: num("Log10", 1),
	SysRound: num("Round", 1),
	SysSin:   num("Sin", 1),
	SysSqr:   num("Sqr", 1),
	SysTan:   num("Tan", 1),
	SysTrunc: num("Trunc", 1),

	SysAvailableTimeZones: {Name: "AvailableTimeZones", Returns: ReturnObject},
	SysTimeZoneFromName:   {Name: "TimeZoneFromName", NumObjects: 1, Returns: ReturnObject},
	SysUtcTimeZone:        {Name: "UtcTimeZone", Returns: ReturnObject},

	SysCharacters:           {Name: "Characters", NumObjects: 1, Returns: ReturnObject},
	SysChr:                  {Name: "Chr", NumValues: 1, Returns: ReturnObject},
	SysCodePoints:           {Name: "CodePoints", NumObjects: 1, Returns: ReturnObject},
	SysCodeUnit1:            {Name: "CodeUnit1", NumObjects: 1, Returns: ReturnValue},
	SysCodeUnit2:            {Name: "CodeUnit2", NumValues: 1, NumObjects: 1, Returns: ReturnValue},
	SysCodeUnits:            {Name: "CodeUnits", NumObjects: 1, Returns: ReturnObject},
	SysStringFromCodePoints: {Name: "StringFromCodePoints", NumObjects: 1, Returns: ReturnObject},
	SysStringFromCodeUnits:  {Name: "StringFromCodeUnits", NumObjects: 1, Returns: ReturnObject},
	SysConcat1:              {Name: "Concat1", NumObjects: 1, Returns: ReturnObject},
	SysConcat2:              {Name: "Concat2", NumObjects: 2, Returns: ReturnObject},
	SysStringLen:            {Name: "StringLen", NumObjects: 1, Returns: ReturnValue},

	SysDateFromParts:           num("DateFromParts", 3),
	SysDateTimeFromParts:       num("DateTimeFromParts", 7),
	SysDateTimeOffsetFromParts: {Name: "DateTimeOffsetFromParts", NumValues: 7, NumObjects: 1, Returns: ReturnObject},
	SysDays:                    num("Days", 1),
	SysHours:                   num("Hours", 1),
	SysMilliseconds:            num("Milliseconds", 1),
	SysMinutes:                 num("Minutes", 1),
	SysSeconds:                 num("Seconds", 1),
	SysTotalDays:               num("TotalDays", 1),
	SysTotalHours:              num("TotalHours", 1),
	SysTotalMilliseconds:       num("TotalMilliseconds", 1),
	SysTotalMinutes:            num("TotalMinutes", 1),
	SysTotalSeconds:            num("TotalSeconds", 1),

	SysDeleteFile:     {Name: "DeleteFile", NumObjects: 1},
	SysReadFileLines:  {Name: "ReadFileLines", NumObjects: 1, Returns: ReturnObject},
	SysReadFileText:   {Name: "ReadFileText", NumObjects: 1, Returns: ReturnObject},
	SysWriteFileLines: {Name: "WriteFileLines", NumObjects: 2},
	SysWriteFileText:  {Name: "WriteFileText", NumObjects: 2},

	SysPrintString:      {Name: "PrintString", NumObjects: 1},
	SysInputString:      {Name: "InputString", Returns: ReturnObject},
	SysNumberFromString: {Name: "NumberFromString", NumObjects: 1, Returns: ReturnValue},
}

// GetSystemCallInfo returns the signature of id, or false if id is unknown.
func GetSystemCallInfo(id SystemCall) (SystemCallInfo, bool) {
	if int(id) >= len(systemCallTable) {
		return SystemCallInfo{}, false
	}
	return systemCallTable[id], true
}

func (id SystemCall) String() string {
	if info, ok := GetSystemCallInfo(id); ok {
		return info.Name
	}
	return fmt.Sprintf("SystemCall(%d)", uint16(id))
}

// SystemCallCount is the number of defined system calls.
func SystemCallCount() int { return int(systemCallCount) }
