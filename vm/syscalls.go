package vm

import (
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"
	"syscall"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// callArgs are the popped arguments of a system call, first argument
// first.
type callArgs struct {
	values  []Value
	objects []Object
}

func (c callArgs) str(i int) string { return stringOf(c.objects[i]) }

type systemCallFunc func(in *Interpreter, args callArgs) (Value, Object, error)

// systemCall pops the arguments, runs the routine and pushes its result.
// A routine that raises still pushes a placeholder so the stack depth
// matches what the compiler planned for.
func (in *Interpreter) systemCall(id bytecode.SystemCall, numValues, numObjects int) {
	info, ok := bytecode.GetSystemCallInfo(id)
	fn := systemCalls[id]
	if !ok || fn == nil {
		panic(fatalf("unknown system call %d", id))
	}
	if numValues != info.NumValues || numObjects != info.NumObjects {
		panic(fatalf("system call %s takes %d values and %d objects, got %d and %d",
			info.Name, info.NumValues, info.NumObjects, numValues, numObjects))
	}
	if in.vsi < numValues || in.osi < numObjects {
		panic(fatalf("missing arguments for system call %s", info.Name))
	}
	args := callArgs{
		values:  append([]Value(nil), in.values[in.vsi-numValues:in.vsi]...),
		objects: append([]Object(nil), in.objects[in.osi-numObjects:in.osi]...),
	}
	in.popValues(numValues)
	in.popObjects(numObjects)

	v, o, err := fn(in, args)
	if err != nil {
		var re *runtimeError
		if !errors.As(err, &re) {
			re = raise(bytecode.ErrIoFailure, "%v", err)
		}
		in.setError(re)
	}
	switch info.Returns {
	case bytecode.ReturnValue:
		in.pushValue(orZero(v))
	case bytecode.ReturnObject:
		in.pushObject(o)
	}
}

func numberCall(op unaryFunc) systemCallFunc {
	return func(_ *Interpreter, args callArgs) (Value, Object, error) {
		return arith1(op, args.values[0]), nil, nil
	}
}

func floatCall(fn func(float64) float64) systemCallFunc {
	return func(_ *Interpreter, args callArgs) (Value, Object, error) {
		return fromFloat(fn(floatValue(args.values[0]))), nil, nil
	}
}

func timeSpanCall(id bytecode.SystemCall) systemCallFunc {
	scale := decimal.FromInt64(timeSpanScale[id])
	return func(_ *Interpreter, args callArgs) (Value, Object, error) {
		return arith(decimal.Context.Mul, args.values[0], scale), nil, nil
	}
}

func totalCall(id bytecode.SystemCall) systemCallFunc {
	scale := decimal.FromInt64(timeSpanScale[id])
	return func(_ *Interpreter, args callArgs) (Value, Object, error) {
		return arith(decimal.Context.Quo, args.values[0], scale), nil, nil
	}
}

var systemCalls = map[bytecode.SystemCall]systemCallFunc{
	// Numbers
	bytecode.SysAbs:   numberCall(decimal.Context.Abs),
	bytecode.SysAcos:  floatCall(math.Acos),
	bytecode.SysAsin:  floatCall(math.Asin),
	bytecode.SysAtan:  floatCall(math.Atan),
	bytecode.SysAtan2: sysAtan2,
	bytecode.SysCeil:  numberCall(decimal.Context.Ceil),
	bytecode.SysCos:   floatCall(math.Cos),
	bytecode.SysExp:   numberCall(decimal.Context.Exp),
	bytecode.SysFloor: numberCall(decimal.Context.Floor),
	bytecode.SysLog:   numberCall(decimal.Context.Ln),
	bytecode.SysLog10: numberCall(decimal.Context.Log10),
	bytecode.SysRound: numberCall(roundContext.RoundToIntegralValue),
	bytecode.SysSin:   floatCall(math.Sin),
	bytecode.SysSqr:   numberCall(decimal.Context.Sqrt),
	bytecode.SysTan:   floatCall(math.Tan),
	bytecode.SysTrunc: numberCall(truncContext.RoundToIntegralValue),

	// Time zones
	bytecode.SysAvailableTimeZones: sysAvailableTimeZones,
	bytecode.SysTimeZoneFromName:   sysTimeZoneFromName,
	bytecode.SysUtcTimeZone:        sysUtcTimeZone,

	// Strings
	bytecode.SysCharacters:           sysCharacters,
	bytecode.SysChr:                  sysChr,
	bytecode.SysCodePoints:           sysCodePoints,
	bytecode.SysCodeUnit1:            sysCodeUnit1,
	bytecode.SysCodeUnit2:            sysCodeUnit2,
	bytecode.SysCodeUnits:            sysCodeUnits,
	bytecode.SysStringFromCodePoints: sysStringFromCodePoints,
	bytecode.SysStringFromCodeUnits:  sysStringFromCodeUnits,
	bytecode.SysConcat1:              sysConcat1,
	bytecode.SysConcat2:              sysConcat2,
	bytecode.SysStringLen:            sysStringLen,

	// Dates and time spans
	bytecode.SysDateFromParts:           sysDateFromParts,
	bytecode.SysDateTimeFromParts:       sysDateTimeFromParts,
	bytecode.SysDateTimeOffsetFromParts: sysDateTimeOffsetFromParts,
	bytecode.SysDays:                    timeSpanCall(bytecode.SysDays),
	bytecode.SysHours:                   timeSpanCall(bytecode.SysHours),
	bytecode.SysMilliseconds:            timeSpanCall(bytecode.SysMilliseconds),
	bytecode.SysMinutes:                 timeSpanCall(bytecode.SysMinutes),
	bytecode.SysSeconds:                 timeSpanCall(bytecode.SysSeconds),
	bytecode.SysTotalDays:               totalCall(bytecode.SysTotalDays),
	bytecode.SysTotalHours:              totalCall(bytecode.SysTotalHours),
	bytecode.SysTotalMilliseconds:       totalCall(bytecode.SysTotalMilliseconds),
	bytecode.SysTotalMinutes:            totalCall(bytecode.SysTotalMinutes),
	bytecode.SysTotalSeconds:            totalCall(bytecode.SysTotalSeconds),

	// Files
	bytecode.SysDeleteFile:     sysDeleteFile,
	bytecode.SysReadFileLines:  sysReadFileLines,
	bytecode.SysReadFileText:   sysReadFileText,
	bytecode.SysWriteFileLines: sysWriteFileLines,
	bytecode.SysWriteFileText:  sysWriteFileText,

	// Console
	bytecode.SysPrintString:      sysPrintString,
	bytecode.SysInputString:      sysInputString,
	bytecode.SysNumberFromString: sysNumberFromString,
}

// ---------------------------------------------------------------------------
// Numbers
// ---------------------------------------------------------------------------

func sysAtan2(_ *Interpreter, args callArgs) (Value, Object, error) {
	return fromFloat(math.Atan2(floatValue(args.values[0]), floatValue(args.values[1]))), nil, nil
}

func sysNumberFromString(_ *Interpreter, args callArgs) (Value, Object, error) {
	d, err := decimal.Parse(strings.TrimSpace(args.str(0)))
	if err != nil {
		return nil, nil, raise(bytecode.ErrInvalidNumberFormat, "The string does not contain a valid number.")
	}
	return d, nil, nil
}

// ---------------------------------------------------------------------------
// Time zones
// ---------------------------------------------------------------------------

func sysAvailableTimeZones(_ *Interpreter, _ callArgs) (Value, Object, error) {
	b := newListBuilder[Object](bytecode.ObjectObjectList)
	for _, name := range zoneNames {
		b.add(NewString(name))
	}
	return nil, b.list(), nil
}

func sysTimeZoneFromName(_ *Interpreter, args callArgs) (Value, Object, error) {
	tz, err := LoadTimeZone(args.str(0))
	if err != nil {
		return nil, nil, raise(bytecode.ErrInvalidTimeZone, "The specified time zone was not found.")
	}
	return nil, tz, nil
}

func sysUtcTimeZone(_ *Interpreter, _ callArgs) (Value, Object, error) {
	return nil, utcZone, nil
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

func sysCharacters(_ *Interpreter, args callArgs) (Value, Object, error) {
	b := newListBuilder[Object](bytecode.ObjectObjectList)
	for _, g := range graphemes(args.str(0)) {
		b.add(NewString(g))
	}
	return nil, b.list(), nil
}

func sysChr(_ *Interpreter, args callArgs) (Value, Object, error) {
	return nil, NewString(chr(args.values[0])), nil
}

func sysCodePoints(_ *Interpreter, args callArgs) (Value, Object, error) {
	b := newListBuilder[Value](bytecode.ObjectValueList)
	for _, r := range args.str(0) {
		b.add(decimal.FromInt64(int64(r)))
	}
	return nil, b.list(), nil
}

func sysCodeUnit1(_ *Interpreter, args callArgs) (Value, Object, error) {
	units := codeUnits(args.str(0))
	if len(units) == 0 {
		return decimal.Zero(), nil, nil
	}
	return decimal.FromInt64(int64(units[0])), nil, nil
}

func sysCodeUnit2(_ *Interpreter, args callArgs) (Value, Object, error) {
	units := codeUnits(args.str(0))
	i, ok := intValue(args.values[0])
	if !ok || i < 0 || i >= int64(len(units)) {
		return decimal.Zero(), nil, nil
	}
	return decimal.FromInt64(int64(units[i])), nil, nil
}

func sysCodeUnits(_ *Interpreter, args callArgs) (Value, Object, error) {
	b := newListBuilder[Value](bytecode.ObjectValueList)
	for _, u := range codeUnits(args.str(0)) {
		b.add(decimal.FromInt64(int64(u)))
	}
	return nil, b.list(), nil
}

func sysStringFromCodePoints(_ *Interpreter, args callArgs) (Value, Object, error) {
	return nil, NewString(stringFromCodePoints(args.objects[0].(*ValueList))), nil
}

func sysStringFromCodeUnits(_ *Interpreter, args callArgs) (Value, Object, error) {
	return nil, NewString(stringFromCodeUnits(args.objects[0].(*ValueList))), nil
}

func joinStrings(l *ObjectList, sep string) string {
	var sb strings.Builder
	for i, o := range l.Slice() {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(stringOf(o))
	}
	return sb.String()
}

func sysConcat1(_ *Interpreter, args callArgs) (Value, Object, error) {
	return nil, NewString(joinStrings(args.objects[0].(*ObjectList), "")), nil
}

func sysConcat2(_ *Interpreter, args callArgs) (Value, Object, error) {
	return nil, NewString(joinStrings(args.objects[0].(*ObjectList), args.str(1))), nil
}

func sysStringLen(_ *Interpreter, args callArgs) (Value, Object, error) {
	return decimal.FromInt64(int64(len(codeUnits(args.str(0))))), nil, nil
}

// ---------------------------------------------------------------------------
// Dates
// ---------------------------------------------------------------------------

func invalidDateTime() *runtimeError {
	return raise(bytecode.ErrInvalidDateTime, "The date or time is invalid.")
}

// parts converts the leading n value arguments to integers.
func parts(args callArgs, n int) ([]int64, bool) {
	out := make([]int64, 7)
	for i := 0; i < n; i++ {
		v, ok := intValue(args.values[i])
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func sysDateFromParts(_ *Interpreter, args callArgs) (Value, Object, error) {
	p, ok := parts(args, 3)
	if !ok {
		return nil, nil, invalidDateTime()
	}
	ms, err := dateTimeFromParts(p[0], p[1], p[2], 0, 0, 0, 0)
	if err != nil {
		return nil, nil, invalidDateTime()
	}
	return decimal.FromInt64(ms), nil, nil
}

func sysDateTimeFromParts(_ *Interpreter, args callArgs) (Value, Object, error) {
	p, ok := parts(args, 7)
	if !ok {
		return nil, nil, invalidDateTime()
	}
	ms, err := dateTimeFromParts(p[0], p[1], p[2], p[3], p[4], p[5], p[6])
	if err != nil {
		return nil, nil, invalidDateTime()
	}
	return decimal.FromInt64(ms), nil, nil
}

func sysDateTimeOffsetFromParts(_ *Interpreter, args callArgs) (Value, Object, error) {
	p, ok := parts(args, 7)
	if !ok {
		return nil, nil, invalidDateTime()
	}
	ms, err := dateTimeFromParts(p[0], p[1], p[2], p[3], p[4], p[5], p[6])
	if err != nil {
		return nil, nil, invalidDateTime()
	}
	tz, ok := args.objects[0].(*TimeZone)
	if !ok {
		return nil, nil, raise(bytecode.ErrInvalidTimeZone, "The specified time zone was not found.")
	}
	return nil, newDateTimeOffset(ms, zoneOffset(tz.Location, ms)), nil
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// fileError maps an operating system error to an in-language error code.
func fileError(err error) *runtimeError {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return raise(bytecode.ErrFileNotFound, "The file was not found.")
	case errors.Is(err, fs.ErrPermission):
		return raise(bytecode.ErrAccessDenied, "Access denied.")
	case errors.Is(err, syscall.EISDIR):
		return raise(bytecode.ErrPathIsDirectory, "The path is a directory.")
	case errors.Is(err, syscall.ENAMETOOLONG):
		return raise(bytecode.ErrPathTooLong, "The path is too long.")
	case errors.Is(err, syscall.ENOSPC):
		return raise(bytecode.ErrDiskFull, "The disk is full.")
	}
	return raise(bytecode.ErrIoFailure, "%v", err)
}

func sysDeleteFile(_ *Interpreter, args callArgs) (Value, Object, error) {
	if err := os.Remove(args.str(0)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fileError(err)
	}
	return nil, nil, nil
}

func readFile(path string) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "", raise(bytecode.ErrPathIsDirectory, "The path is a directory.")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fileError(err)
	}
	return string(data), nil
}

func sysReadFileText(_ *Interpreter, args callArgs) (Value, Object, error) {
	text, err := readFile(args.str(0))
	if err != nil {
		return nil, nil, err
	}
	return nil, NewString(text), nil
}

// sysReadFileLines splits on LF, dropping a trailing CR from each line and
// the empty line after a final newline.
func sysReadFileLines(_ *Interpreter, args callArgs) (Value, Object, error) {
	text, err := readFile(args.str(0))
	if err != nil {
		return nil, nil, err
	}
	b := newListBuilder[Object](bytecode.ObjectObjectList)
	if text != "" {
		lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
		for _, line := range lines {
			b.add(NewString(strings.TrimSuffix(line, "\r")))
		}
	}
	return nil, b.list(), nil
}

func writeFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fileError(err)
	}
	return nil
}

func sysWriteFileText(_ *Interpreter, args callArgs) (Value, Object, error) {
	return nil, nil, writeFile(args.str(0), args.str(1))
}

func sysWriteFileLines(_ *Interpreter, args callArgs) (Value, Object, error) {
	var sb strings.Builder
	for _, o := range args.objects[1].(*ObjectList).Slice() {
		sb.WriteString(stringOf(o))
		sb.WriteByte('\n')
	}
	return nil, nil, writeFile(args.str(0), sb.String())
}

// ---------------------------------------------------------------------------
// Console
// ---------------------------------------------------------------------------

func sysPrintString(in *Interpreter, args callArgs) (Value, Object, error) {
	if in.console == nil {
		return nil, nil, nil
	}
	return nil, nil, in.console.WriteString(args.str(0))
}

// sysInputString reads one line. End of input reads as an empty line.
func sysInputString(in *Interpreter, _ callArgs) (Value, Object, error) {
	if in.console == nil {
		return nil, NewString(""), nil
	}
	line, err := in.console.ReadLine()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, NewString(""), err
	}
	return nil, NewString(line), nil
}
