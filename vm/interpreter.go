package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

var log = commonlog.GetLogger("tmbasic.vm")

const (
	// ValueStackSize and ObjectStackSize bound the two operand stacks.
	ValueStackSize  = 65535
	ObjectStackSize = 65535

	// MaxCallDepth bounds the frame stack.
	MaxCallDepth = 10000
)

// ---------------------------------------------------------------------------
// Frames
// ---------------------------------------------------------------------------

// frame is one activation. Arguments sit at the base of each stack and the
// procedure's locals follow them.
type frame struct {
	procedure     int
	returnIP      int
	valueBase     int
	objectBase    int
	numValueArgs  int
	numObjectArgs int
	returns       bytecode.ReturnKind
}

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// Interpreter executes a compiled program. It is not safe for concurrent
// use; run separate programs on separate interpreters.
type Interpreter struct {
	program *bytecode.Program
	console Console

	globalValues  []Value
	globalObjects []Object

	values  []Value
	objects []Object
	vsi     int // next free value slot
	osi     int // next free object slot

	frames []frame
	ip     int

	a, b    Value
	x, y, z Object

	hasError     bool
	errorCode    Value
	errorMessage string

	recordBuilders     []*recordBuilder
	valueListBuilders  []*listBuilder[Value]
	objectListBuilders []*listBuilder[Object]

	finished bool
}

// NewInterpreter prepares p for execution starting at its startup
// procedure. Output and input go through console.
func NewInterpreter(p *bytecode.Program, console Console) (*Interpreter, error) {
	start := int(p.StartupProcedureIndex)
	if start >= len(p.Procedures) || p.Procedures[start] == nil {
		return nil, fmt.Errorf("startup procedure %d is missing", start)
	}
	in := &Interpreter{
		program:       p,
		console:       console,
		globalValues:  make([]Value, len(p.GlobalValues)),
		globalObjects: make([]Object, len(p.GlobalObjects)),
		values:        make([]Value, ValueStackSize),
		objects:       make([]Object, ObjectStackSize),
		frames:        []frame{{procedure: start, returnIP: -1}},
		a:             decimal.Zero(),
		b:             decimal.Zero(),
	}
	copy(in.globalValues, p.GlobalValues)
	for i, g := range p.GlobalObjects {
		obj, err := initialGlobal(g)
		if err != nil {
			return nil, fmt.Errorf("global object %d: %w", i, err)
		}
		in.globalObjects[i] = obj
	}
	return in, nil
}

// initialGlobal creates the starting content of a global object slot.
// Compound globals get an empty placeholder that startup code replaces.
func initialGlobal(g bytecode.GlobalObject) (Object, error) {
	switch g.Type {
	case bytecode.ObjectString:
		return NewString(g.Text), nil
	case bytecode.ObjectTimeZone:
		return LoadTimeZone(g.Text)
	case bytecode.ObjectValueList:
		return NewValueList(), nil
	case bytecode.ObjectObjectList:
		return NewObjectList(), nil
	case bytecode.ObjectValueToValueMap:
		return NewValueToValueMap(), nil
	case bytecode.ObjectValueToObjectMap:
		return NewValueToObjectMap(), nil
	case bytecode.ObjectObjectToValueMap:
		return NewObjectToValueMap(), nil
	case bytecode.ObjectObjectToObjectMap:
		return NewObjectToObjectMap(), nil
	case bytecode.ObjectRecord:
		return &Record{}, nil
	case bytecode.ObjectValueOptional:
		return &ValueOptional{}, nil
	case bytecode.ObjectObjectOptional:
		return &ObjectOptional{}, nil
	}
	return nil, nil
}

// Finished reports whether the program has exited or stopped on a fatal
// error.
func (in *Interpreter) Finished() bool { return in.finished }

// fatalSignal carries an unrecoverable condition from deep inside an
// instruction back to Run.
type fatalSignal struct {
	message string
	err     error
}

func fatalf(format string, args ...any) *fatalSignal {
	return &fatalSignal{message: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (in *Interpreter) pushValue(v Value) {
	if in.vsi >= len(in.values) {
		panic(fatalf("value stack overflow"))
	}
	in.values[in.vsi] = v
	in.vsi++
}

func (in *Interpreter) popValue() Value {
	if in.vsi == 0 {
		panic(fatalf("value stack underflow"))
	}
	in.vsi--
	v := in.values[in.vsi]
	in.values[in.vsi] = nil
	return v
}

func (in *Interpreter) pushObject(o Object) {
	if in.osi >= len(in.objects) {
		panic(fatalf("object stack overflow"))
	}
	in.objects[in.osi] = o
	in.osi++
}

func (in *Interpreter) popObject() Object {
	if in.osi == 0 {
		panic(fatalf("object stack underflow"))
	}
	in.osi--
	o := in.objects[in.osi]
	in.objects[in.osi] = nil
	return o
}

func (in *Interpreter) popValues(n int) {
	for ; n > 0; n-- {
		in.popValue()
	}
}

func (in *Interpreter) popObjects(n int) {
	for ; n > 0; n-- {
		in.popObject()
	}
}

func (in *Interpreter) top() *frame { return &in.frames[len(in.frames)-1] }

// setError raises an in-language error.
func (in *Interpreter) setError(err *runtimeError) {
	in.hasError = true
	in.errorCode = decimal.FromInt64(int64(err.code))
	in.errorMessage = err.message
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (in *Interpreter) call(target, numValues, numObjects int, returns bytecode.ReturnKind, returnIP int) []byte {
	if target >= len(in.program.Procedures) || in.program.Procedures[target] == nil {
		panic(fatalf("procedure %d failed to compile", target))
	}
	if len(in.frames) >= MaxCallDepth {
		panic(fatalf("call stack overflow"))
	}
	if in.vsi < numValues || in.osi < numObjects {
		panic(fatalf("missing arguments for procedure %d", target))
	}
	in.frames = append(in.frames, frame{
		procedure:     target,
		returnIP:      returnIP,
		valueBase:     in.vsi - numValues,
		objectBase:    in.osi - numObjects,
		numValueArgs:  numValues,
		numObjectArgs: numObjects,
		returns:       returns,
	})
	return in.program.Procedures[target]
}

// ret unwinds the current frame and pushes the result the caller expects.
// done is true when the outermost frame returned.
func (in *Interpreter) ret(v Value, o Object) (code []byte, ip int, done bool) {
	f := in.frames[len(in.frames)-1]
	for i := f.valueBase; i < in.vsi; i++ {
		in.values[i] = nil
	}
	for i := f.objectBase; i < in.osi; i++ {
		in.objects[i] = nil
	}
	in.vsi, in.osi = f.valueBase, f.objectBase
	in.frames = in.frames[:len(in.frames)-1]
	if len(in.frames) == 0 {
		return nil, 0, true
	}
	switch f.returns {
	case bytecode.ReturnValue:
		in.pushValue(orZero(v))
	case bytecode.ReturnObject:
		in.pushObject(o)
	}
	return in.program.Procedures[in.top().procedure], f.returnIP, false
}

// ---------------------------------------------------------------------------
// Execution loop
// ---------------------------------------------------------------------------

func u16(code []byte, ip int) int { return int(binary.LittleEndian.Uint16(code[ip:])) }

func u32(code []byte, ip int) int { return int(binary.LittleEndian.Uint32(code[ip:])) }

// Run executes at most maxCycles instructions. It returns more=true when
// the program is still running, so a host can interleave other work
// between slices. A fatal condition stops the program and is returned as
// a *FatalError.
func (in *Interpreter) Run(maxCycles int) (more bool, err error) {
	if in.finished {
		return false, nil
	}
	f := in.top()
	code := in.program.Procedures[f.procedure]
	ip := in.ip
	start := ip

	defer func() {
		in.ip = ip
		if r := recover(); r != nil {
			in.finished = true
			fe := &FatalError{Procedure: in.top().procedure, Offset: start}
			switch r := r.(type) {
			case *fatalSignal:
				fe.Message, fe.Err = r.message, r.err
			case error:
				fe.Message, fe.Err = "internal error", r
			default:
				fe.Message = fmt.Sprint(r)
			}
			log.Errorf("%s", fe)
			more, err = false, fe
		}
	}()

	for cycle := 0; cycle < maxCycles; cycle++ {
		start = ip
		op := bytecode.Opcode(code[ip])
		ip++

		switch op {
		case bytecode.OpExit:
			in.finished = true
			return false, nil

		// Immediates and stack shuffling

		case bytecode.OpPushImmediateInt64:
			in.pushValue(decimal.FromInt64(int64(binary.LittleEndian.Uint64(code[ip:]))))
			ip += 8
		case bytecode.OpPushImmediateDec128:
			sign := code[ip]
			hi := binary.LittleEndian.Uint64(code[ip+1:])
			lo := binary.LittleEndian.Uint64(code[ip+9:])
			exp := int64(binary.LittleEndian.Uint64(code[ip+17:]))
			ip += 25
			d, derr := decimal.FromTriple(sign, hi, lo, exp)
			if derr != nil {
				panic(&fatalSignal{message: "bad decimal immediate", err: derr})
			}
			in.pushValue(d)
		case bytecode.OpPushImmediateUtf8:
			n := u32(code, ip)
			ip += 4
			in.pushObject(NewString(string(code[ip : ip+n])))
			ip += n
		case bytecode.OpPopValue:
			in.popValue()
		case bytecode.OpPopObject:
			in.popObject()
		case bytecode.OpDuplicateValue:
			in.pushValue(in.values[in.vsi-1])
		case bytecode.OpDuplicateObject:
			in.pushObject(in.objects[in.osi-1])

		// Registers

		case bytecode.OpPopA:
			in.a = in.popValue()
		case bytecode.OpPopB:
			in.b = in.popValue()
		case bytecode.OpPushA:
			in.pushValue(in.a)
		case bytecode.OpPushB:
			in.pushValue(in.b)
		case bytecode.OpPopX:
			in.x = in.popObject()
		case bytecode.OpPopY:
			in.y = in.popObject()
		case bytecode.OpPopZ:
			in.z = in.popObject()
		case bytecode.OpPushX:
			in.pushObject(in.x)
		case bytecode.OpPushY:
			in.pushObject(in.y)
		case bytecode.OpPushZ:
			in.pushObject(in.z)

		// Variables

		case bytecode.OpPushArgumentValue:
			in.pushValue(in.values[f.valueBase+int(code[ip])])
			ip++
		case bytecode.OpPushArgumentObject:
			in.pushObject(in.objects[f.objectBase+int(code[ip])])
			ip++
		case bytecode.OpSetArgumentValue:
			in.values[f.valueBase+int(code[ip])] = in.popValue()
			ip++
		case bytecode.OpSetArgumentObject:
			in.objects[f.objectBase+int(code[ip])] = in.popObject()
			ip++
		case bytecode.OpInitLocals:
			nv, no := u16(code, ip), u16(code, ip+2)
			ip += 4
			for i := 0; i < nv; i++ {
				in.pushValue(decimal.Zero())
			}
			for i := 0; i < no; i++ {
				in.pushObject(nil)
			}
		case bytecode.OpPushLocalValue:
			in.pushValue(in.values[f.valueBase+f.numValueArgs+u16(code, ip)])
			ip += 2
		case bytecode.OpPushLocalObject:
			in.pushObject(in.objects[f.objectBase+f.numObjectArgs+u16(code, ip)])
			ip += 2
		case bytecode.OpSetLocalValue:
			in.values[f.valueBase+f.numValueArgs+u16(code, ip)] = in.popValue()
			ip += 2
		case bytecode.OpSetLocalObject:
			in.objects[f.objectBase+f.numObjectArgs+u16(code, ip)] = in.popObject()
			ip += 2
		case bytecode.OpPushGlobalValue:
			in.pushValue(in.globalValues[u16(code, ip)])
			ip += 2
		case bytecode.OpPushGlobalObject:
			in.pushObject(in.globalObjects[u16(code, ip)])
			ip += 2
		case bytecode.OpSetGlobalValue:
			in.globalValues[u16(code, ip)] = in.popValue()
			ip += 2
		case bytecode.OpSetGlobalObject:
			in.globalObjects[u16(code, ip)] = in.popObject()
			ip += 2

		// Control flow

		case bytecode.OpJump:
			ip = u32(code, ip)
		case bytecode.OpBranchIfTrue:
			target := u32(code, ip)
			ip += 4
			if isTrue(in.popValue()) {
				ip = target
			}
		case bytecode.OpBranchIfFalse:
			target := u32(code, ip)
			ip += 4
			if !isTrue(in.popValue()) {
				ip = target
			}
		case bytecode.OpCall, bytecode.OpCallV, bytecode.OpCallO:
			target := u32(code, ip)
			nv, no := int(code[ip+4]), int(code[ip+5])
			ip += 6
			returns := bytecode.ReturnNone
			switch op {
			case bytecode.OpCallV:
				returns = bytecode.ReturnValue
			case bytecode.OpCallO:
				returns = bytecode.ReturnObject
			}
			code = in.call(target, nv, no, returns, ip)
			ip = 0
			f = in.top()
		case bytecode.OpSystemCall:
			id := bytecode.SystemCall(u16(code, ip))
			nv, no := int(code[ip+2]), int(code[ip+3])
			ip += 4
			in.systemCall(id, nv, no)
		case bytecode.OpReturn, bytecode.OpReturnValue, bytecode.OpReturnObject:
			var v Value
			var o Object
			switch op {
			case bytecode.OpReturnValue:
				v = in.popValue()
			case bytecode.OpReturnObject:
				o = in.popObject()
			}
			var done bool
			if code, ip, done = in.ret(v, o); done {
				in.finished = true
				return false, nil
			}
			f = in.top()

		// Errors

		case bytecode.OpSetError:
			msg := in.popObject()
			in.hasError = true
			in.errorCode = in.popValue()
			in.errorMessage = stringOf(msg)
		case bytecode.OpClearError:
			in.hasError = false
		case bytecode.OpBubbleError:
			in.hasError = true
		case bytecode.OpReturnIfError:
			if !in.hasError {
				break
			}
			if len(in.frames) == 1 {
				uncaught := &UncaughtError{Code: orZero(in.errorCode), Message: in.errorMessage}
				panic(&fatalSignal{message: "uncaught error", err: uncaught})
			}
			// The caller still expects a result on the stack.
			var done bool
			if code, ip, done = in.ret(decimal.Zero(), nil); done {
				in.finished = true
				return false, nil
			}
			f = in.top()
		case bytecode.OpPopBranchIfError:
			nv, no := u16(code, ip), u16(code, ip+2)
			target := u32(code, ip+4)
			ip += 8
			if in.hasError {
				in.popValues(nv)
				in.popObjects(no)
				ip = target
			}
		case bytecode.OpBranchIfNotError:
			target := u32(code, ip)
			ip += 4
			if !in.hasError {
				ip = target
			}
		case bytecode.OpPushErrorMessage:
			in.pushObject(NewString(in.errorMessage))
		case bytecode.OpPushErrorCode:
			in.pushValue(orZero(in.errorCode))

		// Value arithmetic and logic

		case bytecode.OpAOrB:
			in.a = boolValue(isTrue(in.a) || isTrue(in.b))
		case bytecode.OpAAndB:
			in.a = boolValue(isTrue(in.a) && isTrue(in.b))
		case bytecode.OpANot:
			in.a = boolValue(!isTrue(in.a))
		case bytecode.OpAEqualsB:
			c, ok := compareNumbers(in.a, in.b)
			in.a = boolValue(ok && c == 0)
		case bytecode.OpANotEqualsB:
			c, ok := compareNumbers(in.a, in.b)
			in.a = boolValue(!ok || c != 0)
		case bytecode.OpALessThanB:
			c, ok := compareNumbers(in.a, in.b)
			in.a = boolValue(ok && c < 0)
		case bytecode.OpALessThanEqualsB:
			c, ok := compareNumbers(in.a, in.b)
			in.a = boolValue(ok && c <= 0)
		case bytecode.OpAGreaterThanB:
			c, ok := compareNumbers(in.a, in.b)
			in.a = boolValue(ok && c > 0)
		case bytecode.OpAGreaterThanEqualsB:
			c, ok := compareNumbers(in.a, in.b)
			in.a = boolValue(ok && c >= 0)
		case bytecode.OpAAddB:
			in.a = arith(decimal.Context.Add, in.a, in.b)
		case bytecode.OpASubtractB:
			in.a = arith(decimal.Context.Sub, in.a, in.b)
		case bytecode.OpAMultiplyB:
			in.a = arith(decimal.Context.Mul, in.a, in.b)
		case bytecode.OpADivideB:
			in.a = arith(decimal.Context.Quo, in.a, in.b)
		case bytecode.OpAModuloB:
			in.a = arith(decimal.Context.Rem, in.a, in.b)
		case bytecode.OpAPowerB:
			in.a = arith(decimal.Context.Pow, in.a, in.b)
		case bytecode.OpDateTimeAToDateA:
			in.a = truncateToDate(in.a)

		// Strings and conversions

		case bytecode.OpStringXEqualsY:
			in.a = boolValue(stringOf(in.x) == stringOf(in.y))
		case bytecode.OpStringXCompareY:
			in.a = decimal.FromInt64(int64(strings.Compare(stringOf(in.x), stringOf(in.y))))
		case bytecode.OpStringXConcatenateY:
			in.x = NewString(stringOf(in.x) + stringOf(in.y))
		case bytecode.OpXEqualsY:
			in.a = boolValue(EqualObjects(in.x, in.y))
		case bytecode.OpNumberAToStringX:
			in.x = NewString(decimal.Format(orZero(in.a)))
		case bytecode.OpBooleanAToStringX:
			if isTrue(in.a) {
				in.x = NewString("true")
			} else {
				in.x = NewString("false")
			}
		case bytecode.OpDateAToStringX:
			in.x = NewString(formatDate(in.a))
		case bytecode.OpDateTimeAToStringX:
			in.x = NewString(formatDateTime(in.a))
		case bytecode.OpTimeSpanAToStringX:
			in.x = NewString(formatTimeSpan(in.a))
		case bytecode.OpStringXCharacterAtA:
			c, rerr := characterAt(stringOf(in.x), in.a)
			if rerr != nil {
				in.setError(rerr)
				break
			}
			in.x = NewString(c)

		// Records

		case bytecode.OpRecordBuilderBegin:
			nv, no := u16(code, ip), u16(code, ip+2)
			ip += 4
			in.recordBuilders = append(in.recordBuilders, newRecordBuilder(nv, no))
		case bytecode.OpRecordBuilderStoreA:
			rb := in.recordBuilders[len(in.recordBuilders)-1]
			rb.values = append(rb.values, in.a)
		case bytecode.OpRecordBuilderStoreX:
			rb := in.recordBuilders[len(in.recordBuilders)-1]
			rb.objects = append(rb.objects, in.x)
		case bytecode.OpRecordBuilderEnd:
			n := len(in.recordBuilders) - 1
			in.pushObject(in.recordBuilders[n].record())
			in.recordBuilders = in.recordBuilders[:n]
		case bytecode.OpRecordLoadA:
			in.a = in.x.(*Record).Values[u16(code, ip)]
			ip += 2
		case bytecode.OpRecordLoadX:
			in.x = in.x.(*Record).Objects[u16(code, ip)]
			ip += 2
		case bytecode.OpRecordStoreA:
			in.x = in.x.(*Record).withValue(u16(code, ip), in.a)
			ip += 2
		case bytecode.OpRecordStoreY:
			in.x = in.x.(*Record).withObject(u16(code, ip), in.y)
			ip += 2

		// Lists

		case bytecode.OpValueListBuilderBegin:
			in.valueListBuilders = append(in.valueListBuilders, newListBuilder[Value](bytecode.ObjectValueList))
		case bytecode.OpValueListBuilderAddA:
			in.valueListBuilders[len(in.valueListBuilders)-1].add(in.a)
		case bytecode.OpValueListBuilderEnd:
			n := len(in.valueListBuilders) - 1
			in.pushObject(in.valueListBuilders[n].list())
			in.valueListBuilders = in.valueListBuilders[:n]
		case bytecode.OpObjectListBuilderBegin:
			in.objectListBuilders = append(in.objectListBuilders, newListBuilder[Object](bytecode.ObjectObjectList))
		case bytecode.OpObjectListBuilderAddX:
			in.objectListBuilders[len(in.objectListBuilders)-1].add(in.x)
		case bytecode.OpObjectListBuilderEnd:
			n := len(in.objectListBuilders) - 1
			in.pushObject(in.objectListBuilders[n].list())
			in.objectListBuilders = in.objectListBuilders[:n]
		case bytecode.OpValueListGet:
			l := in.x.(*ValueList)
			if i, ok := in.listIndex(l.Len(), false); ok {
				in.a = l.Get(i)
			}
		case bytecode.OpObjectListGet:
			l := in.x.(*ObjectList)
			if i, ok := in.listIndex(l.Len(), false); ok {
				in.x = l.Get(i)
			}
		case bytecode.OpValueListSet:
			l := in.x.(*ValueList)
			if i, ok := in.listIndex(l.Len(), false); ok {
				in.x = l.Set(i, in.b)
			}
		case bytecode.OpObjectListSet:
			l := in.x.(*ObjectList)
			if i, ok := in.listIndex(l.Len(), false); ok {
				in.x = l.Set(i, in.y)
			}
		case bytecode.OpValueListInsert:
			l := in.x.(*ValueList)
			if i, ok := in.listIndex(l.Len(), true); ok {
				in.x = l.Insert(i, in.b)
			}
		case bytecode.OpObjectListInsert:
			l := in.x.(*ObjectList)
			if i, ok := in.listIndex(l.Len(), true); ok {
				in.x = l.Insert(i, in.y)
			}
		case bytecode.OpListRemove:
			switch l := in.x.(type) {
			case *ValueList:
				if i, ok := in.listIndex(l.Len(), false); ok {
					in.x = l.Remove(i)
				}
			case *ObjectList:
				if i, ok := in.listIndex(l.Len(), false); ok {
					in.x = l.Remove(i)
				}
			default:
				panic(fatalf("ListRemove on %T", in.x))
			}
		case bytecode.OpValueListConcat:
			in.x = in.x.(*ValueList).Concat(in.y.(*ValueList))
		case bytecode.OpObjectListConcat:
			in.x = in.x.(*ObjectList).Concat(in.y.(*ObjectList))
		case bytecode.OpValueListAppendA:
			in.x = in.x.(*ValueList).Append(in.a)
		case bytecode.OpObjectListAppendY:
			in.x = in.x.(*ObjectList).Append(in.y)
		case bytecode.OpCount:
			counted, ok := in.x.(interface{ Len() int })
			if !ok {
				panic(fatalf("Count on %T", in.x))
			}
			in.a = decimal.FromInt64(int64(counted.Len()))

		// Maps

		case bytecode.OpValueToValueMapNew:
			in.x = NewValueToValueMap()
		case bytecode.OpValueToObjectMapNew:
			in.x = NewValueToObjectMap()
		case bytecode.OpObjectToValueMapNew:
			in.x = NewObjectToValueMap()
		case bytecode.OpObjectToObjectMapNew:
			in.x = NewObjectToObjectMap()
		case bytecode.OpValueToValueMapGet:
			if v, ok := in.x.(*ValueToValueMap).Get(in.a); ok {
				in.a = v
			} else {
				in.setError(errMapKeyNotFound())
			}
		case bytecode.OpValueToObjectMapGet:
			if v, ok := in.x.(*ValueToObjectMap).Get(in.a); ok {
				in.x = v
			} else {
				in.setError(errMapKeyNotFound())
			}
		case bytecode.OpObjectToValueMapGet:
			if v, ok := in.x.(*ObjectToValueMap).Get(in.y); ok {
				in.a = v
			} else {
				in.setError(errMapKeyNotFound())
			}
		case bytecode.OpObjectToObjectMapGet:
			if v, ok := in.x.(*ObjectToObjectMap).Get(in.y); ok {
				in.x = v
			} else {
				in.setError(errMapKeyNotFound())
			}
		case bytecode.OpValueToValueMapSet:
			in.x = in.x.(*ValueToValueMap).Set(in.a, in.b)
		case bytecode.OpValueToObjectMapSet:
			in.x = in.x.(*ValueToObjectMap).Set(in.a, in.y)
		case bytecode.OpObjectToValueMapSet:
			in.x = in.x.(*ObjectToValueMap).Set(in.y, in.a)
		case bytecode.OpObjectToObjectMapSet:
			in.x = in.x.(*ObjectToObjectMap).Set(in.y, in.z)
		case bytecode.OpMapRemoveKeyA:
			switch m := in.x.(type) {
			case *ValueToValueMap:
				in.x = m.Delete(in.a)
			case *ValueToObjectMap:
				in.x = m.Delete(in.a)
			default:
				panic(fatalf("MapRemoveKeyA on %T", in.x))
			}
		case bytecode.OpMapRemoveKeyY:
			switch m := in.x.(type) {
			case *ObjectToValueMap:
				in.x = m.Delete(in.y)
			case *ObjectToObjectMap:
				in.x = m.Delete(in.y)
			default:
				panic(fatalf("MapRemoveKeyY on %T", in.x))
			}
		case bytecode.OpMapContainsKeyA:
			switch m := in.x.(type) {
			case *ValueToValueMap:
				in.a = boolValue(m.Has(in.a))
			case *ValueToObjectMap:
				in.a = boolValue(m.Has(in.a))
			default:
				panic(fatalf("MapContainsKeyA on %T", in.x))
			}
		case bytecode.OpMapContainsKeyY:
			switch m := in.x.(type) {
			case *ObjectToValueMap:
				in.a = boolValue(m.Has(in.y))
			case *ObjectToObjectMap:
				in.a = boolValue(m.Has(in.y))
			default:
				panic(fatalf("MapContainsKeyY on %T", in.x))
			}
		case bytecode.OpMapKeys:
			switch m := in.x.(type) {
			case *ValueToValueMap:
				in.x = NewValueList(m.Keys()...)
			case *ValueToObjectMap:
				in.x = NewValueList(m.Keys()...)
			case *ObjectToValueMap:
				in.x = NewObjectList(m.Keys()...)
			case *ObjectToObjectMap:
				in.x = NewObjectList(m.Keys()...)
			default:
				panic(fatalf("MapKeys on %T", in.x))
			}
		case bytecode.OpMapValues:
			switch m := in.x.(type) {
			case *ValueToValueMap:
				in.x = NewValueList(m.Values()...)
			case *ValueToObjectMap:
				in.x = NewObjectList(m.Values()...)
			case *ObjectToValueMap:
				in.x = NewValueList(m.Values()...)
			case *ObjectToObjectMap:
				in.x = NewObjectList(m.Values()...)
			default:
				panic(fatalf("MapValues on %T", in.x))
			}

		// Optionals

		case bytecode.OpValueOptionalNewPresentA:
			in.x = &ValueOptional{Value: in.a, Present: true}
		case bytecode.OpObjectOptionalNewPresentX:
			in.x = &ObjectOptional{Value: in.x, Present: true}
		case bytecode.OpValueOptionalNewMissing:
			in.x = &ValueOptional{}
		case bytecode.OpObjectOptionalNewMissing:
			in.x = &ObjectOptional{}
		case bytecode.OpOptionalHasValue:
			switch o := in.x.(type) {
			case *ValueOptional:
				in.a = boolValue(o.Present)
			case *ObjectOptional:
				in.a = boolValue(o.Present)
			default:
				panic(fatalf("OptionalHasValue on %T", in.x))
			}
		case bytecode.OpValueOptionalGet:
			o := in.x.(*ValueOptional)
			if !o.Present {
				in.setError(errValueNotPresent())
				break
			}
			in.a = o.Value
		case bytecode.OpObjectOptionalGet:
			o := in.x.(*ObjectOptional)
			if !o.Present {
				in.setError(errValueNotPresent())
				break
			}
			in.x = o.Value

		default:
			panic(fatalf("invalid opcode 0x%02X", byte(op)))
		}
	}
	return true, nil
}

// listIndex validates register A as an index into a list of length n. An
// insert may address one past the end.
func (in *Interpreter) listIndex(n int, allowEnd bool) (int, bool) {
	i, ok := intValue(in.a)
	limit := int64(n)
	if allowEnd {
		limit++
	}
	if !ok || i < 0 || i >= limit {
		in.setError(raise(bytecode.ErrListIndexOutOfRange, "List index out of range."))
		return 0, false
	}
	return int(i), true
}

func errMapKeyNotFound() *runtimeError {
	return raise(bytecode.ErrMapKeyNotFound, "Map key not found.")
}

func errValueNotPresent() *runtimeError {
	return raise(bytecode.ErrValueNotPresent, "Optional value is not present.")
}

func stringOf(o Object) string {
	if s, ok := o.(*String); ok {
		return s.Value
	}
	return ""
}

// Execute runs the program to completion.
func (in *Interpreter) Execute() error {
	for {
		more, err := in.Run(10000)
		if err != nil || !more {
			return err
		}
	}
}

// Uncaught extracts the in-language error from a Run failure, if that is
// what stopped the program.
func Uncaught(err error) (*UncaughtError, bool) {
	var u *UncaughtError
	if errors.As(err, &u) {
		return u, true
	}
	return nil, false
}
