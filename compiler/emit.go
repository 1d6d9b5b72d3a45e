package compiler

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Emitter: lower a checked, indexed procedure to bytecode
// ---------------------------------------------------------------------------

type loopLabels struct {
	stmt Stmt
	next bytecode.Label // continue target
	exit bytecode.Label
}

// emitter walks one procedure. It tracks the expression stack depth above
// the locals so that error checks inside Try know how much to discard.
type emitter struct {
	table   *SymbolTable
	proc    *Procedure
	asm     *bytecode.Assembler
	values  int
	objects int
	catches []bytecode.Label
	loops   []loopLabels
	err     error
}

func newEmitter(table *SymbolTable, proc *Procedure) *emitter {
	return &emitter{table: table, proc: proc, asm: bytecode.NewAssembler()}
}

// EmitProcedure produces the bytecode of proc. The procedure must have
// been bound, type checked and indexed.
func EmitProcedure(table *SymbolTable, proc *Procedure) ([]byte, error) {
	e := newEmitter(table, proc)
	if proc.NumLocalValues > 0 || proc.NumLocalObjects > 0 {
		e.asm.EmitU16U16(bytecode.OpInitLocals, uint16(proc.NumLocalValues), uint16(proc.NumLocalObjects))
	}
	e.body(proc.Body)
	if !proc.IsFunction() {
		e.op(bytecode.OpReturn)
	}
	return e.finish()
}

// EmitStartup produces the startup procedure: it runs the initializers of
// globals that need code, calls Main, then exits.
func EmitStartup(table *SymbolTable, globals []*GlobalVariable, needsInit func(*GlobalVariable) bool, main *Procedure) ([]byte, error) {
	e := newEmitter(table, nil)
	for _, g := range globals {
		if !needsInit(g) {
			continue
		}
		sym := table.Get(g.ID)
		if g.Value != nil {
			e.expr(g.Value)
			e.implicit(g.Value.EvaluatedType(), sym.Type)
		} else {
			e.zero(sym.Type)
		}
		e.store(g.ID)
	}
	e.asm.EmitCall(bytecode.OpCall, uint32(main.Index), 0, 0)
	e.checkError()
	e.op(bytecode.OpExit)
	return e.finish()
}

func (e *emitter) finish() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.asm.Finish()
}

// ---------------------------------------------------------------------------
// Instruction helpers with stack accounting
// ---------------------------------------------------------------------------

// stackEffect is the fixed change in value and object depth of op. Calls
// and system calls are accounted for at their emit sites.
func stackEffect(op bytecode.Opcode) (values, objects int) {
	switch op {
	case bytecode.OpPushImmediateInt64, bytecode.OpPushImmediateDec128, bytecode.OpDuplicateValue,
		bytecode.OpPushA, bytecode.OpPushB, bytecode.OpPushArgumentValue, bytecode.OpPushLocalValue,
		bytecode.OpPushGlobalValue, bytecode.OpPushErrorCode:
		return 1, 0
	case bytecode.OpPushImmediateUtf8, bytecode.OpDuplicateObject, bytecode.OpPushX, bytecode.OpPushY,
		bytecode.OpPushZ, bytecode.OpPushArgumentObject, bytecode.OpPushLocalObject,
		bytecode.OpPushGlobalObject, bytecode.OpPushErrorMessage, bytecode.OpRecordBuilderEnd,
		bytecode.OpValueListBuilderEnd, bytecode.OpObjectListBuilderEnd:
		return 0, 1
	case bytecode.OpPopValue, bytecode.OpPopA, bytecode.OpPopB, bytecode.OpSetArgumentValue,
		bytecode.OpSetLocalValue, bytecode.OpSetGlobalValue, bytecode.OpBranchIfTrue,
		bytecode.OpBranchIfFalse, bytecode.OpReturnValue:
		return -1, 0
	case bytecode.OpPopObject, bytecode.OpPopX, bytecode.OpPopY, bytecode.OpPopZ,
		bytecode.OpSetArgumentObject, bytecode.OpSetLocalObject, bytecode.OpSetGlobalObject,
		bytecode.OpReturnObject:
		return 0, -1
	case bytecode.OpSetError:
		return -1, -1
	}
	return 0, 0
}

func (e *emitter) adjust(values, objects int) {
	e.values += values
	e.objects += objects
}

func (e *emitter) op(op bytecode.Opcode) {
	e.asm.Emit(op)
	e.adjust(stackEffect(op))
}

func (e *emitter) u8(op bytecode.Opcode, v int) {
	e.asm.EmitU8(op, uint8(v))
	e.adjust(stackEffect(op))
}

func (e *emitter) u16(op bytecode.Opcode, v int) {
	e.asm.EmitU16(op, uint16(v))
	e.adjust(stackEffect(op))
}

func (e *emitter) jump(op bytecode.Opcode, label bytecode.Label) {
	e.asm.EmitJump(op, label)
	e.adjust(stackEffect(op))
}

func (e *emitter) int64(n int64) {
	e.asm.EmitInt64(n)
	e.adjust(1, 0)
}

func (e *emitter) decimal(d *apd.Decimal) {
	if _, err := e.asm.EmitDecimal(d); err != nil && e.err == nil {
		e.err = err
	}
	e.adjust(1, 0)
}

func (e *emitter) str(s string) {
	e.asm.EmitString(s)
	e.adjust(0, 1)
}

func (e *emitter) syscall(id bytecode.SystemCall) {
	e.asm.EmitSystemCall(id)
	info, _ := bytecode.GetSystemCallInfo(id)
	e.adjust(-info.NumValues, -info.NumObjects)
	e.adjustReturn(info.Returns)
	e.checkError()
}

func (e *emitter) adjustReturn(k bytecode.ReturnKind) {
	switch k {
	case bytecode.ReturnValue:
		e.adjust(1, 0)
	case bytecode.ReturnObject:
		e.adjust(0, 1)
	}
}

// checkError follows every instruction that can raise. Inside a Try body
// the current expression stack is discarded before jumping to the catch.
func (e *emitter) checkError() {
	if n := len(e.catches); n > 0 {
		e.asm.EmitPopBranchIfError(uint16(e.values), uint16(e.objects), e.catches[n-1])
		return
	}
	e.op(bytecode.OpReturnIfError)
}

// valueOp applies a binary A/B instruction to the top two values.
func (e *emitter) valueOp(op bytecode.Opcode) {
	e.op(bytecode.OpPopB)
	e.op(bytecode.OpPopA)
	e.op(op)
	e.op(bytecode.OpPushA)
}

func pushReg(isValue bool) bytecode.Opcode {
	if isValue {
		return bytecode.OpPushA
	}
	return bytecode.OpPushX
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func (e *emitter) load(id SymbolID) {
	sym := e.table.Get(id)
	isValue := sym.Type.IsValueType()
	switch sym.Kind {
	case SymbolBuiltinConstant:
		e.decimal(sym.Constant)
	case SymbolParameter:
		e.u8(pick(isValue, bytecode.OpPushArgumentValue, bytecode.OpPushArgumentObject), sym.Slot)
	case SymbolGlobal, SymbolGlobalConstant:
		e.u16(pick(isValue, bytecode.OpPushGlobalValue, bytecode.OpPushGlobalObject), sym.Slot)
	default:
		e.u16(pick(isValue, bytecode.OpPushLocalValue, bytecode.OpPushLocalObject), sym.Slot)
	}
}

func (e *emitter) store(id SymbolID) {
	sym := e.table.Get(id)
	isValue := sym.Type.IsValueType()
	switch sym.Kind {
	case SymbolParameter:
		e.u8(pick(isValue, bytecode.OpSetArgumentValue, bytecode.OpSetArgumentObject), sym.Slot)
	case SymbolGlobal, SymbolGlobalConstant:
		e.u16(pick(isValue, bytecode.OpSetGlobalValue, bytecode.OpSetGlobalObject), sym.Slot)
	case SymbolBuiltinConstant:
		internalf(sym.Token, "store to built-in constant %q", sym.Name)
	default:
		e.u16(pick(isValue, bytecode.OpSetLocalValue, bytecode.OpSetLocalObject), sym.Slot)
	}
}

func (e *emitter) loadTemp(isValue bool, slot int) {
	e.u16(pick(isValue, bytecode.OpPushLocalValue, bytecode.OpPushLocalObject), slot)
}

func (e *emitter) storeTemp(isValue bool, slot int) {
	e.u16(pick(isValue, bytecode.OpSetLocalValue, bytecode.OpSetLocalObject), slot)
}

func pick(cond bool, a, b bytecode.Opcode) bytecode.Opcode {
	if cond {
		return a
	}
	return b
}

// ---------------------------------------------------------------------------
// Conversions and zero values
// ---------------------------------------------------------------------------

// implicit converts the top of the stack from one type to another that it
// implicitly converts to. Only wrapping into an optional changes anything.
func (e *emitter) implicit(from, to *TypeNode) {
	if to.Kind != KindOptional || from.Kind == KindOptional {
		return
	}
	if from.IsValueType() {
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpValueOptionalNewPresentA)
	} else {
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpObjectOptionalNewPresentX)
	}
	e.op(bytecode.OpPushX)
}

func (e *emitter) explicit(from, to *TypeNode) {
	if CanImplicitlyConvert(from, to) {
		e.implicit(from, to)
		return
	}
	switch {
	case to.Kind == KindString:
		var op bytecode.Opcode
		switch from.Kind {
		case KindNumber:
			op = bytecode.OpNumberAToStringX
		case KindBoolean:
			op = bytecode.OpBooleanAToStringX
		case KindDate:
			op = bytecode.OpDateAToStringX
		case KindDateTime:
			op = bytecode.OpDateTimeAToStringX
		case KindTimeSpan:
			op = bytecode.OpTimeSpanAToStringX
		default:
			internalf(Token{}, "no string conversion from %s", from)
		}
		e.op(bytecode.OpPopA)
		e.op(op)
		e.op(bytecode.OpPushX)
	case from.Kind == KindDate && to.Kind == KindDateTime:
		// A date is a date-time at midnight.
	case from.Kind == KindDateTime && to.Kind == KindDate:
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpDateTimeAToDateA)
		e.op(bytecode.OpPushA)
	default:
		internalf(Token{}, "no conversion from %s to %s", from, to)
	}
}

func (e *emitter) missing(item *TypeNode) {
	e.op(pick(item.IsValueType(), bytecode.OpValueOptionalNewMissing, bytecode.OpObjectOptionalNewMissing))
	e.op(bytecode.OpPushX)
}

func mapNewOp(keyIsValue, valueIsValue bool) bytecode.Opcode {
	switch {
	case keyIsValue && valueIsValue:
		return bytecode.OpValueToValueMapNew
	case keyIsValue:
		return bytecode.OpValueToObjectMapNew
	case valueIsValue:
		return bytecode.OpObjectToValueMapNew
	}
	return bytecode.OpObjectToObjectMapNew
}

func (e *emitter) emptyList(item *TypeNode) {
	if item.IsValueType() {
		e.op(bytecode.OpValueListBuilderBegin)
		e.op(bytecode.OpValueListBuilderEnd)
	} else {
		e.op(bytecode.OpObjectListBuilderBegin)
		e.op(bytecode.OpObjectListBuilderEnd)
	}
}

// zero pushes the default value of t.
func (e *emitter) zero(t *TypeNode) {
	switch t.Kind {
	case KindBoolean, KindNumber, KindDate, KindDateTime, KindTimeSpan:
		e.int64(0)
	case KindString:
		e.str("")
	case KindList:
		e.emptyList(t.Item)
	case KindMap:
		e.op(mapNewOp(t.Key.IsValueType(), t.Value.IsValueType()))
		e.op(bytecode.OpPushX)
	case KindSet:
		e.op(mapNewOp(t.Item.IsValueType(), true))
		e.op(bytecode.OpPushX)
	case KindOptional:
		e.missing(t.Item)
	case KindRecord, KindDateTimeOffset:
		fields := recordFields(t)
		nv, no := countStorage(fields)
		e.asm.EmitU16U16(bytecode.OpRecordBuilderBegin, uint16(nv), uint16(no))
		for _, f := range fields {
			e.zero(f.Type)
			e.builderStore(f.Type.IsValueType())
		}
		e.op(bytecode.OpRecordBuilderEnd)
	case KindTimeZone:
		e.syscall(bytecode.SysUtcTimeZone)
	default:
		internalf(t.Tok, "no zero value for %s", t)
	}
}

func (e *emitter) builderStore(isValue bool) {
	if isValue {
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpRecordBuilderStoreA)
	} else {
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpRecordBuilderStoreX)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (e *emitter) expr(x Expr) {
	switch x := x.(type) {
	case *BooleanLiteral:
		if x.Value {
			e.int64(1)
		} else {
			e.int64(0)
		}
	case *NumberLiteral:
		e.decimal(x.Value)
	case *StringLiteral:
		e.str(x.Value)
	case *ListLiteral:
		item := x.Type.Item
		if item.IsValueType() {
			e.op(bytecode.OpValueListBuilderBegin)
		} else {
			e.op(bytecode.OpObjectListBuilderBegin)
		}
		for _, el := range x.Elements {
			e.expr(el)
			e.implicit(el.EvaluatedType(), item)
			if item.IsValueType() {
				e.op(bytecode.OpPopA)
				e.op(bytecode.OpValueListBuilderAddA)
			} else {
				e.op(bytecode.OpPopX)
				e.op(bytecode.OpObjectListBuilderAddX)
			}
		}
		e.op(pick(item.IsValueType(), bytecode.OpValueListBuilderEnd, bytecode.OpObjectListBuilderEnd))
	case *RecordLiteral:
		nv, no := countStorage(x.Type.Fields)
		e.asm.EmitU16U16(bytecode.OpRecordBuilderBegin, uint16(nv), uint16(no))
		for _, f := range x.Fields {
			e.expr(f.Value)
			e.builderStore(f.Value.EvaluatedType().IsValueType())
		}
		e.op(bytecode.OpRecordBuilderEnd)
	case *NoExpr:
		e.missing(x.Target)
	case *NotExpr:
		e.expr(x.Value)
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpANot)
		e.op(bytecode.OpPushA)
	case *ConvertExpr:
		e.expr(x.Value)
		e.explicit(x.Value.EvaluatedType(), x.Target)
	case *SymbolReference:
		e.load(x.Bound)
	case *CallExpr:
		e.call(x.Target, x.Args)
	case *BinaryExpr:
		e.binary(x)
	case *DottedExpr:
		e.expr(x.Base)
		for _, s := range x.Suffixes {
			e.suffixGet(s)
		}
	default:
		internalf(x.Token(), "unexpected expression %T", x)
	}
}

func (e *emitter) binary(x *BinaryExpr) {
	e.expr(x.Left)
	for _, s := range x.Suffixes {
		if s.Op == OpAnd || s.Op == OpOr {
			end := e.asm.NewLabel()
			e.op(bytecode.OpDuplicateValue)
			e.jump(pick(s.Op == OpAnd, bytecode.OpBranchIfFalse, bytecode.OpBranchIfTrue), end)
			e.op(bytecode.OpPopValue)
			e.expr(s.Right)
			e.asm.Bind(end)
			continue
		}
		e.expr(s.Right)
		e.binaryOp(s.Op, s.LeftType, s.Right.EvaluatedType())
	}
}

var valueOps = map[BinaryOperator]bytecode.Opcode{
	OpEquals:            bytecode.OpAEqualsB,
	OpNotEquals:         bytecode.OpANotEqualsB,
	OpLessThan:          bytecode.OpALessThanB,
	OpLessThanEquals:    bytecode.OpALessThanEqualsB,
	OpGreaterThan:       bytecode.OpAGreaterThanB,
	OpGreaterThanEquals: bytecode.OpAGreaterThanEqualsB,
	OpAdd:               bytecode.OpAAddB,
	OpSubtract:          bytecode.OpASubtractB,
	OpMultiply:          bytecode.OpAMultiplyB,
	OpDivide:            bytecode.OpADivideB,
	OpModulus:           bytecode.OpAModuloB,
	OpPower:             bytecode.OpAPowerB,
}

// binaryOp applies op to the two operands on top of the stacks.
func (e *emitter) binaryOp(op BinaryOperator, l, r *TypeNode) {
	if l.IsValueType() && r.IsValueType() {
		e.valueOp(valueOps[op])
		if l.Kind == KindDate && (op == OpAdd || op == OpSubtract) {
			e.op(bytecode.OpPopA)
			e.op(bytecode.OpDateTimeAToDateA)
			e.op(bytecode.OpPushA)
		}
		return
	}

	switch op {
	case OpEquals, OpNotEquals:
		if !EqualTypes(l, r) {
			if CanImplicitlyConvert(r, l) {
				e.implicit(r, l)
			} else if l.IsValueType() {
				// The left operand is alone on the value stack.
				e.implicit(l, r)
			} else {
				e.op(bytecode.OpPopY)
				e.implicit(l, r)
				e.op(bytecode.OpPushY)
			}
		}
		e.op(bytecode.OpPopY)
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpXEqualsY)
		if op == OpNotEquals {
			e.op(bytecode.OpANot)
		}
		e.op(bytecode.OpPushA)

	case OpLessThan, OpLessThanEquals, OpGreaterThan, OpGreaterThanEquals:
		e.op(bytecode.OpPopY)
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpStringXCompareY)
		e.int64(0)
		e.op(bytecode.OpPopB)
		e.op(valueOps[op])
		e.op(bytecode.OpPushA)

	case OpAdd:
		switch {
		case l.Kind == KindString:
			e.op(bytecode.OpPopY)
			e.op(bytecode.OpPopX)
			e.op(bytecode.OpStringXConcatenateY)
		case EqualTypes(l, r):
			e.op(bytecode.OpPopY)
			e.op(bytecode.OpPopX)
			e.op(pick(l.Item.IsValueType(), bytecode.OpValueListConcat, bytecode.OpObjectListConcat))
		default:
			e.implicit(r, l.Item)
			if l.Item.IsValueType() {
				e.op(bytecode.OpPopA)
				e.op(bytecode.OpPopX)
				e.op(bytecode.OpValueListAppendA)
			} else {
				e.op(bytecode.OpPopY)
				e.op(bytecode.OpPopX)
				e.op(bytecode.OpObjectListAppendY)
			}
		}
		e.op(bytecode.OpPushX)

	default:
		internalf(Token{}, "operator %s on %s and %s", op, l, r)
	}
}

// suffixGet applies one dotted suffix to the container on top of the
// object stack.
func (e *emitter) suffixGet(s *DottedSuffix) {
	if s.Kind == SuffixMember {
		e.op(bytecode.OpPopX)
		e.u16(pick(s.Type.IsValueType(), bytecode.OpRecordLoadA, bytecode.OpRecordLoadX), s.FieldIndex)
		e.op(pushReg(s.Type.IsValueType()))
		return
	}
	key := s.Args[0]
	e.expr(key)
	if s.Container.Kind == KindMap {
		e.implicit(key.EvaluatedType(), s.Container.Key)
	}
	e.indexGet(s)
}

// indexGet reads container[key] with the container on the object stack
// and the key above it on its own stack.
func (e *emitter) indexGet(s *DottedSuffix) {
	c := s.Container
	isValue := s.Type.IsValueType()
	switch c.Kind {
	case KindString:
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpStringXCharacterAtA)
	case KindList:
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpPopX)
		e.op(pick(isValue, bytecode.OpValueListGet, bytecode.OpObjectListGet))
	case KindMap:
		if c.Key.IsValueType() {
			e.op(bytecode.OpPopA)
			e.op(bytecode.OpPopX)
			e.op(pick(isValue, bytecode.OpValueToValueMapGet, bytecode.OpValueToObjectMapGet))
		} else {
			e.op(bytecode.OpPopY)
			e.op(bytecode.OpPopX)
			e.op(pick(isValue, bytecode.OpObjectToValueMapGet, bytecode.OpObjectToObjectMapGet))
		}
	default:
		internalf(s.Tok, "cannot index %s", c)
	}
	e.checkError()
	e.op(pushReg(isValue))
}

// ---------------------------------------------------------------------------
// Stores into immutable containers. Each pops the new element, lets reload
// push the container (and key) when they are not already on the stack,
// and leaves the updated container on the object stack.
// ---------------------------------------------------------------------------

func (e *emitter) recordStore(field int, isValue bool, reload func()) {
	e.op(pick(isValue, bytecode.OpPopA, bytecode.OpPopY))
	if reload != nil {
		reload()
	}
	e.op(bytecode.OpPopX)
	e.u16(pick(isValue, bytecode.OpRecordStoreA, bytecode.OpRecordStoreY), field)
	e.op(bytecode.OpPushX)
}

// listStore handles ValueListSet/Insert and ObjectListSet/Insert over
// [list, index, item].
func (e *emitter) listStore(valueOp, objectOp bytecode.Opcode, isValue bool, reload func()) {
	e.op(pick(isValue, bytecode.OpPopB, bytecode.OpPopY))
	if reload != nil {
		reload()
	}
	e.op(bytecode.OpPopA)
	e.op(bytecode.OpPopX)
	e.op(pick(isValue, valueOp, objectOp))
	e.checkError()
	e.op(bytecode.OpPushX)
}

// mapStore sets [map, key, value].
func (e *emitter) mapStore(keyIsValue, valueIsValue bool, reload func()) {
	var valueReg, keyReg, op bytecode.Opcode
	switch {
	case keyIsValue && valueIsValue:
		valueReg, keyReg, op = bytecode.OpPopB, bytecode.OpPopA, bytecode.OpValueToValueMapSet
	case keyIsValue:
		valueReg, keyReg, op = bytecode.OpPopY, bytecode.OpPopA, bytecode.OpValueToObjectMapSet
	case valueIsValue:
		valueReg, keyReg, op = bytecode.OpPopA, bytecode.OpPopY, bytecode.OpObjectToValueMapSet
	default:
		valueReg, keyReg, op = bytecode.OpPopZ, bytecode.OpPopY, bytecode.OpObjectToObjectMapSet
	}
	e.op(valueReg)
	if reload != nil {
		reload()
	}
	e.op(keyReg)
	e.op(bytecode.OpPopX)
	e.op(op)
	e.op(bytecode.OpPushX)
}

// setInsert adds the key on top of the stack to the set below it.
func (e *emitter) setInsert(keyIsValue bool) {
	if keyIsValue {
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpPopX)
		e.int64(1)
		e.op(bytecode.OpPopB)
		e.op(bytecode.OpValueToValueMapSet)
	} else {
		e.op(bytecode.OpPopY)
		e.op(bytecode.OpPopX)
		e.int64(1)
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpObjectToValueMapSet)
	}
	e.op(bytecode.OpPushX)
}

func (e *emitter) listAppend(itemIsValue bool) {
	if itemIsValue {
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpValueListAppendA)
	} else {
		e.op(bytecode.OpPopY)
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpObjectListAppendY)
	}
	e.op(bytecode.OpPushX)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (e *emitter) call(t *CallTarget, args []Expr) {
	params := t.paramTypes()
	for i, a := range args {
		e.expr(a)
		e.implicit(a.EvaluatedType(), params[i])
	}
	if t.Builtin != nil && t.Builtin.Lowering != LowerSystemCall {
		e.lowered(t.Builtin.Lowering, params, t.Generics)
		return
	}
	if t.Builtin != nil {
		e.syscall(t.Builtin.SystemCall)
		return
	}

	p := t.Procedure
	nv, no := argumentStorage(params)
	op, ret := bytecode.OpCall, bytecode.ReturnNone
	if p.IsFunction() {
		if p.Return.IsValueType() {
			op, ret = bytecode.OpCallV, bytecode.ReturnValue
		} else {
			op, ret = bytecode.OpCallO, bytecode.ReturnObject
		}
	}
	e.asm.EmitCall(op, uint32(p.Index), uint8(nv), uint8(no))
	e.adjust(-nv, -no)
	e.adjustReturn(ret)
	e.checkError()
}

// lowered emits a built-in implemented with inline opcodes. The arguments
// are already on the stacks.
func (e *emitter) lowered(l Lowering, params []*TypeNode, generics [2]*TypeNode) {
	switch l {
	case LowerCount:
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpCount)
		e.op(bytecode.OpPushA)
	case LowerErrorCode:
		e.op(bytecode.OpPushErrorCode)
	case LowerErrorMessage:
		e.op(bytecode.OpPushErrorMessage)
	case LowerListInsert:
		e.listStore(bytecode.OpValueListInsert, bytecode.OpObjectListInsert, generics[0].IsValueType(), nil)
	case LowerSetInsert:
		e.setInsert(generics[0].IsValueType())
	case LowerListRemove:
		e.op(bytecode.OpPopA)
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpListRemove)
		e.checkError()
		e.op(bytecode.OpPushX)
	case LowerMapRemove:
		keyIsValue := params[1].IsValueType()
		e.op(pick(keyIsValue, bytecode.OpPopA, bytecode.OpPopY))
		e.op(bytecode.OpPopX)
		e.op(pick(keyIsValue, bytecode.OpMapRemoveKeyA, bytecode.OpMapRemoveKeyY))
		e.op(bytecode.OpPushX)
	case LowerContainsKey:
		keyIsValue := params[1].IsValueType()
		e.op(pick(keyIsValue, bytecode.OpPopA, bytecode.OpPopY))
		e.op(bytecode.OpPopX)
		e.op(pick(keyIsValue, bytecode.OpMapContainsKeyA, bytecode.OpMapContainsKeyY))
		e.op(bytecode.OpPushA)
	case LowerKeys:
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpMapKeys)
		e.op(bytecode.OpPushX)
	case LowerValues:
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpMapValues)
		e.op(bytecode.OpPushX)
	case LowerHasValue:
		e.op(bytecode.OpPopX)
		e.op(bytecode.OpOptionalHasValue)
		e.op(bytecode.OpPushA)
	case LowerValue:
		isValue := generics[0].IsValueType()
		e.op(bytecode.OpPopX)
		e.op(pick(isValue, bytecode.OpValueOptionalGet, bytecode.OpObjectOptionalGet))
		e.checkError()
		e.op(pushReg(isValue))
	default:
		internalf(Token{}, "unknown lowering %d", l)
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (e *emitter) body(b *Body) {
	if b == nil {
		return
	}
	for _, s := range b.Statements {
		e.stmt(s)
	}
}

func (e *emitter) loopBody(s Stmt, next, exit bytecode.Label, b *Body) {
	e.loops = append(e.loops, loopLabels{stmt: s, next: next, exit: exit})
	e.body(b)
	e.loops = e.loops[:len(e.loops)-1]
}

func (e *emitter) findLoop(target Stmt) loopLabels {
	for i := len(e.loops) - 1; i >= 0; i-- {
		if e.loops[i].stmt == target {
			return e.loops[i]
		}
	}
	internalf(target.Token(), "loop target not found")
	return loopLabels{}
}

func (e *emitter) stmt(s Stmt) {
	switch s := s.(type) {
	case *AssignStmt:
		switch t := s.Target.(type) {
		case *SymbolReference:
			e.expr(s.Value)
			e.implicit(s.Value.EvaluatedType(), t.Type)
			e.store(t.Bound)
		case *DottedExpr:
			e.dottedAssign(s, t)
		default:
			internalf(s.Tok, "unexpected assignment target %T", t)
		}

	case *CallStmt:
		e.call(s.Target, s.Args)

	case *ConstStmt:
		e.expr(s.Value)
		e.store(s.ID)

	case *DimStmt:
		t := e.table.Get(s.ID).Type
		if s.Value != nil {
			e.expr(s.Value)
			e.implicit(s.Value.EvaluatedType(), t)
		} else {
			e.zero(t)
		}
		e.store(s.ID)

	case *DimCollectionStmt:
		e.zero(s.Type)
		e.store(s.ID)
		e.body(s.Body)

	case *YieldStmt:
		e.yield(s)

	case *IfStmt:
		end := e.asm.NewLabel()
		e.branch(s.Condition, s.Body, end)
		for _, ei := range s.ElseIfs {
			e.branch(ei.Condition, ei.Body, end)
		}
		e.body(s.Else)
		e.asm.Bind(end)

	case *WhileStmt:
		top, exit := e.asm.NewLabel(), e.asm.NewLabel()
		e.asm.Bind(top)
		e.expr(s.Condition)
		e.jump(bytecode.OpBranchIfFalse, exit)
		e.loopBody(s, top, exit, s.Body)
		e.jump(bytecode.OpJump, top)
		e.asm.Bind(exit)

	case *DoStmt:
		top, next, exit := e.asm.NewLabel(), e.asm.NewLabel(), e.asm.NewLabel()
		e.asm.Bind(top)
		e.loopBody(s, next, exit, s.Body)
		e.asm.Bind(next)
		e.expr(s.Condition)
		e.jump(bytecode.OpBranchIfTrue, top)
		e.asm.Bind(exit)

	case *ForStmt:
		e.forLoop(s)

	case *ForEachStmt:
		e.forEach(s)

	case *SelectCaseStmt:
		e.selectCase(s)

	case *TryStmt:
		catch, end := e.asm.NewLabel(), e.asm.NewLabel()
		e.catches = append(e.catches, catch)
		e.body(s.Body)
		e.catches = e.catches[:len(e.catches)-1]
		e.jump(bytecode.OpJump, end)
		e.asm.Bind(catch)
		e.op(bytecode.OpClearError)
		e.body(s.Catch)
		e.asm.Bind(end)

	case *ThrowStmt:
		if s.Code != nil {
			e.expr(s.Code)
		} else {
			e.int64(0)
		}
		e.expr(s.Message)
		e.op(bytecode.OpSetError)
		e.checkError()

	case *RethrowStmt:
		e.op(bytecode.OpBubbleError)
		e.checkError()

	case *ReturnStmt:
		if s.Value == nil {
			e.op(bytecode.OpReturn)
			return
		}
		e.expr(s.Value)
		e.implicit(s.Value.EvaluatedType(), e.proc.Return)
		e.op(pick(e.proc.Return.IsValueType(), bytecode.OpReturnValue, bytecode.OpReturnObject))

	case *ExitStmt:
		e.jump(bytecode.OpJump, e.findLoop(s.Target).exit)

	case *ContinueStmt:
		e.jump(bytecode.OpJump, e.findLoop(s.Target).next)

	case *PrintStmt:
		for _, v := range s.Values {
			e.expr(v)
			if t := v.EvaluatedType(); t.Kind != KindString {
				e.explicit(t, tString)
			}
			e.syscall(bytecode.SysPrintString)
		}
		if !s.TrailingSemicolon {
			e.str("\n")
			e.syscall(bytecode.SysPrintString)
		}

	case *InputStmt:
		ref := s.Target.(*SymbolReference)
		e.syscall(bytecode.SysInputString)
		if ref.Type.Kind == KindNumber {
			e.syscall(bytecode.SysNumberFromString)
		}
		e.store(ref.Bound)

	default:
		internalf(s.Token(), "unexpected statement %T", s)
	}
}

// branch emits "if cond then body" followed by a jump to end.
func (e *emitter) branch(cond Expr, body *Body, end bytecode.Label) {
	next := e.asm.NewLabel()
	e.expr(cond)
	e.jump(bytecode.OpBranchIfFalse, next)
	e.body(body)
	e.jump(bytecode.OpJump, end)
	e.asm.Bind(next)
}

func (e *emitter) forLoop(s *ForStmt) {
	slot := e.table.Get(s.ID).Slot
	to, step := s.TempValues[0], s.TempValues[1]
	e.expr(s.From)
	e.storeTemp(true, slot)
	e.expr(s.To)
	e.storeTemp(true, to)
	if s.Step != nil {
		e.expr(s.Step)
	} else {
		e.int64(1)
	}
	e.storeTemp(true, step)

	top, down, test := e.asm.NewLabel(), e.asm.NewLabel(), e.asm.NewLabel()
	next, exit := e.asm.NewLabel(), e.asm.NewLabel()
	e.asm.Bind(top)
	e.loadTemp(true, step)
	e.int64(0)
	e.valueOp(bytecode.OpALessThanB)
	e.jump(bytecode.OpBranchIfTrue, down)
	e.loadTemp(true, slot)
	e.loadTemp(true, to)
	e.valueOp(bytecode.OpALessThanEqualsB)
	e.jump(bytecode.OpJump, test)
	// The descending path starts without the ascending result.
	e.adjust(-1, 0)
	e.asm.Bind(down)
	e.loadTemp(true, slot)
	e.loadTemp(true, to)
	e.valueOp(bytecode.OpAGreaterThanEqualsB)
	e.asm.Bind(test)
	e.jump(bytecode.OpBranchIfFalse, exit)

	e.loopBody(s, next, exit, s.Body)
	e.asm.Bind(next)
	e.loadTemp(true, slot)
	e.loadTemp(true, step)
	e.valueOp(bytecode.OpAAddB)
	e.storeTemp(true, slot)
	e.jump(bytecode.OpJump, top)
	e.asm.Bind(exit)
}

func (e *emitter) forEach(s *ForEachStmt) {
	sym := e.table.Get(s.ID)
	isValue := sym.Type.IsValueType()
	index, count, list := s.TempValues[0], s.TempValues[1], s.TempObjects[0]

	e.expr(s.Source)
	e.storeTemp(false, list)
	e.loadTemp(false, list)
	e.op(bytecode.OpPopX)
	e.op(bytecode.OpCount)
	e.op(bytecode.OpPushA)
	e.storeTemp(true, count)
	e.int64(0)
	e.storeTemp(true, index)

	top, next, exit := e.asm.NewLabel(), e.asm.NewLabel(), e.asm.NewLabel()
	e.asm.Bind(top)
	e.loadTemp(true, index)
	e.loadTemp(true, count)
	e.valueOp(bytecode.OpALessThanB)
	e.jump(bytecode.OpBranchIfFalse, exit)
	e.loadTemp(false, list)
	e.loadTemp(true, index)
	e.op(bytecode.OpPopA)
	e.op(bytecode.OpPopX)
	e.op(pick(isValue, bytecode.OpValueListGet, bytecode.OpObjectListGet))
	e.checkError()
	e.op(pushReg(isValue))
	e.storeTemp(isValue, sym.Slot)

	e.loopBody(s, next, exit, s.Body)
	e.asm.Bind(next)
	e.loadTemp(true, index)
	e.int64(1)
	e.valueOp(bytecode.OpAAddB)
	e.storeTemp(true, index)
	e.jump(bytecode.OpJump, top)
	e.asm.Bind(exit)
}

// selectCase evaluates the selector once into a temporary, tests every
// case in order, then lays out the bodies.
func (e *emitter) selectCase(s *SelectCaseStmt) {
	vt := s.Value.EvaluatedType()
	isValue := vt.IsValueType()
	var temp int
	if isValue {
		temp = s.TempValues[0]
	} else {
		temp = s.TempObjects[0]
	}
	e.expr(s.Value)
	e.storeTemp(isValue, temp)

	end := e.asm.NewLabel()
	bodies := make([]bytecode.Label, len(s.Cases))
	fallthroughTo := end
	for i, c := range s.Cases {
		bodies[i] = e.asm.NewLabel()
		if c.Values == nil {
			fallthroughTo = bodies[i]
			continue
		}
		for _, v := range c.Values {
			e.caseTest(vt, temp, v)
			e.jump(bytecode.OpBranchIfTrue, bodies[i])
		}
	}
	e.jump(bytecode.OpJump, fallthroughTo)
	for i, c := range s.Cases {
		e.asm.Bind(bodies[i])
		e.body(c.Body)
		e.jump(bytecode.OpJump, end)
	}
	e.asm.Bind(end)
}

func (e *emitter) caseTest(vt *TypeNode, temp int, v *CaseValue) {
	isValue := vt.IsValueType()
	compare := func(op BinaryOperator, x Expr) {
		e.loadTemp(isValue, temp)
		e.expr(x)
		e.implicit(x.EvaluatedType(), vt)
		e.binaryOp(op, vt, vt)
	}
	if v.To == nil {
		compare(OpEquals, v.Value)
		return
	}
	compare(OpGreaterThanEquals, v.Value)
	compare(OpLessThanEquals, v.To)
	e.valueOp(bytecode.OpAAndB)
}

func (e *emitter) yield(s *YieldStmt) {
	coll := s.Collection
	slot := e.table.Get(coll.ID).Slot
	e.loadTemp(false, slot)
	switch coll.Kind {
	case CollectionList:
		e.expr(s.Value)
		e.implicit(s.Value.EvaluatedType(), coll.Type.Item)
		e.listAppend(coll.Type.Item.IsValueType())
	case CollectionSet:
		e.expr(s.Value)
		e.implicit(s.Value.EvaluatedType(), coll.Type.Item)
		e.setInsert(coll.Type.Item.IsValueType())
	case CollectionMap:
		e.expr(s.Value)
		e.implicit(s.Value.EvaluatedType(), coll.Type.Key)
		e.expr(s.To)
		e.implicit(s.To.EvaluatedType(), coll.Type.Value)
		e.mapStore(coll.Type.Key.IsValueType(), coll.Type.Value.IsValueType(), nil)
	}
	e.storeTemp(false, slot)
}

// dottedAssign lowers "v.a(k).b = x". Each container along the chain is
// read into a temporary, the innermost is updated, and the new versions
// are stored back outward until the variable itself is replaced.
func (e *emitter) dottedAssign(s *AssignStmt, d *DottedExpr) {
	base := d.Base.(*SymbolReference)
	n := len(d.Suffixes)
	containers := s.TempObjects[:n]
	keys := make([]int, n)
	vi, oi := 0, n
	for i, suf := range d.Suffixes {
		if suf.Kind != SuffixIndex {
			continue
		}
		if keyIsValue(suf) {
			keys[i] = s.TempValues[vi]
			vi++
		} else {
			keys[i] = s.TempObjects[oi]
			oi++
		}
	}

	e.load(base.Bound)
	e.storeTemp(false, containers[0])
	for i, suf := range d.Suffixes {
		if suf.Kind == SuffixIndex {
			key := suf.Args[0]
			e.expr(key)
			if suf.Container.Kind == KindMap {
				e.implicit(key.EvaluatedType(), suf.Container.Key)
			}
			e.storeTemp(keyIsValue(suf), keys[i])
		}
		if i == n-1 {
			break
		}
		e.loadTemp(false, containers[i])
		if suf.Kind == SuffixMember {
			e.suffixGet(suf)
		} else {
			e.loadTemp(keyIsValue(suf), keys[i])
			e.indexGet(suf)
		}
		e.storeTemp(false, containers[i+1])
	}

	e.expr(s.Value)
	e.implicit(s.Value.EvaluatedType(), d.Suffixes[n-1].Type)
	for i := n - 1; i >= 0; i-- {
		suf := d.Suffixes[i]
		c, k := containers[i], keys[i]
		isValue := suf.Type.IsValueType()
		switch {
		case suf.Kind == SuffixMember:
			e.recordStore(suf.FieldIndex, isValue, func() { e.loadTemp(false, c) })
		case suf.Container.Kind == KindList:
			e.listStore(bytecode.OpValueListSet, bytecode.OpObjectListSet, isValue, func() {
				e.loadTemp(false, c)
				e.loadTemp(true, k)
			})
		default:
			kv := keyIsValue(suf)
			e.mapStore(kv, isValue, func() {
				e.loadTemp(false, c)
				e.loadTemp(kv, k)
			})
		}
	}
	e.store(base.Bound)
}
