package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
// Operands are little-endian and follow the opcode byte inline.
type Opcode byte

const (
	// ========================================================================
	// Stack and immediates (0x00-0x0F)
	// ========================================================================

	OpExit                Opcode = 0x00 // Stop the program
	OpPushImmediateInt64  Opcode = 0x01 // Push value: <value:i64>
	OpPushImmediateDec128 Opcode = 0x02 // Push value: <sign:u8> <hi:u64> <lo:u64> <exp:i64>
	OpPushImmediateUtf8   Opcode = 0x03 // Push string object: <len:u32> <bytes>
	OpPopValue            Opcode = 0x04 // Discard top value
	OpPopObject           Opcode = 0x05 // Discard top object
	OpDuplicateValue      Opcode = 0x06 // Push a copy of the top value
	OpDuplicateObject     Opcode = 0x07 // Push a copy of the top object reference

	// ========================================================================
	// Registers (0x10-0x1F)
	// ========================================================================

	OpPopA  Opcode = 0x10 // Pop value into A
	OpPopB  Opcode = 0x11 // Pop value into B
	OpPushA Opcode = 0x12 // Push A
	OpPushB Opcode = 0x13 // Push B
	OpPopX  Opcode = 0x14 // Pop object into X
	OpPopY  Opcode = 0x15 // Pop object into Y
	OpPopZ  Opcode = 0x16 // Pop object into Z
	OpPushX Opcode = 0x17 // Push X
	OpPushY Opcode = 0x18 // Push Y
	OpPushZ Opcode = 0x19 // Push Z

	// ========================================================================
	// Variables (0x20-0x2F)
	// ========================================================================

	OpPushArgumentValue  Opcode = 0x20 // <index:u8>
	OpPushArgumentObject Opcode = 0x21 // <index:u8>
	OpSetArgumentValue   Opcode = 0x22 // Pop into argument: <index:u8>
	OpSetArgumentObject  Opcode = 0x23 // Pop into argument: <index:u8>
	OpInitLocals         Opcode = 0x24 // Reserve locals: <values:u16> <objects:u16>
	OpPushLocalValue     Opcode = 0x25 // <index:u16>
	OpPushLocalObject    Opcode = 0x26 // <index:u16>
	OpSetLocalValue      Opcode = 0x27 // Pop into local: <index:u16>
	OpSetLocalObject     Opcode = 0x28 // Pop into local: <index:u16>
	OpPushGlobalValue    Opcode = 0x29 // <index:u16>
	OpPushGlobalObject   Opcode = 0x2A // <index:u16>
	OpSetGlobalValue     Opcode = 0x2B // Pop into global: <index:u16>
	OpSetGlobalObject    Opcode = 0x2C // Pop into global: <index:u16>

	// ========================================================================
	// Control flow (0x30-0x3F)
	// ========================================================================

	OpJump          Opcode = 0x30 // <target:u32>
	OpBranchIfTrue  Opcode = 0x31 // Pop value, jump if nonzero: <target:u32>
	OpBranchIfFalse Opcode = 0x32 // Pop value, jump if zero: <target:u32>
	OpCall          Opcode = 0x33 // Call sub: <proc:u32> <values:u8> <objects:u8>
	OpCallV         Opcode = 0x34 // Call function returning a value
	OpCallO         Opcode = 0x35 // Call function returning an object
	OpSystemCall    Opcode = 0x36 // <id:u16> <values:u8> <objects:u8>
	OpReturn        Opcode = 0x37 // Return from sub
	OpReturnValue   Opcode = 0x38 // Pop value and return it
	OpReturnObject  Opcode = 0x39 // Pop object and return it

	// ========================================================================
	// Errors (0x40-0x4F)
	// ========================================================================

	OpSetError         Opcode = 0x40 // Pop code value and message object, raise
	OpClearError       Opcode = 0x41 // Clear the error flag, keep code and message
	OpBubbleError      Opcode = 0x42 // Raise again with the stored code and message
	OpReturnIfError    Opcode = 0x43 // Return from the procedure if the flag is set
	OpPopBranchIfError Opcode = 0x44 // <values:u16> <objects:u16> <target:u32>
	OpBranchIfNotError Opcode = 0x45 // <target:u32>
	OpPushErrorMessage Opcode = 0x46 // Push the stored message
	OpPushErrorCode    Opcode = 0x47 // Push the stored code

	// ========================================================================
	// Value arithmetic and logic on A and B (0x50-0x6F)
	// ========================================================================

	OpAOrB                Opcode = 0x50
	OpAAndB               Opcode = 0x51
	OpANot                Opcode = 0x52
	OpAEqualsB            Opcode = 0x53
	OpANotEqualsB         Opcode = 0x54
	OpALessThanB          Opcode = 0x55
	OpALessThanEqualsB    Opcode = 0x56
	OpAGreaterThanB       Opcode = 0x57
	OpAGreaterThanEqualsB Opcode = 0x58
	OpAAddB               Opcode = 0x59
	OpASubtractB          Opcode = 0x5A
	OpAMultiplyB          Opcode = 0x5B
	OpADivideB            Opcode = 0x5C
	OpAModuloB            Opcode = 0x5D
	OpAPowerB             Opcode = 0x5E
	OpDateTimeAToDateA    Opcode = 0x5F // Truncate milliseconds to the day

	// ========================================================================
	// Strings and generic objects (0x70-0x7F)
	// ========================================================================

	OpStringXEqualsY      Opcode = 0x70 // A = X == Y
	OpStringXCompareY     Opcode = 0x71 // A = -1, 0 or 1
	OpStringXConcatenateY Opcode = 0x72 // X = X + Y
	OpXEqualsY            Opcode = 0x73 // A = structural equality
	OpNumberAToStringX    Opcode = 0x74
	OpBooleanAToStringX   Opcode = 0x75
	OpDateAToStringX      Opcode = 0x76
	OpDateTimeAToStringX  Opcode = 0x77
	OpTimeSpanAToStringX  Opcode = 0x78
	OpStringXCharacterAtA Opcode = 0x79 // X = character A of X

	// ========================================================================
	// Records (0x80-0x8F)
	// ========================================================================

	OpRecordBuilderBegin  Opcode = 0x80 // <values:u16> <objects:u16>
	OpRecordBuilderStoreA Opcode = 0x81 // Append A to the open record
	OpRecordBuilderStoreX Opcode = 0x82 // Append X to the open record
	OpRecordBuilderEnd    Opcode = 0x83 // Push the finished record
	OpRecordLoadA         Opcode = 0x84 // A = X.values[i]: <index:u16>
	OpRecordLoadX         Opcode = 0x85 // X = X.objects[i]: <index:u16>
	OpRecordStoreA        Opcode = 0x86 // X = X with values[i] = A: <index:u16>
	OpRecordStoreY        Opcode = 0x87 // X = X with objects[i] = Y: <index:u16>

	// ========================================================================
	// Lists (0x90-0xAF)
	// ========================================================================

	OpValueListBuilderBegin  Opcode = 0x90
	OpValueListBuilderAddA   Opcode = 0x91
	OpValueListBuilderEnd    Opcode = 0x92 // Push the finished list
	OpObjectListBuilderBegin Opcode = 0x93
	OpObjectListBuilderAddX  Opcode = 0x94
	OpObjectListBuilderEnd   Opcode = 0x95
	OpValueListGet           Opcode = 0x96 // A = X[A]
	OpObjectListGet          Opcode = 0x97 // X = X[A]
	OpValueListSet           Opcode = 0x98 // X = X with [A] = B
	OpObjectListSet          Opcode = 0x99 // X = X with [A] = Y
	OpValueListInsert        Opcode = 0x9A // X = X with B inserted at A
	OpObjectListInsert       Opcode = 0x9B // X = X with Y inserted at A
	OpListRemove             Opcode = 0x9C // X = X without [A]
	OpValueListConcat        Opcode = 0x9D // X = X ++ Y
	OpObjectListConcat       Opcode = 0x9E // X = X ++ Y
	OpValueListAppendA       Opcode = 0x9F // X = X + [A]
	OpObjectListAppendY      Opcode = 0xA0 // X = X + [Y]
	OpCount                  Opcode = 0xA1 // A = element count of list or map X

	// ========================================================================
	// Maps and sets (0xB0-0xCF)
	// ========================================================================

	OpValueToValueMapNew   Opcode = 0xB0 // X = empty map
	OpValueToObjectMapNew  Opcode = 0xB1
	OpObjectToValueMapNew  Opcode = 0xB2
	OpObjectToObjectMapNew Opcode = 0xB3
	OpValueToValueMapGet   Opcode = 0xB4 // A = X[A]
	OpValueToObjectMapGet  Opcode = 0xB5 // X = X[A]
	OpObjectToValueMapGet  Opcode = 0xB6 // A = X[Y]
	OpObjectToObjectMapGet Opcode = 0xB7 // X = X[Y]
	OpValueToValueMapSet   Opcode = 0xB8 // X = X with [A] = B
	OpValueToObjectMapSet  Opcode = 0xB9 // X = X with [A] = Y
	OpObjectToValueMapSet  Opcode = 0xBA // X = X with [Y] = A
	OpObjectToObjectMapSet Opcode = 0xBB // X = X with [Y] = Z
	OpMapRemoveKeyA        Opcode = 0xBC // X = X without key A
	OpMapRemoveKeyY        Opcode = 0xBD // X = X without key Y
	OpMapContainsKeyA      Opcode = 0xBE // A = X has key A
	OpMapContainsKeyY      Opcode = 0xBF // A = X has key Y
	OpMapKeys              Opcode = 0xC0 // X = sorted keys of X
	OpMapValues            Opcode = 0xC1 // X = values of X in key order

	// ========================================================================
	// Optionals (0xD0-0xDF)
	// ========================================================================

	OpValueOptionalNewPresentA  Opcode = 0xD0 // X = present(A)
	OpObjectOptionalNewPresentX Opcode = 0xD1 // X = present(X)
	OpValueOptionalNewMissing   Opcode = 0xD2 // X = missing
	OpObjectOptionalNewMissing  Opcode = 0xD3 // X = missing
	OpOptionalHasValue          Opcode = 0xD4 // A = X is present
	OpValueOptionalGet          Opcode = 0xD5 // A = X's value
	OpObjectOptionalGet         Opcode = 0xD6 // X = X's value
)

// OperandKind describes one inline operand.
type OperandKind byte

const (
	OperandU8 OperandKind = iota
	OperandU16
	OperandU32
	OperandI64
	OperandDec128 // sign u8, hi u64, lo u64, exponent i64
	OperandUtf8   // length u32, then bytes
)

func (k OperandKind) size() int {
	switch k {
	case OperandU8:
		return 1
	case OperandU16:
		return 2
	case OperandU32:
		return 4
	case OperandI64:
		return 8
	case OperandDec128:
		return 25
	}
	return 4 // length prefix of OperandUtf8
}

// OpcodeInfo provides metadata about each opcode for the assembler,
// disassembler and interpreter.
type OpcodeInfo struct {
	Name     string        // Human-readable name
	Operands []OperandKind // Inline operands, in order
	CanError bool          // Whether the instruction can raise an in-language error
}

var (
	u8       = []OperandKind{OperandU8}
	u16      = []OperandKind{OperandU16}
	u32      = []OperandKind{OperandU32}
	u16u16   = []OperandKind{OperandU16, OperandU16}
	callOps  = []OperandKind{OperandU32, OperandU8, OperandU8}
	sysOps   = []OperandKind{OperandU16, OperandU8, OperandU8}
	popBrOps = []OperandKind{OperandU16, OperandU16, OperandU32}
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack and immediates
	OpExit:                {Name: "Exit"},
	OpPushImmediateInt64:  {Name: "PushImmediateInt64", Operands: []OperandKind{OperandI64}},
	OpPushImmediateDec128: {Name: "PushImmediateDec128", Operands: []OperandKind{OperandDec128}},
	OpPushImmediateUtf8:   {Name: "PushImmediateUtf8", Operands: []OperandKind{OperandUtf8}},
	OpPopValue:            {Name: "PopValue"},
	OpPopObject:           {Name: "PopObject"},
	OpDuplicateValue:      {Name: "DuplicateValue"},
	OpDuplicateObject:     {Name: "DuplicateObject"},

	// Registers
	OpPopA:  {Name: "PopA"},
	OpPopB:  {Name: "PopB"},
	OpPushA: {Name: "PushA"},
	OpPushB: {Name: "PushB"},
	OpPopX:  {Name: "PopX"},
	OpPopY:  {Name: "PopY"},
	OpPopZ:  {Name: "PopZ"},
	OpPushX: {Name: "PushX"},
	OpPushY: {Name: "PushY"},
	OpPushZ: {Name: "PushZ"},

	// Variables
	OpPushArgumentValue:  {Name: "PushArgumentValue", Operands: u8},
	OpPushArgumentObject: {Name: "PushArgumentObject", Operands: u8},
	OpSetArgumentValue:   {Name: "SetArgumentValue", Operands: u8},
	OpSetArgumentObject:  {Name: "SetArgumentObject", Operands: u8},
	OpInitLocals:         {Name: "InitLocals", Operands: u16u16},
	OpPushLocalValue:     {Name: "PushLocalValue", Operands: u16},
	OpPushLocalObject:    {Name: "PushLocalObject", Operands: u16},
	OpSetLocalValue:      {Name: "SetLocalValue", Operands: u16},
	OpSetLocalObject:     {Name: "SetLocalObject", Operands: u16},
	OpPushGlobalValue:    {Name: "PushGlobalValue", Operands: u16},
	OpPushGlobalObject:   {Name: "PushGlobalObject", Operands: u16},
	OpSetGlobalValue:     {Name: "SetGlobalValue", Operands: u16},
	OpSetGlobalObject:    {Name: "SetGlobalObject", Operands: u16},

	// Control flow
	OpJump:          {Name: "Jump", Operands: u32},
	OpBranchIfTrue:  {Name: "BranchIfTrue", Operands: u32},
	OpBranchIfFalse: {Name: "BranchIfFalse", Operands: u32},
	OpCall:          {Name: "Call", Operands: callOps, CanError: true},
	OpCallV:         {Name: "CallV", Operands: callOps, CanError: true},
	OpCallO:         {Name: "CallO", Operands: callOps, CanError: true},
	OpSystemCall:    {Name: "SystemCall", Operands: sysOps, CanError: true},
	OpReturn:        {Name: "Return"},
	OpReturnValue:   {Name: "ReturnValue"},
	OpReturnObject:  {Name: "ReturnObject"},

	// Errors
	OpSetError:         {Name: "SetError", CanError: true},
	OpClearError:       {Name: "ClearError"},
	OpBubbleError:      {Name: "BubbleError", CanError: true},
	OpReturnIfError:    {Name: "ReturnIfError"},
	OpPopBranchIfError: {Name: "PopBranchIfError", Operands: popBrOps},
	OpBranchIfNotError: {Name: "BranchIfNotError", Operands: u32},
	OpPushErrorMessage: {Name: "PushErrorMessage"},
	OpPushErrorCode:    {Name: "PushErrorCode"},

	// Value arithmetic and logic
	OpAOrB:                {Name: "AOrB"},
	OpAAndB:               {Name: "AAndB"},
	OpANot:                {Name: "ANot"},
	OpAEqualsB:            {Name: "AEqualsB"},
	OpANotEqualsB:         {Name: "ANotEqualsB"},
	OpALessThanB:          {Name: "ALessThanB"},
	OpALessThanEqualsB:    {Name: "ALessThanEqualsB"},
	OpAGreaterThanB:       {Name: "AGreaterThanB"},
	OpAGreaterThanEqualsB: {Name: "AGreaterThanEqualsB"},
	OpAAddB:               {Name: "AAddB"},
	OpASubtractB:          {Name: "ASubtractB"},
	OpAMultiplyB:          {Name: "AMultiplyB"},
	OpADivideB:            {Name: "ADivideB"},
	OpAModuloB:            {Name: "AModuloB"},
	OpAPowerB:             {Name: "APowerB"},
	OpDateTimeAToDateA:    {Name: "DateTimeAToDateA"},

	// Strings and generic objects
	OpStringXEqualsY:      {Name: "StringXEqualsY"},
	OpStringXCompareY:     {Name: "StringXCompareY"},
	OpStringXConcatenateY: {Name: "StringXConcatenateY"},
	OpXEqualsY:            {Name: "XEqualsY"},
	OpNumberAToStringX:    {Name: "NumberAToStringX"},
	OpBooleanAToStringX:   {Name: "BooleanAToStringX"},
	OpDateAToStringX:      {Name: "DateAToStringX"},
	OpDateTimeAToStringX:  {Name: "DateTimeAToStringX"},
	OpTimeSpanAToStringX:  {Name: "TimeSpanAToStringX"},
	OpStringXCharacterAtA: {Name: "StringXCharacterAtA", CanError: true},

	// Records
	OpRecordBuilderBegin:  {Name: "RecordBuilderBegin", Operands: u16u16},
	OpRecordBuilderStoreA: {Name: "RecordBuilderStoreA"},
	OpRecordBuilderStoreX: {Name: "RecordBuilderStoreX"},
	OpRecordBuilderEnd:    {Name: "RecordBuilderEnd"},
	OpRecordLoadA:         {Name: "RecordLoadA", Operands: u16},
	OpRecordLoadX:         {Name: "RecordLoadX", Operands: u16},
	OpRecordStoreA:        {Name: "RecordStoreA", Operands: u16},
	OpRecordStoreY:        {Name: "RecordStoreY", Operands: u16},

	// Lists
	OpValueListBuilderBegin:  {Name: "ValueListBuilderBegin"},
	OpValueListBuilderAddA:   {Name: "ValueListBuilderAddA"},
	OpValueListBuilderEnd:    {Name: "ValueListBuilderEnd"},
	OpObjectListBuilderBegin: {Name: "ObjectListBuilderBegin"},
	OpObjectListBuilderAddX:  {Name: "ObjectListBuilderAddX"},
	OpObjectListBuilderEnd:   {Name: "ObjectListBuilderEnd"},
	OpValueListGet:           {Name: "ValueListGet", CanError: true},
	OpObjectListGet:          {Name: "ObjectListGet", CanError: true},
	OpValueListSet:           {Name: "ValueListSet", CanError: true},
	OpObjectListSet:          {Name: "ObjectListSet", CanError: true},
	OpValueListInsert:        {Name: "ValueListInsert", CanError: true},
	OpObjectListInsert:       {Name: "ObjectListInsert", CanError: true},
	OpListRemove:             {Name: "ListRemove", CanError: true},
	OpValueListConcat:        {Name: "ValueListConcat"},
	OpObjectListConcat:       {Name: "ObjectListConcat"},
	OpValueListAppendA:       {Name: "ValueListAppendA"},
	OpObjectListAppendY:      {Name: "ObjectListAppendY"},
	OpCount:                  {Name: "Count"},

	// Maps and sets
	OpValueToValueMapNew:   {Name: "ValueToValueMapNew"},
	OpValueToObjectMapNew:  {Name: "ValueToObjectMapNew"},
	OpObjectToValueMapNew:  {Name: "ObjectToValueMapNew"},
	OpObjectToObjectMapNew: {Name: "ObjectToObjectMapNew"},
	OpValueToValueMapGet:   {Name: "ValueToValueMapGet", CanError: true},
	OpValueToObjectMapGet:  {Name: "ValueToObjectMapGet", CanError: true},
	OpObjectToValueMapGet:  {Name: "ObjectToValueMapGet", CanError: true},
	OpObjectToObjectMapGet: {Name: "ObjectToObjectMapGet", CanError: true},
	OpValueToValueMapSet:   {Name: "ValueToValueMapSet"},
	OpValueToObjectMapSet:  {Name: "ValueToObjectMapSet"},
	OpObjectToValueMapSet:  {Name: "ObjectToValueMapSet"},
	OpObjectToObjectMapSet: {Name: "ObjectToObjectMapSet"},
	OpMapRemoveKeyA:        {Name: "MapRemoveKeyA"},
	OpMapRemoveKeyY:        {Name: "MapRemoveKeyY"},
	OpMapContainsKeyA:      {Name: "MapContainsKeyA"},
	OpMapContainsKeyY:      {Name: "MapContainsKeyY"},
	OpMapKeys:              {Name: "MapKeys"},
	OpMapValues:            {Name: "MapValues"},

	// Optionals
	OpValueOptionalNewPresentA:  {Name: "ValueOptionalNewPresentA"},
	OpObjectOptionalNewPresentX: {Name: "ObjectOptionalNewPresentX"},
	OpValueOptionalNewMissing:   {Name: "ValueOptionalNewMissing"},
	OpObjectOptionalNewMissing:  {Name: "ObjectOptionalNewMissing"},
	OpOptionalHasValue:          {Name: "OptionalHasValue"},
	OpValueOptionalGet:          {Name: "ValueOptionalGet", CanError: true},
	OpObjectOptionalGet:         {Name: "ObjectOptionalGet", CanError: true},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsValid reports whether op is a defined opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// CanError reports whether the instruction may raise an in-language error.
func (op Opcode) CanError() bool {
	return GetOpcodeInfo(op).CanError
}

// InstructionLen returns the total length of the instruction at code[0].
// Instructions with a string operand depend on the encoded length.
func InstructionLen(code []byte) (int, error) {
	if len(code) == 0 {
		return 0, fmt.Errorf("empty instruction")
	}
	op := Opcode(code[0])
	info, ok := opcodeInfoTable[op]
	if !ok {
		return 0, fmt.Errorf("unknown opcode 0x%02X", code[0])
	}
	n := 1
	for _, k := range info.Operands {
		if k == OperandUtf8 {
			if len(code) < n+4 {
				return 0, fmt.Errorf("%s: truncated string length", op)
			}
			n += 4 + int(readU32(code[n:]))
			continue
		}
		n += k.size()
	}
	if n > len(code) {
		return 0, fmt.Errorf("%s: truncated operands", op)
	}
	return n, nil
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
