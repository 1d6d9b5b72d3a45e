package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// Label names a code position that may not be known yet. Jumps to a label
// are emitted with a placeholder and patched when the label is bound.
type Label int

type fixup struct {
	at    int // offset of the u32 placeholder
	label Label
}

// Assembler accumulates the bytecode of one procedure.
type Assembler struct {
	code   []byte
	labels []int
	fixups []fixup
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{code: make([]byte, 0, 64)}
}

// CurrentOffset returns the offset the next instruction will be written at.
func (a *Assembler) CurrentOffset() int {
	return len(a.code)
}

// Emit appends a bare opcode and returns its offset.
func (a *Assembler) Emit(op Opcode) int {
	offset := len(a.code)
	a.code = append(a.code, byte(op))
	return offset
}

// EmitU8 appends an opcode with one byte operand.
func (a *Assembler) EmitU8(op Opcode, v uint8) int {
	offset := a.Emit(op)
	a.code = append(a.code, v)
	return offset
}

// EmitU16 appends an opcode with one u16 operand.
func (a *Assembler) EmitU16(op Opcode, v uint16) int {
	offset := a.Emit(op)
	a.code = binary.LittleEndian.AppendUint16(a.code, v)
	return offset
}

// EmitU16U16 appends an opcode with two u16 operands.
func (a *Assembler) EmitU16U16(op Opcode, v1, v2 uint16) int {
	offset := a.EmitU16(op, v1)
	a.code = binary.LittleEndian.AppendUint16(a.code, v2)
	return offset
}

// EmitCall appends OpCall, OpCallV or OpCallO.
func (a *Assembler) EmitCall(op Opcode, proc uint32, numValues, numObjects uint8) int {
	offset := a.Emit(op)
	a.code = binary.LittleEndian.AppendUint32(a.code, proc)
	a.code = append(a.code, numValues, numObjects)
	return offset
}

// EmitSystemCall appends OpSystemCall with the signature taken from the
// system call table.
func (a *Assembler) EmitSystemCall(id SystemCall) int {
	info, ok := GetSystemCallInfo(id)
	if !ok {
		panic(fmt.Sprintf("unknown system call %d", id))
	}
	offset := a.Emit(OpSystemCall)
	a.code = binary.LittleEndian.AppendUint16(a.code, uint16(id))
	a.code = append(a.code, uint8(info.NumValues), uint8(info.NumObjects))
	return offset
}

// EmitInt64 pushes an integer value.
func (a *Assembler) EmitInt64(n int64) int {
	offset := a.Emit(OpPushImmediateInt64)
	a.code = binary.LittleEndian.AppendUint64(a.code, uint64(n))
	return offset
}

// EmitDecimal pushes d, using the integer form when d is a small integer.
func (a *Assembler) EmitDecimal(d *apd.Decimal) (int, error) {
	if d.Form == apd.Finite && d.Exponent == 0 {
		if n, err := d.Int64(); err == nil {
			return a.EmitInt64(n), nil
		}
	}
	sign, hi, lo, exp, err := decimal.ToTriple(d)
	if err != nil {
		return 0, err
	}
	offset := a.Emit(OpPushImmediateDec128)
	a.code = append(a.code, sign)
	a.code = binary.LittleEndian.AppendUint64(a.code, hi)
	a.code = binary.LittleEndian.AppendUint64(a.code, lo)
	a.code = binary.LittleEndian.AppendUint64(a.code, uint64(exp))
	return offset, nil
}

// EmitString pushes a string object.
func (a *Assembler) EmitString(s string) int {
	offset := a.Emit(OpPushImmediateUtf8)
	a.code = binary.LittleEndian.AppendUint32(a.code, uint32(len(s)))
	a.code = append(a.code, s...)
	return offset
}

// NewLabel allocates an unbound label.
func (a *Assembler) NewLabel() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels) - 1)
}

// Bind sets label to the current offset.
func (a *Assembler) Bind(label Label) {
	if a.labels[label] >= 0 {
		panic(fmt.Sprintf("label %d bound twice", label))
	}
	a.labels[label] = len(a.code)
}

func (a *Assembler) emitTarget(label Label) {
	a.fixups = append(a.fixups, fixup{at: len(a.code), label: label})
	a.code = append(a.code, 0xFF, 0xFF, 0xFF, 0xFF)
}

// EmitJump appends a jump or branch whose target is label.
func (a *Assembler) EmitJump(op Opcode, label Label) int {
	offset := a.Emit(op)
	a.emitTarget(label)
	return offset
}

// EmitPopBranchIfError appends OpPopBranchIfError, which discards the given
// number of stack entries and jumps to label when the error flag is set.
func (a *Assembler) EmitPopBranchIfError(numValues, numObjects uint16, label Label) int {
	offset := a.EmitU16U16(OpPopBranchIfError, numValues, numObjects)
	a.emitTarget(label)
	return offset
}

// Finish patches every jump and returns the code. Unbound labels are an
// error.
func (a *Assembler) Finish() ([]byte, error) {
	for _, f := range a.fixups {
		target := a.labels[f.label]
		if target < 0 {
			return nil, fmt.Errorf("label %d was never bound", f.label)
		}
		binary.LittleEndian.PutUint32(a.code[f.at:], uint32(target))
	}
	a.fixups = nil
	return a.code, nil
}

func readU16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func readU32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func readU64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
