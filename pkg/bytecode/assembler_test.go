package bytecode

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/apd/v3"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

func TestAssemblerForwardAndBackwardJumps(t *testing.T) {
	a := NewAssembler()
	top := a.NewLabel()
	end := a.NewLabel()
	a.Bind(top)
	a.EmitJump(OpBranchIfFalse, end)
	a.EmitJump(OpJump, top)
	a.Bind(end)
	a.Emit(OpReturn)

	code, err := a.Finish()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		byte(OpBranchIfFalse), 10, 0, 0, 0,
		byte(OpJump), 0, 0, 0, 0,
		byte(OpReturn),
	}
	if !bytes.Equal(code, want) {
		t.Errorf("code = % X, want % X", code, want)
	}
}

func TestAssemblerUnboundLabel(t *testing.T) {
	a := NewAssembler()
	a.EmitJump(OpJump, a.NewLabel())
	if _, err := a.Finish(); err == nil {
		t.Fatal("expected an error for an unbound label")
	}
}

func TestAssemblerDecimalForms(t *testing.T) {
	tests := []struct {
		text string
		op   Opcode
	}{
		{"42", OpPushImmediateInt64},
		{"-7", OpPushImmediateInt64},
		{"1.5", OpPushImmediateDec128},
		{"123456789012345678901234567890", OpPushImmediateDec128},
		{"inf", OpPushImmediateDec128},
	}
	for _, tt := range tests {
		a := NewAssembler()
		if _, err := a.EmitDecimal(decimal.MustParse(tt.text)); err != nil {
			t.Fatalf("%s: %v", tt.text, err)
		}
		code, _ := a.Finish()
		if Opcode(code[0]) != tt.op {
			t.Errorf("%s: opcode %s, want %s", tt.text, Opcode(code[0]), tt.op)
		}
		if n, err := InstructionLen(code); err != nil || n != len(code) {
			t.Errorf("%s: InstructionLen = %d, %v; want %d", tt.text, n, err, len(code))
		}
	}
}

func TestAssemblerDecimalTooWide(t *testing.T) {
	d, _, err := apd.NewFromString("1234567890123456789012345678901234567890.5")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewAssembler().EmitDecimal(d); err == nil {
		t.Error("expected an error for a coefficient wider than 128 bits")
	}
}

func TestSystemCallOperandsFromTable(t *testing.T) {
	a := NewAssembler()
	a.EmitSystemCall(SysDateTimeOffsetFromParts)
	code, _ := a.Finish()
	if code[3] != 7 || code[4] != 1 {
		t.Errorf("operands = %d values, %d objects; want 7, 1", code[3], code[4])
	}
}
