package bytecode

import (
	"strings"
	"testing"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

func TestDisassemble(t *testing.T) {
	a := NewAssembler()
	done := a.NewLabel()
	a.EmitU16U16(OpInitLocals, 1, 0)
	a.EmitString("hello")
	a.EmitSystemCall(SysPrintString)
	a.EmitPopBranchIfError(0, 1, done)
	if _, err := a.EmitDecimal(decimal.MustParse("2.5")); err != nil {
		t.Fatal(err)
	}
	a.EmitU16(OpSetLocalValue, 0)
	a.Bind(done)
	a.Emit(OpReturn)
	code, err := a.Finish()
	if err != nil {
		t.Fatal(err)
	}

	text, err := DisassembleWithName(code, "Main")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"; === Main ===",
		"0000  InitLocals 1 0",
		`PushImmediateUtf8 "hello"`,
		"SystemCall PrintString (0 values, 1 objects)",
		"PopBranchIfError 0 1 -> ",
		"PushImmediateDec128 2.5",
		"SetLocalValue 0",
		"Return",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("listing lacks %q:\n%s", want, text)
		}
	}
}

func TestDisassembleFailedProcedure(t *testing.T) {
	text, err := DisassembleProgram(&Program{Procedures: [][]byte{nil}}, []string{"Broken"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Broken (0)") || !strings.Contains(text, "<failed to compile>") {
		t.Errorf("unexpected listing:\n%s", text)
	}
}

func TestDisassembleTruncated(t *testing.T) {
	if _, err := Disassemble([]byte{byte(OpJump), 1}); err == nil {
		t.Error("expected an error for a truncated operand")
	}
}
