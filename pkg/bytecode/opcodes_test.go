package bytecode

import (
	"strings"
	"testing"
)

func TestOpcodeNamesAreUnique(t *testing.T) {
	seen := make(map[string]Opcode)
	for _, op := range AllOpcodes() {
		name := op.String()
		if name == "" || strings.HasPrefix(name, "UNKNOWN") {
			t.Errorf("opcode 0x%02X has no name", byte(op))
		}
		if prev, ok := seen[name]; ok {
			t.Errorf("opcodes 0x%02X and 0x%02X share the name %s", byte(prev), byte(op), name)
		}
		seen[name] = op
	}
}

func TestUnknownOpcode(t *testing.T) {
	if Opcode(0xFE).IsValid() {
		t.Fatal("0xFE should not be defined")
	}
	if _, err := InstructionLen([]byte{0xFE}); err == nil {
		t.Error("InstructionLen should reject an unknown opcode")
	}
}

func TestInstructionLen(t *testing.T) {
	tests := []struct {
		code []byte
		want int
	}{
		{[]byte{byte(OpReturn)}, 1},
		{[]byte{byte(OpPushArgumentValue), 3}, 2},
		{[]byte{byte(OpInitLocals), 1, 0, 2, 0}, 5},
		{[]byte{byte(OpCallV), 1, 0, 0, 0, 2, 0}, 7},
		{[]byte{byte(OpPushImmediateUtf8), 2, 0, 0, 0, 'h', 'i'}, 7},
	}
	for _, tt := range tests {
		got, err := InstructionLen(tt.code)
		if err != nil || got != tt.want {
			t.Errorf("%s: got %d, %v; want %d", Opcode(tt.code[0]), got, err, tt.want)
		}
	}
	if _, err := InstructionLen([]byte{byte(OpPushImmediateUtf8), 9, 0, 0, 0, 'x'}); err == nil {
		t.Error("truncated string operand should be an error")
	}
}

func TestSystemCallTableComplete(t *testing.T) {
	for id := 0; id < SystemCallCount(); id++ {
		info, ok := GetSystemCallInfo(SystemCall(id))
		if !ok || info.Name == "" {
			t.Errorf("system call %d has no entry", id)
		}
	}
	if _, ok := GetSystemCallInfo(SystemCall(SystemCallCount())); ok {
		t.Error("id past the end should be unknown")
	}
}
