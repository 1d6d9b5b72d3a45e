package bytecode

import (
	"fmt"
	"strings"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// Disassemble returns a human-readable listing of one procedure body.
func Disassemble(code []byte) (string, error) {
	return DisassembleWithName(code, "")
}

// DisassembleWithName returns a listing with a name header.
func DisassembleWithName(code []byte, name string) (string, error) {
	var sb strings.Builder
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	if code == nil {
		sb.WriteString("; <failed to compile>\n")
		return sb.String(), nil
	}
	offset := 0
	for offset < len(code) {
		line, n, err := disassembleInstruction(code, offset)
		if err != nil {
			return sb.String(), fmt.Errorf("offset %04X: %w", offset, err)
		}
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		offset += n
	}
	return sb.String(), nil
}

// DisassembleProgram lists every procedure. names supplies headers by
// procedure index and may be shorter than the procedure list.
func DisassembleProgram(p *Program, names []string) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; startup procedure %d\n", p.StartupProcedureIndex))
	sb.WriteString(fmt.Sprintf("; globals: %d values, %d objects\n\n", len(p.GlobalValues), len(p.GlobalObjects)))
	for i, code := range p.Procedures {
		name := fmt.Sprintf("procedure %d", i)
		if i < len(names) && names[i] != "" {
			name = fmt.Sprintf("%s (%d)", names[i], i)
		}
		text, err := DisassembleWithName(code, name)
		sb.WriteString(text)
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// disassembleInstruction formats the instruction at offset and returns its
// length.
func disassembleInstruction(code []byte, offset int) (string, int, error) {
	n, err := InstructionLen(code[offset:])
	if err != nil {
		return "", 0, err
	}
	op := Opcode(code[offset])
	operands := code[offset+1 : offset+n]

	switch op {
	case OpPushImmediateInt64:
		return fmt.Sprintf("%s %d", op, int64(readU64(operands))), n, nil

	case OpPushImmediateDec128:
		d, err := decimal.FromTriple(operands[0], readU64(operands[1:]), readU64(operands[9:]), int64(readU64(operands[17:])))
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("%s %s", op, decimal.Format(d)), n, nil

	case OpPushImmediateUtf8:
		s := string(operands[4:])
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		return fmt.Sprintf("%s %q", op, s), n, nil

	case OpSystemCall:
		id := SystemCall(readU16(operands))
		return fmt.Sprintf("%s %s (%d values, %d objects)", op, id, operands[2], operands[3]), n, nil

	case OpCall, OpCallV, OpCallO:
		return fmt.Sprintf("%s %d (%d values, %d objects)", op, readU32(operands), operands[4], operands[5]), n, nil

	case OpJump, OpBranchIfTrue, OpBranchIfFalse, OpBranchIfNotError:
		return fmt.Sprintf("%s -> %04X", op, readU32(operands)), n, nil

	case OpPopBranchIfError:
		return fmt.Sprintf("%s %d %d -> %04X", op, readU16(operands), readU16(operands[2:]), readU32(operands[4:])), n, nil
	}

	// Generic formatting from the operand table.
	info := GetOpcodeInfo(op)
	var sb strings.Builder
	sb.WriteString(info.Name)
	pos := 0
	for _, k := range info.Operands {
		switch k {
		case OperandU8:
			sb.WriteString(fmt.Sprintf(" %d", operands[pos]))
		case OperandU16:
			sb.WriteString(fmt.Sprintf(" %d", readU16(operands[pos:])))
		case OperandU32:
			sb.WriteString(fmt.Sprintf(" %d", readU32(operands[pos:])))
		}
		pos += k.size()
	}
	return sb.String(), n, nil
}
