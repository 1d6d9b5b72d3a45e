package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// Section tags of the serialized program.
const (
	tagProcedure byte = 1
	tagValue     byte = 2
	tagObject    byte = 3
	tagEOF       byte = 255
)

// GlobalObject is the initial state of a global object slot. Strings and
// time zones carry their text; other types are created by the startup
// procedure and serialize with empty text.
type GlobalObject struct {
	Type ObjectType
	Text string
}

// Program is a complete executable: procedure bodies plus initial globals.
type Program struct {
	StartupProcedureIndex uint32
	Procedures            [][]byte // nil for a procedure that failed to compile
	GlobalValues          []*apd.Decimal
	GlobalObjects         []GlobalObject
}

// Serialize encodes the program in the pinned little-endian section format.
func (p *Program) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = binary.LittleEndian.AppendUint32(buf, p.StartupProcedureIndex)

	for _, proc := range p.Procedures {
		buf = append(buf, tagProcedure)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(proc)))
		buf = append(buf, proc...)
	}

	for i, v := range p.GlobalValues {
		sign, hi, lo, exp, err := decimal.ToTriple(v)
		if err != nil {
			return nil, fmt.Errorf("global value %d: %w", i, err)
		}
		buf = append(buf, tagValue, sign)
		buf = binary.LittleEndian.AppendUint64(buf, hi)
		buf = binary.LittleEndian.AppendUint64(buf, lo)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(exp))
	}

	for _, o := range p.GlobalObjects {
		buf = append(buf, tagObject, byte(o.Type))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(o.Text)))
		buf = append(buf, o.Text...)
	}

	buf = append(buf, tagEOF)
	return buf, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int, what string) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("truncated %s at offset %d", what, r.pos)
	}
	return nil
}

func (r *reader) u8(what string) (byte, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := readU32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64(what string) (uint64, error) {
	if err := r.need(8, what); err != nil {
		return 0, err
	}
	v := readU64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) bytes(n uint32, what string) ([]byte, error) {
	if err := r.need(int(n), what); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// Deserialize decodes a program written by Serialize.
func Deserialize(data []byte) (*Program, error) {
	r := &reader{data: data}
	startup, err := r.u32("startup index")
	if err != nil {
		return nil, err
	}
	p := &Program{StartupProcedureIndex: startup}

	for {
		tag, err := r.u8("section tag")
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagEOF:
			if r.pos != len(data) {
				return nil, fmt.Errorf("%d trailing bytes after end of program", len(data)-r.pos)
			}
			return p, nil

		case tagProcedure:
			n, err := r.u32("procedure length")
			if err != nil {
				return nil, err
			}
			body, err := r.bytes(n, "procedure")
			if err != nil {
				return nil, err
			}
			if n == 0 {
				p.Procedures = append(p.Procedures, nil)
			} else {
				p.Procedures = append(p.Procedures, append([]byte(nil), body...))
			}

		case tagValue:
			sign, err := r.u8("value sign")
			if err != nil {
				return nil, err
			}
			hi, err := r.u64("value")
			if err != nil {
				return nil, err
			}
			lo, err := r.u64("value")
			if err != nil {
				return nil, err
			}
			exp, err := r.u64("value exponent")
			if err != nil {
				return nil, err
			}
			d, err := decimal.FromTriple(sign, hi, lo, int64(exp))
			if err != nil {
				return nil, fmt.Errorf("global value %d: %w", len(p.GlobalValues), err)
			}
			p.GlobalValues = append(p.GlobalValues, d)

		case tagObject:
			objType, err := r.u8("object type")
			if err != nil {
				return nil, err
			}
			n, err := r.u32("object length")
			if err != nil {
				return nil, err
			}
			text, err := r.bytes(n, "object")
			if err != nil {
				return nil, err
			}
			p.GlobalObjects = append(p.GlobalObjects, GlobalObject{Type: ObjectType(objType), Text: string(text)})

		default:
			return nil, fmt.Errorf("unknown section tag %d at offset %d", tag, r.pos-1)
		}
	}
}
