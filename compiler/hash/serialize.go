package hash

import "encoding/binary"

// ---------------------------------------------------------------------------
// Deterministic binary serialization of normalized members.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (uint16=2B, uint32=4B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Members: TagMember, member type byte, token count, tokens
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a program's
// normalized members. The returned bytes are suitable for hashing with
// SHA-256.
func Serialize(members []*HMember) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.writeByte(TagProgram)
	s.writeUint32(uint32(len(members)))
	for _, m := range members {
		s.serializeMember(m)
	}
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) serializeMember(m *HMember) {
	s.writeByte(TagMember)
	s.writeByte(byte(m.Type))
	s.writeUint32(uint32(len(m.Tokens)))
	for _, tok := range m.Tokens {
		s.serializeToken(tok)
	}
}

func (s *serializer) serializeToken(tok HToken) {
	s.writeByte(tok.Tag)
	switch tok.Tag {
	case TagEndOfLine:
	case TagKeyword, TagPunctuation:
		s.writeUint16(tok.Kind)
	default:
		s.writeString(tok.Text)
	}
}
