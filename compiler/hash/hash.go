package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
)

// HashProgram computes the SHA-256 content hash of a program's code
// members.
//
// The hash is computed over a deterministic serialization of each
// member's normalized token stream. Two programs that differ only in
// comments, layout, or the case of keywords and names produce the same
// hash; member order is significant because it decides which overload
// wins.
func HashProgram(p *compiler.SourceProgram) [32]byte {
	return sha256.Sum256(Serialize(NormalizeProgram(p)))
}

// HashMember computes the content hash of a single member.
func HashMember(m *compiler.SourceMember) [32]byte {
	return sha256.Sum256(Serialize([]*HMember{NormalizeMember(m)}))
}

// Hex renders a hash as lowercase hex.
func Hex(h [32]byte) string {
	return hex.EncodeToString(h[:])
}
