package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the program hashing format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every cached build keyed by a previously computed hash.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// Token class tags. Each tag identifies how the payload that follows it
// was normalized.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Structure
	TagProgram   byte = 0x01
	TagMember    byte = 0x02
	TagEndOfLine byte = 0x03

	// Words
	TagKeyword    byte = 0x10
	TagIdentifier byte = 0x11

	// Literals
	TagNumberLiteral byte = 0x20
	TagStringLiteral byte = 0x21

	// Operators and brackets
	TagPunctuation byte = 0x30

	// Text the lexer could not classify; kept verbatim
	TagUnknown byte = 0x3F

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagProgram, TagMember, TagEndOfLine,
	TagKeyword, TagIdentifier,
	TagNumberLiteral, TagStringLiteral,
	TagPunctuation,
	TagUnknown,
}
