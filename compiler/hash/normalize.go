package hash

import (
	"strings"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// ---------------------------------------------------------------------------
// Normalization: source member -> frozen hashing tokens
//
// Comments, blank lines and layout are dropped. Keywords and identifiers
// are case-insensitive in the language, so they are lowercased. Number
// literals are reduced to canonical decimal text so that "1.50" and "1.5"
// hash alike. String literals keep their exact escaped text.
// ---------------------------------------------------------------------------

// HToken is one normalized token.
type HToken struct {
	Tag  byte
	Kind uint16 // token kind for keywords and punctuation
	Text string // payload for words and literals
}

// HMember is a normalized program member.
type HMember struct {
	Type   compiler.SourceMemberType
	Tokens []HToken
}

// NormalizeMember tokenizes m and produces its normalized form.
func NormalizeMember(m *compiler.SourceMember) *HMember {
	hm := &HMember{Type: m.MemberType}
	for _, tok := range compiler.Tokenize(m.Source, compiler.TokenizeCompile, m) {
		hm.Tokens = append(hm.Tokens, normalizeToken(tok))
	}
	return hm
}

func normalizeToken(tok compiler.Token) HToken {
	switch {
	case tok.Kind == compiler.TokenEndOfLine:
		return HToken{Tag: TagEndOfLine}
	case tok.Kind == compiler.TokenIdentifier:
		return HToken{Tag: TagIdentifier, Text: strings.ToLower(tok.Text)}
	case tok.Kind.IsKeyword():
		return HToken{Tag: TagKeyword, Kind: uint16(tok.Kind)}
	case tok.Kind == compiler.TokenNumberLiteral:
		d, err := decimal.Parse(tok.Text)
		if err != nil {
			return HToken{Tag: TagUnknown, Text: tok.Text}
		}
		return HToken{Tag: TagNumberLiteral, Text: decimal.Format(d)}
	case tok.Kind == compiler.TokenStringLiteral:
		return HToken{Tag: TagStringLiteral, Text: tok.Text}
	case tok.Kind == compiler.TokenError:
		return HToken{Tag: TagUnknown, Text: tok.Text}
	}
	return HToken{Tag: TagPunctuation, Kind: uint16(tok.Kind)}
}

// NormalizeProgram normalizes every code member of p in declaration
// order. Designs and pictures are not compiled and do not contribute.
func NormalizeProgram(p *compiler.SourceProgram) []*HMember {
	var out []*HMember
	for _, m := range p.Members {
		if m.MemberType == compiler.MemberDesign || m.MemberType == compiler.MemberPicture {
			continue
		}
		out = append(out, NormalizeMember(m))
	}
	return out
}
