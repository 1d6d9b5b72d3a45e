package vm

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
)

// Strings are stored as UTF-8. Len and the code unit functions count
// UTF-16 code units; Characters and indexing work on grapheme clusters.

func codeUnits(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func graphemes(s string) []string {
	out := make([]string, 0, len(s))
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

// characterAt returns grapheme cluster index of s.
func characterAt(s string, index Value) (string, *runtimeError) {
	i, ok := intValue(index)
	if ok && i >= 0 {
		g := uniseg.NewGraphemes(s)
		for n := int64(0); g.Next(); n++ {
			if n == i {
				return g.Str(), nil
			}
		}
	}
	return "", raise(bytecode.ErrListIndexOutOfRange, "Character index out of range.")
}

// chr converts a code point to a one-character string. Values that are not
// valid scalar values give the empty string.
func chr(v Value) string {
	n, ok := intValue(v)
	if !ok || n <= 0 || n > utf8.MaxRune {
		return ""
	}
	r := rune(n)
	if !utf8.ValidRune(r) {
		return ""
	}
	return string(r)
}

func stringFromCodePoints(l *ValueList) string {
	runes := make([]rune, 0, l.Len())
	for _, v := range l.Slice() {
		if n, ok := intValue(v); ok && n > 0 && utf8.ValidRune(rune(n)) {
			runes = append(runes, rune(n))
		}
	}
	return string(runes)
}

func stringFromCodeUnits(l *ValueList) string {
	units := make([]uint16, 0, l.Len())
	for _, v := range l.Slice() {
		n, _ := intValue(v)
		units = append(units, uint16(n))
	}
	return string(utf16.Decode(units))
}
