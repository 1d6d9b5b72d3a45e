package vm

import (
	"testing"

	"github.com/nalgeon/be"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

func TestGraphemes(t *testing.T) {
	be.Equal(t, graphemes("abc"), []string{"a", "b", "c"})
	be.Equal(t, graphemes("éx"), []string{"é", "x"})
	be.Equal(t, len(graphemes("")), 0)
}

func TestCharacterAt(t *testing.T) {
	c, err := characterAt("éx", num(1))
	be.True(t, err == nil)
	be.Equal(t, c, "x")

	_, err = characterAt("ab", num(2))
	be.True(t, err != nil)
	_, err = characterAt("ab", num(-1))
	be.True(t, err != nil)
}

func TestCodeUnits(t *testing.T) {
	be.Equal(t, codeUnits("A"), []uint16{65})
	// U+1F600 needs a surrogate pair.
	be.Equal(t, len(codeUnits("\U0001F600")), 2)
}

func TestChr(t *testing.T) {
	be.Equal(t, chr(num(65)), "A")
	be.Equal(t, chr(num(0)), "")
	be.Equal(t, chr(num(-5)), "")
	be.Equal(t, chr(num(0xD800)), "")
	be.Equal(t, chr(decimal.MustParse("66.9")), "B")
}

func TestStringFromCodes(t *testing.T) {
	be.Equal(t, stringFromCodePoints(NewValueList(num(104), num(105))), "hi")
	be.Equal(t, stringFromCodeUnits(NewValueList(num(0xD83D), num(0xDE00))), "\U0001F600")
}
