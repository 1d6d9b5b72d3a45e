package compiler

import "testing"

type tokenExpectation struct {
	kind   TokenKind
	text   string
	line   int
	column int
}

func checkTokens(t *testing.T, got []Token, want []tokenExpectation) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(got), got, len(want))
	}
	for i, w := range want {
		g := got[i]
		if g.Kind != w.kind || g.Text != w.text || g.LineIndex != w.line || g.ColumnIndex != w.column {
			t.Errorf("token %d = %s at %d:%d, want %s(%q) at %d:%d",
				i, g, g.LineIndex, g.ColumnIndex, w.kind, w.text, w.line, w.column)
		}
	}
}

func TestTokenizeMinusSigns(t *testing.T) {
	tokens := Tokenize("-4-5- -6 --7 -8.9", TokenizeFormat, nil)
	checkTokens(t, tokens, []tokenExpectation{
		{TokenNumberLiteral, "-4", 0, 0},
		{TokenNumberLiteral, "-5", 0, 2},
		{TokenMinusSign, "-", 0, 4},
		{TokenNumberLiteral, "-6", 0, 6},
		{TokenMinusSign, "-", 0, 9},
		{TokenNumberLiteral, "-7", 0, 10},
		{TokenNumberLiteral, "-8.9", 0, 13},
	})
}

func TestTokenizeForLoop(t *testing.T) {
	tokens := Tokenize("for i = 1 to 5\n    dim a = true\nnext", TokenizeFormat, nil)
	checkTokens(t, tokens, []tokenExpectation{
		{TokenFor, "for", 0, 0},
		{TokenIdentifier, "i", 0, 4},
		{TokenEqualsSign, "=", 0, 6},
		{TokenNumberLiteral, "1", 0, 8},
		{TokenTo, "to", 0, 10},
		{TokenNumberLiteral, "5", 0, 13},
		{TokenEndOfLine, "\n", 0, 14},
		{TokenDim, "dim", 1, 4},
		{TokenIdentifier, "a", 1, 8},
		{TokenEqualsSign, "=", 1, 10},
		{TokenTrue, "true", 1, 12},
		{TokenEndOfLine, "\n", 1, 16},
		{TokenNext, "next", 2, 0},
	})
}

func TestTokenizeOperators(t *testing.T) {
	tokens := Tokenize("a<=b>=c<>d<e>f.g", TokenizeFormat, nil)
	kinds := []TokenKind{
		TokenIdentifier, TokenLessThanEqualsSign, TokenIdentifier, TokenGreaterThanEqualsSign,
		TokenIdentifier, TokenNotEqualsSign, TokenIdentifier, TokenLessThanSign,
		TokenIdentifier, TokenGreaterThanSign, TokenIdentifier, TokenDot, TokenIdentifier,
	}
	if len(tokens) != len(kinds) {
		t.Fatalf("got %d tokens %v, want %d", len(tokens), tokens, len(kinds))
	}
	for i, k := range kinds {
		if tokens[i].Kind != k {
			t.Errorf("token %d kind = %s, want %s", i, tokens[i].Kind, k)
		}
	}
}

func TestTokenizeStringsAndComments(t *testing.T) {
	tokens := Tokenize(`print "say ""hi""" ' greeting`, TokenizeFormat, nil)
	checkTokens(t, tokens, []tokenExpectation{
		{TokenPrint, "print", 0, 0},
		{TokenStringLiteral, `"say ""hi"""`, 0, 6},
		{TokenComment, "' greeting", 0, 19},
	})
}

func TestTokenizeCompileFilters(t *testing.T) {
	tokens := Tokenize("\n\nprint 1 ' c\n\n\nprint 2", TokenizeCompile, nil)
	kinds := []TokenKind{
		TokenPrint, TokenNumberLiteral, TokenEndOfLine,
		TokenPrint, TokenNumberLiteral, TokenEndOfLine,
	}
	if len(tokens) != len(kinds) {
		t.Fatalf("got %d tokens %v, want %d", len(tokens), tokens, len(kinds))
	}
	for i, k := range kinds {
		if tokens[i].Kind != k {
			t.Errorf("token %d kind = %s, want %s", i, tokens[i].Kind, k)
		}
	}
}

func TestClassifyToken(t *testing.T) {
	tests := []struct {
		text string
		want TokenKind
	}{
		{"DIM", TokenDim},
		{"DateTimeOffset", TokenDateTimeOffset},
		{"foo_1", TokenIdentifier},
		{"1.5", TokenNumberLiteral},
		{".5", TokenNumberLiteral},
		{"1.", TokenError},
		{"_x", TokenError},
		{"1abc", TokenError},
		{`"open`, TokenError},
		{"@", TokenError},
	}
	for _, tt := range tests {
		if got := classifyToken(tt.text); got != tt.want {
			t.Errorf("classifyToken(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
