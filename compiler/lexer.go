package compiler

import (
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Lexer: character-at-a-time scanner for TMBASIC source
// ---------------------------------------------------------------------------

// TokenizeMode selects the post-processing applied to the token stream.
type TokenizeMode int

const (
	// TokenizeCompile strips comments and blank lines and guarantees a
	// trailing end-of-line.
	TokenizeCompile TokenizeMode = iota
	// TokenizeFormat keeps every token, including comments, for display.
	TokenizeFormat
)

var (
	integerRegex    = regexp.MustCompile(`^-?[0-9]+$`)
	numberRegex     = regexp.MustCompile(`^-?([0-9]+(\.[0-9]+)?|\.[0-9]+)$`)
	identifierRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// Lexer scans source text into tokens.
type Lexer struct {
	member *SourceMember
	tokens []Token

	current         strings.Builder
	currentColumn   int
	inString        bool
	inComment       bool
	skipNext        bool
	lineIndex       int
	columnIndex     int
}

// Tokenize converts text into tokens. It never fails: unrecognized text
// becomes an error token for later stages to report.
func Tokenize(text string, mode TokenizeMode, member *SourceMember) []Token {
	l := &Lexer{member: member, columnIndex: -1}
	runes := []rune(text)
	for i, ch := range runes {
		peek := rune(0)
		if i+1 < len(runes) {
			peek = runes[i+1]
		}
		l.processChar(ch, peek)
	}
	l.endCurrentToken()

	tokens := l.tokens
	if mode == TokenizeCompile {
		tokens = removeComments(tokens)
		tokens = removeBlankLines(tokens)
		if len(tokens) == 0 || tokens[len(tokens)-1].Kind != TokenEndOfLine {
			tokens = append(tokens, Token{
				LineIndex:   l.lineIndex,
				ColumnIndex: l.columnIndex + 1,
				Kind:        TokenEndOfLine,
				Text:        "\n",
				Member:      member,
			})
		}
	}
	return tokens
}

func (l *Lexer) processChar(ch, peek rune) {
	l.columnIndex++

	switch {
	case l.skipNext:
		l.skipNext = false

	case l.inComment:
		if ch == '\n' {
			// the comment and the newline are two separate tokens
			l.endCurrentToken()
			l.inComment = false
			l.newline(ch)
		} else if ch != '\r' {
			l.append(ch)
		}

	case l.inString:
		l.append(ch)
		if ch == '"' {
			if peek == '"' {
				// "" is an escaped quote
				l.append(peek)
				l.skipNext = true
			} else {
				l.endCurrentToken()
				l.inString = false
			}
		}

	case ch == '\'':
		l.endCurrentToken()
		l.inComment = true
		l.append(ch)

	case ch == '"':
		l.endCurrentToken()
		l.inString = true
		l.append(ch)

	default:
		l.processPlainChar(ch, peek)
	}
}

func (l *Lexer) processPlainChar(ch, peek rune) {
	switch ch {
	case ' ', '\t', '\r':
		l.endCurrentToken()

	case '(', ')', '[', ']', '{', '}', ':', ';', '|', ',', '+', '*', '/', '=', '^':
		l.endCurrentToken()
		l.append(ch)
		l.endCurrentToken()

	case '\n':
		l.endCurrentToken()
		l.newline(ch)

	case '-':
		l.endCurrentToken()
		l.append(ch)
		if peek < '0' || peek > '9' {
			// minus sign
			l.endCurrentToken()
		}

	case '<', '>':
		l.endCurrentToken()
		l.append(ch)
		if peek == '=' || (ch == '<' && peek == '>') {
			l.append(peek)
			l.skipNext = true
		}
		l.endCurrentToken()

	case '.':
		switch {
		case l.current.Len() > 0 && integerRegex.MatchString(l.current.String()):
			l.append(ch)
		case l.current.Len() == 0 && peek >= '0' && peek <= '9':
			l.append(ch)
		default:
			l.endCurrentToken()
			l.append(ch)
			l.endCurrentToken()
		}

	default:
		l.append(ch)
	}
}

func (l *Lexer) newline(ch rune) {
	l.append(ch)
	l.endCurrentToken()
	l.lineIndex++
	l.columnIndex = -1
}

func (l *Lexer) append(ch rune) {
	if l.current.Len() == 0 {
		l.currentColumn = l.columnIndex
	}
	l.current.WriteRune(ch)
}

func (l *Lexer) endCurrentToken() {
	if l.current.Len() == 0 {
		return
	}
	text := l.current.String()
	l.tokens = append(l.tokens, Token{
		LineIndex:   l.lineIndex,
		ColumnIndex: l.currentColumn,
		Kind:        classifyToken(text),
		Text:        text,
		Member:      l.member,
	})
	l.current.Reset()
}

// classifyToken maps finished token text to its kind.
func classifyToken(text string) TokenKind {
	switch text[0] {
	case '\n':
		return TokenEndOfLine
	case '"':
		if len(text) < 2 || !strings.HasSuffix(text, `"`) {
			return TokenError
		}
		return TokenStringLiteral
	case '\'':
		return TokenComment
	case '(':
		return TokenLeftParenthesis
	case ')':
		return TokenRightParenthesis
	case '[':
		return TokenLeftBracket
	case ']':
		return TokenRightBracket
	case '{':
		return TokenLeftBrace
	case '}':
		return TokenRightBrace
	case ':':
		return TokenColon
	case ';':
		return TokenSemicolon
	case ',':
		return TokenComma
	case '+':
		return TokenPlusSign
	case '*':
		return TokenMultiplicationSign
	case '/':
		return TokenDivisionSign
	case '=':
		return TokenEqualsSign
	case '^':
		return TokenCaret
	case '|':
		return TokenBar
	case '<':
		switch text {
		case "<":
			return TokenLessThanSign
		case "<=":
			return TokenLessThanEqualsSign
		case "<>":
			return TokenNotEqualsSign
		}
		return TokenError
	case '>':
		switch text {
		case ">":
			return TokenGreaterThanSign
		case ">=":
			return TokenGreaterThanEqualsSign
		}
		return TokenError
	case '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		switch {
		case text == "-":
			return TokenMinusSign
		case text == ".":
			return TokenDot
		case numberRegex.MatchString(text):
			return TokenNumberLiteral
		}
		return TokenError
	}

	if identifierRegex.MatchString(text) {
		if kind, ok := keywords[strings.ToLower(text)]; ok {
			return kind
		}
		return TokenIdentifier
	}
	return TokenError
}

func removeComments(tokens []Token) []Token {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t.Kind != TokenComment {
			out = append(out, t)
		}
	}
	return out
}

// removeBlankLines collapses runs of end-of-line tokens and drops a
// leading one.
func removeBlankLines(tokens []Token) []Token {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t.Kind == TokenEndOfLine {
			if len(out) == 0 || out[len(out)-1].Kind == TokenEndOfLine {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
