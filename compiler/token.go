package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token kinds for the TMBASIC lexer
// ---------------------------------------------------------------------------

// TokenKind represents the kind of a token.
type TokenKind int

const (
	// Special tokens
	TokenError TokenKind = iota
	TokenEndOfLine
	TokenEndOfFile
	TokenIdentifier
	TokenComment

	// Literals
	TokenNumberLiteral // 42, -1.5
	TokenStringLiteral // "hello ""world"""

	// Punctuation
	TokenLeftParenthesis
	TokenRightParenthesis
	TokenLeftBracket
	TokenRightBracket
	TokenLeftBrace
	TokenRightBrace
	TokenColon
	TokenSemicolon
	TokenComma
	TokenDot
	TokenPlusSign
	TokenMinusSign
	TokenMultiplicationSign
	TokenDivisionSign
	TokenEqualsSign
	TokenNotEqualsSign
	TokenLessThanSign
	TokenLessThanEqualsSign
	TokenGreaterThanSign
	TokenGreaterThanEqualsSign
	TokenCaret
	TokenBar

	// Keywords
	TokenAnd
	TokenAs
	TokenBoolean
	TokenBy
	TokenCall
	TokenCase
	TokenCatch
	TokenConst
	TokenContinue
	TokenControl
	TokenDate
	TokenDateTime
	TokenDateTimeOffset
	TokenDim
	TokenDo
	TokenEach
	TokenElse
	TokenEnd
	TokenExit
	TokenFalse
	TokenFinally
	TokenFor
	TokenForm
	TokenFrom
	TokenFunction
	TokenGroup
	TokenIf
	TokenIn
	TokenInput
	TokenInto
	TokenJoin
	TokenKey
	TokenList
	TokenLoop
	TokenMap
	TokenMod
	TokenNext
	TokenNo
	TokenNot
	TokenNumber
	TokenOf
	TokenOn
	TokenOptional
	TokenOr
	TokenPrint
	TokenRecord
	TokenRethrow
	TokenReturn
	TokenSelect
	TokenSet
	TokenShared
	TokenStep
	TokenString
	TokenSub
	TokenThen
	TokenThrow
	TokenTimeSpan
	TokenTimeZone
	TokenTo
	TokenTrue
	TokenTry
	TokenType
	TokenWend
	TokenWhere
	TokenWhile
	TokenWith
	TokenYield
)

var tokenNames = map[TokenKind]string{
	TokenError:                 "ERROR",
	TokenEndOfLine:             "EOL",
	TokenEndOfFile:             "EOF",
	TokenIdentifier:            "IDENTIFIER",
	TokenComment:               "COMMENT",
	TokenNumberLiteral:         "NUMBER",
	TokenStringLiteral:         "STRING",
	TokenLeftParenthesis:       "(",
	TokenRightParenthesis:      ")",
	TokenLeftBracket:           "[",
	TokenRightBracket:          "]",
	TokenLeftBrace:             "{",
	TokenRightBrace:            "}",
	TokenColon:                 ":",
	TokenSemicolon:             ";",
	TokenComma:                 ",",
	TokenDot:                   ".",
	TokenPlusSign:              "+",
	TokenMinusSign:             "-",
	TokenMultiplicationSign:    "*",
	TokenDivisionSign:          "/",
	TokenEqualsSign:            "=",
	TokenNotEqualsSign:         "<>",
	TokenLessThanSign:          "<",
	TokenLessThanEqualsSign:    "<=",
	TokenGreaterThanSign:       ">",
	TokenGreaterThanEqualsSign: ">=",
	TokenCaret:                 "^",
	TokenBar:                   "|",
}

// keywords maps lowercase keyword text to its kind.
var keywords = map[string]TokenKind{
	"and":            TokenAnd,
	"as":             TokenAs,
	"boolean":        TokenBoolean,
	"by":             TokenBy,
	"call":           TokenCall,
	"case":           TokenCase,
	"catch":          TokenCatch,
	"const":          TokenConst,
	"continue":       TokenContinue,
	"control":        TokenControl,
	"date":           TokenDate,
	"datetime":       TokenDateTime,
	"datetimeoffset": TokenDateTimeOffset,
	"dim":            TokenDim,
	"do":             TokenDo,
	"each":           TokenEach,
	"else":           TokenElse,
	"end":            TokenEnd,
	"exit":           TokenExit,
	"false":          TokenFalse,
	"finally":        TokenFinally,
	"for":            TokenFor,
	"form":           TokenForm,
	"from":           TokenFrom,
	"function":       TokenFunction,
	"group":          TokenGroup,
	"if":             TokenIf,
	"in":             TokenIn,
	"input":          TokenInput,
	"into":           TokenInto,
	"join":           TokenJoin,
	"key":            TokenKey,
	"list":           TokenList,
	"loop":           TokenLoop,
	"map":            TokenMap,
	"mod":            TokenMod,
	"next":           TokenNext,
	"no":             TokenNo,
	"not":            TokenNot,
	"number":         TokenNumber,
	"of":             TokenOf,
	"on":             TokenOn,
	"optional":       TokenOptional,
	"or":             TokenOr,
	"print":          TokenPrint,
	"record":         TokenRecord,
	"rethrow":        TokenRethrow,
	"return":         TokenReturn,
	"select":         TokenSelect,
	"set":            TokenSet,
	"shared":         TokenShared,
	"step":           TokenStep,
	"string":         TokenString,
	"sub":            TokenSub,
	"then":           TokenThen,
	"throw":          TokenThrow,
	"timespan":       TokenTimeSpan,
	"timezone":       TokenTimeZone,
	"to":             TokenTo,
	"true":           TokenTrue,
	"try":            TokenTry,
	"type":           TokenType,
	"wend":           TokenWend,
	"where":          TokenWhere,
	"while":          TokenWhile,
	"with":           TokenWith,
	"yield":          TokenYield,
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	for text, kind := range keywords {
		if kind == k {
			return text
		}
	}
	return fmt.Sprintf("Token(%d)", k)
}

// IsKeyword reports whether k is a reserved word.
func (k TokenKind) IsKeyword() bool {
	return k >= TokenAnd && k <= TokenYield
}

// Token represents a lexical token. Line and column are zero-based.
type Token struct {
	LineIndex   int
	ColumnIndex int
	Kind        TokenKind
	Text        string
	Member      *SourceMember // nil when tokenizing loose text
}

func (t Token) String() string {
	switch t.Kind {
	case TokenEndOfFile:
		return "EOF"
	case TokenEndOfLine:
		return "EOL"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Text)
	}
	if len(t.Text) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Kind, t.Text[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
}

// Position returns the 1-based "line:column" form used in diagnostics.
func (t Token) Position() string {
	return fmt.Sprintf("%d:%d", t.LineIndex+1, t.ColumnIndex+1)
}

// DocumentLine returns the zero-based line of t within the text its
// member was loaded from.
func (t Token) DocumentLine() int {
	if t.Member == nil {
		return t.LineIndex
	}
	return t.Member.StartLine + t.LineIndex
}

// Keywords returns the reserved words in lowercase, sorted.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for text := range keywords {
		out = append(out, text)
	}
	sort.Strings(out)
	return out
}
