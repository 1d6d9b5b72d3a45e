package compiler

import (
	"strings"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// ---------------------------------------------------------------------------
// Productions: the TMBASIC grammar
// ---------------------------------------------------------------------------

// Grammar is the set of productions used by the parser. Build one with
// NewGrammar and pass it to every Parse call.
type Grammar struct {
	Program    *Production
	Member     *Production
	Statement  *Production
	Expression *Production
	Type       *Production
}

// nodeList carries an intermediate list of nodes between productions.
type nodeList struct {
	nodeBase
	nodes []Node
}

func newProduction(name string, reduce func(c *Captures, first Token) Node, terms ...*Term) *Production {
	return &Production{Name: name, Terms: terms, Reduce: reduce}
}

func reduceFirst(c *Captures, _ Token) Node { return c.Node(0) }

func reduceList(c *Captures, first Token) Node {
	return &nodeList{nodeBase: nodeBase{Tok: first}, nodes: c.Nodes(0)}
}

func exprs(n Node) []Expr {
	if n == nil {
		return nil
	}
	nodes := n.(*nodeList).nodes
	out := make([]Expr, len(nodes))
	for i, x := range nodes {
		out[i] = x.(Expr)
	}
	return out
}

func params(n Node) []*Parameter {
	if n == nil {
		return nil
	}
	nodes := n.(*nodeList).nodes
	out := make([]*Parameter, len(nodes))
	for i, x := range nodes {
		out[i] = x.(*Parameter)
	}
	return out
}

func optExpr(n Node) Expr {
	if n == nil {
		return nil
	}
	return n.(Expr)
}

func optType(n Node) *TypeNode {
	if n == nil {
		return nil
	}
	return n.(*TypeNode)
}

func optBody(n Node) *Body {
	if n == nil {
		return nil
	}
	return n.(*Body)
}

func tokenText(c *Captures, slot int) (string, Token) {
	tok, _ := c.Token(slot)
	return tok.Text, tok
}

var binaryOperators = map[TokenKind]BinaryOperator{
	TokenOr:                    OpOr,
	TokenAnd:                   OpAnd,
	TokenEqualsSign:            OpEquals,
	TokenNotEqualsSign:         OpNotEquals,
	TokenLessThanSign:          OpLessThan,
	TokenLessThanEqualsSign:    OpLessThanEquals,
	TokenGreaterThanSign:       OpGreaterThan,
	TokenGreaterThanEqualsSign: OpGreaterThanEquals,
	TokenPlusSign:              OpAdd,
	TokenMinusSign:             OpSubtract,
	TokenMultiplicationSign:    OpMultiply,
	TokenDivisionSign:          OpDivide,
	TokenMod:                   OpModulus,
	TokenCaret:                 OpPower,
}

var primitiveTypeKinds = map[TokenKind]TypeKind{
	TokenBoolean:        KindBoolean,
	TokenNumber:         KindNumber,
	TokenString:         KindString,
	TokenDate:           KindDate,
	TokenDateTime:       KindDateTime,
	TokenDateTimeOffset: KindDateTimeOffset,
	TokenTimeSpan:       KindTimeSpan,
	TokenTimeZone:       KindTimeZone,
}

var loopKinds = map[TokenKind]LoopKind{
	TokenDo:    LoopDo,
	TokenFor:   LoopFor,
	TokenWhile: LoopWhile,
}

// unescapeString strips the quotes from a string literal and collapses
// doubled quotes.
func unescapeString(text string) string {
	inner := text[1 : len(text)-1]
	return strings.ReplaceAll(inner, `""`, `"`)
}

// binaryLevel builds "lower (op lower)*" for one precedence level.
func binaryLevel(name string, lower *Production, ops ...TokenKind) *Production {
	opTerms := make([]*Term, len(ops))
	for i, op := range ops {
		opTerms[i] = term(op)
	}
	suffix := newProduction(name+"Suffix", func(c *Captures, first Token) Node {
		opTok, _ := c.Token(0)
		return &BinarySuffix{nodeBase: nodeBase{Tok: opTok}, Op: binaryOperators[opTok.Kind], Right: c.Node(1).(Expr)}
	}, capture(0, oneOf(opTerms...)), capture(1, prod(lower)))

	return newProduction(name, func(c *Captures, first Token) Node {
		left := c.Node(0).(Expr)
		nodes := c.Nodes(1)
		if len(nodes) == 0 {
			return left
		}
		suffixes := make([]*BinarySuffix, len(nodes))
		for i, n := range nodes {
			suffixes[i] = n.(*BinarySuffix)
		}
		e := &BinaryExpr{Left: left, Suffixes: suffixes}
		e.Tok = suffixes[0].Tok
		return e
	}, capture(0, prod(lower)), zeroOrMore(capture(1, prod(suffix))))
}

// NewGrammar constructs the TMBASIC grammar.
func NewGrammar() *Grammar {
	g := &Grammar{}

	// forward declarations for recursive rules
	typ := &Production{Name: "Type", Reduce: reduceFirst}
	expression := &Production{Name: "Expression", Reduce: reduceFirst}
	statement := &Production{Name: "Statement", Reduce: reduceFirst}

	// ---- types

	parameter := newProduction("Parameter", func(c *Captures, first Token) Node {
		name, tok := tokenText(c, 0)
		return &Parameter{nodeBase: nodeBase{Tok: tok}, Name: name, Type: c.Node(1).(*TypeNode)}
	}, capture(0, term(TokenIdentifier)), cut(), term(TokenAs), capture(1, prod(typ)))

	parameterList := newProduction("ParameterList", reduceList,
		optional(capture(0, prod(parameter)), cut(), zeroOrMore(term(TokenComma), capture(0, prod(parameter)))))

	namedType := newProduction("NamedType", func(c *Captures, first Token) Node {
		name, tok := tokenText(c, 0)
		return &TypeNode{nodeBase: nodeBase{Tok: tok}, Kind: KindRecord, RecordName: name}
	}, capture(0, term(TokenIdentifier)))

	typeWithParens := newProduction("TypeWithParentheses", reduceFirst,
		oneOf(
			list(term(TokenLeftParenthesis), cut(), capture(0, prod(typ)), term(TokenRightParenthesis)),
			capture(0, prod(typ)),
		))

	optionalType := newProduction("OptionalType", func(c *Captures, first Token) Node {
		t := OptionalOf(c.Node(0).(*TypeNode))
		t.Tok = first
		return t
	}, term(TokenOptional), cut(), capture(0, prod(typeWithParens)))

	mapType := newProduction("MapType", func(c *Captures, first Token) Node {
		nodes := c.Nodes(0)
		t := MapOf(nodes[0].(*TypeNode), nodes[1].(*TypeNode))
		t.Tok = first
		return t
	}, term(TokenMap), cut(), term(TokenFrom), capture(0, prod(typeWithParens)),
		term(TokenTo), capture(0, prod(typeWithParens)))

	setType := newProduction("SetType", func(c *Captures, first Token) Node {
		t := SetOf(c.Node(0).(*TypeNode))
		t.Tok = first
		return t
	}, term(TokenSet), cut(), term(TokenOf), capture(0, prod(typeWithParens)))

	listType := newProduction("ListType", func(c *Captures, first Token) Node {
		t := ListOf(c.Node(0).(*TypeNode))
		t.Tok = first
		return t
	}, term(TokenList), cut(), term(TokenOf), capture(0, prod(typeWithParens)))

	recordType := newProduction("RecordType", func(c *Captures, first Token) Node {
		t := RecordOf(params(c.Node(0))...)
		t.Tok = first
		return t
	}, term(TokenRecord), cut(), term(TokenLeftParenthesis), capture(0, prod(parameterList)), term(TokenRightParenthesis))

	primitiveKinds := []*Term{
		term(TokenBoolean), term(TokenNumber), term(TokenString), term(TokenDate),
		term(TokenDateTime), term(TokenDateTimeOffset), term(TokenTimeSpan), term(TokenTimeZone),
	}
	primitiveType := newProduction("PrimitiveType", func(c *Captures, first Token) Node {
		tok, _ := c.Token(0)
		t := NewType(primitiveTypeKinds[tok.Kind])
		t.Tok = tok
		return t
	}, capture(0, oneOf(primitiveKinds...)))

	typ.Terms = []*Term{capture(0, oneOf(
		prod(primitiveType), prod(recordType), prod(listType), prod(mapType),
		prod(setType), prod(optionalType), prod(namedType),
	))}

	// ---- expression terms

	literalValue := newProduction("LiteralValue", func(c *Captures, first Token) Node {
		tok, _ := c.Token(0)
		switch tok.Kind {
		case TokenTrue, TokenFalse:
			return &BooleanLiteral{exprBase: exprBase{nodeBase: nodeBase{Tok: tok}}, Value: tok.Kind == TokenTrue}
		case TokenNumberLiteral:
			return &NumberLiteral{exprBase: exprBase{nodeBase: nodeBase{Tok: tok}}, Value: decimal.MustParse(tok.Text)}
		}
		return &StringLiteral{exprBase: exprBase{nodeBase: nodeBase{Tok: tok}}, Value: unescapeString(tok.Text)}
	}, capture(0, oneOf(term(TokenTrue), term(TokenFalse), term(TokenNumberLiteral), term(TokenStringLiteral))))

	argumentList := newProduction("ArgumentList", reduceList,
		optional(capture(0, prod(expression)), zeroOrMore(term(TokenComma), capture(0, prod(expression)))))

	recordField := newProduction("LiteralRecordField", func(c *Captures, first Token) Node {
		name, tok := tokenText(c, 0)
		return &RecordField{nodeBase: nodeBase{Tok: tok}, Name: name, Value: c.Node(1).(Expr)}
	}, capture(0, term(TokenIdentifier)), cut(), term(TokenColon), capture(1, prod(expression)))

	recordFieldList := newProduction("LiteralRecordFieldList", reduceList,
		optional(capture(0, prod(recordField)), cut(), zeroOrMore(term(TokenComma), capture(0, prod(recordField)))))

	recordTerm := newProduction("LiteralRecordTerm", func(c *Captures, first Token) Node {
		r := &RecordLiteral{}
		r.Tok = first
		for _, n := range c.Node(0).(*nodeList).nodes {
			r.Fields = append(r.Fields, n.(*RecordField))
		}
		return r
	}, term(TokenLeftBrace), cut(), capture(0, prod(recordFieldList)), term(TokenRightBrace))

	noTerm := newProduction("LiteralNoTerm", func(c *Captures, first Token) Node {
		n := &NoExpr{Target: c.Node(0).(*TypeNode)}
		n.Tok = first
		return n
	}, term(TokenNo), cut(), capture(0, prod(typ)))

	arrayTerm := newProduction("LiteralArrayTerm", func(c *Captures, first Token) Node {
		l := &ListLiteral{Elements: exprs(c.Node(0))}
		l.Tok = first
		return l
	}, term(TokenLeftBracket), cut(), capture(0, prod(argumentList)), term(TokenRightBracket))

	parensTerm := newProduction("ParenthesesTerm", reduceFirst,
		term(TokenLeftParenthesis), cut(), capture(0, prod(expression)), term(TokenRightParenthesis))

	expressionTerm := newProduction("ExpressionTerm", func(c *Captures, first Token) Node {
		if n := c.Node(0); n != nil {
			return n
		}
		name, tok := tokenText(c, 1)
		s := &SymbolReference{Name: name}
		s.Tok = tok
		return s
	}, oneOf(
		capture(0, prod(literalValue)),
		capture(0, prod(parensTerm)),
		capture(0, prod(arrayTerm)),
		capture(0, prod(recordTerm)),
		capture(0, prod(noTerm)),
		capture(1, term(TokenIdentifier)),
	))

	dottedSuffix := newProduction("DottedExpressionSuffix", func(c *Captures, first Token) Node {
		if tok, ok := c.Token(0); ok {
			return &DottedSuffix{nodeBase: nodeBase{Tok: tok}, Kind: SuffixMember, Name: tok.Text}
		}
		var args []Expr
		for _, n := range c.Nodes(1) {
			args = append(args, n.(Expr))
		}
		return &DottedSuffix{nodeBase: nodeBase{Tok: first}, Kind: SuffixIndex, Args: args}
	}, oneOf(
		list(term(TokenDot), cut(), capture(0, term(TokenIdentifier))),
		list(term(TokenLeftParenthesis), cut(),
			optional(capture(1, prod(expression)), zeroOrMore(term(TokenComma), capture(1, prod(expression)))),
			term(TokenRightParenthesis)),
	))

	dotted := newProduction("DottedExpression", func(c *Captures, first Token) Node {
		base := c.Node(0).(Expr)
		nodes := c.Nodes(1)
		if len(nodes) == 0 {
			return base
		}
		d := &DottedExpr{Base: base}
		d.Tok = base.Token()
		for _, n := range nodes {
			d.Suffixes = append(d.Suffixes, n.(*DottedSuffix))
		}
		return d
	}, capture(0, prod(expressionTerm)), zeroOrMore(capture(1, prod(dottedSuffix))))

	convert := newProduction("ConvertExpression", func(c *Captures, first Token) Node {
		value := c.Node(0).(Expr)
		if !c.Has(1) {
			return value
		}
		e := &ConvertExpr{Value: value, Target: c.Node(1).(*TypeNode)}
		e.Tok = first
		return e
	}, capture(0, prod(dotted)), optional(term(TokenAs), capture(1, prod(typ))))

	unary := newProduction("UnaryExpression", func(c *Captures, first Token) Node {
		value := c.Node(1).(Expr)
		if tok, ok := c.Token(0); ok {
			n := &NotExpr{Value: value}
			n.Tok = tok
			return n
		}
		return value
	}, optional(capture(0, term(TokenNot))), capture(1, prod(convert)))

	exponent := binaryLevel("ExponentExpression", unary, TokenCaret)
	multiply := binaryLevel("MultiplyExpression", exponent, TokenMultiplicationSign, TokenDivisionSign, TokenMod)
	add := binaryLevel("AddExpression", multiply, TokenPlusSign, TokenMinusSign)
	inequality := binaryLevel("InequalityExpression", add,
		TokenLessThanSign, TokenLessThanEqualsSign, TokenGreaterThanSign, TokenGreaterThanEqualsSign)
	equality := binaryLevel("EqualityExpression", inequality, TokenEqualsSign, TokenNotEqualsSign)
	and := binaryLevel("AndExpression", equality, TokenAnd)
	or := binaryLevel("OrExpression", and, TokenOr)

	expression.Terms = []*Term{capture(0, prod(or))}

	// ---- statements

	body := newProduction("Body", func(c *Captures, first Token) Node {
		b := &Body{}
		b.Tok = first
		for _, n := range c.Nodes(0) {
			b.Statements = append(b.Statements, n.(Stmt))
		}
		return b
	}, zeroOrMore(capture(0, prod(statement))))

	catchBlock := newProduction("CatchBlock", reduceFirst,
		term(TokenCatch), cut(), term(TokenEndOfLine), capture(0, prod(body)))

	tryStmt := newProduction("TryStatement", func(c *Captures, first Token) Node {
		s := &TryStmt{Body: optBody(c.Node(0)), Catch: optBody(c.Node(1))}
		s.Tok = first
		return s
	}, term(TokenTry), cut(), term(TokenEndOfLine), capture(0, prod(body)), capture(1, prod(catchBlock)),
		term(TokenEnd), term(TokenTry), term(TokenEndOfLine))

	rethrowStmt := newProduction("RethrowStatement", func(c *Captures, first Token) Node {
		s := &RethrowStmt{}
		s.Tok = first
		return s
	}, term(TokenRethrow), cut(), term(TokenEndOfLine))

	throwStmt := newProduction("ThrowStatement", func(c *Captures, first Token) Node {
		s := &ThrowStmt{}
		s.Tok = first
		if c.Has(1) {
			s.Code = c.Node(0).(Expr)
			s.Message = c.Node(1).(Expr)
		} else {
			s.Message = c.Node(0).(Expr)
		}
		return s
	}, term(TokenThrow), cut(), capture(0, prod(expression)),
		optional(term(TokenComma), capture(1, prod(expression))), term(TokenEndOfLine))

	loopScope := oneOf(term(TokenDo), term(TokenFor), term(TokenWhile))

	exitStmt := newProduction("ExitStatement", func(c *Captures, first Token) Node {
		tok, _ := c.Token(0)
		s := &ExitStmt{Scope: loopKinds[tok.Kind]}
		s.Tok = first
		return s
	}, term(TokenExit), capture(0, loopScope), term(TokenEndOfLine))

	continueStmt := newProduction("ContinueStatement", func(c *Captures, first Token) Node {
		tok, _ := c.Token(0)
		s := &ContinueStmt{Scope: loopKinds[tok.Kind]}
		s.Tok = first
		return s
	}, term(TokenContinue), capture(0, oneOf(term(TokenDo), term(TokenFor), term(TokenWhile))), term(TokenEndOfLine))

	callStmt := newProduction("CallStatement", func(c *Captures, first Token) Node {
		name, tok := tokenText(c, 0)
		s := &CallStmt{Name: name, Args: exprs(c.Node(1))}
		s.Tok = tok
		return s
	}, capture(0, term(TokenIdentifier)), cut(),
		oneOf(
			list(term(TokenLeftParenthesis), capture(1, prod(argumentList)), term(TokenRightParenthesis), term(TokenEndOfLine)),
			list(capture(1, prod(argumentList)), term(TokenEndOfLine)),
		))

	returnStmt := newProduction("ReturnStatement", func(c *Captures, first Token) Node {
		s := &ReturnStmt{Value: optExpr(c.Node(0))}
		s.Tok = first
		return s
	}, term(TokenReturn), cut(), optional(capture(0, prod(expression))), term(TokenEndOfLine))

	yieldStmt := newProduction("YieldStatement", func(c *Captures, first Token) Node {
		s := &YieldStmt{Value: c.Node(0).(Expr), To: optExpr(c.Node(1))}
		s.Tok = first
		return s
	}, term(TokenYield), cut(), capture(0, prod(expression)),
		optional(term(TokenTo), capture(1, prod(expression))), term(TokenEndOfLine))

	constStmt := newProduction("ConstStatement", func(c *Captures, first Token) Node {
		name, _ := tokenText(c, 0)
		s := &ConstStmt{Name: name, Value: c.Node(1).(Expr)}
		s.Tok = first
		return s
	}, term(TokenConst), cut(), capture(0, term(TokenIdentifier)), term(TokenEqualsSign),
		capture(1, prod(literalValue)), term(TokenEndOfLine))

	assignStmt := newProduction("AssignStatement", func(c *Captures, first Token) Node {
		s := &AssignStmt{Target: c.Node(0).(Expr), Value: c.Node(1).(Expr)}
		s.Tok = first
		return s
	}, capture(0, prod(dotted)), term(TokenEqualsSign), capture(1, prod(expression)), term(TokenEndOfLine))

	dimStmt := newProduction("DimStatement", func(c *Captures, first Token) Node {
		name, _ := tokenText(c, 0)
		s := &DimStmt{Name: name, Shared: c.Has(3), Type: optType(c.Node(1)), Value: optExpr(c.Node(2))}
		s.Tok = first
		return s
	}, term(TokenDim),
		// "dim list" must fall through to the collection form, so the cut
		// comes after the name
		optional(capture(3, term(TokenShared))),
		capture(0, term(TokenIdentifier)), cut(),
		oneOf(
			list(term(TokenAs), capture(1, prod(typ))),
			list(term(TokenEqualsSign), capture(2, prod(expression))),
		),
		term(TokenEndOfLine))

	dimCollectionStmt := newProduction("DimCollectionStatement", func(c *Captures, first Token) Node {
		kindTok, _ := c.Token(0)
		name, _ := tokenText(c, 1)
		s := &DimCollectionStmt{Name: name, Body: c.Node(2).(*Body)}
		switch kindTok.Kind {
		case TokenMap:
			s.Kind = CollectionMap
		case TokenSet:
			s.Kind = CollectionSet
		}
		s.Tok = first
		return s
	}, term(TokenDim), capture(0, oneOf(term(TokenList), term(TokenMap), term(TokenSet))),
		capture(1, term(TokenIdentifier)), term(TokenEndOfLine), capture(2, prod(body)),
		term(TokenEnd), term(TokenDim), term(TokenEndOfLine))

	caseValue := newProduction("CaseValue", func(c *Captures, first Token) Node {
		v := &CaseValue{Value: c.Node(0).(Expr), To: optExpr(c.Node(1))}
		v.Tok = first
		return v
	}, capture(0, prod(expression)), optional(term(TokenTo), capture(1, prod(expression))))

	caseValueList := newProduction("CaseValueList", reduceList,
		capture(0, prod(caseValue)), zeroOrMore(term(TokenComma), capture(0, prod(caseValue))))

	caseBlock := newProduction("Case", func(c *Captures, first Token) Node {
		b := &CaseBlock{Body: c.Node(1).(*Body)}
		b.Tok = first
		if list := c.Node(0); list != nil {
			for _, n := range list.(*nodeList).nodes {
				b.Values = append(b.Values, n.(*CaseValue))
			}
		}
		return b
	}, term(TokenCase), cut(), oneOf(capture(0, prod(caseValueList)), term(TokenElse)),
		term(TokenEndOfLine), capture(1, prod(body)))

	selectCaseStmt := newProduction("SelectCaseStatement", func(c *Captures, first Token) Node {
		s := &SelectCaseStmt{Value: c.Node(0).(Expr)}
		s.Tok = first
		for _, n := range c.Nodes(1) {
			s.Cases = append(s.Cases, n.(*CaseBlock))
		}
		return s
	}, term(TokenSelect), term(TokenCase), cut(), capture(0, prod(expression)), term(TokenEndOfLine),
		zeroOrMore(capture(1, prod(caseBlock))),
		term(TokenEnd), term(TokenSelect), term(TokenEndOfLine))

	doStmt := newProduction("DoStatement", func(c *Captures, first Token) Node {
		s := &DoStmt{Body: c.Node(1).(*Body), Condition: c.Node(2).(Expr)}
		s.Tok = first
		return s
	}, term(TokenDo), cut(), term(TokenEndOfLine), capture(1, prod(body)),
		term(TokenLoop), term(TokenWhile), capture(2, prod(expression)), term(TokenEndOfLine))

	elseIf := newProduction("ElseIf", func(c *Captures, first Token) Node {
		e := &ElseIf{Condition: c.Node(0).(Expr), Body: c.Node(1).(*Body)}
		e.Tok = first
		return e
	}, term(TokenElse), term(TokenIf), capture(0, prod(expression)), term(TokenThen), term(TokenEndOfLine),
		capture(1, prod(body)))

	ifStmt := newProduction("IfStatement", func(c *Captures, first Token) Node {
		s := &IfStmt{Condition: c.Node(0).(Expr)}
		s.Tok = first
		if single := c.Node(4); single != nil {
			s.Body = &Body{nodeBase: nodeBase{Tok: single.Token()}, Statements: []Stmt{single.(Stmt)}}
			return s
		}
		s.Body = c.Node(1).(*Body)
		for _, n := range c.Nodes(2) {
			s.ElseIfs = append(s.ElseIfs, n.(*ElseIf))
		}
		s.Else = optBody(c.Node(3))
		return s
	}, term(TokenIf), cut(), capture(0, prod(expression)), term(TokenThen),
		oneOf(
			list(
				term(TokenEndOfLine),
				capture(1, prod(body)),
				zeroOrMore(capture(2, prod(elseIf))),
				optional(term(TokenElse), term(TokenEndOfLine), capture(3, prod(body))),
				term(TokenEnd), term(TokenIf), term(TokenEndOfLine),
			),
			list(capture(4, prod(statement))),
		))

	whileStmt := newProduction("WhileStatement", func(c *Captures, first Token) Node {
		s := &WhileStmt{Condition: c.Node(0).(Expr), Body: c.Node(1).(*Body)}
		s.Tok = first
		return s
	}, term(TokenWhile), cut(), capture(0, prod(expression)), term(TokenEndOfLine), capture(1, prod(body)),
		term(TokenWend), term(TokenEndOfLine))

	forEachStmt := newProduction("ForEachStatement", func(c *Captures, first Token) Node {
		name, tok := tokenText(c, 0)
		s := &ForEachStmt{VarName: name, VarTok: tok, Source: c.Node(1).(Expr), Body: c.Node(2).(*Body)}
		s.Tok = first
		return s
	}, term(TokenFor), term(TokenEach), cut(), capture(0, term(TokenIdentifier)), term(TokenIn),
		capture(1, prod(expression)), term(TokenEndOfLine), capture(2, prod(body)), term(TokenNext), term(TokenEndOfLine))

	forStep := newProduction("ForStep", reduceFirst, term(TokenStep), cut(), capture(0, prod(expression)))

	forStmt := newProduction("ForStatement", func(c *Captures, first Token) Node {
		name, tok := tokenText(c, 0)
		bounds := c.Nodes(1)
		s := &ForStmt{
			VarName: name, VarTok: tok,
			From: bounds[0].(Expr), To: bounds[1].(Expr),
			Step: optExpr(c.Node(3)), Body: c.Node(4).(*Body),
		}
		s.Tok = first
		return s
	}, term(TokenFor),
		// "for each" must fall through, so the cut comes after the name
		capture(0, term(TokenIdentifier)), cut(),
		term(TokenEqualsSign), capture(1, prod(expression)), term(TokenTo), capture(1, prod(expression)),
		optional(capture(3, prod(forStep))), term(TokenEndOfLine), capture(4, prod(body)),
		term(TokenNext), term(TokenEndOfLine))

	printStmt := newProduction("PrintStatement", func(c *Captures, first Token) Node {
		s := &PrintStmt{TrailingSemicolon: c.Has(2)}
		s.Tok = first
		for _, n := range c.Nodes(1) {
			s.Values = append(s.Values, n.(Expr))
		}
		return s
	}, term(TokenPrint), cut(), capture(1, prod(expression)),
		zeroOrMore(term(TokenSemicolon), capture(1, prod(expression))),
		optional(capture(2, term(TokenSemicolon))), term(TokenEndOfLine))

	inputStmt := newProduction("InputStatement", func(c *Captures, first Token) Node {
		s := &InputStmt{Target: c.Node(1).(Expr)}
		s.Tok = first
		return s
	}, term(TokenInput), cut(), capture(1, prod(expression)), term(TokenEndOfLine))

	command := newProduction("CommandStatement", reduceFirst, capture(0, oneOf(
		prod(assignStmt), prod(yieldStmt), prod(returnStmt), prod(callStmt), prod(continueStmt),
		prod(exitStmt), prod(throwStmt), prod(rethrowStmt), prod(printStmt), prod(inputStmt),
	)))

	statement.Terms = []*Term{capture(0, oneOf(
		prod(command), prod(forStmt), prod(forEachStmt), prod(whileStmt), prod(doStmt), prod(ifStmt),
		prod(selectCaseStmt), prod(tryStmt), prod(dimStmt), prod(dimCollectionStmt), prod(constStmt),
	))}

	// ---- members

	typeDecl := newProduction("TypeDeclaration", func(c *Captures, first Token) Node {
		name, _ := tokenText(c, 0)
		d := &TypeDeclaration{Name: name}
		d.Tok = first
		for _, n := range c.Nodes(1) {
			d.Fields = append(d.Fields, n.(*Parameter))
		}
		return d
	}, term(TokenType), cut(), capture(0, term(TokenIdentifier)), term(TokenEndOfLine),
		zeroOrMore(capture(1, prod(parameter)), term(TokenEndOfLine)),
		term(TokenEnd), term(TokenType), zeroOrMore(term(TokenEndOfLine)))

	function := newProduction("Function", func(c *Captures, first Token) Node {
		name, _ := tokenText(c, 0)
		p := &Procedure{Name: name, Parameters: params(c.Node(1)), Return: c.Node(2).(*TypeNode), Body: c.Node(3).(*Body)}
		p.Tok = first
		return p
	}, term(TokenFunction), cut(), capture(0, term(TokenIdentifier)), term(TokenLeftParenthesis),
		capture(1, prod(parameterList)), term(TokenRightParenthesis), term(TokenAs), capture(2, prod(typ)),
		term(TokenEndOfLine), capture(3, prod(body)), term(TokenEnd), term(TokenFunction),
		zeroOrMore(term(TokenEndOfLine)))

	sub := newProduction("Subroutine", func(c *Captures, first Token) Node {
		name, _ := tokenText(c, 0)
		p := &Procedure{Name: name, Parameters: params(c.Node(1)), Body: c.Node(2).(*Body)}
		p.Tok = first
		return p
	}, term(TokenSub), cut(), capture(0, term(TokenIdentifier)), term(TokenLeftParenthesis),
		capture(1, prod(parameterList)), term(TokenRightParenthesis), term(TokenEndOfLine),
		capture(2, prod(body)), term(TokenEnd), term(TokenSub), zeroOrMore(term(TokenEndOfLine)))

	member := newProduction("Member", func(c *Captures, first Token) Node {
		switch n := c.Node(0).(type) {
		case *DimStmt:
			g := &GlobalVariable{Name: n.Name, Type: n.Type, Value: n.Value}
			g.Tok = n.Tok
			return g
		case *ConstStmt:
			g := &GlobalVariable{Name: n.Name, Value: n.Value, IsConst: true}
			g.Tok = n.Tok
			return g
		default:
			return n
		}
	}, zeroOrMore(term(TokenEndOfLine)), capture(0, oneOf(
		prod(sub), prod(function), prod(dimStmt), prod(constStmt), prod(typeDecl),
	)))

	program := newProduction("Program", func(c *Captures, first Token) Node {
		p := &Program{Members: c.Nodes(0)}
		p.Tok = first
		return p
	}, zeroOrMore(capture(0, prod(member))))

	g.Program = program
	g.Member = member
	g.Statement = statement
	g.Expression = expression
	g.Type = typ
	return g
}
