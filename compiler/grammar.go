package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Grammar engine: PEG terms with backtracking and cut, run on an explicit
// frame stack
// ---------------------------------------------------------------------------

// numCaptureSlots is the number of capture slots per production.
const numCaptureSlots = 5

type termKind int

const (
	termTerminal termKind = iota
	termProduction
	termSequence
	termChoice
	termOptional
	termZeroOrMore
	termCapture
	termCut
)

// Term is one element of a production body.
type Term struct {
	kind  termKind
	token TokenKind
	prod  *Production
	terms []*Term
	slot  int
}

func term(kind TokenKind) *Term           { return &Term{kind: termTerminal, token: kind} }
func prod(p *Production) *Term            { return &Term{kind: termProduction, prod: p} }
func list(terms ...*Term) *Term           { return &Term{kind: termSequence, terms: terms} }
func oneOf(terms ...*Term) *Term          { return &Term{kind: termChoice, terms: terms} }
func optional(terms ...*Term) *Term       { return &Term{kind: termOptional, terms: terms} }
func zeroOrMore(terms ...*Term) *Term     { return &Term{kind: termZeroOrMore, terms: terms} }
func capture(slot int, inner *Term) *Term { return &Term{kind: termCapture, slot: slot, terms: []*Term{inner}} }
func cut() *Term                          { return &Term{kind: termCut} }

func (t *Term) String() string {
	switch t.kind {
	case termTerminal:
		return t.token.String()
	case termProduction:
		return t.prod.Name
	case termCapture:
		return t.terms[0].String()
	case termChoice, termSequence, termOptional, termZeroOrMore:
		if len(t.terms) > 0 {
			return t.terms[0].String()
		}
	}
	return "?"
}

// Box is a captured item: a reduced node or a matched token.
type Box struct {
	Node  Node
	Token *Token
}

// Captures holds the boxes captured while matching one production.
type Captures struct {
	slots [numCaptureSlots][]Box
}

// Has reports whether anything was captured in slot.
func (c *Captures) Has(slot int) bool { return len(c.slots[slot]) > 0 }

// Node returns the first node captured in slot, or nil.
func (c *Captures) Node(slot int) Node {
	for _, b := range c.slots[slot] {
		if b.Node != nil {
			return b.Node
		}
	}
	return nil
}

// Nodes returns every node captured in slot, in match order.
func (c *Captures) Nodes(slot int) []Node {
	var nodes []Node
	for _, b := range c.slots[slot] {
		if b.Node != nil {
			nodes = append(nodes, b.Node)
		}
	}
	return nodes
}

// Token returns the first token captured in slot.
func (c *Captures) Token(slot int) (Token, bool) {
	for _, b := range c.slots[slot] {
		if b.Token != nil {
			return *b.Token, true
		}
	}
	return Token{}, false
}

// Production is a named rule whose captures are reduced to a node.
type Production struct {
	Name   string
	Terms  []*Term
	Reduce func(c *Captures, first Token) Node
}

type checkpoint struct {
	pos    int
	counts [numCaptureSlots]int
}

type frame struct {
	term   *Term       // nil for production frames
	prod   *Production // set for production frames
	terms  []*Term     // sequence being matched
	step   int
	start  checkpoint
	elem   checkpoint // zeroOrMore: start of the current iteration
	caps   *Captures
	cutHit bool
}

type frameResult struct {
	match  bool
	err    bool
	errPos int
	errMsg string
	box    Box
}

// engine matches one production against a token slice.
type engine struct {
	tokens   []Token
	pos      int
	stack    []*frame
	furthest int
}

func (e *engine) token(pos int) Token {
	if pos < len(e.tokens) {
		return e.tokens[pos]
	}
	t := Token{Kind: TokenEndOfFile}
	if n := len(e.tokens); n > 0 {
		last := e.tokens[n-1]
		t.LineIndex, t.ColumnIndex, t.Member = last.LineIndex, last.ColumnIndex+len(last.Text), last.Member
	}
	return t
}

func (e *engine) checkpoint(caps *Captures) checkpoint {
	cp := checkpoint{pos: e.pos}
	for i := range caps.slots {
		cp.counts[i] = len(caps.slots[i])
	}
	return cp
}

func (e *engine) revert(cp checkpoint, caps *Captures) {
	e.pos = cp.pos
	for i := range caps.slots {
		caps.slots[i] = caps.slots[i][:cp.counts[i]]
	}
}

func (e *engine) push(t *Term, caps *Captures) {
	f := &frame{term: t, caps: caps}
	switch t.kind {
	case termProduction:
		f.prod = t.prod
		f.terms = t.prod.Terms
		f.caps = &Captures{}
	case termSequence, termOptional, termZeroOrMore:
		f.terms = t.terms
	}
	f.start = e.checkpoint(f.caps)
	f.elem = f.start
	e.stack = append(e.stack, f)
}

// mismatch records the furthest failure position for error reporting.
func (e *engine) mismatch(pos int) *frameResult {
	if pos > e.furthest {
		e.furthest = pos
	}
	return &frameResult{errPos: pos}
}

// run drives the frame stack until the root production resolves.
func (e *engine) run(root *Production) *frameResult {
	e.push(prod(root), nil)
	var child *frameResult
	for {
		f := e.stack[len(e.stack)-1]
		done := e.advance(f, child)
		child = nil
		if done == nil {
			continue // advance pushed a new frame
		}
		e.stack = e.stack[:len(e.stack)-1]
		if len(e.stack) == 0 {
			return done
		}
		child = done
	}
}

// advance makes one step of progress on f given the result of its last
// child. It returns nil after pushing a child frame, or f's own result.
func (e *engine) advance(f *frame, child *frameResult) *frameResult {
	t := f.term
	switch t.kind {
	case termTerminal:
		tok := e.token(e.pos)
		if tok.Kind == t.token {
			e.pos++
			return &frameResult{match: true, box: Box{Token: &tok}}
		}
		return e.mismatch(e.pos)

	case termCut:
		e.markCut()
		return &frameResult{match: true}

	case termCapture:
		if child == nil {
			e.push(t.terms[0], f.caps)
			return nil
		}
		if child.match && (child.box.Node != nil || child.box.Token != nil) {
			f.caps.slots[t.slot] = append(f.caps.slots[t.slot], child.box)
		}
		return child

	case termChoice:
		if child != nil {
			if child.match || child.err {
				return child
			}
			e.revert(f.start, f.caps)
			f.step++
		}
		if f.step >= len(t.terms) {
			return e.mismatch(f.start.pos)
		}
		e.push(t.terms[f.step], f.caps)
		return nil

	case termProduction, termSequence:
		return e.advanceSequence(f, child)

	case termOptional:
		return e.advanceOptional(f, child)

	case termZeroOrMore:
		return e.advanceZeroOrMore(f, child)
	}
	panic(fmt.Sprintf("unknown term kind %d", t.kind))
}

// markCut flags the nearest enclosing sequence-like frame. The cut frame
// itself is on top of the stack and is skipped.
func (e *engine) markCut() {
	for i := len(e.stack) - 2; i >= 0; i-- {
		switch e.stack[i].term.kind {
		case termProduction, termSequence, termOptional, termZeroOrMore:
			e.stack[i].cutHit = true
			return
		}
	}
}

// failAfterChild handles a failed child of a sequence-like frame: errors
// propagate, and a mismatch after a cut becomes an error.
func (e *engine) failAfterChild(f *frame, child *frameResult, cp checkpoint) *frameResult {
	e.revert(cp, f.caps)
	if child.err {
		return child
	}
	if f.cutHit {
		return &frameResult{err: true, errPos: child.errPos, errMsg: e.expectedMessage(f.terms[f.step], child.errPos)}
	}
	return child
}

func (e *engine) expectedMessage(t *Term, pos int) string {
	tok := e.token(pos)
	return fmt.Sprintf("Expected %s, but found %s.", describeTerm(t), describeToken(tok))
}

func (e *engine) advanceSequence(f *frame, child *frameResult) *frameResult {
	if child != nil {
		if !child.match {
			return e.failAfterChild(f, child, f.start)
		}
		f.step++
	}
	if f.step >= len(f.terms) {
		if f.prod != nil {
			return &frameResult{match: true, box: Box{Node: f.prod.Reduce(f.caps, e.token(f.start.pos))}}
		}
		return &frameResult{match: true}
	}
	e.push(f.terms[f.step], f.caps)
	return nil
}

func (e *engine) advanceOptional(f *frame, child *frameResult) *frameResult {
	if child != nil {
		if !child.match {
			res := e.failAfterChild(f, child, f.start)
			if res.err {
				return res
			}
			return &frameResult{match: true}
		}
		f.step++
	}
	if f.step >= len(f.terms) {
		return &frameResult{match: true}
	}
	e.push(f.terms[f.step], f.caps)
	return nil
}

func (e *engine) advanceZeroOrMore(f *frame, child *frameResult) *frameResult {
	if child != nil {
		if !child.match {
			res := e.failAfterChild(f, child, f.elem)
			if res.err {
				return res
			}
			return &frameResult{match: true}
		}
		f.step++
	}
	if f.step >= len(f.terms) {
		if e.pos == f.elem.pos {
			// an iteration that consumed nothing would repeat forever
			return &frameResult{match: true}
		}
		f.step = 0
		f.cutHit = false
		f.elem = e.checkpoint(f.caps)
	}
	e.push(f.terms[f.step], f.caps)
	return nil
}

func describeTerm(t *Term) string {
	for t.kind != termTerminal && t.kind != termProduction {
		if len(t.terms) == 0 {
			return "more input"
		}
		t = t.terms[0]
	}
	if t.kind == termProduction {
		return describeProduction(t.prod.Name)
	}
	return describeTokenKind(t.token)
}

func describeProduction(name string) string {
	switch name {
	case "Expression", "OrExpression":
		return "an expression"
	case "Type":
		return "a type"
	case "Body":
		return "a statement"
	case "Statement":
		return "a statement"
	case "LiteralValue":
		return "a literal value"
	case "ParameterList", "Parameter":
		return "a parameter"
	}
	return name
}

func describeTokenKind(k TokenKind) string {
	switch k {
	case TokenEndOfLine:
		return "end of line"
	case TokenEndOfFile:
		return "end of file"
	case TokenIdentifier:
		return "a name"
	case TokenNumberLiteral:
		return "a number"
	case TokenStringLiteral:
		return "a string"
	}
	return fmt.Sprintf("\"%s\"", k)
}

func describeToken(t Token) string {
	switch t.Kind {
	case TokenEndOfLine, TokenEndOfFile:
		return describeTokenKind(t.Kind)
	}
	return fmt.Sprintf("\"%s\"", t.Text)
}

// Match runs production p against tokens. On success it returns the
// reduced node and the number of tokens consumed.
func Match(p *Production, tokens []Token) (Node, int, error) {
	e := &engine{tokens: tokens}
	res := e.run(p)
	if res.err {
		return nil, 0, &CompilerError{Code: ErrSyntax, Message: res.errMsg, Token: e.token(res.errPos)}
	}
	if !res.match {
		tok := e.token(e.furthest)
		return nil, 0, &CompilerError{Code: ErrSyntax, Message: fmt.Sprintf("Unexpected %s.", describeToken(tok)), Token: tok}
	}
	return res.box.Node, e.pos, nil
}
