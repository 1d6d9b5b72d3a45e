package compiler

// ---------------------------------------------------------------------------
// Parser: top-level entry into the grammar
// ---------------------------------------------------------------------------

// ParseRoot selects the production a parse starts from.
type ParseRoot int

const (
	RootProgram ParseRoot = iota
	RootMember
)

// Parse matches tokens against the root production. Every token must be
// consumed; failures carry the offending token and no partial tree.
func Parse(g *Grammar, root ParseRoot, tokens []Token) (Node, error) {
	p := g.Program
	if root == RootMember {
		p = g.Member
	}
	node, consumed, err := Match(p, tokens)
	if err != nil {
		return nil, err
	}
	if consumed < len(tokens) {
		return nil, &CompilerError{Code: ErrSyntax, Message: "This token was unexpected.", Token: tokens[consumed]}
	}
	return node, nil
}

// ParseProgram tokenizes and parses a whole program.
func ParseProgram(g *Grammar, text string) (*Program, error) {
	node, err := Parse(g, RootProgram, Tokenize(text, TokenizeCompile, nil))
	if err != nil {
		return nil, err
	}
	return node.(*Program), nil
}
