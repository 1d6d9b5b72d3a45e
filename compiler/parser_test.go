package compiler

import (
	"errors"
	"testing"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

func parseMain(t *testing.T, body string) *Procedure {
	t.Helper()
	prog, err := ParseProgram(NewGrammar(), "sub Main()\n"+body+"\nend sub\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(prog.Members) != 1 {
		t.Fatalf("got %d members, want 1", len(prog.Members))
	}
	return prog.Members[0].(*Procedure)
}

func TestParseOperatorPrecedence(t *testing.T) {
	proc := parseMain(t, "print 1 + 2 * 3")
	print := proc.Body.Statements[0].(*PrintStmt)
	bin := print.Values[0].(*BinaryExpr)
	if len(bin.Suffixes) != 1 || bin.Suffixes[0].Op != OpAdd {
		t.Fatalf("top-level suffixes = %v, want a single +", bin.Suffixes)
	}
	left := bin.Left.(*NumberLiteral)
	if decimal.Format(left.Value) != "1" {
		t.Errorf("left = %s, want 1", decimal.Format(left.Value))
	}
	right := bin.Suffixes[0].Right.(*BinaryExpr)
	if right.Suffixes[0].Op != OpMultiply {
		t.Errorf("nested op = %s, want *", right.Suffixes[0].Op)
	}
}

func TestParseLeftAssociativeChain(t *testing.T) {
	proc := parseMain(t, "print 10 - 2 - 3")
	bin := proc.Body.Statements[0].(*PrintStmt).Values[0].(*BinaryExpr)
	if len(bin.Suffixes) != 2 {
		t.Fatalf("got %d suffixes, want 2", len(bin.Suffixes))
	}
	if bin.Token().Kind != TokenMinusSign {
		t.Errorf("binary token = %s, want the first operator", bin.Token())
	}
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want func(Stmt) bool
	}{
		{"dim as", "dim x as Number", func(s Stmt) bool { d, ok := s.(*DimStmt); return ok && d.Type.Kind == KindNumber }},
		{"dim value", "dim x = \"a\"\"b\"", func(s Stmt) bool {
			d, ok := s.(*DimStmt)
			return ok && d.Value.(*StringLiteral).Value == `a"b`
		}},
		{"dim shared", "dim shared x as String", func(s Stmt) bool { d, ok := s.(*DimStmt); return ok && d.Shared }},
		{"dim list", "dim list x\nyield 1\nend dim", func(s Stmt) bool {
			d, ok := s.(*DimCollectionStmt)
			return ok && d.Kind == CollectionList && len(d.Body.Statements) == 1
		}},
		{"dim map", "dim map m\nyield 1 to \"a\"\nend dim", func(s Stmt) bool {
			d, ok := s.(*DimCollectionStmt)
			return ok && d.Kind == CollectionMap && d.Body.Statements[0].(*YieldStmt).To != nil
		}},
		{"for", "for i = 1 to 10 step 2\nnext", func(s Stmt) bool { f, ok := s.(*ForStmt); return ok && f.Step != nil && f.VarName == "i" }},
		{"for each", "for each x in xs\nnext", func(s Stmt) bool { f, ok := s.(*ForEachStmt); return ok && f.VarName == "x" }},
		{"call bare", "Foo 1, 2", func(s Stmt) bool { c, ok := s.(*CallStmt); return ok && len(c.Args) == 2 }},
		{"call parens", "Foo(1, 2)", func(s Stmt) bool { c, ok := s.(*CallStmt); return ok && len(c.Args) == 2 }},
		{"call empty", "Foo", func(s Stmt) bool { c, ok := s.(*CallStmt); return ok && len(c.Args) == 0 }},
		{"assign dotted", "a.b(1).c = 5", func(s Stmt) bool {
			a, ok := s.(*AssignStmt)
			return ok && len(a.Target.(*DottedExpr).Suffixes) == 3
		}},
		{"single-line if", "if x then print 1", func(s Stmt) bool { i, ok := s.(*IfStmt); return ok && len(i.Body.Statements) == 1 }},
		{"if chain", "if a then\nprint 1\nelse if b then\nprint 2\nelse\nprint 3\nend if", func(s Stmt) bool {
			i, ok := s.(*IfStmt)
			return ok && len(i.ElseIfs) == 1 && i.Else != nil
		}},
		{"select case", "select case x\ncase 1, 2 to 3\nprint 1\ncase else\nprint 2\nend select", func(s Stmt) bool {
			sc, ok := s.(*SelectCaseStmt)
			return ok && len(sc.Cases) == 2 && len(sc.Cases[0].Values) == 2 && sc.Cases[0].Values[1].To != nil && sc.Cases[1].Values == nil
		}},
		{"try", "try\nthrow 1, \"x\"\ncatch\nrethrow\nend try", func(s Stmt) bool {
			tr, ok := s.(*TryStmt)
			return ok && tr.Body.Statements[0].(*ThrowStmt).Code != nil
		}},
		{"do", "do\nexit do\nloop while true", func(s Stmt) bool {
			d, ok := s.(*DoStmt)
			return ok && d.Body.Statements[0].(*ExitStmt).Scope == LoopDo
		}},
		{"while", "while x < 3\ncontinue while\nwend", func(s Stmt) bool {
			w, ok := s.(*WhileStmt)
			return ok && w.Body.Statements[0].(*ContinueStmt).Scope == LoopWhile
		}},
		{"print trailing", "print 1; 2;", func(s Stmt) bool { p, ok := s.(*PrintStmt); return ok && p.TrailingSemicolon && len(p.Values) == 2 }},
		{"input", "input x", func(s Stmt) bool { _, ok := s.(*InputStmt); return ok }},
		{"const", "const k = 5", func(s Stmt) bool { _, ok := s.(*ConstStmt); return ok }},
		{"return", "return", func(s Stmt) bool { r, ok := s.(*ReturnStmt); return ok && r.Value == nil }},
		{"convert", "print x as String", func(s Stmt) bool { _, ok := s.(*PrintStmt).Values[0].(*ConvertExpr); return ok }},
		{"no", "dim o = no Number", func(s Stmt) bool { _, ok := s.(*DimStmt).Value.(*NoExpr); return ok }},
		{"record literal", "dim r = { a: 1, b: \"x\" }", func(s Stmt) bool {
			r, ok := s.(*DimStmt).Value.(*RecordLiteral)
			return ok && len(r.Fields) == 2
		}},
		{"list literal", "dim l = [1, 2, 3]", func(s Stmt) bool {
			l, ok := s.(*DimStmt).Value.(*ListLiteral)
			return ok && len(l.Elements) == 3
		}},
		{"not", "print not true", func(s Stmt) bool { _, ok := s.(*PrintStmt).Values[0].(*NotExpr); return ok }},
		{"map type", "dim m as Map from String to List of Number", func(s Stmt) bool {
			d := s.(*DimStmt)
			return d.Type.Kind == KindMap && d.Type.Value.Kind == KindList
		}},
		{"optional parens", "dim o as Optional (List of Number)", func(s Stmt) bool {
			d := s.(*DimStmt)
			return d.Type.Kind == KindOptional && d.Type.Item.Kind == KindList
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := parseMain(t, tt.src)
			if len(proc.Body.Statements) != 1 {
				t.Fatalf("got %d statements, want 1", len(proc.Body.Statements))
			}
			if !tt.want(proc.Body.Statements[0]) {
				t.Errorf("unexpected statement shape %T", proc.Body.Statements[0])
			}
		})
	}
}

func TestParseMembers(t *testing.T) {
	src := `
dim shared g as Number
const K = 3

type Point
    x as Number
    y as Number
end type

function Twice(n as Number) as Number
    return n * 2
end function

sub Main()
end sub
`
	prog, err := ParseProgram(NewGrammar(), src)
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Members) != 5 {
		t.Fatalf("got %d members, want 5", len(prog.Members))
	}
	if g := prog.Members[0].(*GlobalVariable); g.IsConst || g.Type.Kind != KindNumber {
		t.Errorf("first member should be a Number global")
	}
	if g := prog.Members[1].(*GlobalVariable); !g.IsConst {
		t.Errorf("second member should be a constant")
	}
	if d := prog.Members[2].(*TypeDeclaration); len(d.Fields) != 2 {
		t.Errorf("Point has %d fields, want 2", len(d.Fields))
	}
	if f := prog.Members[3].(*Procedure); !f.IsFunction() || len(f.Parameters) != 1 {
		t.Errorf("Twice should be a one-parameter function")
	}
}

func TestParseLeftoverToken(t *testing.T) {
	_, err := ParseProgram(NewGrammar(), "sub Main()\nend sub\n)\n")
	var ce *CompilerError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompilerError, got %v", err)
	}
	if ce.Message != "This token was unexpected." || ce.Token.Kind != TokenRightParenthesis {
		t.Errorf("got %q at %s", ce.Message, ce.Token)
	}
}

func TestParseErrorAfterCut(t *testing.T) {
	_, err := ParseProgram(NewGrammar(), "sub Main()\ndim x as\nend sub\n")
	var ce *CompilerError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompilerError, got %v", err)
	}
	if ce.Code != ErrSyntax || ce.Token.LineIndex != 1 {
		t.Errorf("got %s at line %d, want Syntax on line 2", ce.Code, ce.Token.LineIndex+1)
	}
}

func TestParseMemberRoot(t *testing.T) {
	g := NewGrammar()
	node, err := Parse(g, RootMember, Tokenize("type Point\nx as Number\nend type", TokenizeCompile, nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := node.(*TypeDeclaration); !ok {
		t.Errorf("got %T, want *TypeDeclaration", node)
	}
}
