package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const lspSource = `sub Main()
    Greet "x"
end sub

dim counter as Number

sub Greet(name as String)
    print name
end sub
`

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "print Le", protocol.Position{Line: 0, Character: 8}, "Le"},
		{"at start", "pri", protocol.Position{Line: 0, Character: 3}, "pri"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first line\nsecond line\nGre", protocol.Position{Line: 2, Character: 3}, "Gre"},
		{"after paren", "x = Len(na", protocol.Position{Line: 0, Character: 10}, "na"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
		{"column beyond line", "abc", protocol.Position{Line: 0, Character: 40}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "hello world", protocol.Position{Line: 0, Character: 3}, "hello"},
		{"at end", "hello world", protocol.Position{Line: 0, Character: 5}, "hello"},
		{"second word", "hello world", protocol.Position{Line: 0, Character: 8}, "world"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first\nGreet", protocol.Position{Line: 1, Character: 3}, "Greet"},
		{"underscore", "my_var", protocol.Position{Line: 0, Character: 3}, "my_var"},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point at true")
	}
	if p := boolPtr(false); p == nil || *p {
		t.Error("boolPtr(false) should point at false")
	}
}

// ---------------------------------------------------------------------------
// Document analysis
// ---------------------------------------------------------------------------

func labels(items []protocol.CompletionItem) map[string]bool {
	out := make(map[string]bool)
	for _, item := range items {
		out[item.Label] = true
	}
	return out
}

func TestComplete(t *testing.T) {
	tests := []struct {
		prefix string
		want   []string
		absent []string
	}{
		{"gr", []string{"Greet"}, nil},
		{"co", []string{"counter", "const", "continue", "Cos", "CodePoints"}, nil},
		{"pri", []string{"print"}, []string{"Greet"}},
		{"ERR_F", []string{"ERR_FILE_NOT_FOUND"}, []string{"ERR_DISK_FULL"}},
		{"le", []string{"Len"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got := labels(complete(lspSource, tt.prefix))
			for _, w := range tt.want {
				if !got[w] {
					t.Errorf("completion of %q is missing %q", tt.prefix, w)
				}
			}
			for _, a := range tt.absent {
				if got[a] {
					t.Errorf("completion of %q should not offer %q", tt.prefix, a)
				}
			}
		})
	}
}

func TestComplete_NoDuplicates(t *testing.T) {
	items := complete(lspSource, "len")
	if len(items) != 1 {
		t.Errorf("got %d items for Len overloads, want 1", len(items))
	}
}

func TestHoverText(t *testing.T) {
	tests := []struct {
		word     string
		contains []string
	}{
		{"greet", []string{"sub Greet(name as String)"}},
		{"Len", []string{"function Len(", "as Number"}},
		{"pi", []string{"const PI = 3.14159"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			got := hoverText(lspSource, tt.word)
			if tt.contains == nil {
				if got != "" {
					t.Errorf("hover = %q, want empty", got)
				}
				return
			}
			if !strings.HasPrefix(got, "```basic\n") {
				t.Errorf("hover should be a basic code block: %q", got)
			}
			for _, c := range tt.contains {
				if !strings.Contains(got, c) {
					t.Errorf("hover %q does not contain %q", got, c)
				}
			}
		})
	}
}

func TestDefinition(t *testing.T) {
	uri := protocol.DocumentUri("file:///main.bas")
	tests := []struct {
		word string
		line int
	}{
		{"Greet", 6},
		{"main", 0},
		{"COUNTER", 4},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			locs := definition(uri, lspSource, tt.word)
			if len(locs) != 1 {
				t.Fatalf("got %d locations, want 1", len(locs))
			}
			if locs[0].URI != uri || int(locs[0].Range.Start.Line) != tt.line {
				t.Errorf("location = %v line %d, want line %d", locs[0].URI, locs[0].Range.Start.Line, tt.line)
			}
		})
	}
	if locs := definition(uri, lspSource, "Len"); len(locs) != 0 {
		t.Errorf("built-ins have no definition in the document, got %v", locs)
	}
}

func TestDiagnose(t *testing.T) {
	lsp := NewLSP(testWorker)

	diags, err := lsp.diagnose(lspSource)
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("clean program has diagnostics: %v", diags)
	}

	broken := strings.Replace(lspSource, "print name", "print nam", 1)
	diags, err = lsp.diagnose(broken)
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Range.Start.Line != 7 || d.Range.Start.Character != 10 || d.Range.End.Character != 13 {
		t.Errorf("range = %+v, want line 7 columns 10-13", d.Range)
	}
	if !strings.HasPrefix(d.Message, "SymbolNotFound: ") {
		t.Errorf("message = %q", d.Message)
	}
}

func TestNewLSP_OwnsWorker(t *testing.T) {
	lsp := NewLSP(nil)
	if !lsp.ownsWorker || lsp.worker == nil {
		t.Fatal("NewLSP(nil) should start its own worker")
	}
	if err := lsp.shutdown(nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if shared := NewLSP(testWorker); shared.ownsWorker {
		t.Error("a supplied worker is not owned")
	}
}
