package compiler

import (
	"strings"
	"testing"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		source     string
		display    string
		identifier string
	}{
		{"' comment\n\nsub Main()\nend sub\n", "sub Main()", "Main"},
		{"function Add(a as Number) as Number\n", "function Add(a as Number) as Number", "Add"},
		{"dim x as Number\n", "dim x as Number", "dim x as Number"},
		{"type Point\nend type\n", "type Point", "Point"},
		{"   \n' only comments\n", "Untitled", "?"},
	}
	for _, tt := range tests {
		m := NewSourceMember(MemberProcedure, tt.source)
		if m.DisplayName != tt.display || m.Identifier != tt.identifier {
			t.Errorf("source %q: got (%q, %q), want (%q, %q)",
				tt.source, m.DisplayName, m.Identifier, tt.display, tt.identifier)
		}
	}
}

func TestLoadBlocks(t *testing.T) {
	content := "ignored preamble\r\n#procedure\r\nsub Main()\r\n    print \"x\"\r\nend sub\r\n#global\r\ndim x as Number\r\n#design\r\n##not a tag\r\n"
	p := LoadSourceProgram(content)
	if len(p.Members) != 3 {
		t.Fatalf("got %d members, want 3", len(p.Members))
	}
	if p.Members[0].MemberType != MemberProcedure || strings.Contains(p.Members[0].Source, "\r") {
		t.Errorf("first member = %v %q", p.Members[0].MemberType, p.Members[0].Source)
	}
	if p.Members[2].Source != "#not a tag\n" {
		t.Errorf("escaped line = %q", p.Members[2].Source)
	}
}

func TestLoadKeywords(t *testing.T) {
	content := "' greeting\nsub Main()\n    print 1\nEND SUB\ndim g as Number\ntype T\n    a as Number\nend type\nleftover output\n"
	p := LoadSourceProgram(content)
	if len(p.Members) != 3 {
		t.Fatalf("got %d members, want 3", len(p.Members))
	}
	want := []SourceMemberType{MemberProcedure, MemberGlobal, MemberType}
	for i, w := range want {
		if p.Members[i].MemberType != w {
			t.Errorf("member %d type = %v, want %v", i, p.Members[i].MemberType, w)
		}
	}
	if !strings.HasPrefix(p.Members[0].Source, "' greeting") {
		t.Errorf("comment above a member should belong to it: %q", p.Members[0].Source)
	}
}

func TestSaveOrderAndRoundTrip(t *testing.T) {
	p := &SourceProgram{Members: []*SourceMember{
		NewSourceMember(MemberProcedure, "sub A()\nend sub\n"),
		NewSourceMember(MemberGlobal, "dim g as Number\n"),
		NewSourceMember(MemberProcedure, "sub B()\n#x\nend sub\n"),
		NewSourceMember(MemberType, "type T\nend type\n"),
	}}
	var b strings.Builder
	if err := p.Save(&b); err != nil {
		t.Fatal(err)
	}
	back := LoadSourceProgram(b.String())
	order := []string{"type T", "dim g as Number", "sub B()", "sub A()"}
	if len(back.Members) != len(order) {
		t.Fatalf("got %d members after round trip", len(back.Members))
	}
	for i, id := range order {
		if back.Members[i].DisplayName != id {
			t.Errorf("member %d = %s, want %s", i, back.Members[i].Identifier, id)
		}
	}
	if back.Members[2].Source != "sub B()\n#x\nend sub\n" {
		t.Errorf("escaped source = %q", back.Members[2].Source)
	}
}

func TestMemberStartLine(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []int
	}{
		{"keywords", "\n\nsub Main()\nend sub\n\ndim x as Number\n", []int{2, 5}},
		{"blocks", "#procedure\nsub Main()\nend sub\n#global\n\ndim x as Number\n", []int{1, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := LoadSourceProgram(tt.content)
			if len(p.Members) != len(tt.want) {
				t.Fatalf("got %d members, want %d", len(p.Members), len(tt.want))
			}
			for i, w := range tt.want {
				if p.Members[i].StartLine != w {
					t.Errorf("member %d starts at %d, want %d", i, p.Members[i].StartLine, w)
				}
			}
		})
	}
}
