package compiler

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// SourceProgram: the member-oriented source file
// ---------------------------------------------------------------------------

// SourceMemberType classifies a source member.
type SourceMemberType int

const (
	MemberProcedure SourceMemberType = iota
	MemberGlobal
	MemberType
	MemberDesign
	MemberPicture
)

var memberTags = [...]string{
	MemberProcedure: "procedure",
	MemberGlobal:    "global",
	MemberType:      "type",
	MemberDesign:    "design",
	MemberPicture:   "picture",
}

func (t SourceMemberType) String() string { return memberTags[t] }

// saveOrder is the order member types are written in.
var saveOrder = []SourceMemberType{MemberType, MemberGlobal, MemberProcedure, MemberDesign, MemberPicture}

// SourceMember is one independently compiled unit of source.
type SourceMember struct {
	MemberType     SourceMemberType
	Source         string
	DisplayName    string
	Identifier     string
	SelectionStart int
	SelectionEnd   int
	// Zero-based line of the member's first line in the loaded text.
	StartLine int
}

var displayNameRegex = regexp.MustCompile(`^[^ ]+ ([^( ]+)[ ]*(:?\(.*)?$`)

// NewSourceMember creates a member and derives its display name.
func NewSourceMember(memberType SourceMemberType, source string) *SourceMember {
	m := &SourceMember{MemberType: memberType}
	m.SetSource(source)
	return m
}

// SetSource replaces the member text and refreshes the display name.
func (m *SourceMember) SetSource(source string) {
	m.Source = source
	m.updateDisplayName()
}

func isBlankOrComment(line string) bool {
	for _, ch := range line {
		if ch == '\'' {
			return true
		}
		if ch != ' ' && ch != '\t' {
			return false
		}
	}
	return true
}

func (m *SourceMember) updateDisplayName() {
	for _, line := range strings.Split(m.Source, "\n") {
		if isBlankOrComment(line) {
			continue
		}
		m.DisplayName = line
		if match := displayNameRegex.FindStringSubmatch(line); match != nil {
			m.Identifier = match[1]
		} else {
			m.Identifier = line
		}
		return
	}
	m.DisplayName = "Untitled"
	m.Identifier = "?"
}

// SourceProgram is an ordered list of members.
type SourceProgram struct {
	Members []*SourceMember
}

// LoadSourceProgram parses program text. Text with "#tag" block headers is
// read as blocks; otherwise members are split by their leading keyword.
func LoadSourceProgram(content string) *SourceProgram {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	p := &SourceProgram{}
	if hasBlockTags(content) {
		p.loadBlocks(content)
	} else {
		p.loadKeywords(content)
	}
	return p
}

// ReadSourceProgram loads a program from a file.
func ReadSourceProgram(path string) (*SourceProgram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return LoadSourceProgram(string(data)), nil
}

func parseTag(line string) (SourceMemberType, bool) {
	if !strings.HasPrefix(line, "#") || strings.HasPrefix(line, "##") {
		return 0, false
	}
	tag := strings.ToLower(strings.TrimSpace(line[1:]))
	for t, name := range memberTags {
		if name == tag {
			return SourceMemberType(t), true
		}
	}
	return 0, false
}

func hasBlockTags(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if _, ok := parseTag(line); ok {
			return true
		}
	}
	return false
}

func (p *SourceProgram) addBlock(memberType SourceMemberType, lines []string, firstLine int) {
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return
	}
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			break
		}
		firstLine++
	}
	m := NewSourceMember(memberType, text+"\n")
	m.StartLine = firstLine
	p.Members = append(p.Members, m)
}

func (p *SourceProgram) loadBlocks(content string) {
	var (
		current []string
		inBlock bool
		kind    SourceMemberType
		start   int
	)
	for i, line := range strings.Split(content, "\n") {
		if t, ok := parseTag(line); ok {
			if inBlock {
				p.addBlock(kind, current, start)
			}
			current, inBlock, kind, start = nil, true, t, i+1
			continue
		}
		if !inBlock {
			continue
		}
		if strings.HasPrefix(line, "##") {
			line = line[1:]
		}
		current = append(current, line)
	}
	if inBlock {
		p.addBlock(kind, current, start)
	}
}

// loadKeywords splits plain source at sub, function, type, dim and const
// lines. Comment lines above a member belong to it; trailing lines that
// start no member are dropped.
func (p *SourceProgram) loadKeywords(content string) {
	lines := strings.Split(content, "\n")
	var current []string
	start := 0
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if current == nil {
			start = i
		}
		current = append(current, line)
		lc := strings.ToLower(line)
		var endPhrase string
		var kind SourceMemberType
		switch {
		case strings.HasPrefix(lc, "dim"), strings.HasPrefix(lc, "const"):
			p.addBlock(MemberGlobal, current, start)
			current = nil
			continue
		case strings.HasPrefix(lc, "sub"):
			kind, endPhrase = MemberProcedure, "end sub"
		case strings.HasPrefix(lc, "function"):
			kind, endPhrase = MemberProcedure, "end function"
		case strings.HasPrefix(lc, "type"):
			kind, endPhrase = MemberType, "end type"
		case strings.HasPrefix(lc, "design"):
			kind, endPhrase = MemberDesign, "end design"
		case strings.HasPrefix(lc, "picture"):
			kind, endPhrase = MemberPicture, "end picture"
		default:
			continue
		}
		for i+1 < len(lines) {
			i++
			current = append(current, lines[i])
			if strings.HasPrefix(strings.ToLower(lines[i]), endPhrase) {
				break
			}
		}
		p.addBlock(kind, current, start)
		current = nil
	}
}

// SortedMembers returns the members in save order: by member type, then
// by display name descending.
func (p *SourceProgram) SortedMembers() []*SourceMember {
	var out []*SourceMember
	for _, t := range saveOrder {
		var group []*SourceMember
		for _, m := range p.Members {
			if m.MemberType == t {
				group = append(group, m)
			}
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].DisplayName > group[j].DisplayName })
		out = append(out, group...)
	}
	return out
}

// Save writes the program in block format.
func (p *SourceProgram) Save(w io.Writer) error {
	var b strings.Builder
	for _, m := range p.SortedMembers() {
		b.WriteString("#" + m.MemberType.String() + "\n")
		for _, line := range strings.Split(strings.TrimSpace(m.Source), "\n") {
			if strings.HasPrefix(line, "#") {
				line = "#" + line
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// MembersOfType calls fn for each member of the given type with its index.
func (p *SourceProgram) MembersOfType(t SourceMemberType, fn func(m *SourceMember, index int)) {
	for i, m := range p.Members {
		if m.MemberType == t {
			fn(m, i)
		}
	}
}
