// Package doctest runs TMBASIC programs embedded in Markdown documents
// and txtar archives and compares their console output.
//
// A Markdown document holds any number of cases. Each starts at a heading
// whose text begins with "Test: " and is followed by fenced code blocks:
//
//	basic          the program (required)
//	input          console input fed to the program
//	output         expected console output
//	error          expected uncaught error, e.g. "error 9: bad thing"
//	compile-error  text expected in the first compile diagnostic
//
// A txtar archive holds one case named after the file, with the sections
// program.bas, input, output and error.
package doctest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/tools/txtar"
)

// Fence languages recognized inside a test case.
const (
	FenceBasic        = "basic"
	FenceInput        = "input"
	FenceOutput       = "output"
	FenceError        = "error"
	FenceCompileError = "compile-error"
)

// Case is one program with its input and expectations.
type Case struct {
	Name         string
	File         string
	Line         int // line of the heading; 1 for txtar cases
	Source       string
	Input        string
	Output       string
	Error        string
	CompileError string
}

// Load reads the cases of a .md or .txtar file.
func Load(path string) ([]*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("doctest: %w", err)
	}
	var cases []*Case
	switch filepath.Ext(path) {
	case ".txtar":
		c, err := ParseTxtar(strings.TrimSuffix(filepath.Base(path), ".txtar"), data)
		if err != nil {
			return nil, fmt.Errorf("doctest: %s: %w", path, err)
		}
		cases = []*Case{c}
	default:
		cases, err = ParseMarkdown(data)
		if err != nil {
			return nil, fmt.Errorf("doctest: %s: %w", path, err)
		}
	}
	for _, c := range cases {
		c.File = path
	}
	return cases, nil
}

// ParseTxtar reads a single case from a txtar archive.
func ParseTxtar(name string, data []byte) (*Case, error) {
	archive := txtar.Parse(data)
	c := &Case{Name: name, Line: 1}
	for _, f := range archive.Files {
		content := string(f.Data)
		switch f.Name {
		case "program.bas":
			c.Source = content
		case "input":
			c.Input = content
		case "output":
			c.Output = content
		case "error":
			c.Error = strings.TrimSpace(content)
		case "compile-error":
			c.CompileError = strings.TrimSpace(content)
		default:
			return nil, fmt.Errorf("unknown section %q", f.Name)
		}
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseMarkdown extracts the cases of a Markdown document.
func ParseMarkdown(source []byte) ([]*Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var (
		cases   []*Case
		current *Case
		seen    map[string]bool
	)
	finish := func() error {
		if current == nil {
			return nil
		}
		if err := validate(current); err != nil {
			return fmt.Errorf("line %d: %w", current.Line, err)
		}
		cases = append(cases, current)
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, source)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkSkipChildren, nil
			}
			if err := finish(); err != nil {
				return ast.WalkStop, err
			}
			current = &Case{
				Name: strings.TrimSpace(strings.TrimPrefix(heading, "Test: ")),
				Line: lineOf(n, source),
			}
			seen = make(map[string]bool)
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			language := string(n.Language(source))
			line := lineOf(n, source)
			if current == nil {
				if isTestFence(language) {
					return ast.WalkStop, fmt.Errorf("line %d: %s fence outside of a test", line, language)
				}
				return ast.WalkContinue, nil
			}
			if !isTestFence(language) {
				return ast.WalkContinue, nil
			}
			if seen[language] {
				return ast.WalkStop, fmt.Errorf("line %d: multiple %s fences in test %q", line, language, current.Name)
			}
			seen[language] = true
			content := blockText(n, source)
			switch language {
			case FenceBasic:
				current.Source = content
			case FenceInput:
				current.Input = content
			case FenceOutput:
				current.Output = content
			case FenceError:
				current.Error = strings.TrimSpace(content)
			case FenceCompileError:
				current.CompileError = strings.TrimSpace(content)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return cases, nil
}

func isTestFence(language string) bool {
	switch language {
	case FenceBasic, FenceInput, FenceOutput, FenceError, FenceCompileError:
		return true
	}
	return false
}

// validate requires a program and something to check it against.
func validate(c *Case) error {
	if c.Source == "" {
		return fmt.Errorf("test %q has no program", c.Name)
	}
	if c.CompileError != "" && (c.Output != "" || c.Error != "") {
		return fmt.Errorf("test %q expects a compile error and also run results", c.Name)
	}
	return nil
}

// nodeText concatenates the text segments below node.
func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func blockText(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

// lineOf returns the 1-based line where node's first line starts.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	return bytes.Count(source[:min(start, len(source))], []byte("\n")) + 1
}
