package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `
[project]
name = "test-app"
version = "0.1.0"

[source]
file = "app.bas"
include = ["lib/*.bas"]

[build]
output = "out/app.tmb"
cache = "cache.db"

[run]
max-cycles = 500
input = "input.txt"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Source.File != "app.bas" {
		t.Errorf("source file = %q, want app.bas", m.Source.File)
	}
	if len(m.Source.Include) != 1 {
		t.Errorf("include count = %d, want 1", len(m.Source.Include))
	}
	if m.Run.MaxCycles != 500 {
		t.Errorf("max-cycles = %d, want 500", m.Run.MaxCycles)
	}
	if m.OutputPath() != filepath.Join(m.Dir, "out", "app.tmb") {
		t.Errorf("output path = %q", m.OutputPath())
	}
	if m.InputPath() != filepath.Join(m.Dir, "input.txt") {
		t.Errorf("input path = %q", m.InputPath())
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Source.File != DefaultSourceFile {
		t.Errorf("default source file = %q, want %q", m.Source.File, DefaultSourceFile)
	}
	if m.Build.Output != "minimal.tmb" {
		t.Errorf("default output = %q, want minimal.tmb", m.Build.Output)
	}
	if m.Build.Cache != DefaultCache {
		t.Errorf("default cache = %q, want %q", m.Build.Cache, DefaultCache)
	}
	if m.Run.MaxCycles != DefaultMaxCycles {
		t.Errorf("default max-cycles = %d, want %d", m.Run.MaxCycles, DefaultMaxCycles)
	}
	if m.InputPath() != "" {
		t.Errorf("input path = %q, want empty", m.InputPath())
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad toml", "[project\nname = 1", "parse error"},
		{"source not .bas", "[source]\nfile = \"main.txt\"", "invalid"},
		{"negative cycles", "[run]\nmax-cycles = -5", "invalid"},
		{"bad project name", "[project]\nname = \"has space\"", "invalid"},
		{"bad version", "[project]\nversion = \"one\"", "invalid"},
		{"empty include", "[source]\ninclude = [\"\"]", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, FileName), "[project]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no tmbasic.toml exists")
	}
}

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.bas"), "sub Main()\nprint Greeting()\nend sub")
	writeFile(t, filepath.Join(dir, "lib", "b.bas"), "' b\n")
	writeFile(t, filepath.Join(dir, "lib", "a.bas"), "function Greeting() as String\nreturn \"hi\"\nend function\n")

	m := &Manifest{Dir: dir, Source: Source{File: "main.bas", Include: []string{"lib/*.bas", "lib/a.bas"}}}
	files, err := m.SourceFiles()
	if err != nil {
		t.Fatalf("SourceFiles: %v", err)
	}
	want := []string{
		filepath.Join(dir, "main.bas"),
		filepath.Join(dir, "lib", "a.bas"),
		filepath.Join(dir, "lib", "b.bas"),
	}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", files, want)
	}

	text, err := m.LoadSource()
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if !strings.HasPrefix(text, "sub Main()\nprint Greeting()\nend sub\nfunction Greeting()") {
		t.Errorf("unexpected text:\n%s", text)
	}
}

func TestIncludeMatchingNothing(t *testing.T) {
	m := &Manifest{Dir: t.TempDir(), Source: Source{File: "main.bas", Include: []string{"missing/*.bas"}}}
	if _, err := m.SourceFiles(); err == nil {
		t.Error("expected an error for an include that matches nothing")
	}
}
