// Package manifest handles tmbasic.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the project file looked for by Load and FindAndLoad.
const FileName = "tmbasic.toml"

// Manifest represents a tmbasic.toml project configuration.
type Manifest struct {
	Project Project `toml:"project" json:"project"`
	Source  Source  `toml:"source" json:"source"`
	Build   Build   `toml:"build" json:"build"`
	Run     Run     `toml:"run" json:"run"`

	// Dir is the directory containing the tmbasic.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name" json:"name,omitempty"`
	Version string `toml:"version" json:"version,omitempty"`
}

// Source names the program file and any extra files whose members are
// appended to it.
type Source struct {
	File    string   `toml:"file" json:"file,omitempty"`
	Include []string `toml:"include" json:"include,omitempty"`
}

// Build configures artifact output and the compile cache.
type Build struct {
	Output string `toml:"output" json:"output,omitempty"`
	Cache  string `toml:"cache" json:"cache,omitempty"`
}

// Run configures "tmbasic run".
type Run struct {
	MaxCycles int    `toml:"max-cycles" json:"max-cycles,omitempty"`
	Input     string `toml:"input" json:"input,omitempty"`
}

// Defaults applied by Load.
const (
	DefaultSourceFile = "main.bas"
	DefaultCache      = ".tmbasic/cache.db"
	DefaultMaxCycles  = 10000
)

// Load parses a tmbasic.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes, defaults and validates manifest text. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	m.applyDefaults()
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Source.File == "" {
		m.Source.File = DefaultSourceFile
	}
	if m.Build.Output == "" {
		name := m.Project.Name
		if name == "" {
			name = "program"
		}
		m.Build.Output = name + ".tmb"
	}
	if m.Build.Cache == "" {
		m.Build.Cache = DefaultCache
	}
	if m.Run.MaxCycles == 0 {
		m.Run.MaxCycles = DefaultMaxCycles
	}
}

// FindAndLoad walks up from startDir to find a tmbasic.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// SourcePath returns the absolute path of the program file.
func (m *Manifest) SourcePath() string { return m.path(m.Source.File) }

// OutputPath returns the absolute path of the build artifact.
func (m *Manifest) OutputPath() string { return m.path(m.Build.Output) }

// CachePath returns the absolute path of the compile cache database.
func (m *Manifest) CachePath() string { return m.path(m.Build.Cache) }

// InputPath returns the absolute path of the run input file, or "" when
// the program reads from standard input.
func (m *Manifest) InputPath() string {
	if m.Run.Input == "" {
		return ""
	}
	return m.path(m.Run.Input)
}
