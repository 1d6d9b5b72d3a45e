package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
	"github.com/tmbasic-lang/tmbasic-sub000/manifest"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/store"
)

// target is what a command operates on: a loose file or a project.
type target struct {
	manifest *manifest.Manifest // nil for a loose file
	source   string             // program text; empty for an artifact
	artifact *store.Artifact    // set when the argument was a .tmb file
	name     string             // path used in messages
}

// resolveTarget loads the file named by args, or the project around the
// working directory when args is empty.
func resolveTarget(args []string) (*target, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("expected at most one file, got %d", len(args))
	}
	if len(args) == 1 {
		path := args[0]
		if filepath.Ext(path) == ".tmb" {
			a, err := store.ReadArtifact(path)
			if err != nil {
				return nil, err
			}
			return &target{artifact: a, name: path}, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return &target{source: string(data), name: path}, nil
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("no file given and no %s found", manifest.FileName)
	}
	text, err := m.LoadSource()
	if err != nil {
		return nil, err
	}
	return &target{manifest: m, source: text, name: m.SourcePath()}, nil
}

// openCache opens the project's compile cache. Loose files are not
// cached.
func (t *target) openCache() (*store.Cache, error) {
	if t.manifest == nil {
		return nil, nil
	}
	path := t.manifest.CachePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return store.OpenCache(path)
}

// build produces the target's artifact, compiling through the cache when
// useCache is set. Compile errors come back as compiler.ErrorList.
func (t *target) build(useCache bool) (*store.Artifact, error) {
	if t.artifact != nil {
		return t.artifact, nil
	}
	var cache *store.Cache
	if useCache {
		c, err := t.openCache()
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		if c != nil {
			defer c.Close()
		}
		cache = c
	}
	a, _, _, err := store.Build(compiler.NewCompiler(), cache, t.source)
	return a, err
}

// program decodes the target's bytecode.
func (t *target) program(useCache bool) (*store.Artifact, *bytecode.Program, error) {
	a, err := t.build(useCache)
	if err != nil {
		return nil, nil, err
	}
	p, err := a.LoadProgram()
	if err != nil {
		return nil, nil, err
	}
	return a, p, nil
}

// formatCompileErrors renders every diagnostic as "file:line:col: message".
// Other errors are returned unchanged.
func formatCompileErrors(name string, err error) (string, bool) {
	var list compiler.ErrorList
	if !errors.As(err, &list) {
		return "", false
	}
	var sb strings.Builder
	for _, e := range list {
		fmt.Fprintf(&sb, "%s:%d:%d: %s: %s\n", name, e.Token.DocumentLine()+1, e.Token.ColumnIndex+1, e.Code, e.Message)
	}
	return sb.String(), true
}
