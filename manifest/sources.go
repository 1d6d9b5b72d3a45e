package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SourceFiles resolves the program file followed by every include
// pattern, in manifest order. Each pattern must match at least one file;
// matches of one pattern are sorted and a file is listed once.
func (m *Manifest) SourceFiles() ([]string, error) {
	files := []string{m.SourcePath()}
	seen := map[string]bool{files[0]: true}
	for _, pattern := range m.Source.Include {
		matches, err := filepath.Glob(m.path(pattern))
		if err != nil {
			return nil, fmt.Errorf("include %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("include %q matches no files", pattern)
		}
		sort.Strings(matches)
		for _, f := range matches {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files, nil
}

// LoadSource reads the program file and its includes and joins them into
// one program text.
func (m *Manifest) LoadSource() (string, error) {
	files, err := m.SourceFiles()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("cannot read %s: %w", f, err)
		}
		sb.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
