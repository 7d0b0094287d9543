package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefinitionFile pairs a parsed platform definition with its on-disk source.
// Multi-document files get a "#n" suffix so duplicate-id errors stay
// traceable to the offending document.
type DefinitionFile struct {
	Definition PlatformDefinition
	Path       string
}

// ParseDefinitionYAML decodes a platform payload. A payload may carry several
// documents separated by "---" so one file can ship a whole platform pack.
func ParseDefinitionYAML(data []byte) ([]PlatformDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("platform: definition payload is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var defs []PlatformDefinition
	for {
		var def PlatformDefinition
		if err := dec.Decode(&def); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("platform: decode definition %d: %w", len(defs)+1, err)
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		defs = append(defs, def.Normalized())
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("platform: payload holds no definitions")
	}
	return defs, nil
}

// LoadDefinitionFile reads one YAML file and returns every platform it declares.
func LoadDefinitionFile(path string) ([]DefinitionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("platform: read %s: %w", path, err)
	}
	defs, err := ParseDefinitionYAML(data)
	if err != nil {
		return nil, fmt.Errorf("platform: %s: %w", path, err)
	}
	files := make([]DefinitionFile, 0, len(defs))
	for i, def := range defs {
		src := filepath.Clean(path)
		if len(defs) > 1 {
			src = fmt.Sprintf("%s#%d", src, i+1)
		}
		files = append(files, DefinitionFile{Definition: def, Path: src})
	}
	return files, nil
}

// LoadDefinitionDir scans a directory for *.yaml platforms and returns the
// parsed definitions. Missing directories are treated as "no plugins" to
// simplify startup.
func LoadDefinitionDir(dir string) ([]DefinitionFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("platform: read %s: %w", trimmed, err)
	}
	var defs []DefinitionFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !isYAMLFile(name) {
			continue
		}
		files, err := LoadDefinitionFile(filepath.Join(trimmed, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, files...)
	}
	if len(defs) == 0 {
		return nil, nil
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Path < defs[j].Path })
	return defs, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
