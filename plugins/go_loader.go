package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const definitionFuncName = "PlatformDefinitions"

// LoadGoDefinitionDir evaluates every .go file in dir and collects the
// platform definitions its PlatformDefinitions() function returns.
func LoadGoDefinitionDir(dir string) ([]DefinitionFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("platform: read %s: %w", trimmed, err)
	}
	var defs []DefinitionFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		fileDefs, err := loadGoDefinitionFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	if len(defs) == 0 {
		return nil, nil
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Path < defs[j].Path })
	return defs, nil
}

func loadGoDefinitionFile(path string) ([]DefinitionFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("platform: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("platform: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("platform: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(definitionFuncName)
	if err != nil {
		return nil, fmt.Errorf("platform: %s must define %s() ([]map[string]any, error): %w", path, definitionFuncName, err)
	}
	raws, callErr := invokeDefinitionFunc(fnValue)
	if callErr != nil {
		return nil, fmt.Errorf("platform: %s: %w", path, callErr)
	}
	files := make([]DefinitionFile, 0, len(raws))
	for idx, raw := range raws {
		def, err := definitionFromMap(raw)
		if err != nil {
			return nil, fmt.Errorf("platform: %s definition %d: %w", path, idx+1, err)
		}
		files = append(files, DefinitionFile{Definition: def, Path: fmt.Sprintf("%s#%d", path, idx+1)})
	}
	return files, nil
}

func invokeDefinitionFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", definitionFuncName)
	}
	if value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", definitionFuncName)
	}
	results := value.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", definitionFuncName)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", definitionFuncName)
	}
	defsVal := results[0]
	if defs, ok := defsVal.Interface().([]map[string]any); ok {
		return defs, nil
	}
	if defsVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", definitionFuncName)
	}
	defs := make([]map[string]any, defsVal.Len())
	for i := 0; i < defsVal.Len(); i++ {
		m, ok := defsVal.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", definitionFuncName, i)
		}
		defs[i] = m
	}
	return defs, nil
}

// definitionFromMap builds a definition from the loose map an interpreted
// plugin returns. Numeric values arrive as int or float64 depending on how
// the plugin spelled them, so the numeric fields coerce both. Unknown keys
// are rejected so a typo never silently drops a limit.
func definitionFromMap(raw map[string]any) (PlatformDefinition, error) {
	var def PlatformDefinition
	for key, value := range raw {
		var err error
		switch key {
		case "id":
			def.ID, err = stringField(key, value)
		case "name":
			def.Name, err = stringField(key, value)
		case "description":
			def.Description, err = stringField(key, value)
		case "kind":
			def.Kind, err = stringField(key, value)
		case "max_chars":
			def.MaxChars, err = intField(key, value)
		case "optimal_min":
			def.OptimalMin, err = intField(key, value)
		case "optimal_max":
			def.OptimalMax, err = intField(key, value)
		case "plain_text":
			def.PlainText, err = boolField(key, value)
		case "suggestions":
			def.Suggestions, err = stringListField(key, value)
		default:
			return PlatformDefinition{}, fmt.Errorf("unknown field %q", key)
		}
		if err != nil {
			return PlatformDefinition{}, err
		}
	}
	if err := def.Validate(); err != nil {
		return PlatformDefinition{}, err
	}
	return def.Normalized(), nil
}

func stringField(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string", key)
	}
	return s, nil
}

func intField(key string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("field %q must be a number", key)
	}
}

func boolField(key string, value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("field %q must be a bool", key)
	}
	return b, nil
}

func stringListField(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("field %q must hold strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q must be a string list", key)
	}
}
