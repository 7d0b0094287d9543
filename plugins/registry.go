package plugins

import (
	"fmt"
)

// Registry holds the resolved platform set: the built-ins plus everything
// discovered under the platforms directory.
type Registry struct {
	order []string
	defs  map[string]PlatformDefinition
}

// LoadPlatforms discovers YAML and Go platform definitions under dir and
// merges them over the built-ins. A plugin sharing a built-in id overrides
// it; two plugins sharing an id is an error.
func LoadPlatforms(dir string) (*Registry, error) {
	reg := &Registry{defs: map[string]PlatformDefinition{}}
	for _, def := range Builtins() {
		reg.put(def.Normalized())
	}
	files, err := loadAllDefinitionFiles(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string)
	for _, file := range files {
		def := file.Definition
		if existing, ok := seen[def.ID]; ok {
			return nil, fmt.Errorf("platform: duplicate id %s (%s and %s)", def.ID, existing, file.Path)
		}
		seen[def.ID] = file.Path
		reg.put(def)
	}
	return reg, nil
}

// Get returns the definition for a platform id.
func (r *Registry) Get(id string) (PlatformDefinition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// All returns the platforms in registration order, built-ins first.
func (r *Registry) All() []PlatformDefinition {
	out := make([]PlatformDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

func (r *Registry) put(def PlatformDefinition) {
	if _, exists := r.defs[def.ID]; !exists {
		r.order = append(r.order, def.ID)
	}
	r.defs[def.ID] = def
}

func loadAllDefinitionFiles(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlDefs, goDefs...), nil
}
