package plugins

import (
	"fmt"
	"strings"
)

// Known platform kinds. The kind decides which generation service drives the
// platform and which workspace layout the dashboard opens for it.
const (
	KindBlog     = "blog"
	KindLinkedIn = "linkedin"
	KindTweet    = "tweet"
)

// PlatformDefinition describes one publishing platform loaded from YAML or a
// Go plugin file under the platforms directory.
//
// The struct mirrors the on-disk schema and is intentionally narrow so the
// dashboard can validate plugin metadata before wiring it into a workspace.
type PlatformDefinition struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Kind        string   `json:"kind" yaml:"kind"`
	MaxChars    int      `json:"max_chars,omitempty" yaml:"max_chars,omitempty"`
	OptimalMin  int      `json:"optimal_min,omitempty" yaml:"optimal_min,omitempty"`
	OptimalMax  int      `json:"optimal_max,omitempty" yaml:"optimal_max,omitempty"`
	PlainText   bool     `json:"plain_text,omitempty" yaml:"plain_text,omitempty"`
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// Normalized returns a trimmed, copy-on-write variant of the definition.
func (def PlatformDefinition) Normalized() PlatformDefinition {
	clone := PlatformDefinition{
		ID:          strings.ToLower(strings.TrimSpace(def.ID)),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Kind:        strings.ToLower(strings.TrimSpace(def.Kind)),
		MaxChars:    def.MaxChars,
		OptimalMin:  def.OptimalMin,
		OptimalMax:  def.OptimalMax,
		PlainText:   def.PlainText,
	}
	if clone.Name == "" {
		clone.Name = clone.ID
	}
	if len(def.Suggestions) > 0 {
		clone.Suggestions = make([]string, 0, len(def.Suggestions))
		for _, suggestion := range def.Suggestions {
			trimmed := strings.TrimSpace(suggestion)
			if trimmed == "" {
				continue
			}
			clone.Suggestions = append(clone.Suggestions, trimmed)
		}
	}
	return clone
}

// Validate ensures the platform definition is well-formed.
func (def PlatformDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("platform: id is required")
	}
	switch normalized.Kind {
	case KindBlog, KindLinkedIn, KindTweet:
	case "":
		return fmt.Errorf("platform %s: kind is required", normalized.ID)
	default:
		return fmt.Errorf("platform %s: unknown kind %q", normalized.ID, normalized.Kind)
	}
	if normalized.MaxChars < 0 {
		return fmt.Errorf("platform %s: max_chars must not be negative", normalized.ID)
	}
	if normalized.OptimalMin < 0 || normalized.OptimalMax < 0 {
		return fmt.Errorf("platform %s: optimal band must not be negative", normalized.ID)
	}
	if normalized.OptimalMax > 0 && normalized.OptimalMin > normalized.OptimalMax {
		return fmt.Errorf("platform %s: optimal_min exceeds optimal_max", normalized.ID)
	}
	if normalized.MaxChars > 0 && normalized.OptimalMax > normalized.MaxChars {
		return fmt.Errorf("platform %s: optimal_max exceeds max_chars", normalized.ID)
	}
	return nil
}

// Builtins returns the platforms the dashboard always offers. Plugin
// definitions with the same id override these.
func Builtins() []PlatformDefinition {
	return []PlatformDefinition{
		{
			ID:          KindBlog,
			Name:        "Blog",
			Description: "Long-form post with rich HTML body",
			Kind:        KindBlog,
		},
		{
			ID:          KindLinkedIn,
			Name:        "LinkedIn",
			Description: "Professional post, plain text",
			Kind:        KindLinkedIn,
			MaxChars:    2000,
			OptimalMin:  150,
			OptimalMax:  300,
			PlainText:   true,
		},
		{
			ID:          KindTweet,
			Name:        "Tweet",
			Description: "Short post with style presets",
			Kind:        KindTweet,
			MaxChars:    280,
			PlainText:   true,
			Suggestions: []string{
				"Announce a new blog post",
				"Share a quick tip",
				"Ask the audience a question",
			},
		},
	}
}
