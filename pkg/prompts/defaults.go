package prompts

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Default is a built-in prompt template.
type Default struct {
	Name               string       `yaml:"name"`
	Type               TemplateType `yaml:"type"`
	Description        string       `yaml:"description"`
	SystemPrompt       string       `yaml:"system_prompt"`
	UserPromptTemplate string       `yaml:"user_prompt_template"`
	// Temperature is the task default used when the stored template has no override.
	Temperature *float64 `yaml:"temperature"`
}

var (
	defaultsOnce sync.Once
	defaults     []Default
	defaultsErr  error
)

// Defaults returns the built-in templates parsed from the embedded defaults.yaml.
func Defaults() ([]Default, error) {
	defaultsOnce.Do(func() {
		defaults, defaultsErr = parseDefaults(defaultsYAML)
	})
	return defaults, defaultsErr
}

func parseDefaults(data []byte) ([]Default, error) {
	var parsed []Default
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse built-in prompts: %w", err)
	}

	seen := make(map[TemplateType]bool, len(parsed))
	for _, d := range parsed {
		if d.Name == "" || d.UserPromptTemplate == "" {
			return nil, fmt.Errorf("built-in prompt %q is incomplete", d.Name)
		}
		if !d.Type.Valid() {
			return nil, fmt.Errorf("built-in prompt %q has unknown type %q", d.Name, d.Type)
		}
		if seen[d.Type] {
			return nil, fmt.Errorf("duplicate built-in prompt for type %q", d.Type)
		}
		seen[d.Type] = true
	}
	return parsed, nil
}

// Builtin returns the built-in template for t. The second result is false
// for types without one (custom).
func Builtin(t TemplateType) (Default, bool) {
	all, err := Defaults()
	if err != nil {
		return Default{}, false
	}
	for _, d := range all {
		if d.Type == t {
			return d, true
		}
	}
	return Default{}, false
}

// ChatSystemPrompt frames the free-form AI assistant.
const ChatSystemPrompt = `You are a sales assistant for a B2B sales team. Answer questions about
prospects, products and sales technique concisely and practically.`
