// Package prompts renders prompt templates and holds the built-in prompts
// used when no stored template applies.
package prompts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Vars maps placeholder names to values.
type Vars map[string]any

// placeholderPattern matches {{name}} with optional whitespace inside the braces.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}`)

// Render replaces every {{name}} in tmpl with the formatted value of vars[name].
// Placeholders without a value render as the empty string; Missing reports them.
func Render(tmpl string, vars Vars) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return FormatValue(vars[name])
	})
}

// Variables lists the placeholder names in tmpl in first-seen order, without duplicates.
func Variables(tmpl string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// Missing lists the placeholders of tmpl that vars does not supply.
func Missing(tmpl string, vars Vars) []string {
	var missing []string
	for _, name := range Variables(tmpl) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// FormatValue renders a variable value as prompt text.
// Slices become ", "-joined lists; maps and structs become indented JSON.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, ", ")
	case fmt.Stringer:
		return val.String()
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprint(val)
	default:
		b, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
