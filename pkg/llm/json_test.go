package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "plain object", input: `{"a": 1}`, expected: `{"a": 1}`},
		{name: "fenced json", input: "Here you go:\n```json\n{\"a\": [1, 2]}\n```\nThanks", expected: `{"a": [1, 2]}`},
		{name: "bare fence", input: "```\n[{\"id\": \"x\"}]\n```", expected: `[{"id": "x"}]`},
		{name: "chatty prefix", input: `Sure! {"industry": "Retail"} hope it helps`, expected: `{"industry": "Retail"}`},
		{name: "think tags", input: "<think>{not json}</think>\n{\"ok\": true}", expected: `{"ok": true}`},
		{name: "brace inside string", input: `{"text": "a } b", "n": 2}`, expected: `{"text": "a } b", "n": 2}`},
		{name: "array before object", input: `list: [1, {"a": 2}]`, expected: `[1, {"a": 2}]`},
		{name: "no json", input: "I cannot help with that.", wantErr: true},
		{name: "unbalanced", input: `{"a": 1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	type profile struct {
		CompanyName string   `json:"company_name"`
		PainPoints  []string `json:"pain_points"`
	}

	got, err := ParseJSONResponse[profile]("```json\n{\"company_name\": \"Acme\", \"pain_points\": [\"cost\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, []string{"cost"}, got.PainPoints)

	_, err = ParseJSONResponse[profile](`{"company_name": 12}`)
	assert.ErrorContains(t, err, "unmarshal JSON")
}
