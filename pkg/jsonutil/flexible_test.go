package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{"string", json.RawMessage(`"hello"`), "hello"},
		{"integer", json.RawMessage(`42`), "42"},
		{"float", json.RawMessage(`3.14`), "3.14"},
		{"negative", json.RawMessage(`-7`), "-7"},
		{"large integer keeps precision", json.RawMessage(`9007199254740993`), "9007199254740993"},
		{"boolean", json.RawMessage(`true`), "true"},
		{"null", json.RawMessage(`null`), ""},
		{"empty", json.RawMessage{}, ""},
		{"nil", nil, ""},
		{"object falls back to raw", json.RawMessage(`{"k":"v"}`), `{"k":"v"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleStringValue(tt.input))
		})
	}
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{`0.85`, 0.85},
		{`"0.85"`, 0.85},
		{`" 0.7 "`, 0.7},
		{`"85%"`, 0.85},
		{`1`, 1},
		{`"high"`, 0},
		{`null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got struct {
				Score FlexFloat `json:"score"`
			}
			require.NoError(t, json.Unmarshal([]byte(`{"score":`+tt.input+`}`), &got))
			assert.InDelta(t, tt.want, got.Score.Float64(), 1e-9)
		})
	}
}

func TestFlexStringList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"array", `["a","b"]`, []string{"a", "b"}},
		{"single string", `"only reason"`, []string{"only reason"}},
		{"mixed scalars", `["a", 2, true, null, " "]`, []string{"a", "2", "true"}},
		{"null", `null`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Items FlexStringList `json:"items"`
			}
			require.NoError(t, json.Unmarshal([]byte(`{"items":`+tt.input+`}`), &got))
			assert.Equal(t, tt.want, got.Items.Strings())
		})
	}
}

func TestFlexString(t *testing.T) {
	var got struct {
		ID   FlexString `json:"id"`
		Name FlexString `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":12345,"name":"Acme"}`), &got))
	assert.Equal(t, "12345", got.ID.String())
	assert.Equal(t, "Acme", got.Name.String())

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"12345","name":"Acme"}`, string(out))
}
