// Package jsonutil decodes JSON written by language models, which often put a
// number where a string belongs, quote numbers, or send one string instead of a list.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := n.Float64(); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return n.String()
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}

	return string(raw)
}

// FlexString accepts a JSON string, number, boolean or null.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	*f = FlexString(FlexibleStringValue(data))
	return nil
}

// String returns the value as a plain string.
func (f FlexString) String() string {
	return string(f)
}

// FlexFloat accepts a JSON number or a string holding one. Percentages such
// as "85%" become fractions. Anything else decodes to zero.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	*f = FlexFloat(parseLooseFloat(FlexibleStringValue(data)))
	return nil
}

// Float64 returns the value as a float64.
func (f FlexFloat) Float64() float64 {
	return float64(f)
}

func parseLooseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if percent {
		v /= 100
	}
	return v
}

// FlexStringList accepts a JSON array of scalars, a single scalar, or null.
// Blank entries are dropped.
type FlexStringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = nil
		return nil
	}

	var items []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decode list: %w", err)
		}
	} else {
		items = []json.RawMessage{data}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(FlexibleStringValue(item)); s != "" {
			out = append(out, s)
		}
	}
	*f = out
	return nil
}

// Strings returns the list as a plain slice.
func (f FlexStringList) Strings() []string {
	return []string(f)
}
