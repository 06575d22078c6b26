package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"min int64", int64(-9223372036854775808), "-9223372036854775808"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty strings", []string{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"strings", []string{"a", "b"}, `["a","b"]`},
		{"mixed array", []any{int64(1), "two", true}, `[1,"two",true]`},
		{"string map", map[string]string{"b": "2", "a": "1"}, `{"a":"1","b":"2"}`},
		{"time", time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("X", 3600)), `"2026-03-01T08:00:00Z"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{
			"b": 1,
			"a": 2,
		},
		"a": 3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair D800 DC00, which sorts before
	// E000 in UTF-16 but after it in UTF-8.
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{
		"html": "<script>alert('x')</script>",
		"amp":  "a & b",
	})
	require.NoError(t, err)

	assert.Contains(t, string(result), "<script>")
	assert.Contains(t, string(result), "a & b")
	assert.NotContains(t, string(result), `\u003c`)
	assert.NotContains(t, string(result), `\u0026`)
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
		msg   string
	}{
		{"null", nil, "null"},
		{"float64", 3.14, "float"},
		{"float32", float32(3.14), "float"},
		{"nested float", map[string]any{"x": []any{1.5}}, "float"},
		{"unsupported", struct{}{}, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00E9"
	decomposed := "cafe\u0301"

	a, err := MarshalCanonical(map[string]any{composed: composed})
	require.NoError(t, err)
	b, err := MarshalCanonical(map[string]any{decomposed: decomposed})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator", "a\u2029b", "\"a\u2029b\""},
		{"literal escape text", `see \u2028`, `"see \\u2028"`},
		{"literal and actual", "lit \\u2028 and \u2028", "\"lit \\\\u2028 and \u2028\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalCanonicaler(t *testing.T) {
	s := Statement{
		ID:         "principle-1",
		Kind:       StatementPrinciple,
		Title:      "Verified listings",
		Text:       "Guests must never pay for a listing that does not exist.",
		Source:     LabelProblem,
		Confidence: ConfidenceMax,
	}

	a, err := MarshalCanonical(s)
	require.NoError(t, err)
	b, err := MarshalCanonical(s)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"id":"principle-1"`)
}
