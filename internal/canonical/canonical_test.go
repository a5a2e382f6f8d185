package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"int64", int64(-9223372036854775808), "-9223372036854775808"},
		{"bool", true, "true"},
		{"empty object", map[string]any{}, "{}"},
		{"string list", []string{"b", "a"}, `["b","a"]`},
		{"sorted keys", map[string]string{"zebra": "1", "alpha": "2"}, `{"alpha":"2","zebra":"1"}`},
		{"nested", map[string]any{"z": map[string]any{"b": 1, "a": 2}, "a": []any{"x", false}},
			`{"a":["x",false],"z":{"a":2,"b":1}}`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash before u2028 text", `a\u2028`, `"a\\u2028"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshal_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates D83D DE00 and sorts before U+FF61
	// in UTF-16 while its UTF-8 bytes sort after.
	got, err := Marshal(map[string]any{"\uff61": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uff61\":1}", string(got))
}

func TestMarshal_Rejects(t *testing.T) {
	for _, v := range []any{nil, 1.5, map[string]any{"a": nil}, struct{}{}} {
		_, err := Marshal(v)
		assert.Error(t, err, "%#v", v)
	}
}

func TestDigest(t *testing.T) {
	a, err := Digest(DomainFingerprint, map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	b, err := Digest(DomainFingerprint, map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	other, err := Digest(DomainVersionables, map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.NotEqual(t, a, other, "domains separate digests")
}
