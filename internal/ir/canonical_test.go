package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"int", IRInt(42), "42"},
		{"max int64", IRInt(9223372036854775807), "9223372036854775807"},
		{"bool", IRBool(true), "true"},
		{"empty object", IRObject{}, "{}"},
		{"array", IRArray{IRInt(1), IRString("a")}, `[1,"a"]`},
		{"go map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedNestedKeys(t *testing.T) {
	obj := IRObject{
		"z": IRObject{"b": IRInt(1), "a": IRInt(2)},
		"a": IRInt(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("<alice & bob>"))
	require.NoError(t, err)
	assert.Equal(t, `"<alice & bob>"`, string(result))
}

func TestMarshalCanonicalRejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(IRObject{"x": IRNull{}})
	assert.Error(t, err)
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	result, err := MarshalCanonical(IRString("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(IRString("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// a literal backslash followed by "u2028" stays escaped text
	result, err = MarshalCanonical(IRString(`literal \u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"literal \\u2028"`, string(result))
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates starting 0xD83D, which sort before U+FF01
	obj := IRObject{"\uFF01": IRInt(1), "\U0001F600": IRInt(2), "a": IRInt(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "\uFF01"}, obj.SortedKeys())
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{
		"status": IRString("Open"),
		"wager":  IRInt(100),
		"ready":  IRBool(true),
		"list":   IRArray{IRInt(1)},
	}

	data, err := obj.MarshalJSON()
	require.NoError(t, err)

	var back IRObject
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, obj, back)
	assert.Equal(t, "Open", back.String("status"))
	n, ok := back.Int("wager")
	assert.True(t, ok)
	assert.Equal(t, int64(100), n)
	assert.True(t, back.Bool("ready"))
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	var obj IRObject
	assert.Error(t, obj.UnmarshalJSON([]byte(`{"x":1.5}`)))
}

func TestToIRObject(t *testing.T) {
	obj, err := ToIRObject(map[string]any{"wager": 100, "who": "alice", "whole": 3.0})
	require.NoError(t, err)
	assert.Equal(t, IRObject{"wager": IRInt(100), "who": IRString("alice"), "whole": IRInt(3)}, obj)

	_, err = ToIRObject(map[string]any{"x": nil})
	assert.Error(t, err)

	_, err = ToIRObject(map[string]any{"x": 0.25})
	assert.Error(t, err)
}
