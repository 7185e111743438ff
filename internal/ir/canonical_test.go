package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null{}, "null"},
		{"string", String("hello"), `"hello"`},
		{"int", Int(42), "42"},
		{"negative", Int(-7), "-7"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonicalKeyOrder(t *testing.T) {
	obj := Object{
		"zebra": Int(1),
		"Alpha": Int(2),
		"alpha": Int(3),
	}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)

	// Uppercase sorts first in UTF-16 code unit order.
	assert.Equal(t, `{"Alpha":2,"alpha":3,"zebra":1}`, string(got))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	obj := Object{"html": String("<a href=\"x\">&</a>")}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<a href=\"x\">&</a>"}`, string(got))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// e + combining acute accent (NFD) normalizes to precomposed é.
	decomposed := Object{"name": String("José")}
	precomposed := Object{"name": String("José")}

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)

	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	// RFC 8785 forbids escaping U+2028/U+2029; they must stay literal.
	obj := Object{"s": String("a\u2028b\u2029c")}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"s\":\"a\u2028b\u2029c\"}", string(got))
}

func TestMarshalCanonicalLiteralBackslashU(t *testing.T) {
	// A literal backslash followed by "u2028" is not an escape sequence
	// and must survive untouched.
	obj := Object{"s": String("\\u2028")}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"s":"\\u2028"}`, string(got))
}

func TestMarshalCanonicalNested(t *testing.T) {
	obj := Object{
		"b": Array{Int(1), Null{}, Object{"y": Bool(true), "x": String("v")}},
		"a": Int(0),
	}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":0,"b":[1,null,{"x":"v","y":true}]}`, string(got))
}

func TestMarshalCanonicalNilValue(t *testing.T) {
	_, err := MarshalCanonical(nil)
	require.Error(t, err)
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	obj := Object{
		"one":   Int(1),
		"two":   String("2"),
		"three": Array{Bool(false)},
	}

	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}
