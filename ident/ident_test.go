package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Plausibility(t *testing.T) {
	cases := []struct {
		text string
		ok   bool
	}{
		{"x", true},
		{"Var1", true},
		{"@scratch", true},
		{"#temp", true},
		{"$sysmis", true},
		{"!macro", true},
		{"1var", false},
		{"", false},
		{"!", false},
		{"AND", false},
		{"and", false},
		{"a.b_c", true},
		{"a b", false},
	}

	for _, tc := range cases {
		_, err := New(tc.text, nil)
		if tc.ok {
			assert.NoErrorf(t, err, "New(%q)", tc.text)
		} else {
			assert.Errorf(t, err, "New(%q)", tc.text)
		}
	}
}

func TestIdentifier_CaseFoldedEquality(t *testing.T) {
	a, err := New("FooBar", nil)
	require.NoError(t, err)
	b, err := New("foobar", nil)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
}

func TestClass(t *testing.T) {
	ordinary, _ := New("x", nil)
	system, _ := New("$sysmis", nil)
	scratch, _ := New("#t", nil)
	macro, _ := New("!m", nil)

	assert.Equal(t, Ordinary, ordinary.Class())
	assert.Equal(t, System, system.Class())
	assert.Equal(t, Scratch, scratch.Class())
	assert.Equal(t, MacroClass, macro.Class())
}

func TestMatchesKeyword(t *testing.T) {
	assert.True(t, MatchesKeyword("PRI", "PRINT", 3))
	assert.True(t, MatchesKeyword("print", "PRINT", 3))
	assert.False(t, MatchesKeyword("PR", "PRINT", 3))
	assert.False(t, MatchesKeyword("PRINTS", "PRINT", 3))
}

func TestEncoding_UTF8RoundTrip(t *testing.T) {
	enc := UTF8()
	raw, _, err := enc.Encode("hello")
	require.NoError(t, err)
	text, replaced, err := enc.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 0, replaced)
}

func TestNew_EncodabilityRejected(t *testing.T) {
	enc, err := NewEncoding("windows-1252")
	require.NoError(t, err)
	_, err = New("日本語", enc)
	assert.Error(t, err)
}
