package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupFindsKeyword(t *testing.T) {
	kind, ok := Lookup("display")
	assert.True(t, ok)
	assert.Equal(t, DISPLAY, kind)
}

func TestLookupRejectsOrdinaryWord(t *testing.T) {
	_, ok := Lookup("greeting")
	assert.False(t, ok)
}

func TestLookupMapsBooleanSynonyms(t *testing.T) {
	for _, word := range []string{"yes", "no", "true", "false"} {
		kind, ok := Lookup(word)
		assert.True(t, ok, word)
		assert.Equal(t, BOOLEAN, kind, word)
	}
}

func TestKindStringFallsBackForUnnamedKind(t *testing.T) {
	assert.Equal(t, "Kind(-1)", Kind(-1).String())
	assert.Equal(t, "display", DISPLAY.String())
}

func TestIsKeywordExcludesLiteralsAndPunctuation(t *testing.T) {
	assert.True(t, STORE.IsKeyword())
	assert.False(t, IDENT.IsKeyword())
	assert.False(t, COLON.IsKeyword())
}

func TestPositionString(t *testing.T) {
	p := Position{Line: 3, Column: 7}
	assert.Equal(t, "3:7", p.String())
}
