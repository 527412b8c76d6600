package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/wfl/internal/token"
)

func kinds(t *testing.T, toks []token.Token) []token.Kind {
	t.Helper()
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestTokenizeFoldsMultiWordIdentifier(t *testing.T) {
	toks, err := Tokenize(`store the user name as "Ada"`)
	require.NoError(t, err)
	require.Len(t, toks, 5)
	assert.Equal(t, token.STORE, toks[0].Kind)
	assert.Equal(t, token.IDENT, toks[1].Kind)
	assert.Equal(t, "the user name", toks[1].Lexeme)
	assert.Equal(t, 3, toks[1].Length)
	assert.Equal(t, token.AS, toks[2].Kind)
	assert.Equal(t, token.STRING, toks[3].Kind)
	assert.Equal(t, "Ada", toks[3].Lexeme)
}

func TestTokenizeStopsIdentifierFoldingAtKeyword(t *testing.T) {
	toks, err := Tokenize("display user name")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, token.DISPLAY, toks[0].Kind)
	assert.Equal(t, "user name", toks[1].Lexeme)
}

func TestTokenizeNumberLiterals(t *testing.T) {
	toks, err := Tokenize("store x as 42")
	require.NoError(t, err)
	require.Len(t, toks, 5)
	assert.Equal(t, token.INT, toks[3].Kind)
	assert.Equal(t, "42", toks[3].Lexeme)

	toks, err = Tokenize("store x as 3.5")
	require.NoError(t, err)
	require.Len(t, toks, 5)
	assert.Equal(t, token.FLOAT, toks[3].Kind)
	assert.Equal(t, "3.5", toks[3].Lexeme)
}

func TestTokenizeSkipsLineComments(t *testing.T) {
	toks, err := Tokenize("display 1 // a trailing remark\ndisplay 2")
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{token.DISPLAY, token.INT, token.DISPLAY, token.INT, token.EOF}, kinds(t, toks))
}

func TestTokenizeUnterminatedStringIsAnError(t *testing.T) {
	_, err := Tokenize(`display "oops`)
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
}

func TestTokenizeUnrecognizedCharacterIsAnError(t *testing.T) {
	_, err := Tokenize("display @")
	require.Error(t, err)
}

func TestTokenizeEscapedQuoteInString(t *testing.T) {
	toks, err := Tokenize(`display "she said \"hi\""`)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, `she said "hi"`, toks[1].Lexeme)
}
