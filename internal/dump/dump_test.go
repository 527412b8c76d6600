package dump

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/wfl/internal/lexer"
	"github.com/aledsdavies/wfl/internal/parser"
)

func TestTokensWritesOneLinePerToken(t *testing.T) {
	toks, err := lexer.Tokenize(`display "hi"`)
	require.NoError(t, err)
	var buf bytes.Buffer
	Tokens(&buf, toks)
	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.Equal(t, len(toks), lines)
	assert.Contains(t, buf.String(), "display")
	assert.Contains(t, buf.String(), "STRING")
}

func TestTokensCBORIsDeterministic(t *testing.T) {
	toks, err := lexer.Tokenize(`store x as 5`)
	require.NoError(t, err)
	a, err := TokensCBOR(toks)
	require.NoError(t, err)
	b, err := TokensCBOR(toks)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestASTWritesIndentedTree(t *testing.T) {
	prog, errs := parser.Parse(`store x as 5
display x
`)
	require.Empty(t, errs)
	var buf bytes.Buffer
	AST(&buf, prog)
	out := buf.String()
	assert.Contains(t, out, "VariableDeclaration")
	assert.Contains(t, out, "Display")
	assert.Contains(t, out, "Variable")
}

func TestWriteDebugReportWrapsYAMLFrontMatter(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDebugReport(&buf, DebugReport{
		GeneratedAt: time.Unix(0, 0).UTC(),
		Error:       "Division by zero",
		Line:        4,
		Column:      3,
		CallStack:   []string{"main"},
		TopLocals:   map[string]string{"x": "0"},
		SourceLine:  "store y as x divided by 0",
	})
	require.NoError(t, err)
	out := buf.String()
	assert.True(t, bytes.HasPrefix([]byte(out), []byte("---\n")))
	assert.Contains(t, out, "error: Division by zero")
	assert.Contains(t, out, "source_line:")
}
