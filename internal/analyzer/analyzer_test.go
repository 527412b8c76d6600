package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/wfl/internal/parser"
)

func analyze(t *testing.T, source string) (*Result, []Diagnostic) {
	t.Helper()
	prog, errs := parser.Parse(source)
	require.Empty(t, errs, "expected source to parse cleanly")
	return Analyze(prog)
}

func TestAnalyzeCleanProgramHasNoDiagnostics(t *testing.T) {
	_, diags := analyze(t, `store x as 5
display x
`)
	assert.Empty(t, diags)
}

func TestAnalyzeFlagsUndefinedName(t *testing.T) {
	_, diags := analyze(t, `display missing name`)
	require.Len(t, diags, 1)
	assert.Equal(t, Error, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "undefined name")
}

func TestAnalyzeSuggestsCloseName(t *testing.T) {
	_, diags := analyze(t, `store total as 1
display totla
`)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "did you mean")
}

func TestAnalyzeFlagsUnusedVariable(t *testing.T) {
	result, diags := analyze(t, `store x as 5`)
	require.Len(t, diags, 1)
	assert.Equal(t, Warning, diags[0].Severity)
	assert.True(t, result.OK)
}

func TestAnalyzeFlagsShadowing(t *testing.T) {
	_, diags := analyze(t, `
store x as 1
check if x is equal to 1:
  store x as 2
  display x
end check
`)
	var sawShadow bool
	for _, d := range diags {
		if d.Severity == Warning {
			sawShadow = sawShadow || strings.Contains(d.Message, "shadows")
		}
	}
	assert.True(t, sawShadow)
}

func TestAnalyzeFlagsUnreachableCode(t *testing.T) {
	_, diags := analyze(t, `
define action called f:
  give back 1
  display "dead"
end action
`)
	var sawUnreachable bool
	for _, d := range diags {
		sawUnreachable = sawUnreachable || strings.Contains(d.Message, "unreachable")
	}
	assert.True(t, sawUnreachable)
}

func TestAnalyzeFlagsActionArityMismatch(t *testing.T) {
	_, diags := analyze(t, `
define action called add needs a and b:
  give back a
end action
display add with 1
`)
	var sawArity bool
	for _, d := range diags {
		sawArity = sawArity || strings.Contains(d.Message, "expects 2 argument")
	}
	assert.True(t, sawArity)
}

func TestAnalyzeOKReflectsErrorSeverityOnly(t *testing.T) {
	result, diags := analyze(t, `store unused as 1`)
	require.Len(t, diags, 1)
	assert.Equal(t, Warning, diags[0].Severity)
	assert.True(t, result.OK, "a warning-only result should still be OK")
}
