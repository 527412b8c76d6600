package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/wfl/internal/ast"
)

// ignorePos treats every ast.NodePos as equal so cmp.Diff compares AST shape
// and literal values only, not source coordinates.
var ignorePos = cmp.Comparer(func(a, b ast.NodePos) bool { return true })

func parseOK(t *testing.T, source string) *ast.Program {
	t.Helper()
	prog, errs := Parse(source)
	require.Empty(t, errs, "expected source to parse without errors")
	return prog
}

func TestParseVariableDeclaration(t *testing.T) {
	prog := parseOK(t, `store x as 5`)
	require.Len(t, prog.Statements, 1)
	decl, ok := prog.Statements[0].(*ast.VariableDeclaration)
	require.True(t, ok)
	assert.Equal(t, "x", decl.Name)
}

func TestParseDisplayAndConcatenation(t *testing.T) {
	prog := parseOK(t, `display "hello" with name`)
	require.Len(t, prog.Statements, 1)
	disp, ok := prog.Statements[0].(*ast.Display)
	require.True(t, ok)
	_, ok = disp.Value.(*ast.Concatenation)
	assert.True(t, ok)
}

func TestParseIfBlockForm(t *testing.T) {
	prog := parseOK(t, `
check if x is greater than 5:
  display "big"
otherwise:
  display "small"
end check
`)
	require.Len(t, prog.Statements, 1)
	ifs, ok := prog.Statements[0].(*ast.IfStatement)
	require.True(t, ok)
	assert.Len(t, ifs.Then, 1)
	assert.Len(t, ifs.Else, 1)
}

func TestParseSingleLineIf(t *testing.T) {
	prog := parseOK(t, `if x is equal to 1 then display "one" otherwise display "other"`)
	require.Len(t, prog.Statements, 1)
	_, ok := prog.Statements[0].(*ast.SingleLineIf)
	assert.True(t, ok)
}

func TestParseCountLoopWithStepAndDownward(t *testing.T) {
	prog := parseOK(t, `
count from 10 to 1 by 2 downward:
  display count
end count
`)
	require.Len(t, prog.Statements, 1)
	loop, ok := prog.Statements[0].(*ast.CountLoop)
	require.True(t, ok)
	assert.True(t, loop.Downward)
	assert.NotNil(t, loop.Step)
}

func TestParseForEachReversed(t *testing.T) {
	prog := parseOK(t, `
for each item in items reversed:
  display item
end for
`)
	loop, ok := prog.Statements[0].(*ast.ForEachLoop)
	require.True(t, ok)
	assert.True(t, loop.Reversed)
	assert.Equal(t, "item", loop.ItemName)
}

func TestParseRepeatWhileTrueFoldsToForeverLoop(t *testing.T) {
	prog := parseOK(t, "repeat while true:\n  display 1\nend repeat\n")
	_, ok := prog.Statements[0].(*ast.ForeverLoop)
	assert.True(t, ok, "expected repeat-while-true to fold into ForeverLoop")
}

func TestParseBareRepeatIsForeverLoop(t *testing.T) {
	prog := parseOK(t, "repeat:\n  display 1\nend repeat\n")
	_, ok := prog.Statements[0].(*ast.ForeverLoop)
	assert.True(t, ok)
}

func TestParseActionDefinitionWithParamsAndReturn(t *testing.T) {
	prog := parseOK(t, `
define action called add needs a and b:
  give back a
end action
`)
	def, ok := prog.Statements[0].(*ast.ActionDefinition)
	require.True(t, ok)
	assert.Equal(t, "add", def.Name)
	require.Len(t, def.Parameters, 2)
	assert.Equal(t, "a", def.Parameters[0].Name)
	assert.Equal(t, "b", def.Parameters[1].Name)
}

func TestParseTryWithImplicitErrorName(t *testing.T) {
	prog := parseOK(t, `
try:
  display 1 divided by 0
when error:
  display "caught: " with error
end try
`)
	tr, ok := prog.Statements[0].(*ast.Try)
	require.True(t, ok)
	assert.Equal(t, "error", tr.ErrorName)
	assert.Nil(t, tr.Otherwise)
}

func TestParseTryWithExplicitErrorName(t *testing.T) {
	prog := parseOK(t, `
try:
  display 1 divided by 0
when error as problem:
  display problem
otherwise:
  display "fallback"
end try
`)
	tr, ok := prog.Statements[0].(*ast.Try)
	require.True(t, ok)
	assert.Equal(t, "problem", tr.ErrorName)
	assert.Len(t, tr.Otherwise, 1)
}

func TestParsePush(t *testing.T) {
	prog := parseOK(t, `push 5 to numbers`)
	push, ok := prog.Statements[0].(*ast.Push)
	require.True(t, ok)
	assert.NotNil(t, push.Value)
	assert.NotNil(t, push.List)
}

func TestParseOpenFileAndReadInto(t *testing.T) {
	prog := parseOK(t, `
open file at "data.txt" as handle
read from handle into contents
`)
	require.Len(t, prog.Statements, 2)
	_, ok := prog.Statements[0].(*ast.OpenFile)
	assert.True(t, ok)
	_, ok = prog.Statements[1].(*ast.ReadFile)
	assert.True(t, ok)
}

func TestParseRecoversFromErrorAndContinues(t *testing.T) {
	_, errs := Parse("store as 5\ndisplay 1\n")
	require.NotEmpty(t, errs)
}

func TestParseUnrecognizedKeywordSuggestsClosestMatch(t *testing.T) {
	_, errs := Parse("displey \"hi\"\n")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, `did you mean "display"?`)
}

func TestParseMissingEndProducesError(t *testing.T) {
	_, errs := Parse("count from 1 to 3:\n  display count\n")
	require.NotEmpty(t, errs)
}

// TestParseBinaryPrecedenceStructure checks the full expression tree rather
// than just its root, since "2 plus 3 times 4" only exercises precedence
// correctly if multiply binds tighter and nests on the right.
func TestParseBinaryPrecedenceStructure(t *testing.T) {
	prog := parseOK(t, `store x as 2 plus 3 times 4`)
	decl, ok := prog.Statements[0].(*ast.VariableDeclaration)
	require.True(t, ok)

	want := &ast.BinaryOperation{
		Left: &ast.Literal{Kind: ast.IntegerLiteral, Int: 2},
		Op:   ast.Plus,
		Right: &ast.BinaryOperation{
			Left:  &ast.Literal{Kind: ast.IntegerLiteral, Int: 3},
			Op:    ast.Multiply,
			Right: &ast.Literal{Kind: ast.IntegerLiteral, Int: 4},
		},
	}
	if diff := cmp.Diff(want, decl.Value, ignorePos); diff != "" {
		t.Errorf("parsed expression tree mismatch (-want +got):\n%s", diff)
	}
}

// TestParseIfConditionStructure diffs the whole condition subtree so a
// regression in operand ordering or operator choice fails with a precise
// pointer to the mismatched node instead of a vague type assertion failure.
func TestParseIfConditionStructure(t *testing.T) {
	prog := parseOK(t, `
check if x is greater than 5:
  display "big"
end check
`)
	ifs, ok := prog.Statements[0].(*ast.IfStatement)
	require.True(t, ok)

	want := &ast.BinaryOperation{
		Left:  &ast.Variable{Name: "x"},
		Op:    ast.GreaterThan,
		Right: &ast.Literal{Kind: ast.IntegerLiteral, Int: 5},
	}
	if diff := cmp.Diff(want, ifs.Condition, ignorePos); diff != "" {
		t.Errorf("parsed condition tree mismatch (-want +got):\n%s", diff)
	}
}
