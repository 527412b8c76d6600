package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/wfl/internal/parser"
)

func checkSource(t *testing.T, source string) []*TypeError {
	t.Helper()
	prog, errs := parser.Parse(source)
	require.Empty(t, errs, "expected source to parse cleanly")
	return Check(prog, map[string]string{})
}

func TestCheckCleanArithmeticHasNoErrors(t *testing.T) {
	errs := checkSource(t, `
store x as 5
store y as x plus 3
display y
`)
	assert.Empty(t, errs)
}

func TestCheckRejectsArithmeticOnText(t *testing.T) {
	errs := checkSource(t, `
store name as "Ada"
store total as name minus 1
`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "requires two Numbers")
}

func TestCheckAllowsPlusToConcatenateTextAndNumber(t *testing.T) {
	errs := checkSource(t, `
store age as 5
display "age: " plus age
`)
	assert.Empty(t, errs)
}

func TestCheckRejectsReassignmentOfIncompatibleType(t *testing.T) {
	errs := checkSource(t, `
store x as 5
change x to "oops"
`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "incompatible")
}

func TestCheckRequiresBooleanCondition(t *testing.T) {
	errs := checkSource(t, `
check if 5:
  display "huh"
end check
`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "must be Boolean")
}

func TestCheckCountLoopRequiresNumberBounds(t *testing.T) {
	errs := checkSource(t, `
count from "a" to 10:
  display count
end count
`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "expected Number")
}

func TestCheckActionReturnTypeMismatch(t *testing.T) {
	prog, errs := parser.Parse(`
define action called greet:
  give back 5
end action
`)
	require.Empty(t, errs)
	typeErrs := Check(prog, map[string]string{"greet": "Text"})
	require.NotEmpty(t, typeErrs)
	assert.Contains(t, typeErrs[0].Error(), "return value has type")
}
