package interpreter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/wfl/internal/parser"
)

func runSource(t *testing.T, source string, opts ...Option) (string, Value, error) {
	t.Helper()
	prog, errs := parser.Parse(source)
	require.Empty(t, errs, "expected source to parse cleanly")

	var out bytes.Buffer
	allOpts := append([]Option{WithOutput(&out)}, opts...)
	in := New(allOpts...)
	v, err := in.Run(prog)
	return out.String(), v, err
}

func TestHelloWorld(t *testing.T) {
	out, _, err := runSource(t, `display "Hello, World!"`)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!\n", out)
}

func TestArithmeticPrecedence(t *testing.T) {
	out, _, err := runSource(t, "store x as 2 plus 3 times 4\ndisplay x")
	require.NoError(t, err)
	assert.Equal(t, "14\n", out)
}

func TestPlusConcatenatesTextAndNumberEitherSide(t *testing.T) {
	out, _, err := runSource(t, "store age as 5\ndisplay \"age: \" plus age")
	require.NoError(t, err)
	assert.Equal(t, "age: 5\n", out)

	out, _, err = runSource(t, "store age as 5\ndisplay age plus \" years old\"")
	require.NoError(t, err)
	assert.Equal(t, "5 years old\n", out)
}

func TestCountLoop(t *testing.T) {
	out, _, err := runSource(t, "count from 1 to 3:\n  display count\nend count")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestCountVariableIsScopedToLoop(t *testing.T) {
	out, _, err := runSource(t, "display count")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestForEachOverList(t *testing.T) {
	out, _, err := runSource(t, "store xs as [10, 20, 30]\nfor each n in xs:\n  display n\nend for")
	require.NoError(t, err)
	assert.Equal(t, "10\n20\n30\n", out)
}

func TestForEachReversed(t *testing.T) {
	out, _, err := runSource(t, "store xs as [10, 20, 30]\nfor each n in xs reversed:\n  display n\nend for")
	require.NoError(t, err)
	assert.Equal(t, "30\n20\n10\n", out)
}

func TestTryCatchesDivisionByZero(t *testing.T) {
	out, _, err := runSource(t, "try:\n  store y as 1 divided by 0\nwhen error:\n  display \"caught: \" with error\nend try")
	require.NoError(t, err)
	assert.Contains(t, out, "caught: Division by zero")
}

func TestActionCallAndReturn(t *testing.T) {
	out, _, err := runSource(t, "define action called double needs n:\n  give back n times 2\nend action\ndisplay double with 5")
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)
}

func TestBreakExitsLoopEarly(t *testing.T) {
	out, _, err := runSource(t, "count from 1 to 5:\n  check if count is equal to 3:\n    break\n  end check\n  display count\nend count")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", out)
}

func TestTimeoutErrorsOnUnboundedLoop(t *testing.T) {
	out, _, err := runSource(t, "count from 1 to 1000000000:\n  display count\nend count", WithTimeout(20*time.Millisecond))
	_ = out
	require.Error(t, err)
	rerr, ok := err.(*RuntimeError)
	require.True(t, ok)
	assert.Equal(t, Timeout, rerr.Kind)
}

func TestClosureCapturesEnclosingVariable(t *testing.T) {
	out, _, err := runSource(t, "store base as 100\ndefine action called addBase needs n:\n  give back n plus base\nend action\ndisplay addBase with 5")
	require.NoError(t, err)
	assert.Equal(t, "105\n", out)
}

func TestPushMutatesSharedList(t *testing.T) {
	out, _, err := runSource(t, "store xs as [1, 2]\npush 3 to xs\nfor each n in xs:\n  display n\nend for")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}
