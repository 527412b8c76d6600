package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportIncludesMessageLocationAndCaret(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, Diagnostic{
		Severity: "error",
		Message:  "incompatible types: expected Number, found Text",
		Line:     2,
		Column:   11,
		File:     "script.wfl",
	}, "store x as 1\nchange x to \"oops\"\n")

	out := buf.String()
	assert.Contains(t, out, "error: incompatible types: expected Number, found Text")
	assert.Contains(t, out, "--> script.wfl:2:11")
	assert.Contains(t, out, "change x to \"oops\"")
	assert.Contains(t, out, "^")
}

func TestReportDefaultsFileNameWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, Diagnostic{Severity: "error", Message: "oops", Line: 1, Column: 1}, "display 1\n")
	assert.Contains(t, buf.String(), "--> <input>:1:1")
}

func TestReportOmitsExcerptWhenLineOutOfRange(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, Diagnostic{Severity: "error", Message: "oops", Line: 99, Column: 1}, "display 1\n")
	out := buf.String()
	assert.NotContains(t, out, "|")
}

func TestReportAllRendersEveryDiagnosticInOrder(t *testing.T) {
	var buf bytes.Buffer
	ReportAll(&buf, []Diagnostic{
		{Severity: "warning", Message: "first", Line: 1, Column: 1},
		{Severity: "error", Message: "second", Line: 2, Column: 1},
	}, "display 1\ndisplay 2\n")
	out := buf.String()
	firstIdx := strings.Index(out, "first")
	secondIdx := strings.Index(out, "second")
	assert.True(t, firstIdx >= 0 && secondIdx > firstIdx)
}
