// Package diag renders the stage errors produced by the lexer, parser,
// analyzer, type checker, and interpreter into the stderr format described
// in §6/§7: a one-line message followed by a source excerpt with a caret
// under the offending column.
package diag

import (
	"fmt"
	"io"
	"strings"
)

// Diagnostic is the common shape every stage's error is rendered through.
type Diagnostic struct {
	Severity string // "error" or "warning"
	Message  string
	Line     int
	Column   int
	File     string
}

// Report formats and writes one diagnostic against the original source,
// e.g.:
//
//	error: incompatible types: expected Number, found Text
//	  --> script.wfl:2:11
//	  |
//	2 | change x to "oops"
//	  |           ^
func Report(w io.Writer, d Diagnostic, source string) {
	fmt.Fprintf(w, "%s: %s\n", d.Severity, d.Message)
	file := d.File
	if file == "" {
		file = "<input>"
	}
	fmt.Fprintf(w, "  --> %s:%d:%d\n", file, d.Line, d.Column)

	line := sourceLine(source, d.Line)
	if line == "" {
		return
	}
	gutter := fmt.Sprintf("%d", d.Line)
	pad := strings.Repeat(" ", len(gutter))
	fmt.Fprintf(w, "%s |\n", pad)
	fmt.Fprintf(w, "%s | %s\n", gutter, line)
	col := d.Column - 1
	if col < 0 {
		col = 0
	}
	fmt.Fprintf(w, "%s | %s^\n", pad, strings.Repeat(" ", col))
}

// ReportAll renders a batch of diagnostics in the order given; used after the
// parse/analyze/type-check stages, which collect rather than stop at the
// first failure.
func ReportAll(w io.Writer, ds []Diagnostic, source string) {
	for _, d := range ds {
		Report(w, d, source)
	}
}

func sourceLine(source string, n int) string {
	if n < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if n > len(lines) {
		return ""
	}
	return lines[n-1]
}
