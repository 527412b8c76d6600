// Package dump renders lexer/parser output for the `--lex`/`--ast` CLI
// flags (§6) and writes the post-mortem debug report for an unhandled
// runtime error: a deterministic CBOR encoding alongside a human-readable
// form, the same split the teacher's planfmt package uses for plans.
package dump

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/aledsdavies/wfl/internal/ast"
	"github.com/aledsdavies/wfl/internal/token"
)

// Tokens writes one line per token, in source order, for `wfl --lex`.
func Tokens(w io.Writer, toks []token.Token) {
	for _, t := range toks {
		fmt.Fprintf(w, "%-12s %-20q %s\n", t.Kind, t.Lexeme, t.Position)
	}
}

// TokensCBOR encodes toks with CBOR's canonical (deterministic) mode, so
// two runs over identical source produce byte-identical output.
func TokensCBOR(toks []token.Token) ([]byte, error) {
	return canonicalMarshal(toks)
}

// AST writes an indented textual tree of prog for `wfl --ast`.
func AST(w io.Writer, prog *ast.Program) {
	for _, stmt := range prog.Statements {
		writeNode(w, stmt, 0)
	}
}

func writeNode(w io.Writer, n ast.Node, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Fprintf(w, "%s%T @%d:%d\n", indent, n, n.Line(), n.Column())
	for _, child := range children(n) {
		writeNode(w, child, depth+1)
	}
}

// children enumerates the immediate Statement/Expression operands of n, for
// the indented --ast dump; leaf nodes (literals, Break, ...) return nil.
func children(n ast.Node) []ast.Node {
	var out []ast.Node
	add := func(nodes ...ast.Node) {
		for _, c := range nodes {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	addStmts := func(stmts []ast.Statement) {
		for _, s := range stmts {
			out = append(out, s)
		}
	}
	switch v := n.(type) {
	case *ast.VariableDeclaration:
		add(v.Value)
	case *ast.Assignment:
		add(v.Value)
	case *ast.IfStatement:
		add(v.Condition)
		addStmts(v.Then)
		addStmts(v.Else)
	case *ast.SingleLineIf:
		add(v.Condition, v.Then, v.Else)
	case *ast.Display:
		add(v.Value)
	case *ast.ActionDefinition:
		addStmts(v.Body)
	case *ast.Return:
		add(v.Value)
	case *ast.ExpressionStatement:
		add(v.Expression)
	case *ast.CountLoop:
		add(v.Start, v.End, v.Step)
		addStmts(v.Body)
	case *ast.ForEachLoop:
		add(v.Collection)
		addStmts(v.Body)
	case *ast.WhileLoop:
		add(v.Condition)
		addStmts(v.Body)
	case *ast.RepeatUntilLoop:
		add(v.Condition)
		addStmts(v.Body)
	case *ast.RepeatWhileLoop:
		add(v.Condition)
		addStmts(v.Body)
	case *ast.ForeverLoop:
		addStmts(v.Body)
	case *ast.Try:
		addStmts(v.Body)
		addStmts(v.When)
		addStmts(v.Otherwise)
	case *ast.WaitFor:
		add(v.Inner)
	case *ast.Push:
		add(v.List, v.Value)
	case *ast.BinaryOperation:
		add(v.Left, v.Right)
	case *ast.UnaryOperation:
		add(v.Expr)
	case *ast.Concatenation:
		add(v.Left, v.Right)
	case *ast.FunctionCall:
		add(v.Callee)
		for _, a := range v.Arguments {
			out = append(out, a)
		}
	case *ast.ActionCall:
		for _, a := range v.Arguments {
			out = append(out, a)
		}
	case *ast.MemberAccess:
		add(v.Object)
	case *ast.IndexAccess:
		add(v.Collection, v.Index)
	case *ast.PatternMatch:
		add(v.Text, v.Pattern)
	case *ast.PatternFind:
		add(v.Text, v.Pattern)
	case *ast.PatternReplace:
		add(v.Text, v.Pattern, v.Replacement)
	case *ast.PatternSplit:
		add(v.Text, v.Pattern)
	case *ast.AwaitExpression:
		add(v.Expr)
	}
	return out
}

func canonicalMarshal(v any) ([]byte, error) {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("building canonical CBOR encoder: %w", err)
	}
	return encMode.Marshal(v)
}

// DebugReport is the post-mortem artifact §7 names for an unhandled runtime
// error: the call stack, the top frame's locals, and a source excerpt.
type DebugReport struct {
	GeneratedAt time.Time         `yaml:"generated_at"`
	Error       string            `yaml:"error"`
	Line        int               `yaml:"line"`
	Column      int               `yaml:"column"`
	CallStack   []string          `yaml:"call_stack"`
	TopLocals   map[string]string `yaml:"top_locals"`
	SourceLine  string            `yaml:"source_line"`
}

// WriteDebugReport writes r as YAML front matter, matching the teacher's
// habit of pairing a deterministic machine form with a readable one.
func WriteDebugReport(w io.Writer, r DebugReport) error {
	fmt.Fprintln(w, "---")
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(r); err != nil {
		return err
	}
	fmt.Fprintln(w, "---")
	return nil
}
