package interpreter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"weak"

	"github.com/aledsdavies/wfl/internal/ast"
)

// Value is any runtime WFL value (§3). Number/Text/Bool are immutable;
// List/Object are shared, mutable reference types; Function captures its
// defining Environment weakly (invariant I2).
type Value interface {
	valueNode()
	String() string
}

type Number float64

func (Number) valueNode()        {}
func (n Number) String() string {
	if n == Number(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

type Text string

func (Text) valueNode()         {}
func (t Text) String() string { return string(t) }

type Bool bool

func (Bool) valueNode()        {}
func (b Bool) String() string {
	if b {
		return "yes"
	}
	return "no"
}

// Null represents WFL's "nothing".
type Null struct{}

func (Null) valueNode()        {}
func (Null) String() string { return "nothing" }

// List is a mutable, shared sequence (§3).
type List struct {
	Items []Value
}

func (*List) valueNode() {}
func (l *List) String() string {
	parts := make([]string, len(l.Items))
	for i, v := range l.Items {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Object is a mutable, shared name->Value mapping.
type Object struct {
	Fields map[string]Value
	order  []string
}

func NewObject() *Object { return &Object{Fields: map[string]Value{}} }

func (o *Object) Set(name string, v Value) {
	if _, exists := o.Fields[name]; !exists {
		o.order = append(o.order, name)
	}
	o.Fields[name] = v
}

func (*Object) valueNode() {}
func (o *Object) String() string {
	parts := make([]string, 0, len(o.order))
	for _, name := range o.order {
		parts = append(parts, fmt.Sprintf("%s: %s", name, o.Fields[name].String()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Pattern is a compiled regex literal (SPEC_FULL §C item 3): AST Literal
// nodes of PatternLiteral kind compile on evaluation through the
// package-level patternCache in pattern.go, keyed by source text.
type Pattern struct {
	Source   string
	Compiled *regexp.Regexp
}

func (*Pattern) valueNode()        {}
func (p *Pattern) String() string { return "pattern " + strconv.Quote(p.Source) }

// Function is a user-defined action value. CapturedEnv is a non-owning
// weak back-reference to the defining scope (invariant I2): the
// Environment holds the Function strongly, breaking the would-be cycle.
type Function struct {
	Name        string
	Params      []ast.Parameter
	Body        []ast.Statement
	CapturedEnv weak.Pointer[Environment]
	DefinedAt   ast.NodePos
}

func (*Function) valueNode() {}
func (f *Function) String() string {
	if f.Name != "" {
		return "action " + f.Name
	}
	return "anonymous action"
}

// NativeFunction is a host-provided callable (stdlib, I/O) invoked by the
// evaluator the same way a user Function is (§4.5).
type NativeFunction struct {
	Name string
	Fn   func(args []Value) (Value, error)
}

func (*NativeFunction) valueNode()        {}
func (n *NativeFunction) String() string { return "native " + n.Name }

// Truthy implements the WFL notion of a condition value (conditions are
// type-checked to Boolean already; this is the runtime fallback used by
// if/loop conditions and the not/and/or operators).
func Truthy(v Value) bool {
	switch val := v.(type) {
	case Bool:
		return bool(val)
	case Null:
		return false
	default:
		return true
	}
}
