// Package interpreter is the async tree-walking evaluator (§4.5): it turns
// a checked AST into a Value, threading environments, a call stack, and
// ControlFlow through a pair of mutually recursive eval functions.
package interpreter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
	"weak"

	"github.com/aledsdavies/wfl/internal/ast"
)

const (
	// maxCallDepth is the debug assertion of invariant I4.
	maxCallDepth = 10000
	// smallRangeIterationCap bounds count-loops over small explicit ranges
	// (§4.5); ranges wider than explicitRangeLiftThreshold rely on the
	// wall-clock timeout instead.
	smallRangeIterationCap     = 10000
	explicitRangeLiftThreshold = 1000000
	// defaultTimeout is used when the caller requests zero or a negative
	// duration; maxTimeout is the hard ceiling named in §4.5.
	defaultTimeout = 60 * time.Second
	maxTimeout     = 300 * time.Second
	// waitForPollTimeout bounds `wait for` on a variable (§4.5).
	waitForPollTimeout = 10 * time.Second
	waitForPollEvery   = 20 * time.Millisecond
)

// CallFrame records one active action activation for step-mode display and
// for post-mortem locals capture on error (§4.5 function call protocol).
type CallFrame struct {
	Name   string
	Line   int
	Column int
	Locals map[string]Value
}

// Interpreter owns the single-threaded evaluation of one Program (§5:
// "Interpretation is single-threaded and cooperative").
type Interpreter struct {
	ctx    context.Context
	cancel context.CancelFunc

	global   *Environment
	actions  map[string]*Function
	natives  map[string]*NativeFunction
	io       IoClient
	callSt   []*CallFrame
	countSeq int

	step     bool
	stepIn   *bufio.Reader
	out      io.Writer
	lastVars map[string]string

	timeout time.Duration
}

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithTimeout bounds total interpretation wall time; it is clamped to
// (0, maxTimeout].
func WithTimeout(d time.Duration) Option {
	return func(in *Interpreter) {
		if d <= 0 {
			d = defaultTimeout
		}
		if d > maxTimeout {
			d = maxTimeout
		}
		in.timeout = d
	}
}

// WithIoClient overrides the default filesystem/HTTP client, chiefly for
// tests.
func WithIoClient(c IoClient) Option {
	return func(in *Interpreter) { in.io = c }
}

// WithStepMode enables the interactive single-step prompt (§4.5), reading
// confirmations from stdin.
func WithStepMode(stdin io.Reader) Option {
	return func(in *Interpreter) {
		in.step = true
		in.stepIn = bufio.NewReader(stdin)
	}
}

// WithOutput redirects Display and step-trace output, chiefly for tests.
func WithOutput(out io.Writer) Option {
	return func(in *Interpreter) { in.out = out }
}

// New builds an Interpreter ready to Run a single Program.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		global:   NewEnvironment(nil),
		actions:  make(map[string]*Function),
		natives:  stdlib(),
		io:       NewFileIoClient(),
		lastVars: make(map[string]string),
	}
	in.timeout = defaultTimeout
	for _, opt := range opts {
		opt(in)
	}
	ctx, cancel := context.WithTimeout(context.Background(), in.timeout)
	in.ctx, in.cancel = ctx, cancel
	return in
}

// Run executes prog start to finish (Idle -> Running -> Completed/Failed/TimedOut).
func (in *Interpreter) Run(prog *ast.Program) (Value, error) {
	defer in.cancel()

	for _, stmt := range prog.Statements {
		if def, ok := stmt.(*ast.ActionDefinition); ok {
			in.actions[def.Name] = in.makeFunction(def, in.global)
		}
	}

	var last Value = Null{}
	for _, stmt := range prog.Statements {
		if _, ok := stmt.(*ast.ActionDefinition); ok {
			continue // already registered above
		}
		v, flow, err := in.evalStatement(stmt, in.global)
		if err != nil {
			return nil, err
		}
		if flow.Kind == FlowExit || flow.Kind == FlowReturn {
			return flow.Value, nil
		}
		if v != nil {
			last = v
		}
	}
	return last, nil
}

func (in *Interpreter) makeFunction(def *ast.ActionDefinition, env *Environment) *Function {
	return &Function{
		Name:        def.Name,
		Params:      def.Parameters,
		Body:        def.Body,
		CapturedEnv: weak.Make(env),
		DefinedAt:   def.NodePos,
	}
}

// checkBudget returns a Timeout RuntimeError once the interpreter's overall
// wall-clock budget is exhausted (§4.5: checked "before each
// statement/expression and inside every loop iteration").
func (in *Interpreter) checkBudget(pos ast.Node) error {
	select {
	case <-in.ctx.Done():
		in.callSt = nil
		return newRuntimeError(Timeout, pos.Line(), pos.Column(), "timeout: interpretation exceeded its time budget")
	default:
		return nil
	}
}

// ---- statements ----

func (in *Interpreter) evalBlock(stmts []ast.Statement, env *Environment) (Value, ControlFlow, error) {
	var last Value = Null{}
	for _, stmt := range stmts {
		v, flow, err := in.evalStatement(stmt, env)
		if err != nil {
			return nil, flowNone, err
		}
		if v != nil {
			last = v
		}
		if flow.Kind != FlowNone {
			return last, flow, nil
		}
	}
	return last, flowNone, nil
}

func (in *Interpreter) evalStatement(stmt ast.Statement, env *Environment) (Value, ControlFlow, error) {
	if err := in.checkBudget(stmt); err != nil {
		return nil, flowNone, err
	}
	if in.step {
		in.traceStep(stmt, env)
		if !in.promptContinue() {
			os.Exit(0)
		}
	}

	switch s := stmt.(type) {
	case *ast.VariableDeclaration:
		v, err := in.evalExpr(s.Value, env)
		if err != nil {
			return nil, flowNone, err
		}
		env.Define(s.Name, v)
		return v, flowNone, nil

	case *ast.Assignment:
		v, err := in.evalExpr(s.Value, env)
		if err != nil {
			return nil, flowNone, err
		}
		if err := env.Assign(s.Name, v); err != nil {
			return nil, flowNone, newRuntimeError(Generic, s.Line(), s.Column(), "%s", err)
		}
		return v, flowNone, nil

	case *ast.Display:
		v, err := in.evalExpr(s.Value, env)
		if err != nil {
			return nil, flowNone, err
		}
		fmt.Fprintln(in.writer(), v.String())
		return v, flowNone, nil

	case *ast.ExpressionStatement:
		v, err := in.evalExpr(s.Expression, env)
		return v, flowNone, err

	case *ast.IfStatement:
		cond, err := in.evalExpr(s.Condition, env)
		if err != nil {
			return nil, flowNone, err
		}
		if Truthy(cond) {
			v, flow, err := in.evalBlock(s.Then, NewEnvironment(env))
			return v, flow, err
		}
		if s.Else != nil {
			v, flow, err := in.evalBlock(s.Else, NewEnvironment(env))
			return v, flow, err
		}
		return Null{}, flowNone, nil

	case *ast.SingleLineIf:
		cond, err := in.evalExpr(s.Condition, env)
		if err != nil {
			return nil, flowNone, err
		}
		if Truthy(cond) {
			return in.evalStatement(s.Then, env)
		}
		if s.Else != nil {
			return in.evalStatement(s.Else, env)
		}
		return Null{}, flowNone, nil

	case *ast.ActionDefinition:
		in.actions[s.Name] = in.makeFunction(s, env)
		return Null{}, flowNone, nil

	case *ast.Return:
		if s.Value == nil {
			return Null{}, ControlFlow{Kind: FlowReturn, Value: Null{}}, nil
		}
		v, err := in.evalExpr(s.Value, env)
		if err != nil {
			return nil, flowNone, err
		}
		return v, ControlFlow{Kind: FlowReturn, Value: v}, nil

	case *ast.Break:
		return Null{}, ControlFlow{Kind: FlowBreak}, nil
	case *ast.Continue:
		return Null{}, ControlFlow{Kind: FlowContinue}, nil
	case *ast.Exit:
		return Null{}, ControlFlow{Kind: FlowExit, Value: Null{}}, nil

	case *ast.CountLoop:
		return in.evalCountLoop(s, env)
	case *ast.ForEachLoop:
		return in.evalForEachLoop(s, env)
	case *ast.WhileLoop:
		return in.evalLoop(s.NodePos, s.Body, env, func(e *Environment) (bool, error) {
			return in.evalCond(s.Condition, e)
		})
	case *ast.RepeatWhileLoop:
		return in.evalLoop(s.NodePos, s.Body, env, func(e *Environment) (bool, error) {
			return in.evalCond(s.Condition, e)
		})
	case *ast.RepeatUntilLoop:
		return in.evalLoop(s.NodePos, s.Body, env, func(e *Environment) (bool, error) {
			ok, err := in.evalCond(s.Condition, e)
			return !ok, err
		})
	case *ast.ForeverLoop:
		return in.evalLoop(s.NodePos, s.Body, env, func(e *Environment) (bool, error) {
			return true, nil
		})

	case *ast.OpenFile:
		path, err := in.evalExpr(s.Path, env)
		if err != nil {
			return nil, flowNone, err
		}
		h, err := in.io.Open(path.String())
		if err != nil {
			return nil, flowNone, newRuntimeError(IoError, s.Line(), s.Column(), "%s", err)
		}
		env.Define(s.VariableName, h)
		return h, flowNone, nil

	case *ast.ReadFile:
		src, err := in.evalExpr(s.Source, env)
		if err != nil {
			return nil, flowNone, err
		}
		h, ok := src.(Handle)
		if !ok {
			return nil, flowNone, newRuntimeError(InvalidHandle, s.Line(), s.Column(), "read requires an open file handle")
		}
		content, err := in.io.Read(h)
		if err != nil {
			return nil, flowNone, newRuntimeError(IoError, s.Line(), s.Column(), "%s", err)
		}
		env.Define(s.VariableName, Text(content))
		return Text(content), flowNone, nil

	case *ast.WriteFile:
		fileV, err := in.evalExpr(s.File, env)
		if err != nil {
			return nil, flowNone, err
		}
		h, ok := fileV.(Handle)
		if !ok {
			return nil, flowNone, newRuntimeError(InvalidHandle, s.Line(), s.Column(), "write requires an open file handle")
		}
		content, err := in.evalExpr(s.Content, env)
		if err != nil {
			return nil, flowNone, err
		}
		if err := in.io.Write(h, content.String(), s.Mode); err != nil {
			return nil, flowNone, newRuntimeError(IoError, s.Line(), s.Column(), "%s", err)
		}
		return Null{}, flowNone, nil

	case *ast.CloseFile:
		fileV, err := in.evalExpr(s.File, env)
		if err != nil {
			return nil, flowNone, err
		}
		h, ok := fileV.(Handle)
		if !ok {
			return nil, flowNone, newRuntimeError(InvalidHandle, s.Line(), s.Column(), "close requires an open file handle")
		}
		if err := in.io.Close(h); err != nil {
			return nil, flowNone, newRuntimeError(IoError, s.Line(), s.Column(), "%s", err)
		}
		return Null{}, flowNone, nil

	case *ast.HttpGet:
		url, err := in.evalExpr(s.URL, env)
		if err != nil {
			return nil, flowNone, err
		}
		body, err := in.io.HttpGet(url.String())
		if err != nil {
			return nil, flowNone, newRuntimeError(HttpError, s.Line(), s.Column(), "%s", err)
		}
		env.Define(s.VariableName, Text(body))
		return Text(body), flowNone, nil

	case *ast.HttpPost:
		url, err := in.evalExpr(s.URL, env)
		if err != nil {
			return nil, flowNone, err
		}
		data, err := in.evalExpr(s.Data, env)
		if err != nil {
			return nil, flowNone, err
		}
		body, err := in.io.HttpPost(url.String(), data.String())
		if err != nil {
			return nil, flowNone, newRuntimeError(HttpError, s.Line(), s.Column(), "%s", err)
		}
		env.Define(s.VariableName, Text(body))
		return Text(body), flowNone, nil

	case *ast.WaitFor:
		return in.evalWaitFor(s, env)

	case *ast.Try:
		return in.evalTry(s, env)

	case *ast.Push:
		listV, err := in.evalExpr(s.List, env)
		if err != nil {
			return nil, flowNone, err
		}
		list, ok := listV.(*List)
		if !ok {
			return nil, flowNone, newRuntimeError(TypeMismatch, s.Line(), s.Column(), "push target is not a list")
		}
		v, err := in.evalExpr(s.Value, env)
		if err != nil {
			return nil, flowNone, err
		}
		list.Items = append(list.Items, v)
		return list, flowNone, nil

	default:
		return nil, flowNone, newRuntimeError(Generic, stmt.Line(), stmt.Column(), "unsupported statement %T", stmt)
	}
}

func (in *Interpreter) evalCond(expr ast.Expression, env *Environment) (bool, error) {
	v, err := in.evalExpr(expr, env)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// evalLoop drives while/repeat-while/repeat-until/forever bodies, each of
// which shares the break/continue/timeout handling but differs only in the
// continuation predicate.
func (in *Interpreter) evalLoop(pos ast.NodePos, body []ast.Statement, env *Environment, cont func(*Environment) (bool, error)) (Value, ControlFlow, error) {
	var last Value = Null{}
	for {
		if err := in.checkBudget(pos); err != nil {
			return nil, flowNone, err
		}
		ok, err := cont(env)
		if err != nil {
			return nil, flowNone, err
		}
		if !ok {
			return last, flowNone, nil
		}
		v, flow, err := in.evalBlock(body, NewEnvironment(env))
		if err != nil {
			return nil, flowNone, err
		}
		if v != nil {
			last = v
		}
		switch flow.Kind {
		case FlowBreak:
			return last, flowNone, nil
		case FlowExit, FlowReturn:
			return last, flow, nil
		}
	}
}

func (in *Interpreter) evalCountLoop(s *ast.CountLoop, env *Environment) (Value, ControlFlow, error) {
	startV, err := in.evalExpr(s.Start, env)
	if err != nil {
		return nil, flowNone, err
	}
	endV, err := in.evalExpr(s.End, env)
	if err != nil {
		return nil, flowNone, err
	}
	start, ok1 := startV.(Number)
	end, ok2 := endV.(Number)
	if !ok1 || !ok2 {
		return nil, flowNone, newRuntimeError(TypeMismatch, s.Line(), s.Column(), "count loop bounds must be numbers")
	}
	step := Number(1)
	if s.Step != nil {
		stepV, err := in.evalExpr(s.Step, env)
		if err != nil {
			return nil, flowNone, err
		}
		sn, ok := stepV.(Number)
		if !ok {
			return nil, flowNone, newRuntimeError(TypeMismatch, s.Line(), s.Column(), "count loop step must be a number")
		}
		step = sn
	}
	if step == 0 {
		return nil, flowNone, newRuntimeError(Generic, s.Line(), s.Column(), "count loop step cannot be zero")
	}

	span := float64(end) - float64(start)
	if step < 0 {
		span = -span
	}
	explicitRange := span/float64(abs(step)) > explicitRangeLiftThreshold

	var last Value = Null{}
	iterations := 0
	cur := start
	for {
		if err := in.checkBudget(s); err != nil {
			return nil, flowNone, err
		}
		if s.Downward {
			if cur < end {
				break
			}
		} else {
			if cur > end {
				break
			}
		}
		if !explicitRange && iterations >= smallRangeIterationCap {
			return nil, flowNone, newRuntimeError(MaxIterations, s.Line(), s.Column(), "count loop exceeded %d iterations", smallRangeIterationCap)
		}
		iterations++

		loopEnv := NewEnvironment(env)
		loopEnv.Define("count", cur)
		v, flow, err := in.evalBlock(s.Body, loopEnv)
		if err != nil {
			return nil, flowNone, err
		}
		if v != nil {
			last = v
		}
		if flow.Kind == FlowBreak {
			break
		}
		if flow.Kind == FlowExit || flow.Kind == FlowReturn {
			return last, flow, nil
		}

		if s.Downward {
			cur -= step
		} else {
			cur += step
		}
	}
	return last, flowNone, nil
}

func abs(n Number) Number {
	if n < 0 {
		return -n
	}
	return n
}

func (in *Interpreter) evalForEachLoop(s *ast.ForEachLoop, env *Environment) (Value, ControlFlow, error) {
	collV, err := in.evalExpr(s.Collection, env)
	if err != nil {
		return nil, flowNone, err
	}
	list, ok := collV.(*List)
	if !ok {
		return nil, flowNone, newRuntimeError(TypeMismatch, s.Line(), s.Column(), "for each requires a list")
	}
	items := list.Items
	var last Value = Null{}
	for i := 0; i < len(items); i++ {
		if err := in.checkBudget(s); err != nil {
			return nil, flowNone, err
		}
		idx := i
		if s.Reversed {
			idx = len(items) - 1 - i
		}
		loopEnv := NewEnvironment(env)
		loopEnv.Define(s.ItemName, items[idx])
		v, flow, err := in.evalBlock(s.Body, loopEnv)
		if err != nil {
			return nil, flowNone, err
		}
		if v != nil {
			last = v
		}
		if flow.Kind == FlowBreak {
			break
		}
		if flow.Kind == FlowExit || flow.Kind == FlowReturn {
			return last, flow, nil
		}
	}
	return last, flowNone, nil
}

// evalWaitFor forces evaluation of the wrapped async operation; when the
// inner statement is a bare variable read it instead polls for the
// variable to become non-null, per §4.5.
func (in *Interpreter) evalWaitFor(s *ast.WaitFor, env *Environment) (Value, ControlFlow, error) {
	if es, ok := s.Inner.(*ast.ExpressionStatement); ok {
		if v, ok := es.Expression.(*ast.Variable); ok {
			deadline := time.Now().Add(waitForPollTimeout)
			for {
				if err := in.checkBudget(s); err != nil {
					return nil, flowNone, err
				}
				val, ok := env.Get(v.Name)
				if ok {
					if _, isNull := val.(Null); !isNull {
						return val, flowNone, nil
					}
				}
				if time.Now().After(deadline) {
					return nil, flowNone, newRuntimeError(Timeout, s.Line(), s.Column(), "wait for %s timed out after %s", v.Name, waitForPollTimeout)
				}
				time.Sleep(waitForPollEvery)
			}
		}
	}
	return in.evalStatement(s.Inner, env)
}

// evalTry runs body; on a RuntimeError it binds s.ErrorName and runs the
// when-block. It falls through to the optional otherwise-block only if the
// when-block itself errors (§7: "falls through to otherwise only if when
// itself errors") — otherwise never runs on an error-free body.
func (in *Interpreter) evalTry(s *ast.Try, env *Environment) (Value, ControlFlow, error) {
	bodyEnv := NewEnvironment(env)
	v, flow, err := in.evalBlock(s.Body, bodyEnv)
	if err == nil {
		return v, flow, nil
	}
	rerr, ok := err.(*RuntimeError)
	if !ok {
		return nil, flowNone, err
	}
	whenEnv := NewEnvironment(env)
	whenEnv.Define(s.ErrorName, Text(rerr.Message))
	wv, wflow, werr := in.evalBlock(s.When, whenEnv)
	if werr == nil {
		return wv, wflow, nil
	}
	if s.Otherwise == nil {
		return nil, flowNone, werr
	}
	return in.evalBlock(s.Otherwise, NewEnvironment(env))
}

// ---- expressions ----

func (in *Interpreter) evalExpr(expr ast.Expression, env *Environment) (Value, error) {
	if err := in.checkBudget(expr); err != nil {
		return nil, err
	}
	switch e := expr.(type) {
	case *ast.Literal:
		return in.evalLiteral(e, env)
	case *ast.Variable:
		return in.evalVariable(e, env)
	case *ast.BinaryOperation:
		return in.evalBinary(e, env)
	case *ast.UnaryOperation:
		return in.evalUnary(e, env)
	case *ast.Concatenation:
		l, err := in.evalExpr(e.Left, env)
		if err != nil {
			return nil, err
		}
		r, err := in.evalExpr(e.Right, env)
		if err != nil {
			return nil, err
		}
		return Text(l.String() + r.String()), nil
	case *ast.FunctionCall:
		return in.evalFunctionCall(e, env)
	case *ast.ActionCall:
		return in.evalActionCall(e, env)
	case *ast.MemberAccess:
		objV, err := in.evalExpr(e.Object, env)
		if err != nil {
			return nil, err
		}
		obj, ok := objV.(*Object)
		if !ok {
			return nil, newRuntimeError(TypeMismatch, e.Line(), e.Column(), "%s has no members", objV.String())
		}
		v, ok := obj.Fields[e.Property]
		if !ok {
			return nil, newRuntimeError(Generic, e.Line(), e.Column(), "no such field %q", e.Property)
		}
		return v, nil
	case *ast.IndexAccess:
		return in.evalIndexAccess(e, env)
	case *ast.PatternMatch:
		return in.evalPatternMatch(e, env)
	case *ast.PatternFind:
		return in.evalPatternFind(e, env)
	case *ast.PatternReplace:
		return in.evalPatternReplace(e, env)
	case *ast.PatternSplit:
		return in.evalPatternSplit(e, env)
	case *ast.AwaitExpression:
		// I/O is already synchronous in this evaluator; await simply forces
		// evaluation of the wrapped expression (§4.5 "forces evaluation").
		return in.evalExpr(e.Expr, env)
	default:
		return nil, newRuntimeError(Generic, expr.Line(), expr.Column(), "unsupported expression %T", expr)
	}
}

func (in *Interpreter) evalLiteral(lit *ast.Literal, env *Environment) (Value, error) {
	switch lit.Kind {
	case ast.StringLiteral:
		return Text(lit.Str), nil
	case ast.IntegerLiteral:
		return Number(lit.Int), nil
	case ast.FloatLiteral:
		return Number(lit.Float), nil
	case ast.BooleanLiteral:
		return Bool(lit.Bool), nil
	case ast.NothingLiteral:
		return Null{}, nil
	case ast.PatternLiteral:
		return compilePattern(lit.Pattern, lit.Line(), lit.Column())
	case ast.ListLiteral:
		items := make([]Value, len(lit.List))
		for i, el := range lit.List {
			v, err := in.evalExpr(el, env)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return &List{Items: items}, nil
	default:
		return nil, newRuntimeError(Generic, lit.Line(), lit.Column(), "unsupported literal kind")
	}
}

// evalVariable resolves a name; reading `count` outside any count-loop body
// yields 0 and writes a warning to stderr (invariant I3).
func (in *Interpreter) evalVariable(v *ast.Variable, env *Environment) (Value, error) {
	if val, ok := env.Get(v.Name); ok {
		return val, nil
	}
	if v.Name == "count" {
		fmt.Fprintf(os.Stderr, "warning: %d:%d: count read outside a count loop, using 0\n", v.Line(), v.Column())
		return Number(0), nil
	}
	if fn, ok := in.actions[v.Name]; ok {
		return fn, nil
	}
	if nf, ok := in.natives[v.Name]; ok {
		return nf, nil
	}
	return nil, newRuntimeError(Generic, v.Line(), v.Column(), "undefined variable %q", v.Name)
}

func (in *Interpreter) evalIndexAccess(e *ast.IndexAccess, env *Environment) (Value, error) {
	collV, err := in.evalExpr(e.Collection, env)
	if err != nil {
		return nil, err
	}
	idxV, err := in.evalExpr(e.Index, env)
	if err != nil {
		return nil, err
	}
	switch coll := collV.(type) {
	case *List:
		n, ok := idxV.(Number)
		if !ok {
			return nil, newRuntimeError(TypeMismatch, e.Line(), e.Column(), "list index must be a number")
		}
		i := int(n)
		if i < 0 || i >= len(coll.Items) {
			return nil, newRuntimeError(IndexOutOfBounds, e.Line(), e.Column(), "index %d out of bounds for list of length %d", i, len(coll.Items))
		}
		return coll.Items[i], nil
	case *Object:
		key, ok := idxV.(Text)
		if !ok {
			return nil, newRuntimeError(TypeMismatch, e.Line(), e.Column(), "object index must be text")
		}
		v, ok := coll.Fields[string(key)]
		if !ok {
			return nil, newRuntimeError(Generic, e.Line(), e.Column(), "no such field %q", key)
		}
		return v, nil
	default:
		return nil, newRuntimeError(TypeMismatch, e.Line(), e.Column(), "cannot index %s", collV.String())
	}
}

func (in *Interpreter) evalUnary(e *ast.UnaryOperation, env *Environment) (Value, error) {
	v, err := in.evalExpr(e.Expr, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.Not:
		return Bool(!Truthy(v)), nil
	case ast.Negate:
		n, ok := v.(Number)
		if !ok {
			return nil, newRuntimeError(TypeMismatch, e.Line(), e.Column(), "cannot negate %s", v.String())
		}
		return -n, nil
	default:
		return nil, newRuntimeError(Generic, e.Line(), e.Column(), "unsupported unary operator")
	}
}

func (in *Interpreter) evalBinary(e *ast.BinaryOperation, env *Environment) (Value, error) {
	l, err := in.evalExpr(e.Left, env)
	if err != nil {
		return nil, err
	}
	r, err := in.evalExpr(e.Right, env)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case ast.And:
		return Bool(Truthy(l) && Truthy(r)), nil
	case ast.Or:
		return Bool(Truthy(l) || Truthy(r)), nil
	case ast.Equals:
		return Bool(valuesEqual(l, r)), nil
	case ast.NotEquals:
		return Bool(!valuesEqual(l, r)), nil
	case ast.Contains:
		return in.evalContains(e, l, r)
	case ast.Plus:
		// Mirrors inferBinary's Plus rule (internal/types/checker.go): Text
		// on either side stringifies the other operand instead of requiring
		// both sides to be Number.
		lt, lIsText := l.(Text)
		rt, rIsText := r.(Text)
		if lIsText || rIsText {
			if !lIsText {
				lt = Text(l.String())
			}
			if !rIsText {
				rt = Text(r.String())
			}
			return lt + rt, nil
		}
	}

	ln, lok := l.(Number)
	rn, rok := r.(Number)
	if !lok || !rok {
		return nil, newRuntimeError(TypeMismatch, e.Line(), e.Column(), "operator %q requires numbers", e.Op.String())
	}
	switch e.Op {
	case ast.Plus:
		return ln + rn, nil
	case ast.Minus:
		return ln - rn, nil
	case ast.Multiply:
		return ln * rn, nil
	case ast.Divide:
		if rn == 0 {
			return nil, newRuntimeError(DivisionByZero, e.Line(), e.Column(), "Division by zero")
		}
		return ln / rn, nil
	case ast.GreaterThan:
		return Bool(ln > rn), nil
	case ast.LessThan:
		return Bool(ln < rn), nil
	case ast.GreaterThanOrEqual:
		return Bool(ln >= rn), nil
	case ast.LessThanOrEqual:
		return Bool(ln <= rn), nil
	default:
		return nil, newRuntimeError(Generic, e.Line(), e.Column(), "unsupported binary operator")
	}
}

func (in *Interpreter) evalContains(e *ast.BinaryOperation, l, r Value) (Value, error) {
	switch coll := l.(type) {
	case Text:
		rt, ok := r.(Text)
		if !ok {
			return nil, newRuntimeError(TypeMismatch, e.Line(), e.Column(), "contains on text requires text")
		}
		return Bool(strings.Contains(string(coll), string(rt))), nil
	case *List:
		for _, item := range coll.Items {
			if valuesEqual(item, r) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	default:
		return nil, newRuntimeError(TypeMismatch, e.Line(), e.Column(), "contains requires text or list")
	}
}

func valuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	default:
		return a == b
	}
}

// ---- calls ----

func (in *Interpreter) evalFunctionCall(e *ast.FunctionCall, env *Environment) (Value, error) {
	calleeV, err := in.evalExpr(e.Callee, env)
	if err != nil {
		return nil, err
	}
	args := make([]Value, len(e.Arguments))
	for i, a := range e.Arguments {
		v, err := in.evalExpr(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return in.call(calleeV, args, e.NodePos)
}

func (in *Interpreter) evalActionCall(e *ast.ActionCall, env *Environment) (Value, error) {
	args := make([]Value, len(e.Arguments))
	for i, a := range e.Arguments {
		v, err := in.evalExpr(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if fn, ok := in.actions[e.Name]; ok {
		return in.call(fn, args, e.NodePos)
	}
	if nf, ok := in.natives[e.Name]; ok {
		return in.call(nf, args, e.NodePos)
	}
	return nil, newRuntimeError(Generic, e.Line(), e.Column(), "undefined action %q", e.Name)
}

func (in *Interpreter) call(callee Value, args []Value, pos ast.NodePos) (Value, error) {
	switch fn := callee.(type) {
	case *NativeFunction:
		v, err := fn.Fn(args)
		if err != nil {
			return nil, newRuntimeError(Generic, pos.Line(), pos.Column(), "%s", err)
		}
		return v, nil
	case *Function:
		return in.callFunction(fn, args, pos)
	default:
		return nil, newRuntimeError(TypeMismatch, pos.Line(), pos.Column(), "%s is not callable", callee.String())
	}
}

func (in *Interpreter) callFunction(fn *Function, args []Value, pos ast.NodePos) (Value, error) {
	if len(in.callSt) >= maxCallDepth {
		return nil, newRuntimeError(Generic, pos.Line(), pos.Column(), "call stack depth exceeded %d", maxCallDepth)
	}
	captured := fn.CapturedEnv.Value()
	if captured == nil {
		return nil, newRuntimeError(EnvironmentDropped, pos.Line(), pos.Column(), "closure %q lost its defining scope", fn.Name)
	}

	frame := &CallFrame{Name: fn.Name, Line: pos.Line(), Column: pos.Column(), Locals: map[string]Value{}}
	in.callSt = append(in.callSt, frame)
	defer func() { in.callSt = in.callSt[:len(in.callSt)-1] }()

	activation := NewEnvironment(captured)
	for i, p := range fn.Params {
		var v Value = Null{}
		if i < len(args) {
			v = args[i]
		}
		activation.Define(p.Name, v)
		frame.Locals[p.Name] = v
	}

	last, flow, err := in.evalBlock(fn.Body, activation)
	if err != nil {
		frame.Locals = activation.values
		return nil, err
	}
	if flow.Kind == FlowReturn {
		return flow.Value, nil
	}
	if flow.Kind == FlowExit {
		return flow.Value, nil
	}
	return last, nil
}

// ---- step mode ----

func (in *Interpreter) writer() io.Writer {
	if in.out != nil {
		return in.out
	}
	return os.Stdout
}

func (in *Interpreter) traceStep(stmt ast.Statement, env *Environment) {
	fmt.Fprintf(in.writer(), "--- step %d:%d: %T\n", stmt.Line(), stmt.Column(), stmt)
	names := make([]string, 0, len(env.values))
	for name := range env.values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cur := env.values[name].String()
		if prev, ok := in.lastVars[name]; !ok || prev != cur {
			fmt.Fprintf(in.writer(), "    %s = %s\n", name, cur)
			in.lastVars[name] = cur
		}
	}
	for i := len(in.callSt) - 1; i >= 0; i-- {
		fmt.Fprintf(in.writer(), "    at %s\n", in.callSt[i].Name)
	}
}

func (in *Interpreter) promptContinue() bool {
	if in.stepIn == nil {
		return true
	}
	fmt.Fprint(in.writer(), "continue (y/n)? ")
	line, err := in.stepIn.ReadString('\n')
	if err != nil {
		return false
	}
	switch trimLower(line) {
	case "n", "no":
		return false
	default:
		return true
	}
}

func trimLower(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\n' || s[start] == '\r' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\n' || s[end-1] == '\r' || s[end-1] == '\t') {
		end--
	}
	b := []byte(s[start:end])
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
