// Package analyzer walks the WFL AST resolving scopes and collecting the
// semantic errors and static diagnostics described in §4.3: unresolved
// symbols, unused variables, unreachable code, shadowing, and inconsistent
// returns.
package analyzer

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/aledsdavies/wfl/internal/ast"
)

// action records an ActionDefinition's call contract for arity checking
// and "is this name callable" validation.
type action struct {
	arity      int
	returnType string
	line, col  int
}

// Analyzer performs the three passes of §4.3 over one Program.
type Analyzer struct {
	global      *Scope
	diagnostics []Diagnostic
	actions     map[string]*action
	paramWords  map[string]bool // every whitespace-split word of every parameter name, anywhere (§4.3 Error absorption)
}

// Result is what the rest of the pipeline needs from analysis: the global
// scope, the registered actions (whose return types the type checker reads
// through ActionReturnTypes) and whether any diagnostic was Error-severity.
type Result struct {
	Global  *Scope
	Actions map[string]*action
	OK      bool // false if any Error-severity diagnostic was recorded
}

// ActionReturnTypes exposes each action's declared return type name to the
// type checker, which has no other way to see across the analyzer/checker
// package boundary into the unexported action struct.
func (r *Result) ActionReturnTypes() map[string]string {
	out := make(map[string]string, len(r.Actions))
	for name, act := range r.Actions {
		out[name] = act.returnType
	}
	return out
}

// globalIdentifiers is pre-populated in every run (§4.3): these names are
// always resolvable and never flagged unused.
var globalIdentifiers = []string{"yes", "no", "nothing", "missing", "undefined"}

// Analyze runs all three passes over prog and returns the collected
// diagnostics (errors and warnings, in the order found) plus the resolved
// global scope for downstream stages.
func Analyze(prog *ast.Program) (*Result, []Diagnostic) {
	a := &Analyzer{
		global:     newScope(nil),
		actions:    map[string]*action{},
		paramWords: map[string]bool{},
	}
	for _, name := range globalIdentifiers {
		sym := &Symbol{Name: name, Kind: VariableSymbol, Used: true}
		a.global.define(sym)
	}

	// Pre-register every action's name/arity/return type so forward and
	// out-of-order calls resolve, and so param words are known before any
	// body is walked (§4.3 Error absorption).
	for _, stmt := range prog.Statements {
		if def, ok := stmt.(*ast.ActionDefinition); ok {
			a.registerAction(def)
		}
	}

	a.walkBlock(prog.Statements, a.global, true)
	a.flagUnused(a.global)

	ok := true
	for _, d := range a.diagnostics {
		if d.Severity == Error {
			ok = false
			break
		}
	}
	return &Result{Global: a.global, Actions: a.actions, OK: ok}, a.diagnostics
}

func (a *Analyzer) registerAction(def *ast.ActionDefinition) {
	a.actions[def.Name] = &action{
		arity:      len(def.Parameters),
		returnType: def.ReturnType,
		line:       def.Line(), col: def.Column(),
	}
	for _, p := range def.Parameters {
		for _, w := range splitWords(p.Name) {
			a.paramWords[w] = true
		}
	}
}

func splitWords(name string) []string {
	var words []string
	start := 0
	for i, r := range name {
		if r == ' ' {
			if i > start {
				words = append(words, name[start:i])
			}
			start = i + 1
		}
	}
	if start < len(name) {
		words = append(words, name[start:])
	}
	return words
}

// walkBlock walks stmts in scope, flagging unreachable statements after the
// first terminator, and returns whether the block is guaranteed to exit via
// Return/Exit on every path (used by the inconsistent-return check).
// The bool parameter is unused; break and continue never count as
// terminators here.
func (a *Analyzer) walkBlock(stmts []ast.Statement, scope *Scope, _ bool) bool {
	terminated := false
	for _, stmt := range stmts {
		if terminated {
			a.warnf(stmt.Line(), stmt.Column(), "unreachable code")
		}
		if a.walkStatement(stmt, scope) {
			terminated = true
		}
	}
	return terminated
}

// walkStatement dispatches one statement and reports whether it
// unconditionally terminates its containing block (Return, Exit, or an
// if/else where both branches terminate).
func (a *Analyzer) walkStatement(stmt ast.Statement, scope *Scope) bool {
	switch s := stmt.(type) {
	case *ast.VariableDeclaration:
		a.walkExpr(s.Value, scope)
		a.declare(scope, s.Name, VariableSymbol, s.Line(), s.Column())
		return false
	case *ast.Assignment:
		a.walkExpr(s.Value, scope)
		if sym, _ := scope.resolve(s.Name); sym == nil {
			a.undefinedName(s.Name, s.Line(), s.Column(), scope)
		}
		return false
	case *ast.IfStatement:
		a.walkExpr(s.Condition, scope)
		thenScope := newScope(scope)
		thenTerm := a.walkBlock(s.Then, thenScope, true)
		a.flagUnused(thenScope)
		if s.Else != nil {
			elseScope := newScope(scope)
			elseTerm := a.walkBlock(s.Else, elseScope, true)
			a.flagUnused(elseScope)
			return thenTerm && elseTerm
		}
		return false
	case *ast.SingleLineIf:
		a.walkExpr(s.Condition, scope)
		thenTerm := a.walkStatement(s.Then, scope)
		if s.Else != nil {
			elseTerm := a.walkStatement(s.Else, scope)
			return thenTerm && elseTerm
		}
		return false
	case *ast.Display:
		a.walkExpr(s.Value, scope)
		return false
	case *ast.ActionDefinition:
		bodyScope := newScope(scope)
		for _, p := range s.Parameters {
			bodyScope.define(&Symbol{Name: p.Name, Kind: ParameterSymbol, Used: true, Line: s.Line(), Column: s.Column()})
		}
		terminates := a.walkBlock(s.Body, bodyScope, true)
		a.flagUnused(bodyScope)
		if s.ReturnType != "" && s.ReturnType != "Nothing" && !terminates {
			a.errorf(s.Line(), s.Column(), "action %q must return a value on every path", s.Name)
		}
		return false
	case *ast.Return:
		if s.Value != nil {
			a.walkExpr(s.Value, scope)
		}
		return true
	case *ast.ExpressionStatement:
		a.walkExpr(s.Expression, scope)
		return false
	case *ast.CountLoop:
		a.walkExpr(s.Start, scope)
		a.walkExpr(s.End, scope)
		if s.Step != nil {
			a.walkExpr(s.Step, scope)
		}
		loopScope := newScope(scope)
		loopScope.define(&Symbol{Name: "count", Kind: VariableSymbol, Used: true, Line: s.Line(), Column: s.Column()})
		a.walkBlock(s.Body, loopScope, true)
		a.flagUnused(loopScope)
		return false
	case *ast.ForEachLoop:
		a.walkExpr(s.Collection, scope)
		loopScope := newScope(scope)
		loopScope.define(&Symbol{Name: s.ItemName, Kind: VariableSymbol, Line: s.Line(), Column: s.Column()})
		a.walkBlock(s.Body, loopScope, true)
		a.flagUnused(loopScope)
		return false
	case *ast.WhileLoop:
		a.walkExpr(s.Condition, scope)
		loopScope := newScope(scope)
		a.walkBlock(s.Body, loopScope, true)
		a.flagUnused(loopScope)
		return false
	case *ast.RepeatUntilLoop:
		a.walkExpr(s.Condition, scope)
		loopScope := newScope(scope)
		a.walkBlock(s.Body, loopScope, true)
		a.flagUnused(loopScope)
		return false
	case *ast.RepeatWhileLoop:
		a.walkExpr(s.Condition, scope)
		loopScope := newScope(scope)
		a.walkBlock(s.Body, loopScope, true)
		a.flagUnused(loopScope)
		return false
	case *ast.ForeverLoop:
		loopScope := newScope(scope)
		a.walkBlock(s.Body, loopScope, true)
		a.flagUnused(loopScope)
		return false
	case *ast.Break, *ast.Continue:
		return false
	case *ast.Exit:
		return true
	case *ast.OpenFile:
		a.walkExpr(s.Path, scope)
		a.declare(scope, s.VariableName, VariableSymbol, s.Line(), s.Column())
		return false
	case *ast.ReadFile:
		a.walkExpr(s.Source, scope)
		a.declare(scope, s.VariableName, VariableSymbol, s.Line(), s.Column())
		return false
	case *ast.WriteFile:
		a.walkExpr(s.Content, scope)
		a.walkExpr(s.File, scope)
		return false
	case *ast.CloseFile:
		a.walkExpr(s.File, scope)
		return false
	case *ast.WaitFor:
		if s.Inner != nil {
			a.markHandleUsedByWaitFor(s.Inner, scope)
			a.walkStatement(s.Inner, scope)
		}
		return false
	case *ast.Try:
		bodyScope := newScope(scope)
		a.walkBlock(s.Body, bodyScope, true)
		a.flagUnused(bodyScope)
		whenScope := newScope(scope)
		whenScope.define(&Symbol{Name: s.ErrorName, Kind: VariableSymbol, Used: true, Line: s.Line(), Column: s.Column()})
		a.walkBlock(s.When, whenScope, true)
		if s.Otherwise != nil {
			otherwiseScope := newScope(scope)
			a.walkBlock(s.Otherwise, otherwiseScope, true)
			a.flagUnused(otherwiseScope)
		}
		return false
	case *ast.HttpGet:
		a.walkExpr(s.URL, scope)
		a.declare(scope, s.VariableName, VariableSymbol, s.Line(), s.Column())
		return false
	case *ast.HttpPost:
		a.walkExpr(s.URL, scope)
		a.walkExpr(s.Data, scope)
		a.declare(scope, s.VariableName, VariableSymbol, s.Line(), s.Column())
		return false
	case *ast.Push:
		a.walkExpr(s.List, scope)
		a.walkExpr(s.Value, scope)
		return false
	}
	return false
}

// markHandleUsedByWaitFor marks the "wait for open file ... as H" target as
// used immediately (§4.3 point 3): the variable exists only to be waited on.
func (a *Analyzer) markHandleUsedByWaitFor(inner ast.Statement, scope *Scope) {
	if open, ok := inner.(*ast.OpenFile); ok {
		_ = open
		// The symbol doesn't exist yet (declared by walkStatement below);
		// handled by declare() defaulting Used appropriately isn't needed
		// since wait-for is the sole consumer — declare it pre-used here.
		scope.define(&Symbol{Name: open.VariableName, Kind: VariableSymbol, Used: true, Line: open.Line(), Column: open.Column()})
	}
}

func (a *Analyzer) declare(scope *Scope, name string, kind SymbolKind, line, col int) {
	if existing, fresh := scope.declareLocal(name); !fresh {
		if existing.Used && existing.Kind == VariableSymbol {
			// wait-for pre-declared this handle as used; nothing to do.
			return
		}
		a.errorf(line, col, "%q is already declared in this scope", name)
		return
	}
	if scope.shadows(name) {
		a.warnf(line, col, "declaration of %q shadows an outer variable", name)
	}
	scope.define(&Symbol{Name: name, Kind: kind, Line: line, Column: col})
}

func (a *Analyzer) walkExpr(expr ast.Expression, scope *Scope) {
	switch e := expr.(type) {
	case *ast.Literal:
		for _, item := range e.List {
			a.walkExpr(item, scope)
		}
	case *ast.Variable:
		if sym, _ := scope.resolve(e.Name); sym != nil {
			sym.Used = true
			return
		}
		a.undefinedName(e.Name, e.Line(), e.Column(), scope)
	case *ast.BinaryOperation:
		a.walkExpr(e.Left, scope)
		a.walkExpr(e.Right, scope)
	case *ast.UnaryOperation:
		a.walkExpr(e.Expr, scope)
	case *ast.FunctionCall:
		a.walkExpr(e.Callee, scope)
		for _, arg := range e.Arguments {
			a.walkExpr(arg, scope)
		}
	case *ast.ActionCall:
		act, ok := a.actions[e.Name]
		if !ok {
			a.undefinedName(e.Name, e.Line(), e.Column(), scope)
		} else if act.arity != len(e.Arguments) {
			a.errorf(e.Line(), e.Column(), "action %q expects %d argument(s), got %d", e.Name, act.arity, len(e.Arguments))
		}
		for _, arg := range e.Arguments {
			a.walkExpr(arg, scope)
		}
	case *ast.MemberAccess:
		a.walkExpr(e.Object, scope)
	case *ast.IndexAccess:
		a.walkExpr(e.Collection, scope)
		a.walkExpr(e.Index, scope)
	case *ast.Concatenation:
		a.walkExpr(e.Left, scope)
		a.walkExpr(e.Right, scope)
	case *ast.PatternMatch:
		a.walkExpr(e.Text, scope)
		a.walkExpr(e.Pattern, scope)
	case *ast.PatternFind:
		a.walkExpr(e.Text, scope)
		a.walkExpr(e.Pattern, scope)
	case *ast.PatternReplace:
		a.walkExpr(e.Text, scope)
		a.walkExpr(e.Pattern, scope)
		a.walkExpr(e.Replacement, scope)
	case *ast.PatternSplit:
		a.walkExpr(e.Text, scope)
		a.walkExpr(e.Pattern, scope)
	case *ast.AwaitExpression:
		a.walkExpr(e.Expr, scope)
	}
}

// undefinedName reports an unresolved reference unless it matches a
// whitespace-split word of some parameter name (§4.3 Error absorption), and
// otherwise suggests the closest known name via fuzzy matching.
func (a *Analyzer) undefinedName(name string, line, col int, scope *Scope) {
	if a.paramWords[name] {
		return
	}
	suggestion := closestMatch(name, append(scope.allNames(), actionNames(a.actions)...))
	if suggestion != "" {
		a.errorf(line, col, "undefined name %q (did you mean %q?)", name, suggestion)
		return
	}
	a.errorf(line, col, "undefined name %q", name)
}

func actionNames(actions map[string]*action) []string {
	names := make([]string, 0, len(actions))
	for n := range actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// closestMatch finds the nearest known identifier to an unresolved name,
// grounded on the teacher's findClosestMatch (runtime/planner/planner.go).
func closestMatch(name string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		return ranks[0].Target
	}
	// A subsequence match misses swapped or mistyped letters ("totla" vs
	// "total"), so fall back to the nearest candidate by edit distance,
	// accepting at most half the name's length in edits.
	best, bestDist := "", len(name)/2+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// flagUnused emits the unused-variable warning of §4.3 for every symbol in
// scope that was never read. Parameters are exempt by construction (always
// declared with Used: true).
func (a *Analyzer) flagUnused(scope *Scope) {
	names := make([]string, 0, len(scope.symbols))
	for name := range scope.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := scope.symbols[name]
		if sym.Kind == VariableSymbol && !sym.Used {
			a.warnf(sym.Line, sym.Column, "%q is declared but never used", name)
		}
	}
}
