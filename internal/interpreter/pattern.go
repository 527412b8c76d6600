package interpreter

import (
	"regexp"
	"sync"

	"github.com/aledsdavies/wfl/internal/ast"
)

// patternCache memoizes compiled patterns by source text (SPEC_FULL §C
// item 3): a script that evaluates the same pattern literal inside
// a loop compiles the regex exactly once.
var (
	patternCacheMu sync.Mutex
	patternCache   = map[string]*regexp.Regexp{}
)

func compilePattern(source string, line, col int) (*Pattern, error) {
	patternCacheMu.Lock()
	compiled, ok := patternCache[source]
	patternCacheMu.Unlock()
	if !ok {
		re, err := regexp.Compile(source)
		if err != nil {
			return nil, newRuntimeError(Generic, line, col, "invalid pattern %q: %s", source, err)
		}
		patternCacheMu.Lock()
		patternCache[source] = re
		patternCacheMu.Unlock()
		compiled = re
	}
	return &Pattern{Source: source, Compiled: compiled}, nil
}

func (in *Interpreter) asPattern(expr ast.Expression, env *Environment) (*Pattern, error) {
	v, err := in.evalExpr(expr, env)
	if err != nil {
		return nil, err
	}
	switch p := v.(type) {
	case *Pattern:
		return p, nil
	case Text:
		return compilePattern(string(p), expr.Line(), expr.Column())
	default:
		return nil, newRuntimeError(TypeMismatch, expr.Line(), expr.Column(), "expected a pattern, got %s", v.String())
	}
}

func (in *Interpreter) evalPatternMatch(e *ast.PatternMatch, env *Environment) (Value, error) {
	textV, err := in.evalExpr(e.Text, env)
	if err != nil {
		return nil, err
	}
	pat, err := in.asPattern(e.Pattern, env)
	if err != nil {
		return nil, err
	}
	return Bool(pat.Compiled.MatchString(textV.String())), nil
}

func (in *Interpreter) evalPatternFind(e *ast.PatternFind, env *Environment) (Value, error) {
	textV, err := in.evalExpr(e.Text, env)
	if err != nil {
		return nil, err
	}
	pat, err := in.asPattern(e.Pattern, env)
	if err != nil {
		return nil, err
	}
	match := pat.Compiled.FindString(textV.String())
	if match == "" && !pat.Compiled.MatchString(textV.String()) {
		return Null{}, nil
	}
	return Text(match), nil
}

func (in *Interpreter) evalPatternReplace(e *ast.PatternReplace, env *Environment) (Value, error) {
	textV, err := in.evalExpr(e.Text, env)
	if err != nil {
		return nil, err
	}
	pat, err := in.asPattern(e.Pattern, env)
	if err != nil {
		return nil, err
	}
	replV, err := in.evalExpr(e.Replacement, env)
	if err != nil {
		return nil, err
	}
	return Text(pat.Compiled.ReplaceAllString(textV.String(), replV.String())), nil
}

func (in *Interpreter) evalPatternSplit(e *ast.PatternSplit, env *Environment) (Value, error) {
	textV, err := in.evalExpr(e.Text, env)
	if err != nil {
		return nil, err
	}
	pat, err := in.asPattern(e.Pattern, env)
	if err != nil {
		return nil, err
	}
	parts := pat.Compiled.Split(textV.String(), -1)
	items := make([]Value, len(parts))
	for i, p := range parts {
		items[i] = Text(p)
	}
	return &List{Items: items}, nil
}
