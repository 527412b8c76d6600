package types

import (
	"fmt"

	"github.com/aledsdavies/wfl/internal/ast"
)

// TypeError carries the structured mismatch details of §7.
type TypeError struct {
	Message  string
	Expected *Type
	Found    *Type
	Line     int
	Column   int
}

func (e *TypeError) Error() string { return e.Message }

// scope is a minimal variable-type environment mirroring the analyzer's
// lexical nesting (§4.4: "first assignment defines the variable's type if
// previously Unknown").
type scope struct {
	parent *scope
	vars   map[string]*Type
}

func newScope(parent *scope) *scope { return &scope{parent: parent, vars: map[string]*Type{}} }

func (s *scope) get(name string) (*Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

func (s *scope) setInOwning(name string, t *Type) {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = t
			return
		}
	}
	s.vars[name] = t
}

// ActionSignature is the subset of an action's declared contract the
// checker needs: its declared return type name (arity is checked by the
// analyzer, not here).
type ActionSignature struct {
	ReturnType string
}

// Checker infers a Type for every expression and checks statement-level
// contracts (§4.4), collecting TypeErrors; once an expression's type is
// Error, enclosing expressions propagate Error without emitting further
// diagnostics (§9 Error absorption).
type Checker struct {
	errors  []*TypeError
	actions map[string]*action
}

type action struct {
	returnType *Type
}

// Check type-checks prog given the action return-type declarations
// collected by the analyzer (name -> declared return type string, "" if
// none). It returns every TypeError found; the caller must not proceed to
// execution if the list is non-empty (§4.4).
func Check(prog *ast.Program, actionReturnTypes map[string]string) []*TypeError {
	c := &Checker{actions: map[string]*action{}}
	for name, rt := range actionReturnTypes {
		c.actions[name] = &action{returnType: namedType(rt)}
	}
	root := newScope(nil)
	c.checkBlock(prog.Statements, root, nil)
	return c.errors
}

func namedType(name string) *Type {
	switch name {
	case "", "Nothing":
		return Nothing
	case "Number":
		return Number
	case "Text":
		return Text
	case "Boolean":
		return Boolean
	default:
		return Unknown
	}
}

func (c *Checker) typeError(line, col int, expected, found *Type, format string, args ...any) *Type {
	c.errors = append(c.errors, &TypeError{
		Message:  fmt.Sprintf(format, args...),
		Expected: expected,
		Found:    found,
		Line:     line,
		Column:   col,
	})
	return Error
}

func (c *Checker) checkBlock(stmts []ast.Statement, s *scope, currentReturn *Type) {
	for _, stmt := range stmts {
		c.checkStatement(stmt, s, currentReturn)
	}
}

func (c *Checker) checkStatement(stmt ast.Statement, s *scope, currentReturn *Type) {
	switch st := stmt.(type) {
	case *ast.VariableDeclaration:
		t := c.infer(st.Value, s)
		s.setInOwning(st.Name, t)
	case *ast.Assignment:
		valueType := c.infer(st.Value, s)
		declared, known := s.get(st.Name)
		if !known || declared.Kind == UnknownKind {
			s.setInOwning(st.Name, valueType)
			return
		}
		if !Compatible(declared, valueType) {
			c.typeError(st.Line(), st.Column(), declared, valueType,
				"cannot change %q (%s) to incompatible value of type %s", st.Name, declared, valueType)
		}
	case *ast.IfStatement:
		c.requireBoolean(st.Condition, s)
		c.checkBlock(st.Then, newScope(s), currentReturn)
		if st.Else != nil {
			c.checkBlock(st.Else, newScope(s), currentReturn)
		}
	case *ast.SingleLineIf:
		c.requireBoolean(st.Condition, s)
		c.checkStatement(st.Then, s, currentReturn)
		if st.Else != nil {
			c.checkStatement(st.Else, s, currentReturn)
		}
	case *ast.Display:
		c.infer(st.Value, s)
	case *ast.ActionDefinition:
		bodyScope := newScope(s)
		for _, p := range st.Parameters {
			bodyScope.vars[p.Name] = Unknown
		}
		ret := namedType(st.ReturnType)
		c.checkBlock(st.Body, bodyScope, ret)
	case *ast.Return:
		if currentReturn == nil {
			return
		}
		if st.Value == nil {
			if !Compatible(currentReturn, Nothing) {
				c.typeError(st.Line(), st.Column(), currentReturn, Nothing, "expected return value of type %s", currentReturn)
			}
			return
		}
		t := c.infer(st.Value, s)
		if !Compatible(currentReturn, t) {
			c.typeError(st.Line(), st.Column(), currentReturn, t, "return value has type %s, expected %s", t, currentReturn)
		}
	case *ast.ExpressionStatement:
		c.infer(st.Expression, s)
	case *ast.CountLoop:
		c.requireNumber(st.Start, s)
		c.requireNumber(st.End, s)
		if st.Step != nil {
			c.requireNumber(st.Step, s)
		}
		loopScope := newScope(s)
		loopScope.vars["count"] = Number
		c.checkBlock(st.Body, loopScope, currentReturn)
	case *ast.ForEachLoop:
		collType := c.infer(st.Collection, s)
		loopScope := newScope(s)
		switch collType.Kind {
		case ListKind:
			loopScope.vars[st.ItemName] = collType.Elem
		case MapKind:
			loopScope.vars[st.ItemName] = collType.Value
		default:
			if collType.Kind != UnknownKind && collType.Kind != ErrorKind {
				c.typeError(st.Line(), st.Column(), List(Unknown), collType, "for-each requires a List or Map, found %s", collType)
			}
			loopScope.vars[st.ItemName] = Unknown
		}
		c.checkBlock(st.Body, loopScope, currentReturn)
	case *ast.WhileLoop:
		c.requireBoolean(st.Condition, s)
		c.checkBlock(st.Body, newScope(s), currentReturn)
	case *ast.RepeatUntilLoop:
		c.requireBoolean(st.Condition, s)
		c.checkBlock(st.Body, newScope(s), currentReturn)
	case *ast.RepeatWhileLoop:
		c.requireBoolean(st.Condition, s)
		c.checkBlock(st.Body, newScope(s), currentReturn)
	case *ast.ForeverLoop:
		c.checkBlock(st.Body, newScope(s), currentReturn)
	case *ast.OpenFile:
		c.infer(st.Path, s)
		s.setInOwning(st.VariableName, Custom("FileHandle"))
	case *ast.ReadFile:
		c.infer(st.Source, s)
		s.setInOwning(st.VariableName, Text)
	case *ast.WriteFile:
		c.infer(st.Content, s)
		c.infer(st.File, s)
	case *ast.CloseFile:
		c.infer(st.File, s)
	case *ast.WaitFor:
		if st.Inner != nil {
			c.checkStatement(st.Inner, s, currentReturn)
		}
	case *ast.Try:
		c.checkBlock(st.Body, newScope(s), currentReturn)
		whenScope := newScope(s)
		whenScope.vars[st.ErrorName] = Text
		c.checkBlock(st.When, whenScope, currentReturn)
		if st.Otherwise != nil {
			c.checkBlock(st.Otherwise, newScope(s), currentReturn)
		}
	case *ast.HttpGet:
		c.infer(st.URL, s)
		s.setInOwning(st.VariableName, Text)
	case *ast.HttpPost:
		c.infer(st.URL, s)
		c.infer(st.Data, s)
		s.setInOwning(st.VariableName, Text)
	case *ast.Push:
		listType := c.infer(st.List, s)
		valueType := c.infer(st.Value, s)
		if listType.Kind == ListKind && !Compatible(listType.Elem, valueType) {
			c.typeError(st.Line(), st.Column(), listType.Elem, valueType, "cannot push %s onto a list of %s", valueType, listType.Elem)
		}
	}
}

func (c *Checker) requireBoolean(e ast.Expression, s *scope) {
	t := c.infer(e, s)
	if t.Kind != BooleanKind && t.Kind != UnknownKind && t.Kind != ErrorKind {
		c.typeError(e.Line(), e.Column(), Boolean, t, "condition must be Boolean, found %s", t)
	}
}

func (c *Checker) requireNumber(e ast.Expression, s *scope) {
	t := c.infer(e, s)
	if t.Kind != NumberKind && t.Kind != UnknownKind && t.Kind != ErrorKind {
		c.typeError(e.Line(), e.Column(), Number, t, "expected Number, found %s", t)
	}
}

// infer computes the Type of expr (§4.4).
func (c *Checker) infer(expr ast.Expression, s *scope) *Type {
	switch e := expr.(type) {
	case *ast.Literal:
		return c.inferLiteral(e, s)
	case *ast.Variable:
		if t, ok := s.get(e.Name); ok {
			return t
		}
		return Unknown
	case *ast.BinaryOperation:
		return c.inferBinary(e, s)
	case *ast.UnaryOperation:
		return c.inferUnary(e, s)
	case *ast.FunctionCall:
		c.infer(e.Callee, s)
		for _, a := range e.Arguments {
			c.infer(a, s)
		}
		return Unknown
	case *ast.ActionCall:
		for _, a := range e.Arguments {
			c.infer(a, s)
		}
		if act, ok := c.actions[e.Name]; ok {
			return act.returnType
		}
		return Unknown
	case *ast.MemberAccess:
		c.infer(e.Object, s)
		return Unknown
	case *ast.IndexAccess:
		collType := c.infer(e.Collection, s)
		idxType := c.infer(e.Index, s)
		switch collType.Kind {
		case ListKind:
			if idxType.Kind != NumberKind && idxType.Kind != UnknownKind && idxType.Kind != ErrorKind {
				return c.typeError(e.Line(), e.Column(), Number, idxType, "list index must be Number, found %s", idxType)
			}
			return collType.Elem
		case MapKind:
			if !Compatible(collType.Key, idxType) {
				return c.typeError(e.Line(), e.Column(), collType.Key, idxType, "map key must be %s, found %s", collType.Key, idxType)
			}
			return collType.Value
		default:
			return Unknown
		}
	case *ast.Concatenation:
		c.infer(e.Left, s)
		c.infer(e.Right, s)
		return Text
	case *ast.PatternMatch:
		c.infer(e.Text, s)
		c.infer(e.Pattern, s)
		return Boolean
	case *ast.PatternFind:
		c.infer(e.Text, s)
		c.infer(e.Pattern, s)
		return Text
	case *ast.PatternReplace:
		c.infer(e.Text, s)
		c.infer(e.Pattern, s)
		c.infer(e.Replacement, s)
		return Text
	case *ast.PatternSplit:
		c.infer(e.Text, s)
		c.infer(e.Pattern, s)
		return List(Text)
	case *ast.AwaitExpression:
		inner := c.infer(e.Expr, s)
		if inner.Kind == AsyncKind {
			return inner.Elem
		}
		return inner
	default:
		return Unknown
	}
}

func (c *Checker) inferLiteral(e *ast.Literal, s *scope) *Type {
	switch e.Kind {
	case ast.StringLiteral:
		return Text
	case ast.IntegerLiteral, ast.FloatLiteral:
		return Number
	case ast.BooleanLiteral:
		return Boolean
	case ast.NothingLiteral:
		return Nothing
	case ast.PatternLiteral:
		return Custom("Pattern")
	case ast.ListLiteral:
		elem := Unknown
		for i, item := range e.List {
			t := c.infer(item, s)
			if i == 0 {
				elem = t
			} else if !Compatible(elem, t) && !Compatible(t, elem) {
				elem = Any
			}
		}
		return List(elem)
	default:
		return Unknown
	}
}

// inferBinary implements the rule table of §4.4.
func (c *Checker) inferBinary(e *ast.BinaryOperation, s *scope) *Type {
	left := c.infer(e.Left, s)
	right := c.infer(e.Right, s)
	if left.Kind == ErrorKind || right.Kind == ErrorKind {
		return Error
	}

	switch e.Op {
	case ast.Plus:
		if left.Kind == NumberKind && right.Kind == NumberKind {
			return Number
		}
		if left.Kind == TextKind || right.Kind == TextKind {
			return Text
		}
		if left.Kind == UnknownKind || right.Kind == UnknownKind {
			return Unknown
		}
		return c.typeError(e.Line(), e.Column(), Number, right, "cannot add %s and %s", left, right)
	case ast.Minus, ast.Multiply, ast.Divide:
		if left.Kind == NumberKind && right.Kind == NumberKind {
			return Number
		}
		if left.Kind == UnknownKind || right.Kind == UnknownKind {
			return Unknown
		}
		return c.typeError(e.Line(), e.Column(), Number, pickMismatch(left, right), "%s requires two Numbers, found %s and %s", e.Op, left, right)
	case ast.GreaterThan, ast.LessThan, ast.GreaterThanOrEqual, ast.LessThanOrEqual:
		if (left.Kind == NumberKind && right.Kind == NumberKind) || (left.Kind == TextKind && right.Kind == TextKind) {
			return Boolean
		}
		if left.Kind == UnknownKind || right.Kind == UnknownKind {
			return Boolean
		}
		return c.typeError(e.Line(), e.Column(), left, right, "cannot compare %s with %s", left, right)
	case ast.Equals, ast.NotEquals:
		if !Compatible(left, right) && !Compatible(right, left) {
			return c.typeError(e.Line(), e.Column(), left, right, "cannot compare %s with %s for equality", left, right)
		}
		return Boolean
	case ast.And, ast.Or:
		if left.Kind != BooleanKind && left.Kind != UnknownKind {
			c.typeError(e.Left.Line(), e.Left.Column(), Boolean, left, "%s requires Boolean operands, found %s", e.Op, left)
		}
		if right.Kind != BooleanKind && right.Kind != UnknownKind {
			c.typeError(e.Right.Line(), e.Right.Column(), Boolean, right, "%s requires Boolean operands, found %s", e.Op, right)
		}
		return Boolean
	case ast.Contains:
		switch left.Kind {
		case TextKind:
			if right.Kind != TextKind && right.Kind != UnknownKind {
				c.typeError(e.Line(), e.Column(), Text, right, "Text contains requires a Text pattern, found %s", right)
			}
		case ListKind:
			if !Compatible(left.Elem, right) {
				c.typeError(e.Line(), e.Column(), left.Elem, right, "list contains requires an element of %s, found %s", left.Elem, right)
			}
		case MapKind:
			if !Compatible(left.Key, right) {
				c.typeError(e.Line(), e.Column(), left.Key, right, "map contains requires a key of %s, found %s", left.Key, right)
			}
		}
		return Boolean
	default:
		return Unknown
	}
}

func pickMismatch(left, right *Type) *Type {
	if left.Kind != NumberKind {
		return left
	}
	return right
}

func (c *Checker) inferUnary(e *ast.UnaryOperation, s *scope) *Type {
	t := c.infer(e.Expr, s)
	switch e.Op {
	case ast.Not:
		if t.Kind != BooleanKind && t.Kind != UnknownKind && t.Kind != ErrorKind {
			c.typeError(e.Line(), e.Column(), Boolean, t, "not requires a Boolean operand, found %s", t)
		}
		return Boolean
	case ast.Negate:
		if t.Kind != NumberKind && t.Kind != UnknownKind && t.Kind != ErrorKind {
			c.typeError(e.Line(), e.Column(), Number, t, "unary minus requires a Number operand, found %s", t)
		}
		return Number
	default:
		return Unknown
	}
}
