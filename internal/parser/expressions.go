package parser

import (
	"github.com/aledsdavies/wfl/internal/ast"
	"github.com/aledsdavies/wfl/internal/token"
)

// expression parses starting from the lowest-precedence level: "with"
// (action call / concatenation), then falls into the or/and/equality chain
// (§4.2 Expression grammar).
func (p *Parser) expression() ast.Expression {
	return p.withExpr()
}

// withExpr resolves "LEFT with ARG1 and ARG2 ..." to an ActionCall when
// LEFT is a bare identifier naming a known action, and otherwise folds
// "with" into textual Concatenation (§4.2).
func (p *Parser) withExpr() ast.Expression {
	left := p.orExpr()
	for p.check(token.WITH) {
		withTok := p.advance()
		if v, ok := left.(*ast.Variable); ok && p.actionNames[v.Name] {
			args := []ast.Expression{p.orExpr()}
			for p.match(token.AND) {
				args = append(args, p.orExpr())
			}
			left = &ast.ActionCall{NodePos: ast.Pos(withTok), Name: v.Name, Arguments: args}
			continue
		}
		right := p.orExpr()
		left = &ast.Concatenation{NodePos: ast.Pos(withTok), Left: left, Right: right}
	}
	return left
}

func (p *Parser) orExpr() ast.Expression {
	left := p.andExpr()
	for p.check(token.OR) {
		t := p.advance()
		right := p.andExpr()
		left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: ast.Or, Right: right}
	}
	return left
}

func (p *Parser) andExpr() ast.Expression {
	left := p.equalityExpr()
	for p.check(token.AND) {
		t := p.advance()
		right := p.equalityExpr()
		left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: ast.And, Right: right}
	}
	return left
}

// equalityExpr handles "is [not] [equal to]" and "contains" (§9: contains
// binds at equality precedence, so "a contains b and c" parses as
// "(a contains b) and c").
func (p *Parser) equalityExpr() ast.Expression {
	left := p.comparisonExpr()
	for {
		switch {
		case p.check(token.IS):
			t := p.advance()
			if p.match(token.NOT) {
				p.consumeComparisonTail()
				right := p.comparisonExpr()
				left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: ast.NotEquals, Right: right}
				continue
			}
			if op, matched := p.tryComparisonAfterIs(); matched {
				right := p.comparisonExpr()
				left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: op, Right: right}
				continue
			}
			p.match(token.EQUAL)
			p.match(token.TO)
			right := p.comparisonExpr()
			left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: ast.Equals, Right: right}
		case p.check(token.CONTAINS):
			t := p.advance()
			right := p.comparisonExpr()
			left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: ast.Contains, Right: right}
		default:
			return left
		}
	}
}

// tryComparisonAfterIs looks for "greater than"/"above"/"less than"/
// "below"/"at least"/"at most" directly after "is", consuming the phrase
// and returning the resulting operator. The four greater/less spellings
// are treated as synonyms per §9.
func (p *Parser) tryComparisonAfterIs() (ast.BinaryOp, bool) {
	switch {
	case p.match(token.GREATER):
		p.match(token.THAN)
		return ast.GreaterThan, true
	case p.match(token.ABOVE):
		return ast.GreaterThan, true
	case p.match(token.LESS):
		p.match(token.THAN)
		return ast.LessThan, true
	case p.match(token.BELOW):
		return ast.LessThan, true
	case p.check(token.AT) && p.peekAt(1).Kind == token.LEAST:
		p.advance()
		p.advance()
		return ast.GreaterThanOrEqual, true
	case p.check(token.AT) && p.peekAt(1).Kind == token.MOST:
		p.advance()
		p.advance()
		return ast.LessThanOrEqual, true
	}
	return 0, false
}

// consumeComparisonTail allows "is not equal to"/"is not" by swallowing an
// optional "equal to" after "is not" (kept distinct from plain "is not").
func (p *Parser) consumeComparisonTail() {
	if p.check(token.EQUAL) {
		p.advance()
		p.match(token.TO)
	}
}

func (p *Parser) comparisonExpr() ast.Expression {
	// Comparisons are already folded into equalityExpr via "is ...";
	// this level exists for the additive chain below.
	return p.additiveExpr()
}

func (p *Parser) additiveExpr() ast.Expression {
	left := p.multiplicativeExpr()
	for {
		switch p.peek().Kind {
		case token.PLUS:
			t := p.advance()
			right := p.multiplicativeExpr()
			left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: ast.Plus, Right: right}
		case token.MINUS:
			t := p.advance()
			right := p.multiplicativeExpr()
			left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: ast.Minus, Right: right}
		default:
			return left
		}
	}
}

func (p *Parser) multiplicativeExpr() ast.Expression {
	left := p.unaryExpr()
	for {
		switch {
		case p.check(token.TIMES):
			t := p.advance()
			right := p.unaryExpr()
			left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: ast.Multiply, Right: right}
		case p.check(token.DIVIDED):
			t := p.advance()
			p.expect(token.BY, "after divided")
			right := p.unaryExpr()
			left = &ast.BinaryOperation{NodePos: ast.Pos(t), Left: left, Op: ast.Divide, Right: right}
		default:
			return left
		}
	}
}

func (p *Parser) unaryExpr() ast.Expression {
	if p.check(token.NOT) {
		t := p.advance()
		return &ast.UnaryOperation{NodePos: ast.Pos(t), Op: ast.Not, Expr: p.unaryExpr()}
	}
	if p.check(token.MINUS) {
		t := p.advance()
		return &ast.UnaryOperation{NodePos: ast.Pos(t), Op: ast.Negate, Expr: p.unaryExpr()}
	}
	return p.postfixExpr()
}

// postfixExpr handles index access ("X at INDEX") applied to a primary
// expression; member access ("property of X") is parsed in primaryExpr.
func (p *Parser) postfixExpr() ast.Expression {
	expr := p.primaryExpr()
	for {
		switch {
		case p.check(token.AT):
			t := p.advance()
			idx := p.primaryExpr()
			expr = &ast.IndexAccess{NodePos: ast.Pos(t), Collection: expr, Index: idx}
		default:
			return expr
		}
	}
}

func (p *Parser) primaryExpr() ast.Expression {
	t := p.peek()
	switch t.Kind {
	case token.STRING:
		p.advance()
		return &ast.Literal{NodePos: ast.Pos(t), Kind: ast.StringLiteral, Str: t.Lexeme}
	case token.INT:
		p.advance()
		return &ast.Literal{NodePos: ast.Pos(t), Kind: ast.IntegerLiteral, Int: parseInt(t.Lexeme)}
	case token.FLOAT:
		p.advance()
		return &ast.Literal{NodePos: ast.Pos(t), Kind: ast.FloatLiteral, Float: parseFloat(t.Lexeme)}
	case token.BOOLEAN:
		p.advance()
		return &ast.Literal{NodePos: ast.Pos(t), Kind: ast.BooleanLiteral, Bool: t.Lexeme == "yes" || t.Lexeme == "true"}
	case token.NOTHING:
		p.advance()
		return &ast.Literal{NodePos: ast.Pos(t), Kind: ast.NothingLiteral}
	case token.LBRACK:
		return p.listLiteral()
	case token.LPAREN:
		p.advance()
		inner := p.expression()
		p.expect(token.RPAREN, "to close parenthesized expression")
		return inner
	case token.PATTERN:
		p.advance()
		lit, _ := p.expect(token.STRING, "pattern text")
		return &ast.Literal{NodePos: ast.Pos(t), Kind: ast.PatternLiteral, Pattern: lit.Lexeme}
	case token.FIND, token.REPLACE, token.SPLIT, token.MATCHES:
		return p.patternExpr()
	case token.WAIT:
		return p.awaitExpr()
	case token.COUNT, token.ERROR:
		// The count-loop index and the default try-handler binding are
		// keywords, but inside an expression they read as variables.
		p.advance()
		return &ast.Variable{NodePos: ast.Pos(t), Name: t.Lexeme}
	case token.IDENT:
		// "PROPERTY of OBJECT" is member access (§3 MemberAccess); a bare
		// identifier followed by anything else is an ordinary Variable.
		if p.peekAt(1).Kind == token.OF {
			propTok := p.advance()
			p.advance() // of
			obj := p.unaryExpr()
			return &ast.MemberAccess{NodePos: ast.Pos(propTok), Object: obj, Property: propTok.Lexeme}
		}
		return p.identExpr()
	default:
		p.errorf("expected expression, found %s", t.Kind)
		p.advance()
		return &ast.Literal{NodePos: ast.Pos(t), Kind: ast.NothingLiteral}
	}
}

func (p *Parser) listLiteral() ast.Expression {
	t := p.advance() // [
	var items []ast.Expression
	if !p.check(token.RBRACK) {
		items = append(items, p.expression())
		for p.match(token.COMMA) {
			items = append(items, p.expression())
		}
	}
	p.expect(token.RBRACK, "to close list literal")
	return &ast.Literal{NodePos: ast.Pos(t), Kind: ast.ListLiteral, List: items}
}

// patternExpr parses "find PATTERN in TEXT", "replace PATTERN with R in
// TEXT", "split TEXT by PATTERN", "TEXT matches PATTERN" is instead parsed
// via identExpr+postfix since "matches" appears infix; this handles the
// prefix forms.
func (p *Parser) patternExpr() ast.Expression {
	t := p.advance()
	switch t.Kind {
	case token.FIND:
		pattern := p.unaryExpr()
		p.expect(token.IN, "before search text")
		text := p.unaryExpr()
		return &ast.PatternFind{NodePos: ast.Pos(t), Text: text, Pattern: pattern}
	case token.REPLACE:
		pattern := p.unaryExpr()
		p.expect(token.WITH, "before replacement")
		replacement := p.unaryExpr()
		p.expect(token.IN, "before target text")
		text := p.unaryExpr()
		return &ast.PatternReplace{NodePos: ast.Pos(t), Text: text, Pattern: pattern, Replacement: replacement}
	case token.SPLIT:
		text := p.unaryExpr()
		p.expect(token.BY, "before split pattern")
		pattern := p.unaryExpr()
		return &ast.PatternSplit{NodePos: ast.Pos(t), Text: text, Pattern: pattern}
	default:
		p.errorf("unexpected pattern keyword %s", t.Kind)
		return &ast.Literal{NodePos: ast.Pos(t), Kind: ast.NothingLiteral}
	}
}

func (p *Parser) awaitExpr() ast.Expression {
	t := p.advance() // wait
	p.expect(token.FOR, "after wait")
	inner := p.unaryExpr()
	return &ast.AwaitExpression{NodePos: ast.Pos(t), Expr: inner}
}

// identExpr resolves a bare identifier into a Variable, or, when followed
// by "matches" or a function-call parenthesis, the richer expression forms.
func (p *Parser) identExpr() ast.Expression {
	t := p.advance()
	var expr ast.Expression = &ast.Variable{NodePos: ast.Pos(t), Name: t.Lexeme}
	for p.check(token.MATCHES) {
		mt := p.advance()
		pattern := p.unaryExpr()
		expr = &ast.PatternMatch{NodePos: ast.Pos(mt), Text: expr, Pattern: pattern}
	}
	if p.check(token.LPAREN) {
		p.advance()
		var args []ast.Expression
		if !p.check(token.RPAREN) {
			args = append(args, p.expression())
			for p.match(token.COMMA) {
				args = append(args, p.expression())
			}
		}
		p.expect(token.RPAREN, "to close call arguments")
		expr = &ast.FunctionCall{NodePos: ast.Pos(t), Callee: expr, Arguments: args}
	}
	return expr
}

func parseInt(s string) int64 {
	var n int64
	for _, c := range s {
		n = n*10 + int64(c-'0')
	}
	return n
}

func parseFloat(s string) float64 {
	var intPart, fracPart string
	dot := -1
	for i, c := range s {
		if c == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		intPart = s
	} else {
		intPart = s[:dot]
		fracPart = s[dot+1:]
	}
	whole := float64(parseInt(intPart))
	if fracPart == "" {
		return whole
	}
	frac := float64(parseInt(fracPart))
	div := 1.0
	for range fracPart {
		div *= 10
	}
	return whole + frac/div
}
