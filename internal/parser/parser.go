// Package parser implements a hand-written recursive-descent parser over
// WFL's token stream (§4.2), producing a Program AST plus a list of
// recoverable ParseErrors.
package parser

import (
	"github.com/aledsdavies/wfl/internal/ast"
	"github.com/aledsdavies/wfl/internal/lexer"
	"github.com/aledsdavies/wfl/internal/token"
)

// Parser holds lookahead-1 recursive-descent state over a pre-lexed token
// stream. actionNames accumulates action names as ActionDefinitions are
// parsed, so a later "X with Y" can be resolved to an ActionCall rather
// than textual concatenation (§4.2).
type Parser struct {
	tokens      []token.Token
	pos         int
	errors      []*ParseError
	actionNames map[string]bool
}

// Parse lexes source and parses it into a Program. Any lex error is
// reported as a single ParseError; any parse errors are collected and
// returned alongside the partially-built Program. Per §4.2, a caller must
// not proceed to analysis/typechecking/execution when errors is non-empty.
func Parse(source string) (*ast.Program, []*ParseError) {
	tokens, lexErr := lexer.Tokenize(source)
	p := &Parser{tokens: tokens, actionNames: map[string]bool{}}
	if lexErr != nil {
		if le, ok := lexErr.(*lexer.LexError); ok {
			p.errors = append(p.errors, &ParseError{
				Message: le.Message,
				Line:    le.Position.Line,
				Column:  le.Position.Column,
			})
		}
	}

	// Pre-scan action names so "with" can be disambiguated while parsing
	// statements that appear lexically before the action's definition.
	for i, t := range tokens {
		if t.Kind == token.DEFINE && i+2 < len(tokens) &&
			tokens[i+1].Kind == token.ACTION && tokens[i+2].Kind == token.CALLED &&
			i+3 < len(tokens) {
			p.actionNames[tokens[i+3].Lexeme] = true
		}
	}

	prog := &ast.Program{}
	for !p.atEnd() {
		stmt := p.statement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	return prog, p.errors
}

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) token.Token {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[idx]
}

func (p *Parser) atEnd() bool { return p.peek().Kind == token.EOF }

func (p *Parser) advance() token.Token {
	t := p.peek()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) check(k token.Kind) bool { return p.peek().Kind == k }

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(k token.Kind, context string) (token.Token, bool) {
	if p.check(k) {
		return p.advance(), true
	}
	p.errorf("expected %s %s, found %s", k, context, p.peek().Kind)
	return token.Token{}, false
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, newParseError(p.peek(), format, args...))
}

// statement parses one top-level-or-block statement, recovering via
// synchronize() on error so later statements are still attempted (§4.2).
func (p *Parser) statement() ast.Statement {
	start := p.pos
	stmt := p.parseStatement()
	if stmt == nil && p.pos == start {
		// parseStatement made no progress (unknown leading token): force
		// progress so synchronize() doesn't spin forever on the same token.
		tok := p.peek()
		if suggestion := suggestStatementKeyword(tok.Lexeme); suggestion != "" {
			p.errorf("unexpected token %s (did you mean %q?)", tok.Kind, suggestion)
		} else {
			p.errorf("unexpected token %s", tok.Kind)
		}
		p.advance()
		p.synchronize()
		return nil
	}
	return stmt
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.peek().Kind {
	case token.STORE, token.CREATE:
		return p.parseVariableDeclaration()
	case token.CHANGE:
		return p.parseAssignment()
	case token.DISPLAY:
		return p.parseDisplay()
	case token.CHECK, token.IF:
		return p.parseIf()
	case token.COUNT:
		return p.parseCountLoop()
	case token.FOR:
		return p.parseForEach()
	case token.REPEAT:
		return p.parseRepeat()
	case token.WHILE:
		return p.parseWhileLoop()
	case token.DEFINE:
		return p.parseActionDefinition()
	case token.GIVE, token.RETURN:
		return p.parseReturn()
	case token.BREAK:
		t := p.advance()
		return &ast.Break{NodePos: ast.Pos(t)}
	case token.SKIP, token.CONTINUE:
		t := p.advance()
		return &ast.Continue{NodePos: ast.Pos(t)}
	case token.EXIT:
		t := p.advance()
		p.match(token.LOOP)
		return &ast.Exit{NodePos: ast.Pos(t)}
	case token.OPEN:
		return p.parseOpenFile()
	case token.CLOSE:
		return p.parseCloseFile()
	case token.READ:
		return p.parseReadFile()
	case token.WRITE:
		return p.parseWriteFile()
	case token.WAIT:
		return p.parseWaitFor()
	case token.TRY:
		return p.parseTry()
	case token.PUSH:
		return p.parsePush()
	case token.IDENT:
		return p.parseIdentLeadStatement()
	default:
		return nil
	}
}

// block parses statements until the given closer keyword (consumed), used
// for every "end X" multi-line form (§4.2 Block termination).
func (p *Parser) block(closer token.Kind, context string) []ast.Statement {
	var stmts []ast.Statement
	for !p.atEnd() && !(p.check(token.END) && p.peekAt(1).Kind == closer) {
		if p.check(token.END) {
			// "end" with a mismatched/absent follower: treat as stranded.
			break
		}
		s := p.statement()
		if s != nil {
			stmts = append(stmts, s)
		}
	}
	if p.check(token.END) {
		p.advance()
		p.expect(closer, "to close "+context)
	} else {
		p.errorf("missing 'end %s' to close %s", closer, context)
	}
	return stmts
}

func (p *Parser) parseVariableDeclaration() ast.Statement {
	start := p.advance() // store|create
	nameTok, ok := p.expect(token.IDENT, "variable name")
	if !ok {
		return nil
	}
	p.expect(token.AS, "before value")
	value := p.expression()
	return &ast.VariableDeclaration{NodePos: ast.Pos(start), Name: nameTok.Lexeme, Value: value}
}

func (p *Parser) parseAssignment() ast.Statement {
	start := p.advance() // change
	nameTok, ok := p.expect(token.IDENT, "variable name")
	if !ok {
		return nil
	}
	p.expect(token.TO, "before new value")
	value := p.expression()
	return &ast.Assignment{NodePos: ast.Pos(start), Name: nameTok.Lexeme, Value: value}
}

func (p *Parser) parseDisplay() ast.Statement {
	start := p.advance() // display
	value := p.expression()
	return &ast.Display{NodePos: ast.Pos(start), Value: value}
}

// parseIf handles both "check if"/"if" forms, and both single-line and
// block forms (§4.2).
func (p *Parser) parseIf() ast.Statement {
	start := p.advance() // check or if
	if start.Kind == token.CHECK {
		p.expect(token.IF, "after check")
	}
	cond := p.expression()
	if p.match(token.THEN) {
		thenStmt := p.statement()
		var elseStmt ast.Statement
		if p.match(token.OTHERWISE) {
			elseStmt = p.statement()
		}
		return &ast.SingleLineIf{NodePos: ast.Pos(start), Condition: cond, Then: thenStmt, Else: elseStmt}
	}
	p.expect(token.COLON, "after condition")
	thenBlock := p.ifBlockUntilOtherwiseOrEnd()
	var elseBlock []ast.Statement
	if p.check(token.OTHERWISE) {
		p.advance()
		p.match(token.COLON)
		elseBlock = p.block(token.CHECK, "if statement")
	} else if p.check(token.END) {
		p.advance()
		p.expect(token.CHECK, "to close if statement")
	} else {
		p.errorf("missing 'end check' to close if statement")
	}
	return &ast.IfStatement{NodePos: ast.Pos(start), Condition: cond, Then: thenBlock, Else: elseBlock}
}

func (p *Parser) ifBlockUntilOtherwiseOrEnd() []ast.Statement {
	var stmts []ast.Statement
	for !p.atEnd() && !p.check(token.OTHERWISE) && !p.check(token.END) {
		s := p.statement()
		if s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

func (p *Parser) parseCountLoop() ast.Statement {
	start := p.advance() // count
	p.expect(token.FROM, "after count")
	from := p.expression()
	p.expect(token.TO, "in count range")
	to := p.expression()
	var step ast.Expression
	downward := false
	if p.match(token.BY) {
		step = p.expression()
	}
	if p.match(token.DOWNWARD) {
		downward = true
	}
	p.expect(token.COLON, "after count range")
	body := p.block(token.COUNT, "count loop")
	return &ast.CountLoop{NodePos: ast.Pos(start), Start: from, End: to, Step: step, Downward: downward, Body: body}
}

func (p *Parser) parseForEach() ast.Statement {
	start := p.advance() // for
	p.expect(token.EACH, "after for")
	nameTok, ok := p.expect(token.IDENT, "loop variable name")
	if !ok {
		return nil
	}
	p.expect(token.IN, "after loop variable")
	collection := p.expression()
	reversed := p.match(token.REVERSED)
	p.expect(token.COLON, "after for-each header")
	body := p.block(token.FOR, "for-each loop")
	return &ast.ForEachLoop{NodePos: ast.Pos(start), ItemName: nameTok.Lexeme, Collection: collection, Reversed: reversed, Body: body}
}

// parseRepeat handles "repeat while COND:", "repeat until COND:", and bare
// "repeat:" (forever); "repeat while true:" is folded to ForeverLoop too,
// per §9's treatment of the two forever spellings as synonyms.
func (p *Parser) parseRepeat() ast.Statement {
	start := p.advance() // repeat
	switch {
	case p.match(token.WHILE):
		cond := p.expression()
		p.expect(token.COLON, "after repeat-while condition")
		body := p.block(token.REPEAT, "repeat loop")
		if lit, ok := cond.(*ast.Literal); ok && lit.Kind == ast.BooleanLiteral && lit.Bool {
			return &ast.ForeverLoop{NodePos: ast.Pos(start), Body: body}
		}
		return &ast.RepeatWhileLoop{NodePos: ast.Pos(start), Condition: cond, Body: body}
	case p.match(token.UNTIL):
		cond := p.expression()
		p.expect(token.COLON, "after repeat-until condition")
		body := p.block(token.REPEAT, "repeat loop")
		return &ast.RepeatUntilLoop{NodePos: ast.Pos(start), Condition: cond, Body: body}
	default:
		p.match(token.FOREVER)
		p.expect(token.COLON, "after repeat")
		body := p.block(token.REPEAT, "repeat loop")
		return &ast.ForeverLoop{NodePos: ast.Pos(start), Body: body}
	}
}

func (p *Parser) parseWhileLoop() ast.Statement {
	start := p.advance() // while
	cond := p.expression()
	p.expect(token.COLON, "after while condition")
	body := p.block(token.WHILE, "while loop")
	return &ast.WhileLoop{NodePos: ast.Pos(start), Condition: cond, Body: body}
}

func (p *Parser) parseActionDefinition() ast.Statement {
	start := p.advance() // define
	p.expect(token.ACTION, "after define")
	p.expect(token.CALLED, "after action")
	nameTok, ok := p.expect(token.IDENT, "action name")
	if !ok {
		return nil
	}
	p.actionNames[nameTok.Lexeme] = true

	var params []ast.Parameter
	if p.match(token.NEEDS) {
		for {
			pTok, ok := p.expect(token.IDENT, "parameter name")
			if !ok {
				break
			}
			params = append(params, ast.Parameter{Name: pTok.Lexeme})
			if !p.match(token.AND) {
				break
			}
		}
	}
	returnType := ""
	if p.match(token.GIVE) {
		p.match(token.BACK)
		if p.check(token.IDENT) {
			returnType = p.advance().Lexeme
		}
	}
	p.expect(token.COLON, "after action signature")
	body := p.block(token.ACTION, "action definition")
	return &ast.ActionDefinition{NodePos: ast.Pos(start), Name: nameTok.Lexeme, Parameters: params, Body: body, ReturnType: returnType}
}

func (p *Parser) parseReturn() ast.Statement {
	start := p.advance() // give|return
	if start.Kind == token.GIVE {
		p.expect(token.BACK, "after give")
	}
	if p.atStatementBoundary() {
		return &ast.Return{NodePos: ast.Pos(start)}
	}
	value := p.expression()
	return &ast.Return{NodePos: ast.Pos(start), Value: value}
}

// atStatementBoundary reports whether the next token cannot start an
// expression, used to detect a bare "give back"/"return" with no value.
func (p *Parser) atStatementBoundary() bool {
	switch p.peek().Kind {
	case token.EOF, token.END, token.OTHERWISE, token.WHEN:
		return true
	}
	return statementStarters[p.peek().Kind]
}

// parseOpenFile handles both "open file at PATH as H" and the HTTP GET
// form "open url at URL as X" (§3's HttpGet reuses the same "open ... as"
// shape the file form uses).
func (p *Parser) parseOpenFile() ast.Statement {
	start := p.advance() // open
	if p.match(token.URL) {
		p.match(token.AT)
		url := p.expression()
		p.expect(token.AS, "before result variable")
		nameTok, ok := p.expect(token.IDENT, "result variable name")
		if !ok {
			return nil
		}
		return &ast.HttpGet{NodePos: ast.Pos(start), URL: url, VariableName: nameTok.Lexeme}
	}
	p.expect(token.FILE, "after open")
	p.match(token.AT)
	path := p.expression()
	p.expect(token.AS, "before handle variable")
	nameTok, ok := p.expect(token.IDENT, "handle variable name")
	if !ok {
		return nil
	}
	return &ast.OpenFile{NodePos: ast.Pos(start), Path: path, VariableName: nameTok.Lexeme}
}

func (p *Parser) parseCloseFile() ast.Statement {
	start := p.advance() // close
	p.expect(token.FILE, "after close")
	file := p.expression()
	return &ast.CloseFile{NodePos: ast.Pos(start), File: file}
}

func (p *Parser) parseReadFile() ast.Statement {
	start := p.advance() // read
	p.match(token.FROM)
	source := p.expression()
	p.expect(token.INTO, "before destination variable")
	nameTok, ok := p.expect(token.IDENT, "destination variable name")
	if !ok {
		return nil
	}
	return &ast.ReadFile{NodePos: ast.Pos(start), Source: source, VariableName: nameTok.Lexeme}
}

// parseWriteFile handles "write CONTENT to FILE [appended]" and the HTTP
// POST form "write DATA to url URL as X".
func (p *Parser) parseWriteFile() ast.Statement {
	start := p.advance() // write
	content := p.expression()
	p.expect(token.TO, "before destination file")
	if p.match(token.URL) {
		p.match(token.AT)
		url := p.expression()
		p.expect(token.AS, "before result variable")
		nameTok, ok := p.expect(token.IDENT, "result variable name")
		if !ok {
			return nil
		}
		return &ast.HttpPost{NodePos: ast.Pos(start), URL: url, Data: content, VariableName: nameTok.Lexeme}
	}
	file := p.expression()
	mode := ast.Overwrite
	if p.match(token.APPENDED) {
		mode = ast.AppendMode
	}
	return &ast.WriteFile{NodePos: ast.Pos(start), File: file, Content: content, Mode: mode}
}

func (p *Parser) parseWaitFor() ast.Statement {
	start := p.advance() // wait
	p.expect(token.FOR, "after wait")
	inner := p.statement()
	return &ast.WaitFor{NodePos: ast.Pos(start), Inner: inner}
}

func (p *Parser) parseTry() ast.Statement {
	start := p.advance() // try
	p.expect(token.COLON, "after try")
	body := p.tryBlockUntil(token.WHEN)
	p.expect(token.WHEN, "to start error handler")
	p.expect(token.ERROR, "after when")
	errName := "error"
	if p.match(token.AS) {
		if errNameTok, ok := p.expect(token.IDENT, "error binding name"); ok {
			errName = errNameTok.Lexeme
		}
	} else if p.check(token.IDENT) {
		errName = p.advance().Lexeme
	}
	p.expect(token.COLON, "after when error")
	when := p.tryBlockUntil(token.OTHERWISE)
	var otherwise []ast.Statement
	if p.match(token.OTHERWISE) {
		p.match(token.COLON)
		otherwise = p.tryBlockUntilEnd()
	}
	if p.check(token.END) {
		p.advance()
		p.expect(token.TRY, "to close try statement")
	} else {
		p.errorf("missing 'end try' to close try statement")
	}
	return &ast.Try{NodePos: ast.Pos(start), Body: body, ErrorName: errName, When: when, Otherwise: otherwise}
}

func (p *Parser) tryBlockUntil(stop token.Kind) []ast.Statement {
	var stmts []ast.Statement
	for !p.atEnd() && !p.check(stop) && !p.check(token.END) {
		s := p.statement()
		if s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

func (p *Parser) tryBlockUntilEnd() []ast.Statement {
	var stmts []ast.Statement
	for !p.atEnd() && !p.check(token.END) {
		s := p.statement()
		if s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

func (p *Parser) parsePush() ast.Statement {
	start := p.advance() // push
	value := p.expression()
	p.expect(token.TO, "before destination list")
	list := p.expression()
	return &ast.Push{NodePos: ast.Pos(start), List: list, Value: value}
}

// parseIdentLeadStatement handles "NAME with ARG and ARG" action calls and
// bare expression statements that begin with an identifier, wrapping either
// in an ExpressionStatement. HttpGet/HttpPost nodes are not built here; they
// come from parseOpenFile ("open url ...") and parseWriteFile ("... to url").
func (p *Parser) parseIdentLeadStatement() ast.Statement {
	start := p.peek()
	expr := p.expression()
	return &ast.ExpressionStatement{NodePos: ast.Pos(start), Expression: expr}
}
