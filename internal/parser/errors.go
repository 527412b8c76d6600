package parser

import (
	"fmt"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/aledsdavies/wfl/internal/token"
)

// ParseError is a single recoverable parse failure (§4.2, §7). Parsing
// never aborts on the first error: errors accumulate and the caller
// decides whether to proceed past them (it must not, per §4.2 Failures).
type ParseError struct {
	Message  string
	Line     int
	Column   int
	Token    token.Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at %d:%d", e.Message, e.Line, e.Column)
}

func newParseError(tok token.Token, format string, args ...any) *ParseError {
	return &ParseError{
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Position.Line,
		Column:  tok.Position.Column,
		Token:   tok,
	}
}

// statementStarters is the keyword set the synchronizer scans forward to
// after a parse error (§4.2 Failures).
var statementStarters = map[token.Kind]bool{
	token.STORE:   true,
	token.CREATE:  true,
	token.CHANGE:  true,
	token.DISPLAY: true,
	token.CHECK:   true,
	token.IF:      true,
	token.COUNT:   true,
	token.FOR:     true,
	token.DEFINE:  true,
	token.REPEAT:  true,
	token.WHILE:   true,
	token.BREAK:   true,
	token.EXIT:    true,
	token.SKIP:    true,
	token.CONTINUE: true,
	token.RETURN:  true,
	token.GIVE:    true,
	token.OPEN:    true,
	token.CLOSE:   true,
	token.READ:    true,
	token.WRITE:   true,
	token.WAIT:    true,
	token.TRY:     true,
	token.PUSH:    true,
}

// statementStarterWords are the spellings of statementStarters' keys, used
// as fuzzy-match candidates when a line starts with an unrecognized word
// (mirrors the analyzer's closestMatch over known names).
var statementStarterWords = []string{
	"store", "create", "change", "display", "check", "if", "count", "for",
	"define", "repeat", "while", "break", "exit", "skip", "continue",
	"return", "give", "open", "close", "read", "write", "wait", "try", "push",
}

// suggestStatementKeyword returns the closest statement-leading keyword to
// word, or "" if word isn't close enough to any of them to guess.
func suggestStatementKeyword(word string) string {
	if word == "" {
		return ""
	}
	ranks := fuzzy.RankFindFold(word, statementStarterWords)
	if len(ranks) == 0 {
		return ""
	}
	return ranks[0].Target
}

// synchronize discards tokens until the next statement-starting keyword,
// the matching "end" of a stranded block, or EOF (§4.2).
func (p *Parser) synchronize() {
	for !p.atEnd() {
		if p.check(token.END) {
			return
		}
		if statementStarters[p.peek().Kind] {
			return
		}
		p.advance()
	}
}
