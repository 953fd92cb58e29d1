package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/fallen/migen/internal/token"
)

// Lexer turns source text into tokens. Block structure comes from leading
// whitespace: a deeper line opens a block with Indent, a shallower one
// closes blocks with one Dedent per level. Line breaks inside brackets are
// not significant.
type Lexer struct {
	input []rune

	pos int

	ch   rune
	line int
	col  int

	pending     []token.Token
	indents     []int
	atLineStart bool
	parenDepth  int
	last        token.Kind
	done        bool
	errors      []string
}

func New(input string) *Lexer {
	l := &Lexer{
		input:       []rune(input),
		line:        1,
		col:         0,
		indents:     []int{0},
		atLineStart: true,
		last:        token.Newline,
	}
	l.readChar()
	return l
}

func (l *Lexer) NextToken() token.Token {
	tok := l.next()
	l.last = tok.Kind
	return tok
}

func (l *Lexer) next() token.Token {
	for {
		if len(l.pending) > 0 {
			tok := l.pending[0]
			l.pending = l.pending[1:]
			return tok
		}

		if l.atLineStart && l.parenDepth == 0 {
			l.atLineStart = false
			l.scanIndent()
			continue
		}

		l.skipWhitespaceAndComments()
		pos := l.position()

		switch l.ch {
		case 0:
			if !l.done {
				l.done = true
				// An unclosed bracket leaves the line open so the parser
				// sees the input as cut short.
				if l.parenDepth > 0 {
					continue
				}
				if l.last != token.Newline {
					l.pending = append(l.pending, token.Token{Kind: token.Newline, Pos: pos})
				}
				for len(l.indents) > 1 {
					l.indents = l.indents[:len(l.indents)-1]
					l.pending = append(l.pending, token.Token{Kind: token.Dedent, Pos: pos})
				}
				continue
			}
			return token.Token{Kind: token.EOF, Lexeme: "", Pos: pos}
		case '\n':
			l.readChar()
			if l.parenDepth > 0 {
				continue
			}
			l.atLineStart = true
			if l.last == token.Newline {
				// blank line
				continue
			}
			return token.Token{Kind: token.Newline, Lexeme: "\n", Pos: pos}
		}

		return l.scanToken(pos)
	}
}

// scanIndent measures the leading whitespace of a new line and queues the
// Indent/Dedent tokens it implies. Blank and comment-only lines are ignored.
func (l *Lexer) scanIndent() {
	width := 0
	for {
		if l.ch == ' ' {
			width++
		} else if l.ch == '\t' {
			width = (width/8 + 1) * 8
		} else if l.ch != '\r' && l.ch != '\f' {
			break
		}
		l.readChar()
	}
	if l.ch == '\n' || l.ch == '#' || l.ch == 0 {
		return
	}

	pos := l.position()
	top := l.indents[len(l.indents)-1]
	switch {
	case width > top:
		l.indents = append(l.indents, width)
		l.pending = append(l.pending, token.Token{Kind: token.Indent, Pos: pos})
	case width < top:
		for width < l.indents[len(l.indents)-1] {
			l.indents = l.indents[:len(l.indents)-1]
			l.pending = append(l.pending, token.Token{Kind: token.Dedent, Pos: pos})
		}
		if width != l.indents[len(l.indents)-1] {
			l.errorf(pos, "unindent does not match any outer indentation level")
			l.pending = append(l.pending, token.Token{Kind: token.Illegal, Lexeme: "", Pos: pos})
		}
	}
}

func (l *Lexer) scanToken(pos token.Position) token.Token {
	ch := l.ch

	// Numbers
	if isDigit(ch) {
		lit := l.readNumber()
		return token.Token{
			Kind:   token.Int,
			Lexeme: lit,
			Pos:    pos,
		}
	}

	// Identifiers / keywords
	if isLetter(ch) {
		lit := l.readIdentifier()
		kind := token.LookupIdent(lit)
		return token.Token{
			Kind:   kind,
			Lexeme: lit,
			Pos:    pos,
		}
	}

	// Single- and two-character tokens
	var kind token.Kind
	var lexeme string

	switch ch {
	case ',':
		kind = token.Comma
		lexeme = ","
	case '.':
		kind = token.Dot
		lexeme = "."
	case ':':
		kind = token.Colon
		lexeme = ":"
	case '(':
		l.parenDepth++
		kind = token.LParen
		lexeme = "("
	case ')':
		if l.parenDepth > 0 {
			l.parenDepth--
		}
		kind = token.RParen
		lexeme = ")"
	case '[':
		l.parenDepth++
		kind = token.LBracket
		lexeme = "["
	case ']':
		if l.parenDepth > 0 {
			l.parenDepth--
		}
		kind = token.RBracket
		lexeme = "]"
	case '+':
		kind = token.Plus
		lexeme = "+"
	case '-':
		kind = token.Minus
		lexeme = "-"
	case '*':
		kind = token.Star
		lexeme = "*"
	case '/':
		kind = token.Slash
		lexeme = "/"
	case '%':
		kind = token.Percent
		lexeme = "%"
	case '|':
		kind = token.Pipe
		lexeme = "|"
	case '^':
		kind = token.Caret
		lexeme = "^"
	case '&':
		kind = token.Amp
		lexeme = "&"
	case '~':
		kind = token.Tilde
		lexeme = "~"
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			kind = token.NotEq
			lexeme = "!="
		} else {
			kind = token.Illegal
			lexeme = "!"
		}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			kind = token.Eq
			lexeme = "=="
		} else {
			kind = token.Assign
			lexeme = "="
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			kind = token.LtEq
			lexeme = "<="
		case '<':
			l.readChar()
			kind = token.Shl
			lexeme = "<<"
		default:
			kind = token.Lt
			lexeme = "<"
		}
	case '>':
		switch l.peekChar() {
		case '=':
			l.readChar()
			kind = token.GtEq
			lexeme = ">="
		case '>':
			l.readChar()
			kind = token.Shr
			lexeme = ">>"
		default:
			kind = token.Gt
			lexeme = ">"
		}
	default:
		kind = token.Illegal
		lexeme = string(ch)
	}

	if kind == token.Illegal {
		l.errorf(pos, fmt.Sprintf("unexpected character %q", lexeme))
	}

	l.readChar()

	return token.Token{
		Kind:   kind,
		Lexeme: lexeme,
		Pos:    pos,
	}
}

// Helpers

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.pos >= len(l.input) {
		l.ch = 0
		return
	}

	l.ch = l.input[l.pos]
	l.pos++
	l.col++
}

func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) position() token.Position {
	return token.Position{Line: l.line, Column: l.col}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\f':
			l.readChar()
		case l.ch == '\\' && l.peekChar() == '\n':
			// explicit line joining
			l.readChar()
			l.readChar()
		case l.ch == '#':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos - 1 // current rune is already in l.ch
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return string(l.input[start:l.cursor()])
}

// readNumber accepts decimal literals and 0x/0o/0b prefixed ones, with
// underscores as digit separators.
func (l *Lexer) readNumber() string {
	start := l.pos - 1
	if l.ch == '0' {
		switch l.peekChar() {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			l.readChar()
			l.readChar()
			for isHexDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
			return string(l.input[start:l.cursor()])
		}
	}
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return string(l.input[start:l.cursor()])
}

// cursor is the input offset of l.ch, or len(input) once exhausted.
func (l *Lexer) cursor() int {
	if l.ch == 0 {
		return len(l.input)
	}
	return l.pos - 1
}

func (l *Lexer) errorf(pos token.Position, msg string) {
	l.errors = append(l.errors, formatError(pos, msg))
}

func formatError(pos token.Position, msg string) string {
	return fmt.Sprintf("%d:%d: %s", pos.Line, pos.Column, msg)
}

func (l *Lexer) Errors() []string {
	return l.errors
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	if ch > utf8.RuneSelf {
		return false
	}
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
