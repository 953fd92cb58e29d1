package token

import "fmt"

type Kind int

const (
	Illegal Kind = iota
	EOF

	Newline // end of a logical line
	Indent  // indentation increased
	Dedent  // indentation decreased

	Ident // Identifier
	Int   // Integer

	// Keywords
	Def
	If
	Elif
	Else
	While
	For
	In
	Yield
	Return
	Pass
	Break
	Continue
	True
	False
	And
	Or
	Not

	// Operators
	Assign // =

	Plus    // +
	Minus   // -
	Star    // *
	Slash   // /
	Percent // %
	Shl     // <<
	Shr     // >>
	Pipe    // |
	Caret   // ^
	Amp     // &
	Tilde   // ~

	Eq    // ==
	NotEq // !=
	Lt    // <
	LtEq  // <=
	Gt    // >
	GtEq  // >=

	// Symbols
	Comma // ,
	Dot   // .
	Colon // :

	LParen   // (
	RParen   // )
	LBracket // [
	RBracket // ]
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

var kindNames = [...]string{
	Illegal:  "Illegal",
	EOF:      "EOF",
	Newline:  "Newline",
	Indent:   "Indent",
	Dedent:   "Dedent",
	Ident:    "Ident",
	Int:      "Int",
	Def:      "Def",
	If:       "If",
	Elif:     "Elif",
	Else:     "Else",
	While:    "While",
	For:      "For",
	In:       "In",
	Yield:    "Yield",
	Return:   "Return",
	Pass:     "Pass",
	Break:    "Break",
	Continue: "Continue",
	True:     "True",
	False:    "False",
	And:      "And",
	Or:       "Or",
	Not:      "Not",
	Assign:   "Assign",
	Plus:     "Plus",
	Minus:    "Minus",
	Star:     "Star",
	Slash:    "Slash",
	Percent:  "Percent",
	Shl:      "Shl",
	Shr:      "Shr",
	Pipe:     "Pipe",
	Caret:    "Caret",
	Amp:      "Amp",
	Tilde:    "Tilde",
	Eq:       "Eq",
	NotEq:    "NotEq",
	Lt:       "Lt",
	LtEq:     "LtEq",
	Gt:       "Gt",
	GtEq:     "GtEq",
	Comma:    "Comma",
	Dot:      "Dot",
	Colon:    "Colon",
	LParen:   "LParen",
	RParen:   "RParen",
	LBracket: "LBracket",
	RBracket: "RBracket",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsComparison reports whether k is one of the chained relational operators.
func (k Kind) IsComparison() bool {
	switch k {
	case Eq, NotEq, Lt, LtEq, Gt, GtEq:
		return true
	}
	return false
}

var keywords = map[string]Kind{
	"def":      Def,
	"if":       If,
	"elif":     Elif,
	"else":     Else,
	"while":    While,
	"for":      For,
	"in":       In,
	"yield":    Yield,
	"return":   Return,
	"pass":     Pass,
	"break":    Break,
	"continue": Continue,
	"True":     True,
	"False":    False,
	"and":      And,
	"or":       Or,
	"not":      Not,
}

func LookupIdent(lit string) Kind {
	if kind, ok := keywords[lit]; ok {
		return kind
	}
	return Ident
}
