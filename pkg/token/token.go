package token

type Type int

const (
	EOF Type = iota
	Semi
	IntLit
	Ident
	Exit
	Let
	Eq
	LParen
	RParen
	Plus
	Minus
	Star
	Slash
)

var KeywordMap = map[string]Type{
	"exit": Exit,
	"let":  Let,
}

var typeNames = map[Type]string{
	EOF:    "end of input",
	Semi:   "';'",
	IntLit: "integer literal",
	Ident:  "identifier",
	Exit:   "'exit'",
	Let:    "'let'",
	Eq:     "'='",
	LParen: "'('",
	RParen: "')'",
	Plus:   "'+'",
	Minus:  "'-'",
	Star:   "'*'",
	Slash:  "'/'",
}

// SingleChar maps the one-character punctuators to their tags
var SingleChar = map[rune]Type{
	';': Semi,
	'=': Eq,
	'(': LParen,
	')': RParen,
	'+': Plus,
	'-': Minus,
	'*': Star,
	'/': Slash,
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown token"
}

// BinaryPrecedence reports the binding level of a binary operator token.
// Higher binds tighter; ok is false for anything that is not a binary operator.
func BinaryPrecedence(t Type) (prec int, ok bool) {
	switch t {
	case Plus, Minus:
		return 0, true
	case Star, Slash:
		return 1, true
	default:
		return -1, false
	}
}

type Token struct {
	Type   Type
	Value  string
	Line   int
	Column int
	Len    int
}

// HasPayload reports whether the token carries source text
func (t Token) HasPayload() bool { return t.Type == IntLit || t.Type == Ident }
