package lexer

import (
	"unicode"

	"github.com/xplshn/gsc/pkg/token"
	"github.com/xplshn/gsc/pkg/util"
)

type Lexer struct {
	source []rune
	pos    int
	line   int
	column int
}

func NewLexer(source []rune) *Lexer {
	return &Lexer{source: source, line: 1, column: 1}
}

// Tokenize scans the whole source and returns its tokens in order.
// The first unrecognized character aborts the scan.
func Tokenize(source string) ([]token.Token, error) {
	l := NewLexer([]rune(source))
	var tokens []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == token.EOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token, or a token of type EOF once the source is exhausted
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespace()
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine), nil
	}

	ch := l.peek()
	if isLetter(ch) {
		l.advance()
		return l.identifierOrKeyword(startPos, startCol, startLine), nil
	}
	if isDigit(ch) {
		return l.intLiteral(startPos, startCol, startLine), nil
	}

	l.advance()
	if tokType, ok := token.SingleChar[ch]; ok {
		return l.makeToken(tokType, "", startPos, startCol, startLine), nil
	}

	tok := l.makeToken(token.EOF, string(ch), startPos, startCol, startLine)
	return tok, util.Errorf(util.LexicalError, tok, "unexpected character: '%c'", ch)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for isLetter(l.peek()) || isDigit(l.peek()) {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, "", startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

// intLiteral keeps the digits as written; range checking happens downstream, if at all
func (l *Lexer) intLiteral(startPos, startCol, startLine int) token.Token {
	for isDigit(l.peek()) {
		l.advance()
	}
	return l.makeToken(token.IntLit, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

// ASCII only, like the C locale's isalpha
func isLetter(ch rune) bool { return ch <= unicode.MaxASCII && unicode.IsLetter(ch) }
func isDigit(ch rune) bool  { return ch >= '0' && ch <= '9' }
