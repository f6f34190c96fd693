package util

import (
	"fmt"

	"github.com/xplshn/gsc/pkg/token"
)

// ErrorKind classifies a fatal compile error by the stage that detected it
type ErrorKind int

const (
	LexicalError ErrorKind = iota
	SyntaxError
	SemanticError
)

func (k ErrorKind) String() string {
	switch k {
	case LexicalError:
		return "lexical error"
	case SyntaxError:
		return "syntax error"
	case SemanticError:
		return "semantic error"
	default:
		return "error"
	}
}

// Diagnostic is the error value every compiler stage returns. Compilation
// stops at the first one.
type Diagnostic struct {
	Kind ErrorKind
	Tok  token.Token
	Msg  string
}

func (d *Diagnostic) Error() string {
	if d.Tok.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Msg)
	}
	return fmt.Sprintf("%d:%d: %s: %s", d.Tok.Line, d.Tok.Column, d.Kind, d.Msg)
}

// Errorf builds a Diagnostic anchored at tok
func Errorf(kind ErrorKind, tok token.Token, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}
