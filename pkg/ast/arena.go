package ast

import "github.com/xplshn/gsc/pkg/token"

const chunkSize = 256

// pool hands out pointers into fixed-capacity chunks. A chunk is never
// grown past its capacity, so earlier pointers stay valid.
type pool[T any] struct {
	chunks [][]T
}

func (p *pool[T]) alloc() *T {
	if n := len(p.chunks); n == 0 || len(p.chunks[n-1]) == cap(p.chunks[n-1]) {
		p.chunks = append(p.chunks, make([]T, 0, chunkSize))
	}
	last := &p.chunks[len(p.chunks)-1]
	var zero T
	*last = append(*last, zero)
	return &(*last)[len(*last)-1]
}

func (p *pool[T]) len() int {
	n := 0
	for _, c := range p.chunks {
		n += len(c)
	}
	return n
}

// Arena owns every node of one parse. Nodes are not freed individually;
// Release discards all of them together.
type Arena struct {
	exits    pool[ExitStmt]
	lets     pool[LetStmt]
	terms    pool[TermExpr]
	binaries pool[BinaryExpr]
	intLits  pool[IntLit]
	idents   pool[Ident]
	parens   pool[Paren]
}

func NewArena() *Arena { return &Arena{} }

// NewProgram returns an empty program bound to this arena
func (a *Arena) NewProgram() *Program { return &Program{arena: a} }

// Len is the number of nodes allocated so far
func (a *Arena) Len() int {
	return a.exits.len() + a.lets.len() + a.terms.len() + a.binaries.len() +
		a.intLits.len() + a.idents.len() + a.parens.len()
}

func (a *Arena) Release() { *a = Arena{} }

func (a *Arena) NewExit(tok token.Token, expr Expr) *ExitStmt {
	n := a.exits.alloc()
	n.Tok, n.Expr = tok, expr
	return n
}

func (a *Arena) NewLet(tok, nameTok token.Token, expr Expr) *LetStmt {
	n := a.lets.alloc()
	n.Tok, n.NameTok, n.Name, n.Expr = tok, nameTok, nameTok.Value, expr
	return n
}

func (a *Arena) NewTermExpr(term Term) *TermExpr {
	n := a.terms.alloc()
	n.Term = term
	return n
}

func (a *Arena) NewBinary(tok token.Token, op BinaryOp, left, right Expr) *BinaryExpr {
	n := a.binaries.alloc()
	n.Tok, n.Op, n.Left, n.Right = tok, op, left, right
	return n
}

func (a *Arena) NewIntLit(tok token.Token) *IntLit {
	n := a.intLits.alloc()
	n.Tok, n.Value = tok, tok.Value
	return n
}

func (a *Arena) NewIdent(tok token.Token) *Ident {
	n := a.idents.alloc()
	n.Tok, n.Name = tok, tok.Value
	return n
}

func (a *Arena) NewParen(tok token.Token, expr Expr) *Paren {
	n := a.parens.alloc()
	n.Tok, n.Expr = tok, expr
	return n
}
