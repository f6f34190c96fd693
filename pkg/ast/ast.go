// Package ast defines the tree the parser builds and the code generator walks.
//
// Each node category (Stmt, Expr, Term) is a closed set: the interfaces carry
// an unexported marker method, and traversal goes through a visitor interface
// with one method per variant. Adding a variant therefore fails to compile
// until every visitor handles it.
package ast

import (
	"github.com/xplshn/gsc/pkg/token"
)

// Program is the root of the tree. It owns the arena its nodes live in.
type Program struct {
	Stmts []Stmt
	arena *Arena
}

// Release drops every node of the program at once
func (p *Program) Release() {
	if p.arena != nil {
		p.arena.Release()
	}
	p.Stmts = nil
}

// --- Statements ---

type Stmt interface {
	stmtNode()
	Pos() token.Token
	Accept(v StmtVisitor) error
}

type StmtVisitor interface {
	VisitExit(s *ExitStmt) error
	VisitLet(s *LetStmt) error
}

type ExitStmt struct {
	Tok  token.Token
	Expr Expr
}

type LetStmt struct {
	Tok  token.Token
	Name string
	// NameTok locates the identifier for diagnostics
	NameTok token.Token
	Expr    Expr
}

func (*ExitStmt) stmtNode() {}
func (*LetStmt) stmtNode()  {}

func (s *ExitStmt) Pos() token.Token { return s.Tok }
func (s *LetStmt) Pos() token.Token  { return s.Tok }

func (s *ExitStmt) Accept(v StmtVisitor) error { return v.VisitExit(s) }
func (s *LetStmt) Accept(v StmtVisitor) error  { return v.VisitLet(s) }

// --- Expressions ---

type Expr interface {
	exprNode()
	Accept(v ExprVisitor) error
}

type ExprVisitor interface {
	VisitTerm(e *TermExpr) error
	VisitBinary(e *BinaryExpr) error
}

type TermExpr struct{ Term Term }

type BinaryExpr struct {
	Op          BinaryOp
	Tok         token.Token
	Left, Right Expr
}

func (*TermExpr) exprNode()   {}
func (*BinaryExpr) exprNode() {}

func (e *TermExpr) Accept(v ExprVisitor) error   { return v.VisitTerm(e) }
func (e *BinaryExpr) Accept(v ExprVisitor) error { return v.VisitBinary(e) }

// BinaryOp is the operator tag of a BinaryExpr
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
)

func (op BinaryOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	default:
		return "?"
	}
}

// BinaryOpFor maps an operator token to its BinaryOp
func BinaryOpFor(t token.Type) (BinaryOp, bool) {
	switch t {
	case token.Plus:
		return Add, true
	case token.Minus:
		return Sub, true
	case token.Star:
		return Mul, true
	case token.Slash:
		return Div, true
	default:
		return 0, false
	}
}

// --- Terms ---

type Term interface {
	termNode()
	Accept(v TermVisitor) error
}

type TermVisitor interface {
	VisitIntLit(t *IntLit) error
	VisitIdent(t *Ident) error
	VisitParen(t *Paren) error
}

// IntLit keeps the literal's digits exactly as written
type IntLit struct {
	Tok   token.Token
	Value string
}

type Ident struct {
	Tok  token.Token
	Name string
}

type Paren struct {
	Tok  token.Token
	Expr Expr
}

func (*IntLit) termNode() {}
func (*Ident) termNode()  {}
func (*Paren) termNode()  {}

func (t *IntLit) Accept(v TermVisitor) error { return v.VisitIntLit(t) }
func (t *Ident) Accept(v TermVisitor) error  { return v.VisitIdent(t) }
func (t *Paren) Accept(v TermVisitor) error  { return v.VisitParen(t) }
