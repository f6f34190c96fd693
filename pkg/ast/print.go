package ast

import "strings"

// String renders a node as an s-expression, e.g. "(exit (+ 1 (* 2 3)))".
// Parenthesized terms are kept as "(paren ...)" so grouping stays visible.
func String(node any) string {
	var sb strings.Builder
	p := &printer{sb: &sb}
	switch n := node.(type) {
	case *Program:
		sb.WriteString("(program")
		for _, s := range n.Stmts {
			sb.WriteByte(' ')
			s.Accept(p)
		}
		sb.WriteByte(')')
	case Stmt:
		n.Accept(p)
	case Expr:
		n.Accept(p)
	case Term:
		n.Accept(p)
	}
	return sb.String()
}

type printer struct{ sb *strings.Builder }

func (p *printer) VisitExit(s *ExitStmt) error {
	p.sb.WriteString("(exit ")
	s.Expr.Accept(p)
	p.sb.WriteByte(')')
	return nil
}

func (p *printer) VisitLet(s *LetStmt) error {
	p.sb.WriteString("(let ")
	p.sb.WriteString(s.Name)
	p.sb.WriteByte(' ')
	s.Expr.Accept(p)
	p.sb.WriteByte(')')
	return nil
}

func (p *printer) VisitTerm(e *TermExpr) error { return e.Term.Accept(p) }

func (p *printer) VisitBinary(e *BinaryExpr) error {
	p.sb.WriteByte('(')
	p.sb.WriteString(e.Op.String())
	p.sb.WriteByte(' ')
	e.Left.Accept(p)
	p.sb.WriteByte(' ')
	e.Right.Accept(p)
	p.sb.WriteByte(')')
	return nil
}

func (p *printer) VisitIntLit(t *IntLit) error {
	p.sb.WriteString(t.Value)
	return nil
}

func (p *printer) VisitIdent(t *Ident) error {
	p.sb.WriteString(t.Name)
	return nil
}

func (p *printer) VisitParen(t *Paren) error {
	p.sb.WriteString("(paren ")
	t.Expr.Accept(p)
	p.sb.WriteByte(')')
	return nil
}
