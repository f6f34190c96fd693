package parser

import (
	"github.com/xplshn/gsc/pkg/ast"
	"github.com/xplshn/gsc/pkg/token"
	"github.com/xplshn/gsc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	arena    *ast.Arena
}

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens, arena: ast.NewArena()}
	p.current = p.tokenAt(0)
	return p
}

// Parse builds the program for tokens. The first malformed construct stops
// parsing and is returned as a SyntaxError diagnostic.
func Parse(tokens []token.Token) (*ast.Program, error) {
	return NewParser(tokens).Parse()
}

// Parser helpers

// tokenAt returns an EOF token placed just past the last real token once i runs off the end
func (p *Parser) tokenAt(i int) token.Token {
	if i < len(p.tokens) {
		return p.tokens[i]
	}
	eof := token.Token{Type: token.EOF, Line: 1, Column: 1, Len: 1}
	if n := len(p.tokens); n > 0 {
		last := p.tokens[n-1]
		eof.Line, eof.Column = last.Line, last.Column+last.Len
	}
	return eof
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.previous = p.current
		p.pos++
		p.current = p.tokenAt(p.pos)
	}
}

func (p *Parser) isAtEnd() bool { return p.pos >= len(p.tokens) }

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) error {
	if p.check(tokType) {
		p.advance()
		return nil
	}
	return util.Errorf(util.SyntaxError, p.current, "%s", message)
}

// Statement Parsing

func (p *Parser) Parse() (*ast.Program, error) {
	prog := p.arena.NewProgram()
	for !p.isAtEnd() {
		stmt, err := p.parseStmt()
		if err != nil {
			p.arena.Release()
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	tok := p.current
	switch {
	case p.match(token.Exit):
		if err := p.expect(token.LParen, "expected '(' after 'exit'"); err != nil {
			return nil, err
		}
		expr, err := p.parseRequiredExpr("expected expression")
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RParen, "expected ')'"); err != nil {
			return nil, err
		}
		if err := p.expect(token.Semi, "expected ';'"); err != nil {
			return nil, err
		}
		return p.arena.NewExit(tok, expr), nil

	case p.match(token.Let):
		nameTok := p.current
		if err := p.expect(token.Ident, "expected identifier after 'let'"); err != nil {
			return nil, err
		}
		if err := p.expect(token.Eq, "expected '=' after variable name"); err != nil {
			return nil, err
		}
		expr, err := p.parseRequiredExpr("expected expression")
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.Semi, "expected ';'"); err != nil {
			return nil, err
		}
		return p.arena.NewLet(tok, nameTok, expr), nil
	}
	return nil, util.Errorf(util.SyntaxError, tok, "invalid statement: unexpected %s", tok.Type)
}

// Expression Parsing

func (p *Parser) parseRequiredExpr(message string) (ast.Expr, error) {
	expr, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if expr == nil {
		return nil, util.Errorf(util.SyntaxError, p.current, "%s", message)
	}
	return expr, nil
}

// parseTerm returns nil, nil when the lookahead cannot start a term
func (p *Parser) parseTerm() (ast.Term, error) {
	tok := p.current
	if p.match(token.IntLit) {
		return p.arena.NewIntLit(p.previous), nil
	}
	if p.match(token.Ident) {
		return p.arena.NewIdent(p.previous), nil
	}
	if p.match(token.LParen) {
		expr, err := p.parseRequiredExpr("expected expression after '('")
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RParen, "expected ')'"); err != nil {
			return nil, err
		}
		return p.arena.NewParen(tok, expr), nil
	}
	return nil, nil
}

// parseExpr is a precedence climber. The right-hand side is parsed with
// prec+1 so operators of equal precedence group to the left.
func (p *Parser) parseExpr(minPrec int) (ast.Expr, error) {
	term, err := p.parseTerm()
	if err != nil || term == nil {
		return nil, err
	}
	left := ast.Expr(p.arena.NewTermExpr(term))

	for {
		prec, isBinary := token.BinaryPrecedence(p.current.Type)
		if !isBinary || prec < minPrec {
			break
		}
		opTok := p.current
		p.advance()

		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		if right == nil {
			return nil, util.Errorf(util.SyntaxError, p.current, "unable to parse expression after %s", opTok.Type)
		}
		op, _ := ast.BinaryOpFor(opTok.Type)
		left = p.arena.NewBinary(opTok, op, left, right)
	}
	return left, nil
}
