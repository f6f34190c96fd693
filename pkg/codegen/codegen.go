package codegen

import (
	"fmt"

	"github.com/xplshn/gsc/pkg/ast"
	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/ir"
	"github.com/xplshn/gsc/pkg/token"
	"github.com/xplshn/gsc/pkg/util"
)

type symbol struct {
	Name  string
	Slot  int
	Tok   token.Token
	Reads int
	// Ready is false while the initializer is being generated
	Ready bool
}

// Context is one generation session. It owns the symbol table and the
// stack-size counter; both live exactly as long as the walk.
type Context struct {
	prog      *ir.Program
	symbols   map[string]*symbol
	order     []*symbol
	stackSize int
	exited    bool
	cfg       *config.Config
	warnings  []util.Warning
}

func NewContext(cfg *config.Config) *Context {
	return &Context{
		prog:    &ir.Program{Entry: "_start"},
		symbols: make(map[string]*symbol),
		cfg:     cfg,
	}
}

// Generate walks prog once and returns its stack-machine listing
func Generate(prog *ast.Program, cfg *config.Config) (*ir.Program, error) {
	return NewContext(cfg).GenerateIR(prog)
}

// Warnings returns the warnings recorded by GenerateIR, in source order
func (ctx *Context) Warnings() []util.Warning { return ctx.warnings }

func (ctx *Context) GenerateIR(root *ast.Program) (*ir.Program, error) {
	for _, stmt := range root.Stmts {
		if ctx.exited {
			ctx.warn(config.WarnUnreachableCode, stmt.Pos(), "statement is unreachable: the program has already exited")
			ctx.exited = false
		}
		if err := stmt.Accept(ctx); err != nil {
			return nil, err
		}
	}

	// Epilogue: terminate even if the program never called exit
	ctx.emit(&ir.Exit{Status: ir.Imm{Value: "0"}})

	for _, sym := range ctx.order {
		ctx.prog.Vars = append(ctx.prog.Vars, ir.Var{Name: sym.Name, Slot: sym.Slot})
		if sym.Reads == 0 {
			ctx.warn(config.WarnUnusedVar, sym.Tok, "variable '%s' is declared but never used", sym.Name)
		}
	}
	ctx.prog.FinalDepth = ctx.stackSize
	return ctx.prog, nil
}

func (ctx *Context) warn(wt config.Warning, tok token.Token, format string, args ...any) {
	if ctx.cfg == nil || !ctx.cfg.IsWarningEnabled(wt) {
		return
	}
	ctx.warnings = append(ctx.warnings, util.Warning{Flag: wt, Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

func (ctx *Context) emit(instr ir.Instr) {
	ctx.prog.Instrs = append(ctx.prog.Instrs, instr)
}

func (ctx *Context) push(src ir.Operand) {
	ctx.emit(&ir.Push{Src: src})
	ctx.stackSize++
	if ctx.stackSize > ctx.prog.MaxDepth {
		ctx.prog.MaxDepth = ctx.stackSize
	}
}

func (ctx *Context) pop(dst ir.Reg) {
	ctx.emit(&ir.Pop{Dst: dst})
	ctx.stackSize--
}

// Statements

func (ctx *Context) VisitExit(s *ast.ExitStmt) error {
	if err := s.Expr.Accept(ctx); err != nil {
		return err
	}
	ctx.pop(ir.RDI)
	ctx.emit(&ir.Exit{Status: ir.RDI})
	ctx.exited = true
	return nil
}

// VisitLet binds the name to the slot its initializer is about to push into
func (ctx *Context) VisitLet(s *ast.LetStmt) error {
	if prev, exists := ctx.symbols[s.Name]; exists {
		return util.Errorf(util.SemanticError, s.NameTok, "identifier already used: '%s' (declared at %d:%d)", s.Name, prev.Tok.Line, prev.Tok.Column)
	}
	sym := &symbol{Name: s.Name, Slot: ctx.stackSize, Tok: s.NameTok}
	ctx.symbols[s.Name] = sym
	ctx.order = append(ctx.order, sym)
	if err := s.Expr.Accept(ctx); err != nil {
		return err
	}
	sym.Ready = true
	return nil
}

// Expressions

func (ctx *Context) VisitTerm(e *ast.TermExpr) error { return e.Term.Accept(ctx) }

// VisitBinary evaluates the right operand first, then the left
func (ctx *Context) VisitBinary(e *ast.BinaryExpr) error {
	op, err := irOp(e)
	if err != nil {
		return err
	}
	if err := e.Right.Accept(ctx); err != nil {
		return err
	}
	if err := e.Left.Accept(ctx); err != nil {
		return err
	}
	ctx.pop(ir.RAX)
	ctx.pop(ir.RBX)
	ctx.emit(&ir.Arith{Op: op, Dst: ir.RAX, Src: ir.RBX})
	ctx.push(ir.RAX)
	return nil
}

func irOp(e *ast.BinaryExpr) (ir.Op, error) {
	switch e.Op {
	case ast.Add:
		return ir.OpAdd, nil
	case ast.Sub:
		return ir.OpSub, nil
	case ast.Mul:
		return ir.OpMul, nil
	case ast.Div:
		return ir.OpDiv, nil
	default:
		return 0, util.Errorf(util.SemanticError, e.Tok, "unsupported binary operator %s", e.Op)
	}
}

// Terms

func (ctx *Context) VisitIntLit(t *ast.IntLit) error {
	ctx.push(ir.Imm{Value: t.Value})
	return nil
}

// VisitIdent pushes a copy of the variable. The offset is measured from the
// current top, so it is recomputed at every use.
func (ctx *Context) VisitIdent(t *ast.Ident) error {
	sym, ok := ctx.symbols[t.Name]
	if !ok {
		return util.Errorf(util.SemanticError, t.Tok, "undeclared identifier: '%s'", t.Name)
	}
	if !sym.Ready {
		return util.Errorf(util.SemanticError, t.Tok, "variable '%s' is used in its own initializer", t.Name)
	}
	sym.Reads++
	offset := ctx.stackSize - sym.Slot - 1
	ctx.push(ir.StackRef{Offset: offset})
	return nil
}

func (ctx *Context) VisitParen(t *ast.Paren) error { return t.Expr.Accept(ctx) }
