package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/ir"
	"github.com/xplshn/gsc/pkg/lexer"
	"github.com/xplshn/gsc/pkg/parser"
	"github.com/xplshn/gsc/pkg/util"
)

func generate(t *testing.T, cfg *config.Config, src string) (*Context, *ir.Program, error) {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	be.Err(t, err, nil)
	prog, err := parser.Parse(toks)
	be.Err(t, err, nil)
	defer prog.Release()

	ctx := NewContext(cfg)
	irProg, err := ctx.GenerateIR(prog)
	return ctx, irProg, err
}

func mustGenerate(t *testing.T, src string) *ir.Program {
	t.Helper()
	_, irProg, err := generate(t, config.NewConfig(), src)
	be.Err(t, err, nil)
	return irProg
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{"precedence", "exit(1+2*3);", 7},
		{"variable", "let x = 5; exit(x);", 5},
		{"empty", "", 0},
		{"grouping", "exit((2+3)*4);", 20},
		{"left assoc sub", "exit(10-4-3);", 3},
		{"left assoc div", "exit(100/10/5);", 2},
		{"variables chain", "let a = 6; let b = a * 7; let c = b - a; exit(c / a);", 6},
		{"reuse", "let x = 3; exit(x * x + x);", 12},
		{"deep reference", "let a = 1; let b = 2; let c = 3; exit(a + b * c);", 7},
		{"trunc toward zero", "let n = 0 - 7; exit(n / 2 + 10);", 7},
		{"negative status", "exit(1-2);", 255},
		{"first exit wins", "exit(1); exit(2);", 1},
		{"no exit", "let x = 4;", 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			irProg := mustGenerate(t, test.src)
			status, err := ir.Simulate(irProg)
			be.Err(t, err, nil)
			be.Equal(t, ir.ExitCode(status), test.want)
		})
	}
}

func TestStackBalance(t *testing.T) {
	srcs := []string{
		"",
		"exit(1);",
		"let x = 1;",
		"let x = (1 + 2) * 3; let y = x / 2 - x; exit(y);",
		"let a = 1; let b = a; let c = b; let d = c + b + a;",
		"exit(1); let x = 2; exit(x);",
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			irProg := mustGenerate(t, src)
			pushes, pops := irProg.Counts()
			be.Equal(t, irProg.FinalDepth, len(irProg.Vars))
			be.Equal(t, pushes-pops, len(irProg.Vars))
		})
	}
}

func TestVariableSlots(t *testing.T) {
	irProg := mustGenerate(t, "let a = 1; let b = 2; exit(a);")
	be.Equal(t, irProg.Vars, []ir.Var{{Name: "a", Slot: 0}, {Name: "b", Slot: 1}})

	want := `_start:
	push 1
	push 2
	push [top-1]
	pop rdi
	exit rdi
	exit 0
`
	if diff := cmp.Diff(want, irProg.String()); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestBinaryEvaluatesRightFirst(t *testing.T) {
	irProg := mustGenerate(t, "exit(1-2);")
	want := `_start:
	push 2
	push 1
	pop rax
	pop rbx
	sub rax, rbx
	push rax
	pop rdi
	exit rdi
	exit 0
`
	if diff := cmp.Diff(want, irProg.String()); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestOffsetsFollowTheStack(t *testing.T) {
	// both reads of x happen with exactly one temporary above it
	irProg := mustGenerate(t, "let x = 2; exit(x + x * 3);")
	var refs []int
	for _, in := range irProg.Instrs {
		if push, ok := in.(*ir.Push); ok {
			if ref, ok := push.Src.(ir.StackRef); ok {
				refs = append(refs, ref.Offset)
			}
		}
	}
	be.Equal(t, refs, []int{1, 1})

	status, err := ir.Simulate(irProg)
	be.Err(t, err, nil)
	be.Equal(t, status, int64(8))
}

func TestMaxDepth(t *testing.T) {
	be.Equal(t, mustGenerate(t, "").MaxDepth, 0)
	be.Equal(t, mustGenerate(t, "exit(1+2*3);").MaxDepth, 2)
	be.Equal(t, mustGenerate(t, "let a = 1; exit(a*(a+(a+1)));").MaxDepth, 3)
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
		col  int
	}{
		{"redeclaration", "let x = 1; let x = 2; exit(x);", "identifier already used: 'x' (declared at 1:5)", 16},
		{"undeclared", "exit(y);", "undeclared identifier: 'y'", 6},
		{"undeclared in let", "let a = b;", "undeclared identifier: 'b'", 9},
		{"use before declaration", "exit(z); let z = 1;", "undeclared identifier: 'z'", 6},
		{"self reference", "let x = x + 1;", "variable 'x' is used in its own initializer", 9},
		{"self reference on the right", "let x = 1 + x;", "variable 'x' is used in its own initializer", 13},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, irProg, err := generate(t, config.NewConfig(), test.src)
			be.True(t, irProg == nil)

			var d *util.Diagnostic
			be.True(t, errors.As(err, &d))
			be.Equal(t, d.Kind, util.SemanticError)
			be.Equal(t, d.Msg, test.msg)
			be.Equal(t, d.Tok.Column, test.col)
		})
	}
}

func TestWarnings(t *testing.T) {
	ctx, _, err := generate(t, config.NewConfig(), "exit(1); let y = 2;")
	be.Err(t, err, nil)

	warnings := ctx.Warnings()
	be.Equal(t, len(warnings), 2)
	be.Equal(t, warnings[0].Flag, config.WarnUnreachableCode)
	be.Equal(t, warnings[0].Tok.Column, 10)
	be.Equal(t, warnings[1].Flag, config.WarnUnusedVar)
	be.Equal(t, warnings[1].Tok.Column, 14)
	be.True(t, strings.Contains(warnings[1].Msg, "'y'"))
}

func TestWarningsOnlyOncePerExit(t *testing.T) {
	ctx, _, err := generate(t, config.NewConfig(), "exit(1); exit(2); exit(3);")
	be.Err(t, err, nil)
	// each exit makes the next statement unreachable, and no more
	be.Equal(t, len(ctx.Warnings()), 2)
}

func TestWarningsDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetAllWarnings(false)
	ctx, _, err := generate(t, cfg, "exit(1); let y = 2;")
	be.Err(t, err, nil)
	be.Equal(t, len(ctx.Warnings()), 0)

	cfg.SetWarning(config.WarnUnusedVar, true)
	ctx, _, err = generate(t, cfg, "exit(1); let y = 2;")
	be.Err(t, err, nil)
	be.Equal(t, len(ctx.Warnings()), 1)
	be.Equal(t, ctx.Warnings()[0].Flag, config.WarnUnusedVar)
}

func TestSelectBackend(t *testing.T) {
	for _, name := range []string{"nasm", "qbe"} {
		b, err := SelectBackend(name)
		be.Err(t, err, nil)
		be.True(t, b != nil)
	}
	_, err := SelectBackend("llvm")
	be.True(t, err != nil)
}
