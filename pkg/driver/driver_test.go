package driver

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/gsc/pkg/ast"
	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/ir"
	"github.com/xplshn/gsc/pkg/scenario"
	"github.com/xplshn/gsc/pkg/util"
)

func simulate(t *testing.T, src string) (int, error) {
	t.Helper()
	_, prog, err := Parse(src, nil)
	if err != nil {
		return 0, err
	}
	irProg, _, err := Lower(prog, config.NewConfig(), nil)
	if err != nil {
		return 0, err
	}
	status, err := ir.Simulate(irProg)
	be.Err(t, err, nil)
	return ir.ExitCode(status), nil
}

func TestScenarioA(t *testing.T) {
	status, err := simulate(t, "exit(1+2*3);")
	be.Err(t, err, nil)
	be.Equal(t, status, 7)
}

func TestScenarioB(t *testing.T) {
	status, err := simulate(t, "let x = 5; exit(x);")
	be.Err(t, err, nil)
	be.Equal(t, status, 5)
}

func TestScenarioC(t *testing.T) {
	res, err := Compile("let x = 1; let x = 2; exit(x);", config.NewConfig(), nil)
	be.True(t, res == nil)

	var d *util.Diagnostic
	be.True(t, errors.As(err, &d))
	be.Equal(t, d.Kind, util.SemanticError)
	be.True(t, strings.Contains(d.Msg, "identifier already used: 'x'"))
}

func TestScenarioD(t *testing.T) {
	status, err := simulate(t, "")
	be.Err(t, err, nil)
	be.Equal(t, status, 0)

	res, err := Compile("", config.NewConfig(), nil)
	be.Err(t, err, nil)
	be.Equal(t, len(res.Tokens), 0)
	be.True(t, strings.HasPrefix(res.Asm, "global _start\n_start:\n"))
}

func TestScenarioE(t *testing.T) {
	status, err := simulate(t, "exit((2+3)*4);")
	be.Err(t, err, nil)
	be.Equal(t, status, 20)
}

func TestRepositoryScenarios(t *testing.T) {
	content, err := os.ReadFile("../../testdata/scenarios.md")
	be.Err(t, err, nil)
	cases, err := scenario.Extract(content)
	be.Err(t, err, nil)

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			if c.AST != nil {
				_, prog, err := Parse(c.Source, nil)
				be.Err(t, err, nil)
				be.Equal(t, ast.String(prog), *c.AST)
				prog.Release()
			}

			status, err := simulate(t, c.Source)
			if c.CompileError != nil {
				be.True(t, err != nil)
				be.True(t, strings.Contains(err.Error(), *c.CompileError))
				return
			}
			be.Err(t, err, nil)
			if c.Exit != nil {
				be.Equal(t, status, *c.Exit)
			}
		})
	}
}

func TestCompileStopsAtFirstStage(t *testing.T) {
	tests := []struct {
		src  string
		kind util.ErrorKind
	}{
		{"exit(1 $ 2);", util.LexicalError},
		{"exit(1", util.SyntaxError},
		{"exit(q);", util.SemanticError},
	}
	for _, test := range tests {
		res, err := Compile(test.src, config.NewConfig(), nil)
		be.True(t, res == nil)
		var d *util.Diagnostic
		be.True(t, errors.As(err, &d))
		be.Equal(t, d.Kind, test.kind)
	}
}

func TestCompileProgress(t *testing.T) {
	var progress bytes.Buffer
	res, err := Compile("let x = 1; exit(1);", config.NewConfig(), &progress)
	be.Err(t, err, nil)

	out := progress.String()
	be.True(t, strings.Contains(out, "Tokenizing source..."))
	be.True(t, strings.Contains(out, "Parsing tokens into AST..."))
	be.True(t, strings.Contains(out, "Generating code with 'nasm' backend..."))

	be.Equal(t, len(res.Warnings), 1)
	be.Equal(t, res.Warnings[0].Flag, config.WarnUnusedVar)
}

func TestCompileQBE(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the embedded qbe is not built on windows")
	}
	cfg := config.NewConfig()
	be.Err(t, cfg.SetTarget("linux", "amd64", "qbe/amd64_sysv"), nil)

	res, err := Compile("exit(3*4);", cfg, nil)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(res.Asm, "main"))
	be.True(t, strings.Contains(res.Asm, "exit"))
}

func TestWriteAsm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.asm")
	be.Err(t, WriteAsm(path, "global _start\n"), nil)
	data, err := os.ReadFile(path)
	be.Err(t, err, nil)
	be.Equal(t, string(data), "global _start\n")

	err = WriteAsm(filepath.Join(t.TempDir(), "missing", "out.asm"), "")
	be.True(t, err != nil)
}

func TestAssembleAndLinkUnknownBackend(t *testing.T) {
	cfg := config.NewConfig()
	cfg.BackendName = "llvm"
	err := AssembleAndLink(cfg, "out.asm", "out")
	be.True(t, err != nil)
}

func TestBuildAndRunNative(t *testing.T) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		t.Skip("nasm output targets linux/amd64")
	}
	for _, tool := range []string{"nasm", "ld"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}

	tests := []struct {
		src  string
		want int
	}{
		{"exit(1+2*3);", 7},
		{"let x = 5; exit(x);", 5},
		{"", 0},
		{"exit((2+3)*4);", 20},
		{"let n = 0 - 7; exit(n / 2 + 10);", 7},
	}
	dir := t.TempDir()
	for i, test := range tests {
		res, err := Compile(test.src, config.NewConfig(), nil)
		be.Err(t, err, nil)

		asmFile := filepath.Join(dir, "prog.asm")
		outFile := filepath.Join(dir, "prog")
		be.Err(t, WriteAsm(asmFile, res.Asm), nil)
		be.Err(t, AssembleAndLink(config.NewConfig(), asmFile, outFile), nil)

		err = exec.Command(outFile).Run()
		code := 0
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			be.Err(t, err, nil)
		}
		if code != test.want {
			t.Errorf("case %d (%q): exit status %d, want %d", i, test.src, code, test.want)
		}
	}
}
