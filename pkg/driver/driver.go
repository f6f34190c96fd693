// Package driver runs the compiler stages in order and hands the result to
// the external assembler and linker.
package driver

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/xplshn/gsc/pkg/ast"
	"github.com/xplshn/gsc/pkg/codegen"
	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/ir"
	"github.com/xplshn/gsc/pkg/lexer"
	"github.com/xplshn/gsc/pkg/parser"
	"github.com/xplshn/gsc/pkg/token"
	"github.com/xplshn/gsc/pkg/util"
)

// Result is everything a successful compilation produced
type Result struct {
	Tokens   []token.Token
	IR       *ir.Program
	Asm      string
	Warnings []util.Warning
}

// Parse runs the front end. The caller owns the returned tree and must
// Release it.
func Parse(src string, progress io.Writer) ([]token.Token, *ast.Program, error) {
	if progress == nil {
		progress = io.Discard
	}
	fmt.Fprintln(progress, "Tokenizing source...")
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		return nil, nil, err
	}

	fmt.Fprintln(progress, "Parsing tokens into AST...")
	prog, err := parser.Parse(tokens)
	if err != nil {
		return nil, nil, err
	}
	return tokens, prog, nil
}

// Lower generates the stack-machine listing for prog and releases its arena,
// whether or not generation succeeded.
func Lower(prog *ast.Program, cfg *config.Config, progress io.Writer) (*ir.Program, []util.Warning, error) {
	if progress == nil {
		progress = io.Discard
	}
	defer prog.Release()

	fmt.Fprintln(progress, "Creating intermediate representation...")
	ctx := codegen.NewContext(cfg)
	irProg, err := ctx.GenerateIR(prog)
	if err != nil {
		return nil, nil, err
	}
	return irProg, ctx.Warnings(), nil
}

// Compile takes source text all the way to assembly text for the configured
// backend. Nothing is written to disk.
func Compile(src string, cfg *config.Config, progress io.Writer) (*Result, error) {
	if progress == nil {
		progress = io.Discard
	}
	tokens, prog, err := Parse(src, progress)
	if err != nil {
		return nil, err
	}
	irProg, warnings, err := Lower(prog, cfg, progress)
	if err != nil {
		return nil, err
	}

	backend, err := codegen.SelectBackend(cfg.BackendName)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(progress, "Generating code with '%s' backend...\n", cfg.BackendName)
	asm, err := backend.Generate(irProg, cfg)
	if err != nil {
		return nil, fmt.Errorf("backend code generation failed: %w", err)
	}

	return &Result{Tokens: tokens, IR: irProg, Asm: asm.String(), Warnings: warnings}, nil
}

// WriteAsm stores the assembly text at path
func WriteAsm(path, asm string) error {
	if err := os.WriteFile(path, []byte(asm), 0644); err != nil {
		return fmt.Errorf("failed to write assembly to '%s': %w", path, err)
	}
	return nil
}

// AssembleAndLink turns asmFile into the executable outFile with the toolchain
// matching the backend: nasm and ld for nasm, cc for qbe output.
func AssembleAndLink(cfg *config.Config, asmFile, outFile string) error {
	switch cfg.BackendName {
	case "nasm":
		objFile := strings.TrimSuffix(asmFile, filepath.Ext(asmFile)) + ".o"
		if err := run("nasm", "-felf64", asmFile, "-o", objFile); err != nil {
			return err
		}
		defer os.Remove(objFile)
		return run("ld", "-o", outFile, objFile)
	case "qbe":
		// cc wants a .s suffix to treat the file as assembly
		if filepath.Ext(asmFile) != ".s" {
			tmp, err := os.CreateTemp("", "gsc-*.s")
			if err != nil {
				return fmt.Errorf("failed to create temp file for asm: %w", err)
			}
			defer os.Remove(tmp.Name())
			content, err := os.ReadFile(asmFile)
			if err != nil {
				tmp.Close()
				return err
			}
			if _, err := tmp.Write(content); err != nil {
				tmp.Close()
				return fmt.Errorf("failed to write to temp file for asm: %w", err)
			}
			tmp.Close()
			asmFile = tmp.Name()
		}
		return run("cc", "-no-pie", "-o", outFile, asmFile)
	default:
		return fmt.Errorf("no toolchain known for backend '%s'", cfg.BackendName)
	}
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s command failed: %w\nOutput:\n%s", name, err, string(output))
	}
	return nil
}
