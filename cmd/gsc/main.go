package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/sanity-io/litter"
	"github.com/xplshn/gsc/pkg/cli"
	"github.com/xplshn/gsc/pkg/codegen"
	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/driver"
	"github.com/xplshn/gsc/pkg/util"
)

func main() {
	app := cli.NewApp("gsc")
	app.Synopsis = "[options] <input.gs>"
	app.Description = "A compiler for a tiny language of lets, arithmetic and exit codes. Every value lives on the stack, as it should."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/gsc>"
	app.NArgs = 1

	var (
		outFile string
		asmFile string
		target  string
		emitAsm bool
		dumpIR  bool
		dumpAST bool
		wAll    bool
		wNoAll  bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "out", "Place the executable into <file>.", "file")
	fs.String(&asmFile, "asm-output", "S", "out.asm", "Write the generated assembly to <file>.", "file")
	fs.String(&target, "target", "t", "nasm", "Set the backend and target ABI.", "backend/target")
	fs.Bool(&emitAsm, "emit-asm", "a", false, "Stop after writing the assembly file.")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Dump the backend's intermediate text and exit.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Dump the syntax tree and exit.")
	fs.Bool(&wAll, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&wNoAll, "Wno-all", "", false, "Disable all warnings.")

	cfg := config.NewConfig()
	warningFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		cfg.ApplyWarningFlags(warningFlags, wAll, wNoAll)
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			return err
		}

		inputFile := args[0]
		content, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("could not read file '%s': %w", inputFile, err)
		}
		src := string(content)
		util.SetSourceFile(util.SourceFileRecord{Name: inputFile, Content: []rune(src)})

		fmt.Println("----------------------")
		if dumpAST {
			_, prog, err := driver.Parse(src, os.Stdout)
			if err != nil {
				return err
			}
			defer prog.Release()
			fmt.Print(litter.Options{HidePrivateFields: true}.Sdump(prog))
			fmt.Println()
			return nil
		}

		if dumpIR {
			_, prog, err := driver.Parse(src, os.Stdout)
			if err != nil {
				return err
			}
			irProg, warnings, err := driver.Lower(prog, cfg, os.Stdout)
			if err != nil {
				return err
			}
			printWarnings(cfg, warnings)
			backend, err := codegen.SelectBackend(cfg.BackendName)
			if err != nil {
				return err
			}
			fmt.Printf("Dumping IR for '%s' backend...\n", cfg.BackendName)
			irText, err := backend.GenerateIR(irProg, cfg)
			if err != nil {
				return fmt.Errorf("backend IR generation failed: %w", err)
			}
			fmt.Print(irText)
			return nil
		}

		res, err := driver.Compile(src, cfg, os.Stdout)
		if err != nil {
			return err
		}
		printWarnings(cfg, res.Warnings)

		fmt.Printf("Writing assembly to '%s'...\n", asmFile)
		if err := driver.WriteAsm(asmFile, res.Asm); err != nil {
			return err
		}
		if emitAsm {
			fmt.Println("----------------------")
			fmt.Println("Done!")
			return nil
		}

		fmt.Printf("Linking to create '%s'...\n", outFile)
		if err := driver.AssembleAndLink(cfg, asmFile, outFile); err != nil {
			return fmt.Errorf("assembler/linker failed: %w", err)
		}

		fmt.Println("----------------------")
		fmt.Println("Done!")
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		if !errors.Is(err, cli.ErrUsage) {
			util.Report(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func printWarnings(cfg *config.Config, warnings []util.Warning) {
	for _, w := range warnings {
		util.Warn(os.Stderr, cfg, w)
	}
}
