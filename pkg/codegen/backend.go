package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes an IR program and a configuration, and produces the target
	// assembly as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
	// GenerateIR returns the backend's own textual form of prog, before any
	// external or embedded assembler runs.
	GenerateIR(prog *ir.Program, cfg *config.Config) (string, error)
}

func SelectBackend(name string) (Backend, error) {
	switch name {
	case "nasm":
		return NewNASMBackend(), nil
	case "qbe":
		return NewQBEBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend '%s'", name)
	}
}
