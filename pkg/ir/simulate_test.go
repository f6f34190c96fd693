package ir

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/nalgeon/be"
)

func imm(v int64) Imm { return Imm{Value: strconv.FormatInt(v, 10)} }

// binary lays out a op b the way the generator does: right first
func binary(op Op, a, b int64) []Instr {
	return []Instr{
		&Push{Src: imm(b)},
		&Push{Src: imm(a)},
		&Pop{Dst: RAX},
		&Pop{Dst: RBX},
		&Arith{Op: op, Dst: RAX, Src: RBX},
		&Push{Src: RAX},
		&Pop{Dst: RDI},
		&Exit{Status: RDI},
	}
}

func TestSimulateArithmetic(t *testing.T) {
	tests := []struct {
		op   Op
		a, b int64
		want int64
	}{
		{OpAdd, 2, 3, 5},
		{OpSub, 2, 3, -1},
		{OpMul, -4, 3, -12},
		{OpDiv, 7, 2, 3},
		{OpDiv, -7, 2, -3},
		{OpDiv, 7, -2, -3},
		{OpAdd, math.MaxInt64, 1, math.MinInt64},
	}
	for _, test := range tests {
		t.Run(test.op.String(), func(t *testing.T) {
			got, err := Simulate(&Program{Instrs: binary(test.op, test.a, test.b), MaxDepth: 2})
			be.Err(t, err, nil)
			be.Equal(t, got, test.want)
		})
	}
}

func TestSimulateStackRef(t *testing.T) {
	prog := &Program{Instrs: []Instr{
		&Push{Src: imm(10)},
		&Push{Src: imm(20)},
		&Push{Src: StackRef{Offset: 1}},
		&Pop{Dst: RDI},
		&Exit{Status: RDI},
	}}
	got, err := Simulate(prog)
	be.Err(t, err, nil)
	be.Equal(t, got, int64(10))
}

func TestSimulateStopsAtFirstExit(t *testing.T) {
	prog := &Program{Instrs: []Instr{
		&Exit{Status: imm(3)},
		&Exit{Status: imm(4)},
	}}
	got, err := Simulate(prog)
	be.Err(t, err, nil)
	be.Equal(t, got, int64(3))
}

func TestSimulateErrors(t *testing.T) {
	tests := []struct {
		name string
		prog *Program
		want error
	}{
		{"divide by zero", &Program{Instrs: binary(OpDiv, 1, 0)}, ErrDivideByZero},
		{"divide overflow", &Program{Instrs: binary(OpDiv, math.MinInt64, -1)}, ErrDivideOverflow},
		{"pop on empty", &Program{Instrs: []Instr{&Pop{Dst: RAX}}}, ErrStackUnderflow},
		{"ref past bottom", &Program{Instrs: []Instr{&Push{Src: StackRef{Offset: 0}}}}, ErrStackUnderflow},
		{"no exit", &Program{Instrs: []Instr{&Push{Src: imm(1)}}}, ErrNoExit},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Simulate(test.prog)
			be.True(t, errors.Is(err, test.want))
		})
	}
}

func TestSimulateRejectsOversizedLiteral(t *testing.T) {
	_, err := Simulate(&Program{Instrs: []Instr{&Exit{Status: Imm{Value: "99999999999999999999"}}}})
	be.True(t, err != nil)
}

func TestExitCode(t *testing.T) {
	be.Equal(t, ExitCode(0), 0)
	be.Equal(t, ExitCode(7), 7)
	be.Equal(t, ExitCode(256), 0)
	be.Equal(t, ExitCode(300), 44)
	be.Equal(t, ExitCode(-1), 255)
}

func TestCountsAndString(t *testing.T) {
	prog := &Program{Entry: "_start", Instrs: binary(OpMul, 6, 7)}
	pushes, pops := prog.Counts()
	be.Equal(t, pushes, 3)
	be.Equal(t, pops, 3)
	be.Equal(t, prog.String(), "_start:\n\tpush 7\n\tpush 6\n\tpop rax\n\tpop rbx\n\tmul rax, rbx\n\tpush rax\n\tpop rdi\n\texit rdi\n")
}
