package ir

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrDivideByZero mirrors the hardware fault the native program takes
	ErrDivideByZero = errors.New("divide by zero")
	// ErrDivideOverflow is MinInt64 / -1, which also faults natively
	ErrDivideOverflow = errors.New("divide overflow")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrNoExit         = errors.New("program ended without an exit")
)

type machine struct {
	stack  []int64
	regs   [3]int64
	status int64
	exited bool
}

// Simulate runs the listing on an in-memory stack and returns the status
// passed to the first Exit it reaches.
func Simulate(prog *Program) (int64, error) {
	m := &machine{stack: make([]int64, 0, prog.MaxDepth)}
	for pc, in := range prog.Instrs {
		if err := in.Accept(m); err != nil {
			return 0, fmt.Errorf("instruction %d: %w", pc, err)
		}
		if m.exited {
			return m.status, nil
		}
	}
	return 0, ErrNoExit
}

// ExitCode truncates a status the way the kernel reports it to the parent
func ExitCode(status int64) int { return int(uint8(status)) }

func (m *machine) value(op Operand) (int64, error) {
	switch o := op.(type) {
	case Imm:
		v, err := strconv.ParseInt(o.Value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("integer literal %s: %w", o.Value, err)
		}
		return v, nil
	case Reg:
		return m.regs[o], nil
	case StackRef:
		idx := len(m.stack) - 1 - o.Offset
		if idx < 0 || idx >= len(m.stack) {
			return 0, fmt.Errorf("%w: reference %s at depth %d", ErrStackUnderflow, o, len(m.stack))
		}
		return m.stack[idx], nil
	default:
		return 0, fmt.Errorf("unknown operand %T", op)
	}
}

func (m *machine) VisitPush(i *Push) error {
	v, err := m.value(i.Src)
	if err != nil {
		return err
	}
	m.stack = append(m.stack, v)
	return nil
}

func (m *machine) VisitPop(i *Pop) error {
	if len(m.stack) == 0 {
		return ErrStackUnderflow
	}
	m.regs[i.Dst] = m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return nil
}

func (m *machine) VisitArith(i *Arith) error {
	a, b := m.regs[i.Dst], m.regs[i.Src]
	switch i.Op {
	case OpAdd:
		m.regs[i.Dst] = a + b
	case OpSub:
		m.regs[i.Dst] = a - b
	case OpMul:
		m.regs[i.Dst] = a * b
	case OpDiv:
		if b == 0 {
			return ErrDivideByZero
		}
		if a == math.MinInt64 && b == -1 {
			return ErrDivideOverflow
		}
		m.regs[i.Dst] = a / b
	default:
		return fmt.Errorf("unknown arithmetic op %s", i.Op)
	}
	return nil
}

func (m *machine) VisitExit(i *Exit) error {
	v, err := m.value(i.Status)
	if err != nil {
		return err
	}
	m.status, m.exited = v, true
	return nil
}
