// Package ir is the stack-machine listing the code generator produces and
// the backends translate. Every live value sits on a word stack; registers
// are scratch only and never survive a Push.
package ir

import (
	"fmt"
	"strings"
)

// Reg is a scratch register of the abstract machine
type Reg int

const (
	RAX Reg = iota // accumulator, left operand and result
	RBX            // right operand
	RDI            // exit status
)

func (r Reg) String() string {
	switch r {
	case RAX:
		return "rax"
	case RBX:
		return "rbx"
	case RDI:
		return "rdi"
	default:
		return fmt.Sprintf("r?%d", int(r))
	}
}

// Operand is a closed set: Imm, Reg or StackRef
type Operand interface {
	isOperand()
	String() string
}

// Imm is an integer immediate, kept as its decimal source text
type Imm struct{ Value string }

// StackRef names the word Offset slots below the current top (0 is the top)
type StackRef struct{ Offset int }

func (Imm) isOperand()      {}
func (Reg) isOperand()      {}
func (StackRef) isOperand() {}

func (i Imm) String() string      { return i.Value }
func (s StackRef) String() string { return fmt.Sprintf("[top-%d]", s.Offset) }

type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	default:
		return "op?"
	}
}

// Instr is a closed set of instructions, dispatched through Visitor
type Instr interface {
	isInstr()
	Accept(v Visitor) error
}

type Visitor interface {
	VisitPush(i *Push) error
	VisitPop(i *Pop) error
	VisitArith(i *Arith) error
	VisitExit(i *Exit) error
}

type Push struct{ Src Operand }

type Pop struct{ Dst Reg }

// Arith computes Dst = Dst <Op> Src. OpDiv is signed and truncates toward zero.
type Arith struct {
	Op       Op
	Dst, Src Reg
}

// Exit terminates the process with Status (a Reg or an Imm)
type Exit struct{ Status Operand }

func (*Push) isInstr()  {}
func (*Pop) isInstr()   {}
func (*Arith) isInstr() {}
func (*Exit) isInstr()  {}

func (i *Push) Accept(v Visitor) error  { return v.VisitPush(i) }
func (i *Pop) Accept(v Visitor) error   { return v.VisitPop(i) }
func (i *Arith) Accept(v Visitor) error { return v.VisitArith(i) }
func (i *Exit) Accept(v Visitor) error  { return v.VisitExit(i) }

// Var records where a declared variable lives
type Var struct {
	Name string
	Slot int
}

type Program struct {
	Entry  string
	Instrs []Instr
	// MaxDepth is the deepest the stack gets, in words
	MaxDepth int
	// Vars are the declared variables in declaration order
	Vars []Var
	// FinalDepth is the stack depth once every instruction has run
	FinalDepth int
}

// String renders the listing one instruction per line, for dumps and tests
func (p *Program) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", p.Entry)
	for _, in := range p.Instrs {
		switch i := in.(type) {
		case *Push:
			fmt.Fprintf(&sb, "\tpush %s\n", i.Src)
		case *Pop:
			fmt.Fprintf(&sb, "\tpop %s\n", i.Dst)
		case *Arith:
			fmt.Fprintf(&sb, "\t%s %s, %s\n", i.Op, i.Dst, i.Src)
		case *Exit:
			fmt.Fprintf(&sb, "\texit %s\n", i.Status)
		}
	}
	return sb.String()
}

// Counts returns the number of push and pop instructions in the listing
func (p *Program) Counts() (pushes, pops int) {
	for _, in := range p.Instrs {
		switch in.(type) {
		case *Push:
			pushes++
		case *Pop:
			pops++
		}
	}
	return pushes, pops
}
