package codegen

import (
	"fmt"
	"strings"

	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/ir"
)

// qbeBackend lowers the stack machine onto QBE IL. The stack becomes an
// alloc8 block sized from MaxDepth, and each scratch register becomes a QBE
// temporary of the same name (QBE accepts non-SSA input). Since the
// generator's depth is known at every instruction, every slot address is a
// constant offset from %stack.
type qbeBackend struct {
	out      *strings.Builder
	prog     *ir.Program
	depth    int
	tmpCount int
	wordSize int
	wordType string
}

func NewQBEBackend() Backend { return &qbeBackend{} }

func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var qbeIRBuilder strings.Builder
	b.out = &qbeIRBuilder
	b.prog = prog
	b.depth, b.tmpCount = 0, 0
	b.wordSize, b.wordType = cfg.WordSize, cfg.WordType
	if b.wordSize == 0 {
		b.wordSize, b.wordType = 8, "l"
	}

	if err := b.gen(); err != nil {
		return "", err
	}
	return qbeIRBuilder.String(), nil
}

func (b *qbeBackend) gen() error {
	// cc's startup code provides _start and calls main
	b.out.WriteString("export function w $main() {\n@start\n")
	fmt.Fprintf(b.out, "\t%%stack =%s alloc8 %d\n", b.wordType, max(b.prog.MaxDepth, 1)*b.wordSize)
	for _, in := range b.prog.Instrs {
		if err := in.Accept(b); err != nil {
			return err
		}
	}
	b.out.WriteString("\tret 0\n}\n")
	return nil
}

func (b *qbeBackend) newTemp() string {
	t := fmt.Sprintf("%%.%d", b.tmpCount)
	b.tmpCount++
	return t
}

func (b *qbeBackend) reg(r ir.Reg) string { return "%" + r.String() }

// slotAddr emits the address computation for an absolute stack slot
func (b *qbeBackend) slotAddr(slot int) (string, error) {
	if slot < 0 || slot >= max(b.prog.MaxDepth, 1) {
		return "", fmt.Errorf("qbe: stack slot %d out of range (max depth %d)", slot, b.prog.MaxDepth)
	}
	addr := b.newTemp()
	fmt.Fprintf(b.out, "\t%s =%s add %%stack, %d\n", addr, b.wordType, slot*b.wordSize)
	return addr, nil
}

func (b *qbeBackend) formatValue(op ir.Operand) (string, error) {
	switch o := op.(type) {
	case ir.Imm:
		return o.Value, nil
	case ir.Reg:
		return b.reg(o), nil
	case ir.StackRef:
		addr, err := b.slotAddr(b.depth - 1 - o.Offset)
		if err != nil {
			return "", err
		}
		val := b.newTemp()
		fmt.Fprintf(b.out, "\t%s =%s load%s %s\n", val, b.wordType, b.wordType, addr)
		return val, nil
	default:
		return "", fmt.Errorf("qbe: unknown operand %T", op)
	}
}

func (b *qbeBackend) VisitPush(i *ir.Push) error {
	val, err := b.formatValue(i.Src)
	if err != nil {
		return err
	}
	addr, err := b.slotAddr(b.depth)
	if err != nil {
		return err
	}
	fmt.Fprintf(b.out, "\tstore%s %s, %s\n", b.wordType, val, addr)
	b.depth++
	return nil
}

func (b *qbeBackend) VisitPop(i *ir.Pop) error {
	b.depth--
	addr, err := b.slotAddr(b.depth)
	if err != nil {
		return err
	}
	fmt.Fprintf(b.out, "\t%s =%s load%s %s\n", b.reg(i.Dst), b.wordType, b.wordType, addr)
	return nil
}

func (b *qbeBackend) VisitArith(i *ir.Arith) error {
	var op string
	switch i.Op {
	case ir.OpAdd:
		op = "add"
	case ir.OpSub:
		op = "sub"
	case ir.OpMul:
		op = "mul"
	case ir.OpDiv:
		op = "div" // signed, truncating
	default:
		return fmt.Errorf("qbe: unknown arithmetic op %s", i.Op)
	}
	fmt.Fprintf(b.out, "\t%s =%s %s %s, %s\n", b.reg(i.Dst), b.wordType, op, b.reg(i.Dst), b.reg(i.Src))
	return nil
}

// VisitExit passes the word to exit(3); a long is truncated to w by QBE
func (b *qbeBackend) VisitExit(i *ir.Exit) error {
	status, err := b.formatValue(i.Status)
	if err != nil {
		return err
	}
	fmt.Fprintf(b.out, "\tcall $exit(w %s)\n", status)
	return nil
}
