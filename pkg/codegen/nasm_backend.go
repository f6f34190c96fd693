package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/ir"
)

const sysExit = 60

// nasmBackend prints x86-64 NASM for Linux. The IR's push/pop map onto the
// hardware stack one to one, so rsp always matches the generator's counter.
type nasmBackend struct {
	out      *strings.Builder
	wordSize int
}

func NewNASMBackend() Backend { return &nasmBackend{} }

func (b *nasmBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	text, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(text), nil
}

func (b *nasmBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var sb strings.Builder
	b.out = &sb
	b.wordSize = cfg.WordSize
	if b.wordSize == 0 {
		b.wordSize = 8
	}

	fmt.Fprintf(b.out, "global %s\n%s:\n", prog.Entry, prog.Entry)
	for _, in := range prog.Instrs {
		if err := in.Accept(b); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func (b *nasmBackend) VisitPush(i *ir.Push) error {
	switch src := i.Src.(type) {
	case ir.Imm:
		// push only takes a sign-extended imm32; go through rax for the full range
		fmt.Fprintf(b.out, "\tmov rax, %s\n", src.Value)
		b.out.WriteString("\tpush rax\n")
	case ir.Reg:
		fmt.Fprintf(b.out, "\tpush %s\n", src)
	case ir.StackRef:
		fmt.Fprintf(b.out, "\tpush QWORD [rsp + %d]\n", src.Offset*b.wordSize)
	default:
		return fmt.Errorf("nasm: cannot push operand %T", i.Src)
	}
	return nil
}

func (b *nasmBackend) VisitPop(i *ir.Pop) error {
	fmt.Fprintf(b.out, "\tpop %s\n", i.Dst)
	return nil
}

func (b *nasmBackend) VisitArith(i *ir.Arith) error {
	switch i.Op {
	case ir.OpAdd:
		fmt.Fprintf(b.out, "\tadd %s, %s\n", i.Dst, i.Src)
	case ir.OpSub:
		fmt.Fprintf(b.out, "\tsub %s, %s\n", i.Dst, i.Src)
	case ir.OpMul:
		fmt.Fprintf(b.out, "\timul %s, %s\n", i.Dst, i.Src)
	case ir.OpDiv:
		// idiv divides rdx:rax, so the dividend has to be in rax and sign-extended into rdx
		if i.Dst != ir.RAX {
			return fmt.Errorf("nasm: division result must be in rax, got %s", i.Dst)
		}
		b.out.WriteString("\tcqo\n")
		fmt.Fprintf(b.out, "\tidiv %s\n", i.Src)
	default:
		return fmt.Errorf("nasm: unknown arithmetic op %s", i.Op)
	}
	return nil
}

// VisitExit loads the status before rax is clobbered with the syscall number
func (b *nasmBackend) VisitExit(i *ir.Exit) error {
	switch status := i.Status.(type) {
	case ir.Imm:
		fmt.Fprintf(b.out, "\tmov rdi, %s\n", status.Value)
	case ir.Reg:
		if status != ir.RDI {
			fmt.Fprintf(b.out, "\tmov rdi, %s\n", status)
		}
	default:
		return fmt.Errorf("nasm: cannot exit with operand %T", i.Status)
	}
	fmt.Fprintf(b.out, "\tmov rax, %d\n", sysExit)
	b.out.WriteString("\tsyscall\n")
	return nil
}
