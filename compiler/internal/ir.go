package internal

import (
	"fmt"
	"strconv"
	"strings"
)

// Opcode mirrors the target instruction set, plus LabelOp which marks a branch target and
// OpaqueOp which carries the verbatim text of an `Asm Exec`.
type Opcode int

const (
	PshOp Opcode = iota
	PopOp
	MovOp
	ImmOp
	AddOp
	SubOp
	MltOp
	SdivOp
	ModOp
	AndOp
	OrOp
	XorOp
	NotOp
	BslOp
	BsrOp
	NegOp
	LodOp
	StrOp
	SeteOp
	SetneOp
	SsetlOp
	SsetgOp
	SsetleOp
	SsetgeOp
	JmpOp
	BrzOp
	BnzOp
	CalOp
	RetOp
	HltOp
	LabelOp
	OpaqueOp
)

var opcodeMnemonics = map[Opcode]string{
	PshOp:    "psh",
	PopOp:    "pop",
	MovOp:    "mov",
	ImmOp:    "imm",
	AddOp:    "add",
	SubOp:    "sub",
	MltOp:    "mlt",
	SdivOp:   "sdiv",
	ModOp:    "mod",
	AndOp:    "and",
	OrOp:     "or",
	XorOp:    "xor",
	NotOp:    "not",
	BslOp:    "bsl",
	BsrOp:    "bsr",
	NegOp:    "neg",
	LodOp:    "lod",
	StrOp:    "str",
	SeteOp:   "sete",
	SetneOp:  "setne",
	SsetlOp:  "ssetl",
	SsetgOp:  "ssetg",
	SsetleOp: "ssetle",
	SsetgeOp: "ssetge",
	JmpOp:    "jmp",
	BrzOp:    "brz",
	BnzOp:    "bnz",
	CalOp:    "cal",
	RetOp:    "ret",
	HltOp:    "hlt",
	LabelOp:  "label",
	OpaqueOp: "opaque",
}

func (op Opcode) String() string {
	return opcodeMnemonics[op]
}

// isPure reports whether op only computes its first operand from the others.
func (op Opcode) isPure() bool {
	switch op {
	case MovOp, ImmOp, AddOp, SubOp, MltOp, SdivOp, ModOp, AndOp, OrOp, XorOp, NotOp, BslOp, BsrOp, NegOp, LodOp,
		SeteOp, SetneOp, SsetlOp, SsetgOp, SsetleOp, SsetgeOp:
		return true
	}
	return false
}

func (op Opcode) isBranch() bool {
	return op == JmpOp || op == BrzOp || op == BnzOp
}

type Register int

const (
	R0 Register = iota // always zero
	R1                 // scratch
	R2                 // scratch
	R3                 // frame base
	SP                 // stack pointer
)

func (reg Register) String() string {
	if reg == SP {
		return "SP"
	}
	return "R" + strconv.Itoa(int(reg))
}

type OperandKind int

const (
	RegisterOperand OperandKind = iota
	ImmediateOperand
	MemoryOperand
	LabelOperand
)

// Operand is a register, an immediate, a fixed heap address or a label.
type Operand struct {
	Kind  OperandKind
	Reg   Register
	Value int64
	Label string
}

func Reg(reg Register) Operand { return Operand{Kind: RegisterOperand, Reg: reg} }

func Imm(value int64) Operand { return Operand{Kind: ImmediateOperand, Value: value} }

func Mem(address int) Operand { return Operand{Kind: MemoryOperand, Value: int64(address)} }

func LabelRef(name string) Operand { return Operand{Kind: LabelOperand, Label: name} }

func (operand Operand) IsReg(reg Register) bool {
	return operand.Kind == RegisterOperand && operand.Reg == reg
}

func (operand Operand) String() string {
	switch operand.Kind {
	case RegisterOperand:
		return operand.Reg.String()
	case ImmediateOperand:
		return strconv.FormatInt(operand.Value, 10)
	case MemoryOperand:
		return "M" + strconv.FormatInt(operand.Value, 10)
	}
	return "." + operand.Label
}

type Instruction struct {
	Op       Opcode
	Operands []Operand
	// Text is the verbatim payload of an OpaqueOp.
	Text string
}

func Inst(op Opcode, operands ...Operand) Instruction {
	return Instruction{Op: op, Operands: operands}
}

func Label(name string) Instruction {
	return Instruction{Op: LabelOp, Operands: []Operand{LabelRef(name)}}
}

func Opaque(text string) Instruction {
	return Instruction{Op: OpaqueOp, Text: text}
}

// String renders the instruction the way it is written in the output.
func (inst Instruction) String() string {
	switch inst.Op {
	case LabelOp:
		return inst.Operands[0].String()
	case OpaqueOp:
		return inst.Text
	}
	parts := make([]string, 0, len(inst.Operands)+1)
	parts = append(parts, inst.Op.String())
	for _, operand := range inst.Operands {
		parts = append(parts, operand.String())
	}
	return strings.Join(parts, " ")
}

// writes returns the register the instruction assigns, if any.
func (inst Instruction) writes() (Register, bool) {
	if (inst.Op.isPure() || inst.Op == PopOp) && len(inst.Operands) > 0 && inst.Operands[0].Kind == RegisterOperand {
		return inst.Operands[0].Reg, true
	}
	return 0, false
}

// reads reports whether the instruction reads reg. Pure ops and pop read every operand
// but the first, every other instruction reads all its operands.
func (inst Instruction) reads(reg Register) bool {
	operands := inst.Operands
	if _, ok := inst.writes(); ok {
		operands = operands[1:]
	}
	for _, operand := range operands {
		if operand.IsReg(reg) {
			return true
		}
	}
	return false
}

// Function is the code of one Function or Sub. The optimizer only rewrites Body, the
// statements. Prologue holds the label and the frame setup, Epilogue tears the frame down.
type Function struct {
	Name        string
	LocalWords  int
	ReturnWords int
	Prologue    []Instruction
	Body        []Instruction
	Epilogue    []Instruction
}

// Instructions returns the whole function in listing order.
func (fn *Function) Instructions() []Instruction {
	insts := make([]Instruction, 0, len(fn.Prologue)+len(fn.Body)+len(fn.Epilogue))
	insts = append(insts, fn.Prologue...)
	insts = append(insts, fn.Body...)
	return append(insts, fn.Epilogue...)
}

// LabelSeparator joins a function name and the suffix of its internal labels. The parser
// rejects it in function names, so an internal label never names a function.
const LabelSeparator = "__"

func (fn *Function) ReturnLabel() string {
	return fn.Name + LabelSeparator + "return"
}

type Program struct {
	Entry string
	// Startup calls the entry and halts. It is empty when there is no entry to call.
	Startup   []Instruction
	Functions []*Function
	Globals   []*Symbol
	HeapWords int
}

func (program *Program) Function(name string) *Function {
	for _, fn := range program.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// StackEffect is the change of operand stack depth caused by inst. It is unknown for
// OpaqueOp and for any other instruction that writes SP in an untracked way.
func StackEffect(inst Instruction) (int, bool) {
	switch inst.Op {
	case PshOp:
		return 1, true
	case PopOp:
		return -1, true
	case OpaqueOp:
		return 0, false
	case AddOp, SubOp:
		if !inst.Operands[0].IsReg(SP) {
			return 0, true
		}
		if !inst.Operands[1].IsReg(SP) || inst.Operands[2].Kind != ImmediateOperand {
			return 0, false
		}
		if inst.Op == AddOp {
			return -int(inst.Operands[2].Value), true
		}
		return int(inst.Operands[2].Value), true
	}
	if reg, ok := inst.writes(); ok && reg == SP {
		return 0, false
	}
	return 0, true
}

// CheckStackBalance simulates the body linearly and returns the final operand stack depth.
// known is false when the body holds an instruction with an unknown effect, such as an
// Asm Exec payload.
func CheckStackBalance(fn *Function) (depth int, known bool) {
	for _, inst := range fn.Body {
		effect, ok := StackEffect(inst)
		if !ok {
			return 0, false
		}
		depth += effect
	}
	return depth, true
}

// checkBranchDepths verifies the depth is zero at every label and every branch, the points
// where statement code joins.
func checkBranchDepths(fn *Function) error {
	depth := 0
	for i, inst := range fn.Body {
		effect, ok := StackEffect(inst)
		if !ok {
			return nil
		}
		depth += effect
		if depth < 0 {
			return fmt.Errorf("%s: stack underflow at instruction %d (%s)", fn.Name, i, inst)
		}
		if (inst.Op == LabelOp || inst.Op.isBranch()) && depth != 0 {
			return fmt.Errorf("%s: stack depth %d at instruction %d (%s)", fn.Name, depth, i, inst)
		}
	}
	return nil
}
