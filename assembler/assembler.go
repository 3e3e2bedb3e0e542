package assembler

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/LucidaDragon/GeneralBasic/util"
)

// A two pass checker for URCL listings. The first pass reads every line, records the
// instruction address of each label declaration and checks the mnemonic and operand formats.
// The second pass resolves label operands, since a label can be used before it is declared.
//
// Operands are one of:
// * R1, $1 or SP, a register.
// * 10, -1, 0x1f, 0b101, 0o17 or 'c', an immediate.
// * M5 or #5, a heap address.
// * .label, the address of a label.
// * %name, a port.

// operandCounts maps every known mnemonic to its operand count.
var operandCounts = map[string]int{
	"ADD": 3, "SUB": 3, "MLT": 3, "DIV": 3, "SDIV": 3, "MOD": 3,
	"AND": 3, "OR": 3, "XOR": 3, "NOR": 3, "NAND": 3, "XNOR": 3,
	"BSL": 3, "BSR": 3, "BSS": 3,
	"SETE": 3, "SETNE": 3, "SETL": 3, "SETG": 3, "SETLE": 3, "SETGE": 3,
	"SSETL": 3, "SSETG": 3, "SSETLE": 3, "SSETGE": 3,
	"BRE": 3, "BNE": 3, "BRL": 3, "BRG": 3, "BLE": 3, "BGE": 3,
	"NOT": 2, "NEG": 2, "RSH": 2, "LSH": 2, "MOV": 2, "IMM": 2, "LOD": 2, "STR": 2, "CPY": 2,
	"BRZ": 2, "BNZ": 2, "BRP": 2, "BRN": 2, "IN": 2, "OUT": 2,
	"INC": 2, "DEC": 2,
	"PSH": 1, "POP": 1, "CAL": 1, "JMP": 1,
	"RET": 0, "HLT": 0, "NOP": 0,
}

// headers maps every header directive to whether its value may be a comparison such as `BITS >= 8`.
var headers = map[string]bool{
	"BITS":     true,
	"MINREG":   false,
	"MINHEAP":  false,
	"MINSTACK": false,
	"RUN":      false,
}

type OperandType int

const (
	RegisterOperand OperandType = iota
	ImmediateOperand
	MemoryOperand
	LabelOperand
	PortOperand
)

type Operand struct {
	Tp      OperandType
	Content string
	// Value is the register number, the immediate, the heap address or, once resolved,
	// the label address. It is -1 for SP.
	Value int64
}

type Command struct {
	Addr            int
	Mnemonic        string
	Operands        []Operand
	Line            int
	OriginalContent string
}

func (command Command) String() string {
	return fmt.Sprintf("Command: {Addr: %d, Mnemonic: %s, Line: %d, OriginalContent: %s}", command.Addr,
		command.Mnemonic, command.Line, command.OriginalContent)
}

type Assembler struct {
	line                   int
	currentInstructionAddr int
	labelLocationMap       map[string]int
	labelReferences        []labelReference
	headers                map[string]string
	commands               []Command
}

// labelReference is an operand waiting for the second pass.
type labelReference struct {
	label   string
	line    int
	command int
	operand int
}

func CreateAssembler() *Assembler {
	return &Assembler{
		line:             1,
		labelLocationMap: map[string]int{},
		headers:          map[string]string{},
	}
}

// Parse checks the listing in rd and returns its instructions with every label operand
// resolved to an instruction address.
func (asm *Assembler) Parse(rd io.Reader) ([]Command, error) {
	bfReader := bufio.NewReader(rd)
	for {
		line, err := bfReader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if trimmed, ok := asm.trimLine(line); ok {
			if lineErr := asm.transformLine(trimmed); lineErr != nil {
				return nil, lineErr
			}
		}
		if err == io.EOF {
			break
		}
		asm.line++
	}
	if err := asm.resolveLabels(); err != nil {
		return nil, err
	}
	return asm.commands, nil
}

// Labels returns the address of every declared label.
func (asm *Assembler) Labels() map[string]int {
	return asm.labelLocationMap
}

// Header returns the value of a header directive and whether it is present.
func (asm *Assembler) Header(name string) (string, bool) {
	value, ok := asm.headers[name]
	return value, ok
}

// resolveLabels fills the label operands. Those operands point to an address we don't
// know before all label declarations are parsed.
func (asm *Assembler) resolveLabels() error {
	for _, reference := range asm.labelReferences {
		addr, exist := asm.labelLocationMap[reference.label]
		if !exist {
			return asm.makeSyntaxErrAtSpecificLine(reference.line, fmt.Sprintf("undefined label .%s", reference.label))
		}
		asm.commands[reference.command].Operands[reference.operand].Value = int64(addr)
	}
	return nil
}

// trimLine removes the spaces and the comment of line, then returns whether the line has
// other characters.
func (asm *Assembler) trimLine(line []byte) ([]byte, bool) {
	index := bytes.Index(line, []byte("//"))
	if index != -1 {
		line = line[:index]
	}
	line = bytes.TrimSpace(line)
	return line, len(line) > 0
}

func (asm *Assembler) transformLine(line []byte) error {
	if line[0] == '.' {
		return asm.transformLabelCommand(line)
	}
	fields := util.SplitFields(string(line))
	mnemonic := strings.ToUpper(fields[0])
	if _, ok := headers[mnemonic]; ok {
		return asm.transformHeader(mnemonic, fields[1:])
	}
	return asm.transformInstruction(mnemonic, fields[1:], line)
}

var labelFormat = regexp.MustCompile(`^\.[A-Za-z_][0-9A-Za-z_]*$`)

// transformLabelCommand records the address of a `.label` line. A label does not take
// an instruction address itself.
func (asm *Assembler) transformLabelCommand(line []byte) error {
	if !labelFormat.Match(line) {
		return asm.makeSyntaxErr("wrong label format")
	}
	label := string(line[1:])
	if _, exist := asm.labelLocationMap[label]; exist {
		return asm.makeSyntaxErr(fmt.Sprintf("found duplicate label .%s", label))
	}
	asm.labelLocationMap[label] = asm.currentInstructionAddr
	return nil
}

var headerValueFormat = regexp.MustCompile(`^[0-9]+$`)

func (asm *Assembler) transformHeader(name string, fields []string) error {
	if asm.currentInstructionAddr != 0 {
		return asm.makeSyntaxErr(fmt.Sprintf("header %s after the first instruction", name))
	}
	if len(fields) == 2 && headers[name] && (fields[0] == "<=" || fields[0] == ">=" || fields[0] == "==") {
		fields = fields[1:]
	}
	if len(fields) != 1 {
		return asm.makeSyntaxErr(fmt.Sprintf("header %s takes one value", name))
	}
	if name != "RUN" && !headerValueFormat.MatchString(fields[0]) {
		return asm.makeSyntaxErr(fmt.Sprintf("wrong value %s of header %s", fields[0], name))
	}
	asm.headers[name] = fields[0]
	return nil
}

func (asm *Assembler) transformInstruction(mnemonic string, fields []string, originalContent []byte) error {
	count, ok := operandCounts[mnemonic]
	if !ok {
		return asm.makeSyntaxErr(fmt.Sprintf("unknown instruction %s", mnemonic))
	}
	if len(fields) != count {
		return asm.makeSyntaxErr(fmt.Sprintf("%s takes %d operands, found %d", mnemonic, count, len(fields)))
	}
	command := Command{
		Addr:            asm.currentInstructionAddr,
		Mnemonic:        mnemonic,
		Line:            asm.line,
		OriginalContent: string(originalContent),
	}
	for i, field := range fields {
		operand, err := asm.parseOperand(field)
		if err != nil {
			return err
		}
		if operand.Tp == LabelOperand {
			asm.labelReferences = append(asm.labelReferences, labelReference{
				label:   operand.Content[1:],
				line:    asm.line,
				command: len(asm.commands),
				operand: i,
			})
		}
		command.Operands = append(command.Operands, operand)
	}
	if count > 0 && command.Operands[0].Tp != RegisterOperand && writesFirstOperand(mnemonic) {
		return asm.makeSyntaxErr(fmt.Sprintf("%s must write a register, found %s", mnemonic, fields[0]))
	}
	asm.commands = append(asm.commands, command)
	asm.currentInstructionAddr++
	return nil
}

// writesFirstOperand reports whether the first operand of mnemonic is a destination.
func writesFirstOperand(mnemonic string) bool {
	switch mnemonic {
	case "PSH", "CAL", "JMP", "STR", "CPY", "OUT", "BRZ", "BNZ", "BRP", "BRN",
		"BRE", "BNE", "BRL", "BRG", "BLE", "BGE":
		return false
	}
	return true
}

var (
	registerFormat = regexp.MustCompile(`^[R$]([0-9]+)$`)
	memoryFormat   = regexp.MustCompile(`^[M#]([0-9]+)$`)
	portFormat     = regexp.MustCompile(`^%[A-Za-z_][0-9A-Za-z_]*$`)
	charFormat     = regexp.MustCompile(`^'.'$`)
)

func (asm *Assembler) parseOperand(field string) (Operand, error) {
	upper := strings.ToUpper(field)
	switch {
	case upper == "SP":
		return Operand{Tp: RegisterOperand, Content: field, Value: -1}, nil
	case registerFormat.MatchString(upper):
		value, _ := strconv.ParseInt(registerFormat.FindStringSubmatch(upper)[1], 10, 64)
		return Operand{Tp: RegisterOperand, Content: field, Value: value}, nil
	case memoryFormat.MatchString(upper):
		value, _ := strconv.ParseInt(memoryFormat.FindStringSubmatch(upper)[1], 10, 64)
		return Operand{Tp: MemoryOperand, Content: field, Value: value}, nil
	case labelFormat.MatchString(field):
		return Operand{Tp: LabelOperand, Content: field}, nil
	case portFormat.MatchString(field):
		return Operand{Tp: PortOperand, Content: field}, nil
	case charFormat.MatchString(field):
		return Operand{Tp: ImmediateOperand, Content: field, Value: int64(field[1])}, nil
	}
	value, err := strconv.ParseInt(field, 0, 64)
	if err != nil {
		return Operand{}, asm.makeSyntaxErr(fmt.Sprintf("wrong operand format %s", field))
	}
	return Operand{Tp: ImmediateOperand, Content: field, Value: value}, nil
}

func (asm *Assembler) makeSyntaxErr(msg string) error {
	return asm.makeSyntaxErrAtSpecificLine(asm.line, msg)
}

func (asm *Assembler) makeSyntaxErrAtSpecificLine(line int, msg string) error {
	return errors.New(fmt.Sprintf("syntax err at line %d: %s", line, msg))
}

// Check parses a whole listing and returns the first error found.
func Check(rd io.Reader) error {
	_, err := CreateAssembler().Parse(rd)
	return err
}
