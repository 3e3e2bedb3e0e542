package internal

import "fmt"

// The code generator keeps one invariant: the code of an expression pushes exactly the
// words of its value, word 0 on top, and consumes what its operands pushed. A statement
// leaves the operand stack as it found it.
//
// Frame of a function, the stack growing down:
//
//	R3+2+argWords ..  return slot, reserved by the caller
//	R3+2 ..           parameters, the last one nearest R3
//	R3+1              return address
//	R3                saved R3 of the caller
//	R3-1 ..           locals, in declaration order

type codeGenerator struct {
	table      *SymbolTable
	decl       *FunctionDeclAst
	fn         *Function
	labelIndex int
}

// GenerateProgram generates every function of the analyzed units. It must not run on
// units with analysis errors.
func GenerateProgram(units []*UnitAst, table *SymbolTable, entry string) *Program {
	program := &Program{
		Entry:     entry,
		Globals:   table.Globals.Symbols(),
		HeapWords: table.HeapWords(),
	}
	for _, unit := range units {
		for _, decl := range unit.Functions {
			generator := &codeGenerator{table: table}
			program.Functions = append(program.Functions, generator.generateFunctionCode(decl))
		}
	}
	program.Startup = generateStartupCode(table.lookUpFunc(entry))
	return program
}

// generateStartupCode calls the entry and halts. A Function entry gets its return slot,
// and an entry taking parameters cannot be called, so it gets no startup code.
func generateStartupCode(entry *FunctionSignature) []Instruction {
	if entry == nil || len(entry.Params) > 0 {
		return nil
	}
	var startup []Instruction
	if words := entry.ReturnWords(); words > 0 {
		startup = append(startup, Inst(SubOp, Reg(SP), Reg(SP), Imm(int64(words))))
	}
	return append(startup, Inst(CalOp, LabelRef(entry.Name)), Inst(HltOp))
}

// generateFunctionCode generates
//
//	.Name
//	psh R3
//	mov R3 SP
//	sub SP SP <local words>
//	<body>
//	.Name__return
//	mov SP R3
//	pop R3
//	ret
func (generator *codeGenerator) generateFunctionCode(decl *FunctionDeclAst) *Function {
	fn := &Function{Name: decl.Name, LocalWords: decl.localWords, ReturnWords: decl.signature.ReturnWords()}
	fn.Prologue = []Instruction{Label(fn.Name), Inst(PshOp, Reg(R3)), Inst(MovOp, Reg(R3), Reg(SP))}
	if fn.LocalWords > 0 {
		fn.Prologue = append(fn.Prologue, Inst(SubOp, Reg(SP), Reg(SP), Imm(int64(fn.LocalWords))))
	}
	generator.decl, generator.fn = decl, fn
	generator.generateStatementsCode(decl.Body)
	generator.writeOutput(Label(fn.ReturnLabel()))
	fn.Epilogue = []Instruction{Inst(MovOp, Reg(SP), Reg(R3)), Inst(PopOp, Reg(R3)), Inst(RetOp)}
	return fn
}

func (generator *codeGenerator) writeOutput(insts ...Instruction) {
	generator.fn.Body = append(generator.fn.Body, insts...)
}

func (generator *codeGenerator) newLabel(kind string) string {
	generator.labelIndex++
	return fmt.Sprintf("%s%s%s%d", generator.fn.Name, LabelSeparator, kind, generator.labelIndex)
}

func (generator *codeGenerator) generateStatementsCode(statements []StatementAst) {
	for _, stm := range statements {
		generator.generateStatementCode(stm)
	}
}

func (generator *codeGenerator) generateStatementCode(statement StatementAst) {
	switch stm := statement.(type) {
	case *VarDeclAst:
		generator.generateVariableDeclareStatementCode(stm)
	case *AssignmentAst:
		generator.generateAssignmentCode(stm)
	case *CallStatementAst:
		generator.generateFuncCallCode(stm.Call)
		if words := stm.Call.signature.ReturnWords(); words > 0 {
			generator.writeOutput(Inst(AddOp, Reg(SP), Reg(SP), Imm(int64(words))))
		}
	case *IfAst:
		generator.generateIfStatementCode(stm)
	case *LoopAst:
		generator.generateWhileStatementCode(stm)
	case *ReturnAst:
		generator.generateReturnStatementCode(stm)
	case *InlineAsmAst:
		generator.generateInlineAsmCode(stm)
	default:
		panic(fmt.Sprintf("unknown statement %T", statement))
	}
}

// A Dim without initializer needs no code, its slot is reserved by the prologue.
func (generator *codeGenerator) generateVariableDeclareStatementCode(decl *VarDeclAst) {
	if decl.Init == nil {
		return
	}
	generator.generateExpressionCode(decl.Init)
	generator.generateSymbolAddressCode(decl.symbol)
	generator.generateStoreIndirectCode(decl.symbol.TP.Size())
}

// The value is computed first, then the address, then the words are stored.
func (generator *codeGenerator) generateAssignmentCode(stm *AssignmentAst) {
	generator.generateExpressionCode(stm.Value)
	generator.generateAddressCode(stm.Target)
	generator.generateStoreIndirectCode(stm.Target.Type().Size())
}

func (generator *codeGenerator) generateIfStatementCode(stm *IfAst) {
	endLabel := generator.newLabel("endif")
	elseLabel := endLabel
	if len(stm.Else) > 0 {
		elseLabel = generator.newLabel("else")
	}
	generator.generateConditionCode(stm.Condition, elseLabel)
	generator.generateStatementsCode(stm.Then)
	if len(stm.Else) > 0 {
		generator.writeOutput(Inst(JmpOp, LabelRef(endLabel)), Label(elseLabel))
		generator.generateStatementsCode(stm.Else)
	}
	generator.writeOutput(Label(endLabel))
}

func (generator *codeGenerator) generateWhileStatementCode(stm *LoopAst) {
	loopLabel, endLabel := generator.newLabel("loop"), generator.newLabel("endloop")
	generator.writeOutput(Label(loopLabel))
	generator.generateConditionCode(stm.Condition, endLabel)
	generator.generateStatementsCode(stm.Body)
	generator.writeOutput(Inst(JmpOp, LabelRef(loopLabel)), Label(endLabel))
}

// generateConditionCode jumps to falseLabel when condition is zero.
func (generator *codeGenerator) generateConditionCode(condition ExpressionAst, falseLabel string) {
	generator.generateExpressionCode(condition)
	generator.writeOutput(
		Inst(PopOp, Reg(R1)),
		Inst(BrzOp, LabelRef(falseLabel), Reg(R1)),
	)
}

// Return stores the value into the return slot and jumps to the epilogue.
func (generator *codeGenerator) generateReturnStatementCode(stm *ReturnAst) {
	if stm.Value != nil {
		signature := generator.decl.signature
		generator.generateExpressionCode(stm.Value)
		generator.generateFrameAddressCode(signature.ReturnOffset())
		generator.writeOutput(Inst(PshOp, Reg(R1)))
		generator.generateStoreIndirectCode(signature.ReturnWords())
	}
	generator.writeOutput(Inst(JmpOp, LabelRef(generator.fn.ReturnLabel())))
}

// Asm Load pushes the variable, Asm Save pops the top of stack into it and Asm Exec is
// passed through untouched.
func (generator *codeGenerator) generateInlineAsmCode(stm *InlineAsmAst) {
	switch stm.Kind {
	case AsmLoad:
		generator.generateExpressionCode(stm.Operands[0])
	case AsmSave:
		generator.generateAddressCode(stm.Operands[0])
		generator.generateStoreIndirectCode(stm.Operands[0].Type().Size())
	case AsmExec:
		generator.writeOutput(Opaque(stm.Text))
	}
}

func (generator *codeGenerator) generateExpressionCode(expr ExpressionAst) {
	switch e := expr.(type) {
	case *LiteralAst:
		generator.writeOutput(Inst(PshOp, Imm(e.Value)))
	case *IdentifierAst, *FieldAccessAst:
		generator.generateAddressCode(expr)
		generator.generateLoadIndirectCode(expr.Type().Size())
	case *BinaryOpAst:
		generator.generateBinaryOpCode(e)
	case *UnaryOpAst:
		generator.generateUnaryOpCode(e)
	case *CastAst:
		// A cast only changes the static type.
		generator.generateExpressionCode(e.Operand)
	case *CallAst:
		generator.generateFuncCallCode(e)
	default:
		panic(fmt.Sprintf("unknown expression %T", expr))
	}
}

var binaryOpcodes = map[OpCode]Opcode{
	AddOpTP:          AddOp,
	MinusOpTP:        SubOp,
	MultipleOpTP:     MltOp,
	DivideOpTP:       SdivOp,
	ModOpTP:          ModOp,
	AndOpTP:          AndOp,
	OrOpTP:           OrOp,
	XorOpTP:          XorOp,
	LeftShiftOpTP:    BslOp,
	RightShiftOpTP:   BsrOp,
	EqualOpTp:        SeteOp,
	NotEqualOpTP:     SetneOp,
	LessOpTP:         SsetlOp,
	GreaterOpTP:      SsetgOp,
	LessEqualOpTP:    SsetleOp,
	GreaterEqualOpTP: SsetgeOp,
}

// Comparisons yield -1 or 0 without branching. Pointer arithmetic scales the Integer
// operand by the size of the pointee.
func (generator *codeGenerator) generateBinaryOpCode(expr *BinaryOpAst) {
	l, r := expr.Left.Type(), expr.Right.Type()
	generator.generateExpressionCode(expr.Left)
	if l.IsInteger() && r.IsPointer() {
		generator.generateScaleCode(r.Elem.Size())
	}
	generator.generateExpressionCode(expr.Right)
	if l.IsPointer() && r.IsInteger() {
		generator.generateScaleCode(l.Elem.Size())
	}
	generator.writeOutput(
		Inst(PopOp, Reg(R2)),
		Inst(PopOp, Reg(R1)),
		Inst(binaryOpcodes[expr.Op.Op], Reg(R1), Reg(R1), Reg(R2)),
		Inst(PshOp, Reg(R1)),
	)
}

func (generator *codeGenerator) generateScaleCode(size int) {
	if size == 1 {
		return
	}
	generator.writeOutput(
		Inst(PopOp, Reg(R1)),
		Inst(MltOp, Reg(R1), Reg(R1), Imm(int64(size))),
		Inst(PshOp, Reg(R1)),
	)
}

func (generator *codeGenerator) generateUnaryOpCode(expr *UnaryOpAst) {
	switch expr.Op.Op {
	case AddressOfOpTP:
		generator.generateAddressCode(expr.Operand)
	case ValueOfOpTP:
		generator.generateExpressionCode(expr.Operand)
		generator.generateLoadIndirectCode(expr.Type().Size())
	case NegationOpTP, NotOpTP:
		op := NegOp
		if expr.Op.Op == NotOpTP {
			op = NotOp
		}
		generator.generateExpressionCode(expr.Operand)
		generator.writeOutput(
			Inst(PopOp, Reg(R1)),
			Inst(op, Reg(R1), Reg(R1)),
			Inst(PshOp, Reg(R1)),
		)
	}
}

// generateFuncCallCode leaves the return value, if any, on the stack. ByRef arguments
// push an address, ByVal arguments push a copy of the value, structures included.
func (generator *codeGenerator) generateFuncCallCode(call *CallAst) {
	signature := call.signature
	if words := signature.ReturnWords(); words > 0 {
		generator.writeOutput(Inst(SubOp, Reg(SP), Reg(SP), Imm(int64(words))))
	}
	for i, arg := range call.Args {
		if signature.Params[i].ByRef {
			generator.generateAddressCode(arg)
		} else {
			generator.generateExpressionCode(arg)
		}
	}
	generator.writeOutput(Inst(CalOp, LabelRef(signature.Name)))
	if words := signature.ArgWords(); words > 0 {
		generator.writeOutput(Inst(AddOp, Reg(SP), Reg(SP), Imm(int64(words))))
	}
}

// generateAddressCode pushes the address of an addressable expression.
func (generator *codeGenerator) generateAddressCode(expr ExpressionAst) {
	switch e := expr.(type) {
	case *IdentifierAst:
		generator.generateSymbolAddressCode(e.symbol)
	case *FieldAccessAst:
		generator.generateAddressCode(e.Operand)
		if e.field.Offset != 0 {
			generator.writeOutput(
				Inst(PopOp, Reg(R1)),
				Inst(AddOp, Reg(R1), Reg(R1), Imm(int64(e.field.Offset))),
				Inst(PshOp, Reg(R1)),
			)
		}
	case *UnaryOpAst:
		// ValueOf(p): the address is the value of p.
		generator.generateExpressionCode(e.Operand)
	default:
		panic(fmt.Sprintf("%T is not addressable", expr))
	}
}

// Globals live at a fixed heap address. Locals and parameters are relative to R3, and a
// ByRef parameter holds the address itself.
func (generator *codeGenerator) generateSymbolAddressCode(symbol *Symbol) {
	if symbol.Storage == GlobalStorage {
		generator.writeOutput(Inst(PshOp, Mem(symbol.Offset)))
		return
	}
	generator.generateFrameAddressCode(symbol.Offset)
	if symbol.ByRef {
		generator.writeOutput(Inst(LodOp, Reg(R1), Reg(R1)))
	}
	generator.writeOutput(Inst(PshOp, Reg(R1)))
}

// generateFrameAddressCode computes R3+offset into R1.
func (generator *codeGenerator) generateFrameAddressCode(offset int) {
	if offset < 0 {
		generator.writeOutput(Inst(SubOp, Reg(R1), Reg(R3), Imm(int64(-offset))))
		return
	}
	generator.writeOutput(Inst(AddOp, Reg(R1), Reg(R3), Imm(int64(offset))))
}

// generateLoadIndirectCode pops an address and pushes the size words stored there, the
// last word first so that word 0 ends on top.
func (generator *codeGenerator) generateLoadIndirectCode(size int) {
	generator.writeOutput(Inst(PopOp, Reg(R1)))
	switch size {
	case 0:
		return
	case 1:
		generator.writeOutput(Inst(LodOp, Reg(R1), Reg(R1)), Inst(PshOp, Reg(R1)))
		return
	}
	generator.writeOutput(Inst(AddOp, Reg(R1), Reg(R1), Imm(int64(size-1))))
	for i := 0; i < size; i++ {
		if i != 0 {
			generator.writeOutput(Inst(SubOp, Reg(R1), Reg(R1), Imm(1)))
		}
		generator.writeOutput(Inst(LodOp, Reg(R2), Reg(R1)), Inst(PshOp, Reg(R2)))
	}
}

// generateStoreIndirectCode pops an address, then pops size words into it, word 0 first.
func (generator *codeGenerator) generateStoreIndirectCode(size int) {
	generator.writeOutput(Inst(PopOp, Reg(R1)))
	for i := 0; i < size; i++ {
		if i != 0 {
			generator.writeOutput(Inst(AddOp, Reg(R1), Reg(R1), Imm(1)))
		}
		generator.writeOutput(Inst(PopOp, Reg(R2)), Inst(StrOp, Reg(R1), Reg(R2)))
	}
}
