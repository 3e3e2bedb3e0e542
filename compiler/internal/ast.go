package internal

// In this file, we defined all ast of General Basic. A source unit is a sequence of
// structure declarations, global Dims and Function/Sub declarations, in any order.
// The analyzer annotates the nodes in place: resolved types are stored in the
// expression nodes, resolved symbols in the unexported fields.

type UnitAst struct {
	File       string
	Structures []*StructDeclAst
	Globals    []*VarDeclAst
	Functions  []*FunctionDeclAst
}

// TypeAst is a type as written in source: a base name followed by PointerDepth `*`.
type TypeAst struct {
	Name         string
	PointerDepth int
	Pos          Position
}

func (t *TypeAst) String() string {
	name := t.Name
	for i := 0; i < t.PointerDepth; i++ {
		name += "*"
	}
	return name
}

type StructDeclAst struct {
	Name   string
	Fields []*VarDeclAst
	Pos    Position

	def *StructDef // We set struct definition here.
}

type FunctionDeclAst struct {
	Name     string
	Params   []*ParamAst
	ReturnTP *TypeAst // nil for Sub.
	Body     []StatementAst
	Pos      Position

	signature  *FunctionSignature // We set signature here.
	localWords int
}

func (decl *FunctionDeclAst) IsSub() bool {
	return decl.ReturnTP == nil
}

type ParamAst struct {
	Name  string
	ByRef bool
	TP    *TypeAst
	Pos   Position

	symbol *Symbol
}

// Expressions.

type ExpressionAst interface {
	Pos() Position
	// Type is the resolved type, nil before analysis.
	Type() *Type
	setType(tp *Type)
}

type exprNode struct {
	pos Position
	tp  *Type
}

func (node *exprNode) Pos() Position { return node.pos }

func (node *exprNode) Type() *Type { return node.tp }

func (node *exprNode) setType(tp *Type) { node.tp = tp }

type LiteralAst struct {
	exprNode
	Value int64
}

type IdentifierAst struct {
	exprNode
	Name string

	symbol *Symbol // We set symbol reference here.
}

type BinaryOpAst struct {
	exprNode
	Op    *OpAst
	Left  ExpressionAst
	Right ExpressionAst
}

type UnaryOpAst struct {
	exprNode
	Op      *OpAst
	Operand ExpressionAst
}

type CastAst struct {
	exprNode
	Operand ExpressionAst
	Target  *TypeAst
}

type FieldAccessAst struct {
	exprNode
	Operand ExpressionAst
	Field   string

	field *FieldDef
}

type CallAst struct {
	exprNode
	Name string
	Args []ExpressionAst

	signature *FunctionSignature
}

type OpAst struct {
	OpTP     OpType
	Op       OpCode
	priority int
	Name     string
}

func (op OpAst) String() string {
	return op.Name
}

type OpType int

const (
	UnaryOPTP OpType = iota
	BinaryOPTP
)

type OpCode int

const (
	AddOpTP OpCode = iota
	MinusOpTP
	MultipleOpTP
	DivideOpTP
	ModOpTP
	AndOpTP
	OrOpTP
	XorOpTP
	LeftShiftOpTP
	RightShiftOpTP
	LessOpTP
	LessEqualOpTP
	GreaterOpTP
	GreaterEqualOpTP
	EqualOpTp
	NotEqualOpTP

	// Unary Op
	NegationOpTP
	NotOpTP
	AddressOfOpTP
	ValueOfOpTP
)

// Binary operators, loosest first.
var (
	OrOpAst         = OpAst{OpTP: BinaryOPTP, Op: OrOpTP, priority: 1, Name: "Or"}
	XorOpAst        = OpAst{OpTP: BinaryOPTP, Op: XorOpTP, priority: 1, Name: "Xor"}
	AndOpAst        = OpAst{OpTP: BinaryOPTP, Op: AndOpTP, priority: 2, Name: "And"}
	EqualOpAst      = OpAst{OpTP: BinaryOPTP, Op: EqualOpTp, priority: 3, Name: "="}
	NotEqualOpAst   = OpAst{OpTP: BinaryOPTP, Op: NotEqualOpTP, priority: 3, Name: "<>"}
	LessOpAst       = OpAst{OpTP: BinaryOPTP, Op: LessOpTP, priority: 3, Name: "<"}
	LessEqualOpAst  = OpAst{OpTP: BinaryOPTP, Op: LessEqualOpTP, priority: 3, Name: "<="}
	GreatOpAst      = OpAst{OpTP: BinaryOPTP, Op: GreaterOpTP, priority: 3, Name: ">"}
	GreatEqualOpAst = OpAst{OpTP: BinaryOPTP, Op: GreaterEqualOpTP, priority: 3, Name: ">="}
	LeftShiftOpAst  = OpAst{OpTP: BinaryOPTP, Op: LeftShiftOpTP, priority: 4, Name: "<<"}
	RightShiftOpAst = OpAst{OpTP: BinaryOPTP, Op: RightShiftOpTP, priority: 4, Name: ">>"}
	AddOpAst        = OpAst{OpTP: BinaryOPTP, Op: AddOpTP, priority: 5, Name: "+"}
	MinusOpAst      = OpAst{OpTP: BinaryOPTP, Op: MinusOpTP, priority: 5, Name: "-"}
	MultipleOpAst   = OpAst{OpTP: BinaryOPTP, Op: MultipleOpTP, priority: 6, Name: "*"}
	DivideOpAst     = OpAst{OpTP: BinaryOPTP, Op: DivideOpTP, priority: 6, Name: "/"}
	ModOpAst        = OpAst{OpTP: BinaryOPTP, Op: ModOpTP, priority: 6, Name: "Mod"}

	NegationOpAst  = OpAst{OpTP: UnaryOPTP, Op: NegationOpTP, Name: "-"}
	NotOpAst       = OpAst{OpTP: UnaryOPTP, Op: NotOpTP, Name: "Not"}
	AddressOfOpAst = OpAst{OpTP: UnaryOPTP, Op: AddressOfOpTP, Name: "AddressOf"}
	ValueOfOpAst   = OpAst{OpTP: UnaryOPTP, Op: ValueOfOpTP, Name: "ValueOf"}
)

// binaryOpTokenMap is the mapping from token to binary operator.
var binaryOpTokenMap = map[TokenType]*OpAst{
	OrTP:           &OrOpAst,
	XorTP:          &XorOpAst,
	AndTP:          &AndOpAst,
	EqualTP:        &EqualOpAst,
	NotEqualTP:     &NotEqualOpAst,
	LessTP:         &LessOpAst,
	LessEqualTP:    &LessEqualOpAst,
	GreaterTP:      &GreatOpAst,
	GreaterEqualTP: &GreatEqualOpAst,
	LeftShiftTP:    &LeftShiftOpAst,
	RightShiftTP:   &RightShiftOpAst,
	AddTP:          &AddOpAst,
	MinusTP:        &MinusOpAst,
	MultiplyTP:     &MultipleOpAst,
	DivideTP:       &DivideOpAst,
	ModTP:          &ModOpAst,
}

func (op *OpAst) isComparison() bool {
	return op.priority == 3
}

// Statements.

type StatementAst interface {
	Pos() Position
}

type stmtNode struct {
	pos Position
}

func (node *stmtNode) Pos() Position { return node.pos }

// VarDeclAst is a Dim, either a local, a global or a structure field.
type VarDeclAst struct {
	stmtNode
	Name string
	TP   *TypeAst
	Init ExpressionAst

	symbol *Symbol // We set symbol reference here.
}

type AssignmentAst struct {
	stmtNode
	Target ExpressionAst
	Value  ExpressionAst
}

type CallStatementAst struct {
	stmtNode
	Call *CallAst
}

type IfAst struct {
	stmtNode
	Condition ExpressionAst
	Then      []StatementAst
	Else      []StatementAst
}

// LoopAst is a While loop. For loops are desugared into an assignment followed by a LoopAst.
type LoopAst struct {
	stmtNode
	Condition ExpressionAst
	Body      []StatementAst
}

type ReturnAst struct {
	stmtNode
	Value ExpressionAst
}

type AsmKind int

const (
	AsmLoad AsmKind = iota
	AsmSave
	AsmExec
)

func (kind AsmKind) String() string {
	switch kind {
	case AsmLoad:
		return "Load"
	case AsmSave:
		return "Save"
	}
	return "Exec"
}

// InlineAsmAst is `Asm Load v`, `Asm Save v` or `Asm Exec text`. Operands keeps every
// variable or field path after Load/Save so the arity is checked by the analyzer.
type InlineAsmAst struct {
	stmtNode
	Kind     AsmKind
	Operands []ExpressionAst
	Text     string
}
