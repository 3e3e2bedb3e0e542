package internal

import (
	"fmt"
	"io"
	"strings"
)

type Parser struct {
	file            string
	currentTokens   []*Token
	currentTokenPos int
	errs            ErrorList
	// forBounds numbers the hidden locals holding a For bound.
	forBounds int
}

func NewParser(file string) *Parser {
	return &Parser{file: file}
}

// ParseUnit tokenizes and parses one source unit. A LexError aborts the unit. A SyntaxError
// skips to the next top level declaration so every declaration of the unit gets reported.
func ParseUnit(file string, rd io.Reader) (*UnitAst, error) {
	tokenizer := NewTokenizer(file)
	tokens, err := tokenizer.Tokenize(rd)
	if err != nil {
		if lexErr, ok := err.(*Error); ok {
			return nil, ErrorList{lexErr}
		}
		return nil, err
	}
	parser := NewParser(file)
	parser.currentTokens = tokens
	unit := parser.ParseUnit()
	if err := parser.errs.Err(); err != nil {
		return nil, err
	}
	return unit, nil
}

func (parser *Parser) ParseUnit() *UnitAst {
	unit := &UnitAst{File: parser.file}
	for {
		parser.skipEOL()
		token := parser.currentToken()
		if token.tp == EOFTP {
			break
		}
		var err error
		switch token.tp {
		case StructureTP:
			var structure *StructDeclAst
			structure, err = parser.ParseStructDeclaration()
			if err == nil {
				unit.Structures = append(unit.Structures, structure)
			}
		case FunctionTP, SubTP:
			var function *FunctionDeclAst
			function, err = parser.ParseFuncDeclaration()
			if err == nil {
				unit.Functions = append(unit.Functions, function)
			}
		case DimTP:
			var global *VarDeclAst
			global, err = parser.parseDim(false)
			if err == nil {
				err = parser.expectEndOfStatement()
			}
			if err == nil {
				unit.Globals = append(unit.Globals, global)
			}
		default:
			err = parser.makeError("expected Structure, Function, Sub or Dim, found %s", token)
		}
		if err != nil {
			parser.addError(err)
			parser.skipToNextDeclaration()
		}
	}
	return unit
}

// Structure Name
//     Dim field As Type
// End Structure
func (parser *Parser) ParseStructDeclaration() (*StructDeclAst, error) {
	token, match := parser.expectToken(StructureTP, true)
	if !match {
		return nil, parser.expectError(StructureTP)
	}
	structure := &StructDeclAst{Pos: token.Pos()}
	name, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.expectError(IdentifierTP)
	}
	structure.Name = name.content
	if err := parser.expectEndOfStatement(); err != nil {
		return nil, err
	}
	for {
		parser.skipEOL()
		if _, match := parser.expectToken(EndTP, false); match {
			break
		}
		field, err := parser.parseDim(false)
		if err != nil {
			return nil, err
		}
		if err = parser.expectEndOfStatement(); err != nil {
			return nil, err
		}
		structure.Fields = append(structure.Fields, field)
	}
	if err := parser.parseEnd(StructureTP); err != nil {
		return nil, err
	}
	return structure, nil
}

// Function Name(params) As Type
//     body
// End Function
//
// Sub Name(params)
//     body
// End Sub
func (parser *Parser) ParseFuncDeclaration() (*FunctionDeclAst, error) {
	token := parser.currentToken()
	kind := token.tp
	if kind != FunctionTP && kind != SubTP {
		return nil, parser.makeError("expected Function or Sub, found %s", token)
	}
	parser.stepForward()
	function := &FunctionDeclAst{Pos: token.Pos()}
	name, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.expectError(IdentifierTP)
	}
	if strings.Contains(name.content, LabelSeparator) {
		return nil, makeError(SyntaxErrorKind, name.Pos(), "%s %s: a function name cannot contain %q",
			kind, name.content, LabelSeparator)
	}
	function.Name = name.content
	params, err := parser.parseFuncParamList()
	if err != nil {
		return nil, err
	}
	function.Params = params
	if kind == FunctionTP {
		if _, match = parser.expectToken(AsTP, true); !match {
			return nil, parser.expectError(AsTP)
		}
		if function.ReturnTP, err = parser.ParseVariableType(); err != nil {
			return nil, err
		}
	}
	if err = parser.expectEndOfStatement(); err != nil {
		return nil, err
	}
	if function.Body, err = parser.parseStatements(); err != nil {
		return nil, err
	}
	if err = parser.parseEnd(kind); err != nil {
		return nil, err
	}
	return function, nil
}

// ( [ByRef|ByVal] name As Type, ... )
func (parser *Parser) parseFuncParamList() (params []*ParamAst, err error) {
	if _, match := parser.expectToken(LeftParentThesesTP, true); !match {
		return nil, parser.expectError(LeftParentThesesTP)
	}
	if _, match := parser.expectToken(RightParentThesesTP, true); match {
		return nil, nil
	}
	for {
		param := &ParamAst{Pos: parser.currentToken().Pos()}
		switch parser.currentToken().tp {
		case ByRefTP:
			param.ByRef = true
			parser.stepForward()
		case ByValTP:
			parser.stepForward()
		}
		name, match := parser.expectToken(IdentifierTP, true)
		if !match {
			return nil, parser.expectError(IdentifierTP)
		}
		param.Name = name.content
		if _, match = parser.expectToken(AsTP, true); !match {
			return nil, parser.expectError(AsTP)
		}
		if param.TP, err = parser.ParseVariableType(); err != nil {
			return nil, err
		}
		params = append(params, param)
		if _, match = parser.expectToken(CommaTP, true); !match {
			break
		}
	}
	if _, match := parser.expectToken(RightParentThesesTP, true); !match {
		return nil, parser.expectError(RightParentThesesTP)
	}
	return params, nil
}

// ParseVariableType reads a base type name followed by any number of `*`.
func (parser *Parser) ParseVariableType() (*TypeAst, error) {
	name, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeError("expected type name, found %s", parser.currentToken())
	}
	tp := &TypeAst{Name: name.content, Pos: name.Pos()}
	for {
		if _, match = parser.expectToken(MultiplyTP, true); !match {
			break
		}
		tp.PointerDepth++
	}
	return tp, nil
}

// Dim name As Type [= expr]
func (parser *Parser) parseDim(allowInit bool) (*VarDeclAst, error) {
	token, match := parser.expectToken(DimTP, true)
	if !match {
		return nil, parser.expectError(DimTP)
	}
	name, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.expectError(IdentifierTP)
	}
	decl := &VarDeclAst{stmtNode: stmtNode{pos: token.Pos()}, Name: name.content}
	if _, match = parser.expectToken(AsTP, true); !match {
		return nil, parser.expectError(AsTP)
	}
	var err error
	if decl.TP, err = parser.ParseVariableType(); err != nil {
		return nil, err
	}
	if _, match = parser.expectToken(EqualTP, false); match {
		if !allowInit {
			return nil, parser.makeError("initializer is only allowed on a local Dim")
		}
		parser.stepForward()
		if decl.Init, err = parser.parseExpression(); err != nil {
			return nil, err
		}
	}
	return decl, nil
}

// parseEnd reads `End <kind>`.
func (parser *Parser) parseEnd(kind TokenType) error {
	if _, match := parser.expectToken(EndTP, true); !match {
		return parser.makeError("expected End %s, found %s", kind, parser.currentToken())
	}
	if _, match := parser.expectToken(kind, true); !match {
		return parser.makeError("expected End %s, found End %s", kind, parser.currentToken())
	}
	return parser.expectEndOfStatement()
}

// parseStatements reads statements until a block terminator: End, ElseIf, Else, Next or end of file.
func (parser *Parser) parseStatements() (stms []StatementAst, err error) {
	for {
		parser.skipEOL()
		switch parser.currentToken().tp {
		case EndTP, ElseIfTP, ElseTP, NextTP, EOFTP:
			return stms, nil
		}
		stm, err := parser.parseStatement()
		if err != nil {
			return nil, err
		}
		stms = append(stms, stm...)
	}
}

func (parser *Parser) parseStatement() (stms []StatementAst, err error) {
	token := parser.currentToken()
	var stm StatementAst
	switch token.tp {
	case DimTP:
		stm, err = parser.parseDim(true)
	case IfTP:
		stm, err = parser.parseIfStatement()
	case WhileTP:
		stm, err = parser.parseWhileStatement()
	case ForTP:
		return parser.parseForStatement()
	case ReturnTP:
		stm, err = parser.parseReturnStatement()
	case CallTP:
		stm, err = parser.parseCallStatement()
	case AsmTP:
		stm, err = parser.parseAsmStatement()
	case IdentifierTP, AddressOfTP, ValueOfTP, LeftParentThesesTP:
		stm, err = parser.parseAssignmentOrCall()
	default:
		return nil, parser.makeError("unexpected %s at start of statement", token)
	}
	if err != nil {
		return nil, err
	}
	if err = parser.expectEndOfStatement(); err != nil {
		return nil, err
	}
	return []StatementAst{stm}, nil
}

// lvalue = expr, or a call used as a statement.
func (parser *Parser) parseAssignmentOrCall() (StatementAst, error) {
	token := parser.currentToken()
	target, err := parser.parsePrefixExpression()
	if err != nil {
		return nil, err
	}
	if _, match := parser.expectToken(EqualTP, true); match {
		value, err := parser.parseExpression()
		if err != nil {
			return nil, err
		}
		return &AssignmentAst{stmtNode: stmtNode{pos: token.Pos()}, Target: target, Value: value}, nil
	}
	if call, ok := target.(*CallAst); ok {
		return &CallStatementAst{stmtNode: stmtNode{pos: token.Pos()}, Call: call}, nil
	}
	return nil, parser.expectError(EqualTP)
}

// Call name(args) or Call name
func (parser *Parser) parseCallStatement() (StatementAst, error) {
	token, _ := parser.expectToken(CallTP, true)
	name, match := parser.expectToken(IdentifierTP, false)
	if !match {
		return nil, parser.expectError(IdentifierTP)
	}
	if _, match = parser.expectTokenAt(1, LeftParentThesesTP); !match {
		parser.stepForward()
		call := &CallAst{exprNode: exprNode{pos: name.Pos()}, Name: name.content}
		return &CallStatementAst{stmtNode: stmtNode{pos: token.Pos()}, Call: call}, nil
	}
	call, err := parser.parseFuncCall()
	if err != nil {
		return nil, err
	}
	return &CallStatementAst{stmtNode: stmtNode{pos: token.Pos()}, Call: call}, nil
}

// If cond Then
//     body
// [ElseIf cond Then
//     body]
// [Else
//     body]
// End If
func (parser *Parser) parseIfStatement() (StatementAst, error) {
	token := parser.currentToken()
	if token.tp != IfTP && token.tp != ElseIfTP {
		return nil, parser.expectError(IfTP)
	}
	parser.stepForward()
	condition, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, match := parser.expectToken(ThenTP, true); !match {
		return nil, parser.expectError(ThenTP)
	}
	if err = parser.expectEndOfStatement(); err != nil {
		return nil, err
	}
	stm := &IfAst{stmtNode: stmtNode{pos: token.Pos()}, Condition: condition}
	if stm.Then, err = parser.parseStatements(); err != nil {
		return nil, err
	}
	switch parser.currentToken().tp {
	case ElseIfTP:
		// ElseIf chains nest into the Else branch and share one End If.
		elseIf, err := parser.parseIfStatement()
		if err != nil {
			return nil, err
		}
		stm.Else = []StatementAst{elseIf}
		return stm, nil
	case ElseTP:
		parser.stepForward()
		if err = parser.expectEndOfStatement(); err != nil {
			return nil, err
		}
		if stm.Else, err = parser.parseStatements(); err != nil {
			return nil, err
		}
	}
	if _, match := parser.expectToken(EndTP, true); !match {
		return nil, parser.makeError("expected End If, found %s", parser.currentToken())
	}
	if _, match := parser.expectToken(IfTP, true); !match {
		return nil, parser.makeError("expected End If, found End %s", parser.currentToken())
	}
	return stm, nil
}

// While cond
//     body
// End While
func (parser *Parser) parseWhileStatement() (StatementAst, error) {
	token, _ := parser.expectToken(WhileTP, true)
	condition, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	if err = parser.expectEndOfStatement(); err != nil {
		return nil, err
	}
	stm := &LoopAst{stmtNode: stmtNode{pos: token.Pos()}, Condition: condition}
	if stm.Body, err = parser.parseStatements(); err != nil {
		return nil, err
	}
	if _, match := parser.expectToken(EndTP, true); !match {
		return nil, parser.makeError("expected End While, found %s", parser.currentToken())
	}
	if _, match := parser.expectToken(WhileTP, true); !match {
		return nil, parser.makeError("expected End While, found End %s", parser.currentToken())
	}
	return stm, nil
}

// For i = from To to [Step n]
//     body
// Next [i]
//
// is read as
//
// i = from
// Dim $toN = to     (left out when to is a literal)
// While i <= $toN   (i >= $toN when n is negative)
//     body
//     i = i + n
// End While
//
// so the bound is evaluated once. $ cannot start an identifier, so $toN never clashes
// with a user variable.
func (parser *Parser) parseForStatement() ([]StatementAst, error) {
	token, _ := parser.expectToken(ForTP, true)
	name, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.expectError(IdentifierTP)
	}
	if _, match = parser.expectToken(EqualTP, true); !match {
		return nil, parser.expectError(EqualTP)
	}
	from, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, match = parser.expectToken(ToTP, true); !match {
		return nil, parser.expectError(ToTP)
	}
	to, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	step := int64(1)
	if _, match = parser.expectToken(StepTP, true); match {
		negative := false
		if _, match = parser.expectToken(MinusTP, true); match {
			negative = true
		}
		literal, err := parser.parseIntegerLiteral()
		if err != nil {
			return nil, err
		}
		step = literal.Value
		if negative {
			step = -step
		}
		if step == 0 {
			return nil, parser.makeError("For Step must not be zero")
		}
	}
	if err = parser.expectEndOfStatement(); err != nil {
		return nil, err
	}
	body, err := parser.parseStatements()
	if err != nil {
		return nil, err
	}
	if _, match = parser.expectToken(NextTP, true); !match {
		return nil, parser.expectError(NextTP)
	}
	if next, match := parser.expectToken(IdentifierTP, true); match && next.content != name.content {
		parser.currentTokenPos--
		return nil, parser.makeError("Next %s does not match For %s", next.content, name.content)
	}
	if err = parser.expectEndOfStatement(); err != nil {
		return nil, err
	}

	pos := token.Pos()
	counter := func() *IdentifierAst {
		return &IdentifierAst{exprNode: exprNode{pos: name.Pos()}, Name: name.content}
	}
	compare, stepOp := &LessEqualOpAst, &AddOpAst
	if step < 0 {
		compare, stepOp, step = &GreatEqualOpAst, &MinusOpAst, -step
	}
	increment := &AssignmentAst{
		stmtNode: stmtNode{pos: pos},
		Target:   counter(),
		Value: &BinaryOpAst{exprNode: exprNode{pos: pos}, Op: stepOp, Left: counter(),
			Right: &LiteralAst{exprNode: exprNode{pos: pos}, Value: step}},
	}
	initial := &AssignmentAst{stmtNode: stmtNode{pos: pos}, Target: counter(), Value: from}
	stms := []StatementAst{initial}
	bound := to
	if _, literal := to.(*LiteralAst); !literal {
		parser.forBounds++
		hidden := fmt.Sprintf("$to%d", parser.forBounds)
		stms = append(stms, &VarDeclAst{stmtNode: stmtNode{pos: to.Pos()}, Name: hidden, Init: to})
		bound = &IdentifierAst{exprNode: exprNode{pos: to.Pos()}, Name: hidden}
	}
	loop := &LoopAst{
		stmtNode:  stmtNode{pos: pos},
		Condition: &BinaryOpAst{exprNode: exprNode{pos: pos}, Op: compare, Left: counter(), Right: bound},
		Body:      append(body, increment),
	}
	return append(stms, loop), nil
}

// Return [expr]
func (parser *Parser) parseReturnStatement() (StatementAst, error) {
	token, _ := parser.expectToken(ReturnTP, true)
	stm := &ReturnAst{stmtNode: stmtNode{pos: token.Pos()}}
	if parser.atEndOfStatement() {
		return stm, nil
	}
	var err error
	if stm.Value, err = parser.parseExpression(); err != nil {
		return nil, err
	}
	return stm, nil
}

// Asm Load v | Asm Save v | Asm Exec text
func (parser *Parser) parseAsmStatement() (StatementAst, error) {
	token, _ := parser.expectToken(AsmTP, true)
	stm := &InlineAsmAst{stmtNode: stmtNode{pos: token.Pos()}}
	kindToken := parser.currentToken()
	switch kindToken.tp {
	case LoadTP:
		stm.Kind = AsmLoad
	case SaveTP:
		stm.Kind = AsmSave
	case ExecTP:
		stm.Kind = AsmExec
		parser.stepForward()
		raw, match := parser.expectToken(RawTP, true)
		if !match {
			return nil, parser.expectError(RawTP)
		}
		stm.Text = raw.content
		return stm, nil
	default:
		return nil, parser.makeError("expected Load, Save or Exec after Asm, found %s", kindToken)
	}
	parser.stepForward()
	for !parser.atEndOfStatement() {
		operand, err := parser.parseAsmOperand()
		if err != nil {
			return nil, err
		}
		stm.Operands = append(stm.Operands, operand)
		parser.expectToken(CommaTP, true)
	}
	return stm, nil
}

// parseAsmOperand parses a variable or a field path such as `ball.Position.X`.
func (parser *Parser) parseAsmOperand() (ExpressionAst, error) {
	name, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.expectError(IdentifierTP)
	}
	var operand ExpressionAst = &IdentifierAst{exprNode: exprNode{pos: name.Pos()}, Name: name.content}
	for {
		if _, match = parser.expectToken(DotTP, true); !match {
			return operand, nil
		}
		field, match := parser.expectToken(IdentifierTP, true)
		if !match {
			return nil, parser.expectError(IdentifierTP)
		}
		operand = &FieldAccessAst{exprNode: exprNode{pos: field.Pos()}, Operand: operand, Field: field.content}
	}
}

func (parser *Parser) stepForward() {
	if parser.currentTokenPos < len(parser.currentTokens)-1 {
		parser.currentTokenPos++
	}
}

func (parser *Parser) hasRemainTokens() bool {
	return parser.currentToken().tp != EOFTP
}

// currentToken never runs past the trailing EOF token.
func (parser *Parser) currentToken() *Token {
	if len(parser.currentTokens) == 0 {
		parser.currentTokens = []*Token{{tp: EOFTP, file: parser.file, line: 1}}
	}
	if parser.currentTokenPos >= len(parser.currentTokens) {
		return parser.currentTokens[len(parser.currentTokens)-1]
	}
	return parser.currentTokens[parser.currentTokenPos]
}

func (parser *Parser) expectToken(expectedTokenTp TokenType, walk bool) (*Token, bool) {
	token := parser.currentToken()
	if token.tp != expectedTokenTp {
		return nil, false
	}
	if walk {
		parser.stepForward()
	}
	return token, true
}

// expectTokenAt peeks the token `ahead` positions after the current one.
func (parser *Parser) expectTokenAt(ahead int, expectedTokenTp TokenType) (*Token, bool) {
	pos := parser.currentTokenPos + ahead
	if pos >= len(parser.currentTokens) || parser.currentTokens[pos].tp != expectedTokenTp {
		return nil, false
	}
	return parser.currentTokens[pos], true
}

func (parser *Parser) atEndOfStatement() bool {
	tp := parser.currentToken().tp
	return tp == EOLTP || tp == EOFTP
}

func (parser *Parser) expectEndOfStatement() error {
	if !parser.atEndOfStatement() {
		return parser.expectError(EOLTP)
	}
	if parser.currentToken().tp == EOLTP {
		parser.stepForward()
	}
	return nil
}

func (parser *Parser) skipEOL() {
	for parser.currentToken().tp == EOLTP {
		parser.stepForward()
	}
}

// skipToNextDeclaration moves to the next Structure, Function or Sub that starts a line.
func (parser *Parser) skipToNextDeclaration() {
	parser.stepForward()
	for parser.hasRemainTokens() {
		token := parser.currentToken()
		startsLine := parser.currentTokenPos == 0 || parser.currentTokens[parser.currentTokenPos-1].tp == EOLTP
		if startsLine && (token.tp == StructureTP || token.tp == FunctionTP || token.tp == SubTP) {
			return
		}
		parser.stepForward()
	}
}

func (parser *Parser) addError(err error) {
	if syntaxErr, ok := err.(*Error); ok {
		parser.errs.Add(syntaxErr)
		return
	}
	parser.errs.Add(makeError(SyntaxErrorKind, parser.currentToken().Pos(), "%s", err.Error()))
}

func (parser *Parser) expectError(expected TokenType) *Error {
	return parser.makeError("expected %s, found %s", expected, parser.currentToken())
}

func (parser *Parser) makeError(format string, args ...interface{}) *Error {
	return makeError(SyntaxErrorKind, parser.currentToken().Pos(), "%s", fmt.Sprintf(format, args...))
}
