package internal

import (
	"strconv"
	"strings"
)

// Expression grammar, loosest first:
//
//	expression := cast { binaryOp cast }          binary ops by OpAst.priority
//	cast       := prefix { As type }
//	prefix     := (AddressOf | ValueOf) prefix | (AddressOf | ValueOf) "(" expression ")" { "." ident } | unary
//	unary      := ("-" | Not) prefix | postfix
//	postfix    := primary { "." ident }
//	primary    := integer | ident | ident "(" [expression { "," expression }] ")" | "(" expression ")"

func buildExpressionsTree(ops []*OpAst, exprTerms []ExpressionAst) ExpressionAst {
	if len(ops) == 0 {
		return exprTerms[0]
	}
	ret, _ := buildExpressionsTree0(ops, exprTerms, 0, 0)
	return ret
}

// buildExpressionsTree0 is a precedence climbing over the flat ops/terms sequence. Equal
// priorities associate to the left.
func buildExpressionsTree0(ops []*OpAst, exprTerms []ExpressionAst, loc int, minPriority int) (ExpressionAst, int) {
	lhs := exprTerms[loc]
	i := loc
	for i < len(ops) && ops[i].priority >= minPriority {
		op := ops[i]
		rhs := exprTerms[i+1]
		j := i + 1
		for j < len(ops) && ops[j].priority > op.priority {
			rhs, j = buildExpressionsTree0(ops, exprTerms, j, ops[j].priority)
		}
		lhs = makeNewExpression(lhs, rhs, op)
		exprTerms[j] = lhs
		i = j
	}
	return lhs, i
}

func makeNewExpression(leftExpr ExpressionAst, rightExpr ExpressionAst, op *OpAst) *BinaryOpAst {
	return &BinaryOpAst{exprNode: exprNode{pos: leftExpr.Pos()}, Op: op, Left: leftExpr, Right: rightExpr}
}

func (parser *Parser) parseExpressions() (exprs []ExpressionAst, err error) {
	for parser.hasRemainTokens() {
		expression, err := parser.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expression)
		_, match := parser.expectToken(CommaTP, false)
		if !match {
			break
		}
		parser.stepForward()
	}
	return
}

func (parser *Parser) parseExpression() (ExpressionAst, error) {
	leftExprTerm, err := parser.parseCastExpression()
	if err != nil {
		return nil, err
	}
	var ops []*OpAst
	exprTerms := []ExpressionAst{leftExprTerm}
	for parser.matchOp() {
		op := binaryOpTokenMap[parser.currentToken().tp]
		parser.stepForward()
		exprTerm, err := parser.parseCastExpression()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		exprTerms = append(exprTerms, exprTerm)
	}
	return buildExpressionsTree(ops, exprTerms), nil
}

func (parser *Parser) parseCastExpression() (ExpressionAst, error) {
	expr, err := parser.parsePrefixExpression()
	if err != nil {
		return nil, err
	}
	for {
		token, match := parser.expectToken(AsTP, true)
		if !match {
			return expr, nil
		}
		target, err := parser.ParseVariableType()
		if err != nil {
			return nil, err
		}
		expr = &CastAst{exprNode: exprNode{pos: token.Pos()}, Operand: expr, Target: target}
	}
}

func (parser *Parser) parsePrefixExpression() (ExpressionAst, error) {
	token := parser.currentToken()
	var op *OpAst
	switch token.tp {
	case AddressOfTP:
		op = &AddressOfOpAst
	case ValueOfTP:
		op = &ValueOfOpAst
	default:
		return parser.parseUnaryExpression()
	}
	parser.stepForward()
	if _, match := parser.expectToken(LeftParentThesesTP, false); match {
		// AddressOf(x).f and ValueOf(p).X: the parenthesized operand binds first.
		operand, err := parser.parseSubExpression()
		if err != nil {
			return nil, err
		}
		return parser.parseFieldAccess(&UnaryOpAst{exprNode: exprNode{pos: token.Pos()}, Op: op, Operand: operand})
	}
	operand, err := parser.parsePrefixExpression()
	if err != nil {
		return nil, err
	}
	return &UnaryOpAst{exprNode: exprNode{pos: token.Pos()}, Op: op, Operand: operand}, nil
}

// Note: `5 + -2` is accepted, and `-` applied to a literal folds into the literal.
func (parser *Parser) parseUnaryExpression() (ExpressionAst, error) {
	token := parser.currentToken()
	var op *OpAst
	switch token.tp {
	case MinusTP:
		op = &NegationOpAst
	case NotTP:
		op = &NotOpAst
	default:
		return parser.parsePostfixExpression()
	}
	parser.stepForward()
	operand, err := parser.parsePrefixExpression()
	if err != nil {
		return nil, err
	}
	if literal, ok := operand.(*LiteralAst); ok && op == &NegationOpAst {
		literal.Value = -literal.Value
		literal.pos = token.Pos()
		return literal, nil
	}
	return &UnaryOpAst{exprNode: exprNode{pos: token.Pos()}, Op: op, Operand: operand}, nil
}

func (parser *Parser) parsePostfixExpression() (ExpressionAst, error) {
	expr, err := parser.parsePrimaryExpression()
	if err != nil {
		return nil, err
	}
	return parser.parseFieldAccess(expr)
}

func (parser *Parser) parseFieldAccess(expr ExpressionAst) (ExpressionAst, error) {
	for {
		if _, match := parser.expectToken(DotTP, true); !match {
			return expr, nil
		}
		field, match := parser.expectToken(IdentifierTP, true)
		if !match {
			return nil, parser.makeError("expected field name, found %s", parser.currentToken())
		}
		expr = &FieldAccessAst{exprNode: exprNode{pos: field.Pos()}, Operand: expr, Field: field.content}
	}
}

func (parser *Parser) parsePrimaryExpression() (ExpressionAst, error) {
	token := parser.currentToken()
	switch token.tp {
	case IntegerTP:
		return parser.parseIntegerLiteral()
	case IdentifierTP:
		if _, match := parser.expectTokenAt(1, LeftParentThesesTP); match {
			return parser.parseFuncCall()
		}
		parser.stepForward()
		return &IdentifierAst{exprNode: exprNode{pos: token.Pos()}, Name: token.content}, nil
	case LeftParentThesesTP:
		return parser.parseSubExpression()
	}
	return nil, parser.makeError("expected expression, found %s", token)
}

// parseIntegerLiteral reads 10, 0x1F, 0o17 or 0b101.
func (parser *Parser) parseIntegerLiteral() (*LiteralAst, error) {
	token, match := parser.expectToken(IntegerTP, false)
	if !match {
		return nil, parser.expectError(IntegerTP)
	}
	digits, base := strings.ToLower(token.content), 10
	if len(digits) > 2 && digits[0] == '0' {
		switch digits[1] {
		case 'x':
			base = 16
		case 'o':
			base = 8
		case 'b':
			base = 2
		}
	}
	if base != 10 {
		digits = digits[2:]
	}
	value, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return nil, parser.makeError("integer literal %s is out of range", token.content)
	}
	parser.stepForward()
	return &LiteralAst{exprNode: exprNode{pos: token.Pos()}, Value: value}, nil
}

func (parser *Parser) parseSubExpression() (ExpressionAst, error) {
	_, match := parser.expectToken(LeftParentThesesTP, true)
	if !match {
		return nil, parser.expectError(LeftParentThesesTP)
	}
	expr, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(RightParentThesesTP, true)
	if !match {
		return nil, parser.expectError(RightParentThesesTP)
	}
	return expr, nil
}

// name(args)
func (parser *Parser) parseFuncCall() (*CallAst, error) {
	name, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.expectError(IdentifierTP)
	}
	if _, match = parser.expectToken(LeftParentThesesTP, true); !match {
		return nil, parser.expectError(LeftParentThesesTP)
	}
	call := &CallAst{exprNode: exprNode{pos: name.Pos()}, Name: name.content}
	if _, match = parser.expectToken(RightParentThesesTP, true); match {
		return call, nil
	}
	args, err := parser.parseExpressions()
	if err != nil {
		return nil, err
	}
	call.Args = args
	if _, match = parser.expectToken(RightParentThesesTP, true); !match {
		return nil, parser.expectError(RightParentThesesTP)
	}
	return call, nil
}

func (parser *Parser) matchOp() bool {
	_, ok := binaryOpTokenMap[parser.currentToken().tp]
	return ok
}
