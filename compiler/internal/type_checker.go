package internal

// The analyzer resolves names and types of every function body and annotates the ast in
// place. An error inside one function does not stop the analysis of the others; an
// expression whose operand already failed is not reported again.

type analyzer struct {
	table    *SymbolTable
	function *FunctionDeclAst
	scope    *Scope
	errs     ErrorList
}

// Analyze merges all units into one SymbolTable and checks every body against it.
func Analyze(units []*UnitAst) (*SymbolTable, ErrorList) {
	checker := &analyzer{table: NewSymbolTable()}
	checker.errs.Append(checker.table.buildSymbolTables(units))
	for _, unit := range units {
		for _, function := range unit.Functions {
			if function.signature == nil {
				continue
			}
			checker.typeCheckFunction(function)
		}
	}
	checker.errs.Sort()
	return checker.table, checker.errs
}

func (checker *analyzer) addError(kind ErrorKind, pos Position, format string, args ...interface{}) {
	checker.errs.Add(makeError(kind, pos, format, args...))
}

func (checker *analyzer) typeCheckFunction(function *FunctionDeclAst) {
	scope, errs := checker.table.buildFuncScope(function)
	checker.errs.Append(errs)
	function.localWords = 0
	checker.function, checker.scope = function, scope
	checker.typeCheckStatements(function.Body)
	checker.methodReturnAnalysis(function)
}

// Check those functions which return a value can not reach End Function.
func (checker *analyzer) methodReturnAnalysis(function *FunctionDeclAst) {
	if function.IsSub() || statementReturnAnalysis(function.Body) {
		return
	}
	checker.addError(TypeMismatchErrorKind, function.Pos, "function %s can reach End Function without a Return",
		function.Name)
}

func ifElseReturnAnalysis(ifAst *IfAst) bool {
	if len(ifAst.Then) <= 0 || len(ifAst.Else) <= 0 {
		return false
	}
	return statementReturnAnalysis(ifAst.Then) && statementReturnAnalysis(ifAst.Else)
}

func statementReturnAnalysis(statements []StatementAst) bool {
	for _, statement := range statements {
		switch stm := statement.(type) {
		case *ReturnAst:
			return true
		case *IfAst:
			if ifElseReturnAnalysis(stm) {
				return true
			}
		}
	}
	return false
}

func (checker *analyzer) typeCheckStatements(statements []StatementAst) {
	for _, statement := range statements {
		checker.typeCheckStatement(statement)
	}
}

func (checker *analyzer) typeCheckStatement(statement StatementAst) {
	switch stm := statement.(type) {
	case *VarDeclAst:
		checker.typeCheckVarDeclare(stm)
	case *AssignmentAst:
		checker.typeCheckAssignment(stm)
	case *CallStatementAst:
		checker.typeCheckCall(stm.Call, true)
	case *IfAst:
		checker.typeCheckCondition(stm.Condition)
		checker.typeCheckStatements(stm.Then)
		checker.typeCheckStatements(stm.Else)
	case *LoopAst:
		checker.typeCheckCondition(stm.Condition)
		checker.typeCheckStatements(stm.Body)
	case *ReturnAst:
		checker.typeCheckReturn(stm)
	case *InlineAsmAst:
		checker.typeCheckInlineAsm(stm)
	}
}

// typeCheckVarDeclare allocates the local below the ones declared before it. A declaration
// without a type, such as the bound of a For, takes the type of its initializer.
func (checker *analyzer) typeCheckVarDeclare(decl *VarDeclAst) {
	if decl.TP == nil {
		tp := checker.getAndCheckExpressionType(decl.Init)
		if tp == nil {
			tp = IntegerType
		}
		checker.declareLocal(decl, tp)
		return
	}
	tp, err := checker.table.resolveType(decl.TP, UndefinedSymbolErrorKind)
	if err != nil {
		checker.errs.Add(err)
		return
	}
	if decl.Init != nil {
		if initTP := checker.getAndCheckExpressionType(decl.Init); initTP != nil && !initTP.Equal(tp) {
			checker.addError(TypeMismatchErrorKind, decl.Init.Pos(), "cannot initialize %s of type %s with %s",
				decl.Name, tp, initTP)
		}
	}
	checker.declareLocal(decl, tp)
}

func (checker *analyzer) declareLocal(decl *VarDeclAst, tp *Type) {
	function := checker.function
	symbol := &Symbol{
		Name:    decl.Name,
		TP:      tp,
		Storage: LocalStorage,
		Offset:  -(function.localWords + tp.Size()),
		Pos:     decl.Pos(),
	}
	if err := checker.scope.Declare(symbol); err != nil {
		checker.errs.Add(err)
		return
	}
	function.localWords += tp.Size()
	decl.symbol = symbol
}

func (checker *analyzer) typeCheckAssignment(stm *AssignmentAst) {
	targetTP := checker.getAndCheckExpressionType(stm.Target)
	valueTP := checker.getAndCheckExpressionType(stm.Value)
	if targetTP == nil {
		return
	}
	if !isAddressable(stm.Target) {
		checker.addError(InvalidLValueErrorKind, stm.Target.Pos(), "cannot assign to this expression")
		return
	}
	if valueTP != nil && !valueTP.Equal(targetTP) {
		checker.addError(TypeMismatchErrorKind, stm.Value.Pos(), "cannot assign %s to %s", valueTP, targetTP)
	}
}

// Conditions test a word against zero.
func (checker *analyzer) typeCheckCondition(condition ExpressionAst) {
	tp := checker.getAndCheckExpressionType(condition)
	if tp != nil && tp.IsStruct() {
		checker.addError(TypeMismatchErrorKind, condition.Pos(), "condition must be Integer or a pointer, found %s", tp)
	}
}

func (checker *analyzer) typeCheckReturn(stm *ReturnAst) {
	signature := checker.function.signature
	if signature.IsSub() {
		if stm.Value != nil {
			checker.getAndCheckExpressionType(stm.Value)
			checker.addError(TypeMismatchErrorKind, stm.Pos(), "Sub %s cannot return a value", signature.Name)
		}
		return
	}
	if stm.Value == nil {
		checker.addError(TypeMismatchErrorKind, stm.Pos(), "function %s must return a %s", signature.Name,
			signature.ReturnTP)
		return
	}
	tp := checker.getAndCheckExpressionType(stm.Value)
	if tp != nil && !tp.Equal(signature.ReturnTP) {
		checker.addError(TypeMismatchErrorKind, stm.Value.Pos(), "function %s returns %s, found %s", signature.Name,
			signature.ReturnTP, tp)
	}
}

func (checker *analyzer) typeCheckInlineAsm(stm *InlineAsmAst) {
	if stm.Kind == AsmExec {
		if stm.Text == "" {
			checker.addError(InlineAsmArgumentErrorKind, stm.Pos(), "Asm Exec needs an instruction")
		}
		return
	}
	if len(stm.Operands) != 1 {
		checker.addError(InlineAsmArgumentErrorKind, stm.Pos(), "Asm %s takes exactly one variable, found %d",
			stm.Kind, len(stm.Operands))
		return
	}
	checker.getAndCheckExpressionType(stm.Operands[0])
}

// typeCheckCall checks a call used as a statement (asStatement) or as a value.
func (checker *analyzer) typeCheckCall(call *CallAst, asStatement bool) *Type {
	signature := checker.table.lookUpFunc(call.Name)
	for _, arg := range call.Args {
		checker.getAndCheckExpressionType(arg)
	}
	if signature == nil {
		checker.addError(UndefinedSymbolErrorKind, call.Pos(), "undefined function %s", call.Name)
		return nil
	}
	call.signature = signature
	if len(call.Args) != len(signature.Params) {
		checker.addError(TypeMismatchErrorKind, call.Pos(), "%s takes %d arguments, found %d", call.Name,
			len(signature.Params), len(call.Args))
		return nil
	}
	for i, arg := range call.Args {
		param := signature.Params[i]
		if arg.Type() != nil && !arg.Type().Equal(param.TP) {
			checker.addError(TypeMismatchErrorKind, arg.Pos(), "argument %s of %s must be %s, found %s", param.Name,
				call.Name, param.TP, arg.Type())
			continue
		}
		if param.ByRef && arg.Type() != nil && !isAddressable(arg) {
			checker.addError(InvalidLValueErrorKind, arg.Pos(), "ByRef argument %s of %s must be addressable",
				param.Name, call.Name)
		}
	}
	if signature.IsSub() && !asStatement {
		checker.addError(TypeMismatchErrorKind, call.Pos(), "Sub %s has no value", call.Name)
		return nil
	}
	return signature.ReturnTP
}

// isAddressable reports whether expr denotes memory: a variable, a field of an
// addressable structure, or ValueOf a pointer.
func isAddressable(expr ExpressionAst) bool {
	switch e := expr.(type) {
	case *IdentifierAst:
		return true
	case *FieldAccessAst:
		return isAddressable(e.Operand)
	case *UnaryOpAst:
		return e.Op.Op == ValueOfOpTP
	}
	return false
}

// getAndCheckExpressionType computes and records the type of expr. It returns nil when
// expr or one of its operands has an error.
func (checker *analyzer) getAndCheckExpressionType(expr ExpressionAst) *Type {
	tp := checker.getAndCheckExpressionType0(expr)
	expr.setType(tp)
	return tp
}

func (checker *analyzer) getAndCheckExpressionType0(expr ExpressionAst) *Type {
	switch e := expr.(type) {
	case *LiteralAst:
		return IntegerType
	case *IdentifierAst:
		symbol := checker.scope.LookUp(e.Name)
		if symbol == nil {
			checker.addError(UndefinedSymbolErrorKind, e.Pos(), "undefined variable %s", e.Name)
			return nil
		}
		e.symbol = symbol
		return symbol.TP
	case *BinaryOpAst:
		return checker.typeCheckBinaryOp(e)
	case *UnaryOpAst:
		return checker.typeCheckUnaryOp(e)
	case *CastAst:
		return checker.typeCheckCast(e)
	case *FieldAccessAst:
		return checker.typeCheckFieldAccess(e)
	case *CallAst:
		return checker.typeCheckCall(e, false)
	}
	return nil
}

func (checker *analyzer) typeCheckBinaryOp(expr *BinaryOpAst) *Type {
	l := checker.getAndCheckExpressionType(expr.Left)
	r := checker.getAndCheckExpressionType(expr.Right)
	if l == nil || r == nil {
		return nil
	}
	tp := checkMatch(l, r, expr.Op)
	if tp == nil {
		checker.addError(TypeMismatchErrorKind, expr.Pos(), "operator %s is not defined on %s and %s", expr.Op, l, r)
	}
	return tp
}

// checkMatch returns the result type of `l op r`, or nil when op does not apply.
func checkMatch(l, r *Type, op *OpAst) *Type {
	switch {
	case op.isComparison():
		if (l.IsInteger() && r.IsInteger()) || (l.IsPointer() && l.Equal(r)) {
			return IntegerType
		}
	case op.Op == AddOpTP:
		switch {
		case l.IsInteger() && r.IsInteger():
			return IntegerType
		case l.IsPointer() && r.IsInteger():
			return l
		case l.IsInteger() && r.IsPointer():
			return r
		}
	case op.Op == MinusOpTP:
		switch {
		case l.IsInteger() && r.IsInteger():
			return IntegerType
		case l.IsPointer() && r.IsInteger():
			return l
		}
	default:
		if l.IsInteger() && r.IsInteger() {
			return IntegerType
		}
	}
	return nil
}

func (checker *analyzer) typeCheckUnaryOp(expr *UnaryOpAst) *Type {
	tp := checker.getAndCheckExpressionType(expr.Operand)
	if tp == nil {
		return nil
	}
	switch expr.Op.Op {
	case AddressOfOpTP:
		if !isAddressable(expr.Operand) {
			checker.addError(InvalidLValueErrorKind, expr.Operand.Pos(), "AddressOf needs a variable, a field or a ValueOf")
			return nil
		}
		return PointerTo(tp)
	case ValueOfOpTP:
		if !tp.IsPointer() {
			checker.addError(TypeMismatchErrorKind, expr.Pos(), "ValueOf needs a pointer, found %s", tp)
			return nil
		}
		return tp.Elem
	}
	if !tp.IsInteger() {
		checker.addError(TypeMismatchErrorKind, expr.Pos(), "operator %s is not defined on %s", expr.Op, tp)
		return nil
	}
	return IntegerType
}

// typeCheckCast allows pointer to pointer, pointer to Integer and back, and a type to itself.
func (checker *analyzer) typeCheckCast(expr *CastAst) *Type {
	source := checker.getAndCheckExpressionType(expr.Operand)
	target, err := checker.table.resolveType(expr.Target, UndefinedSymbolErrorKind)
	if err != nil {
		checker.errs.Add(err)
		return nil
	}
	if source == nil {
		return nil
	}
	switch {
	case source.Equal(target):
	case source.IsPointer() && (target.IsPointer() || target.IsInteger()):
	case source.IsInteger() && target.IsPointer():
	default:
		checker.addError(TypeMismatchErrorKind, expr.Pos(), "cannot cast %s to %s", source, target)
		return nil
	}
	return target
}

func (checker *analyzer) typeCheckFieldAccess(expr *FieldAccessAst) *Type {
	tp := checker.getAndCheckExpressionType(expr.Operand)
	if tp == nil {
		return nil
	}
	if !tp.IsStruct() {
		checker.addError(TypeMismatchErrorKind, expr.Pos(), "%s has no field %s", tp, expr.Field)
		return nil
	}
	field := tp.Struct.Field(expr.Field)
	if field == nil {
		checker.addError(UndefinedSymbolErrorKind, expr.Pos(), "structure %s has no field %s", tp, expr.Field)
		return nil
	}
	if !isAddressable(expr.Operand) {
		checker.addError(TypeMismatchErrorKind, expr.Pos(), "field %s of a temporary %s is not accessible", expr.Field, tp)
		return nil
	}
	expr.field = field
	return field.TP
}
