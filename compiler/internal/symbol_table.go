package internal

import "strings"

type StorageClass int

const (
	GlobalStorage StorageClass = iota
	LocalStorage
	ParameterStorage
)

func (class StorageClass) String() string {
	switch class {
	case GlobalStorage:
		return "global"
	case LocalStorage:
		return "local"
	}
	return "parameter"
}

// Symbol is a variable. Offset is the heap address for globals, and the offset from the
// frame base for locals (negative) and parameters (positive).
type Symbol struct {
	Name    string
	TP      *Type
	Storage StorageClass
	Offset  int
	// ByRef parameters hold the address of the caller's variable.
	ByRef bool
	Pos   Position
}

// SlotWords is the number of words the symbol occupies in its frame or in the heap.
func (symbol *Symbol) SlotWords() int {
	if symbol.ByRef {
		return WordSize
	}
	return symbol.TP.Size()
}

// Scope maps names to symbols. The global scope is the parent of every function scope.
type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
	order   []*Symbol
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: map[string]*Symbol{}}
}

// Declare adds symbol to this scope. It fails on a name already declared in this scope;
// shadowing a name of an outer scope is allowed.
func (scope *Scope) Declare(symbol *Symbol) *Error {
	if previous, ok := scope.symbols[symbol.Name]; ok {
		return makeError(DuplicateDeclarationErrorKind, symbol.Pos, "%s is already declared at %s", symbol.Name,
			previous.Pos)
	}
	scope.symbols[symbol.Name] = symbol
	scope.order = append(scope.order, symbol)
	return nil
}

// LookUp walks outward from scope.
func (scope *Scope) LookUp(name string) *Symbol {
	for current := scope; current != nil; current = current.parent {
		if symbol, ok := current.symbols[name]; ok {
			return symbol
		}
	}
	return nil
}

func (scope *Scope) Symbols() []*Symbol {
	return scope.order
}

type ParamSignature struct {
	Name  string
	TP    *Type
	ByRef bool
}

func (param *ParamSignature) SlotWords() int {
	if param.ByRef {
		return WordSize
	}
	return param.TP.Size()
}

type FunctionSignature struct {
	Name     string
	Params   []*ParamSignature
	ReturnTP *Type // nil for Sub.
	Pos      Position
}

func (signature *FunctionSignature) IsSub() bool {
	return signature.ReturnTP == nil
}

// ArgWords is the number of words the caller pushes for the arguments.
func (signature *FunctionSignature) ArgWords() int {
	words := 0
	for _, param := range signature.Params {
		words += param.SlotWords()
	}
	return words
}

func (signature *FunctionSignature) ReturnWords() int {
	if signature.ReturnTP == nil {
		return 0
	}
	return signature.ReturnTP.Size()
}

// ReturnOffset is the frame offset of the return slot reserved by the caller.
func (signature *FunctionSignature) ReturnOffset() int {
	return frameHeaderWords + signature.ArgWords()
}

// frameHeaderWords is the saved frame base plus the return address.
const frameHeaderWords = 2

// SymbolTable is the merged global namespace of a compilation: structures, functions
// and global variables. It is built once and passed to the analyzer and the code generator.
type SymbolTable struct {
	Globals   *Scope
	Structs   map[string]*StructDef
	Functions map[string]*FunctionSignature

	structOrder   []*StructDef
	functionOrder []*FunctionSignature
	heapWords     int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Globals:   NewScope(nil),
		Structs:   map[string]*StructDef{},
		Functions: map[string]*FunctionSignature{},
	}
}

func (table *SymbolTable) lookUpStruct(name string) *StructDef {
	return table.Structs[name]
}

func (table *SymbolTable) lookUpFunc(name string) *FunctionSignature {
	return table.Functions[name]
}

// HeapWords is the number of words used by global variables.
func (table *SymbolTable) HeapWords() int {
	return table.heapWords
}

func isIntegerTypeName(name string) bool {
	return strings.EqualFold(name, "Integer")
}

// resolveType turns a written type into a Type. Structures only need to be declared, not
// laid out, so any type can be resolved once all structures are declared.
func (table *SymbolTable) resolveType(typeAst *TypeAst, undefinedKind ErrorKind) (*Type, *Error) {
	var tp *Type
	if isIntegerTypeName(typeAst.Name) {
		tp = IntegerType
	} else {
		def := table.lookUpStruct(typeAst.Name)
		if def == nil {
			return nil, makeError(undefinedKind, typeAst.Pos, "undefined type %s", typeAst.Name)
		}
		tp = StructType(def)
	}
	for i := 0; i < typeAst.PointerDepth; i++ {
		tp = PointerTo(tp)
	}
	return tp, nil
}

// buildSymbolTables declares every structure, lays them out, declares every function
// signature and every global variable, in this order, across all units. Each problem is
// recorded and the build carries on.
func (table *SymbolTable) buildSymbolTables(units []*UnitAst) (errs ErrorList) {
	for _, unit := range units {
		for _, structure := range unit.Structures {
			if err := table.declareStruct(structure); err != nil {
				errs.Add(err)
			}
		}
	}
	for _, unit := range units {
		for _, structure := range unit.Structures {
			if structure.def != nil {
				errs.Append(table.resolveStructFields(structure))
			}
		}
	}
	for _, def := range table.structOrder {
		if err := table.layoutStruct(def); err != nil {
			errs.Add(err)
		}
	}
	for _, unit := range units {
		for _, function := range unit.Functions {
			errs.Append(table.declareFunc(function))
		}
	}
	for _, unit := range units {
		for _, global := range unit.Globals {
			if err := table.declareGlobal(global); err != nil {
				errs.Add(err)
			}
		}
	}
	return errs
}

func (table *SymbolTable) declareStruct(structure *StructDeclAst) *Error {
	if isIntegerTypeName(structure.Name) {
		return makeError(DuplicateDeclarationErrorKind, structure.Pos, "%s is a builtin type", structure.Name)
	}
	if previous := table.lookUpStruct(structure.Name); previous != nil {
		return makeError(DuplicateDeclarationErrorKind, structure.Pos, "structure %s is already declared at %s",
			structure.Name, previous.Pos)
	}
	def := &StructDef{Name: structure.Name, Pos: structure.Pos}
	table.Structs[def.Name] = def
	table.structOrder = append(table.structOrder, def)
	structure.def = def
	return nil
}

// Unknown field types are TypeMismatchErrors: a structure can only be built from
// Integer, pointers and other structures.
func (table *SymbolTable) resolveStructFields(structure *StructDeclAst) (errs ErrorList) {
	def := structure.def
	for _, field := range structure.Fields {
		if def.Field(field.Name) != nil {
			errs.Add(makeError(DuplicateDeclarationErrorKind, field.Pos(), "field %s is already declared in %s",
				field.Name, def.Name))
			continue
		}
		tp, err := table.resolveType(field.TP, TypeMismatchErrorKind)
		if err != nil {
			errs.Add(err)
			continue
		}
		def.Fields = append(def.Fields, &FieldDef{Name: field.Name, TP: tp})
	}
	return errs
}

// layoutStruct lays out the structures def holds by value first. A structure holding
// itself by value, directly or not, has no finite size.
func (table *SymbolTable) layoutStruct(def *StructDef) *Error {
	switch def.state {
	case layoutDone:
		return nil
	case layoutInProgress:
		return makeError(TypeMismatchErrorKind, def.Pos, "structure %s contains itself by value", def.Name)
	}
	def.state = layoutInProgress
	for _, field := range def.Fields {
		if field.TP.IsStruct() {
			if err := table.layoutStruct(field.TP.Struct); err != nil {
				def.state = layoutDone
				return err
			}
		}
	}
	def.computeLayout()
	return nil
}

func (table *SymbolTable) declareFunc(function *FunctionDeclAst) (errs ErrorList) {
	if previous := table.lookUpFunc(function.Name); previous != nil {
		errs.Add(makeError(DuplicateDeclarationErrorKind, function.Pos, "%s is already declared at %s",
			function.Name, previous.Pos))
		return errs
	}
	signature := &FunctionSignature{Name: function.Name, Pos: function.Pos}
	for _, param := range function.Params {
		tp, err := table.resolveType(param.TP, UndefinedSymbolErrorKind)
		if err != nil {
			errs.Add(err)
			continue
		}
		signature.Params = append(signature.Params, &ParamSignature{Name: param.Name, TP: tp, ByRef: param.ByRef})
	}
	if function.ReturnTP != nil {
		tp, err := table.resolveType(function.ReturnTP, UndefinedSymbolErrorKind)
		if err != nil {
			errs.Add(err)
		}
		signature.ReturnTP = tp
	}
	if len(errs) > 0 {
		return errs
	}
	table.Functions[signature.Name] = signature
	table.functionOrder = append(table.functionOrder, signature)
	function.signature = signature
	return nil
}

// declareGlobal places the global at the next free heap words, M0, M1, ... in declaration order.
func (table *SymbolTable) declareGlobal(global *VarDeclAst) *Error {
	tp, err := table.resolveType(global.TP, UndefinedSymbolErrorKind)
	if err != nil {
		return err
	}
	symbol := &Symbol{Name: global.Name, TP: tp, Storage: GlobalStorage, Offset: table.heapWords, Pos: global.Pos()}
	if err = table.Globals.Declare(symbol); err != nil {
		return err
	}
	table.heapWords += tp.Size()
	global.symbol = symbol
	return nil
}

// buildFuncScope seeds a function scope with its parameters. Parameters are pushed left
// to right, so the last one is nearest the frame base: the offset of parameter i is 2 plus
// the slot words of the parameters after it.
func (table *SymbolTable) buildFuncScope(function *FunctionDeclAst) (*Scope, ErrorList) {
	var errs ErrorList
	scope := NewScope(table.Globals)
	offset := frameHeaderWords
	symbols := make([]*Symbol, len(function.Params))
	for i := len(function.Params) - 1; i >= 0; i-- {
		param, paramSignature := function.Params[i], function.signature.Params[i]
		symbols[i] = &Symbol{
			Name:    param.Name,
			TP:      paramSignature.TP,
			Storage: ParameterStorage,
			Offset:  offset,
			ByRef:   param.ByRef,
			Pos:     param.Pos,
		}
		offset += symbols[i].SlotWords()
	}
	for i, symbol := range symbols {
		if err := scope.Declare(symbol); err != nil {
			errs.Add(err)
			continue
		}
		function.Params[i].symbol = symbol
	}
	return scope, errs
}
