package internal

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

const ballSource = `
Structure Ball
    Dim X As Integer
    Dim Y As Integer
End Structure
`

func analyzeTestSource(t *testing.T, contents ...string) (*SymbolTable, []*UnitAst, ErrorList) {
	units := parseTestUnits(t, contents...)
	table, errs := Analyze(units)
	return table, units, errs
}

func TestTypeChecker_ValidPrograms(t *testing.T) {
	testData := []string{
		`Function AddNumbers(a As Integer, b As Integer) As Integer
    Return a + b
End Function`,
		ballSource + `Sub Main()
    Dim ball As Ball
    Dim ballAddress As Ball*
    ballAddress = AddressOf(ball)
    ValueOf(ballAddress).X = 5
    ball.Y = ValueOf(ballAddress).X + 1
End Sub`,
		ballSource + `Sub Main()
    Dim p As Ball* = 0x100 As Ball*
    Dim q As Integer* = p As Integer*
    Dim address As Integer = q As Integer
    p = p + 1
    p = 1 + p
    p = p - address
    If p = q As Ball* Then
        address = 0
    End If
    While p
        p = p - 1
    End While
End Sub`,
		ballSource + `Sub Move(ByRef b As Ball, dx As Integer)
    b.X = b.X + dx
End Sub
Function Copy(b As Ball) As Ball
    Return b
End Function
Sub Main()
    Dim ball As Ball
    Dim other As Ball
    Move(ball, 1)
    Call Move(ball, 2)
    other = Copy(ball)
    other = ball As Ball
End Sub`,
		`Function Sign(x As Integer) As Integer
    If x < 0 Then
        Return -1
    ElseIf x = 0 Then
        Return 0
    Else
        Return 1
    End If
End Function`,
		`Dim total As Integer
Sub Main()
    Dim i As Integer
    For i = 1 To 10 Step 2
        total = total + i Mod 3 << 1 Xor Not i
    Next
    Asm Load total
    Asm Exec out %NUMB R1
    Asm Save i
End Sub`,
		`Sub Main()
    Dim pp As Integer**
    Dim x As Integer
    ValueOf ValueOf pp = x
    x = ValueOf(ValueOf(pp))
    x = ValueOf(AddressOf(x))
End Sub`,
	}
	for _, content := range testData {
		_, _, errs := analyzeTestSource(t, content)
		assert.Equal(t, 0, errs.Len(), "%s\n%v", content, errs)
	}
}

func TestTypeChecker_Errors(t *testing.T) {
	testData := []struct {
		content string
		kind    ErrorKind
	}{
		// Undefined symbols.
		{"Sub Main()\n  x = 1\nEnd Sub", UndefinedSymbolErrorKind},
		{"Sub Main()\n  Call Missing(1)\nEnd Sub", UndefinedSymbolErrorKind},
		{"Sub Main()\n  Dim b As Missing\nEnd Sub", UndefinedSymbolErrorKind},
		{ballSource + "Sub Main()\n  Dim b As Ball\n  b.Z = 1\nEnd Sub", UndefinedSymbolErrorKind},
		{"Sub Main()\n  Dim x As Integer = 1 As Missing*\nEnd Sub", UndefinedSymbolErrorKind},

		// Duplicates.
		{"Sub Main()\n  Dim x As Integer\n  Dim x As Integer\nEnd Sub", DuplicateDeclarationErrorKind},
		{"Sub Main(x As Integer)\n  Dim x As Integer\nEnd Sub", DuplicateDeclarationErrorKind},
		{"Sub Main(x As Integer, x As Integer)\nEnd Sub", DuplicateDeclarationErrorKind},

		// Type mismatches.
		{ballSource + "Sub Main()\n  Dim b As Ball\n  Dim x As Integer = b As Integer\nEnd Sub", TypeMismatchErrorKind},
		{ballSource + "Sub Main()\n  Dim b As Ball\n  Dim x As Integer = 1 As Ball\nEnd Sub", TypeMismatchErrorKind},
		{"Sub Main()\n  Dim p As Integer*\n  p = 1\nEnd Sub", TypeMismatchErrorKind},
		{"Sub Main()\n  Dim p As Integer*\n  Dim q As Integer*\n  p = p - q\nEnd Sub", TypeMismatchErrorKind},
		{"Sub Main()\n  Dim p As Integer*\n  p = p * 2\nEnd Sub", TypeMismatchErrorKind},
		{"Sub Main()\n  Dim p As Integer*\n  Dim q As Integer**\n  If p = q Then\n  End If\nEnd Sub", TypeMismatchErrorKind},
		{ballSource + "Sub Main()\n  Dim b As Ball\n  If b Then\n  End If\nEnd Sub", TypeMismatchErrorKind},
		{"Sub Main()\n  Dim x As Integer\n  x = ValueOf x\nEnd Sub", TypeMismatchErrorKind},
		{"Sub Main()\n  Dim x As Integer\n  x = x.Y\nEnd Sub", TypeMismatchErrorKind},
		{"Function F() As Integer\nEnd Function", TypeMismatchErrorKind},
		{"Function F(x As Integer) As Integer\n  If x Then\n    Return 1\n  End If\nEnd Function", TypeMismatchErrorKind},
		{"Function F() As Integer\n  Return\nEnd Function", TypeMismatchErrorKind},
		{"Sub S()\n  Return 1\nEnd Sub", TypeMismatchErrorKind},
		{"Sub S()\nEnd Sub\nSub Main()\n  Dim x As Integer = S()\nEnd Sub", TypeMismatchErrorKind},
		{"Sub S(a As Integer)\nEnd Sub\nSub Main()\n  S(1, 2)\nEnd Sub", TypeMismatchErrorKind},
		{"Sub S(a As Integer*)\nEnd Sub\nSub Main()\n  S(1)\nEnd Sub", TypeMismatchErrorKind},
		{ballSource + "Function F() As Ball\n  Dim b As Ball\n  Return b\nEnd Function\nSub Main()\n  Dim x As Integer = F().X\nEnd Sub", TypeMismatchErrorKind},
		{ballSource + "Sub Main()\n  Dim b As Ball\n  Dim c As Ball\n  b = b + c\nEnd Sub", TypeMismatchErrorKind},

		// Lvalues.
		{"Sub Main()\n  Dim p As Integer*\n  p = AddressOf 5\nEnd Sub", InvalidLValueErrorKind},
		{"Sub Main()\n  Dim p As Integer*\n  Dim x As Integer\n  p = AddressOf (x + 1)\nEnd Sub", InvalidLValueErrorKind},
		{"Sub Main()\n  Dim x As Integer\n  (x + 1) = 2\nEnd Sub", InvalidLValueErrorKind},
		{"Sub Inc(ByRef a As Integer)\nEnd Sub\nSub Main()\n  Inc(1 + 2)\nEnd Sub", InvalidLValueErrorKind},
		{"Function F() As Integer\n  Return 1\nEnd Function\nSub Main()\n  F() = 2\nEnd Sub", InvalidLValueErrorKind},

		// Inline assembly.
		{"Sub Main()\n  Asm Load\nEnd Sub", InlineAsmArgumentErrorKind},
		{"Sub Main()\n  Dim a As Integer\n  Dim b As Integer\n  Asm Save a, b\nEnd Sub", InlineAsmArgumentErrorKind},
	}
	for _, data := range testData {
		_, _, errs := analyzeTestSource(t, data.content)
		assert.Equal(t, 1, errs.Len(), "%s\n%v", data.content, errs)
		assert.True(t, errs.HasKind(data.kind), "%s\n%v", data.content, errs)
	}
}

func TestTypeChecker_AnnotatesInPlace(t *testing.T) {
	_, units, errs := analyzeTestSource(t, ballSource+`Sub Main()
    Dim ball As Ball
    Dim ballAddress As Ball*
    ballAddress = AddressOf(ball)
    ValueOf(ballAddress).Y = 5
End Sub`)
	assert.Equal(t, 0, errs.Len())
	main := units[0].Functions[0]
	assert.Equal(t, 3, main.localWords)

	ball := main.Body[0].(*VarDeclAst).symbol
	assert.Equal(t, LocalStorage, ball.Storage)
	assert.Equal(t, -2, ball.Offset)
	ballAddress := main.Body[1].(*VarDeclAst).symbol
	assert.Equal(t, -3, ballAddress.Offset)

	assign := main.Body[2].(*AssignmentAst)
	assert.Equal(t, "Ball*", assign.Target.Type().String())
	assert.Equal(t, "Ball*", assign.Value.Type().String())

	store := main.Body[3].(*AssignmentAst)
	field := store.Target.(*FieldAccessAst)
	assert.Equal(t, 1, field.field.Offset)
	assert.Equal(t, "Ball", field.Operand.Type().String())
	assert.True(t, store.Target.Type().IsInteger())
}

func TestTypeChecker_ForBoundIsALocal(t *testing.T) {
	_, units, errs := analyzeTestSource(t, `Sub Main()
    Dim p As Integer*
    Dim q As Integer*
    Dim n As Integer
    For p = q To q + n
        n = n + 1
    Next
    For n = 1 To 3
    Next
End Sub`)
	assert.Equal(t, 0, errs.Len(), "%v", errs)
	main := units[0].Functions[0]
	// p, q, n and the bound of the first For. The second bound is a literal.
	assert.Equal(t, 4, main.localWords)
	bound := main.Body[4].(*VarDeclAst)
	assert.Equal(t, "Integer*", bound.symbol.TP.String())
	assert.Equal(t, -4, bound.symbol.Offset)
	loop := main.Body[5].(*LoopAst)
	assert.Equal(t, bound.symbol, loop.Condition.(*BinaryOpAst).Right.(*IdentifierAst).symbol)

	_, _, errs = analyzeTestSource(t, "Sub Main()\n  Dim i As Integer\n  For i = 1 To m\n  Next\nEnd Sub")
	assert.Equal(t, 1, errs.Len(), "%v", errs)
	assert.Equal(t, UndefinedSymbolErrorKind, errs[0].Kind)
}

func TestTypeChecker_ErrorsAreSortedAndComplete(t *testing.T) {
	_, _, errs := analyzeTestSource(t, `Sub B()
    y = 1
End Sub
Sub A()
    x = 1
    Call Nowhere
End Sub`, `Sub C()
    Dim z As Integer
    Dim z As Integer
End Sub`)
	assert.Equal(t, 4, errs.Len())
	assert.Equal(t, "unit0.bas", errs[0].Pos.File)
	assert.Equal(t, 2, errs[0].Pos.Line)
	assert.Equal(t, 5, errs[1].Pos.Line)
	assert.Equal(t, 6, errs[2].Pos.Line)
	assert.Equal(t, "unit1.bas", errs[3].Pos.File)
	assert.Equal(t, DuplicateDeclarationErrorKind, errs[3].Kind)
}

func TestTypeChecker_CallsAcrossUnits(t *testing.T) {
	_, _, errs := analyzeTestSource(t, `Sub Main()
    Dim b As Ball
    Reset(b)
End Sub`, ballSource+`Sub Reset(ByRef b As Ball)
    b.X = 0
    b.Y = 0
End Sub`)
	assert.Equal(t, 0, errs.Len(), "%v", errs)
}
