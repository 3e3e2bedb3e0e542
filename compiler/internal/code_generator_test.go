package internal

import (
	"strings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func generateTestProgram(t *testing.T, contents ...string) *Program {
	units := parseTestUnits(t, contents...)
	table, errs := Analyze(units)
	require.Equal(t, 0, errs.Len(), "%v", errs)
	return GenerateProgram(units, table, "Main")
}

func bodyStrings(fn *Function) []string {
	lines := make([]string, 0, len(fn.Body))
	for _, inst := range fn.Body {
		lines = append(lines, inst.String())
	}
	return lines
}

// listing splits an expected instruction listing into trimmed lines.
func listing(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestCodeGenerator_AddNumbers(t *testing.T) {
	program := generateTestProgram(t, `Function AddNumbers(a As Integer, b As Integer) As Integer
    Return a + b
End Function`)
	fn := program.Function("AddNumbers")
	assert.NotNil(t, fn)
	assert.Equal(t, 0, fn.LocalWords)
	assert.Equal(t, 1, fn.ReturnWords)
	assert.Equal(t, listing(`
		add R1 R3 3
		psh R1
		pop R1
		lod R1 R1
		psh R1
		add R1 R3 2
		psh R1
		pop R1
		lod R1 R1
		psh R1
		pop R2
		pop R1
		add R1 R1 R2
		psh R1
		add R1 R3 4
		psh R1
		pop R1
		pop R2
		str R1 R2
		jmp .AddNumbers__return
		.AddNumbers__return
	`), bodyStrings(fn))
	depth, known := CheckStackBalance(fn)
	assert.True(t, known)
	assert.Equal(t, 0, depth)
}

func TestCodeGenerator_FrameAndStartup(t *testing.T) {
	program := generateTestProgram(t, `Sub Main()
    Dim x As Integer
    Dim y As Integer
End Sub
Sub Helper()
End Sub`)
	main := program.Function("Main")
	assert.Equal(t, []string{".Main", "psh R3", "mov R3 SP", "sub SP SP 2"}, instStrings(main.Prologue))
	assert.Equal(t, []string{"mov SP R3", "pop R3", "ret"}, instStrings(main.Epilogue))
	assert.Equal(t, []string{".Helper", "psh R3", "mov R3 SP"}, instStrings(program.Function("Helper").Prologue))
	assert.Equal(t, []string{"cal .Main", "hlt"}, instStrings(program.Startup))

	lines := instStrings(main.Instructions())
	assert.Equal(t, ".Main", lines[0])
	assert.Equal(t, ".Main__return", lines[len(lines)-4])
	assert.Equal(t, "ret", lines[len(lines)-1])

	// The optimizer leaves the frame alone.
	NewOptimizer().OptimizeProgram(program)
	assert.Equal(t, []string{".Main", "psh R3", "mov R3 SP", "sub SP SP 2"}, instStrings(main.Prologue))
	assert.Equal(t, []string{"mov SP R3", "pop R3", "ret"}, instStrings(main.Epilogue))

	testData := []struct {
		entry   string
		source  string
		startup []string
	}{
		{"Start", "Function Start() As Integer\n  Return 0\nEnd Function", []string{"sub SP SP 1", "cal .Start", "hlt"}},
		{"Main", "Sub Helper()\nEnd Sub", nil},
		{"Main", "Sub Main(x As Integer)\nEnd Sub", nil},
	}
	for _, data := range testData {
		units := parseTestUnits(t, data.source)
		table, errs := Analyze(units)
		require.Equal(t, 0, errs.Len(), "%v", errs)
		assert.Equal(t, data.startup, nilIfEmpty(instStrings(GenerateProgram(units, table, data.entry).Startup)), data.source)
	}
}

func TestCodeGenerator_CastHasNoCode(t *testing.T) {
	program := generateTestProgram(t, ballSource+`Function Origin() As Ball*
    Return 0x100 As Ball*
End Function`)
	assert.Equal(t, listing(`
		psh 256
		add R1 R3 2
		psh R1
		pop R1
		pop R2
		str R1 R2
		jmp .Origin__return
		.Origin__return
	`), bodyStrings(program.Function("Origin")))
}

func TestCodeGenerator_StoreThroughPointer(t *testing.T) {
	program := generateTestProgram(t, ballSource+`Sub Main()
    Dim ball As Ball
    Dim ballAddress As Ball*
    ballAddress = AddressOf(ball)
    ValueOf(ballAddress).X = 5
    ValueOf(ballAddress).Y = 6
End Sub`)
	fn := program.Function("Main")
	assert.Equal(t, 3, fn.LocalWords)
	assert.Equal(t, listing(`
		sub R1 R3 2
		psh R1
		sub R1 R3 3
		psh R1
		pop R1
		pop R2
		str R1 R2

		psh 5
		sub R1 R3 3
		psh R1
		pop R1
		lod R1 R1
		psh R1
		pop R1
		pop R2
		str R1 R2

		psh 6
		sub R1 R3 3
		psh R1
		pop R1
		lod R1 R1
		psh R1
		pop R1
		add R1 R1 1
		psh R1
		pop R1
		pop R2
		str R1 R2
		.Main__return
	`), bodyStrings(fn))
}

func TestCodeGenerator_ValueOfAddressOf(t *testing.T) {
	program := generateTestProgram(t, `Dim g As Integer
Sub Main()
    Dim x As Integer
    x = ValueOf(AddressOf(x))
    g = x
End Sub`)
	assert.Equal(t, listing(`
		sub R1 R3 1
		psh R1
		pop R1
		lod R1 R1
		psh R1
		sub R1 R3 1
		psh R1
		pop R1
		pop R2
		str R1 R2

		sub R1 R3 1
		psh R1
		pop R1
		lod R1 R1
		psh R1
		psh M0
		pop R1
		pop R2
		str R1 R2
		.Main__return
	`), bodyStrings(program.Function("Main")))
}

func TestCodeGenerator_StructCopy(t *testing.T) {
	program := generateTestProgram(t, ballSource+`Sub Main()
    Dim ball As Ball
    Dim other As Ball
    other = ball
End Sub`)
	assert.Equal(t, listing(`
		sub R1 R3 2
		psh R1
		pop R1
		add R1 R1 1
		lod R2 R1
		psh R2
		sub R1 R1 1
		lod R2 R1
		psh R2
		sub R1 R3 4
		psh R1
		pop R1
		pop R2
		str R1 R2
		add R1 R1 1
		pop R2
		str R1 R2
		.Main__return
	`), bodyStrings(program.Function("Main")))
}

func TestCodeGenerator_Calls(t *testing.T) {
	program := generateTestProgram(t, ballSource+`Sub Move(ByRef b As Ball, dx As Integer)
    b.Y = dx
End Sub
Function Twice(x As Integer) As Integer
    Return x * 2
End Function
Sub Main()
    Dim ball As Ball
    Move(ball, 1)
    Twice(3)
End Sub`)

	// b is the address of the caller's Ball.
	assert.Equal(t, listing(`
		add R1 R3 2
		psh R1
		pop R1
		lod R1 R1
		psh R1
		add R1 R3 3
		lod R1 R1
		psh R1
		pop R1
		add R1 R1 1
		psh R1
		pop R1
		pop R2
		str R1 R2
		.Move__return
	`), bodyStrings(program.Function("Move")))

	assert.Equal(t, listing(`
		sub R1 R3 2
		psh R1
		psh 1
		cal .Move
		add SP SP 2

		sub SP SP 1
		psh 3
		cal .Twice
		add SP SP 1
		add SP SP 1
		.Main__return
	`), bodyStrings(program.Function("Main")))
}

func TestCodeGenerator_StructArgumentsAndReturn(t *testing.T) {
	program := generateTestProgram(t, ballSource+`Function Mirror(b As Ball) As Ball
    Dim result As Ball
    result.X = b.Y
    result.Y = b.X
    Return result
End Function
Sub Main()
    Dim ball As Ball
    ball = Mirror(ball)
End Sub`)
	mirror := program.Function("Mirror")
	assert.Equal(t, 2, mirror.ReturnWords)
	// The return slot is above the two words of b.
	assert.Contains(t, bodyStrings(mirror), "add R1 R3 4")

	assert.Equal(t, listing(`
		sub SP SP 2
		sub R1 R3 2
		psh R1
		pop R1
		add R1 R1 1
		lod R2 R1
		psh R2
		sub R1 R1 1
		lod R2 R1
		psh R2
		cal .Mirror
		add SP SP 2
		sub R1 R3 2
		psh R1
		pop R1
		pop R2
		str R1 R2
		add R1 R1 1
		pop R2
		str R1 R2
		.Main__return
	`), bodyStrings(program.Function("Main")))
}

func TestCodeGenerator_ControlFlow(t *testing.T) {
	program := generateTestProgram(t, `Sub Main()
    Dim i As Integer
    While i < 3
        If i = 1 Then
            i = i + 2
        Else
            i = i + 1
        End If
    End While
End Sub`)
	fn := program.Function("Main")
	lines := bodyStrings(fn)
	assert.Equal(t, ".Main__loop1", lines[0])
	assert.Contains(t, lines, "ssetl R1 R1 R2")
	assert.Contains(t, lines, "sete R1 R1 R2")
	assert.Contains(t, lines, "brz .Main__endloop2 R1")
	assert.Contains(t, lines, "brz .Main__else4 R1")
	assert.Contains(t, lines, "jmp .Main__endif3")
	assert.Contains(t, lines, ".Main__else4")
	assert.Contains(t, lines, ".Main__endif3")
	assert.Equal(t, listing(`
		jmp .Main__loop1
		.Main__endloop2
		.Main__return
	`), lines[len(lines)-3:])
	assert.Nil(t, checkBranchDepths(fn))
}

func TestCodeGenerator_PointerArithmeticScales(t *testing.T) {
	program := generateTestProgram(t, ballSource+`Sub Main()
    Dim p As Ball*
    Dim q As Integer*
    p = p + 3
    p = 2 + p
    q = q - 1
End Sub`)
	lines := bodyStrings(program.Function("Main"))
	count := 0
	for _, line := range lines {
		if line == "mlt R1 R1 2" {
			count++
		}
	}
	// Ball is two words, Integer is one.
	assert.Equal(t, 2, count)
	assert.NotContains(t, lines, "mlt R1 R1 1")
}

func TestCodeGenerator_InlineAsm(t *testing.T) {
	program := generateTestProgram(t, `Sub Main()
    Dim x As Integer
    Asm Load x
    Asm Exec out %NUMB R1
    Asm Save x
End Sub`)
	fn := program.Function("Main")
	assert.Equal(t, listing(`
		sub R1 R3 1
		psh R1
		pop R1
		lod R1 R1
		psh R1
		out %NUMB R1
		sub R1 R3 1
		psh R1
		pop R1
		pop R2
		str R1 R2
		.Main__return
	`), bodyStrings(fn))
	assert.Equal(t, OpaqueOp, fn.Body[5].Op)
	_, known := CheckStackBalance(fn)
	assert.False(t, known)
}

func TestCodeGenerator_InlineAsmFieldOperand(t *testing.T) {
	program := generateTestProgram(t, ballSource+`Sub Main()
    Dim ball As Ball
    Asm Save ball.Y
End Sub`)
	fn := program.Function("Main")
	assert.Equal(t, listing(`
		sub R1 R3 2
		psh R1
		pop R1
		add R1 R1 1
		psh R1
		pop R1
		pop R2
		str R1 R2
		.Main__return
	`), bodyStrings(fn))
}

func TestCodeGenerator_StackBalance(t *testing.T) {
	program := generateTestProgram(t, ballSource+`Dim total As Integer
Function Sum(ByRef values As Integer*, count As Integer) As Integer
    Dim i As Integer
    Dim result As Integer = 0
    For i = 0 To count - 1
        result = result + ValueOf(values + i)
    Next i
    Return result
End Function
Function Area(b As Ball) As Integer
    If b.X < 0 Or b.Y < 0 Then
        Return 0
    ElseIf b.X = 0 Then
        Return -1
    End If
    Return b.X * b.Y
End Function
Sub Main()
    Dim ball As Ball
    Dim values As Integer*
    ball.X = 3
    ball.Y = Area(ball) + Sum(values, 4)
    total = Area(ball) Mod 7
End Sub`)
	for _, fn := range program.Functions {
		depth, known := CheckStackBalance(fn)
		assert.True(t, known, fn.Name)
		assert.Equal(t, 0, depth, fn.Name)
		assert.Nil(t, checkBranchDepths(fn), fn.Name)
	}
	assert.Equal(t, 1, program.HeapWords)
	assert.Equal(t, 1, len(program.Globals))
	assert.Equal(t, []string{"Sum", "Area", "Main"}, []string{
		program.Functions[0].Name, program.Functions[1].Name, program.Functions[2].Name,
	})
}
