package internal

import (
	"strings"
	"github.com/stretchr/testify/assert"
	"testing"
)

func tokenTypes(tokens []*Token) []TokenType {
	tps := make([]TokenType, 0, len(tokens))
	for _, token := range tokens {
		tps = append(tps, token.tp)
	}
	return tps
}

func TestTokenizer_TrimSpace(t *testing.T) {
	testData := []struct {
		content     string
		expectedPos int
	}{
		{content: "   \thello", expectedPos: 4},
		{content: "hello", expectedPos: 0},
		{content: "  \r\n", expectedPos: 4},
	}
	tokenizer := &Tokenizer{}
	for _, data := range testData {
		tokenizer.currentPos = 0
		tokenizer.trimSpace([]byte(data.content))
		assert.Equal(t, data.expectedPos, tokenizer.currentPos, data.content)
	}
}

func TestTokenizer_hasRemainCharacters(t *testing.T) {
	tokenizer := &Tokenizer{}
	tokenizer.currentPos = 0
	assert.True(t, tokenizer.hasRemainCharacters([]byte("b")))
	tokenizer.currentPos = 1
	assert.False(t, tokenizer.hasRemainCharacters([]byte("b")))
}

func TestTokenizer_TokenAngleSymbol(t *testing.T) {
	testData := []struct {
		symbol string
		tp     TokenType
	}{
		{"<", LessTP},
		{">", GreaterTP},
		{"<>", NotEqualTP},
		{"<=", LessEqualTP},
		{">=", GreaterEqualTP},
		{"<<", LeftShiftTP},
		{">>", RightShiftTP},
		{"< 1", LessTP},
	}
	for _, data := range testData {
		tokenizer := &Tokenizer{}
		token, err := tokenizer.tokenAngleSymbol([]byte(data.symbol))
		assert.Nil(t, err)
		assert.Equal(t, data.tp, token.tp, data.symbol)
		assert.Equal(t, strings.TrimSpace(strings.TrimSuffix(data.symbol, "1")), token.content)
	}
}

func TestTokenizer_TokenNumber(t *testing.T) {
	testData := []struct {
		content string
		valid   bool
		token   string
	}{
		{"10", true, "10"},
		{"0x1F)", true, "0x1F"},
		{"0o17 ", true, "0o17"},
		{"0b101", true, "0b101"},
		{"0", true, "0"},
		{"0x", false, ""},
		{"12ab", false, ""},
		{"0b102", false, ""},
		{"0o8", false, ""},
	}
	for _, data := range testData {
		tokenizer := &Tokenizer{}
		token, err := tokenizer.tokenNumber([]byte(data.content))
		if !data.valid {
			assert.NotNil(t, err, data.content)
			continue
		}
		assert.Nil(t, err, data.content)
		assert.Equal(t, IntegerTP, token.tp)
		assert.Equal(t, data.token, token.content)
	}
}

func TestTokenizer_Tokenize(t *testing.T) {
	testData := []struct {
		content string
		tps     []TokenType
	}{
		{
			content: "Dim x As Integer = 0x1F ' comment\n",
			tps:     []TokenType{DimTP, IdentifierTP, AsTP, IdentifierTP, EqualTP, IntegerTP, EOLTP, EOFTP},
		},
		{
			content: "dim X as integer",
			tps:     []TokenType{DimTP, IdentifierTP, AsTP, IdentifierTP, EOLTP, EOFTP},
		},
		{
			content: "\n\n' only a comment\n\nReturn\n",
			tps:     []TokenType{ReturnTP, EOLTP, EOFTP},
		},
		{
			content: "x = f(1,\n   2)\ny = 3\n",
			tps: []TokenType{IdentifierTP, EqualTP, IdentifierTP, LeftParentThesesTP, IntegerTP, CommaTP, IntegerTP,
				RightParentThesesTP, EOLTP, IdentifierTP, EqualTP, IntegerTP, EOLTP, EOFTP},
		},
		{
			content: "If a <> b And Not c Then\n",
			tps:     []TokenType{IfTP, IdentifierTP, NotEqualTP, IdentifierTP, AndTP, NotTP, IdentifierTP, ThenTP, EOLTP, EOFTP},
		},
		{
			content: "p = AddressOf(ball).X * 2 Mod 3\n",
			tps: []TokenType{IdentifierTP, EqualTP, AddressOfTP, LeftParentThesesTP, IdentifierTP, RightParentThesesTP,
				DotTP, IdentifierTP, MultiplyTP, IntegerTP, ModTP, IntegerTP, EOLTP, EOFTP},
		},
		{
			content: "Asm Exec out %NUMB R1 ' kept\nAsm Load x\n",
			tps:     []TokenType{AsmTP, ExecTP, RawTP, EOLTP, AsmTP, LoadTP, IdentifierTP, EOLTP, EOFTP},
		},
	}
	for _, data := range testData {
		tokenizer := NewTokenizer("test.bas")
		tokens, err := tokenizer.Tokenize(strings.NewReader(data.content))
		assert.Nil(t, err, data.content)
		assert.Equal(t, data.tps, tokenTypes(tokens), data.content)
	}
}

func TestTokenizer_AsmExecIsVerbatim(t *testing.T) {
	tokenizer := NewTokenizer("test.bas")
	tokens, err := tokenizer.Tokenize(strings.NewReader("  Asm Exec   add R1 R1 R2   \n"))
	assert.Nil(t, err)
	assert.Equal(t, RawTP, tokens[2].tp)
	assert.Equal(t, "add R1 R1 R2", tokens[2].content)
}

func TestTokenizer_Position(t *testing.T) {
	tokenizer := NewTokenizer("main.bas")
	tokens, err := tokenizer.Tokenize(strings.NewReader("Sub Main()\n    Dim x As Integer\nEnd Sub\n"))
	assert.Nil(t, err)
	var x *Token
	for _, token := range tokens {
		if token.tp == IdentifierTP && token.content == "x" {
			x = token
		}
	}
	assert.NotNil(t, x)
	assert.Equal(t, Position{File: "main.bas", Line: 2, Column: 9}, x.Pos())
}

func TestTokenizer_LexError(t *testing.T) {
	testData := []struct {
		content string
		line    int
		column  int
	}{
		{"x = 3 $ 4", 1, 7},
		{"Sub Main()\n  x = #1\n", 2, 7},
		{"Dim a As Integer\nDim b As 12ab\n", 2, 12},
		{"x = \"text\"", 1, 5},
	}
	for _, data := range testData {
		tokenizer := NewTokenizer("bad.bas")
		_, err := tokenizer.Tokenize(strings.NewReader(data.content))
		lexErr, ok := err.(*Error)
		assert.True(t, ok, data.content)
		if !ok {
			continue
		}
		assert.Equal(t, LexErrorKind, lexErr.Kind)
		assert.Equal(t, Position{File: "bad.bas", Line: data.line, Column: data.column}, lexErr.Pos, data.content)
	}
}
