package internal

import (
	"bufio"
	"io"
	"strings"

	"github.com/LucidaDragon/GeneralBasic/util"
)

// A simple Tokenizer for General Basic.

// General Basic has those elements:
// * KeyWord: Structure, End, Dim, As, Function, Sub, ByRef, ByVal, Return, If, Then, ElseIf, Else, While,
// 			For, To, Step, Next, Call, Asm, Load, Save, Exec, AddressOf, ValueOf, And, Or, Xor, Not, Mod.
// * Symbol: (, ), ,, ., +, -, *, /, =, <>, <, >, <=, >=, <<, >>.
// * Constant: integer (10, 0x1F, 0o17, 0b101)
// * Identifier: letters, digits, underscore, not starting with a digit.
// * Comment: ' to the end of line.
// Keywords are case-insensitive. A line is a statement, except inside parentheses.

type TokenType int

const (
	StructureTP      TokenType = iota // Structure
	EndTP                             // End
	DimTP                             // Dim
	AsTP                              // As
	FunctionTP                        // Function
	SubTP                             // Sub
	ByRefTP                           // ByRef
	ByValTP                           // ByVal
	ReturnTP                          // Return
	IfTP                              // If
	ThenTP                            // Then
	ElseIfTP                          // ElseIf
	ElseTP                            // Else
	WhileTP                           // While
	ForTP                             // For
	ToTP                              // To
	StepTP                            // Step
	NextTP                            // Next
	CallTP                            // Call
	AsmTP                             // Asm
	LoadTP                            // Load
	SaveTP                            // Save
	ExecTP                            // Exec
	AddressOfTP                       // AddressOf
	ValueOfTP                         // ValueOf
	AndTP                             // And
	OrTP                              // Or
	XorTP                             // Xor
	NotTP                             // Not
	ModTP                             // Mod
	LeftParentThesesTP                // (
	RightParentThesesTP               // )
	CommaTP                           // ,
	DotTP                             // .
	AddTP                             // +
	MinusTP                           // -
	MultiplyTP                        // *
	DivideTP                          // /
	EqualTP                           // =
	NotEqualTP                        // <>
	LessTP                            // <
	GreaterTP                         // >
	LessEqualTP                       // <=
	GreaterEqualTP                    // >=
	LeftShiftTP                       // <<
	RightShiftTP                      // >>
	IntegerTP                         // 1010
	IdentifierTP                      // varA
	RawTP                             // verbatim text after Asm Exec
	EOLTP                             // end of line
	EOFTP                             // end of file
)

// keyWordTokenTPMap is the mapping from upper-cased keyword to the corresponding TokenTP.
var keyWordTokenTPMap = map[string]TokenType{
	"STRUCTURE": StructureTP,
	"END":       EndTP,
	"DIM":       DimTP,
	"AS":        AsTP,
	"FUNCTION":  FunctionTP,
	"SUB":       SubTP,
	"BYREF":     ByRefTP,
	"BYVAL":     ByValTP,
	"RETURN":    ReturnTP,
	"IF":        IfTP,
	"THEN":      ThenTP,
	"ELSEIF":    ElseIfTP,
	"ELSE":      ElseTP,
	"WHILE":     WhileTP,
	"FOR":       ForTP,
	"TO":        ToTP,
	"STEP":      StepTP,
	"NEXT":      NextTP,
	"CALL":      CallTP,
	"ASM":       AsmTP,
	"LOAD":      LoadTP,
	"SAVE":      SaveTP,
	"EXEC":      ExecTP,
	"ADDRESSOF": AddressOfTP,
	"VALUEOF":   ValueOfTP,
	"AND":       AndTP,
	"OR":        OrTP,
	"XOR":       XorTP,
	"NOT":       NotTP,
	"MOD":       ModTP,
}

// simpleSymbolTokenTPMap is the mapping from single character symbols to the corresponding TokenTP.
// '<' and '>' are not here because they may start a two characters symbol.
var simpleSymbolTokenTPMap = map[byte]TokenType{
	'(': LeftParentThesesTP,
	')': RightParentThesesTP,
	',': CommaTP,
	'.': DotTP,
	'+': AddTP,
	'-': MinusTP,
	'*': MultiplyTP,
	'/': DivideTP,
	'=': EqualTP,
}

var tokenTypeNames = map[TokenType]string{
	LeftParentThesesTP:  "(",
	RightParentThesesTP: ")",
	CommaTP:             ",",
	DotTP:               ".",
	AddTP:               "+",
	MinusTP:             "-",
	MultiplyTP:          "*",
	DivideTP:            "/",
	EqualTP:             "=",
	NotEqualTP:          "<>",
	LessTP:              "<",
	GreaterTP:           ">",
	LessEqualTP:         "<=",
	GreaterEqualTP:      ">=",
	LeftShiftTP:         "<<",
	RightShiftTP:        ">>",
	IntegerTP:           "integer",
	IdentifierTP:        "identifier",
	RawTP:               "assembly text",
	EOLTP:               "end of line",
	EOFTP:               "end of file",
}

func init() {
	for word, tp := range keyWordTokenTPMap {
		tokenTypeNames[tp] = word[:1] + strings.ToLower(word[1:])
	}
	tokenTypeNames[AddressOfTP], tokenTypeNames[ValueOfTP] = "AddressOf", "ValueOf"
	tokenTypeNames[ByRefTP], tokenTypeNames[ByValTP], tokenTypeNames[ElseIfTP] = "ByRef", "ByVal", "ElseIf"
}

func (tp TokenType) String() string {
	return tokenTypeNames[tp]
}

type Token struct {
	content  string
	file     string
	line     int
	startPos int
	endPos   int
	tp       TokenType
}

func (t *Token) Pos() Position {
	return Position{File: t.file, Line: t.line, Column: t.startPos + 1}
}

func (t *Token) String() string {
	switch t.tp {
	case EOLTP, EOFTP:
		return t.tp.String()
	}
	return t.content
}

type Tokenizer struct {
	currentPos  int
	currentFile string
	currentLine int
	parenDepth  int
	lineStart   int
	tokens      []*Token
}

func NewTokenizer(file string) *Tokenizer {
	return &Tokenizer{currentFile: file}
}

// getNextToken returns the next token from line, or nil when the line has no more tokens.
func (tokenizer *Tokenizer) getNextToken(line []byte) (*Token, error) {
	tokenizer.trimSpace(line)
	if !tokenizer.hasRemainCharacters(line) {
		return nil, nil
	}
	c := line[tokenizer.currentPos]
	switch {
	case c == '\'':
		// Comment runs to the end of line.
		tokenizer.currentPos = len(line)
		return nil, nil
	case c == '<' || c == '>':
		return tokenizer.tokenAngleSymbol(line)
	case util.IsNumber(c):
		return tokenizer.tokenNumber(line)
	case util.IsLetterOrUnderscore(c):
		return tokenizer.tokenKeywordOrIdentifier(line)
	}
	if _, ok := simpleSymbolTokenTPMap[c]; ok {
		return tokenizer.tokenSimpleSymbol(line)
	}
	return nil, tokenizer.makeError(tokenizer.currentPos, "unrecognized character %q", c)
}

// trimSpace steps forward through line and skips all continuous blanks.
func (tokenizer *Tokenizer) trimSpace(line []byte) {
	for tokenizer.currentPos < len(line) {
		switch line[tokenizer.currentPos] {
		case ' ', '\t', '\r', '\n', '\f', '\v':
			tokenizer.currentPos++
			continue
		}
		break
	}
}

func (tokenizer *Tokenizer) hasRemainCharacters(line []byte) bool {
	return tokenizer.currentPos < len(line)
}

func (tokenizer *Tokenizer) newToken(tp TokenType, content string, startPos int) *Token {
	return &Token{
		content:  content,
		file:     tokenizer.currentFile,
		line:     tokenizer.currentLine,
		tp:       tp,
		startPos: startPos,
		endPos:   tokenizer.currentPos,
	}
}

func (tokenizer *Tokenizer) tokenSimpleSymbol(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	c := line[startPos]
	tokenizer.currentPos++
	tp := simpleSymbolTokenTPMap[c]
	switch tp {
	case LeftParentThesesTP:
		tokenizer.parenDepth++
	case RightParentThesesTP:
		if tokenizer.parenDepth > 0 {
			tokenizer.parenDepth--
		}
	}
	return tokenizer.newToken(tp, string(c), startPos), nil
}

// tokenAngleSymbol handles <, <=, <>, <<, >, >=, >>.
func (tokenizer *Tokenizer) tokenAngleSymbol(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	first := line[startPos]
	tokenizer.currentPos++
	var second byte
	if tokenizer.hasRemainCharacters(line) {
		second = line[tokenizer.currentPos]
	}
	tp := LessTP
	if first == '>' {
		tp = GreaterTP
	}
	switch {
	case first == '<' && second == '>':
		tp = NotEqualTP
	case first == '<' && second == '=':
		tp = LessEqualTP
	case first == '<' && second == '<':
		tp = LeftShiftTP
	case first == '>' && second == '=':
		tp = GreaterEqualTP
	case first == '>' && second == '>':
		tp = RightShiftTP
	}
	if tp != LessTP && tp != GreaterTP {
		tokenizer.currentPos++
	}
	return tokenizer.newToken(tp, string(line[startPos:tokenizer.currentPos]), startPos), nil
}

// tokenNumber reads a decimal literal or a 0x / 0o / 0b prefixed literal. A literal directly
// followed by letters is malformed.
func (tokenizer *Tokenizer) tokenNumber(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	base := 10
	if line[startPos] == '0' && startPos+1 < len(line) {
		switch line[startPos+1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
	}
	if base != 10 {
		tokenizer.currentPos += 2
	}
	digitsStart := tokenizer.currentPos
	for tokenizer.currentPos < len(line) && util.IsLetterOrUnderscoreOrNumber(line[tokenizer.currentPos]) {
		if !util.IsDigitOfBase(line[tokenizer.currentPos], base) {
			return nil, tokenizer.makeError(tokenizer.currentPos, "malformed integer literal %q",
				string(line[startPos:tokenizer.currentPos+1]))
		}
		tokenizer.currentPos++
	}
	if digitsStart == tokenizer.currentPos {
		return nil, tokenizer.makeError(startPos, "integer literal %q has no digits", string(line[startPos:tokenizer.currentPos]))
	}
	return tokenizer.newToken(IntegerTP, string(line[startPos:tokenizer.currentPos]), startPos), nil
}

func (tokenizer *Tokenizer) tokenKeywordOrIdentifier(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	for tokenizer.currentPos < len(line) && util.IsLetterOrUnderscoreOrNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	word := string(line[startPos:tokenizer.currentPos])
	if keyWordTP, isKeyWord := keyWordTokenTPMap[strings.ToUpper(word)]; isKeyWord {
		return tokenizer.newToken(keyWordTP, word, startPos), nil
	}
	return tokenizer.newToken(IdentifierTP, word, startPos), nil
}

// tokenRaw captures the remaining characters of line verbatim.
func (tokenizer *Tokenizer) tokenRaw(line []byte) *Token {
	tokenizer.trimSpace(line)
	startPos := tokenizer.currentPos
	tokenizer.currentPos = len(line)
	content := strings.TrimRight(string(line[startPos:]), " \t\r\n")
	return tokenizer.newToken(RawTP, content, startPos)
}

// isAsmExec reports whether the tokens of the current line so far are exactly `Asm Exec`.
func (tokenizer *Tokenizer) isAsmExec() bool {
	lineTokens := tokenizer.tokens[tokenizer.lineStart:]
	return len(lineTokens) == 2 && lineTokens[0].tp == AsmTP && lineTokens[1].tp == ExecTP
}

func (tokenizer *Tokenizer) makeError(pos int, format string, args ...interface{}) *Error {
	return makeError(LexErrorKind, Position{File: tokenizer.currentFile, Line: tokenizer.currentLine, Column: pos + 1},
		format, args...)
}

// Tokenize reads the whole unit. Lexing aborts at the first unrecognized character.
func (tokenizer *Tokenizer) Tokenize(rd io.Reader) (tokens []*Token, err error) {
	bfReader := bufio.NewReader(rd)
	tokenizer.currentLine = 1
	for {
		line, readErr := bfReader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		if len(line) > 0 {
			if err := tokenizer.parseLine(line); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		tokenizer.currentLine++
		tokenizer.currentPos = 0
	}
	tokenizer.endLine()
	tokenizer.tokens = append(tokenizer.tokens, tokenizer.newToken(EOFTP, "", tokenizer.currentPos))
	return tokenizer.tokens, nil
}

func (tokenizer *Tokenizer) parseLine(line []byte) error {
	for {
		if tokenizer.isAsmExec() {
			tokenizer.tokens = append(tokenizer.tokens, tokenizer.tokenRaw(line))
			break
		}
		token, err := tokenizer.getNextToken(line)
		if err != nil {
			return err
		}
		if token == nil {
			break
		}
		tokenizer.tokens = append(tokenizer.tokens, token)
	}
	if tokenizer.parenDepth == 0 {
		tokenizer.endLine()
	}
	return nil
}

// endLine terminates the current statement. Blank lines do not produce tokens.
func (tokenizer *Tokenizer) endLine() {
	if len(tokenizer.tokens) > tokenizer.lineStart {
		tokenizer.tokens = append(tokenizer.tokens, tokenizer.newToken(EOLTP, "", tokenizer.currentPos))
	}
	tokenizer.lineStart = len(tokenizer.tokens)
}
