package internal

import (
	"fmt"
	"sort"
	"strings"
)

type ErrorKind int

const (
	LexErrorKind                ErrorKind = iota // unrecognized character or malformed literal
	SyntaxErrorKind                              // expected-token vs found-token
	UndefinedSymbolErrorKind                     // unknown variable, function, type or field
	DuplicateDeclarationErrorKind                // redeclaration in the same scope
	TypeMismatchErrorKind                        // invalid cast, operand types, arity
	InvalidLValueErrorKind                       // AddressOf / ByRef target is not addressable
	InlineAsmArgumentErrorKind                   // Asm Load / Asm Save arity
)

var errorKindNames = map[ErrorKind]string{
	LexErrorKind:                  "LexError",
	SyntaxErrorKind:               "SyntaxError",
	UndefinedSymbolErrorKind:      "UndefinedSymbolError",
	DuplicateDeclarationErrorKind: "DuplicateDeclarationError",
	TypeMismatchErrorKind:         "TypeMismatchError",
	InvalidLValueErrorKind:        "InvalidLValueError",
	InlineAsmArgumentErrorKind:    "InlineAsmArgumentError",
}

func (kind ErrorKind) String() string {
	if name, ok := errorKindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(kind))
}

// ParseErrorKind maps a kind name such as "TypeMismatchError" (or "TypeMismatch")
// back to its ErrorKind.
func ParseErrorKind(name string) (ErrorKind, bool) {
	for kind, kindName := range errorKindNames {
		if kindName == name || strings.TrimSuffix(kindName, "Error") == name {
			return kind, true
		}
	}
	return 0, false
}

// Position locates a token in a source unit. Line and Column start at 1.
type Position struct {
	File   string
	Line   int
	Column int
}

func (pos Position) String() string {
	if pos.File == "" {
		return fmt.Sprintf("%d:%d", pos.Line, pos.Column)
	}
	return fmt.Sprintf("%s:%d:%d", pos.File, pos.Line, pos.Column)
}

func (pos Position) before(other Position) bool {
	if pos.File != other.File {
		return pos.File < other.File
	}
	if pos.Line != other.Line {
		return pos.Line < other.Line
	}
	return pos.Column < other.Column
}

// Error is a diagnostic derived from source text.
type Error struct {
	Kind ErrorKind
	Pos  Position
	Msg  string
}

func (err *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", err.Pos, err.Kind, err.Msg)
}

func makeError(kind ErrorKind, pos Position, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// ErrorList collects every error a phase can find before the pipeline stops.
type ErrorList []*Error

func (list *ErrorList) Add(err *Error) {
	*list = append(*list, err)
}

func (list *ErrorList) Append(other ErrorList) {
	*list = append(*list, other...)
}

func (list ErrorList) Len() int {
	return len(list)
}

func (list ErrorList) Sort() {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Pos.before(list[j].Pos)
	})
}

// HasKind reports whether any collected error is of the given kind.
func (list ErrorList) HasKind(kind ErrorKind) bool {
	for _, err := range list {
		if err.Kind == kind {
			return true
		}
	}
	return false
}

func (list ErrorList) Error() string {
	switch len(list) {
	case 0:
		return "no errors"
	case 1:
		return list[0].Error()
	}
	lines := make([]string, 0, len(list))
	for _, err := range list {
		lines = append(lines, err.Error())
	}
	return strings.Join(lines, "\n")
}

// Unwrap lets errors.As reach the individual errors.
func (list ErrorList) Unwrap() []error {
	errs := make([]error, 0, len(list))
	for _, err := range list {
		errs = append(errs, err)
	}
	return errs
}

// Err returns nil for an empty list so callers can write `if err := list.Err(); err != nil`.
func (list ErrorList) Err() error {
	if len(list) == 0 {
		return nil
	}
	return list
}
