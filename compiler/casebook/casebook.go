package casebook

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// A casebook is a Markdown document whose examples are compiled by tests. An example
// starts at a heading `Example: <name>` and holds one `basic` fence with the program and
// one or more expectation fences:
//
//	compile-error   the name of the error kind the program must fail with
//	contains        lines that must appear in the listing, in this order
//	not-contains    lines that must not appear in the listing

const inputFence = "basic"

type ExpectationType string

const (
	ExpectCompileError ExpectationType = "compile-error"
	ExpectContains     ExpectationType = "contains"
	ExpectNotContains  ExpectationType = "not-contains"
)

type Expectation struct {
	Type    ExpectationType
	Content string
	Line    int
}

// Lines returns the non-blank lines of the expectation, trimmed.
func (expectation Expectation) Lines() []string {
	var lines []string
	for _, line := range strings.Split(expectation.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

type Example struct {
	Name         string
	Source       string
	Line         int
	Expectations []Expectation
}

// Load reads and extracts the examples of the Markdown file at path.
func Load(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	examples, err := Extract(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return examples, nil
}

// Extract parses a Markdown document and returns its examples in document order.
func Extract(source []byte) ([]Example, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	var examples []Example
	var current *Example
	finish := func() error {
		if current == nil {
			return nil
		}
		if err := validate(current); err != nil {
			return err
		}
		examples = append(examples, *current)
		return nil
	}
	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, source)
			if !strings.HasPrefix(heading, "Example: ") {
				return ast.WalkContinue, nil
			}
			if err := finish(); err != nil {
				return ast.WalkStop, err
			}
			current = &Example{Name: strings.TrimPrefix(heading, "Example: ")}
		case *ast.FencedCodeBlock:
			language := string(n.Language(source))
			line := lineNumber(n, source)
			if current == nil {
				if language == inputFence || isExpectationFence(language) {
					return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of an example", line, language)
				}
				return ast.WalkContinue, nil
			}
			content := codeBlockContent(n, source)
			switch {
			case language == inputFence:
				if current.Source != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple basic fences in example '%s'", line, current.Name)
				}
				current.Source, current.Line = content, line
			case isExpectationFence(language):
				current.Expectations = append(current.Expectations, Expectation{
					Type:    ExpectationType(language),
					Content: strings.TrimRight(content, "\n"),
					Line:    line,
				})
			case language != "":
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language '%s' in example '%s'", line, language, current.Name)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return examples, nil
}

func isExpectationFence(language string) bool {
	switch ExpectationType(language) {
	case ExpectCompileError, ExpectContains, ExpectNotContains:
		return true
	}
	return false
}

func validate(example *Example) error {
	if example.Source == "" {
		return fmt.Errorf("example '%s' has no basic fence", example.Name)
	}
	if len(example.Expectations) == 0 {
		return fmt.Errorf("example '%s' has no expectation fence", example.Name)
	}
	return nil
}

func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func codeBlockContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < block.Lines().Len(); i++ {
		line := block.Lines().At(i)
		buf.Write(line.Value(source))
	}
	return buf.String()
}

// lineNumber returns the line of the first content line of node.
func lineNumber(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	return bytes.Count(source[:node.Lines().At(0).Start], []byte("\n")) + 1
}

// ContainsInOrder reports whether every line of want appears in listing in order, and
// returns the first missing line otherwise. Lines are compared after trimming spaces.
func ContainsInOrder(listing string, want []string) (string, bool) {
	lines := strings.Split(listing, "\n")
	next := 0
	for _, line := range want {
		found := false
		for next < len(lines) {
			got := strings.TrimSpace(lines[next])
			next++
			if got == line {
				found = true
				break
			}
		}
		if !found {
			return line, false
		}
	}
	return "", true
}
