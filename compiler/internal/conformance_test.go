package internal

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"github.com/LucidaDragon/GeneralBasic/assembler"
	"github.com/LucidaDragon/GeneralBasic/compiler/casebook"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
	"testing"
)

// A conformance suite is a YAML file of small programs and what compiling them must give.
const conformancePath = "testdata/conformance"

type conformanceSuite struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Optimize    *bool             `yaml:"optimize,omitempty"`
	Tests       []conformanceCase `yaml:"tests"`
}

type conformanceCase struct {
	Name     string   `yaml:"name"`
	Units    []string `yaml:"units"`
	Entry    string   `yaml:"entry,omitempty"`
	Optimize *bool    `yaml:"optimize,omitempty"`
	Expect   struct {
		Error       string   `yaml:"error,omitempty"`
		Contains    []string `yaml:"contains,omitempty"`
		NotContains []string `yaml:"not_contains,omitempty"`
	} `yaml:"expect"`
}

func loadConformanceSuites() (map[string]conformanceSuite, error) {
	paths, err := filepath.Glob(filepath.Join(conformancePath, "*.yaml"))
	if err != nil {
		return nil, err
	}
	suites := map[string]conformanceSuite{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var suite conformanceSuite
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&suite); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		suites[filepath.Base(path)] = suite
	}
	return suites, nil
}

func (test conformanceCase) config(suite conformanceSuite) *Config {
	config := DefaultConfig()
	if suite.Optimize != nil {
		config.Optimize = *suite.Optimize
	}
	if test.Optimize != nil {
		config.Optimize = *test.Optimize
	}
	if test.Entry != "" {
		config.Entry = test.Entry
	}
	return config
}

func runConformanceCase(t *testing.T, suite conformanceSuite, test conformanceCase) {
	sources := make([]Source, 0, len(test.Units))
	for i, unit := range test.Units {
		sources = append(sources, Source{Name: fmt.Sprintf("unit%d.bas", i), Text: unit})
	}
	output, err := NewCompiler(test.config(suite), nil).Compile(context.Background(), sources)
	if test.Expect.Error != "" {
		kind, ok := ParseErrorKind(test.Expect.Error)
		assert.True(t, ok, "unknown error kind %s", test.Expect.Error)
		errs, ok := err.(ErrorList)
		if assert.True(t, ok, "expected %s, found %v", test.Expect.Error, err) {
			assert.True(t, errs.HasKind(kind), "expected %s, found %v", test.Expect.Error, errs)
		}
		return
	}
	if !assert.Nil(t, err) {
		return
	}
	if missing, ok := casebook.ContainsInOrder(output, test.Expect.Contains); !ok {
		t.Errorf("missing line %q in\n%s", missing, output)
	}
	lines := listing(output)
	for _, line := range test.Expect.NotContains {
		assert.NotContains(t, lines, strings.TrimSpace(line))
	}
	assert.Nil(t, assembler.Check(strings.NewReader(output)))
}

func TestConformance(t *testing.T) {
	suites, err := loadConformanceSuites()
	assert.Nil(t, err)
	assert.NotEmpty(t, suites)
	for file, suite := range suites {
		t.Run(file, func(t *testing.T) {
			assert.NotEmpty(t, suite.Tests)
			for _, test := range suite.Tests {
				t.Run(test.Name, func(t *testing.T) {
					runConformanceCase(t, suite, test)
				})
			}
		})
	}
}
