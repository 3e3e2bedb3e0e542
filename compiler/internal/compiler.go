package internal

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Source is one source unit.
type Source struct {
	Name string
	Text string
}

type Compiler struct {
	config *Config
	logger *log.Logger
}

// NewCompiler returns a compiler logging its progress to logger, nil means no logging.
func NewCompiler(config *Config, logger *log.Logger) *Compiler {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Compiler{config: config, logger: logger}
}

// ReadSources reads every path as one source unit.
func ReadSources(paths []string) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, Source{Name: path, Text: string(data)})
	}
	return sources, nil
}

// Compile runs the whole pipeline and returns the assembly text. Errors found in the
// source are returned as an ErrorList.
func (compiler *Compiler) Compile(ctx context.Context, sources []Source) (string, error) {
	program, err := compiler.Build(ctx, sources)
	if err != nil {
		return "", err
	}
	compiler.logger.Printf("compiler: start emitter")
	return NewEmitter(compiler.config).Emit(program), nil
}

// Build runs every phase but the emitter. A phase runs only when the ones before it
// reported no error.
func (compiler *Compiler) Build(ctx context.Context, sources []Source) (*Program, error) {
	compiler.logger.Printf("compiler: start parser on %d units", len(sources))
	units, err := compiler.parseUnits(ctx, sources)
	if err != nil {
		return nil, err
	}
	compiler.logger.Printf("compiler: start semantic analysis")
	table, errs := Analyze(units)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	compiler.logger.Printf("compiler: start generate codes")
	program := GenerateProgram(units, table, compiler.config.Entry)
	// Asm Load and Asm Save may leave words on the stack on purpose.
	for _, fn := range program.Functions {
		if err := checkBranchDepths(fn); err != nil {
			compiler.logger.Printf("compiler: warning: %v", err)
		}
	}
	if compiler.config.Optimize {
		compiler.logger.Printf("compiler: start optimizer")
		NewOptimizer().OptimizeProgram(program)
	}
	return program, nil
}

// parseUnits parses the units in parallel. A unit with errors does not stop the others,
// all errors are reported together, ordered by unit.
func (compiler *Compiler) parseUnits(ctx context.Context, sources []Source) ([]*UnitAst, error) {
	units := make([]*UnitAst, len(sources))
	unitErrs := make([]ErrorList, len(sources))
	group, ctx := errgroup.WithContext(ctx)
	if compiler.config.Jobs > 0 {
		group.SetLimit(compiler.config.Jobs)
	}
	for i, source := range sources {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			unit, err := ParseUnit(source.Name, strings.NewReader(source.Text))
			if errs, ok := err.(ErrorList); ok {
				compiler.logger.Printf("compiler: %s: %d errors", source.Name, len(errs))
				unitErrs[i] = errs
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", source.Name, err)
			}
			units[i] = unit
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	var errs ErrorList
	for _, unitErr := range unitErrs {
		errs.Append(unitErr)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return units, nil
}
