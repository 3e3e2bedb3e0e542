package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/LucidaDragon/GeneralBasic/assembler"
	"github.com/LucidaDragon/GeneralBasic/compiler/internal"
)

// gbc compiles the given source units into one URCL listing.
//
//	gbc [-o main.urcl] [-config gbc.yaml] [-O=false] [-v] [-check] a.bas b.bas

var (
	outputPath = flag.String("o", "main.urcl", "the output URCL file path, - for stdout")
	configPath = flag.String("config", "", "the YAML config file path")
	optimize   = flag.Bool("O", true, "whether run the peephole optimizer")
	verbose    = flag.Bool("v", false, "whether print the compiler progress")
	check      = flag.Bool("check", false, "whether check the output listing before writing it")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if flag.NArg() == 0 {
		return fmt.Errorf("no source files")
	}
	config := internal.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = internal.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "O" {
			config.Optimize = *optimize
		}
	})
	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "gbc: ", log.Ltime)
	}
	sources, err := internal.ReadSources(flag.Args())
	if err != nil {
		return err
	}
	listing, err := internal.NewCompiler(config, logger).Compile(context.Background(), sources)
	if err != nil {
		return err
	}
	if *check {
		logger.Printf("compiler: start checking the listing")
		if err := assembler.Check(strings.NewReader(listing)); err != nil {
			return fmt.Errorf("listing: %w", err)
		}
	}
	if *outputPath == "-" {
		_, err = io.WriteString(os.Stdout, listing)
		return err
	}
	return os.WriteFile(*outputPath, []byte(listing), 0666)
}
