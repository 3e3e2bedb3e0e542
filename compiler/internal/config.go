package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls a compilation. It can be read from a YAML file such as
//
//	entry: Main
//	optimize: true
//	bits: 16
//	minstack: 256
//	jobs: 4
//	header: true
type Config struct {
	// Entry is the Sub or Function called by the startup code. No startup code is
	// written when it is missing or takes parameters.
	Entry    string `yaml:"entry"`
	Optimize bool   `yaml:"optimize"`
	Bits     int    `yaml:"bits"`
	MinStack int    `yaml:"minstack"`
	// Jobs limits how many units are parsed at the same time, 0 means no limit.
	Jobs   int  `yaml:"jobs"`
	Header bool `yaml:"header"`
}

func DefaultConfig() *Config {
	return &Config{
		Entry:    "Main",
		Optimize: true,
		Bits:     16,
		MinStack: 256,
		Header:   true,
	}
}

// LoadConfig reads path over the defaults. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (config *Config) Validate() error {
	switch {
	case config.Bits < 8:
		return fmt.Errorf("config: bits must be at least 8, found %d", config.Bits)
	case config.MinStack < 0:
		return fmt.Errorf("config: minstack must not be negative, found %d", config.MinStack)
	case config.Jobs < 0:
		return fmt.Errorf("config: jobs must not be negative, found %d", config.Jobs)
	}
	return nil
}
