package internal

import (
	"os"
	"path/filepath"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestConfig_Default(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "Main", config.Entry)
	assert.True(t, config.Optimize)
	assert.True(t, config.Header)
	assert.Equal(t, 16, config.Bits)
	assert.Equal(t, 256, config.MinStack)
	assert.Equal(t, 0, config.Jobs)
	assert.Nil(t, config.Validate())
}

func TestConfig_Parse(t *testing.T) {
	config, err := ParseConfig([]byte("entry: Start\noptimize: false\nbits: 32\njobs: 2\n"))
	assert.Nil(t, err)
	assert.Equal(t, "Start", config.Entry)
	assert.False(t, config.Optimize)
	assert.Equal(t, 32, config.Bits)
	assert.Equal(t, 2, config.Jobs)
	// Keys not given keep their default.
	assert.Equal(t, 256, config.MinStack)
	assert.True(t, config.Header)

	config, err = ParseConfig(nil)
	assert.Nil(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestConfig_ParseError(t *testing.T) {
	testData := []string{
		"optimise: true\n",
		"bits: sixteen\n",
		"bits: 4\n",
		"minstack: -1\n",
		"jobs: -2\n",
		"entry: [Main]\n",
	}
	for _, content := range testData {
		_, err := ParseConfig([]byte(content))
		assert.NotNil(t, err, content)
	}
}

func TestConfig_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gbc.yaml")
	assert.Nil(t, os.WriteFile(path, []byte("minstack: 64\nheader: false\n"), 0666))
	config, err := LoadConfig(path)
	assert.Nil(t, err)
	assert.Equal(t, 64, config.MinStack)
	assert.False(t, config.Header)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
}
