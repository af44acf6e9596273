package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intcode.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, `
program = "day9.txt"

[run]
input = [1, -2]
ascii = true
trace = true

[run.poke]
1 = 12
2 = 2

[pipeline]
seeds = [9, 8, 7, 6, 5]
feedback = true
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(path), "day9.txt"), c.Program)
	assert.Equal(t, []int64{1, -2}, c.Run.Input)
	assert.True(t, c.Run.ASCII)
	assert.True(t, c.Run.Trace)
	assert.Equal(t, map[int64]int64{1: 12, 2: 2}, c.Run.Poke)
	assert.Equal(t, []int64{9, 8, 7, 6, 5}, c.Pipeline.Seeds)
	assert.True(t, c.Pipeline.Feedback)
}

func TestLoadErrors(t *testing.T) {
	for name, text := range map[string]string{
		"syntax":        `program = `,
		"unknown key":   `programme = "x"`,
		"bad poke":      "[run.poke]\nx = 1\n",
		"negative poke": "[run.poke]\n-1 = 1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, text))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Empty(t, c.Program)
	assert.NotNil(t, c.Run.Poke)
	assert.False(t, c.Pipeline.Feedback)
}
