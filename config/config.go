// Package config handles intcode.toml run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config describes how the intcode command runs a program.
type Config struct {
	Program  string   `toml:"program"`
	Run      Run      `toml:"run"`
	Pipeline Pipeline `toml:"pipeline"`

	// Dir is the directory containing the config file (set at load time).
	// A relative Program is resolved against it.
	Dir string `toml:"-"`
}

// Run configures a single machine.
type Run struct {
	Input []int64         `toml:"input"`
	ASCII bool            `toml:"ascii"`
	Trace bool            `toml:"trace"`
	Poke  map[int64]int64 `toml:"-"`

	// PokeText holds the poke table as written in the file; TOML keys
	// are always strings.
	PokeText map[string]int64 `toml:"poke"`
}

// Pipeline configures a chain of machines running the same program.
type Pipeline struct {
	Seeds    []int64 `toml:"seeds"`
	Feedback bool    `toml:"feedback"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Run: Run{Poke: map[int64]int64{}}}
}

// Load parses the TOML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, keys[0].String())
	}

	for k, v := range c.Run.PokeText {
		var addr int64
		if _, err := fmt.Sscan(k, &addr); err != nil || addr < 0 {
			return nil, fmt.Errorf("%s: bad poke address %q", path, k)
		}
		c.Run.Poke[addr] = v
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if c.Program != "" && !filepath.IsAbs(c.Program) {
		c.Program = filepath.Join(c.Dir, c.Program)
	}
	return c, nil
}
