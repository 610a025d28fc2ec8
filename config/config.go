// Package config handles corevm runner configuration (corevm.toml or
// corevm.yaml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/corevm/vm"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFormat = errors.New("unknown config format")
	ErrInvalid       = errors.New("invalid config")
)

// Config is the runner configuration.
type Config struct {
	GC     GC     `toml:"gc" yaml:"gc" json:"gc"`
	Log    Log    `toml:"log" yaml:"log" json:"log"`
	Trace  Trace  `toml:"trace" yaml:"trace" json:"trace"`
	Server Server `toml:"server" yaml:"server" json:"server"`

	// Path is the file the config was loaded from (set at load time).
	Path string `toml:"-" yaml:"-" json:"-"`
}

// GC configures the heap, the native pool and collection.
type GC struct {
	Rule    string  `toml:"rule" yaml:"rule" json:"rule"`
	Scheme  string  `toml:"scheme" yaml:"scheme" json:"scheme"`
	Cutoff  float64 `toml:"cutoff" yaml:"cutoff" json:"cutoff"`
	HeapMax int     `toml:"heap-max" yaml:"heap-max" json:"heap-max"`
	PoolMax int     `toml:"pool-max" yaml:"pool-max" json:"pool-max"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity" json:"verbosity"`
	File      string `toml:"file" yaml:"file" json:"file"`
}

// Trace configures the SQLite trace store.
type Trace struct {
	Enabled bool   `toml:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `toml:"path" yaml:"path" json:"path"`
}

// Server configures the inspection endpoints. Empty addresses disable them.
type Server struct {
	HTTP string `toml:"http" yaml:"http" json:"http"`
	GRPC string `toml:"grpc" yaml:"grpc" json:"grpc"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := vm.DefaultOptions()
	return &Config{
		GC: GC{
			Rule:    opts.Rule.String(),
			Scheme:  opts.Scheme.Name(),
			Cutoff:  opts.Cutoff,
			HeapMax: opts.HeapMaxSize,
			PoolMax: opts.PoolMaxSize,
		},
		Log:   Log{Verbosity: 0},
		Trace: Trace{Path: "corevm-trace.db"},
	}
}

// Load reads a TOML or YAML file over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	c.Path = path

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad looks for corevm.toml, then corevm.yaml, in dir. It returns
// the defaults when neither exists.
func FindAndLoad(dir string) (*Config, error) {
	for _, name := range []string{"corevm.toml", "corevm.yaml", "corevm.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

// Options derives process options from the configuration.
func (c *Config) Options() (vm.Options, error) {
	rule, err := vm.ParseGCRule(c.GC.Rule)
	if err != nil {
		return vm.Options{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	scheme, ok := vm.SchemeByName(c.GC.Scheme)
	if !ok {
		return vm.Options{}, fmt.Errorf("%w: unknown gc scheme %q", ErrInvalid, c.GC.Scheme)
	}

	opts := vm.DefaultOptions()
	opts.Rule = rule
	opts.Scheme = scheme
	opts.Cutoff = c.GC.Cutoff
	opts.HeapMaxSize = c.GC.HeapMax
	opts.PoolMaxSize = c.GC.PoolMax
	return opts, nil
}
