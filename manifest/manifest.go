// Package manifest handles subpy.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/joomcode/errorx"

	"github.com/chazu/subpy/compiler"
	"github.com/chazu/subpy/vm"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "subpy.toml"

var (
	Errors = errorx.NewNamespace("manifest")

	InvalidManifestError = Errors.NewType("invalid")
)

// Manifest represents a subpy.toml project configuration.
type Manifest struct {
	Project  Project      `toml:"project"`
	Builtins Builtins     `toml:"builtins"`
	VM       VMConfig     `toml:"vm"`
	Cache    CacheConfig  `toml:"cache"`
	Server   ServerConfig `toml:"server"`

	// Dir is the directory containing the subpy.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Builtins lists the VM-native operations programs may call, with arity.
type Builtins struct {
	Instructions map[string]int `toml:"instructions"`
	Functions    map[string]int `toml:"functions"`
}

// VMConfig configures execution.
type VMConfig struct {
	StepLimit int  `toml:"step-limit"`
	Trace     bool `toml:"trace"`
}

// CacheConfig configures the compiled-program cache.
type CacheConfig struct {
	Path string `toml:"path"`
}

// ServerConfig configures the compile/run service.
type ServerConfig struct {
	Addr    string `toml:"addr"`
	Workers int    `toml:"workers"`
}

// nativeArity is the arity of every VM-native operation a manifest may
// expose to source programs.
var nativeArity = map[string]int{
	vm.BuiltinHalt:  0,
	vm.BuiltinPrint: 1,
}

// Default returns the configuration used when no subpy.toml exists.
func Default() *Manifest {
	cfg := compiler.DefaultConfig()
	return &Manifest{
		Builtins: Builtins{
			Instructions: cfg.BuiltinInstructions,
			Functions:    cfg.BuiltinFunctions,
		},
		Server: ServerConfig{
			Addr:    "127.0.0.1:8421",
			Workers: 4,
		},
	}
}

// Load parses a subpy.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	m.Builtins = Builtins{}
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Builtins.Instructions == nil && m.Builtins.Functions == nil {
		d := Default()
		m.Builtins = d.Builtins
	}

	if err := m.Validate(); err != nil {
		return nil, errorx.Decorate(err, "in %s", path)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a subpy.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks that every built-in is VM-native with its native arity,
// that no name is both an instruction and a function, and that numeric
// limits are not negative.
func (m *Manifest) Validate() error {
	check := func(table string, entries map[string]int) error {
		for _, name := range sortedNames(entries) {
			want, ok := nativeArity[name]
			if !ok {
				return InvalidManifestError.New("builtins.%s: %q is not a VM-native operation", table, name)
			}
			if got := entries[name]; got != want {
				return InvalidManifestError.New("builtins.%s: %q has arity %d, the VM expects %d", table, name, got, want)
			}
		}
		return nil
	}
	if err := check("instructions", m.Builtins.Instructions); err != nil {
		return err
	}
	if err := check("functions", m.Builtins.Functions); err != nil {
		return err
	}
	for _, name := range sortedNames(m.Builtins.Instructions) {
		if _, dup := m.Builtins.Functions[name]; dup {
			return InvalidManifestError.New("builtins: %q is listed as both instruction and function", name)
		}
	}

	if m.VM.StepLimit < 0 {
		return InvalidManifestError.New("vm.step-limit must not be negative, got %d", m.VM.StepLimit)
	}
	if m.Server.Workers < 0 {
		return InvalidManifestError.New("server.workers must not be negative, got %d", m.Server.Workers)
	}
	return nil
}

// CompilerConfig returns the built-in tables in the form the compiler takes.
func (m *Manifest) CompilerConfig() compiler.Config {
	return compiler.Config{
		BuiltinInstructions: m.Builtins.Instructions,
		BuiltinFunctions:    m.Builtins.Functions,
	}.Clone()
}

// CachePath returns the absolute cache database path, or "" when caching
// is disabled.
func (m *Manifest) CachePath() string {
	if m.Cache.Path == "" || filepath.IsAbs(m.Cache.Path) || m.Dir == "" {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}

func sortedNames(entries map[string]int) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
