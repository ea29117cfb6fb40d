// Package compiler runs the static pipeline: decoded syntax tree, reduction,
// symbol resolution and code generation.
package compiler

import (
	"maps"

	"github.com/tliron/commonlog"

	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/pkg/codegen"
	"github.com/chazu/subpy/pkg/reduce"
	"github.com/chazu/subpy/pkg/symbols"
	"github.com/chazu/subpy/pkg/syntax"
)

var log = commonlog.GetLogger("subpy.compiler")

// Config names the VM-native operations a program may call, with their
// arity.
type Config struct {
	BuiltinInstructions map[string]int
	BuiltinFunctions    map[string]int
}

// DefaultConfig exposes halt as an instruction and print as a function.
func DefaultConfig() Config {
	return Config{
		BuiltinInstructions: map[string]int{"halt": 0},
		BuiltinFunctions:    map[string]int{"print": 1},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	return Config{
		BuiltinInstructions: maps.Clone(c.BuiltinInstructions),
		BuiltinFunctions:    maps.Clone(c.BuiltinFunctions),
	}
}

// Compile lowers a decoded syntax tree to a finalized program. Errors from
// each stage are returned as-is; use Stage to classify them.
func Compile(mod *syntax.Module, cfg Config) (*bytecode.Program, error) {
	norm, err := reduce.Reduce(mod)
	if err != nil {
		log.Debugf("reduce failed: %s", err)
		return nil, err
	}
	log.Debugf("reduced module: %d function(s), %d statement(s)", len(norm.Functions()), len(norm.Statements()))

	table, err := symbols.Build(norm)
	if err != nil {
		log.Debugf("resolution failed: %s", err)
		return nil, err
	}
	log.Debugf("resolved %d global(s), %d function scope(s)", table.GlobalCount(), len(table.Functions()))

	prog, err := codegen.Generate(norm, table, cfg.BuiltinInstructions, cfg.BuiltinFunctions)
	if err != nil {
		log.Debugf("generation failed: %s", err)
		return nil, err
	}
	log.Debugf("generated %d instruction(s)", prog.Len())
	return prog, nil
}

// CompileBytes decodes a YAML or JSON syntax tree and compiles it.
func CompileBytes(data []byte, cfg Config) (*bytecode.Program, error) {
	mod, err := syntax.Decode(data)
	if err != nil {
		return nil, err
	}
	return Compile(mod, cfg)
}

// CompileFile decodes the syntax tree stored at path and compiles it.
func CompileFile(path string, cfg Config) (*bytecode.Program, error) {
	mod, err := syntax.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(mod, cfg)
}
