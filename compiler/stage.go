package compiler

import (
	"github.com/joomcode/errorx"

	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/pkg/codegen"
	"github.com/chazu/subpy/pkg/reduce"
	"github.com/chazu/subpy/pkg/symbols"
	"github.com/chazu/subpy/pkg/syntax"
	"github.com/chazu/subpy/vm"
)

// StageKind classifies an error by the pipeline stage that raised it.
type StageKind int

const (
	StageUnknown StageKind = iota
	StageInput             // malformed syntax tree or program file
	StageReduction
	StageResolution
	StageGeneration
	StageRuntime
)

func (s StageKind) String() string {
	switch s {
	case StageInput:
		return "input"
	case StageReduction:
		return "reduction"
	case StageResolution:
		return "resolution"
	case StageGeneration:
		return "generation"
	case StageRuntime:
		return "runtime"
	}
	return "unknown"
}

// Static reports whether errors of this stage are found before execution.
func (s StageKind) Static() bool {
	return s == StageReduction || s == StageResolution || s == StageGeneration
}

var stageNamespaces = []struct {
	ns    errorx.Namespace
	stage StageKind
}{
	{syntax.Errors, StageInput},
	{bytecode.Errors, StageInput},
	{reduce.Errors, StageReduction},
	{symbols.Errors, StageResolution},
	{codegen.Errors, StageGeneration},
	{vm.Faults, StageRuntime},
}

// Stage reports which stage raised err.
func Stage(err error) StageKind {
	e := errorx.Cast(err)
	if e == nil {
		return StageUnknown
	}
	for _, s := range stageNamespaces {
		if s.ns.IsNamespaceOf(e.Type()) {
			return s.stage
		}
	}
	return StageUnknown
}
