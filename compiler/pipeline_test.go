package compiler

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/joomcode/errorx"

	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/pkg/codegen"
	"github.com/chazu/subpy/pkg/reduce"
	"github.com/chazu/subpy/pkg/symbols"
	"github.com/chazu/subpy/vm"
)

func compileFixture(t *testing.T, name string) (*bytecode.Program, error) {
	t.Helper()
	return CompileFile(filepath.Join("testdata", name), DefaultConfig())
}

func mustRun(t *testing.T, name string) *vm.Result {
	t.Helper()
	p, err := compileFixture(t, name)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	res, err := vm.New().Run(p)
	if err != nil {
		t.Fatalf("run %s: %v\n%s", name, err, p.Disassemble())
	}
	return res
}

func TestIfElseFixture(t *testing.T) {
	res := mustRun(t, "if_else.yaml")
	if diff := cmp.Diff([]bytecode.Value{bytecode.Int(2)}, res.Output); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestCallsFixture(t *testing.T) {
	p, err := compileFixture(t, "calls.yaml")
	if err != nil {
		t.Fatal(err)
	}
	stuff, _ := p.Entry("stuff")
	thing, _ := p.Entry("thing")
	if !(stuff.Offset < thing.Offset) {
		t.Errorf("entries out of declaration order: stuff@%d thing@%d", stuff.Offset, thing.Offset)
	}
	for _, in := range p.Instructions() {
		if in.Op == bytecode.OpCall && in.Name == "thing" && in.Operand != thing.Offset {
			t.Errorf("call to thing targets %d, want %d", in.Operand, thing.Offset)
		}
	}

	res, err := vm.New().Run(p)
	if err != nil {
		t.Fatal(err)
	}
	if top, _ := res.Top(); top != bytecode.Int(71) || len(res.Output) != 0 {
		t.Errorf("top = %v, output = %v; want 71 and no output", top, res.Output)
	}
}

func TestUnusedLocalFixture(t *testing.T) {
	_, err := compileFixture(t, "unused_local.yaml")
	if !errorx.IsOfType(err, symbols.UnusedVariableError) {
		t.Fatalf("err = %v, want UnusedVariableError", err)
	}
	if id, _ := errorx.ExtractProperty(err, symbols.PropertyIdentifier); id != "z" {
		t.Errorf("identifier = %v, want z", id)
	}
	if Stage(err) != StageResolution {
		t.Errorf("Stage = %s, want resolution", Stage(err))
	}
}

func TestWhileElseFixture(t *testing.T) {
	res := mustRun(t, "while_else.yaml")
	if diff := cmp.Diff([]bytecode.Value{bytecode.Int(2)}, res.Output); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestChainedCompareRejected(t *testing.T) {
	_, err := compileFixture(t, "chained_compare.yaml")
	if !errorx.IsOfType(err, reduce.UnsupportedConstructError) {
		t.Fatalf("err = %v, want UnsupportedConstructError", err)
	}
	if Stage(err) != StageReduction {
		t.Errorf("Stage = %s, want reduction", Stage(err))
	}
}

func TestCompileBytes(t *testing.T) {
	src := `{"_type": "Module", "body": [
	  {"_type": "Expr", "lineno": 1, "value": {"_type": "Call",
	    "func": {"_type": "Name", "id": "print"},
	    "args": [{"_type": "Constant", "value": 1}, {"_type": "Constant", "value": 2}],
	    "keywords": []}}]}`
	_, err := CompileBytes([]byte(src), DefaultConfig())
	if !errorx.IsOfType(err, codegen.ArityError) {
		t.Fatalf("err = %v, want ArityError", err)
	}
	if Stage(err) != StageGeneration {
		t.Errorf("Stage = %s, want generation", Stage(err))
	}
}

func TestCustomBuiltinTables(t *testing.T) {
	src := `{"_type": "Module", "body": [
	  {"_type": "Expr", "lineno": 1, "value": {"_type": "Call",
	    "func": {"_type": "Name", "id": "print"}, "args": [{"_type": "Constant", "value": 1}]}}]}`

	cfg := Config{BuiltinInstructions: map[string]int{"halt": 0}}
	_, err := CompileBytes([]byte(src), cfg)
	if !errorx.IsOfType(err, codegen.UnknownCallableError) {
		t.Fatalf("err = %v, want UnknownCallableError without print", err)
	}
}

func TestStage(t *testing.T) {
	tests := []struct {
		err  error
		want StageKind
	}{
		{nil, StageUnknown},
		{errorx.IllegalState.New("boom"), StageUnknown},
		{vm.AssertionFailed.New("no"), StageRuntime},
		{bytecode.WireError.New("bad"), StageInput},
		{errorx.Decorate(codegen.LoopControlError.New("x"), "while compiling"), StageGeneration},
	}
	for _, tt := range tests {
		if got := Stage(tt.err); got != tt.want {
			t.Errorf("Stage(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if !StageGeneration.Static() || StageRuntime.Static() {
		t.Error("Static misclassifies stages")
	}
}

func TestConfigClone(t *testing.T) {
	a := DefaultConfig()
	b := a.Clone()
	b.BuiltinFunctions["clock"] = 0
	if _, ok := a.BuiltinFunctions["clock"]; ok {
		t.Error("Clone shares maps with the original")
	}
}
