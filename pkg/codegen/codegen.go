// Package codegen lowers a resolved normalized module to a bytecode
// program.
//
// Layout: an optional GLOBAL_ALLOC, the module-level statements, an
// implicit BUILTIN halt, then every function body in declaration order.
// Each function begins with LOCAL_ALLOC, which is its entry offset.
package codegen

import (
	"github.com/joomcode/errorx"

	"github.com/chazu/subpy/pkg/ast"
	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/pkg/symbols"
)

// VM-native operations that the generator emits on its own.
const (
	builtinHalt   = "halt"
	builtinAssert = "assert"
)

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

type generator struct {
	table        *symbols.Table
	instructions map[string]int
	functions    map[string]int

	b *bytecode.Builder

	// Current function context; nil at module level.
	scope *symbols.FunctionScope
	argc  int

	loops []loopContext
}

// loopContext collects the pending break and continue jumps of one loop.
type loopContext struct {
	breaks    []int
	continues []int
}

// Generate lowers mod to a finalized Program. builtinInstructions and
// builtinFunctions map the names of VM-native operations callable from
// source to their arity.
func Generate(mod *ast.Module, table *symbols.Table, builtinInstructions, builtinFunctions map[string]int) (*bytecode.Program, error) {
	g := &generator{
		table:        table,
		instructions: builtinInstructions,
		functions:    builtinFunctions,
		b:            bytecode.NewBuilder(),
	}

	for _, fs := range table.Functions() {
		if _, ok := g.builtin(fs.Name); ok {
			return nil, CallableConflictError.New("function %q shadows a built-in of the same name", fs.Name).
				WithProperty(PropertyCallee, fs.Name).
				WithProperty(PropertyLine, fs.Def.Line)
		}
	}

	if n := table.GlobalCount(); n > 0 {
		g.b.Emit(bytecode.OpGlobalAlloc, n)
		g.b.SetGlobalCount(n)
	}

	if err := g.stmts(mod.Statements()); err != nil {
		return nil, err
	}
	g.b.EmitBuiltin(builtinHalt, 0)

	for _, fn := range mod.Functions() {
		if err := g.function(fn); err != nil {
			return nil, err
		}
	}

	return g.b.Finalize()
}

func (g *generator) builtin(name string) (int, bool) {
	if n, ok := g.instructions[name]; ok {
		return n, true
	}
	n, ok := g.functions[name]
	return n, ok
}

func (g *generator) function(fn *ast.FunctionDef) error {
	scope, ok := g.table.Function(fn.Name)
	if !ok {
		return errorx.IllegalState.New("function %q missing from the symbol table", fn.Name)
	}
	g.scope = scope
	g.argc = len(fn.Args)
	defer func() { g.scope, g.argc = nil, 0 }()

	locals := g.table.CountLocals(fn.Name)
	if err := g.b.MarkEntry(fn.Name, g.argc, locals); err != nil {
		return err
	}
	g.b.SetLine(fn.Line)
	g.b.Emit(bytecode.OpLocalAlloc, locals)

	if err := g.stmts(fn.Body); err != nil {
		return err
	}
	if !endsWithReturn(fn.Body) {
		g.b.Emit(bytecode.OpReturn, g.argc)
	}
	return nil
}

func endsWithReturn(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	_, ok := body[len(body)-1].(*ast.Return)
	return ok
}

// ---------------------------------------------------------------------------
// Storage
// ---------------------------------------------------------------------------

func (g *generator) lookup(id string) (*symbols.Symbol, error) {
	var (
		s  *symbols.Symbol
		ok bool
	)
	if g.scope != nil {
		s, ok = g.scope.Lookup(id)
	} else {
		s, ok = g.table.Global(id)
	}
	if !ok {
		return nil, errorx.IllegalState.New("%q has no symbol; resolution should have rejected it", id)
	}
	return s, nil
}

func (g *generator) load(id string) error {
	s, err := g.lookup(id)
	if err != nil {
		return err
	}
	switch {
	case s.Scope == symbols.Global:
		g.b.Emit(bytecode.OpPushGlobal, s.Slot)
	case s.Role == symbols.Argument:
		g.b.Emit(bytecode.OpPushArg, s.Slot)
	default:
		g.b.Emit(bytecode.OpPushLocal, s.Slot)
	}
	return nil
}

func (g *generator) store(id string) error {
	s, err := g.lookup(id)
	if err != nil {
		return err
	}
	switch {
	case s.Scope == symbols.Global:
		g.b.Emit(bytecode.OpPopGlobal, s.Slot)
	case s.Role == symbols.Argument:
		g.b.Emit(bytecode.OpPopArg, s.Slot)
	default:
		g.b.Emit(bytecode.OpPopLocal, s.Slot)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

func (g *generator) pushLoop() {
	g.loops = append(g.loops, loopContext{})
}

// popLoop removes the innermost loop context.
func (g *generator) popLoop() loopContext {
	top := len(g.loops) - 1
	ctx := g.loops[top]
	g.loops = g.loops[:top]
	return ctx
}

// patchLoop points a loop's breaks at exit and its continues at next.
func (g *generator) patchLoop(ctx loopContext, exit, next int) {
	for _, j := range ctx.breaks {
		g.b.PatchJumpTo(j, exit)
	}
	for _, j := range ctx.continues {
		g.b.PatchJumpTo(j, next)
	}
}

func (g *generator) loopJump(kind string, line int, record func(*loopContext, int)) error {
	if len(g.loops) == 0 {
		return LoopControlError.New("'%s' outside of a loop", kind).WithProperty(PropertyLine, line)
	}
	j := g.b.EmitJump(bytecode.OpJump)
	record(&g.loops[len(g.loops)-1], j)
	return nil
}
