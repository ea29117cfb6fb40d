// Package symbols resolves every name in a normalized module to a storage
// slot and checks use-before-declaration, redeclaration and dead locals.
package symbols

import (
	"fmt"

	"github.com/chazu/subpy/pkg/ast"
)

// Scope is the storage region a symbol lives in.
type Scope uint8

const (
	Global Scope = iota
	Local
)

func (s Scope) String() string {
	if s == Global {
		return "Global"
	}
	return "Local"
}

// Role distinguishes function arguments from assigned variables.
type Role uint8

const (
	Variable Role = iota
	Argument
)

func (r Role) String() string {
	if r == Argument {
		return "Argument"
	}
	return "Variable"
}

// Symbol is a resolved name. Slots are contiguous from 0 per (scope, role)
// in first-declaration order.
type Symbol struct {
	Identifier string
	Annotation ast.Type
	Scope      Scope
	Role       Role
	Slot       int
	Line       int
}

func (s *Symbol) String() string {
	return fmt.Sprintf("Symbol(%s: %s, %s, %s, %d)", s.Identifier, s.Annotation, s.Scope, s.Role, s.Slot)
}

// Table is the result of resolution: one global mapping plus one scope per
// function. It is read-only once built.
type Table struct {
	globals   map[string]*Symbol
	globalSeq []*Symbol
	functions map[string]*FunctionScope
	order     []*FunctionScope
}

// Global returns the module-level symbol for id.
func (t *Table) Global(id string) (*Symbol, bool) {
	s, ok := t.globals[id]
	return s, ok
}

// Globals returns the module-level symbols in slot order.
func (t *Table) Globals() []*Symbol {
	return append([]*Symbol(nil), t.globalSeq...)
}

// GlobalCount is the size of the global store.
func (t *Table) GlobalCount() int { return len(t.globalSeq) }

// Function returns the scope of a declared function.
func (t *Table) Function(name string) (*FunctionScope, bool) {
	f, ok := t.functions[name]
	return f, ok
}

// Functions returns all function scopes in declaration order.
func (t *Table) Functions() []*FunctionScope {
	return append([]*FunctionScope(nil), t.order...)
}

// CountArgs is the declared argument count of fn, or 0 if fn is unknown.
func (t *Table) CountArgs(fn string) int {
	if f, ok := t.functions[fn]; ok {
		return len(f.args)
	}
	return 0
}

// CountLocals is the number of non-argument, non-global variables of fn,
// or 0 if fn is unknown.
func (t *Table) CountLocals(fn string) int {
	if f, ok := t.functions[fn]; ok {
		return len(f.locals)
	}
	return 0
}

// FunctionScope holds one function's resolved names. Its mapping includes
// the inherited global symbols by reference, except where an argument of the
// same name shadows them.
type FunctionScope struct {
	Name string
	Def  *ast.FunctionDef

	symbols map[string]*Symbol
	args    []*Symbol
	locals  []*Symbol
}

// Lookup resolves id as seen from inside the function.
func (f *FunctionScope) Lookup(id string) (*Symbol, bool) {
	s, ok := f.symbols[id]
	return s, ok
}

// Args returns the argument symbols in declaration order.
func (f *FunctionScope) Args() []*Symbol { return append([]*Symbol(nil), f.args...) }

// Locals returns the local variable symbols in slot order.
func (f *FunctionScope) Locals() []*Symbol { return append([]*Symbol(nil), f.locals...) }

// Body is the function's statement list.
func (f *FunctionScope) Body() []ast.Stmt { return f.Def.Body }
