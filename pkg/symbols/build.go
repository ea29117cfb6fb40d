package symbols

import (
	"github.com/chazu/subpy/pkg/ast"
)

// Build resolves a normalized module. Module-level statements are processed
// first to produce the global mapping; each function is then processed as a
// unit, arguments before body, seeded with that mapping.
func Build(mod *ast.Module) (*Table, error) {
	t := &Table{
		globals:   make(map[string]*Symbol),
		functions: make(map[string]*FunctionScope),
	}

	top := newExtractor(true, t.globals)
	for _, s := range mod.Statements() {
		if err := top.stmt(s); err != nil {
			return nil, err
		}
	}
	t.globalSeq = top.variables

	for _, fn := range mod.Functions() {
		if prev, dup := t.functions[fn.Name]; dup {
			return nil, fail(RedeclarationError, fn.Name, fn.Line,
				"function %q already declared at line %d", fn.Name, prev.Def.Line)
		}
		scope, err := buildFunction(fn, t.globals)
		if err != nil {
			return nil, err
		}
		t.functions[fn.Name] = scope
		t.order = append(t.order, scope)
	}

	return t, nil
}

func buildFunction(fn *ast.FunctionDef, globals map[string]*Symbol) (*FunctionScope, error) {
	e := newExtractor(false, globals)
	for _, a := range fn.Args {
		if err := e.argument(a); err != nil {
			return nil, err
		}
	}
	for _, s := range fn.Body {
		if err := e.stmt(s); err != nil {
			return nil, err
		}
	}
	if err := e.deadVariableCheck(); err != nil {
		return nil, err
	}
	return &FunctionScope{
		Name:    fn.Name,
		Def:     fn,
		symbols: e.declared,
		args:    e.arguments,
		locals:  e.variables,
	}, nil
}

// extractor walks one scope, declaring names and recording reads.
type extractor struct {
	topLevel bool

	// declared maps every visible name, globals included, to its symbol.
	// At top level it is the global mapping itself.
	declared  map[string]*Symbol
	read      map[*Symbol]bool
	arguments []*Symbol
	variables []*Symbol
}

func newExtractor(topLevel bool, globals map[string]*Symbol) *extractor {
	e := &extractor{topLevel: topLevel, read: make(map[*Symbol]bool)}
	if topLevel {
		e.declared = globals
		return e
	}
	e.declared = make(map[string]*Symbol, len(globals))
	for id, s := range globals {
		e.declared[id] = s
	}
	return e
}

func (e *extractor) argument(a *ast.Argument) error {
	if prev, ok := e.declared[a.Name]; ok && prev.Role == Argument {
		return fail(RedeclarationError, a.Name, a.Line, "duplicate argument %q", a.Name)
	}
	// Arguments always get their own slot, shadowing any global.
	s := &Symbol{Identifier: a.Name, Annotation: a.Annotation, Scope: Local, Role: Argument, Slot: len(e.arguments), Line: a.Line}
	e.declared[a.Name] = s
	e.arguments = append(e.arguments, s)
	return nil
}

// declare registers a write to id. A first write must carry an annotation;
// later writes must not change it.
func (e *extractor) declare(id string, annotation *ast.Type, line int) error {
	if prev, ok := e.declared[id]; ok {
		if annotation != nil && *annotation != prev.Annotation {
			return fail(RedeclarationError, id, line,
				"%q redeclared as %s, previously declared %s at line %d", id, *annotation, prev.Annotation, prev.Line)
		}
		return nil
	}
	if annotation == nil {
		return fail(MissingAnnotationError, id, line, "first declaration of %q must carry a type annotation", id)
	}

	s := &Symbol{Identifier: id, Annotation: *annotation, Role: Variable, Slot: len(e.variables), Line: line}
	if e.topLevel {
		s.Scope = Global
	} else {
		s.Scope = Local
	}
	e.declared[id] = s
	e.variables = append(e.variables, s)
	return nil
}

// redeclaresGlobal rejects an annotated declaration inside a function of a
// name the module already declares. Plain assignment writes the global.
func (e *extractor) redeclaresGlobal(id string, line int) error {
	if e.topLevel {
		return nil
	}
	if prev, ok := e.declared[id]; ok && prev.Scope == Global {
		return fail(RedeclarationError, id, line,
			"%q is declared at module level (line %d); assign it without an annotation to write the global", id, prev.Line)
	}
	return nil
}

func (e *extractor) use(id string, line int) error {
	s, ok := e.declared[id]
	if !ok {
		return fail(NameError, id, line, "%q is used before it is declared", id)
	}
	e.read[s] = true
	return nil
}

// deadVariableCheck reports the first function local, in declaration
// order, that is never read. Module-level variables are exempt.
func (e *extractor) deadVariableCheck() error {
	if e.topLevel {
		return nil
	}
	for _, s := range e.variables {
		if !e.read[s] {
			return fail(UnusedVariableError, s.Identifier, s.Line, "%q is declared but never read", s.Identifier)
		}
	}
	return nil
}

// ---- statements ----

func (e *extractor) stmts(list []ast.Stmt) error {
	for _, s := range list {
		if err := e.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *extractor) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.Assign:
		// The value is walked first so that `x: int = x + 1` reads x
		// before it exists.
		if err := e.expr(s.Value); err != nil {
			return err
		}
		switch t := s.Target.(type) {
		case *ast.Name:
			if s.Annotation != nil {
				if err := e.redeclaresGlobal(t.ID, s.Line); err != nil {
					return err
				}
			}
			return e.declare(t.ID, s.Annotation, s.Line)
		case *ast.Subscript:
			if err := e.use(t.Name, t.Line); err != nil {
				return err
			}
			return e.expr(t.Index)
		}
		return nil

	case *ast.For:
		switch t := s.Target.(type) {
		case *ast.Name:
			counter := ast.Int
			if err := e.declare(t.ID, &counter, s.Line); err != nil {
				return err
			}
			// The loop increment reads the counter.
			if err := e.use(t.ID, s.Line); err != nil {
				return err
			}
		case *ast.Subscript:
			if err := e.use(t.Name, t.Line); err != nil {
				return err
			}
			if err := e.expr(t.Index); err != nil {
				return err
			}
		}
		return e.stmts(s.Body)

	case *ast.While:
		if err := e.expr(s.Cond); err != nil {
			return err
		}
		if err := e.stmts(s.Body); err != nil {
			return err
		}
		return e.stmts(s.OrElse)

	case *ast.If:
		if err := e.expr(s.Cond); err != nil {
			return err
		}
		if err := e.stmts(s.Body); err != nil {
			return err
		}
		return e.stmts(s.OrElse)

	case *ast.Return:
		if s.Value == nil {
			return nil
		}
		return e.expr(s.Value)

	case *ast.Assert:
		return e.expr(s.Test)

	case *ast.ExprStmt:
		return e.expr(s.Value)

	case *ast.Pass, *ast.Break, *ast.Continue:
		return nil
	}
	return nil
}

// ---- expressions ----

func (e *extractor) expr(x ast.Expr) error {
	switch x := x.(type) {
	case *ast.Name:
		return e.use(x.ID, x.Line)
	case *ast.Constant:
		return nil
	case *ast.BinOp:
		if err := e.expr(x.Left); err != nil {
			return err
		}
		return e.expr(x.Right)
	case *ast.UnaryOp:
		return e.expr(x.Operand)
	case *ast.Call:
		for _, a := range x.Args {
			if err := e.expr(a); err != nil {
				return err
			}
		}
		return nil
	case *ast.IfExpr:
		if err := e.expr(x.Cond); err != nil {
			return err
		}
		if err := e.expr(x.Then); err != nil {
			return err
		}
		return e.expr(x.Else)
	case *ast.Subscript:
		if err := e.use(x.Name, x.Line); err != nil {
			return err
		}
		return e.expr(x.Index)
	}
	return nil
}
