// Package reduce converts a generic syntax tree into the normalized tree,
// rejecting every construct outside the supported subset.
//
// Reduction performs no name resolution. It validates shape only:
// annotations, operator arity, loop forms and call/subscript targets.
package reduce

import (
	"fmt"

	"github.com/chazu/subpy/pkg/ast"
	"github.com/chazu/subpy/pkg/syntax"
)

// Reduce converts a generic module into a normalized module. The first
// unsupported construct aborts reduction with an UnsupportedConstructError.
func Reduce(mod *syntax.Module) (*ast.Module, error) {
	if mod == nil {
		return nil, unsupported("Module", 0, "nil module")
	}
	r := &reducer{}
	out := &ast.Module{Body: make([]ast.TopLevel, 0, len(mod.Body))}
	for _, s := range mod.Body {
		if fd, ok := s.(*syntax.FunctionDef); ok {
			fn, err := r.function(fd)
			if err != nil {
				return nil, err
			}
			out.Body = append(out.Body, fn)
			continue
		}
		st, err := r.stmt(s)
		if err != nil {
			return nil, err
		}
		out.Body = append(out.Body, st)
	}
	return out, nil
}

type reducer struct {
	inFunction bool
}

// ---- functions ----

func (r *reducer) function(fd *syntax.FunctionDef) (*ast.FunctionDef, error) {
	if r.inFunction {
		return nil, unsupported(fd.Kind(), fd.Line, "nested function definitions are not supported")
	}

	args, err := r.arguments(fd)
	if err != nil {
		return nil, err
	}

	if fd.Returns == nil {
		return nil, unsupported(fd.Kind(), fd.Line,
			"function %q must have a return annotation (use -> NoneType when it returns nothing)", fd.Name)
	}
	ret, ok := returnType(fd.Returns)
	if !ok {
		return nil, unsupported(fd.Kind(), fd.Line, "return annotation of %q must be int, float or NoneType", fd.Name)
	}

	r.inFunction = true
	body, err := r.stmts(fd.Body)
	r.inFunction = false
	if err != nil {
		return nil, err
	}

	return &ast.FunctionDef{Line: fd.Line, Name: fd.Name, Args: args, Body: body, ReturnType: ret}, nil
}

func (r *reducer) arguments(fd *syntax.FunctionDef) ([]*ast.Argument, error) {
	a := fd.Args
	if a == nil {
		return nil, nil
	}
	switch {
	case a.VarArg != nil:
		return nil, unsupported(fd.Kind(), fd.Line, "variadic arguments are not supported")
	case a.KwArg != nil:
		return nil, unsupported(fd.Kind(), fd.Line, "keyword variadic arguments are not supported")
	case len(a.PosOnlyArgs) > 0:
		return nil, unsupported(fd.Kind(), fd.Line, "positional-only arguments are not supported")
	case len(a.KwOnlyArgs) > 0:
		return nil, unsupported(fd.Kind(), fd.Line, "keyword-only arguments are not supported")
	case len(a.Defaults) > 0 || len(a.KwDefaults) > 0:
		return nil, unsupported(fd.Kind(), fd.Line, "default argument values are not supported")
	}

	out := make([]*ast.Argument, 0, len(a.Args))
	for _, arg := range a.Args {
		line := arg.Line
		if line == 0 {
			line = fd.Line
		}
		if arg.Annotation == nil {
			return nil, unsupported(arg.Kind(), line, "argument %q must have a type annotation", arg.Name)
		}
		t, ok := valueType(arg.Annotation)
		if !ok {
			return nil, unsupported(arg.Kind(), line, "argument %q must be annotated int or float", arg.Name)
		}
		out = append(out, &ast.Argument{Line: line, Name: arg.Name, Annotation: t})
	}
	return out, nil
}

// valueType accepts the annotations legal for variables and arguments.
func valueType(e syntax.Expr) (ast.Type, bool) {
	n, ok := e.(*syntax.Name)
	if !ok {
		return 0, false
	}
	switch t, _ := ast.ParseType(n.ID); t {
	case ast.Int, ast.Float:
		return t, true
	}
	return 0, false
}

// returnType additionally accepts NoneType, spelled as a name or as the
// None constant.
func returnType(e syntax.Expr) (ast.Type, bool) {
	switch n := e.(type) {
	case *syntax.Name:
		t, ok := ast.ParseType(n.ID)
		return t, ok
	case *syntax.Constant:
		if n.Value == nil {
			return ast.NoneType, true
		}
	}
	return 0, false
}

// ---- statements ----

func (r *reducer) stmts(list []syntax.Stmt) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, 0, len(list))
	for _, s := range list {
		st, err := r.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *reducer) stmt(s syntax.Stmt) (ast.Stmt, error) {
	switch s := s.(type) {
	case *syntax.FunctionDef:
		return nil, unsupported(s.Kind(), s.Line, "nested function definitions are not supported")

	case *syntax.Return:
		if !r.inFunction {
			return nil, unsupported(s.Kind(), s.Line, "return outside a function")
		}
		if s.Value == nil {
			return &ast.Return{Line: s.Line}, nil
		}
		v, err := r.expr(s.Value, s.Line)
		if err != nil {
			return nil, err
		}
		return &ast.Return{Line: s.Line, Value: v}, nil

	case *syntax.Assign:
		if len(s.Targets) != 1 {
			return nil, unsupported(s.Kind(), s.Line, "assignments must have exactly one target")
		}
		target, err := r.target(s.Targets[0], s.Kind(), s.Line)
		if err != nil {
			return nil, err
		}
		v, err := r.expr(s.Value, s.Line)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Line: s.Line, Target: target, Value: v}, nil

	case *syntax.AnnAssign:
		name, ok := s.Target.(*syntax.Name)
		if !ok {
			return nil, unsupported(s.Kind(), s.Line, "annotated assignment target must be a plain name")
		}
		t, ok := valueType(s.Annotation)
		if !ok {
			return nil, unsupported(s.Kind(), s.Line, "variable %q must be annotated int or float", name.ID)
		}
		if s.Value == nil {
			return nil, unsupported(s.Kind(), s.Line, "annotated declaration of %q requires a value", name.ID)
		}
		v, err := r.expr(s.Value, s.Line)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Line: s.Line, Target: &ast.Name{Line: line(name, s.Line), ID: name.ID}, Value: v, Annotation: &t}, nil

	case *syntax.AugAssign:
		op, err := arithmetic(s.Op, s.Kind(), s.Line)
		if err != nil {
			return nil, err
		}
		target, err := r.target(s.Target, s.Kind(), s.Line)
		if err != nil {
			return nil, err
		}
		read, err := r.target(s.Target, s.Kind(), s.Line)
		if err != nil {
			return nil, err
		}
		v, err := r.expr(s.Value, s.Line)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Line: s.Line, Target: target, Value: &ast.BinOp{Line: s.Line, Op: op, Left: read, Right: v}}, nil

	case *syntax.For:
		return r.forLoop(s)

	case *syntax.While:
		cond, err := r.expr(s.Test, s.Line)
		if err != nil {
			return nil, err
		}
		body, err := r.stmts(s.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := r.stmts(s.OrElse)
		if err != nil {
			return nil, err
		}
		return &ast.While{Line: s.Line, Cond: cond, Body: body, OrElse: orelse}, nil

	case *syntax.If:
		cond, err := r.expr(s.Test, s.Line)
		if err != nil {
			return nil, err
		}
		body, err := r.stmts(s.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := r.stmts(s.OrElse)
		if err != nil {
			return nil, err
		}
		return &ast.If{Line: s.Line, Cond: cond, Body: body, OrElse: orelse}, nil

	case *syntax.Assert:
		test, err := r.expr(s.Test, s.Line)
		if err != nil {
			return nil, err
		}
		return &ast.Assert{Line: s.Line, Test: test}, nil

	case *syntax.ExprStmt:
		v, err := r.expr(s.Value, s.Line)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Line: s.Line, Value: v}, nil

	case *syntax.Pass:
		return &ast.Pass{Line: s.Line}, nil
	case *syntax.Break:
		return &ast.Break{Line: s.Line}, nil
	case *syntax.Continue:
		return &ast.Continue{Line: s.Line}, nil

	case nil:
		return nil, unsupported("Stmt", 0, "missing statement")
	default:
		return nil, unsupported(s.Kind(), s.Pos(), "%s statements are not supported", s.Kind())
	}
}

// target reduces an assignment or loop target: a plain name or a
// statically named subscript.
func (r *reducer) target(e syntax.Expr, kind string, ln int) (ast.Expr, error) {
	switch t := e.(type) {
	case *syntax.Name:
		return &ast.Name{Line: line(t, ln), ID: t.ID}, nil
	case *syntax.Subscript:
		return r.subscript(t, ln)
	case *syntax.Tuple:
		return nil, unsupported(kind, ln, "tuple targets are not supported")
	case nil:
		return nil, unsupported(kind, ln, "missing target")
	default:
		return nil, unsupported(kind, ln, "%s is not a valid target", t.Kind())
	}
}

func (r *reducer) forLoop(s *syntax.For) (ast.Stmt, error) {
	if len(s.OrElse) > 0 {
		return nil, unsupported(s.Kind(), s.Line, "for...else is not supported")
	}
	target, err := r.target(s.Target, s.Kind(), s.Line)
	if err != nil {
		return nil, err
	}

	call, ok := s.Iter.(*syntax.Call)
	if !ok {
		return nil, unsupported(s.Kind(), s.Line, "loop iterator must be range(stop) or range(start, stop[, step])")
	}
	if fn, ok := call.Func.(*syntax.Name); !ok || fn.ID != "range" || len(call.Keywords) > 0 {
		return nil, unsupported(s.Kind(), s.Line, "loop iterator must be range(stop) or range(start, stop[, step])")
	}

	lits := make([]int64, 0, len(call.Args))
	for _, a := range call.Args {
		v, err := literalInt(a, s.Line)
		if err != nil {
			return nil, err
		}
		lits = append(lits, v)
	}

	var start, stop, step int64 = 0, 0, 1
	switch len(lits) {
	case 1:
		stop = lits[0]
	case 2:
		start, stop = lits[0], lits[1]
	case 3:
		start, stop, step = lits[0], lits[1], lits[2]
	default:
		return nil, unsupported(s.Kind(), s.Line, "range takes 1 to 3 arguments, got %d", len(lits))
	}
	if step == 0 {
		return nil, unsupported(s.Kind(), s.Line, "range step must not be zero")
	}

	body, err := r.stmts(s.Body)
	if err != nil {
		return nil, err
	}
	return &ast.For{Line: s.Line, Target: target, Start: start, Stop: stop, Step: step, Body: body}, nil
}

// literalInt accepts an int constant, optionally under a unary sign.
func literalInt(e syntax.Expr, ln int) (int64, error) {
	switch n := e.(type) {
	case *syntax.Constant:
		if v, ok := n.Value.(int64); ok {
			return v, nil
		}
	case *syntax.UnaryOp:
		if c, ok := n.Operand.(*syntax.Constant); ok {
			if v, ok := c.Value.(int64); ok {
				switch n.Op {
				case "USub":
					return -v, nil
				case "UAdd":
					return v, nil
				}
			}
		}
	}
	kind := "expression"
	if e != nil {
		kind = e.Kind()
	}
	return 0, unsupported("For", ln, "range arguments must be int literals, got %s", kind)
}

// ---- expressions ----

func (r *reducer) exprs(list []syntax.Expr, ln int) ([]ast.Expr, error) {
	out := make([]ast.Expr, 0, len(list))
	for _, e := range list {
		x, err := r.expr(e, ln)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// expr reduces an expression; ln is the enclosing statement's line, used
// when the expression node carries none.
func (r *reducer) expr(e syntax.Expr, ln int) (ast.Expr, error) {
	if e == nil {
		return nil, unsupported("Expr", ln, "missing expression")
	}
	ln = line(e, ln)

	switch e := e.(type) {
	case *syntax.BoolOp:
		op, ok := ast.ParseOp(e.Op)
		if !ok || !op.IsBoolean() {
			return nil, unsupported(e.Kind(), ln, "unknown boolean operator %q", e.Op)
		}
		if len(e.Values) < 2 {
			return nil, unsupported(e.Kind(), ln, "boolean operation needs at least two operands")
		}
		vals, err := r.exprs(e.Values, ln)
		if err != nil {
			return nil, err
		}
		chain := vals[0]
		for _, v := range vals[1:] {
			chain = &ast.BinOp{Line: ln, Op: op, Left: chain, Right: v}
		}
		return chain, nil

	case *syntax.BinOp:
		op, err := arithmetic(e.Op, e.Kind(), ln)
		if err != nil {
			return nil, err
		}
		left, err := r.expr(e.Left, ln)
		if err != nil {
			return nil, err
		}
		right, err := r.expr(e.Right, ln)
		if err != nil {
			return nil, err
		}
		return &ast.BinOp{Line: ln, Op: op, Left: left, Right: right}, nil

	case *syntax.UnaryOp:
		op, ok := ast.ParseOp(e.Op)
		if !ok || !op.IsUnary() {
			return nil, unsupported(e.Kind(), ln, "unknown unary operator %q", e.Op)
		}
		operand, err := r.expr(e.Operand, ln)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Line: ln, Op: op, Operand: operand}, nil

	case *syntax.Compare:
		if len(e.Ops) != 1 || len(e.Comparators) != 1 {
			return nil, unsupported(e.Kind(), ln, "chained comparisons are not supported")
		}
		switch e.Ops[0] {
		case "Is", "IsNot":
			return nil, unsupported(e.Kind(), ln, "'is' operator is not supported")
		case "In", "NotIn":
			return nil, unsupported(e.Kind(), ln, "'in' operator is not supported")
		}
		op, ok := ast.ParseOp(e.Ops[0])
		if !ok || !op.IsComparison() {
			return nil, unsupported(e.Kind(), ln, "unknown comparison operator %q", e.Ops[0])
		}
		left, err := r.expr(e.Left, ln)
		if err != nil {
			return nil, err
		}
		right, err := r.expr(e.Comparators[0], ln)
		if err != nil {
			return nil, err
		}
		return &ast.BinOp{Line: ln, Op: op, Left: left, Right: right}, nil

	case *syntax.Call:
		fn, ok := e.Func.(*syntax.Name)
		if !ok {
			return nil, unsupported(e.Kind(), ln, "only functions named at compile time can be called")
		}
		if len(e.Keywords) > 0 {
			return nil, unsupported(e.Kind(), ln, "keyword arguments are not supported")
		}
		args, err := r.exprs(e.Args, ln)
		if err != nil {
			return nil, err
		}
		return &ast.Call{Line: ln, Func: fn.ID, Args: args}, nil

	case *syntax.Name:
		return &ast.Name{Line: ln, ID: e.ID}, nil

	case *syntax.Constant:
		switch v := e.Value.(type) {
		case int64:
			return &ast.Constant{Line: ln, Value: ast.IntNumber(v)}, nil
		case float64:
			return &ast.Constant{Line: ln, Value: ast.FloatNumber(v)}, nil
		}
		return nil, unsupported(e.Kind(), ln, "only int and float constants are supported, %s not allowed", constantKind(e.Value))

	case *syntax.IfExp:
		cond, err := r.expr(e.Test, ln)
		if err != nil {
			return nil, err
		}
		then, err := r.expr(e.Body, ln)
		if err != nil {
			return nil, err
		}
		els, err := r.expr(e.OrElse, ln)
		if err != nil {
			return nil, err
		}
		return &ast.IfExpr{Line: ln, Cond: cond, Then: then, Else: els}, nil

	case *syntax.Subscript:
		return r.subscript(e, ln)

	default:
		return nil, unsupported(e.Kind(), ln, "%s expressions are not supported", e.Kind())
	}
}

func (r *reducer) subscript(s *syntax.Subscript, ln int) (ast.Expr, error) {
	ln = line(s, ln)
	name, ok := s.Value.(*syntax.Name)
	if !ok {
		return nil, unsupported(s.Kind(), ln, "only identifiers named at compile time can be subscripted")
	}
	idx, err := r.expr(s.Slice, ln)
	if err != nil {
		return nil, err
	}
	return &ast.Subscript{Line: ln, Name: name.ID, Index: idx}, nil
}

// arithmetic resolves a binary operator name that is neither a comparison
// nor a boolean operator.
func arithmetic(name, kind string, ln int) (ast.Op, error) {
	op, ok := ast.ParseOp(name)
	if !ok || op.IsComparison() || op.IsBoolean() || op.IsUnary() {
		return 0, unsupported(kind, ln, "unknown binary operator %q", name)
	}
	return op, nil
}

func constantKind(v any) string {
	switch v.(type) {
	case nil:
		return "None"
	case bool:
		return "bool"
	case string:
		return "str"
	}
	return fmt.Sprintf("%T", v)
}

// line prefers the node's own line and falls back to the enclosing one.
func line(n syntax.Node, fallback int) int {
	if p := n.Pos(); p > 0 {
		return p
	}
	return fallback
}
