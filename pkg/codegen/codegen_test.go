package codegen

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/joomcode/errorx"

	"github.com/chazu/subpy/pkg/ast"
	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/pkg/symbols"
)

var testBuiltins = map[string]int{"halt": 0, "print": 1}

func typ(t ast.Type) *ast.Type { return &t }

func name(id string) *ast.Name { return &ast.Name{ID: id} }

func num(v int64) *ast.Constant { return &ast.Constant{Value: ast.IntNumber(v)} }

func bin(op ast.Op, l, r ast.Expr) *ast.BinOp { return &ast.BinOp{Op: op, Left: l, Right: r} }

func call(fn string, args ...ast.Expr) *ast.Call { return &ast.Call{Func: fn, Args: args} }

func decl(id string, v ast.Expr) *ast.Assign {
	return &ast.Assign{Target: name(id), Value: v, Annotation: typ(ast.Int)}
}

func assign(id string, v ast.Expr) *ast.Assign { return &ast.Assign{Target: name(id), Value: v} }

func expr(e ast.Expr) *ast.ExprStmt { return &ast.ExprStmt{Value: e} }

func fn(fnName string, argNames []string, body ...ast.Stmt) *ast.FunctionDef {
	args := make([]*ast.Argument, len(argNames))
	for i, n := range argNames {
		args[i] = &ast.Argument{Name: n, Annotation: ast.Int}
	}
	return &ast.FunctionDef{Name: fnName, Args: args, Body: body, ReturnType: ast.Int}
}

func module(body ...ast.TopLevel) *ast.Module { return &ast.Module{Body: body} }

func generate(t *testing.T, m *ast.Module) (*bytecode.Program, error) {
	t.Helper()
	tab, err := symbols.Build(m)
	if err != nil {
		t.Fatalf("symbols.Build: %v", err)
	}
	return Generate(m, tab, testBuiltins, nil)
}

func mustGenerate(t *testing.T, m *ast.Module) *bytecode.Program {
	t.Helper()
	p, err := generate(t, m)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return p
}

func listing(p *bytecode.Program) []string {
	out := make([]string, p.Len())
	for i, in := range p.Instructions() {
		out[i] = in.String()
	}
	return out
}

func checkListing(t *testing.T, p *bytecode.Program, want []string) {
	t.Helper()
	if diff := cmp.Diff(want, listing(p)); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestIfElseOverGlobals(t *testing.T) {
	p := mustGenerate(t, module(
		decl("x", num(10)),
		decl("y", num(100)),
		&ast.If{
			Cond:   bin(ast.Gt, name("x"), name("y")),
			Body:   []ast.Stmt{expr(call("print", num(1)))},
			OrElse: []ast.Stmt{expr(call("print", num(2)))},
		},
	))

	checkListing(t, p, []string{
		"GLOBAL_ALLOC 2",
		"PUSH_LITERAL 10",
		"POP_GLOBAL 0",
		"PUSH_LITERAL 100",
		"POP_GLOBAL 1",
		"PUSH_GLOBAL 0",
		"PUSH_GLOBAL 1",
		"GT",
		"JUMP_IF_FALSE 12",
		"PUSH_LITERAL 1",
		"BUILTIN print/1",
		"JUMP 14",
		"PUSH_LITERAL 2",
		"BUILTIN print/1",
		"BUILTIN halt/0",
	})
	if p.GlobalCount() != 2 {
		t.Errorf("GlobalCount = %d, want 2", p.GlobalCount())
	}
}

func TestNestedCallsResolveToEntries(t *testing.T) {
	p := mustGenerate(t, module(
		fn("stuff", []string{"l"}, &ast.Return{Value: name("l")}),
		fn("thing", []string{"l", "k"}, &ast.Return{Value: bin(ast.Add, name("l"), name("k"))}),
		expr(call("thing", num(4), call("stuff", num(67)))),
	))

	checkListing(t, p, []string{
		"PUSH_LITERAL 67",
		"MOVE_TO_CALL_STACK",
		"CALL 8 <stuff>",
		"MOVE_TO_CALL_STACK",
		"PUSH_LITERAL 4",
		"MOVE_TO_CALL_STACK",
		"CALL 11 <thing>",
		"BUILTIN halt/0",
		"LOCAL_ALLOC 0",
		"PUSH_ARG 0",
		"RETURN 1",
		"LOCAL_ALLOC 0",
		"PUSH_ARG 0",
		"PUSH_ARG 1",
		"ADD",
		"RETURN 2",
	})

	want := []bytecode.Entry{
		{Name: "stuff", Offset: 8, Args: 1, Locals: 0},
		{Name: "thing", Offset: 11, Args: 2, Locals: 0},
	}
	if diff := cmp.Diff(want, p.Entries()); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}
}

func TestBreakSkipsWhileElse(t *testing.T) {
	p := mustGenerate(t, module(
		decl("i", num(0)),
		&ast.While{
			Cond: bin(ast.Lt, name("i"), num(3)),
			Body: []ast.Stmt{
				assign("i", bin(ast.Add, name("i"), num(1))),
				&ast.If{Cond: bin(ast.Eq, name("i"), num(2)), Body: []ast.Stmt{&ast.Break{}}},
			},
			OrElse: []ast.Stmt{expr(call("print", num(0)))},
		},
		expr(call("print", name("i"))),
	))

	checkListing(t, p, []string{
		"GLOBAL_ALLOC 1",
		"PUSH_LITERAL 0",
		"POP_GLOBAL 0",
		"PUSH_GLOBAL 0", // 3: condition
		"PUSH_LITERAL 3",
		"LT",
		"JUMP_IF_FALSE 17",
		"PUSH_GLOBAL 0",
		"PUSH_LITERAL 1",
		"ADD",
		"POP_GLOBAL 0",
		"PUSH_GLOBAL 0",
		"PUSH_LITERAL 2",
		"EQ",
		"JUMP_IF_FALSE 16",
		"JUMP 19", // break: past the else body
		"JUMP 3",
		"PUSH_LITERAL 0", // 17: else body
		"BUILTIN print/1",
		"PUSH_GLOBAL 0", // 19
		"BUILTIN print/1",
		"BUILTIN halt/0",
	})
}

func TestContinueTargetsCondition(t *testing.T) {
	p := mustGenerate(t, module(
		decl("i", num(0)),
		&ast.While{
			Cond: bin(ast.Lt, name("i"), num(3)),
			Body: []ast.Stmt{
				assign("i", bin(ast.Add, name("i"), num(1))),
				&ast.Continue{},
			},
		},
	))
	// The continue is the instruction just before the back edge.
	cont := p.At(p.Len() - 3)
	if cont.Op != bytecode.OpJump || cont.Operand != 3 {
		t.Errorf("continue = %v, want JUMP 3", cont)
	}
}

func TestNestedLoopsKeepTheirOwnBreaks(t *testing.T) {
	p := mustGenerate(t, module(
		decl("i", num(0)),
		&ast.While{
			Cond: bin(ast.Lt, name("i"), num(3)),
			Body: []ast.Stmt{
				&ast.While{Cond: name("i"), Body: []ast.Stmt{&ast.Break{}}},
				assign("i", bin(ast.Add, name("i"), num(1))),
			},
		},
	))

	checkListing(t, p, []string{
		"GLOBAL_ALLOC 1",
		"PUSH_LITERAL 0",
		"POP_GLOBAL 0",
		"PUSH_GLOBAL 0", // 3: outer condition
		"PUSH_LITERAL 3",
		"LT",
		"JUMP_IF_FALSE 16",
		"PUSH_GLOBAL 0", // 7: inner condition
		"JUMP_IF_FALSE 11",
		"JUMP 11", // inner break
		"JUMP 7",
		"PUSH_GLOBAL 0", // 11
		"PUSH_LITERAL 1",
		"ADD",
		"POP_GLOBAL 0",
		"JUMP 3",
		"BUILTIN halt/0",
	})
}

func TestForRangeLowering(t *testing.T) {
	p := mustGenerate(t, module(
		fn("sum", []string{"n"},
			decl("total", num(0)),
			&ast.For{Target: name("i"), Start: 0, Stop: 3, Step: 1, Body: []ast.Stmt{
				assign("total", bin(ast.Add, name("total"), name("i"))),
			}},
			&ast.Return{Value: name("total")},
		),
	))

	checkListing(t, p, []string{
		"BUILTIN halt/0",
		"LOCAL_ALLOC 2",
		"PUSH_LITERAL 0",
		"POP_LOCAL 0",
		"PUSH_LITERAL 0",
		"POP_LOCAL 1",
		"PUSH_LOCAL 1", // 6: condition
		"PUSH_LITERAL 3",
		"LT",
		"JUMP_IF_FALSE 19",
		"PUSH_LOCAL 0",
		"PUSH_LOCAL 1",
		"ADD",
		"POP_LOCAL 0",
		"PUSH_LOCAL 1", // 14: increment
		"PUSH_LITERAL 1",
		"ADD",
		"POP_LOCAL 1",
		"JUMP 6",
		"PUSH_LOCAL 0",
		"RETURN 1",
	})
}

func TestNegativeStepCountsDown(t *testing.T) {
	p := mustGenerate(t, module(
		&ast.For{Target: name("i"), Start: 3, Stop: 0, Step: -1, Body: []ast.Stmt{&ast.Pass{}}},
	))
	if got := p.At(5).Op; got != bytecode.OpGt {
		t.Errorf("loop test = %s, want GT", got)
	}
}

func TestImplicitReturn(t *testing.T) {
	p := mustGenerate(t, module(
		fn("noop", []string{"a", "b"}, &ast.Pass{}),
	))
	last := p.At(p.Len() - 1)
	if last.Op != bytecode.OpReturn || last.Operand != 2 {
		t.Errorf("last instruction = %v, want RETURN 2", last)
	}
}

func TestBooleanOperatorsShortCircuit(t *testing.T) {
	p := mustGenerate(t, module(
		decl("a", num(1)),
		decl("b", num(0)),
		expr(call("print", bin(ast.And, name("a"), name("b")))),
		expr(call("print", bin(ast.Or, name("a"), name("b")))),
	))

	checkListing(t, p, []string{
		"GLOBAL_ALLOC 2",
		"PUSH_LITERAL 1",
		"POP_GLOBAL 0",
		"PUSH_LITERAL 0",
		"POP_GLOBAL 1",
		"PUSH_GLOBAL 0",
		"JUMP_IF_FALSE 11",
		"PUSH_GLOBAL 1",
		"JUMP_IF_FALSE 11",
		"PUSH_LITERAL 1",
		"JUMP 12",
		"PUSH_LITERAL 0",
		"BUILTIN print/1",
		"PUSH_GLOBAL 0",
		"JUMP_IF_TRUE 19",
		"PUSH_GLOBAL 1",
		"JUMP_IF_TRUE 19",
		"PUSH_LITERAL 0",
		"JUMP 20",
		"PUSH_LITERAL 1",
		"BUILTIN print/1",
		"BUILTIN halt/0",
	})
}

func TestIfExprAndUnary(t *testing.T) {
	p := mustGenerate(t, module(
		decl("a", &ast.UnaryOp{Op: ast.USub, Operand: num(2)}),
		expr(call("print", &ast.IfExpr{
			Cond: &ast.UnaryOp{Op: ast.Not, Operand: name("a")},
			Then: &ast.Constant{Value: ast.FloatNumber(1.5)},
			Else: &ast.UnaryOp{Op: ast.Invert, Operand: name("a")},
		})),
	))

	checkListing(t, p, []string{
		"GLOBAL_ALLOC 1",
		"PUSH_LITERAL 2",
		"NEG",
		"POP_GLOBAL 0",
		"PUSH_GLOBAL 0",
		"NOT",
		"JUMP_IF_FALSE 9",
		"PUSH_LITERAL 1.5",
		"JUMP 11",
		"PUSH_GLOBAL 0",
		"INVERT",
		"BUILTIN print/1",
		"BUILTIN halt/0",
	})
}

func TestFrameStorageClasses(t *testing.T) {
	p := mustGenerate(t, module(
		decl("g", num(1)),
		fn("f", []string{"a", "b"},
			decl("x", name("b")),
			assign("a", name("g")),
			assign("g", bin(ast.Mult, name("a"), name("x"))),
			&ast.Return{Value: name("x")},
		),
		expr(call("f", num(1), num(2))),
	))

	e, ok := p.Entry("f")
	if !ok {
		t.Fatal("no entry for f")
	}
	var body []string
	for _, in := range p.Instructions()[e.Offset:] {
		body = append(body, in.String())
	}
	want := []string{
		"LOCAL_ALLOC 1",
		"PUSH_ARG 1",
		"POP_LOCAL 0",
		"PUSH_GLOBAL 0",
		"POP_ARG 0",
		"PUSH_ARG 0",
		"PUSH_LOCAL 0",
		"MUL",
		"POP_GLOBAL 0",
		"PUSH_LOCAL 0",
		"RETURN 2",
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("body (-want +got):\n%s", diff)
	}
}

func TestAssertEmitsBuiltin(t *testing.T) {
	p := mustGenerate(t, module(&ast.Assert{Test: num(1)}))
	checkListing(t, p, []string{
		"PUSH_LITERAL 1",
		"BUILTIN assert/1",
		"BUILTIN halt/0",
	})
}

func TestInstructionsCarryLines(t *testing.T) {
	p := mustGenerate(t, module(
		&ast.Assign{Line: 3, Target: &ast.Name{Line: 3, ID: "x"}, Value: &ast.Constant{Line: 3, Value: ast.IntNumber(1)}, Annotation: typ(ast.Int)},
		&ast.ExprStmt{Line: 4, Value: &ast.Call{Line: 4, Func: "print", Args: []ast.Expr{&ast.Name{Line: 4, ID: "x"}}}},
	))
	for i, want := range []int{0, 3, 3, 4, 4} {
		if got := p.At(i).Line; got != want {
			t.Errorf("instruction %d line = %d, want %d", i, got, want)
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		mod  *ast.Module
		typ  *errorx.Type
	}{
		{
			name: "unknown callable",
			mod:  module(expr(&ast.Call{Line: 2, Func: "nope"})),
			typ:  UnknownCallableError,
		},
		{
			name: "user arity",
			mod: module(
				fn("two", []string{"a", "b"}, &ast.Return{Value: name("a")}),
				expr(&ast.Call{Line: 5, Func: "two", Args: []ast.Expr{num(1)}}),
			),
			typ: ArityError,
		},
		{
			name: "builtin arity",
			mod:  module(expr(&ast.Call{Line: 1, Func: "print", Args: []ast.Expr{num(1), num(2)}})),
			typ:  ArityError,
		},
		{
			name: "division",
			mod:  module(expr(&ast.BinOp{Line: 1, Op: ast.Div, Left: num(1), Right: num(2)})),
			typ:  UnsupportedOperatorError,
		},
		{
			name: "modulo",
			mod:  module(expr(bin(ast.Mod, num(1), num(2)))),
			typ:  UnsupportedOperatorError,
		},
		{
			name: "subscript assignment",
			mod: module(
				decl("x", num(0)),
				&ast.Assign{Line: 2, Target: &ast.Subscript{Name: "x", Index: num(0)}, Value: num(1)},
			),
			typ: SubscriptAssignmentUnsupportedError,
		},
		{
			name: "subscript read",
			mod: module(
				decl("x", num(0)),
				expr(&ast.Subscript{Line: 2, Name: "x", Index: num(0)}),
			),
			typ: UnsupportedExpressionError,
		},
		{
			name: "break outside loop",
			mod:  module(&ast.Break{Line: 1}),
			typ:  LoopControlError,
		},
		{
			name: "continue in while else",
			mod: module(
				&ast.While{Cond: num(0), OrElse: []ast.Stmt{&ast.Continue{Line: 3}}},
			),
			typ: LoopControlError,
		},
		{
			name: "function shadows builtin",
			mod:  module(fn("print", []string{"a"}, &ast.Return{Value: name("a")})),
			typ:  CallableConflictError,
		},
		{
			name: "module level return",
			mod:  module(&ast.Return{Line: 1}),
			typ:  ReturnOutsideFunctionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generate(t, tt.mod)
			if !errorx.IsOfType(err, tt.typ) {
				t.Fatalf("err = %v, want %s", err, tt.typ)
			}
		})
	}
}

func TestArityErrorProperties(t *testing.T) {
	_, err := generate(t, module(
		fn("two", []string{"a", "b"}, &ast.Return{Value: name("a")}),
		expr(&ast.Call{Line: 7, Func: "two", Args: []ast.Expr{num(1), num(2), num(3)}}),
	))
	if !errorx.IsOfType(err, ArityError) {
		t.Fatalf("err = %v, want ArityError", err)
	}

	props := map[string]struct {
		p    errorx.Property
		want any
	}{
		"expected": {PropertyExpected, 2},
		"actual":   {PropertyActual, 3},
		"line":     {PropertyLine, 7},
		"callee":   {PropertyCallee, "two"},
	}
	for label, tc := range props {
		got, ok := errorx.ExtractProperty(err, tc.p)
		if !ok || got != tc.want {
			t.Errorf("%s = %v (present %v), want %v", label, got, ok, tc.want)
		}
	}
}

func TestBuiltinFunctionsAreCallable(t *testing.T) {
	m := module(expr(call("clock")))
	tab, err := symbols.Build(m)
	if err != nil {
		t.Fatal(err)
	}
	p, err := Generate(m, tab, testBuiltins, map[string]int{"clock": 0})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	checkListing(t, p, []string{"BUILTIN clock/0", "BUILTIN halt/0"})
}
