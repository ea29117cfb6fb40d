package vm

import (
	"bytes"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"

	"github.com/chazu/subpy/pkg/ast"
	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/pkg/codegen"
	"github.com/chazu/subpy/pkg/symbols"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var defaultBuiltins = map[string]int{"halt": 0, "print": 1}

func name(id string) *ast.Name { return &ast.Name{ID: id} }

func num(v int64) *ast.Constant { return &ast.Constant{Value: ast.IntNumber(v)} }

func bin(op ast.Op, l, r ast.Expr) *ast.BinOp { return &ast.BinOp{Op: op, Left: l, Right: r} }

func call(fn string, args ...ast.Expr) *ast.Call { return &ast.Call{Func: fn, Args: args} }

func show(e ast.Expr) *ast.ExprStmt { return &ast.ExprStmt{Value: call("print", e)} }

func decl(id string, v ast.Expr) *ast.Assign {
	t := ast.Int
	return &ast.Assign{Target: name(id), Value: v, Annotation: &t}
}

func assign(id string, v ast.Expr) *ast.Assign { return &ast.Assign{Target: name(id), Value: v} }

func fn(fnName string, argNames []string, body ...ast.Stmt) *ast.FunctionDef {
	args := make([]*ast.Argument, len(argNames))
	for i, n := range argNames {
		args[i] = &ast.Argument{Name: n, Annotation: ast.Int}
	}
	return &ast.FunctionDef{Name: fnName, Args: args, Body: body, ReturnType: ast.Int}
}

func compile(t *testing.T, body ...ast.TopLevel) *bytecode.Program {
	t.Helper()
	m := &ast.Module{Body: body}
	tab, err := symbols.Build(m)
	if err != nil {
		t.Fatalf("symbols.Build: %v", err)
	}
	p, err := codegen.Generate(m, tab, defaultBuiltins, nil)
	if err != nil {
		t.Fatalf("codegen.Generate: %v", err)
	}
	return p
}

func run(t *testing.T, p *bytecode.Program, opts ...Option) *Result {
	t.Helper()
	res, err := New(opts...).Run(p)
	if err != nil {
		t.Fatalf("Run: %v\n%s", err, p.Disassemble())
	}
	return res
}

func ints(vs ...int64) []bytecode.Value {
	out := make([]bytecode.Value, len(vs))
	for i, v := range vs {
		out[i] = bytecode.Int(v)
	}
	return out
}

// ---------------------------------------------------------------------------
// End-to-end programs
// ---------------------------------------------------------------------------

func TestIfElsePrintsTwo(t *testing.T) {
	p := compile(t,
		decl("x", num(10)),
		decl("y", num(100)),
		&ast.If{
			Cond:   bin(ast.Gt, name("x"), name("y")),
			Body:   []ast.Stmt{show(num(1))},
			OrElse: []ast.Stmt{show(num(2))},
		},
	)

	var out bytes.Buffer
	res := run(t, p, WithOutput(&out))

	if out.String() != "2\n" {
		t.Errorf("output = %q, want %q", out.String(), "2\n")
	}
	if diff := cmp.Diff(ints(2), res.Output); diff != "" {
		t.Errorf("recorded output (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ints(10, 100), res.Globals); diff != "" {
		t.Errorf("globals (-want +got):\n%s", diff)
	}
}

func TestNestedCallsReturn71(t *testing.T) {
	p := compile(t,
		fn("stuff", []string{"l"}, &ast.Return{Value: name("l")}),
		fn("thing", []string{"l", "k"}, &ast.Return{Value: bin(ast.Add, name("l"), name("k"))}),
		&ast.ExprStmt{Value: call("thing", num(4), call("stuff", num(67)))},
	)

	res := run(t, p)
	if len(res.Output) != 0 {
		t.Errorf("unexpected output %v", res.Output)
	}
	top, ok := res.Top()
	if !ok || top != bytecode.Int(71) {
		t.Errorf("stack top = %v (present %v), want 71", top, ok)
	}
	if len(res.Stack) != 1 {
		t.Errorf("stack = %v, want exactly the result", res.Stack)
	}
}

func TestBreakSkipsElseAtRuntime(t *testing.T) {
	p := compile(t,
		decl("i", num(0)),
		&ast.While{
			Cond: bin(ast.Lt, name("i"), num(5)),
			Body: []ast.Stmt{
				assign("i", bin(ast.Add, name("i"), num(1))),
				&ast.If{Cond: bin(ast.Eq, name("i"), num(2)), Body: []ast.Stmt{&ast.Break{}}},
			},
			OrElse: []ast.Stmt{show(num(-1))},
		},
		show(name("i")),
	)
	res := run(t, p)
	if diff := cmp.Diff(ints(2), res.Output); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestWhileElseRunsWithoutBreak(t *testing.T) {
	p := compile(t,
		decl("i", num(0)),
		&ast.While{
			Cond:   bin(ast.Lt, name("i"), num(3)),
			Body:   []ast.Stmt{assign("i", bin(ast.Add, name("i"), num(1)))},
			OrElse: []ast.Stmt{show(num(-1))},
		},
		show(name("i")),
	)
	res := run(t, p)
	if diff := cmp.Diff(ints(-1, 3), res.Output); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestRecursiveFactorial(t *testing.T) {
	p := compile(t,
		fn("fact", []string{"n"},
			&ast.If{
				Cond: bin(ast.LtE, name("n"), num(1)),
				Body: []ast.Stmt{&ast.Return{Value: num(1)}},
			},
			&ast.Return{Value: bin(ast.Mult, name("n"),
				call("fact", bin(ast.Sub, name("n"), num(1))))},
		),
		show(call("fact", num(10))),
	)
	res := run(t, p)
	if diff := cmp.Diff(ints(3628800), res.Output); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestForRangeWithContinue(t *testing.T) {
	p := compile(t,
		fn("odds", nil,
			decl("total", num(0)),
			&ast.For{Target: name("i"), Start: 0, Stop: 10, Step: 1, Body: []ast.Stmt{
				&ast.If{
					Cond: bin(ast.Eq, bin(ast.Sub, name("i"), num(1)),
						bin(ast.Mult, num(2), call("half", name("i")))),
					Body: []ast.Stmt{&ast.Continue{}},
				},
				assign("total", bin(ast.Add, name("total"), name("i"))),
			}},
			&ast.Return{Value: name("total")},
		),
		// half(n) is n/2 rounded down.
		fn("half", []string{"n"},
			decl("h", num(0)),
			&ast.While{
				Cond: bin(ast.GtE, name("n"), num(2)),
				Body: []ast.Stmt{
					assign("n", bin(ast.Sub, name("n"), num(2))),
					assign("h", bin(ast.Add, name("h"), num(1))),
				},
			},
			&ast.Return{Value: name("h")},
		),
		show(call("odds")),
	)
	res := run(t, p)
	// i-1 == 2*half(i) only for odd i, so evens are summed: 0+2+4+6+8.
	if diff := cmp.Diff(ints(20), res.Output); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestCountdown(t *testing.T) {
	p := compile(t,
		&ast.For{Target: name("i"), Start: 3, Stop: 0, Step: -1, Body: []ast.Stmt{show(name("i"))}},
	)
	res := run(t, p)
	if diff := cmp.Diff(ints(3, 2, 1), res.Output); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestBooleanAndIfExpr(t *testing.T) {
	p := compile(t,
		decl("a", num(3)),
		decl("b", num(0)),
		show(bin(ast.And, name("a"), name("b"))),
		show(bin(ast.Or, name("b"), name("a"))),
		show(&ast.IfExpr{Cond: name("b"), Then: num(10), Else: num(20)}),
		show(&ast.UnaryOp{Op: ast.Not, Operand: name("a")}),
		show(&ast.UnaryOp{Op: ast.Invert, Operand: name("a")}),
	)
	res := run(t, p)
	if diff := cmp.Diff(ints(0, 1, 20, 0, -4), res.Output); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestFloatPromotion(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitLiteral(bytecode.Int(2))
	b.EmitLiteral(bytecode.Float(0.5))
	b.Emit(bytecode.OpMul, 0)
	b.EmitBuiltin("print", 1)
	b.EmitLiteral(bytecode.Int(7))
	b.EmitLiteral(bytecode.Int(2))
	b.Emit(bytecode.OpSub, 0)
	b.EmitBuiltin("print", 1)
	b.EmitLiteral(bytecode.Float(1))
	b.EmitLiteral(bytecode.Int(1))
	b.Emit(bytecode.OpEq, 0)
	b.EmitBuiltin("print", 1)
	b.EmitLiteral(bytecode.Float(2.9))
	b.Emit(bytecode.OpFloatToInt, 0)
	b.Emit(bytecode.OpIntToFloat, 0)
	b.EmitBuiltin("print", 1)
	p, err := b.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	run(t, p, WithOutput(&out))
	if want := "1.0\n5\n1\n2.0\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestExpressionStatementsStayOnStack(t *testing.T) {
	p := compile(t,
		&ast.ExprStmt{Value: num(1)},
		&ast.ExprStmt{Value: bin(ast.Add, num(2), num(3))},
	)
	res := run(t, p)
	if diff := cmp.Diff(ints(1, 5), res.Stack); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Termination
// ---------------------------------------------------------------------------

func TestRunPastEndTerminates(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitLiteral(bytecode.Int(9))
	p, _ := b.Finalize()
	res := run(t, p)
	if res.Steps != 1 {
		t.Errorf("Steps = %d, want 1", res.Steps)
	}
}

func TestOutermostReturnHalts(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitLiteral(bytecode.Int(1))
	b.Emit(bytecode.OpReturn, 0)
	b.EmitBuiltin("print", 1)
	p, _ := b.Finalize()
	res := run(t, p)
	if len(res.Output) != 0 {
		t.Errorf("ran past the outermost return: %v", res.Output)
	}
}

func TestStepLimit(t *testing.T) {
	p := compile(t,
		&ast.While{Cond: num(1), Body: []ast.Stmt{&ast.Pass{}}},
	)
	_, err := New(WithStepLimit(100)).Run(p)
	if !errorx.IsOfType(err, StepLimitExceeded) {
		t.Fatalf("err = %v, want StepLimitExceeded", err)
	}
}

// ---------------------------------------------------------------------------
// Faults
// ---------------------------------------------------------------------------

func TestFaults(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *bytecode.Builder)
		want  *errorx.Type
	}{
		{"operand underflow", func(b *bytecode.Builder) {
			b.Emit(bytecode.OpAdd, 0)
		}, OperandStackUnderflow},
		{"move from empty stack", func(b *bytecode.Builder) {
			b.Emit(bytecode.OpMoveToCallStack, 0)
		}, OperandStackUnderflow},
		{"builtin underflow", func(b *bytecode.Builder) {
			b.EmitBuiltin("print", 1)
		}, OperandStackUnderflow},
		{"local outside function", func(b *bytecode.Builder) {
			b.Emit(bytecode.OpPushLocal, 0)
		}, SlotOutOfRange},
		{"local past frame", func(b *bytecode.Builder) {
			b.Emit(bytecode.OpLocalAlloc, 1)
			b.Emit(bytecode.OpPushLocal, 1)
		}, SlotOutOfRange},
		{"argument without caller", func(b *bytecode.Builder) {
			b.Emit(bytecode.OpLocalAlloc, 0)
			b.Emit(bytecode.OpPushArg, 0)
		}, SlotOutOfRange},
		{"oversized global alloc", func(b *bytecode.Builder) {
			b.Emit(bytecode.OpGlobalAlloc, math.MaxInt)
		}, SlotOutOfRange},
		{"oversized local alloc", func(b *bytecode.Builder) {
			b.Emit(bytecode.OpLocalAlloc, bytecode.MaxSlots+1)
		}, SlotOutOfRange},
		{"global before alloc", func(b *bytecode.Builder) {
			b.Emit(bytecode.OpPushGlobal, 0)
		}, SlotOutOfRange},
		{"return without link", func(b *bytecode.Builder) {
			b.Emit(bytecode.OpLocalAlloc, 0)
			b.Emit(bytecode.OpReturn, 0)
		}, CallStackUnderflow},
		{"frame without link", func(b *bytecode.Builder) {
			b.EmitLiteral(bytecode.Int(1))
			b.Emit(bytecode.OpMoveToCallStack, 0)
			b.Emit(bytecode.OpLocalAlloc, 0)
			b.Emit(bytecode.OpReturn, 1)
		}, FrameMismatch},
		{"jump past end", func(b *bytecode.Builder) {
			j := b.EmitJump(bytecode.OpJump)
			b.PatchJumpTo(j, 10)
		}, BadJumpTarget},
		{"call into non-entry", func(b *bytecode.Builder) {
			b.EmitCall("f")
			_ = b.MarkEntry("f", 0, 0)
			b.Emit(bytecode.OpAdd, 0)
		}, BadCallTarget},
		{"unknown builtin", func(b *bytecode.Builder) {
			b.EmitBuiltin("launch", 0)
		}, UnknownBuiltin},
		{"invert float", func(b *bytecode.Builder) {
			b.EmitLiteral(bytecode.Float(1))
			b.Emit(bytecode.OpInvert, 0)
		}, TypeFault},
		{"assertion", func(b *bytecode.Builder) {
			b.EmitLiteral(bytecode.Int(0))
			b.EmitBuiltin("assert", 1)
		}, AssertionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bytecode.NewBuilder()
			tt.build(b)
			p, err := b.Finalize()
			if err != nil {
				t.Fatal(err)
			}
			_, err = New().Run(p)
			if !errorx.IsOfType(err, tt.want) {
				t.Fatalf("err = %v, want %s", err, tt.want)
			}
			if typeName := errorx.GetTypeName(err); !strings.HasPrefix(typeName, "vm.fault.") {
				t.Errorf("fault type %q outside vm.fault", typeName)
			}
		})
	}
}

func TestFaultCarriesLocation(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetLine(12)
	b.EmitLiteral(bytecode.Int(0))
	b.EmitBuiltin("assert", 1)
	p, _ := b.Finalize()

	_, err := New().Run(p)
	for prop, want := range map[errorx.Property]any{
		PropertyPC:     1,
		PropertyOpcode: "BUILTIN",
		PropertyLine:   12,
	} {
		if got, ok := errorx.ExtractProperty(err, prop); !ok || got != want {
			t.Errorf("property = %v (present %v), want %v", got, ok, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Options and isolation
// ---------------------------------------------------------------------------

func TestCustomBuiltin(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitLiteral(bytecode.Int(3))
	b.EmitLiteral(bytecode.Int(4))
	b.EmitBuiltin("hypot2", 2)
	p, _ := b.Finalize()

	hypot2 := func(args []bytecode.Value) (bytecode.Value, bool, error) {
		return bytecode.Int(args[0].I*args[0].I + args[1].I*args[1].I), true, nil
	}
	res := run(t, p, WithBuiltin("hypot2", hypot2))
	if diff := cmp.Diff(ints(25), res.Stack); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
}

func TestTraceLogsEachStep(t *testing.T) {
	p := compile(t, show(num(5)))
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(prev)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.TraceLevel)
	res := run(t, p, WithTrace(logger))

	lines := strings.Count(buf.String(), "\n")
	if lines != res.Steps {
		t.Errorf("trace has %d lines for %d steps", lines, res.Steps)
	}
	if !strings.Contains(buf.String(), `"op":"BUILTIN print/1"`) {
		t.Errorf("trace missing print step:\n%s", buf.String())
	}
}

func TestRunsAreIsolated(t *testing.T) {
	p := compile(t,
		decl("g", num(0)),
		&ast.For{Target: name("i"), Start: 0, Stop: 50, Step: 1, Body: []ast.Stmt{
			assign("g", bin(ast.Add, name("g"), name("i"))),
		}},
		show(name("g")),
	)
	machine := New()

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = machine.Run(p)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if errs[i] != nil {
			t.Fatalf("run %d: %v", i, errs[i])
		}
		if diff := cmp.Diff(ints(1225), res.Output); diff != "" {
			t.Errorf("run %d output (-want +got):\n%s", i, diff)
		}
	}
}
