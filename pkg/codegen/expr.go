package codegen

import (
	"github.com/chazu/subpy/pkg/ast"
	"github.com/chazu/subpy/pkg/bytecode"
)

// binaryOps maps the lowerable binary operators to their instruction.
var binaryOps = map[ast.Op]bytecode.Opcode{
	ast.Add:   bytecode.OpAdd,
	ast.Sub:   bytecode.OpSub,
	ast.Mult:  bytecode.OpMul,
	ast.Eq:    bytecode.OpEq,
	ast.NotEq: bytecode.OpNe,
	ast.Lt:    bytecode.OpLt,
	ast.Gt:    bytecode.OpGt,
	ast.LtE:   bytecode.OpLe,
	ast.GtE:   bytecode.OpGe,
}

var unaryOps = map[ast.Op]bytecode.Opcode{
	ast.USub:   bytecode.OpNeg,
	ast.UAdd:   bytecode.OpPos,
	ast.Invert: bytecode.OpInvert,
	ast.Not:    bytecode.OpNot,
}

func (g *generator) expr(e ast.Expr) error {
	if line := e.Pos(); line > 0 {
		g.b.SetLine(line)
	}

	switch e := e.(type) {
	case *ast.Name:
		return g.load(e.ID)

	case *ast.Constant:
		if e.Value.IsFloat {
			g.b.EmitLiteral(bytecode.Float(e.Value.F))
		} else {
			g.b.EmitLiteral(bytecode.Int(e.Value.I))
		}
		return nil

	case *ast.BinOp:
		if e.Op.IsBoolean() {
			return g.boolOp(e)
		}
		op, ok := binaryOps[e.Op]
		if !ok {
			return unsupportedOperator(e.Op, e.Line)
		}
		if err := g.expr(e.Left); err != nil {
			return err
		}
		if err := g.expr(e.Right); err != nil {
			return err
		}
		g.b.SetLine(e.Line)
		g.b.Emit(op, 0)
		return nil

	case *ast.UnaryOp:
		op, ok := unaryOps[e.Op]
		if !ok {
			return unsupportedOperator(e.Op, e.Line)
		}
		if err := g.expr(e.Operand); err != nil {
			return err
		}
		g.b.Emit(op, 0)
		return nil

	case *ast.Call:
		return g.call(e)

	case *ast.IfExpr:
		return g.ifExpr(e)

	case *ast.Subscript:
		return UnsupportedExpressionError.New("subscript read of %s[...] is not supported", e.Name).
			WithProperty(PropertyLine, e.Line)
	}
	return nil
}

func unsupportedOperator(op ast.Op, line int) error {
	return UnsupportedOperatorError.New("operator %s has no lowering", op).
		WithProperty(PropertyOperator, op.String()).
		WithProperty(PropertyLine, line)
}

// boolOp short-circuits and normalizes the result to 0 or 1.
//
//	left
//	JUMP_IF_FALSE short   (JUMP_IF_TRUE for or)
//	right
//	JUMP_IF_FALSE short
//	PUSH_LITERAL 1        (0 for or)
//	JUMP end
//	short: PUSH_LITERAL 0 (1 for or)
//	end:
func (g *generator) boolOp(e *ast.BinOp) error {
	branch, whole, short := bytecode.OpJumpIfFalse, int64(1), int64(0)
	if e.Op == ast.Or {
		branch, whole, short = bytecode.OpJumpIfTrue, 0, 1
	}

	if err := g.expr(e.Left); err != nil {
		return err
	}
	first := g.b.EmitJump(branch)
	if err := g.expr(e.Right); err != nil {
		return err
	}
	second := g.b.EmitJump(branch)

	g.b.SetLine(e.Line)
	g.b.EmitLiteral(bytecode.Int(whole))
	end := g.b.EmitJump(bytecode.OpJump)
	g.b.PatchJump(first)
	g.b.PatchJump(second)
	g.b.EmitLiteral(bytecode.Int(short))
	g.b.PatchJump(end)
	return nil
}

func (g *generator) ifExpr(e *ast.IfExpr) error {
	if err := g.expr(e.Cond); err != nil {
		return err
	}
	toElse := g.b.EmitJump(bytecode.OpJumpIfFalse)
	if err := g.expr(e.Then); err != nil {
		return err
	}
	toEnd := g.b.EmitJump(bytecode.OpJump)
	g.b.PatchJump(toElse)
	if err := g.expr(e.Else); err != nil {
		return err
	}
	g.b.PatchJump(toEnd)
	return nil
}

// call lowers a user function call or a built-in operation.
//
// User calls move their arguments to the call stack last-first so that
// argument k sits at a fixed distance below the callee's frame base.
// Built-ins take their arguments from the operand stack in source order.
func (g *generator) call(e *ast.Call) error {
	if callee, ok := g.table.Function(e.Func); ok {
		if want := len(callee.Args()); want != len(e.Args) {
			return arityError(e, want)
		}
		for i := len(e.Args) - 1; i >= 0; i-- {
			if err := g.expr(e.Args[i]); err != nil {
				return err
			}
			g.b.Emit(bytecode.OpMoveToCallStack, 0)
		}
		g.b.SetLine(e.Line)
		g.b.EmitCall(e.Func)
		return nil
	}

	arity, ok := g.builtin(e.Func)
	if !ok {
		return UnknownCallableError.New("call to unknown function %q", e.Func).
			WithProperty(PropertyCallee, e.Func).
			WithProperty(PropertyLine, e.Line)
	}
	if arity != len(e.Args) {
		return arityError(e, arity)
	}
	for _, arg := range e.Args {
		if err := g.expr(arg); err != nil {
			return err
		}
	}
	g.b.SetLine(e.Line)
	g.b.EmitBuiltin(e.Func, arity)
	return nil
}

func arityError(e *ast.Call, want int) error {
	return ArityError.New("%s() takes %d argument(s) but %d were given", e.Func, want, len(e.Args)).
		WithProperty(PropertyCallee, e.Func).
		WithProperty(PropertyExpected, want).
		WithProperty(PropertyActual, len(e.Args)).
		WithProperty(PropertyLine, e.Line)
}
