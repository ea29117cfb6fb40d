package codegen

import (
	"github.com/chazu/subpy/pkg/ast"
	"github.com/chazu/subpy/pkg/bytecode"
)

func (g *generator) stmts(list []ast.Stmt) error {
	for _, s := range list {
		if err := g.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) stmt(s ast.Stmt) error {
	g.b.SetLine(s.Pos())

	switch s := s.(type) {
	case *ast.Assign:
		return g.assign(s)

	case *ast.Return:
		if g.scope == nil {
			return ReturnOutsideFunctionError.New("return outside a function").WithProperty(PropertyLine, s.Line)
		}
		if s.Value != nil {
			if err := g.expr(s.Value); err != nil {
				return err
			}
		}
		g.b.Emit(bytecode.OpReturn, g.argc)
		return nil

	case *ast.If:
		return g.ifStmt(s)

	case *ast.While:
		return g.whileStmt(s)

	case *ast.For:
		return g.forStmt(s)

	case *ast.Break:
		return g.loopJump("break", s.Line, func(l *loopContext, j int) { l.breaks = append(l.breaks, j) })

	case *ast.Continue:
		return g.loopJump("continue", s.Line, func(l *loopContext, j int) { l.continues = append(l.continues, j) })

	case *ast.Assert:
		if err := g.expr(s.Test); err != nil {
			return err
		}
		g.b.EmitBuiltin(builtinAssert, 1)
		return nil

	case *ast.ExprStmt:
		// There is no discard instruction: the value stays on the operand stack.
		return g.expr(s.Value)

	case *ast.Pass:
		return nil
	}
	return nil
}

func (g *generator) assign(s *ast.Assign) error {
	switch t := s.Target.(type) {
	case *ast.Name:
		if err := g.expr(s.Value); err != nil {
			return err
		}
		return g.store(t.ID)
	case *ast.Subscript:
		return SubscriptAssignmentUnsupportedError.New("assignment to %s[...] is not supported", t.Name).
			WithProperty(PropertyLine, s.Line)
	}
	return nil
}

// ifStmt:
//
//	cond
//	JUMP_IF_FALSE else
//	body
//	JUMP end        (only with an else body)
//	else: orelse
//	end:
func (g *generator) ifStmt(s *ast.If) error {
	if err := g.expr(s.Cond); err != nil {
		return err
	}
	toElse := g.b.EmitJump(bytecode.OpJumpIfFalse)
	if err := g.stmts(s.Body); err != nil {
		return err
	}
	if len(s.OrElse) == 0 {
		g.b.PatchJump(toElse)
		return nil
	}
	toEnd := g.b.EmitJump(bytecode.OpJump)
	g.b.PatchJump(toElse)
	if err := g.stmts(s.OrElse); err != nil {
		return err
	}
	g.b.PatchJump(toEnd)
	return nil
}

// whileStmt:
//
//	cond: cond
//	JUMP_IF_FALSE else
//	body            (continue -> cond, break -> end)
//	JUMP cond
//	else: orelse
//	end:
func (g *generator) whileStmt(s *ast.While) error {
	condPos := g.b.Len()
	if err := g.expr(s.Cond); err != nil {
		return err
	}
	exit := g.b.EmitJump(bytecode.OpJumpIfFalse)

	g.pushLoop()
	if err := g.stmts(s.Body); err != nil {
		return err
	}
	g.b.EmitLoop(condPos)
	g.b.PatchJump(exit)

	// A break inside the else body belongs to an enclosing loop.
	ctx := g.popLoop()
	if err := g.stmts(s.OrElse); err != nil {
		return err
	}
	g.patchLoop(ctx, g.b.Len(), condPos)
	return nil
}

// forStmt lowers for t in range(start, stop, step):
//
//	t = start
//	cond: t < stop   (t > stop when step is negative)
//	JUMP_IF_FALSE end
//	body            (continue -> next, break -> end)
//	next: t = t + step
//	JUMP cond
//	end:
func (g *generator) forStmt(s *ast.For) error {
	counter, ok := s.Target.(*ast.Name)
	if !ok {
		return SubscriptAssignmentUnsupportedError.New("loop counter must be a plain name").
			WithProperty(PropertyLine, s.Line)
	}

	g.b.EmitLiteral(bytecode.Int(s.Start))
	if err := g.store(counter.ID); err != nil {
		return err
	}

	condPos := g.b.Len()
	if err := g.load(counter.ID); err != nil {
		return err
	}
	g.b.EmitLiteral(bytecode.Int(s.Stop))
	if s.Step > 0 {
		g.b.Emit(bytecode.OpLt, 0)
	} else {
		g.b.Emit(bytecode.OpGt, 0)
	}
	exit := g.b.EmitJump(bytecode.OpJumpIfFalse)

	g.pushLoop()
	if err := g.stmts(s.Body); err != nil {
		return err
	}

	g.b.SetLine(s.Line)
	next := g.b.Len()
	if err := g.load(counter.ID); err != nil {
		return err
	}
	g.b.EmitLiteral(bytecode.Int(s.Step))
	g.b.Emit(bytecode.OpAdd, 0)
	if err := g.store(counter.ID); err != nil {
		return err
	}
	g.b.EmitLoop(condPos)

	g.b.PatchJump(exit)
	g.patchLoop(g.popLoop(), g.b.Len(), next)
	return nil
}
