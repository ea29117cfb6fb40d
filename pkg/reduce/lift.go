package reduce

import (
	"github.com/chazu/subpy/pkg/ast"
	"github.com/chazu/subpy/pkg/syntax"
)

// Lift rebuilds a generic syntax tree from a normalized tree. Reducing the
// result yields a tree equal to the input, which is how validation is
// checked to be idempotent.
func Lift(mod *ast.Module) *syntax.Module {
	out := &syntax.Module{Body: make([]syntax.Stmt, 0, len(mod.Body))}
	for _, n := range mod.Body {
		switch n := n.(type) {
		case *ast.FunctionDef:
			out.Body = append(out.Body, liftFunction(n))
		case ast.Stmt:
			out.Body = append(out.Body, liftStmt(n))
		}
	}
	return out
}

func liftFunction(fn *ast.FunctionDef) *syntax.FunctionDef {
	args := &syntax.Arguments{}
	for _, a := range fn.Args {
		args.Args = append(args.Args, &syntax.Arg{
			Position:   syntax.Position{Line: a.Line},
			Name:       a.Name,
			Annotation: &syntax.Name{Position: syntax.Position{Line: a.Line}, ID: a.Annotation.String()},
		})
	}
	return &syntax.FunctionDef{
		Position: syntax.Position{Line: fn.Line},
		Name:     fn.Name,
		Args:     args,
		Body:     liftStmts(fn.Body),
		Returns:  &syntax.Name{Position: syntax.Position{Line: fn.Line}, ID: fn.ReturnType.String()},
	}
}

func liftStmts(list []ast.Stmt) []syntax.Stmt {
	out := make([]syntax.Stmt, 0, len(list))
	for _, s := range list {
		out = append(out, liftStmt(s))
	}
	return out
}

func liftStmt(s ast.Stmt) syntax.Stmt {
	switch s := s.(type) {
	case *ast.Return:
		ret := &syntax.Return{Position: syntax.Position{Line: s.Line}}
		if s.Value != nil {
			ret.Value = liftExpr(s.Value)
		}
		return ret
	case *ast.Assign:
		pos := syntax.Position{Line: s.Line}
		if s.Annotation != nil {
			return &syntax.AnnAssign{
				Position:   pos,
				Target:     liftExpr(s.Target),
				Annotation: &syntax.Name{Position: pos, ID: s.Annotation.String()},
				Value:      liftExpr(s.Value),
			}
		}
		return &syntax.Assign{Position: pos, Targets: []syntax.Expr{liftExpr(s.Target)}, Value: liftExpr(s.Value)}
	case *ast.For:
		pos := syntax.Position{Line: s.Line}
		lit := func(v int64) syntax.Expr { return &syntax.Constant{Position: pos, Value: v} }
		return &syntax.For{
			Position: pos,
			Target:   liftExpr(s.Target),
			Iter: &syntax.Call{
				Position: pos,
				Func:     &syntax.Name{Position: pos, ID: "range"},
				Args:     []syntax.Expr{lit(s.Start), lit(s.Stop), lit(s.Step)},
			},
			Body: liftStmts(s.Body),
		}
	case *ast.While:
		return &syntax.While{Position: syntax.Position{Line: s.Line}, Test: liftExpr(s.Cond), Body: liftStmts(s.Body), OrElse: liftStmts(s.OrElse)}
	case *ast.If:
		return &syntax.If{Position: syntax.Position{Line: s.Line}, Test: liftExpr(s.Cond), Body: liftStmts(s.Body), OrElse: liftStmts(s.OrElse)}
	case *ast.Assert:
		return &syntax.Assert{Position: syntax.Position{Line: s.Line}, Test: liftExpr(s.Test)}
	case *ast.ExprStmt:
		return &syntax.ExprStmt{Position: syntax.Position{Line: s.Line}, Value: liftExpr(s.Value)}
	case *ast.Pass:
		return &syntax.Pass{Position: syntax.Position{Line: s.Line}}
	case *ast.Break:
		return &syntax.Break{Position: syntax.Position{Line: s.Line}}
	case *ast.Continue:
		return &syntax.Continue{Position: syntax.Position{Line: s.Line}}
	}
	panic("reduce: unhandled statement in Lift")
}

func liftExprs(list []ast.Expr) []syntax.Expr {
	out := make([]syntax.Expr, 0, len(list))
	for _, e := range list {
		out = append(out, liftExpr(e))
	}
	return out
}

func liftExpr(e ast.Expr) syntax.Expr {
	switch e := e.(type) {
	case *ast.BinOp:
		pos := syntax.Position{Line: e.Line}
		switch {
		case e.Op.IsComparison():
			return &syntax.Compare{Position: pos, Left: liftExpr(e.Left), Ops: []string{e.Op.String()}, Comparators: []syntax.Expr{liftExpr(e.Right)}}
		case e.Op.IsBoolean():
			return &syntax.BoolOp{Position: pos, Op: e.Op.String(), Values: []syntax.Expr{liftExpr(e.Left), liftExpr(e.Right)}}
		}
		return &syntax.BinOp{Position: pos, Left: liftExpr(e.Left), Op: e.Op.String(), Right: liftExpr(e.Right)}
	case *ast.UnaryOp:
		return &syntax.UnaryOp{Position: syntax.Position{Line: e.Line}, Op: e.Op.String(), Operand: liftExpr(e.Operand)}
	case *ast.Name:
		return &syntax.Name{Position: syntax.Position{Line: e.Line}, ID: e.ID}
	case *ast.Constant:
		c := &syntax.Constant{Position: syntax.Position{Line: e.Line}}
		if e.Value.IsFloat {
			c.Value = e.Value.F
		} else {
			c.Value = e.Value.I
		}
		return c
	case *ast.Call:
		pos := syntax.Position{Line: e.Line}
		return &syntax.Call{Position: pos, Func: &syntax.Name{Position: pos, ID: e.Func}, Args: liftExprs(e.Args)}
	case *ast.IfExpr:
		return &syntax.IfExp{Position: syntax.Position{Line: e.Line}, Test: liftExpr(e.Cond), Body: liftExpr(e.Then), OrElse: liftExpr(e.Else)}
	case *ast.Subscript:
		pos := syntax.Position{Line: e.Line}
		return &syntax.Subscript{Position: pos, Value: &syntax.Name{Position: pos, ID: e.Name}, Slice: liftExpr(e.Index)}
	}
	panic("reduce: unhandled expression in Lift")
}
