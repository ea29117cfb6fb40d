package ast

// Inspect traverses the tree rooted at n in pre-order, calling fn for each
// node. If fn returns false, the node's children are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Module:
		for _, c := range n.Body {
			Inspect(c, fn)
		}
	case *FunctionDef:
		for _, a := range n.Args {
			Inspect(a, fn)
		}
		inspectStmts(n.Body, fn)
	case *Return:
		inspectExpr(n.Value, fn)
	case *Assign:
		inspectExpr(n.Value, fn)
		inspectExpr(n.Target, fn)
	case *For:
		inspectExpr(n.Target, fn)
		inspectStmts(n.Body, fn)
	case *While:
		inspectExpr(n.Cond, fn)
		inspectStmts(n.Body, fn)
		inspectStmts(n.OrElse, fn)
	case *If:
		inspectExpr(n.Cond, fn)
		inspectStmts(n.Body, fn)
		inspectStmts(n.OrElse, fn)
	case *Assert:
		inspectExpr(n.Test, fn)
	case *ExprStmt:
		inspectExpr(n.Value, fn)
	case *BinOp:
		inspectExpr(n.Left, fn)
		inspectExpr(n.Right, fn)
	case *UnaryOp:
		inspectExpr(n.Operand, fn)
	case *Call:
		for _, a := range n.Args {
			inspectExpr(a, fn)
		}
	case *IfExpr:
		inspectExpr(n.Cond, fn)
		inspectExpr(n.Then, fn)
		inspectExpr(n.Else, fn)
	case *Subscript:
		inspectExpr(n.Index, fn)
	}
}

func inspectStmts(list []Stmt, fn func(Node) bool) {
	for _, s := range list {
		Inspect(s, fn)
	}
}

// inspectExpr guards against typed nil expressions such as a bare Return.
func inspectExpr(e Expr, fn func(Node) bool) {
	if e != nil {
		Inspect(e, fn)
	}
}
