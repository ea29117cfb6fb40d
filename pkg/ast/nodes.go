package ast

// Node is any normalized tree node. Every node knows its source line.
type Node interface {
	Pos() int
}

// TopLevel is a direct child of a Module: a function definition or a
// statement. Expressions never appear at top level.
type TopLevel interface {
	Node
	topLevel()
}

// Stmt is a statement. The set of implementations is closed.
type Stmt interface {
	TopLevel
	stmt()
}

// Expr is an expression. The set of implementations is closed.
type Expr interface {
	Node
	expr()
}

// Module is the normalized program.
type Module struct {
	Body []TopLevel
}

func (*Module) Pos() int { return 0 }

// Functions returns the module's function definitions in declaration order.
func (m *Module) Functions() []*FunctionDef {
	var out []*FunctionDef
	for _, n := range m.Body {
		if fn, ok := n.(*FunctionDef); ok {
			out = append(out, fn)
		}
	}
	return out
}

// Statements returns the module-level statements in order.
func (m *Module) Statements() []Stmt {
	var out []Stmt
	for _, n := range m.Body {
		if s, ok := n.(Stmt); ok {
			out = append(out, s)
		}
	}
	return out
}

// FunctionDef is a function with fully annotated arguments and return type.
type FunctionDef struct {
	Line       int
	Name       string
	Args       []*Argument
	Body       []Stmt
	ReturnType Type
}

// Argument is one declared parameter.
type Argument struct {
	Line       int
	Name       string
	Annotation Type
}

func (n *FunctionDef) Pos() int { return n.Line }
func (n *Argument) Pos() int    { return n.Line }
func (*FunctionDef) topLevel()  {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Return leaves the enclosing function. Value is nil for a bare return.
type Return struct {
	Line  int
	Value Expr
}

// Assign stores Value into Target, which is a *Name or a *Subscript.
// Annotation is non-nil when the assignment declares a type.
type Assign struct {
	Line       int
	Target     Expr
	Value      Expr
	Annotation *Type
}

// For is a counted loop over range(Start, Stop, Step). Step is never zero.
type For struct {
	Line              int
	Target            Expr
	Start, Stop, Step int64
	Body              []Stmt
}

type While struct {
	Line   int
	Cond   Expr
	Body   []Stmt
	OrElse []Stmt
}

type If struct {
	Line   int
	Cond   Expr
	Body   []Stmt
	OrElse []Stmt
}

type Assert struct {
	Line int
	Test Expr
}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	Line  int
	Value Expr
}

type Pass struct{ Line int }
type Break struct{ Line int }
type Continue struct{ Line int }

func (n *Return) Pos() int   { return n.Line }
func (n *Assign) Pos() int   { return n.Line }
func (n *For) Pos() int      { return n.Line }
func (n *While) Pos() int    { return n.Line }
func (n *If) Pos() int       { return n.Line }
func (n *Assert) Pos() int   { return n.Line }
func (n *ExprStmt) Pos() int { return n.Line }
func (n *Pass) Pos() int     { return n.Line }
func (n *Break) Pos() int    { return n.Line }
func (n *Continue) Pos() int { return n.Line }

func (*Return) topLevel()   {}
func (*Assign) topLevel()   {}
func (*For) topLevel()      {}
func (*While) topLevel()    {}
func (*If) topLevel()       {}
func (*Assert) topLevel()   {}
func (*ExprStmt) topLevel() {}
func (*Pass) topLevel()     {}
func (*Break) topLevel()    {}
func (*Continue) topLevel() {}

func (*Return) stmt()   {}
func (*Assign) stmt()   {}
func (*For) stmt()      {}
func (*While) stmt()    {}
func (*If) stmt()       {}
func (*Assert) stmt()   {}
func (*ExprStmt) stmt() {}
func (*Pass) stmt()     {}
func (*Break) stmt()    {}
func (*Continue) stmt() {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// BinOp covers arithmetic, comparison and boolean operators.
type BinOp struct {
	Line        int
	Op          Op
	Left, Right Expr
}

type UnaryOp struct {
	Line    int
	Op      Op
	Operand Expr
}

type Name struct {
	Line int
	ID   string
}

type Constant struct {
	Line  int
	Value Number
}

// Call invokes a statically named function or built-in.
type Call struct {
	Line int
	Func string
	Args []Expr
}

type IfExpr struct {
	Line       int
	Cond       Expr
	Then, Else Expr
}

// Subscript indexes a statically named target.
type Subscript struct {
	Line  int
	Name  string
	Index Expr
}

func (n *BinOp) Pos() int     { return n.Line }
func (n *UnaryOp) Pos() int   { return n.Line }
func (n *Name) Pos() int      { return n.Line }
func (n *Constant) Pos() int  { return n.Line }
func (n *Call) Pos() int      { return n.Line }
func (n *IfExpr) Pos() int    { return n.Line }
func (n *Subscript) Pos() int { return n.Line }

func (*BinOp) expr()     {}
func (*UnaryOp) expr()   {}
func (*Name) expr()      {}
func (*Constant) expr()  {}
func (*Call) expr()      {}
func (*IfExpr) expr()    {}
func (*Subscript) expr() {}
