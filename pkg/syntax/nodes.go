// Package syntax defines the generic syntax tree accepted by the reducer.
//
// The node shapes and field names follow the standard Python ast grammar so
// that trees exported by external tooling (ast -> JSON with a "_type" key per
// node) can be decoded without translation. The tree is deliberately looser
// than the normalized tree in pkg/ast: it can express every construct the
// reducer must reject.
package syntax

// Node is any generic syntax tree node.
type Node interface {
	Kind() string
	Pos() int
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Position records the source line of a node.
type Position struct {
	Line int
}

// Pos returns the source line, or 0 when unknown.
func (p Position) Pos() int { return p.Line }

// ---------------------------------------------------------------------------
// Module and functions
// ---------------------------------------------------------------------------

// Module is the tree root.
type Module struct {
	Body []Stmt
}

func (*Module) Kind() string { return "Module" }
func (*Module) Pos() int     { return 0 }

// FunctionDef is a function definition statement.
type FunctionDef struct {
	Position
	Name    string
	Args    *Arguments
	Body    []Stmt
	Returns Expr
}

// Arguments is the full parameter list of a function, including the forms
// the reducer rejects.
type Arguments struct {
	PosOnlyArgs []*Arg
	Args        []*Arg
	VarArg      *Arg
	KwOnlyArgs  []*Arg
	KwArg       *Arg
	Defaults    []Expr
	KwDefaults  []Expr
}

// Arg is a single parameter.
type Arg struct {
	Position
	Name       string
	Annotation Expr
}

func (*Arg) Kind() string { return "arg" }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

type (
	Return struct {
		Position
		Value Expr
	}

	Assign struct {
		Position
		Targets []Expr
		Value   Expr
	}

	AnnAssign struct {
		Position
		Target     Expr
		Annotation Expr
		Value      Expr
	}

	AugAssign struct {
		Position
		Target Expr
		Op     string
		Value  Expr
	}

	For struct {
		Position
		Target Expr
		Iter   Expr
		Body   []Stmt
		OrElse []Stmt
	}

	While struct {
		Position
		Test   Expr
		Body   []Stmt
		OrElse []Stmt
	}

	If struct {
		Position
		Test   Expr
		Body   []Stmt
		OrElse []Stmt
	}

	Assert struct {
		Position
		Test Expr
		Msg  Expr
	}

	// ExprStmt is an expression evaluated as a statement (ast "Expr").
	ExprStmt struct {
		Position
		Value Expr
	}

	Pass     struct{ Position }
	Break    struct{ Position }
	Continue struct{ Position }
)

func (*FunctionDef) Kind() string { return "FunctionDef" }
func (*Return) Kind() string      { return "Return" }
func (*Assign) Kind() string      { return "Assign" }
func (*AnnAssign) Kind() string   { return "AnnAssign" }
func (*AugAssign) Kind() string   { return "AugAssign" }
func (*For) Kind() string         { return "For" }
func (*While) Kind() string       { return "While" }
func (*If) Kind() string          { return "If" }
func (*Assert) Kind() string      { return "Assert" }
func (*ExprStmt) Kind() string    { return "Expr" }
func (*Pass) Kind() string        { return "Pass" }
func (*Break) Kind() string       { return "Break" }
func (*Continue) Kind() string    { return "Continue" }

func (*FunctionDef) stmtNode() {}
func (*Return) stmtNode()      {}
func (*Assign) stmtNode()      {}
func (*AnnAssign) stmtNode()   {}
func (*AugAssign) stmtNode()   {}
func (*For) stmtNode()         {}
func (*While) stmtNode()       {}
func (*If) stmtNode()          {}
func (*Assert) stmtNode()      {}
func (*ExprStmt) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

type (
	BoolOp struct {
		Position
		Op     string
		Values []Expr
	}

	BinOp struct {
		Position
		Left  Expr
		Op    string
		Right Expr
	}

	UnaryOp struct {
		Position
		Op      string
		Operand Expr
	}

	Compare struct {
		Position
		Left        Expr
		Ops         []string
		Comparators []Expr
	}

	Call struct {
		Position
		Func     Expr
		Args     []Expr
		Keywords []*Keyword
	}

	// Keyword is a keyword argument at a call site.
	Keyword struct {
		Arg   string
		Value Expr
	}

	Name struct {
		Position
		ID string
	}

	// Constant holds a literal. Value is one of int64, float64, string,
	// bool or nil.
	Constant struct {
		Position
		Value any
	}

	IfExp struct {
		Position
		Test   Expr
		Body   Expr
		OrElse Expr
	}

	Subscript struct {
		Position
		Value Expr
		Slice Expr
	}

	Tuple struct {
		Position
		Elts []Expr
	}
)

func (*BoolOp) Kind() string    { return "BoolOp" }
func (*BinOp) Kind() string     { return "BinOp" }
func (*UnaryOp) Kind() string   { return "UnaryOp" }
func (*Compare) Kind() string   { return "Compare" }
func (*Call) Kind() string      { return "Call" }
func (*Name) Kind() string      { return "Name" }
func (*Constant) Kind() string  { return "Constant" }
func (*IfExp) Kind() string     { return "IfExp" }
func (*Subscript) Kind() string { return "Subscript" }
func (*Tuple) Kind() string     { return "Tuple" }

func (*BoolOp) exprNode()    {}
func (*BinOp) exprNode()     {}
func (*UnaryOp) exprNode()   {}
func (*Compare) exprNode()   {}
func (*Call) exprNode()      {}
func (*Name) exprNode()      {}
func (*Constant) exprNode()  {}
func (*IfExp) exprNode()     {}
func (*Subscript) exprNode() {}
func (*Tuple) exprNode()     {}

// Other stands in for any grammar node the decoder does not model
// (Lambda, List, Attribute, ClassDef, ...). It is both a statement and an
// expression so it can sit anywhere in the tree until the reducer rejects it.
type Other struct {
	Position
	Type string
}

func (o *Other) Kind() string { return o.Type }
func (*Other) stmtNode()      {}
func (*Other) exprNode()      {}
