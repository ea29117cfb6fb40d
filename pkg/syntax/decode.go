package syntax

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joomcode/errorx"
	"gopkg.in/yaml.v3"
)

var (
	Errors = errorx.NewNamespace("syntax")

	// DecodeError reports a document that is not a well-formed tree.
	DecodeError = Errors.NewType("decode")

	// PropertyDocLine is the line in the YAML/JSON document where decoding failed.
	PropertyDocLine = errorx.RegisterPrintableProperty("doc_line")
)

// DecodeFile reads and decodes a tree from a YAML or JSON file.
func DecodeFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", err)
	}
	mod, err := Decode(data)
	if err != nil {
		return nil, errorx.Decorate(err, "%s", path)
	}
	return mod, nil
}

// Decode parses a generic syntax tree from YAML or JSON. Every mapping
// carries its node kind under "_type" and its source line under "lineno".
// Operators may be a bare string ("Add") or a node ({_type: Add}).
func Decode(data []byte) (*Module, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, DecodeError.Wrap(err, "malformed document")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, DecodeError.New("empty document")
	}
	root := doc.Content[0]
	m, err := fields(root)
	if err != nil {
		return nil, err
	}
	if kind := m.kind(); kind != "Module" {
		return nil, DecodeError.New("root node is %q, want Module", kind).WithProperty(PropertyDocLine, root.Line)
	}
	body, err := m.stmts("body")
	if err != nil {
		return nil, err
	}
	return &Module{Body: body}, nil
}

// mapping is a decoded YAML mapping node keyed by field name.
type mapping struct {
	node   *yaml.Node
	fields map[string]*yaml.Node
}

func fields(n *yaml.Node) (*mapping, error) {
	if n.Kind != yaml.MappingNode {
		return nil, DecodeError.New("expected a node mapping").WithProperty(PropertyDocLine, n.Line)
	}
	m := &mapping{node: n, fields: make(map[string]*yaml.Node, len(n.Content)/2)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		m.fields[n.Content[i].Value] = n.Content[i+1]
	}
	return m, nil
}

func (m *mapping) kind() string {
	if t, ok := m.fields["_type"]; ok && t.Kind == yaml.ScalarNode {
		return t.Value
	}
	return ""
}

func (m *mapping) pos() Position {
	if l, ok := m.fields["lineno"]; ok && l.Kind == yaml.ScalarNode {
		if n, err := strconv.Atoi(l.Value); err == nil {
			return Position{Line: n}
		}
	}
	return Position{}
}

func (m *mapping) fail(format string, args ...any) error {
	return DecodeError.New(format, args...).WithProperty(PropertyDocLine, m.node.Line)
}

// present reports whether a field exists and is not null.
func (m *mapping) present(key string) bool {
	n, ok := m.fields[key]
	return ok && !(n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func (m *mapping) str(key string) string {
	if n, ok := m.fields[key]; ok && n.Kind == yaml.ScalarNode && n.Tag != "!!null" {
		return n.Value
	}
	return ""
}

// op reads an operator given either as a string or as {_type: Name}.
func (m *mapping) op(key string) (string, error) {
	n, ok := m.fields[key]
	if !ok {
		return "", m.fail("%s: missing %q", m.kind(), key)
	}
	return operator(n)
}

func operator(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil
	case yaml.MappingNode:
		m, err := fields(n)
		if err != nil {
			return "", err
		}
		if k := m.kind(); k != "" {
			return k, nil
		}
	}
	return "", DecodeError.New("malformed operator").WithProperty(PropertyDocLine, n.Line)
}

func (m *mapping) seq(key string) ([]*yaml.Node, error) {
	n, ok := m.fields[key]
	if !ok || (n.Kind == yaml.ScalarNode && n.Tag == "!!null") {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, m.fail("%s.%s: expected a list", m.kind(), key)
	}
	return n.Content, nil
}

func (m *mapping) stmts(key string) ([]Stmt, error) {
	items, err := m.seq(key)
	if err != nil {
		return nil, err
	}
	out := make([]Stmt, 0, len(items))
	for _, item := range items {
		s, err := decodeStmt(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mapping) exprs(key string) ([]Expr, error) {
	items, err := m.seq(key)
	if err != nil {
		return nil, err
	}
	out := make([]Expr, 0, len(items))
	for _, item := range items {
		e, err := decodeExpr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// expr decodes an optional expression field; a missing or null field is nil.
func (m *mapping) expr(key string) (Expr, error) {
	if !m.present(key) {
		return nil, nil
	}
	return decodeExpr(m.fields[key])
}

// ---- statements ----

func decodeStmt(n *yaml.Node) (Stmt, error) {
	m, err := fields(n)
	if err != nil {
		return nil, err
	}
	pos := m.pos()

	switch kind := m.kind(); kind {
	case "FunctionDef":
		args, err := decodeArguments(m)
		if err != nil {
			return nil, err
		}
		body, err := m.stmts("body")
		if err != nil {
			return nil, err
		}
		returns, err := m.expr("returns")
		if err != nil {
			return nil, err
		}
		return &FunctionDef{Position: pos, Name: m.str("name"), Args: args, Body: body, Returns: returns}, nil

	case "Return":
		v, err := m.expr("value")
		if err != nil {
			return nil, err
		}
		return &Return{Position: pos, Value: v}, nil

	case "Assign":
		targets, err := m.exprs("targets")
		if err != nil {
			return nil, err
		}
		v, err := m.expr("value")
		if err != nil {
			return nil, err
		}
		return &Assign{Position: pos, Targets: targets, Value: v}, nil

	case "AnnAssign":
		target, err := m.expr("target")
		if err != nil {
			return nil, err
		}
		ann, err := m.expr("annotation")
		if err != nil {
			return nil, err
		}
		v, err := m.expr("value")
		if err != nil {
			return nil, err
		}
		return &AnnAssign{Position: pos, Target: target, Annotation: ann, Value: v}, nil

	case "AugAssign":
		target, err := m.expr("target")
		if err != nil {
			return nil, err
		}
		op, err := m.op("op")
		if err != nil {
			return nil, err
		}
		v, err := m.expr("value")
		if err != nil {
			return nil, err
		}
		return &AugAssign{Position: pos, Target: target, Op: op, Value: v}, nil

	case "For":
		target, err := m.expr("target")
		if err != nil {
			return nil, err
		}
		iter, err := m.expr("iter")
		if err != nil {
			return nil, err
		}
		body, err := m.stmts("body")
		if err != nil {
			return nil, err
		}
		orelse, err := m.stmts("orelse")
		if err != nil {
			return nil, err
		}
		return &For{Position: pos, Target: target, Iter: iter, Body: body, OrElse: orelse}, nil

	case "While", "If":
		test, err := m.expr("test")
		if err != nil {
			return nil, err
		}
		body, err := m.stmts("body")
		if err != nil {
			return nil, err
		}
		orelse, err := m.stmts("orelse")
		if err != nil {
			return nil, err
		}
		if kind == "While" {
			return &While{Position: pos, Test: test, Body: body, OrElse: orelse}, nil
		}
		return &If{Position: pos, Test: test, Body: body, OrElse: orelse}, nil

	case "Assert":
		test, err := m.expr("test")
		if err != nil {
			return nil, err
		}
		msg, err := m.expr("msg")
		if err != nil {
			return nil, err
		}
		return &Assert{Position: pos, Test: test, Msg: msg}, nil

	case "Expr":
		v, err := m.expr("value")
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Position: pos, Value: v}, nil

	case "Pass":
		return &Pass{Position: pos}, nil
	case "Break":
		return &Break{Position: pos}, nil
	case "Continue":
		return &Continue{Position: pos}, nil

	case "":
		return nil, m.fail("statement without _type")
	default:
		return &Other{Position: pos, Type: kind}, nil
	}
}

func decodeArguments(fn *mapping) (*Arguments, error) {
	if !fn.present("args") {
		return &Arguments{}, nil
	}
	m, err := fields(fn.fields["args"])
	if err != nil {
		return nil, err
	}
	var a Arguments
	if a.PosOnlyArgs, err = decodeArgList(m, "posonlyargs"); err != nil {
		return nil, err
	}
	if a.Args, err = decodeArgList(m, "args"); err != nil {
		return nil, err
	}
	if a.KwOnlyArgs, err = decodeArgList(m, "kwonlyargs"); err != nil {
		return nil, err
	}
	if m.present("vararg") {
		if a.VarArg, err = decodeArg(m.fields["vararg"]); err != nil {
			return nil, err
		}
	}
	if m.present("kwarg") {
		if a.KwArg, err = decodeArg(m.fields["kwarg"]); err != nil {
			return nil, err
		}
	}
	if a.Defaults, err = m.exprs("defaults"); err != nil {
		return nil, err
	}
	// kw_defaults holds null entries for keyword-only args without defaults.
	items, err := m.seq("kw_defaults")
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Kind == yaml.ScalarNode && item.Tag == "!!null" {
			continue
		}
		e, err := decodeExpr(item)
		if err != nil {
			return nil, err
		}
		a.KwDefaults = append(a.KwDefaults, e)
	}
	return &a, nil
}

func decodeArgList(m *mapping, key string) ([]*Arg, error) {
	items, err := m.seq(key)
	if err != nil {
		return nil, err
	}
	out := make([]*Arg, 0, len(items))
	for _, item := range items {
		a, err := decodeArg(item)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeArg(n *yaml.Node) (*Arg, error) {
	m, err := fields(n)
	if err != nil {
		return nil, err
	}
	ann, err := m.expr("annotation")
	if err != nil {
		return nil, err
	}
	return &Arg{Position: m.pos(), Name: m.str("arg"), Annotation: ann}, nil
}

// ---- expressions ----

func decodeExpr(n *yaml.Node) (Expr, error) {
	m, err := fields(n)
	if err != nil {
		return nil, err
	}
	pos := m.pos()

	switch kind := m.kind(); kind {
	case "BoolOp":
		op, err := m.op("op")
		if err != nil {
			return nil, err
		}
		values, err := m.exprs("values")
		if err != nil {
			return nil, err
		}
		return &BoolOp{Position: pos, Op: op, Values: values}, nil

	case "BinOp":
		left, err := m.expr("left")
		if err != nil {
			return nil, err
		}
		op, err := m.op("op")
		if err != nil {
			return nil, err
		}
		right, err := m.expr("right")
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, m.fail("BinOp: missing operand")
		}
		return &BinOp{Position: pos, Left: left, Op: op, Right: right}, nil

	case "UnaryOp":
		op, err := m.op("op")
		if err != nil {
			return nil, err
		}
		operand, err := m.expr("operand")
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, m.fail("UnaryOp: missing operand")
		}
		return &UnaryOp{Position: pos, Op: op, Operand: operand}, nil

	case "Compare":
		left, err := m.expr("left")
		if err != nil {
			return nil, err
		}
		items, err := m.seq("ops")
		if err != nil {
			return nil, err
		}
		ops := make([]string, 0, len(items))
		for _, item := range items {
			op, err := operator(item)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		comparators, err := m.exprs("comparators")
		if err != nil {
			return nil, err
		}
		return &Compare{Position: pos, Left: left, Ops: ops, Comparators: comparators}, nil

	case "Call":
		fn, err := m.expr("func")
		if err != nil {
			return nil, err
		}
		args, err := m.exprs("args")
		if err != nil {
			return nil, err
		}
		items, err := m.seq("keywords")
		if err != nil {
			return nil, err
		}
		var kws []*Keyword
		for _, item := range items {
			km, err := fields(item)
			if err != nil {
				return nil, err
			}
			v, err := km.expr("value")
			if err != nil {
				return nil, err
			}
			kws = append(kws, &Keyword{Arg: km.str("arg"), Value: v})
		}
		return &Call{Position: pos, Func: fn, Args: args, Keywords: kws}, nil

	case "Name":
		return &Name{Position: pos, ID: m.str("id")}, nil

	case "Constant":
		v, err := scalar(m)
		if err != nil {
			return nil, err
		}
		return &Constant{Position: pos, Value: v}, nil

	case "IfExp":
		test, err := m.expr("test")
		if err != nil {
			return nil, err
		}
		body, err := m.expr("body")
		if err != nil {
			return nil, err
		}
		orelse, err := m.expr("orelse")
		if err != nil {
			return nil, err
		}
		return &IfExp{Position: pos, Test: test, Body: body, OrElse: orelse}, nil

	case "Subscript":
		v, err := m.expr("value")
		if err != nil {
			return nil, err
		}
		slice, err := m.expr("slice")
		if err != nil {
			return nil, err
		}
		return &Subscript{Position: pos, Value: v, Slice: slice}, nil

	case "Tuple":
		elts, err := m.exprs("elts")
		if err != nil {
			return nil, err
		}
		return &Tuple{Position: pos, Elts: elts}, nil

	case "":
		return nil, m.fail("expression without _type")
	default:
		return &Other{Position: pos, Type: kind}, nil
	}
}

// scalar resolves a Constant's value by its YAML tag.
func scalar(m *mapping) (any, error) {
	n, ok := m.fields["value"]
	if !ok {
		return nil, nil
	}
	if n.Kind != yaml.ScalarNode {
		return nil, m.fail("Constant: value must be a scalar")
	}
	switch n.Tag {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, DecodeError.Wrap(err, "bool constant").WithProperty(PropertyDocLine, n.Line)
		}
		return b, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, DecodeError.Wrap(err, "int constant").WithProperty(PropertyDocLine, n.Line)
		}
		return i, nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, DecodeError.Wrap(err, "float constant").WithProperty(PropertyDocLine, n.Line)
		}
		return f, nil
	default:
		return n.Value, nil
	}
}
