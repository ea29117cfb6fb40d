package reduce

import "github.com/joomcode/errorx"

var (
	Errors = errorx.NewNamespace("reduce")

	// UnsupportedConstructError is raised for any input outside the
	// supported subset. It always carries the node kind and source line.
	UnsupportedConstructError = Errors.NewType("unsupported_construct")

	PropertyNode = errorx.RegisterPrintableProperty("node")
	PropertyLine = errorx.RegisterPrintableProperty("line")
)

// unsupported builds an UnsupportedConstructError for a node of the given
// kind at the given line.
func unsupported(kind string, line int, format string, args ...any) *errorx.Error {
	return UnsupportedConstructError.New(format, args...).
		WithProperty(PropertyNode, kind).
		WithProperty(PropertyLine, line)
}
