package symbols

import "github.com/joomcode/errorx"

var (
	Errors = errorx.NewNamespace("symbols")

	// NameError: a name is read before any assignment or argument declares it.
	NameError = Errors.NewType("name")
	// RedeclarationError: a name or function is declared twice incompatibly.
	RedeclarationError = Errors.NewType("redeclaration")
	// UnusedVariableError: a function local is assigned but never read.
	UnusedVariableError = Errors.NewType("unused_variable")
	// MissingAnnotationError: the first declaration of a name has no type.
	MissingAnnotationError = Errors.NewType("missing_annotation")

	PropertyIdentifier = errorx.RegisterPrintableProperty("identifier")
	PropertyLine       = errorx.RegisterPrintableProperty("line")
)

func fail(t *errorx.Type, id string, line int, format string, args ...any) *errorx.Error {
	return t.New(format, args...).
		WithProperty(PropertyIdentifier, id).
		WithProperty(PropertyLine, line)
}
