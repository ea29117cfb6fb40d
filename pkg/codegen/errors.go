package codegen

import "github.com/joomcode/errorx"

var (
	Errors = errorx.NewNamespace("codegen")

	UnknownCallableError                = Errors.NewType("unknown_callable")
	ArityError                          = Errors.NewType("arity")
	UnsupportedOperatorError            = Errors.NewType("unsupported_operator")
	SubscriptAssignmentUnsupportedError = Errors.NewType("subscript_assignment_unsupported")
	UnsupportedExpressionError          = Errors.NewType("unsupported_expression")
	LoopControlError                    = Errors.NewType("loop_control")
	CallableConflictError               = Errors.NewType("callable_conflict")
	ReturnOutsideFunctionError          = Errors.NewType("return_outside_function")

	PropertyLine     = errorx.RegisterPrintableProperty("line")
	PropertyCallee   = errorx.RegisterPrintableProperty("callee")
	PropertyExpected = errorx.RegisterPrintableProperty("expected")
	PropertyActual   = errorx.RegisterPrintableProperty("actual")
	PropertyOperator = errorx.RegisterPrintableProperty("operator")
)
