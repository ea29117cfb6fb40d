package vm

import (
	"github.com/joomcode/errorx"

	"github.com/chazu/subpy/pkg/bytecode"
)

// Faults are contract violations between the generator and the machine.
// A program that passed the static stages never raises one, except
// AssertionFailed and StepLimitExceeded.
var (
	Faults = errorx.NewNamespace("vm").NewSubNamespace("fault")

	OperandStackUnderflow = Faults.NewType("operand_stack_underflow")
	CallStackUnderflow    = Faults.NewType("call_stack_underflow")
	FrameMismatch         = Faults.NewType("frame_mismatch")
	BadJumpTarget         = Faults.NewType("bad_jump_target")
	BadCallTarget         = Faults.NewType("bad_call_target")
	SlotOutOfRange        = Faults.NewType("slot_out_of_range")
	UnknownBuiltin        = Faults.NewType("unknown_builtin")
	TypeFault             = Faults.NewType("type")
	AssertionFailed       = Faults.NewType("assertion_failed")
	StepLimitExceeded     = Faults.NewType("step_limit_exceeded")

	PropertyPC     = errorx.RegisterPrintableProperty("pc")
	PropertyOpcode = errorx.RegisterPrintableProperty("opcode")
	PropertyLine   = errorx.RegisterPrintableProperty("line")
)

func fault(t *errorx.Type, pc int, in bytecode.Instruction, format string, args ...any) error {
	return t.New(format, args...).
		WithProperty(PropertyPC, pc).
		WithProperty(PropertyOpcode, in.Op.String()).
		WithProperty(PropertyLine, in.Line)
}
