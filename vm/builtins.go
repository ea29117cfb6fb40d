package vm

import (
	"fmt"

	"github.com/chazu/subpy/pkg/bytecode"
)

// Builtin is a VM-native operation registered with WithBuiltin. It receives
// its arguments in source order and may produce one value to push.
type Builtin func(args []bytecode.Value) (result bytecode.Value, push bool, err error)

// Names of the operations every VM provides.
const (
	BuiltinHalt   = "halt"
	BuiltinPrint  = "print"
	BuiltinAssert = "assert"
)

// builtin dispatches BUILTIN name/arity. Arguments are on the operand
// stack with the last one on top.
func (s *state) builtin(name string, arity int) error {
	if arity < 0 || arity > len(s.operands) {
		return s.fault(OperandStackUnderflow, "%s needs %d operand(s), stack has %d", name, arity, len(s.operands))
	}

	switch name {
	case BuiltinHalt:
		s.halted = true
		return nil

	case BuiltinPrint:
		v, err := s.pop()
		if err != nil {
			return err
		}
		s.output = append(s.output, v)
		if _, err := fmt.Fprintln(s.vm.out, v); err != nil {
			return fmt.Errorf("print: %w", err)
		}
		return nil

	case BuiltinAssert:
		v, err := s.pop()
		if err != nil {
			return err
		}
		if !v.Truthy() {
			return s.fault(AssertionFailed, "assertion failed")
		}
		return nil
	}

	fn, ok := s.vm.builtins[name]
	if !ok {
		return s.fault(UnknownBuiltin, "no built-in named %q", name)
	}
	n := len(s.operands)
	args := append([]bytecode.Value(nil), s.operands[n-arity:]...)
	s.operands = s.operands[:n-arity]
	res, push, err := fn(args)
	if err != nil {
		return s.fault(TypeFault, "%s: %v", name, err)
	}
	if push {
		s.push(res)
	}
	return nil
}
