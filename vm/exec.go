package vm

import (
	"github.com/chazu/subpy/pkg/bytecode"
)

func (s *state) run() error {
	for !s.halted && s.pc < len(s.code) {
		if limit := s.vm.stepLimit; limit > 0 && s.steps >= limit {
			in := s.code[s.pc]
			return fault(StepLimitExceeded, s.pc, in, "step limit of %d reached", limit)
		}
		if err := s.step(); err != nil {
			return err
		}
	}
	return nil
}

// step executes the instruction at pc.
func (s *state) step() error {
	s.curPC, s.cur = s.pc, s.code[s.pc]
	in := s.cur
	s.pc++
	s.steps++

	if s.vm.tracing {
		s.vm.trace.Trace().
			Int("pc", s.curPC).
			Str("op", in.String()).
			Int("sp", len(s.operands)).
			Int("cs", len(s.calls)).
			Int("bp", s.bp).
			Msg("step")
	}

	switch in.Op {
	// --- Stack transfer ---
	case bytecode.OpPushLocal, bytecode.OpPushArg:
		sl, err := s.frameSlot(slotFor(in.Op), in.Operand)
		if err != nil {
			return err
		}
		s.push(sl.value)

	case bytecode.OpPopLocal, bytecode.OpPopArg:
		sl, err := s.frameSlot(slotFor(in.Op), in.Operand)
		if err != nil {
			return err
		}
		v, err := s.pop()
		if err != nil {
			return err
		}
		sl.value = v

	case bytecode.OpPushGlobal:
		g, err := s.global(in.Operand)
		if err != nil {
			return err
		}
		s.push(*g)

	case bytecode.OpPopGlobal:
		g, err := s.global(in.Operand)
		if err != nil {
			return err
		}
		v, err := s.pop()
		if err != nil {
			return err
		}
		*g = v

	case bytecode.OpPushLiteral:
		s.push(in.Literal)

	case bytecode.OpMoveToCallStack:
		v, err := s.pop()
		if err != nil {
			return err
		}
		s.pushSlot(slot{kind: argumentSlot, value: v})

	// --- Control transfer ---
	case bytecode.OpJump:
		return s.jump(in.Operand)

	case bytecode.OpJumpIfTrue, bytecode.OpJumpIfFalse:
		v, err := s.pop()
		if err != nil {
			return err
		}
		if v.Truthy() == (in.Op == bytecode.OpJumpIfTrue) {
			return s.jump(in.Operand)
		}

	// --- Conversion ---
	case bytecode.OpIntToFloat:
		v, err := s.pop()
		if err != nil {
			return err
		}
		s.push(bytecode.Float(v.AsFloat()))

	case bytecode.OpFloatToInt:
		v, err := s.pop()
		if err != nil {
			return err
		}
		if v.IsFloat {
			v = bytecode.Int(int64(v.F))
		}
		s.push(v)

	// --- Subroutine ---
	case bytecode.OpCall:
		t := in.Operand
		if t < 0 || t >= len(s.code) || s.code[t].Op != bytecode.OpLocalAlloc {
			return s.fault(BadCallTarget, "call target %d is not a function entry", t)
		}
		s.pushSlot(slot{kind: linkSlot, addr: s.pc})
		s.pc = t

	case bytecode.OpReturn:
		ok, err := s.closeFrame(in.Operand)
		if err != nil {
			return err
		}
		if !ok {
			s.halted = true
		}

	case bytecode.OpLocalAlloc:
		if in.Operand < 0 || in.Operand > bytecode.MaxSlots {
			return s.fault(SlotOutOfRange, "local count %d out of range", in.Operand)
		}
		s.openFrame(in.Operand)

	case bytecode.OpGlobalAlloc:
		if in.Operand < 0 || in.Operand > bytecode.MaxSlots {
			return s.fault(SlotOutOfRange, "global count %d out of range", in.Operand)
		}
		if in.Operand > len(s.globals) {
			grown := make([]bytecode.Value, in.Operand)
			copy(grown, s.globals)
			s.globals = grown
		}

	// --- Comparison and arithmetic ---
	case bytecode.OpEq, bytecode.OpNe, bytecode.OpLt, bytecode.OpGt, bytecode.OpLe, bytecode.OpGe,
		bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul:
		l, r, err := s.pop2()
		if err != nil {
			return err
		}
		s.push(binary(in.Op, l, r))

	case bytecode.OpNeg, bytecode.OpPos, bytecode.OpInvert, bytecode.OpNot:
		v, err := s.pop()
		if err != nil {
			return err
		}
		res, err := s.unary(in.Op, v)
		if err != nil {
			return err
		}
		s.push(res)

	// --- Built-in ---
	case bytecode.OpBuiltin:
		return s.builtin(in.Name, in.Operand)

	default:
		return s.fault(TypeFault, "unknown opcode 0x%02X", byte(in.Op))
	}
	return nil
}

func slotFor(op bytecode.Opcode) slotKind {
	if op == bytecode.OpPushArg || op == bytecode.OpPopArg {
		return argumentSlot
	}
	return localSlot
}

// jump transfers control to target. Jumping to the end of the program is
// allowed and terminates the run.
func (s *state) jump(target int) error {
	if target < 0 || target > len(s.code) {
		return s.fault(BadJumpTarget, "jump target %d outside [0, %d]", target, len(s.code))
	}
	s.pc = target
	return nil
}

// binary evaluates an arithmetic or comparison instruction. Int operands
// stay int; a float on either side promotes both.
func binary(op bytecode.Opcode, l, r bytecode.Value) bytecode.Value {
	if !l.IsFloat && !r.IsFloat {
		a, b := l.I, r.I
		switch op {
		case bytecode.OpAdd:
			return bytecode.Int(a + b)
		case bytecode.OpSub:
			return bytecode.Int(a - b)
		case bytecode.OpMul:
			return bytecode.Int(a * b)
		case bytecode.OpEq:
			return bytecode.Bool(a == b)
		case bytecode.OpNe:
			return bytecode.Bool(a != b)
		case bytecode.OpLt:
			return bytecode.Bool(a < b)
		case bytecode.OpGt:
			return bytecode.Bool(a > b)
		case bytecode.OpLe:
			return bytecode.Bool(a <= b)
		case bytecode.OpGe:
			return bytecode.Bool(a >= b)
		}
	}

	a, b := l.AsFloat(), r.AsFloat()
	switch op {
	case bytecode.OpAdd:
		return bytecode.Float(a + b)
	case bytecode.OpSub:
		return bytecode.Float(a - b)
	case bytecode.OpMul:
		return bytecode.Float(a * b)
	case bytecode.OpEq:
		return bytecode.Bool(a == b)
	case bytecode.OpNe:
		return bytecode.Bool(a != b)
	case bytecode.OpLt:
		return bytecode.Bool(a < b)
	case bytecode.OpGt:
		return bytecode.Bool(a > b)
	case bytecode.OpLe:
		return bytecode.Bool(a <= b)
	default:
		return bytecode.Bool(a >= b)
	}
}

func (s *state) unary(op bytecode.Opcode, v bytecode.Value) (bytecode.Value, error) {
	switch op {
	case bytecode.OpNeg:
		if v.IsFloat {
			return bytecode.Float(-v.F), nil
		}
		return bytecode.Int(-v.I), nil
	case bytecode.OpInvert:
		if v.IsFloat {
			return bytecode.Value{}, s.fault(TypeFault, "bitwise complement of float %s", v)
		}
		return bytecode.Int(^v.I), nil
	case bytecode.OpNot:
		return bytecode.Bool(!v.Truthy()), nil
	}
	return v, nil
}
