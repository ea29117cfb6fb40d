package vm

import (
	"fmt"

	"github.com/joomcode/errorx"

	"github.com/chazu/subpy/pkg/bytecode"
)

// slotKind tags a call-stack entry.
type slotKind uint8

const (
	argumentSlot slotKind = iota
	linkSlot
	baseSlot
	localSlot
)

func (k slotKind) String() string {
	switch k {
	case argumentSlot:
		return "argument"
	case linkSlot:
		return "link"
	case baseSlot:
		return "base"
	case localSlot:
		return "local"
	}
	return fmt.Sprintf("slotKind(%d)", uint8(k))
}

// slot is one call-stack entry. Arguments and locals use value; link and
// base slots use addr.
type slot struct {
	kind  slotKind
	value bytecode.Value
	addr  int
}

// noFrame is the base pointer before any LOCAL_ALLOC has run.
const noFrame = -1

// state is everything one run mutates.
type state struct {
	vm   *VM
	code []bytecode.Instruction

	operands []bytecode.Value
	calls    []slot
	globals  []bytecode.Value

	pc, bp int
	halted bool
	steps  int
	output []bytecode.Value

	// cur is the instruction being executed, for fault context.
	cur   bytecode.Instruction
	curPC int
}

func newState(v *VM, p *bytecode.Program) *state {
	return &state{
		vm:   v,
		code: p.Instructions(),
		bp:   noFrame,
	}
}

func (s *state) fault(t *errorx.Type, format string, args ...any) error {
	return fault(t, s.curPC, s.cur, format, args...)
}

// ---- operand stack ----

func (s *state) push(v bytecode.Value) {
	s.operands = append(s.operands, v)
}

func (s *state) pop() (bytecode.Value, error) {
	n := len(s.operands)
	if n == 0 {
		return bytecode.Value{}, s.fault(OperandStackUnderflow, "operand stack is empty")
	}
	v := s.operands[n-1]
	s.operands = s.operands[:n-1]
	return v, nil
}

// pop2 returns the left and right operands of a binary instruction. The
// right operand is on top.
func (s *state) pop2() (left, right bytecode.Value, err error) {
	if right, err = s.pop(); err != nil {
		return
	}
	left, err = s.pop()
	return
}

// ---- call stack ----

func (s *state) pushSlot(sl slot) {
	s.calls = append(s.calls, sl)
}

func (s *state) popSlot(want slotKind) (slot, error) {
	n := len(s.calls)
	if n == 0 {
		return slot{}, s.fault(CallStackUnderflow, "call stack is empty, expected a %s slot", want)
	}
	sl := s.calls[n-1]
	if sl.kind != want {
		return slot{}, s.fault(FrameMismatch, "expected a %s slot, found %s", want, sl.kind)
	}
	s.calls = s.calls[:n-1]
	return sl, nil
}

// frameSlot locates argument or local k of the current frame.
func (s *state) frameSlot(kind slotKind, k int) (*slot, error) {
	if s.bp == noFrame {
		return nil, s.fault(SlotOutOfRange, "%s %d accessed outside a function", kind, k)
	}
	i := s.bp + 1 + k
	if kind == argumentSlot {
		i = s.bp - 2 - k
	}
	if k < 0 || i < 0 || i >= len(s.calls) {
		return nil, s.fault(SlotOutOfRange, "%s %d is outside the frame", kind, k)
	}
	sl := &s.calls[i]
	if sl.kind != kind {
		return nil, s.fault(FrameMismatch, "%s %d resolves to a %s slot", kind, k, sl.kind)
	}
	return sl, nil
}

// openFrame runs LOCAL_ALLOC n.
func (s *state) openFrame(n int) {
	s.pushSlot(slot{kind: baseSlot, addr: s.bp})
	s.bp = len(s.calls) - 1
	for range n {
		s.pushSlot(slot{kind: localSlot})
	}
}

// closeFrame runs RETURN argc. It reports false when there is no frame to
// return from, which ends the run.
func (s *state) closeFrame(argc int) (bool, error) {
	if s.bp == noFrame {
		return false, nil
	}
	if s.bp >= len(s.calls) {
		return false, s.fault(CallStackUnderflow, "base pointer %d above call stack depth %d", s.bp, len(s.calls))
	}
	s.calls = s.calls[:s.bp+1]
	base, err := s.popSlot(baseSlot)
	if err != nil {
		return false, err
	}
	link, err := s.popSlot(linkSlot)
	if err != nil {
		return false, err
	}
	for range argc {
		if _, err := s.popSlot(argumentSlot); err != nil {
			return false, err
		}
	}
	s.bp = base.addr
	s.pc = link.addr
	return true, nil
}

// ---- globals ----

func (s *state) global(k int) (*bytecode.Value, error) {
	if k < 0 || k >= len(s.globals) {
		return nil, s.fault(SlotOutOfRange, "global %d outside a store of %d", k, len(s.globals))
	}
	return &s.globals[k], nil
}
