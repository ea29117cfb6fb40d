package bytecode

import (
	"fmt"

	"github.com/joomcode/errorx"
)

var (
	Errors = errorx.NewNamespace("bytecode")

	// UnresolvedCallError: a call names a function with no recorded entry.
	// The static stages make this unreachable for a well-formed module.
	UnresolvedCallError = Errors.NewType("unresolved_call")
	// UnpatchedJumpError: a forward jump was never given a target.
	UnpatchedJumpError = Errors.NewType("unpatched_jump")
	// DuplicateEntryError: two functions claim the same name.
	DuplicateEntryError = Errors.NewType("duplicate_entry")
	// WireError: a serialized program is malformed or inconsistent.
	WireError = Errors.NewType("wire")

	PropertyIndex = errorx.RegisterPrintableProperty("index")
)

// pending marks an operand that has not been resolved yet.
const pending = -1

// Instruction is one operation plus its immediate operands.
//
// Operand holds the slot, count, target or arity depending on the opcode's
// OperandKind. Name carries the callee of CALL (kept after resolution for
// listings) and the operation name of BUILTIN.
type Instruction struct {
	Op      Opcode `cbor:"1,keyasint" json:"op"`
	Operand int    `cbor:"2,keyasint,omitempty" json:"operand,omitempty"`
	Literal Value  `cbor:"3,keyasint" json:"literal"`
	Name    string `cbor:"4,keyasint,omitempty" json:"name,omitempty"`
	Line    int    `cbor:"5,keyasint,omitempty" json:"line,omitempty"`
}

func (in Instruction) String() string {
	switch GetOpcodeInfo(in.Op).Operand {
	case OperandSlot, OperandCount:
		return fmt.Sprintf("%s %d", in.Op, in.Operand)
	case OperandTarget:
		if in.Op == OpCall && in.Name != "" {
			return fmt.Sprintf("%s %d <%s>", in.Op, in.Operand, in.Name)
		}
		return fmt.Sprintf("%s %d", in.Op, in.Operand)
	case OperandLiteral:
		return fmt.Sprintf("%s %s", in.Op, in.Literal)
	case OperandName:
		return fmt.Sprintf("%s %s/%d", in.Op, in.Name, in.Operand)
	}
	return in.Op.String()
}

// Entry records where a function's code begins.
type Entry struct {
	Name   string `cbor:"1,keyasint" json:"name"`
	Offset int    `cbor:"2,keyasint" json:"offset"`
	Args   int    `cbor:"3,keyasint" json:"args"`
	Locals int    `cbor:"4,keyasint" json:"locals"`
}

// Program is a finalized, immutable instruction sequence with every call
// target resolved to an absolute index. Accessors return copies.
type Program struct {
	code    []Instruction
	entries []Entry
	globals int
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.code) }

// At returns the instruction at index i. It panics if i is out of range.
func (p *Program) At(i int) Instruction { return p.code[i] }

// Instructions returns a copy of the instruction sequence.
func (p *Program) Instructions() []Instruction {
	return append([]Instruction(nil), p.code...)
}

// Entries returns the function entries in declaration order.
func (p *Program) Entries() []Entry {
	return append([]Entry(nil), p.entries...)
}

// Entry looks up a function entry by name.
func (p *Program) Entry(name string) (Entry, bool) {
	for _, e := range p.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// GlobalCount is the global store size the program declares.
func (p *Program) GlobalCount() int { return p.globals }

// Builder accumulates instructions with symbolic call targets and
// placeholder jumps. Finalize freezes it into a Program.
type Builder struct {
	code    []Instruction
	entries []Entry
	index   map[string]int
	calls   []int
	globals int
	line    int
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// SetLine sets the source line recorded on subsequently emitted instructions.
func (b *Builder) SetLine(line int) { b.line = line }

// Len returns the index the next instruction will occupy.
func (b *Builder) Len() int { return len(b.code) }

// Emit appends an instruction with an integer operand and returns its index.
func (b *Builder) Emit(op Opcode, operand int) int {
	b.code = append(b.code, Instruction{Op: op, Operand: operand, Line: b.line})
	return len(b.code) - 1
}

// EmitLiteral appends PUSH_LITERAL v.
func (b *Builder) EmitLiteral(v Value) int {
	b.code = append(b.code, Instruction{Op: OpPushLiteral, Literal: v, Line: b.line})
	return len(b.code) - 1
}

// EmitJump emits a jump with a placeholder target.
// Returns the instruction index for later patching.
func (b *Builder) EmitJump(op Opcode) int {
	return b.Emit(op, pending)
}

// PatchJump points the jump at index at to the next instruction position.
func (b *Builder) PatchJump(at int) {
	b.PatchJumpTo(at, len(b.code))
}

// PatchJumpTo points the jump at index at to target.
func (b *Builder) PatchJumpTo(at, target int) {
	b.code[at].Operand = target
}

// EmitLoop emits a backward jump to the given loop start.
func (b *Builder) EmitLoop(loopStart int) int {
	return b.Emit(OpJump, loopStart)
}

// EmitCall emits CALL tagged with the callee name; the target is filled in
// by Finalize.
func (b *Builder) EmitCall(name string) int {
	i := len(b.code)
	b.code = append(b.code, Instruction{Op: OpCall, Operand: pending, Name: name, Line: b.line})
	b.calls = append(b.calls, i)
	return i
}

// EmitBuiltin emits BUILTIN name/arity.
func (b *Builder) EmitBuiltin(name string, arity int) int {
	b.code = append(b.code, Instruction{Op: OpBuiltin, Operand: arity, Name: name, Line: b.line})
	return len(b.code) - 1
}

// MarkEntry records that function name begins at the next instruction.
func (b *Builder) MarkEntry(name string, args, locals int) error {
	if _, dup := b.index[name]; dup {
		return DuplicateEntryError.New("function %q already has an entry", name)
	}
	b.index[name] = len(b.entries)
	b.entries = append(b.entries, Entry{Name: name, Offset: len(b.code), Args: args, Locals: locals})
	return nil
}

// SetGlobalCount records the global store size for the program header.
func (b *Builder) SetGlobalCount(n int) { b.globals = n }

// Finalize resolves every call target and returns the frozen Program. The
// builder must not be used afterwards.
func (b *Builder) Finalize() (*Program, error) {
	code := append([]Instruction(nil), b.code...)

	for _, i := range b.calls {
		e, ok := b.index[code[i].Name]
		if !ok {
			return nil, UnresolvedCallError.New("call to %q has no entry", code[i].Name).
				WithProperty(PropertyIndex, i)
		}
		code[i].Operand = b.entries[e].Offset
	}

	for i, in := range code {
		if in.Op.IsJump() && in.Operand == pending {
			return nil, UnpatchedJumpError.New("%s was never patched", in.Op).WithProperty(PropertyIndex, i)
		}
	}

	return &Program{
		code:    code,
		entries: append([]Entry(nil), b.entries...),
		globals: b.globals,
	}, nil
}

// MaxSlots bounds every slot index and storage count a program may name.
const MaxSlots = 1 << 16

// Verify checks that every control transfer and entry lands inside the
// program, every opcode is known, and every storage count matches the
// header and stays within MaxSlots. Programs built by Finalize always
// pass; decoded programs are checked before use.
func (p *Program) Verify() error {
	n := len(p.code)
	if p.globals < 0 || p.globals > MaxSlots {
		return WireError.New("global count %d out of range", p.globals)
	}

	entries := make(map[int]Entry, len(p.entries))
	for _, e := range p.entries {
		if e.Offset < 0 || e.Offset >= n || p.code[e.Offset].Op != OpLocalAlloc {
			return WireError.New("entry %q at %d is not a LOCAL_ALLOC", e.Name, e.Offset)
		}
		if e.Args < 0 || e.Args > MaxSlots || e.Locals < 0 || e.Locals > MaxSlots {
			return WireError.New("entry %q has %d argument(s) and %d local(s)", e.Name, e.Args, e.Locals)
		}
		entries[e.Offset] = e
	}

	for i, in := range p.code {
		if !in.Op.Valid() {
			return WireError.New("unknown opcode 0x%02X", byte(in.Op)).WithProperty(PropertyIndex, i)
		}
		switch {
		case in.Op.IsJump():
			// A jump to n runs off the end, which halts normally.
			if in.Operand < 0 || in.Operand > n {
				return WireError.New("%s target %d out of range", in.Op, in.Operand).WithProperty(PropertyIndex, i)
			}
		case in.Op == OpCall:
			if _, ok := entries[in.Operand]; !ok {
				return WireError.New("call target %d is not a function entry", in.Operand).WithProperty(PropertyIndex, i)
			}
		case in.Op == OpGlobalAlloc:
			if in.Operand != p.globals {
				return WireError.New("GLOBAL_ALLOC %d disagrees with the header's %d global(s)", in.Operand, p.globals).
					WithProperty(PropertyIndex, i)
			}
		case in.Op == OpLocalAlloc:
			e, ok := entries[i]
			if !ok {
				return WireError.New("LOCAL_ALLOC outside a function entry").WithProperty(PropertyIndex, i)
			}
			if in.Operand != e.Locals {
				return WireError.New("LOCAL_ALLOC %d disagrees with %q's %d local(s)", in.Operand, e.Name, e.Locals).
					WithProperty(PropertyIndex, i)
			}
		case GetOpcodeInfo(in.Op).Operand == OperandSlot || GetOpcodeInfo(in.Op).Operand == OperandCount:
			if in.Operand < 0 || in.Operand > MaxSlots {
				return WireError.New("%s operand %d out of range", in.Op, in.Operand).WithProperty(PropertyIndex, i)
			}
		}
	}
	return nil
}
