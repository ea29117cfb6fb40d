package vm

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/chazu/subpy/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// VM: configuration shared by runs
// ---------------------------------------------------------------------------

// VM runs programs. It holds only configuration, so one VM may be used for
// any number of runs, including concurrent ones.
type VM struct {
	out       io.Writer
	trace     zerolog.Logger
	tracing   bool
	stepLimit int
	builtins  map[string]Builtin
}

// Option configures a VM.
type Option func(*VM)

// WithOutput sets where print writes. The default discards output; printed
// values are always recorded in the Result.
func WithOutput(w io.Writer) Option {
	return func(v *VM) { v.out = w }
}

// WithTrace logs every executed instruction at trace level.
func WithTrace(logger zerolog.Logger) Option {
	return func(v *VM) {
		v.trace = logger
		v.tracing = true
	}
}

// WithStepLimit bounds the number of instructions a run may execute.
// Zero means unlimited.
func WithStepLimit(n int) Option {
	return func(v *VM) { v.stepLimit = n }
}

// WithBuiltin registers an additional VM-native operation.
func WithBuiltin(name string, fn Builtin) Option {
	return func(v *VM) { v.builtins[name] = fn }
}

// New creates a VM.
func New(opts ...Option) *VM {
	v := &VM{
		out:      io.Discard,
		trace:    zerolog.Nop(),
		builtins: make(map[string]Builtin),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ---------------------------------------------------------------------------
// Result
// ---------------------------------------------------------------------------

// Result is what a finished run leaves behind.
type Result struct {
	// Output holds every value passed to print, in order.
	Output []bytecode.Value
	// Stack is the operand stack at termination, bottom first.
	Stack []bytecode.Value
	// Globals is the global store at termination.
	Globals []bytecode.Value
	// Steps is the number of instructions executed.
	Steps int
}

// Top returns the operand stack top, if any.
func (r *Result) Top() (bytecode.Value, bool) {
	if len(r.Stack) == 0 {
		return bytecode.Value{}, false
	}
	return r.Stack[len(r.Stack)-1], true
}

// Run executes p from instruction 0 until it halts, returns from the
// outermost level, runs past its last instruction, or faults. Every run
// starts from empty stacks and an empty global store.
func (v *VM) Run(p *bytecode.Program) (*Result, error) {
	s := newState(v, p)
	if err := s.run(); err != nil {
		return nil, err
	}
	return &Result{
		Output:  s.output,
		Stack:   s.operands,
		Globals: s.globals,
		Steps:   s.steps,
	}, nil
}
