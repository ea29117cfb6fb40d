// Package vm executes finalized bytecode programs.
//
// The machine has an operand stack for expression values, a call stack of
// tagged slots holding arguments, link addresses, saved base pointers and
// locals, and a global store sized by GLOBAL_ALLOC. All of it belongs to a
// single Run; a VM value only carries options.
//
// Frame layout, growing upward, for a call f(a0, a1) with two locals:
//
//	a1        argument 1   bp-3
//	a0        argument 0   bp-2
//	link      return pc    bp-1
//	base      caller's bp  bp
//	l0        local 0      bp+1
//	l1        local 1      bp+2
//
// Arguments are moved to the call stack last-first, CALL pushes the link,
// and the callee's LOCAL_ALLOC pushes the saved base pointer and its locals.
// RETURN n undoes all of it and leaves any result on the operand stack.
package vm
