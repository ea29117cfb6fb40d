// Package bytecode defines the stack-machine instruction set shared by the
// code generator and the virtual machine.
//
// # Instruction set
//
// Every instruction is an opcode plus at most one immediate operand:
//
//   - Stack transfer: push/pop of local, argument and global slots, literal
//     pushes, and MOVE_TO_CALL_STACK which moves an operand to the call stack
//     as an argument
//
//   - Control transfer: JUMP, JUMP_IF_TRUE, JUMP_IF_FALSE, all by absolute
//     instruction index; the conditional forms pop their test value
//
//   - Subroutine: CALL, RETURN <argc>, LOCAL_ALLOC <n>, GLOBAL_ALLOC <n>
//
//   - Comparison and arithmetic: EQ NE LT GT LE GE push 0 or 1; ADD SUB MUL;
//     unary NEG POS INVERT NOT
//
//   - BUILTIN <name>/<arity>: a VM-native operation taking its arguments
//     from the operand stack
//
// INT_TO_FLOAT and FLOAT_TO_INT are part of the vocabulary but are not
// emitted by the generator.
//
// # Build then freeze
//
// A Builder accepts emissions with placeholder jump targets and symbolic
// call targets. Finalize resolves every CALL to the callee's entry offset
// and returns an immutable Program. Programs can be serialized with Marshal
// (canonical CBOR) and identified by Fingerprint.
//
// # Call frames
//
// Arguments are moved to the call stack in reverse declaration order, then
// CALL pushes the link address. The callee's LOCAL_ALLOC pushes the previous
// base pointer, makes that element the new base, and pushes one slot per
// local. Local k lives at base+1+k and argument k at base-2-k. RETURN n
// truncates to the base, restores the base pointer, pops the link and then
// n arguments.
package bytecode
