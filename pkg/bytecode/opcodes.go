package bytecode

import "fmt"

// Opcode identifies an instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack transfer (0x00-0x0F)
	// ========================================================================

	OpPushLocal       Opcode = 0x00 // Push local slot: PUSH_LOCAL <slot>
	OpPopLocal        Opcode = 0x01 // Pop into local slot: POP_LOCAL <slot>
	OpPushArg         Opcode = 0x02 // Push argument slot: PUSH_ARG <slot>
	OpPopArg          Opcode = 0x03 // Pop into argument slot: POP_ARG <slot>
	OpPushGlobal      Opcode = 0x04 // Push global slot: PUSH_GLOBAL <slot>
	OpPopGlobal       Opcode = 0x05 // Pop into global slot: POP_GLOBAL <slot>
	OpPushLiteral     Opcode = 0x06 // Push literal word: PUSH_LITERAL <value>
	OpMoveToCallStack Opcode = 0x07 // Pop operand stack, push call stack as an argument

	// ========================================================================
	// Control transfer (0x10-0x1F), absolute instruction index
	// ========================================================================

	OpJump        Opcode = 0x10 // Unconditional jump: JUMP <target>
	OpJumpIfTrue  Opcode = 0x11 // Pop, jump if non-zero: JUMP_IF_TRUE <target>
	OpJumpIfFalse Opcode = 0x12 // Pop, jump if zero: JUMP_IF_FALSE <target>

	// ========================================================================
	// Numeric conversion (0x20-0x2F), reserved
	// ========================================================================

	OpIntToFloat Opcode = 0x20 // Convert TOS int to float
	OpFloatToInt Opcode = 0x21 // Convert TOS float to int (truncating)

	// ========================================================================
	// Subroutine (0x30-0x3F)
	// ========================================================================

	OpCall        Opcode = 0x30 // Push link address, jump: CALL <target>
	OpReturn      Opcode = 0x31 // Tear down frame, pop <argc> arguments: RETURN <argc>
	OpLocalAlloc  Opcode = 0x32 // Open frame with <n> locals: LOCAL_ALLOC <n>
	OpGlobalAlloc Opcode = 0x33 // Size the global store: GLOBAL_ALLOC <n>

	// ========================================================================
	// Comparison (0x40-0x4F), push 0 or 1
	// ========================================================================

	OpEq Opcode = 0x40 // a == b
	OpNe Opcode = 0x41 // a != b
	OpLt Opcode = 0x42 // a < b
	OpGt Opcode = 0x43 // a > b
	OpLe Opcode = 0x44 // a <= b
	OpGe Opcode = 0x45 // a >= b

	// ========================================================================
	// Arithmetic (0x50-0x5F)
	// ========================================================================

	OpAdd Opcode = 0x50 // Pop two, push sum
	OpSub Opcode = 0x51 // Pop two, push difference (a - b where b is TOS)
	OpMul Opcode = 0x52 // Pop two, push product

	OpNeg    Opcode = 0x58 // Negate TOS
	OpPos    Opcode = 0x59 // Unary plus (identity on numbers)
	OpInvert Opcode = 0x5A // Bitwise complement of an int
	OpNot    Opcode = 0x5B // Push 1 if TOS is zero, else 0

	// ========================================================================
	// Built-in operations (0xF0-0xFF)
	// ========================================================================

	OpBuiltin Opcode = 0xF0 // VM-native operation by name: BUILTIN <name>/<arity>
)

// OperandKind describes what an instruction's immediate operand means.
type OperandKind uint8

const (
	OperandNone    OperandKind = iota
	OperandSlot                // storage slot index
	OperandCount               // element count
	OperandTarget              // absolute instruction index
	OperandLiteral             // literal value word
	OperandName                // name plus arity
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string      // Human-readable name
	StackPop  int         // Operand stack values popped (-1 = variable)
	StackPush int         // Operand stack values pushed
	Operand   OperandKind // Meaning of the immediate operand
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack transfer
	OpPushLocal:       {"PUSH_LOCAL", 0, 1, OperandSlot},
	OpPopLocal:        {"POP_LOCAL", 1, 0, OperandSlot},
	OpPushArg:         {"PUSH_ARG", 0, 1, OperandSlot},
	OpPopArg:          {"POP_ARG", 1, 0, OperandSlot},
	OpPushGlobal:      {"PUSH_GLOBAL", 0, 1, OperandSlot},
	OpPopGlobal:       {"POP_GLOBAL", 1, 0, OperandSlot},
	OpPushLiteral:     {"PUSH_LITERAL", 0, 1, OperandLiteral},
	OpMoveToCallStack: {"MOVE_TO_CALL_STACK", 1, 0, OperandNone},

	// Control transfer
	OpJump:        {"JUMP", 0, 0, OperandTarget},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", 1, 0, OperandTarget},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 1, 0, OperandTarget},

	// Conversion
	OpIntToFloat: {"INT_TO_FLOAT", 1, 1, OperandNone},
	OpFloatToInt: {"FLOAT_TO_INT", 1, 1, OperandNone},

	// Subroutine
	OpCall:        {"CALL", 0, 0, OperandTarget},
	OpReturn:      {"RETURN", 0, 0, OperandCount}, // call stack only; a result stays on the operand stack
	OpLocalAlloc:  {"LOCAL_ALLOC", 0, 0, OperandCount},
	OpGlobalAlloc: {"GLOBAL_ALLOC", 0, 0, OperandCount},

	// Comparison
	OpEq: {"EQ", 2, 1, OperandNone},
	OpNe: {"NE", 2, 1, OperandNone},
	OpLt: {"LT", 2, 1, OperandNone},
	OpGt: {"GT", 2, 1, OperandNone},
	OpLe: {"LE", 2, 1, OperandNone},
	OpGe: {"GE", 2, 1, OperandNone},

	// Arithmetic
	OpAdd:    {"ADD", 2, 1, OperandNone},
	OpSub:    {"SUB", 2, 1, OperandNone},
	OpMul:    {"MUL", 2, 1, OperandNone},
	OpNeg:    {"NEG", 1, 1, OperandNone},
	OpPos:    {"POS", 1, 1, OperandNone},
	OpInvert: {"INVERT", 1, 1, OperandNone},
	OpNot:    {"NOT", 1, 1, OperandNone},

	// Built-in
	OpBuiltin: {"BUILTIN", -1, -1, OperandName}, // arity is declared by the embedding application
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump returns true for the three jump instructions.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpJumpIfFalse
}

// IsComparison returns true for the six ordering instructions.
func (op Opcode) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsUnary returns true for single-operand arithmetic.
func (op Opcode) IsUnary() bool {
	return op >= OpNeg && op <= OpNot
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
