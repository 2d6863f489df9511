// Package bytecode defines the instruction encoding shared by the compiler
// and the VM: the opcode set, operand widths, and the routines that
// assemble a byte stream from an opcode and its operands.
package bytecode

import (
	"encoding/binary"
	"fmt"
)

type Opcode byte

type Instructions []byte

// Opcodes. A one-byte index operand (OP_VALUE, OP_GET, OP_ASSIGN) addresses
// the current function's constant pool, which holds at most 256 entries.
// OP_CALL's operand is the call's argument count. Jump operands are 16-bit
// big-endian byte distances.
const (
	OP_VALUE Opcode = iota
	OP_ADD
	OP_SUBSTRACT
	OP_MULTIPLY
	OP_DIVIDE
	OP_LESS
	OP_LESS_EQUAL
	OP_GREATER
	OP_GREATER_EQUAL
	OP_EQUAL_EQUAL
	OP_BANG_EQUAL
	OP_NOT
	OP_NEGATE
	OP_GET
	OP_ASSIGN
	OP_POP
	OP_JUMP
	OP_JUMP_IF_FALSE
	OP_JUMP_BACKWARD
	OP_PRINT
	OP_CALL
)

// OpCodeDefinition names an opcode and the byte-width of each of its
// operands, in order.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	OP_VALUE:          {"OP_VALUE", []int{1}},
	OP_ADD:            {"OP_ADD", nil},
	OP_SUBSTRACT:      {"OP_SUBSTRACT", nil},
	OP_MULTIPLY:       {"OP_MULTIPLY", nil},
	OP_DIVIDE:         {"OP_DIVIDE", nil},
	OP_LESS:           {"OP_LESS", nil},
	OP_LESS_EQUAL:     {"OP_LESS_EQUAL", nil},
	OP_GREATER:        {"OP_GREATER", nil},
	OP_GREATER_EQUAL:  {"OP_GREATER_EQUAL", nil},
	OP_EQUAL_EQUAL:    {"OP_EQUAL_EQUAL", nil},
	OP_BANG_EQUAL:     {"OP_BANG_EQUAL", nil},
	OP_NOT:            {"OP_NOT", nil},
	OP_NEGATE:         {"OP_NEGATE", nil},
	OP_GET:            {"OP_GET", []int{1}},
	OP_ASSIGN:         {"OP_ASSIGN", []int{1}},
	OP_POP:            {"OP_POP", nil},
	OP_JUMP:           {"OP_JUMP", []int{2}},
	OP_JUMP_IF_FALSE:  {"OP_JUMP_IF_FALSE", []int{2}},
	OP_JUMP_BACKWARD:  {"OP_JUMP_BACKWARD", []int{2}},
	OP_PRINT:          {"OP_PRINT", nil},
	OP_CALL:           {"OP_CALL", []int{1}},
}

// Get looks up the definition for op.
func Get(op Opcode) (*OpCodeDefinition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

// Len reports the total byte length of an instruction for op, including its
// leading opcode byte.
func Len(op Opcode) (int, error) {
	def, err := Get(op)
	if err != nil {
		return 0, err
	}
	total := 1
	for _, w := range def.OperandWidths {
		total += w
	}
	return total, nil
}

// MakeInstruction assembles a single instruction from an opcode and its
// operands, encoding each operand in big-endian order at the width given by
// the opcode's definition.
func MakeInstruction(op Opcode, operands ...int) ([]byte, error) {
	def, err := Get(op)
	if err != nil {
		return nil, err
	}
	if len(operands) != len(def.OperandWidths) {
		return nil, fmt.Errorf("%s expects %d operand(s), got %d", def.Name, len(def.OperandWidths), len(operands))
	}

	length := 1
	for _, w := range def.OperandWidths {
		length += w
	}
	instruction := make([]byte, length)
	instruction[0] = byte(op)

	offset := 1
	for i, operand := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 1:
			instruction[offset] = byte(operand)
		case 2:
			binary.BigEndian.PutUint16(instruction[offset:], uint16(operand))
		}
		offset += width
	}
	return instruction, nil
}
