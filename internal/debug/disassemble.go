// Package debug renders compiled bytecode in human-readable form and dumps
// the raw encoding to disk, the way the teacher's ASTCompiler wrote its
// ".nic"/".dnic" files.
package debug

import (
	"fmt"
	"os"
	"strings"

	"loxvm/bytecode"
	"loxvm/value"
)

// DumpBytecode writes fn's instruction stream to filePath (".nic" appended)
// as a hex string, so it can be inspected in a text editor.
func DumpBytecode(fn *value.Function, filePath string) error {
	if filePath == "" {
		filePath = "bytecode"
	}
	filePath += ".nic"
	encoded := fmt.Sprintf("%x", []byte(fn.Chunk))
	return os.WriteFile(filePath, []byte(encoded), 0o644)
}

// Disassemble renders fn's instruction stream one instruction per line:
// offset, opcode name, and decoded operands. Unlike the teacher's
// DiassembleBytecode, it drives itself off the opcode's own OperandWidths
// rather than hand-rolled per-opcode instruction lengths, so it never drifts
// out of sync with the opcode table.
func Disassemble(fn *value.Function) (string, error) {
	var out strings.Builder
	fmt.Fprintf(&out, "== %s ==\n", fn.Name)

	offset := 0
	for offset < len(fn.Chunk) {
		line, next, err := Instruction(&out, fn, offset)
		if err != nil {
			return out.String(), err
		}
		_ = line
		offset = next
	}
	return out.String(), nil
}

// DisassembleToFile renders fn and writes it to filePath (".dnic" appended).
func DisassembleToFile(fn *value.Function, filePath string) (string, error) {
	rendered, err := Disassemble(fn)
	if err != nil {
		return rendered, err
	}
	if filePath == "" {
		filePath = "bytecode"
	}
	filePath += ".dnic"
	if werr := os.WriteFile(filePath, []byte(rendered), 0o644); werr != nil {
		return rendered, werr
	}
	return rendered, nil
}

// Instruction writes one disassembled instruction from fn's chunk at offset
// to out, returning its source line and the offset of the next instruction.
// Exported so the VM's trace mode can render the instruction it's about to
// dispatch without duplicating the opcode-to-text logic.
func Instruction(out *strings.Builder, fn *value.Function, offset int) (line int32, nextOffset int, err error) {
	op := bytecode.Opcode(fn.Chunk[offset])
	def, err := bytecode.Get(op)
	if err != nil {
		return 0, 0, err
	}
	if offset < len(fn.Lines) {
		line = fn.Lines[offset]
	}

	fmt.Fprintf(out, "%04d %4d %-18s", offset, line, def.Name)

	pos := offset + 1
	for _, width := range def.OperandWidths {
		switch width {
		case 1:
			operand := int(fn.Chunk[pos])
			fmt.Fprintf(out, " %d", operand)
			if op == bytecode.OP_VALUE || op == bytecode.OP_GET || op == bytecode.OP_ASSIGN {
				fmt.Fprintf(out, " ; %s", fn.Constants[operand].String())
			}
		case 2:
			operand := int(fn.Chunk[pos])<<8 | int(fn.Chunk[pos+1])
			fmt.Fprintf(out, " %d", operand)
		}
		pos += width
	}
	fmt.Fprintln(out)

	total, err := bytecode.Len(op)
	if err != nil {
		return 0, 0, err
	}
	return line, offset + total, nil
}
