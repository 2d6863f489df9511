package compiler

import "fmt"

// CompileError reports a source-level mistake caught while compiling:
// undefined names, redeclarations, invalid assignment targets, an
// overflowing constant pool or local table, and the like. It always
// carries the source line the mistake was found on.
type CompileError struct {
	Line    int32
	Message string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("[Line : %d] %s", e.Line, e.Message)
}

// DeveloperError reports an invariant violated by the compiler itself
// (an unknown opcode, a malformed instruction) rather than by the source
// being compiled. Seeing one means the compiler has a bug.
type DeveloperError struct {
	Message string
}

func (e DeveloperError) Error() string {
	return fmt.Sprintf("internal compiler error: %s", e.Message)
}
