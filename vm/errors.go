package vm

import "fmt"

// RuntimeError reports a fatal condition raised while running bytecode: a
// type mismatch at an operator, stack overflow or underflow, an unknown
// opcode, or a call to a non-function value. It carries the source line of
// the faulting instruction, recovered from the running function's line
// table.
type RuntimeError struct {
	Line    int32
	Message string
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("[Line : %d] %s", e.Line, e.Message)
}
