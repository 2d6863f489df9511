// Package vm implements the stack-based virtual machine that executes
// compiled bytecode: a fixed-size value stack, a call-frame stack, and the
// opcode dispatch loop.
package vm

import (
	"fmt"
	"io"
	"os"
	"strings"

	"loxvm/bytecode"
	"loxvm/internal/debug"
	"loxvm/value"
)

// maxFrames bounds call-frame depth, guarding against runaway recursion the
// way clox's FRAMES_MAX does.
const maxFrames = 64

// Frame is one call-frame: the function it's executing, its instruction
// pointer into that function's Chunk, and the stack index its local slots
// are based at.
type Frame struct {
	function  *value.Function
	ip        int
	frameBase int
}

// VM is the dispatch loop's state. Out is where OP_PRINT writes; it
// defaults to os.Stdout but tests substitute a buffer.
type VM struct {
	stack     valueStack
	frames    []Frame
	Out       io.Writer
	stackSize int

	// Trace, when set, disassembles each instruction to Out before it
	// dispatches (config.Config's "trace" flag).
	Trace bool
}

// New builds a VM with the default 255-slot stack.
func New() *VM {
	return NewWithStackSize(defaultStackSize)
}

// NewWithStackSize builds a VM whose value stack holds capacity slots,
// letting config.Config raise the spec's default budget for programs that
// need deeper expression nesting or recursion.
func NewWithStackSize(capacity int) *VM {
	return &VM{Out: os.Stdout, stackSize: capacity}
}

// Run installs a frame for fn (conventionally the "__main__" top-level
// function) and executes until the frame stack is empty.
func (vm *VM) Run(fn *value.Function) error {
	vm.stack = newValueStack(vm.stackSize)
	vm.frames = []Frame{{function: fn, ip: 0, frameBase: 0}}

	for len(vm.frames) > 0 {
		frame := &vm.frames[len(vm.frames)-1]
		chunk := frame.function.Chunk

		if frame.ip >= len(chunk) {
			popped := vm.frames[len(vm.frames)-1]
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.stack.top = popped.frameBase
			continue
		}

		op := bytecode.Opcode(chunk[frame.ip])
		if vm.Trace {
			vm.traceInstruction(frame)
		}
		if err := vm.dispatch(frame, op); err != nil {
			return vm.attachLine(frame, err)
		}
	}
	return nil
}

// attachLine fills in a RuntimeError's Line from the faulting frame's line
// table, if it wasn't already set.
func (vm *VM) attachLine(frame *Frame, err error) error {
	rtErr, ok := err.(RuntimeError)
	if !ok || rtErr.Line != 0 {
		return err
	}
	if frame.ip < len(frame.function.Lines) {
		rtErr.Line = frame.function.Lines[frame.ip]
	}
	return rtErr
}

// traceInstruction renders the instruction about to dispatch to Out, for
// config.Config's "trace" debug switch.
func (vm *VM) traceInstruction(frame *Frame) {
	var out strings.Builder
	if _, _, err := debug.Instruction(&out, frame.function, frame.ip); err != nil {
		return
	}
	fmt.Fprint(vm.Out, out.String())
}

func (vm *VM) dispatch(frame *Frame, op bytecode.Opcode) error {
	chunk := frame.function.Chunk

	switch op {
	case bytecode.OP_VALUE:
		idx := chunk[frame.ip+1]
		if err := vm.stack.push(frame.function.Constants[idx]); err != nil {
			return err
		}
		frame.ip += 2

	case bytecode.OP_ADD:
		if err := vm.binaryAdd(frame); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_SUBSTRACT:
		if err := vm.numericBinary(func(l, r float64) float64 { return l - r }); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_MULTIPLY:
		if err := vm.numericBinary(func(l, r float64) float64 { return l * r }); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_DIVIDE:
		if err := vm.numericBinary(func(l, r float64) float64 { return l / r }); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_LESS:
		if err := vm.comparisonBinary(func(l, r float64) bool { return l < r }); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_LESS_EQUAL:
		if err := vm.comparisonBinary(func(l, r float64) bool { return l <= r }); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_GREATER:
		if err := vm.comparisonBinary(func(l, r float64) bool { return l > r }); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_GREATER_EQUAL:
		if err := vm.comparisonBinary(func(l, r float64) bool { return l >= r }); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_EQUAL_EQUAL:
		if err := vm.equalityBinary(false); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_BANG_EQUAL:
		if err := vm.equalityBinary(true); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_NOT:
		v, err := vm.stack.pop()
		if err != nil {
			return err
		}
		if v.Tag() != value.Boolean {
			return RuntimeError{Message: "operand of '!' must be a boolean"}
		}
		if err := vm.stack.push(value.Bool(!v.AsBoolean())); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_NEGATE:
		v, err := vm.stack.pop()
		if err != nil {
			return err
		}
		if v.Tag() != value.Number {
			return RuntimeError{Message: "operand of unary '-' must be a number"}
		}
		if err := vm.stack.push(value.Num(-v.AsNumber())); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_GET:
		idx := chunk[frame.ip+1]
		slot := int(frame.function.Constants[idx].AsNumber())
		if err := vm.stack.push(vm.stack.slots[frame.frameBase+slot]); err != nil {
			return err
		}
		frame.ip += 2

	case bytecode.OP_ASSIGN:
		idx := chunk[frame.ip+1]
		slot := int(frame.function.Constants[idx].AsNumber())
		top, err := vm.stack.peek(0)
		if err != nil {
			return err
		}
		vm.stack.slots[frame.frameBase+slot] = top
		frame.ip += 2

	case bytecode.OP_POP:
		if _, err := vm.stack.pop(); err != nil {
			return err
		}
		frame.ip++

	case bytecode.OP_JUMP:
		off := readU16(chunk, frame.ip+1)
		frame.ip += off

	case bytecode.OP_JUMP_IF_FALSE:
		v, err := vm.stack.pop()
		if err != nil {
			return err
		}
		off := readU16(chunk, frame.ip+1)
		if !v.Truthy() {
			frame.ip += off
		} else {
			frame.ip += 3
		}

	case bytecode.OP_JUMP_BACKWARD:
		off := readU16(chunk, frame.ip+1)
		frame.ip -= off

	case bytecode.OP_PRINT:
		v, err := vm.stack.pop()
		if err != nil {
			return err
		}
		fmt.Fprintln(vm.Out, v.String())
		frame.ip++

	case bytecode.OP_CALL:
		arity := int(chunk[frame.ip+1])
		// Advance the caller's ip before calling: vm.call appends a new
		// frame, which can reallocate vm.frames and invalidate frame.
		frame.ip += 2
		if err := vm.call(arity); err != nil {
			return err
		}

	default:
		return RuntimeError{Message: fmt.Sprintf("unknown opcode %d", op)}
	}
	return nil
}

func readU16(chunk bytecode.Instructions, offset int) int {
	return int(chunk[offset])<<8 | int(chunk[offset+1])
}

func (vm *VM) binaryAdd(frame *Frame) error {
	r, err := vm.stack.pop()
	if err != nil {
		return err
	}
	l, err := vm.stack.pop()
	if err != nil {
		return err
	}
	switch {
	case l.Tag() == value.Number && r.Tag() == value.Number:
		return vm.stack.push(value.Num(l.AsNumber() + r.AsNumber()))
	case l.Tag() == value.String && r.Tag() == value.String:
		concatenated := l.AsString() + r.AsString()
		v := value.Str(concatenated)
		if _, err := frame.function.WriteConstant(v); err != nil {
			return RuntimeError{Message: err.Error()}
		}
		return vm.stack.push(v)
	default:
		return RuntimeError{Message: "operands of '+' must both be numbers or both be strings"}
	}
}

func (vm *VM) numericBinary(op func(l, r float64) float64) error {
	r, err := vm.stack.pop()
	if err != nil {
		return err
	}
	l, err := vm.stack.pop()
	if err != nil {
		return err
	}
	if l.Tag() != value.Number || r.Tag() != value.Number {
		return RuntimeError{Message: "operands must be numbers"}
	}
	return vm.stack.push(value.Num(op(l.AsNumber(), r.AsNumber())))
}

func (vm *VM) comparisonBinary(op func(l, r float64) bool) error {
	r, err := vm.stack.pop()
	if err != nil {
		return err
	}
	l, err := vm.stack.pop()
	if err != nil {
		return err
	}
	if l.Tag() != value.Number || r.Tag() != value.Number {
		return RuntimeError{Message: "operands must be numbers"}
	}
	return vm.stack.push(value.Bool(op(l.AsNumber(), r.AsNumber())))
}

// equalityBinary implements OP_EQUAL_EQUAL/OP_BANG_EQUAL. The source
// restricts equality to numeric operands; comparing anything else is fatal.
func (vm *VM) equalityBinary(negate bool) error {
	r, err := vm.stack.pop()
	if err != nil {
		return err
	}
	l, err := vm.stack.pop()
	if err != nil {
		return err
	}
	if l.Tag() != value.Number || r.Tag() != value.Number {
		return RuntimeError{Message: "'==' and '!=' require numeric operands"}
	}
	result := l.AsNumber() == r.AsNumber()
	if negate {
		result = !result
	}
	return vm.stack.push(value.Bool(result))
}

// call implements OP_CALL: the callee sits arity slots below the top of the
// stack, and becomes a new frame whose locals start where the arguments do.
func (vm *VM) call(arity int) error {
	calleeIdx := vm.stack.top - 1 - arity
	if calleeIdx < 0 {
		return RuntimeError{Message: "call stack corrupted: not enough operands for call"}
	}
	callee := vm.stack.slots[calleeIdx]
	if callee.Tag() != value.FunctionTag {
		return RuntimeError{Message: "attempted to call a non-function value"}
	}
	fn := callee.AsFunction()
	if fn.Arity != arity {
		return RuntimeError{Message: fmt.Sprintf("%s expects %d argument(s), got %d", fn.Name, fn.Arity, arity)}
	}
	if len(vm.frames) >= maxFrames {
		return RuntimeError{Message: "call stack overflow"}
	}
	vm.frames = append(vm.frames, Frame{function: fn, ip: 0, frameBase: vm.stack.top - arity})
	return nil
}
