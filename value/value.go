// Package value implements the tagged runtime value and the per-function
// constant pool and bytecode buffer the compiler emits into and the VM
// executes.
package value

import (
	"fmt"
	"strconv"

	"loxvm/bytecode"
)

type Tag int

const (
	Nil Tag = iota
	Boolean
	Number
	String
	FunctionTag
)

// maxConstants is the per-function constant pool cap (one-byte index).
const maxConstants = 256

// Value is a tagged union over the runtime types this language supports:
// nil, boolean, number (float64), string, and function.
type Value struct {
	tag     Tag
	number  float64
	boolean bool
	str     string
	fn      *Function
}

func NilValue() Value           { return Value{tag: Nil} }
func Bool(b bool) Value         { return Value{tag: Boolean, boolean: b} }
func Num(n float64) Value       { return Value{tag: Number, number: n} }
func Str(s string) Value        { return Value{tag: String, str: s} }
func Fn(f *Function) Value      { return Value{tag: FunctionTag, fn: f} }

func (v Value) Tag() Tag            { return v.tag }
func (v Value) IsNil() bool         { return v.tag == Nil }
func (v Value) AsNumber() float64   { return v.number }
func (v Value) AsBoolean() bool     { return v.boolean }
func (v Value) AsString() string    { return v.str }
func (v Value) AsFunction() *Function { return v.fn }

// Truthy implements the language's truthiness rule: nil and boolean false
// are falsy, everything else (including 0 and the empty string) is truthy.
func (v Value) Truthy() bool {
	switch v.tag {
	case Nil:
		return false
	case Boolean:
		return v.boolean
	default:
		return true
	}
}

// Equal implements the structural equality used by constant-pool
// deduplication: tag first, then payload. The VM's == and != operators do
// not use it; they accept numeric operands only.
// Numbers compare with plain float64 ==, so NaN never equals itself and is
// never deduplicated against another NaN; that is an accepted consequence
// of using the host's raw double comparison rather than bit-for-bit compare.
// Functions compare by name rather than identity.
func (v Value) Equal(other Value) bool {
	if v.tag != other.tag {
		return false
	}
	switch v.tag {
	case Nil:
		return true
	case Boolean:
		return v.boolean == other.boolean
	case Number:
		return v.number == other.number
	case String:
		return v.str == other.str
	case FunctionTag:
		return v.fn.Name == other.fn.Name
	default:
		return false
	}
}

// String renders v the way OP_PRINT presents it: numbers in the host's
// default double format, booleans as true/false, nil as nil, strings as
// their raw contents, functions as "<fn NAME>".
func (v Value) String() string {
	switch v.tag {
	case Nil:
		return "nil"
	case Boolean:
		if v.boolean {
			return "true"
		}
		return "false"
	case Number:
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	case String:
		return v.str
	case FunctionTag:
		return fmt.Sprintf("<fn %s>", v.fn.Name)
	default:
		return ""
	}
}

// Function is the runtime record for a compiled function: its name, arity,
// its own bytecode buffer, and its own constant pool. The top-level program
// is itself compiled as a Function named "__main__".
type Function struct {
	Name      string
	Arity     int
	Chunk     bytecode.Instructions
	Constants []Value

	// Lines holds one source line number per byte of Chunk, so the VM can
	// report the line a faulting instruction came from.
	Lines []int32
}

func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// WriteConstant appends v to the pool unless a structurally equal value is
// already present, returning the (possibly pre-existing) index. The pool is
// capped at 256 entries per function, matching the one-byte operand used by
// OP_VALUE, OP_GET, and OP_ASSIGN to address it.
func (f *Function) WriteConstant(v Value) (byte, error) {
	for i, existing := range f.Constants {
		if existing.Equal(v) {
			return byte(i), nil
		}
	}
	if len(f.Constants) >= maxConstants {
		return 0, fmt.Errorf("function %q exceeds %d constants", f.Name, maxConstants)
	}
	f.Constants = append(f.Constants, v)
	return byte(len(f.Constants) - 1), nil
}
