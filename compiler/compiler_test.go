package compiler

import (
	"testing"

	"loxvm/bytecode"
	"loxvm/lexer"
	"loxvm/value"
)

func mustCompile(t *testing.T, source string) *value.Function {
	t.Helper()
	toks, err := lexer.New(source).Scan()
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	fn, err := Compile(toks)
	if err != nil {
		t.Fatalf("Compile(%q) returned an error: %v", source, err)
	}
	return fn
}

func opcodesOf(chunk bytecode.Instructions) []bytecode.Opcode {
	var ops []bytecode.Opcode
	ip := 0
	for ip < len(chunk) {
		op := bytecode.Opcode(chunk[ip])
		ops = append(ops, op)
		length, err := bytecode.Len(op)
		if err != nil {
			break
		}
		ip += length
	}
	return ops
}

func TestCompileArithmeticExpressionStatement(t *testing.T) {
	fn := mustCompile(t, "1 + 2 * 3;")
	got := opcodesOf(fn.Chunk)
	want := []bytecode.Opcode{
		bytecode.OP_VALUE, bytecode.OP_VALUE, bytecode.OP_VALUE,
		bytecode.OP_MULTIPLY, bytecode.OP_ADD, bytecode.OP_POP,
	}
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("opcode[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCompileVarDeclarationAndRead(t *testing.T) {
	fn := mustCompile(t, "var x = 5; print x;")
	got := opcodesOf(fn.Chunk)
	want := []bytecode.Opcode{
		bytecode.OP_VALUE, // initializer 5
		bytecode.OP_GET,   // read x
		bytecode.OP_PRINT,
	}
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("opcode[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCompileAssignmentRetargetsRead(t *testing.T) {
	fn := mustCompile(t, "var x = 1; x = 2;")
	got := opcodesOf(fn.Chunk)
	want := []bytecode.Opcode{
		bytecode.OP_VALUE,  // initializer 1
		bytecode.OP_VALUE,  // rhs 2
		bytecode.OP_ASSIGN, // x = 2
		bytecode.OP_POP,    // expression statement
	}
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("opcode[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCompileReflexiveInitializerIsAnError(t *testing.T) {
	toks, _ := lexer.New("var a = a;").Scan()
	if _, err := Compile(toks); err == nil {
		t.Fatal("expected a compile error for a reflexive initializer")
	}
}

func TestCompileRedeclarationInSameScopeIsAnError(t *testing.T) {
	toks, _ := lexer.New("var a = 1; var a = 2;").Scan()
	if _, err := Compile(toks); err == nil {
		t.Fatal("expected a compile error for redeclaring a name in the same scope")
	}
}

func TestCompileShadowingAcrossScopesIsAllowed(t *testing.T) {
	toks, _ := lexer.New("var a = 1; { var a = 2; print a; }").Scan()
	if _, err := Compile(toks); err != nil {
		t.Fatalf("unexpected error shadowing across scopes: %v", err)
	}
}

func TestCompileInvalidAssignmentTargetIsAnError(t *testing.T) {
	toks, _ := lexer.New("1 + 2 = 3;").Scan()
	if _, err := Compile(toks); err == nil {
		t.Fatal("expected a compile error assigning to a non-identifier target")
	}
}

func TestCompileUndefinedVariableIsAnError(t *testing.T) {
	toks, _ := lexer.New("print undefined_name;").Scan()
	if _, err := Compile(toks); err == nil {
		t.Fatal("expected a compile error reading an undefined variable")
	}
}

func TestCompileFunctionDeclarationAndCall(t *testing.T) {
	fn := mustCompile(t, "fun add(a, b) { print a + b; } add(2, 3);")
	got := opcodesOf(fn.Chunk)
	want := []bytecode.Opcode{
		bytecode.OP_VALUE, // the compiled add function, bound as local add
		bytecode.OP_GET,   // read add as the callee
		bytecode.OP_VALUE, // arg 2
		bytecode.OP_VALUE, // arg 3
		bytecode.OP_CALL,
		bytecode.OP_POP,
	}
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("opcode[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if len(fn.Constants) == 0 {
		t.Fatal("expected the top-level constant pool to hold the add function")
	}
	addFn := fn.Constants[0].AsFunction()
	if addFn == nil || addFn.Name != "add" || addFn.Arity != 2 {
		t.Fatalf("got %+v, want function 'add' with arity 2", addFn)
	}
}

func TestCompileIfElseEmitsBothBranches(t *testing.T) {
	fn := mustCompile(t, `if (1 < 2) print "yes"; else print "no";`)
	got := opcodesOf(fn.Chunk)
	want := []bytecode.Opcode{
		bytecode.OP_VALUE, bytecode.OP_VALUE, bytecode.OP_LESS,
		bytecode.OP_JUMP_IF_FALSE,
		bytecode.OP_VALUE, bytecode.OP_PRINT,
		bytecode.OP_JUMP,
		bytecode.OP_VALUE, bytecode.OP_PRINT,
	}
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("opcode[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCompileWhileLoopEmitsBackwardJump(t *testing.T) {
	fn := mustCompile(t, "var i = 0; while (i < 3) i = i + 1;")
	got := opcodesOf(fn.Chunk)
	foundBackward := false
	for _, op := range got {
		if op == bytecode.OP_JUMP_BACKWARD {
			foundBackward = true
		}
	}
	if !foundBackward {
		t.Fatalf("opcodes = %v, expected an OP_JUMP_BACKWARD closing the loop", got)
	}
}

func TestCompileAndShortCircuitEmitsReplacementValue(t *testing.T) {
	fn := mustCompile(t, "false and true;")
	got := opcodesOf(fn.Chunk)
	want := []bytecode.Opcode{
		bytecode.OP_VALUE, // false
		bytecode.OP_JUMP_IF_FALSE,
		bytecode.OP_VALUE, // true (rhs)
		bytecode.OP_JUMP,
		bytecode.OP_VALUE, // replacement false at the short-circuit landing
		bytecode.OP_POP,   // expression statement
	}
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("opcode[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCompileOrShortCircuitEmitsReplacementValue(t *testing.T) {
	fn := mustCompile(t, "true or false;")
	got := opcodesOf(fn.Chunk)
	want := []bytecode.Opcode{
		bytecode.OP_VALUE, // true
		bytecode.OP_JUMP_IF_FALSE,
		bytecode.OP_VALUE, // replacement true at the short-circuit landing
		bytecode.OP_JUMP,
		bytecode.OP_VALUE, // false (rhs)
		bytecode.OP_POP,   // expression statement
	}
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("opcode[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCompileTooManyArgumentsIsAnError(t *testing.T) {
	var args string
	for i := 0; i < 256; i++ {
		if i > 0 {
			args += ","
		}
		args += "1"
	}
	toks, _ := lexer.New("fun f() {} f(" + args + ");").Scan()
	if _, err := Compile(toks); err == nil {
		t.Fatal("expected a compile error for more than 255 arguments")
	}
}
