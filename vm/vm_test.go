package vm

import (
	"strings"
	"testing"

	"loxvm/compiler"
	"loxvm/lexer"
)

func run(t *testing.T, source string) (string, error) {
	t.Helper()
	toks, err := lexer.New(source).Scan()
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	fn, err := compiler.Compile(toks)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out strings.Builder
	machine := New()
	machine.Out = &out
	err = machine.Run(fn)
	return out.String(), err
}

func TestRunArithmeticPrecedence(t *testing.T) {
	out, err := run(t, "print 1 + 2 * 3;")
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "7\n" {
		t.Errorf("output = %q, want %q", out, "7\n")
	}
}

func TestRunAssignmentExpressionValue(t *testing.T) {
	out, err := run(t, "var a = 2; var b = 3; a = a + b; print a;")
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "5\n" {
		t.Errorf("output = %q, want %q", out, "5\n")
	}
}

func TestRunForLoopSum(t *testing.T) {
	out, err := run(t, "var n = 0; for (var i = 0; i < 3; i = i + 1) { n = n + i; } print n;")
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "3\n" {
		t.Errorf("output = %q, want %q", out, "3\n")
	}
}

func TestRunAndShortCircuitTruthyPath(t *testing.T) {
	out, err := run(t, `var x = 10; if (x > 5 and x < 20) print "ok"; else print "no";`)
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "ok\n" {
		t.Errorf("output = %q, want %q", out, "ok\n")
	}
}

func TestRunAndShortCircuitFalsyPath(t *testing.T) {
	out, err := run(t, `if (false and true) print "a"; else print "b";`)
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "b\n" {
		t.Errorf("output = %q, want %q", out, "b\n")
	}
}

func TestRunBareAndShortCircuitDoesNotUnderflowStack(t *testing.T) {
	out, err := run(t, `false and true; print "done";`)
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "done\n" {
		t.Errorf("output = %q, want %q", out, "done\n")
	}
}

func TestRunOrShortCircuitTruthyPath(t *testing.T) {
	out, err := run(t, `if (true or false) print "a"; else print "b";`)
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "a\n" {
		t.Errorf("output = %q, want %q", out, "a\n")
	}
}

func TestRunBareOrShortCircuitDoesNotUnderflowStack(t *testing.T) {
	out, err := run(t, `true or false; print "done";`)
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "done\n" {
		t.Errorf("output = %q, want %q", out, "done\n")
	}
}

func TestRunFunctionCall(t *testing.T) {
	out, err := run(t, "fun add(a, b) { print a + b; } add(2, 3);")
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "5\n" {
		t.Errorf("output = %q, want %q", out, "5\n")
	}
}

func TestRunStringConcatenation(t *testing.T) {
	out, err := run(t, `var s = "foo" + "bar"; print s;`)
	if err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if out != "foobar\n" {
		t.Errorf("output = %q, want %q", out, "foobar\n")
	}
}

func TestRunTypeMismatchAtAddIsFatal(t *testing.T) {
	_, err := run(t, `1 + "x";`)
	if err == nil {
		t.Fatal("expected a runtime error adding a number and a string")
	}
}

func TestRunCallingNonFunctionIsFatal(t *testing.T) {
	_, err := run(t, "var x = 1; x();")
	if err == nil {
		t.Fatal("expected a runtime error calling a non-function value")
	}
}

func TestRunWrongArityIsFatal(t *testing.T) {
	_, err := run(t, "fun f(a) { print a; } f(1, 2);")
	if err == nil {
		t.Fatal("expected a runtime error calling with the wrong arity")
	}
}
