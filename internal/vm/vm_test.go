package vm

import (
	"bytes"
	"strings"
	"testing"

	"vela-lang/internal/compiler"
)

type vmTestCase struct {
	input string
	want  string
}

func runVmTests(t *testing.T, tests []vmTestCase) {
	t.Helper()
	for _, tt := range tests {
		ch, err := compiler.Compile(tt.input)
		if err != nil {
			t.Fatalf("input %q: compile error: %v", tt.input, err)
		}
		var buf bytes.Buffer
		machine := New(ch, &buf)
		if err := machine.Interpret(); err != nil {
			t.Fatalf("input %q: runtime error: %v", tt.input, err)
		}
		if got := buf.String(); got != tt.want {
			t.Errorf("input %q: got %q, want %q", tt.input, got, tt.want)
		}
		if depth := machine.StackDepth(); depth != 0 {
			t.Errorf("input %q: stack not empty after run, depth=%d", tt.input, depth)
		}
	}
}

func TestArithmetic(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"print 1 + 2;", "3\n"},
		{"print 2 * (5 + 10);", "30\n"},
		{"print 7 / 2;", "3.5\n"},
		{"print -5 + 2;", "-3\n"},
		{"print 3 * 3 * 3 + 10;", "37\n"},
	})
}

func TestBooleanAndComparison(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"print 1 < 2;", "true\n"},
		{"print 1 > 2;", "false\n"},
		{"print 1 == 1;", "true\n"},
		{"print 1 != 1;", "false\n"},
		{"print 1 >= 1;", "true\n"},
		{"print 1 <= 0;", "false\n"},
		{"print !true;", "false\n"},
		{"print !nil;", "true\n"},
	})
}

func TestStringsAndInterpolation(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{`print "hello" + " " + "world";`, "hello world\n"},
		{`print "n=${1+2}!";`, "n=3!\n"},
		{`print "ab" * 3;`, "ababab\n"},
	})
}

func TestVariablesAndScoping(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"var x = 1; x = x + 1; print x;", "2\n"},
		{"{ var x = 1; { var x = 2; print x; } print x; }", "2\n1\n"},
		{"{ val x = 10; print x; }", "10\n"},
	})
}

func TestControlFlow(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"if (true) { print 1; } else { print 2; }", "1\n"},
		{"if (false) { print 1; } else { print 2; }", "2\n"},
		{"var i = 0; while (i < 3) { print i; i = i + 1; }", "0\n1\n2\n"},
		{"for (var i = 0; i < 3; i = i + 1) { print i; }", "0\n1\n2\n"},
	})
}

func TestMatchStatement(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{`match (2) { 1 => print "one"; 2 | 3 => print "two or three"; else => print "other"; }`, "two or three\n"},
		{`match (99) { 1 => print "one"; else => print "other"; }`, "other\n"},
		{`match (99) { 1 => print "one"; }`, ""},
	})
}

func TestElvisAndLogical(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"print nil ?: 5;", "5\n"},
		{"print 3 ?: 5;", "3\n"},
		{"print true and false;", "false\n"},
		{"print false or true;", "true\n"},
		{"print nil or \"fallback\";", "fallback\n"},
	})
}

func TestRuntimeErrorFormat(t *testing.T) {
	ch, err := compiler.Compile("print 1 + true;")
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	var buf bytes.Buffer
	machine := New(ch, &buf)
	err = machine.Interpret()
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.HasPrefix(err.Error(), "Error at line 1, bytecode 'Add':") {
		t.Errorf("unexpected error format: %s", err.Error())
	}
}
