package compiler

import (
	"encoding/binary"
	"testing"

	"vela-lang/internal/chunk"
)

type compileOkTestCase struct {
	name   string
	input  string
}

func TestProgramsThatCompile(t *testing.T) {
	tests := []compileOkTestCase{
		{"empty program", ""},
		{"arithmetic", "print 1 + 2 * 3;"},
		{"var and reassignment", "var x = 1; x = 2; print x;"},
		{"val binding", "{ val x = 1; print x; }"},
		{"block scoping", "{ var x = 1; { var x = 2; print x; } print x; }"},
		{"if else", "if (true) { print 1; } else { print 2; }"},
		{"while loop", "var i = 0; while (i < 3) { print i; i = i + 1; }"},
		{"for loop all clauses", "for (var i = 0; i < 3; i = i + 1) { print i; }"},
		{"for loop elided clauses", "var i = 0; for (;;) { if (i > 2) { } i = i + 1; }"},
		{"match statement", "match (1) { 1 => print \"one\"; 2 | 3 => print \"two or three\"; else => print \"other\"; }"},
		{"string interpolation", `print "x=${1+2}y";`},
		{"elvis operator", "var x = nil; print x ?: 5;"},
		{"and or", "print true and false or true;"},
		{"forward global reference", "print later; var later = 1;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.input); err != nil {
				t.Fatalf("unexpected compile error: %v", err)
			}
		})
	}
}

type compileErrTestCase struct {
	name  string
	input string
}

func TestProgramsThatFailToCompile(t *testing.T) {
	tests := []compileErrTestCase{
		{"missing semicolon", "print 1"},
		{"unexpected token", "print ;"},
		{"reassign immutable local", "{ val x = 1; x = 2; }"},
		{"immutable global rejected", "val x = 1;"},
		{"redeclare local in same scope", "{ var x = 1; var x = 2; }"},
		{"redeclare global", "var x = 1; var x = 2;"},
		{"undeclared global use", "print missing;"},
		{"invalid assignment target", "1 + 2 = 3;"},
		{"unterminated string", `print "oops;`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.input); err == nil {
				t.Fatalf("expected a compile error, got none")
			}
		})
	}
}

func TestLocalSlotsAreSequential(t *testing.T) {
	ch, err := Compile("{ var a = 1; var b = 2; print a + b; }")
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if len(ch.Code) == 0 {
		t.Fatal("expected non-empty bytecode")
	}
	var slots []uint32
	for _, off := range ch.InstructionOffsets() {
		if chunk.OpCode(ch.Code[off]) == chunk.OpGetLocal {
			slots = append(slots, binary.LittleEndian.Uint32(ch.Code[off+1:off+5]))
		}
	}
	if len(slots) != 2 || slots[0] != 0 || slots[1] != 1 {
		t.Errorf("got GetLocal slots %v, want [0 1]", slots)
	}
}
