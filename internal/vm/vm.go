// Package vm implements Vela's stack-based bytecode interpreter.
package vm

import (
	"encoding/binary"
	"fmt"
	"io"

	"vela-lang/internal/chunk"
	"vela-lang/internal/value"
)

// RuntimeError is a VM-detected failure: a type mismatch, a stack
// underflow, or an otherwise-malformed chunk. It renders as
// "Error at line L, bytecode 'OP': MSG".
type RuntimeError struct {
	Line int
	Op   string
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("Error at line %d, bytecode '%s': %s", e.Line, e.Op, e.Msg)
}

// VM executes a single Chunk against a value stack and a fixed-size
// globals array sized by the compiler.
type VM struct {
	chunk   *chunk.Chunk
	stack   []value.Value
	globals []value.Value
	out     io.Writer
}

// New returns a VM ready to interpret c, writing any Print output to w.
func New(c *chunk.Chunk, w io.Writer) *VM {
	return &VM{
		chunk:   c,
		globals: make([]value.Value, c.GlobalsCount),
		out:     w,
	}
}

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() (value.Value, bool) {
	n := len(vm.stack)
	if n == 0 {
		return value.Value{}, false
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, true
}

func (vm *VM) peek() (value.Value, bool) {
	n := len(vm.stack)
	if n == 0 {
		return value.Value{}, false
	}
	return vm.stack[n-1], true
}

// StackDepth reports the current stack height, exposed for tests that
// check the stack is empty after a program runs to completion.
func (vm *VM) StackDepth() int { return len(vm.stack) }

// Interpret runs the chunk to completion (an OpReturn) or until a
// runtime error occurs.
func (vm *VM) Interpret() error {
	code := vm.chunk.Code
	ip := 0

	for ip < len(code) {
		instrStart := ip
		op := chunk.OpCode(code[ip])
		ip++

		switch op {
		case chunk.OpReturn:
			return nil

		case chunk.OpConstant:
			idx := int(code[ip])
			ip++
			vm.push(vm.chunk.Constants[idx])

		case chunk.OpConstantLong:
			idx := int(binary.LittleEndian.Uint32(code[ip : ip+4]))
			ip += 4
			vm.push(vm.chunk.Constants[idx])

		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.Bool(true))
		case chunk.OpFalse:
			vm.push(value.Bool(false))

		case chunk.OpNegate:
			v, ok := vm.pop()
			if !ok {
				return vm.err(instrStart, op, "stack underflow")
			}
			r, ok := v.TryNegate()
			if !ok {
				return vm.err(instrStart, op, fmt.Sprintf("Operand must be a number, found %s", v.String()))
			}
			vm.push(r)

		case chunk.OpAdd, chunk.OpSub, chunk.OpMul, chunk.OpDiv:
			r, ok1 := vm.pop()
			l, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.err(instrStart, op, "stack underflow")
			}
			var res value.Value
			var ok bool
			switch op {
			case chunk.OpAdd:
				res, ok = l.TryAdd(r)
			case chunk.OpSub:
				res, ok = l.TrySub(r)
			case chunk.OpMul:
				res, ok = l.TryMul(r)
			case chunk.OpDiv:
				res, ok = l.TryDiv(r)
			}
			if !ok {
				return vm.err(instrStart, op, fmt.Sprintf("Operands must be numbers, found %s and %s", l.String(), r.String()))
			}
			vm.push(res)

		case chunk.OpNot:
			v, ok := vm.pop()
			if !ok {
				return vm.err(instrStart, op, "stack underflow")
			}
			vm.push(value.Bool(!v.IsTruthy()))

		case chunk.OpEq:
			r, ok1 := vm.pop()
			l, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.err(instrStart, op, "stack underflow")
			}
			vm.push(value.Bool(l.Equals(r)))

		case chunk.OpGt, chunk.OpLt:
			r, ok1 := vm.pop()
			l, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.err(instrStart, op, "stack underflow")
			}
			var res value.Value
			var ok bool
			if op == chunk.OpGt {
				res, ok = l.TryGreater(r)
			} else {
				res, ok = l.TryLess(r)
			}
			if !ok {
				return vm.err(instrStart, op, fmt.Sprintf("Operands must both be numbers, found %s and %s", l.String(), r.String()))
			}
			vm.push(res)

		case chunk.OpPop:
			if _, ok := vm.pop(); !ok {
				return vm.err(instrStart, op, "stack underflow")
			}

		case chunk.OpDup:
			v, ok := vm.peek()
			if !ok {
				return vm.err(instrStart, op, "stack underflow")
			}
			vm.push(v)

		case chunk.OpSetGlobal:
			slot := binary.LittleEndian.Uint32(code[ip : ip+4])
			ip += 4
			v, ok := vm.peek()
			if !ok {
				return vm.err(instrStart, op, "stack underflow")
			}
			if int(slot) >= len(vm.globals) {
				return vm.err(instrStart, op, "undefined global slot")
			}
			vm.globals[slot] = v

		case chunk.OpGetGlobal:
			slot := binary.LittleEndian.Uint32(code[ip : ip+4])
			ip += 4
			if int(slot) >= len(vm.globals) {
				return vm.err(instrStart, op, "undefined global slot")
			}
			vm.push(vm.globals[slot])

		case chunk.OpSetLocal:
			slot := binary.LittleEndian.Uint32(code[ip : ip+4])
			ip += 4
			v, ok := vm.peek()
			if !ok {
				return vm.err(instrStart, op, "stack underflow")
			}
			if int(slot) >= len(vm.stack) {
				return vm.err(instrStart, op, "invalid local slot")
			}
			vm.stack[slot] = v

		case chunk.OpGetLocal:
			slot := binary.LittleEndian.Uint32(code[ip : ip+4])
			ip += 4
			if int(slot) >= len(vm.stack) {
				return vm.err(instrStart, op, "invalid local slot")
			}
			vm.push(vm.stack[slot])

		case chunk.OpJumpF:
			delta := int16(binary.LittleEndian.Uint16(code[ip : ip+2]))
			ip += 2
			v, ok := vm.peek()
			if !ok {
				return vm.err(instrStart, op, "stack underflow")
			}
			if !v.IsTruthy() {
				ip = instrStart + int(delta)
			}

		case chunk.OpJumpRelative:
			delta := int16(binary.LittleEndian.Uint16(code[ip : ip+2]))
			ip = instrStart + int(delta)

		case chunk.OpPrint:
			v, ok := vm.pop()
			if !ok {
				return vm.err(instrStart, op, "stack underflow")
			}
			fmt.Fprintln(vm.out, v.String())

		default:
			return vm.err(instrStart, op, "unknown opcode")
		}
	}

	return nil
}

func (vm *VM) err(offset int, op chunk.OpCode, msg string) error {
	return &RuntimeError{Line: vm.chunk.GetLine(offset), Op: op.String(), Msg: msg}
}
