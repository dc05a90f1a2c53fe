// Package chunk implements Vela's bytecode container: the flat
// instruction buffer, its constant pool, a run-length line map for
// error reporting, and the compile-time-only label table the compiler
// uses to patch forward jumps.
package chunk

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"vela-lang/internal/value"
)

// OpCode is a single bytecode instruction tag.
type OpCode byte

const (
	OpReturn OpCode = 0x00
	OpConstant     OpCode = 0x01
	OpConstantLong OpCode = 0x02
	OpNil   OpCode = 0x03
	OpTrue  OpCode = 0x04
	OpFalse OpCode = 0x05

	OpNegate OpCode = 0x10
	OpAdd    OpCode = 0x11
	OpSub    OpCode = 0x12
	OpMul    OpCode = 0x13
	OpDiv    OpCode = 0x14

	OpNot OpCode = 0x20
	OpEq  OpCode = 0x21
	OpGt  OpCode = 0x22
	OpLt  OpCode = 0x23

	OpPop OpCode = 0x40
	OpDup OpCode = 0x41

	OpSetGlobal OpCode = 0x60
	OpGetGlobal OpCode = 0x61
	OpSetLocal  OpCode = 0x62
	OpGetLocal  OpCode = 0x63

	OpJumpF        OpCode = 0x70
	OpJumpRelative OpCode = 0x71

	OpPrint OpCode = 0x80
)

func (op OpCode) String() string {
	switch op {
	case OpReturn:
		return "Return"
	case OpConstant:
		return "Constant"
	case OpConstantLong:
		return "ConstantLong"
	case OpNil:
		return "Nil"
	case OpTrue:
		return "True"
	case OpFalse:
		return "False"
	case OpNegate:
		return "Negate"
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpMul:
		return "Mul"
	case OpDiv:
		return "Div"
	case OpNot:
		return "Not"
	case OpEq:
		return "Eq"
	case OpGt:
		return "Gt"
	case OpLt:
		return "Lt"
	case OpPop:
		return "Pop"
	case OpDup:
		return "Dup"
	case OpSetGlobal:
		return "SetGlobal"
	case OpGetGlobal:
		return "GetGlobal"
	case OpSetLocal:
		return "SetLocal"
	case OpGetLocal:
		return "GetLocal"
	case OpJumpF:
		return "JumpF"
	case OpJumpRelative:
		return "JumpRelative"
	case OpPrint:
		return "Print"
	default:
		return fmt.Sprintf("Unknown(%#x)", byte(op))
	}
}

type lineRun struct {
	line  int
	start int
}

type patch struct {
	instrOffset int
	label       int
}

// Chunk is a compiled unit of bytecode plus everything needed to run or
// disassemble it.
type Chunk struct {
	Code         []byte
	Constants    []value.Value
	GlobalsCount uint32

	lines []lineRun

	labels    map[int]int
	nextLabel int
	pending   []patch
}

// New returns an empty Chunk ready for the compiler to write into.
func New() *Chunk {
	return &Chunk{labels: make(map[int]int)}
}

func (c *Chunk) extendLineInfo(line, offset int) {
	if len(c.lines) > 0 && c.lines[len(c.lines)-1].line == line {
		return
	}
	c.lines = append(c.lines, lineRun{line: line, start: offset})
}

// GetLine returns the source line the instruction at offset was
// compiled from.
func (c *Chunk) GetLine(offset int) int {
	line := 0
	for _, r := range c.lines {
		if r.start > offset {
			break
		}
		line = r.line
	}
	return line
}

// AddConstant appends v to the constant pool and returns its index.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Write appends a bare opcode byte and returns its offset.
func (c *Chunk) Write(op OpCode, line int) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.extendLineInfo(line, offset)
	return offset
}

// WriteSlot appends op followed by a 4-byte little-endian slot index.
func (c *Chunk) WriteSlot(op OpCode, slot uint32, line int) int {
	offset := c.Write(op, line)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], slot)
	c.Code = append(c.Code, buf[:]...)
	return offset
}

// EmitConstant appends v to the pool and emits the opcode that loads
// it, picking ConstantLong once the 1-byte Constant operand overflows.
func (c *Chunk) EmitConstant(v value.Value, line int) {
	idx := c.AddConstant(v)
	if idx <= 0xff {
		c.Write(OpConstant, line)
		c.Code = append(c.Code, byte(idx))
		return
	}
	c.Write(OpConstantLong, line)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(idx))
	c.Code = append(c.Code, buf[:]...)
}

// AllocateNewLabel reserves a fresh label id with no bound offset yet.
func (c *Chunk) AllocateNewLabel() int {
	id := c.nextLabel
	c.nextLabel++
	return id
}

// PushLabel binds label to the current end of the instruction stream.
func (c *Chunk) PushLabel(label int) {
	c.labels[label] = len(c.Code)
}

// PushMonkeyPatch emits op with a placeholder 2-byte relative operand,
// to be resolved against label once its offset is known.
func (c *Chunk) PushMonkeyPatch(op OpCode, line int, label int) int {
	offset := c.Write(op, line)
	c.Code = append(c.Code, 0, 0)
	c.pending = append(c.pending, patch{instrOffset: offset, label: label})
	return offset
}

// ResolveMonkeyPatches fills in every pending jump operand now that all
// labels have been bound. It fails if a label was never pushed or if
// the resulting delta doesn't fit in a signed 16-bit operand.
func (c *Chunk) ResolveMonkeyPatches() error {
	for _, p := range c.pending {
		target, ok := c.labels[p.label]
		if !ok {
			return fmt.Errorf("internal compiler error: label %d was never bound", p.label)
		}
		delta := target - p.instrOffset
		if delta < math.MinInt16 || delta > math.MaxInt16 {
			return fmt.Errorf("jump at offset %d does not fit in a 16-bit operand (delta %d)", p.instrOffset, delta)
		}
		binary.LittleEndian.PutUint16(c.Code[p.instrOffset+1:p.instrOffset+3], uint16(int16(delta)))
	}
	c.pending = nil
	return nil
}

// InstructionOffsets walks the bytecode and returns the offset of
// every instruction boundary, in order.
func (c *Chunk) InstructionOffsets() []int {
	var offsets []int
	ip := 0
	for ip < len(c.Code) {
		offsets = append(offsets, ip)
		_, width := c.decode(ip)
		ip += width
	}
	return offsets
}

// decode returns a human-readable rendering of the instruction at
// offset along with its total width in bytes (opcode + operand).
func (c *Chunk) decode(offset int) (string, int) {
	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant:
		idx := int(c.Code[offset+1])
		return fmt.Sprintf("%-14s %4d '%s'", op, idx, c.Constants[idx].String()), 2
	case OpConstantLong:
		idx := int(binary.LittleEndian.Uint32(c.Code[offset+1 : offset+5]))
		return fmt.Sprintf("%-14s %4d '%s'", op, idx, c.Constants[idx].String()), 5
	case OpSetGlobal, OpGetGlobal, OpSetLocal, OpGetLocal:
		slot := binary.LittleEndian.Uint32(c.Code[offset+1 : offset+5])
		return fmt.Sprintf("%-14s %4d", op, slot), 5
	case OpJumpF, OpJumpRelative:
		delta := int16(binary.LittleEndian.Uint16(c.Code[offset+1 : offset+3]))
		return fmt.Sprintf("%-14s %4d -> %d", op, delta, offset+int(delta)), 3
	default:
		return op.String(), 1
	}
}

// Disassemble renders the whole chunk in a clox-style listing, one
// instruction per line, prefixed with its offset and source line.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (%s) ==\n", name, humanize.Bytes(uint64(len(c.Code))))
	ip := 0
	lastLine := -1
	for ip < len(c.Code) {
		line := c.GetLine(ip)
		if line == lastLine {
			fmt.Fprintf(&b, "%04d    | ", ip)
		} else {
			fmt.Fprintf(&b, "%04d %4d ", ip, line)
			lastLine = line
		}
		rendered, width := c.decode(ip)
		fmt.Fprintln(&b, rendered)
		ip += width
	}
	return b.String()
}
