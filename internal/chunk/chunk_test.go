package chunk

import (
	"encoding/binary"
	"testing"

	"vela-lang/internal/value"
)

func TestEmitConstantSwitchesToLongForm(t *testing.T) {
	c := New()
	for i := 0; i < 256; i++ {
		c.EmitConstant(value.Number(float64(i)), 1)
	}
	// The 256th constant (index 255) still fits in one byte.
	if OpCode(c.Code[len(c.Code)-2]) != OpConstant {
		t.Fatalf("expected last-but-one emission to use Constant")
	}

	before := len(c.Code)
	c.EmitConstant(value.Number(999), 1)
	if OpCode(c.Code[before]) != OpConstantLong {
		t.Errorf("expected ConstantLong once the pool exceeds 256 entries")
	}
}

func TestGetLineRunLength(t *testing.T) {
	c := New()
	off1 := c.Write(OpTrue, 1)
	off2 := c.Write(OpFalse, 1)
	off3 := c.Write(OpNil, 2)

	if got := c.GetLine(off1); got != 1 {
		t.Errorf("offset %d: got line %d, want 1", off1, got)
	}
	if got := c.GetLine(off2); got != 1 {
		t.Errorf("offset %d: got line %d, want 1", off2, got)
	}
	if got := c.GetLine(off3); got != 2 {
		t.Errorf("offset %d: got line %d, want 2", off3, got)
	}
}

func TestMonkeyPatchResolvesForwardJump(t *testing.T) {
	c := New()
	end := c.AllocateNewLabel()
	jumpOffset := c.PushMonkeyPatch(OpJumpRelative, 1, end)
	c.Write(OpPop, 1)
	c.PushLabel(end)

	if err := c.ResolveMonkeyPatches(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDelta := len(c.Code) - jumpOffset
	gotDelta := int(int16(binary.LittleEndian.Uint16(c.Code[jumpOffset+1 : jumpOffset+3])))
	if gotDelta != wantDelta {
		t.Errorf("got delta %d, want %d", gotDelta, wantDelta)
	}
}

func TestUnresolvedLabelIsAnError(t *testing.T) {
	c := New()
	never := c.AllocateNewLabel()
	c.PushMonkeyPatch(OpJumpRelative, 1, never)
	if err := c.ResolveMonkeyPatches(); err == nil {
		t.Fatal("expected an error for a label that was never bound")
	}
}

func TestInstructionOffsetsIncludeEveryLabel(t *testing.T) {
	c := New()
	c.Write(OpTrue, 1)
	mid := c.AllocateNewLabel()
	c.PushLabel(mid)
	c.Write(OpFalse, 1)
	end := c.AllocateNewLabel()
	c.PushLabel(end)
	c.Write(OpReturn, 1)

	offsets := map[int]bool{}
	for _, o := range c.InstructionOffsets() {
		offsets[o] = true
	}
	for label, offset := range c.labels {
		if !offsets[offset] {
			t.Errorf("label %d at offset %d missing from instruction offsets", label, offset)
		}
	}
}
