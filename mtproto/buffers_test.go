package mtproto

import (
	"bytes"
	"testing"
)

func TestEncodeDecodePrimitives(t *testing.T) {
	x := NewEncodeBuf(128)
	x.Int(-212046591)
	x.UInt(0x1cb5c415)
	x.Long(0x17ED48941A08F981)
	x.Double(3.5)
	x.String("hello")
	x.StringBytes([]byte{1, 2, 3})

	d := NewDecodeBuf(x.GetBuf())
	if got := d.Int(); got != -212046591 {
		t.Errorf("Int: got %d", got)
	}
	if got := d.UInt(); got != 0x1cb5c415 {
		t.Errorf("UInt: got 0x%08x", got)
	}
	if got := d.Long(); got != 0x17ED48941A08F981 {
		t.Errorf("Long: got 0x%x", got)
	}
	if got := d.Double(); got != 3.5 {
		t.Errorf("Double: got %f", got)
	}
	if got := d.String(); got != "hello" {
		t.Errorf("String: got %q", got)
	}
	if got := d.StringBytes(); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("StringBytes: got %v", got)
	}
	if err := d.GetError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Len() != 0 {
		t.Errorf("trailing bytes: %d", d.Len())
	}
}

func TestStringBytesAlignment(t *testing.T) {
	for size := 0; size < 300; size++ {
		x := NewEncodeBuf(512)
		x.StringBytes(make([]byte, size))
		if len(x.GetBuf())%4 != 0 {
			t.Fatalf("size %d: buffer length %d not aligned", size, len(x.GetBuf()))
		}
		d := NewDecodeBuf(x.GetBuf())
		got := d.StringBytes()
		if len(got) != size {
			t.Fatalf("size %d: decoded %d", size, len(got))
		}
		if d.Len() != 0 {
			t.Fatalf("size %d: %d trailing bytes", size, d.Len())
		}
	}
}

func TestLongStringForm(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 254)
	x := NewEncodeBuf(512)
	x.StringBytes(payload)
	if x.GetBuf()[0] != 254 {
		t.Fatalf("expected long form marker, got %d", x.GetBuf()[0])
	}
	d := NewDecodeBuf(x.GetBuf())
	if got := d.StringBytes(); !bytes.Equal(got, payload) {
		t.Fatal("long-form payload mismatch")
	}
}

func TestDecodeErrorLatch(t *testing.T) {
	d := NewDecodeBuf([]byte{1, 2})
	if got := d.Int(); got != 0 {
		t.Errorf("overrun read: got %d", got)
	}
	if d.GetError() == nil {
		t.Fatal("expected latched error")
	}
	// Every read after the latch yields zero values.
	if got := d.Long(); got != 0 {
		t.Errorf("poisoned Long: got %d", got)
	}
	if got := d.String(); got != "" {
		t.Errorf("poisoned String: got %q", got)
	}
	if got := d.VectorLong(); got != nil {
		t.Errorf("poisoned VectorLong: got %v", got)
	}
}

func TestVectorRoundtrip(t *testing.T) {
	x := NewEncodeBuf(128)
	x.VectorInt([]int32{1, -2, 3})
	x.VectorLong([]int64{0x1122334455667788, -9})
	d := NewDecodeBuf(x.GetBuf())
	ints := d.VectorInt()
	longs := d.VectorLong()
	if err := d.GetError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ints) != 3 || ints[1] != -2 {
		t.Errorf("ints: %v", ints)
	}
	if len(longs) != 2 || longs[0] != 0x1122334455667788 {
		t.Errorf("longs: %v", longs)
	}
}

func TestVectorBadTag(t *testing.T) {
	x := NewEncodeBuf(16)
	x.UInt(0xdeadbeef)
	x.Int(0)
	d := NewDecodeBuf(x.GetBuf())
	if d.VectorInt() != nil || d.GetError() == nil {
		t.Fatal("expected vector tag error")
	}
}

func TestIntOffsetBackfill(t *testing.T) {
	x := NewEncodeBuf(32)
	offset := x.GetOffset()
	x.Int(0)
	x.Long(42)
	x.IntOffset(offset, int32(x.GetOffset()-offset-4))
	d := NewDecodeBuf(x.GetBuf())
	if got := d.Int(); got != 8 {
		t.Errorf("backfilled length: got %d", got)
	}
}
