package mtproto

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/go-faster/errors"
)

// Layer is the TL schema layer this build speaks.
const Layer = 158

// TLObject is any boxed TL value. Encode writes the constructor tag and
// the body; Decode reads the body only (the tag has already been
// consumed by the dispatcher).
type TLObject interface {
	Encode(x *EncodeBuf, layer int32) error
	Decode(d *DecodeBuf) error
}

// Well-known constructor tags.
const (
	CRC32Vector      = uint32(0x1cb5c415)
	CRC32BoolTrue    = uint32(0x997275b5)
	CRC32BoolFalse   = uint32(0xbc799737)
	CRC32GzipPacked  = uint32(0x3072cfa1)
	CRC32RpcResult   = uint32(0xf35c6d01)
	CRC32RpcError    = uint32(0x2144ca19)
	CRC32MsgContainer = uint32(0x73f1f8dc)
)

var tlRegistry = map[uint32]func() TLObject{}

// Register binds a constructor tag to its concrete type. Called from
// package init functions only; the table is read-only afterwards.
func Register(crc uint32, f func() TLObject) {
	if _, dup := tlRegistry[crc]; dup {
		panic(errors.Errorf("mtproto: duplicate constructor 0x%08x", crc))
	}
	tlRegistry[crc] = f
}

// NewTLObjectByCRC returns a fresh instance for the tag, or nil for an
// unknown one.
func NewTLObjectByCRC(crc uint32) TLObject {
	f, ok := tlRegistry[crc]
	if !ok {
		return nil
	}
	return f()
}

// Object reads one boxed TL object: a constructor tag followed by the
// body. An unknown tag or a body decode failure latches the buffer
// error and returns nil. gzip_packed payloads are inflated in place.
func (d *DecodeBuf) Object() TLObject {
	crc := d.UInt()
	if d.err != nil {
		return nil
	}
	if crc == CRC32GzipPacked {
		packed := d.StringBytes()
		if d.err != nil {
			return nil
		}
		r, err := gzip.NewReader(bytes.NewReader(packed))
		if err != nil {
			d.err = errors.Wrap(err, "gzip_packed")
			return nil
		}
		unpacked, err := io.ReadAll(r)
		if err != nil {
			d.err = errors.Wrap(err, "gzip_packed")
			return nil
		}
		inner := NewDecodeBuf(unpacked)
		o := inner.Object()
		if inner.err != nil {
			d.err = inner.err
			return nil
		}
		return o
	}
	o := NewTLObjectByCRC(crc)
	if o == nil {
		d.err = errors.Errorf("unknown constructor 0x%08x", crc)
		return nil
	}
	if err := o.Decode(d); err != nil {
		d.SetError(err)
		return nil
	}
	if d.err != nil {
		return nil
	}
	return o
}

// Bool reads a boxed Bool.
func (d *DecodeBuf) Bool() bool {
	switch d.UInt() {
	case CRC32BoolTrue:
		return true
	case CRC32BoolFalse:
		return false
	default:
		d.SetError(errors.New("not a Bool"))
		return false
	}
}

func (e *EncodeBuf) Bool(v bool) {
	if v {
		e.UInt(CRC32BoolTrue)
	} else {
		e.UInt(CRC32BoolFalse)
	}
}

// GzipPacked compresses an already serialised TL payload into a
// gzip_packed envelope.
func GzipPacked(raw []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return raw
	}
	if err := w.Close(); err != nil {
		return raw
	}
	x := NewEncodeBuf(buf.Len() + 8)
	x.UInt(CRC32GzipPacked)
	x.StringBytes(buf.Bytes())
	return x.GetBuf()
}
