package mtproto

import (
	"encoding/binary"
	"math"

	"github.com/go-faster/errors"
	"github.com/teamgram/marmota/pkg/hack"
)

// EncodeBuf is a forward-only TL serialisation buffer. All values are
// little-endian; bytes/string payloads are length-prefixed and padded to
// a 4-byte boundary per the TL serialisation rules.
type EncodeBuf struct {
	buf []byte
}

func NewEncodeBuf(cap int) *EncodeBuf {
	return &EncodeBuf{buf: make([]byte, 0, cap)}
}

func (e *EncodeBuf) GetBuf() []byte {
	return e.buf
}

func (e *EncodeBuf) GetOffset() int {
	return len(e.buf)
}

func (e *EncodeBuf) Int(v int32) {
	e.UInt(uint32(v))
}

func (e *EncodeBuf) UInt(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// IntOffset patches a previously reserved int32 slot, used for
// back-filling message_data_length fields.
func (e *EncodeBuf) IntOffset(offset int, v int32) {
	binary.LittleEndian.PutUint32(e.buf[offset:offset+4], uint32(v))
}

func (e *EncodeBuf) Long(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *EncodeBuf) ULong(v uint64) {
	e.Long(int64(v))
}

func (e *EncodeBuf) Double(v float64) {
	e.Long(int64(math.Float64bits(v)))
}

// Bytes appends raw bytes with no length prefix.
func (e *EncodeBuf) Bytes(v []byte) {
	e.buf = append(e.buf, v...)
}

// StringBytes appends a TL-serialised byte string: one length byte for
// payloads shorter than 254 bytes, otherwise 0xfe plus a 3-byte length,
// in both cases padded with zeroes to a 4-byte boundary.
func (e *EncodeBuf) StringBytes(v []byte) {
	var rem int
	if len(v) < 254 {
		e.buf = append(e.buf, byte(len(v)))
		e.buf = append(e.buf, v...)
		rem = (len(v) + 1) % 4
	} else {
		e.buf = append(e.buf, 254, byte(len(v)), byte(len(v)>>8), byte(len(v)>>16))
		e.buf = append(e.buf, v...)
		rem = len(v) % 4
	}
	if rem != 0 {
		e.buf = append(e.buf, make([]byte, 4-rem)...)
	}
}

func (e *EncodeBuf) String(v string) {
	e.StringBytes(hack.Bytes(v))
}

func (e *EncodeBuf) VectorInt(v []int32) {
	e.UInt(CRC32Vector)
	e.Int(int32(len(v)))
	for _, x := range v {
		e.Int(x)
	}
}

func (e *EncodeBuf) VectorLong(v []int64) {
	e.UInt(CRC32Vector)
	e.Int(int32(len(v)))
	for _, x := range v {
		e.Long(x)
	}
}

// DecodeBuf is the reading counterpart of EncodeBuf. The first failed
// read latches an error; every read after that returns a zero value.
// The latch is the only failure channel the codec exposes.
type DecodeBuf struct {
	buf  []byte
	off  int
	size int
	err  error
}

func NewDecodeBuf(b []byte) *DecodeBuf {
	return &DecodeBuf{buf: b, size: len(b)}
}

func (d *DecodeBuf) GetError() error {
	return d.err
}

// SetError latches an error from an outer decoder (e.g. an unknown
// constructor met while decoding an object field).
func (d *DecodeBuf) SetError(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *DecodeBuf) GetOffset() int {
	return d.off
}

func (d *DecodeBuf) Len() int {
	return d.size - d.off
}

func (d *DecodeBuf) Int() int32 {
	return int32(d.UInt())
}

func (d *DecodeBuf) UInt() uint32 {
	if d.err != nil {
		return 0
	}
	if d.off+4 > d.size {
		d.err = errors.New("DecodeUInt: short read")
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off : d.off+4])
	d.off += 4
	return v
}

func (d *DecodeBuf) Long() int64 {
	if d.err != nil {
		return 0
	}
	if d.off+8 > d.size {
		d.err = errors.New("DecodeLong: short read")
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off : d.off+8])
	d.off += 8
	return int64(v)
}

func (d *DecodeBuf) Double() float64 {
	return math.Float64frombits(uint64(d.Long()))
}

// Bytes reads size raw bytes with no length prefix.
func (d *DecodeBuf) Bytes(size int) []byte {
	if d.err != nil {
		return nil
	}
	if size < 0 || d.off+size > d.size {
		d.err = errors.New("DecodeBytes: short read")
		return nil
	}
	v := make([]byte, size)
	copy(v, d.buf[d.off:d.off+size])
	d.off += size
	return v
}

func (d *DecodeBuf) StringBytes() []byte {
	if d.err != nil {
		return nil
	}
	if d.off+1 > d.size {
		d.err = errors.New("DecodeStringBytes: short read")
		return nil
	}
	var size, padding int
	if d.buf[d.off] < 254 {
		size = int(d.buf[d.off])
		padding = (size + 1) % 4
		d.off++
	} else {
		if d.off+4 > d.size {
			d.err = errors.New("DecodeStringBytes: short read")
			return nil
		}
		size = int(d.buf[d.off+1]) | int(d.buf[d.off+2])<<8 | int(d.buf[d.off+3])<<16
		padding = size % 4
		d.off += 4
	}
	if d.off+size > d.size {
		d.err = errors.New("DecodeStringBytes: short read")
		return nil
	}
	v := make([]byte, size)
	copy(v, d.buf[d.off:d.off+size])
	d.off += size
	if padding != 0 {
		if d.off+4-padding > d.size {
			d.err = errors.New("DecodeStringBytes: short padding")
			return nil
		}
		d.off += 4 - padding
	}
	return v
}

func (d *DecodeBuf) String() string {
	b := d.StringBytes()
	if b == nil {
		return ""
	}
	return hack.String(b)
}

func (d *DecodeBuf) VectorInt() []int32 {
	if c := d.UInt(); d.err == nil && c != CRC32Vector {
		d.err = errors.Errorf("DecodeVectorInt: not a vector: 0x%08x", c)
	}
	n := d.Int()
	if d.err != nil {
		return nil
	}
	if int(n) < 0 || int(n) > d.Len()/4 {
		d.err = errors.Errorf("DecodeVectorInt: bad count %d", n)
		return nil
	}
	v := make([]int32, n)
	for i := range v {
		v[i] = d.Int()
	}
	return v
}

func (d *DecodeBuf) VectorLong() []int64 {
	if c := d.UInt(); d.err == nil && c != CRC32Vector {
		d.err = errors.Errorf("DecodeVectorLong: not a vector: 0x%08x", c)
	}
	n := d.Int()
	if d.err != nil {
		return nil
	}
	if int(n) < 0 || int(n) > d.Len()/8 {
		d.err = errors.Errorf("DecodeVectorLong: bad count %d", n)
		return nil
	}
	v := make([]int64, n)
	for i := range v {
		v[i] = d.Long()
	}
	return v
}
