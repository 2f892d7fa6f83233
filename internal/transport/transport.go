// Package transport implements the MTProto TCP packet framings
// (abridged and intermediate), optionally wrapped in the AES-CTR
// obfuscation layer, behind a single packet-oriented interface.
package transport

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/go-faster/errors"
)

// Framing protocol tags.
const (
	TagAbridged     = byte(0xef)
	TagIntermediate = byte(0xee)
)

// KeyErrorPacket is the 4-byte "unknown/invalid auth key" reply
// (int32 -404, 0xfffffe6c, little-endian). It is sent as a regular packet payload.
var KeyErrorPacket = []byte{0x6c, 0xfe, 0xff, 0xff}

// Transport is a packet-framed, obfuscation-transparent pipe.
type Transport interface {
	ReadPacket() ([]byte, error)
	WritePacket([]byte) error
	Close() error
	RemoteAddr() string
	SetReadDeadline(t time.Time) error
}

const maxPacketSize = 16 << 20

type framed struct {
	conn net.Conn
	rw   io.ReadWriter // conn, possibly behind CTR streams
	// abridged packets carry word counts, intermediate byte counts
	abridged bool
}

func (t *framed) ReadPacket() ([]byte, error) {
	if t.abridged {
		return t.readAbridged()
	}
	return t.readIntermediate()
}

func (t *framed) readAbridged() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(t.rw, hdr[:1]); err != nil {
		return nil, err
	}
	size := int(hdr[0])
	if size == 127 {
		if _, err := io.ReadFull(t.rw, hdr[1:4]); err != nil {
			return nil, err
		}
		size = int(hdr[1]) | int(hdr[2])<<8 | int(hdr[3])<<16
	}
	size *= 4
	if size > maxPacketSize {
		return nil, errors.Errorf("abridged packet too large: %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(t.rw, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *framed) readIntermediate() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(t.rw, hdr[:]); err != nil {
		return nil, err
	}
	size := int(binary.LittleEndian.Uint32(hdr[:]))
	if size > maxPacketSize {
		return nil, errors.Errorf("intermediate packet too large: %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(t.rw, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *framed) WritePacket(p []byte) error {
	if len(p)%4 != 0 {
		return errors.New("packet length is not a multiple of 4")
	}
	var out []byte
	if t.abridged {
		size := len(p) / 4
		if size < 127 {
			out = append(out, byte(size))
		} else {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(size<<8|127))
			out = append(out, b[:]...)
		}
	} else {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(len(p)))
		out = append(out, b[:]...)
	}
	out = append(out, p...)
	_, err := t.rw.Write(out)
	return err
}

func (t *framed) Close() error {
	return t.conn.Close()
}

func (t *framed) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *framed) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}
