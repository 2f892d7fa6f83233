package transport

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"net"

	"github.com/go-faster/errors"

	"github.com/xurwy/tgserver/mtproto/crypto"
)

// The obfuscated transport starts with a 64-byte client frame: 56 random
// bytes carrying the CTR keys/IVs, then a 4-byte protocol tag and a
// 2-byte DC id, both encrypted. Key material for the reverse direction
// is the byte-reversed slice [8:56) of the same frame.

type obfuscatedRW struct {
	conn    net.Conn
	decrypt *crypto.AesCTR128Encrypt // applied to inbound bytes
	encrypt *crypto.AesCTR128Encrypt // applied to outbound bytes
}

func (o *obfuscatedRW) Read(p []byte) (int, error) {
	n, err := o.conn.Read(p)
	if n > 0 {
		copy(p[:n], o.decrypt.Encrypt(p[:n]))
	}
	return n, err
}

func (o *obfuscatedRW) Write(p []byte) (int, error) {
	return o.conn.Write(o.encrypt.Encrypt(p))
}

func reverseInit(frame []byte) []byte {
	out := make([]byte, 48)
	for i := 0; i < 48; i++ {
		out[i] = frame[55-i]
	}
	return out
}

// acceptObfuscated consumes the rest of the 64-byte init frame (first
// already-read bytes in head) and returns the framed transport plus the
// DC id requested by the client.
func acceptObfuscated(conn net.Conn, head []byte) (Transport, int16, error) {
	frame := make([]byte, 64)
	copy(frame, head)
	if _, err := io.ReadFull(conn, frame[len(head):]); err != nil {
		return nil, 0, errors.Wrap(err, "obfuscated init")
	}
	decryptor, err := crypto.NewAesCTR128Encrypt(frame[8:40], frame[40:56])
	if err != nil {
		return nil, 0, err
	}
	reversed := reverseInit(frame)
	encryptor, err := crypto.NewAesCTR128Encrypt(reversed[:32], reversed[32:48])
	if err != nil {
		return nil, 0, err
	}
	// The tail of the init frame is itself encrypted; run it through the
	// inbound stream to recover the protocol tag.
	plain := decryptor.Encrypt(frame)
	tag := plain[56]
	switch tag {
	case TagAbridged, TagIntermediate:
	default:
		return nil, 0, errors.Errorf("obfuscated init: unknown protocol 0x%02x", tag)
	}
	if plain[57] != tag || plain[58] != tag || plain[59] != tag {
		return nil, 0, errors.New("obfuscated init: inconsistent protocol tag")
	}
	dc := int16(binary.LittleEndian.Uint16(plain[60:62]))
	rw := &obfuscatedRW{conn: conn, decrypt: decryptor, encrypt: encryptor}
	return &framed{conn: conn, rw: rw, abridged: tag == TagAbridged}, dc, nil
}

// DialObfuscated opens a client-side obfuscated transport with the
// given inner framing tag.
func DialObfuscated(addr string, tag byte, dc int16) (Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	t, err := ClientObfuscated(conn, tag, dc)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

// ClientObfuscated performs the client side of the init-frame exchange
// over an established conn.
func ClientObfuscated(conn net.Conn, tag byte, dc int16) (Transport, error) {
	frame, err := generateInitFrame()
	if err != nil {
		return nil, err
	}
	frame[56], frame[57], frame[58], frame[59] = tag, tag, tag, tag
	binary.LittleEndian.PutUint16(frame[60:62], uint16(dc))

	encryptor, err := crypto.NewAesCTR128Encrypt(frame[8:40], frame[40:56])
	if err != nil {
		return nil, err
	}
	reversed := reverseInit(frame)
	decryptor, err := crypto.NewAesCTR128Encrypt(reversed[:32], reversed[32:48])
	if err != nil {
		return nil, err
	}
	// Bytes [56:64) travel encrypted; the preceding 56 stay in clear.
	encrypted := encryptor.Encrypt(frame)
	wire := make([]byte, 64)
	copy(wire, frame[:56])
	copy(wire[56:], encrypted[56:])
	if _, err := conn.Write(wire); err != nil {
		return nil, errors.Wrap(err, "obfuscated init")
	}
	rw := &obfuscatedRW{conn: conn, decrypt: decryptor, encrypt: encryptor}
	return &framed{conn: conn, rw: rw, abridged: tag == TagAbridged}, nil
}

// generateInitFrame draws random frames until one avoids the reserved
// first words that would collide with plain framings or HTTP.
func generateInitFrame() ([]byte, error) {
	frame := make([]byte, 64)
	for {
		if _, err := rand.Read(frame); err != nil {
			return nil, errors.Wrap(err, "init frame")
		}
		if frame[0] == TagAbridged {
			continue
		}
		switch binary.LittleEndian.Uint32(frame[:4]) {
		case 0x44414548, 0x54534f50, 0x20544547, 0x4954504f, 0xeeeeeeee:
			continue
		}
		if frame[4]|frame[5]|frame[6]|frame[7] == 0 {
			continue
		}
		return frame, nil
	}
}

// Accept sniffs the first client bytes and returns the matching
// transport: plain abridged, plain intermediate, or obfuscated.
func Accept(conn net.Conn) (Transport, error) {
	var head [4]byte
	if _, err := io.ReadFull(conn, head[:1]); err != nil {
		return nil, err
	}
	if head[0] == TagAbridged {
		return &framed{conn: conn, rw: conn, abridged: true}, nil
	}
	if _, err := io.ReadFull(conn, head[1:4]); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(head[:]) == 0xeeeeeeee {
		return &framed{conn: conn, rw: conn, abridged: false}, nil
	}
	t, _, err := acceptObfuscated(conn, head[:])
	return t, err
}

// Dial opens a plain (non-obfuscated) client transport.
func Dial(addr string, tag byte) (Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	t, err := Client(conn, tag)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

// Client sets up the plain client framing over an established conn.
func Client(conn net.Conn, tag byte) (Transport, error) {
	switch tag {
	case TagAbridged:
		if _, err := conn.Write([]byte{TagAbridged}); err != nil {
			return nil, err
		}
		return &framed{conn: conn, rw: conn, abridged: true}, nil
	case TagIntermediate:
		if _, err := conn.Write([]byte{0xee, 0xee, 0xee, 0xee}); err != nil {
			return nil, err
		}
		return &framed{conn: conn, rw: conn, abridged: false}, nil
	default:
		return nil, errors.Errorf("unknown framing tag 0x%02x", tag)
	}
}
