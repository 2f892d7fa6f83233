package transport

import (
	"bytes"
	"net"
	"testing"
)

// pair runs the client setup against Accept over an in-memory socket.
func pair(t *testing.T, dial func(conn net.Conn) (Transport, error)) (client, server Transport) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	serverCh := make(chan Transport, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := Accept(serverConn)
		if err != nil {
			errCh <- err
			return
		}
		serverCh <- s
	}()
	c, err := dial(clientConn)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case server = <-serverCh:
	case err := <-errCh:
		t.Fatal(err)
	}
	return c, server
}

func exchange(t *testing.T, a, b Transport, payload []byte) {
	t.Helper()
	done := make(chan []byte, 1)
	go func() {
		got, err := b.ReadPacket()
		if err != nil {
			done <- nil
			return
		}
		done <- got
	}()
	if err := a.WritePacket(payload); err != nil {
		t.Fatal(err)
	}
	got := <-done
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestPlainAbridged(t *testing.T) {
	c, s := pair(t, func(conn net.Conn) (Transport, error) { return Client(conn, TagAbridged) })
	exchange(t, c, s, []byte{1, 2, 3, 4})
	exchange(t, s, c, []byte{5, 6, 7, 8, 9, 10, 11, 12})
}

func TestPlainIntermediate(t *testing.T) {
	c, s := pair(t, func(conn net.Conn) (Transport, error) { return Client(conn, TagIntermediate) })
	exchange(t, c, s, bytes.Repeat([]byte{0xaa}, 64))
	exchange(t, s, c, bytes.Repeat([]byte{0xbb}, 32))
}

func TestAbridgedLargePacket(t *testing.T) {
	c, s := pair(t, func(conn net.Conn) (Transport, error) { return Client(conn, TagAbridged) })
	// 127*4 bytes and above switches to the 4-byte length form.
	exchange(t, c, s, bytes.Repeat([]byte{0xcc}, 127*4))
	exchange(t, c, s, bytes.Repeat([]byte{0xdd}, 4096))
}

func TestObfuscatedAbridged(t *testing.T) {
	c, s := pair(t, func(conn net.Conn) (Transport, error) { return ClientObfuscated(conn, TagAbridged, 2) })
	exchange(t, c, s, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	exchange(t, s, c, bytes.Repeat([]byte{0x42}, 128))
	exchange(t, c, s, bytes.Repeat([]byte{0x43}, 1024))
}

func TestObfuscatedIntermediate(t *testing.T) {
	c, s := pair(t, func(conn net.Conn) (Transport, error) { return ClientObfuscated(conn, TagIntermediate, 1) })
	exchange(t, c, s, bytes.Repeat([]byte{0x11}, 16))
	exchange(t, s, c, bytes.Repeat([]byte{0x22}, 16))
}

func TestWriteRejectsUnalignedPacket(t *testing.T) {
	c, _ := pair(t, func(conn net.Conn) (Transport, error) { return Client(conn, TagAbridged) })
	if err := c.WritePacket([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected alignment error")
	}
}

func TestKeyErrorPacketBytes(t *testing.T) {
	if !bytes.Equal(KeyErrorPacket, []byte{0x6c, 0xfe, 0xff, 0xff}) {
		t.Fatalf("key error frame: %x", KeyErrorPacket)
	}
}
