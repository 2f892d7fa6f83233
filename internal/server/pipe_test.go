package server

import (
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// pipeTransport is an in-memory packet pipe for tests; both ends
// implement transport.Transport.
type pipeTransport struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once *sync.Once
}

func newTransportPair() (client, server *pipeTransport) {
	a := make(chan []byte, 64)
	b := make(chan []byte, 64)
	done := make(chan struct{})
	once := new(sync.Once)
	client = &pipeTransport{in: b, out: a, done: done, once: once}
	server = &pipeTransport{in: a, out: b, done: done, once: once}
	return client, server
}

func (p *pipeTransport) ReadPacket() ([]byte, error) {
	select {
	case packet := <-p.in:
		return packet, nil
	case <-p.done:
		return nil, errors.New("pipe closed")
	}
}

// readTimeout returns the next packet or nil when none arrives in time.
func (p *pipeTransport) readTimeout(d time.Duration) []byte {
	select {
	case packet := <-p.in:
		return packet
	case <-p.done:
		return nil
	case <-time.After(d):
		return nil
	}
}

func (p *pipeTransport) WritePacket(packet []byte) error {
	select {
	case p.out <- packet:
		return nil
	case <-p.done:
		return errors.New("pipe closed")
	}
}

func (p *pipeTransport) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *pipeTransport) RemoteAddr() string {
	return "pipe"
}

func (p *pipeTransport) SetReadDeadline(time.Time) error {
	return nil
}
