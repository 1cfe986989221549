package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

// ErrPortClosed is returned by TestablePort after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestablePort is an in-memory SerialPorter. Reads block until data is
// fed or the port is closed; writes are captured.
type TestablePort struct {
	mu   sync.Mutex
	cond *sync.Cond

	read    bytes.Buffer
	written bytes.Buffer
	eof     bool
	closed  bool

	// WriteError is returned by the next Write if set.
	WriteError error
	// CloseError is returned by Close if set.
	CloseError error
}

// NewTestablePort returns an empty open port.
func NewTestablePort() *TestablePort {
	p := &TestablePort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Feed appends data for subsequent reads.
func (p *TestablePort) Feed(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.read.WriteString(data)
	p.cond.Broadcast()
}

// EOF makes reads return io.EOF once the fed data is consumed.
func (p *TestablePort) EOF() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eof = true
	p.cond.Broadcast()
}

func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.read.Len() == 0 && !p.closed && !p.eof {
		p.cond.Wait()
	}
	if p.closed {
		return 0, ErrPortClosed
	}
	// bytes.Buffer returns io.EOF once drained.
	return p.read.Read(b)
}

func (p *TestablePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	if err := p.WriteError; err != nil {
		p.WriteError = nil
		return 0, err
	}
	return p.written.Write(b)
}

// Close wakes any blocked reader.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return p.CloseError
}

// Written returns everything written so far.
func (p *TestablePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Closed reports whether Close was called.
func (p *TestablePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
