package serialmux

import (
	"io"
)

// SerialPorter is the part of a serial port the mux needs. go.bug.st's
// serial.Port satisfies it, as does TestablePort.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
