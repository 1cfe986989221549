// Package serialmux reads a line-oriented serial feed and fans each line
// out to any number of subscribers, while serialising writes back to the
// device.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"

	"github.com/banshee-data/xrstate/internal/monitoring"
)

// ErrWriteFailed reports a short write to the port.
var ErrWriteFailed = errors.New("failed to write to serial port")

// subscriberBuffer is how many lines a slow subscriber may fall behind
// before lines are dropped for it.
const subscriberBuffer = 64

// Mux multiplexes one serial port between many line subscribers.
type Mux[T SerialPorter] struct {
	port T

	subscriberMu sync.Mutex
	subscribers  map[string]chan string
	closing      bool

	commandMu sync.Mutex

	dropped uint64
}

// New wraps port. Call Monitor to start reading.
func New[T SerialPorter](port T) *Mux[T] {
	return &Mux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates an 8 byte hex subscriber id.
func randomID() string {
	b := make([]byte, 8)
	_, _ = crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns a channel receiving every line read after the call.
// The channel is closed by Unsubscribe or Close.
func (m *Mux[T]) Subscribe() (string, <-chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if m.closing {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscriber.
func (m *Mux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Subscribers returns the number of live subscriptions.
func (m *Mux[T]) Subscribers() int {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	return len(m.subscribers)
}

// Dropped returns how many lines were discarded for slow subscribers.
func (m *Mux[T]) Dropped() uint64 {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	return m.dropped
}

// SendCommand writes command to the port, newline terminated.
func (m *Mux[T]) SendCommand(command string) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := io.WriteString(m.port, command)
	if err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines until ctx is done, the port reaches EOF, or Close
// is called. It returns ctx.Err() on cancellation and nil on EOF.
func (m *Mux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// Scan blocks on the port, so it runs apart from the select below.
	go func() {
		defer close(lines)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return m.readError(err)
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return m.readError(err)
				default:
					return nil
				}
			}
			if !m.publish(line) {
				return nil
			}
		}
	}
}

// readError reports err unless the port failed because Close was called.
func (m *Mux[T]) readError(err error) error {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if m.closing {
		return nil
	}
	return fmt.Errorf("read serial: %w", err)
}

// publish fans line out without blocking. It returns false once the mux
// is closing.
func (m *Mux[T]) publish(line string) bool {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if m.closing {
		return false
	}
	for _, ch := range m.subscribers {
		select {
		case ch <- line:
		default:
			m.dropped++
		}
	}
	return true
}

// Close closes every subscriber and the port.
func (m *Mux[T]) Close() error {
	m.subscriberMu.Lock()
	if m.closing {
		m.subscriberMu.Unlock()
		return nil
	}
	m.closing = true
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.subscriberMu.Unlock()
	return m.port.Close()
}

// AttachAdminRoutes adds serial-send and serial-tail to the tsweb debug
// page on mux.
func (m *Mux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleSilentFunc("serial-send", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := m.SendCommand(command); err != nil {
			monitoring.Logf("[serialmux] admin command %q failed: %v", command, err)
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "Wrote command %q to serial port\n", command)
	})

	debug.HandleFunc("serial-tail", "live tail of the serial tracking feed (SSE)", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, lines := m.Subscribe()
		defer m.Unsubscribe(id)

		_, _ = io.WriteString(w, ": ping\n\n")
		flusher.Flush()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
