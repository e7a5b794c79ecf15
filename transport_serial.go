package bgapi

import (
	"errors"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SerialTransport is a Transport over a local serial port, the usual
// link to an embedded radio module in the field (kstaniek-style use of
// github.com/tarm/serial for exactly this kind of device).
type SerialTransport struct {
	config serial.Config

	mu   sync.Mutex
	port *serial.Port
}

var _ Transport = (*SerialTransport)(nil)

// NewSerialTransport returns a Transport over the named serial device at
// the given baud rate. The read timeout set with SetReadTimeout governs
// how long a Read blocks when no bytes are yet available; since
// github.com/tarm/serial bakes the timeout into its Config, setting it
// reopens an already open port.
func NewSerialTransport(name string, baud int) *SerialTransport {
	return &SerialTransport{config: serial.Config{Name: name, Baud: baud}}
}

func (t *SerialTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cfg := t.config
	port, err := serial.OpenPort(&cfg)
	if err != nil {
		return err
	}
	t.port = port
	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	port := t.port
	t.port = nil
	t.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

func (t *SerialTransport) Read(n int) ([]byte, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return nil, ErrClosed
	}
	buf := make([]byte, n)
	read, err := port.Read(buf)
	if err != nil {
		return buf[:read], errors.Join(ErrTransportFailure, err)
	}
	return buf[:read], nil
}

func (t *SerialTransport) Write(p []byte) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return ErrClosed
	}
	_, err := port.Write(p)
	if err != nil {
		return errors.Join(ErrTransportFailure, err)
	}
	return nil
}

// SetReadTimeout reopens the port with an updated read timeout, since
// github.com/tarm/serial has no live deadline knob once a port is open.
func (t *SerialTransport) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config.ReadTimeout = d
	if t.port == nil {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return err
	}
	cfg := t.config
	port, err := serial.OpenPort(&cfg)
	if err != nil {
		return err
	}
	t.port = port
	return nil
}

// SetWriteTimeout is a no-op: the serial line has no separate write
// deadline in github.com/tarm/serial, matching the transport; the engine
// relies on SetReadTimeout for its polling cadence.
func (t *SerialTransport) SetWriteTimeout(d time.Duration) error {
	return nil
}
