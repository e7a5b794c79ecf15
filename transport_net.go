package bgapi

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"
)

// NetTransport is a Transport over a stream socket (TCP or Unix domain),
// adapted from the teacher's network connection wrapper: where that type
// fanned one conn out to many listeners via container/list, here the
// engine is the single reader, so NetTransport only needs to turn net.Conn
// deadlines into the read(n)/timeout-vs-failure contract spec.md §4.A asks
// for.
type NetTransport struct {
	network string // "tcp" or "unix"
	address string

	mu   sync.Mutex
	conn net.Conn

	readTimeout  time.Duration
	writeTimeout time.Duration
}

var _ Transport = (*NetTransport)(nil)

// NewNetTransport returns a Transport that dials network/address when
// Open is called. network is "tcp" or "unix".
func NewNetTransport(network, address string) *NetTransport {
	return &NetTransport{network: network, address: address}
}

func (t *NetTransport) Open() error {
	conn, err := net.Dial(t.network, t.address)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

// Close is idempotent: closing an already-closed or never-opened
// transport is a no-op, and any in-progress Read unblocks because
// net.Conn.Close() always interrupts a pending deadline-based read.
func (t *NetTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *NetTransport) Read(n int) ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	timeout := t.readTimeout
	t.mu.Unlock()
	if conn == nil {
		return nil, ErrClosed
	}
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, n)
	read, err := conn.Read(buf)
	if err != nil {
		if isTimeoutErr(err) {
			return buf[:read], ErrTransportTimeout
		}
		return buf[:read], errors.Join(ErrTransportFailure, err)
	}
	return buf[:read], nil
}

func (t *NetTransport) Write(p []byte) error {
	t.mu.Lock()
	conn := t.conn
	timeout := t.writeTimeout
	t.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
	} else {
		conn.SetWriteDeadline(time.Time{})
	}
	_, err := conn.Write(p)
	if err != nil {
		if isTimeoutErr(err) {
			return ErrSendTimeout
		}
		return errors.Join(ErrTransportFailure, err)
	}
	return nil
}

func (t *NetTransport) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	t.readTimeout = d
	t.mu.Unlock()
	return nil
}

func (t *NetTransport) SetWriteTimeout(d time.Duration) error {
	t.mu.Lock()
	t.writeTimeout = d
	t.mu.Unlock()
	return nil
}

func isTimeoutErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
