package bgapi

import "time"

// Transport is the byte-oriented link the engine drives (spec.md §4.A).
// Implementations must make Close idempotent and must unblock any
// in-progress Read.
type Transport interface {
	Open() error
	Close() error
	Read(n int) ([]byte, error)
	Write(p []byte) error
	SetReadTimeout(d time.Duration) error
	SetWriteTimeout(d time.Duration) error
}
