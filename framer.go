package bgapi

import (
	"sync"
	"time"
)

// Reliable framer wire constants (spec.md §4.B; robustconnector.py).
const (
	framerPreamble         = 0x5A
	framerHeaderSize       = 3
	framerMaxPayloadLength = 2047
	framerCRCPresentFlag   = 0b0001_0000
	framerPayloadLenMask   = 0b1110_0000
)

// packFrame wraps data in a preamble + CRC-4 header, optionally followed
// by a CRC-8 trailer over the payload (robustconnector.py's pack).
func packFrame(data []byte, withCRC bool) ([]byte, error) {
	if len(data) > framerMaxPayloadLength {
		return nil, ErrPacketTooLarge
	}
	out := make([]byte, 0, framerHeaderSize+len(data)+1)
	out = append(out, framerPreamble, byte(len(data)&0xFF), byte((len(data)>>3)&framerPayloadLenMask))
	if withCRC {
		out[2] |= framerCRCPresentFlag
	}
	out[2] |= crc4(out[1:3], 3)
	out = append(out, data...)
	if withCRC {
		out = append(out, crc8(data))
	}
	return out, nil
}

// ReliableFramer wraps another Transport with the reliable wire format
// (spec.md §4.B): a preamble byte, a CRC-4 protected 3-byte header, and
// an optional CRC-8 protected payload. It implements Transport itself so
// it can be composed transparently in front of any other Transport,
// exactly as RobustConnector wraps a Connector in robustconnector.py.
type ReliableFramer struct {
	inner Transport
	crc   bool

	readTimeout time.Duration

	queue   chan []byte
	buf     []byte
	stop    chan struct{}
	stopped bool
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewReliableFramer wraps inner with the reliable framing protocol. When
// crc is true, outgoing frames carry a payload CRC-8 and incoming frames
// are rejected unless their CRC-8 matches.
func NewReliableFramer(inner Transport, crc bool) *ReliableFramer {
	return &ReliableFramer{
		inner: inner,
		crc:   crc,
		queue: make(chan []byte, 4096),
		stop:  make(chan struct{}),
	}
}

// Open starts the background resynchronizing reader (spec.md §4.B).
func (f *ReliableFramer) Open() error {
	if err := f.inner.Open(); err != nil {
		return err
	}
	f.wg.Add(1)
	go f.run()
	return nil
}

// Close idempotently stops the background reader and closes inner.
func (f *ReliableFramer) Close() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	f.mu.Unlock()
	close(f.stop)
	err := f.inner.Close()
	f.wg.Wait()
	return err
}

// Write frames data and forwards it whole to the inner transport.
func (f *ReliableFramer) Write(data []byte) error {
	framed, err := packFrame(data, f.crc)
	if err != nil {
		return err
	}
	return f.inner.Write(framed)
}

// Read returns up to n already-deframed payload bytes, blocking until
// n are buffered or the read timeout elapses (Transport's "may
// return fewer than n" contract). Read is expected to be called from a
// single goroutine, the same contract the engine's inbound loop holds
// against any Transport.
func (f *ReliableFramer) Read(n int) ([]byte, error) {
	for len(f.buf) < n {
		timeout := f.readTimeout
		if timeout <= 0 {
			timeout = 100 * time.Millisecond
		}
		select {
		case chunk, ok := <-f.queue:
			if !ok {
				return f.take(n), nil
			}
			f.buf = append(f.buf, chunk...)
		case <-time.After(timeout):
			return f.take(n), nil
		}
	}
	return f.take(n), nil
}

func (f *ReliableFramer) take(n int) []byte {
	take := n
	if take > len(f.buf) {
		take = len(f.buf)
	}
	out := append([]byte(nil), f.buf[:take]...)
	f.buf = f.buf[take:]
	return out
}

// SetReadTimeout sets the framer's own read-assembly timeout and
// forwards it to inner so short single-byte reads there don't stall the
// resynchronizing loop.
func (f *ReliableFramer) SetReadTimeout(d time.Duration) error {
	f.readTimeout = d
	return f.inner.SetReadTimeout(d)
}

// SetWriteTimeout forwards to inner; the framer adds no write buffering.
func (f *ReliableFramer) SetWriteTimeout(d time.Duration) error {
	return f.inner.SetWriteTimeout(d)
}

// readFull reads exactly size bytes from inner, honoring the stop
// signal between chunks so close() unblocks an in-progress frame read
// (robustconnector.py's _read).
func (f *ReliableFramer) readFull(size int) []byte {
	data := make([]byte, 0, size)
	for len(data) < size {
		select {
		case <-f.stop:
			return nil
		default:
		}
		chunk, err := f.inner.Read(size - len(data))
		if err != nil {
			continue
		}
		data = append(data, chunk...)
	}
	return data
}

// run is the background resynchronizing reader: it hunts for the
// preamble byte, validates the CRC-4 header and optional CRC-8 payload,
// and pushes verified payloads onto queue. A CRC-4 mismatch discards
// only the leading byte of the header candidate, not the whole buffer,
// so a preamble-valued byte inside a misaligned stream is retried on
// the very next iteration (spec.md §4.B; robustconnector.py's _run).
func (f *ReliableFramer) run() {
	defer f.wg.Done()
	var header []byte
	for {
		select {
		case <-f.stop:
			return
		default:
		}
		chunk := f.readFull(framerHeaderSize - len(header))
		if chunk == nil {
			continue
		}
		header = append(header, chunk...)

		idx := indexByte(header, framerPreamble)
		if idx < 0 {
			header = header[:0]
			continue
		}
		if idx > 0 {
			header = header[idx:]
			continue
		}
		if crc4(header[1:3], 4) != 0 {
			framerCRCFailuresTotal.Inc()
			header = header[1:]
			continue
		}
		payloadSize := int(header[1]) | (int(header[2]&framerPayloadLenMask) << 3)
		crcRequired := header[2]&framerCRCPresentFlag != 0
		header = header[:0]

		payload := f.readFull(payloadSize)
		if payload == nil {
			continue
		}
		if crcRequired {
			trailer := f.readFull(1)
			if trailer == nil {
				continue
			}
			if trailer[0] != crc8(payload) {
				framerCRCFailuresTotal.Inc()
				continue
			}
		}
		select {
		case f.queue <- payload:
		case <-f.stop:
			return
		}
	}
}

func indexByte(b []byte, target byte) int {
	for i, v := range b {
		if v == target {
			return i
		}
	}
	return -1
}
