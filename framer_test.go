package bgapi

import (
	"sync"
	"testing"
	"time"
)

// feedTransport is a minimal Transport whose Read drains a pre-loaded
// byte slice a chunk at a time, used to drive the framer's resync loop
// directly against handcrafted wire bytes.
type feedTransport struct {
	mu   sync.Mutex
	data []byte
}

func (f *feedTransport) Open() error  { return nil }
func (f *feedTransport) Close() error { return nil }
func (f *feedTransport) Write(p []byte) error {
	f.mu.Lock()
	f.data = append(f.data, p...)
	f.mu.Unlock()
	return nil
}
func (f *feedTransport) Read(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.data) == 0 {
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	take := n
	if take > len(f.data) {
		take = len(f.data)
	}
	out := f.data[:take]
	f.data = f.data[take:]
	return out, nil
}
func (f *feedTransport) SetReadTimeout(d time.Duration) error  { return nil }
func (f *feedTransport) SetWriteTimeout(d time.Duration) error { return nil }

func (f *feedTransport) push(b []byte) {
	f.mu.Lock()
	f.data = append(f.data, b...)
	f.mu.Unlock()
}

func TestPackFrameRoundTripThroughFramer(t *testing.T) {
	inner := &feedTransport{}
	framer := NewReliableFramer(inner, true)
	if err := framer.Open(); err != nil {
		t.Fatal(err)
	}
	defer framer.Close()

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	framed, err := packFrame(payload, true)
	if err != nil {
		t.Fatal(err)
	}
	inner.push(framed)

	got, err := framer.Read(len(payload))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %x, want %x", got, payload)
	}
}

func TestFramerResyncsPastStrayPreambleByte(t *testing.T) {
	inner := &feedTransport{}
	framer := NewReliableFramer(inner, true)
	if err := framer.Open(); err != nil {
		t.Fatal(err)
	}
	defer framer.Close()

	payload := []byte{0x01, 0x02, 0x03}
	framed, err := packFrame(payload, true)
	if err != nil {
		t.Fatal(err)
	}
	// A stray preamble byte ahead of the real frame must not desync the
	// reader past the genuine frame that follows it.
	stray := append([]byte{framerPreamble, 0x99, 0x99}, framed...)
	inner.push(stray)

	got, err := framer.Read(len(payload))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %x, want %x", got, payload)
	}
}

func TestPackFrameRejectsOverlongPayload(t *testing.T) {
	_, err := packFrame(make([]byte, framerMaxPayloadLength+1), false)
	if err != ErrPacketTooLarge {
		t.Fatalf("got %v, want ErrPacketTooLarge", err)
	}
}

func TestPackFrameOmitsCRCWhenDisabled(t *testing.T) {
	payload := []byte{0x42}
	framed, err := packFrame(payload, false)
	if err != nil {
		t.Fatal(err)
	}
	if framed[2]&framerCRCPresentFlag != 0 {
		t.Fatal("CRC-present flag set despite crc=false")
	}
	if len(framed) != framerHeaderSize+len(payload) {
		t.Fatalf("unexpected frame length %d", len(framed))
	}
}
