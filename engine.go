package bgapi

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bgapi-go/bgapi/xapi"
)

// readPollInterval is the engine's inbound read timeout: short enough
// that Close() is observed within one period (spec.md §4.E.3;
// bglib.py's BGApiConnHandler.READ_TIMEOUT).
const readPollInterval = 100 * time.Millisecond

// defaultWriteTimeout mirrors bglib.py's BGApiConnHandler.WRITE_TIMEOUT.
const defaultWriteTimeout = time.Second

// EventHandler receives unsolicited device events as they're decoded. If
// none is set, events accumulate on the engine's internal queue and are
// drained with GetEvent/GetEvents/Events.
type EventHandler func(*Message)

// KeepAwakeFunc is invoked with true just before a command is written
// and with false once its response (if any) has been consumed, letting
// callers hold a device's radio awake across a transaction (spec.md
// §4.E.2; bglib.py's set_keep_device_awake_function).
type KeepAwakeFunc func(awake bool)

type engineState int

const (
	engineClosed engineState = iota
	engineOpen
)

// Engine owns exactly one Transport, runs its single background reader,
// and mediates outbound commands and inbound events against the API
// model in Registry (spec.md §4.E).
type Engine struct {
	Registry        *xapi.Registry
	Transport       Transport
	ResponseTimeout time.Duration
	Logger          zerolog.Logger

	// id correlates this engine's log lines across a process that may
	// juggle several concurrently open engines (bglib.py's per-connection
	// log_id concept).
	id uuid.UUID

	cmdMu sync.Mutex // the engine's single command lock (spec.md §4.F step 2)

	stateMu sync.Mutex
	state   engineState
	stop    chan struct{}
	wg      sync.WaitGroup

	awaitingMu sync.Mutex
	awaiting   bool
	responseCh chan *Message

	handlerMu sync.Mutex
	handler   EventHandler
	events    *eventQueue

	keepAwakeMu sync.Mutex
	keepAwake   KeepAwakeFunc
}

// NewEngine constructs an Engine. ResponseTimeout defaults to one second
// if zero (bglib.py's BGLib default response_timeout=1).
func NewEngine(transport Transport, registry *xapi.Registry) *Engine {
	return &Engine{
		Transport:       transport,
		Registry:        registry,
		ResponseTimeout: time.Second,
		Logger:          zerolog.Nop(),
		id:              uuid.New(),
		responseCh:      make(chan *Message, 1),
		events:          newEventQueue(),
	}
}

// ID returns this engine's correlation id, included on its log lines so
// a process driving several engines at once can tell them apart.
func (e *Engine) ID() uuid.UUID { return e.id }

// SetEventHandler installs (or, passed nil, removes) the callback that
// receives decoded events; with none set, events queue for GetEvent et al.
func (e *Engine) SetEventHandler(h EventHandler) {
	e.handlerMu.Lock()
	e.handler = h
	e.handlerMu.Unlock()
}

// SetKeepAwakeFunc installs this engine's keep-awake hook. The hook is
// held per Engine; other engines in the same process do not call it.
func (e *Engine) SetKeepAwakeFunc(f KeepAwakeFunc) {
	e.keepAwakeMu.Lock()
	e.keepAwake = f
	e.keepAwakeMu.Unlock()
}

// IsOpen reports whether the engine currently owns a running reader.
func (e *Engine) IsOpen() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state == engineOpen
}

// Open starts the transport and the background reader loop.
func (e *Engine) Open() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state == engineOpen {
		return nil
	}
	if err := e.Transport.Open(); err != nil {
		return err
	}
	if err := e.Transport.SetReadTimeout(readPollInterval); err != nil {
		return err
	}
	if err := e.Transport.SetWriteTimeout(defaultWriteTimeout); err != nil {
		return err
	}
	e.stop = make(chan struct{})
	e.state = engineOpen
	e.wg.Add(1)
	go e.readLoop()
	return nil
}

// Close stops the reader and closes the transport.
func (e *Engine) Close() error {
	e.stateMu.Lock()
	if e.state != engineOpen {
		e.stateMu.Unlock()
		return nil
	}
	close(e.stop)
	e.state = engineClosed
	e.stateMu.Unlock()
	e.wg.Wait()
	return e.Transport.Close()
}

func (e *Engine) notifyKeepAwake(awake bool) {
	e.keepAwakeMu.Lock()
	f := e.keepAwake
	e.keepAwakeMu.Unlock()
	if f != nil {
		f(awake)
	}
}

// Invoke dispatches one command end to end: it is the engine-side half
// of the command dispatch facade (spec.md §4.F), combined with
// send_command (spec.md §4.E.2) into a single locked critical section so
// every exit path releases the lock exactly once.
func (e *Engine) Invoke(device *xapi.Device, class *xapi.Class, cmd *xapi.Command, args []interface{}) (*Message, error) {
	if !e.IsOpen() {
		return nil, ErrClosed
	}

	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.notifyKeepAwake(true)
	if !cmd.NoReturn {
		defer e.notifyKeepAwake(false)
	}

	wire, err := Serialize(device, class, cmd, args)
	if err != nil {
		return nil, err
	}

	if cmd.NoReturn {
		if err := e.Transport.Write(wire); err != nil {
			return nil, wrapWriteErr(err)
		}
		framesSentTotal.Inc()
		return nil, nil
	}

	e.armResponse()
	defer e.disarmResponse()

	if err := e.Transport.Write(wire); err != nil {
		return nil, wrapWriteErr(err)
	}
	framesSentTotal.Inc()

	var resp *Message
	select {
	case resp = <-e.responseCh:
	case <-time.After(e.responseTimeout()):
		return nil, ErrNoResponse
	}

	if resp.Class != class || resp.Command != cmd {
		return nil, ErrWrongResponse
	}
	if code, ok := errorCodeOf(resp); ok && code != 0 {
		commandsFailedTotal.Inc()
		return resp, &CommandFailedError{Response: resp, ErrorCode: code}
	}
	return resp, nil
}

func (e *Engine) responseTimeout() time.Duration {
	if e.ResponseTimeout <= 0 {
		return time.Second
	}
	return e.ResponseTimeout
}

func wrapWriteErr(err error) error {
	if err == ErrSendTimeout {
		return ErrSendTimeout
	}
	return err
}

func (e *Engine) armResponse() {
	e.awaitingMu.Lock()
	e.awaiting = true
	e.awaitingMu.Unlock()
}

// disarmResponse clears the awaiting flag so a late-arriving response
// after a timeout is logged and dropped as stray, instead of being
// handed to the next caller (spec.md §4.E.2 step 3).
func (e *Engine) disarmResponse() {
	e.awaitingMu.Lock()
	e.awaiting = false
	e.awaitingMu.Unlock()
	select {
	case <-e.responseCh:
	default:
	}
}

// GetEvent returns the next queued event, waiting up to timeout for one
// to arrive. It returns (nil, false) if none arrived in time.
func (e *Engine) GetEvent(timeout time.Duration) (*Message, bool) {
	return e.events.get(timeout)
}

// readLoop is the engine's single background reader (spec.md §4.E.3).
func (e *Engine) readLoop() {
	defer e.wg.Done()
	var headerByte []byte
	for {
		select {
		case <-e.stop:
			return
		default:
		}

		b, err := e.Transport.Read(1)
		if err != nil || len(b) == 0 {
			continue
		}
		headerByte = b

		deviceID := int(headerByte[0]&0x78) >> 3
		if _, ok := e.Registry.ByID(deviceID); !ok {
			// Synchronization heuristic: a byte whose embedded device_id
			// doesn't match any loaded API is stray, not a header.
			staleBytesDiscardedTotal.Inc()
			continue
		}

		rest, err := e.readExact(HeaderLength - 1)
		if err != nil {
			continue
		}

		var raw [HeaderLength]byte
		raw[0] = headerByte[0]
		copy(raw[1:], rest)
		hdr := ParseHeader(raw)

		payload, err := e.readExact(hdr.PayloadLen)
		if err != nil {
			continue
		}

		msg, err := Parse(e.Registry, raw, payload, false)
		if err != nil {
			e.Logger.Warn().Err(err).Str("engine_id", e.id.String()).Msg("bgapi: dropping frame that failed to decode")
			continue
		}

		switch hdr.Type {
		case MsgCommand:
			framesReceivedTotal.WithLabelValues("response").Inc()
			e.deliverResponse(msg)
		case MsgEvent:
			framesReceivedTotal.WithLabelValues("event").Inc()
			e.deliverEvent(msg)
		}
	}
}

// readExact blocks until n bytes have accumulated from the transport or
// the engine is stopping.
func (e *Engine) readExact(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		select {
		case <-e.stop:
			return nil, ErrClosed
		default:
		}
		b, err := e.Transport.Read(n - len(out))
		if err != nil {
			if err == ErrTransportTimeout {
				continue
			}
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func (e *Engine) deliverResponse(msg *Message) {
	e.awaitingMu.Lock()
	awaiting := e.awaiting
	e.awaitingMu.Unlock()
	if !awaiting {
		e.Logger.Warn().Str("engine_id", e.id.String()).Stringer("message", msgStringer{msg}).Msg("bgapi: dropping unexpected response")
		return
	}
	select {
	case e.responseCh <- msg:
	default:
		e.Logger.Warn().Str("engine_id", e.id.String()).Msg("bgapi: response slot already full, dropping stray response")
	}
}

func (e *Engine) deliverEvent(msg *Message) {
	e.handlerMu.Lock()
	h := e.handler
	e.handlerMu.Unlock()
	if h != nil {
		h(msg)
		return
	}
	e.events.put(msg)
}

type msgStringer struct{ m *Message }

func (s msgStringer) String() string { return s.m.String() }
