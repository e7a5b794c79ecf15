package bgapi

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bgapi-go/bgapi/xapi"
)

// Client ties a Config, a loaded xapi.Registry, and an Engine together
// into the single entry point applications use, in the shape of the
// teacher's own Client: a struct embedding its Config, guarding lazy
// connection state behind a mutex, exposing Ready/Disconnect.
type Client struct {
	Config Config
	Logger *zerolog.Logger

	mtx      sync.Mutex
	engine   *Engine
	registry *xapi.Registry
	facades  map[string]*Facade
}

// Ready reports whether the client currently owns an open engine.
func (c *Client) Ready() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.engine != nil && c.engine.IsOpen()
}

// Open validates the configuration, parses every configured XAPI file,
// builds the transport (wrapping it in the reliable framer when
// configured), and starts the engine's background reader.
func (c *Client) Open() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.engine != nil && c.engine.IsOpen() {
		return nil
	}
	if err := c.Config.Verify(); err != nil {
		return err
	}

	var devices []*xapi.Device
	for _, path := range c.Config.APIFiles {
		d, err := xapi.ParseFile(path)
		if err != nil {
			return fmt.Errorf("bgapi: loading %s: %w", path, err)
		}
		devices = append(devices, d)
	}
	registry, err := xapi.NewRegistry(devices...)
	if err != nil {
		return err
	}

	transport, err := c.Config.buildTransport()
	if err != nil {
		return err
	}

	engine := NewEngine(transport, registry)
	engine.ResponseTimeout = c.Config.ResponseTimeout
	if c.Logger != nil {
		engine.Logger = *c.Logger
	} else {
		engine.Logger = Logger()
	}
	if err := engine.Open(); err != nil {
		return err
	}

	facades := make(map[string]*Facade, len(devices))
	for _, d := range devices {
		facades[d.Name] = NewFacade(engine, d)
	}

	c.engine = engine
	c.registry = registry
	c.facades = facades
	return nil
}

// Disconnect shuts down the engine. All commands currently blocked in
// Invoke eventually return once their response timeout elapses; no
// response is possible once Disconnect returns because the transport is
// closed. Disconnect is safe to call on an already-closed client.
func (c *Client) Disconnect() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.engine != nil {
		c.engine.Close()
	}
}

// Device resolves the dispatch facade for a loaded API by its
// device_name, e.g. "bt" for the Silicon Labs Bluetooth stack.
func (c *Client) Device(name string) (*Facade, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	f, ok := c.facades[name]
	return f, ok
}

// Engine exposes the underlying engine for direct access to event
// delivery (SetEventHandler, GetEvent, GetEvents, Events) and the
// keep-device-awake hook.
func (c *Client) Engine() *Engine {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.engine
}
