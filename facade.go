package bgapi

import (
	"fmt"

	"github.com/bgapi-go/bgapi/xapi"
)

// Facade is the command dispatch surface for one loaded Device API
// (spec.md §4.F). bglib.py builds this by injecting generated methods
// and folded constants onto dynamically created classes at load time;
// Go has no runtime attribute synthesis, so Facade instead holds the
// xapi.Device alongside the engine and resolves class/command names on
// each call.
type Facade struct {
	engine *Engine
	device *xapi.Device
}

// NewFacade builds a dispatch facade for device against engine. engine's
// Registry must already contain device.
func NewFacade(engine *Engine, device *xapi.Device) *Facade {
	return &Facade{engine: engine, device: device}
}

// Device returns the underlying API model, e.g. for documentation lookup.
func (f *Facade) Device() *xapi.Device { return f.device }

// Class resolves a named class for command dispatch and constant lookup.
func (f *Facade) Class(name string) (*ClassFacade, error) {
	class, ok := f.device.Class(name)
	if !ok {
		return nil, fmt.Errorf("bgapi: device %q has no class %q", f.device.Name, name)
	}
	return &ClassFacade{facade: f, class: class}, nil
}

// ClassFacade is the per-class invocation surface: every command and the
// folded enum/define constant table of one class.
type ClassFacade struct {
	facade *Facade
	class  *xapi.Class
}

// Constants returns the class's enum/define members keyed
// GROUPNAME_MEMBERNAME, the namespaced rendering of the global constants
// bglib.py folds onto each generated class object.
func (c *ClassFacade) Constants() map[string]int {
	return c.class.Constants()
}

// Call invokes a named command with positional arguments (spec.md §4.F):
// it fails fast if the engine isn't open, then runs the command through
// the engine's single command lock and send_command path.
func (c *ClassFacade) Call(commandName string, args ...interface{}) (*Message, error) {
	cmd, ok := c.class.Command(commandName)
	if !ok {
		return nil, fmt.Errorf("bgapi: class %q has no command %q", c.class.Name, commandName)
	}
	return c.facade.engine.Invoke(c.facade.device, c.class, cmd, args)
}

// Command looks up a command descriptor, e.g. for introspecting its
// parameter list or rendering its documentation.
func (c *ClassFacade) Command(name string) (*xapi.Command, bool) {
	return c.class.Command(name)
}

// Event looks up an event descriptor by name.
func (c *ClassFacade) Event(name string) (*xapi.Event, bool) {
	return c.class.Event(name)
}
