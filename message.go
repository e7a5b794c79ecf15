package bgapi

import (
	"fmt"
	"strings"

	"github.com/bgapi-go/bgapi/xapi"
)

// Message is the decoded form of one command, response, or event frame.
// It plays the role bglib.py fills by dynamically injecting named
// attributes onto BGCommand/BGResponse/BGEvent instances: since Go has
// no runtime attribute synthesis, a Message instead pairs the frame's
// xapi descriptor with an ordered value vector and exposes values by
// name through Get.
type Message struct {
	Header   Header
	Class    *xapi.Class
	Command  *xapi.Command
	Event    *xapi.Event
	FromHost bool
	Values   []interface{}
	Warnings []string
}

func (m *Message) params() []xapi.Parameter {
	switch {
	case m.Event != nil:
		return m.Event.Params
	case m.Command != nil && m.FromHost:
		return m.Command.Params
	case m.Command != nil:
		return m.Command.Returns
	}
	return nil
}

// Name returns the command or event name this message carries.
func (m *Message) Name() string {
	switch {
	case m.Command != nil:
		return m.Command.Name
	case m.Event != nil:
		return m.Event.Name
	}
	return ""
}

// Get returns the decoded value for the named parameter of this
// message, mirroring the named-attribute access bglib.py gets for free
// from Python's dynamic classes.
func (m *Message) Get(name string) (interface{}, bool) {
	for i, p := range m.params() {
		if p.Name == name && i < len(m.Values) {
			return m.Values[i], true
		}
	}
	return nil, false
}

// MustGet is Get without the found flag, for call sites that already
// know the parameter exists because they hold the same xapi.Command the
// message was decoded against.
func (m *Message) MustGet(name string) interface{} {
	v, _ := m.Get(name)
	return v
}

func (m *Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s(%d/%d/%d)", m.Header.Type, m.Name(), m.Header.DeviceID, m.Header.ClassID, m.Header.CommandID)
	params := m.params()
	for i, v := range m.Values {
		if i < len(params) {
			fmt.Fprintf(&b, " %s=%v", params[i].Name, v)
		}
	}
	return b.String()
}
