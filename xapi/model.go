// Package xapi holds the immutable in-memory model of a BGAPI device API,
// built once from one or more XML schema files and shared read-only
// thereafter.
package xapi

import "fmt"

// Format is the wire-format tag of a parameter, as named by the XML
// schema's param/@type attribute.
type Format string

// Recognized wire formats (spec.md §3).
const (
	FormatInt8        Format = "int8"
	FormatUint8       Format = "uint8"
	FormatInt16       Format = "int16"
	FormatUint16      Format = "uint16"
	FormatInt32       Format = "int32"
	FormatUint32      Format = "uint32"
	FormatInt64       Format = "int64"
	FormatUint64      Format = "uint64"
	FormatUint8Array  Format = "uint8array"
	FormatUint16Array Format = "uint16array"
	FormatBdAddr      Format = "bd_addr"
	FormatHwAddr      Format = "hw_addr"
	FormatIPv4        Format = "ipv4"
	FormatUUID128     Format = "uuid_128"
	FormatAESKey128   Format = "aes_key_128"
	FormatUUID64      Format = "sl_bt_uuid_64_t"
	FormatUUID16      Format = "sl_bt_uuid_16_t"
	FormatByteArray   Format = "byte_array"
)

// Datatype is a named datatype declared under <datatypes>. The length
// sizes byte_array parameters and the name "errorcode" marks a command's
// failure-signalling return value; base is kept for completeness and
// diagnostics.
type Datatype struct {
	Name   string
	Base   string
	Length int
}

// EnumValue is a single member of an EnumGroup or DefineGroup.
type EnumValue struct {
	Name        string
	Value       int
	Description string
}

// Group is a named set of EnumValue, looked up by name or numeric value.
// An enum Group carries scalar members; a define Group carries single-bit
// flag members combined by bitwise OR when decoding (spec.md §3).
type Group struct {
	Name        string
	Description string
	Kind        GroupKind
	byName      map[string]*EnumValue
	byValue     map[int]*EnumValue
	Names       []string // insertion order, for deterministic constant tables
}

// GroupKind distinguishes an enum group from a define (bitmask) group.
type GroupKind int

const (
	KindEnum GroupKind = iota
	KindDefine
)

func newGroup(name, desc string, kind GroupKind) *Group {
	return &Group{
		Name:        name,
		Description: desc,
		Kind:        kind,
		byName:      map[string]*EnumValue{},
		byValue:     map[int]*EnumValue{},
	}
}

func (g *Group) add(v *EnumValue) {
	g.byName[v.Name] = v
	g.byValue[v.Value] = v
	g.Names = append(g.Names, v.Name)
}

// ByName looks up a member by its symbolic name.
func (g *Group) ByName(name string) (*EnumValue, bool) {
	v, ok := g.byName[name]
	return v, ok
}

// ByValue looks up a member by its numeric value.
func (g *Group) ByValue(value int) (*EnumValue, bool) {
	v, ok := g.byValue[value]
	return v, ok
}

// Parameter describes a single ordered argument of a Command or Event.
type Parameter struct {
	Name         string
	Index        int
	Format       Format
	Datatype     *Datatype // byte_array length source; also marks errorcode returns
	ValidatorType string   // "enum", "define", or ""
	ValidatorID   string   // name of the Group within the owning Class
	Description   string
}

// Command is an owned, indexed request with an ordered parameter list and
// an ordered return-parameter list.
type Command struct {
	Class       *Class
	Index       int
	Name        string
	Description string
	Params      []Parameter
	Returns     []Parameter
	NoReturn    bool
	Internal    bool
}

// Event is a device-originated, unsolicited message.
type Event struct {
	Class       *Class
	Index       int
	Name        string
	Description string
	Params      []Parameter
	Internal    bool
}

// Class is a named grouping of enums, defines, commands and events,
// addressed on the wire by an 8-bit index.
type Class struct {
	Device      *Device
	Index       int
	Name        string
	Description string

	Enums   map[string]*Group
	Defines map[string]*Group

	commandsByName  map[string]*Command
	commandsByIndex map[int]*Command
	eventsByName    map[string]*Event
	eventsByIndex   map[int]*Event

	CommandNames []string
	EventNames   []string
}

// Command looks up a command by name.
func (c *Class) Command(name string) (*Command, bool) {
	cmd, ok := c.commandsByName[name]
	return cmd, ok
}

// CommandByIndex looks up a command by its wire index.
func (c *Class) CommandByIndex(index int) (*Command, bool) {
	cmd, ok := c.commandsByIndex[index]
	return cmd, ok
}

// Event looks up an event by name.
func (c *Class) Event(name string) (*Event, bool) {
	evt, ok := c.eventsByName[name]
	return evt, ok
}

// EventByIndex looks up an event by its wire index.
func (c *Class) EventByIndex(index int) (*Event, bool) {
	evt, ok := c.eventsByIndex[index]
	return evt, ok
}

// Constants returns the class's enum and define members as a flat,
// deterministic name -> value table, keyed GROUPNAME_MEMBERNAME in upper
// case, matching the naming scheme bglib.py folds onto its generated
// class objects (spec.md §9, "global enum/define constants folded onto a
// class object").
func (c *Class) Constants() map[string]int {
	out := map[string]int{}
	for _, groupName := range sortedKeys(c.Enums) {
		g := c.Enums[groupName]
		for _, name := range g.Names {
			v, _ := g.ByName(name)
			out[fmt.Sprintf("%s_%s", upper(groupName), upper(v.Name))] = v.Value
		}
	}
	for _, groupName := range sortedKeys(c.Defines) {
		g := c.Defines[groupName]
		for _, name := range g.Names {
			v, _ := g.ByName(name)
			out[fmt.Sprintf("%s_%s", upper(groupName), upper(v.Name))] = v.Value
		}
	}
	return out
}

// Validator resolves a parameter's validator group, if any.
func (c *Class) Validator(p Parameter) (*Group, bool) {
	switch p.ValidatorType {
	case "enum":
		g, ok := c.Enums[p.ValidatorID]
		return g, ok
	case "define":
		g, ok := c.Defines[p.ValidatorID]
		return g, ok
	}
	return nil, false
}

// Device is a named collection of classes, disambiguated by device_id.
type Device struct {
	ID          int
	Name        string
	Description string
	Version     string
	Types       map[string]*Datatype

	classesByName  map[string]*Class
	classesByIndex map[int]*Class
	ClassNames     []string
}

// Class looks up a class by name.
func (d *Device) Class(name string) (*Class, bool) {
	c, ok := d.classesByName[name]
	return c, ok
}

// ClassByIndex looks up a class by its wire index.
func (d *Device) ClassByIndex(index int) (*Class, bool) {
	c, ok := d.classesByIndex[index]
	return c, ok
}

func upper(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return string(out)
}

func sortedKeys(m map[string]*Group) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// insertion order isn't tracked on the map; a stable lexical order
	// keeps Constants() deterministic across runs.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
