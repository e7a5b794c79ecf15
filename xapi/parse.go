package xapi

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseInt parses an attribute value that may be given as a plain decimal
// literal, a "0x"-prefixed hex literal, or a "0b"-prefixed binary literal
// (apiparser.py's toInt).
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseInt(s[2:], 16, 64)
		return int(v), err
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		v, err := strconv.ParseInt(s[2:], 2, 64)
		return int(v), err
	default:
		v, err := strconv.ParseInt(s, 10, 64)
		return int(v), err
	}
}

func mustParseInt(s, context string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("xapi: %s: missing required integer attribute", context)
	}
	v, err := ParseInt(s)
	if err != nil {
		return 0, fmt.Errorf("xapi: %s: invalid integer %q: %w", context, s, err)
	}
	return v, nil
}

// xmlDoc mirrors the root element of a BGAPI XML schema document
// (spec.md §6.1).
type xmlDoc struct {
	DeviceID   string        `xml:"device_id,attr"`
	DeviceName string        `xml:"device_name,attr"`
	Version    string        `xml:"version,attr"`
	Datatypes  xmlDatatypes  `xml:"datatypes"`
	Classes    []xmlClass    `xml:"class"`
}

type xmlDatatypes struct {
	Datatype []xmlDatatype `xml:"datatype"`
}

type xmlDatatype struct {
	Name   string `xml:"name,attr"`
	Base   string `xml:"base,attr"`
	Length string `xml:"length,attr"`
}

type xmlClass struct {
	Index       string      `xml:"index,attr"`
	Name        string      `xml:"name,attr"`
	Description string      `xml:"description"`
	Enums       []xmlGroup  `xml:"enums"`
	Defines     []xmlGroup  `xml:"defines"`
	Commands    []xmlCmdEvt `xml:"command"`
	Events      []xmlCmdEvt `xml:"event"`
}

type xmlGroup struct {
	Name        string        `xml:"name,attr"`
	Description string        `xml:"description"`
	Entries     []xmlGroupVal `xml:",any"`
}

type xmlGroupVal struct {
	XMLName xml.Name
	Name    string `xml:"name,attr"`
	Value   string `xml:"value,attr"`
}

type xmlCmdEvt struct {
	Index       string     `xml:"index,attr"`
	Name        string     `xml:"name,attr"`
	Description string     `xml:"description"`
	NoReturn    string     `xml:"no_return,attr"`
	Internal    string     `xml:"internal,attr"`
	Params      *xmlParams `xml:"params"`
	Returns     *xmlParams `xml:"returns"`
}

type xmlParams struct {
	Param []xmlParam `xml:"param"`
}

type xmlParam struct {
	Name          string `xml:"name,attr"`
	Type          string `xml:"type,attr"`
	Datatype      string `xml:"datatype,attr"`
	ValidatorType string `xml:"validator_type,attr"`
	ValidatorID   string `xml:"validator_id,attr"`
	Description   string `xml:"description"`
}

// ParseFile loads a single XML schema file into a Device.
func ParseFile(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse loads a single XML schema document from r into a Device.
func Parse(r io.Reader) (*Device, error) {
	var doc xmlDoc
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("xapi: decode: %w", err)
	}
	return buildDevice(&doc)
}

func buildDevice(doc *xmlDoc) (*Device, error) {
	if doc.DeviceName == "" {
		return nil, fmt.Errorf("xapi: missing device_name attribute")
	}
	deviceID, err := mustParseInt(doc.DeviceID, "device")
	if err != nil {
		return nil, err
	}

	d := &Device{
		ID:             deviceID,
		Name:           doc.DeviceName,
		Version:        doc.Version,
		Types:          map[string]*Datatype{},
		classesByName:  map[string]*Class{},
		classesByIndex: map[int]*Class{},
	}

	for _, dt := range doc.Datatypes.Datatype {
		length := 0
		if dt.Length != "" {
			length, err = ParseInt(dt.Length)
			if err != nil {
				return nil, fmt.Errorf("xapi: datatype %q: %w", dt.Name, err)
			}
		}
		d.Types[dt.Name] = &Datatype{Name: dt.Name, Base: dt.Base, Length: length}
	}

	for _, xc := range doc.Classes {
		class, err := buildClass(d, &xc)
		if err != nil {
			return nil, err
		}
		if _, exists := d.classesByName[class.Name]; exists {
			return nil, fmt.Errorf("xapi: duplicate class name %q in device %q", class.Name, d.Name)
		}
		if _, exists := d.classesByIndex[class.Index]; exists {
			return nil, fmt.Errorf("xapi: duplicate class index %d in device %q", class.Index, d.Name)
		}
		d.classesByName[class.Name] = class
		d.classesByIndex[class.Index] = class
		d.ClassNames = append(d.ClassNames, class.Name)
	}

	return d, nil
}

func buildClass(d *Device, xc *xmlClass) (*Class, error) {
	index, err := mustParseInt(xc.Index, fmt.Sprintf("class %q", xc.Name))
	if err != nil {
		return nil, err
	}
	c := &Class{
		Device:          d,
		Index:           index,
		Name:            xc.Name,
		Description:     xc.Description,
		Enums:           map[string]*Group{},
		Defines:         map[string]*Group{},
		commandsByName:  map[string]*Command{},
		commandsByIndex: map[int]*Command{},
		eventsByName:    map[string]*Event{},
		eventsByIndex:   map[int]*Event{},
	}

	for _, xg := range xc.Enums {
		g, err := buildGroup(&xg, KindEnum)
		if err != nil {
			return nil, fmt.Errorf("xapi: class %q: %w", c.Name, err)
		}
		c.Enums[g.Name] = g
	}
	for _, xg := range xc.Defines {
		g, err := buildGroup(&xg, KindDefine)
		if err != nil {
			return nil, fmt.Errorf("xapi: class %q: %w", c.Name, err)
		}
		c.Defines[g.Name] = g
	}

	for _, xcmd := range xc.Commands {
		cmd, err := buildCommand(c, &xcmd)
		if err != nil {
			return nil, err
		}
		if _, exists := c.commandsByIndex[cmd.Index]; exists {
			return nil, fmt.Errorf("xapi: class %q: duplicate command index %d", c.Name, cmd.Index)
		}
		c.commandsByName[cmd.Name] = cmd
		c.commandsByIndex[cmd.Index] = cmd
		c.CommandNames = append(c.CommandNames, cmd.Name)
	}

	for _, xevt := range xc.Events {
		evt, err := buildEvent(c, &xevt)
		if err != nil {
			return nil, err
		}
		if _, exists := c.eventsByIndex[evt.Index]; exists {
			return nil, fmt.Errorf("xapi: class %q: duplicate event index %d", c.Name, evt.Index)
		}
		c.eventsByName[evt.Name] = evt
		c.eventsByIndex[evt.Index] = evt
		c.EventNames = append(c.EventNames, evt.Name)
	}

	if err := validateValidators(c); err != nil {
		return nil, err
	}
	if err := validateByteArrays(c); err != nil {
		return nil, err
	}

	return c, nil
}

func buildGroup(xg *xmlGroup, kind GroupKind) (*Group, error) {
	if xg.Name == "" {
		return nil, fmt.Errorf("group missing name attribute")
	}
	g := newGroup(xg.Name, xg.Description, kind)
	for _, e := range xg.Entries {
		if e.XMLName.Local != "enum" && e.XMLName.Local != "define" {
			continue
		}
		value, err := mustParseInt(e.Value, fmt.Sprintf("group %q member %q", xg.Name, e.Name))
		if err != nil {
			return nil, err
		}
		g.add(&EnumValue{Name: e.Name, Value: value})
	}
	return g, nil
}

func buildCommand(c *Class, xcmd *xmlCmdEvt) (*Command, error) {
	index, err := mustParseInt(xcmd.Index, fmt.Sprintf("command %q", xcmd.Name))
	if err != nil {
		return nil, err
	}
	cmd := &Command{
		Class:       c,
		Index:       index,
		Name:        xcmd.Name,
		Description: xcmd.Description,
		NoReturn:    xcmd.NoReturn == "true" || xcmd.NoReturn == "1",
		Internal:    xcmd.Internal == "true" || xcmd.Internal == "1",
	}
	if xcmd.Params != nil {
		for _, xp := range xcmd.Params.Param {
			p, err := buildParam(c, len(cmd.Params), &xp)
			if err != nil {
				return nil, err
			}
			cmd.Params = append(cmd.Params, p)
		}
	}
	if xcmd.Returns != nil {
		for _, xp := range xcmd.Returns.Param {
			p, err := buildParam(c, len(cmd.Returns), &xp)
			if err != nil {
				return nil, err
			}
			cmd.Returns = append(cmd.Returns, p)
		}
	}
	return cmd, nil
}

func buildEvent(c *Class, xevt *xmlCmdEvt) (*Event, error) {
	index, err := mustParseInt(xevt.Index, fmt.Sprintf("event %q", xevt.Name))
	if err != nil {
		return nil, err
	}
	evt := &Event{
		Class:       c,
		Index:       index,
		Name:        xevt.Name,
		Description: xevt.Description,
		Internal:    xevt.Internal == "true" || xevt.Internal == "1",
	}
	if xevt.Params != nil {
		for _, xp := range xevt.Params.Param {
			p, err := buildParam(c, len(evt.Params), &xp)
			if err != nil {
				return nil, err
			}
			evt.Params = append(evt.Params, p)
		}
	}
	return evt, nil
}

var recognizedFormats = map[Format]bool{
	FormatInt8: true, FormatUint8: true, FormatInt16: true, FormatUint16: true,
	FormatInt32: true, FormatUint32: true, FormatInt64: true, FormatUint64: true,
	FormatUint8Array: true, FormatUint16Array: true, FormatBdAddr: true,
	FormatHwAddr: true, FormatIPv4: true, FormatUUID128: true, FormatAESKey128: true,
	FormatUUID64: true, FormatUUID16: true, FormatByteArray: true,
}

func buildParam(c *Class, index int, xp *xmlParam) (Parameter, error) {
	format := Format(xp.Type)
	if !recognizedFormats[format] {
		return Parameter{}, fmt.Errorf("xapi: class %q: parameter %q: unrecognized format %q", c.Name, xp.Name, xp.Type)
	}
	p := Parameter{
		Name:          xp.Name,
		Index:         index,
		Format:        format,
		ValidatorType: xp.ValidatorType,
		ValidatorID:   xp.ValidatorID,
		Description:   xp.Description,
	}
	if xp.Datatype != "" {
		dt, ok := c.Device.Types[xp.Datatype]
		if !ok {
			return Parameter{}, fmt.Errorf("xapi: class %q: parameter %q: unknown datatype %q", c.Name, xp.Name, xp.Datatype)
		}
		p.Datatype = dt
	}
	return p, nil
}

func validateValidators(c *Class) error {
	check := func(p Parameter) error {
		if p.ValidatorType == "" {
			return nil
		}
		if _, ok := c.Validator(p); !ok {
			return fmt.Errorf("xapi: class %q: parameter %q: validator %q of type %q does not resolve",
				c.Name, p.Name, p.ValidatorID, p.ValidatorType)
		}
		return nil
	}
	for _, cmd := range c.commandsByName {
		for _, p := range cmd.Params {
			if err := check(p); err != nil {
				return err
			}
		}
		for _, p := range cmd.Returns {
			if err := check(p); err != nil {
				return err
			}
		}
	}
	for _, evt := range c.eventsByName {
		for _, p := range evt.Params {
			if err := check(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateByteArrays(c *Class) error {
	check := func(p Parameter) error {
		if p.Format != FormatByteArray {
			return nil
		}
		if p.Datatype == nil {
			return fmt.Errorf("xapi: class %q: parameter %q: byte_array requires a datatype attribute", c.Name, p.Name)
		}
		return nil
	}
	for _, cmd := range c.commandsByName {
		for _, p := range cmd.Params {
			if err := check(p); err != nil {
				return err
			}
		}
		for _, p := range cmd.Returns {
			if err := check(p); err != nil {
				return err
			}
		}
	}
	for _, evt := range c.eventsByName {
		for _, p := range evt.Params {
			if err := check(p); err != nil {
				return err
			}
		}
	}
	return nil
}
