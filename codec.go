package bgapi

import (
	"fmt"

	"github.com/bgapi-go/bgapi/xapi"
)

// errorcodeDatatype is the datatype name the codec treats as a command's
// failure signal (spec.md §4.E.2 step 6).
const errorcodeDatatype = "errorcode"

// Serialize builds the wire bytes for an outgoing command: a 4-byte
// header followed by the encoded argument payload (spec.md §4.D.2).
func Serialize(device *xapi.Device, class *xapi.Class, cmd *xapi.Command, args []interface{}) ([]byte, error) {
	if len(args) != len(cmd.Params) {
		return nil, fmt.Errorf("%w: %s.%s expects %d arguments, got %d", ErrArgumentMismatch, class.Name, cmd.Name, len(cmd.Params), len(args))
	}
	payload, err := encodeParams(class, cmd.Params, args)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: %s.%s payload is %d bytes", ErrPacketTooLarge, class.Name, cmd.Name, len(payload))
	}
	hdr, err := MakeHeader(Header{
		Type:       MsgCommand,
		DeviceID:   device.ID,
		ClassID:    class.Index,
		CommandID:  cmd.Index,
		PayloadLen: len(payload),
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, HeaderLength+len(payload))
	out = append(out, hdr[:]...)
	out = append(out, payload...)
	return out, nil
}

func encodeParams(class *xapi.Class, params []xapi.Parameter, args []interface{}) ([]byte, error) {
	var out []byte
	for i, p := range params {
		b, err := encodeParam(class, p, args[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeParam(class *xapi.Class, p xapi.Parameter, arg interface{}) ([]byte, error) {
	switch p.Format {
	case xapi.FormatInt8, xapi.FormatUint8, xapi.FormatInt16, xapi.FormatUint16,
		xapi.FormatInt32, xapi.FormatUint32, xapi.FormatInt64, xapi.FormatUint64:
		n, err := resolveNumericArg(class, p, arg)
		if err != nil {
			return nil, err
		}
		return encodeScalar(p.Format, n), nil
	case xapi.FormatUint8Array:
		b, err := toBytes(arg)
		if err != nil {
			return nil, err
		}
		if len(b) > 0xFF {
			return nil, fmt.Errorf("bgapi: parameter %q: array of %d bytes exceeds uint8array maximum of 255", p.Name, len(b))
		}
		return append([]byte{byte(len(b))}, b...), nil
	case xapi.FormatUint16Array:
		b, err := toBytes(arg)
		if err != nil {
			return nil, err
		}
		if len(b) > 0xFFFF {
			return nil, fmt.Errorf("bgapi: parameter %q: array of %d bytes exceeds uint16array maximum of 65535", p.Name, len(b))
		}
		return append(encodeScalar(xapi.FormatUint16, int64(len(b))), b...), nil
	case xapi.FormatBdAddr:
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("bgapi: parameter %q: bd_addr argument must be a string", p.Name)
		}
		addr, err := parseHexAddr(s)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 6)
		for i := range addr {
			out[5-i] = addr[i]
		}
		return out, nil
	case xapi.FormatHwAddr:
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("bgapi: parameter %q: hw_addr argument must be a string", p.Name)
		}
		addr, err := parseHexAddr(s)
		if err != nil {
			return nil, err
		}
		return addr[:], nil
	case xapi.FormatIPv4:
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("bgapi: parameter %q: ipv4 argument must be a string", p.Name)
		}
		var a, b2, c, d int
		if _, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b2, &c, &d); err != nil {
			return nil, fmt.Errorf("bgapi: parameter %q: %q is not a dotted-decimal ipv4 address", p.Name, s)
		}
		return []byte{byte(a), byte(b2), byte(c), byte(d)}, nil
	case xapi.FormatUUID128, xapi.FormatAESKey128:
		return fixedBytes(p, arg, 16)
	case xapi.FormatUUID64:
		return fixedBytes(p, arg, 8)
	case xapi.FormatUUID16:
		return fixedBytes(p, arg, 2)
	case xapi.FormatByteArray:
		n := p.Datatype.Length
		return fixedBytes(p, arg, n)
	}
	return nil, fmt.Errorf("bgapi: parameter %q: unrecognized format %q", p.Name, p.Format)
}

func fixedBytes(p xapi.Parameter, arg interface{}, n int) ([]byte, error) {
	b, err := toBytes(arg)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("bgapi: parameter %q: expected %d bytes, got %d", p.Name, n, len(b))
	}
	return b, nil
}

// Parse decodes a frame's header and payload into a Message (spec.md
// §4.D.3). registry resolves device_id to the loaded API.
func Parse(registry *xapi.Registry, raw [HeaderLength]byte, payload []byte, fromHost bool) (*Message, error) {
	hdr := ParseHeader(raw)
	device, ok := registry.ByID(hdr.DeviceID)
	if !ok {
		return nil, &UnknownDeviceError{DeviceID: hdr.DeviceID}
	}
	class, ok := device.ClassByIndex(hdr.ClassID)
	if !ok {
		return nil, &UnknownClassError{DeviceID: hdr.DeviceID, ClassID: hdr.ClassID}
	}

	msg := &Message{Header: hdr, Class: class, FromHost: fromHost}
	var params []xapi.Parameter
	switch hdr.Type {
	case MsgCommand:
		cmd, ok := class.CommandByIndex(hdr.CommandID)
		if !ok {
			return nil, &UnknownCommandError{ClassID: hdr.ClassID, CommandID: hdr.CommandID}
		}
		msg.Command = cmd
		if fromHost {
			params = cmd.Params
		} else {
			params = cmd.Returns
		}
	case MsgEvent:
		evt, ok := class.EventByIndex(hdr.CommandID)
		if !ok {
			return nil, &UnknownEventError{ClassID: hdr.ClassID, EventID: hdr.CommandID}
		}
		msg.Event = evt
		params = evt.Params
	}

	values, warnings := decodeParams(class, params, payload)
	msg.Values = values
	msg.Warnings = warnings
	return msg, nil
}

func decodeParams(class *xapi.Class, params []xapi.Parameter, payload []byte) ([]interface{}, []string) {
	values := make([]interface{}, len(params))
	var warnings []string
	pos := 0
	truncated := false
	for i, p := range params {
		if !truncated {
			v, n, ok := decodeParam(class, p, payload[pos:])
			if ok {
				values[i] = v
				pos += n
				continue
			}
			truncated = true
		}
		values[i] = Absent{}
		warnings = append(warnings, fmt.Sprintf("payload ended before parameter %q", p.Name))
	}
	if pos < len(payload) {
		warnings = append(warnings, fmt.Sprintf("%d trailing payload bytes ignored", len(payload)-pos))
	}
	return values, warnings
}

// decodeParam returns the decoded value, the number of bytes consumed,
// and whether enough bytes remained to decode it at all.
func decodeParam(class *xapi.Class, p xapi.Parameter, rest []byte) (interface{}, int, bool) {
	if isScalarFormat(p.Format) {
		n := scalarWidth(p.Format)
		if len(rest) < n {
			return nil, 0, false
		}
		raw := decodeScalar(p.Format, rest[:n])
		if symbolic := decodeValidatorFromRaw(class, p, raw); symbolic != nil {
			return symbolic, n, true
		}
		return raw, n, true
	}
	switch p.Format {
	case xapi.FormatUint8Array:
		if len(rest) < 1 {
			return nil, 0, false
		}
		n := int(rest[0])
		if len(rest) < 1+n {
			return nil, 0, false
		}
		return append([]byte(nil), rest[1:1+n]...), 1 + n, true
	case xapi.FormatUint16Array:
		if len(rest) < 2 {
			return nil, 0, false
		}
		n := int(decodeScalar(xapi.FormatUint16, rest[:2]).(uint16))
		if len(rest) < 2+n {
			return nil, 0, false
		}
		return append([]byte(nil), rest[2:2+n]...), 2 + n, true
	case xapi.FormatBdAddr:
		if len(rest) < 6 {
			return nil, 0, false
		}
		rev := make([]byte, 6)
		for i := 0; i < 6; i++ {
			rev[5-i] = rest[i]
		}
		return formatHexAddr(rev), 6, true
	case xapi.FormatHwAddr:
		if len(rest) < 6 {
			return nil, 0, false
		}
		return formatHexAddr(rest[:6]), 6, true
	case xapi.FormatIPv4:
		if len(rest) < 4 {
			return nil, 0, false
		}
		return fmt.Sprintf("%d.%d.%d.%d", rest[0], rest[1], rest[2], rest[3]), 4, true
	case xapi.FormatUUID128, xapi.FormatAESKey128:
		return fixedDecode(rest, 16)
	case xapi.FormatUUID64:
		return fixedDecode(rest, 8)
	case xapi.FormatUUID16:
		return fixedDecode(rest, 2)
	case xapi.FormatByteArray:
		return fixedDecode(rest, p.Datatype.Length)
	}
	return nil, 0, false
}

func fixedDecode(rest []byte, n int) (interface{}, int, bool) {
	if len(rest) < n {
		return nil, 0, false
	}
	return append([]byte(nil), rest[:n]...), n, true
}

func decodeValidatorFromRaw(class *xapi.Class, p xapi.Parameter, raw interface{}) interface{} {
	if p.ValidatorID == "" {
		return nil
	}
	n, err := toInt64(raw)
	if err != nil {
		return nil
	}
	return decodeValidator(class, p, n)
}

// errorCodeOf extracts the errorcode return value of a decoded command
// response, if its command declares one (spec.md §4.E.2 step 6).
func errorCodeOf(msg *Message) (int, bool) {
	if msg.Command == nil {
		return 0, false
	}
	for i, p := range msg.Command.Returns {
		if p.Datatype == nil || p.Datatype.Name != errorcodeDatatype {
			continue
		}
		if i >= len(msg.Values) {
			return 0, false
		}
		n, err := toInt64(msg.Values[i])
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
