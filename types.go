package bgapi

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/bgapi-go/bgapi/xapi"
)

// Absent is the sentinel value filled into a parameter slot when an
// inbound payload ends before that parameter's bytes arrived (spec.md
// §4.D.3 step 5).
type Absent struct{}

// IsAbsent reports whether v is the Absent sentinel.
func IsAbsent(v interface{}) bool {
	_, ok := v.(Absent)
	return ok
}

// isNumericLiteral reports whether s should bypass validator lookup and
// be parsed directly as a number: a leading digit, or a "0x"/"0b" prefix
// (spec.md §4.D.2; apiparser.py's toInt combined with the
// basestring-or-leading-digit check in serdeser.py's
// _convertEnumDefine). This is the proper text-versus-number
// discriminator called for in spec.md §9's open question about the
// source's isinstance(..., basestring) check.
func isNumericLiteral(s string) bool {
	if s == "" {
		return true
	}
	c := s[0]
	return c >= '0' && c <= '9'
}

func parseSignedLiteral(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var v int64
	var err error
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		var u uint64
		u, err = strconv.ParseUint(s[2:], 16, 64)
		v = int64(u)
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		var u uint64
		u, err = strconv.ParseUint(s[2:], 2, 64)
		v = int64(u)
	default:
		v, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}

// toInt64 converts any Go integer kind to an int64.
func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("bgapi: cannot treat %T as a numeric argument", v)
	}
}

// resolveNumericArg converts a raw argument into the numeric value to be
// encoded for a scalar parameter, resolving symbolic enum/define names
// against the owning class's validator groups (spec.md §4.D.2).
func resolveNumericArg(class *xapi.Class, p xapi.Parameter, arg interface{}) (int64, error) {
	s, isString := arg.(string)
	if !isString {
		return toInt64(arg)
	}
	if p.ValidatorID == "" || isNumericLiteral(s) {
		return parseSignedLiteral(s)
	}
	group, ok := class.Validator(p)
	if !ok {
		return 0, fmt.Errorf("bgapi: parameter %q: validator %q does not resolve", p.Name, p.ValidatorID)
	}
	switch p.ValidatorType {
	case "enum":
		v, ok := group.ByName(s)
		if !ok {
			return 0, fmt.Errorf("bgapi: parameter %q: %q is not a member of enum %q", p.Name, s, p.ValidatorID)
		}
		return int64(v.Value), nil
	case "define":
		var out int64
		for _, part := range strings.Split(s, "|") {
			v, ok := group.ByName(part)
			if !ok {
				return 0, fmt.Errorf("bgapi: parameter %q: %q is not a member of define %q", p.Name, part, p.ValidatorID)
			}
			out |= int64(v.Value)
		}
		return out, nil
	}
	return parseSignedLiteral(s)
}

// decodeValidator converts a decoded numeric value into its symbolic
// rendering for a validated parameter (serdeser.py's Deserializer
// _convertEnumDefine). Used when validator-aware decoding is enabled.
func decodeValidator(class *xapi.Class, p xapi.Parameter, numeric int64) interface{} {
	if p.ValidatorID == "" {
		return nil
	}
	group, ok := class.Validator(p)
	if !ok {
		return nil
	}
	switch p.ValidatorType {
	case "enum":
		v, ok := group.ByValue(int(numeric))
		if !ok {
			return nil
		}
		return v.Name
	case "define":
		var names []string
		for _, name := range group.Names {
			v, _ := group.ByName(name)
			if int64(v.Value)&numeric != 0 {
				names = append(names, v.Name)
			}
		}
		if len(names) == 0 {
			return nil
		}
		return strings.Join(names, "|")
	}
	return nil
}

func toBytes(arg interface{}) ([]byte, error) {
	switch v := arg.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("bgapi: expected []byte or string, got %T", arg)
	}
}

func parseHexAddr(s string) ([6]byte, error) {
	var out [6]byte
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return out, fmt.Errorf("bgapi: %q is not a 6-octet colon-separated address", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return out, fmt.Errorf("bgapi: %q is not a 6-octet colon-separated address: %w", s, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func formatHexAddr(b []byte) string {
	parts := make([]string, len(b))
	for i, x := range b {
		parts[i] = fmt.Sprintf("%02x", x)
	}
	return strings.Join(parts, ":")
}

// encodeScalar writes the little-endian wire bytes for a fixed-width
// integer parameter (spec.md §4.D.2).
func encodeScalar(format xapi.Format, n int64) []byte {
	switch format {
	case xapi.FormatInt8, xapi.FormatUint8:
		return []byte{byte(n)}
	case xapi.FormatInt16, xapi.FormatUint16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(n))
		return buf
	case xapi.FormatInt32, xapi.FormatUint32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(n))
		return buf
	case xapi.FormatInt64, xapi.FormatUint64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(n))
		return buf
	}
	return nil
}

func scalarWidth(format xapi.Format) int {
	switch format {
	case xapi.FormatInt8, xapi.FormatUint8:
		return 1
	case xapi.FormatInt16, xapi.FormatUint16:
		return 2
	case xapi.FormatInt32, xapi.FormatUint32:
		return 4
	case xapi.FormatInt64, xapi.FormatUint64:
		return 8
	}
	return 0
}

// decodeScalar reads a little-endian fixed-width integer and returns it
// as the Go type matching the format's signedness and width.
func decodeScalar(format xapi.Format, b []byte) interface{} {
	switch format {
	case xapi.FormatInt8:
		return int8(b[0])
	case xapi.FormatUint8:
		return b[0]
	case xapi.FormatInt16:
		return int16(binary.LittleEndian.Uint16(b))
	case xapi.FormatUint16:
		return binary.LittleEndian.Uint16(b)
	case xapi.FormatInt32:
		return int32(binary.LittleEndian.Uint32(b))
	case xapi.FormatUint32:
		return binary.LittleEndian.Uint32(b)
	case xapi.FormatInt64:
		return int64(binary.LittleEndian.Uint64(b))
	case xapi.FormatUint64:
		return binary.LittleEndian.Uint64(b)
	}
	return nil
}

func isScalarFormat(format xapi.Format) bool {
	return scalarWidth(format) > 0
}
