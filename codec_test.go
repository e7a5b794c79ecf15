package bgapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgapi-go/bgapi/xapi"
)

const codecTestSchema = `<?xml version="1.0"?>
<api device_id="0x1" device_name="codec_test" version="1.0">
  <datatypes>
    <datatype name="errorcode" base="uint16"/>
    <datatype name="fixed4" base="byte_array" length="4"/>
  </datatypes>
  <class index="2" name="gap">
    <description>GAP class</description>
    <enums name="phy">
      <description>phy</description>
      <enum name="phy_1m" value="1"/>
      <enum name="phy_2m" value="2"/>
    </enums>
    <command index="5" name="connect">
      <description>Connect to a remote device</description>
      <params>
        <param name="address" type="bd_addr"><description>peer address</description></param>
        <param name="phy" type="uint8" validator_type="enum" validator_id="phy"><description>phy</description></param>
      </params>
      <returns>
        <param name="result" type="uint16" datatype="errorcode"><description>error code</description></param>
        <param name="connection" type="uint8"><description>handle</description></param>
      </returns>
    </command>
    <command index="6" name="read_name">
      <description>Read a name</description>
      <params>
        <param name="max_len" type="uint8"/>
      </params>
      <returns>
        <param name="name" type="uint8array"><description>name bytes</description></param>
      </returns>
    </command>
    <event index="0" name="connection_opened">
      <description>Connection opened</description>
      <params>
        <param name="address" type="bd_addr"/>
        <param name="tag" type="byte_array" datatype="fixed4"/>
      </params>
    </event>
  </class>
</api>`

func loadCodecTestDevice(t *testing.T) (*xapi.Device, *xapi.Registry) {
	t.Helper()
	d, err := xapi.Parse(strings.NewReader(codecTestSchema))
	require.NoError(t, err)
	reg, err := xapi.NewRegistry(d)
	require.NoError(t, err)
	return d, reg
}

func TestSerializeParseRoundTrip_BdAddrAndEnum(t *testing.T) {
	d, reg := loadCodecTestDevice(t)
	class, _ := d.Class("gap")
	cmd, _ := class.Command("connect")

	wire, err := Serialize(d, class, cmd, []interface{}{"aa:bb:cc:dd:ee:ff", "phy_2m"})
	require.NoError(t, err)
	require.Len(t, wire, HeaderLength+7)

	var hdr [HeaderLength]byte
	copy(hdr[:], wire[:HeaderLength])
	msg, err := Parse(reg, hdr, wire[HeaderLength:], true)
	require.NoError(t, err)
	require.Equal(t, "aa:bb:cc:dd:ee:ff", msg.MustGet("address"))
	require.Equal(t, "phy_2m", msg.MustGet("phy"))
}

func TestParseEvent_BdAddrByteOrder(t *testing.T) {
	d, reg := loadCodecTestDevice(t)
	class, _ := d.Class("gap")
	evt, _ := class.Event("connection_opened")

	payload := []byte{0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa, 1, 2, 3, 4}
	hdr, err := MakeHeader(Header{Type: MsgEvent, DeviceID: d.ID, ClassID: class.Index, CommandID: evt.Index, PayloadLen: len(payload)})
	require.NoError(t, err)

	msg, err := Parse(reg, hdr, payload, false)
	require.NoError(t, err)
	require.Equal(t, "aa:bb:cc:dd:ee:ff", msg.MustGet("address"))
	require.Equal(t, []byte{1, 2, 3, 4}, msg.MustGet("tag"))
}

func TestSerializeParseRoundTrip_Uint8Array(t *testing.T) {
	d, reg := loadCodecTestDevice(t)
	class, _ := d.Class("gap")
	cmd, _ := class.Command("read_name")

	wire, err := Serialize(d, class, cmd, []interface{}{uint8(10)})
	require.NoError(t, err)

	require.NotEmpty(t, wire)
	respPayload := append([]byte{3}, []byte("abc")...)
	respHdr, err := MakeHeader(Header{Type: MsgCommand, DeviceID: d.ID, ClassID: class.Index, CommandID: cmd.Index, PayloadLen: len(respPayload)})
	require.NoError(t, err)

	msg, err := Parse(reg, respHdr, respPayload, false)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), msg.MustGet("name"))
}

func TestParseCommandFailedErrorCode(t *testing.T) {
	d, reg := loadCodecTestDevice(t)
	class, _ := d.Class("gap")
	cmd, _ := class.Command("connect")

	payload := []byte{0x01, 0x02, 0x07} // result=0x0201, connection=7
	hdr, err := MakeHeader(Header{Type: MsgCommand, DeviceID: d.ID, ClassID: class.Index, CommandID: cmd.Index, PayloadLen: len(payload)})
	require.NoError(t, err)

	msg, err := Parse(reg, hdr, payload, false)
	require.NoError(t, err)
	code, ok := errorCodeOf(msg)
	require.True(t, ok)
	require.Equal(t, 0x0201, code)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Type: MsgEvent, DeviceID: 0xA, ClassID: 0x12, CommandID: 0x34, PayloadLen: 1000}
	raw, err := MakeHeader(h)
	require.NoError(t, err)
	require.Equal(t, h, ParseHeader(raw))
}

func TestSerializeArgumentMismatch(t *testing.T) {
	d, _ := loadCodecTestDevice(t)
	class, _ := d.Class("gap")
	cmd, _ := class.Command("connect")
	_, err := Serialize(d, class, cmd, []interface{}{"aa:bb:cc:dd:ee:ff"})
	require.ErrorIs(t, err, ErrArgumentMismatch)
}

func TestParseUnderLengthPayloadProducesAbsentAndWarning(t *testing.T) {
	d, reg := loadCodecTestDevice(t)
	class, _ := d.Class("gap")
	evt, _ := class.Event("connection_opened")

	payload := []byte{0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa} // missing the 4-byte tag
	hdr, err := MakeHeader(Header{Type: MsgEvent, DeviceID: d.ID, ClassID: class.Index, CommandID: evt.Index, PayloadLen: len(payload)})
	require.NoError(t, err)

	msg, err := Parse(reg, hdr, payload, false)
	require.NoError(t, err)
	require.True(t, IsAbsent(msg.MustGet("tag")))
	require.NotEmpty(t, msg.Warnings)
}

func TestParseOverLengthPayloadIgnoresTrailingBytes(t *testing.T) {
	d, reg := loadCodecTestDevice(t)
	class, _ := d.Class("gap")
	cmd, _ := class.Command("read_name")

	payload := []byte{3, 'a', 'b', 'c', 0xde, 0xad}
	hdr, err := MakeHeader(Header{Type: MsgCommand, DeviceID: d.ID, ClassID: class.Index, CommandID: cmd.Index, PayloadLen: len(payload)})
	require.NoError(t, err)

	msg, err := Parse(reg, hdr, payload, false)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), msg.MustGet("name"))
	require.NotEmpty(t, msg.Warnings)
}

func TestParseUnknownDevice(t *testing.T) {
	_, reg := loadCodecTestDevice(t)
	hdr, err := MakeHeader(Header{Type: MsgCommand, DeviceID: 0x5, ClassID: 0, CommandID: 0, PayloadLen: 0})
	require.NoError(t, err)
	_, err = Parse(reg, hdr, nil, true)
	var unknown *UnknownDeviceError
	require.ErrorAs(t, err, &unknown)
}
