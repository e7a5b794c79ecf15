package xapi_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgapi-go/bgapi/xapi"
)

const testSchema = `<?xml version="1.0"?>
<api device_id="0x0" device_name="test" version="1.0">
  <datatypes>
    <datatype name="errorcode" base="uint16"/>
    <datatype name="fixed6" base="byte_array" length="6"/>
  </datatypes>
  <class index="0" name="system">
    <description>System class</description>
    <enums name="boot_mode">
      <description>boot mode</description>
      <enum name="normal" value="0x0"/>
      <enum name="bootloader" value="0b1"/>
    </enums>
    <defines name="feature_flags">
      <description>flags</description>
      <define name="flag_a" value="1"/>
      <define name="flag_b" value="2"/>
    </defines>
    <command index="0" name="hello">
      <description>Say hello</description>
      <params>
        <param name="mode" type="uint8" validator_type="enum" validator_id="boot_mode">
          <description>boot mode</description>
        </param>
      </params>
      <returns>
        <param name="result" type="uint16" datatype="errorcode">
          <description>error code</description>
        </param>
      </returns>
    </command>
    <event index="0" name="boot">
      <description>Device booted</description>
      <params>
        <param name="addr" type="byte_array" datatype="fixed6"/>
      </params>
    </event>
  </class>
</api>`

func TestParseDeviceBasics(t *testing.T) {
	d, err := xapi.Parse(strings.NewReader(testSchema))
	require.NoError(t, err)
	require.Equal(t, 0, d.ID)
	require.Equal(t, "test", d.Name)
	require.Equal(t, "1.0", d.Version)

	class, ok := d.Class("system")
	require.True(t, ok)
	require.Equal(t, 0, class.Index)

	cmd, ok := class.Command("hello")
	require.True(t, ok)
	require.Equal(t, 0, cmd.Index)
	require.Len(t, cmd.Params, 1)
	require.Equal(t, "result", cmd.Returns[0].Name)

	g, ok := class.Validator(cmd.Params[0])
	require.True(t, ok)
	v, ok := g.ByName("bootloader")
	require.True(t, ok)
	require.Equal(t, 1, v.Value)
}

func TestConstantsNamingScheme(t *testing.T) {
	d, err := xapi.Parse(strings.NewReader(testSchema))
	require.NoError(t, err)
	class, _ := d.Class("system")
	consts := class.Constants()
	require.Equal(t, 0, consts["BOOT_MODE_NORMAL"])
	require.Equal(t, 1, consts["BOOT_MODE_BOOTLOADER"])
}

func TestParseIntLiterals(t *testing.T) {
	cases := map[string]int{
		"10":   10,
		"0x1a": 26,
		"0b101": 5,
	}
	for in, want := range cases {
		got, err := xapi.ParseInt(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestCamelcase(t *testing.T) {
	require.Equal(t, "SetBondable", xapi.Camelcase("set_bondable"))
	require.Equal(t, "Hello", xapi.Camelcase("hello"))
}
