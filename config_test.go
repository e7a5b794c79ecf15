package bgapi_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgapi-go/bgapi"
)

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
transport:
  kind: serial
  endpoint: /dev/ttyACM0
  baud: 115200
api_files:
  - ./api/bt.xml
response_timeout: 2s
reliable: true
reliable_crc: true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := bgapi.LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, "serial", cfg.Transport.Kind)
	require.Equal(t, "/dev/ttyACM0", cfg.Transport.Endpoint)
	require.Equal(t, 115200, cfg.Transport.Baud)
	require.Equal(t, []string{"./api/bt.xml"}, cfg.APIFiles)
	require.Equal(t, 2*time.Second, cfg.ResponseTimeout)
	require.True(t, cfg.Reliable)
	require.True(t, cfg.ReliableCRC)
	require.NoError(t, cfg.Verify())
}

func TestConfigVerifyRejectsUnknownTransport(t *testing.T) {
	cfg := &bgapi.Config{
		Transport: bgapi.TransportConfig{Kind: "carrier-pigeon"},
		APIFiles:  []string{"a.xml"},
	}
	require.Error(t, cfg.Verify())
}

func TestConfigVerifyRequiresAPIFiles(t *testing.T) {
	cfg := &bgapi.Config{
		Transport: bgapi.TransportConfig{Kind: "tcp", Endpoint: "127.0.0.1:5000"},
	}
	require.Error(t, cfg.Verify())
}

func TestConfigVerifyRequiresSerialBaud(t *testing.T) {
	cfg := &bgapi.Config{
		Transport: bgapi.TransportConfig{Kind: "serial", Endpoint: "/dev/ttyACM0"},
		APIFiles:  []string{"a.xml"},
	}
	require.Error(t, cfg.Verify())
}
