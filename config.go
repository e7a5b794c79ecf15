package bgapi

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TransportConfig selects and parameterizes the byte-oriented link the
// engine drives (spec.md §4.A).
type TransportConfig struct {
	// Kind selects the transport: "tcp", "unix", or "serial".
	Kind string `yaml:"kind"`
	// Endpoint is a "host:port" for tcp, a socket path for unix, or a
	// device path (e.g. "/dev/ttyACM0") for serial.
	Endpoint string `yaml:"endpoint"`
	// Baud is only meaningful for Kind == "serial".
	Baud int `yaml:"baud"`
}

// Config configures a Client: which transport to dial, which XAPI
// schemas to load, and the engine's response handling (spec.md §10.3,
// generalizing the teacher's single flat Config struct with the
// transport/framing/timeout knobs this protocol actually needs).
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	// APIFiles lists XML API schema paths to load at Open time.
	APIFiles []string `yaml:"api_files"`
	// ResponseTimeout bounds how long a command waits for its response.
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	// Reliable wraps the transport in the preamble/CRC framer (spec.md
	// §4.B) instead of driving the base BGAPI wire format directly.
	Reliable bool `yaml:"reliable"`
	// ReliableCRC toggles the payload CRC-8 trailer when Reliable is set.
	ReliableCRC bool `yaml:"reliable_crc"`
}

// Verify validates the configuration, returning a descriptive error for
// anything the client can't act on (teacher's config.go Verify pattern).
func (cfg *Config) Verify() error {
	switch cfg.Transport.Kind {
	case "tcp", "unix":
		if cfg.Transport.Endpoint == "" {
			return fmt.Errorf("bgapi: config: %s transport requires an endpoint", cfg.Transport.Kind)
		}
	case "serial":
		if cfg.Transport.Endpoint == "" {
			return fmt.Errorf("bgapi: config: serial transport requires an endpoint")
		}
		if cfg.Transport.Baud <= 0 {
			return fmt.Errorf("bgapi: config: serial transport requires a positive baud rate")
		}
	default:
		return fmt.Errorf("bgapi: config: unrecognized transport kind %q", cfg.Transport.Kind)
	}
	if len(cfg.APIFiles) == 0 {
		return fmt.Errorf("bgapi: config: at least one api file is required")
	}
	return nil
}

// buildTransport constructs the raw transport named by cfg.Transport,
// wrapping it in a ReliableFramer when cfg.Reliable is set.
func (cfg *Config) buildTransport() (Transport, error) {
	var t Transport
	switch cfg.Transport.Kind {
	case "tcp":
		t = NewNetTransport("tcp", cfg.Transport.Endpoint)
	case "unix":
		t = NewNetTransport("unix", cfg.Transport.Endpoint)
	case "serial":
		t = NewSerialTransport(cfg.Transport.Endpoint, cfg.Transport.Baud)
	default:
		return nil, fmt.Errorf("bgapi: config: unrecognized transport kind %q", cfg.Transport.Kind)
	}
	if cfg.Reliable {
		t = NewReliableFramer(t, cfg.ReliableCRC)
	}
	return t, nil
}

// LoadConfigFile reads a YAML configuration file (spec.md §10.3).
func LoadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("bgapi: config: %w", err)
	}
	return &cfg, nil
}
