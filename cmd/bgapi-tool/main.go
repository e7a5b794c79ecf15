package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/bgapi-go/bgapi"
)

const (
	programName = "bgapi-tool"
	programDesc = "Talk to a BGAPI device over serial, TCP, or Unix socket"
)

// context is the context struct required by kong command line parser.
type context struct{}

type callCmd struct {
	API       string        `flag:"" required:"" short:"a" help:"Path to the XML API schema"`
	Transport string        `flag:"" required:"" short:"t" help:"Transport kind: tcp, unix, or serial"`
	Endpoint  string        `flag:"" required:"" short:"e" help:"host:port, socket path, or serial device"`
	Baud      int           `flag:"" default:"115200" help:"Baud rate (serial transport only)"`
	Reliable  bool          `flag:"" help:"Wrap the transport in the reliable preamble/CRC framer"`
	Timeout   time.Duration `flag:"" default:"2s" help:"Response timeout"`
	Class     string        `arg:"" help:"Class name, e.g. system"`
	Command   string        `arg:"" help:"Command name, e.g. hello"`
	Args      []string      `arg:"" optional:"" help:"Positional command arguments"`
}

type eventsCmd struct {
	API       string        `flag:"" required:"" short:"a" help:"Path to the XML API schema"`
	Transport string        `flag:"" required:"" short:"t" help:"Transport kind: tcp, unix, or serial"`
	Endpoint  string        `flag:"" required:"" short:"e" help:"host:port, socket path, or serial device"`
	Baud      int           `flag:"" default:"115200" help:"Baud rate (serial transport only)"`
	Reliable  bool          `flag:"" help:"Wrap the transport in the reliable preamble/CRC framer"`
	Duration  time.Duration `flag:"" default:"10s" help:"How long to print events for"`
}

// cli is the main command line interface struct required by kong.
var cli struct {
	Call   callCmd   `cmd:"" help:"Invoke a single command and print its response"`
	Events eventsCmd `cmd:"" help:"Stream events for a while and print them"`
}

func buildClient(apiFile, transport, endpoint string, baud int, reliable bool, timeout time.Duration) *bgapi.Client {
	return &bgapi.Client{
		Config: bgapi.Config{
			APIFiles:        []string{apiFile},
			ResponseTimeout: timeout,
			Reliable:        reliable,
			ReliableCRC:     true,
			Transport: bgapi.TransportConfig{
				Kind:     transport,
				Endpoint: endpoint,
				Baud:     baud,
			},
		},
	}
}

func (c *callCmd) Run(_ *context) error {
	client := buildClient(c.API, c.Transport, c.Endpoint, c.Baud, c.Reliable, c.Timeout)
	if err := client.Open(); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer client.Disconnect()

	device := client.Engine().Registry.Devices()[0]
	facade, ok := client.Device(device.Name)
	if !ok {
		return fmt.Errorf("device %q has no facade", device.Name)
	}
	class, err := facade.Class(c.Class)
	if err != nil {
		return err
	}

	args := make([]interface{}, len(c.Args))
	for i, a := range c.Args {
		args[i] = a
	}
	resp, err := class.Call(c.Command, args...)
	if err != nil {
		return err
	}
	if resp != nil {
		fmt.Println(resp.String())
	}
	return nil
}

func (e *eventsCmd) Run(_ *context) error {
	client := buildClient(e.API, e.Transport, e.Endpoint, e.Baud, e.Reliable, time.Second)
	if err := client.Open(); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer client.Disconnect()

	for ev := range client.Engine().Events(e.Duration, 0, e.Duration) {
		fmt.Println(ev.String())
	}
	return nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
	)
	err := ctx.Run(&context{})
	if err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimSpace(err.Error()))
	}
	ctx.FatalIfErrorf(err)
}
