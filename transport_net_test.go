package bgapi_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgapi-go/bgapi"
)

func TestNetTransportWriteRead(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		accepted <- conn
	}()

	transport := bgapi.NewNetTransport("tcp", ln.Addr().String())
	require.NoError(t, transport.Open())
	defer transport.Close()

	server := <-accepted
	defer server.Close()

	require.NoError(t, transport.Write([]byte("hello")))
	buf := make([]byte, 5)
	_, err = server.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))

	_, err = server.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, transport.SetReadTimeout(time.Second))
	got, err := transport.Read(5)
	require.NoError(t, err)
	require.Equal(t, "world", string(got))
}

func TestNetTransportReadTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		accepted <- conn
	}()

	transport := bgapi.NewNetTransport("tcp", ln.Addr().String())
	require.NoError(t, transport.Open())
	defer transport.Close()
	server := <-accepted
	defer server.Close()

	require.NoError(t, transport.SetReadTimeout(20*time.Millisecond))
	_, err = transport.Read(4)
	require.ErrorIs(t, err, bgapi.ErrTransportTimeout)
}

func TestNetTransportCloseUnblocksRead(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		accepted <- conn
	}()

	transport := bgapi.NewNetTransport("tcp", ln.Addr().String())
	require.NoError(t, transport.Open())
	server := <-accepted
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		_, err := transport.Read(4)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, transport.Close())

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after close")
	}
}
