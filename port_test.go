package uvlink

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestCheckPort(t *testing.T) {
	_, port := listenLoopback(t)

	err := CheckPort(port)
	assert.True(t, errors.Is(err, ErrPortInUse), "got %v", err)
}

func TestCheckPortInvalid(t *testing.T) {
	assert.Error(t, CheckPort(0))
	assert.Error(t, CheckPort(70000))
}

func TestFreePortSkipsBound(t *testing.T) {
	_, port := listenLoopback(t)

	_, err := FreePort(port, port)
	assert.ErrorIs(t, err, ErrNoFreePort)
}

func TestFreePortScansAscending(t *testing.T) {
	// find a bound port whose successor is free
	var port int
	for attempt := 0; attempt < 20; attempt++ {
		_, p := listenLoopback(t)
		if p < 65535 && portFree(p+1) {
			port = p
			break
		}
	}
	if port == 0 {
		t.Skip("no bound port with a free successor found")
	}

	got, err := FreePort(port, port+1)
	require.NoError(t, err)
	assert.Equal(t, port+1, got)
}

func TestFreePortReturnsBindablePort(t *testing.T) {
	ln, port := listenLoopback(t)
	ln.Close()

	got, err := FreePort(port, port)
	require.NoError(t, err)
	assert.Equal(t, port, got)

	// the probe must not keep the port
	ln2, err := net.Listen("tcp", loopbackAddr(got))
	require.NoError(t, err)
	ln2.Close()
}

func TestFreePortInvalidRange(t *testing.T) {
	_, err := FreePort(6000, 5000)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoFreePort)
}
