package uvlink

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transportPair(t *testing.T) (*FrameTransport, *FrameTransport) {
	t.Helper()
	a, b := net.Pipe()
	ta, tb := NewFrameTransport(a), NewFrameTransport(b)
	t.Cleanup(func() {
		ta.Close()
		tb.Close()
	})
	return ta, tb
}

func TestFrameTransportRoundTrip(t *testing.T) {
	client, server := transportPair(t)

	sizes := []int{0, 1, replyFrameSize, replyFrameSize + 1, 200 * 1024}
	go func() {
		for _, n := range sizes {
			if err := client.Send(bytes.Repeat([]byte{byte(n)}, n)); err != nil {
				return
			}
		}
	}()

	for _, n := range sizes {
		got, err := server.Receive()
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{byte(n)}, n), got, "frame of %d bytes", n)
	}
}

func TestFrameTransportMessages(t *testing.T) {
	client, server := transportPair(t)
	codec := MsgpackCodec{}

	req := wireRequest{
		Command:   CmdLoad,
		Data:      Cube().LoadParams(),
		RequestID: "req-1",
	}
	payload, err := codec.Marshal(req)
	require.NoError(t, err)

	go client.Send(payload)

	frame, err := server.Receive()
	require.NoError(t, err)

	var got struct {
		Command   string  `msgpack:"command"`
		RequestID string  `msgpack:"request_id"`
		Data      struct {
			PolySizes []int     `msgpack:"Data.PolySizes"`
			CoordsXYZ []float64 `msgpack:"Data.CoordsXYZ"`
		} `msgpack:"data"`
	}
	require.NoError(t, codec.Unmarshal(frame, &got))
	assert.Equal(t, CmdLoad, got.Command)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, Cube().PolySizes, got.Data.PolySizes)
	assert.Equal(t, Cube().CoordsXYZ, got.Data.CoordsXYZ)
}

type readWriteNopCloser struct {
	io.Reader
	io.Writer
}

func (readWriteNopCloser) Close() error { return nil }

func TestFrameTransportTruncated(t *testing.T) {
	var stream bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 10)
	stream.Write(header[:])
	stream.WriteString("short")

	ft := NewFrameTransport(readWriteNopCloser{Reader: &stream, Writer: io.Discard})
	_, err := ft.Receive()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrameTransportCleanEOF(t *testing.T) {
	ft := NewFrameTransport(readWriteNopCloser{Reader: &bytes.Buffer{}, Writer: io.Discard})
	_, err := ft.Receive()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameTransportOversizedHeader(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)

	ft := NewFrameTransport(readWriteNopCloser{Reader: bytes.NewReader(header[:]), Writer: io.Discard})
	_, err := ft.Receive()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
