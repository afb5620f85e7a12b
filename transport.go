package uvlink

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize bounds a single frame. Dense meshes travel as one frame, so
// the limit is generous; it only guards against a corrupt length prefix.
const MaxFrameSize = 1 << 30

// Codec defines the interface for message encoding and decoding.
// The default implementation uses MessagePack.
type Codec interface {
	// Marshal encodes a Go value to bytes.
	Marshal(v interface{}) ([]byte, error)

	// Unmarshal decodes bytes into a Go value.
	Unmarshal(data []byte, v interface{}) error
}

// Transport defines the interface for sending and receiving framed messages.
type Transport interface {
	// Send transmits one message to the remote endpoint.
	Send(data []byte) error

	// Receive reads one complete message from the remote endpoint.
	Receive() ([]byte, error)

	// Close releases transport resources and closes the underlying connection.
	Close() error

	// Flush ensures any buffered data is sent immediately.
	Flush() error
}

// MsgpackCodec is the Codec used on the control channel.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackCodec) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// FrameTransport sends length-prefixed frames (4-byte big-endian length,
// then payload) over a byte stream, typically a TCP connection.
//
// Send and Receive may be called from different goroutines; concurrent
// Sends are serialized internally.
type FrameTransport struct {
	conn   io.ReadWriteCloser
	reader *bufio.Reader

	wmu    sync.Mutex
	writer *bufio.Writer

	frames *framePool
}

// NewFrameTransport wraps conn. The transport owns conn and closes it on Close.
func NewFrameTransport(conn io.ReadWriteCloser) *FrameTransport {
	return &FrameTransport{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 64*1024),
		writer: bufio.NewWriterSize(conn, 64*1024),
		frames: newFramePool(8),
	}
}

func (ft *FrameTransport) Send(data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("uvlink: frame of %d bytes exceeds limit", len(data))
	}

	var lengthBytes [4]byte
	binary.BigEndian.PutUint32(lengthBytes[:], uint32(len(data)))

	ft.wmu.Lock()
	defer ft.wmu.Unlock()

	if _, err := ft.writer.Write(lengthBytes[:]); err != nil {
		return err
	}
	if _, err := ft.writer.Write(data); err != nil {
		return err
	}
	return ft.writer.Flush()
}

func (ft *FrameTransport) Receive() ([]byte, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(ft.reader, lengthBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("uvlink: incoming frame of %d bytes exceeds limit", length)
	}

	buf, pooled := ft.frames.borrow(int(length))
	if _, err := io.ReadFull(ft.reader, buf); err != nil {
		if pooled {
			ft.frames.giveBack(buf)
		}
		return nil, unexpected(err)
	}
	if !pooled {
		return buf, nil
	}

	frame := make([]byte, len(buf))
	copy(frame, buf)
	ft.frames.giveBack(buf)
	return frame, nil
}

func (ft *FrameTransport) Close() error {
	return ft.conn.Close()
}

func (ft *FrameTransport) Flush() error {
	ft.wmu.Lock()
	defer ft.wmu.Unlock()
	return ft.writer.Flush()
}

// RemoteAddr returns the peer address when the transport runs over a net.Conn.
func (ft *FrameTransport) RemoteAddr() net.Addr {
	if c, ok := ft.conn.(net.Conn); ok {
		return c.RemoteAddr()
	}
	return nil
}

// a stream ending inside a frame is truncation, not a clean close
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
