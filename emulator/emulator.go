// Package emulator provides a stand-in for the RizomUV standalone that
// speaks the uvlink control protocol. It stores the geometry it is given,
// answers Save with it and accepts the editing commands without running any
// unwrapping algorithm. Tests and the "uvlink emulate" command use it to
// exercise links without a licensed installation.
package emulator

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/richinsley/uvlink"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Version is reported by the emulator's Version command.
const Version = "2023.1.0-emulator"

// Server accepts control connections on a TCP listener.
type Server struct {
	ln      net.Listener
	logger  *zap.Logger
	version string
	readyAt time.Time

	mu       sync.Mutex
	mesh     *uvlink.Mesh
	commands []string
	conns    map[net.Conn]struct{}

	wg       sync.WaitGroup
	quit     chan struct{}
	quitOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithVersion overrides the version string reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithStartupDelay makes every command fail with CodeNotReady until d has
// elapsed, like an application still initialising.
func WithStartupDelay(d time.Duration) Option {
	return func(s *Server) { s.readyAt = time.Now().Add(d) }
}

// Listen opens a listener on addr ("127.0.0.1:0" picks a free port).
// Call Serve to start answering.
func Listen(addr string, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:      ln,
		logger:  zap.NewNop(),
		version: Version,
		conns:   make(map[net.Conn]struct{}),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Start listens on addr and serves in the background.
func Start(addr string, opts ...Option) (*Server, error) {
	s, err := Listen(addr, opts...)
	if err != nil {
		return nil, err
	}
	go s.Serve()
	return s, nil
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until Close or a Quit command. It returns nil
// after an orderly stop.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Done is closed once the server has been asked to stop.
func (s *Server) Done() <-chan struct{} {
	return s.quit
}

// Close stops the listener and drops every connection.
func (s *Server) Close() error {
	s.stop()
	s.wg.Wait()
	return nil
}

func (s *Server) stop() {
	s.quitOnce.Do(func() {
		close(s.quit)
		s.ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	})
}

// Commands returns the names of the commands received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Mesh returns a copy of the currently loaded geometry, or nil.
func (s *Server) Mesh() *uvlink.Mesh {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mesh == nil {
		return nil
	}
	return s.mesh.Clone()
}

type request struct {
	Command   string             `msgpack:"command"`
	Data      msgpack.RawMessage `msgpack:"data"`
	RequestID string             `msgpack:"request_id"`
}

type response struct {
	RequestID string            `msgpack:"request_id"`
	Result    interface{}       `msgpack:"result,omitempty"`
	Error     *uvlink.LinkError `msgpack:"error,omitempty"`
}

func (s *Server) serveConn(conn net.Conn) {
	t := uvlink.NewFrameTransport(conn)
	codec := uvlink.MsgpackCodec{}
	defer func() {
		t.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		frame, err := t.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("connection dropped", zap.Error(err))
			}
			return
		}
		var req request
		if err := codec.Unmarshal(frame, &req); err != nil {
			s.logger.Warn("undecodable request", zap.Error(err))
			continue
		}

		result, lerr := s.dispatch(req)
		out, err := codec.Marshal(response{RequestID: req.RequestID, Result: result, Error: lerr})
		if err != nil {
			out, _ = codec.Marshal(response{RequestID: req.RequestID, Error: &uvlink.LinkError{
				Code: uvlink.CodeApplication, Message: err.Error(),
			}})
		}
		if err := t.Send(out); err != nil {
			return
		}
		if req.Command == uvlink.CmdQuit && lerr == nil {
			s.logger.Info("quit requested")
			go s.stop()
			return
		}
	}
}

func (s *Server) dispatch(req request) (interface{}, *uvlink.LinkError) {
	s.mu.Lock()
	s.commands = append(s.commands, req.Command)
	s.mu.Unlock()
	s.logger.Debug("command", zap.String("command", req.Command), zap.String("request_id", req.RequestID))

	if time.Now().Before(s.readyAt) {
		return nil, failure(uvlink.CodeNotReady, "application is initialising")
	}

	switch req.Command {
	case uvlink.CmdVersion:
		return s.version, nil
	case uvlink.CmdLoad:
		return nil, s.load(req.Data)
	case uvlink.CmdUnfold, uvlink.CmdOptimize, uvlink.CmdSelect, uvlink.CmdCut, uvlink.CmdWeld:
		return nil, s.requireMesh()
	case uvlink.CmdPack:
		return nil, s.pack()
	case uvlink.CmdSave:
		return s.save(req.Data)
	case uvlink.CmdQuit:
		return nil, nil
	default:
		return nil, failure(uvlink.CodeUnknownCommand, "unknown command %q", req.Command)
	}
}

func failure(code int, format string, args ...interface{}) *uvlink.LinkError {
	return &uvlink.LinkError{Code: code, Message: fmt.Sprintf(format, args...)}
}

type loadParams struct {
	FilePath   string    `msgpack:"File.Path"`
	PolySizes  []int     `msgpack:"Data.PolySizes"`
	PolyXYZIDs []int     `msgpack:"Data.PolyXYZIDs"`
	CoordsXYZ  []float64 `msgpack:"Data.CoordsXYZ"`
	PolyUVWIDs []int     `msgpack:"Data.PolyUVWIDs"`
	CoordsUVW  []float64 `msgpack:"Data.CoordsUVW"`
}

func (s *Server) load(raw msgpack.RawMessage) *uvlink.LinkError {
	var p loadParams
	if err := msgpack.Unmarshal(raw, &p); err != nil {
		return failure(uvlink.CodeInvalidParams, "Load: %v", err)
	}

	var m *uvlink.Mesh
	switch {
	case p.FilePath != "":
		f, err := os.Open(p.FilePath)
		if err != nil {
			return failure(uvlink.CodeApplication, "Load: %v", err)
		}
		defer f.Close()
		m, err = uvlink.ReadOBJ(f)
		if err != nil {
			return failure(uvlink.CodeApplication, "Load %s: %v", p.FilePath, err)
		}
	case len(p.PolySizes) > 0:
		m = &uvlink.Mesh{
			PolySizes:  p.PolySizes,
			PolyXYZIDs: p.PolyXYZIDs,
			CoordsXYZ:  p.CoordsXYZ,
			PolyUVWIDs: p.PolyUVWIDs,
			CoordsUVW:  p.CoordsUVW,
		}
		if err := m.Validate(); err != nil {
			return failure(uvlink.CodeInvalidParams, "Load: %v", err)
		}
	default:
		return failure(uvlink.CodeInvalidParams, "Load: neither File.Path nor Data arrays given")
	}

	s.mu.Lock()
	s.mesh = m
	s.mu.Unlock()
	return nil
}

func (s *Server) requireMesh() *uvlink.LinkError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mesh == nil {
		return failure(uvlink.CodeApplication, "no mesh loaded")
	}
	return nil
}

// pack scales and translates the UVs so they fit the unit square, keeping
// their aspect ratio. Meshes without UVW get a planar XY projection first.
func (s *Server) pack() *uvlink.LinkError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mesh == nil {
		return failure(uvlink.CodeApplication, "no mesh loaded")
	}
	m := s.mesh
	if !m.HasUVW() {
		m.PolyUVWIDs = append([]int(nil), m.PolyXYZIDs...)
		m.CoordsUVW = make([]float64, len(m.CoordsXYZ))
		for i := 0; i+2 < len(m.CoordsXYZ); i += 3 {
			m.CoordsUVW[i], m.CoordsUVW[i+1] = m.CoordsXYZ[i], m.CoordsXYZ[i+1]
		}
	}

	minU, minV := math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	for i := 0; i+2 < len(m.CoordsUVW); i += 3 {
		minU, maxU = math.Min(minU, m.CoordsUVW[i]), math.Max(maxU, m.CoordsUVW[i])
		minV, maxV = math.Min(minV, m.CoordsUVW[i+1]), math.Max(maxV, m.CoordsUVW[i+1])
	}
	scale := math.Max(maxU-minU, maxV-minV)
	if scale == 0 {
		scale = 1
	}
	for i := 0; i+2 < len(m.CoordsUVW); i += 3 {
		m.CoordsUVW[i] = (m.CoordsUVW[i] - minU) / scale
		m.CoordsUVW[i+1] = (m.CoordsUVW[i+1] - minV) / scale
	}
	return nil
}

type saveParams struct {
	FilePath string `msgpack:"File.Path"`
	Data     bool   `msgpack:"Data"`
}

func (s *Server) save(raw msgpack.RawMessage) (interface{}, *uvlink.LinkError) {
	var p saveParams
	if err := msgpack.Unmarshal(raw, &p); err != nil {
		return nil, failure(uvlink.CodeInvalidParams, "Save: %v", err)
	}
	m := s.Mesh()
	if m == nil {
		return nil, failure(uvlink.CodeApplication, "no mesh loaded")
	}
	if p.FilePath == "" && !p.Data {
		return nil, failure(uvlink.CodeInvalidParams, "Save: neither File.Path nor Data given")
	}

	if p.FilePath != "" {
		f, err := os.Create(p.FilePath)
		if err != nil {
			return nil, failure(uvlink.CodeApplication, "Save: %v", err)
		}
		werr := uvlink.WriteOBJ(f, m)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return nil, failure(uvlink.CodeApplication, "Save %s: %v", p.FilePath, werr)
		}
	}
	if p.Data {
		return map[string]interface{}{"Data": m}, nil
	}
	return nil, nil
}
