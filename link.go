package uvlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	// DefaultConnectTimeout bounds RunRizomUV and Connect. A cold start of
	// the application, license check included, can take tens of seconds.
	DefaultConnectTimeout = 90 * time.Second

	dialMinBackoff = 100 * time.Millisecond
	dialMaxBackoff = time.Second
)

// Link drives one application instance over its TCP control channel.
//
// Links are independent: several may run side by side, each with its own
// application instance. A Link is safe for concurrent use by multiple
// goroutines; every command carries a request id and responses are routed
// back to the caller that issued it.
//
//	link := uvlink.NewLink(uvlink.WithLogger(logger))
//	port, err := link.RunRizomUV(ctx)
//	err = link.Load(ctx, uvlink.Params{"File.Path": "mesh.obj", "File.XYZUVW": true})
//	err = link.Unfold(ctx, nil)
//	err = link.Quit(ctx, nil)
type Link struct {
	id     string
	opts   linkOptions
	logger *zap.Logger
	codec  Codec

	nextID atomic.Int64

	// mu protects the fields below
	mu     sync.Mutex
	sess   *session
	proc   *Process
	port   int
	closed bool
}

// session is one TCP connection to the application together with the
// requests waiting on it.
type session struct {
	transport Transport

	mu      sync.Mutex
	pending map[string]chan wireResponse

	// done is closed when the read loop stops; err holds the cause
	done chan struct{}
	err  error
}

type wireRequest struct {
	Command   string `msgpack:"command"`
	Data      Params `msgpack:"data"`
	RequestID string `msgpack:"request_id"`
}

type wireResponse struct {
	RequestID string             `msgpack:"request_id"`
	Result    msgpack.RawMessage `msgpack:"result"`
	Error     *LinkError         `msgpack:"error"`
}

// NewLink creates an unconnected Link. Call RunRizomUV to launch an
// application instance, or Connect to attach to one already running.
func NewLink(options ...Option) *Link {
	opts := defaultLinkOptions()
	for _, o := range options {
		o(&opts)
	}
	id := uuid.NewString()
	return &Link{
		id:     id,
		opts:   opts,
		logger: opts.logger.With(zap.String("link", id)),
		codec:  MsgpackCodec{},
	}
}

// ID returns the link's session identifier, used in log entries.
func (l *Link) ID() string {
	return l.id
}

// Version returns the version of this client library.
func (l *Link) Version() string {
	return LinkVersion
}

// Port returns the control channel port, or 0 when not connected.
func (l *Link) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

// Process returns the application process started by RunRizomUV, or nil
// when the link was attached with Connect.
func (l *Link) Process() *Process {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.proc
}

// RunRizomUV resolves the installation, picks a port (the one given with
// WithPort after checking it is free, otherwise the first free port of the
// configured range), launches the application and waits until it answers.
// It returns the port the application listens on.
func (l *Link) RunRizomUV(ctx context.Context) (int, error) {
	if err := l.checkIdle(); err != nil {
		return 0, err
	}

	inst, err := FindInstallation(l.opts.executable)
	if err != nil {
		return 0, err
	}
	if inst.Version.Major != 0 && !inst.Version.Supported() {
		l.logger.Warn("application release older than supported minimum",
			zap.String("version", inst.Version.String()),
			zap.String("minimum", MinimumRizomUVVersion.String()))
	}

	port := l.opts.port
	if port != 0 {
		err = CheckPort(port)
	} else {
		port, err = FreePort(l.opts.portMin, l.opts.portMax)
	}
	if err != nil {
		return 0, err
	}

	proc, err := Launch(ctx, inst.Executable, port, LaunchOptions{
		Args:          l.opts.launchArgs,
		Env:           l.opts.launchEnv,
		Logger:        l.logger,
		GracePeriod:   l.opts.gracePeriod,
		IgnoreSignals: l.opts.ignoreSignals,
	})
	if err != nil {
		return 0, err
	}

	sess, err := l.dialReady(ctx, port, proc)
	if err != nil {
		proc.Terminate()
		return 0, err
	}

	l.mu.Lock()
	l.sess, l.proc, l.port = sess, proc, port
	l.mu.Unlock()
	return port, nil
}

// Connect attaches the link to an application already listening on port,
// retrying until it answers or the connect timeout expires.
func (l *Link) Connect(ctx context.Context, port int) error {
	if err := l.checkIdle(); err != nil {
		return err
	}
	sess, err := l.dialReady(ctx, port, nil)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.sess, l.port = sess, port
	l.mu.Unlock()
	return nil
}

func (l *Link) checkIdle() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.sess != nil {
		return ErrAlreadyConnected
	}
	return nil
}

// dialReady dials until the application accepts the connection and answers
// a version query. A non-nil proc makes the wait fail fast if it exits.
func (l *Link) dialReady(ctx context.Context, port int, proc *Process) (*session, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.connectTimeout)
	defer cancel()

	var exited <-chan struct{}
	if proc != nil {
		exited = proc.Exited()
	}

	addr := loopbackAddr(port)
	var dialer net.Dialer
	backoff := dialMinBackoff
	var lastErr error

	for attempt := 1; ; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			sess := l.startSession(NewFrameTransport(conn))
			var v string
			if err = l.callInto(ctx, sess, CmdVersion, nil, &v); err == nil {
				l.logger.Info("link connected",
					zap.String("addr", addr),
					zap.String("rizomuv", v),
					zap.Int("attempts", attempt))
				return sess, nil
			}
			sess.close()
		}
		lastErr = err
		l.logger.Debug("application not ready", zap.String("addr", addr), zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: waiting for application on %s: %v", ErrTimeout, addr, lastErr)
			}
			return nil, ctx.Err()
		case <-exited:
			return nil, fmt.Errorf("uvlink: application exited before accepting connections: %v", proc.Wait())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > dialMaxBackoff {
			backoff = dialMaxBackoff
		}
	}
}

func (l *Link) startSession(t Transport) *session {
	sess := &session{
		transport: t,
		pending:   make(map[string]chan wireResponse),
		done:      make(chan struct{}),
	}
	go l.readLoop(sess)
	return sess
}

// readLoop routes responses to waiting callers until the connection drops.
func (l *Link) readLoop(sess *session) {
	var err error
	for {
		var frame []byte
		frame, err = sess.transport.Receive()
		if err != nil {
			break
		}

		var resp wireResponse
		if derr := l.codec.Unmarshal(frame, &resp); derr != nil {
			l.logger.Warn("dropping undecodable frame", zap.Int("bytes", len(frame)), zap.Error(derr))
			continue
		}

		sess.mu.Lock()
		ch, ok := sess.pending[resp.RequestID]
		delete(sess.pending, resp.RequestID)
		sess.mu.Unlock()
		if !ok {
			l.logger.Debug("response for unknown request", zap.String("request_id", resp.RequestID))
			continue
		}
		ch <- resp
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		err = ErrClosed
	} else {
		err = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	sess.mu.Lock()
	sess.err = err
	sess.pending = map[string]chan wireResponse{}
	sess.mu.Unlock()
	close(sess.done)
}

func (s *session) close() {
	s.transport.Close()
	<-s.done
}

func (l *Link) generateRequestID() string {
	return fmt.Sprintf("req-%d", l.nextID.Add(1))
}

func (l *Link) current() (*session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.sess == nil {
		return nil, ErrNotConnected
	}
	return l.sess, nil
}

// Execute sends a raw command with its parameter dictionary and returns
// the application's answer. Commands answering with a dictionary yield a
// map; others yield nil or a scalar under the "result" key.
func (l *Link) Execute(ctx context.Context, command string, params Params) (map[string]interface{}, error) {
	var out interface{}
	if err := l.ExecuteInto(ctx, command, params, &out); err != nil {
		return nil, err
	}
	switch v := out.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	default:
		return map[string]interface{}{"result": v}, nil
	}
}

// ExecuteInto sends a raw command and decodes the answer into out, which
// must be a pointer (or nil to discard the answer).
func (l *Link) ExecuteInto(ctx context.Context, command string, params Params, out interface{}) error {
	sess, err := l.current()
	if err != nil {
		return err
	}
	if l.opts.callTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.opts.callTimeout)
			defer cancel()
		}
	}
	return l.callInto(ctx, sess, command, params, out)
}

func (l *Link) callInto(ctx context.Context, sess *session, command string, params Params, out interface{}) error {
	if params == nil {
		params = Params{}
	}
	requestID := l.generateRequestID()
	payload, err := l.codec.Marshal(wireRequest{Command: command, Data: params, RequestID: requestID})
	if err != nil {
		return fmt.Errorf("uvlink: encoding %s: %w", command, err)
	}

	ch := make(chan wireResponse, 1)
	sess.mu.Lock()
	if sess.err != nil {
		err = sess.err
		sess.mu.Unlock()
		return err
	}
	sess.pending[requestID] = ch
	sess.mu.Unlock()

	start := time.Now()
	if err := sess.transport.Send(payload); err != nil {
		sess.forget(requestID)
		return fmt.Errorf("uvlink: sending %s: %w", command, err)
	}

	select {
	case resp := <-ch:
		l.logger.Debug("command done",
			zap.String("command", command),
			zap.String("request_id", requestID),
			zap.Duration("elapsed", time.Since(start)))
		if resp.Error != nil {
			resp.Error.Command = command
			return resp.Error
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := l.codec.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("uvlink: decoding %s result: %w", command, err)
		}
		return nil
	case <-sess.done:
		return sess.err
	case <-ctx.Done():
		sess.forget(requestID)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: waiting for %s", ErrTimeout, command)
		}
		return ctx.Err()
	}
}

func (s *session) forget(requestID string) {
	s.mu.Lock()
	delete(s.pending, requestID)
	s.mu.Unlock()
}

// Close drops the connection and stops an application started by
// RunRizomUV without asking it to quit first. Use Quit for an orderly
// shutdown. Close is idempotent.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	sess, proc := l.sess, l.proc
	l.mu.Unlock()

	if sess != nil {
		sess.close()
	}
	if proc != nil {
		return proc.Terminate()
	}
	return nil
}
