package uvlink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
)

// DefaultGracePeriod is how long Terminate waits after asking the
// application to stop before killing it.
const DefaultGracePeriod = 5 * time.Second

// LaunchOptions tunes Launch. The zero value is usable.
type LaunchOptions struct {
	// Args are appended after "-id <port>".
	Args []string

	// Env holds additional environment variables for the application.
	Env map[string]string

	// Logger receives the application's stdout and stderr at debug level.
	Logger *zap.Logger

	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration

	// IgnoreSignals leaves the application running when this process gets
	// SIGINT or SIGTERM. Set it when the caller stops the application
	// itself, e.g. with Quit from a signal.NotifyContext handler.
	IgnoreSignals bool
}

// Process is a running application instance started by Launch.
type Process struct {
	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Port is the control channel port passed with "-id".
	Port int

	logger *zap.Logger
	grace  time.Duration
	output []*zapio.Writer

	exited  chan struct{}
	waitErr error

	termOnce sync.Once
	termErr  error
}

// Launch starts the executable asynchronously with "-id <port>". The child
// runs in the executable's directory; the caller's working directory is
// left untouched. ctx only bounds the start itself: the application keeps
// running after ctx is done, until Terminate or a parent signal.
func Launch(ctx context.Context, exePath string, port int, opts LaunchOptions) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	args := append([]string{"-id", strconv.Itoa(port)}, opts.Args...)
	cmd := exec.Command(exePath, args...)
	cmd.Dir = filepath.Dir(exePath)

	cmd.Env = os.Environ()
	for key, value := range opts.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	stdout := &zapio.Writer{Log: logger.With(zap.String("stream", "stdout")), Level: zapcore.DebugLevel}
	stderr := &zapio.Writer{Log: logger.With(zap.String("stream", "stderr")), Level: zapcore.DebugLevel}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureCommand(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("uvlink: starting %s: %w", exePath, err)
	}
	logger.Info("application started",
		zap.String("executable", exePath),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("port", port))

	p := &Process{
		Cmd:    cmd,
		Port:   port,
		logger: logger,
		grace:  grace,
		output: []*zapio.Writer{stdout, stderr},
		exited: make(chan struct{}),
	}

	go p.wait()
	if !opts.IgnoreSignals {
		p.watchSignals()
	}

	return p, nil
}

func (p *Process) wait() {
	err := p.Cmd.Wait()
	for _, w := range p.output {
		w.Close()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
		err = errors.New("uvlink: application was killed")
	}
	p.waitErr = err
	p.logger.Info("application exited", zap.Int("port", p.Port), zap.Error(err))
	close(p.exited)
}

// watchSignals terminates the child when the parent is interrupted. The
// watcher goroutine ends with the child.
func (p *Process) watchSignals() {
	signalChan, stop := notifySignals()
	go func() {
		defer stop()
		select {
		case sig := <-signalChan:
			p.logger.Info("signal received, stopping application", zap.String("signal", sig.String()))
			p.Terminate()
		case <-p.exited:
		}
	}()
}

// Exited is closed once the application has exited.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Wait blocks until the application exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.exited
	return p.waitErr
}

// WaitContext is Wait bounded by ctx.
func (p *Process) WaitContext(ctx context.Context) error {
	select {
	case <-p.exited:
		return p.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the application has not exited yet.
func (p *Process) Running() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Terminate asks the application to stop and kills it if it has not exited
// within the grace period. It returns nil if the application had already
// exited.
func (p *Process) Terminate() error {
	p.termOnce.Do(func() {
		p.termErr = p.terminate()
	})
	return p.termErr
}

func (p *Process) terminate() error {
	if !p.Running() {
		return nil
	}
	if err := interrupt(p.Cmd.Process); err != nil && p.Running() {
		p.logger.Debug("interrupt failed, killing", zap.Error(err))
		return p.kill()
	}

	select {
	case <-p.exited:
		return nil
	case <-time.After(p.grace):
		p.logger.Warn("application ignored stop request, killing", zap.Duration("grace", p.grace))
		return p.kill()
	}
}

func (p *Process) kill() error {
	if err := p.Cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.exited
	return nil
}
