package uvlink

import (
	"time"

	"go.uber.org/zap"
)

type linkOptions struct {
	logger         *zap.Logger
	executable     string
	port           int
	portMin        int
	portMax        int
	connectTimeout time.Duration
	callTimeout    time.Duration
	gracePeriod    time.Duration
	launchArgs     []string
	launchEnv      map[string]string
	ignoreSignals  bool
}

func defaultLinkOptions() linkOptions {
	return linkOptions{
		logger:         zap.NewNop(),
		portMin:        DefaultPortMin,
		portMax:        DefaultPortMax,
		connectTimeout: DefaultConnectTimeout,
		gracePeriod:    DefaultGracePeriod,
	}
}

// Option configures a Link.
type Option func(*linkOptions)

// WithLogger sets the logger for the link and the application it launches.
func WithLogger(logger *zap.Logger) Option {
	return func(o *linkOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithExecutable bypasses installation discovery. path may be the
// executable or the directory that holds it.
func WithExecutable(path string) Option {
	return func(o *linkOptions) { o.executable = path }
}

// WithPort makes RunRizomUV use this port instead of scanning. The port
// must be free when RunRizomUV is called.
func WithPort(port int) Option {
	return func(o *linkOptions) { o.port = port }
}

// WithPortRange sets the range scanned by RunRizomUV for a free port.
func WithPortRange(min, max int) Option {
	return func(o *linkOptions) {
		o.portMin, o.portMax = min, max
	}
}

// WithConnectTimeout bounds how long RunRizomUV and Connect wait for the
// application to answer.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *linkOptions) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithCallTimeout bounds each command whose context has no deadline.
// Zero, the default, waits indefinitely: unfolding or packing a heavy
// mesh can take minutes.
func WithCallTimeout(d time.Duration) Option {
	return func(o *linkOptions) { o.callTimeout = d }
}

// WithGracePeriod sets how long the application may take to exit after
// Quit or a stop request before it is killed.
func WithGracePeriod(d time.Duration) Option {
	return func(o *linkOptions) {
		if d > 0 {
			o.gracePeriod = d
		}
	}
}

// WithLaunchArgs appends extra command-line arguments after "-id <port>".
func WithLaunchArgs(args ...string) Option {
	return func(o *linkOptions) { o.launchArgs = append(o.launchArgs, args...) }
}

// WithLaunchEnv adds environment variables for the launched application.
func WithLaunchEnv(env map[string]string) Option {
	return func(o *linkOptions) {
		if o.launchEnv == nil {
			o.launchEnv = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.launchEnv[k] = v
		}
	}
}

// WithoutSignalForwarding keeps SIGINT and SIGTERM received by this process
// from stopping the launched application. The caller is then responsible
// for Quit or Close.
func WithoutSignalForwarding() Option {
	return func(o *linkOptions) { o.ignoreSignals = true }
}
