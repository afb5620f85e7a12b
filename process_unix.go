//go:build !windows

package uvlink

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// notifySignals delivers SIGINT and SIGTERM; stop releases the channel.
func notifySignals() (<-chan os.Signal, func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c, func() { signal.Stop(c) }
}

// interrupt asks the process to exit gracefully.
func interrupt(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

func configureCommand(cmd *exec.Cmd) {}
