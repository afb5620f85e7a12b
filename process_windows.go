//go:build windows

package uvlink

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/windows"
)

func notifySignals() (<-chan os.Signal, func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	return c, func() { signal.Stop(c) }
}

// interrupt has no graceful form for a GUI process on Windows; the
// application is expected to have been sent Quit over the link first.
func interrupt(p *os.Process) error {
	return p.Kill()
}

// configureCommand detaches the application from the parent's console so a
// Ctrl+C in the terminal reaches the parent only.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}
