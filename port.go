package uvlink

import (
	"fmt"
	"net"
	"strconv"
)

// Default TCP port range scanned when no port is supplied.
const (
	DefaultPortMin = 5000
	DefaultPortMax = 5999
)

// loopbackHost is where the application listens; the control channel is
// never exposed beyond the local machine.
const loopbackHost = "127.0.0.1"

// FreePort scans [min, max] in ascending order and returns the first port
// that can be bound on the loopback interface. The probe listener is closed
// before returning, so the port is free but not reserved.
func FreePort(min, max int) (int, error) {
	if err := validPortRange(min, max); err != nil {
		return 0, err
	}
	for port := min; port <= max; port++ {
		if portFree(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w: %d-%d", ErrNoFreePort, min, max)
}

// CheckPort accepts a caller-supplied port after checking that it is free.
func CheckPort(port int) error {
	if err := validPortRange(port, port); err != nil {
		return err
	}
	if !portFree(port) {
		return fmt.Errorf("%w: %d", ErrPortInUse, port)
	}
	return nil
}

func validPortRange(min, max int) error {
	if min < 1 || max > 65535 || min > max {
		return fmt.Errorf("uvlink: invalid port range %d-%d", min, max)
	}
	return nil
}

func portFree(port int) bool {
	ln, err := net.Listen("tcp", loopbackAddr(port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

func loopbackAddr(port int) string {
	return net.JoinHostPort(loopbackHost, strconv.Itoa(port))
}
