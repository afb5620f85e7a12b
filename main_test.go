package uvlink_test

import (
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/richinsley/uvlink/emulator"
	"go.uber.org/goleak"
)

// helperEnv turns the test binary into a stand-in application when set:
// "emulator" serves the control protocol on the "-id" port, "exit" fails
// at once and "hang" never listens.
const helperEnv = "UVLINK_TEST_HELPER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelper(mode, os.Args[1:]))
	}
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("os/signal.signal_recv"))
}

func runHelper(mode string, args []string) int {
	fs := flag.NewFlagSet("rizomuv", flag.ContinueOnError)
	port := fs.Int("id", 0, "control port")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	switch mode {
	case "exit":
		fmt.Fprintln(os.Stderr, "license server unreachable")
		return 3
	case "hang":
		time.Sleep(time.Minute)
		return 0
	}

	srv, err := emulator.Listen(fmt.Sprintf("127.0.0.1:%d", *port), emulator.WithStartupDelay(200*time.Millisecond))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("emulator listening on", srv.Addr())
	if err := srv.Serve(); err != nil {
		return 1
	}
	return 0
}
