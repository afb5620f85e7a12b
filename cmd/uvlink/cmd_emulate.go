package main

import (
	"fmt"

	"github.com/richinsley/uvlink/emulator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a RizomUV emulator for developing against the control protocol",
	Long: `Listens like a RizomUV instance started with "-id <port>" and answers the
control commands without unwrapping anything: Save returns the geometry that
was loaded, Pack only fits the UVs into the unit square. Attach to it with
the --port flag of unwrap, cube or watch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("id")
		srv, err := emulator.Listen(fmt.Sprintf("127.0.0.1:%d", port), emulator.WithLogger(logger.Named("emulator")))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "emulator listening on TCP port %d\n", srv.Port())

		errc := make(chan error, 1)
		go func() { errc <- srv.Serve() }()

		select {
		case <-cmd.Context().Done():
			logger.Info("interrupted")
			srv.Close()
			return nil
		case err := <-errc:
			if err != nil {
				logger.Error("emulator stopped", zap.Error(err))
			}
			return err
		}
	},
}

func init() {
	emulateCmd.Flags().Int("id", 0, "control port (0 picks a free one)")
}
