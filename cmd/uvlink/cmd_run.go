package main

import (
	"fmt"

	"github.com/richinsley/uvlink"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the RizomUV installation directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, err := uvlink.FindInstallation(cfg.Executable)
		if err != nil {
			return err
		}
		showExe, _ := cmd.Flags().GetBool("executable")
		if showExe {
			fmt.Fprintln(cmd.OutOrStdout(), inst.Executable)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), inst.Dir)
		}
		if inst.Version.Major != 0 {
			logger.Debug("installation found", zap.String("version", inst.Version.String()))
		}
		return nil
	},
}

var portCmd = &cobra.Command{
	Use:   "port",
	Short: "Print the first free control port of the configured range",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := uvlink.FreePort(cfg.Ports.Min, cfg.Ports.Max)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), port)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch RizomUV and keep it running until interrupted",
	Long: `Launches a RizomUV instance listening on a free control port (or --port),
prints the port and waits. Other programs can attach to it with the port.
Ctrl+C sends Quit to the application.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		var extra []uvlink.Option
		if port != 0 {
			extra = append(extra, uvlink.WithPort(port))
		}
		link := newLink(extra...)

		ctx := cmd.Context()
		port, err := link.RunRizomUV(ctx)
		if err != nil {
			return err
		}
		v, err := link.RizomUVVersion(ctx)
		if err != nil {
			link.Close()
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "RizomUV %s is listening on TCP port %d\n", v, port)

		select {
		case <-ctx.Done():
			return link.QuitTimeout(cfgGrace())
		case <-link.Process().Exited():
			return link.Process().Wait()
		}
	},
}

func init() {
	pathCmd.Flags().Bool("executable", false, "print the executable path instead of its directory")
	runCmd.Flags().Int("port", 0, "control port to use instead of scanning")
}
