// Command uvlink launches and drives RizomUV standalone instances from the
// command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richinsley/uvlink"
	"github.com/richinsley/uvlink/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	envFile    string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "uvlink",
	Short: "Drive RizomUV standalone over its TCP control channel",
	Long: `uvlink locates a RizomUV installation, launches it with a free control
port and sends it Load / Unfold / Pack / Save / Quit commands.

Set RIZOMUV_PATH, or "executable" in uvlink.yaml, when the installation
cannot be discovered automatically.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		level := zapcore.InfoLevel
		if cfg.Logging.Level != "" {
			if err := level.Set(cfg.Logging.Level); err != nil {
				return err
			}
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zc.Level = zap.NewAtomicLevelAt(level)
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the link version and, if reachable, the application version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "uvlink %s\n", uvlink.LinkVersion)
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			return nil
		}
		link := newLink()
		if err := link.Connect(cmd.Context(), port); err != nil {
			return err
		}
		defer link.Close()
		v, err := link.RizomUVVersion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "RizomUV %s\n", v)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (default: uvlink.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file (ignored if missing)")

	versionCmd.Flags().Int("port", 0, "also query a running application on this port")

	rootCmd.AddCommand(versionCmd, pathCmd, portCmd, runCmd, unwrapCmd, cubeCmd, batchCmd, watchCmd, emulateCmd)
}

// newLink builds a Link from the loaded configuration. Signals are handled
// by main's context, which leads to Quit, so the link does not forward them.
func newLink(extra ...uvlink.Option) *uvlink.Link {
	opts := append(cfg.LinkOptions(), uvlink.WithLogger(logger), uvlink.WithoutSignalForwarding())
	return uvlink.NewLink(append(opts, extra...)...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
