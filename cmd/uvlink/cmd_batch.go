package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/richinsley/uvlink"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var batchCmd = &cobra.Command{
	Use:   "batch <input>...",
	Short: "Unwrap many files across several application instances",
	Long: `Starts --instances RizomUV instances (batch.instances in the config) and
feeds them the input files. Each instance is reused for every file it
receives, so the start-up cost is paid once per instance.

Every instance takes a seat on a floating license.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instances, _ := cmd.Flags().GetInt("instances")
		if instances <= 0 {
			instances = cfg.Batch.Instances
		}
		outDir, _ := cmd.Flags().GetString("out")
		fileless, _ := cmd.Flags().GetBool("fileless")

		jobs := make([]unwrapJob, len(args))
		for i, in := range args {
			jobs[i] = unwrapJob{
				input:    in,
				output:   outputPath(in, outDir, cfg.Batch.Suffix),
				pack:     cfg.Batch.Pack,
				fileless: fileless,
			}
		}

		failed, err := runBatch(cmd.Context(), jobs, instances)
		for _, j := range jobs {
			if ferr, ok := failed[j.input]; ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", j.input, ferr)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), j.output)
			}
		}
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d files failed", len(failed), len(jobs))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().Int("instances", 0, "application instances to run side by side (default: batch.instances)")
	batchCmd.Flags().String("out", "", "output directory (default: next to each input)")
	batchCmd.Flags().Bool("fileless", false, "transfer geometry as arrays instead of file paths")
}

// runBatch distributes jobs over n links. A failing job is recorded and the
// instance moves on; an instance that fails to start or loses its
// connection aborts the whole batch.
func runBatch(ctx context.Context, jobs []unwrapJob, n int) (map[string]error, error) {
	failed := make(map[string]error)
	if len(jobs) == 0 {
		return failed, nil
	}
	if n < 1 {
		n = 1
	}
	if n > len(jobs) {
		n = len(jobs)
	}

	// disjoint port ranges keep concurrent scans from picking the same port
	span := (cfg.Ports.Max - cfg.Ports.Min + 1) / n
	if span < 1 {
		return nil, fmt.Errorf("port range %d-%d too small for %d instances", cfg.Ports.Min, cfg.Ports.Max, n)
	}

	queue := make(chan unwrapJob)
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(queue)
		for _, j := range jobs {
			select {
			case queue <- j:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
		return nil
	})

	for i := 0; i < n; i++ {
		lo := cfg.Ports.Min + i*span
		eg.Go(func() error {
			link := newLink(uvlink.WithPortRange(lo, lo+span-1))
			port, err := link.RunRizomUV(egCtx)
			if err != nil {
				return fmt.Errorf("starting instance: %w", err)
			}
			defer finish(link)
			logger.Info("instance ready", zap.String("link", link.ID()), zap.Int("port", port))

			for j := range queue {
				err := j.run(egCtx, link)
				if err == nil {
					continue
				}
				if instanceLost(egCtx, err) {
					return fmt.Errorf("%s: %w", j.input, err)
				}
				mu.Lock()
				failed[j.input] = err
				mu.Unlock()
			}
			return nil
		})
	}

	err := eg.Wait()
	return failed, err
}

// instanceLost tells a failed file from a dead or stuck instance.
func instanceLost(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, uvlink.ErrClosed) || errors.Is(err, uvlink.ErrTimeout)
}
