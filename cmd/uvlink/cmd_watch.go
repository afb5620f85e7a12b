package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/richinsley/uvlink"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// meshExtensions are the formats handed to the application by path.
var meshExtensions = map[string]bool{
	".obj": true,
	".fbx": true,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Unwrap every mesh dropped into a directory",
	Long: `Keeps one RizomUV instance running and unwraps each .obj or .fbx file
written into <dir>. Results go to --out (default: <dir>/unwrapped).
Files are picked up once they have been quiet for --settle.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = filepath.Join(dir, "unwrapped")
		}
		settle, _ := cmd.Flags().GetDuration("settle")
		if settle <= 0 {
			settle = 750 * time.Millisecond
		}
		port, _ := cmd.Flags().GetInt("port")

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}

		ctx := cmd.Context()
		link, err := startLink(ctx, port)
		if err != nil {
			return err
		}
		defer finish(link)

		w := &hotFolder{dir: dir, outDir: outDir, settle: settle, link: link}
		return w.run(ctx)
	},
}

func init() {
	watchCmd.Flags().String("out", "", "output directory")
	watchCmd.Flags().Duration("settle", 750*time.Millisecond, "quiet time before a changed file is processed")
	watchCmd.Flags().Int("port", 0, "attach to an application already listening on this port")
}

type hotFolder struct {
	dir    string
	outDir string
	settle time.Duration
	link   *uvlink.Link
}

func (h *hotFolder) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(h.dir); err != nil {
		return fmt.Errorf("watching %s: %w", h.dir, err)
	}
	logger.Info("watching", zap.String("dir", h.dir), zap.String("out", h.outDir))

	// debounce: path -> last write seen
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(h.settle / 2)
	defer ticker.Stop()

	// nil when attached to an instance started elsewhere
	var exited <-chan struct{}
	if p := h.link.Process(); p != nil {
		exited = p.Exited()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-exited:
			return fmt.Errorf("application exited: %v", h.link.Process().Wait())
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && h.accepts(ev.Name) {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < h.settle {
					continue
				}
				delete(pending, path)
				if err := h.process(ctx, path); err != nil {
					if instanceLost(ctx, err) {
						return err
					}
					logger.Error("unwrap failed", zap.String("input", path), zap.Error(err))
				}
			}
		}
	}
}

func (h *hotFolder) accepts(path string) bool {
	if !meshExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	return filepath.Dir(path) == filepath.Clean(h.dir)
}

func (h *hotFolder) process(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		// removed before it settled
		return nil
	}
	job := unwrapJob{
		input:  path,
		output: outputPath(path, h.outDir, cfg.Batch.Suffix),
		pack:   cfg.Batch.Pack,
	}
	return job.run(ctx, h.link)
}
