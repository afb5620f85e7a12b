package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/richinsley/uvlink"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var unwrapCmd = &cobra.Command{
	Use:   "unwrap <input> [output]",
	Short: "Load a mesh, unfold and pack it, and save the result",
	Long: `Runs the load → unfold → pack → save → quit sequence on one file.
The output defaults to the input name with the configured suffix.

With --fileless the mesh (OBJ only) is parsed locally and sent as arrays,
and the result is fetched as arrays and written locally.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := args[0]
		out := outputPath(in, "", cfg.Batch.Suffix)
		if len(args) == 2 {
			out = args[1]
		}
		fileless, _ := cmd.Flags().GetBool("fileless")
		port, _ := cmd.Flags().GetInt("port")

		ctx := cmd.Context()
		link, err := startLink(ctx, port)
		if err != nil {
			return err
		}
		defer finish(link)

		job := unwrapJob{input: in, output: out, pack: cfg.Batch.Pack, fileless: fileless}
		if err := job.run(ctx, link); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var cubeCmd = &cobra.Command{
	Use:   "cube",
	Short: "Unfold the built-in cube without files and print the new UVs",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		ctx := cmd.Context()
		link, err := startLink(ctx, port)
		if err != nil {
			return err
		}
		defer finish(link)

		if err := link.LoadMesh(ctx, uvlink.Cube(), uvlink.Params{"__Focus": true}); err != nil {
			return err
		}
		if err := link.Unfold(ctx, nil); err != nil {
			return err
		}
		m, err := link.SaveMesh(ctx)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "PolySizes: ", m.PolySizes)
		fmt.Fprintln(w, "PolyUVWIDs:", m.PolyUVWIDs)
		fmt.Fprintln(w, "CoordsUVW: ", m.CoordsUVW)
		return nil
	},
}

func init() {
	unwrapCmd.Flags().Bool("fileless", false, "transfer geometry as arrays instead of file paths")
	for _, c := range []*cobra.Command{unwrapCmd, cubeCmd} {
		c.Flags().Int("port", 0, "attach to an application already listening on this port")
	}
}

// startLink attaches to port when non-zero, otherwise launches an instance.
func startLink(ctx context.Context, port int) (*uvlink.Link, error) {
	link := newLink()
	if port != 0 {
		return link, link.Connect(ctx, port)
	}
	if _, err := link.RunRizomUV(ctx); err != nil {
		return nil, err
	}
	return link, nil
}

// unwrapJob is one input file processed on a connected link.
type unwrapJob struct {
	input    string
	output   string
	pack     bool
	fileless bool
}

func (j unwrapJob) run(ctx context.Context, link *uvlink.Link) error {
	start := time.Now()
	log := logger.With(zap.String("input", j.input), zap.String("link", link.ID()))

	in, err := filepath.Abs(j.input)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(j.output)
	if err != nil {
		return err
	}

	if j.fileless {
		m, err := readOBJFile(in)
		if err != nil {
			return err
		}
		if err := link.LoadMesh(ctx, m, uvlink.Params{"__Focus": true}); err != nil {
			return err
		}
	} else {
		err := link.Load(ctx, uvlink.Params{
			"File.Path":         in,
			"File.XYZUVW":       true,
			"File.UVWProps":     true,
			"File.ImportGroups": true,
			"__Focus":           true,
		})
		if err != nil {
			return err
		}
	}

	if err := link.Unfold(ctx, nil); err != nil {
		return err
	}
	if j.pack {
		if err := link.Pack(ctx, uvlink.Params{"Translate": true}); err != nil {
			return err
		}
	}

	if j.fileless {
		m, err := link.SaveMesh(ctx)
		if err != nil {
			return err
		}
		if err := writeOBJFile(out, m); err != nil {
			return err
		}
	} else if _, err := link.Save(ctx, uvlink.Params{"File.Path": out}); err != nil {
		return err
	}

	log.Info("unwrapped", zap.String("output", out), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func readOBJFile(path string) (*uvlink.Mesh, error) {
	if !strings.EqualFold(filepath.Ext(path), ".obj") {
		return nil, fmt.Errorf("%s: fileless transfer reads .obj files only", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := uvlink.ReadOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func writeOBJFile(path string, m *uvlink.Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := uvlink.WriteOBJ(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// outputPath places "<name><suffix><ext>" in dir, or next to the input
// when dir is empty.
func outputPath(input, dir, suffix string) string {
	ext := filepath.Ext(input)
	name := strings.TrimSuffix(filepath.Base(input), ext) + suffix + ext
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, name)
}

// finish quits an instance this process launched and only detaches from
// one it attached to.
func finish(link *uvlink.Link) {
	var err error
	if link.Process() != nil {
		err = link.QuitTimeout(cfgGrace())
	} else {
		err = link.Close()
	}
	if err != nil {
		logger.Warn("stopping link", zap.String("link", link.ID()), zap.Error(err))
	}
}

func cfgGrace() time.Duration {
	d, err := time.ParseDuration(cfg.GracePeriod)
	if err != nil || d <= 0 {
		d = uvlink.DefaultGracePeriod
	}
	// room for the Quit round trip on top of the wait
	return d + 5*time.Second
}
