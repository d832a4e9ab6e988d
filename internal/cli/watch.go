package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codegraph/internal/indexer"
)

func newWatchCmd() *cobra.Command {
	var (
		save   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Rebuild a directory on every change",
		Long: `Build a directory, then watch it and rebuild after every batch of
changes. Each build is saved as a snapshot (default: the directory name).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if save == "" {
				abs, err := filepath.Abs(root)
				if err != nil {
					return err
				}
				save = filepath.Base(abs)
			}
			if output == "" {
				output = cfg.Output
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s (snapshot %s, debounce %s)\n", root, save, cfg.Watch.Debounce)
			idx := indexer.New(nil, indexerOptions(cfg))
			err = idx.Watch(ctx, root, cfg.Watch.Debounce, func(res *indexer.Result) error {
				fmt.Fprintf(out, "Rebuilt %d files in %s\n", res.Files, res.Duration.Round(1e6))
				return finish(cmd, cfg, res.Graph, output, save)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\nShutting down...")
			return nil
		},
	}

	cmd.Flags().StringVar(&save, "save", "", "snapshot name (default: directory name)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the graph as JSON to this file")

	return cmd
}
