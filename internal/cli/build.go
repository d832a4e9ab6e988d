package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codegraph/internal/indexer"
)

func newBuildCmd() *cobra.Command {
	var (
		output     string
		save       string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Build the graph of a local directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if output == "" {
				output = cfg.Output
			}

			opts := indexerOptions(cfg)
			if !noProgress {
				opts.OnProgress = newProgress(cmd)
			}
			res, err := indexer.New(nil, opts).Build(cmd.Context(), root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Built %s: %d files, languages %v in %s\n",
				root, res.Files, res.Languages, res.Duration.Round(1e6))

			if save == "-" {
				abs, err := filepath.Abs(root)
				if err != nil {
					return err
				}
				save = filepath.Base(abs)
			}
			return finish(cmd, cfg, res.Graph, output, save)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the graph as JSON to this file")
	cmd.Flags().StringVar(&save, "save", "", "save a snapshot under this name ('-' for the directory name)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the progress bar")

	return cmd
}
