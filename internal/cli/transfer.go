package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Dump a snapshot as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var w io.Writer = cmd.OutOrStdout()
			if file != "" {
				f, err := os.Create(file)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := store.Export(cmd.Context(), args[0], w); err != nil {
				return fmt.Errorf("export %s: %w", args[0], err)
			}
			if file != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", args[0], file)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "write to this file instead of stdout")

	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <name> [file]",
		Short: "Restore a snapshot from JSON lines",
		Long: `Restore a snapshot from a JSON-lines export, read from file or stdin.
An existing snapshot of the same name is replaced.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			r := cmd.InOrStdin()
			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()
				r = f
			}
			info, err := store.Import(cmd.Context(), args[0], r)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d nodes, %d edges\n", info.Name, info.Nodes, info.Edges)
			return nil
		},
	}
	return cmd
}
