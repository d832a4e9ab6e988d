// Package cli implements the command-line interface for codegraph.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codegraph",
		Short: "codegraph - source code knowledge graphs",
		Long: `codegraph parses a source tree with tree-sitter and links what it finds
into a typed graph of files, classes, functions, data models, endpoints,
pages, requests and tests.

Commands:
  build      Build the graph of a local directory
  url        Clone a repository (URL, REV env) and build it
  status     Show the counts of a saved snapshot
  query      Run usage, resource and handler queries on a snapshot
  export     Dump a snapshot as JSON lines
  import     Restore a snapshot from JSON lines
  serve      Run the HTTP service
  watch      Rebuild a directory on every change
  mcp        Serve graph queries to MCP clients over stdio
  init       Write a .codegraph.yaml config file
  config     Show the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(cmd.ErrOrStderr(), verbose)
		},
	}

	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .codegraph.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	if err := viper.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		panic(fmt.Sprintf("failed to bind config flag: %v", err))
	}

	rootCmd.AddCommand(
		newBuildCmd(),
		newURLCmd(),
		newStatusCmd(),
		newQueryCmd(),
		newExportCmd(),
		newImportCmd(),
		newServeCmd(),
		newWatchCmd(),
		newMCPCmd(),
		newInitCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setupLogger installs a text handler on w: info by default, debug when
// verbose.
func setupLogger(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if w == nil {
		w = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
