package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codegraph/internal/graph/embedded"
	"github.com/imyousuf/codegraph/internal/indexer"
	"github.com/imyousuf/codegraph/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		persist bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long: `Run the HTTP service:

  POST /process   {"repo_url", "username", "pat"} clones and builds a repository
  GET  /healthz   liveness
  GET  /metrics   Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			opts := indexerOptions(cfg)
			opts.Logger = log
			srvOpts := server.Options{
				Indexer: indexer.New(nil, opts),
				Logger:  log,
			}
			if persist {
				var store *embedded.Store
				if store, err = openStore(cfg); err != nil {
					return err
				}
				defer store.Close()
				srvOpts.Store = store
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return server.New(srvOpts).Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().BoolVar(&persist, "persist", false, "save a snapshot of every build")

	return cmd
}
