package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codegraph/internal/gitutil"
	"github.com/imyousuf/codegraph/internal/indexer"
)

// splitRevs parses the comma-separated REV variable.
func splitRevs(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func newURLCmd() *cobra.Command {
	var (
		output string
		save   string
		keep   bool
	)

	cmd := &cobra.Command{
		Use:   "url",
		Short: "Clone a repository and build it",
		Long: `Clone the repository named by the URL environment variable and build it.

REV optionally lists comma-separated revisions; each is cloned and built on
its own and the graphs are merged with file paths prefixed by revision.
Credentials come from git.username and git.token (CODEGRAPH_GIT_TOKEN).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			url := strings.TrimSpace(os.Getenv("URL"))
			if url == "" {
				return errors.New("URL environment variable is required")
			}
			revs := splitRevs(os.Getenv("REV"))
			if output == "" {
				output = cfg.Output
			}

			work, err := os.MkdirTemp("", "codegraph-*")
			if err != nil {
				return fmt.Errorf("create work dir: %w", err)
			}
			if keep {
				fmt.Fprintf(cmd.OutOrStdout(), "Cloning into %s\n", work)
			} else {
				defer os.RemoveAll(work)
			}

			auth := gitutil.Auth{Username: cfg.Git.Username, Token: cfg.Git.Token}
			checkouts, err := gitutil.Acquire(cmd.Context(), url, revs, auth, work)
			if err != nil {
				return err
			}
			var list []indexer.Revision
			for _, co := range checkouts {
				fmt.Fprintf(cmd.OutOrStdout(), "Checked out %s at %s\n", displayRev(co.Rev), co.Hash)
				list = append(list, indexer.Revision{Name: co.Rev, Dir: co.Dir})
			}

			g, err := indexer.New(nil, indexerOptions(cfg)).BuildRevisions(cmd.Context(), list)
			if err != nil {
				return err
			}
			if save == "-" {
				save = gitutil.RepoName(url)
			}
			return finish(cmd, cfg, g, output, save)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the graph as JSON to this file")
	cmd.Flags().StringVar(&save, "save", "", "save a snapshot under this name ('-' for the repository name)")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep the cloned checkouts")

	return cmd
}

func displayRev(rev string) string {
	if rev == "" {
		return "default branch"
	}
	return rev
}
