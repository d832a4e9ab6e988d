package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/imyousuf/codegraph/internal/graph"
)

func newStatusCmd() *cobra.Command {
	var showErrors bool

	cmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show the counts of a saved snapshot",
		Long: `Show node and edge counts per type of a saved snapshot. Without a name,
list every saved snapshot.`,
		Args: cobra.MaximumNArgs(1),
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

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				builds, err := store.ListBuilds(cmd.Context())
				if err != nil {
					return fmt.Errorf("list builds: %w", err)
				}
				if len(builds) == 0 {
					fmt.Fprintln(out, "No saved builds.")
					return nil
				}
				fmt.Fprintln(out, headerStyle.Render("Saved builds"))
				for _, b := range builds {
					fmt.Fprintf(out, "  %s %s\n", labelStyle.Render(b.Name),
						valueStyle.Render(fmt.Sprintf("%d nodes, %d edges, %s, %s",
							b.Nodes, b.Edges, b.Backend, b.Created.Local().Format("2006-01-02 15:04:05"))))
				}
				return nil
			}

			g, info, err := store.LoadGraph(cmd.Context(), args[0], cfg.Kind())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, headerStyle.Render("Graph "+info.Name))
			fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("Build"), valueStyle.Render(info.ID))
			fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("Created"), valueStyle.Render(info.Created.Local().Format("2006-01-02 15:04:05")))
			printStats(out, graph.Summary(g))

			if showErrors {
				for _, msg := range g.Errors() {
					fmt.Fprintf(out, "  %s\n", msg)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showErrors, "errors", false, "list soft errors recorded during the build")

	return cmd
}

func printStats(out io.Writer, stats *graph.Stats) {
	fmt.Fprintf(out, "  %s %d\n", labelStyle.Render("Total nodes"), stats.NodeCount)
	fmt.Fprintf(out, "  %s %d\n", labelStyle.Render("Total edges"), stats.EdgeCount)
	fmt.Fprintf(out, "  %s %d\n\n", labelStyle.Render("Errors"), stats.ErrorCount)

	if len(stats.NodesByType) > 0 {
		fmt.Fprintln(out, sectionStyle.Render("  Nodes by type"))
		for _, nt := range sortedKeys(stats.NodesByType) {
			fmt.Fprintf(out, "    %-20s %d\n", nt, stats.NodesByType[nt])
		}
		fmt.Fprintln(out)
	}
	if len(stats.EdgesByType) > 0 {
		fmt.Fprintln(out, sectionStyle.Render("  Edges by type"))
		for _, et := range sortedKeys(stats.EdgesByType) {
			fmt.Fprintf(out, "    %-20s %d\n", et, stats.EdgesByType[et])
		}
		fmt.Fprintln(out)
	}
}

func sortedKeys[K ~string](m map[K]int) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Style definitions shared by status and config.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	sectionStyle = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().
			Faint(true).
			Width(18)
	valueStyle = lipgloss.NewStyle()
)
