package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codegraph/internal/graph"
)

func newQueryCmd() *cobra.Command {
	var build string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run usage, resource and handler queries on a snapshot",
	}
	cmd.PersistentFlags().StringVar(&build, "build", "", "snapshot to query (default: the only saved one)")

	cmd.AddCommand(newQueryUsageCmd(&build))
	cmd.AddCommand(newQueryResourcesCmd(&build))
	cmd.AddCommand(newQueryHandlersCmd(&build))
	cmd.AddCommand(newQueryNodesCmd(&build))

	return cmd
}

// loadSnapshot loads the snapshot named by build, or the only one.
func loadSnapshot(cmd *cobra.Command, build string) (graph.Graph, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	name, err := resolveBuild(cmd.Context(), store, build)
	if err != nil {
		return nil, err
	}
	g, _, err := store.LoadGraph(cmd.Context(), name, cfg.Kind())
	return g, err
}

func newQueryUsageCmd(build *string) *cobra.Command {
	var indirect bool

	cmd := &cobra.Command{
		Use:   "usage <function> <data-model>",
		Short: "Report whether a function uses a data model",
		Long: `Report whether a function uses a data model directly (it contains the
model) or, with --indirect, through any chain of calls.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadSnapshot(cmd, *build)
			if err != nil {
				return err
			}
			used := graph.DirectUsage(g, args[0], args[1])
			kind := "directly"
			if indirect {
				used = graph.IndirectUsage(g, args[0], args[1])
				kind = "directly or indirectly"
			}
			verb := "does not use"
			if used {
				verb = "uses"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%s)\n", args[0], verb, args[1], kind)
			return nil
		},
	}

	cmd.Flags().BoolVar(&indirect, "indirect", false, "follow calls transitively")

	return cmd
}

func newQueryResourcesCmd(build *string) *cobra.Command {
	var verb string

	cmd := &cobra.Command{
		Use:   "resources <path>",
		Short: "Find endpoints and pages matching a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadSnapshot(cmd, *build)
			if err != nil {
				return err
			}
			nodes := graph.FindResources(g, args[0], strings.ToUpper(verb))
			out := cmd.OutOrStdout()
			if len(nodes) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			fmt.Fprintf(out, "%-10s  %-8s  %-36s  %s\n", "Type", "Verb", "Name", "Location")
			fmt.Fprintf(out, "%-10s  %-8s  %-36s  %s\n", "----------", "--------", "------------------------------------", "--------")
			for _, n := range nodes {
				fmt.Fprintf(out, "%-10s  %-8s  %-36s  %s\n", n.Type, n.Data.MetaValue(graph.MetaVerb), n.Data.Name, location(n.Data))
			}
			fmt.Fprintf(out, "\n%d result(s)\n", len(nodes))
			return nil
		},
	}

	cmd.Flags().StringVar(&verb, "verb", "", "HTTP verb filter (GET, POST, ...)")

	return cmd
}

func newQueryHandlersCmd(build *string) *cobra.Command {
	var verb string

	cmd := &cobra.Command{
		Use:   "handlers <path>",
		Short: "List the handler functions of the endpoints matching a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadSnapshot(cmd, *build)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var count int
			for _, n := range graph.FindResources(g, args[0], strings.ToUpper(verb)) {
				if n.Type != graph.NodeEndpoint {
					continue
				}
				for _, fn := range graph.FindHandlers(g, n.Data) {
					fmt.Fprintf(out, "%s %s -> %s (%s)\n", n.Data.MetaValue(graph.MetaVerb), n.Data.Name, fn.Name, location(fn))
					count++
				}
			}
			if count == 0 {
				fmt.Fprintln(out, "No results found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&verb, "verb", "", "HTTP verb filter (GET, POST, ...)")

	return cmd
}

func newQueryNodesCmd(build *string) *cobra.Command {
	var (
		nodeType string
		name     string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List nodes of a type, optionally by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			if nodeType == "" {
				return fmt.Errorf("--type is required")
			}
			g, err := loadSnapshot(cmd, *build)
			if err != nil {
				return err
			}
			nt := graph.NodeType(nodeType)
			nodes := g.FindNodesByType(nt)
			if name != "" {
				nodes = g.FindNodesByName(nt, name)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(nodes)
			}
			if len(nodes) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for _, nd := range nodes {
				fmt.Fprintf(out, "%-36s  %s\n", nd.Name, location(nd))
			}
			fmt.Fprintf(out, "\n%d result(s)\n", len(nodes))
			return nil
		},
	}

	cmd.Flags().StringVar(&nodeType, "type", "", "node type (e.g. Function, Endpoint, DataModel)")
	cmd.Flags().StringVar(&name, "name", "", "exact node name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func location(nd graph.NodeData) string {
	if nd.File == "" {
		return ""
	}
	if nd.Start > 0 || nd.End > 0 {
		return fmt.Sprintf("%s:%d", nd.File, nd.Start+1) // lines are 0-based
	}
	return nd.File
}
