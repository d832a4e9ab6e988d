package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imyousuf/codegraph/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the effective codegraph configuration: the config file merged with
CODEGRAPH_* environment overrides and defaults.

Use 'config projects' to list the projects registered by 'init' and
'config unregister' to remove one.`,
		Args: cobra.NoArgs,
		RunE: runConfigView,
	}

	cmd.AddCommand(newConfigProjectsCmd(), newConfigUnregisterCmd())

	return cmd
}

func newConfigProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			projects := config.ListProjects()
			if len(projects) == 0 {
				fmt.Fprintln(out, "No registered projects.")
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render("Registered projects"))
			for _, p := range projects {
				fmt.Fprintf(out, "  %s %s\n", labelStyle.Render(p.Name), valueStyle.Render(p.Root+" -> "+p.StorePath))
			}
			return nil
		},
	}
}

func newConfigUnregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister [dir]",
		Short: "Remove a project from the registry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			removed, err := config.UnregisterProject(root)
			if err != nil {
				return fmt.Errorf("unregister project: %w", err)
			}
			if !removed {
				return fmt.Errorf("%s is not registered", root)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unregistered %s\n", root)
			return nil
		},
	}
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)

	fmt.Fprintln(out, headerStyle.Render("codegraph configuration"))
	fmt.Fprintln(out, headerStyle.Render(strings.Repeat("=", 23)))
	fmt.Fprintln(out)

	printSection(out, "Source")
	file := viper.GetString("config_file")
	if file == "" {
		file = "(search .codegraph.yaml)"
	}
	printKV(out, "Config file", file)
	fmt.Fprintln(out)

	printSection(out, "Build")
	printKV(out, "Backend", string(cfg.Kind()))
	workers := strconv.Itoa(cfg.Workers)
	if cfg.Workers == 0 {
		workers = "one per CPU"
	}
	printKV(out, "Workers", workers)
	printKV(out, "Languages", listOrNone(cfg.Languages, "(detect)"))
	printKV(out, "Include", listOrNone(cfg.Include, "(all)"))
	printKV(out, "Exclude", listOrNone(cfg.Exclude, "(none)"))
	printKV(out, "Cache size", strconv.Itoa(cfg.Cache.Size))
	if cfg.Output != "" {
		printKV(out, "Output", cfg.Output)
	}
	fmt.Fprintln(out)

	if len(cfg.Prune) > 0 {
		printSection(out, "Prune rules")
		for _, r := range cfg.Prune {
			rule := fmt.Sprintf("%s -> %s", r.Parent, r.Child)
			if r.ChildMetaKey != "" {
				rule += " without " + r.ChildMetaKey
			}
			fmt.Fprintf(out, "    %s\n", rule)
		}
		fmt.Fprintln(out)
	}

	printSection(out, "Store")
	printKV(out, "Path", storePath(cfg))
	fmt.Fprintln(out)

	printSection(out, "Service")
	printKV(out, "Address", cfg.Server.Addr)
	printKV(out, "Watch debounce", cfg.Watch.Debounce.String())
	fmt.Fprintln(out)

	printSection(out, "Git")
	printKV(out, "Username", orDefault(cfg.Git.Username, "git"))
	printKV(out, "Token", boolYesNo(cfg.Git.Token != ""))
	fmt.Fprintln(out)

	return nil
}

func printSection(out io.Writer, title string) {
	fmt.Fprintf(out, "  %s\n", sectionStyle.Render(title))
}

func printKV(out io.Writer, label, value string) {
	fmt.Fprintf(out, "    %s%s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func listOrNone(items []string, none string) string {
	if len(items) == 0 {
		return none
	}
	return strings.Join(items, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func boolYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
