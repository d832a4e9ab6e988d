package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/imyousuf/codegraph/internal/config"
	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/indexer"
	"github.com/imyousuf/codegraph/internal/parser"
)

// allLanguages is the user-facing list of supported languages.
var allLanguages = []parser.Language{
	parser.LangGo, parser.LangPython, parser.LangRuby, parser.LangTypeScript, parser.LangReact, parser.LangSwift,
}

// detectLanguages reports the languages found under root, using the same
// discovery rules as a build.
func detectLanguages(root string) []parser.Language {
	files, err := indexer.Discover(root, nil, nil)
	if err != nil {
		return nil
	}
	return parser.DetectLanguages(files, func(rel string) ([]byte, error) {
		return os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	})
}

func newInitCmd() *cobra.Command {
	var (
		yes   bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a .codegraph.yaml config file",
		Long: `Initialize codegraph in the current directory.

Writes .codegraph.yaml and registers the project in ~/.codegraph.conf so
commands run from any subdirectory find its snapshot store. Without --yes
an interactive wizard asks for the settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			path := config.FileName(cwd)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}

			cfg := config.Default()
			if !yes {
				if err := runWizard(cfg, detectLanguages(cwd)); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := config.WriteConfig(cfg, path); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", path)

			store := cfg.Store.Path
			if !filepath.IsAbs(store) {
				store = filepath.Join(cwd, store)
			}
			if err := config.RegisterProject("", cwd, store); err != nil {
				fmt.Fprintf(out, "Warning: could not register project: %v\n", err)
			} else {
				fmt.Fprintf(out, "Registered %s in %s\n", filepath.Base(cwd), config.RegistryPath())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept defaults without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

// runWizard asks for the settings, starting from cfg, and stores the
// answers back into cfg.
func runWizard(cfg *config.Config, detected []parser.Language) error {
	detectedSet := make(map[parser.Language]bool, len(detected))
	for _, l := range detected {
		detectedSet[l] = true
	}

	// Build language options with detected ones pre-selected
	langOptions := make([]huh.Option[string], len(allLanguages))
	for i, lang := range allLanguages {
		opt := huh.NewOption(string(lang), string(lang))
		if detectedSet[lang] {
			opt = opt.Selected(true)
		}
		langOptions[i] = opt
	}

	var (
		backend   = cfg.Backend
		languages []string
		storePath = cfg.Store.Path
		workers   = strconv.Itoa(cfg.Workers)
		debounce  = cfg.Watch.Debounce.String()
		confirm   = true
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Graph backend").
				Description("array keeps copies; indexed keeps handles and ordered indexes").
				Options(
					huh.NewOption("Array", string(graph.KindArray)),
					huh.NewOption("Indexed", string(graph.KindIndexed)),
				).
				Value(&backend),
			huh.NewMultiSelect[string]().
				Title("Languages").
				Description("Leave empty to detect on every build").
				Options(langOptions...).
				Value(&languages),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Snapshot store path").
				Value(&storePath).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("path is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Extraction workers (0 = one per CPU)").
				Value(&workers).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 0 {
						return fmt.Errorf("enter a non-negative number")
					}
					return nil
				}),
			huh.NewInput().
				Title("Watch debounce").
				Value(&debounce).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write .codegraph.yaml?").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("init wizard: %w", err)
	}
	if !confirm {
		return fmt.Errorf("aborted")
	}

	cfg.Backend = backend
	cfg.Languages = languages
	cfg.Store.Path = storePath
	cfg.Workers, _ = strconv.Atoi(workers)
	cfg.Watch.Debounce, _ = time.ParseDuration(debounce)
	return nil
}
