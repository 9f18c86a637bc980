package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pyfix/internal/config"
	"pyfix/internal/engine"
	"pyfix/internal/storage"
	"pyfix/internal/tools"
)

var (
	fixPath       string
	fixTools      []string
	fixApplyTools bool
	fixYes        bool
	fixMaxPasses  int
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Run the tool pipeline and repair typo diagnostics",
	Long: `Run the configured external tools against the project, parse NameError
and AttributeError diagnostics out of their output, and repair likely typos
by similarity against identifiers in scope.

Without --yes this is a dry run: every patch is computed and reported but no
file is written. Tools likewise run in check mode unless --apply-tools lets
them rewrite files themselves.`,
	RunE: runFix,
}

func init() {
	fixCmd.Flags().StringVar(&fixPath, "path", "", "Project root to fix (required)")
	fixCmd.Flags().StringSliceVar(&fixTools, "tools", nil,
		"Restrict the pipeline to these tools, comma-separated")
	fixCmd.Flags().BoolVar(&fixApplyTools, "apply-tools", false,
		"Run tools in fix mode so linters and formatters rewrite files")
	fixCmd.Flags().BoolVar(&fixYes, "yes", false, "Apply patches (default is dry-run)")
	fixCmd.Flags().IntVar(&fixMaxPasses, "max-passes", 0, "Override the configured pass bound")
	rootCmd.AddCommand(fixCmd)
}

func runFix(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(fixPath)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer := newProjectLogger(root, cfg)
	if closer != nil {
		defer closer.Close()
	}

	registry, err := tools.LoadRegistry(root)
	if err != nil {
		return err
	}

	// History is best-effort: a broken database must not block fixing.
	store, err := storage.Open(root, logger)
	if err != nil {
		logger.Warn("run history unavailable", slog.String("error", err.Error()))
		store = nil
	} else {
		defer store.Close()
	}

	e := engine.New(cfg, registry, tools.NewRunner(logger), store, logger)
	summary, err := e.Fix(cmd.Context(), engine.Options{
		Root:       root,
		Tools:      fixTools,
		ApplyTools: fixApplyTools,
		Yes:        fixYes,
		MaxPasses:  fixMaxPasses,
	})
	if err != nil {
		return err
	}

	out, err := FormatResponse(summary, OutputFormat(formatFlag))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
