package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pyfix/internal/config"
	"pyfix/internal/patch"
	"pyfix/internal/storage"
)

var (
	undoPath string
	undoRun  string
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Revert the patches applied by a recorded run",
	Long: `Revert the patches of a run, newest first. Each revert carries the same
freshness guard as apply: a file edited since the fix is left alone and the
patch is reported skipped.`,
	RunE: runUndo,
}

func init() {
	undoCmd.Flags().StringVar(&undoPath, "path", ".", "Project root")
	undoCmd.Flags().StringVar(&undoRun, "run", "", "Run ID to revert (default: most recent)")
	rootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(undoPath)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return err
	}
	logger, closer := newProjectLogger(root, cfg)
	if closer != nil {
		defer closer.Close()
	}

	store, err := storage.Open(root, logger)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	runID := undoRun
	if runID == "" {
		last, err := store.LastRun(ctx)
		if err != nil {
			return err
		}
		if last == nil {
			return fmt.Errorf("no run to undo")
		}
		runID = last.ID
	}

	patches, err := store.AppliedPatches(ctx, runID)
	if err != nil {
		return err
	}

	applier := patch.NewApplier(logger)
	report := &UndoReport{RunID: runID}
	for _, p := range patches {
		result, err := applier.Revert(p)
		if err != nil {
			return fmt.Errorf("reverting %s: %w", p.String(), err)
		}
		switch result.Outcome {
		case patch.OutcomeApplied:
			report.Reverted++
		default:
			report.Skipped++
			logger.Warn("revert skipped",
				slog.String("patch", p.String()),
				slog.String("reason", result.Reason))
		}
	}

	if err := store.MarkUndone(ctx, runID); err != nil {
		return err
	}

	out, err := FormatResponse(report, OutputFormat(formatFlag))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
