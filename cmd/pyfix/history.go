package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pyfix/internal/config"
	"pyfix/internal/storage"
)

var (
	historyPath  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded fix runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyPath, "path", ".", "Project root")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(historyPath)
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

	runs, err := store.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out, err := FormatResponse(&HistoryReport{Runs: runs}, OutputFormat(formatFlag))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
