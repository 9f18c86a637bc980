package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pyfix/internal/config"
	"pyfix/internal/errors"
	"pyfix/internal/paths"
	"pyfix/internal/slogutil"
	"pyfix/internal/version"
)

var (
	verbosity  int
	quietFlag  bool
	formatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "pyfix",
	Short: "pyfix - heuristic auto-repair for Python projects",
	Long: `pyfix orchestrates external Python linters, formatters and test runners
over a source tree, parses NameError and AttributeError diagnostics out of
their output, and repairs likely typos by textual similarity against the
identifiers actually in scope. Dry-run by default; nothing is written
without --yes.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("pyfix version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"Increase console log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false,
		"Suppress console logs")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "human",
		"Output format (json, human)")
}

// resolveRoot validates a --path argument: it must name an existing
// directory. Returned absolute, so every later path join is unambiguous.
func resolveRoot(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.InvalidPath, "--path is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.New(errors.InvalidPath, fmt.Sprintf("resolving %s", path), err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.New(errors.InvalidPath, fmt.Sprintf("%s does not exist", path), err)
	}
	if !info.IsDir() {
		return "", errors.New(errors.InvalidPath, fmt.Sprintf("%s is not a directory", path), nil)
	}
	return abs, nil
}

// newProjectLogger builds the run logger: console at the CLI verbosity,
// tee'd with a rotating .pyfix/logs/fix.log at the configured level. Falls
// back to console-only when the log file cannot be opened.
func newProjectLogger(root string, cfg *config.Config) (*slog.Logger, io.Closer) {
	consoleLevel := slogutil.LevelFromVerbosity(verbosity, quietFlag)
	console := slogutil.NewHandler(os.Stderr, &slog.HandlerOptions{Level: consoleLevel})

	if _, err := paths.EnsureLogsDir(root); err != nil {
		return slog.New(console), nil
	}
	file, err := slogutil.OpenRotatingFile(paths.FixLogPath(root),
		slogutil.ParseSize(cfg.Logging.MaxSize), cfg.Logging.MaxBackups)
	if err != nil {
		return slog.New(console), nil
	}

	fileHandler := slogutil.NewHandler(file, &slog.HandlerOptions{
		Level: slogutil.LevelFromString(cfg.Logging.Level),
	})
	return slogutil.NewTeeLogger(console, fileHandler), file
}
