package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pyfix/internal/config"
	"pyfix/internal/paths"
)

var (
	initPath  string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .pyfix state directory with a default configuration",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initPath, "path", "", "Project root to initialize (required)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(initPath)
	if err != nil {
		return err
	}

	cfgPath := paths.ConfigPath(root)
	if _, err := os.Stat(cfgPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}

	if err := config.DefaultConfig().Save(root); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if _, err := paths.EnsureLogsDir(root); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}

	fmt.Printf("initialized %s\n", paths.StateDir(root))
	return nil
}
