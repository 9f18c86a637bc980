package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pyfix/internal/config"
	"pyfix/internal/paths"
	"pyfix/internal/project"
	"pyfix/internal/scope"
	"pyfix/internal/tools"
)

var doctorPath string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment and project setup",
	Long: `Check that the external tools are installed, the project looks like a
Python project, and the configuration is valid. Missing optional pieces are
warnings; fixing still works in degraded mode without them.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorPath, "path", ".", "Project root to check")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(doctorPath)
	if err != nil {
		return err
	}

	report := &DoctorReport{Healthy: true}
	add := func(name, status, message string) {
		report.Checks = append(report.Checks, DoctorCheck{Name: name, Status: status, Message: message})
		if status == "fail" {
			report.Healthy = false
		}
	}

	// Config
	cfg, err := config.LoadConfig(root)
	if err != nil {
		add("config", "fail", err.Error())
		cfg = config.DefaultConfig()
	} else if err := cfg.Validate(); err != nil {
		add("config", "fail", err.Error())
	} else if _, statErr := os.Stat(paths.ConfigPath(root)); statErr != nil {
		add("config", "warn", "no .pyfix/config.json, using defaults (run pyfix init)")
	} else {
		add("config", "pass", "valid")
	}

	// Project shape
	if manifest, ok := project.DetectManifest(root); ok {
		add("project", "pass", fmt.Sprintf("found %s", manifest))
	} else {
		add("project", "warn", "no Python manifest found (pyproject.toml, requirements.txt, ...)")
	}

	// Tools
	registry, err := tools.LoadRegistry(root)
	if err != nil {
		add("tools", "fail", err.Error())
	} else {
		for _, tool := range registry {
			if tools.Available(tool) {
				add("tool:"+tool.Name, "pass", tool.Command+" on PATH")
			} else {
				add("tool:"+tool.Name, "warn", tool.Command+" not found, will be skipped")
			}
		}
	}

	// Scope analysis
	if scope.IsAvailable() {
		add("scope", "pass", "structural analysis available")
	} else {
		add("scope", "warn", "built without cgo, falling back to identifier census")
	}

	// Optional SCIP index
	scipPath := paths.JoinRootPath(root, cfg.Index.ScipPath)
	if _, err := os.Stat(scipPath); err == nil {
		add("index", "pass", "SCIP index present")
	} else if cfg.Index.Enabled {
		add("index", "warn", "no SCIP index at "+cfg.Index.ScipPath)
	}

	out, err := FormatResponse(report, OutputFormat(formatFlag))
	if err != nil {
		return err
	}
	fmt.Println(out)

	if !report.Healthy {
		os.Exit(1)
	}
	return nil
}
