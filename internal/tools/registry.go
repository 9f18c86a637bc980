// Package tools defines the external Python tool registry and the runner
// that invokes tools against a project root.
package tools

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pyfix/internal/paths"
)

// Kind classifies what a tool contributes to a pass.
type Kind string

const (
	KindFormatter Kind = "formatter"
	KindLinter    Kind = "linter"
	KindTypecheck Kind = "typecheck"
	KindTest      Kind = "test"
)

// Tool is one external command in the pass pipeline. Every tool carries a
// read-only check-mode argv; tools that can rewrite files carry a second
// fix-mode argv, selected only when the user opts in with --apply-tools.
type Tool struct {
	Name      string   `yaml:"name"`
	Command   string   `yaml:"command"`
	CheckArgs []string `yaml:"checkArgs"`
	FixArgs   []string `yaml:"fixArgs"`
	Kind      Kind     `yaml:"kind"`
	// Diagnostics marks tools whose output is scanned for Python
	// tracebacks. Formatters and linters fix style; they never produce
	// repairable NameError/AttributeError diagnostics.
	Diagnostics bool          `yaml:"diagnostics"`
	Timeout     time.Duration `yaml:"timeout"`
	Disabled    bool          `yaml:"disabled"`
}

// Argv returns the invocation for the requested mode. Tools without a
// distinct fix-mode argv (mypy, pytest) run their check-mode argv either way.
func (t Tool) Argv(fixMode bool) []string {
	if fixMode && len(t.FixArgs) > 0 {
		return t.FixArgs
	}
	return t.CheckArgs
}

// defaultRegistry is the built-in pipeline, in run order: formatters and
// linters first so later diagnostics carry stable line numbers, then the
// diagnostic-bearing type checker and test runner.
func defaultRegistry() []Tool {
	return []Tool{
		{Name: "ruff", Command: "ruff", Kind: KindLinter,
			CheckArgs: []string{"check", "."},
			FixArgs:   []string{"check", "--fix", "."}},
		{Name: "autoflake", Command: "autoflake", Kind: KindLinter,
			CheckArgs: []string{"--check", "--remove-all-unused-imports", "--recursive", "."},
			FixArgs:   []string{"--in-place", "--remove-all-unused-imports", "--recursive", "."}},
		{Name: "isort", Command: "isort", Kind: KindFormatter,
			CheckArgs: []string{"--check-only", "."},
			FixArgs:   []string{"."}},
		{Name: "black", Command: "black", Kind: KindFormatter,
			CheckArgs: []string{"--check", "."},
			FixArgs:   []string{"."}},
		{Name: "mypy", Command: "mypy", Kind: KindTypecheck, Diagnostics: true,
			CheckArgs: []string{"."}},
		{Name: "pytest", Command: "pytest", Kind: KindTest, Diagnostics: true,
			CheckArgs: []string{"-x", "--tb=long"}},
	}
}

// registryFile is the shape of .pyfix/tools.yaml.
type registryFile struct {
	Tools []Tool `yaml:"tools"`
}

// LoadRegistry returns the tool pipeline for a project: the built-in
// registry, overlaid with .pyfix/tools.yaml when present. Overrides replace
// built-in tools by name; unknown names are appended in file order; a
// disabled override removes the tool.
func LoadRegistry(root string) ([]Tool, error) {
	registry := defaultRegistry()

	data, err := os.ReadFile(paths.ToolsPath(root))
	if os.IsNotExist(err) {
		return registry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tools.yaml: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing tools.yaml: %w", err)
	}

	byName := make(map[string]int, len(registry))
	for i, t := range registry {
		byName[t.Name] = i
	}

	for _, override := range file.Tools {
		if override.Name == "" {
			return nil, fmt.Errorf("tools.yaml: tool entry without a name")
		}
		if i, ok := byName[override.Name]; ok {
			if override.Command == "" {
				override.Command = registry[i].Command
			}
			if override.CheckArgs == nil {
				override.CheckArgs = registry[i].CheckArgs
			}
			if override.FixArgs == nil {
				override.FixArgs = registry[i].FixArgs
			}
			if override.Kind == "" {
				override.Kind = registry[i].Kind
			}
			registry[i] = override
		} else {
			if override.Command == "" {
				override.Command = override.Name
			}
			byName[override.Name] = len(registry)
			registry = append(registry, override)
		}
	}

	enabled := registry[:0]
	for _, t := range registry {
		if !t.Disabled {
			enabled = append(enabled, t)
		}
	}
	return enabled, nil
}

// Select filters the registry down to the named tools, preserving registry
// order. Unknown names are reported, not ignored, so a typo in --tools
// fails loudly.
func Select(registry []Tool, names []string) ([]Tool, error) {
	if len(names) == 0 {
		return registry, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var selected []Tool
	for _, t := range registry {
		if wanted[t.Name] {
			selected = append(selected, t)
			delete(wanted, t.Name)
		}
	}
	if len(wanted) > 0 {
		for n := range wanted {
			return nil, fmt.Errorf("unknown tool %q", n)
		}
	}
	return selected, nil
}
