// Package project provides Python project detection and source discovery.
package project

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Manifest files that mark a directory as a Python project, in priority order.
var pythonManifests = []string{
	"pyproject.toml",
	"requirements.txt",
	"setup.py",
	"setup.cfg",
	"Pipfile",
}

// DetectManifest reports the first Python manifest found at the root.
// Returns the manifest name and whether one was found. A missing manifest is
// not fatal for fixing; it only downgrades confidence in the root choice.
func DetectManifest(root string) (string, bool) {
	for _, m := range pythonManifests {
		if _, err := os.Stat(filepath.Join(root, m)); err == nil {
			return m, true
		}
	}
	return "", false
}

// FindPythonFiles walks the root and returns every .py file not under an
// excluded path segment (virtualenvs, caches, dependency dirs). Results are
// sorted for deterministic pass order. Walk errors on individual entries are
// skipped, not fatal.
func FindPythonFiles(root string, exclude []string) ([]string, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, seg := range exclude {
		excluded[seg] = true
	}

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (excluded[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".py") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// PyProject is the subset of pyproject.toml pyfix inspects.
type PyProject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool map[string]interface{} `toml:"tool"`
}

// ConfiguredTools reads pyproject.toml under the root and reports which
// [tool.*] sections the project itself configures (ruff, black, isort,
// mypy, pytest, ...). Absence of the file, or unparseable TOML, yields an
// empty list: this is advisory input for tool selection, never a failure.
func ConfiguredTools(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, "pyproject.toml"))
	if err != nil {
		return nil
	}

	var pp PyProject
	if err := toml.Unmarshal(data, &pp); err != nil {
		return nil
	}

	names := make([]string, 0, len(pp.Tool))
	for name := range pp.Tool {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModuleFile resolves a module import name (e.g. "utils" or "pkg.utils") to
// a source file under the root, best-effort. Used for the module form of
// AttributeError. Returns "" when no plausible file exists.
func ModuleFile(root, module string) string {
	rel := strings.ReplaceAll(module, ".", string(filepath.Separator))

	candidates := []string{
		filepath.Join(root, rel+".py"),
		filepath.Join(root, rel, "__init__.py"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}
