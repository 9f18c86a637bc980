package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// StateDirName is the per-project state directory created under the root.
const StateDirName = ".pyfix"

// StateDir returns the path of the .pyfix directory for a project root.
func StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

// EnsureStateDir creates the .pyfix directory if it does not exist.
func EnsureStateDir(root string) (string, error) {
	dir := StateDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// ConfigPath returns the path of .pyfix/config.json.
func ConfigPath(root string) string {
	return filepath.Join(StateDir(root), "config.json")
}

// ToolsPath returns the path of the optional .pyfix/tools.yaml registry override.
func ToolsPath(root string) string {
	return filepath.Join(StateDir(root), "tools.yaml")
}

// DBPath returns the path of the run-log database.
func DBPath(root string) string {
	return filepath.Join(StateDir(root), "pyfix.db")
}

// LogsDir returns the path of .pyfix/logs.
func LogsDir(root string) string {
	return filepath.Join(StateDir(root), "logs")
}

// EnsureLogsDir creates .pyfix/logs if it does not exist.
func EnsureLogsDir(root string) (string, error) {
	dir := LogsDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// FixLogPath returns the path of the per-run log file.
func FixLogPath(root string) string {
	return filepath.Join(LogsDir(root), "fix.log")
}

// CanonicalizePath converts an absolute path to a root-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to the project root
// - Converts backslashes to forward slashes
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// If the file doesn't exist yet, use the path as-is
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = root
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinRoot checks if a path is within the project root
func IsWithinRoot(path string, root string) bool {
	canonical, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(canonical, "..")
}

// JoinRootPath joins a project root with a canonical forward-slash path
func JoinRootPath(root string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
