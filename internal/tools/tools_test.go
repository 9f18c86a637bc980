package tools

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	goerrors "errors"

	"pyfix/internal/errors"
	"pyfix/internal/paths"
	"pyfix/internal/slogutil"
)

func TestLoadRegistryDefaults(t *testing.T) {
	registry, err := LoadRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}

	names := make([]string, len(registry))
	diagnostic := map[string]bool{}
	for i, tool := range registry {
		names[i] = tool.Name
		diagnostic[tool.Name] = tool.Diagnostics
	}

	want := []string{"ruff", "autoflake", "isort", "black", "mypy", "pytest"}
	if len(names) != len(want) {
		t.Fatalf("registry = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("registry[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	if !diagnostic["pytest"] || !diagnostic["mypy"] {
		t.Error("pytest and mypy must be diagnostic-bearing")
	}
	if diagnostic["black"] || diagnostic["ruff"] {
		t.Error("formatters and linters must not be diagnostic-bearing")
	}
}

func TestDefaultRegistryCheckModeIsReadOnly(t *testing.T) {
	registry, err := LoadRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}

	// Check-mode argv must never carry a write flag; those belong to the
	// fix-mode argv selected by --apply-tools.
	writeFlags := map[string]bool{"--fix": true, "--in-place": true}
	for _, tool := range registry {
		for _, arg := range tool.Argv(false) {
			if writeFlags[arg] {
				t.Errorf("%s check argv carries write flag %s: %v", tool.Name, arg, tool.Argv(false))
			}
		}
	}

	wantCheck := map[string][]string{
		"ruff":      {"check", "."},
		"autoflake": {"--check", "--remove-all-unused-imports", "--recursive", "."},
		"isort":     {"--check-only", "."},
		"black":     {"--check", "."},
	}
	wantFix := map[string][]string{
		"ruff":  {"check", "--fix", "."},
		"black": {"."},
	}
	byName := map[string]Tool{}
	for _, tool := range registry {
		byName[tool.Name] = tool
	}
	for name, want := range wantCheck {
		if got := byName[name].Argv(false); strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("%s check argv = %v, want %v", name, got, want)
		}
	}
	for name, want := range wantFix {
		if got := byName[name].Argv(true); strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("%s fix argv = %v, want %v", name, got, want)
		}
	}
}

func TestToolArgvFallsBackToCheckArgs(t *testing.T) {
	pt := Tool{Name: "pytest", CheckArgs: []string{"-x", "--tb=long"}}
	if got := pt.Argv(true); len(got) != 2 || got[0] != "-x" {
		t.Errorf("tool without fix argv must reuse check argv, got %v", got)
	}

	rf := Tool{Name: "ruff", CheckArgs: []string{"check", "."}, FixArgs: []string{"check", "--fix", "."}}
	if got := rf.Argv(true); len(got) != 3 || got[1] != "--fix" {
		t.Errorf("fix argv not selected: %v", got)
	}
	if got := rf.Argv(false); len(got) != 2 {
		t.Errorf("check argv not selected: %v", got)
	}
}

func writeToolsYAML(t *testing.T, root, content string) {
	t.Helper()
	if _, err := paths.EnsureStateDir(root); err != nil {
		t.Fatalf("state dir: %v", err)
	}
	if err := os.WriteFile(paths.ToolsPath(root), []byte(content), 0644); err != nil {
		t.Fatalf("writing tools.yaml: %v", err)
	}
}

func TestLoadRegistryOverrides(t *testing.T) {
	root := t.TempDir()
	writeToolsYAML(t, root, `
tools:
  - name: pytest
    checkArgs: ["-q", "--tb=long", "tests/"]
    diagnostics: true
  - name: ruff
    checkArgs: ["check", "src/"]
  - name: black
    disabled: true
  - name: flake8
    kind: linter
`)

	registry, err := LoadRegistry(root)
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}

	byName := map[string]Tool{}
	for _, tool := range registry {
		byName[tool.Name] = tool
	}

	if _, ok := byName["black"]; ok {
		t.Error("disabled tool should be removed")
	}

	pt, ok := byName["pytest"]
	if !ok {
		t.Fatal("pytest missing")
	}
	if len(pt.CheckArgs) != 3 || pt.CheckArgs[0] != "-q" {
		t.Errorf("pytest args not overridden: %v", pt.CheckArgs)
	}
	if pt.Command != "pytest" {
		t.Errorf("override without command should inherit built-in, got %q", pt.Command)
	}

	rf := byName["ruff"]
	if len(rf.CheckArgs) != 2 || rf.CheckArgs[1] != "src/" {
		t.Errorf("ruff check argv not overridden: %v", rf.CheckArgs)
	}
	if len(rf.FixArgs) != 3 || rf.FixArgs[1] != "--fix" {
		t.Errorf("override of check argv must inherit built-in fix argv: %v", rf.FixArgs)
	}

	fl, ok := byName["flake8"]
	if !ok {
		t.Fatal("appended tool missing")
	}
	if fl.Command != "flake8" {
		t.Errorf("new tool command should default to its name, got %q", fl.Command)
	}
}

func TestLoadRegistryRejectsNamelessEntry(t *testing.T) {
	root := t.TempDir()
	writeToolsYAML(t, root, "tools:\n  - command: mystery\n")
	if _, err := LoadRegistry(root); err == nil {
		t.Error("expected error for nameless tool entry")
	}
}

func TestLoadRegistryRejectsBadYAML(t *testing.T) {
	root := t.TempDir()
	writeToolsYAML(t, root, "tools: [unclosed\n")
	if _, err := LoadRegistry(root); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestSelect(t *testing.T) {
	registry, err := LoadRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}

	selected, err := Select(registry, []string{"pytest", "ruff"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	// Registry order wins over request order.
	if len(selected) != 2 || selected[0].Name != "ruff" || selected[1].Name != "pytest" {
		t.Errorf("selected = %+v", selected)
	}

	if _, err := Select(registry, []string{"pytset"}); err == nil {
		t.Error("expected error for unknown tool name")
	}

	all, err := Select(registry, nil)
	if err != nil || len(all) != len(registry) {
		t.Errorf("empty selection should return the full registry")
	}
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunnerCapturesOutputAndExitCode(t *testing.T) {
	requireUnix(t)
	r := NewRunner(slogutil.NewDiscardLogger())

	res, err := r.Run(context.Background(), t.TempDir(), Tool{
		Name:      "fake",
		Command:   "sh",
		CheckArgs: []string{"-c", "echo out; echo err >&2; exit 3"},
	}, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Stdout != "out\n" || res.Stderr != "err\n" {
		t.Errorf("stdout = %q, stderr = %q", res.Stdout, res.Stderr)
	}
	if res.Output() == "" {
		t.Error("combined output empty")
	}
}

func TestRunnerSelectsArgvByMode(t *testing.T) {
	requireUnix(t)
	r := NewRunner(slogutil.NewDiscardLogger())
	tool := Tool{
		Name:      "fake",
		Command:   "sh",
		CheckArgs: []string{"-c", "exit 0"},
		FixArgs:   []string{"-c", "exit 7"},
	}

	res, err := r.Run(context.Background(), t.TempDir(), tool, false)
	if err != nil || res.ExitCode != 0 {
		t.Errorf("check mode: exit = %d, err = %v, want 0/nil", res.ExitCode, err)
	}

	res, err = r.Run(context.Background(), t.TempDir(), tool, true)
	if err != nil || res.ExitCode != 7 {
		t.Errorf("fix mode: exit = %d, err = %v, want 7/nil", res.ExitCode, err)
	}
}

func TestRunnerRunsInProjectRoot(t *testing.T) {
	requireUnix(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "marker.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("writing marker: %v", err)
	}

	r := NewRunner(slogutil.NewDiscardLogger())
	res, err := r.Run(context.Background(), root, Tool{
		Name:      "fake",
		Command:   "sh",
		CheckArgs: []string{"-c", "test -f marker.txt"},
	}, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Error("tool did not run in the project root")
	}
}

func TestRunnerToolNotFound(t *testing.T) {
	r := NewRunner(slogutil.NewDiscardLogger())
	_, err := r.Run(context.Background(), t.TempDir(), Tool{
		Name:    "ghost",
		Command: "definitely-not-a-real-tool-xyz",
	}, false)
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *errors.FixError
	if !goerrors.As(err, &fe) || fe.Code != errors.ToolNotFound {
		t.Errorf("error = %v, want TOOL_NOT_FOUND", err)
	}
}

func TestRunnerTimeout(t *testing.T) {
	requireUnix(t)
	r := NewRunner(slogutil.NewDiscardLogger())

	_, err := r.Run(context.Background(), t.TempDir(), Tool{
		Name:      "slow",
		Command:   "sh",
		CheckArgs: []string{"-c", "sleep 5"},
		Timeout:   50 * time.Millisecond,
	}, false)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var fe *errors.FixError
	if !goerrors.As(err, &fe) || fe.Code != errors.ToolFailure {
		t.Errorf("error = %v, want TOOL_FAILURE", err)
	}
}

func TestAvailable(t *testing.T) {
	if Available(Tool{Command: "definitely-not-a-real-tool-xyz"}) {
		t.Error("ghost tool should not be available")
	}
	requireUnix(t)
	if !Available(Tool{Command: "sh"}) {
		t.Error("sh should be available")
	}
}
