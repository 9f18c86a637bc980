package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"pyfix/internal/config"
	"pyfix/internal/errors"
	"pyfix/internal/patch"
	"pyfix/internal/slogutil"
	"pyfix/internal/tools"
)

// fakeRunner replays canned tool output, optionally only on the first pass.
// It records the argv each tool would have been launched with.
type fakeRunner struct {
	outputs   map[string]string
	errs      map[string]error
	firstOnly bool
	calls     map[string]int
	argv      map[string][]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: map[string]string{},
		errs:    map[string]error{},
		calls:   map[string]int{},
		argv:    map[string][]string{},
	}
}

func (f *fakeRunner) Run(ctx context.Context, root string, tool tools.Tool, fixMode bool) (tools.Result, error) {
	f.calls[tool.Name]++
	f.argv[tool.Name] = tool.Argv(fixMode)
	if err := f.errs[tool.Name]; err != nil {
		return tools.Result{}, err
	}
	out := f.outputs[tool.Name]
	if f.firstOnly && f.calls[tool.Name] > 1 {
		out = ""
	}
	return tools.Result{Tool: tool.Name, ExitCode: 1, Stdout: out}, nil
}

func testRegistry() []tools.Tool {
	return []tools.Tool{
		{Name: "pytest", Command: "pytest", Kind: tools.KindTest, Diagnostics: true},
	}
}

func newEngine(r tools.Runner) *Engine {
	return New(config.DefaultConfig(), testRegistry(), r, nil, slogutil.NewDiscardLogger())
}

func writeSource(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
	return path
}

func nameErrorTraceback(file string, line int, snippet, name string) string {
	return fmt.Sprintf("Traceback (most recent call last):\n"+
		"  File \"%s\", line %d, in main\n"+
		"    %s\n"+
		"NameError: name '%s' is not defined\n", file, line, snippet, name)
}

func TestFixDryRunProposesWithoutWriting(t *testing.T) {
	root := t.TempDir()
	src := "message = \"hello\"\n\ndef main():\n    print(mesage)\n"
	file := writeSource(t, root, "app.py", src)

	r := newFakeRunner()
	r.outputs["pytest"] = nameErrorTraceback(file, 4, "print(mesage)", "mesage")

	summary, err := newEngine(r).Fix(context.Background(), Options{Root: root})
	if err != nil {
		t.Fatalf("Fix failed: %v", err)
	}

	if summary.Mode != "dry-run" {
		t.Errorf("mode = %s", summary.Mode)
	}
	if summary.Proposed != 1 || summary.Applied != 0 {
		t.Errorf("proposed = %d, applied = %d, want 1/0", summary.Proposed, summary.Applied)
	}
	if len(summary.Decisions) != 1 {
		t.Fatalf("decisions = %d", len(summary.Decisions))
	}
	d := summary.Decisions[0]
	if d.Patch == nil || d.Patch.NewText != "message" {
		t.Errorf("patch = %+v, want replacement with message", d.Patch)
	}

	// Dry-run must never mutate the tree.
	data, _ := os.ReadFile(file)
	if string(data) != src {
		t.Errorf("file was modified in dry-run: %q", string(data))
	}
}

func TestFixApplyRewritesFile(t *testing.T) {
	root := t.TempDir()
	file := writeSource(t, root, "app.py",
		"message = \"hello\"\n\ndef main():\n    print(mesage)\n")

	r := newFakeRunner()
	r.outputs["pytest"] = nameErrorTraceback(file, 4, "print(mesage)", "mesage")
	r.firstOnly = true

	summary, err := newEngine(r).Fix(context.Background(), Options{Root: root, Yes: true})
	if err != nil {
		t.Fatalf("Fix failed: %v", err)
	}

	if summary.Applied != 1 {
		t.Fatalf("applied = %d, want 1", summary.Applied)
	}
	data, _ := os.ReadFile(file)
	want := "message = \"hello\"\n\ndef main():\n    print(message)\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", string(data), want)
	}
}

func TestFixSecondRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	file := writeSource(t, root, "app.py",
		"message = \"hello\"\n\ndef main():\n    print(mesage)\n")

	traceback := nameErrorTraceback(file, 4, "print(mesage)", "mesage")
	r := newFakeRunner()
	r.outputs["pytest"] = traceback
	e := newEngine(r)

	if _, err := e.Fix(context.Background(), Options{Root: root, Yes: true, MaxPasses: 1}); err != nil {
		t.Fatalf("first Fix failed: %v", err)
	}

	// Same stale traceback again: the identifier is gone from the line, so
	// the patch must be skipped, not re-applied or misapplied.
	summary, err := e.Fix(context.Background(), Options{Root: root, Yes: true, MaxPasses: 1})
	if err != nil {
		t.Fatalf("second Fix failed: %v", err)
	}
	if summary.Applied != 0 {
		t.Errorf("second run applied = %d, want 0", summary.Applied)
	}
	if len(summary.Decisions) != 1 || summary.Decisions[0].Reason != patch.ReasonStale {
		t.Errorf("decision = %+v, want skipped/stale", summary.Decisions)
	}
	if summary.Decisions[0].Code != errors.StalePatch {
		t.Errorf("code = %s, want STALE_PATCH", summary.Decisions[0].Code)
	}
}

func TestFixRejectsAmbiguousCandidates(t *testing.T) {
	root := t.TempDir()
	file := writeSource(t, root, "app.py",
		"data = 1\ndate = 2\n\ndef main():\n    return dat\n")

	r := newFakeRunner()
	r.outputs["pytest"] = nameErrorTraceback(file, 5, "return dat", "dat")

	summary, err := newEngine(r).Fix(context.Background(), Options{Root: root, Yes: true})
	if err != nil {
		t.Fatalf("Fix failed: %v", err)
	}

	if summary.Rejected != 1 || summary.Applied != 0 {
		t.Fatalf("rejected = %d, applied = %d, want 1/0", summary.Rejected, summary.Applied)
	}
	d := summary.Decisions[0]
	if d.Reason != "ambiguous" {
		t.Errorf("reason = %s, want ambiguous", d.Reason)
	}
	if d.Code != errors.AmbiguousMatch {
		t.Errorf("code = %s, want AMBIGUOUS_MATCH", d.Code)
	}
	// Ranked candidates are still reported for the unfixed diagnostic.
	if len(d.Candidates) < 2 {
		t.Errorf("candidates = %+v, want data and date ranked", d.Candidates)
	}
	if len(summary.Unfixed()) != 1 {
		t.Errorf("Unfixed = %d, want 1", len(summary.Unfixed()))
	}
}

func TestFixModuleAttributeError(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "utils.py",
		"def compute_total(values):\n    return sum(values)\n")
	file := writeSource(t, root, "app.py",
		"import utils\n\ntotal = utils.compute_totl([1, 2])\n")

	r := newFakeRunner()
	r.outputs["pytest"] = fmt.Sprintf("Traceback (most recent call last):\n"+
		"  File \"%s\", line 3, in <module>\n"+
		"    total = utils.compute_totl([1, 2])\n"+
		"AttributeError: module 'utils' has no attribute 'compute_totl'\n", file)

	summary, err := newEngine(r).Fix(context.Background(), Options{Root: root, Yes: true, MaxPasses: 1})
	if err != nil {
		t.Fatalf("Fix failed: %v", err)
	}

	if summary.Applied != 1 {
		t.Fatalf("applied = %d, want 1 (decisions: %+v)", summary.Applied, summary.Decisions)
	}
	data, _ := os.ReadFile(file)
	want := "import utils\n\ntotal = utils.compute_total([1, 2])\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", string(data), want)
	}
}

func TestFixToolErrorDegradesNotAborts(t *testing.T) {
	root := t.TempDir()
	file := writeSource(t, root, "app.py",
		"count = 0\n\ndef main():\n    return cont\n")

	registry := []tools.Tool{
		{Name: "mypy", Command: "mypy", Kind: tools.KindTypecheck, Diagnostics: true},
		{Name: "pytest", Command: "pytest", Kind: tools.KindTest, Diagnostics: true},
	}
	r := newFakeRunner()
	r.errs["mypy"] = fmt.Errorf("mypy not found on PATH")
	r.outputs["pytest"] = nameErrorTraceback(file, 4, "return cont", "cont")

	e := New(config.DefaultConfig(), registry, r, nil, slogutil.NewDiscardLogger())
	summary, err := e.Fix(context.Background(), Options{Root: root, Yes: true, MaxPasses: 1})
	if err != nil {
		t.Fatalf("Fix failed: %v", err)
	}

	if len(summary.ToolErrors) != 1 {
		t.Errorf("tool errors = %v, want one", summary.ToolErrors)
	}
	if summary.Applied != 1 {
		t.Errorf("applied = %d, want 1 despite failing tool", summary.Applied)
	}
}

func TestFixSkipsFilesOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := writeSource(t, t.TempDir(), "other.py", "value = 1\nprint(vlue)\n")

	r := newFakeRunner()
	r.outputs["pytest"] = nameErrorTraceback(outside, 2, "print(vlue)", "vlue")

	summary, err := newEngine(r).Fix(context.Background(), Options{Root: root, Yes: true})
	if err != nil {
		t.Fatalf("Fix failed: %v", err)
	}
	if summary.Applied != 0 || summary.Skipped != 1 {
		t.Errorf("applied = %d, skipped = %d, want 0/1", summary.Applied, summary.Skipped)
	}
	if summary.Decisions[0].Reason != "outside-root" {
		t.Errorf("reason = %s", summary.Decisions[0].Reason)
	}
	if summary.Decisions[0].Code != errors.InvalidPath {
		t.Errorf("code = %s, want INVALID_PATH", summary.Decisions[0].Code)
	}
}

func TestFixMultiPassStopsWhenClean(t *testing.T) {
	root := t.TempDir()
	file := writeSource(t, root, "app.py",
		"message = \"hello\"\n\ndef main():\n    print(mesage)\n")

	r := newFakeRunner()
	r.outputs["pytest"] = nameErrorTraceback(file, 4, "print(mesage)", "mesage")
	r.firstOnly = true

	summary, err := newEngine(r).Fix(context.Background(), Options{Root: root, Yes: true, MaxPasses: 3})
	if err != nil {
		t.Fatalf("Fix failed: %v", err)
	}

	// Pass 1 applies the fix; pass 2 sees clean output and stops early.
	if summary.Passes != 2 {
		t.Errorf("passes = %d, want 2", summary.Passes)
	}
	if r.calls["pytest"] != 2 {
		t.Errorf("pytest invoked %d times, want 2", r.calls["pytest"])
	}
	if summary.Applied != 1 {
		t.Errorf("applied = %d, want 1", summary.Applied)
	}
}

func TestFixUnknownToolSelection(t *testing.T) {
	r := newFakeRunner()
	_, err := newEngine(r).Fix(context.Background(), Options{
		Root:  t.TempDir(),
		Tools: []string{"no-such-tool"},
	})
	if err == nil {
		t.Fatal("expected error for unknown tool selection")
	}
}

func TestFixDefaultRunUsesCheckModeArgv(t *testing.T) {
	registry, err := tools.LoadRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}

	// A plain run, dry or not, must launch every tool read-only: no
	// --fix, no --in-place, and the formatters in their --check variants.
	r := newFakeRunner()
	e := New(config.DefaultConfig(), registry, r, nil, slogutil.NewDiscardLogger())
	if _, err := e.Fix(context.Background(), Options{Root: t.TempDir()}); err != nil {
		t.Fatalf("Fix failed: %v", err)
	}

	for tool, banned := range map[string]string{
		"ruff":      "--fix",
		"autoflake": "--in-place",
	} {
		for _, arg := range r.argv[tool] {
			if arg == banned {
				t.Errorf("%s launched with %s in a default run: %v", tool, banned, r.argv[tool])
			}
		}
	}
	if argv := r.argv["black"]; len(argv) == 0 || argv[0] != "--check" {
		t.Errorf("black argv = %v, want --check variant", argv)
	}
	if argv := r.argv["isort"]; len(argv) == 0 || argv[0] != "--check-only" {
		t.Errorf("isort argv = %v, want --check-only variant", argv)
	}
}

func TestFixApplyToolsSelectsFixArgv(t *testing.T) {
	registry, err := tools.LoadRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}

	r := newFakeRunner()
	e := New(config.DefaultConfig(), registry, r, nil, slogutil.NewDiscardLogger())
	if _, err := e.Fix(context.Background(), Options{Root: t.TempDir(), ApplyTools: true}); err != nil {
		t.Fatalf("Fix failed: %v", err)
	}

	hasFix := false
	for _, arg := range r.argv["ruff"] {
		if arg == "--fix" {
			hasFix = true
		}
	}
	if !hasFix {
		t.Errorf("ruff argv = %v, want --fix under --apply-tools", r.argv["ruff"])
	}
	if argv := r.argv["black"]; len(argv) != 1 || argv[0] != "." {
		t.Errorf("black argv = %v, want write mode under --apply-tools", argv)
	}
}

func TestFindIdentifierSpan(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		ident      string
		preferAttr bool
		wantStart  int
		wantEnd    int
		wantOK     bool
	}{
		{"simple", "    print(mesage)", "mesage", false, 10, 16, true},
		{"word boundary", "remessage = mesage", "mesage", false, 12, 18, true},
		{"absent", "print(message)", "mesage", false, 0, 0, false},
		{"attribute preferred", "totl = utils.totl", "totl", true, 13, 17, true},
		{"attribute fallback", "x = totl + 1", "totl", true, 4, 8, true},
		{"spaced dot", "y = mod . totl", "totl", true, 10, 14, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := findIdentifierSpan(tt.line, tt.ident, tt.preferAttr)
			if ok != tt.wantOK || start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("findIdentifierSpan(%q, %q) = %d, %d, %v; want %d, %d, %v",
					tt.line, tt.ident, start, end, ok, tt.wantStart, tt.wantEnd, tt.wantOK)
			}
		})
	}
}
