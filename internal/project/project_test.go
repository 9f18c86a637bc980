package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mkfile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDetectManifest(t *testing.T) {
	root := t.TempDir()
	if _, ok := DetectManifest(root); ok {
		t.Error("empty dir should have no manifest")
	}

	mkfile(t, root, "requirements.txt", "requests\n")
	m, ok := DetectManifest(root)
	if !ok || m != "requirements.txt" {
		t.Errorf("manifest = %q, %v", m, ok)
	}

	// pyproject.toml takes priority
	mkfile(t, root, "pyproject.toml", "[project]\nname = 'x'\n")
	m, _ = DetectManifest(root)
	if m != "pyproject.toml" {
		t.Errorf("manifest = %q, want pyproject.toml", m)
	}
}

func TestFindPythonFilesExcludesDependencyDirs(t *testing.T) {
	root := t.TempDir()
	keep1 := mkfile(t, root, "app/main.py", "x = 1\n")
	keep2 := mkfile(t, root, "lib/util.py", "y = 2\n")
	mkfile(t, root, "venv/lib/site.py", "ignored\n")
	mkfile(t, root, ".venv/other.py", "ignored\n")
	mkfile(t, root, "pkg/__pycache__/mod.cpython-311.py", "ignored\n")
	mkfile(t, root, "README.md", "not python\n")

	files, err := FindPythonFiles(root, []string{"venv", ".venv", "__pycache__"})
	if err != nil {
		t.Fatalf("FindPythonFiles failed: %v", err)
	}

	want := []string{keep1, keep2}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestConfiguredTools(t *testing.T) {
	root := t.TempDir()
	if got := ConfiguredTools(root); len(got) != 0 {
		t.Errorf("missing pyproject should yield nothing, got %v", got)
	}

	mkfile(t, root, "pyproject.toml", `
[project]
name = "demo"

[tool.ruff]
line-length = 100

[tool.black]
line-length = 100

[tool.mypy]
strict = true
`)
	got := ConfiguredTools(root)
	want := []string{"black", "mypy", "ruff"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}

	mkfile(t, root, "pyproject.toml", "not [valid toml")
	if got := ConfiguredTools(root); len(got) != 0 {
		t.Errorf("unparseable pyproject should yield nothing, got %v", got)
	}
}

func TestModuleFile(t *testing.T) {
	root := t.TempDir()
	flat := mkfile(t, root, "utils.py", "def helper(): pass\n")
	pkg := mkfile(t, root, "svc/api/__init__.py", "")

	if got := ModuleFile(root, "utils"); got != flat {
		t.Errorf("ModuleFile(utils) = %q, want %q", got, flat)
	}
	if got := ModuleFile(root, "svc.api"); got != pkg {
		t.Errorf("ModuleFile(svc.api) = %q, want %q", got, pkg)
	}
	if got := ModuleFile(root, "requests"); got != "" {
		t.Errorf("unknown module should yield empty, got %q", got)
	}
}
