package patch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Reasons reported on skipped patches.
const (
	ReasonStale       = "stale"
	ReasonMissingLine = "missing-line"
	ReasonBadSpan     = "bad-span"
	ReasonUnreadable  = "unreadable"
)

// Applier performs freshness-checked, atomic single-token substitutions.
type Applier struct {
	logger *slog.Logger
}

// NewApplier creates an applier that reports decisions to the given logger.
func NewApplier(logger *slog.Logger) *Applier {
	return &Applier{logger: logger}
}

// ReadFileText reads a file and decodes it as UTF-8 with best-effort
// recovery: invalid byte sequences are replaced, never fatal. All column
// arithmetic in this package operates on this decoded view, so diagnosis
// and apply see identical offsets.
func ReadFileText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// Apply validates the patch against the live file content and, when the
// recorded span still matches, rewrites the file atomically. A span that
// has drifted since diagnosis yields a skipped result and the file is left
// untouched byte-for-byte.
func (a *Applier) Apply(p Patch) (Result, error) {
	text, err := ReadFileText(p.FilePath)
	if err != nil {
		a.logger.Warn("patch target unreadable",
			slog.String("file", p.FilePath), slog.String("error", err.Error()))
		return Result{Outcome: OutcomeSkipped, Reason: ReasonUnreadable}, nil
	}

	lines := strings.SplitAfter(text, "\n")
	if p.Line < 1 || p.Line > len(lines) {
		return Result{Outcome: OutcomeSkipped, Reason: ReasonMissingLine}, nil
	}
	line := lines[p.Line-1]

	if p.StartCol < 0 || p.EndCol < p.StartCol || p.EndCol > len(line) {
		return Result{Outcome: OutcomeSkipped, Reason: ReasonBadSpan}, nil
	}

	// Freshness check: the recorded old text must match the live content,
	// otherwise the diagnostic is stale (a prior edit in this pass moved or
	// changed the span) and the patch is discarded, not forced.
	if line[p.StartCol:p.EndCol] != p.OldText {
		a.logger.Info("stale patch skipped",
			slog.String("file", p.FilePath), slog.Int("line", p.Line))
		return Result{Outcome: OutcomeSkipped, Reason: ReasonStale}, nil
	}

	lines[p.Line-1] = line[:p.StartCol] + p.NewText + line[p.EndCol:]
	if err := writeFileAtomic(p.FilePath, strings.Join(lines, "")); err != nil {
		return Result{}, fmt.Errorf("writing %s: %w", p.FilePath, err)
	}

	a.logger.Info("patch applied",
		slog.String("file", p.FilePath),
		slog.Int("line", p.Line),
		slog.String("old", p.OldText),
		slog.String("new", p.NewText))
	return Result{Outcome: OutcomeApplied}, nil
}

// Revert undoes a previously applied patch, with the same freshness guard:
// if the file no longer carries the replacement text at the recorded span,
// the revert is skipped.
func (a *Applier) Revert(p Patch) (Result, error) {
	return a.Apply(p.Inverse())
}

// writeFileAtomic writes content to a temporary file in the target's
// directory and renames it into place, so an interrupted run never leaves a
// partially written source file.
func writeFileAtomic(path, content string) error {
	info, err := os.Stat(path)
	mode := os.FileMode(0644)
	if err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pyfix-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
