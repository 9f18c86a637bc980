package slogutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("patch applied", slog.String("file", "app.py"), slog.Int("line", 12))

	out := buf.String()
	if !strings.Contains(out, "[info] patch applied") {
		t.Errorf("missing level/message: %q", out)
	}
	if !strings.Contains(out, "file=app.py") || !strings.Contains(out, "line=12") {
		t.Errorf("missing attributes: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("record should end with newline")
	}
}

func TestHandlerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level records should be dropped: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn record should be written: %q", out)
	}
}

func TestHandlerWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.WithGroup("tool").With(slog.String("name", "mypy")).Info("ran")

	out := buf.String()
	if !strings.Contains(out, "tool.name=mypy") {
		t.Errorf("group prefix not applied: %q", out)
	}
}

func TestHandlerQuotesSpacedValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Warn("revert skipped",
		slog.String("reason", "line drifted"),
		slog.String("file", "app.py"))

	out := buf.String()
	if !strings.Contains(out, `reason="line drifted"`) {
		t.Errorf("spaced value not quoted: %q", out)
	}
	if !strings.Contains(out, "file=app.py") {
		t.Errorf("plain value should stay unquoted: %q", out)
	}
}

func TestHandlerFlattensGroupAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("patch applied",
		slog.Group("span", slog.Int("line", 4), slog.Int("start", 10)))

	out := buf.String()
	if !strings.Contains(out, "span.line=4") || !strings.Contains(out, "span.start=10") {
		t.Errorf("group attr not flattened: %q", out)
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	if LevelFromVerbosity(0, false) != slog.LevelWarn {
		t.Error("verbosity 0 should be warn")
	}
	if LevelFromVerbosity(1, false) != slog.LevelInfo {
		t.Error("verbosity 1 should be info")
	}
	if LevelFromVerbosity(3, false) != slog.LevelDebug {
		t.Error("verbosity >=2 should be debug")
	}
	if LevelFromVerbosity(2, true) <= slog.LevelError {
		t.Error("quiet should suppress everything")
	}
}
