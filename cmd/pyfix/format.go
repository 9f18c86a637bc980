package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"pyfix/internal/engine"
	"pyfix/internal/patch"
	"pyfix/internal/storage"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

var (
	appliedColor  = color.New(color.FgGreen, color.Bold)
	proposedColor = color.New(color.FgCyan)
	skippedColor  = color.New(color.FgYellow)
	rejectedColor = color.New(color.FgRed)
)

// FormatResponse renders a command result in the requested format.
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling output: %w", err)
		}
		return string(data), nil
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *engine.Summary:
		return formatSummaryHuman(v), nil
	case *DoctorReport:
		return formatDoctorHuman(v), nil
	case *HistoryReport:
		return formatHistoryHuman(v), nil
	case *UndoReport:
		return formatUndoHuman(v), nil
	default:
		data, err := json.MarshalIndent(resp, "", "  ")
		return string(data), err
	}
}

func formatSummaryHuman(s *engine.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "pyfix %s run %s (%d pass", s.Mode, shortID(s.RunID), s.Passes)
	if s.Passes != 1 {
		b.WriteString("es")
	}
	b.WriteString(")\n")

	for _, r := range s.ToolResults {
		fmt.Fprintf(&b, "  tool %-10s exit %d  %s\n", r.Tool, r.ExitCode, r.Duration.Round(1e6))
	}
	for _, e := range s.ToolErrors {
		fmt.Fprintf(&b, "  %s %s\n", skippedColor.Sprint("tool skipped:"), e)
	}

	fmt.Fprintf(&b, "\n%d diagnostic", s.Diagnostics)
	if s.Diagnostics != 1 {
		b.WriteString("s")
	}
	b.WriteString("\n")

	for _, d := range s.Decisions {
		label := string(d.Outcome)
		switch d.Outcome {
		case patch.OutcomeApplied:
			label = appliedColor.Sprint(label)
		case patch.OutcomeProposed:
			label = proposedColor.Sprint(label)
		case patch.OutcomeSkipped:
			label = skippedColor.Sprint(label)
		case patch.OutcomeRejected:
			label = rejectedColor.Sprint(label)
		}

		fmt.Fprintf(&b, "  [%s] %s:%d %s '%s'",
			label, d.Diagnostic.FilePath, d.Diagnostic.Line,
			d.Diagnostic.Kind, d.Diagnostic.Identifier)
		if d.Patch != nil {
			fmt.Fprintf(&b, " -> '%s'", d.Patch.NewText)
		}
		if d.Reason != "" {
			fmt.Fprintf(&b, " (%s)", d.Reason)
		}
		b.WriteString("\n")

		if d.Outcome == patch.OutcomeRejected {
			for _, c := range d.Candidates {
				fmt.Fprintf(&b, "      candidate %-20s score %.3f (%s, line %d)\n",
					c.Identifier, c.Score, c.Origin, c.DeclaredLine)
			}
		}
	}

	fmt.Fprintf(&b, "\napplied %d  proposed %d  skipped %d  rejected %d\n",
		s.Applied, s.Proposed, s.Skipped, s.Rejected)
	if s.Mode == "dry-run" && s.Proposed > 0 {
		b.WriteString("re-run with --yes to apply\n")
	}
	return b.String()
}

// DoctorReport is the result of environment checks.
type DoctorReport struct {
	Healthy bool          `json:"healthy"`
	Checks  []DoctorCheck `json:"checks"`
}

// DoctorCheck is one environment check result.
type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "pass", "warn", "fail"
	Message string `json:"message"`
}

func formatDoctorHuman(r *DoctorReport) string {
	var b strings.Builder
	for _, c := range r.Checks {
		var label string
		switch c.Status {
		case "pass":
			label = appliedColor.Sprint("pass")
		case "warn":
			label = skippedColor.Sprint("warn")
		default:
			label = rejectedColor.Sprint("fail")
		}
		fmt.Fprintf(&b, "  [%s] %-16s %s\n", label, c.Name, c.Message)
	}
	if r.Healthy {
		b.WriteString("\nenvironment healthy\n")
	} else {
		b.WriteString("\nenvironment has problems\n")
	}
	return b.String()
}

// HistoryReport wraps the run list for rendering.
type HistoryReport struct {
	Runs []storage.Run `json:"runs"`
}

func formatHistoryHuman(r *HistoryReport) string {
	if len(r.Runs) == 0 {
		return "no recorded runs\n"
	}
	var b strings.Builder
	for _, run := range r.Runs {
		state := ""
		if run.Undone {
			state = skippedColor.Sprint("  (undone)")
		}
		fmt.Fprintf(&b, "  %s  %s  %-7s  diagnostics %d  applied %d  rejected %d%s\n",
			shortID(run.ID), run.StartedAt.Format("2006-01-02 15:04:05"), run.Mode,
			run.Diagnostics, run.Applied, run.Rejected, state)
	}
	return b.String()
}

// UndoReport is the result of reverting a run.
type UndoReport struct {
	RunID    string `json:"runId"`
	Reverted int    `json:"reverted"`
	Skipped  int    `json:"skipped"`
}

func formatUndoHuman(r *UndoReport) string {
	return fmt.Sprintf("run %s: reverted %d patch(es), skipped %d\n",
		shortID(r.RunID), r.Reverted, r.Skipped)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
