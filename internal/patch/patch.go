// Package patch applies minimal, reversible single-token edits to source
// files and records every decision in an append-only run log.
package patch

import (
	"fmt"
	"time"
)

// Patch is a minimal, reversible textual edit to one file: a single-token
// substitution at an exact span of one line. Columns are byte offsets into
// the decoded line, StartCol inclusive, EndCol exclusive.
type Patch struct {
	FilePath string `json:"filePath"`
	Line     int    `json:"line"` // 1-based
	StartCol int    `json:"startCol"`
	EndCol   int    `json:"endCol"`
	OldText  string `json:"oldText"`
	NewText  string `json:"newText"`
}

// Inverse returns the patch that undoes p after it has been applied.
func (p Patch) Inverse() Patch {
	return Patch{
		FilePath: p.FilePath,
		Line:     p.Line,
		StartCol: p.StartCol,
		EndCol:   p.StartCol + len(p.NewText),
		OldText:  p.NewText,
		NewText:  p.OldText,
	}
}

// String renders the patch for logs and human output.
func (p Patch) String() string {
	return fmt.Sprintf("%s:%d:%d %q -> %q", p.FilePath, p.Line, p.StartCol, p.OldText, p.NewText)
}

// Outcome classifies what happened to a patch decision.
type Outcome string

const (
	// OutcomeApplied means the file was rewritten.
	OutcomeApplied Outcome = "applied"
	// OutcomeProposed means dry-run mode computed the patch without writing.
	OutcomeProposed Outcome = "proposed"
	// OutcomeSkipped means the patch was discarded at apply time (stale span,
	// missing line, unreadable file).
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRejected means the resolver found no confident candidate and the
	// diagnostic was reported unfixed.
	OutcomeRejected Outcome = "rejected"
)

// Result is the apply-time verdict for one patch.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Entry is one record in the run log.
type Entry struct {
	Time    time.Time `json:"time"`
	Patch   Patch     `json:"patch"`
	Outcome Outcome   `json:"outcome"`
	Reason  string    `json:"reason,omitempty"`
}

// RunLog is the append-only ordered sequence of patch decisions for one
// session. It is owned exclusively by the orchestrator and carries enough
// information to reverse any applied edit.
type RunLog struct {
	entries []Entry
}

// Append records a decision.
func (l *RunLog) Append(p Patch, outcome Outcome, reason string) {
	l.entries = append(l.entries, Entry{
		Time:    time.Now().UTC(),
		Patch:   p,
		Outcome: outcome,
		Reason:  reason,
	})
}

// Entries returns a copy of the recorded decisions, oldest first.
func (l *RunLog) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns how many entries carry the given outcome.
func (l *RunLog) Count(outcome Outcome) int {
	n := 0
	for _, e := range l.entries {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}

// Len returns the total number of entries.
func (l *RunLog) Len() int {
	return len(l.entries)
}
