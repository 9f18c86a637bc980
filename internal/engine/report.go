package engine

import (
	"pyfix/internal/diag"
	"pyfix/internal/errors"
	"pyfix/internal/patch"
	"pyfix/internal/similarity"
	"pyfix/internal/tools"
)

// Decision is the full verdict for one diagnostic: what was found, what the
// resolver ranked, and what happened to the resulting patch.
type Decision struct {
	Diagnostic diag.Diagnostic        `json:"diagnostic"`
	Patch      *patch.Patch           `json:"patch,omitempty"`
	Resolved   *similarity.Candidate  `json:"resolved,omitempty"`
	Candidates []similarity.Candidate `json:"candidates,omitempty"`
	Outcome    patch.Outcome          `json:"outcome"`
	Reason     string                 `json:"reason,omitempty"`
	// Code is the stable error code behind a skip or rejection.
	Code errors.ErrorCode `json:"code,omitempty"`
}

func (d *Decision) skip(reason string) {
	d.Outcome = patch.OutcomeSkipped
	d.Reason = reason
	d.Code = codeForReason(reason)
}

// Summary aggregates a complete Fix run across all passes.
type Summary struct {
	RunID string `json:"runId"`
	Mode  string `json:"mode"`
	Root  string `json:"root"`
	// Passes is how many passes actually ran.
	Passes int `json:"passes"`

	ToolResults []tools.Result `json:"toolResults,omitempty"`
	ToolErrors  []string       `json:"toolErrors,omitempty"`

	Diagnostics int        `json:"diagnostics"`
	Decisions   []Decision `json:"decisions,omitempty"`

	Applied  int `json:"applied"`
	Proposed int `json:"proposed"`
	Skipped  int `json:"skipped"`
	Rejected int `json:"rejected"`
}

// Unfixed returns the decisions that left their diagnostic unrepaired, with
// ranked candidates for the report.
func (s *Summary) Unfixed() []Decision {
	var out []Decision
	for _, d := range s.Decisions {
		if d.Outcome == patch.OutcomeRejected || d.Outcome == patch.OutcomeSkipped {
			out = append(out, d)
		}
	}
	return out
}

func (s *Summary) tally() {
	s.Applied, s.Proposed, s.Skipped, s.Rejected = 0, 0, 0, 0
	for _, d := range s.Decisions {
		switch d.Outcome {
		case patch.OutcomeApplied:
			s.Applied++
		case patch.OutcomeProposed:
			s.Proposed++
		case patch.OutcomeSkipped:
			s.Skipped++
		case patch.OutcomeRejected:
			s.Rejected++
		}
	}
}
