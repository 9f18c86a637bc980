// Package engine orchestrates repair passes: run the external tools, parse
// their output into diagnostics, resolve repair candidates, and apply or
// propose patches.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"pyfix/internal/config"
	"pyfix/internal/diag"
	"pyfix/internal/errors"
	"pyfix/internal/patch"
	"pyfix/internal/paths"
	"pyfix/internal/scope"
	"pyfix/internal/similarity"
	"pyfix/internal/storage"
	"pyfix/internal/tools"
)

// Phase is the engine's position in the pass pipeline. Exposed for logging;
// transitions are strictly forward within a pass.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRunningTools Phase = "running-tools"
	PhaseDiagnosing   Phase = "diagnosing"
	PhaseResolving    Phase = "resolving"
	PhaseApplying     Phase = "applying"
	PhaseReporting    Phase = "reporting"
	PhaseDone         Phase = "done"
)

// Options controls one Fix invocation.
type Options struct {
	// Root is the project root. Required.
	Root string
	// Tools restricts the pipeline to the named tools. Empty means the
	// configured (or full) registry.
	Tools []string
	// ApplyTools runs each tool with its fix-mode argv, letting linters and
	// formatters rewrite files themselves. Off by default: the pipeline runs
	// in check mode and never mutates the tree on its own.
	ApplyTools bool
	// Yes enables apply mode. Without it every patch is proposed only and
	// no file is written.
	Yes bool
	// MaxPasses overrides the configured pass bound when positive.
	MaxPasses int
}

// Engine runs repair passes over a project.
type Engine struct {
	cfg      *config.Config
	registry []tools.Tool
	runner   tools.Runner
	resolver *similarity.Resolver
	applier  *patch.Applier
	store    *storage.Store
	logger   *slog.Logger

	phase Phase
}

// New assembles an engine. store may be nil; run history is then not
// persisted.
func New(cfg *config.Config, registry []tools.Tool, runner tools.Runner, store *storage.Store, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: registry,
		runner:   runner,
		resolver: similarity.NewResolver(similarity.NewScorer(),
			cfg.Similarity.Threshold, cfg.Similarity.Margin, cfg.Similarity.TopK),
		applier: patch.NewApplier(logger),
		store:   store,
		logger:  logger,
		phase:   PhaseIdle,
	}
}

// Fix runs up to the configured number of passes and returns the combined
// summary. In apply mode, passes repeat while patches land and the bound is
// not exhausted; dry-run mode is a single pass since nothing changes.
func (e *Engine) Fix(ctx context.Context, opts Options) (*Summary, error) {
	pipeline, err := e.pipeline(opts)
	if err != nil {
		return nil, err
	}

	maxPasses := e.cfg.Passes.Max
	if opts.MaxPasses > 0 {
		maxPasses = opts.MaxPasses
	}
	if !opts.Yes {
		maxPasses = 1
	}

	mode := "dry-run"
	if opts.Yes {
		mode = "apply"
	}

	summary := &Summary{
		RunID: storage.NewRunID(),
		Mode:  mode,
		Root:  opts.Root,
	}
	started := time.Now()
	var log patch.RunLog
	appliedSpans := make(map[string]bool)

	for pass := 1; pass <= maxPasses; pass++ {
		summary.Passes = pass
		applied, err := e.runPass(ctx, opts, pipeline, summary, &log, appliedSpans)
		if err != nil {
			return summary, err
		}
		if applied == 0 {
			break
		}
	}

	e.setPhase(PhaseReporting)
	summary.tally()
	if e.store != nil {
		run := storage.Run{
			ID:          summary.RunID,
			StartedAt:   started,
			FinishedAt:  time.Now(),
			Root:        opts.Root,
			Mode:        mode,
			Passes:      summary.Passes,
			Diagnostics: summary.Diagnostics,
			Applied:     summary.Applied,
			Skipped:     summary.Skipped,
			Rejected:    summary.Rejected,
		}
		if err := e.store.RecordRun(ctx, run, log.Entries()); err != nil {
			e.logger.Warn("recording run history failed", slog.String("error", err.Error()))
		}
	}
	e.setPhase(PhaseDone)
	return summary, nil
}

// runPass executes one complete tool+repair pass and returns how many
// patches were applied.
func (e *Engine) runPass(ctx context.Context, opts Options, pipeline []tools.Tool,
	summary *Summary, log *patch.RunLog, appliedSpans map[string]bool) (int, error) {

	e.setPhase(PhaseRunningTools)
	var diagnosticOutput strings.Builder
	var failedDiagnostic []tools.Result
	for _, tool := range pipeline {
		result, err := e.runner.Run(ctx, opts.Root, tool, opts.ApplyTools)
		if err != nil {
			// A missing or failing tool degrades the pass, never aborts it.
			e.logger.Warn("tool unavailable",
				slog.String("tool", tool.Name), slog.String("error", err.Error()))
			summary.ToolErrors = append(summary.ToolErrors, err.Error())
			continue
		}
		summary.ToolResults = append(summary.ToolResults, result)
		if tool.Diagnostics {
			diagnosticOutput.WriteString(result.Output())
			diagnosticOutput.WriteString("\n")
			if result.ExitCode != 0 {
				failedDiagnostic = append(failedDiagnostic, result)
			}
		}
	}

	e.setPhase(PhaseDiagnosing)
	diags := diag.ParseAll(diagnosticOutput.String())
	summary.Diagnostics += len(diags)
	e.logger.Info("diagnostics parsed", slog.Int("count", len(diags)))
	if len(diags) == 0 {
		// A failing type check or test run whose output carries no
		// recognizable traceback is worth flagging in the log.
		for _, res := range failedDiagnostic {
			e.logger.Warn("no parseable diagnostics in failing tool output",
				slog.String("code", string(errors.ParseMiss)),
				slog.String("tool", res.Tool),
				slog.Int("exitCode", res.ExitCode))
		}
	}

	e.setPhase(PhaseResolving)
	indexer := scope.NewIndexer(opts.Root, e.logger)
	if e.cfg.Index.Enabled {
		indexer.LoadSCIP(filepath.Join(opts.Root, e.cfg.Index.ScipPath))
	}

	applied := 0
	for _, d := range diags {
		decision := e.decide(ctx, opts, indexer, d, appliedSpans)
		if decision.Patch != nil && decision.Outcome != patch.OutcomeRejected {
			e.setPhase(PhaseApplying)
			e.applyDecision(opts, &decision, appliedSpans)
			if decision.Outcome == patch.OutcomeApplied {
				applied++
			}
		}
		if decision.Patch != nil {
			log.Append(*decision.Patch, decision.Outcome, decision.Reason)
		}
		summary.Decisions = append(summary.Decisions, decision)
	}
	return applied, nil
}

// decide resolves one diagnostic into a patch decision without writing.
func (e *Engine) decide(ctx context.Context, opts Options, indexer *scope.Indexer,
	d diag.Diagnostic, appliedSpans map[string]bool) Decision {

	decision := Decision{Diagnostic: d}

	file := d.FilePath
	if !filepath.IsAbs(file) {
		file = filepath.Join(opts.Root, file)
	}
	if !paths.IsWithinRoot(file, opts.Root) {
		decision.skip("outside-root")
		return decision
	}

	text, err := patch.ReadFileText(file)
	if err != nil {
		decision.skip(patch.ReasonUnreadable)
		return decision
	}
	lines := strings.Split(text, "\n")
	if d.Line < 1 || d.Line > len(lines) {
		decision.skip(patch.ReasonMissingLine)
		return decision
	}

	start, end, ok := findIdentifierSpan(lines[d.Line-1], d.Identifier, d.Kind == diag.KindAttributeError)
	if !ok {
		// The reported line no longer carries the identifier; an earlier
		// edit in this run moved it.
		decision.skip(patch.ReasonStale)
		return decision
	}

	spanKey := fmt.Sprintf("%s:%d:%d-%d", file, d.Line, start, end)
	if appliedSpans[spanKey] {
		decision.skip("already-patched")
		return decision
	}

	var pool []similarity.Candidate
	if d.Kind == diag.KindAttributeError {
		pool = toCandidates(indexer.Attributes(ctx, file, d.Receiver, d.ModuleAttr))
	} else {
		pool = toCandidates(indexer.Visible(ctx, file, d.Line))
	}

	decision.Candidates = e.resolver.Rank(d.Identifier, d.Line, pool)
	resolved := e.resolver.Resolve(d.Identifier, d.Line, pool)
	if resolved == nil {
		decision.Outcome = patch.OutcomeRejected
		decision.Code = errors.AmbiguousMatch
		if len(decision.Candidates) == 0 {
			decision.Reason = "no-candidate"
		} else {
			decision.Reason = "ambiguous"
		}
		e.logger.Info("diagnostic unfixed",
			slog.String("file", d.FilePath),
			slog.Int("line", d.Line),
			slog.String("identifier", d.Identifier),
			slog.String("reason", decision.Reason))
		return decision
	}

	decision.Patch = &patch.Patch{
		FilePath: file,
		Line:     d.Line,
		StartCol: start,
		EndCol:   end,
		OldText:  d.Identifier,
		NewText:  resolved.Identifier,
	}
	decision.Resolved = resolved
	return decision
}

// applyDecision writes the patch in apply mode or marks it proposed in
// dry-run. The span is remembered either way so one diagnostic cannot be
// patched twice in a run.
func (e *Engine) applyDecision(opts Options, decision *Decision, appliedSpans map[string]bool) {
	p := *decision.Patch
	spanKey := fmt.Sprintf("%s:%d:%d-%d", p.FilePath, p.Line, p.StartCol, p.EndCol)
	appliedSpans[spanKey] = true

	if !opts.Yes {
		decision.Outcome = patch.OutcomeProposed
		e.logger.Info("patch proposed", slog.String("patch", p.String()))
		return
	}

	result, err := e.applier.Apply(p)
	if err != nil {
		decision.Outcome = patch.OutcomeSkipped
		decision.Reason = errors.New(errors.InternalError, "applying patch", err).Error()
		decision.Code = errors.InternalError
		return
	}
	decision.Outcome = result.Outcome
	decision.Reason = result.Reason
	if result.Reason != "" {
		decision.Code = codeForReason(result.Reason)
	}
}

// codeForReason maps a skip or rejection reason onto its stable error code.
func codeForReason(reason string) errors.ErrorCode {
	switch reason {
	case patch.ReasonStale, patch.ReasonMissingLine, patch.ReasonBadSpan, "already-patched":
		return errors.StalePatch
	case patch.ReasonUnreadable:
		return errors.EncodingError
	case "no-candidate", "ambiguous":
		return errors.AmbiguousMatch
	case "outside-root":
		return errors.InvalidPath
	}
	return errors.InternalError
}

// pipeline selects and orders the tools for this run.
func (e *Engine) pipeline(opts Options) ([]tools.Tool, error) {
	names := opts.Tools
	if len(names) == 0 {
		names = e.cfg.Tools.Enabled
	}
	selected, err := tools.Select(e.registry, names)
	if err != nil {
		return nil, errors.New(errors.ToolNotFound, "selecting tools", err)
	}

	if e.cfg.Tools.TimeoutMs > 0 {
		timeout := time.Duration(e.cfg.Tools.TimeoutMs) * time.Millisecond
		for i := range selected {
			if selected[i].Timeout == 0 {
				selected[i].Timeout = timeout
			}
		}
	}
	return selected, nil
}

func (e *Engine) setPhase(p Phase) {
	if e.phase == p {
		return
	}
	e.phase = p
	e.logger.Debug("phase", slog.String("phase", string(p)))
}

func toCandidates(entries []scope.Entry) []similarity.Candidate {
	candidates := make([]similarity.Candidate, len(entries))
	for i, entry := range entries {
		candidates[i] = similarity.Candidate{
			Identifier:   entry.Identifier,
			Origin:       string(entry.Origin),
			DeclaredLine: entry.DeclaredLine,
		}
	}
	return candidates
}

// findIdentifierSpan locates a whole-word occurrence of the identifier on
// the line and returns its byte span. For attribute errors, an occurrence
// preceded by a dot is preferred over a bare one.
func findIdentifierSpan(line, identifier string, preferAttribute bool) (int, int, bool) {
	if identifier == "" {
		return 0, 0, false
	}

	first, firstEnd := -1, -1
	from := 0
	for {
		i := strings.Index(line[from:], identifier)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(identifier)
		from = start + 1

		if start > 0 && isIdentByte(line[start-1]) {
			continue
		}
		if end < len(line) && isIdentByte(line[end]) {
			continue
		}

		if preferAttribute {
			if precededByDot(line, start) {
				return start, end, true
			}
			if first < 0 {
				first, firstEnd = start, end
			}
			continue
		}
		return start, end, true
	}

	if first >= 0 {
		return first, firstEnd, true
	}
	return 0, 0, false
}

func precededByDot(line string, start int) bool {
	for i := start - 1; i >= 0; i-- {
		switch line[i] {
		case ' ', '\t':
			continue
		case '.':
			return true
		default:
			return false
		}
	}
	return false
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
