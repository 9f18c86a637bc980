// Package scope computes the set of identifiers plausibly visible at a
// point in a Python source file, by static inspection only. Target code is
// never executed.
package scope

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"pyfix/internal/project"
)

// Origin classifies where a visible identifier comes from.
type Origin string

const (
	OriginImport     Origin = "import"
	OriginAssignment Origin = "assignment"
	OriginParameter  Origin = "parameter"
	OriginFunction   Origin = "function"
	OriginClass      Origin = "class"
	OriginAttribute  Origin = "attribute"
	// OriginIndex marks identifiers contributed by a SCIP index.
	OriginIndex Origin = "index"
	// OriginCensus marks identifiers from the whole-file textual fallback.
	OriginCensus Origin = "census"
)

// Entry is one identifier visible at a program point.
type Entry struct {
	Identifier   string `json:"identifier"`
	DeclaredLine int    `json:"declaredLine"`
	Origin       Origin `json:"origin"`
}

// Indexer computes visible-identifier sets for files under a project root.
// It is recreated per pass; results are never cached across passes because
// the source may have changed.
type Indexer struct {
	root   string
	logger *slog.Logger
	scip   *scipIndex
}

// NewIndexer creates an Indexer for the given project root.
func NewIndexer(root string, logger *slog.Logger) *Indexer {
	return &Indexer{root: root, logger: logger}
}

// LoadSCIP enriches future lookups with symbols from a SCIP index at the
// given path. A missing or unparseable index is logged and ignored.
func (ix *Indexer) LoadSCIP(path string) {
	idx, err := loadSCIPIndex(path)
	if err != nil {
		ix.logger.Debug("scip index unavailable",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	ix.logger.Info("scip index loaded",
		slog.String("path", path), slog.Int("documents", idx.documents()))
	ix.scip = idx
}

// Visible returns the ordered set of identifiers plausibly in scope at the
// given 1-based line: import aliases, module-level and enclosing-function
// assignments and parameters visible by lexical position, plus SCIP index
// symbols when loaded. Falls back to a whole-file identifier census when
// structural parsing is unavailable or fails.
func (ix *Indexer) Visible(ctx context.Context, file string, line int) []Entry {
	text, err := readFileText(file)
	if err != nil {
		ix.logger.Warn("scope target unreadable",
			slog.String("file", file), slog.String("error", err.Error()))
		return ix.appendIndexEntries(nil, file)
	}

	entries, err := parseVisible(ctx, []byte(text), line)
	if err != nil {
		ix.logger.Debug("structural scope failed, using census",
			slog.String("file", file), slog.String("error", err.Error()))
		entries = Census(text)
	}

	return ix.appendIndexEntries(entries, file)
}

// Attributes returns the attributes of a receiver discoverable by static
// inspection, for AttributeError diagnostics. For the object form the
// receiver is a class name; for the module form it is an import path
// resolved to a file under the root, best-effort. Degrades to an
// attribute-access census of the failing file.
func (ix *Indexer) Attributes(ctx context.Context, file string, receiver string, moduleAttr bool) []Entry {
	if moduleAttr {
		if mf := project.ModuleFile(ix.root, receiver); mf != "" {
			if text, err := readFileText(mf); err == nil {
				if entries, err := parseModuleTopLevel(ctx, []byte(text)); err == nil {
					return entries
				}
				return Census(text)
			}
		}
		// Module not resolvable under the root (stdlib or third-party);
		// census of the failing file is the safe default.
		return ix.attributeCensusOf(file)
	}

	text, err := readFileText(file)
	if err != nil {
		return nil
	}
	entries, found, err := parseClassAttributes(ctx, []byte(text), receiver)
	if err != nil || !found {
		return AttributeCensus(text)
	}
	return entries
}

func (ix *Indexer) attributeCensusOf(file string) []Entry {
	text, err := readFileText(file)
	if err != nil {
		return nil
	}
	return AttributeCensus(text)
}

func (ix *Indexer) appendIndexEntries(entries []Entry, file string) []Entry {
	if ix.scip == nil {
		return entries
	}
	return append(entries, ix.scip.entriesFor(ix.root, file)...)
}

// readFileText decodes a file as UTF-8 with best-effort recovery of
// invalid byte sequences. Mirrors the applier's decoding so line/column
// arithmetic agrees between diagnosis and apply.
func readFileText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}
