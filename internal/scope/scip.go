package scope

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"
)

// scipIndex holds definition symbols from a SCIP index, keyed by the
// document's relative path. Indexes produced by scip-python give the
// resolver high-confidence candidates that survive even when the failing
// file itself no longer parses.
type scipIndex struct {
	byPath map[string][]Entry
}

func loadSCIPIndex(path string) (*scipIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parsing scip index %s: %w", path, err)
	}

	idx := &scipIndex{byPath: make(map[string][]Entry, len(index.Documents))}
	for _, doc := range index.Documents {
		var entries []Entry
		seen := make(map[string]bool)
		for _, occ := range doc.Occurrences {
			if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) == 0 {
				continue
			}
			if strings.HasPrefix(occ.Symbol, "local ") {
				continue
			}
			sym, err := scippb.ParseSymbol(occ.Symbol)
			if err != nil || len(sym.Descriptors) == 0 {
				continue
			}
			name := sym.Descriptors[len(sym.Descriptors)-1].Name
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			line := 1
			if len(occ.Range) > 0 {
				line = int(occ.Range[0]) + 1
			}
			entries = append(entries, Entry{Identifier: name, DeclaredLine: line, Origin: OriginIndex})
		}
		if len(entries) > 0 {
			idx.byPath[doc.RelativePath] = entries
		}
	}
	return idx, nil
}

func (idx *scipIndex) documents() int {
	return len(idx.byPath)
}

// entriesFor returns the index entries for a file, matched by its path
// relative to the project root.
func (idx *scipIndex) entriesFor(root, file string) []Entry {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return nil
	}
	return idx.byPath[filepath.ToSlash(rel)]
}
