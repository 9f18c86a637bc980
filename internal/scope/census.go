package scope

import (
	"regexp"
	"strings"
)

var (
	identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	attrRe  = regexp.MustCompile(`\.\s*([A-Za-z_][A-Za-z0-9_]*)`)
)

// pythonKeywords are never repair candidates.
var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true,
	"import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

// Census extracts every distinct identifier token in the text, keyed to the
// line of its first occurrence. It is the degraded mode used when structural
// parsing is unavailable: noisier than a real scope walk, but it keeps the
// resolver supplied with candidates instead of giving up.
func Census(text string) []Entry {
	seen := make(map[string]bool)
	var entries []Entry
	for i, line := range strings.Split(text, "\n") {
		for _, tok := range identRe.FindAllString(line, -1) {
			if seen[tok] || pythonKeywords[tok] {
				continue
			}
			seen[tok] = true
			entries = append(entries, Entry{
				Identifier:   tok,
				DeclaredLine: i + 1,
				Origin:       OriginCensus,
			})
		}
	}
	return entries
}

// AttributeCensus extracts every distinct `.name` attribute access in the
// text. Used as the fallback candidate pool for AttributeError diagnostics
// when the receiver cannot be resolved structurally.
func AttributeCensus(text string) []Entry {
	seen := make(map[string]bool)
	var entries []Entry
	for i, line := range strings.Split(text, "\n") {
		for _, m := range attrRe.FindAllStringSubmatch(line, -1) {
			name := m[1]
			if seen[name] || pythonKeywords[name] {
				continue
			}
			seen[name] = true
			entries = append(entries, Entry{
				Identifier:   name,
				DeclaredLine: i + 1,
				Origin:       OriginCensus,
			})
		}
	}
	return entries
}
