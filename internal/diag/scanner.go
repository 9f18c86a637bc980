package diag

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	frameRe   = regexp.MustCompile(`^\s*File "([^"]+)", line (\d+)(?:, in .*)?$`)
	nameRe    = regexp.MustCompile(`\bNameError: name '([A-Za-z_][A-Za-z0-9_]*)' is not defined`)
	attrObjRe = regexp.MustCompile(`\bAttributeError: '([^']+)' object has no attribute '([A-Za-z_][A-Za-z0-9_]*)'`)
	attrModRe = regexp.MustCompile(`\bAttributeError: module '([^']+)' has no attribute '([A-Za-z_][A-Za-z0-9_]*)'`)
)

// Scanner yields Diagnostics from raw traceback text, one at a time.
// It is lazy, finite, and non-restartable, in the manner of bufio.Scanner:
//
//	s := diag.NewScanner(r)
//	for s.Next() {
//	    d := s.Diagnostic()
//	    ...
//	}
//
// Malformed or unrecognized text yields zero diagnostics; Scanner never
// reports an error for unparseable input.
type Scanner struct {
	lines *bufio.Scanner
	cur   Diagnostic

	// state of the traceback frame most recently seen and not yet consumed
	frameFile string
	frameLine int
	frameCtx  string
	haveFrame bool
}

// NewScanner creates a Scanner over raw tool/interpreter output.
func NewScanner(r io.Reader) *Scanner {
	lines := bufio.NewScanner(r)
	// Tool output can carry very long lines (pytest reprs); grow the limit.
	lines.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Scanner{lines: lines}
}

// Next advances to the next recognizable diagnostic. It returns false when
// the input is exhausted.
func (s *Scanner) Next() bool {
	for s.lines.Scan() {
		line := s.lines.Text()

		if m := frameRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[2])
			if err != nil || n < 1 {
				continue
			}
			s.frameFile = m[1]
			s.frameLine = n
			s.frameCtx = ""
			s.haveFrame = true
			continue
		}

		if d, ok := s.matchError(line); ok {
			if !s.haveFrame {
				// Error text with no anchoring frame is unusable; skip it.
				continue
			}
			d.FilePath = s.frameFile
			d.Line = s.frameLine
			d.Context = s.frameCtx
			s.cur = d
			// A frame anchors at most one diagnostic.
			s.haveFrame = false
			return true
		}

		// An indented line directly after a frame is the traceback's source
		// snippet for that frame.
		if s.haveFrame && s.frameCtx == "" && line != "" &&
			(line[0] == ' ' || line[0] == '\t') {
			s.frameCtx = strings.TrimSpace(line)
		}
	}
	return false
}

// Diagnostic returns the diagnostic produced by the last call to Next.
func (s *Scanner) Diagnostic() Diagnostic {
	return s.cur
}

// matchError recognizes the supported error message shapes.
func (s *Scanner) matchError(line string) (Diagnostic, bool) {
	if m := nameRe.FindStringSubmatch(line); m != nil {
		return Diagnostic{Kind: KindNameError, Identifier: m[1]}, true
	}
	if m := attrObjRe.FindStringSubmatch(line); m != nil {
		return Diagnostic{Kind: KindAttributeError, Receiver: m[1], Identifier: m[2]}, true
	}
	if m := attrModRe.FindStringSubmatch(line); m != nil {
		return Diagnostic{Kind: KindAttributeError, Receiver: m[1], Identifier: m[2], ModuleAttr: true}, true
	}
	return Diagnostic{}, false
}

// ParseAll drains a Scanner over the given text and collects every
// diagnostic. Convenience for callers that already hold the full output.
func ParseAll(text string) []Diagnostic {
	var out []Diagnostic
	s := NewScanner(strings.NewReader(text))
	for s.Next() {
		out = append(out, s.Diagnostic())
	}
	return out
}
