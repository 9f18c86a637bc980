package similarity

import (
	"sort"
)

// Default acceptance policy. Wrong auto-edits are worse than no edit, so
// both gates are deliberately conservative.
const (
	// DefaultThreshold is the minimum score the best candidate must reach.
	DefaultThreshold = 0.80
	// DefaultMargin is the lead the best candidate must hold over the
	// second-best one.
	DefaultMargin = 0.05
	// DefaultTopK caps how many candidates are ranked.
	DefaultTopK = 5
)

// Candidate is a proposed replacement identifier with a similarity score.
// Transient: produced during resolution, discarded after the decision.
type Candidate struct {
	Identifier   string  `json:"identifier"`
	Score        float64 `json:"score"`
	Origin       string  `json:"origin"`
	DeclaredLine int     `json:"declaredLine"`
}

// Resolver ranks scope candidates against an unresolved identifier and
// decides accept or reject.
type Resolver struct {
	scorer    Scorer
	threshold float64
	margin    float64
	topK      int
}

// NewResolver creates a resolver with the given acceptance policy.
// topK is clamped to [1, DefaultTopK].
func NewResolver(scorer Scorer, threshold, margin float64, topK int) *Resolver {
	if scorer == nil {
		scorer = NewScorer()
	}
	if topK < 1 {
		topK = 1
	}
	if topK > DefaultTopK {
		topK = DefaultTopK
	}
	return &Resolver{scorer: scorer, threshold: threshold, margin: margin, topK: topK}
}

// NewDefaultResolver creates a resolver with the default policy.
func NewDefaultResolver() *Resolver {
	return NewResolver(NewScorer(), DefaultThreshold, DefaultMargin, DefaultTopK)
}

// Resolve scores every candidate in the pool against the unresolved
// identifier and returns the accepted replacement, or nil when no candidate
// clears both the score threshold and the ambiguity margin.
//
// errLine is the line the error was reported on; it breaks score ties in
// favor of the closest declaration, then lexicographic identifier order.
func (r *Resolver) Resolve(identifier string, errLine int, pool []Candidate) *Candidate {
	ranked := r.Rank(identifier, errLine, pool)
	if len(ranked) == 0 {
		return nil
	}

	top := ranked[0]
	if top.Score < r.threshold {
		return nil
	}
	if len(ranked) > 1 && top.Score-ranked[1].Score < r.margin {
		return nil
	}
	return &top
}

// Rank returns the top-k candidates by descending score, ties broken by
// declared-line distance to the error line, then lexicographic identifier.
// Self-matches and duplicates are removed. The result carries computed
// scores and is safe to report even when Resolve rejects.
func (r *Resolver) Rank(identifier string, errLine int, pool []Candidate) []Candidate {
	if identifier == "" || len(pool) == 0 {
		return nil
	}

	// Score, dropping self-matches: if the identifier were truly in scope
	// the error would not have been raised, and a self-replacement is a
	// guaranteed no-op.
	scored := make([]Candidate, 0, len(pool))
	seen := make(map[string]int) // identifier -> index in scored
	for _, c := range pool {
		if c.Identifier == "" || c.Identifier == identifier {
			continue
		}
		c.Score = r.scorer.Ratio(identifier, c.Identifier)
		if prev, ok := seen[c.Identifier]; ok {
			// Same identifier declared more than once: keep the declaration
			// closest to the error line.
			if lineDist(c.DeclaredLine, errLine) < lineDist(scored[prev].DeclaredLine, errLine) {
				scored[prev] = c
			}
			continue
		}
		seen[c.Identifier] = len(scored)
		scored = append(scored, c)
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		di := lineDist(scored[i].DeclaredLine, errLine)
		dj := lineDist(scored[j].DeclaredLine, errLine)
		if di != dj {
			return di < dj
		}
		return scored[i].Identifier < scored[j].Identifier
	})

	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}
	return scored
}

func lineDist(declared, errLine int) int {
	d := declared - errLine
	if d < 0 {
		d = -d
	}
	return d
}
