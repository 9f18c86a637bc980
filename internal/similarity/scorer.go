// Package similarity scores identifier pairs and selects repair candidates.
package similarity

// Scorer computes a normalized similarity ratio between two strings.
// The ratio is 2*M/T, where M is the total number of matched characters
// after alignment and T is the combined length of both strings. 1.0 means
// identical, 0.0 means no characters in common.
//
// Implementations must be behaviorally identical; NewScorer may pick a
// faster one when available, with no observable difference beyond speed.
type Scorer interface {
	Ratio(a, b string) float64
}

// NewScorer returns the fastest available Scorer implementation.
func NewScorer() Scorer {
	return sequenceScorer{}
}

// sequenceScorer is the portable reference implementation. It aligns the
// two strings by repeatedly taking the longest common block, the classic
// sequence-matcher approach.
type sequenceScorer struct{}

func (sequenceScorer) Ratio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}

	// Positions of each rune in b, for O(1) candidate lookup.
	b2j := make(map[rune][]int, len(rb))
	for j, r := range rb {
		b2j[r] = append(b2j[r], j)
	}

	matched := matchingTotal(ra, b2j, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matched) / float64(total)
}

// matchingTotal sums matched characters over the recursive alignment:
// find the longest matching block in the window, then recurse on the
// regions to its left and right.
func matchingTotal(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) int {
	besti, bestj, bestsize := longestMatch(a, b2j, alo, ahi, blo, bhi)
	if bestsize == 0 {
		return 0
	}
	total := bestsize
	total += matchingTotal(a, b2j, alo, besti, blo, bestj)
	total += matchingTotal(a, b2j, besti+bestsize, ahi, bestj+bestsize, bhi)
	return total
}

// longestMatch finds the longest block such that
// a[i:i+size] == b[j:j+size] within the given windows. Among equally long
// blocks it prefers the one starting earliest in a, then earliest in b.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo

	// j2len[j] is the length of the longest match ending at a[i-1], b[j].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
