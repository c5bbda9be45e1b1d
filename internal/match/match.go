// package match resolves user-supplied name fragments to playlists.
//
// Matching is two-pass: subsequence scoring via [fuzzy.Find] for the
// common abbreviation case, then a windowed edit-distance fallback for
// fragments whose letters don't all appear in the target (e.g. "xmas"
// against "Christmas Songs"). Ambiguity is always surfaced to the
// caller; this package never auto-selects between close candidates.
package match

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Kind classifies a resolution outcome.
type Kind int

const (
	// None means no candidate came close to the fragment.
	None Kind = iota
	// Unique means exactly one candidate is clearly the best.
	Unique
	// Ambiguous means several candidates are equally plausible and the
	// caller must obtain explicit confirmation.
	Ambiguous
)

// Match is the outcome of resolving a fragment against candidates.
// Name is set for Unique; Candidates holds the ranked close matches
// for Ambiguous (best first).
type Match struct {
	Kind       Kind
	Name       string
	Candidates []string
}

type scored struct {
	name     string
	score    int // higher is better
	distance int // whole-string edit distance, lower is better
}

// Resolve matches fragment against candidates.
func Resolve(fragment string, candidates []string) Match {
	if fragment == "" || len(candidates) == 0 {
		return Match{Kind: None}
	}

	// exact (case-insensitive) names win outright
	for _, name := range candidates {
		if strings.EqualFold(name, fragment) {
			return Match{Kind: Unique, Name: name}
		}
	}

	if m := resolveSubsequence(fragment, candidates); m.Kind != None {
		return m
	}

	return resolveApproximate(fragment, candidates)
}

func resolveSubsequence(fragment string, candidates []string) Match {
	results := fuzzy.Find(fragment, candidates)
	if len(results) == 0 {
		return Match{Kind: None}
	}

	ranked := make([]scored, len(results))
	for i, res := range results {
		ranked[i] = scored{
			name:     res.Str,
			score:    res.Score,
			distance: levenshtein(strings.ToLower(fragment), strings.ToLower(res.Str)),
		}
	}
	return decide(ranked)
}

// resolveApproximate scores each candidate by the best edit distance
// between the fragment and any same-length window of the candidate.
func resolveApproximate(fragment string, candidates []string) Match {
	frag := strings.ToLower(fragment)
	// beyond this many edits the fragment is considered unrelated
	threshold := (len(frag) + 1) / 2

	var ranked []scored
	for _, name := range candidates {
		d := windowDistance(frag, strings.ToLower(name))
		if d > threshold {
			continue
		}
		ranked = append(ranked, scored{
			name:     name,
			score:    -d,
			distance: levenshtein(frag, strings.ToLower(name)),
		})
	}
	return decide(ranked)
}

// decide turns ranked candidates into a Match. A strictly best score
// is Unique; a tie at the top is Ambiguous with candidates ordered by
// score, then edit distance, then lexically.
func decide(ranked []scored) Match {
	if len(ranked) == 0 {
		return Match{Kind: None}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}
		return ranked[i].name < ranked[j].name
	})

	if len(ranked) == 1 || ranked[0].score > ranked[1].score {
		return Match{Kind: Unique, Name: ranked[0].name}
	}

	names := make([]string, len(ranked))
	for i, s := range ranked {
		names[i] = s.name
	}
	return Match{Kind: Ambiguous, Candidates: names}
}

// windowDistance returns the minimum edit distance between frag and
// any window of name spanning the same number of runes as frag.
func windowDistance(frag, name string) int {
	rf, rn := []rune(frag), []rune(name)
	if len(rn) <= len(rf) {
		return levenshtein(frag, name)
	}
	best := len(rf)
	for i := 0; i+len(rf) <= len(rn); i++ {
		if d := levenshtein(frag, string(rn[i:i+len(rf)])); d < best {
			best = d
		}
	}
	return best
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
