// Package fuzzy implements the partial-ratio similarity used to line up
// free-text vehicle context with reference table keys.
package fuzzy

import "github.com/WessleyAI/wessley-parts/pkg/textnorm"

// KeyThreshold is the minimum partial ratio for BestKey to accept a key.
const KeyThreshold = 80

// Ratio is the normalized indel similarity of a and b in [0, 100].
func Ratio(a, b string) float64 {
	return ratio([]rune(a), []rune(b))
}

// PartialRatio scores how well the shorter string aligns with any substring
// of the longer one, in [0, 100]. Comparison is case-sensitive; an empty
// operand scores 0.
func PartialRatio(a, b string) float64 {
	s1, s2 := []rune(a), []rune(b)
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}
	if len(s1) > len(s2) {
		s1, s2 = s2, s1
	}
	best := partial(s1, s2)
	if len(s1) == len(s2) && best < 100 {
		if alt := partial(s2, s1); alt > best {
			best = alt
		}
	}
	return best
}

// partial slides needle across hay, including the clipped windows at both
// edges. len(needle) <= len(hay).
func partial(needle, hay []rune) float64 {
	n, m := len(needle), len(hay)
	best := 0.0
	score := func(window []rune) bool {
		if r := ratio(needle, window); r > best {
			best = r
		}
		return best == 100
	}
	for i := 0; i+n <= m; i++ {
		if score(hay[i : i+n]) {
			return best
		}
	}
	for i := 1; i < n; i++ {
		if score(hay[:i]) || score(hay[m-i:]) {
			return best
		}
	}
	return best
}

func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*lcs(a, b)) / float64(total)
}

// lcs is the length of the longest common subsequence of a and b.
func lcs(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// BestKey picks the key that best matches target. The highest partial ratio
// wins (first key on ties) when it reaches KeyThreshold; otherwise a key
// equal to target after normalization is returned; otherwise no match.
func BestKey(keys []string, target string) (string, bool) {
	if len(keys) == 0 || target == "" {
		return "", false
	}
	bestKey, bestScore := "", -1.0
	for _, k := range keys {
		if s := PartialRatio(target, k); s > bestScore {
			bestKey, bestScore = k, s
		}
	}
	if bestScore >= KeyThreshold {
		return bestKey, true
	}
	want := textnorm.Normalize(target)
	for _, k := range keys {
		if textnorm.Normalize(k) == want {
			return k, true
		}
	}
	return "", false
}
