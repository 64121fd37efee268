// Package suggest finds near matches for a mistyped project slug using
// Levenshtein distance.
package suggest

import (
	"sort"
	"strings"
)

// maxSuggestions caps how many candidates are returned.
const maxSuggestions = 3

// distance is the edit distance between a and b, counted in bytes.
// Slugs are ASCII so byte and rune counts agree.
func distance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Slugs returns up to three known slugs close to unknown, best first.
// A candidate qualifies within 3 edits or half the input length, or when
// one string contains the other.
func Slugs(unknown string, known []string) []string {
	unknown = strings.ToLower(strings.TrimSpace(unknown))
	if unknown == "" {
		return nil
	}

	type scored struct {
		slug string
		dist int
	}
	var candidates []scored
	limit := max(3, len(unknown)/2)
	for _, k := range known {
		d := distance(unknown, k)
		if strings.Contains(k, unknown) || strings.Contains(unknown, k) {
			d = min(d, 1)
		}
		if d <= limit {
			candidates = append(candidates, scored{k, d})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	var out []string
	for i := 0; i < len(candidates) && i < maxSuggestions; i++ {
		out = append(out, candidates[i].slug)
	}
	return out
}
