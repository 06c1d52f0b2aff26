package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/byteowlz/glean/internal/classify"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+[^\s<>"')\].,;:!?]`)

// FindURLs returns every http(s) URL in text, in order of appearance.
func FindURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// FollowPicker chooses which discovered URL to follow from a short preview.
// candidates is never empty.
type FollowPicker func(candidates []string) string

// PickLongest returns the longest URL, the first on ties.
func PickLongest(candidates []string) string {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}

// PickFirst follows the first URL found.
func PickFirst(candidates []string) string {
	return candidates[0]
}

// PickerFor maps a follow_strategy setting to a picker.
func PickerFor(name string) (FollowPicker, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "longest":
		return PickLongest, nil
	case "first":
		return PickFirst, nil
	default:
		return nil, fmt.Errorf("unknown follow strategy %q", name)
	}
}

// followCandidates drops the original URL, anything matching skip and
// anything on the same site as one of own, and removes duplicates.
func followCandidates(pool []string, original string, skip, own []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range pool {
		if u == original || seen[u] || containsAny(u, skip) {
			continue
		}
		if len(own) > 0 && classify.IsWalledGarden(u, own) {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
