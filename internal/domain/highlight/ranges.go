package highlight

import (
	"github.com/hilite-live/hilite/internal/tokenizer"
)

// topColor returns the color with the most votes in one token's bucket.
// Ties break to the lexicographically-first color so readers always agree.
func topColor(bucket map[string]string) string {
	counts := make(map[string]int, len(bucket))
	for _, color := range bucket {
		if color != "" {
			counts[color]++
		}
	}
	best := ""
	bestCount := 0
	for color, count := range counts {
		if count > bestCount || (count == bestCount && (best == "" || color < best)) {
			best = color
			bestCount = count
		}
	}
	return best
}

// dominantRanges run-length-encodes the per-token winning colors into the
// majority view shown to facilitators.
func dominantRanges(votes []map[string]string) []Range {
	var ranges []Range
	i := 0
	for i < len(votes) {
		color := topColor(votes[i])
		if color == "" {
			i++
			continue
		}
		j := i
		for j+1 < len(votes) && topColor(votes[j+1]) == color {
			j++
		}
		ranges = append(ranges, Range{Start: i, End: j, Color: color})
		i = j + 1
	}
	return ranges
}

// clientRanges run-length-encodes a single client's own votes. Break tokens
// split runs the way they split strokes; other clients' votes are ignored.
func clientRanges(tokens []string, votes []map[string]string, clientID string) []Range {
	var ranges []Range
	limit := min(len(tokens), len(votes))
	i := 0
	for i < limit {
		color := votes[i][clientID]
		if color == "" || tokenizer.IsBreak(tokens[i]) {
			i++
			continue
		}
		j := i + 1
		for j < limit && !tokenizer.IsBreak(tokens[j]) && votes[j][clientID] == color {
			j++
		}
		ranges = append(ranges, Range{Start: i, End: j - 1, Color: color})
		i = j
	}
	return ranges
}
