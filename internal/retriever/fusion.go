package retriever

import "sort"

// DefaultRRFConstant is the Reciprocal Rank Fusion smoothing constant.
const DefaultRRFConstant = 60

// fuseRRF merges ranked frame lists: score(d) = Σ 1/(k + rank_i(d)) with
// 1-based ranks. Ties go to the frame with the better single-list rank, then
// the lower frame number.
func fuseRRF(k int, lists ...[]int) []int {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	type entry struct {
		frame    int
		score    float64
		bestRank int
	}
	byFrame := make(map[int]*entry)
	for _, list := range lists {
		for i, frame := range list {
			rank := i + 1
			e, ok := byFrame[frame]
			if !ok {
				e = &entry{frame: frame, bestRank: rank}
				byFrame[frame] = e
			}
			e.score += 1.0 / float64(k+rank)
			e.bestRank = min(e.bestRank, rank)
		}
	}

	entries := make([]*entry, 0, len(byFrame))
	for _, e := range byFrame {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		return a.frame < b.frame
	})

	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.frame
	}
	return out
}
