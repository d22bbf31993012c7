package grading

import "sort"

// RankEntry is one completed attempt in an assessment's population.
type RankEntry struct {
	SessionID   string  `json:"session_id"`
	UserID      string  `json:"user_id"`
	TotalScore  float64 `json:"total_score"`
	CompletedAt int64   `json:"completed_at"`
	Position    int     `json:"rank_position"`
	Percentile  float64 `json:"percentile"`
}

// Rank orders completed attempts by total score descending, tie-broken by
// earlier completion, and fills 1-based positions and percentiles. Percentile
// is the share of strictly lower-scoring attempts, so tied attempts share the
// same percentile even though their positions differ.
//
// Computed at read time over the full population: maintaining it
// incrementally would rewrite every other taker's percentile on each new
// submission.
func Rank(entries []RankEntry) []RankEntry {
	out := make([]RankEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].CompletedAt < out[j].CompletedAt
	})
	n := len(out)
	for i := range out {
		out[i].Position = i + 1
		lower := 0
		for j := range out {
			if out[j].TotalScore < out[i].TotalScore {
				lower++
			}
		}
		out[i].Percentile = float64(lower) / float64(n) * 100
	}
	return out
}

// RankOf finds a session's entry in a ranked population.
func RankOf(ranked []RankEntry, sessionID string) (RankEntry, bool) {
	for _, e := range ranked {
		if e.SessionID == sessionID {
			return e, true
		}
	}
	return RankEntry{}, false
}
