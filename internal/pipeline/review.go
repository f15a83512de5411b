package pipeline

import (
	"slices"

	"go-catmat-matcher/internal/model"
)

// Partition splits results by classification. Each group is ordered by
// sequence index and every slice is non-nil.
func Partition(jobID string, state model.JobState, results map[int]model.MatchResult) model.ReviewPartition {
	p := model.ReviewPartition{
		JobID:    jobID,
		State:    state,
		Matched:  []model.MatchResult{},
		Pending:  []model.MatchResult{},
		NotFound: []model.MatchResult{},
	}
	keys := make([]int, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		res := results[k]
		switch res.Classification {
		case model.ClassMatched:
			p.Matched = append(p.Matched, res)
		case model.ClassPending:
			p.Pending = append(p.Pending, res)
		default:
			p.NotFound = append(p.NotFound, res)
		}
	}
	return p
}
