package pipeline

import "go-catmat-matcher/internal/model"

// Summarize counts a partition per classification
func Summarize(p model.ReviewPartition) model.ReviewSummary {
	s := model.ReviewSummary{
		JobID:    p.JobID,
		State:    p.State,
		Total:    p.Len(),
		Matched:  len(p.Matched),
		Pending:  len(p.Pending),
		NotFound: len(p.NotFound),
	}
	var scoreSum float64
	for _, res := range p.Matched {
		if res.BestCandidate != nil {
			scoreSum += res.BestCandidate.Score
		}
	}
	if s.Matched > 0 {
		s.MeanMatchedScore = scoreSum / float64(s.Matched)
	}
	for _, group := range [][]model.MatchResult{p.Matched, p.Pending, p.NotFound} {
		for _, res := range group {
			if res.Error {
				s.Errors++
			}
		}
	}
	return s
}
