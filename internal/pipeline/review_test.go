package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-catmat-matcher/internal/model"
)

func TestPartitionOrdersEachGroup(t *testing.T) {
	results := map[int]model.MatchResult{
		4: {SequenceIndex: 4, Classification: model.ClassMatched, BestCandidate: &model.MatchCandidate{CatalogID: "A", Score: 0.9}},
		0: {SequenceIndex: 0, Classification: model.ClassMatched, BestCandidate: &model.MatchCandidate{CatalogID: "B", Score: 1}},
		2: {SequenceIndex: 2, Classification: model.ClassPending},
		3: {SequenceIndex: 3, Classification: model.ClassNotFound, Error: true},
		1: {SequenceIndex: 1, Classification: model.ClassNotFound},
	}

	p := Partition("job", model.StateCompleted, results)
	assert.Equal(t, 5, p.Len())

	idx := func(rs []model.MatchResult) []int {
		out := []int{}
		for _, r := range rs {
			out = append(out, r.SequenceIndex)
		}
		return out
	}
	assert.Equal(t, []int{0, 4}, idx(p.Matched))
	assert.Equal(t, []int{2}, idx(p.Pending))
	assert.Equal(t, []int{1, 3}, idx(p.NotFound))

	s := Summarize(p)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Matched)
	assert.Equal(t, 1, s.Errors)
	assert.InDelta(t, 0.95, s.MeanMatchedScore, 1e-9)
}

func TestPartitionOfNothing(t *testing.T) {
	p := Partition("job", model.StateCancelled, nil)
	assert.Zero(t, p.Len())
	assert.NotNil(t, p.Pending)
	assert.Zero(t, Summarize(p).MeanMatchedScore)
}
