package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"go-catmat-matcher/internal/model"
)

// ValidateRecords checks a job's input and returns it ordered by sequence
// index. Indexes must be unique and cover 0..n-1.
func ValidateRecords(records []model.MaterialRecord) ([]model.MaterialRecord, error) {
	if len(records) == 0 {
		return nil, &model.ValidationError{Field: "records", Reason: "input sequence is empty"}
	}
	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, func(a, b model.MaterialRecord) int {
		return a.SequenceIndex - b.SequenceIndex
	})
	for i, rec := range ordered {
		if rec.SequenceIndex != i {
			return nil, &model.ValidationError{
				Field:  "records",
				Reason: fmt.Sprintf("sequence indexes must be unique and contiguous from 0, found %d at position %d", rec.SequenceIndex, i),
			}
		}
		if strings.TrimSpace(rec.RawDescription) == "" {
			return nil, &model.ValidationError{
				Field:  fmt.Sprintf("records[%d].description", i),
				Reason: "must not be empty",
			}
		}
	}
	return ordered, nil
}
