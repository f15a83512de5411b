package model

import "time"

// Classification is the three-way outcome of matching one material record
type Classification string

const (
	ClassMatched  Classification = "matched"
	ClassPending  Classification = "pending"
	ClassNotFound Classification = "not_found"
)

// Valid reports whether c is one of the three known classifications
func (c Classification) Valid() bool {
	switch c {
	case ClassMatched, ClassPending, ClassNotFound:
		return true
	}
	return false
}

// MaterialRecord represents a single row from the source spreadsheet
type MaterialRecord struct {
	SequenceIndex  int    `json:"sequence_index"`  // 0-based position in the source file
	RawDescription string `json:"raw_description"` // free text, never empty
	Quantity       string `json:"quantity,omitempty"`
	Unit           string `json:"unit,omitempty"`
}

// CatalogEntry is one canonical CATMAT item
type CatalogEntry struct {
	CatalogID            string `json:"catalog_id"`
	CanonicalDescription string `json:"canonical_description"`
}

// MatchCandidate is one ranked hit returned by a catalog query
type MatchCandidate struct {
	CatalogID   string  `json:"catalog_id"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// MatchResult is the outcome for one MaterialRecord.
// BestCandidate is nil iff Classification is ClassNotFound.
type MatchResult struct {
	SequenceIndex  int             `json:"sequence_index"`
	RawDescription string          `json:"raw_description"`
	Classification Classification  `json:"classification"`
	BestCandidate  *MatchCandidate `json:"best_candidate,omitempty"`
	Error          bool            `json:"error,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// ProcessingEvent is one entry of a job's append-only audit log
type ProcessingEvent struct {
	Seq            int             `json:"seq"` // strictly increasing within a job
	EmittedAt      time.Time       `json:"emitted_at"`
	SequenceIndex  int             `json:"sequence_index"`
	Classification Classification  `json:"classification"`
	BestCandidate  *MatchCandidate `json:"best_candidate,omitempty"`
	Error          bool            `json:"error,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Attempts       int             `json:"attempts"`
}

// Result rebuilds the MatchResult an event was emitted for.
// The raw description is not part of the event and must be filled by the caller.
func (e ProcessingEvent) Result() MatchResult {
	return MatchResult{
		SequenceIndex:  e.SequenceIndex,
		Classification: e.Classification,
		BestCandidate:  e.BestCandidate,
		Error:          e.Error,
		ErrorMessage:   e.ErrorMessage,
	}
}
