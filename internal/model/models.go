package model

import (
	"fmt"
	"math"
	"time"
)

// JobState is the lifecycle state of a matching job
type JobState string

const (
	StateCreated    JobState = "created"
	StateRunning    JobState = "running"
	StatePaused     JobState = "paused"
	StateCompleting JobState = "completing"
	StateCompleted  JobState = "completed"
	StateCancelling JobState = "cancelling"
	StateCancelled  JobState = "cancelled"
)

// Terminal reports whether no further transition is accepted from s
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Thresholds holds the classification boundaries.
// Invariant: 0 <= Low <= High <= 1.
type Thresholds struct {
	High float64 `json:"high_threshold"`
	Low  float64 `json:"low_threshold"`
}

// DefaultThresholds are the configurable defaults used when a job does not set its own
var DefaultThresholds = Thresholds{High: 0.85, Low: 0.60}

// Validate checks the threshold invariant
func (t Thresholds) Validate() error {
	if math.IsNaN(t.High) || math.IsNaN(t.Low) {
		return &ValidationError{Field: "thresholds", Reason: "thresholds must be numbers"}
	}
	if t.Low < 0 || t.High > 1 || t.Low > t.High {
		return &ValidationError{
			Field:  "thresholds",
			Reason: fmt.Sprintf("require 0 <= low <= high <= 1, got low=%v high=%v", t.Low, t.High),
		}
	}
	return nil
}

// Classify maps the best candidate of a query to its classification.
// This is the only place where scores turn into classifications.
func (t Thresholds) Classify(best *MatchCandidate) Classification {
	switch {
	case best == nil:
		return ClassNotFound
	case best.Score >= t.High:
		return ClassMatched
	case best.Score >= t.Low:
		return ClassPending
	default:
		return ClassNotFound
	}
}

// JobSpec is what a caller supplies when creating a job
type JobSpec struct {
	Name           string      `json:"name,omitempty"`
	CatalogVersion string      `json:"catalog_version,omitempty"` // empty pins the provider's current version
	Thresholds     *Thresholds `json:"thresholds,omitempty"`      // nil uses the controller defaults
	Concurrency    int         `json:"concurrency,omitempty"`     // 0 uses the controller default
}

// JobSummary is the listing view of a job
type JobSummary struct {
	JobID          string     `json:"job_id"`
	Name           string     `json:"name,omitempty"`
	State          JobState   `json:"state"`
	CatalogVersion string     `json:"catalog_version"`
	Thresholds     Thresholds `json:"thresholds"`
	Concurrency    int        `json:"concurrency"`
	TotalItems     int        `json:"total_items"`
	ProcessedCount int        `json:"processed_count"`
	CreatedAt      time.Time  `json:"created_at"`
}
