package model

import "time"

// ReviewPartition is the terminal split of a job's results handed to manual review.
// Each slice is ordered by SequenceIndex.
type ReviewPartition struct {
	JobID    string        `json:"job_id"`
	State    JobState      `json:"state"`
	Matched  []MatchResult `json:"matched"`
	Pending  []MatchResult `json:"pending"`
	NotFound []MatchResult `json:"not_found"`
}

// Len returns the number of results across all partitions
func (p ReviewPartition) Len() int {
	return len(p.Matched) + len(p.Pending) + len(p.NotFound)
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Format      string    `json:"format"` // "csv", "json", "xlsx"
	Path        string    `json:"path"`
	DownloadURL string    `json:"download_url,omitempty"`
	RecordCount int       `json:"record_count"`
	SizeBytes   int64     `json:"size_bytes"`
	Timestamp   time.Time `json:"timestamp"`
}

// StoredJob is the persisted form of a job used to rebuild it after a restart
type StoredJob struct {
	JobID          string           `json:"job_id"`
	Name           string           `json:"name,omitempty"`
	CatalogVersion string           `json:"catalog_version"`
	Thresholds     Thresholds       `json:"thresholds"`
	Concurrency    int              `json:"concurrency"`
	Records        []MaterialRecord `json:"records"`
	State          JobState         `json:"state"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ReviewSummary condenses a review partition into counts for reporting
type ReviewSummary struct {
	JobID            string   `json:"job_id"`
	State            JobState `json:"state"`
	Total            int      `json:"total"`
	Matched          int      `json:"matched"`
	Pending          int      `json:"pending"`
	NotFound         int      `json:"not_found"`
	Errors           int      `json:"errors"`
	MeanMatchedScore float64  `json:"mean_matched_score"`
}
