package model

// JobStats is the running aggregate of a job's events.
// Invariant: Processed = Matched + Pending + NotFound = number of events.
type JobStats struct {
	ProcessedCount int `json:"processed_count"`
	MatchedCount   int `json:"matched_count"`
	PendingCount   int `json:"pending_count"`
	NotFoundCount  int `json:"not_found_count"`
	ErrorCount     int `json:"error_count"` // subset of NotFoundCount
}

// Add folds one event into the stats
func (s *JobStats) Add(ev ProcessingEvent) {
	s.ProcessedCount++
	switch ev.Classification {
	case ClassMatched:
		s.MatchedCount++
	case ClassPending:
		s.PendingCount++
	default:
		s.NotFoundCount++
	}
	if ev.Error {
		s.ErrorCount++
	}
}

// FoldStats recomputes stats from an event sequence
func FoldStats(events []ProcessingEvent) JobStats {
	var s JobStats
	for _, ev := range events {
		s.Add(ev)
	}
	return s
}

// Progress is the point-in-time view returned by progress queries
type Progress struct {
	JobID          string   `json:"job_id"`
	State          JobState `json:"state"`
	TotalItems     int      `json:"total_items"`
	ProcessedCount int      `json:"processed_count"`
	MatchedCount   int      `json:"matched_count"`
	PendingCount   int      `json:"pending_count"`
	NotFoundCount  int      `json:"not_found_count"`
	ErrorCount     int      `json:"error_count"`
	EventCount     int      `json:"event_count"`
	Percent        float64  `json:"percent"`
}

// NewProgress builds a progress view from folded stats
func NewProgress(jobID string, state JobState, total int, stats JobStats, eventCount int) Progress {
	p := Progress{
		JobID:          jobID,
		State:          state,
		TotalItems:     total,
		ProcessedCount: stats.ProcessedCount,
		MatchedCount:   stats.MatchedCount,
		PendingCount:   stats.PendingCount,
		NotFoundCount:  stats.NotFoundCount,
		ErrorCount:     stats.ErrorCount,
		EventCount:     eventCount,
	}
	if total > 0 {
		p.Percent = float64(stats.ProcessedCount) * 100 / float64(total)
	}
	return p
}
