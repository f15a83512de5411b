package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go-catmat-matcher/internal/model"
)

// matchWithRetry runs the job's matcher for one record. Failed lookups are
// retried with exponential backoff; once attempts are exhausted the record
// is reported as not_found with the error flag set.
func (c *Controller) matchWithRetry(job *Job, rec model.MaterialRecord) (model.MatchResult, int) {
	cfg := c.defaults.Retry
	maxAttempts := max(cfg.MaxAttempts, 1)

	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		start := time.Now()
		res, err := job.matcher.Match(c.ctx, rec)
		c.metrics.ObserveLookup(time.Since(start), err)
		if err == nil {
			return res, attempt
		}
		lastErr = err
		c.logger.Warn("catalog lookup failed",
			slog.String("job_id", job.ID),
			slog.Int("sequence_index", rec.SequenceIndex),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Any("error", err))

		if attempt == maxAttempts || !c.backoff(cfg.Delay(attempt)) {
			break
		}
		c.metrics.IncRetry()
	}

	c.saveError(job.ID, lastErr)
	return model.MatchResult{
		SequenceIndex:  rec.SequenceIndex,
		RawDescription: rec.RawDescription,
		Classification: model.ClassNotFound,
		Error:          true,
		ErrorMessage:   lastErr.Error(),
	}, attempt
}

// backoff sleeps for d and returns false if the controller shut down first
func (c *Controller) backoff(d time.Duration) bool {
	if d <= 0 {
		return c.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Controller) saveError(jobID string, err error) {
	if c.store == nil || err == nil {
		return
	}
	if serr := c.store.SaveJobError(context.Background(), jobID, err); serr != nil {
		c.logger.Error("failed to persist job error", slog.String("job_id", jobID), slog.Any("error", serr))
	}
}
