package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"go-catmat-matcher/internal/model"
)

// run is the job's dispatcher. A worker slot is acquired before the next
// record is claimed, so a pause or cancel issued while every worker is busy
// stops further dispatch.
func (c *Controller) run(job *Job) {
	defer c.wg.Done()
	c.metrics.IncActiveJobs()
	defer c.metrics.DecActiveJobs()

	sem := semaphore.NewWeighted(int64(max(job.Concurrency, 1)))
	var workers sync.WaitGroup

	c.logger.Info("job dispatch started",
		slog.String("job_id", job.ID),
		slog.Int("workers", job.Concurrency))

	for {
		// never fails with a background context
		_ = sem.Acquire(context.Background(), 1)
		idx, ok := job.claim()
		if !ok {
			sem.Release(1)
			break
		}
		workers.Add(1)
		go func(rec model.MaterialRecord) {
			defer workers.Done()
			defer sem.Release(1)
			res, attempts := c.matchWithRetry(job, rec)
			ev := job.record(res, attempts, c.now().UTC())
			c.metrics.ObserveEvent(ev)
			c.logger.Debug("record processed",
				slog.String("job_id", job.ID),
				slog.Int("sequence_index", ev.SequenceIndex),
				slog.String("classification", string(ev.Classification)),
				slog.Bool("error", ev.Error))
		}(job.Records[idx])
	}
	workers.Wait()

	final := job.beginCompletion()
	if final == model.StateCompleted {
		c.metrics.ObserveTransition(model.StateCompleting)
	}
	c.seal(job, final)
}
