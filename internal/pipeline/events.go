package pipeline

import (
	"context"
	"iter"
	"log/slog"

	"go-catmat-matcher/internal/model"
)

// Subscribe returns the job's events with Seq >= from. Each
// subscriber reads the shared log at its own pace; the sequence ends once
// the job is terminal and every event was delivered, or when ctx ends.
func (c *Controller) Subscribe(ctx context.Context, jobID string, from int) (iter.Seq[model.ProcessingEvent], error) {
	job, err := c.job(jobID)
	if err != nil {
		return nil, err
	}
	if from < 0 {
		from = 0
	}
	return func(yield func(model.ProcessingEvent) bool) {
		cursor := job.position(from)
		for {
			batch, state, wait := job.changes(cursor)
			for _, ev := range batch {
				if !yield(ev) {
					return
				}
				cursor++
			}
			if len(batch) > 0 {
				continue
			}
			if state.Terminal() {
				return
			}
			select {
			case <-wait:
			case <-ctx.Done():
				return
			}
		}
	}, nil
}

// follow calls fn for every batch of new events together with the state seen
// alongside it, until the job is terminal. The final call carries the
// terminal state.
func (j *Job) follow(cursor int, fn func(batch []model.ProcessingEvent, state model.JobState)) {
	for {
		batch, state, wait := j.changes(cursor)
		cursor += len(batch)
		fn(batch, state)
		if state.Terminal() {
			return
		}
		<-wait
	}
}

// persist is the single writer of a job's events and state to the store
func (c *Controller) persist(job *Job, cursor int, last model.JobState) {
	defer c.wg.Done()
	ctx := context.Background()
	job.follow(cursor, func(batch []model.ProcessingEvent, state model.JobState) {
		for _, ev := range batch {
			if err := c.store.AppendEvent(ctx, job.ID, ev); err != nil {
				c.logger.Error("failed to persist event",
					slog.String("job_id", job.ID),
					slog.Int("seq", ev.Seq),
					slog.Any("error", err))
			}
		}
		if state == last {
			return
		}
		if err := c.store.UpdateJobStatus(ctx, job.ID, state); err != nil {
			c.logger.Error("failed to persist job status", slog.String("job_id", job.ID), slog.Any("error", err))
			return
		}
		last = state
	})
}

// forward relays events, progress and the final partition to the publisher
func (c *Controller) forward(job *Job, cursor int) {
	defer c.wg.Done()
	job.follow(cursor, func(batch []model.ProcessingEvent, state model.JobState) {
		for _, ev := range batch {
			if err := c.publisher.PublishEvent(job.ID, ev); err != nil {
				c.logger.Warn("failed to publish event", slog.String("job_id", job.ID), slog.Any("error", err))
			}
		}
		if len(batch) > 0 || state.Terminal() {
			if err := c.publisher.PublishProgress(job.progress()); err != nil {
				c.logger.Warn("failed to publish progress", slog.String("job_id", job.ID), slog.Any("error", err))
			}
		}
		if !state.Terminal() {
			return
		}
		p, err := job.reviewPartition()
		if err != nil {
			return
		}
		if err := c.publisher.PublishReview(p); err != nil {
			c.logger.Warn("failed to publish review", slog.String("job_id", job.ID), slog.Any("error", err))
		}
	})
}
