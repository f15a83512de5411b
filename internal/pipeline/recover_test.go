package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func persisted(t *testing.T, s *store.Store, jobID string, events int, state model.JobState) {
	t.Helper()
	require.Eventually(t, func() bool {
		evs, err := s.LoadEvents(context.Background(), jobID)
		if err != nil || len(evs) != events {
			return false
		}
		job, err := s.GetJob(context.Background(), jobID)
		return err == nil && job.State == state
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRecoverResumesUnfinishedJob(t *testing.T) {
	s := openStore(t)
	p1 := newScripted().gated()
	c1 := newTestController(t, p1, WithStore(s))

	jobID, err := c1.CreateJob(context.Background(), numbered(5), model.JobSpec{Concurrency: 1})
	require.NoError(t, err)
	require.NoError(t, c1.Start(jobID))

	waitStarted(t, p1, 1)
	p1.gate <- struct{}{}
	waitStarted(t, p1, 1)
	require.NoError(t, c1.Pause(jobID))
	p1.gate <- struct{}{}
	persisted(t, s, jobID, 2, model.StatePaused)

	// a second controller over the same database stands in for a restart
	p2 := newScripted()
	c2 := newTestController(t, p2, WithStore(s))
	n, err := c2.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	prog, err := c2.GetProgress(jobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePaused, prog.State)
	assert.Equal(t, 2, prog.ProcessedCount)

	require.NoError(t, c2.Resume(jobID))
	assert.Equal(t, model.StateCompleted, waitTerminal(t, c2, jobID))

	assert.Zero(t, p2.callsFor("item 0"))
	assert.Zero(t, p2.callsFor("item 1"))
	for _, text := range []string{"item 2", "item 3", "item 4"} {
		assert.Equal(t, 1, p2.callsFor(text))
	}

	part, err := c2.GetReviewPartition(jobID)
	require.NoError(t, err)
	assert.Equal(t, 5, part.Len())
	assert.Equal(t, "item 0", part.NotFound[0].RawDescription)

	persisted(t, s, jobID, 5, model.StateCompleted)
	evs, err := s.LoadEvents(context.Background(), jobID)
	require.NoError(t, err)
	seen := map[int]bool{}
	for i, ev := range evs {
		assert.Equal(t, i, ev.Seq)
		assert.False(t, seen[ev.SequenceIndex])
		seen[ev.SequenceIndex] = true
	}
}

func TestRecoverServesFinishedJobsReadOnly(t *testing.T) {
	s := openStore(t)
	p := newScripted()
	p.answers["item 1"] = []model.MatchCandidate{{CatalogID: "CAT-9", Score: 0.99}}
	c1 := newTestController(t, p, WithStore(s))

	jobID, err := c1.CreateJob(context.Background(), numbered(3), model.JobSpec{})
	require.NoError(t, err)
	require.NoError(t, c1.Start(jobID))
	waitTerminal(t, c1, jobID)
	persisted(t, s, jobID, 3, model.StateCompleted)

	c2 := newTestController(t, newScripted(), WithStore(s))
	n, err := c2.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	part, err := c2.GetReviewPartition(jobID)
	require.NoError(t, err)
	require.Len(t, part.Matched, 1)
	assert.Equal(t, "CAT-9", part.Matched[0].BestCandidate.CatalogID)
	assert.ErrorIs(t, c2.Resume(jobID), model.ErrInvalidStateTransition)

	events, err := c2.Subscribe(context.Background(), jobID, 0)
	require.NoError(t, err)
	count := 0
	for range events {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestRecoverWithoutStore(t *testing.T) {
	c := newTestController(t, newScripted())
	n, err := c.Recover(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConcurrentResumeAndCancelAfterRecover(t *testing.T) {
	s := openStore(t)
	p1 := newScripted().gated()
	c1 := newTestController(t, p1, WithStore(s))

	var jobIDs []string
	for range 20 {
		jobID, err := c1.CreateJob(context.Background(), numbered(6), model.JobSpec{Concurrency: 1})
		require.NoError(t, err)
		require.NoError(t, c1.Start(jobID))
		waitStarted(t, p1, 1)
		require.NoError(t, c1.Pause(jobID))
		p1.gate <- struct{}{}
		persisted(t, s, jobID, 1, model.StatePaused)
		jobIDs = append(jobIDs, jobID)
	}

	c2 := newTestController(t, newScripted(), WithStore(s))
	n, err := c2.Recover(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(jobIDs), n)

	for _, jobID := range jobIDs {
		var resumeErr, cancelErr error
		var wg sync.WaitGroup
		gate := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-gate
			resumeErr = c2.Resume(jobID)
		}()
		go func() {
			defer wg.Done()
			<-gate
			cancelErr = c2.Cancel(jobID)
		}()
		close(gate)
		wg.Wait()

		state := waitTerminal(t, c2, jobID)
		assert.Contains(t, []model.JobState{model.StateCancelled, model.StateCompleted}, state)
		if cancelErr == nil {
			assert.Equal(t, model.StateCancelled, state)
		}
		if resumeErr != nil {
			assert.ErrorIs(t, resumeErr, model.ErrInvalidStateTransition)
		}

		prog, err := c2.GetProgress(jobID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, prog.ProcessedCount, 1)
		assert.Equal(t, prog.ProcessedCount, prog.EventCount)
		part, err := c2.GetReviewPartition(jobID)
		require.NoError(t, err)
		assert.Equal(t, prog.ProcessedCount, part.Len())
	}
}

func TestRestoreKeepsSeqAheadOfStoredLog(t *testing.T) {
	job := newJob("j", numbered(3))
	job.restore([]model.ProcessingEvent{
		{Seq: 0, SequenceIndex: 0, Classification: model.ClassNotFound},
		{Seq: 1, SequenceIndex: 0, Classification: model.ClassNotFound}, // duplicate record
		{Seq: 2, SequenceIndex: 7, Classification: model.ClassNotFound}, // no such record
		{Seq: 3, SequenceIndex: 1, Classification: model.ClassNotFound},
	})
	require.Len(t, job.events, 2)
	assert.Equal(t, []int{2}, job.pending)

	ev := job.record(model.MatchResult{SequenceIndex: 2, Classification: model.ClassNotFound}, 1, time.Now())
	assert.Equal(t, 4, ev.Seq)

	assert.Equal(t, 1, job.position(1))
	assert.Equal(t, 1, job.position(3))
	assert.Equal(t, 2, job.position(4))
	assert.Equal(t, 3, job.position(5))
}

func TestRecoveredJobPersistsEventsPastSkippedRows(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	jobID := "restored"
	require.NoError(t, s.SaveJob(ctx, model.StoredJob{
		JobID:          jobID,
		CatalogVersion: "v1",
		Thresholds:     model.DefaultThresholds,
		Concurrency:    1,
		Records:        numbered(2),
		State:          model.StatePaused,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}))
	for _, ev := range []model.ProcessingEvent{
		{Seq: 0, SequenceIndex: 0, Classification: model.ClassNotFound, Attempts: 1},
		{Seq: 1, SequenceIndex: 0, Classification: model.ClassNotFound, Attempts: 1},
	} {
		require.NoError(t, s.AppendEvent(ctx, jobID, ev))
	}

	c := newTestController(t, newScripted(), WithStore(s))
	_, err := c.Recover(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Resume(jobID))
	assert.Equal(t, model.StateCompleted, waitTerminal(t, c, jobID))

	persisted(t, s, jobID, 3, model.StateCompleted)
	evs, err := s.LoadEvents(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, evs[2].Seq)
	assert.Equal(t, 1, evs[2].SequenceIndex)

	// resuming from the last seen seq skips the rows before it
	events, err := c.Subscribe(ctx, jobID, 2)
	require.NoError(t, err)
	var got []int
	for ev := range events {
		got = append(got, ev.Seq)
	}
	assert.Equal(t, []int{2}, got)
}
