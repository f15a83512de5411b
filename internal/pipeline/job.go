package pipeline

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"go-catmat-matcher/internal/matcher"
	"go-catmat-matcher/internal/model"
)

// Job is one batch of material records matched against a pinned catalog version.
// Its mutable state is only changed through the methods below, all of which
// hold mu; readers get copies.
type Job struct {
	ID             string
	Name           string
	CatalogVersion string
	Thresholds     model.Thresholds
	Concurrency    int
	Records        []model.MaterialRecord // Records[i].SequenceIndex == i
	CreatedAt      time.Time

	matcher *matcher.Matcher

	mu          sync.RWMutex
	cond        *sync.Cond // signalled on pause/resume/cancel, uses mu
	state       model.JobState
	stats       model.JobStats
	events      []model.ProcessingEvent // Seq strictly increasing, not always equal to the position
	nextSeq     int
	results     map[int]model.MatchResult
	pending     []int // sequence indexes without a result, in dispatch order
	next        int   // position in pending of the next record to dispatch
	inFlight    int
	dispatching bool
	changed     chan struct{} // closed and replaced on every append or state change
	partition   *model.ReviewPartition
	done        chan struct{}
}

func newJob(id string, records []model.MaterialRecord) *Job {
	j := &Job{
		ID:      id,
		Records: records,
		state:   model.StateCreated,
		results: make(map[int]model.MatchResult, len(records)),
		pending: make([]int, 0, len(records)),
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	j.cond = sync.NewCond(&j.mu)
	for i := range records {
		j.pending = append(j.pending, i)
	}
	return j
}

// restore replays persisted events into a fresh job. Caller must not have
// published the job yet.
func (j *Job) restore(events []model.ProcessingEvent) {
	for _, ev := range events {
		// skipped rows still hold their seq in the store
		if ev.Seq < j.nextSeq {
			continue
		}
		j.nextSeq = ev.Seq + 1
		if _, dup := j.results[ev.SequenceIndex]; dup || ev.SequenceIndex < 0 || ev.SequenceIndex >= len(j.Records) {
			continue
		}
		j.events = append(j.events, ev)
		j.results[ev.SequenceIndex] = j.resultFor(ev)
		j.stats.Add(ev)
	}
	j.pending = j.pending[:0]
	for i := range j.Records {
		if _, ok := j.results[i]; !ok {
			j.pending = append(j.pending, i)
		}
	}
	j.next = 0
}

func (j *Job) resultFor(ev model.ProcessingEvent) model.MatchResult {
	res := ev.Result()
	res.RawDescription = j.Records[ev.SequenceIndex].RawDescription
	return res
}

// notify wakes every subscriber. Caller must hold mu.
func (j *Job) notify() {
	close(j.changed)
	j.changed = make(chan struct{})
}

// State returns the current lifecycle state
func (j *Job) State() model.JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Done is closed once the job reaches a terminal state
func (j *Job) Done() <-chan struct{} { return j.done }

// transition moves the job from one of the allowed states to next
func (j *Job) transition(op string, next model.JobState, allowed ...model.JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(op, next, allowed...)
}

func (j *Job) transitionLocked(op string, next model.JobState, allowed ...model.JobState) error {
	if !slices.Contains(allowed, j.state) {
		return &model.InvalidStateTransitionError{JobID: j.ID, From: j.state, Op: op}
	}
	j.state = next
	j.cond.Broadcast()
	j.notify()
	return nil
}

// begin moves the job to running and claims the dispatcher in the same
// critical section, so a Cancel that observes running also observes the
// dispatcher. It reports whether the caller must start the dispatcher.
func (j *Job) begin(op string, allowed ...model.JobState) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(op, model.StateRunning, allowed...); err != nil {
		return false, err
	}
	if j.dispatching {
		return false, nil
	}
	j.dispatching = true
	return true, nil
}

// claim hands out the next record to dispatch. It blocks while the job is
// paused and returns false in any state other than running or paused, or
// when nothing is left.
func (j *Job) claim() (int, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for {
		switch {
		case j.state != model.StateRunning && j.state != model.StatePaused:
			return 0, false
		case j.next >= len(j.pending):
			return 0, false
		case j.state == model.StatePaused:
			j.cond.Wait()
		default:
			idx := j.pending[j.next]
			j.next++
			j.inFlight++
			return idx, true
		}
	}
}

// record appends the event for a finished record and folds it into the stats
// in the same critical section.
func (j *Job) record(res model.MatchResult, attempts int, at time.Time) model.ProcessingEvent {
	j.mu.Lock()
	defer j.mu.Unlock()

	ev := model.ProcessingEvent{
		Seq:            j.nextSeq,
		EmittedAt:      at,
		SequenceIndex:  res.SequenceIndex,
		Classification: res.Classification,
		BestCandidate:  res.BestCandidate,
		Error:          res.Error,
		ErrorMessage:   res.ErrorMessage,
		Attempts:       attempts,
	}
	j.nextSeq++
	j.events = append(j.events, ev)
	j.results[res.SequenceIndex] = res
	j.stats.Add(ev)
	j.inFlight--
	j.notify()
	return ev
}

// beginCompletion moves a drained job to its closing state and reports the
// terminal state it is heading for.
func (j *Job) beginCompletion() model.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.dispatching = false
	if j.state.Terminal() {
		return j.state
	}
	if j.state == model.StateCancelling {
		return model.StateCancelled
	}
	j.state = model.StateCompleting
	j.notify()
	return model.StateCompleted
}

// seal snapshots the review partition and enters the terminal state. It
// reports false, changing nothing, when the job was already sealed.
func (j *Job) seal(final model.JobState) (model.ReviewPartition, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.partition != nil {
		return *j.partition, false
	}
	p := Partition(j.ID, final, j.results)
	j.partition = &p
	j.state = final
	j.cond.Broadcast()
	j.notify()
	close(j.done)
	return p, true
}

// position returns the index in the log of the first event with Seq >= seq
func (j *Job) position(seq int) int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	i, _ := slices.BinarySearchFunc(j.events, seq, func(ev model.ProcessingEvent, seq int) int {
		return ev.Seq - seq
	})
	return i
}

// changes returns the events after cursor together with the state observed
// at the same instant, and a channel closed on the next change.
func (j *Job) changes(cursor int) ([]model.ProcessingEvent, model.JobState, <-chan struct{}) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var batch []model.ProcessingEvent
	if cursor < len(j.events) {
		batch = slices.Clone(j.events[max(cursor, 0):])
	}
	return batch, j.state, j.changed
}

// progress reads stats and event count under one lock
func (j *Job) progress() model.Progress {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return model.NewProgress(j.ID, j.state, len(j.Records), j.stats, len(j.events))
}

func (j *Job) reviewPartition() (model.ReviewPartition, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if !j.state.Terminal() || j.partition == nil {
		return model.ReviewPartition{}, fmt.Errorf("%w: job %s is %s", model.ErrJobNotTerminal, j.ID, j.state)
	}
	p := *j.partition
	p.Matched = slices.Clone(p.Matched)
	p.Pending = slices.Clone(p.Pending)
	p.NotFound = slices.Clone(p.NotFound)
	return p, nil
}

func (j *Job) summary() model.JobSummary {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return model.JobSummary{
		JobID:          j.ID,
		Name:           j.Name,
		State:          j.state,
		CatalogVersion: j.CatalogVersion,
		Thresholds:     j.Thresholds,
		Concurrency:    j.Concurrency,
		TotalItems:     len(j.Records),
		ProcessedCount: j.stats.ProcessedCount,
		CreatedAt:      j.CreatedAt,
	}
}

// allRecorded reports whether every record has a result
func (j *Job) allRecorded() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.results) == len(j.Records)
}
