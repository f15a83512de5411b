package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-catmat-matcher/internal/catalog"
	"go-catmat-matcher/internal/matcher"
	"go-catmat-matcher/internal/model"
)

// JobStore persists jobs and their event logs
type JobStore interface {
	SaveJob(ctx context.Context, job model.StoredJob) error
	UpdateJobStatus(ctx context.Context, jobID string, state model.JobState) error
	AppendEvent(ctx context.Context, jobID string, ev model.ProcessingEvent) error
	SaveJobError(ctx context.Context, jobID string, err error) error
	ListJobs(ctx context.Context) ([]model.StoredJob, error)
	LoadEvents(ctx context.Context, jobID string) ([]model.ProcessingEvent, error)
}

// Publisher forwards job activity to an external bus
type Publisher interface {
	PublishEvent(jobID string, ev model.ProcessingEvent) error
	PublishProgress(p model.Progress) error
	PublishReview(p model.ReviewPartition) error
}

// Defaults are applied to jobs that do not override them
type Defaults struct {
	Workers       int
	MaxCandidates int
	MatchTimeout  time.Duration
	Retry         model.RetryConfig
	Thresholds    model.Thresholds
}

var DefaultSettings = Defaults{
	Workers:       4,
	MaxCandidates: 5,
	MatchTimeout:  10 * time.Second,
	Retry:         model.DefaultRetryConfig,
	Thresholds:    model.DefaultThresholds,
}

type Option func(*Controller)

func WithStore(s JobStore) Option { return func(c *Controller) { c.store = s } }

func WithPublisher(p Publisher) Option { return func(c *Controller) { c.publisher = p } }

func WithMetrics(m *Metrics) Option { return func(c *Controller) { c.metrics = m } }

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithDefaults(d Defaults) Option { return func(c *Controller) { c.defaults = d } }

// Controller owns every job and drives their lifecycle
type Controller struct {
	provider  catalog.Provider
	store     JobStore
	publisher Publisher
	metrics   *Metrics
	logger    *slog.Logger
	defaults  Defaults
	now       func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job

	// held for reading by anything that adds to wg
	lifeMu sync.RWMutex
	closed bool

	ctx    context.Context // bounds lookups and backoff; cancelled by Close
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller matching against provider
func NewController(provider catalog.Provider, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		provider: provider,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaults: DefaultSettings,
		now:      time.Now,
		jobs:     make(map[string]*Job),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaults.Workers <= 0 {
		c.defaults.Workers = DefaultSettings.Workers
	}
	return c
}

// CreateJob validates the input and registers a job in the created state.
// Nothing is registered when validation fails.
func (c *Controller) CreateJob(ctx context.Context, records []model.MaterialRecord, spec model.JobSpec) (string, error) {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.closed {
		return "", model.ErrClosed
	}

	ordered, err := ValidateRecords(records)
	if err != nil {
		return "", err
	}

	thresholds := c.defaults.Thresholds
	if spec.Thresholds != nil {
		thresholds = *spec.Thresholds
	}
	if err := thresholds.Validate(); err != nil {
		return "", err
	}

	concurrency := spec.Concurrency
	switch {
	case concurrency < 0:
		return "", &model.ValidationError{Field: "concurrency", Reason: "must not be negative"}
	case concurrency == 0:
		concurrency = c.defaults.Workers
	}

	version := spec.CatalogVersion
	if version == "" {
		version = c.provider.CurrentVersion()
	}
	if version == "" {
		return "", &model.ValidationError{Field: "catalog_version", Reason: "no catalog version published"}
	}
	if !c.provider.HasVersion(version) {
		return "", &model.ValidationError{Field: "catalog_version", Reason: fmt.Sprintf("unknown version %q", version)}
	}

	m, err := c.newMatcher(version, thresholds)
	if err != nil {
		return "", err
	}

	job := newJob(uuid.New().String(), ordered)
	job.Name = spec.Name
	job.CatalogVersion = version
	job.Thresholds = thresholds
	job.Concurrency = concurrency
	job.CreatedAt = c.now().UTC()
	job.matcher = m

	if c.store != nil {
		if err := c.store.SaveJob(ctx, c.stored(job)); err != nil {
			return "", fmt.Errorf("persist job: %w", err)
		}
	}

	c.register(job, 0, model.StateCreated)
	c.metrics.ObserveTransition(model.StateCreated)
	c.logger.Info("job created",
		slog.String("job_id", job.ID),
		slog.Int("records", len(ordered)),
		slog.String("catalog_version", version),
		slog.Int("concurrency", concurrency))
	return job.ID, nil
}

func (c *Controller) newMatcher(version string, t model.Thresholds) (*matcher.Matcher, error) {
	return matcher.New(c.provider, matcher.Options{
		Version:       version,
		Thresholds:    t,
		MaxCandidates: c.defaults.MaxCandidates,
		Timeout:       c.defaults.MatchTimeout,
	})
}

// register publishes the job and starts its followers
func (c *Controller) register(job *Job, cursor int, persisted model.JobState) {
	c.mu.Lock()
	c.jobs[job.ID] = job
	c.mu.Unlock()

	if c.store != nil {
		c.wg.Add(1)
		go c.persist(job, cursor, persisted)
	}
	if c.publisher != nil && !job.State().Terminal() {
		c.wg.Add(1)
		go c.forward(job, cursor)
	}
}

func (c *Controller) stored(job *Job) model.StoredJob {
	return model.StoredJob{
		JobID:          job.ID,
		Name:           job.Name,
		CatalogVersion: job.CatalogVersion,
		Thresholds:     job.Thresholds,
		Concurrency:    job.Concurrency,
		Records:        job.Records,
		State:          job.State(),
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      c.now().UTC(),
	}
}

func (c *Controller) job(jobID string) (*Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrJobNotFound, jobID)
	}
	return job, nil
}

// Start moves a created job to running and begins dispatching records
func (c *Controller) Start(jobID string) error {
	job, err := c.job(jobID)
	if err != nil {
		return err
	}
	if job.matcher == nil {
		return fmt.Errorf("%w: %s", model.ErrCatalogVersionNotFound, job.CatalogVersion)
	}
	return c.begin(job, "start", model.StateCreated)
}

// Pause stops dispatch of new records. Records already in flight finish and
// are recorded.
func (c *Controller) Pause(jobID string) error {
	job, err := c.job(jobID)
	if err != nil {
		return err
	}
	if err := job.transition("pause", model.StatePaused, model.StateRunning); err != nil {
		return err
	}
	c.afterTransition(job, model.StatePaused)
	return nil
}

// Resume continues a paused job with the records it has not dispatched yet
func (c *Controller) Resume(jobID string) error {
	job, err := c.job(jobID)
	if err != nil {
		return err
	}
	if job.matcher == nil {
		return fmt.Errorf("%w: %s", model.ErrCatalogVersionNotFound, job.CatalogVersion)
	}
	return c.begin(job, "resume", model.StatePaused)
}

// Cancel stops the job. In-flight records are allowed to finish and keep
// their results; nothing else is dispatched.
func (c *Controller) Cancel(jobID string) error {
	job, err := c.job(jobID)
	if err != nil {
		return err
	}
	job.mu.Lock()
	from := job.state
	err = job.transitionLocked("cancel", model.StateCancelling, model.StateCreated, model.StateRunning, model.StatePaused)
	idle := err == nil && !job.dispatching
	job.mu.Unlock()
	if err != nil {
		return err
	}
	c.afterTransition(job, model.StateCancelling)
	c.logger.Info("job cancel requested", slog.String("job_id", jobID), slog.String("from", string(from)))
	if idle {
		c.seal(job, model.StateCancelled)
	}
	return nil
}

func (c *Controller) afterTransition(job *Job, state model.JobState) {
	c.metrics.ObserveTransition(state)
	c.logger.Debug("job state changed", slog.String("job_id", job.ID), slog.String("state", string(state)))
}

// begin moves job to running and starts its dispatcher unless one is still
// draining from before a pause. Recovered jobs have none yet.
func (c *Controller) begin(job *Job, op string, from model.JobState) error {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.closed {
		return model.ErrClosed
	}
	spawn, err := job.begin(op, from)
	if err != nil {
		return err
	}
	c.afterTransition(job, model.StateRunning)
	if spawn {
		c.wg.Add(1)
		go c.run(job)
	}
	return nil
}

// seal takes a drained job to its terminal state
func (c *Controller) seal(job *Job, final model.JobState) {
	p, sealed := job.seal(final)
	if !sealed {
		return
	}
	c.metrics.ObserveTransition(final)
	c.logger.Info("job finished",
		slog.String("job_id", job.ID),
		slog.String("state", string(final)),
		slog.Int("matched", len(p.Matched)),
		slog.Int("pending", len(p.Pending)),
		slog.Int("not_found", len(p.NotFound)))
}

// Wait blocks until the job is terminal or ctx ends
func (c *Controller) Wait(ctx context.Context, jobID string) (model.JobState, error) {
	job, err := c.job(jobID)
	if err != nil {
		return "", err
	}
	select {
	case <-job.Done():
		return job.State(), nil
	case <-ctx.Done():
		return job.State(), ctx.Err()
	}
}

// Recover rebuilds persisted jobs. Unfinished jobs come back paused so that
// Resume continues with the records that have no result yet; finished jobs
// are served read-only.
func (c *Controller) Recover(ctx context.Context) (int, error) {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.closed {
		return 0, model.ErrClosed
	}
	if c.store == nil {
		return 0, nil
	}
	stored, err := c.store.ListJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list persisted jobs: %w", err)
	}

	recovered := 0
	for _, sj := range stored {
		c.mu.RLock()
		_, known := c.jobs[sj.JobID]
		c.mu.RUnlock()
		if known {
			continue
		}
		events, err := c.store.LoadEvents(ctx, sj.JobID)
		if err != nil {
			return recovered, fmt.Errorf("load events for %s: %w", sj.JobID, err)
		}
		job, err := c.rebuild(sj, events)
		if err != nil {
			c.logger.Warn("skipping persisted job", slog.String("job_id", sj.JobID), slog.Any("error", err))
			continue
		}
		c.register(job, len(job.events), sj.State)
		recovered++
	}
	c.logger.Info("jobs recovered", slog.Int("count", recovered))
	return recovered, nil
}

func (c *Controller) rebuild(sj model.StoredJob, events []model.ProcessingEvent) (*Job, error) {
	records, err := ValidateRecords(sj.Records)
	if err != nil {
		return nil, err
	}
	job := newJob(sj.JobID, records)
	job.Name = sj.Name
	job.CatalogVersion = sj.CatalogVersion
	job.Thresholds = sj.Thresholds
	job.Concurrency = max(sj.Concurrency, 1)
	job.CreatedAt = sj.CreatedAt
	job.restore(events)

	if c.provider.HasVersion(sj.CatalogVersion) {
		if job.matcher, err = c.newMatcher(sj.CatalogVersion, sj.Thresholds); err != nil {
			return nil, err
		}
	}

	switch {
	case sj.State.Terminal():
		job.seal(sj.State)
	case sj.State == model.StateCancelling:
		job.seal(model.StateCancelled)
	case len(job.pending) == 0:
		job.seal(model.StateCompleted)
	case sj.State == model.StateCreated:
	default:
		job.state = model.StatePaused
	}
	return job, nil
}

// Close cancels every unfinished job and waits for background work. When ctx
// ends first, outstanding lookups are aborted. Creating, starting, resuming
// and recovering jobs fail with ErrClosed once Close has begun.
func (c *Controller) Close(ctx context.Context) error {
	c.lifeMu.Lock()
	c.closed = true
	c.lifeMu.Unlock()

	c.mu.RLock()
	jobs := make([]*Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		jobs = append(jobs, job)
	}
	c.mu.RUnlock()

	for _, job := range jobs {
		if err := c.Cancel(job.ID); err != nil && !errors.Is(err, model.ErrInvalidStateTransition) {
			c.logger.Warn("cancel on close failed", slog.String("job_id", job.ID), slog.Any("error", err))
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}

// ListJobs returns a summary per job, newest first
func (c *Controller) ListJobs() []model.JobSummary {
	c.mu.RLock()
	out := make([]model.JobSummary, 0, len(c.jobs))
	for _, job := range c.jobs {
		out = append(out, job.summary())
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b model.JobSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.JobID, b.JobID)
	})
	return out
}

// GetJob returns the summary of one job
func (c *Controller) GetJob(jobID string) (model.JobSummary, error) {
	job, err := c.job(jobID)
	if err != nil {
		return model.JobSummary{}, err
	}
	return job.summary(), nil
}

// GetProgress returns stats and event count taken at the same instant
func (c *Controller) GetProgress(jobID string) (model.Progress, error) {
	job, err := c.job(jobID)
	if err != nil {
		return model.Progress{}, err
	}
	return job.progress(), nil
}

// GetReviewPartition returns the review split of a completed or cancelled job
func (c *Controller) GetReviewPartition(jobID string) (model.ReviewPartition, error) {
	job, err := c.job(jobID)
	if err != nil {
		return model.ReviewPartition{}, err
	}
	return job.reviewPartition()
}

// Provider returns the catalog the controller matches against
func (c *Controller) Provider() catalog.Provider { return c.provider }

// Defaults returns the settings applied to jobs that do not override them
func (c *Controller) Defaults() Defaults { return c.defaults }
