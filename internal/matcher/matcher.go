// Package matcher turns one material record into a classified MatchResult by
// querying a pinned catalog version.
package matcher

import (
	"context"
	"fmt"
	"math"
	"time"

	"go-catmat-matcher/internal/catalog"
	"go-catmat-matcher/internal/model"
)

// Options configures a Matcher for one job
type Options struct {
	Version       string
	Thresholds    model.Thresholds
	MaxCandidates int           // cap passed to the provider, 0 = provider default
	Timeout       time.Duration // per-call bound, 0 = none
}

// MatchError is a failed catalog lookup for one record. The matcher never
// retries; the caller owns the retry policy.
type MatchError struct {
	RecordIndex int
	Cause       error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("match record %d: %v", e.RecordIndex, e.Cause)
}

func (e *MatchError) Unwrap() error { return e.Cause }

// Matcher is safe for concurrent use as long as its provider is
type Matcher struct {
	provider catalog.Provider
	opts     Options
}

// New validates opts and binds them to provider
func New(provider catalog.Provider, opts Options) (*Matcher, error) {
	if provider == nil {
		return nil, &model.ValidationError{Field: "provider", Reason: "catalog provider is required"}
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxCandidates < 0 {
		return nil, &model.ValidationError{Field: "max_candidates", Reason: "must not be negative"}
	}
	return &Matcher{provider: provider, opts: opts}, nil
}

// Thresholds returns the thresholds the matcher classifies with
func (m *Matcher) Thresholds() model.Thresholds { return m.opts.Thresholds }

// Match queries the catalog once and classifies the best candidate.
// Identical inputs against the same catalog version give identical results.
func (m *Matcher) Match(ctx context.Context, rec model.MaterialRecord) (model.MatchResult, error) {
	candidates, err := m.query(ctx, rec.RawDescription)
	if err != nil {
		return model.MatchResult{}, &MatchError{RecordIndex: rec.SequenceIndex, Cause: err}
	}

	best := Best(candidates)
	res := model.MatchResult{
		SequenceIndex:  rec.SequenceIndex,
		RawDescription: rec.RawDescription,
		Classification: m.opts.Thresholds.Classify(best),
	}
	if res.Classification != model.ClassNotFound {
		res.BestCandidate = best
	}
	return res, nil
}

func (m *Matcher) query(ctx context.Context, text string) ([]model.MatchCandidate, error) {
	if m.opts.Timeout <= 0 {
		return m.provider.Query(ctx, text, m.opts.Version, m.opts.MaxCandidates)
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	type reply struct {
		candidates []model.MatchCandidate
		err        error
	}
	// buffered so a provider ignoring ctx does not leak a blocked sender
	ch := make(chan reply, 1)
	go func() {
		c, err := m.provider.Query(ctx, text, m.opts.Version, m.opts.MaxCandidates)
		ch <- reply{c, err}
	}()

	select {
	case r := <-ch:
		return r.candidates, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("catalog query: %w", ctx.Err())
	}
}

// Best picks the highest scoring candidate, breaking ties with the
// lexicographically smallest catalog id. NaN scores are ignored and the rest
// are clamped to [0,1]. Returns nil when nothing usable is left.
func Best(candidates []model.MatchCandidate) *model.MatchCandidate {
	var best *model.MatchCandidate
	for _, c := range candidates {
		if math.IsNaN(c.Score) {
			continue
		}
		c.Score = min(max(c.Score, 0), 1)
		if best == nil || c.Score > best.Score || (c.Score == best.Score && c.CatalogID < best.CatalogID) {
			picked := c
			best = &picked
		}
	}
	return best
}
