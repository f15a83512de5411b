package bus

import (
	"fmt"
	"strings"

	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/internal/pipeline"
)

// JSONPublisher is the part of Client the Forwarder needs
type JSONPublisher interface {
	PublishJSON(subject string, v any) error
}

// Subject suffixes under <prefix>.<jobID>
const (
	SuffixEvents   = "events"
	SuffixProgress = "progress"
	SuffixReview   = "review"
)

// ReviewMessage is published once a job reaches a terminal state
type ReviewMessage struct {
	Summary   model.ReviewSummary   `json:"summary"`
	Partition model.ReviewPartition `json:"partition"`
}

// Forwarder publishes job activity on subjects rooted at Prefix
type Forwarder struct {
	pub    JSONPublisher
	prefix string
}

var _ pipeline.Publisher = (*Forwarder)(nil)

func NewForwarder(pub JSONPublisher, prefix string) *Forwarder {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "catmat.jobs"
	}
	return &Forwarder{pub: pub, prefix: prefix}
}

// Subject returns the subject for one of a job's streams
func (f *Forwarder) Subject(jobID, suffix string) string {
	return fmt.Sprintf("%s.%s.%s", f.prefix, jobID, suffix)
}

// Wildcard matches every stream of a job, or of every job when jobID is empty
func (f *Forwarder) Wildcard(jobID string) string {
	if jobID == "" {
		return f.prefix + ".>"
	}
	return fmt.Sprintf("%s.%s.>", f.prefix, jobID)
}

func (f *Forwarder) PublishEvent(jobID string, ev model.ProcessingEvent) error {
	return f.pub.PublishJSON(f.Subject(jobID, SuffixEvents), ev)
}

func (f *Forwarder) PublishProgress(p model.Progress) error {
	return f.pub.PublishJSON(f.Subject(p.JobID, SuffixProgress), p)
}

func (f *Forwarder) PublishReview(p model.ReviewPartition) error {
	return f.pub.PublishJSON(f.Subject(p.JobID, SuffixReview), ReviewMessage{
		Summary:   pipeline.Summarize(p),
		Partition: p,
	})
}
