// Package catalog holds the CATMAT catalog provider contract and an in-memory
// reference implementation with versioned, immutable snapshots.
package catalog

import (
	"context"

	"go-catmat-matcher/internal/model"
)

// Provider answers similarity queries against a pinned catalog version.
// Implementations must be safe for concurrent use and must return the same
// candidates for the same (text, version, limit).
type Provider interface {
	// Query returns candidates ranked by score descending, ties by catalog id
	// ascending. limit <= 0 means no cap.
	Query(ctx context.Context, text, version string, limit int) ([]model.MatchCandidate, error)

	HasVersion(version string) bool

	// CurrentVersion is the version new jobs pin when they do not ask for one.
	CurrentVersion() string
}
