package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"go-catmat-matcher/internal/model"
)

// snapshot is one published catalog version. It is never mutated after
// construction, so readers need no lock once they hold a pointer to it.
type snapshot struct {
	version   string
	entries   []model.CatalogEntry
	byID      map[string]int
	grams     []map[string]int
	gramTotal []int
	index     map[string][]int // trigram -> entry positions
}

func newSnapshot(version string, entries []model.CatalogEntry) (*snapshot, error) {
	s := &snapshot{
		version:   version,
		entries:   make([]model.CatalogEntry, 0, len(entries)),
		byID:      make(map[string]int, len(entries)),
		grams:     make([]map[string]int, 0, len(entries)),
		gramTotal: make([]int, 0, len(entries)),
		index:     make(map[string][]int),
	}

	for i, e := range entries {
		id := strings.TrimSpace(e.CatalogID)
		if id == "" {
			return nil, &model.ValidationError{Field: "catalog_id", Reason: fmt.Sprintf("entry %d has an empty id", i)}
		}
		if _, dup := s.byID[id]; dup {
			return nil, &model.ValidationError{Field: "catalog_id", Reason: fmt.Sprintf("duplicate id %q", id)}
		}
		if strings.TrimSpace(e.CanonicalDescription) == "" {
			return nil, &model.ValidationError{Field: "canonical_description", Reason: fmt.Sprintf("entry %q has an empty description", id)}
		}

		pos := len(s.entries)
		s.entries = append(s.entries, model.CatalogEntry{CatalogID: id, CanonicalDescription: e.CanonicalDescription})
		s.byID[id] = pos

		grams, total := trigrams(Normalize(e.CanonicalDescription))
		s.grams = append(s.grams, grams)
		s.gramTotal = append(s.gramTotal, total)
		for g := range grams {
			s.index[g] = append(s.index[g], pos)
		}
	}
	return s, nil
}

func (s *snapshot) query(normalized string, limit int) []model.MatchCandidate {
	qGrams, qTotal := trigrams(normalized)
	if qTotal == 0 {
		return nil
	}

	seen := make(map[int]struct{})
	for g := range qGrams {
		for _, pos := range s.index[g] {
			seen[pos] = struct{}{}
		}
	}

	out := make([]model.MatchCandidate, 0, len(seen))
	for pos := range seen {
		score := dice(qGrams, qTotal, s.grams[pos], s.gramTotal[pos])
		if score <= 0 {
			continue
		}
		e := s.entries[pos]
		out = append(out, model.MatchCandidate{
			CatalogID:   e.CatalogID,
			Score:       score,
			Description: e.CanonicalDescription,
		})
	}

	SortCandidates(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortCandidates orders candidates by score descending, then catalog id ascending
func SortCandidates(c []model.MatchCandidate) {
	slices.SortFunc(c, func(a, b model.MatchCandidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return strings.Compare(a.CatalogID, b.CatalogID)
	})
}

// Memory is the in-memory reference Provider.
// Publishing a new version never changes what an older version returns.
type Memory struct {
	mu       sync.RWMutex
	versions map[string]*snapshot
	current  string
	cache    *lru.Cache[string, []model.MatchCandidate]
	logger   *slog.Logger
}

type MemoryOption func(*Memory)

// WithLogger sets the logger publish events are reported to
func WithLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMemory creates an empty catalog with a query cache of cacheSize entries.
// cacheSize <= 0 disables caching.
func NewMemory(cacheSize int, opts ...MemoryOption) (*Memory, error) {
	m := &Memory{
		versions: make(map[string]*snapshot),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, []model.MatchCandidate](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create query cache: %w", err)
		}
		m.cache = cache
	}
	return m, nil
}

// Publish installs entries as version and makes it the current version.
// Re-publishing an existing version is rejected so pinned jobs stay reproducible.
func (m *Memory) Publish(version string, entries []model.CatalogEntry) error {
	version = strings.TrimSpace(version)
	if version == "" {
		return &model.ValidationError{Field: "version", Reason: "catalog version is required"}
	}
	if len(entries) == 0 {
		return &model.ValidationError{Field: "entries", Reason: "catalog has no entries"}
	}

	snap, err := newSnapshot(version, entries)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.versions[version]; exists {
		return &model.ValidationError{Field: "version", Reason: fmt.Sprintf("version %q already published", version)}
	}
	m.versions[version] = snap
	m.current = version

	m.logger.Info("catalog version published", slog.String("version", version), slog.Int("entries", len(snap.entries)))
	return nil
}

func (m *Memory) snapshot(version string) (*snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.versions[version]
	return s, ok
}

// Query implements Provider
func (m *Memory) Query(ctx context.Context, text, version string, limit int) ([]model.MatchCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, ok := m.snapshot(version)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrCatalogVersionNotFound, version)
	}

	normalized := Normalize(text)
	key := version + "\x00" + strconv.Itoa(limit) + "\x00" + normalized
	if m.cache != nil {
		if hit, ok := m.cache.Get(key); ok {
			return slices.Clone(hit), nil
		}
	}

	out := snap.query(normalized, limit)
	if m.cache != nil {
		m.cache.Add(key, slices.Clone(out))
	}
	return out, nil
}

// HasVersion implements Provider
func (m *Memory) HasVersion(version string) bool {
	_, ok := m.snapshot(version)
	return ok
}

// CurrentVersion implements Provider
func (m *Memory) CurrentVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Versions lists every published version in lexical order
func (m *Memory) Versions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.versions))
	for v := range m.versions {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Entry looks up one catalog item in a version
func (m *Memory) Entry(version, catalogID string) (model.CatalogEntry, bool) {
	snap, ok := m.snapshot(version)
	if !ok {
		return model.CatalogEntry{}, false
	}
	pos, ok := snap.byID[catalogID]
	if !ok {
		return model.CatalogEntry{}, false
	}
	return snap.entries[pos], true
}

// Len returns the number of entries in a version, 0 if unknown
func (m *Memory) Len(version string) int {
	snap, ok := m.snapshot(version)
	if !ok {
		return 0
	}
	return len(snap.entries)
}
