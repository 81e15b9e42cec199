package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rosalind-labs/newswatch/pkg/article"
)

// MemoryStore is an in-memory Store. All operations take the store lock,
// which makes InsertArticle a true compare-and-insert with respect to
// concurrent executors.
type MemoryStore struct {
	mu         sync.RWMutex
	sources    map[uuid.UUID]*article.Source
	sourceURLs map[string]uuid.UUID
	strategies map[uuid.UUID]*article.ExtractionStrategy
	articles   map[uuid.UUID]*article.Article
	hashes     map[string]uuid.UUID
	urls       map[string]uuid.UUID
	audit      []*article.ComplianceAuditEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:    make(map[uuid.UUID]*article.Source),
		sourceURLs: make(map[string]uuid.UUID),
		strategies: make(map[uuid.UUID]*article.ExtractionStrategy),
		articles:   make(map[uuid.UUID]*article.Article),
		hashes:     make(map[string]uuid.UUID),
		urls:       make(map[string]uuid.UUID),
	}
}

func (ms *MemoryStore) CreateSource(ctx context.Context, src *article.Source) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.sourceURLs[src.BaseURL]; exists {
		return ErrSourceExists
	}
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	now := time.Now()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now

	cp := *src
	ms.sources[src.ID] = &cp
	ms.sourceURLs[src.BaseURL] = src.ID
	return nil
}

func (ms *MemoryStore) GetSource(ctx context.Context, id uuid.UUID) (*article.Source, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	src, exists := ms.sources[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (ms *MemoryStore) UpdateSource(ctx context.Context, src *article.Source) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.sources[src.ID]; !exists {
		return ErrNotFound
	}
	src.UpdatedAt = time.Now()
	cp := *src
	ms.sources[src.ID] = &cp
	return nil
}

func (ms *MemoryStore) ListSources(ctx context.Context) ([]*article.Source, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	sources := make([]*article.Source, 0, len(ms.sources))
	for _, src := range ms.sources {
		cp := *src
		sources = append(sources, &cp)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].CreatedAt.Before(sources[j].CreatedAt)
	})
	return sources, nil
}

func (ms *MemoryStore) ListSchedulable(ctx context.Context) ([]*article.Source, error) {
	all, err := ms.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	schedulable := make([]*article.Source, 0, len(all))
	for _, src := range all {
		if src.Schedulable() {
			schedulable = append(schedulable, src)
		}
	}
	return schedulable, nil
}

// ReplaceStrategy swaps the source's strategy under the store lock, so the
// replacement is atomic for readers.
func (ms *MemoryStore) ReplaceStrategy(ctx context.Context, strategy *article.ExtractionStrategy) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if strategy.ID == uuid.Nil {
		strategy.ID = uuid.New()
	}
	if strategy.GeneratedAt.IsZero() {
		strategy.GeneratedAt = time.Now()
	}
	cp := *strategy
	ms.strategies[strategy.SourceID] = &cp

	if src, exists := ms.sources[strategy.SourceID]; exists {
		id := strategy.ID
		src.StrategyID = &id
		src.UpdatedAt = time.Now()
	}
	return nil
}

func (ms *MemoryStore) GetStrategy(ctx context.Context, sourceID uuid.UUID) (*article.ExtractionStrategy, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	strategy, exists := ms.strategies[sourceID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *strategy
	return &cp, nil
}

// InsertArticle checks the hash and URL indexes and inserts in one
// critical section. The loser of a race observes ErrDuplicateContent.
func (ms *MemoryStore) InsertArticle(ctx context.Context, a *article.Article) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.hashes[a.ContentHash]; exists {
		return ErrDuplicateContent
	}
	if _, exists := ms.urls[a.CanonicalURL]; exists {
		return ErrDuplicateContent
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	cp := *a
	ms.articles[a.ID] = &cp
	ms.hashes[a.ContentHash] = a.ID
	ms.urls[a.CanonicalURL] = a.ID
	return nil
}

func (ms *MemoryStore) GetArticleByHash(ctx context.Context, hash string) (*article.Article, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	id, exists := ms.hashes[hash]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *ms.articles[id]
	return &cp, nil
}

func (ms *MemoryStore) CountArticles(ctx context.Context) (int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return int64(len(ms.articles)), nil
}

func (ms *MemoryStore) AppendAudit(ctx context.Context, entry *article.ComplianceAuditEntry) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	cp := *entry
	ms.audit = append(ms.audit, &cp)
	return nil
}

func (ms *MemoryStore) ListAudit(ctx context.Context, sourceID uuid.UUID) ([]*article.ComplianceAuditEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entries := make([]*article.ComplianceAuditEntry, 0)
	for _, entry := range ms.audit {
		if entry.SourceID == sourceID {
			cp := *entry
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

func (ms *MemoryStore) Health(ctx context.Context) error {
	return nil
}
