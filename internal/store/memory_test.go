package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(name, baseURL string) *article.Source {
	return &article.Source{
		Name:              name,
		BaseURL:           baseURL,
		CrawlDelaySeconds: 3,
		Active:            true,
		ValidationStatus:  article.StatusValidated,
	}
}

func TestSourceCRUD(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	src := newTestSource("Oncology Daily", "https://oncology-daily.example.org")
	require.NoError(t, ms.CreateSource(ctx, src))
	require.NotEqual(t, uuid.Nil, src.ID)

	got, err := ms.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oncology Daily", got.Name)

	got.Name = "Oncology Weekly"
	require.NoError(t, ms.UpdateSource(ctx, got))

	updated, err := ms.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oncology Weekly", updated.Name)

	_, err = ms.GetSource(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSourceRejectsDuplicateBaseURL(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, ms.CreateSource(ctx, newTestSource("First", "https://news.example.org")))
	err := ms.CreateSource(ctx, newTestSource("Second", "https://news.example.org"))
	assert.ErrorIs(t, err, ErrSourceExists)
}

func TestCopyOnReadIsolation(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	src := newTestSource("Isolated", "https://isolated.example.org")
	require.NoError(t, ms.CreateSource(ctx, src))

	got, err := ms.GetSource(ctx, src.ID)
	require.NoError(t, err)
	got.Name = "mutated locally"

	again, err := ms.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "Isolated", again.Name, "caller mutations must not leak into the store")
}

func TestListSchedulableFiltersInactiveAndUnvalidated(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	ok := newTestSource("Schedulable", "https://ok.example.org")
	require.NoError(t, ms.CreateSource(ctx, ok))

	inactive := newTestSource("Inactive", "https://inactive.example.org")
	inactive.Active = false
	require.NoError(t, ms.CreateSource(ctx, inactive))

	pending := newTestSource("Pending", "https://pending.example.org")
	pending.ValidationStatus = article.StatusPending
	require.NoError(t, ms.CreateSource(ctx, pending))

	schedulable, err := ms.ListSchedulable(ctx)
	require.NoError(t, err)
	require.Len(t, schedulable, 1)
	assert.Equal(t, ok.ID, schedulable[0].ID)
}

func TestReplaceStrategyIsAtomicAndLinksSource(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	src := newTestSource("Strategized", "https://strategized.example.org")
	require.NoError(t, ms.CreateSource(ctx, src))

	first := &article.ExtractionStrategy{
		SourceID:  src.ID,
		Platform:  article.PlatformWordPress,
		Selectors: article.Selectors{Title: "h1.entry-title", Body: "div.entry-content"},
	}
	require.NoError(t, ms.ReplaceStrategy(ctx, first))

	second := &article.ExtractionStrategy{
		SourceID:  src.ID,
		Platform:  article.PlatformGeneric,
		Selectors: article.Selectors{Title: "h1"},
	}
	require.NoError(t, ms.ReplaceStrategy(ctx, second))

	got, err := ms.GetStrategy(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, article.PlatformGeneric, got.Platform)

	linked, err := ms.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.StrategyID)
	assert.Equal(t, second.ID, *linked.StrategyID)
}

func TestInsertArticleRejectsDuplicateHash(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	first := &article.Article{
		SourceID:     uuid.New(),
		CanonicalURL: "https://news.example.org/story-1",
		Title:        "Story",
		Body:         "Body.",
		ContentHash:  "aaaa",
	}
	require.NoError(t, ms.InsertArticle(ctx, first))

	repost := &article.Article{
		SourceID:     uuid.New(),
		CanonicalURL: "https://mirror.example.org/story-1",
		Title:        "Story",
		Body:         "Body.",
		ContentHash:  "aaaa",
	}
	assert.ErrorIs(t, ms.InsertArticle(ctx, repost), ErrDuplicateContent)

	sameURL := &article.Article{
		SourceID:     uuid.New(),
		CanonicalURL: "https://news.example.org/story-1",
		ContentHash:  "bbbb",
	}
	assert.ErrorIs(t, ms.InsertArticle(ctx, sameURL), ErrDuplicateContent)

	count, err := ms.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentInsertExactlyOneWinner(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	const workers = 16
	var successes, duplicates int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			a := &article.Article{
				SourceID:     uuid.New(),
				CanonicalURL: fmt.Sprintf("https://worker-%d.example.org/story", n),
				Title:        "Racing Story",
				Body:         "Identical content observed by every worker.",
				ContentHash:  "shared-hash",
			}
			switch err := ms.InsertArticle(ctx, a); err {
			case nil:
				atomic.AddInt64(&successes, 1)
			case ErrDuplicateContent:
				atomic.AddInt64(&duplicates, 1)
			default:
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes, "exactly one worker must win the compare-and-insert")
	assert.Equal(t, int64(workers-1), duplicates)

	count, err := ms.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetArticleByHash(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	a := &article.Article{
		SourceID:     uuid.New(),
		CanonicalURL: "https://news.example.org/found",
		Title:        "Found",
		ContentHash:  "find-me",
	}
	require.NoError(t, ms.InsertArticle(ctx, a))

	got, err := ms.GetArticleByHash(ctx, "find-me")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = ms.GetArticleByHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuditTrailIsAppendOnlyPerSource(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	sourceID := uuid.New()
	otherID := uuid.New()

	for i, action := range []article.AuditAction{article.AuditValidate, article.AuditRevalidate, article.AuditDisable} {
		require.NoError(t, ms.AppendAudit(ctx, &article.ComplianceAuditEntry{
			SourceID:   sourceID,
			Action:     action,
			ScoreAfter: float64(i),
		}))
	}
	require.NoError(t, ms.AppendAudit(ctx, &article.ComplianceAuditEntry{
		SourceID: otherID,
		Action:   article.AuditValidate,
	}))

	entries, err := ms.ListAudit(ctx, sourceID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, article.AuditValidate, entries[0].Action)
	assert.Equal(t, article.AuditRevalidate, entries[1].Action)
	assert.Equal(t, article.AuditDisable, entries[2].Action)
}
