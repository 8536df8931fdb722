package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
)

func TestQueue_EnqueueAdmitsOnce(t *testing.T) {
	queue := NewDedupQueue(newMockArticleStore(), time.Hour)
	ctx := context.Background()

	admitted, err := queue.Enqueue(ctx, "/2025/a.json", "")
	require.NoError(t, err)
	assert.True(t, admitted)

	admitted, err = queue.Enqueue(ctx, "/2025/a.json", "push-1")
	require.NoError(t, err)
	assert.False(t, admitted, "second enqueue of the same locator must be rejected")
	assert.Equal(t, 1, queue.Count())
}

func TestQueue_EnqueueEmptyLocator(t *testing.T) {
	queue := NewDedupQueue(newMockArticleStore(), time.Hour)

	_, err := queue.Enqueue(context.Background(), "", "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueue_EnqueueConsultsStore(t *testing.T) {
	store := newMockArticleStore()
	seedArticles(store, 1)
	queue := NewDedupQueue(store, time.Hour)

	admitted, err := queue.Enqueue(context.Background(), "/2025/article-000.json", "")
	require.NoError(t, err)
	assert.False(t, admitted, "a persisted locator must not be admitted")
	assert.Equal(t, 0, queue.Count())
}

func TestQueue_EnqueueStoreError(t *testing.T) {
	store := newMockArticleStore()
	store.processedErr = errors.New("db locked")
	queue := NewDedupQueue(store, time.Hour)

	_, err := queue.Enqueue(context.Background(), "/2025/a.json", "")
	require.Error(t, err)
	assert.Equal(t, 0, queue.Count())
}

func TestQueue_ConcurrentEnqueueSingleWinner(t *testing.T) {
	queue := NewDedupQueue(newMockArticleStore(), time.Hour)

	const goroutines = 50
	var wg sync.WaitGroup
	var admittedCount int64
	var mu sync.Mutex

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted, err := queue.Enqueue(context.Background(), "/2025/contended.json", "")
			if err == nil && admitted {
				mu.Lock()
				admittedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), admittedCount, "exactly one concurrent enqueue may win")
	assert.Equal(t, 1, queue.Count())
}

func TestQueue_DrainFIFOAndBounded(t *testing.T) {
	queue := NewDedupQueue(newMockArticleStore(), time.Hour)
	ctx := context.Background()

	for _, locator := range []string{"/a", "/b", "/c"} {
		_, err := queue.Enqueue(ctx, locator, "")
		require.NoError(t, err)
	}

	batch := queue.Drain(2)
	require.Len(t, batch, 2)
	assert.Equal(t, "/a", batch[0].Locator)
	assert.Equal(t, "/b", batch[1].Locator)
	assert.Equal(t, 1, queue.Count())

	batch = queue.Drain(2)
	require.Len(t, batch, 1)
	assert.Equal(t, "/c", batch[0].Locator)
	assert.Nil(t, queue.Drain(2))
}

func TestQueue_DrainedLocatorMayReenter(t *testing.T) {
	queue := NewDedupQueue(newMockArticleStore(), time.Hour)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, "/a", "")
	require.NoError(t, err)
	require.Len(t, queue.Drain(1), 1)

	// Not persisted yet, so re-admission is legal.
	admitted, err := queue.Enqueue(ctx, "/a", "")
	require.NoError(t, err)
	assert.True(t, admitted)
}

func TestQueue_ExpiredItemsDropped(t *testing.T) {
	queue := NewDedupQueue(newMockArticleStore(), 24*time.Hour)
	ctx := context.Background()

	current := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	queue.now = func() time.Time { return current }

	_, err := queue.Enqueue(ctx, "/stale", "")
	require.NoError(t, err)

	current = current.Add(23 * time.Hour)
	_, err = queue.Enqueue(ctx, "/fresh", "")
	require.NoError(t, err)

	// The first item is now past the 24h max-age, the second is not.
	current = current.Add(2 * time.Hour)

	assert.Equal(t, 1, queue.Count())
	batch := queue.Drain(10)
	require.Len(t, batch, 1)
	assert.Equal(t, "/fresh", batch[0].Locator)

	// The expired locator can come back through a later delta.
	admitted, err := queue.Enqueue(ctx, "/stale", "")
	require.NoError(t, err)
	assert.True(t, admitted)
}
