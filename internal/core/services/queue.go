package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

// DedupQueue tracks pending fetch work keyed by article locator.
//
// All mutating operations are serialized behind one mutex, so two
// concurrent Enqueue calls for the same locator can never both succeed.
// This is the at-most-once admission guarantee the whole sync pipeline
// rests on.
type DedupQueue struct {
	store  driven.ArticleStore
	maxAge time.Duration

	mu     sync.Mutex
	items  []domain.PendingWorkItem // FIFO by enqueue time
	queued map[string]struct{}

	// now is swappable for tests.
	now func() time.Time
}

// NewDedupQueue creates a queue. Items older than maxAge are silently
// dropped during drains and counts.
func NewDedupQueue(store driven.ArticleStore, maxAge time.Duration) *DedupQueue {
	return &DedupQueue{
		store:  store,
		maxAge: maxAge,
		queued: make(map[string]struct{}),
		now:    time.Now,
	}
}

// Enqueue admits a locator unless it is already queued or already
// persisted. Returns true only when the item was newly admitted.
func (q *DedupQueue) Enqueue(ctx context.Context, locator, correlationID string) (bool, error) {
	if locator == "" {
		return false, fmt.Errorf("%w: empty locator", domain.ErrInvalidInput)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.queued[locator]; exists {
		return false, nil
	}

	// Consult the persistence layer before admitting, so content a prior
	// cycle already saved is never fetched again. The store call happens
	// under the queue lock to keep admission single-writer.
	processed, err := q.store.IsAlreadyProcessed(ctx, locator)
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	if processed {
		logger.Debug("queue: %s already persisted, skipping", locator)
		return false, nil
	}

	q.items = append(q.items, domain.PendingWorkItem{
		Locator:       locator,
		EnqueuedAt:    q.now(),
		CorrelationID: correlationID,
	})
	q.queued[locator] = struct{}{}
	return true, nil
}

// Drain pops up to maxItems items in FIFO order, first discarding any
// item older than the queue max-age without returning it.
func (q *DedupQueue) Drain(maxItems int) []domain.PendingWorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sweepLocked()

	n := maxItems
	if n > len(q.items) {
		n = len(q.items)
	}
	if n <= 0 {
		return nil
	}

	drained := make([]domain.PendingWorkItem, n)
	copy(drained, q.items[:n])
	q.items = q.items[n:]
	for _, item := range drained {
		delete(q.queued, item.Locator)
	}
	return drained
}

// Count returns the queue size after the expiry sweep.
func (q *DedupQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sweepLocked()
	return len(q.items)
}

// sweepLocked drops expired items. Caller must hold q.mu.
func (q *DedupQueue) sweepLocked() {
	now := q.now()
	kept := q.items[:0]
	for _, item := range q.items {
		if item.Expired(now, q.maxAge) {
			delete(q.queued, item.Locator)
			logger.Debug("queue: dropping expired item %s", item.Locator)
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
}
