package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driving"
	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// SyncOrchestrator reconciles the local article set against the server.
//
// One cycle walks Idle -> CollectingSeenSet -> RequestingDelta ->
// DrainingBatches -> Finalizing -> Idle. Cycles are mutually exclusive: a
// cycle in progress makes RunCycle return domain.ErrSyncInProgress, which
// keeps concurrently scheduled refresh and processing runs from racing
// duplicate fetches.
type SyncOrchestrator struct {
	cfg    domain.SyncConfig
	store  driven.ArticleStore
	remote driven.RemoteClient
	queue  *DedupQueue
	badge  driven.BadgeSink

	mu      sync.RWMutex
	running bool
	phase   domain.CyclePhase
	state   domain.SyncCycleState

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncOrchestrator creates an orchestrator. badge may be nil.
func NewSyncOrchestrator(
	cfg domain.SyncConfig,
	store driven.ArticleStore,
	remote driven.RemoteClient,
	queue *DedupQueue,
	badge driven.BadgeSink,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		cfg:    cfg,
		store:  store,
		remote: remote,
		queue:  queue,
		badge:  badge,
		phase:  domain.PhaseIdle,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// RunCycle executes one full reconciliation cycle.
func (o *SyncOrchestrator) RunCycle(ctx context.Context) (*driving.CycleResult, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, domain.ErrSyncInProgress
	}
	o.running = true
	o.phase = domain.PhaseCollectingSeen
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.phase = domain.PhaseIdle
		o.state.Phase = domain.PhaseIdle
		o.mu.Unlock()
	}()

	result := &driving.CycleResult{}

	// 1. Collect the locally-known locator set, capped to bound the
	// delta request payload.
	seen, err := o.store.RecentLocators(ctx, time.Time{}, o.cfg.SeenCap)
	if err != nil {
		return nil, o.softFailure(fmt.Errorf("collect seen set: %w", err))
	}
	logger.Debug("sync: %d seen locators", len(seen))

	// 2. Ask the server for the unseen delta, with backoff on transient
	// failures. Exhausted retries surface to the scheduler.
	o.setPhase(domain.PhaseRequestingDelta)
	var delta []string
	err = retryWithBackoff(ctx, o.cfg.MaxAttempts, o.remote.IsReachable, func(ctx context.Context) error {
		var opErr error
		delta, opErr = o.remote.SyncDelta(ctx, seen)
		return opErr
	})
	if err != nil {
		return nil, o.softFailure(fmt.Errorf("sync delta: %w", err))
	}
	result.DeltaSize = len(delta)
	logger.Info("sync: server reported %d unseen articles", len(delta))

	// 3. Push the delta through the dedup queue. Locators a prior cycle
	// already persisted are rejected there.
	for _, locator := range delta {
		if _, err := o.queue.Enqueue(ctx, locator, ""); err != nil {
			logger.Warn("sync: enqueue %s: %v", locator, err)
		}
	}

	// 4. Drain in bounded batches. Partial item failures never abort the
	// cycle; cancellation stops new fetches but lets a fetched article
	// finish persisting.
	o.setPhase(domain.PhaseDrainingBatches)
	if err := o.drainBatches(ctx, result); err != nil {
		return result, err
	}

	// 5. Finalize: update the badge and record success.
	o.setPhase(domain.PhaseFinalizing)
	o.finalize(ctx, result)
	return result, nil
}

// drainBatches loops over queue batches until the queue is empty or the
// cycle is cancelled.
func (o *SyncOrchestrator) drainBatches(ctx context.Context, result *driving.CycleResult) error {
	inFlight := make(map[string]struct{})

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batch := o.queue.Drain(o.cfg.BatchSize)
		if len(batch) == 0 {
			return nil
		}

		for _, item := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if _, dup := inFlight[item.Locator]; dup {
				continue
			}
			inFlight[item.Locator] = struct{}{}

			if err := o.fetchAndPersist(ctx, item.Locator, result); err != nil {
				// One bad article must not abort the batch.
				result.ItemErrors++
				logger.Warn("sync: %s: %v", item.Locator, err)
			}
		}

		// Pace sub-batches so the database writer is not saturated.
		if o.queue.Count() > 0 {
			if err := o.sleep(ctx, o.cfg.Pacing); err != nil {
				return err
			}
		}
	}
}

// fetchAndPersist fetches one article best-effort and persists it.
func (o *SyncOrchestrator) fetchAndPersist(ctx context.Context, locator string, result *driving.CycleResult) error {
	var article *domain.Article
	err := retryWithBackoff(ctx, o.cfg.MaxAttempts, o.remote.IsReachable, func(ctx context.Context) error {
		var opErr error
		article, opErr = o.remote.FetchArticle(ctx, locator, true)
		return opErr
	})
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if article == nil {
		// Best-effort 404: the resource vanished server-side.
		logger.Debug("sync: %s gone, skipping", locator)
		return nil
	}

	// An item past its fetch is allowed to complete its persistence step
	// even when the cycle is being cancelled, so no half-processed work
	// is lost.
	created, err := o.store.Persist(context.WithoutCancel(ctx), article)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if created {
		result.Persisted++
	}
	return nil
}

// finalize updates the badge metric and records cycle success. Badge
// failures are the sink's problem; the cycle has already succeeded.
func (o *SyncOrchestrator) finalize(ctx context.Context, result *driving.CycleResult) {
	unread, err := o.store.UnreadCount(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("sync: unread count: %v", err)
	} else {
		result.UnreadCount = unread
		if o.badge != nil {
			o.badge.UpdateBadge(unread)
		}
	}

	o.mu.Lock()
	o.state.LastSuccess = o.now()
	o.state.FailureCount = 0
	o.mu.Unlock()
	logger.Info("sync: cycle complete, %d persisted, %d item errors", result.Persisted, result.ItemErrors)
}

// Enqueue fast-tracks one locator ahead of the next scheduled delta.
func (o *SyncOrchestrator) Enqueue(ctx context.Context, locator, correlationID string) (bool, error) {
	return o.queue.Enqueue(ctx, locator, correlationID)
}

// Backlog returns the pending-work count after expiry sweep.
func (o *SyncOrchestrator) Backlog(_ context.Context) int {
	return o.queue.Count()
}

// Status returns the current cycle status.
func (o *SyncOrchestrator) Status() driving.CycleStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	state := o.state
	state.Phase = o.phase
	return driving.CycleStatus{Phase: o.phase, State: state}
}

// softFailure bumps the failure counter and passes the error through.
// Cancellation is not counted; it is an expected outcome.
func (o *SyncOrchestrator) softFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	o.mu.Lock()
	o.state.FailureCount++
	o.mu.Unlock()
	return err
}

func (o *SyncOrchestrator) setPhase(phase domain.CyclePhase) {
	o.mu.Lock()
	o.phase = phase
	o.mu.Unlock()
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
