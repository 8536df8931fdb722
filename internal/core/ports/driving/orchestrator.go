package driving

import (
	"context"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
)

// CycleResult summarises one completed sync cycle.
type CycleResult struct {
	// DeltaSize is how many unseen locators the server reported.
	DeltaSize int

	// Persisted is how many new articles were saved.
	Persisted int

	// ItemErrors counts individual articles that failed to fetch or
	// persist. Item errors never fail the cycle.
	ItemErrors int

	// UnreadCount is the badge value pushed at finalisation.
	UnreadCount int
}

// CycleStatus is a point-in-time view of the orchestrator.
type CycleStatus struct {
	// Phase is the current cycle phase (PhaseIdle when no cycle runs).
	Phase domain.CyclePhase

	// State carries the last-success timestamp and failure count.
	State domain.SyncCycleState
}

// SyncOrchestrator drives article reconciliation cycles.
type SyncOrchestrator interface {
	// RunCycle executes one full cycle: seen-set collection, delta
	// request, batched drain, finalisation. Returns
	// domain.ErrSyncInProgress if a cycle is already running.
	// Cancellation of ctx ends the cycle early without error escalation.
	RunCycle(ctx context.Context) (*CycleResult, error)

	// Enqueue fast-tracks one locator ahead of the next scheduled delta.
	// Called by the push-notification collaborator. Returns false if the
	// locator is already queued or already persisted.
	Enqueue(ctx context.Context, locator, correlationID string) (bool, error)

	// Backlog returns the current pending-work count after expiry sweep.
	Backlog(ctx context.Context) int

	// Status returns the current cycle status.
	Status() CycleStatus
}

// ContentProvider serves formatted article field content.
type ContentProvider interface {
	// FormattedContent returns the formatted representation of one
	// article field, generating and caching it on first access. It never
	// fails on cache corruption; the worst outcome for an article with
	// raw text is a degraded plain-text result.
	FormattedContent(ctx context.Context, articleID string, field domain.Field) (*domain.FormattedText, error)
}
