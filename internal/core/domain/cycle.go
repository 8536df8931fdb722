package domain

import "time"

// CyclePhase is the current position of a sync cycle's state machine.
type CyclePhase string

// Cycle phases, in order of progression.
const (
	PhaseIdle            CyclePhase = "idle"
	PhaseCollectingSeen  CyclePhase = "collecting_seen_set"
	PhaseRequestingDelta CyclePhase = "requesting_delta"
	PhaseDrainingBatches CyclePhase = "draining_batches"
	PhaseFinalizing      CyclePhase = "finalizing"
	PhaseCoolingDown     CyclePhase = "cooling_down"
)

// SyncCycleState is the transient state the scheduler keeps between runs.
type SyncCycleState struct {
	// Phase is the current cycle phase.
	Phase CyclePhase

	// LastSuccess is when a cycle last completed successfully.
	LastSuccess time.Time

	// FailureCount accumulates consecutive soft failures and sizes the
	// next backoff delay. Reset to zero on success.
	FailureCount int
}
