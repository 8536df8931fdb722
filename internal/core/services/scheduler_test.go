package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driving"
)

// stubOrchestrator implements driving.SyncOrchestrator for scheduler
// tests.
type stubOrchestrator struct {
	mu        sync.Mutex
	runErr    error
	runResult *driving.CycleResult
	backlog   int
	runCalls  int
}

func (s *stubOrchestrator) RunCycle(_ context.Context) (*driving.CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCalls++
	if s.runErr != nil {
		return nil, s.runErr
	}
	if s.runResult != nil {
		return s.runResult, nil
	}
	return &driving.CycleResult{}, nil
}

func (s *stubOrchestrator) Enqueue(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}

func (s *stubOrchestrator) Backlog(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlog
}

func (s *stubOrchestrator) Status() driving.CycleStatus {
	return driving.CycleStatus{Phase: domain.PhaseIdle}
}

func (s *stubOrchestrator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCalls
}

var _ driving.SyncOrchestrator = (*stubOrchestrator)(nil)

func testSchedulerConfig() domain.SchedulerConfig {
	return domain.DefaultConfig().Scheduler
}

func newTestScheduler(store *mockSchedulerStore, orch driving.SyncOrchestrator, remote *mockRemote, power *mockPower) *Scheduler {
	cfg := testSchedulerConfig()
	s := NewScheduler(cfg, 10, store, orch, remote, power)
	s.now = func() time.Time { return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestScheduler_InitialiseCreatesBothTasks(t *testing.T) {
	store := newMockSchedulerStore()
	s := newTestScheduler(store, &stubOrchestrator{}, newMockRemote(), &mockPower{external: true})

	require.NoError(t, s.initialiseTasks(context.Background()))

	refresh := store.taskFor(domain.TaskIDRefresh)
	require.NotNil(t, refresh)
	assert.Equal(t, 15*time.Minute, refresh.Interval)
	assert.Equal(t, 25*time.Second, refresh.Budget)
	assert.True(t, refresh.Enabled)
	assert.Equal(t, s.now(), refresh.NextRun, "a new task is due immediately")

	processing := store.taskFor(domain.TaskIDProcessing)
	require.NotNil(t, processing)
	assert.Equal(t, 30*time.Minute, processing.Interval)
	assert.Equal(t, 60*time.Second, processing.Budget)
}

func TestScheduler_DueTaskRunsAndReschedules(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{runResult: &driving.CycleResult{Persisted: 4}}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, s.ensureTask(ctx, domain.TaskIDRefresh, "Refresh Sync", 15*time.Minute, 25*time.Second))

	s.checkAndRunDueTasks(ctx)

	assert.Equal(t, 1, orch.calls())

	task := store.taskFor(domain.TaskIDRefresh)
	require.NotNil(t, task)
	assert.Equal(t, s.now().Add(15*time.Minute), task.NextRun)
	assert.Equal(t, s.now(), task.LastSuccess)
	assert.Empty(t, task.LastError)

	results := store.resultsFor(domain.TaskIDRefresh)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 4, results[0].ItemsProcessed)
	assert.False(t, results[0].Skipped)
}

func TestScheduler_FutureTaskDoesNotRun(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDRefresh,
		Interval: 15 * time.Minute,
		Budget:   25 * time.Second,
		Enabled:  true,
		NextRun:  s.now().Add(10 * time.Minute),
	}))

	s.checkAndRunDueTasks(ctx)
	assert.Equal(t, 0, orch.calls())
}

func TestScheduler_FailedRunStillReschedules(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{runErr: &domain.ServerError{Status: 500}}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, s.ensureTask(ctx, domain.TaskIDRefresh, "Refresh Sync", 15*time.Minute, 25*time.Second))

	s.checkAndRunDueTasks(ctx)

	task := store.taskFor(domain.TaskIDRefresh)
	require.NotNil(t, task)
	assert.Equal(t, s.now().Add(15*time.Minute), task.NextRun, "failure must never leave the task unscheduled")
	assert.NotEmpty(t, task.LastError)
	assert.True(t, task.LastSuccess.IsZero())

	results := store.resultsFor(domain.TaskIDRefresh)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestScheduler_ExpectedEndsCountAsSuccess(t *testing.T) {
	for name, runErr := range map[string]error{
		"budget exhausted": context.DeadlineExceeded,
		"cancelled":        context.Canceled,
		"overlap":          domain.ErrSyncInProgress,
	} {
		t.Run(name, func(t *testing.T) {
			store := newMockSchedulerStore()
			orch := &stubOrchestrator{runErr: runErr}
			s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

			ctx := context.Background()
			require.NoError(t, s.ensureTask(ctx, domain.TaskIDRefresh, "Refresh Sync", 15*time.Minute, 25*time.Second))
			s.checkAndRunDueTasks(ctx)

			results := store.resultsFor(domain.TaskIDRefresh)
			require.Len(t, results, 1)
			assert.True(t, results[0].Success, "an early end is not a failure")

			task := store.taskFor(domain.TaskIDRefresh)
			assert.Equal(t, s.now().Add(15*time.Minute), task.NextRun)
		})
	}
}

func TestScheduler_UnreachableSkips(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{}
	remote := newMockRemote()
	remote.setReachable(false)
	s := newTestScheduler(store, orch, remote, &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, s.ensureTask(ctx, domain.TaskIDRefresh, "Refresh Sync", 15*time.Minute, 25*time.Second))
	s.checkAndRunDueTasks(ctx)

	assert.Equal(t, 0, orch.calls())

	// The skip is recorded and the task rescheduled regardless.
	results := store.resultsFor(domain.TaskIDRefresh)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	task := store.taskFor(domain.TaskIDRefresh)
	assert.Equal(t, s.now().Add(15*time.Minute), task.NextRun)
}

func TestScheduler_ProcessingSkipsWhenNotDue(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{backlog: 3}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:          domain.TaskIDProcessing,
		Interval:    30 * time.Minute,
		Budget:      60 * time.Second,
		Enabled:     true,
		NextRun:     s.now(),
		LastSuccess: s.now().Add(-time.Hour),
	}))

	s.checkAndRunDueTasks(ctx)
	assert.Equal(t, 0, orch.calls(), "small backlog and recent success: nothing to do")
}

func TestScheduler_ProcessingDueByBacklog(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{backlog: 11}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:          domain.TaskIDProcessing,
		Interval:    30 * time.Minute,
		Budget:      60 * time.Second,
		Enabled:     true,
		NextRun:     s.now(),
		LastSuccess: s.now().Add(-time.Hour),
	}))

	s.checkAndRunDueTasks(ctx)
	assert.Equal(t, 1, orch.calls())
}

func TestScheduler_ProcessingDueByStaleness(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{backlog: 0}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:          domain.TaskIDProcessing,
		Interval:    30 * time.Minute,
		Budget:      60 * time.Second,
		Enabled:     true,
		NextRun:     s.now(),
		LastSuccess: s.now().Add(-7 * time.Hour),
	}))

	s.checkAndRunDueTasks(ctx)
	assert.Equal(t, 1, orch.calls(), "maintenance older than six hours is due even with no backlog")
}

func TestScheduler_ProcessingGatedOnBattery(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{backlog: 50}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: false})

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:          domain.TaskIDProcessing,
		Interval:    30 * time.Minute,
		Budget:      60 * time.Second,
		Enabled:     true,
		NextRun:     s.now(),
		LastSuccess: s.now().Add(-2 * time.Hour),
	}))

	s.checkAndRunDueTasks(ctx)
	assert.Equal(t, 0, orch.calls(), "a due run on battery waits for external power")

	results := store.resultsFor(domain.TaskIDProcessing)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
}

func TestScheduler_PowerGateRelaxesAfterStarvation(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{backlog: 50}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: false})

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:          domain.TaskIDProcessing,
		Interval:    30 * time.Minute,
		Budget:      60 * time.Second,
		Enabled:     true,
		NextRun:     s.now(),
		LastSuccess: s.now().Add(-25 * time.Hour),
	}))

	s.checkAndRunDueTasks(ctx)
	assert.Equal(t, 1, orch.calls(), "starved maintenance runs even on battery")
}

func TestScheduler_NeverSucceededProcessingRunsOnBattery(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{backlog: 0}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: false})

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDProcessing,
		Interval: 30 * time.Minute,
		Budget:   60 * time.Second,
		Enabled:  true,
		NextRun:  s.now(),
	}))

	s.checkAndRunDueTasks(ctx)
	assert.Equal(t, 1, orch.calls(), "a task with no success history is maximally starved")
}

func TestScheduler_ForegroundShortensRefreshInterval(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, s.ensureTask(ctx, domain.TaskIDRefresh, "Refresh Sync", 15*time.Minute, 25*time.Second))

	s.NoteForegrounded()
	s.checkAndRunDueTasks(ctx)

	task := store.taskFor(domain.TaskIDRefresh)
	require.NotNil(t, task)
	assert.Equal(t, s.now().Add(5*time.Minute), task.NextRun, "foreground window uses the short cadence")
}

func TestScheduler_ForegroundWindowExpires(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

	base := s.now()
	current := base
	s.now = func() time.Time { return current }

	ctx := context.Background()
	require.NoError(t, s.ensureTask(ctx, domain.TaskIDRefresh, "Refresh Sync", 15*time.Minute, 25*time.Second))

	s.NoteForegrounded()
	current = base.Add(31 * time.Minute) // past the 30m window

	s.checkAndRunDueTasks(ctx)

	task := store.taskFor(domain.TaskIDRefresh)
	require.NotNil(t, task)
	assert.Equal(t, current.Add(15*time.Minute), task.NextRun)
}

func TestScheduler_DisabledTaskNeverRuns(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &stubOrchestrator{}
	s := newTestScheduler(store, orch, newMockRemote(), &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDRefresh,
		Interval: 15 * time.Minute,
		Enabled:  false,
		NextRun:  s.now(),
	}))

	s.checkAndRunDueTasks(ctx)
	assert.Equal(t, 0, orch.calls())
}

func TestScheduler_ReconfigureUpdatesIntervals(t *testing.T) {
	store := newMockSchedulerStore()
	s := newTestScheduler(store, &stubOrchestrator{}, newMockRemote(), &mockPower{external: true})

	ctx := context.Background()
	require.NoError(t, s.initialiseTasks(ctx))

	cfg := testSchedulerConfig()
	cfg.RefreshInterval = 7 * time.Minute
	s.Reconfigure(ctx, cfg, 20)

	task := store.taskFor(domain.TaskIDRefresh)
	require.NotNil(t, task)
	assert.Equal(t, 7*time.Minute, task.Interval)
}

func TestScheduler_StartStop(t *testing.T) {
	store := newMockSchedulerStore()
	remote := newMockRemote()
	remote.setReachable(false) // keep runs inert
	s := NewScheduler(testSchedulerConfig(), 10, store, &stubOrchestrator{}, remote, &mockPower{external: true})
	s.tick = 10 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- s.Start(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	// Stop is idempotent.
	s.Stop()
}
