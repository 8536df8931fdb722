package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driving"
	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

// historyKeep bounds the persisted result history per task.
const historyKeep = 100

// Scheduler decides when sync cycles run.
//
// Two cadences: a short "refresh" cadence, shortened while the app was
// recently foregrounded, and a longer power-gated "processing" cadence
// that drains large backlogs. Every run is wrapped in a hard wall-clock
// budget, and the next run is rescheduled unconditionally afterwards,
// so one failed cycle can never leave the system permanently idle.
type Scheduler struct {
	store  driven.SchedulerStore
	orch   driving.SyncOrchestrator
	remote driven.RemoteClient
	power  driven.PowerMonitor

	mu           sync.Mutex
	cfg          domain.SchedulerConfig
	backlogGate  int
	running      bool
	stopCh       chan struct{}
	foregroundAt time.Time

	// now and tick are swappable for tests.
	now  func() time.Time
	tick time.Duration
}

// NewScheduler creates a scheduler. power may be nil, which is treated
// as permanently on external power.
func NewScheduler(
	cfg domain.SchedulerConfig,
	backlogThreshold int,
	store driven.SchedulerStore,
	orch driving.SyncOrchestrator,
	remote driven.RemoteClient,
	power driven.PowerMonitor,
) *Scheduler {
	return &Scheduler{
		store:       store,
		orch:        orch,
		remote:      remote,
		power:       power,
		cfg:         cfg,
		backlogGate: backlogThreshold,
		now:         time.Now,
		tick:        time.Minute,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is
// called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: initialise tasks: %v", err)
	}

	// Check for due tasks immediately on startup, then on a short tick.
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// Stop shuts down the scheduler loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// NoteForegrounded records that the app just came to the foreground,
// which shortens the refresh cadence for the foreground window.
func (s *Scheduler) NoteForegrounded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foregroundAt = s.now()
}

// Reconfigure applies new cadence settings, e.g. after a config file
// reload, and updates the stored task intervals.
func (s *Scheduler) Reconfigure(ctx context.Context, cfg domain.SchedulerConfig, backlogThreshold int) {
	s.mu.Lock()
	s.cfg = cfg
	s.backlogGate = backlogThreshold
	s.mu.Unlock()
	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: reconfigure: %v", err)
	}
}

// initialiseTasks ensures both cadence tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	cfg := s.config()
	if err := s.ensureTask(ctx, domain.TaskIDRefresh, "Refresh Sync", cfg.RefreshInterval, cfg.RefreshBudget); err != nil {
		return err
	}
	return s.ensureTask(ctx, domain.TaskIDProcessing, "Backlog Processing", cfg.ProcessingInterval, cfg.ProcessingBudget)
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, interval, budget time.Duration) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: interval,
			Budget:   budget,
			Enabled:  true,
			NextRun:  s.now(),
		}
	} else {
		if task.Interval != interval {
			task.Interval = interval
			task.NextRun = s.now().Add(interval)
		}
		task.Budget = budget
	}

	return s.store.SaveTask(ctx, task)
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, task)
		}
	}
}

// runTask executes a single task run within its wall-clock budget and
// unconditionally reschedules the next run.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
	}

	skip, reason := s.shouldSkip(ctx, task)
	if skip {
		result.Skipped = true
		result.Success = true
		result.EndedAt = s.now()
		logger.Debug("scheduler: skipping %s: %s", task.ID, reason)
	} else {
		runCtx, cancel := context.WithTimeout(ctx, task.Budget)
		cycleResult, err := s.orch.RunCycle(runCtx)
		cancel()

		result.EndedAt = s.now()
		if cycleResult != nil {
			result.ItemsProcessed = cycleResult.Persisted
		}

		switch {
		case err == nil:
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		case isExpectedEnd(err):
			// Budget exhaustion and overlap with a running cycle are
			// expected outcomes, not failures. The next trigger picks up
			// the remaining delta.
			result.Success = true
			logger.Debug("scheduler: %s ended early: %v", task.ID, err)
		default:
			result.Success = false
			result.Error = err.Error()
			task.LastError = err.Error()
			logger.Warn("scheduler: %s failed: %v", task.ID, err)
		}
	}

	// Reschedule no matter what happened.
	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(s.intervalFor(task.ID))

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: save task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		logger.Warn("scheduler: record result %s: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, historyKeep); err != nil {
		logger.Warn("scheduler: prune history: %v", err)
	}
}

// shouldSkip applies the connectivity and power gates.
func (s *Scheduler) shouldSkip(ctx context.Context, task *domain.ScheduledTask) (bool, string) {
	if s.remote != nil && !s.remote.IsReachable() {
		return true, "network unreachable"
	}

	if task.ID != domain.TaskIDProcessing {
		return false, ""
	}

	cfg := s.config()
	now := s.now()
	sinceSuccess := now.Sub(task.LastSuccess)
	if task.LastSuccess.IsZero() {
		sinceSuccess = cfg.PowerGraceMax + time.Second
	}

	backlog := s.orch.Backlog(ctx)
	due := backlog > s.backlogThreshold() || sinceSuccess > cfg.ProcessingDue
	if !due {
		return true, "backlog small and maintenance recent"
	}

	// Power-gating is relaxed once maintenance has been starved long
	// enough that forward progress must be guaranteed.
	if !s.onExternalPower() && sinceSuccess <= cfg.PowerGraceMax {
		return true, "on battery"
	}
	return false, ""
}

// intervalFor picks the effective interval, honouring the shortened
// foreground refresh cadence.
func (s *Scheduler) intervalFor(taskID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch taskID {
	case domain.TaskIDRefresh:
		if !s.foregroundAt.IsZero() && s.now().Sub(s.foregroundAt) < s.cfg.ForegroundWindow {
			return s.cfg.RefreshForegroundInterval
		}
		return s.cfg.RefreshInterval
	case domain.TaskIDProcessing:
		return s.cfg.ProcessingInterval
	default:
		return s.cfg.RefreshInterval
	}
}

func (s *Scheduler) config() domain.SchedulerConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Scheduler) backlogThreshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlogGate
}

func (s *Scheduler) onExternalPower() bool {
	if s.power == nil {
		return true
	}
	return s.power.OnExternalPower()
}

// isExpectedEnd reports whether a cycle error is an expected early end
// rather than a failure.
func isExpectedEnd(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrSyncInProgress)
}
