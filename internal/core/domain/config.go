package domain

import "time"

// Config holds the full engine configuration.
// The file adapter loads it from TOML; zero values fall back to defaults.
type Config struct {
	Remote    RemoteConfig
	Sync      SyncConfig
	Scheduler SchedulerConfig
	Content   ContentConfig
	Storage   StorageConfig
}

// RemoteConfig configures the news API client.
type RemoteConfig struct {
	// BaseURL is the API root, e.g. "https://api.example.com".
	BaseURL string

	// DeviceID is the stored device credential exchanged for a bearer
	// token via POST /authenticate.
	DeviceID string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// ThrottleRPS caps the proactive request rate against the API.
	ThrottleRPS float64
}

// SyncConfig configures the batch sync orchestrator and dedup queue.
type SyncConfig struct {
	// SeenCap bounds how many recent locators are sent with a delta
	// request to keep the payload small.
	SeenCap int

	// BatchSize is the number of articles fetched per sub-batch.
	BatchSize int

	// Pacing is the sleep between sub-batches, protecting the single
	// database writer from saturation.
	Pacing time.Duration

	// MaxAttempts bounds retries of retryable operations.
	MaxAttempts int

	// QueueMaxAge drops pending work items older than this.
	QueueMaxAge time.Duration

	// BacklogThreshold is the pending-item count above which the
	// processing cadence becomes due.
	BacklogThreshold int
}

// SchedulerConfig configures the two sync cadences.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// RefreshInterval is the normal refresh cadence.
	RefreshInterval time.Duration

	// RefreshForegroundInterval replaces RefreshInterval while the app
	// was recently foregrounded.
	RefreshForegroundInterval time.Duration

	// ForegroundWindow is how long a foreground hint stays fresh.
	ForegroundWindow time.Duration

	// RefreshBudget is the wall-clock timeout of a refresh run.
	RefreshBudget time.Duration

	// ProcessingInterval is the backlog-drain cadence.
	ProcessingInterval time.Duration

	// ProcessingBudget is the wall-clock timeout of a processing run.
	ProcessingBudget time.Duration

	// ProcessingDue marks processing due when the last success is older
	// than this, even with a small backlog.
	ProcessingDue time.Duration

	// PowerGraceMax relaxes the external-power gate once the last
	// successful processing run is older than this, so maintenance is
	// guaranteed forward progress.
	PowerGraceMax time.Duration
}

// ContentConfig configures the rich-content cache.
type ContentConfig struct {
	// GenerationTimeout bounds one formatting attempt.
	GenerationTimeout time.Duration

	// RetryDelay is the pause before the single generation retry.
	RetryDelay time.Duration
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	// DataDir is where the database lives. Empty means
	// ~/.newsreel/data.
	DataDir string
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			Timeout:     30 * time.Second,
			ThrottleRPS: 2,
		},
		Sync: SyncConfig{
			SeenCap:          200,
			BatchSize:        10,
			Pacing:           50 * time.Millisecond,
			MaxAttempts:      3,
			QueueMaxAge:      24 * time.Hour,
			BacklogThreshold: 10,
		},
		Scheduler: SchedulerConfig{
			Enabled:                   true,
			RefreshInterval:           15 * time.Minute,
			RefreshForegroundInterval: 5 * time.Minute,
			ForegroundWindow:          30 * time.Minute,
			RefreshBudget:             25 * time.Second,
			ProcessingInterval:        30 * time.Minute,
			ProcessingBudget:          60 * time.Second,
			ProcessingDue:             6 * time.Hour,
			PowerGraceMax:             24 * time.Hour,
		},
		Content: ContentConfig{
			GenerationTimeout: 5 * time.Second,
			RetryDelay:        250 * time.Millisecond,
		},
	}
}

// ApplyDefaults fills zero values with defaults. Used after decoding a
// partial TOML file.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = d.Remote.Timeout
	}
	if c.Remote.ThrottleRPS == 0 {
		c.Remote.ThrottleRPS = d.Remote.ThrottleRPS
	}
	if c.Sync.SeenCap == 0 {
		c.Sync.SeenCap = d.Sync.SeenCap
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = d.Sync.BatchSize
	}
	if c.Sync.Pacing == 0 {
		c.Sync.Pacing = d.Sync.Pacing
	}
	if c.Sync.MaxAttempts == 0 {
		c.Sync.MaxAttempts = d.Sync.MaxAttempts
	}
	if c.Sync.QueueMaxAge == 0 {
		c.Sync.QueueMaxAge = d.Sync.QueueMaxAge
	}
	if c.Sync.BacklogThreshold == 0 {
		c.Sync.BacklogThreshold = d.Sync.BacklogThreshold
	}
	if c.Scheduler.RefreshInterval == 0 {
		c.Scheduler.RefreshInterval = d.Scheduler.RefreshInterval
	}
	if c.Scheduler.RefreshForegroundInterval == 0 {
		c.Scheduler.RefreshForegroundInterval = d.Scheduler.RefreshForegroundInterval
	}
	if c.Scheduler.ForegroundWindow == 0 {
		c.Scheduler.ForegroundWindow = d.Scheduler.ForegroundWindow
	}
	if c.Scheduler.RefreshBudget == 0 {
		c.Scheduler.RefreshBudget = d.Scheduler.RefreshBudget
	}
	if c.Scheduler.ProcessingInterval == 0 {
		c.Scheduler.ProcessingInterval = d.Scheduler.ProcessingInterval
	}
	if c.Scheduler.ProcessingBudget == 0 {
		c.Scheduler.ProcessingBudget = d.Scheduler.ProcessingBudget
	}
	if c.Scheduler.ProcessingDue == 0 {
		c.Scheduler.ProcessingDue = d.Scheduler.ProcessingDue
	}
	if c.Scheduler.PowerGraceMax == 0 {
		c.Scheduler.PowerGraceMax = d.Scheduler.PowerGraceMax
	}
	if c.Content.GenerationTimeout == 0 {
		c.Content.GenerationTimeout = d.Content.GenerationTimeout
	}
	if c.Content.RetryDelay == 0 {
		c.Content.RetryDelay = d.Content.RetryDelay
	}
}
