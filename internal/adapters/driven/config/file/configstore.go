// Package file loads engine configuration from a TOML file and watches
// it for changes.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

// debounce collapses the editor write-rename-chmod burst into one reload.
const debounce = 200 * time.Millisecond

// ConfigStore is a file-based TOML configuration source.
// A missing file is not an error; defaults apply.
type ConfigStore struct {
	filePath string
}

// NewConfigStore creates a config store for the given path.
// If path is empty, defaults to ~/.newsreel/config.toml.
func NewConfigStore(path string) (*ConfigStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".newsreel", "config.toml")
	}
	return &ConfigStore{filePath: path}, nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Load reads the TOML file and returns a complete configuration with
// defaults applied. A missing file yields the defaults.
func (s *ConfigStore) Load() (domain.Config, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.DefaultConfig(), nil
		}
		return domain.Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return domain.Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := fc.toDomain()
	cfg.ApplyDefaults()
	return cfg, nil
}

// Watch monitors the config file and invokes onChange with the freshly
// loaded configuration after each edit. It blocks until ctx is
// cancelled. A file that fails to parse is logged and skipped; the
// previous configuration stays in effect.
func (s *ConfigStore) Watch(ctx context.Context, onChange func(domain.Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace the file, which drops a watch
	// placed on the file itself.
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching config directory: %w", err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.filePath) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			cfg, err := s.Load()
			if err != nil {
				logger.Warn("config: reload failed: %v", err)
				continue
			}
			logger.Info("config: reloaded %s", s.filePath)
			onChange(cfg)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config: watcher error: %v", watchErr)
		}
	}
}

// ==================== File schema ====================

// duration makes time.Duration strings like "15m" decodable from TOML.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// fileConfig mirrors domain.Config with TOML tags and string durations.
type fileConfig struct {
	Remote    remoteSection    `toml:"remote"`
	Sync      syncSection      `toml:"sync"`
	Scheduler schedulerSection `toml:"scheduler"`
	Content   contentSection   `toml:"content"`
	Storage   storageSection   `toml:"storage"`
}

type remoteSection struct {
	BaseURL     string   `toml:"base_url"`
	DeviceID    string   `toml:"device_id"`
	Timeout     duration `toml:"timeout"`
	ThrottleRPS float64  `toml:"throttle_rps"`
}

type syncSection struct {
	SeenCap          int      `toml:"seen_cap"`
	BatchSize        int      `toml:"batch_size"`
	Pacing           duration `toml:"pacing"`
	MaxAttempts      int      `toml:"max_attempts"`
	QueueMaxAge      duration `toml:"queue_max_age"`
	BacklogThreshold int      `toml:"backlog_threshold"`
}

type schedulerSection struct {
	// Enabled is a pointer so an absent key keeps the default (on).
	Enabled                   *bool    `toml:"enabled"`
	RefreshInterval           duration `toml:"refresh_interval"`
	RefreshForegroundInterval duration `toml:"refresh_foreground_interval"`
	ForegroundWindow          duration `toml:"foreground_window"`
	RefreshBudget             duration `toml:"refresh_budget"`
	ProcessingInterval        duration `toml:"processing_interval"`
	ProcessingBudget          duration `toml:"processing_budget"`
	ProcessingDue             duration `toml:"processing_due"`
	PowerGraceMax             duration `toml:"power_grace_max"`
}

type contentSection struct {
	GenerationTimeout duration `toml:"generation_timeout"`
	RetryDelay        duration `toml:"retry_delay"`
}

type storageSection struct {
	DataDir string `toml:"data_dir"`
}

func (fc *fileConfig) toDomain() domain.Config {
	enabled := true
	if fc.Scheduler.Enabled != nil {
		enabled = *fc.Scheduler.Enabled
	}

	return domain.Config{
		Remote: domain.RemoteConfig{
			BaseURL:     fc.Remote.BaseURL,
			DeviceID:    fc.Remote.DeviceID,
			Timeout:     time.Duration(fc.Remote.Timeout),
			ThrottleRPS: fc.Remote.ThrottleRPS,
		},
		Sync: domain.SyncConfig{
			SeenCap:          fc.Sync.SeenCap,
			BatchSize:        fc.Sync.BatchSize,
			Pacing:           time.Duration(fc.Sync.Pacing),
			MaxAttempts:      fc.Sync.MaxAttempts,
			QueueMaxAge:      time.Duration(fc.Sync.QueueMaxAge),
			BacklogThreshold: fc.Sync.BacklogThreshold,
		},
		Scheduler: domain.SchedulerConfig{
			Enabled:                   enabled,
			RefreshInterval:           time.Duration(fc.Scheduler.RefreshInterval),
			RefreshForegroundInterval: time.Duration(fc.Scheduler.RefreshForegroundInterval),
			ForegroundWindow:          time.Duration(fc.Scheduler.ForegroundWindow),
			RefreshBudget:             time.Duration(fc.Scheduler.RefreshBudget),
			ProcessingInterval:        time.Duration(fc.Scheduler.ProcessingInterval),
			ProcessingBudget:          time.Duration(fc.Scheduler.ProcessingBudget),
			ProcessingDue:             time.Duration(fc.Scheduler.ProcessingDue),
			PowerGraceMax:             time.Duration(fc.Scheduler.PowerGraceMax),
		},
		Content: domain.ContentConfig{
			GenerationTimeout: time.Duration(fc.Content.GenerationTimeout),
			RetryDelay:        time.Duration(fc.Content.RetryDelay),
		},
		Storage: domain.StorageConfig{
			DataDir: fc.Storage.DataDir,
		},
	}
}
