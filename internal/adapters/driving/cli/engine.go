package cli

import (
	"fmt"

	configfile "github.com/custodia-labs/newsreel-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/newsreel-cli/internal/adapters/driven/platform"
	"github.com/custodia-labs/newsreel-cli/internal/adapters/driven/remote"
	"github.com/custodia-labs/newsreel-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
	"github.com/custodia-labs/newsreel-cli/internal/core/services"
	"github.com/custodia-labs/newsreel-cli/internal/format/markdown"
)

// engine bundles the wired application services for one command
// invocation.
type engine struct {
	cfg         domain.Config
	configStore *configfile.ConfigStore

	store    *sqlite.Store
	articles driven.ArticleStore

	monitor   *remote.Monitor
	badge     *platform.BadgeSink
	orch      *services.SyncOrchestrator
	content   *services.ContentService
	scheduler *services.Scheduler
}

// newEngine loads configuration and wires the full service graph.
// Callers must close the engine when done.
func newEngine() (*engine, error) {
	configStore, err := configfile.NewConfigStore(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}

	cfg, err := configStore.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagDataDir != "" {
		cfg.Storage.DataDir = flagDataDir
	}

	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	articles := store.ArticleStore()

	var monitor *remote.Monitor
	if cfg.Remote.BaseURL != "" {
		monitor = remote.NewMonitor(cfg.Remote.BaseURL)
	}
	client := remote.NewClient(cfg.Remote, monitor)

	queue := services.NewDedupQueue(articles, cfg.Sync.QueueMaxAge)
	badge := platform.NewBadgeSink()
	orch := services.NewSyncOrchestrator(cfg.Sync, articles, client, queue, badge)
	content := services.NewContentService(cfg.Content, articles, markdown.New())
	scheduler := services.NewScheduler(cfg.Scheduler, cfg.Sync.BacklogThreshold,
		store.SchedulerStore(), orch, client, platform.NewPowerMonitor())

	return &engine{
		cfg:         cfg,
		configStore: configStore,
		store:       store,
		articles:    articles,
		monitor:     monitor,
		badge:       badge,
		orch:        orch,
		content:     content,
		scheduler:   scheduler,
	}, nil
}

func (e *engine) close() {
	e.store.Close() //nolint:errcheck // nothing useful to do on close failure
}
