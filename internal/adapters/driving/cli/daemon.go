package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync scheduler",
	Long: `Starts the scheduler loop, the network path monitor and the config
file watcher, then blocks until interrupted.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	if !eng.cfg.Scheduler.Enabled {
		return errors.New("scheduler is disabled in configuration")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if eng.monitor != nil {
		go eng.monitor.Start(ctx)
	}

	go func() {
		err := eng.configStore.Watch(ctx, func(cfg domain.Config) {
			eng.scheduler.Reconfigure(ctx, cfg.Scheduler, cfg.Sync.BacklogThreshold)
		})
		if err != nil {
			logger.Warn("daemon: config watch: %v", err)
		}
	}()

	cmd.Printf("newsreel daemon started (config: %s, db: %s)\n",
		eng.configStore.Path(), eng.store.Path())

	err = eng.scheduler.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	cmd.Println("newsreel daemon stopped")
	return nil
}
