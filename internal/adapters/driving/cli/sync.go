package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync [locator...]",
	Short: "Run one sync cycle",
	Long: `Runs a single reconciliation cycle against the news API.
Any locators given as arguments are enqueued ahead of the server delta,
the way a push notification would fast-track them.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ctx := cmd.Context()

	for _, locator := range args {
		admitted, err := eng.orch.Enqueue(ctx, locator, "")
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", locator, err)
		}
		if !admitted {
			cmd.Printf("%s already known, skipping\n", locator)
		}
	}

	cmd.Println("Synchronising...")
	result, err := eng.orch.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			return errors.New("a sync cycle is already running")
		}
		if errors.Is(err, context.Canceled) {
			cmd.Println("Sync cancelled.")
			return nil
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Printf("Done: %d unseen, %d persisted, %d item errors, %d unread.\n",
		result.DeltaSize, result.Persisted, result.ItemErrors, result.UnreadCount)
	return nil
}
