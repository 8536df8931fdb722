package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
)

// historyShown bounds the per-task history listing.
const historyShown = 5

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync and scheduler status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ctx := cmd.Context()

	status := eng.orch.Status()
	cmd.Printf("Cycle phase: %s\n", status.Phase)
	if !status.State.LastSuccess.IsZero() {
		cmd.Printf("Last successful cycle: %s\n", status.State.LastSuccess.Format("2006-01-02 15:04:05"))
	}
	if status.State.FailureCount > 0 {
		cmd.Printf("Consecutive failures: %d\n", status.State.FailureCount)
	}
	cmd.Printf("Pending backlog: %d\n", eng.orch.Backlog(ctx))

	unread, err := eng.articles.UnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("counting unread: %w", err)
	}
	cmd.Printf("Unread articles: %d\n", unread)

	tasks, err := eng.store.SchedulerStore().ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	for i := range tasks {
		printTask(cmd, &tasks[i])

		history, err := eng.store.SchedulerStore().GetTaskHistory(ctx, tasks[i].ID, historyShown)
		if err != nil {
			return fmt.Errorf("task history: %w", err)
		}
		for _, result := range history {
			printResult(cmd, &result)
		}
	}
	return nil
}

func printTask(cmd *cobra.Command, task *domain.ScheduledTask) {
	cmd.Printf("\nTask %s (%s)\n", task.ID, task.Name)
	cmd.Printf("  Interval: %s  Budget: %s  Enabled: %v\n", task.Interval, task.Budget, task.Enabled)
	if !task.LastRun.IsZero() {
		cmd.Printf("  Last run: %s\n", task.LastRun.Format("2006-01-02 15:04:05"))
	}
	if !task.NextRun.IsZero() {
		cmd.Printf("  Next run: %s\n", task.NextRun.Format("2006-01-02 15:04:05"))
	}
	if task.LastError != "" {
		cmd.Printf("  Last error: %s\n", task.LastError)
	}
}

func printResult(cmd *cobra.Command, result *domain.TaskResult) {
	outcome := "ok"
	switch {
	case result.Skipped:
		outcome = "skipped"
	case !result.Success:
		outcome = "failed: " + result.Error
	}
	cmd.Printf("    %s  %s (%d items)\n",
		result.StartedAt.Format("2006-01-02 15:04:05"), outcome, result.ItemsProcessed)
}
