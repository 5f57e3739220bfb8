package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

var cleanupRefresh bool

var errCleanupFailed = errors.New("one or more maintenance tasks failed")

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run maintenance tasks once",
	Long: `Purges expired OAuth states. With --refresh, also refreshes tokens that
expire within the scheduler's refresh window (requires the cipher key).

The same tasks run periodically inside 'socialrelay serve'.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupRefresh, "refresh", false, "also refresh expiring tokens")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if err := appConfig.ValidateStorage(); err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), appConfig, cleanupRefresh)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks := []string{domain.TaskIDStateCleanup}
	if cleanupRefresh {
		tasks = append(tasks, domain.TaskIDTokenRefresh)
	}

	var failed bool
	for _, id := range tasks {
		result := a.scheduler.RunTask(cmd.Context(), id)
		if !result.Success {
			failed = true
			cmd.Printf("%s: failed: %s\n", id, result.Error)
			continue
		}
		cmd.Printf("%s: %d item(s) in %s\n", id, result.ItemsProcessed,
			result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond))
	}
	if failed {
		return errCleanupFailed
	}
	return nil
}
