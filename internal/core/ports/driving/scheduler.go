package driving

import "context"

// Scheduler runs the background maintenance tasks: expired OAuth state
// cleanup and token refresh.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error
}
