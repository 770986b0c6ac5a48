package driving

import "context"

// Scheduler keeps the tag index fresh and the embedding queue drained
// while a server runs.
type Scheduler interface {
	// Start blocks until Stop or until ctx ends.
	Start(ctx context.Context) error
	// Stop waits for in-flight runs to finish.
	Stop() error
}
