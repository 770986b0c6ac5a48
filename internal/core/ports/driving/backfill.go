package driving

import (
	"context"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// BackfillService runs bounded, resumable maintenance jobs.
type BackfillService interface {
	// BackfillTenants copies document tenants onto denormalized rows until
	// every table converges or ctx is cancelled.
	BackfillTenants(ctx context.Context) (*domain.BackfillReport, error)
}
