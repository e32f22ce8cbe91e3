package ports

import (
	"context"
	"errors"

	"vanguard/internal/domain"
)

// ErrNotFound is returned by stores when the addressed record does not exist.
var ErrNotFound = errors.New("not found")

// JobRepository persists audit jobs and their PENDING -> FIXED transition.
type JobRepository interface {
	Create(ctx context.Context, target string, cost int, pdf string) (domain.Job, error)
	Get(ctx context.Context, id int64) (domain.Job, error)
	// MarkFixed transitions one job by id.
	MarkFixed(ctx context.Context, id int64, pdf string) (domain.Job, error)
	// MarkLatestFixed transitions the most recently created PENDING job whose
	// target equals target exactly. At most one row changes.
	MarkLatestFixed(ctx context.Context, target string, pdf string) (domain.Job, error)
	// List returns every job, most recent first.
	List(ctx context.Context) ([]domain.Job, error)
}
