package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

// IngestOutcome is the result of one region's diary invocation.
type IngestOutcome struct {
	RegionID string
	Result   domain.DiaryResult
	Err      error
}

// IngestAll runs the diary stage once per region with at most limit
// invocations in flight. Regions are independent: a failure is reported in
// its outcome and does not stop the others. Outcomes keep the input order.
func IngestAll(ctx context.Context, stage *DiaryStage, regionIDs []string, limit int) []IngestOutcome {
	outcomes := make([]IngestOutcome, len(regionIDs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range regionIDs {
		g.Go(func() error {
			res, err := stage.Run(ctx, id)
			outcomes[i] = IngestOutcome{RegionID: id, Result: res, Err: err}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never return an error

	return outcomes
}
