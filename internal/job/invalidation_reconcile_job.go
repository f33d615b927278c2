package job

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/model"
)

type PendingInvalidations interface {
	ListPending(ctx context.Context, limit int) ([]model.CacheInvalidation, error)
}

type ClassInvalidator interface {
	InvalidateClass(ctx context.Context, tags []cachetag.Tag, class cachetag.Freshness) error
}

// InvalidationReconcileJob replays invalidations that never reached the tag
// store. A successful replay marks the rows done through the coordinator's log.
type InvalidationReconcileJob struct {
	pending   PendingInvalidations
	coord     ClassInvalidator
	batchSize int
}

func NewInvalidationReconcileJob(pending PendingInvalidations, coord ClassInvalidator, batchSize int) *InvalidationReconcileJob {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &InvalidationReconcileJob{pending: pending, coord: coord, batchSize: batchSize}
}

func (j *InvalidationReconcileJob) Name() string {
	return "invalidation_reconcile"
}

func (j *InvalidationReconcileJob) Run(ctx context.Context) error {
	items, err := j.pending.ListPending(ctx, j.batchSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	groups := make(map[cachetag.Freshness][]cachetag.Tag, 2)
	for _, item := range items {
		class := cachetag.ParseFreshness(item.Class)
		groups[class] = append(groups[class], cachetag.Tag(item.Tag))
	}
	var errs []error
	for _, class := range []cachetag.Freshness{cachetag.FreshnessImmediate, cachetag.FreshnessMax} {
		tags := groups[class]
		if len(tags) == 0 {
			continue
		}
		if err := j.coord.InvalidateClass(ctx, tags, class); err != nil {
			errs = append(errs, err)
			continue
		}
		logutil.GetLogger(ctx).Info("pending invalidations replayed",
			zap.String("class", class.String()),
			zap.Int("count", len(tags)),
		)
	}
	return errors.Join(errs...)
}
