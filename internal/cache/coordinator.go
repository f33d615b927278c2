package cache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/metrics"
)

// InvalidationLog is the durable record of invalidations, used to replay
// the ones that did not reach the tag store.
type InvalidationLog interface {
	MarkInvalidated(ctx context.Context, tags []cachetag.Tag, class cachetag.Freshness, at int64) error
	MarkPending(ctx context.Context, tags []cachetag.Tag, class cachetag.Freshness, at int64, cause string) error
}

type Coordinator struct {
	store TagStore
	log   InvalidationLog
	now   func() time.Time
}

type CoordinatorOption func(*Coordinator)

func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCoordinator(store TagStore, log InvalidationLog, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invalidate must only be called once the write that touched tags has
// committed. Failures are logged and queued for reconciliation; they never
// fail the caller's write.
func (c *Coordinator) Invalidate(ctx context.Context, tags ...cachetag.Tag) {
	if c == nil || len(tags) == 0 {
		return
	}
	for class, group := range cachetag.Group(dedupe(tags)) {
		if err := c.InvalidateClass(ctx, group, class); err != nil {
			logutil.GetLogger(ctx).Error("cache invalidation failed, queued for reconcile",
				zap.Strings("tags", tagStrings(group)),
				zap.String("class", class.String()),
				zap.Error(err),
			)
		}
	}
}

// InvalidateClass pushes one class of tags to the store and records the
// outcome in the log. The returned error is the store error.
func (c *Coordinator) InvalidateClass(ctx context.Context, tags []cachetag.Tag, class cachetag.Freshness) error {
	now := c.now()
	err := c.store.Invalidate(ctx, tags, class, now)
	if err != nil {
		metrics.CacheInvalidations.WithLabelValues(class.String(), "failed").Inc()
		if c.log != nil {
			if logErr := c.log.MarkPending(ctx, tags, class, now.Unix(), err.Error()); logErr != nil {
				logutil.GetLogger(ctx).Error("record pending invalidation failed",
					zap.Strings("tags", tagStrings(tags)), zap.Error(logErr))
			}
		}
		return err
	}
	metrics.CacheInvalidations.WithLabelValues(class.String(), "ok").Inc()
	if c.log != nil {
		if logErr := c.log.MarkInvalidated(ctx, tags, class, now.Unix()); logErr != nil {
			logutil.GetLogger(ctx).Warn("record invalidation failed",
				zap.Strings("tags", tagStrings(tags)), zap.Error(logErr))
		}
	}
	return nil
}

func dedupe(tags []cachetag.Tag) []cachetag.Tag {
	seen := make(map[cachetag.Tag]struct{}, len(tags))
	out := make([]cachetag.Tag, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func tagStrings(tags []cachetag.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, string(tag))
	}
	return out
}
