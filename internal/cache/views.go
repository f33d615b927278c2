package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/metrics"
)

type viewEntry[T any] struct {
	value    T
	filledAt int64
	tags     []cachetag.Tag
}

// Views is a read-through cache of derived views. Entries are dropped by
// tag invalidation rather than by key.
type Views[T any] struct {
	name     string
	lru      *expirable.LRU[string, viewEntry[T]]
	tags     TagStore
	maxStale time.Duration
	now      func() time.Time
}

func NewViews[T any](name string, tags TagStore, size int, ttl, maxStale time.Duration) *Views[T] {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Views[T]{
		name:     name,
		lru:      expirable.NewLRU[string, viewEntry[T]](size, nil, ttl),
		tags:     tags,
		maxStale: maxStale,
		now:      time.Now,
	}
}

func (v *Views[T]) Get(ctx context.Context, key string, tags []cachetag.Tag, load func(ctx context.Context) (T, error)) (T, error) {
	if entry, ok := v.lru.Get(key); ok {
		if v.fresh(ctx, entry) {
			metrics.ViewCacheLookups.WithLabelValues(v.name, "hit").Inc()
			return entry.value, nil
		}
		metrics.ViewCacheLookups.WithLabelValues(v.name, "stale").Inc()
	} else {
		metrics.ViewCacheLookups.WithLabelValues(v.name, "miss").Inc()
	}
	// taken before loading so an invalidation racing the load still wins
	filledAt := v.now().UnixNano()
	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v.lru.Add(key, viewEntry[T]{value: value, filledAt: filledAt, tags: append([]cachetag.Tag(nil), tags...)})
	return value, nil
}

func (v *Views[T]) fresh(ctx context.Context, entry viewEntry[T]) bool {
	if len(entry.tags) == 0 {
		return true
	}
	states, err := v.tags.Lookup(ctx, entry.tags)
	if err != nil {
		logutil.GetLogger(ctx).Warn("view cache tag lookup failed", zap.String("view", v.name), zap.Error(err))
		return false
	}
	now := v.now().UnixNano()
	for _, tag := range entry.tags {
		st, ok := states[tag]
		if !ok || st.InvalidatedAt < entry.filledAt {
			continue
		}
		if st.Class == cachetag.FreshnessImmediate {
			return false
		}
		if now >= st.InvalidatedAt+v.maxStale.Nanoseconds() {
			return false
		}
	}
	return true
}

func (v *Views[T]) Len() int {
	return v.lru.Len()
}
