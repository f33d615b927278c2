package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/tribute/internal/cachetag"
)

// TagState is the last recorded invalidation of a tag.
type TagState struct {
	InvalidatedAt int64
	Class         cachetag.Freshness
}

type TagStore interface {
	Invalidate(ctx context.Context, tags []cachetag.Tag, class cachetag.Freshness, at time.Time) error
	Lookup(ctx context.Context, tags []cachetag.Tag) (map[cachetag.Tag]TagState, error)
}

// MemoryTagStore keeps tag states for a single process.
type MemoryTagStore struct {
	mu     sync.RWMutex
	states map[cachetag.Tag]TagState
}

func NewMemoryTagStore() *MemoryTagStore {
	return &MemoryTagStore{states: make(map[cachetag.Tag]TagState)}
}

func (s *MemoryTagStore) Invalidate(ctx context.Context, tags []cachetag.Tag, class cachetag.Freshness, at time.Time) error {
	stamp := at.UnixNano()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range tags {
		cur, ok := s.states[tag]
		if ok && cur.InvalidatedAt >= stamp {
			continue
		}
		s.states[tag] = TagState{InvalidatedAt: stamp, Class: class}
	}
	return nil
}

func (s *MemoryTagStore) Lookup(ctx context.Context, tags []cachetag.Tag) (map[cachetag.Tag]TagState, error) {
	out := make(map[cachetag.Tag]TagState, len(tags))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tag := range tags {
		if st, ok := s.states[tag]; ok {
			out[tag] = st
		}
	}
	return out, nil
}
