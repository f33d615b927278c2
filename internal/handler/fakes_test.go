package handler

import (
	"context"
	"sync"

	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

// memStore backs every store interface the services need with maps.
type memStore struct {
	mu         sync.Mutex
	links      map[string]model.ShareLink
	docs       map[string]model.Document
	images     map[string]model.Image
	comments   map[string]model.DocumentComment
	commenters map[string]model.GuestCommenter
	members    map[string]model.OrganizationMember
}

func newMemStore() *memStore {
	return &memStore{
		links:      map[string]model.ShareLink{},
		docs:       map[string]model.Document{},
		images:     map[string]model.Image{},
		comments:   map[string]model.DocumentComment{},
		commenters: map[string]model.GuestCommenter{},
		members:    map[string]model.OrganizationMember{},
	}
}

type linkStore struct{ *memStore }

func (s linkStore) Create(_ context.Context, link *model.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ID]; ok {
		return appErr.ErrConflict
	}
	s.links[link.ID] = *link
	return nil
}

func (s linkStore) Update(_ context.Context, link *model.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.links[link.ID]
	if !ok || !cur.IsActive() {
		return appErr.ErrNotFound
	}
	s.links[link.ID] = *link
	return nil
}

func (s linkStore) Revoke(_ context.Context, id string, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.links[id]
	if !ok {
		return appErr.ErrNotFound
	}
	cur.State = model.ShareStateRevoked
	cur.Mtime = mtime
	s.links[id] = cur
	return nil
}

func (s linkStore) GetByID(_ context.Context, id string) (*model.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.links[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

func (s linkStore) ListByEntry(_ context.Context, entryID string) ([]model.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ShareLink, 0)
	for _, l := range s.links {
		if l.EntryID == entryID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s linkStore) ListByResource(_ context.Context, rt model.ResourceType, id string) ([]model.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ShareLink, 0)
	for _, l := range s.links {
		if l.ResourceType == rt && l.ResourceID == id {
			out = append(out, l)
		}
	}
	return out, nil
}

type docStore struct{ *memStore }

func (s docStore) GetByID(_ context.Context, id string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

func (s docStore) SetAllowComments(_ context.Context, id string, allow bool, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[id]
	if !ok {
		return appErr.ErrNotFound
	}
	cur.AllowComments = allow
	cur.Mtime = mtime
	s.docs[id] = cur
	return nil
}

type imageStore struct{ *memStore }

func (s imageStore) GetByID(_ context.Context, id string) (*model.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.images[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

func (s imageStore) ListByEntry(_ context.Context, entryID string) ([]model.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Image, 0)
	for _, img := range s.images {
		if img.EntryID == entryID && img.State == model.ResourceStateNormal {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s imageStore) Delete(_ context.Context, id string, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.images[id]
	if !ok || cur.State != model.ResourceStateNormal {
		return appErr.ErrNotFound
	}
	cur.State = model.ResourceStateDeleted
	cur.Mtime = mtime
	s.images[id] = cur
	return nil
}

type commentStore struct{ *memStore }

func (s commentStore) Create(_ context.Context, c *model.DocumentComment) error {
	if err := c.Validate(); err != nil {
		return appErr.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = *c
	return nil
}

func (s commentStore) GetByID(_ context.Context, id string) (*model.DocumentComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.comments[id]
	if !ok || cur.State != model.CommentStateNormal {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

func (s commentStore) ListByDocument(_ context.Context, documentID string, _, _ int) ([]model.DocumentComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.DocumentComment, 0)
	for _, c := range s.comments {
		if c.DocumentID == documentID && c.State == model.CommentStateNormal {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s commentStore) Delete(_ context.Context, id string, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.comments[id]
	if !ok || cur.State != model.CommentStateNormal {
		return appErr.ErrNotFound
	}
	cur.State = model.CommentStateDeleted
	cur.Mtime = mtime
	s.comments[id] = cur
	return nil
}

type commenterStore struct{ *memStore }

func (s commenterStore) Upsert(_ context.Context, item *model.GuestCommenter) (*model.GuestCommenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := item.ShareLinkID + "|" + item.Fingerprint
	cur, ok := s.commenters[key]
	if !ok {
		cur = *item
	} else if item.LastSeen > cur.LastSeen {
		cur.LastSeen = item.LastSeen
	}
	s.commenters[key] = cur
	return &cur, nil
}

func (s commenterStore) UpdateDisplayName(_ context.Context, linkID, fingerprint, name string, lastSeen int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkID + "|" + fingerprint
	cur, ok := s.commenters[key]
	if !ok {
		return appErr.ErrNotFound
	}
	cur.DisplayName = name
	cur.LastSeen = lastSeen
	s.commenters[key] = cur
	return nil
}

func (s commenterStore) Get(_ context.Context, linkID, fingerprint string) (*model.GuestCommenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.commenters[linkID+"|"+fingerprint]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

type memberStore struct{ *memStore }

func (s memberStore) Get(_ context.Context, organizationID, userID string) (*model.OrganizationMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[organizationID+"|"+userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &m, nil
}
