package service

import (
	"context"

	"github.com/xxxsen/tribute/internal/cache"
	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/timeutil"
)

// ResourceService covers the resource writes that change what guests see.
type ResourceService struct {
	docs   DocumentStore
	images ImageStore
	auth   authority
	coord  Invalidator
	views  *cache.Views[[]model.Image]
}

func NewResourceService(docs DocumentStore, images ImageStore, members MemberStore, coord Invalidator, views *cache.Views[[]model.Image]) *ResourceService {
	return &ResourceService{docs: docs, images: images, auth: authority{members: members}, coord: coord, views: views}
}

func (s *ResourceService) SetCommentsEnabled(ctx context.Context, userID, documentID string, enabled bool) (*model.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.State != model.ResourceStateNormal {
		return nil, appErr.ErrNotFound
	}
	if err := s.auth.requireManage(ctx, userID, doc.UserID, doc.OrganizationID); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	if err := s.docs.SetAllowComments(ctx, doc.ID, enabled, now); err != nil {
		return nil, err
	}
	doc.AllowComments = enabled
	doc.Mtime = now
	s.coord.Invalidate(ctx, cachetag.ForDocument(doc)...)
	return doc, nil
}

// ListEntryImages returns the entry gallery. The cached list tolerates
// bounded staleness, so a new or deleted image may show up late.
func (s *ResourceService) ListEntryImages(ctx context.Context, userID, entryID string) ([]model.Image, error) {
	if entryID == "" {
		return nil, appErr.ErrInvalid
	}
	items, err := s.views.Get(ctx, entryID, []cachetag.Tag{cachetag.EntryImages(entryID)},
		func(ctx context.Context) ([]model.Image, error) {
			return s.images.ListByEntry(ctx, entryID)
		})
	if err != nil {
		return nil, err
	}
	out := make([]model.Image, 0, len(items))
	for _, img := range items {
		ok, err := s.auth.canRead(ctx, userID, img.UserID, img.OrganizationID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s *ResourceService) DeleteImage(ctx context.Context, userID, imageID string) error {
	img, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return err
	}
	if img.State != model.ResourceStateNormal {
		return appErr.ErrNotFound
	}
	if err := s.auth.requireManage(ctx, userID, img.UserID, img.OrganizationID); err != nil {
		return err
	}
	if err := s.images.Delete(ctx, img.ID, timeutil.NowUnix()); err != nil {
		return err
	}
	s.coord.Invalidate(ctx, cachetag.ForImage(img)...)
	return nil
}
