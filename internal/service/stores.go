package service

import (
	"context"

	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/model"
)

// The stores below are satisfied by the repo package.

type ShareLinkStore interface {
	Create(ctx context.Context, link *model.ShareLink) error
	Update(ctx context.Context, link *model.ShareLink) error
	Revoke(ctx context.Context, id string, mtime int64) error
	GetByID(ctx context.Context, id string) (*model.ShareLink, error)
	ListByEntry(ctx context.Context, entryID string) ([]model.ShareLink, error)
	ListByResource(ctx context.Context, resourceType model.ResourceType, resourceID string) ([]model.ShareLink, error)
}

type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
	SetAllowComments(ctx context.Context, id string, allow bool, mtime int64) error
}

type ImageStore interface {
	GetByID(ctx context.Context, id string) (*model.Image, error)
	ListByEntry(ctx context.Context, entryID string) ([]model.Image, error)
	Delete(ctx context.Context, id string, mtime int64) error
}

type CommenterStore interface {
	Upsert(ctx context.Context, item *model.GuestCommenter) (*model.GuestCommenter, error)
	UpdateDisplayName(ctx context.Context, shareLinkID, fingerprint, name string, lastSeen int64) error
	Get(ctx context.Context, shareLinkID, fingerprint string) (*model.GuestCommenter, error)
}

type CommentStore interface {
	Create(ctx context.Context, comment *model.DocumentComment) error
	GetByID(ctx context.Context, id string) (*model.DocumentComment, error)
	ListByDocument(ctx context.Context, documentID string, offset, limit int) ([]model.DocumentComment, error)
	Delete(ctx context.Context, id string, mtime int64) error
}

type MemberStore interface {
	Get(ctx context.Context, organizationID, userID string) (*model.OrganizationMember, error)
}

// Invalidator receives the tag set of a write once it has committed.
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...cachetag.Tag)
}
