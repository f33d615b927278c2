package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/cache"
	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/guesttoken"
	"github.com/xxxsen/tribute/internal/pkg/password"
	"github.com/xxxsen/tribute/internal/pkg/timeutil"
)

type CreateShareInput struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Permission   string `json:"permission"`
	Password     string `json:"password"`
	ExpiresAt    int64  `json:"expires_at"`
	PublicView   bool   `json:"public_view"`
}

// UpdateShareInput changes only the fields that are set. An empty Password
// clears the password.
type UpdateShareInput struct {
	Permission *string `json:"permission"`
	Password   *string `json:"password"`
	ExpiresAt  *int64  `json:"expires_at"`
	PublicView *bool   `json:"public_view"`
}

type ShareService struct {
	links     ShareLinkStore
	docs      DocumentStore
	images    ImageStore
	auth      authority
	coord     Invalidator
	codec     *guesttoken.Codec
	views     *cache.Views[[]model.ShareLink]
	inviteTTL time.Duration
}

func NewShareService(links ShareLinkStore, docs DocumentStore, images ImageStore, members MemberStore, coord Invalidator, codec *guesttoken.Codec, views *cache.Views[[]model.ShareLink], inviteTTL time.Duration) *ShareService {
	if inviteTTL <= 0 {
		inviteTTL = 30 * 24 * time.Hour
	}
	return &ShareService{
		links: links, docs: docs, images: images, auth: authority{members: members},
		coord: coord, codec: codec, views: views, inviteTTL: inviteTTL,
	}
}

func (s *ShareService) Create(ctx context.Context, userID string, input CreateShareInput) (*model.ShareLink, error) {
	resourceType := model.ResourceType(strings.TrimSpace(input.ResourceType))
	if !resourceType.Valid() || strings.TrimSpace(input.ResourceID) == "" {
		return nil, appErr.ErrInvalid
	}
	perm, ok := model.ParsePermission(input.Permission)
	if !ok {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	if input.ExpiresAt < 0 || (input.ExpiresAt > 0 && input.ExpiresAt <= now) {
		return nil, appErr.ErrInvalid
	}
	entryID, err := s.authorizeResource(ctx, userID, resourceType, input.ResourceID)
	if err != nil {
		return nil, err
	}
	link := &model.ShareLink{
		ID:           newLinkID(),
		ResourceType: resourceType,
		ResourceID:   input.ResourceID,
		EntryID:      entryID,
		UserID:       userID,
		ExpiresAt:    input.ExpiresAt,
		State:        model.ShareStateActive,
		Permission:   perm,
		PublicView:   input.PublicView,
		Ctime:        now,
		Mtime:        now,
	}
	if input.Password != "" {
		hash, err := hashLinkPassword(input.Password)
		if err != nil {
			return nil, err
		}
		link.PasswordHash = hash
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, err
	}
	s.coord.Invalidate(ctx, cachetag.ForShareLink(link)...)
	logutil.GetLogger(ctx).Info("share link created",
		zap.String("share_link_id", link.ID),
		zap.String("resource_type", string(link.ResourceType)),
		zap.String("resource_id", link.ResourceID),
	)
	return link, nil
}

func (s *ShareService) Update(ctx context.Context, userID, linkID string, input UpdateShareInput) (*model.ShareLink, error) {
	link, err := s.manageable(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	if !link.IsActive() {
		return nil, appErr.ErrLinkRevoked
	}
	now := timeutil.NowUnix()
	if input.Permission != nil {
		perm, ok := model.ParsePermission(*input.Permission)
		if !ok {
			return nil, appErr.ErrInvalid
		}
		link.Permission = perm
	}
	if input.ExpiresAt != nil {
		if *input.ExpiresAt < 0 || (*input.ExpiresAt > 0 && *input.ExpiresAt <= now) {
			return nil, appErr.ErrInvalid
		}
		link.ExpiresAt = *input.ExpiresAt
	}
	if input.PublicView != nil {
		link.PublicView = *input.PublicView
	}
	if input.Password != nil {
		link.PasswordHash = ""
		if *input.Password != "" {
			hash, err := hashLinkPassword(*input.Password)
			if err != nil {
				return nil, err
			}
			link.PasswordHash = hash
		}
	}
	link.Mtime = now
	if err := s.links.Update(ctx, link); err != nil {
		return nil, err
	}
	s.coord.Invalidate(ctx, cachetag.ForShareLink(link)...)
	return link, nil
}

// Revoke takes effect for the next request carrying a token for the link;
// tokens already issued are not tracked.
func (s *ShareService) Revoke(ctx context.Context, userID, linkID string) error {
	link, err := s.manageable(ctx, userID, linkID)
	if err != nil {
		return err
	}
	if err := s.links.Revoke(ctx, link.ID, timeutil.NowUnix()); err != nil {
		return err
	}
	s.coord.Invalidate(ctx, cachetag.ForShareLink(link)...)
	logutil.GetLogger(ctx).Info("share link revoked", zap.String("share_link_id", link.ID))
	return nil
}

func (s *ShareService) Get(ctx context.Context, userID, linkID string) (*model.ShareLink, error) {
	return s.manageable(ctx, userID, linkID)
}

func (s *ShareService) ListByEntry(ctx context.Context, userID, entryID string) ([]model.ShareLink, error) {
	if entryID == "" {
		return nil, appErr.ErrInvalid
	}
	items, err := s.views.Get(ctx, "entry:"+entryID, []cachetag.Tag{cachetag.EntryShareLinks(entryID)},
		func(ctx context.Context) ([]model.ShareLink, error) {
			return s.links.ListByEntry(ctx, entryID)
		})
	if err != nil {
		return nil, err
	}
	return s.filterManageable(ctx, userID, items)
}

func (s *ShareService) ListByResource(ctx context.Context, userID, resourceType, resourceID string) ([]model.ShareLink, error) {
	rt := model.ResourceType(resourceType)
	if !rt.Valid() || resourceID == "" {
		return nil, appErr.ErrInvalid
	}
	if _, err := s.authorizeResource(ctx, userID, rt, resourceID); err != nil {
		return nil, err
	}
	tag := cachetag.ResourceShareLinks(rt, resourceID)
	return s.views.Get(ctx, string(tag), []cachetag.Tag{tag},
		func(ctx context.Context) ([]model.ShareLink, error) {
			return s.links.ListByResource(ctx, rt, resourceID)
		})
}

// IssueInvite mints a token for the link that is not yet bound to a visitor.
// It is meant to travel in a URL and gets rebound on first use.
func (s *ShareService) IssueInvite(ctx context.Context, userID, linkID string) (*guesttoken.Issued, error) {
	link, err := s.manageable(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	now := s.codec.Now().Unix()
	if !link.IsActive() {
		return nil, appErr.ErrLinkRevoked
	}
	if link.ExpiredAt(now) {
		return nil, appErr.ErrLinkExpired
	}
	exp := timeutil.MinExpiry(now+int64(s.inviteTTL/time.Second), link.ExpiresAt)
	return s.codec.IssueUntil(link.ID, "", time.Unix(exp, 0))
}

func hashLinkPassword(plain string) (string, error) {
	hash, err := password.Hash(plain)
	if errors.Is(err, password.ErrTooLong) {
		return "", appErr.ErrInvalid
	}
	return hash, err
}

func (s *ShareService) manageable(ctx context.Context, userID, linkID string) (*model.ShareLink, error) {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.UserID == userID {
		return link, nil
	}
	if _, err := s.authorizeResource(ctx, userID, link.ResourceType, link.ResourceID); err != nil {
		return nil, err
	}
	return link, nil
}

// authorizeResource checks that userID may share the resource and returns
// the entry it belongs to.
func (s *ShareService) authorizeResource(ctx context.Context, userID string, resourceType model.ResourceType, resourceID string) (string, error) {
	var ownerID, orgID, entryID string
	switch resourceType {
	case model.ResourceDocument:
		doc, err := s.docs.GetByID(ctx, resourceID)
		if err != nil {
			return "", err
		}
		if doc.State != model.ResourceStateNormal {
			return "", appErr.ErrNotFound
		}
		ownerID, orgID, entryID = doc.UserID, doc.OrganizationID, doc.EntryID
	case model.ResourceImage:
		img, err := s.images.GetByID(ctx, resourceID)
		if err != nil {
			return "", err
		}
		if img.State != model.ResourceStateNormal {
			return "", appErr.ErrNotFound
		}
		ownerID, orgID, entryID = img.UserID, img.OrganizationID, img.EntryID
	default:
		return "", appErr.ErrInvalid
	}
	if err := s.auth.requireManage(ctx, userID, ownerID, orgID); err != nil {
		return "", err
	}
	return entryID, nil
}

func (s *ShareService) filterManageable(ctx context.Context, userID string, items []model.ShareLink) ([]model.ShareLink, error) {
	allowed := make(map[string]bool)
	out := make([]model.ShareLink, 0, len(items))
	for _, item := range items {
		if item.UserID == userID {
			out = append(out, item)
			continue
		}
		key := string(item.ResourceType) + ":" + item.ResourceID
		ok, seen := allowed[key]
		if !seen {
			_, err := s.authorizeResource(ctx, userID, item.ResourceType, item.ResourceID)
			switch {
			case err == nil:
				ok = true
			case appErr.IsNotFound(err), errors.Is(err, appErr.ErrForbidden):
				ok = false
			default:
				return nil, err
			}
			allowed[key] = ok
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}
