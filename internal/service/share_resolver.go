package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/metrics"
	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/guesttoken"
	"github.com/xxxsen/tribute/internal/pkg/password"
	"github.com/xxxsen/tribute/internal/pkg/timeutil"
	"github.com/xxxsen/tribute/internal/ratelimit"
)

// Decision is the outcome of resolving guest access to a shared resource.
type Decision struct {
	Link       *model.ShareLink   `json:"share_link"`
	Document   *model.Document    `json:"document,omitempty"`
	Image      *model.Image       `json:"image,omitempty"`
	Permission model.Permission   `json:"permission"`
	Claims     *guesttoken.Claims `json:"-"`
}

// Fingerprint is the visitor the token was bound to, empty for invite and
// anonymous access.
func (d *Decision) Fingerprint() string {
	if d == nil || d.Claims == nil {
		return ""
	}
	return d.Claims.Fingerprint
}

type ShareResolver struct {
	codec    *guesttoken.Codec
	links    ShareLinkStore
	docs     DocumentStore
	images   ImageStore
	limiter  ratelimit.Limiter
	tokenTTL time.Duration
}

func NewShareResolver(codec *guesttoken.Codec, links ShareLinkStore, docs DocumentStore, images ImageStore, limiter ratelimit.Limiter, tokenTTL time.Duration) *ShareResolver {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &ShareResolver{codec: codec, links: links, docs: docs, images: images, limiter: limiter, tokenTTL: tokenTTL}
}

// Resolve maps a guest token onto its share link, resource and effective
// permission. The link is always read from the store, never from a cache.
func (r *ShareResolver) Resolve(ctx context.Context, token string) (*Decision, error) {
	claims, err := r.codec.Verify(token)
	if err != nil {
		metrics.TokenVerifications.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}
	metrics.TokenVerifications.WithLabelValues("ok").Inc()
	d, err := r.decide(ctx, claims.ShareLinkID)
	if err != nil {
		return nil, r.record(err)
	}
	d.Claims = claims
	return d, r.record(nil)
}

// Authorize resolves token and requires the effective permission to cover need.
func (r *ShareResolver) Authorize(ctx context.Context, token string, need model.Permission) (*Decision, error) {
	claims, err := r.codec.Verify(token)
	if err != nil {
		metrics.TokenVerifications.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}
	metrics.TokenVerifications.WithLabelValues("ok").Inc()
	d, err := r.decide(ctx, claims.ShareLinkID)
	if err == nil && !d.Permission.Allows(need) {
		err = appErr.ErrPermissionInsufficient
	}
	if err != nil {
		return nil, r.record(err)
	}
	d.Claims = claims
	return d, r.record(nil)
}

// ResolveAnonymous serves tokenless visits to public, password-less links.
// The result never grants more than view.
func (r *ShareResolver) ResolveAnonymous(ctx context.Context, linkID string) (*Decision, error) {
	d, err := r.decide(ctx, linkID)
	if err != nil {
		return nil, r.record(err)
	}
	if d.Link.HasPassword() || !d.Link.PublicView {
		return nil, r.record(appErr.ErrNoToken)
	}
	d.Permission = model.Intersect(d.Permission, model.PermissionView)
	return d, r.record(nil)
}

// ResolveWithPassword unlocks a password protected link and issues a fresh
// token bound to fingerprint. A link without a password issues nothing: a
// public one answers like ResolveAnonymous with a nil token, a private one
// needs an invite.
func (r *ShareResolver) ResolveWithPassword(ctx context.Context, linkID, plain, clientKey, fingerprint string) (*guesttoken.Issued, *Decision, error) {
	d, err := r.decide(ctx, linkID)
	if err != nil {
		return nil, nil, r.record(err)
	}
	if !d.Link.HasPassword() {
		if !d.Link.PublicView {
			return nil, nil, r.record(appErr.ErrNoToken)
		}
		d.Permission = model.Intersect(d.Permission, model.PermissionView)
		return nil, d, r.record(nil)
	}
	if err := r.throttle(ctx, linkID, clientKey); err != nil {
		return nil, nil, r.record(err)
	}
	if !password.Matches(d.Link.PasswordHash, plain) {
		return nil, nil, r.record(appErr.ErrWrongPassword)
	}
	now := r.codec.Now().Unix()
	exp := timeutil.MinExpiry(now+int64(r.tokenTTL/time.Second), d.Link.ExpiresAt)
	issued, err := r.codec.IssueUntil(d.Link.ID, fingerprint, time.Unix(exp, 0))
	if err != nil {
		return nil, nil, err
	}
	d.Claims = &issued.Claims
	return issued, d, r.record(nil)
}

// Rebind exchanges a valid token for one bound to fingerprint. Expiry never
// moves later than the original token, the configured ttl or the link.
func (r *ShareResolver) Rebind(ctx context.Context, token, fingerprint string) (*guesttoken.Issued, *Decision, error) {
	if fingerprint == "" {
		return nil, nil, appErr.ErrInvalid
	}
	claims, err := r.codec.Verify(token)
	if err != nil {
		metrics.TokenVerifications.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, nil, err
	}
	metrics.TokenVerifications.WithLabelValues("ok").Inc()
	d, err := r.decide(ctx, claims.ShareLinkID)
	if err != nil {
		return nil, nil, r.record(err)
	}
	if claims.Fingerprint != "" {
		if claims.Fingerprint != fingerprint {
			return nil, nil, r.record(appErr.ErrPermissionInsufficient)
		}
		d.Claims = claims
		return &guesttoken.Issued{Token: token, Claims: *claims}, d, r.record(nil)
	}
	now := r.codec.Now().Unix()
	exp := timeutil.MinExpiry(claims.ExpiresUnix(), now+int64(r.tokenTTL/time.Second), d.Link.ExpiresAt)
	issued, err := r.codec.IssueUntil(d.Link.ID, fingerprint, time.Unix(exp, 0))
	if err != nil {
		return nil, nil, err
	}
	d.Claims = &issued.Claims
	return issued, d, r.record(nil)
}

// decide loads the link and its resource before evaluating anything, so
// every rejection costs the same reads.
func (r *ShareResolver) decide(ctx context.Context, linkID string) (*Decision, error) {
	if linkID == "" {
		return nil, appErr.ErrNoToken
	}
	link, err := r.links.GetByID(ctx, linkID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrLinkRevoked
		}
		return nil, fmt.Errorf("load share link: %w", err)
	}
	d := &Decision{Link: link}
	switch link.ResourceType {
	case model.ResourceDocument:
		doc, err := r.docs.GetByID(ctx, link.ResourceID)
		if err != nil && !appErr.IsNotFound(err) {
			return nil, fmt.Errorf("load document: %w", err)
		}
		if doc != nil && doc.State == model.ResourceStateNormal {
			d.Document = doc
		}
	case model.ResourceImage:
		img, err := r.images.GetByID(ctx, link.ResourceID)
		if err != nil && !appErr.IsNotFound(err) {
			return nil, fmt.Errorf("load image: %w", err)
		}
		if img != nil && img.State == model.ResourceStateNormal {
			d.Image = img
		}
	}
	switch {
	case !link.IsActive():
		return nil, appErr.ErrLinkRevoked
	case link.ExpiredAt(r.codec.Now().Unix()):
		return nil, appErr.ErrLinkExpired
	case d.Document == nil && d.Image == nil:
		return nil, appErr.ErrResourceGone
	}
	d.Permission = model.Intersect(link.Permission, resourceCapability(d))
	return d, nil
}

func resourceCapability(d *Decision) model.Permission {
	if d.Document != nil && d.Document.AllowComments {
		return model.PermissionComment
	}
	return model.PermissionView
}

func (r *ShareResolver) throttle(ctx context.Context, linkID, clientKey string) error {
	if r.limiter == nil {
		return nil
	}
	ok, err := r.limiter.Allow(ctx, ratelimit.Key(linkID, clientKey))
	if err != nil {
		logutil.GetLogger(ctx).Error("password throttle unavailable", zap.String("share_link_id", linkID), zap.Error(err))
		return appErr.ErrRateLimited
	}
	if !ok {
		return appErr.ErrRateLimited
	}
	return nil
}

func (r *ShareResolver) record(err error) error {
	metrics.ShareDecisions.WithLabelValues(outcomeLabel(err)).Inc()
	return err
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, appErr.ErrNoToken):
		return "no_token"
	case errors.Is(err, appErr.ErrMalformedToken):
		return "malformed"
	case errors.Is(err, appErr.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, appErr.ErrExpired):
		return "token_expired"
	case errors.Is(err, appErr.ErrLinkRevoked):
		return "revoked"
	case errors.Is(err, appErr.ErrLinkExpired):
		return "link_expired"
	case errors.Is(err, appErr.ErrResourceGone):
		return "resource_gone"
	case errors.Is(err, appErr.ErrPermissionInsufficient):
		return "insufficient"
	case errors.Is(err, appErr.ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, appErr.ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
