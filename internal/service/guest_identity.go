package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

const maxDisplayNameRunes = 40

// GuestIdentity keeps one pseudonymous commenter per (share link, fingerprint).
type GuestIdentity struct {
	commenters CommenterStore
	now        func() time.Time
}

func NewGuestIdentity(commenters CommenterStore) *GuestIdentity {
	return &GuestIdentity{commenters: commenters, now: time.Now}
}

// Identify returns the commenter for the pair, creating it on first sight.
// hint only names a new commenter; return visits keep their stored name.
func (g *GuestIdentity) Identify(ctx context.Context, shareLinkID, fingerprint, hint string) (*model.GuestCommenter, error) {
	if shareLinkID == "" || fingerprint == "" {
		return nil, appErr.ErrInvalid
	}
	name := sanitizeDisplayName(hint)
	if name == "" {
		name = defaultDisplayName(fingerprint)
	}
	now := g.now().Unix()
	return g.commenters.Upsert(ctx, &model.GuestCommenter{
		ID:          newID(),
		ShareLinkID: shareLinkID,
		Fingerprint: fingerprint,
		DisplayName: name,
		FirstSeen:   now,
		LastSeen:    now,
	})
}

func (g *GuestIdentity) Rename(ctx context.Context, shareLinkID, fingerprint, name string) (*model.GuestCommenter, error) {
	name = sanitizeDisplayName(name)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	if _, err := g.Identify(ctx, shareLinkID, fingerprint, name); err != nil {
		return nil, err
	}
	if err := g.commenters.UpdateDisplayName(ctx, shareLinkID, fingerprint, name, g.now().Unix()); err != nil {
		return nil, err
	}
	return g.commenters.Get(ctx, shareLinkID, fingerprint)
}

func sanitizeDisplayName(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(name)
	if len(runes) > maxDisplayNameRunes {
		name = strings.TrimSpace(string(runes[:maxDisplayNameRunes]))
	}
	return name
}

func defaultDisplayName(fingerprint string) string {
	suffix := fingerprint
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return "Guest-" + suffix
}
