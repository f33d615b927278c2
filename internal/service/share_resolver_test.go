package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/guesttoken"
	"github.com/xxxsen/tribute/internal/pkg/password"
)

type resolverFixture struct {
	clock    *testClock
	links    *fakeLinks
	docs     *fakeDocs
	images   *fakeImages
	limiter  *stubLimiter
	resolver *ShareResolver
}

func newResolverFixture(t *testing.T, links ...model.ShareLink) *resolverFixture {
	t.Helper()
	f := &resolverFixture{
		clock: newTestClock(),
		links: newFakeLinks(links...),
		docs: newFakeDocs(
			model.Document{ID: "d1", EntryID: "e1", UserID: "owner", AllowComments: true, State: model.ResourceStateNormal},
			model.Document{ID: "d2", EntryID: "e1", UserID: "owner", AllowComments: false, State: model.ResourceStateNormal},
			model.Document{ID: "d3", EntryID: "e1", UserID: "owner", AllowComments: true, State: model.ResourceStateDeleted},
		),
		images:  newFakeImages(model.Image{ID: "i1", EntryID: "e1", UserID: "owner", FileKey: "k1", State: model.ResourceStateNormal}),
		limiter: &stubLimiter{allowed: 100},
	}
	f.resolver = NewShareResolver(newTestCodec(t, f.clock), f.links, f.docs, f.images, f.limiter, time.Hour)
	return f
}

func (f *resolverFixture) token(t *testing.T, linkID, fp string, ttl time.Duration) string {
	t.Helper()
	issued, err := f.resolver.codec.Issue(linkID, fp, ttl)
	require.NoError(t, err)
	return issued.Token
}

func docLink(id, docID string, perm model.Permission) model.ShareLink {
	return model.ShareLink{
		ID: id, ResourceType: model.ResourceDocument, ResourceID: docID, EntryID: "e1",
		UserID: "owner", State: model.ShareStateActive, Permission: perm,
	}
}

func TestResolveThenRevoke(t *testing.T) {
	f := newResolverFixture(t, docLink("L", "d1", model.PermissionComment))
	ctx := context.Background()
	tok := f.token(t, "L", "fp", time.Hour)

	d, err := f.resolver.Resolve(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, "L", d.Link.ID)
	require.Equal(t, "d1", d.Document.ID)
	require.Equal(t, model.PermissionComment, d.Permission)
	require.Equal(t, "fp", d.Fingerprint())

	require.NoError(t, f.links.Revoke(ctx, "L", 1))
	_, err = f.resolver.Resolve(ctx, tok)
	require.ErrorIs(t, err, appErr.ErrLinkRevoked)
}

func TestResolveRevokedTakesPrecedenceOverGoneResource(t *testing.T) {
	link := docLink("L", "d3", model.PermissionComment)
	link.State = model.ShareStateRevoked
	f := newResolverFixture(t, link)

	_, err := f.resolver.Resolve(context.Background(), f.token(t, "L", "", time.Hour))
	require.ErrorIs(t, err, appErr.ErrLinkRevoked)
}

func TestResolveLinkExpired(t *testing.T) {
	link := docLink("L", "d1", model.PermissionView)
	f := newResolverFixture(t)
	link.ExpiresAt = f.clock.now().Add(time.Minute).Unix()
	f.links.items["L"] = link
	tok := f.token(t, "L", "", time.Hour)

	f.clock.advance(2 * time.Minute)
	_, err := f.resolver.Resolve(context.Background(), tok)
	require.ErrorIs(t, err, appErr.ErrLinkExpired)
}

func TestResolveResourceGone(t *testing.T) {
	f := newResolverFixture(t, docLink("L", "d3", model.PermissionView), docLink("M", "missing", model.PermissionView))

	_, err := f.resolver.Resolve(context.Background(), f.token(t, "L", "", time.Hour))
	require.ErrorIs(t, err, appErr.ErrResourceGone)
	_, err = f.resolver.Resolve(context.Background(), f.token(t, "M", "", time.Hour))
	require.ErrorIs(t, err, appErr.ErrResourceGone)
}

func TestResolveIntersectsWithResourceCapability(t *testing.T) {
	image := model.ShareLink{
		ID: "I", ResourceType: model.ResourceImage, ResourceID: "i1", EntryID: "e1",
		UserID: "owner", State: model.ShareStateActive, Permission: model.PermissionComment,
	}
	f := newResolverFixture(t, docLink("C", "d2", model.PermissionComment), docLink("V", "d1", model.PermissionView), image)
	ctx := context.Background()

	tests := []struct {
		link string
		want model.Permission
	}{
		{"C", model.PermissionView},
		{"V", model.PermissionView},
		{"I", model.PermissionView},
	}
	for _, tt := range tests {
		d, err := f.resolver.Resolve(ctx, f.token(t, tt.link, "", time.Hour))
		require.NoError(t, err)
		require.Equal(t, tt.want, d.Permission, tt.link)
	}

	_, err := f.resolver.Authorize(ctx, f.token(t, "C", "", time.Hour), model.PermissionComment)
	require.ErrorIs(t, err, appErr.ErrPermissionInsufficient)
}

func TestAuthorizeLoadsAlikeForRevokedAndInsufficient(t *testing.T) {
	revoked := docLink("R", "d1", model.PermissionComment)
	revoked.State = model.ShareStateRevoked
	f := newResolverFixture(t, revoked, docLink("V", "d1", model.PermissionView))
	ctx := context.Background()

	_, err := f.resolver.Authorize(ctx, f.token(t, "R", "", time.Hour), model.PermissionComment)
	require.ErrorIs(t, err, appErr.ErrLinkRevoked)
	require.Equal(t, 1, f.links.gets)
	require.Equal(t, 1, f.docs.gets)

	_, err = f.resolver.Authorize(ctx, f.token(t, "V", "", time.Hour), model.PermissionComment)
	require.ErrorIs(t, err, appErr.ErrPermissionInsufficient)
	require.Equal(t, 2, f.links.gets)
	require.Equal(t, 2, f.docs.gets)
}

func TestResolveTokenErrors(t *testing.T) {
	f := newResolverFixture(t, docLink("L", "d1", model.PermissionView))
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, "")
	require.ErrorIs(t, err, appErr.ErrNoToken)

	tok := f.token(t, "L", "", time.Second)
	f.clock.advance(time.Minute)
	_, err = f.resolver.Resolve(ctx, tok)
	require.ErrorIs(t, err, appErr.ErrExpired)

	foreign, err := guesttoken.NewCodec([]byte("another-secret"), guesttoken.WithClock(f.clock.now))
	require.NoError(t, err)
	forged, err := foreign.Issue("L", "", -time.Hour)
	require.NoError(t, err)
	_, err = f.resolver.Resolve(ctx, forged.Token)
	require.ErrorIs(t, err, appErr.ErrInvalidSignature)
	require.Zero(t, f.links.gets)
}

func TestResolveAnonymous(t *testing.T) {
	public := docLink("P", "d1", model.PermissionComment)
	public.PublicView = true
	private := docLink("Q", "d1", model.PermissionView)
	locked := docLink("S", "d1", model.PermissionView)
	locked.PublicView = true
	locked.PasswordHash = "hash"
	f := newResolverFixture(t, public, private, locked)
	ctx := context.Background()

	d, err := f.resolver.ResolveAnonymous(ctx, "P")
	require.NoError(t, err)
	require.Equal(t, model.PermissionView, d.Permission)
	require.Empty(t, d.Fingerprint())

	_, err = f.resolver.ResolveAnonymous(ctx, "Q")
	require.ErrorIs(t, err, appErr.ErrNoToken)
	_, err = f.resolver.ResolveAnonymous(ctx, "S")
	require.ErrorIs(t, err, appErr.ErrNoToken)
	_, err = f.resolver.ResolveAnonymous(ctx, "nope")
	require.ErrorIs(t, err, appErr.ErrLinkRevoked)
}

func TestResolveWithPassword(t *testing.T) {
	hash, err := password.Hash("secret123")
	require.NoError(t, err)
	link := docLink("L", "d1", model.PermissionComment)
	link.PasswordHash = hash
	f := newResolverFixture(t, link)
	ctx := context.Background()

	_, _, err = f.resolver.ResolveWithPassword(ctx, "L", "wrong", "1.2.3.4", "fp")
	require.ErrorIs(t, err, appErr.ErrWrongPassword)

	issued, d, err := f.resolver.ResolveWithPassword(ctx, "L", "secret123", "1.2.3.4", "fp")
	require.NoError(t, err)
	require.Equal(t, model.PermissionComment, d.Permission)

	claims, err := f.resolver.codec.Verify(issued.Token)
	require.NoError(t, err)
	require.Equal(t, "L", claims.ShareLinkID)
	require.Equal(t, "fp", claims.Fingerprint)
	require.Equal(t, f.clock.now().Add(time.Hour).Unix(), claims.ExpiresUnix())

	got, err := f.resolver.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	require.Equal(t, "L", got.Link.ID)
}

func TestResolveWithPasswordThrottled(t *testing.T) {
	hash, err := password.Hash("pw")
	require.NoError(t, err)
	link := docLink("L", "d1", model.PermissionView)
	link.PasswordHash = hash
	f := newResolverFixture(t, link)
	f.limiter.allowed = 1
	ctx := context.Background()

	_, _, err = f.resolver.ResolveWithPassword(ctx, "L", "bad", "c", "fp")
	require.ErrorIs(t, err, appErr.ErrWrongPassword)
	_, _, err = f.resolver.ResolveWithPassword(ctx, "L", "pw", "c", "fp")
	require.ErrorIs(t, err, appErr.ErrRateLimited)

	f.limiter.err = errors.New("redis down")
	_, _, err = f.resolver.ResolveWithPassword(ctx, "L", "pw", "c", "fp")
	require.ErrorIs(t, err, appErr.ErrRateLimited)
}

func TestResolveWithPasswordWithoutPassword(t *testing.T) {
	public := docLink("P", "d1", model.PermissionComment)
	public.PublicView = true
	f := newResolverFixture(t, docLink("L", "d1", model.PermissionComment), public)
	ctx := context.Background()

	issued, d, err := f.resolver.ResolveWithPassword(ctx, "P", "", "c", "fp")
	require.NoError(t, err)
	require.Nil(t, issued)
	require.Equal(t, model.PermissionView, d.Permission)

	// a private link only opens through an invite, even long after it lapsed
	invite := f.token(t, "L", "", time.Minute)
	f.clock.advance(2 * time.Minute)
	_, err = f.resolver.Resolve(ctx, invite)
	require.ErrorIs(t, err, appErr.ErrExpired)
	issued, _, err = f.resolver.ResolveWithPassword(ctx, "L", "", "1.2.3.4", "fp")
	require.ErrorIs(t, err, appErr.ErrNoToken)
	require.Nil(t, issued)
	require.Zero(t, f.limiter.calls)
}

func TestEarliestExpiryWins(t *testing.T) {
	hash, err := password.Hash("pw")
	require.NoError(t, err)
	link := docLink("L", "d1", model.PermissionView)
	link.PasswordHash = hash
	f := newResolverFixture(t)
	link.ExpiresAt = f.clock.now().Add(10 * time.Minute).Unix()
	f.links.items["L"] = link
	ctx := context.Background()

	issued, _, err := f.resolver.ResolveWithPassword(ctx, "L", "pw", "c", "fp")
	require.NoError(t, err)
	require.Equal(t, link.ExpiresAt, issued.Claims.ExpiresUnix())

	invite := f.token(t, "L", "", 5*time.Minute)
	rebound, _, err := f.resolver.Rebind(ctx, invite, "fp")
	require.NoError(t, err)
	require.Equal(t, f.clock.now().Add(5*time.Minute).Unix(), rebound.Claims.ExpiresUnix())
}

func TestRebind(t *testing.T) {
	f := newResolverFixture(t, docLink("L", "d1", model.PermissionComment))
	ctx := context.Background()
	invite := f.token(t, "L", "", 24*time.Hour)

	issued, d, err := f.resolver.Rebind(ctx, invite, "visitor")
	require.NoError(t, err)
	require.Equal(t, "visitor", d.Fingerprint())
	require.Equal(t, f.clock.now().Add(time.Hour).Unix(), issued.Claims.ExpiresUnix())

	same, _, err := f.resolver.Rebind(ctx, issued.Token, "visitor")
	require.NoError(t, err)
	require.Equal(t, issued.Token, same.Token)

	_, _, err = f.resolver.Rebind(ctx, issued.Token, "someone-else")
	require.ErrorIs(t, err, appErr.ErrPermissionInsufficient)
	_, _, err = f.resolver.Rebind(ctx, invite, "")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
