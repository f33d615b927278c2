package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/guesttoken"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Now().Truncate(time.Second)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCodec(t *testing.T, clock *testClock) *guesttoken.Codec {
	t.Helper()
	codec, err := guesttoken.NewCodec([]byte("test-secret"), guesttoken.WithClock(clock.now))
	require.NoError(t, err)
	return codec
}

type fakeLinks struct {
	items map[string]model.ShareLink
	gets  int
}

func newFakeLinks(links ...model.ShareLink) *fakeLinks {
	f := &fakeLinks{items: map[string]model.ShareLink{}}
	for _, l := range links {
		f.items[l.ID] = l
	}
	return f
}

func (f *fakeLinks) Create(_ context.Context, link *model.ShareLink) error {
	if _, ok := f.items[link.ID]; ok {
		return appErr.ErrConflict
	}
	f.items[link.ID] = *link
	return nil
}

func (f *fakeLinks) Update(_ context.Context, link *model.ShareLink) error {
	cur, ok := f.items[link.ID]
	if !ok || !cur.IsActive() {
		return appErr.ErrNotFound
	}
	f.items[link.ID] = *link
	return nil
}

func (f *fakeLinks) Revoke(_ context.Context, id string, mtime int64) error {
	cur, ok := f.items[id]
	if !ok {
		return appErr.ErrNotFound
	}
	cur.State = model.ShareStateRevoked
	cur.Mtime = mtime
	f.items[id] = cur
	return nil
}

func (f *fakeLinks) GetByID(_ context.Context, id string) (*model.ShareLink, error) {
	f.gets++
	cur, ok := f.items[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

func (f *fakeLinks) ListByEntry(_ context.Context, entryID string) ([]model.ShareLink, error) {
	return f.filter(func(l model.ShareLink) bool { return l.EntryID == entryID }), nil
}

func (f *fakeLinks) ListByResource(_ context.Context, rt model.ResourceType, id string) ([]model.ShareLink, error) {
	return f.filter(func(l model.ShareLink) bool { return l.ResourceType == rt && l.ResourceID == id }), nil
}

func (f *fakeLinks) filter(keep func(model.ShareLink) bool) []model.ShareLink {
	out := make([]model.ShareLink, 0)
	for _, l := range f.items {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeDocs struct {
	items map[string]model.Document
	gets  int
}

func newFakeDocs(docs ...model.Document) *fakeDocs {
	f := &fakeDocs{items: map[string]model.Document{}}
	for _, d := range docs {
		f.items[d.ID] = d
	}
	return f
}

func (f *fakeDocs) GetByID(_ context.Context, id string) (*model.Document, error) {
	f.gets++
	cur, ok := f.items[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

func (f *fakeDocs) SetAllowComments(_ context.Context, id string, allow bool, mtime int64) error {
	cur, ok := f.items[id]
	if !ok {
		return appErr.ErrNotFound
	}
	cur.AllowComments = allow
	cur.Mtime = mtime
	f.items[id] = cur
	return nil
}

type fakeImages struct {
	items map[string]model.Image
	lists int
}

func newFakeImages(images ...model.Image) *fakeImages {
	f := &fakeImages{items: map[string]model.Image{}}
	for _, img := range images {
		f.items[img.ID] = img
	}
	return f
}

func (f *fakeImages) GetByID(_ context.Context, id string) (*model.Image, error) {
	cur, ok := f.items[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

func (f *fakeImages) ListByEntry(_ context.Context, entryID string) ([]model.Image, error) {
	f.lists++
	out := make([]model.Image, 0)
	for _, img := range f.items {
		if img.EntryID == entryID && img.State == model.ResourceStateNormal {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeImages) Delete(_ context.Context, id string, mtime int64) error {
	cur, ok := f.items[id]
	if !ok || cur.State != model.ResourceStateNormal {
		return appErr.ErrNotFound
	}
	cur.State = model.ResourceStateDeleted
	cur.Mtime = mtime
	f.items[id] = cur
	return nil
}

type fakeCommenters struct {
	items map[string]model.GuestCommenter
}

func newFakeCommenters() *fakeCommenters {
	return &fakeCommenters{items: map[string]model.GuestCommenter{}}
}

func (f *fakeCommenters) Upsert(_ context.Context, item *model.GuestCommenter) (*model.GuestCommenter, error) {
	key := item.ShareLinkID + "|" + item.Fingerprint
	cur, ok := f.items[key]
	if !ok {
		cur = *item
	} else if item.LastSeen > cur.LastSeen {
		cur.LastSeen = item.LastSeen
	}
	f.items[key] = cur
	return &cur, nil
}

func (f *fakeCommenters) UpdateDisplayName(_ context.Context, shareLinkID, fingerprint, name string, lastSeen int64) error {
	key := shareLinkID + "|" + fingerprint
	cur, ok := f.items[key]
	if !ok {
		return appErr.ErrNotFound
	}
	cur.DisplayName = name
	cur.LastSeen = lastSeen
	f.items[key] = cur
	return nil
}

func (f *fakeCommenters) Get(_ context.Context, shareLinkID, fingerprint string) (*model.GuestCommenter, error) {
	cur, ok := f.items[shareLinkID+"|"+fingerprint]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

type fakeComments struct {
	items     map[string]model.DocumentComment
	persisted map[string]bool
	createErr error
	lists     int
}

func newFakeComments() *fakeComments {
	return &fakeComments{items: map[string]model.DocumentComment{}, persisted: map[string]bool{}}
}

func (f *fakeComments) Create(_ context.Context, c *model.DocumentComment) error {
	if f.createErr != nil {
		return f.createErr
	}
	if err := c.Validate(); err != nil {
		return appErr.ErrInvalid
	}
	f.items[c.ID] = *c
	f.persisted[c.DocumentID] = true
	return nil
}

func (f *fakeComments) GetByID(_ context.Context, id string) (*model.DocumentComment, error) {
	cur, ok := f.items[id]
	if !ok || cur.State != model.CommentStateNormal {
		return nil, appErr.ErrNotFound
	}
	return &cur, nil
}

func (f *fakeComments) ListByDocument(_ context.Context, documentID string, _, _ int) ([]model.DocumentComment, error) {
	f.lists++
	out := make([]model.DocumentComment, 0)
	for _, c := range f.items {
		if c.DocumentID == documentID && c.State == model.CommentStateNormal {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeComments) Delete(_ context.Context, id string, mtime int64) error {
	cur, ok := f.items[id]
	if !ok || cur.State != model.CommentStateNormal {
		return appErr.ErrNotFound
	}
	cur.State = model.CommentStateDeleted
	cur.Mtime = mtime
	f.items[id] = cur
	return nil
}

type fakeMembers map[string]model.OrganizationMember

func (f fakeMembers) Get(_ context.Context, organizationID, userID string) (*model.OrganizationMember, error) {
	m, ok := f[organizationID+"|"+userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &m, nil
}

type recordingInvalidator struct {
	calls  [][]cachetag.Tag
	onCall func(tags []cachetag.Tag)
	next   Invalidator
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, tags ...cachetag.Tag) {
	if r.onCall != nil {
		r.onCall(tags)
	}
	r.calls = append(r.calls, append([]cachetag.Tag(nil), tags...))
	if r.next != nil {
		r.next.Invalidate(ctx, tags...)
	}
}

type stubLimiter struct {
	allowed int
	err     error
	calls   int
}

func (s *stubLimiter) Allow(context.Context, string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.calls <= s.allowed, nil
}
