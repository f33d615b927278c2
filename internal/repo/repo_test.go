package repo

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestShareLinkRepoCreate(t *testing.T) {
	db, mock := newMock(t)
	r := NewShareLinkRepo(db)
	mock.ExpectExec("INSERT INTO share_links").WillReturnResult(sqlmock.NewResult(1, 1))

	err := r.Create(context.Background(), &model.ShareLink{
		ID: "l1", ResourceType: model.ResourceDocument, ResourceID: "d1", EntryID: "e1",
		UserID: "u1", State: model.ShareStateActive, Permission: model.PermissionComment,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShareLinkRepoCreateConflict(t *testing.T) {
	db, mock := newMock(t)
	r := NewShareLinkRepo(db)
	mock.ExpectExec("INSERT INTO share_links").WillReturnError(&pq.Error{Code: "23505"})

	err := r.Create(context.Background(), &model.ShareLink{ID: "l1"})
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestShareLinkRepoGetByID(t *testing.T) {
	db, mock := newMock(t)
	r := NewShareLinkRepo(db)
	rows := sqlmock.NewRows(shareLinkColumns).
		AddRow("l1", "image", "i1", "e1", "u1", "", int64(0), model.ShareStateRevoked, "view", true, int64(10), int64(20))
	mock.ExpectQuery("SELECT .* FROM share_links WHERE").WithArgs("l1").WillReturnRows(rows)

	link, err := r.GetByID(context.Background(), "l1")
	require.NoError(t, err)
	require.Equal(t, model.ResourceImage, link.ResourceType)
	require.Equal(t, model.PermissionView, link.Permission)
	require.False(t, link.IsActive())
	require.True(t, link.PublicView)
}

func TestShareLinkRepoGetByIDMissing(t *testing.T) {
	db, mock := newMock(t)
	r := NewShareLinkRepo(db)
	mock.ExpectQuery("SELECT .* FROM share_links").WillReturnRows(sqlmock.NewRows(shareLinkColumns))

	_, err := r.GetByID(context.Background(), "nope")
	require.True(t, appErr.IsNotFound(err))
}

func TestShareLinkRepoRevokeMissing(t *testing.T) {
	db, mock := newMock(t)
	r := NewShareLinkRepo(db)
	mock.ExpectExec("UPDATE share_links SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := r.Revoke(context.Background(), "nope", 5)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestShareLinkRepoListByResource(t *testing.T) {
	db, mock := newMock(t)
	r := NewShareLinkRepo(db)
	rows := sqlmock.NewRows(shareLinkColumns).
		AddRow("l2", "document", "d1", "e1", "u1", "hash", int64(100), 1, "comment", false, int64(2), int64(2)).
		AddRow("l1", "document", "d1", "e1", "u1", "", int64(0), 1, "view", false, int64(1), int64(1))
	mock.ExpectQuery("SELECT .* FROM share_links WHERE .* ORDER BY ctime desc").WillReturnRows(rows)

	items, err := r.ListByResource(context.Background(), model.ResourceDocument, "d1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.True(t, items[0].HasPassword())
	require.Equal(t, "l1", items[1].ID)
}

func TestGuestCommenterRepoUpsert(t *testing.T) {
	db, mock := newMock(t)
	r := NewGuestCommenterRepo(db)
	rows := sqlmock.NewRows([]string{"id", "share_link_id", "fingerprint", "display_name", "first_seen", "last_seen"}).
		AddRow("g-old", "l1", "fp", "Aunt May", int64(1), int64(50))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (share_link_id, fingerprint) DO UPDATE")).
		WithArgs("g-new", "l1", "fp", "Guest-abcdef", int64(50), int64(50)).
		WillReturnRows(rows)

	got, err := r.Upsert(context.Background(), &model.GuestCommenter{
		ID: "g-new", ShareLinkID: "l1", Fingerprint: "fp", DisplayName: "Guest-abcdef", FirstSeen: 50, LastSeen: 50,
	})
	require.NoError(t, err)
	require.Equal(t, "g-old", got.ID)
	require.Equal(t, "Aunt May", got.DisplayName)
	require.Equal(t, int64(1), got.FirstSeen)
}

func TestGuestCommenterRepoGetMissing(t *testing.T) {
	db, mock := newMock(t)
	r := NewGuestCommenterRepo(db)
	mock.ExpectQuery("SELECT .* FROM guest_commenters").
		WillReturnRows(sqlmock.NewRows([]string{"id", "share_link_id", "fingerprint", "display_name", "first_seen", "last_seen"}))

	_, err := r.Get(context.Background(), "l1", "fp")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDocumentRepoGetByID(t *testing.T) {
	db, mock := newMock(t)
	r := NewDocumentRepo(db)
	rows := sqlmock.NewRows(documentColumns).
		AddRow("d1", "e1", "u1", "o1", "Eulogy", "text", false, model.ResourceStateNormal, int64(1), int64(2))
	mock.ExpectQuery("SELECT .* FROM documents").WithArgs("d1").WillReturnRows(rows)

	doc, err := r.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	require.False(t, doc.AllowComments)
	require.Equal(t, "o1", doc.OrganizationID)
}

func TestDocumentRepoSetAllowComments(t *testing.T) {
	db, mock := newMock(t)
	r := NewDocumentRepo(db)
	mock.ExpectExec("UPDATE documents SET").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.SetAllowComments(context.Background(), "d1", true, 9))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImageRepoListByEntry(t *testing.T) {
	db, mock := newMock(t)
	r := NewImageRepo(db)
	rows := sqlmock.NewRows(imageColumns).
		AddRow("i1", "e1", "u1", "", "k1", "", 1, int64(1), int64(1)).
		AddRow("i2", "e1", "u1", "", "k2", "beach", 1, int64(2), int64(2))
	mock.ExpectQuery("SELECT .* FROM images WHERE .* ORDER BY ctime asc").WillReturnRows(rows)

	items, err := r.ListByEntry(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "beach", items[1].Caption)
}

func TestMemberRepoGet(t *testing.T) {
	db, mock := newMock(t)
	r := NewMemberRepo(db)
	mock.ExpectQuery("SELECT .* FROM organization_members").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "user_id", "role", "ctime"}).AddRow("o1", "u2", "editor", int64(1)))

	member, err := r.Get(context.Background(), "o1", "u2")
	require.NoError(t, err)
	require.True(t, member.CanManageShares())

	mock.ExpectQuery("SELECT .* FROM organization_members").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "user_id", "role", "ctime"}))
	_, err = r.Get(context.Background(), "o1", "u3")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestCommentRepoCreateRejectsAmbiguousAuthor(t *testing.T) {
	db, _ := newMock(t)
	r := NewCommentRepo(db)

	err := r.Create(context.Background(), &model.DocumentComment{ID: "c1", DocumentID: "d1", UserID: "u1", GuestCommenterID: "g1"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	err = r.Create(context.Background(), &model.DocumentComment{ID: "c1", DocumentID: "d1"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestCommentRepoListByDocumentPaged(t *testing.T) {
	db, mock := newMock(t)
	r := NewCommentRepo(db)
	rows := sqlmock.NewRows(commentColumns).
		AddRow("c1", "d1", "l1", "", "g1", "Guest-abc", "rest well", 1, int64(1), int64(1))
	mock.ExpectQuery("SELECT .* FROM document_comments WHERE .* LIMIT \\$\\d+ OFFSET \\$\\d+").WillReturnRows(rows)

	items, err := r.ListByDocument(context.Background(), "d1", 0, 20)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].IsGuest())
}

func TestInvalidationRepoMarkPending(t *testing.T) {
	db, mock := newMock(t)
	r := NewInvalidationRepo(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("attempts = cache_invalidations.attempts + 1")).
		WithArgs("comments:document:d1", "immediate", model.InvalidationStatePending, "boom", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := r.MarkPending(context.Background(), []cachetag.Tag{cachetag.Comments("d1")}, cachetag.FreshnessImmediate, 7, "boom")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidationRepoRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	r := NewInvalidationRepo(db)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cache_invalidations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO cache_invalidations").WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := r.MarkInvalidated(context.Background(),
		[]cachetag.Tag{cachetag.EntryImages("e1"), cachetag.EntryShareLinks("e1")}, cachetag.FreshnessMax, 7)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidationRepoListPending(t *testing.T) {
	db, mock := newMock(t)
	r := NewInvalidationRepo(db)
	rows := sqlmock.NewRows([]string{"tag", "class", "state", "attempts", "last_error", "ctime", "mtime"}).
		AddRow("images:entry:e1", "max", model.InvalidationStatePending, 2, "timeout", int64(1), int64(3))
	mock.ExpectQuery("SELECT .* FROM cache_invalidations WHERE .* ORDER BY mtime asc").WillReturnRows(rows)

	items, err := r.ListPending(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, items[0].Attempts)
}
