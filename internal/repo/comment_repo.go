package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tribute/internal/model"
	"github.com/xxxsen/tribute/internal/pkg/dbutil"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

var commentColumns = []string{
	"id", "document_id", "share_link_id", "user_id", "guest_commenter_id",
	"author", "content", "state", "ctime", "mtime",
}

type CommentRepo struct {
	db *sql.DB
}

func NewCommentRepo(db *sql.DB) *CommentRepo {
	return &CommentRepo{db: db}
}

func (r *CommentRepo) Create(ctx context.Context, comment *model.DocumentComment) error {
	if err := comment.Validate(); err != nil {
		return appErr.ErrInvalid
	}
	data := map[string]interface{}{
		"id":                 comment.ID,
		"document_id":        comment.DocumentID,
		"share_link_id":      comment.ShareLinkID,
		"user_id":            comment.UserID,
		"guest_commenter_id": comment.GuestCommenterID,
		"author":             comment.Author,
		"content":            comment.Content,
		"state":              comment.State,
		"ctime":              comment.Ctime,
		"mtime":              comment.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("document_comments", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsCheckViolation(err) {
			return appErr.ErrInvalid
		}
		return err
	}
	return nil
}

func (r *CommentRepo) GetByID(ctx context.Context, id string) (*model.DocumentComment, error) {
	items, err := r.list(ctx, map[string]interface{}{"id": id, "state": model.CommentStateNormal})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

func (r *CommentRepo) ListByDocument(ctx context.Context, documentID string, offset, limit int) ([]model.DocumentComment, error) {
	where := map[string]interface{}{
		"document_id": documentID,
		"state":       model.CommentStateNormal,
		"_orderby":    "ctime asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{uint(offset), uint(limit)}
	}
	return r.list(ctx, where)
}

func (r *CommentRepo) Delete(ctx context.Context, id string, mtime int64) error {
	where := map[string]interface{}{"id": id, "state": model.CommentStateNormal}
	update := map[string]interface{}{"state": model.CommentStateDeleted, "mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("document_comments", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return execAffected(ctx, r.db, sqlStr, args)
}

func (r *CommentRepo) list(ctx context.Context, where map[string]interface{}) ([]model.DocumentComment, error) {
	sqlStr, args, err := builder.BuildSelect("document_comments", where, commentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.DocumentComment, 0)
	for rows.Next() {
		var c model.DocumentComment
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ShareLinkID, &c.UserID, &c.GuestCommenterID,
			&c.Author, &c.Content, &c.State, &c.Ctime, &c.Mtime); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
