package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tribute/internal/model"
	"github.com/xxxsen/tribute/internal/pkg/dbutil"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

var documentColumns = []string{
	"id", "entry_id", "user_id", "organization_id", "title", "content",
	"allow_comments", "state", "ctime", "mtime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// GetByID returns the document in any state; callers decide what a deleted
// document means for them.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", map[string]interface{}{"id": id}, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	var doc model.Document
	if err := rows.Scan(&doc.ID, &doc.EntryID, &doc.UserID, &doc.OrganizationID, &doc.Title, &doc.Content,
		&doc.AllowComments, &doc.State, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) SetAllowComments(ctx context.Context, id string, allow bool, mtime int64) error {
	where := map[string]interface{}{"id": id, "state": model.ResourceStateNormal}
	update := map[string]interface{}{"allow_comments": allow, "mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return execAffected(ctx, r.db, sqlStr, args)
}
