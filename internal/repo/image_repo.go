package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tribute/internal/model"
	"github.com/xxxsen/tribute/internal/pkg/dbutil"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

var imageColumns = []string{
	"id", "entry_id", "user_id", "organization_id", "file_key", "caption", "state", "ctime", "mtime",
}

type ImageRepo struct {
	db *sql.DB
}

func NewImageRepo(db *sql.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

func (r *ImageRepo) GetByID(ctx context.Context, id string) (*model.Image, error) {
	items, err := r.list(ctx, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

// ListByEntry returns the live images of an entry, oldest first.
func (r *ImageRepo) ListByEntry(ctx context.Context, entryID string) ([]model.Image, error) {
	return r.list(ctx, map[string]interface{}{
		"entry_id": entryID,
		"state":    model.ResourceStateNormal,
		"_orderby": "ctime asc",
	})
}

func (r *ImageRepo) Delete(ctx context.Context, id string, mtime int64) error {
	where := map[string]interface{}{"id": id, "state": model.ResourceStateNormal}
	update := map[string]interface{}{"state": model.ResourceStateDeleted, "mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("images", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return execAffected(ctx, r.db, sqlStr, args)
}

func (r *ImageRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Image, error) {
	sqlStr, args, err := builder.BuildSelect("images", where, imageColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Image, 0)
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.ID, &img.EntryID, &img.UserID, &img.OrganizationID, &img.FileKey,
			&img.Caption, &img.State, &img.Ctime, &img.Mtime); err != nil {
			return nil, err
		}
		items = append(items, img)
	}
	return items, rows.Err()
}
