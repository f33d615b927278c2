package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tribute/internal/model"
	"github.com/xxxsen/tribute/internal/pkg/dbutil"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

var shareLinkColumns = []string{
	"id", "resource_type", "resource_id", "entry_id", "user_id", "password_hash",
	"expires_at", "state", "permission", "public_view", "ctime", "mtime",
}

type ShareLinkRepo struct {
	db *sql.DB
}

func NewShareLinkRepo(db *sql.DB) *ShareLinkRepo {
	return &ShareLinkRepo{db: db}
}

func (r *ShareLinkRepo) Create(ctx context.Context, link *model.ShareLink) error {
	data := map[string]interface{}{
		"id":            link.ID,
		"resource_type": string(link.ResourceType),
		"resource_id":   link.ResourceID,
		"entry_id":      link.EntryID,
		"user_id":       link.UserID,
		"password_hash": link.PasswordHash,
		"expires_at":    link.ExpiresAt,
		"state":         link.State,
		"permission":    string(link.Permission),
		"public_view":   link.PublicView,
		"ctime":         link.Ctime,
		"mtime":         link.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("share_links", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// Update rewrites the mutable settings of an active link.
func (r *ShareLinkRepo) Update(ctx context.Context, link *model.ShareLink) error {
	where := map[string]interface{}{"id": link.ID, "state": model.ShareStateActive}
	update := map[string]interface{}{
		"password_hash": link.PasswordHash,
		"expires_at":    link.ExpiresAt,
		"permission":    string(link.Permission),
		"public_view":   link.PublicView,
		"mtime":         link.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("share_links", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return execAffected(ctx, r.db, sqlStr, args)
}

// Revoke soft-revokes a link. Revoking an already revoked link is a no-op.
func (r *ShareLinkRepo) Revoke(ctx context.Context, id string, mtime int64) error {
	where := map[string]interface{}{"id": id}
	update := map[string]interface{}{"state": model.ShareStateRevoked, "mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("share_links", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return execAffected(ctx, r.db, sqlStr, args)
}

func (r *ShareLinkRepo) GetByID(ctx context.Context, id string) (*model.ShareLink, error) {
	items, err := r.list(ctx, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

func (r *ShareLinkRepo) ListByEntry(ctx context.Context, entryID string) ([]model.ShareLink, error) {
	return r.list(ctx, map[string]interface{}{
		"entry_id": entryID,
		"_orderby": "ctime desc",
	})
}

func (r *ShareLinkRepo) ListByResource(ctx context.Context, resourceType model.ResourceType, resourceID string) ([]model.ShareLink, error) {
	return r.list(ctx, map[string]interface{}{
		"resource_type": string(resourceType),
		"resource_id":   resourceID,
		"_orderby":      "ctime desc",
	})
}

func (r *ShareLinkRepo) list(ctx context.Context, where map[string]interface{}) ([]model.ShareLink, error) {
	sqlStr, args, err := builder.BuildSelect("share_links", where, shareLinkColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.ShareLink, 0)
	for rows.Next() {
		var (
			link         model.ShareLink
			resourceType string
			permission   string
		)
		if err := rows.Scan(
			&link.ID, &resourceType, &link.ResourceID, &link.EntryID, &link.UserID, &link.PasswordHash,
			&link.ExpiresAt, &link.State, &permission, &link.PublicView, &link.Ctime, &link.Mtime,
		); err != nil {
			return nil, err
		}
		link.ResourceType = model.ResourceType(resourceType)
		link.Permission = model.Permission(permission)
		items = append(items, link)
	}
	return items, rows.Err()
}

func execAffected(ctx context.Context, db *sql.DB, sqlStr string, args []interface{}) error {
	result, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
