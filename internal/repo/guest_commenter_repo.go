package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tribute/internal/model"
	"github.com/xxxsen/tribute/internal/pkg/dbutil"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

type GuestCommenterRepo struct {
	db *sql.DB
}

func NewGuestCommenterRepo(db *sql.DB) *GuestCommenterRepo {
	return &GuestCommenterRepo{db: db}
}

const upsertGuestCommenterSQL = `
	INSERT INTO guest_commenters (id, share_link_id, fingerprint, display_name, first_seen, last_seen)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (share_link_id, fingerprint) DO UPDATE SET
		last_seen = GREATEST(guest_commenters.last_seen, EXCLUDED.last_seen)
	RETURNING id, share_link_id, fingerprint, display_name, first_seen, last_seen
`

// Upsert creates the commenter for (share_link_id, fingerprint) or touches
// the existing one. The stored identity and display name win over the input.
func (r *GuestCommenterRepo) Upsert(ctx context.Context, item *model.GuestCommenter) (*model.GuestCommenter, error) {
	row := r.db.QueryRowContext(ctx, upsertGuestCommenterSQL,
		item.ID, item.ShareLinkID, item.Fingerprint, item.DisplayName, item.FirstSeen, item.LastSeen,
	)
	var out model.GuestCommenter
	if err := row.Scan(&out.ID, &out.ShareLinkID, &out.Fingerprint, &out.DisplayName, &out.FirstSeen, &out.LastSeen); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *GuestCommenterRepo) UpdateDisplayName(ctx context.Context, shareLinkID, fingerprint, name string, lastSeen int64) error {
	where := map[string]interface{}{"share_link_id": shareLinkID, "fingerprint": fingerprint}
	update := map[string]interface{}{"display_name": name, "last_seen": lastSeen}
	sqlStr, args, err := builder.BuildUpdate("guest_commenters", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return execAffected(ctx, r.db, sqlStr, args)
}

func (r *GuestCommenterRepo) Get(ctx context.Context, shareLinkID, fingerprint string) (*model.GuestCommenter, error) {
	where := map[string]interface{}{"share_link_id": shareLinkID, "fingerprint": fingerprint}
	sqlStr, args, err := builder.BuildSelect("guest_commenters", where, []string{
		"id", "share_link_id", "fingerprint", "display_name", "first_seen", "last_seen",
	})
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
		return nil, appErr.ErrNotFound
	}
	var out model.GuestCommenter
	if err := rows.Scan(&out.ID, &out.ShareLinkID, &out.Fingerprint, &out.DisplayName, &out.FirstSeen, &out.LastSeen); err != nil {
		return nil, err
	}
	return &out, nil
}
