package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tribute/internal/cachetag"
	"github.com/xxxsen/tribute/internal/model"
	"github.com/xxxsen/tribute/internal/pkg/dbutil"
)

type InvalidationRepo struct {
	db *sql.DB
}

func NewInvalidationRepo(db *sql.DB) *InvalidationRepo {
	return &InvalidationRepo{db: db}
}

const markInvalidatedSQL = `
	INSERT INTO cache_invalidations (tag, class, state, attempts, last_error, ctime, mtime)
	VALUES ($1, $2, $3, 0, '', $4, $4)
	ON CONFLICT (tag) DO UPDATE SET
		class = EXCLUDED.class,
		state = EXCLUDED.state,
		last_error = '',
		mtime = EXCLUDED.mtime
	WHERE cache_invalidations.mtime <= EXCLUDED.mtime
`

const markPendingSQL = `
	INSERT INTO cache_invalidations (tag, class, state, attempts, last_error, ctime, mtime)
	VALUES ($1, $2, $3, 1, $4, $5, $5)
	ON CONFLICT (tag) DO UPDATE SET
		class = EXCLUDED.class,
		state = EXCLUDED.state,
		attempts = cache_invalidations.attempts + 1,
		last_error = EXCLUDED.last_error,
		mtime = GREATEST(cache_invalidations.mtime, EXCLUDED.mtime)
`

// MarkInvalidated records that tags reached the tag store at at. An older
// success never clears a newer pending row.
func (r *InvalidationRepo) MarkInvalidated(ctx context.Context, tags []cachetag.Tag, class cachetag.Freshness, at int64) error {
	return r.upsert(ctx, tags, func(tx *sql.Tx, tag cachetag.Tag) error {
		_, err := tx.ExecContext(ctx, markInvalidatedSQL, string(tag), class.String(), model.InvalidationStateDone, at)
		return err
	})
}

func (r *InvalidationRepo) MarkPending(ctx context.Context, tags []cachetag.Tag, class cachetag.Freshness, at int64, cause string) error {
	return r.upsert(ctx, tags, func(tx *sql.Tx, tag cachetag.Tag) error {
		_, err := tx.ExecContext(ctx, markPendingSQL, string(tag), class.String(), model.InvalidationStatePending, cause, at)
		return err
	})
}

func (r *InvalidationRepo) upsert(ctx context.Context, tags []cachetag.Tag, fn func(*sql.Tx, cachetag.Tag) error) error {
	if len(tags) == 0 {
		return nil
	}
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, tag := range tags {
			if err := fn(tx, tag); err != nil {
				return fmt.Errorf("record tag %s: %w", tag, err)
			}
		}
		return nil
	})
}

// ListPending returns pending invalidations, oldest first.
func (r *InvalidationRepo) ListPending(ctx context.Context, limit int) ([]model.CacheInvalidation, error) {
	where := map[string]interface{}{
		"state":    model.InvalidationStatePending,
		"_orderby": "mtime asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, uint(limit)}
	}
	sqlStr, args, err := builder.BuildSelect("cache_invalidations", where, []string{
		"tag", "class", "state", "attempts", "last_error", "ctime", "mtime",
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
	items := make([]model.CacheInvalidation, 0)
	for rows.Next() {
		var item model.CacheInvalidation
		if err := rows.Scan(&item.Tag, &item.Class, &item.State, &item.Attempts, &item.LastError, &item.Ctime, &item.Mtime); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
