package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tribute/internal/model"
	"github.com/xxxsen/tribute/internal/pkg/dbutil"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

type MemberRepo struct {
	db *sql.DB
}

func NewMemberRepo(db *sql.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

func (r *MemberRepo) Get(ctx context.Context, organizationID, userID string) (*model.OrganizationMember, error) {
	where := map[string]interface{}{"organization_id": organizationID, "user_id": userID}
	sqlStr, args, err := builder.BuildSelect("organization_members", where, []string{"organization_id", "user_id", "role", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var member model.OrganizationMember
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&member.OrganizationID, &member.UserID, &member.Role, &member.Ctime)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}
