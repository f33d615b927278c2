package service

import (
	"context"

	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

type authority struct {
	members MemberStore
}

// canManage reports whether userID may manage sharing for a resource owned
// by ownerID inside organizationID.
func (a authority) canManage(ctx context.Context, userID, ownerID, organizationID string) (bool, error) {
	member, err := a.member(ctx, userID, ownerID, organizationID)
	if err != nil || member == nil {
		return member != nil, err
	}
	return member.CanManageShares(), nil
}

// canRead allows the owner and any member of the organization.
func (a authority) canRead(ctx context.Context, userID, ownerID, organizationID string) (bool, error) {
	member, err := a.member(ctx, userID, ownerID, organizationID)
	return member != nil, err
}

func (a authority) member(ctx context.Context, userID, ownerID, organizationID string) (*model.OrganizationMember, error) {
	if userID == "" {
		return nil, nil
	}
	if userID == ownerID {
		return &model.OrganizationMember{OrganizationID: organizationID, UserID: userID, Role: model.RoleOwner}, nil
	}
	if organizationID == "" || a.members == nil {
		return nil, nil
	}
	member, err := a.members.Get(ctx, organizationID, userID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return member, nil
}

func (a authority) requireManage(ctx context.Context, userID, ownerID, organizationID string) error {
	ok, err := a.canManage(ctx, userID, ownerID, organizationID)
	if err != nil {
		return err
	}
	if !ok {
		return appErr.ErrForbidden
	}
	return nil
}

func (a authority) requireRead(ctx context.Context, userID, ownerID, organizationID string) error {
	ok, err := a.canRead(ctx, userID, ownerID, organizationID)
	if err != nil {
		return err
	}
	if !ok {
		return appErr.ErrForbidden
	}
	return nil
}
