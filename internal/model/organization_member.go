package model

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

type OrganizationMember struct {
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
	Ctime          int64  `json:"ctime"`
}

// CanManageShares reports whether the role may create or revoke share links.
func (m *OrganizationMember) CanManageShares() bool {
	switch m.Role {
	case RoleOwner, RoleAdmin, RoleEditor:
		return true
	}
	return false
}
