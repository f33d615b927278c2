package model

import "strings"

type Permission string

const (
	PermissionView    Permission = "view"
	PermissionComment Permission = "comment"
)

var permissionRank = map[Permission]int{
	PermissionView:    1,
	PermissionComment: 2,
}

func ParsePermission(s string) (Permission, bool) {
	p := Permission(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PermissionView, true
	}
	_, ok := permissionRank[p]
	return p, ok
}

func (p Permission) Valid() bool {
	_, ok := permissionRank[p]
	return ok
}

// Allows reports whether p covers need. Unknown values allow nothing.
func (p Permission) Allows(need Permission) bool {
	have, ok := permissionRank[p]
	if !ok {
		return false
	}
	want, ok := permissionRank[need]
	if !ok {
		return false
	}
	return have >= want
}

// Intersect returns the weaker of a and b. Unknown values collapse to view.
func Intersect(a, b Permission) Permission {
	ra, okA := permissionRank[a]
	rb, okB := permissionRank[b]
	if !okA || !okB {
		return PermissionView
	}
	if ra <= rb {
		return a
	}
	return b
}

type ResourceType string

const (
	ResourceDocument ResourceType = "document"
	ResourceImage    ResourceType = "image"
)

func (t ResourceType) Valid() bool {
	return t == ResourceDocument || t == ResourceImage
}
