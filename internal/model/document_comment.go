package model

import "errors"

const (
	CommentStateNormal  = 1
	CommentStateDeleted = 2
)

var errCommentAuthorship = errors.New("comment must have exactly one of user or guest author")

// DocumentComment is written either by a registered user or by a guest
// commenter, never both.
type DocumentComment struct {
	ID               string `json:"id"`
	DocumentID       string `json:"document_id"`
	ShareLinkID      string `json:"share_link_id,omitempty"`
	UserID           string `json:"user_id,omitempty"`
	GuestCommenterID string `json:"guest_commenter_id,omitempty"`
	Author           string `json:"author"`
	Content          string `json:"content"`
	State            int    `json:"state"`
	Ctime            int64  `json:"ctime"`
	Mtime            int64  `json:"mtime"`
}

func (c *DocumentComment) Validate() error {
	if (c.UserID == "") == (c.GuestCommenterID == "") {
		return errCommentAuthorship
	}
	return nil
}

func (c *DocumentComment) IsGuest() bool {
	return c.GuestCommenterID != ""
}
