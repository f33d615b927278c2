package model

type GuestCommenter struct {
	ID          string `json:"id"`
	ShareLinkID string `json:"share_link_id"`
	Fingerprint string `json:"-"`
	DisplayName string `json:"display_name"`
	FirstSeen   int64  `json:"first_seen"`
	LastSeen    int64  `json:"last_seen"`
}
