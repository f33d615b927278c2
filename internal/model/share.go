package model

const (
	ShareStateActive  = 1
	ShareStateRevoked = 2
)

// ShareLink is the capability record behind every guest access path.
type ShareLink struct {
	ID           string       `json:"id"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   string       `json:"resource_id"`
	EntryID      string       `json:"entry_id"`
	UserID       string       `json:"user_id"`
	PasswordHash string       `json:"-"`
	ExpiresAt    int64        `json:"expires_at"`
	State        int          `json:"state"`
	Permission   Permission   `json:"permission"`
	PublicView   bool         `json:"public_view"`
	Ctime        int64        `json:"ctime"`
	Mtime        int64        `json:"mtime"`
}

func (s *ShareLink) HasPassword() bool {
	return s.PasswordHash != ""
}

func (s *ShareLink) IsActive() bool {
	return s.State == ShareStateActive
}

// ExpiredAt reports whether the link-level expiry has passed at now (unix seconds).
func (s *ShareLink) ExpiredAt(now int64) bool {
	return s.ExpiresAt > 0 && now >= s.ExpiresAt
}
