package model

const (
	ResourceStateNormal  = 1
	ResourceStateDeleted = 2
)

// Document is the slice of an entry document the sharing core reads.
type Document struct {
	ID             string `json:"id"`
	EntryID        string `json:"entry_id"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	AllowComments  bool   `json:"allow_comments"`
	State          int    `json:"state"`
	Ctime          int64  `json:"ctime"`
	Mtime          int64  `json:"mtime"`
}

type Image struct {
	ID             string `json:"id"`
	EntryID        string `json:"entry_id"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	FileKey        string `json:"file_key"`
	Caption        string `json:"caption"`
	State          int    `json:"state"`
	Ctime          int64  `json:"ctime"`
	Mtime          int64  `json:"mtime"`
}
