package model

const (
	InvalidationStateDone    = 1
	InvalidationStatePending = 2
)

type CacheInvalidation struct {
	Tag       string `json:"tag"`
	Class     string `json:"class"`
	State     int    `json:"state"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
	Ctime     int64  `json:"ctime"`
	Mtime     int64  `json:"mtime"`
}
