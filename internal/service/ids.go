package service

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

func newID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// newLinkID returns the public identifier of a share link. It appears in
// guest URLs, so it must not be guessable.
func newLinkID() string {
	return uuid.NewString()
}
