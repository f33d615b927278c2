// Package password hashes share-link passwords.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes is the longest input bcrypt accepts.
const MaxBytes = 72

var ErrTooLong = errors.New("password too long")

func Hash(plain string) (string, error) {
	if len(plain) > MaxBytes {
		return "", ErrTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Matches reports whether plain unlocks hash. Empty input never matches.
func Matches(hash, plain string) bool {
	if hash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
