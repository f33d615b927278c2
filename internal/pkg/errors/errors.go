package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
)

// guest access errors
var (
	ErrNoToken                = errors.New("no token")
	ErrMalformedToken         = errors.New("malformed token")
	ErrInvalidSignature       = errors.New("invalid token signature")
	ErrExpired                = errors.New("token expired")
	ErrLinkRevoked            = errors.New("share link revoked")
	ErrLinkExpired            = errors.New("share link expired")
	ErrResourceGone           = errors.New("shared resource gone")
	ErrPermissionInsufficient = errors.New("permission insufficient")
	ErrWrongPassword          = errors.New("wrong password")
	ErrRateLimited            = errors.New("rate limited")
)

var authErrors = []error{
	ErrNoToken,
	ErrMalformedToken,
	ErrInvalidSignature,
	ErrExpired,
	ErrLinkRevoked,
	ErrLinkExpired,
	ErrResourceGone,
	ErrPermissionInsufficient,
	ErrWrongPassword,
	ErrRateLimited,
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthError reports whether err belongs to the guest access taxonomy.
func IsAuthError(err error) bool {
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
