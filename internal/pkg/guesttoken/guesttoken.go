// Package guesttoken issues and verifies the signed bearer tokens handed to
// share-link guests. Tokens are never stored server side; a token is only
// meaningful together with the share link it names.
package guesttoken

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"

	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
)

type Claims struct {
	ShareLinkID string `json:"sid"`
	Fingerprint string `json:"fp,omitempty"`
	jwtlib.RegisteredClaims
}

// ExpiresUnix returns the exp claim in unix seconds, 0 when absent.
func (c *Claims) ExpiresUnix() int64 {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Unix()
}

func (c *Claims) IssuedUnix() int64 {
	if c == nil || c.IssuedAt == nil {
		return 0
	}
	return c.IssuedAt.Unix()
}

type Issued struct {
	Token  string
	Claims Claims
}

type Option func(*Codec)

func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

type Codec struct {
	secret []byte
	fpKey  [32]byte
	now    func() time.Time
}

func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("guest token secret is required")
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		fpKey:  blake2b.Sum256(append([]byte("tribute-fingerprint:"), secret...)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Now() time.Time {
	return c.now()
}

func (c *Codec) Issue(shareLinkID, fingerprint string, ttl time.Duration) (*Issued, error) {
	if ttl < 0 {
		ttl = 0
	}
	return c.IssueUntil(shareLinkID, fingerprint, c.now().Add(ttl))
}

// IssueUntil signs a token whose exp claim is exactly expiresAt.
func (c *Codec) IssueUntil(shareLinkID, fingerprint string, expiresAt time.Time) (*Issued, error) {
	if strings.TrimSpace(shareLinkID) == "" {
		return nil, fmt.Errorf("share link id is required")
	}
	claims := Claims{
		ShareLinkID: shareLinkID,
		Fingerprint: fingerprint,
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(c.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("sign guest token: %w", err)
	}
	return &Issued{Token: signed, Claims: claims}, nil
}

func (c *Codec) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErr.ErrNoToken
	}
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(*jwtlib.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithStrictDecoding(),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid || claims.ShareLinkID == "" {
		return nil, fmt.Errorf("%w: missing share link", appErr.ErrMalformedToken)
	}
	return claims, nil
}

// Fingerprint maps a client supplied identifier onto a stable keyed hash.
// The raw value cannot be recovered from the result.
func (c *Codec) Fingerprint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mac, err := blake2b.New256(c.fpKey[:])
	if err != nil {
		return ""
	}
	_, _ = mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return fmt.Errorf("%w: %v", appErr.ErrExpired, err)
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid), errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", appErr.ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", appErr.ErrMalformedToken, err)
	}
}
