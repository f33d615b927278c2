// Package jwt verifies the user tokens issued by the identity provider.
// Only HS256 with a shared secret is accepted.
package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var ErrNoUser = errors.New("token carries no user")

type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwtlib.RegisteredClaims
}

// User returns user_id, falling back to the standard sub claim.
func (c *Claims) User() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

var parser = jwtlib.NewParser(
	jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
	jwtlib.WithExpirationRequired(),
	jwtlib.WithLeeway(30*time.Second),
)

func GenerateToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwtlib.Token) (interface{}, error) {
		return secret, nil
	}); err != nil {
		return nil, err
	}
	if claims.User() == "" {
		return nil, ErrNoUser
	}
	return claims, nil
}
