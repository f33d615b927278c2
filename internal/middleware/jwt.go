package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tribute/internal/pkg/errcode"
	"github.com/xxxsen/tribute/internal/pkg/jwt"
	"github.com/xxxsen/tribute/internal/pkg/response"
)

const ContextUserIDKey = "user_id"

// JWTAuth requires a bearer user token. Guest tokens never pass here; the
// two are signed with different secrets.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.Abort(c, errcode.ErrUnauthorized, "missing authorization")
			return
		}
		claims, err := jwt.ParseToken(strings.TrimSpace(token), secret)
		if err != nil {
			response.Abort(c, errcode.ErrUnauthorized, "invalid token")
			return
		}
		c.Set(ContextUserIDKey, claims.User())
		c.Next()
	}
}
