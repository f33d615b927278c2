package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/middleware"
	"github.com/xxxsen/tribute/internal/pkg/errcode"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

type errorMapping struct {
	target  error
	code    int
	message string
}

// Link state failures share one message so a guest cannot tell a revoked
// link from an expired one or a deleted resource.
var errorMappings = []errorMapping{
	{appErr.ErrNoToken, errcode.ErrPasswordRequired, "unlock required"},
	{appErr.ErrMalformedToken, errcode.ErrTokenInvalid, "invalid token"},
	{appErr.ErrInvalidSignature, errcode.ErrTokenInvalid, "invalid token"},
	{appErr.ErrExpired, errcode.ErrTokenExpired, "token expired"},
	{appErr.ErrLinkRevoked, errcode.ErrLinkUnavailable, "link unavailable"},
	{appErr.ErrLinkExpired, errcode.ErrLinkUnavailable, "link unavailable"},
	{appErr.ErrResourceGone, errcode.ErrLinkUnavailable, "link unavailable"},
	{appErr.ErrPermissionInsufficient, errcode.ErrForbidden, "forbidden"},
	{appErr.ErrWrongPassword, errcode.ErrWrongPassword, "wrong password"},
	{appErr.ErrRateLimited, errcode.ErrTooMany, "too many requests"},
	{appErr.ErrTooMany, errcode.ErrTooMany, "too many requests"},
	{appErr.ErrUnauthorized, errcode.ErrUnauthorized, "unauthorized"},
	{appErr.ErrForbidden, errcode.ErrForbidden, "forbidden"},
	{appErr.ErrNotFound, errcode.ErrNotFound, "not found"},
	{appErr.ErrInvalid, errcode.ErrInvalid, "invalid request"},
	{appErr.ErrConflict, errcode.ErrConflict, "conflict"},
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.RequestIDKey)
	fields := []zap.Field{
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Bool("guest_access", appErr.IsAuthError(err)),
		zap.Error(err),
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			logutil.GetLogger(c.Request.Context()).Info("request rejected", fields...)
			response.Error(c, m.code, m.message)
			return
		}
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed", fields...)
	response.Error(c, errcode.ErrInternal, "internal error")
}
