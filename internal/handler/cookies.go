package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	guestTokenCookie = "tribute_guest_token"
	visitorCookie    = "tribute_visitor"
	visitorLifetime  = 365 * 24 * time.Hour
)

type cookieWriter struct {
	secure bool
	now    func() time.Time
}

// setGuestToken scopes the token cookie to one share link so visits to
// several links do not overwrite each other. The cookie expires with the
// token's exp claim.
func (w cookieWriter) setGuestToken(c *gin.Context, linkID, token string, expiresAt int64) {
	maxAge := int(expiresAt - w.now().Unix())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     guestTokenCookie,
		Value:    token,
		Path:     shareCookiePath(c, linkID),
		Expires:  time.Unix(expiresAt, 0),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   w.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (w cookieWriter) setVisitor(c *gin.Context, visitor string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     visitorCookie,
		Value:    visitor,
		Path:     "/",
		Expires:  w.now().Add(visitorLifetime),
		MaxAge:   int(visitorLifetime / time.Second),
		HttpOnly: true,
		Secure:   w.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func shareCookiePath(c *gin.Context, linkID string) string {
	const route = "/public/share/:id"
	full := c.FullPath()
	idx := strings.Index(full, route)
	if idx < 0 {
		return "/"
	}
	return full[:idx] + "/public/share/" + linkID
}
