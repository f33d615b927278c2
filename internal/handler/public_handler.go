package handler

import (
	"crypto/rand"
	"encoding/hex"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tribute/internal/filestore"
	"github.com/xxxsen/tribute/internal/model"
	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/guesttoken"
	"github.com/xxxsen/tribute/internal/pkg/response"
	"github.com/xxxsen/tribute/internal/service"
)

// PublicHandler serves share-link guests. Guests never carry a user JWT;
// access comes from the token cookie, an invite token in the t query
// parameter, or the link being public.
type PublicHandler struct {
	resolver *service.ShareResolver
	comments *service.CommentService
	identity *service.GuestIdentity
	codec    *guesttoken.Codec
	store    filestore.Store
	cookies  cookieWriter
}

func NewPublicHandler(resolver *service.ShareResolver, comments *service.CommentService, identity *service.GuestIdentity, codec *guesttoken.Codec, store filestore.Store, secureCookies bool) *PublicHandler {
	return &PublicHandler{
		resolver: resolver,
		comments: comments,
		identity: identity,
		codec:    codec,
		store:    store,
		cookies:  cookieWriter{secure: secureCookies, now: codec.Now},
	}
}

type publicDocument struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	AllowComments bool   `json:"allow_comments"`
}

type publicImage struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
}

type publicShareView struct {
	ShareLinkID  string             `json:"share_link_id"`
	ResourceType model.ResourceType `json:"resource_type"`
	Permission   model.Permission   `json:"permission"`
	ExpiresAt    int64              `json:"expires_at"`
	Document     *publicDocument    `json:"document,omitempty"`
	Image        *publicImage       `json:"image,omitempty"`
}

func newPublicShareView(d *service.Decision) publicShareView {
	view := publicShareView{
		ShareLinkID:  d.Link.ID,
		ResourceType: d.Link.ResourceType,
		Permission:   d.Permission,
	}
	if d.Claims != nil {
		view.ExpiresAt = d.Claims.ExpiresUnix()
	}
	if d.Document != nil {
		view.Document = &publicDocument{
			ID:            d.Document.ID,
			Title:         d.Document.Title,
			Content:       d.Document.Content,
			AllowComments: d.Document.AllowComments,
		}
	}
	if d.Image != nil {
		view.Image = &publicImage{ID: d.Image.ID, Caption: d.Image.Caption}
	}
	return view
}

type guestAccess struct {
	decision *service.Decision
	token    string
}

func (h *PublicHandler) Get(c *gin.Context) {
	acc, err := h.access(c)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, newPublicShareView(acc.decision))
}

type unlockRequest struct {
	Password string `json:"password"`
}

func (h *PublicHandler) Unlock(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	linkID := c.Param("id")
	issued, d, err := h.resolver.ResolveWithPassword(c.Request.Context(), linkID, req.Password, c.ClientIP(), h.fingerprint(c))
	if err != nil {
		handleError(c, err)
		return
	}
	if issued != nil {
		h.cookies.setGuestToken(c, linkID, issued.Token, issued.Claims.ExpiresUnix())
	}
	response.Success(c, newPublicShareView(d))
}

func (h *PublicHandler) ListComments(c *gin.Context) {
	acc, err := h.access(c)
	if err != nil {
		handleError(c, err)
		return
	}
	items, err := h.comments.ListForDecision(c.Request.Context(), acc.decision)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

type createCommentRequest struct {
	Content     string `json:"content"`
	DisplayName string `json:"display_name"`
}

func (h *PublicHandler) CreateComment(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	acc, err := h.access(c)
	if err != nil {
		handleError(c, err)
		return
	}
	if acc.token == "" {
		handleError(c, appErr.ErrNoToken)
		return
	}
	comment, err := h.comments.CreateGuestComment(c.Request.Context(), acc.token, req.Content, req.DisplayName)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, comment)
}

type renameRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *PublicHandler) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	acc, err := h.access(c)
	if err != nil {
		handleError(c, err)
		return
	}
	d := acc.decision
	if d.Fingerprint() == "" {
		handleError(c, appErr.ErrNoToken)
		return
	}
	if !d.Permission.Allows(model.PermissionComment) {
		handleError(c, appErr.ErrPermissionInsufficient)
		return
	}
	commenter, err := h.identity.Rename(c.Request.Context(), d.Link.ID, d.Fingerprint(), req.DisplayName)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, commenter)
}

func (h *PublicHandler) Image(c *gin.Context) {
	acc, err := h.access(c)
	if err != nil {
		handleError(c, err)
		return
	}
	img := acc.decision.Image
	if img == nil || h.store == nil {
		handleError(c, appErr.ErrNotFound)
		return
	}
	if url, ok := h.store.URL(img.FileKey); ok {
		c.Redirect(http.StatusFound, url)
		return
	}
	rc, err := h.store.Open(c.Request.Context(), img.FileKey)
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	contentType := mime.TypeByExtension(filepath.Ext(img.FileKey))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

// access resolves the guest for the link in the route. An unbound token is
// rebound to this visitor and written back as the link's cookie.
func (h *PublicHandler) access(c *gin.Context) (*guestAccess, error) {
	ctx := c.Request.Context()
	linkID := c.Param("id")
	fingerprint := h.fingerprint(c)
	cookieToken, _ := c.Cookie(guestTokenCookie)
	token := cookieToken
	if token == "" {
		token = c.Query("t")
	}
	if token == "" {
		d, err := h.resolver.ResolveAnonymous(ctx, linkID)
		if err != nil {
			return nil, err
		}
		return &guestAccess{decision: d}, nil
	}
	issued, d, err := h.resolver.Rebind(ctx, token, fingerprint)
	if err != nil {
		return nil, err
	}
	if d.Link.ID != linkID {
		return nil, appErr.ErrNoToken
	}
	if issued.Token != cookieToken {
		h.cookies.setGuestToken(c, linkID, issued.Token, issued.Claims.ExpiresUnix())
	}
	return &guestAccess{decision: d, token: issued.Token}, nil
}

// fingerprint derives the visitor fingerprint, issuing a visitor cookie on
// the first request.
func (h *PublicHandler) fingerprint(c *gin.Context) string {
	visitor, _ := c.Cookie(visitorCookie)
	if visitor == "" || len(visitor) > 128 {
		visitor = newVisitorID()
		h.cookies.setVisitor(c, visitor)
	}
	return h.codec.Fingerprint(visitor)
}

func newVisitorID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
