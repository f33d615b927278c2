package handler

import (
	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/response"
	"github.com/xxxsen/tribute/internal/service"
)

type ShareHandler struct {
	shares *service.ShareService
}

func NewShareHandler(shares *service.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

func (h *ShareHandler) Create(c *gin.Context) {
	var req service.CreateShareInput
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	link, err := h.shares.Create(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, link)
}

func (h *ShareHandler) Get(c *gin.Context) {
	link, err := h.shares.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, link)
}

func (h *ShareHandler) Update(c *gin.Context) {
	var req service.UpdateShareInput
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	link, err := h.shares.Update(c.Request.Context(), getUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, link)
}

func (h *ShareHandler) Revoke(c *gin.Context) {
	if err := h.shares.Revoke(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ShareHandler) Invite(c *gin.Context) {
	issued, err := h.shares.IssueInvite(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"token":      issued.Token,
		"expires_at": issued.Claims.ExpiresUnix(),
	})
}

func (h *ShareHandler) ListByEntry(c *gin.Context) {
	items, err := h.shares.ListByEntry(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *ShareHandler) ListByResource(c *gin.Context) {
	items, err := h.shares.ListByResource(c.Request.Context(), getUserID(c), c.Query("resource_type"), c.Query("resource_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}
