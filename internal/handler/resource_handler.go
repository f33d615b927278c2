package handler

import (
	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/response"
	"github.com/xxxsen/tribute/internal/service"
)

type ResourceHandler struct {
	resources *service.ResourceService
}

func NewResourceHandler(resources *service.ResourceService) *ResourceHandler {
	return &ResourceHandler{resources: resources}
}

type commentsEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *ResourceHandler) SetCommentsEnabled(c *gin.Context) {
	var req commentsEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	doc, err := h.resources.SetCommentsEnabled(c.Request.Context(), getUserID(c), c.Param("id"), *req.Enabled)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": doc.ID, "allow_comments": doc.AllowComments})
}

func (h *ResourceHandler) ListEntryImages(c *gin.Context) {
	items, err := h.resources.ListEntryImages(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *ResourceHandler) DeleteImage(c *gin.Context) {
	if err := h.resources.DeleteImage(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
