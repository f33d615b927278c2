package handler

import (
	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/tribute/internal/pkg/errors"
	"github.com/xxxsen/tribute/internal/pkg/response"
	"github.com/xxxsen/tribute/internal/service"
)

type CommentHandler struct {
	comments *service.CommentService
}

func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	comment, err := h.comments.CreateUserComment(c.Request.Context(), getUserID(c), c.Param("id"), req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, comment)
}

func (h *CommentHandler) List(c *gin.Context) {
	items, err := h.comments.ListForUser(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
