package app

import (
	"net/http"

	"github.com/lostmedia/interaction-service/internal/service"
	"github.com/lostmedia/interaction-service/internal/util"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentService service.CommentService
}

func NewCommentHandler(commentService service.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// CreateComment handles comment and reply creation
// POST /api/v1/comments
func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req service.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "Invalid request body")
		return
	}

	comment, err := h.commentService.CreateComment(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Comment created successfully", gin.H{"comment": comment})
}

// EditComment handles comment update
// PUT /api/v1/comments/:id
func (h *CommentHandler) EditComment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req service.EditCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "Invalid request body")
		return
	}

	comment, err := h.commentService.EditComment(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comment updated successfully", gin.H{"comment": comment})
}

// DeleteComment handles comment deletion, including its replies
// DELETE /api/v1/comments/:id
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.commentService.DeleteComment(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comment deleted successfully", nil)
}

// ToggleLike likes or unlikes a comment
// POST /api/v1/comments/:id/like
func (h *CommentHandler) ToggleLike(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.commentService.ToggleLike(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	msg := "Comment unliked successfully"
	if result.Liked {
		msg = "Comment liked successfully"
	}
	util.SuccessResponse(c, http.StatusOK, msg, result)
}

// GetCommentsByPost lists top-level comments of a post
// GET /api/v1/posts/:id/comments
func (h *CommentHandler) GetCommentsByPost(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}

	page, err := h.commentService.ListPostComments(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comments retrieved successfully", gin.H{
		"comments":   page.Items,
		"pagination": page.Pagination,
	})
}

// GetReplies lists replies to a comment
// GET /api/v1/comments/:id/replies
func (h *CommentHandler) GetReplies(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}

	page, err := h.commentService.ListReplies(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Replies retrieved successfully", gin.H{
		"replies":    page.Items,
		"pagination": page.Pagination,
	})
}
