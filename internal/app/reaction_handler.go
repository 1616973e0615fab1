package app

import (
	"net/http"

	"github.com/lostmedia/interaction-service/internal/service"
	"github.com/lostmedia/interaction-service/internal/util"

	"github.com/gin-gonic/gin"
)

type ReactionHandler struct {
	reactionService service.ReactionService
}

func NewReactionHandler(reactionService service.ReactionService) *ReactionHandler {
	return &ReactionHandler{reactionService: reactionService}
}

// ReactToPost toggles the caller's reaction on a post
// POST /api/v1/posts/:id/react
func (h *ReactionHandler) ReactToPost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.reactionService.ReactToPost(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	msg := "Reaction removed"
	if result.Liked {
		msg = "Post liked successfully"
	}
	util.SuccessResponse(c, http.StatusOK, msg, result)
}

// GetMyReaction reports whether the caller has reacted to a post
// GET /api/v1/posts/:id/react/me
func (h *ReactionHandler) GetMyReaction(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.reactionService.GetUserReaction(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Reaction status retrieved successfully", result)
}

// GetReactions lists who reacted to a post
// GET /api/v1/posts/:id/reactions
func (h *ReactionHandler) GetReactions(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}

	page, err := h.reactionService.ListReactions(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Reactions retrieved successfully", gin.H{
		"reactions":  page.Items,
		"pagination": page.Pagination,
	})
}

// GetReactionCount returns the number of reactions on a post
// GET /api/v1/posts/:id/reactions/count
func (h *ReactionHandler) GetReactionCount(c *gin.Context) {
	count, err := h.reactionService.CountReactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Reaction count retrieved successfully", count)
}
