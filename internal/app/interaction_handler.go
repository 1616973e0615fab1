package app

import (
	"net/http"

	"github.com/lostmedia/interaction-service/internal/middleware"
	"github.com/lostmedia/interaction-service/internal/service"
	"github.com/lostmedia/interaction-service/internal/util"

	"github.com/gin-gonic/gin"
)

type InteractionHandler struct {
	interactionService service.InteractionService
}

func NewInteractionHandler(interactionService service.InteractionService) *InteractionHandler {
	return &InteractionHandler{interactionService: interactionService}
}

// GetPostInteractions returns reaction and comment counts, plus is_liked for a signed-in caller
// GET /api/v1/posts/:id/interactions
func (h *InteractionHandler) GetPostInteractions(c *gin.Context) {
	viewerID, _ := middleware.UserID(c)

	counts, err := h.interactionService.GetPostInteractionCounts(c.Request.Context(), c.Param("id"), viewerID)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Interaction counts retrieved successfully", counts)
}
