package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowtube/flowtube/internal/models"
	"github.com/flowtube/flowtube/internal/services/player"
	"github.com/flowtube/flowtube/internal/utils"
)

type StreamHandler struct {
	player *player.Manager
}

func NewStreamHandler(manager *player.Manager) *StreamHandler {
	return &StreamHandler{
		player: manager,
	}
}

// Resolve godoc
// @Summary Resolve a watch URL into stream candidates
// @Description Extract stream metadata for a watch URL and select the best audio/video/mixed candidates for the requested quality tier. Results are served from the restriction-aware cache when possible.
// @Tags streams
// @Accept json
// @Produce json
// @Param request body models.ResolveRequest true "Watch URL and optional quality tier"
// @Success 200 {object} models.ResolveResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Router /api/v1/stream/resolve [post]
// @Security ApiKeyAuth
func (h *StreamHandler) Resolve(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, utils.NewValidationError("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		}))
		return
	}

	resp, err := h.player.Resolve(ctx, req.URL, req.Quality)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Play godoc
// @Summary Prepare a playback session
// @Description Create or reuse a playback session for a watch URL. Adaptive audio and video tracks are downloaded and merged asynchronously; poll the session endpoint for state.
// @Tags streams
// @Accept json
// @Produce json
// @Param request body models.PlayRequest true "Watch URL and optional quality tier"
// @Success 200 {object} models.PlayResponse
// @Success 202 {object} models.PlayResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/stream/play [post]
// @Security ApiKeyAuth
func (h *StreamHandler) Play(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, utils.NewValidationError("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		}))
		return
	}

	session, err := h.player.Prepare(ctx, req.URL, req.Quality)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := models.PlayResponse{
		Status:    "success",
		Message:   "Playback session accepted",
		SessionID: session.SessionID,
		State:     session.State,
	}

	statusCode := http.StatusAccepted
	if session.State == models.SessionStateReady {
		response.Message = "Playback session ready"
		statusCode = http.StatusOK
	}

	c.JSON(statusCode, response)
}
