package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowtube/flowtube/internal/models"
	"github.com/flowtube/flowtube/internal/services/player"
)

type SessionHandler struct {
	player *player.Manager
}

func NewSessionHandler(manager *player.Manager) *SessionHandler {
	return &SessionHandler{
		player: manager,
	}
}

// List godoc
// @Summary List playback sessions
// @Description Retrieve playback sessions with pagination
// @Tags sessions
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param sort query string false "Sort order" Enums(created_at_desc, created_at_asc)
// @Success 200 {object} models.SessionListResponse
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/session/list [get]
// @Security ApiKeyAuth
func (h *SessionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	sort := c.DefaultQuery("sort", "created_at_desc")

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sessions, total, err := h.player.List(ctx, models.PaginationOptions{
		Page:  page,
		Limit: limit,
		Sort:  sort,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	items := make([]models.SessionListItem, len(sessions))
	for i, session := range sessions {
		items[i] = models.SessionListItem{
			SessionID: session.SessionID,
			VideoID:   session.VideoID,
			Title:     session.Title,
			Quality:   session.Quality,
			State:     session.State,
			CreatedAt: session.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, models.SessionListResponse{
		Total:    int(total),
		Page:     page,
		Limit:    limit,
		Sessions: items,
	})
}

// Info godoc
// @Summary Get playback session details
// @Description Retrieve one playback session including live download progress
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} models.PlaybackSession
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/session/info/{session_id} [get]
// @Security ApiKeyAuth
func (h *SessionHandler) Info(c *gin.Context) {
	ctx := c.Request.Context()

	session, err := h.player.Session(ctx, c.Param("session_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Cancel godoc
// @Summary Cancel a playback session
// @Description Stop an in-flight playback session. Ready sessions are left untouched.
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/session/{session_id} [delete]
// @Security ApiKeyAuth
func (h *SessionHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	sessionID := c.Param("session_id")
	if err := h.player.Cancel(ctx, sessionID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"session_id": sessionID,
	})
}
