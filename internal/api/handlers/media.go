package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowtube/flowtube/internal/models"
	"github.com/flowtube/flowtube/internal/services/player"
	"github.com/flowtube/flowtube/internal/services/storage"
	"github.com/flowtube/flowtube/internal/utils"
)

type MediaHandler struct {
	player  *player.Manager
	storage storage.StorageInterface
}

func NewMediaHandler(manager *player.Manager, store storage.StorageInterface) *MediaHandler {
	return &MediaHandler{
		player:  manager,
		storage: store,
	}
}

// GetMedia godoc
// @Summary Download the merged playback artifact
// @Description Stream the merged audio/video file of a ready playback session
// @Tags media
// @Accept json
// @Produce application/octet-stream
// @Param request body models.GetMediaRequest true "Session ID"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/media/get [post]
// @Security ApiKeyAuth
func (h *MediaHandler) GetMedia(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.GetMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, utils.NewValidationError("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		}))
		return
	}

	session, err := h.player.Session(ctx, req.SessionID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if session.State != models.SessionStateReady || session.S3Key == "" {
		errorResponse(c, utils.NewSessionNotReadyError(req.SessionID))
		return
	}

	body, err := h.storage.Download(ctx, session.S3Key)
	if err != nil {
		utils.LogError(ctx, "Failed to download artifact", err, utils.Fields{
			"session_id": session.SessionID,
			"s3_key":     session.S3Key,
		})
		errorResponse(c, utils.NewS3Error(err))
		return
	}
	defer body.Close()

	c.Header("Content-Type", "video/mp4")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", session.SessionID+".mp4"))
	if session.TotalSize > 0 {
		c.Header("Content-Length", fmt.Sprintf("%d", session.TotalSize))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, body); err != nil {
		utils.LogWarn(ctx, "Artifact stream interrupted", utils.Fields{
			"session_id": session.SessionID,
		})
	}
}

// GetMediaURI godoc
// @Summary Get a direct download URL for a playback artifact
// @Description Generate a time-limited presigned URL for a ready playback session
// @Tags media
// @Accept json
// @Produce json
// @Param request body models.GetMediaURIRequest true "Session ID and expiry"
// @Success 200 {object} models.GetMediaURIResponse
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/media/getDirect [post]
// @Security ApiKeyAuth
func (h *MediaHandler) GetMediaURI(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.GetMediaURIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, utils.NewValidationError("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		}))
		return
	}

	session, err := h.player.Session(ctx, req.SessionID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if session.State != models.SessionStateReady || session.S3Key == "" {
		errorResponse(c, utils.NewSessionNotReadyError(req.SessionID))
		return
	}

	expiry := time.Duration(req.ExpiryMinutes) * time.Minute
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	url, err := h.storage.GeneratePresignedURL(ctx, session.S3Key, expiry)
	if err != nil {
		utils.LogError(ctx, "Failed to generate presigned URL", err, utils.Fields{
			"session_id": session.SessionID,
		})
		errorResponse(c, utils.NewS3Error(err))
		return
	}

	c.JSON(http.StatusOK, models.GetMediaURIResponse{
		SessionID: session.SessionID,
		S3URL:     url,
		ExpiresAt: time.Now().Add(expiry),
	})
}
