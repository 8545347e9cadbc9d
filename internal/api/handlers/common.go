package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowtube/flowtube/internal/utils"
)

// errorResponse writes an AppError in the envelope every endpoint shares.
func errorResponse(c *gin.Context, err *utils.AppError) {
	c.JSON(err.StatusCode, gin.H{
		"error":      err,
		"request_id": c.GetString("request_id"),
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// handleServiceError maps service-layer failures onto HTTP responses.
func handleServiceError(c *gin.Context, err error) {
	if appErr, ok := err.(*utils.AppError); ok {
		errorResponse(c, appErr)
		return
	}
	utils.LogError(c.Request.Context(), "Unhandled service error", err)
	errorResponse(c, utils.NewInternalError())
}
