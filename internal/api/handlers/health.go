package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowtube/flowtube/internal/database"
	"github.com/flowtube/flowtube/internal/services/storage"
)

type HealthHandler struct {
	db      *database.MongoDB
	storage storage.StorageInterface
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Version   string                   `json:"version"`
	Services  map[string]ServiceHealth `json:"services"`
}

type ServiceHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

func NewHealthHandler(db *database.MongoDB, store storage.StorageInterface) *HealthHandler {
	return &HealthHandler{
		db:      db,
		storage: store,
	}
}

// Health godoc
// @Summary Health check endpoint
// @Description Check the health of the service and its dependencies
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Success 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
		Services:  make(map[string]ServiceHealth),
	}

	response.Services["mongodb"] = h.checkMongoDB(ctx)
	response.Services["s3"] = h.checkS3(ctx)

	overallHealthy := true
	for _, service := range response.Services {
		if service.Status != "healthy" {
			overallHealthy = false
			break
		}
	}

	if !overallHealthy {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Readiness godoc
// @Summary Readiness check endpoint
// @Description Check if the service is ready to accept requests
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Success 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// Liveness godoc
// @Summary Liveness check endpoint
// @Description Check if the service process is alive
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /live [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (h *HealthHandler) checkMongoDB(ctx context.Context) ServiceHealth {
	start := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		return ServiceHealth{
			Status: "unhealthy",
			Error:  err.Error(),
		}
	}
	return ServiceHealth{
		Status:       "healthy",
		ResponseTime: time.Since(start).String(),
	}
}

func (h *HealthHandler) checkS3(ctx context.Context) ServiceHealth {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := h.storage.Exists(checkCtx, "healthcheck"); err != nil {
		return ServiceHealth{
			Status: "unhealthy",
			Error:  err.Error(),
		}
	}
	return ServiceHealth{
		Status:       "healthy",
		ResponseTime: time.Since(start).String(),
	}
}
