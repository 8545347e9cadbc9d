package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowtube/flowtube/internal/models"
	"github.com/flowtube/flowtube/internal/services/infocache"
	"github.com/flowtube/flowtube/internal/utils"
)

type CacheHandler struct {
	cache      infocache.InfoCache
	maxEntries int
}

func NewCacheHandler(cache infocache.InfoCache, maxEntries int) *CacheHandler {
	return &CacheHandler{
		cache:      cache,
		maxEntries: maxEntries,
	}
}

// Stats godoc
// @Summary Get info cache statistics
// @Description Report hit/miss/eviction counters and current size of the extraction cache
// @Tags cache
// @Produce json
// @Success 200 {object} models.CacheStatsResponse
// @Router /api/v1/cache/stats [get]
// @Security ApiKeyAuth
func (h *CacheHandler) Stats(c *gin.Context) {
	stats := h.cache.Stats()
	c.JSON(http.StatusOK, models.CacheStatsResponse{
		Hits:        stats.Hits,
		Misses:      stats.Misses,
		Sets:        stats.Sets,
		Evictions:   stats.Evictions,
		CurrentSize: stats.CurrentSize,
		MaxEntries:  h.maxEntries,
	})
}

// Invalidate godoc
// @Summary Invalidate cached extraction results
// @Description Drop cache entries for a service and/or content type. Omitting both clears everything.
// @Tags cache
// @Accept json
// @Produce json
// @Param request body models.CacheInvalidateRequest true "Invalidation scope"
// @Success 200 {object} models.CacheInvalidateResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/cache/invalidate [post]
// @Security ApiKeyAuth
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var req models.CacheInvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, utils.NewValidationError("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		}))
		return
	}

	contentType := models.ContentType(req.ContentType)
	switch contentType {
	case "", models.ContentTypeStream, models.ContentTypeChannel, models.ContentTypePlaylist, models.ContentTypeComments:
	default:
		errorResponse(c, utils.NewValidationError("Unknown content type", map[string]interface{}{
			"content_type": req.ContentType,
		}))
		return
	}

	evicted := h.cache.Invalidate(req.ServiceID, contentType)

	utils.LogInfo(c.Request.Context(), "Cache invalidated", utils.Fields{
		"service_id":   req.ServiceID,
		"content_type": req.ContentType,
		"evicted":      evicted,
	})

	c.JSON(http.StatusOK, models.CacheInvalidateResponse{
		Status:  "success",
		Evicted: evicted,
	})
}

// SetRestrictedMode godoc
// @Summary Flip the restricted content mode for a service
// @Description Change the per-service restricted mode flag. A change evicts only restriction-sensitive cache entries of that service.
// @Tags cache
// @Accept json
// @Produce json
// @Param request body models.RestrictedModeRequest true "Service and flag"
// @Success 200 {object} models.RestrictedModeResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/service/restricted [put]
// @Security ApiKeyAuth
func (h *CacheHandler) SetRestrictedMode(c *gin.Context) {
	var req models.RestrictedModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, utils.NewValidationError("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		}))
		return
	}

	evicted := h.cache.SetRestrictedMode(req.ServiceID, *req.Restricted)

	utils.LogInfo(c.Request.Context(), "Restricted mode changed", utils.Fields{
		"service_id": req.ServiceID,
		"restricted": *req.Restricted,
		"evicted":    evicted,
	})

	c.JSON(http.StatusOK, models.RestrictedModeResponse{
		ServiceID:  req.ServiceID,
		Restricted: *req.Restricted,
		Evicted:    evicted,
	})
}
