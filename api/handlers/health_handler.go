package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// Version is reported by the health endpoint; overridden at link time
var Version = "dev"

// HealthHandler handles health check requests
type HealthHandler struct {
	queue    QueueService
	binaries BinaryService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queue QueueService, binaries BinaryService) *HealthHandler {
	return &HealthHandler{
		queue:    queue,
		binaries: binaries,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Active        int `json:"active"`
		Queued        int `json:"queued"`
		MaxConcurrent int `json:"max_concurrent"`
	} `json:"queue"`
	Binaries domain.BinaryStatus `json:"binaries"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	state := h.queue.QueueState()

	response := HealthResponse{
		Status:   "ok",
		Version:  Version,
		Binaries: h.binaries.CachedStatus(),
	}
	response.Queue.Active = state.ActiveCount
	response.Queue.Queued = state.QueuedCount
	response.Queue.MaxConcurrent = state.MaxConcurrent

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready. Downloads cannot run until yt-dlp is present.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.binaries.CachedStatus().YTDLP.Installed {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "yt-dlp is not installed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
