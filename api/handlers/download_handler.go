package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// QueueService is the scheduler surface driven over HTTP
type QueueService interface {
	Enqueue(options domain.DownloadOptions, title, thumbnail string) (string, error)
	Cancel(id string) error
	RemoveTask(id string) error
	ClearCompleted() int
	GetTask(id string) (*domain.DownloadTask, error)
	QueueState() domain.DownloadQueueState
	MaxConcurrent() int
	SetMaxConcurrent(n int) error
}

// DownloadHandler handles download queue requests
type DownloadHandler struct {
	queue  QueueService
	logger *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(queue QueueService, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		queue:  queue,
		logger: logger,
	}
}

// AddDownloadRequest represents a request to queue a download
type AddDownloadRequest struct {
	domain.DownloadOptions
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// AddDownloadResponse carries the id of the queued task
type AddDownloadResponse struct {
	ID string `json:"id"`
}

// AddDownload handles POST /api/v1/downloads
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	var req AddDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.queue.Enqueue(req.DownloadOptions, req.Title, req.Thumbnail)
	if err != nil {
		h.logger.Warn("Failed to queue download", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AddDownloadResponse{ID: id})
}

// GetQueue handles GET /api/v1/downloads
func (h *DownloadHandler) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.QueueState())
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	task, err := h.queue.GetTask(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")
	if err := h.queue.Cancel(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})
}

// DeleteDownload handles DELETE /api/v1/downloads/:id
func (h *DownloadHandler) DeleteDownload(c *gin.Context) {
	if err := h.queue.RemoveTask(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCompleted handles POST /api/v1/downloads/clear-completed
func (h *DownloadHandler) ClearCompleted(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"removed": h.queue.ClearCompleted()})
}

// MaxConcurrentRequest changes the concurrency ceiling
type MaxConcurrentRequest struct {
	MaxConcurrent int `json:"max_concurrent" binding:"required"`
}

// GetMaxConcurrent handles GET /api/v1/settings/max-concurrent
func (h *DownloadHandler) GetMaxConcurrent(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"max_concurrent": h.queue.MaxConcurrent()})
}

// SetMaxConcurrent handles PUT /api/v1/settings/max-concurrent
func (h *DownloadHandler) SetMaxConcurrent(c *gin.Context) {
	var req MaxConcurrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.queue.SetMaxConcurrent(req.MaxConcurrent); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"max_concurrent": h.queue.MaxConcurrent()})
}
