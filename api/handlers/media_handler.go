package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// MediaHandler resolves media metadata
type MediaHandler struct {
	resolver domain.MetadataResolver
	logger   *zap.Logger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(resolver domain.MetadataResolver, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{resolver: resolver, logger: logger}
}

// FetchMetadataRequest names the URL to probe
type FetchMetadataRequest struct {
	URL string `json:"url" binding:"required"`
}

// FetchMetadata handles POST /api/v1/media/metadata.
// Resolution failures are returned as-is and never retried.
func (h *MediaHandler) FetchMetadata(c *gin.Context) {
	var req FetchMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	metadata, err := h.resolver.Resolve(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Info("Metadata resolution failed", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metadata)
}
