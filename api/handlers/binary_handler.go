package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// BinaryService reports and installs the external tools
type BinaryService interface {
	CheckBinaries(ctx context.Context) domain.BinaryStatus
	CachedStatus() domain.BinaryStatus
	Install(ctx context.Context, tool domain.Tool) error
	Update(ctx context.Context, tool domain.Tool) error
}

// BinaryHandler handles tool status and install requests
type BinaryHandler struct {
	binaries BinaryService
	logger   *zap.Logger
}

// NewBinaryHandler creates a new binary handler
func NewBinaryHandler(binaries BinaryService, logger *zap.Logger) *BinaryHandler {
	return &BinaryHandler{binaries: binaries, logger: logger}
}

// CheckBinaries handles GET /api/v1/binaries
func (h *BinaryHandler) CheckBinaries(c *gin.Context) {
	c.JSON(http.StatusOK, h.binaries.CheckBinaries(c.Request.Context()))
}

// Install handles POST /api/v1/binaries/:tool/install.
// The request blocks until the install finishes; progress goes out on the event stream.
func (h *BinaryHandler) Install(c *gin.Context) {
	h.run(c, "install", h.binaries.Install)
}

// Update handles POST /api/v1/binaries/:tool/update
func (h *BinaryHandler) Update(c *gin.Context) {
	h.run(c, "update", h.binaries.Update)
}

func (h *BinaryHandler) run(c *gin.Context, op string, fn func(context.Context, domain.Tool) error) {
	tool, err := domain.ParseTool(c.Param("tool"))
	if err != nil {
		respondError(c, err)
		return
	}

	// A client that hangs up should not abort a half-finished install
	ctx := context.WithoutCancel(c.Request.Context())
	if err := fn(ctx, tool); err != nil {
		h.logger.Error("Binary "+op+" failed", zap.String("tool", string(tool)), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.binaries.CachedStatus().For(tool))
}
