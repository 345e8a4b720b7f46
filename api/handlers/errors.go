package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// statusFor maps the domain error taxonomy onto HTTP status codes
func statusFor(err error) int {
	var resolutionErr *domain.ResolutionError
	var stateErr *domain.InvalidStateError
	var installErr *domain.InstallError

	switch {
	case errors.Is(err, domain.ErrInvalidOptions), errors.Is(err, domain.ErrUnknownTool):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInstallInProgress), errors.As(err, &stateErr):
		return http.StatusConflict
	case errors.As(err, &resolutionErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &installErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": "..."} with its mapped status
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
