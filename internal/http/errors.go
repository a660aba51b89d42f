package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rkas/internal/core"
	applog "rkas/internal/log"
	"rkas/internal/services"
)

var errConfirmationRequired = errors.New("deletion requires confirm=true")

var validationErrors = []error{
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrInvalidCategory,
	core.ErrInvalidMonth,
	core.ErrInvalidQuantity,
	core.ErrInvalidPrice,
	core.ErrInvalidRealization,
	core.ErrEmptyAccountCode,
	core.ErrNoMonths,
	core.ErrEmptyID,
	core.ErrInvalidPagu,
	core.ErrInvalidStudents,
	core.ErrInvalidAmount,
	services.ErrNoItems,
	services.ErrNoSurplus,
	errConfirmationRequired,
}

// statusFor maps service and domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrRecommendationNotFound),
		errors.Is(err, services.ErrEvidenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateItem),
		errors.Is(err, services.ErrNoDraft):
		return http.StatusConflict
	case errors.Is(err, services.ErrAIUnavailable):
		return http.StatusBadGateway
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// writeError aborts with {"error": ...}. Internal errors are logged and not
// echoed to the client.
func (s *Server) writeError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		fields := applog.NewFields().WithHTTPRequest(c.Request.Method, c.Request.URL.Path, "", "")
		s.errlog.LogError(c.Request.Context(), "Request failed", err, op, fields)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// badRequest reports a malformed request body or parameter.
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
