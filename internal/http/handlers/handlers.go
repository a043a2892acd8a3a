package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/internal/middleware"
	"github.com/garagehub/billing-service/internal/repository"
	"github.com/garagehub/billing-service/pkg/logger"
	"github.com/garagehub/billing-service/pkg/res"
)

// accountID returns the authenticated account id set by the auth middleware.
func accountID(c *gin.Context, log *logger.Logger) (string, bool) {
	v, exists := c.Get(string(middleware.ContextAccountIDKey))
	if !exists {
		log.Errorw("Account ID not found in context after auth middleware")
		res.Error(c.Writer, "Internal server error", res.CodeInternalError, http.StatusInternalServerError)
		c.Abort()
		return "", false
	}
	return v.(string), true
}

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var extErr *domain.ExternalServiceError

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		res.Error(c.Writer, err.Error(), res.CodeMissingFields, http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidPlan):
		res.Error(c.Writer, err.Error(), res.CodeInvalidPlan, http.StatusBadRequest)
	case errors.Is(err, domain.ErrMalformedReference):
		res.Error(c.Writer, err.Error(), res.CodeMalformedReference, http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		res.Error(c.Writer, err.Error(), res.CodeNotFound, http.StatusNotFound)
	case errors.As(err, &extErr):
		log.Errorw("Gateway request failed", "error", err, "upstreamStatus", extErr.StatusCode)
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Error:     "Payment gateway request failed",
			ErrorCode: res.CodeGatewayError,
			Details:   extErr.Payload,
		}, http.StatusBadGateway)
	default:
		log.Errorw("Unhandled service error", "error", err)
		res.Error(c.Writer, "Internal server error", res.CodeInternalError, http.StatusInternalServerError)
	}
	c.Abort()
}
