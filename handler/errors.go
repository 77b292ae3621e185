package handler

import (
	"errors"
	"net/http"

	"github.com/AnTengye/contractchat/pkg/logger"
	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

// errorResponse maps a service error to its status and body. Nothing here
// touches local state; the services have already done that.
func errorResponse(err error) (int, gin.H) {
	var se *service.StatusError
	switch {
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrNoSession):
		return http.StatusUnauthorized, gin.H{"error": err.Error(), "login_required": true}
	case errors.Is(err, service.ErrSubscriptionRequired):
		return http.StatusPaymentRequired, gin.H{"error": err.Error(), "subscription_required": true}
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	case errors.Is(err, service.ErrDocumentNotLoaded):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.As(err, &se):
		return http.StatusBadGateway, gin.H{"error": "backend request failed", "backend_status": se.StatusCode}
	default:
		return http.StatusBadGateway, gin.H{"error": "backend unavailable"}
	}
}

func respondError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, body)
}
