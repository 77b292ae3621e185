package handler

import (
	"net/http"

	"github.com/AnTengye/contractchat/pkg/logger"
	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

// CallbackHandler serves the entry URL. The OAuth login and the checkout
// both return here with their results in the query string.
type CallbackHandler struct {
	session *service.Session
	auth    *AuthHandler
}

func NewCallbackHandler(session *service.Session, auth *AuthHandler) *CallbackHandler {
	return &CallbackHandler{session: session, auth: auth}
}

// HandleEntry bootstraps the session. A URL carrying a token or a payment
// result is consumed once and then redirected to the bare path so a reload
// cannot replay it.
func (h *CallbackHandler) HandleEntry(c *gin.Context) {
	params := service.ParseBootstrapParams(c.Request.URL.Query())
	ctx := c.Request.Context()

	if !params.CarriesState() && h.session.Authenticated() {
		c.JSON(http.StatusOK, h.auth.sessionResponse())
		return
	}

	result := h.session.Bootstrap(ctx, params)
	logger.Info(ctx, "session bootstrapped",
		"view", result.View,
		"from_login", params.Token != "",
		"payment_return", params.PaymentSuccess,
		"payment_verified", result.PaymentVerified,
	)

	if result.CleanURL {
		c.Redirect(http.StatusFound, c.Request.URL.Path)
		return
	}
	c.JSON(http.StatusOK, h.auth.sessionResponse())
}
