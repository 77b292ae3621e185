package handler

import (
	"net/http"
	"time"

	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/pkg/logger"
	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	session *service.Session
	premium *service.PremiumReconciler
	tokens  *service.TokenStore
}

func NewAuthHandler(session *service.Session, premium *service.PremiumReconciler, tokens *service.TokenStore) *AuthHandler {
	return &AuthHandler{session: session, premium: premium, tokens: tokens}
}

// SessionResponse is the state the client renders from.
type SessionResponse struct {
	View       service.View        `json:"view"`
	User       *model.User         `json:"user,omitempty"`
	Premium    *model.PremiumState `json:"premium,omitempty"`
	Refreshing bool                `json:"premium_refreshing"`
}

func (h *AuthHandler) sessionResponse() SessionResponse {
	resp := SessionResponse{View: h.session.View(), Refreshing: h.premium.Refreshing()}
	if resp.View == service.ViewApp {
		resp.User = h.session.User()
		if resp.User != nil {
			p := resp.User.Premium
			resp.Premium = &p
		}
	}
	return resp
}

// Login sends the browser to the backend's Google OAuth entry.
func (h *AuthHandler) Login(c *gin.Context) {
	c.Redirect(http.StatusFound, h.session.LoginURL())
}

// Session returns the cached view without calling the backend.
func (h *AuthHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.session.Logout(); err != nil {
		logger.Error(c.Request.Context(), "failed to clear token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign out"})
		return
	}
	logger.Info(c.Request.Context(), "signed out")
	c.JSON(http.StatusOK, h.sessionResponse())
}

// Token reports what the stored token claims about itself.
func (h *AuthHandler) Token(c *gin.Context) {
	c.JSON(http.StatusOK, service.InspectToken(h.tokens.Get(), time.Now()))
}

// Status reports whether the backend is reachable and accepts the stored
// token.
func (h *AuthHandler) Status(c *gin.Context) {
	report, err := h.session.CheckBackend(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
