package middleware

import (
	"net/http"

	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/pkg/logger"
	"github.com/gin-gonic/gin"
)

// SessionReader is the part of the session the gate needs.
type SessionReader interface {
	Authenticated() bool
	User() *model.User
}

// RequireSession rejects requests until a token and a profile are present.
// The user's email is added to the request context for logging.
func RequireSession(session SessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":          "sign in required",
				"login_required": true,
			})
			return
		}
		if u := session.User(); u != nil {
			c.Request = c.Request.WithContext(logger.With(c.Request.Context(), logger.EmailKey, u.Email))
		}
		c.Next()
	}
}
