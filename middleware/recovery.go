package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/AnTengye/contractchat/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a 500. Nothing the handlers hold is
// reset; the next request sees the same session and selection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal server error",
					"request_id": GetRequestID(c),
				})
			}
		}()

		c.Next()
	}
}
