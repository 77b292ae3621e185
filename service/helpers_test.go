package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnTengye/contractchat/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend is a gin router standing in for the remote API.
type fakeBackend struct {
	*gin.Engine
	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{Engine: gin.New()}
	fb.server = httptest.NewServer(fb.Engine)
	t.Cleanup(fb.server.Close)
	return fb
}

func newTokens(t *testing.T) *TokenStore {
	t.Helper()
	kv, err := OpenKVStore("")
	require.NoError(t, err)
	return NewTokenStore(kv)
}

func (fb *fakeBackend) client(tokens *TokenStore) *BackendClient {
	return NewBackendClient(&config.BackendConfig{BaseURL: fb.server.URL, TimeoutSeconds: 5}, tokens)
}

// bearer returns the token of the request, or "" when absent.
func bearer(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

func requireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearer(c) != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
			return
		}
		c.Next()
	}
}
