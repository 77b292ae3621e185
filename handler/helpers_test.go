package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/AnTengye/contractchat/config"
	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testApp wires the real services against a fake backend.
type testApp struct {
	backend *gin.Engine
	server  *httptest.Server
	tokens  *service.TokenStore
	deps    Deps
	router  *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	app := &testApp{backend: gin.New()}
	app.server = httptest.NewServer(app.backend)
	t.Cleanup(app.server.Close)

	kv, err := service.OpenKVStore("")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	app.tokens = service.NewTokenStore(kv)
	client := service.NewBackendClient(&config.BackendConfig{BaseURL: app.server.URL, TimeoutSeconds: 5}, app.tokens)

	session := service.NewSession(client, app.tokens)
	premium := service.NewPremiumReconciler(client, session, app.tokens)
	selection := service.NewSelection()
	manifests := service.NewManifestStore(10)
	app.deps = Deps{
		Tokens:    app.tokens,
		Session:   session,
		Premium:   premium,
		Checkout:  service.NewCheckout(client, app.tokens),
		Selection: selection,
		Sources:   []service.FileSource{service.LocalSource{}},
		Uploader:  service.NewUploader(client, session, premium, selection, manifests),
		Manifests: manifests,
		Browser:   service.NewJobBrowser(client),
		Chat:      service.NewChatPane(client, []string{"What are the payment terms?"}),
	}
	app.router = NewRouter(app.deps)
	return app
}

// signIn stores a token and a profile without going through the backend.
func (a *testApp) signIn(t *testing.T, premium bool) {
	t.Helper()
	if err := a.tokens.Set("tok"); err != nil {
		t.Fatalf("Failed to store token: %v", err)
	}
	a.deps.Session.SetUser(&model.User{
		Name:    "Pat",
		Email:   "pat@example.com",
		Premium: model.ComputePremium(premium, false, ""),
	})
}

func (a *testApp) do(method, target string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return out
}

func writeDir(t *testing.T, name string, files ...string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(root, f), []byte("%PDF-1.4 "+f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func countCalls(n *atomic.Int32) gin.HandlerFunc {
	return func(c *gin.Context) {
		n.Add(1)
		c.Next()
	}
}
