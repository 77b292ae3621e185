package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func stubDocumentRoutes(app *testApp) {
	app.backend.POST("/documents/load", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "loaded"})
	})
	app.backend.POST("/documents/suggest-questions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"questions": []string{"Who signs change orders?"}})
	})
	app.backend.GET("/documents/chat-history/:job/:doc", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"messages": []gin.H{}})
	})
}

func TestJobsBrowseAndSelect(t *testing.T) {
	app := newTestApp(t)
	app.signIn(t, true)
	stubDocumentRoutes(app)
	app.backend.GET("/directories/jobs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"jobs": []gin.H{{"job_number": "2217 - Cambridge St. D6"}}})
	})
	app.backend.GET("/directories/jobs/:job/contracts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"contracts": []gin.H{
			{"file_key": "2217/20240115_093012_Main Contract.pdf", "filename": "Main Contract.pdf"},
		}})
	})

	list := decode(t, app.do("GET", "/api/jobs", nil))
	job := list["jobs"].([]any)[0].(map[string]any)
	if job["short_number"] != "2217" || job["job_number"] != "2217 - Cambridge St. D6" {
		t.Errorf("Expected job with short number, got %v", job)
	}

	view := decode(t, app.do("POST", "/api/jobs/2217/toggle", nil))
	if view["expanded"] != true || len(view["documents"].([]any)) != 1 {
		t.Errorf("Expected expanded job with one document, got %v", view)
	}

	w := app.do("POST", "/api/jobs/2217/select", gin.H{
		"file_key": "2217/20240115_093012_Main Contract.pdf",
		"filename": "Main Contract.pdf",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d %s", w.Code, w.Body.String())
	}
	chat := decode(t, w)
	if chat["state"] != "ready" || chat["document_loaded"] != true {
		t.Errorf("Expected ready chat, got %v", chat)
	}
	doc := chat["document"].(map[string]any)
	if doc["document_id"] != "Main Contract.pdf" {
		t.Errorf("Expected normalized document id, got %v", doc["document_id"])
	}

	view = decode(t, app.do("POST", "/api/jobs/2217/toggle", nil))
	if view["expanded"] != false {
		t.Errorf("Expected job to collapse, got %v", view)
	}
}

func TestChatSendBeforeDocumentLoaded(t *testing.T) {
	app := newTestApp(t)
	app.signIn(t, true)
	chats := 0
	app.backend.POST("/documents/chat", func(c *gin.Context) {
		chats++
		c.JSON(http.StatusOK, gin.H{"response": "hi"})
	})

	w := app.do("POST", "/api/chat/messages", gin.H{"message": "What is the retainage?"})

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"state":"idle"`) {
		t.Errorf("Expected chat view in error body, got %s", w.Body.String())
	}
	if chats != 0 {
		t.Errorf("Expected no chat request, got %d", chats)
	}
}

func TestChatConversation(t *testing.T) {
	app := newTestApp(t)
	app.signIn(t, true)
	stubDocumentRoutes(app)
	fail := false
	app.backend.POST("/documents/chat", func(c *gin.Context) {
		if fail {
			c.JSON(http.StatusInternalServerError, gin.H{})
			return
		}
		c.JSON(http.StatusOK, gin.H{"response": "Retainage is 5%.", "sources": []string{"4.2"}})
	})

	w := app.do("POST", "/api/chat/open", gin.H{"job_number": "2217", "document_id": "Main Contract.pdf"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected open to succeed, got %d %s", w.Code, w.Body.String())
	}
	if s := decode(t, w)["suggestions"].([]any); len(s) != 1 {
		t.Errorf("Expected backend suggestions, got %v", s)
	}

	w = app.do("POST", "/api/chat/messages", gin.H{"message": "What is the retainage?"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if msgs := decode(t, w)["messages"].([]any); len(msgs) != 2 {
		t.Errorf("Expected question and answer, got %d messages", len(msgs))
	}

	fail = true
	w = app.do("POST", "/api/chat/messages", gin.H{"message": "And the warranty?"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
	chat := decode(t, w)["chat"].(map[string]any)
	msgs := chat["messages"].([]any)
	if len(msgs) != 4 || msgs[3].(map[string]any)["error"] != true {
		t.Errorf("Expected inline error message, got %v", msgs)
	}

	if w := app.do("DELETE", "/api/chat", nil); decode(t, w)["state"] != "idle" {
		t.Errorf("Expected idle chat after close, got %s", w.Body.String())
	}
}

func TestChatOpenValidation(t *testing.T) {
	app := newTestApp(t)
	app.signIn(t, true)

	w := app.do("POST", "/api/chat/open", gin.H{"job_number": "2217"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
