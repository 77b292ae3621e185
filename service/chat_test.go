package service

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AnTengye/contractchat/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDoc = model.SelectedDocument{JobNumber: "2217", DocumentID: "Main Contract.pdf", DisplayName: "Main Contract.pdf"}

type chatFixture struct {
	fb        *fakeBackend
	pane      *ChatPane
	chatCalls atomic.Int32
}

// newChatFixture registers load, suggestion and history routes that succeed.
// Tests replace the chat route as needed.
func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	fb := newFakeBackend(t)
	tokens := newTokens(t)
	require.NoError(t, tokens.Set("tok"))
	f := &chatFixture{
		fb:   fb,
		pane: NewChatPane(fb.client(tokens), []string{"What is the contract value?"}),
	}
	fb.POST("/documents/load", func(c *gin.Context) {
		var req documentRequest
		if assert.NoError(t, c.ShouldBindJSON(&req)) && req.DocumentID == "broken.pdf" {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "cannot parse"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "loaded"})
	})
	fb.POST("/documents/suggest-questions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"questions": []string{"Who are the parties?", "When is substantial completion?"}})
	})
	fb.GET("/documents/chat-history/:job/:doc", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"messages": []gin.H{}})
	})
	return f
}

func (f *chatFixture) handleChat(h gin.HandlerFunc) {
	f.fb.POST("/documents/chat", func(c *gin.Context) {
		f.chatCalls.Add(1)
		h(c)
	})
}

func TestChatOpenLoadsDocument(t *testing.T) {
	fb := newFakeBackend(t)
	tokens := newTokens(t)
	require.NoError(t, tokens.Set("tok"))
	pane := NewChatPane(fb.client(tokens), []string{"fallback"})

	fb.POST("/documents/load", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	fb.POST("/documents/suggest-questions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"questions": []string{"Who are the parties?"}})
	})
	fb.GET("/documents/chat-history/:job/:doc", func(c *gin.Context) {
		assert.Equal(t, "2217", c.Param("job"))
		assert.Equal(t, "Main Contract.pdf", c.Param("doc"))
		c.JSON(http.StatusOK, gin.H{"messages": []gin.H{
			{"role": "assistant", "content": "second", "timestamp": "2024-01-15T10:00:05Z"},
			{"role": "user", "content": "first", "timestamp": "2024-01-15T10:00:00Z"},
		}})
	})

	view, err := pane.Open(context.Background(), testDoc)

	require.NoError(t, err)
	require.Equal(t, ChatReady, view.State)
	require.True(t, view.DocumentLoaded)
	require.Equal(t, &testDoc, view.Document)
	require.Equal(t, []string{"Who are the parties?"}, view.Suggestions)
	require.Len(t, view.Messages, 2)
	require.Equal(t, "first", view.Messages[0].Content)
	require.Equal(t, model.RoleUser, view.Messages[0].Role)
	require.Equal(t, "second", view.Messages[1].Content)
	require.NotEmpty(t, view.Messages[0].ID)
}

func TestChatOpenFallsBackToDefaultQuestions(t *testing.T) {
	fb := newFakeBackend(t)
	tokens := newTokens(t)
	require.NoError(t, tokens.Set("tok"))
	pane := NewChatPane(fb.client(tokens), []string{"fallback"})
	fb.POST("/documents/load", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	fb.POST("/documents/suggest-questions", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{})
	})
	// history route missing: 404 is tolerated

	view, err := pane.Open(context.Background(), testDoc)

	require.NoError(t, err)
	require.Equal(t, ChatReady, view.State)
	require.Equal(t, []string{"fallback"}, view.Suggestions)
	require.Empty(t, view.Messages)
}

func TestChatOpenLoadFailure(t *testing.T) {
	f := newChatFixture(t)
	f.handleChat(func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"response": "hi"}) })

	view, err := f.pane.Open(context.Background(), model.SelectedDocument{JobNumber: "2217", DocumentID: "broken.pdf"})

	require.Error(t, err)
	require.Equal(t, ChatError, view.State)
	require.False(t, view.DocumentLoaded)
	require.NotEmpty(t, view.Error)

	_, err = f.pane.Send(context.Background(), "anything?")
	require.ErrorIs(t, err, ErrDocumentNotLoaded)
	require.Zero(t, f.chatCalls.Load())
}

func TestChatOpenNormalizesStoredKey(t *testing.T) {
	fb := newFakeBackend(t)
	tokens := newTokens(t)
	require.NoError(t, tokens.Set("tok"))
	pane := NewChatPane(fb.client(tokens), nil)

	var loadID, suggestID, historyID string
	fb.POST("/documents/load", func(c *gin.Context) {
		var req documentRequest
		assert.NoError(t, c.ShouldBindJSON(&req))
		loadID = req.DocumentID
		c.JSON(http.StatusOK, gin.H{})
	})
	fb.POST("/documents/suggest-questions", func(c *gin.Context) {
		var req documentRequest
		assert.NoError(t, c.ShouldBindJSON(&req))
		suggestID = req.DocumentID
		c.JSON(http.StatusOK, gin.H{"questions": []string{"Who are the parties?"}})
	})
	fb.GET("/documents/chat-history/:job/:doc", func(c *gin.Context) {
		historyID = c.Param("doc")
		c.JSON(http.StatusOK, gin.H{"messages": []gin.H{}})
	})

	view, err := pane.Open(context.Background(), model.SelectedDocument{
		JobNumber:  " 2217 ",
		DocumentID: "uploads/2217/20240101_120000_Main Contract.pdf",
	})

	require.NoError(t, err)
	require.Equal(t, ChatReady, view.State)
	require.Equal(t, "Main Contract.pdf", loadID)
	require.Equal(t, "Main Contract.pdf", suggestID)
	require.Equal(t, "Main Contract.pdf", historyID)
	require.Equal(t, "2217", view.Document.JobNumber)
	require.Equal(t, "Main Contract.pdf", view.Document.DocumentID)
	require.Equal(t, "Main Contract.pdf", view.Document.DisplayName)
}

func TestChatOpenLoadFailureCancelsOtherReads(t *testing.T) {
	fb := newFakeBackend(t)
	tokens := newTokens(t)
	require.NoError(t, tokens.Set("tok"))
	pane := NewChatPane(fb.client(tokens), []string{"fallback"})

	historyStarted := make(chan struct{})
	var historyCancelled atomic.Bool
	fb.GET("/documents/chat-history/:job/:doc", func(c *gin.Context) {
		close(historyStarted)
		select {
		case <-c.Request.Context().Done():
			historyCancelled.Store(true)
		case <-time.After(5 * time.Second):
			c.JSON(http.StatusOK, gin.H{"messages": []gin.H{}})
		}
	})
	fb.POST("/documents/suggest-questions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"questions": []string{}})
	})
	fb.POST("/documents/load", func(c *gin.Context) {
		<-historyStarted
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "cannot parse"})
	})

	start := time.Now()
	view, err := pane.Open(context.Background(), testDoc)

	require.Error(t, err)
	require.Less(t, time.Since(start), 3*time.Second)
	require.Equal(t, ChatError, view.State)
	require.Equal(t, []string{"fallback"}, view.Suggestions)
	require.Eventually(t, historyCancelled.Load, 2*time.Second, 10*time.Millisecond)
}

func TestChatSendUnauthorizedClosesPane(t *testing.T) {
	f := newChatFixture(t)
	f.handleChat(func(c *gin.Context) { c.JSON(http.StatusUnauthorized, gin.H{"detail": "expired"}) })
	f.pane.backend.OnUnauthorized(f.pane.Close)
	_, err := f.pane.Open(context.Background(), testDoc)
	require.NoError(t, err)

	view, err := f.pane.Send(context.Background(), "What is the retainage?")

	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, ChatIdle, view.State)
	require.Empty(t, view.Messages)
}

func TestChatOpenValidation(t *testing.T) {
	f := newChatFixture(t)
	_, err := f.pane.Open(context.Background(), model.SelectedDocument{JobNumber: "2217"})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, ChatIdle, f.pane.View().State)
}

func TestChatSendBeforeLoadIsBlocked(t *testing.T) {
	f := newChatFixture(t)
	f.handleChat(func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"response": "hi"}) })

	view, err := f.pane.Send(context.Background(), "What is the retainage?")

	require.ErrorIs(t, err, ErrDocumentNotLoaded)
	require.Empty(t, view.Messages)
	require.Zero(t, f.chatCalls.Load())
}

func TestChatSendAppendsReply(t *testing.T) {
	f := newChatFixture(t)
	var got ChatRequest
	f.handleChat(func(c *gin.Context) {
		assert.NoError(t, c.ShouldBindJSON(&got))
		c.JSON(http.StatusOK, gin.H{"response": "Retainage is 5%.", "confidence": 0.9, "sources": []string{"Section 4.2"}})
	})
	_, err := f.pane.Open(context.Background(), testDoc)
	require.NoError(t, err)

	view, err := f.pane.Send(context.Background(), "  What is the retainage?  ")

	require.NoError(t, err)
	require.Equal(t, ChatReady, view.State)
	require.Len(t, view.Messages, 2)
	require.Equal(t, model.RoleUser, view.Messages[0].Role)
	require.Equal(t, "What is the retainage?", view.Messages[0].Content)
	require.Equal(t, "Retainage is 5%.", view.Messages[1].Content)
	require.InDelta(t, 0.9, *view.Messages[1].Confidence, 1e-9)
	require.Equal(t, []string{"Section 4.2"}, view.Messages[1].Sources)

	require.Equal(t, "2217", got.JobNumber)
	require.Equal(t, "Main Contract.pdf", got.DocumentID)
	require.Equal(t, "What is the retainage?", got.Message)
	require.Empty(t, got.ChatHistory)
}

func TestChatSendFailureKeepsConversation(t *testing.T) {
	f := newChatFixture(t)
	var fail atomic.Bool
	var lastHistory []HistoryEntry
	f.handleChat(func(c *gin.Context) {
		if fail.Load() {
			c.JSON(http.StatusBadGateway, gin.H{"detail": "model unavailable"})
			return
		}
		var req ChatRequest
		assert.NoError(t, c.ShouldBindJSON(&req))
		lastHistory = req.ChatHistory
		c.JSON(http.StatusOK, gin.H{"response": "ok"})
	})
	_, err := f.pane.Open(context.Background(), testDoc)
	require.NoError(t, err)

	fail.Store(true)
	view, err := f.pane.Send(context.Background(), "first question")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, ChatError, view.State)
	require.Len(t, view.Messages, 2)
	require.True(t, view.Messages[1].Error)
	require.Equal(t, model.RoleAssistant, view.Messages[1].Role)

	// the pane recovers and the failure notice is not sent as history
	fail.Store(false)
	view, err = f.pane.Send(context.Background(), "second question")
	require.NoError(t, err)
	require.Equal(t, ChatReady, view.State)
	require.Len(t, view.Messages, 4)
	require.Equal(t, []HistoryEntry{{Role: model.RoleUser, Content: "first question"}}, lastHistory)
}

func TestChatSendEmptyMessage(t *testing.T) {
	f := newChatFixture(t)
	f.handleChat(func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"response": "hi"}) })
	_, err := f.pane.Open(context.Background(), testDoc)
	require.NoError(t, err)

	_, err = f.pane.Send(context.Background(), "   ")

	require.ErrorIs(t, err, ErrValidation)
	require.Zero(t, f.chatCalls.Load())
}

func TestChatOpenAnotherDocumentResets(t *testing.T) {
	f := newChatFixture(t)
	f.handleChat(func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"response": "hi"}) })
	_, err := f.pane.Open(context.Background(), testDoc)
	require.NoError(t, err)
	_, err = f.pane.Send(context.Background(), "hello")
	require.NoError(t, err)

	other := model.SelectedDocument{JobNumber: "2217", DocumentID: "Bond.pdf"}
	view, err := f.pane.Open(context.Background(), other)

	require.NoError(t, err)
	require.Empty(t, view.Messages)
	require.Equal(t, "Bond.pdf", view.Document.DocumentID)
}

func TestChatReplyForClosedDocumentIsDiscarded(t *testing.T) {
	f := newChatFixture(t)
	hit := make(chan struct{}, 1)
	release := make(chan struct{})
	f.handleChat(func(c *gin.Context) {
		hit <- struct{}{}
		<-release
		c.JSON(http.StatusOK, gin.H{"response": "late"})
	})
	_, err := f.pane.Open(context.Background(), testDoc)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.pane.Send(context.Background(), "slow question")
	}()
	<-hit
	f.pane.Close()
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("send did not return")
	}
	view := f.pane.View()
	require.Equal(t, ChatIdle, view.State)
	require.Empty(t, view.Messages)
}

func TestUserMessage(t *testing.T) {
	require.Contains(t, userMessage(ErrUnauthorized), "sign in")
	require.Contains(t, userMessage(ErrSubscriptionRequired), "premium")
	require.Contains(t, userMessage(&StatusError{StatusCode: 500}), "server")
	require.Contains(t, userMessage(context.DeadlineExceeded), "reached")
}
