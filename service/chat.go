package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type ChatState string

const (
	ChatIdle             ChatState = "idle"
	ChatLoadingDocument  ChatState = "loading_document"
	ChatReady            ChatState = "ready"
	ChatAwaitingResponse ChatState = "awaiting_response"
	ChatError            ChatState = "error"
)

// ChatView is a snapshot of the pane.
type ChatView struct {
	State          ChatState               `json:"state"`
	Document       *model.SelectedDocument `json:"document,omitempty"`
	DocumentLoaded bool                    `json:"document_loaded"`
	Messages       []model.ChatMessage     `json:"messages"`
	Suggestions    []string                `json:"suggestions"`
	Error          string                  `json:"error,omitempty"`
}

// ChatPane holds the conversation about one selected document. Opening
// another document discards everything from the previous one, including
// replies still in flight.
type ChatPane struct {
	backend           *BackendClient
	fallbackQuestions []string
	now               func() time.Time

	mu          sync.Mutex
	generation  uint64
	state       ChatState
	doc         *model.SelectedDocument
	loaded      bool
	messages    []model.ChatMessage
	suggestions []string
	lastErr     string
}

func NewChatPane(backend *BackendClient, fallbackQuestions []string) *ChatPane {
	return &ChatPane{
		backend:           backend,
		fallbackQuestions: fallbackQuestions,
		now:               time.Now,
		state:             ChatIdle,
	}
}

func (p *ChatPane) View() ChatView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *ChatPane) viewLocked() ChatView {
	v := ChatView{
		State:          p.state,
		DocumentLoaded: p.loaded,
		Messages:       append([]model.ChatMessage{}, p.messages...),
		Suggestions:    append([]string{}, p.suggestions...),
		Error:          p.lastErr,
	}
	if p.doc != nil {
		d := *p.doc
		v.Document = &d
	}
	return v
}

// Close resets the pane to idle.
func (p *ChatPane) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *ChatPane) resetLocked() {
	p.generation++
	p.state = ChatIdle
	p.doc = nil
	p.loaded = false
	p.messages = nil
	p.suggestions = nil
	p.lastErr = ""
}

// Open selects doc and loads its context, suggested questions and history
// concurrently. The document id may be a stored file key; it is reduced to
// the bare document name first. Only a failed context load puts the pane in
// the error state, and it cancels the other two reads.
func (p *ChatPane) Open(ctx context.Context, doc model.SelectedDocument) (ChatView, error) {
	rawID := doc.DocumentID
	doc.JobNumber = strings.TrimSpace(doc.JobNumber)
	doc.DocumentID = NormalizeDocumentID(rawID)
	if doc.JobNumber == "" || doc.DocumentID == "" {
		return p.View(), validationError("job number and document id are required")
	}
	if doc.DisplayName == "" {
		doc.DisplayName = DisplayName(rawID, doc.FileKey)
	}

	p.mu.Lock()
	p.resetLocked()
	gen := p.generation
	p.state = ChatLoadingDocument
	p.doc = &doc
	p.mu.Unlock()

	ctx = logger.With(logger.With(ctx, logger.JobNumberKey, doc.JobNumber), logger.DocumentIDKey, doc.DocumentID)

	var (
		suggestions []string
		history     []model.ChatMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := p.backend.LoadDocument(gctx, doc.JobNumber, doc.DocumentID)
		return err
	})
	g.Go(func() error {
		qs, err := p.backend.SuggestQuestions(gctx, doc.JobNumber, doc.DocumentID)
		if err != nil || len(qs) == 0 {
			if err != nil && gctx.Err() == nil {
				logger.Warn(gctx, "suggested questions unavailable, using defaults", "error", err)
			}
			qs = append([]string(nil), p.fallbackQuestions...)
		}
		suggestions = qs
		return nil
	})
	g.Go(func() error {
		msgs, err := p.backend.ChatHistory(gctx, doc.JobNumber, doc.DocumentID)
		if err != nil {
			if gctx.Err() == nil {
				logger.Warn(gctx, "chat history unavailable", "error", err)
			}
			return nil
		}
		history = p.normalizeHistory(msgs)
		return nil
	})
	loadErr := g.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen {
		return p.viewLocked(), unauthorizedOnly(loadErr)
	}
	p.suggestions = suggestions
	p.messages = history
	if loadErr != nil {
		logger.Error(ctx, "document load failed", "error", loadErr)
		p.state = ChatError
		p.lastErr = userMessage(loadErr)
		return p.viewLocked(), loadErr
	}
	p.loaded = true
	p.state = ChatReady
	logger.Info(ctx, "document ready", "history", len(history))
	return p.viewLocked(), nil
}

func (p *ChatPane) normalizeHistory(msgs []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Role != model.RoleUser {
			m.Role = model.RoleAssistant
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Send appends the user's message, posts it with the prior conversation and
// appends the reply. A failed request leaves an inline error message and
// keeps the conversation.
func (p *ChatPane) Send(ctx context.Context, text string) (ChatView, error) {
	text = strings.TrimSpace(text)

	p.mu.Lock()
	if !p.loaded || p.doc == nil || (p.state != ChatReady && p.state != ChatError) {
		v := p.viewLocked()
		p.mu.Unlock()
		return v, ErrDocumentNotLoaded
	}
	if text == "" {
		v := p.viewLocked()
		p.mu.Unlock()
		return v, validationError("message is empty")
	}

	gen := p.generation
	doc := *p.doc
	history := make([]HistoryEntry, 0, len(p.messages))
	for _, m := range p.messages {
		if m.Error {
			continue
		}
		history = append(history, HistoryEntry{Role: m.Role, Content: m.Content})
	}
	p.messages = append(p.messages, model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Content:   text,
		Timestamp: p.now(),
	})
	p.state = ChatAwaitingResponse
	p.lastErr = ""
	p.mu.Unlock()

	ctx = logger.With(logger.With(ctx, logger.JobNumberKey, doc.JobNumber), logger.DocumentIDKey, doc.DocumentID)
	resp, err := p.backend.Chat(ctx, ChatRequest{
		JobNumber:   doc.JobNumber,
		DocumentID:  doc.DocumentID,
		Message:     text,
		ChatHistory: history,
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen {
		logger.Debug(ctx, "discarding reply for a closed document")
		return p.viewLocked(), unauthorizedOnly(err)
	}
	if err != nil {
		logger.Error(ctx, "chat request failed", "error", err)
		p.messages = append(p.messages, model.ChatMessage{
			ID:        uuid.NewString(),
			Role:      model.RoleAssistant,
			Content:   "Sorry, something went wrong: " + userMessage(err),
			Timestamp: p.now(),
			Error:     true,
		})
		p.state = ChatError
		p.lastErr = userMessage(err)
		return p.viewLocked(), err
	}
	p.messages = append(p.messages, model.ChatMessage{
		ID:         uuid.NewString(),
		Role:       model.RoleAssistant,
		Content:    resp.Response,
		Timestamp:  p.now(),
		Confidence: resp.Confidence,
		Sources:    resp.Sources,
	})
	p.state = ChatReady
	return p.viewLocked(), nil
}

// unauthorizedOnly keeps a 401 from a discarded request, which closed the
// pane itself, and drops any other outcome.
func unauthorizedOnly(err error) error {
	if errors.Is(err, ErrUnauthorized) {
		return err
	}
	return nil
}

// userMessage turns an error into text fit for the conversation.
func userMessage(err error) string {
	var se *StatusError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "your session has expired, please sign in again"
	case errors.Is(err, ErrSubscriptionRequired):
		return "a premium subscription is required"
	case errors.As(err, &se):
		return "the server could not handle the request"
	default:
		return "the server could not be reached"
	}
}
