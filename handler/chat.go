package handler

import (
	"net/http"

	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chat *service.ChatPane
}

func NewChatHandler(chat *service.ChatPane) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type SendRequest struct {
	Message string `json:"message"`
}

func (h *ChatHandler) Open(c *gin.Context) {
	var doc model.SelectedDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document"})
		return
	}
	openChat(c, h.chat, doc)
}

func (h *ChatHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.chat.View())
}

func (h *ChatHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
		return
	}
	view, err := h.chat.Send(c.Request.Context(), req.Message)
	respondChat(c, view, err)
}

func (h *ChatHandler) Close(c *gin.Context) {
	h.chat.Close()
	c.JSON(http.StatusOK, h.chat.View())
}

func openChat(c *gin.Context, chat *service.ChatPane, doc model.SelectedDocument) {
	view, err := chat.Open(c.Request.Context(), doc)
	respondChat(c, view, err)
}

// respondChat always includes the pane so the client can render inline
// errors next to the conversation.
func respondChat(c *gin.Context, view service.ChatView, err error) {
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}
	status, body := errorResponse(err)
	body["chat"] = view
	_ = c.Error(err)
	c.JSON(status, body)
}
