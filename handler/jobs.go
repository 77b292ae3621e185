package handler

import (
	"net/http"

	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

type JobsHandler struct {
	browser *service.JobBrowser
	chat    *service.ChatPane
}

func NewJobsHandler(browser *service.JobBrowser, chat *service.ChatPane) *JobsHandler {
	return &JobsHandler{browser: browser, chat: chat}
}

type jobResponse struct {
	model.Job
	ShortNumber string `json:"short_number"`
}

func (h *JobsHandler) List(c *gin.Context) {
	jobs, err := h.browser.Jobs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, jobResponse{Job: j, ShortNumber: j.ShortNumber()})
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":     resp,
		"expanded": h.browser.Expanded(),
	})
}

func (h *JobsHandler) Toggle(c *gin.Context) {
	view, err := h.browser.Toggle(c.Request.Context(), c.Param("job"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Select opens the chat pane on one of the job's documents.
func (h *JobsHandler) Select(c *gin.Context) {
	var doc model.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document"})
		return
	}
	selected, err := h.browser.SelectDocument(c.Param("job"), doc)
	if err != nil {
		respondError(c, err)
		return
	}
	openChat(c, h.chat, selected)
}
