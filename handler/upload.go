package handler

import (
	"net/http"
	"strconv"

	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	selection *service.Selection
	uploader  *service.Uploader
	manifests *service.ManifestStore
	sources   map[string]service.FileSource
}

func NewUploadHandler(selection *service.Selection, uploader *service.Uploader, manifests *service.ManifestStore, sources ...service.FileSource) *UploadHandler {
	h := &UploadHandler{
		selection: selection,
		uploader:  uploader,
		manifests: manifests,
		sources:   make(map[string]service.FileSource, len(sources)),
	}
	for _, s := range sources {
		h.sources[s.Name()] = s
	}
	return h
}

type PickRequest struct {
	Source    string `json:"source"`
	Directory string `json:"directory" binding:"required"`
}

// Pick replaces the selection with the contents of a directory.
func (h *UploadHandler) Pick(c *gin.Context) {
	var req PickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a directory is required"})
		return
	}
	if req.Source == "" {
		req.Source = "local"
	}
	source, ok := h.sources[req.Source]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source " + strconv.Quote(req.Source)})
		return
	}

	files, err := h.selection.Pick(c.Request.Context(), source, req.Directory)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"directory_name": h.selection.DirectoryName(),
		"files":          files,
	})
}

func (h *UploadHandler) Selection(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"directory_name": h.selection.DirectoryName(),
		"files":          h.selection.Files(),
	})
}

func (h *UploadHandler) Toggle(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file index"})
		return
	}
	file, err := h.selection.Toggle(index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (h *UploadHandler) ToggleAll(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"files": h.selection.ToggleAll()})
}

func (h *UploadHandler) StartOver(c *gin.Context) {
	h.selection.StartOver()
	c.Status(http.StatusNoContent)
}

// Upload sends the selected files. Partial failures still answer 200 with
// the per-file results in the manifest.
func (h *UploadHandler) Upload(c *gin.Context) {
	manifest, err := h.uploader.Upload(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, manifest)
}

func (h *UploadHandler) Analyze(c *gin.Context) {
	result, err := h.uploader.Analyze(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *UploadHandler) ListManifests(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"manifests": h.manifests.List()})
}

func (h *UploadHandler) GetManifest(c *gin.Context) {
	manifest := h.manifests.Get(c.Param("id"))
	if manifest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}
	c.JSON(http.StatusOK, manifest)
}
