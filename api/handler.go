package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/zap"

	"github.com/avinashw50w/batch-image-compressor-webp/batch"
	"github.com/avinashw50w/batch-image-compressor-webp/config"
	"github.com/avinashw50w/batch-image-compressor-webp/transform"
)

// UploadField is the multipart field name the client puts its files under.
const UploadField = "images"

type Handler struct {
	manager *batch.Manager
	cfg     *config.Config
	log     *zap.Logger
}

func NewHandler(m *batch.Manager, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{manager: m, cfg: cfg, log: log}
}

// handleCompress accepts a multipart batch, persists the uploads to the
// intake area and submits the batch. Responds with the batch id before
// any processing happens.
func (h *Handler) handleCompress(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid multipart body: %v", err)})
		return
	}

	uploads := form.File[UploadField]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	settings := transform.Settings{
		MaxWidth:  formInt(c, "maxWidth"),
		MaxHeight: formInt(c, "maxHeight"),
		Quality:   formInt(c, "quality"),
	}.Normalize()

	files := make([]batch.SourceFile, 0, len(uploads))
	for _, fh := range uploads {
		name := filepath.Base(fh.Filename)
		stored := filepath.Join(h.cfg.UploadDir, fmt.Sprintf("%s_%s", shortuuid.New(), name))
		if err := c.SaveUploadedFile(fh, stored); err != nil {
			h.log.Error("cannot persist upload", zap.String("file", name), zap.Error(err))
			for _, f := range files {
				os.Remove(f.Path)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store uploaded files"})
			return
		}
		files = append(files, batch.SourceFile{Name: name, Path: stored, Size: fh.Size})
	}

	id, err := h.manager.Submit(files, settings, c.PostForm("zipFolderName"))
	if err != nil {
		h.log.Error("submit failed", zap.Error(err))
		for _, f := range files {
			os.Remove(f.Path)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create batch", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"batchId": id})
}

// handleProgress reports the live completion percentage for polling.
func (h *Handler) handleProgress(c *gin.Context) {
	b, found := h.manager.Get(c.Param("batchId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}

	resp := gin.H{
		"progress":       b.Progress(),
		"status":         b.Status,
		"totalFiles":     b.Total,
		"completedFiles": b.Completed,
	}
	if b.Error != "" {
		resp["error"] = b.Error
	}
	c.JSON(http.StatusOK, resp)
}

// handleDownload streams the finished archive and then retires the
// batch, so the second download of the same id is a 404.
func (h *Handler) handleDownload(c *gin.Context) {
	id := c.Param("batchId")
	b, found := h.manager.Get(id)
	if !found || b.Status != batch.StatusComplete {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found or not complete"})
		return
	}
	if _, err := os.Stat(b.OutputPath); err != nil {
		h.log.Warn("archive missing from storage", zap.String("batch", id), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "archive no longer available"})
		return
	}

	c.FileAttachment(b.OutputPath, b.OutputName)
	h.manager.Release(id)
}

// handleCleanup is voluntary early termination: kill the worker if one
// is still running and discard everything the batch owns.
func (h *Handler) handleCleanup(c *gin.Context) {
	err := h.manager.Cancel(c.Param("batchId"))
	if err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// formInt parses an optional integer form field; 0 means absent or
// invalid and lets Settings.Normalize pick the default.
func formInt(c *gin.Context, field string) int {
	v, err := strconv.Atoi(c.PostForm(field))
	if err != nil {
		return 0
	}
	return v
}
