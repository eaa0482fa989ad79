package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/blob"
)

// maxBlobBytes caps a single upload; clue images are small by nature and an
// unbounded read would let one request exhaust memory.
const maxBlobBytes = 10 << 20

// handleBlobFetch serves an immutable, content-addressed blob. The id is
// its own integrity check, so the response is cacheable forever.
func (s *server) handleBlobFetch(c *gin.Context) {
	meta, path, err := s.blobs.Fetch(c.Param("sha256"))
	if errors.Is(err, blob.ErrNotFound) {
		writeError(c, http.StatusNotFound, "no such blob")
		return
	}
	if err != nil {
		s.logger.Error("blob fetch failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "fetch failed")
		return
	}

	c.Header("ETag", meta.BlobID)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.File(path)
}

// handleBlobUpload decodes and stores an uploaded image, deduping by
// content hash.
func (s *server) handleBlobUpload(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBlobBytes+1))
	if err != nil {
		writeError(c, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(data) > maxBlobBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "blob too large")
		return
	}

	b, created, err := s.blobs.Upload(c.Request.Context(), data)
	if errors.Is(err, blob.ErrNotAcceptable) {
		writeError(c, http.StatusNotAcceptable, "not a recognisable image")
		return
	}
	if err != nil {
		s.logger.Error("blob upload failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "upload failed")
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"blob_id": b.BlobID,
		"mime":    b.Mime,
		"width":   b.Width,
		"height":  b.Height,
	})
}
