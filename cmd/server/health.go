package main

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// handleHealthz reports liveness/readiness: the database connection must
// respond, and the blob directory must still exist and be a directory.
func (s *server) handleHealthz(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := s.db.Ping(); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if info, err := os.Stat(s.cfg.BlobDir); err != nil {
		checks["blob_dir"] = err.Error()
		healthy = false
	} else if !info.IsDir() {
		checks["blob_dir"] = "not a directory"
		healthy = false
	} else {
		checks["blob_dir"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": map[bool]string{true: "ok", false: "unhealthy"}[healthy], "checks": checks})
}
