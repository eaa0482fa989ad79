package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/auth"
	"github.com/benharcourt/catbox-quiz/internal/blob"
	"github.com/benharcourt/catbox-quiz/internal/config"
	"github.com/benharcourt/catbox-quiz/internal/engine"
	"github.com/benharcourt/catbox-quiz/internal/ratelimit"
	"github.com/benharcourt/catbox-quiz/internal/registry"
	"github.com/benharcourt/catbox-quiz/internal/room"
	"github.com/benharcourt/catbox-quiz/internal/store"
)

// server holds every wired dependency the route handlers close over.
type server struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *store.Store
	blobs   *blob.Store
	reg     *registry.Registry
	engines map[string]engine.Engine
	auth    *auth.Client
	limiter *ratelimit.Limiter
}

func (s *server) registerRoutes(router *gin.Engine) {
	router.GET("/ws/:code", s.handleWebsocket)
	router.GET("/blob/:sha256", s.handleBlobFetch)
	router.POST("/blob", s.handleBlobUpload)
	router.GET("/login", s.handleLogin)
	router.GET("/oauth/callback", s.handleOAuthCallback)
	router.GET("/healthz", s.handleHealthz)
}

const sessionCookieName = "catbox_quiz_session"

// cookieSession resolves the caller's session from their cookie, minting a
// fresh anonymous one if absent, and re-sets the cookie so a first-time
// visitor leaves with one.
func (s *server) cookieSession(c *gin.Context) *room.Session {
	cookie, _ := c.Cookie(sessionCookieName)
	sess := s.reg.SessionOrNew(cookie)
	c.SetCookie(sessionCookieName, sess.Cookie, 0, "/", "", false, true)
	return sess
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
