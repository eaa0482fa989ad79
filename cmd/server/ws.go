package main

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// handleWebsocket upgrades the connection and hands it to the endpoint
// registered under the requested short code, grounded on the teacher's
// Hub.ServeWs: build an origin-checked upgrader, upgrade, then block in the
// connection's read/write pumps.
func (s *server) handleWebsocket(c *gin.Context) {
	code := c.Param("code")
	ep, ok := s.reg.Endpoint(code)
	if !ok {
		writeError(c, http.StatusNotFound, "no such room")
		return
	}

	session := s.cookieSession(c)

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("code", code))
		return
	}

	ep.Accept(c.Request.Context(), conn, session)
}

// checkOrigin allows same-origin and configured cross-origin requests, and
// non-browser clients that send no Origin header at all, grounded on the
// teacher's origin-allowlist check in Hub.ServeWs.
func (s *server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" {
			return true
		}
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}
