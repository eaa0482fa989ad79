package main

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handleLogin starts the OAuth2 code-flow: it mints a CSRF state token tied
// to the caller's session and redirects to the identity provider's
// authorization endpoint, preserving the `to` query param so the callback
// can send the browser back where it started.
func (s *server) handleLogin(c *gin.Context) {
	if s.auth == nil {
		writeError(c, http.StatusServiceUnavailable, "oauth login is not configured")
		return
	}

	session := s.cookieSession(c)
	session.OAuthCSRFToken = uuid.NewString()
	session.LoginRedirectTarget = c.Query("to")

	authorizeURL, err := url.Parse(s.cfg.OAuthIssuer + "/oauth/authorize")
	if err != nil {
		writeError(c, http.StatusInternalServerError, "malformed oauth issuer")
		return
	}
	q := authorizeURL.Query()
	q.Set("response_type", "code")
	q.Set("client_id", s.cfg.OAuthClientID)
	q.Set("redirect_uri", s.cfg.PublicBaseURL+"/oauth/callback")
	q.Set("scope", "openid profile email")
	q.Set("state", session.OAuthCSRFToken)
	authorizeURL.RawQuery = q.Encode()

	c.Redirect(http.StatusFound, authorizeURL.String())
}

// handleOAuthCallback exchanges the authorization code for a verified ID
// token and promotes the caller's anonymous session to an authenticated
// one.
func (s *server) handleOAuthCallback(c *gin.Context) {
	if s.auth == nil {
		writeError(c, http.StatusServiceUnavailable, "oauth login is not configured")
		return
	}

	session := s.cookieSession(c)
	state := c.Query("state")
	if state == "" || state != session.OAuthCSRFToken {
		writeError(c, http.StatusBadRequest, "invalid oauth state")
		return
	}
	session.OAuthCSRFToken = ""

	code := c.Query("code")
	if code == "" {
		writeError(c, http.StatusBadRequest, "missing authorization code")
		return
	}

	claims, err := s.auth.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		s.logger.Warn("oauth code exchange failed", zap.Error(err))
		writeError(c, http.StatusUnauthorized, "authentication failed")
		return
	}

	session.UserID = claims.Subject
	session.Username = claims.Name

	redirectTo := session.LoginRedirectTarget
	session.LoginRedirectTarget = ""
	if redirectTo == "" {
		redirectTo = "/"
	}
	c.Redirect(http.StatusFound, redirectTo)
}
