// Package auth validates the OAuth identity a host brings into the CMS and
// the play/review surfaces: a code-flow login against an external identity
// provider, whose ID token is a JWT verified against the provider's JWKS.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sony/gobreaker"

	"github.com/benharcourt/catbox-quiz/internal/metrics"
)

// Claims is the subset of an identity provider's ID token this server reads.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validator verifies ID tokens against a provider's JWKS, refreshed on a
// background timer.
type Validator struct {
	keyFunc  jwt.Keyfunc
	issuer   string
	audience string
}

// NewValidator builds a Validator for the given OIDC issuer and audience
// (the OAuth client id). It fetches the JWKS once up front to fail fast on
// a bad issuer URL.
func NewValidator(ctx context.Context, issuer, audience string) (*Validator, error) {
	issuerURL, err := url.Parse(strings.TrimSuffix(issuer, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse issuer url: %w", err)
	}
	jwksURL := issuerURL.JoinPath(".well-known/jwks.json").String()

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithRefreshInterval(1*time.Hour)); err != nil {
		return nil, fmt.Errorf("register jwks cache: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("fetch initial jwks: %w", err)
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}
		keys, err := cache.Get(ctx, jwksURL)
		if err != nil {
			return nil, fmt.Errorf("get jwks: %w", err)
		}
		key, found := keys.LookupKeyID(kid)
		if !found {
			return nil, fmt.Errorf("key %s not found", kid)
		}
		var pubKey interface{}
		if err := key.Raw(&pubKey); err != nil {
			return nil, fmt.Errorf("decode public key: %w", err)
		}
		return pubKey, nil
	}

	return &Validator{keyFunc: keyFunc, issuer: issuerURL.String(), audience: audience}, nil
}

// ValidateIDToken parses and verifies an ID token, returning its claims.
func (v *Validator) ValidateIDToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyFunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("id token is invalid")
	}
	return claims, nil
}

// Client exchanges an OAuth authorization code for an ID token, wrapping
// the outbound HTTP call in a circuit breaker so a flaky identity provider
// degrades login rather than hanging every request behind it.
type Client struct {
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	tokenURL     string
	clientID     string
	clientSecret string
	redirectURL  string
	validator    *Validator
}

// NewClient builds an identity-provider client.
func NewClient(tokenURL, clientID, clientSecret, redirectURL string, validator *Validator) *Client {
	settings := gobreaker.Settings{
		Name:        "oauth-idp",
		Timeout:     30 * time.Second,
		MaxRequests: 1,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		breaker:      gobreaker.NewCircuitBreaker(settings),
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		validator:    validator,
	}
}

type tokenResponse struct {
	IDToken string `json:"id_token"`
}

// ExchangeCode trades an authorization code for an ID token and validates
// it, returning the resulting claims.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Claims, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		form := url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"client_id":     {c.clientID},
			"client_secret": {c.clientSecret},
			"redirect_uri":  {c.redirectURL},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
		}

		var tr tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return nil, fmt.Errorf("decode token response: %w", err)
		}
		return tr.IDToken, nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return c.validator.ValidateIDToken(result.(string))
}
