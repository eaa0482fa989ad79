package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benharcourt/catbox-quiz/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		RateLimitHTTPGlobal: "1000-M",
		RateLimitHTTPPublic: "5-M",
		RateLimitSocketUser: "3-M",
		RateLimitSocketCmd:  "2-M",
	}
}

func TestNewFallsBackToMemoryStoreWithoutRedis(t *testing.T) {
	l, err := New(testConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestNewRejectsMalformedRate(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitHTTPPublic = "not-a-rate"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestHTTPMiddlewareRejectsAfterLimitReached(t *testing.T) {
	l, err := New(testConfig(), nil)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.HTTPMiddleware())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

// TestCheckSocketCommandIsIndependentPerCommand exercises the redis-backed
// store path via miniredis, grounded on the teacher's newTestLimiter: a
// single user's two different commands get independent buckets, so a burst
// on one command can't starve the other.
func TestCheckSocketCommandIsIndependentPerCommand(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	l, err := New(testConfig(), rc)
	require.NoError(t, err)

	ctx := t.Context()
	for i := 0; i < 2; i++ {
		assert.True(t, l.CheckSocketCommand(ctx, "user-1", "vote"))
	}
	assert.False(t, l.CheckSocketCommand(ctx, "user-1", "vote"))

	// a different command for the same user still has budget
	assert.True(t, l.CheckSocketCommand(ctx, "user-1", "reveal"))
}

func TestCheckSocketUserLimitIsSharedAcrossCommands(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	l, err := New(testConfig(), rc)
	require.NoError(t, err)

	ctx := t.Context()
	for i := 0; i < 3; i++ {
		assert.True(t, l.CheckSocketUser(ctx, "user-2"))
	}
	assert.False(t, l.CheckSocketUser(ctx, "user-2"))
}
