// Package ratelimit enforces request and command rate limits using
// ulule/limiter, backed by Redis when configured or an in-memory store
// otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/config"
	"github.com/benharcourt/catbox-quiz/internal/logging"
	"github.com/benharcourt/catbox-quiz/internal/metrics"
)

// Limiter holds every configured rate-limit bucket. HTTPMiddleware applies
// the public HTTP bucket, keyed by client IP; the global HTTP bucket is built
// but no middleware applies it. Socket buckets are keyed by session id
// (per-user) or session id plus command name (per-command), per spec.md's
// "per-socket-command /
// per-HTTP-route buckets" requirement.
type Limiter struct {
	httpGlobal *limiter.Limiter
	httpPublic *limiter.Limiter
	socketUser *limiter.Limiter
	socketCmd  *limiter.Limiter
}

// New builds a Limiter. redisClient may be nil, in which case every bucket
// falls back to an in-memory store (fine for a single process, not for a
// multi-replica deployment -- out of scope here).
func New(cfg *config.Config, redisClient *redis.Client) (*Limiter, error) {
	httpGlobalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitHTTPGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP global rate: %w", err)
	}
	httpPublicRate, err := limiter.NewRateFromFormatted(cfg.RateLimitHTTPPublic)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP public rate: %w", err)
	}
	socketUserRate, err := limiter.NewRateFromFormatted(cfg.RateLimitSocketUser)
	if err != nil {
		return nil, fmt.Errorf("invalid socket user rate: %w", err)
	}
	socketCmdRate, err := limiter.NewRateFromFormatted(cfg.RateLimitSocketCmd)
	if err != nil {
		return nil, fmt.Errorf("invalid socket command rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "catbox-quiz:limiter:"})
		if err != nil {
			return nil, fmt.Errorf("create redis limiter store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Info(context.Background(), "rate limiter using in-memory store")
	}

	return &Limiter{
		httpGlobal: limiter.New(store, httpGlobalRate),
		httpPublic: limiter.New(store, httpPublicRate),
		socketUser: limiter.New(store, socketUserRate),
		socketCmd:  limiter.New(store, socketCmdRate),
	}, nil
}

// HTTPMiddleware rate-limits by client IP for unauthenticated routes.
func (l *Limiter) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		result, err := l.httpPublic.Get(ctx, c.ClientIP())
		if err != nil {
			logging.Error(ctx, "rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		if result.Reached {
			metrics.RateLimitExceeded.WithLabelValues("http_public").Inc()
			c.Header("Retry-After", strconv.FormatInt(result.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// CheckSocketUser enforces the per-user command rate, independent of which
// command is being sent.
func (l *Limiter) CheckSocketUser(ctx context.Context, sessionID string) bool {
	return l.check(ctx, l.socketUser, sessionID, "socket_user")
}

// CheckSocketCommand enforces a per-(session, command) rate, so a single
// high-frequency command (e.g. a presence ping) can't starve a user's
// budget for every other command.
func (l *Limiter) CheckSocketCommand(ctx context.Context, sessionID, cmd string) bool {
	return l.check(ctx, l.socketCmd, sessionID+":"+cmd, "socket_cmd")
}

func (l *Limiter) check(ctx context.Context, lim *limiter.Limiter, key, bucket string) bool {
	result, err := lim.Get(ctx, key)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed", zap.Error(err))
		return true // fail open: availability over strict enforcement
	}
	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues(bucket).Inc()
		return false
	}
	return true
}
