// Package ratelimit provides Redis-based rate limiting for API endpoints
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a rate limit is exceeded
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter provides rate limiting functionality using Redis
type Limiter struct {
	redis *redis.Client
}

// NewLimiter creates a new rate limiter
func NewLimiter(redis *redis.Client) *Limiter {
	return &Limiter{redis: redis}
}

// LoginLimits defines the limits applied to credential checks
type LoginLimits struct {
	// Per-account: failed attempts against one username
	AccountLimit  int
	AccountWindow time.Duration

	// Per-IP: fallback limit for spray attempts across accounts
	IPLimit  int
	IPWindow time.Duration
}

// DefaultLoginLimits returns the recommended login limits
func DefaultLoginLimits() LoginLimits {
	return LoginLimits{
		AccountLimit:  5,
		AccountWindow: 15 * time.Minute,
		IPLimit:       50,
		IPWindow:      15 * time.Minute,
	}
}

// CheckLogin reports whether another login attempt is allowed for the
// username and IP. Returns nil if allowed, ErrRateLimited otherwise.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	if l == nil || l.redis == nil {
		// If Redis is unavailable, allow the request (fail-open for availability)
		return nil
	}

	limits := DefaultLoginLimits()

	accountKey := fmt.Sprintf("ratelimit:login:account:%s", username)
	if over, _ := l.isOver(ctx, accountKey, limits.AccountLimit); over {
		log.Printf("[WARN] Account %s exceeded failed login limit", username)
		return ErrRateLimited
	}

	if ip != "" {
		ipKey := fmt.Sprintf("ratelimit:login:ip:%s", ip)
		if over, _ := l.isOver(ctx, ipKey, limits.IPLimit); over {
			log.Printf("[WARN] IP %s exceeded failed login limit", ip)
			return ErrRateLimited
		}
	}

	return nil
}

// RecordFailedLogin counts one failed attempt against the username and IP.
func (l *Limiter) RecordFailedLogin(ctx context.Context, username, ip string) {
	if l == nil || l.redis == nil {
		return
	}

	limits := DefaultLoginLimits()
	l.bump(ctx, fmt.Sprintf("ratelimit:login:account:%s", username), limits.AccountWindow)
	if ip != "" {
		l.bump(ctx, fmt.Sprintf("ratelimit:login:ip:%s", ip), limits.IPWindow)
	}
}

// ResetLogin clears the failure counter after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, username string) {
	if l == nil || l.redis == nil {
		return
	}
	l.redis.Del(ctx, fmt.Sprintf("ratelimit:login:account:%s", username))
}

// bump atomically increments the counter, setting the expiry on first use.
func (l *Limiter) bump(ctx context.Context, key string, window time.Duration) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		// Fail-open on Redis errors to maintain availability
		return
	}
	if count == 1 {
		l.redis.Expire(ctx, key, window)
	}
}

func (l *Limiter) isOver(ctx context.Context, key string, limit int) (bool, error) {
	count, err := l.redis.Get(ctx, key).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count >= limit, nil
}

// GetRemainingAttempts returns how many attempts remain for a username.
func (l *Limiter) GetRemainingAttempts(ctx context.Context, username string) (int, error) {
	limits := DefaultLoginLimits()
	if l == nil || l.redis == nil {
		return limits.AccountLimit, nil
	}

	key := fmt.Sprintf("ratelimit:login:account:%s", username)
	count, err := l.redis.Get(ctx, key).Int()
	if err == redis.Nil {
		return limits.AccountLimit, nil
	}
	if err != nil {
		return limits.AccountLimit, err
	}

	remaining := limits.AccountLimit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
