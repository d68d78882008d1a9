// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with per-key
// buckets and opportunistic garbage collection. It is process-local: for a
// horizontally scaled deployment a distributed limiter would be needed to
// enforce global limits. Here it protects the LLM-backed webhook pipeline
// from a single chat (or caller IP) flooding the service.
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ctxKeyChatID carries the webhook payload's chat id once the handler has
// parsed it; the rate limiter keys on it when present.
const ctxKeyChatID = "chatID"

// SetChatID records the chat identity for downstream middleware and logging.
func SetChatID(c *gin.Context, chatID string) {
	c.Set(ctxKeyChatID, chatID)
}

// keyFunc selects the identity used to key a rate-limit bucket. It must
// return a stable string for the duration of a request.
type keyFunc func(*gin.Context) string

// ChatIDExtractor peeks the JSON body of POST requests for the chat
// identity so the limiter can key on it before the handler binds the
// payload. All accepted chat id spellings are tried; the body is restored
// for downstream binding. Install after the body size limiter and before
// the rate limiter.
func ChatIDExtractor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || c.Request.Body == nil ||
			!strings.Contains(c.ContentType(), "application/json") {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			// MaxBytesReader tripped; nothing downstream can bind this.
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "payload_too_large",
				"message":    "request body too large",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var peek struct {
			Chat struct {
				ID string `json:"id"`
			} `json:"chat"`
			ChatID       string `json:"chatId"`
			ChatMetadata struct {
				ChatID string `json:"chatId"`
			} `json:"chatMetadata"`
		}
		if json.Unmarshal(body, &peek) == nil {
			for _, id := range []string{peek.Chat.ID, peek.ChatID, peek.ChatMetadata.ChatID} {
				if id = strings.TrimSpace(id); id != "" {
					SetChatID(c, id)
					break
				}
			}
		}
		c.Next()
	}
}

// KeyByChatOrIP prefers the parsed chat id and falls back to the client IP.
// Keys are prefixed so the two namespaces cannot collide.
func KeyByChatOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(ctxKeyChatID); ok {
			if s, ok := v.(string); ok && s != "" {
				return "chat:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor holds one bucket and the last time it was used, so idle buckets
// can be evicted.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. Buckets are created on
// demand in a mutex-guarded map; idle entries are evicted after a TTL via
// opportunistic cleanup during lookups. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a limiter with the given tokens-per-second and
// burst size, keyed by keyFn. Burst values <= 0 are coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns the limiter for key, creating it if absent. Cleanup
// runs before the requested visitor is touched, so an idle bucket can be
// evicted even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// Handler returns a Gin middleware enforcing the per-key limit. Rejected
// requests get a 429 with a compact JSON body and a minimal Retry-After.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.keyFn(c)
		lim := rl.getVisitor(key)

		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
