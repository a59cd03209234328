package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// UserIDKey is where Auth stores the authenticated user id in the gin context.
const UserIDKey = "user_id"

// Auth extracts the authenticated user identity supplied by the caller. The
// routing layer in front of this service performs the actual authentication;
// here the id only has to be present and numeric.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header required"})
			c.Abort()
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid X-User-ID header"})
			c.Abort()
			return
		}
		c.Set(UserIDKey, id)
		c.Next()
	}
}

// UserID reads the id stored by Auth.
func UserID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}

type RateLimiter struct {
	clients map[string]time.Time
	mu      sync.Mutex
	limit   time.Duration
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]time.Time),
		limit:   limit,
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.Next()
			return
		}
		r.mu.Lock()
		last, exists := r.clients[userID]
		if exists && time.Since(last) < r.limit {
			r.mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		r.clients[userID] = time.Now()
		r.mu.Unlock()
		c.Next()
	}
}
