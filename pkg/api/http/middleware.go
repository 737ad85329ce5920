package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// multipartOverhead is the room left for multipart headers and boundaries
// on top of the maximum recording size
const multipartOverhead = 1 << 20

// corsMiddleware allows browser requests from the configured origins.
// An origin of "*" allows any origin.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// bodyLimit caps the request body so oversized uploads fail while the
// multipart form is parsed
func bodyLimit(maxUploadSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxUploadSize > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize+multipartOverhead)
		}
		c.Next()
	}
}

// uploadLimiter allows each client IP a fixed number of uploads per window
type uploadLimiter struct {
	limit   rate.Limit
	burst   int
	window  time.Duration
	logger  *zap.Logger
	message string

	mu      sync.Mutex
	clients map[string]*clientLimiter
	swept   time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newUploadLimiter creates a new per-IP upload limiter. It returns nil when
// maxUploads is not positive.
func newUploadLimiter(window time.Duration, maxUploads int, logger *zap.Logger) *uploadLimiter {
	if maxUploads <= 0 || window <= 0 {
		return nil
	}
	return &uploadLimiter{
		limit:   rate.Every(window / time.Duration(maxUploads)),
		burst:   maxUploads,
		window:  window,
		logger:  logger,
		message: "too many uploads, please try again later",
		clients: make(map[string]*clientLimiter),
		swept:   time.Now(),
	}
}

// allow reports whether ip may upload now
func (l *uploadLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > l.window {
		for key, cl := range l.clients {
			if now.Sub(cl.lastSeen) > l.window {
				delete(l.clients, key)
			}
		}
		l.swept = now
	}

	cl, ok := l.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// middleware rejects uploads over the limit with 429
func (l *uploadLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP(), time.Now()) {
			l.logger.Warn("upload rate limit exceeded", zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": l.message})
			return
		}
		c.Next()
	}
}
