package server

import (
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-Id"

const requestIDKey = "memra.request_id"

// ids hands out monotonic ULIDs. ulid.Monotonic readers are not safe for
// concurrent use.
type ids struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newIDs() *ids {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &ids{entropy: ulid.Monotonic(src, 0)}
}

func (g *ids) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// RequestID tags every request with a ULID, reusing one supplied by the
// client.
func RequestID() gin.HandlerFunc {
	g := newIDs()
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := ulid.ParseStrict(id); err != nil {
			id = g.next()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the id set by RequestID.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger writes one record per request.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("request_id", RequestIDFrom(c)),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
