package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	applog "rkas/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID carries the request id back to the client.
	HeaderRequestID = "X-Request-ID"
)

// Middleware handles request tracing and logging
type Middleware struct {
	logger  *applog.Logger
	http    *applog.StructuredLogger
	metrics *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	FailedRequests      int64
	AverageResponseTime int64 // in microseconds, last request
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(logger *applog.Logger) *Middleware {
	logger = logger.WithComponent(applog.ComponentTrace)
	return &Middleware{
		logger:  logger,
		http:    applog.NewStructuredLogger(logger),
		metrics: &Metrics{},
	}
}

// Handler tags each request with an id, stores a request-scoped logger in the
// request context and logs the request on completion.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		r := c.Request

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = GenerateRequestID()
		}
		c.Header(HeaderRequestID, requestID)

		fields := applog.NewFields().
			WithRequestID(requestID).
			WithClientIP(c.ClientIP()).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent())

		reqLogger := m.logger.With("request_id", requestID)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = applog.WithContext(ctx, reqLogger)
		c.Request = r.WithContext(ctx)

		atomic.AddInt64(&m.metrics.TotalRequests, 1)

		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start)
		atomic.StoreInt64(&m.metrics.AverageResponseTime, duration.Microseconds())
		if status >= 500 {
			atomic.AddInt64(&m.metrics.FailedRequests, 1)
		}
		fields[applog.FieldDurationHuman] = duration.String()
		m.http.LogHTTPEnd(ctx, fields, status, duration.Milliseconds())
	}
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:       atomic.LoadInt64(&m.metrics.TotalRequests),
		FailedRequests:      atomic.LoadInt64(&m.metrics.FailedRequests),
		AverageResponseTime: atomic.LoadInt64(&m.metrics.AverageResponseTime),
	}
}
