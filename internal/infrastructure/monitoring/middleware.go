package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for request metrics. The route
// template is used as the path label to keep cardinality bounded.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures a backend operation.
type Timer struct {
	start     time.Time
	metrics   *Metrics
	operation string
}

// NewTimer starts a timer for operation.
func NewTimer(metrics *Metrics, operation string) *Timer {
	return &Timer{
		start:     time.Now(),
		metrics:   metrics,
		operation: operation,
	}
}

// Stop records the elapsed time with status.
func (t *Timer) Stop(status string) {
	t.metrics.RecordBackendCall(t.operation, status, time.Since(t.start))
}
