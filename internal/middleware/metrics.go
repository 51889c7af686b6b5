package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avocetlabs/fledge-backend/internal/observability"
)

// ObserveRequests records per-route counters and latency. Registered
// unconditionally; a nil Metrics makes it a pass-through.
func ObserveRequests(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.ApiInflightInc()
		c.Next()
		m.ApiInflightDec()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
