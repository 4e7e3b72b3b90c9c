package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/monitoring"
)

// Metrics records request latency for each HTTP request. Routed requests are
// labelled with the route pattern so path parameters do not explode the
// metric cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		monitoring.ObserveAPILatency(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
