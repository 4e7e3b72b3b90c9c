package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext returns the request context, falling back to a background
// context for handlers invoked without a request in tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}
