package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders hardens API responses against MIME sniffing and framing.
// The daemon serves plain HTTP on loopback, so transport-security headers
// that assume TLS are deliberately absent.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
