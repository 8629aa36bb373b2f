package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// LoopbackClient is the shared key for requests whose origin cannot be determined.
const LoopbackClient = "127.0.0.1"

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then the
// peer address. Unidentifiable clients share the loopback key.
func ClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	if c.Request != nil && c.Request.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil && host != "" {
			return host
		}
		return c.Request.RemoteAddr
	}
	return LoopbackClient
}
