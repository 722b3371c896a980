package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// credentialMiddleware lets a request through only while a backend credential
// is cached. A bearer header, when sent, replaces the cached credential first.
func (h *Handler) credentialMiddleware(c *gin.Context) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid Authorization header format",
			})
			return
		}
		if err := h.services.Credentials.SetToken(strings.TrimSpace(parts[1])); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}
	}

	if !h.services.Credentials.Authorized() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "not logged in",
		})
		return
	}
	c.Next()
}
