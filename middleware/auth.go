package middleware

import (
	"net/http"
	"strings"

	"quizroom/services"

	"github.com/gin-gonic/gin"
)

// Auth validates the Bearer token and stores the verified identity in the
// request context under "identity".
func Auth(verifier services.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("identity", identity)
		c.Next()
	}
}
