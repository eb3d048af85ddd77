package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// callerCtxKey is the Gin context key used to store the resolved caller identity.
const callerCtxKey = "caller_id"

// IdentityMiddleware resolves the rate-limit identity for a request.
// A valid X-API-Key maps to its configured caller ID; requests without a key
// fall back to the client IP, so anonymous producers are limited per source
// address. A key that is present but unknown is rejected outright.
func IdentityMiddleware(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if apiKey == "" {
			c.Set(callerCtxKey, "ip:"+c.ClientIP())
			c.Next()
			return
		}

		callerID, ok := keys[apiKey]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(callerCtxKey, callerID)
		c.Next()
	}
}

// CallerID returns the resolved caller identity from the request context.
func CallerID(c *gin.Context) string {
	v, _ := c.Get(callerCtxKey)
	s, _ := v.(string)
	return s
}
