// Package middleware holds the gin middleware shared by all route groups.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/projecthub-golang/internal/auth"
)

// UserEmailKey is the gin context key holding the authenticated e-mail.
const UserEmailKey = "userEmail"

// AuthMiddleware rejects requests without a valid bearer token. The token may
// also come from the "token" query parameter, since EventSource cannot set
// request headers.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Find the token ---
		var tokenString string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// 2. --- Validate ---
		email, err := tokens.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// 3. --- Success ---
		c.Set(UserEmailKey, email)
		c.Next()
	}
}

// UserEmail returns the e-mail set by AuthMiddleware.
func UserEmail(c *gin.Context) string {
	return c.GetString(UserEmailKey)
}
