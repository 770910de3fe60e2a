package middlewares

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerAuth 要求请求携带与 token 相同的 Bearer 令牌；token 为空时放行。
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := ParseBearer(c.GetHeader("Authorization"))
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(401, gin.H{
				"error":             "invalid_token",
				"error_description": "Initial access token is missing or invalid.",
			})
			return
		}
		c.Next()
	}
}

// ParseBearer 从 Authorization 头中取出 Bearer 令牌。
func ParseBearer(h string) string {
	parts := strings.SplitN(h, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
