package middlewares

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/imulab-x/client-service/internal/config"
)

// SecurityHeaders 设置通用的安全相关响应头（受配置控制）。
func SecurityHeaders(cfg config.Config) gin.HandlerFunc {
	hsts := ""
	if cfg.Security.HSTS.Enabled {
		hsts = fmt.Sprintf("max-age=%d", cfg.Security.HSTS.MaxAgeSeconds)
		if cfg.Security.HSTS.IncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		// 仅在 HTTPS（直连或反代）下下发 HSTS
		if hsts != "" && (c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https") {
			c.Header("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}
