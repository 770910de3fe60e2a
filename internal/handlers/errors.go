package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/imulab-x/client-service/internal/middlewares"
	"github.com/imulab-x/client-service/internal/oauth"
)

// writeError 按 OAuth 错误模型输出状态码、附加头与 {error, error_description}。
// 非 OAuth 错误一律视为 server_error。
func writeError(c *gin.Context, err error) {
	oe := oauth.From(err)
	for k, v := range oe.Headers {
		c.Header(k, v)
	}
	entry := log.WithFields(log.Fields{
		"request_id": middlewares.RequestIDFrom(c),
		"error":      oe.Code,
		"kind":       oe.Kind.String(),
	})
	if oe.Kind == oauth.KindServerError {
		entry.WithError(errors.Unwrap(oe)).Error(oe.Description)
	} else {
		entry.Debug(oe.Description)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(oe.Status, oe.Data())
}

func badJSON(c *gin.Context, err error) {
	writeError(c, oauth.Unmet("Request body is not valid client metadata: "+err.Error()))
}
