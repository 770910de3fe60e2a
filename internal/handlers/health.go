package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/imulab-x/client-service/internal/metrics"
)

// HealthCheck 是一个具名的依赖检查。
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// @Summary      健康检查
// @Description  汇总各依赖状态；全部 UP 时 200，否则 503
// @Tags         ops
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Failure      503 {object} map[string]interface{}
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "UP"
	checks := make([]gin.H, 0, len(h.checks))
	for _, hc := range h.checks {
		item := gin.H{"id": hc.Name, "status": "UP"}
		if err := hc.Check(ctx); err != nil {
			// 失败原因只进日志，避免暴露内部地址
			log.WithError(err).WithField("check", hc.Name).Warn("health check failed")
			item["status"] = "DOWN"
			status = "DOWN"
		}
		checks = append(checks, item)
	}
	code := http.StatusOK
	if status != "UP" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "outcome": status, "checks": checks})
}

// @Summary      Prometheus 指标
// @Tags         ops
// @Produce      plain
// @Success      200 {string} string
// @Router       /metrics [get]
func (h *Handler) metrics(c *gin.Context) { metrics.Exposer()(c) }
