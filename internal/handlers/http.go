package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/imulab-x/client-service/internal/config"
	"github.com/imulab-x/client-service/internal/middlewares"
	"github.com/imulab-x/client-service/internal/services"
)

// Handler 聚合依赖（配置、客户端服务、Redis、健康检查）并注册 HTTP 路由。
type Handler struct {
	cfg       config.Config
	clientSvc *services.ClientService
	rdb       *redis.Client
	checks    []HealthCheck
}

// New 构造 Handler。rdb 可为空，此时注册限流关闭。
func New(cfg config.Config, cs *services.ClientService, rdb *redis.Client, checks ...HealthCheck) *Handler {
	return &Handler{cfg: cfg, clientSvc: cs, rdb: rdb, checks: checks}
}

// RegisterRoutes 在 Gin 路由上挂载客户端管理与运维端点。
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	auth := middlewares.BearerAuth(h.cfg.Registration.InitialAccessToken)
	limit := middlewares.RateLimit(h.rdb, "register", h.cfg.Limits.RegisterPerMinute, h.cfg.Limits.Window, middlewares.ClientIPKey)

	// 客户端注册管理（创建/查询/更新/删除）
	r.POST("/client", limit, auth, h.createClient)
	r.GET("/client/:clientId", h.getClient)
	r.PUT("/client/:clientId", auth, h.updateClient)
	r.DELETE("/client/:clientId", auth, h.deleteClient)

	// 运维端点
	r.GET("/health", h.health)
	r.GET("/metrics", h.metrics)
}
