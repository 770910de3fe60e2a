package metrics

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义：
// - http_requests_total：按路径与方法统计请求次数（附带状态码标签）
// - http_request_duration_seconds：按路径与方法统计请求耗时分布
// - clients_registered_total：成功注册的客户端数量
// - client_mutations_total：按操作与结果统计的注册/更新/删除次数
// - remote_fetch_total：jwks_uri / request_uri 拉取结果
// - lookup_requests_total：gRPC 查找请求结果
var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP 请求计数（按路径/方法/状态）"},
		[]string{"path", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP 请求耗时（秒）", Buckets: prometheus.DefBuckets},
		[]string{"path", "method"},
	)
	ClientsRegistered = prometheus.NewCounter(prometheus.CounterOpts{Name: "clients_registered_total", Help: "注册成功的客户端总数"})
	ClientMutations   = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "client_mutations_total", Help: "客户端变更计数（按操作/结果）"},
		[]string{"op", "outcome"},
	)
	RemoteFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "remote_fetch_total", Help: "远程文档拉取计数（按参数/结果）"},
		[]string{"param", "outcome"},
	)
	LookupRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lookup_requests_total", Help: "gRPC 客户端查找计数（按结果）"},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency, ClientsRegistered, ClientMutations, RemoteFetches, LookupRequests)
}

// Handler 返回记录基础 HTTP 指标的中间件（QPS/耗时）。
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		HTTPLatency.WithLabelValues(path, c.Request.Method).Observe(dur)
		HTTPRequests.WithLabelValues(path, c.Request.Method, fmt.Sprintf("%d", c.Writer.Status())).Inc()
	}
}

// Exposer 返回标准 Prometheus 暴露处理器。
func Exposer() gin.HandlerFunc { return gin.WrapH(promhttp.Handler()) }

// Outcome 将错误折叠为指标标签。
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
