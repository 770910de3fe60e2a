package middlewares

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// incrWindowScript 原子地自增计数，并在键没有过期时间时补上窗口 TTL，
// 计数键因此不会永久存在。
var incrWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RateLimit 返回一个使用 Redis INCR+TTL 的固定窗口限流中间件。
// keyFn 用于构建请求者唯一键（如按 IP）。rdb 为空或 limit<=0 时不限流；
// Redis 故障时放行。
func RateLimit(rdb *redis.Client, prefix string, limit int, window time.Duration, keyFn func(*gin.Context) string) gin.HandlerFunc {
	if window <= 0 {
		window = time.Minute
	}
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}
		rkey := fmt.Sprintf("rl:%s:%s", prefix, key)
		cnt, err := incrWindowScript.Run(c, rdb, []string{rkey}, window.Milliseconds()).Int64()
		if err != nil {
			log.WithError(err).WithField("key", rkey).Warn("rate limit check failed")
			c.Next()
			return
		}
		if cnt > int64(limit) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.AbortWithStatusJSON(429, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many registration requests.",
			})
			return
		}
		c.Next()
	}
}

// ClientIPKey 以客户端 IP 作为限流键。
func ClientIPKey(c *gin.Context) string { return c.ClientIP() }
