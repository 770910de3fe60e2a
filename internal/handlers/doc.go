// Package handlers 暴露客户端注册的 REST 接口（/client）以及 /health、/metrics。
// handlers 只做输入/输出转换，业务逻辑委托给 services.ClientService。
package handlers
