// Package storage 提供客户端记录的持久化与缓存适配：数据库连接与迁移、
// GORM 文档模型、进程内实现以及 Redis 读穿缓存。
// 其它层应通过 services 间接访问存储，以便集中处理校验与指标。
package storage
