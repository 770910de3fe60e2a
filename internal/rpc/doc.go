// Package rpc 提供客户端查找的 gRPC 服务（clientregistry.v1.ClientLookup）。
// 请求与响应使用 protobuf 标准包装类型，无需代码生成；
// 查找失败以 {success:false, failure:{...}} 的形式在响应体内返回。
package rpc
