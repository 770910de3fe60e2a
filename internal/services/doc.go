// Package services 实现客户端注册的领域逻辑：默认值填充、加密参数配对与能力声明校验、
// 密钥签发，以及 jwks_uri / request_uri / sector_identifier_uri 的远程拉取。
// handlers 与 rpc 层只依赖 ClientService，不直接操作存储。
package services
