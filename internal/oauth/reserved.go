// Package oauth 汇总 OAuth 2.0 / OIDC 注册相关的保留取值与错误模型。
package oauth

// 客户端类型与应用类型。
const (
	ClientTypeConfidential = "confidential"
	ClientTypePublic       = "public"

	ApplicationTypeWeb    = "web"
	ApplicationTypeNative = "native"
)

// 授权类型与响应类型（仅列出默认值与常用值）。
const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "implicit"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"

	ResponseTypeCode    = "code"
	ResponseTypeToken   = "token"
	ResponseTypeIDToken = "id_token"
)

// 令牌端点认证方式。
const (
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodClientSecretJWT   = "client_secret_jwt"
	AuthMethodPrivateKeyJWT     = "private_key_jwt"
	AuthMethodNone              = "none"
)

// None 表示签名/加密算法或内容编码未启用。
const None = "none"

// 默认算法取值。
const (
	AlgRS256 = "RS256"
	AlgES256 = "ES256"
	AlgHS256 = "HS256"
)

// RequiresSecret 判断认证方式是否需要服务端签发 client_secret。
func RequiresSecret(method string) bool {
	switch method {
	case AuthMethodClientSecretBasic, AuthMethodClientSecretPost, AuthMethodClientSecretJWT:
		return true
	}
	return false
}
