package discovery

import (
	"context"

	"github.com/imulab-x/client-service/internal/oauth"
)

// Provider 返回当前生效的 Discovery 文档快照，调用方不得修改返回值。
type Provider interface {
	Capabilities(ctx context.Context) (*Document, error)
}

// Static 始终返回固定文档。
type Static struct {
	doc *Document
}

func NewStatic(doc Document) *Static { return &Static{doc: &doc} }

func (s *Static) Capabilities(context.Context) (*Document, error) { return s.doc, nil }

// Sample 返回开发与测试使用的示例能力声明。
// 加密类列表包含 "none"，以便未启用加密的客户端通过校验。
func Sample() Document {
	return Document{
		Issuer:                "http://localhost:8080",
		AuthorizationEndpoint: "http://localhost:8080/oauth/authorize",
		TokenEndpoint:         "http://localhost:8080/oauth/token",
		UserInfoEndpoint:      "http://localhost:8080/userinfo",
		JWKSURI:               "http://localhost:8080/.well-known/jwks.json",
		RegistrationEndpoint:  "http://localhost:8080/client",
		ScopesSupported:       []string{"openid", "offline_access", "profile", "email"},
		ResponseTypesSupported: []string{
			oauth.ResponseTypeCode,
			oauth.ResponseTypeToken,
			oauth.ResponseTypeIDToken,
			"code id_token",
			"code token",
			"id_token token",
			"code id_token token",
		},
		ResponseModesSupported: []string{"query", "fragment", "form_post"},
		GrantTypesSupported: []string{
			oauth.GrantAuthorizationCode,
			oauth.GrantImplicit,
			oauth.GrantRefreshToken,
		},
		SubjectTypesSupported:                     []string{"public", "pairwise"},
		IDTokenSigningAlgValuesSupported:          []string{oauth.AlgRS256, oauth.AlgES256},
		IDTokenEncryptionAlgValuesSupported:       []string{oauth.None, "RSA1_5", "RSA-OAEP", "RSA-OAEP-256", "ECDH-ES"},
		IDTokenEncryptionEncValuesSupported:       []string{oauth.None, "A128CBC-HS256", "A256CBC-HS512", "A128GCM", "A256GCM"},
		UserInfoSigningAlgValuesSupported:         []string{oauth.None, oauth.AlgRS256, oauth.AlgES256},
		UserInfoEncryptionAlgValuesSupported:      []string{oauth.None, "RSA1_5", "RSA-OAEP", "RSA-OAEP-256", "ECDH-ES"},
		UserInfoEncryptionEncValuesSupported:      []string{oauth.None, "A128CBC-HS256", "A256CBC-HS512", "A128GCM", "A256GCM"},
		RequestObjectSigningAlgValuesSupported:    []string{oauth.None, oauth.AlgRS256, oauth.AlgES256},
		RequestObjectEncryptionAlgValuesSupported: []string{oauth.None, "RSA1_5", "RSA-OAEP", "RSA-OAEP-256", "ECDH-ES"},
		RequestObjectEncryptionEncValuesSupported: []string{oauth.None, "A128CBC-HS256", "A256CBC-HS512", "A128GCM", "A256GCM"},
		TokenEndpointAuthMethodsSupported: []string{
			oauth.AuthMethodClientSecretBasic,
			oauth.AuthMethodClientSecretPost,
			oauth.AuthMethodClientSecretJWT,
			oauth.AuthMethodPrivateKeyJWT,
		},
		TokenEndpointAuthSigningAlgValuesSupported: []string{oauth.None, oauth.AlgRS256, oauth.AlgES256},
		RequestParameterSupported:                  true,
		RequestURIParameterSupported:               true,
	}
}
