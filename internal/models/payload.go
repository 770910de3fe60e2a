package models

// ClientPayload 是客户端元数据的对外 JSON 表示（REST 与 gRPC 共用），
// 字段名遵循 OIDC 动态注册规范，空值不输出。
type ClientPayload struct {
	ClientID                     string   `json:"client_id,omitempty"`
	ClientName                   string   `json:"client_name,omitempty"`
	ClientType                   string   `json:"client_type,omitempty"`
	RedirectURIs                 []string `json:"redirect_uris,omitempty"`
	ResponseTypes                []string `json:"response_types,omitempty"`
	GrantTypes                   []string `json:"grant_types,omitempty"`
	Scopes                       []string `json:"scopes,omitempty"`
	ApplicationType              string   `json:"application_type,omitempty"`
	Contacts                     []string `json:"contacts,omitempty"`
	LogoURI                      string   `json:"logo_uri,omitempty"`
	ClientURI                    string   `json:"client_uri,omitempty"`
	PolicyURI                    string   `json:"policy_uri,omitempty"`
	TosURI                       string   `json:"tos_uri,omitempty"`
	JWKSURI                      string   `json:"jwks_uri,omitempty"`
	JWKS                         string   `json:"jwks,omitempty"`
	SectorIdentifierURI          string   `json:"sector_identifier_uri,omitempty"`
	SubjectType                  string   `json:"subject_type,omitempty"`
	IDTokenSignedResponseAlg     string   `json:"id_token_signed_response_alg,omitempty"`
	IDTokenEncryptedResponseAlg  string   `json:"id_token_encrypted_response_alg,omitempty"`
	IDTokenEncryptedResponseEnc  string   `json:"id_token_encrypted_response_enc,omitempty"`
	RequestObjectSigningAlg      string   `json:"request_object_signing_alg,omitempty"`
	RequestObjectEncryptionAlg   string   `json:"request_object_encryption_alg,omitempty"`
	RequestObjectEncryptionEnc   string   `json:"request_object_encryption_enc,omitempty"`
	UserinfoSignedResponseAlg    string   `json:"userinfo_signed_response_alg,omitempty"`
	UserinfoEncryptedResponseAlg string   `json:"userinfo_encrypted_response_alg,omitempty"`
	UserinfoEncryptedResponseEnc string   `json:"userinfo_encrypted_response_enc,omitempty"`
	TokenEndpointAuthMethod      string   `json:"token_endpoint_auth_method,omitempty"`
	TokenEndpointAuthSigningAlg  string   `json:"token_endpoint_auth_signing_alg,omitempty"`
	DefaultMaxAge                int64    `json:"default_max_age,omitempty"`
	RequireAuthTime              bool     `json:"require_auth_time,omitempty"`
	DefaultACRValues             []string `json:"default_acr_values,omitempty"`
	InitiateLoginURI             string   `json:"initiate_login_uri,omitempty"`
	RequestURIs                  []string `json:"request_uris,omitempty"`
}

// NewClientPayload 从记录生成对外表示：不含密钥与 request 内容；
// 设置了 jwks_uri 时不输出 jwks。
func NewClientPayload(rec ClientRecord) ClientPayload {
	rec = rec.Clone()
	p := ClientPayload{
		ClientID:                     rec.ID,
		ClientName:                   rec.Name,
		ClientType:                   rec.Type,
		RedirectURIs:                 rec.RedirectURIs,
		ResponseTypes:                rec.ResponseTypes,
		GrantTypes:                   rec.GrantTypes,
		Scopes:                       rec.Scopes,
		ApplicationType:              rec.ApplicationType,
		Contacts:                     rec.Contacts,
		LogoURI:                      rec.LogoURI,
		ClientURI:                    rec.ClientURI,
		PolicyURI:                    rec.PolicyURI,
		TosURI:                       rec.TosURI,
		JWKSURI:                      rec.JWKSURI,
		SectorIdentifierURI:          rec.SectorIdentifierURI,
		SubjectType:                  rec.SubjectType,
		IDTokenSignedResponseAlg:     rec.IDTokenSignedResponseAlg,
		IDTokenEncryptedResponseAlg:  rec.IDTokenEncryptedResponseAlg,
		IDTokenEncryptedResponseEnc:  rec.IDTokenEncryptedResponseEnc,
		RequestObjectSigningAlg:      rec.RequestObjectSigningAlg,
		RequestObjectEncryptionAlg:   rec.RequestObjectEncryptionAlg,
		RequestObjectEncryptionEnc:   rec.RequestObjectEncryptionEnc,
		UserinfoSignedResponseAlg:    rec.UserinfoSignedResponseAlg,
		UserinfoEncryptedResponseAlg: rec.UserinfoEncryptedResponseAlg,
		UserinfoEncryptedResponseEnc: rec.UserinfoEncryptedResponseEnc,
		TokenEndpointAuthMethod:      rec.TokenEndpointAuthMethod,
		TokenEndpointAuthSigningAlg:  rec.TokenEndpointAuthSigningAlg,
		DefaultMaxAge:                rec.DefaultMaxAge,
		RequireAuthTime:              rec.RequireAuthTime,
		DefaultACRValues:             rec.DefaultACRValues,
		InitiateLoginURI:             rec.InitiateLoginURI,
		RequestURIs:                  rec.RequestURIs,
	}
	if rec.JWKSURI == "" {
		p.JWKS = rec.JWKS
	}
	return p
}

// Record 将对外表示转换为候选记录，缺省的类型与算法字段按协议默认值补齐。
// client_id 与时间戳由服务端决定，此处不回填。
func (p ClientPayload) Record() ClientRecord {
	rec := ClientRecord{
		Type:                         p.ClientType,
		ApplicationType:              p.ApplicationType,
		RedirectURIs:                 UniqueStrings(p.RedirectURIs),
		ResponseTypes:                UniqueStrings(p.ResponseTypes),
		GrantTypes:                   UniqueStrings(p.GrantTypes),
		Scopes:                       UniqueStrings(p.Scopes),
		Name:                         p.ClientName,
		LogoURI:                      p.LogoURI,
		ClientURI:                    p.ClientURI,
		PolicyURI:                    p.PolicyURI,
		TosURI:                       p.TosURI,
		Contacts:                     UniqueStrings(p.Contacts),
		JWKSURI:                      p.JWKSURI,
		JWKS:                         p.JWKS,
		SectorIdentifierURI:          p.SectorIdentifierURI,
		SubjectType:                  p.SubjectType,
		IDTokenSignedResponseAlg:     p.IDTokenSignedResponseAlg,
		IDTokenEncryptedResponseAlg:  p.IDTokenEncryptedResponseAlg,
		IDTokenEncryptedResponseEnc:  p.IDTokenEncryptedResponseEnc,
		RequestObjectSigningAlg:      p.RequestObjectSigningAlg,
		RequestObjectEncryptionAlg:   p.RequestObjectEncryptionAlg,
		RequestObjectEncryptionEnc:   p.RequestObjectEncryptionEnc,
		UserinfoSignedResponseAlg:    p.UserinfoSignedResponseAlg,
		UserinfoEncryptedResponseAlg: p.UserinfoEncryptedResponseAlg,
		UserinfoEncryptedResponseEnc: p.UserinfoEncryptedResponseEnc,
		TokenEndpointAuthMethod:      p.TokenEndpointAuthMethod,
		TokenEndpointAuthSigningAlg:  p.TokenEndpointAuthSigningAlg,
		DefaultMaxAge:                p.DefaultMaxAge,
		RequireAuthTime:              p.RequireAuthTime,
		DefaultACRValues:             cloneStrings(p.DefaultACRValues),
		InitiateLoginURI:             p.InitiateLoginURI,
		RequestURIs:                  cloneStrings(p.RequestURIs),
	}
	FillProtocolDefaults(&rec)
	return rec
}
