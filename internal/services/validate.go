package services

import (
	"github.com/imulab-x/client-service/internal/discovery"
	"github.com/imulab-x/client-service/internal/models"
	"github.com/imulab-x/client-service/internal/oauth"
)

// ErrEncryptionParity 表示加密算法与内容编码只提供了其中一个。
var ErrEncryptionParity = oauth.Unmet("Encryption algorithm and encoding must be both provided or both none.")

// ErrNegativeMaxAge 表示 default_max_age 为负数。
var ErrNegativeMaxAge = oauth.Unmet("Value for default_max_age must not be negative.")

// ValidateMaxAge 拒绝负的 default_max_age，0 表示不限制。
func ValidateMaxAge(rec models.ClientRecord) error {
	if rec.DefaultMaxAge < 0 {
		return ErrNegativeMaxAge
	}
	return nil
}

// ensureParity 要求 alg 与 enc 同为 none 或同不为 none。
func ensureParity(alg, enc string) error {
	if (alg == oauth.None) != (enc == oauth.None) {
		return ErrEncryptionParity
	}
	return nil
}

// ValidateEncryptionParity 依次检查 id_token、request_object、userinfo 三组加密参数。
func ValidateEncryptionParity(rec models.ClientRecord) error {
	pairs := [][2]string{
		{rec.IDTokenEncryptedResponseAlg, rec.IDTokenEncryptedResponseEnc},
		{rec.RequestObjectEncryptionAlg, rec.RequestObjectEncryptionEnc},
		{rec.UserinfoEncryptedResponseAlg, rec.UserinfoEncryptedResponseEnc},
	}
	for _, p := range pairs {
		if err := ensureParity(p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

type capabilityCheck struct {
	param     string
	values    []string
	supported []string
}

// ValidateCapabilities 按固定顺序检查各参数取值是否在 Discovery 声明之内，
// 返回第一个不满足的参数。scopes 与 request_uris 不做检查。
func ValidateCapabilities(rec models.ClientRecord, doc *discovery.Document) error {
	one := func(v string) []string { return []string{v} }
	checks := []capabilityCheck{
		{"response_type", rec.ResponseTypes, doc.ResponseTypesSupported},
		{"grant_type", rec.GrantTypes, doc.GrantTypesSupported},
		{"id_token_signed_response_alg", one(rec.IDTokenSignedResponseAlg), doc.IDTokenSigningAlgValuesSupported},
		{"id_token_encrypted_response_alg", one(rec.IDTokenEncryptedResponseAlg), doc.IDTokenEncryptionAlgValuesSupported},
		{"id_token_encrypted_response_enc", one(rec.IDTokenEncryptedResponseEnc), doc.IDTokenEncryptionEncValuesSupported},
		{"request_object_signing_alg", one(rec.RequestObjectSigningAlg), doc.RequestObjectSigningAlgValuesSupported},
		{"request_object_encryption_alg", one(rec.RequestObjectEncryptionAlg), doc.RequestObjectEncryptionAlgValuesSupported},
		{"request_object_encryption_enc", one(rec.RequestObjectEncryptionEnc), doc.RequestObjectEncryptionEncValuesSupported},
		{"userinfo_signed_response_alg", one(rec.UserinfoSignedResponseAlg), doc.UserInfoSigningAlgValuesSupported},
		{"userinfo_encrypted_response_alg", one(rec.UserinfoEncryptedResponseAlg), doc.UserInfoEncryptionAlgValuesSupported},
		{"userinfo_encrypted_response_enc", one(rec.UserinfoEncryptedResponseEnc), doc.UserInfoEncryptionEncValuesSupported},
		{"token_endpoint_auth_method", one(rec.TokenEndpointAuthMethod), doc.TokenEndpointAuthMethodsSupported},
		{"token_endpoint_auth_signing_alg", one(rec.TokenEndpointAuthSigningAlg), doc.TokenEndpointAuthSigningAlgValuesSupported},
	}
	for _, c := range checks {
		if !models.ContainsAll(c.supported, c.values) {
			return oauth.Unsupported(c.param)
		}
	}
	return nil
}
