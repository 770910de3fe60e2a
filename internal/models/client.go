// Package models 定义客户端注册记录（ClientRecord）及其构建器。
// 记录以值语义传递：修改前先 Clone，最终由 Builder 产出落库前的定稿记录。
package models

import (
	"time"
)

// ClientRecord 表示一个已注册 OAuth/OIDC 客户端的完整元数据。
type ClientRecord struct {
	ID     string
	Secret []byte // 单向编码后的密钥；认证方式无需密钥时为空

	CreationTime   time.Time
	LastUpdateTime time.Time

	Type            string // confidential | public
	ApplicationType string // web | native

	RedirectURIs  []string // 集合语义
	ResponseTypes []string
	GrantTypes    []string
	Scopes        []string

	Name      string
	LogoURI   string
	ClientURI string
	PolicyURI string
	TosURI    string
	Contacts  []string // 保留插入顺序的集合

	JWKSURI             string
	JWKS                string
	SectorIdentifierURI string
	SubjectType         string

	IDTokenSignedResponseAlg    string
	IDTokenEncryptedResponseAlg string
	IDTokenEncryptedResponseEnc string

	RequestObjectSigningAlg    string
	RequestObjectEncryptionAlg string
	RequestObjectEncryptionEnc string

	UserinfoSignedResponseAlg    string
	UserinfoEncryptedResponseAlg string
	UserinfoEncryptedResponseEnc string

	TokenEndpointAuthMethod     string
	TokenEndpointAuthSigningAlg string

	DefaultMaxAge    int64
	RequireAuthTime  bool
	DefaultACRValues []string
	InitiateLoginURI string
	RequestURIs      []string
	Requests         map[string]string // request_uri -> 最近一次拉取的原始内容
}

// Clone 返回不与原记录共享任何切片或映射的深拷贝。
func (c ClientRecord) Clone() ClientRecord {
	out := c
	out.Secret = cloneBytes(c.Secret)
	out.RedirectURIs = cloneStrings(c.RedirectURIs)
	out.ResponseTypes = cloneStrings(c.ResponseTypes)
	out.GrantTypes = cloneStrings(c.GrantTypes)
	out.Scopes = cloneStrings(c.Scopes)
	out.Contacts = cloneStrings(c.Contacts)
	out.DefaultACRValues = cloneStrings(c.DefaultACRValues)
	out.RequestURIs = cloneStrings(c.RequestURIs)
	if c.Requests != nil {
		out.Requests = make(map[string]string, len(c.Requests))
		for k, v := range c.Requests {
			out.Requests[k] = v
		}
	}
	return out
}

// HasRequestURI 判断 uri 是否在 RequestURIs 中。
func (c ClientRecord) HasRequestURI(uri string) bool {
	for _, u := range c.RequestURIs {
		if u == uri {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// UniqueStrings 去重并保留首次出现的顺序，用于集合字段的规范化。
func UniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ContainsAll 判断 values 中的每个元素都在 supported 中。
func ContainsAll(supported, values []string) bool {
	for _, v := range values {
		if !Contains(supported, v) {
			return false
		}
	}
	return true
}

// Contains 判断 list 是否包含 s。
func Contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
