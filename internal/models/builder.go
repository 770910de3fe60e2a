package models

import (
	"fmt"
	"time"

	"github.com/imulab-x/client-service/internal/oauth"
)

// Builder 基于调用方提交的候选记录生成定稿记录。
// 候选记录在构造时即被深拷贝，之后调用方对原值的修改不会影响构建结果。
type Builder struct {
	rec ClientRecord
}

// NewBuilder 以候选记录为起点，并对集合字段去重。
func NewBuilder(candidate ClientRecord) *Builder {
	rec := candidate.Clone()
	rec.RedirectURIs = UniqueStrings(rec.RedirectURIs)
	rec.ResponseTypes = UniqueStrings(rec.ResponseTypes)
	rec.GrantTypes = UniqueStrings(rec.GrantTypes)
	rec.Scopes = UniqueStrings(rec.Scopes)
	rec.Contacts = UniqueStrings(rec.Contacts)
	FillProtocolDefaults(&rec)
	return &Builder{rec: rec}
}

// FillProtocolDefaults 为未填写的类型与算法字段补齐协议默认值
// （与注册接口对缺省参数的约定一致）。
func FillProtocolDefaults(rec *ClientRecord) {
	def := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	def(&rec.Type, oauth.ClientTypeConfidential)
	def(&rec.ApplicationType, oauth.ApplicationTypeWeb)
	def(&rec.IDTokenSignedResponseAlg, oauth.AlgRS256)
	def(&rec.IDTokenEncryptedResponseAlg, oauth.None)
	def(&rec.IDTokenEncryptedResponseEnc, oauth.None)
	def(&rec.RequestObjectSigningAlg, oauth.AlgRS256)
	def(&rec.RequestObjectEncryptionAlg, oauth.None)
	def(&rec.RequestObjectEncryptionEnc, oauth.None)
	def(&rec.UserinfoSignedResponseAlg, oauth.None)
	def(&rec.UserinfoEncryptedResponseAlg, oauth.None)
	def(&rec.UserinfoEncryptedResponseEnc, oauth.None)
	def(&rec.TokenEndpointAuthMethod, oauth.AuthMethodClientSecretBasic)
	def(&rec.TokenEndpointAuthSigningAlg, oauth.None)
}

// Identity 设置服务端分配的 id 与创建时间。
func (b *Builder) Identity(id string, created time.Time) *Builder {
	b.rec.ID = id
	b.rec.CreationTime = created
	return b
}

// Touched 设置最后更新时间。
func (b *Builder) Touched(t time.Time) *Builder {
	b.rec.LastUpdateTime = t
	return b
}

// Secret 设置已编码的密钥。
func (b *Builder) Secret(encoded []byte) *Builder {
	b.rec.Secret = cloneBytes(encoded)
	return b
}

// JWKS 设置解析后的 JWK Set 内容。
func (b *Builder) JWKS(jwks string) *Builder {
	b.rec.JWKS = jwks
	return b
}

// Requests 替换 request_uri 内容映射。
func (b *Builder) Requests(requests map[string]string) *Builder {
	b.rec.Requests = make(map[string]string, len(requests))
	for k, v := range requests {
		b.rec.Requests[k] = v
	}
	return b
}

// ApplyDefaults 为空的名称、响应类型与授权类型填充默认值，须在 Identity 之后调用。
func (b *Builder) ApplyDefaults() *Builder {
	if b.rec.Name == "" {
		b.rec.Name = fmt.Sprintf("Client %s", b.rec.ID)
	}
	if len(b.rec.ResponseTypes) == 0 {
		b.rec.ResponseTypes = []string{oauth.ResponseTypeCode}
	}
	if len(b.rec.GrantTypes) == 0 {
		b.rec.GrantTypes = []string{oauth.GrantAuthorizationCode}
	}
	return b
}

// Peek 返回当前状态的只读快照，供校验步骤使用。
func (b *Builder) Peek() ClientRecord {
	return b.rec.Clone()
}

// Build 产出定稿记录。
func (b *Builder) Build() ClientRecord {
	return b.rec.Clone()
}
