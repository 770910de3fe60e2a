package storage

import (
	"encoding/base64"
	"time"

	"gorm.io/gorm"

	"github.com/imulab-x/client-service/internal/models"
)

// ClientDocument 是客户端记录的持久化形态，列名使用紧凑短名。
// 集合与映射字段以 JSON 文本列存放；密钥为无填充 base64；时间为 Unix 秒。
type ClientDocument struct {
	ID       string `gorm:"column:id;primaryKey;size:64"`
	CreateAt int64  `gorm:"column:create_at;index"`
	UpdateAt int64  `gorm:"column:update_at"`
	Name     string `gorm:"column:name;size:255"`
	Secret   string `gorm:"column:secret;size:255"`
	Type     string `gorm:"column:type;size:32"`
	AppType  string `gorm:"column:app_type;size:32"`

	RedirectURIs  []string `gorm:"column:redirect_uris;type:text;serializer:json"`
	ResponseTypes []string `gorm:"column:response_types;type:text;serializer:json"`
	GrantTypes    []string `gorm:"column:grant_types;type:text;serializer:json"`
	Scopes        []string `gorm:"column:scopes;type:text;serializer:json"`
	Contacts      []string `gorm:"column:contacts;type:text;serializer:json"`

	LogoURI   string `gorm:"column:logo_uri;size:512"`
	ClientURI string `gorm:"column:client_uri;size:512"`
	PolicyURI string `gorm:"column:policy_uri;size:512"`
	TosURI    string `gorm:"column:tos_uri;size:512"`
	JWKSURI   string `gorm:"column:jwks_uri;size:512"`
	JWKS      string `gorm:"column:jwks;type:text"`
	SecIDURI  string `gorm:"column:sec_id_uri;size:512"`
	SubjType  string `gorm:"column:subj_type;size:32"`

	IDTokSigAlg      string `gorm:"column:id_tok_sig_alg;size:32"`
	IDTokEncryptAlg  string `gorm:"column:id_tok_encrypt_alg;size:32"`
	IDTokEncryptEnc  string `gorm:"column:id_tok_encrypt_enc;size:32"`
	ReqObjSigAlg     string `gorm:"column:req_obj_sig_alg;size:32"`
	ReqObjEncryptAlg string `gorm:"column:req_obj_encrypt_alg;size:32"`
	ReqObjEncryptEnc string `gorm:"column:req_obj_encrypt_enc;size:32"`
	UinfoSigAlg      string `gorm:"column:uinfo_sig_alg;size:32"`
	UinfoEncryptAlg  string `gorm:"column:uinfo_encrypt_alg;size:32"`
	UinfoEncryptEnc  string `gorm:"column:uinfo_encrypt_enc;size:32"`
	TokAuth          string `gorm:"column:tok_auth;size:64"`
	TokAuthSigAlg    string `gorm:"column:tok_auth_sig_alg;size:32"`

	MaxAge       int64             `gorm:"column:max_age"`
	ReqAuth      bool              `gorm:"column:req_auth"`
	ACR          []string          `gorm:"column:acr;type:text;serializer:json"`
	InitLoginURI string            `gorm:"column:init_login_uri;size:512"`
	ReqURIs      []string          `gorm:"column:req_uris;type:text;serializer:json"`
	Req          map[string]string `gorm:"column:req;type:longtext;serializer:json"`
}

func (ClientDocument) TableName() string { return "clients" }

// Migrate 确保 clients 表结构存在。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ClientDocument{})
}

// ToDocument 将领域记录转换为持久化形态。
func ToDocument(rec models.ClientRecord) ClientDocument {
	return ClientDocument{
		ID:               rec.ID,
		CreateAt:         rec.CreationTime.Unix(),
		UpdateAt:         rec.LastUpdateTime.Unix(),
		Name:             rec.Name,
		Secret:           base64.RawStdEncoding.EncodeToString(rec.Secret),
		Type:             rec.Type,
		AppType:          rec.ApplicationType,
		RedirectURIs:     rec.RedirectURIs,
		ResponseTypes:    rec.ResponseTypes,
		GrantTypes:       rec.GrantTypes,
		Scopes:           rec.Scopes,
		Contacts:         rec.Contacts,
		LogoURI:          rec.LogoURI,
		ClientURI:        rec.ClientURI,
		PolicyURI:        rec.PolicyURI,
		TosURI:           rec.TosURI,
		JWKSURI:          rec.JWKSURI,
		JWKS:             rec.JWKS,
		SecIDURI:         rec.SectorIdentifierURI,
		SubjType:         rec.SubjectType,
		IDTokSigAlg:      rec.IDTokenSignedResponseAlg,
		IDTokEncryptAlg:  rec.IDTokenEncryptedResponseAlg,
		IDTokEncryptEnc:  rec.IDTokenEncryptedResponseEnc,
		ReqObjSigAlg:     rec.RequestObjectSigningAlg,
		ReqObjEncryptAlg: rec.RequestObjectEncryptionAlg,
		ReqObjEncryptEnc: rec.RequestObjectEncryptionEnc,
		UinfoSigAlg:      rec.UserinfoSignedResponseAlg,
		UinfoEncryptAlg:  rec.UserinfoEncryptedResponseAlg,
		UinfoEncryptEnc:  rec.UserinfoEncryptedResponseEnc,
		TokAuth:          rec.TokenEndpointAuthMethod,
		TokAuthSigAlg:    rec.TokenEndpointAuthSigningAlg,
		MaxAge:           rec.DefaultMaxAge,
		ReqAuth:          rec.RequireAuthTime,
		ACR:              rec.DefaultACRValues,
		InitLoginURI:     rec.InitiateLoginURI,
		ReqURIs:          rec.RequestURIs,
		Req:              rec.Requests,
	}
}

// Record 将持久化形态还原为领域记录。
func (d ClientDocument) Record() (models.ClientRecord, error) {
	var secret []byte
	if d.Secret != "" {
		b, err := base64.RawStdEncoding.DecodeString(d.Secret)
		if err != nil {
			return models.ClientRecord{}, err
		}
		secret = b
	}
	rec := models.ClientRecord{
		ID:                           d.ID,
		Secret:                       secret,
		CreationTime:                 time.Unix(d.CreateAt, 0).UTC(),
		LastUpdateTime:               time.Unix(d.UpdateAt, 0).UTC(),
		Type:                         d.Type,
		ApplicationType:              d.AppType,
		RedirectURIs:                 d.RedirectURIs,
		ResponseTypes:                d.ResponseTypes,
		GrantTypes:                   d.GrantTypes,
		Scopes:                       d.Scopes,
		Name:                         d.Name,
		LogoURI:                      d.LogoURI,
		ClientURI:                    d.ClientURI,
		PolicyURI:                    d.PolicyURI,
		TosURI:                       d.TosURI,
		Contacts:                     d.Contacts,
		JWKSURI:                      d.JWKSURI,
		JWKS:                         d.JWKS,
		SectorIdentifierURI:          d.SecIDURI,
		SubjectType:                  d.SubjType,
		IDTokenSignedResponseAlg:     d.IDTokSigAlg,
		IDTokenEncryptedResponseAlg:  d.IDTokEncryptAlg,
		IDTokenEncryptedResponseEnc:  d.IDTokEncryptEnc,
		RequestObjectSigningAlg:      d.ReqObjSigAlg,
		RequestObjectEncryptionAlg:   d.ReqObjEncryptAlg,
		RequestObjectEncryptionEnc:   d.ReqObjEncryptEnc,
		UserinfoSignedResponseAlg:    d.UinfoSigAlg,
		UserinfoEncryptedResponseAlg: d.UinfoEncryptAlg,
		UserinfoEncryptedResponseEnc: d.UinfoEncryptEnc,
		TokenEndpointAuthMethod:      d.TokAuth,
		TokenEndpointAuthSigningAlg:  d.TokAuthSigAlg,
		DefaultMaxAge:                d.MaxAge,
		RequireAuthTime:              d.ReqAuth,
		DefaultACRValues:             d.ACR,
		InitiateLoginURI:             d.InitLoginURI,
		RequestURIs:                  d.ReqURIs,
		Requests:                     d.Req,
	}
	return rec.Clone(), nil
}
