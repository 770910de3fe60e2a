package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/imulab-x/client-service/internal/discovery"
	"github.com/imulab-x/client-service/internal/metrics"
	"github.com/imulab-x/client-service/internal/models"
	"github.com/imulab-x/client-service/internal/oauth"
	"github.com/imulab-x/client-service/internal/storage"
	"github.com/imulab-x/client-service/internal/utils"
)

// ClientService 编排客户端的注册、更新、读取与删除：
// 填充默认值、校验、签发密钥、解析远程文档，最后写入存储。
type ClientService struct {
	store     storage.ClientStorage
	discovery discovery.Provider
	resolver  DocumentResolver
	encoder   PasswordEncoder

	now       func() time.Time
	newID     func() string
	newSecret func() (string, error)
}

func NewClientService(store storage.ClientStorage, disc discovery.Provider, resolver DocumentResolver, encoder PasswordEncoder) *ClientService {
	return &ClientService{
		store:     store,
		discovery: disc,
		resolver:  resolver,
		encoder:   encoder,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Second) },
		newID:     utils.NewClientID,
		newSecret: generateSecret,
	}
}

// CreateClient 注册新客户端，返回定稿记录与明文密钥。
// 明文密钥仅此一次可见；认证方式无需密钥时为空字符串。
func (s *ClientService) CreateClient(ctx context.Context, candidate models.ClientRecord) (models.ClientRecord, string, error) {
	rec, plain, err := s.create(ctx, candidate)
	metrics.ClientMutations.WithLabelValues("create", metrics.Outcome(err)).Inc()
	if err != nil {
		return models.ClientRecord{}, "", err
	}
	metrics.ClientsRegistered.Inc()
	log.WithFields(log.Fields{
		"client_id":   rec.ID,
		"auth_method": rec.TokenEndpointAuthMethod,
	}).Info("client registered")
	return rec, plain, nil
}

func (s *ClientService) create(ctx context.Context, candidate models.ClientRecord) (models.ClientRecord, string, error) {
	id := s.newID()
	now := s.now()
	b := models.NewBuilder(candidate).Identity(id, now).Touched(now).ApplyDefaults()

	if err := s.validate(ctx, b.Peek()); err != nil {
		return models.ClientRecord{}, "", err
	}

	draft := b.Peek()
	if err := s.resolver.ValidateSector(ctx, draft.SectorIdentifierURI, draft.RedirectURIs); err != nil {
		return models.ClientRecord{}, "", err
	}

	plain := ""
	b.Secret(nil)
	if oauth.RequiresSecret(draft.TokenEndpointAuthMethod) {
		var err error
		if plain, err = s.newSecret(); err != nil {
			return models.ClientRecord{}, "", oauth.ServerError("Failed to generate client secret.", err)
		}
		encoded, err := s.encoder.Encode(plain)
		if err != nil {
			return models.ClientRecord{}, "", oauth.ServerError("Failed to encode client secret.", err)
		}
		b.Secret(encoded)
	}

	jwks, err := s.resolver.ResolveJWKS(ctx, draft.JWKSURI, draft.JWKS)
	if err != nil {
		return models.ClientRecord{}, "", err
	}
	b.JWKS(jwks)

	requests := map[string]string{}
	for _, uri := range draft.RequestURIs {
		if uri == "" {
			continue
		}
		body, err := s.resolver.ResolveRequest(ctx, uri)
		if err != nil {
			return models.ClientRecord{}, "", err
		}
		requests[uri] = body
	}
	b.Requests(requests)

	rec := b.Build()
	if err := s.store.Insert(ctx, rec); err != nil {
		return models.ClientRecord{}, "", err
	}
	return rec, plain, nil
}

// UpdateClient 以候选记录整体替换已有客户端。
// id、创建时间与密钥沿用原记录；未变化的 request_uri 不重新拉取。
func (s *ClientService) UpdateClient(ctx context.Context, id string, candidate models.ClientRecord) (models.ClientRecord, error) {
	rec, err := s.update(ctx, id, candidate)
	metrics.ClientMutations.WithLabelValues("update", metrics.Outcome(err)).Inc()
	if err != nil {
		return models.ClientRecord{}, err
	}
	log.WithField("client_id", rec.ID).Info("client updated")
	return rec, nil
}

func (s *ClientService) update(ctx context.Context, id string, candidate models.ClientRecord) (models.ClientRecord, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return models.ClientRecord{}, err
	}

	b := models.NewBuilder(candidate).
		Identity(existing.ID, existing.CreationTime).
		Touched(s.now()).
		Secret(existing.Secret)

	if err := s.validate(ctx, b.Peek()); err != nil {
		return models.ClientRecord{}, err
	}

	draft := b.Peek()
	if draft.JWKSURI != "" && draft.JWKS != "" {
		return models.ClientRecord{}, ErrJWKSConflict
	}
	if draft.SectorIdentifierURI != existing.SectorIdentifierURI || !sameStrings(draft.RedirectURIs, existing.RedirectURIs) {
		if err := s.resolver.ValidateSector(ctx, draft.SectorIdentifierURI, draft.RedirectURIs); err != nil {
			return models.ClientRecord{}, err
		}
	}
	switch {
	case existing.JWKSURI != "" && draft.JWKSURI != existing.JWKSURI:
		jwks, err := s.resolver.ResolveJWKS(ctx, draft.JWKSURI, draft.JWKS)
		if err != nil {
			return models.ClientRecord{}, err
		}
		b.JWKS(jwks)
	case existing.JWKSURI != "" && draft.JWKSURI == existing.JWKSURI:
		// 地址未变，沿用上次拉取的内容
		b.JWKS(existing.JWKS)
	}

	requests := map[string]string{}
	for _, uri := range draft.RequestURIs {
		if uri == "" {
			continue
		}
		if body, ok := existing.Requests[uri]; ok && existing.HasRequestURI(uri) {
			requests[uri] = body
			continue
		}
		body, err := s.resolver.ResolveRequest(ctx, uri)
		if err != nil {
			return models.ClientRecord{}, err
		}
		requests[uri] = body
	}
	b.Requests(requests)

	rec := b.Build()
	if err := s.store.Update(ctx, rec); err != nil {
		return models.ClientRecord{}, err
	}
	return rec, nil
}

// GetClient 按 id 读取客户端；未命中返回 oauth.UnknownClient。
func (s *ClientService) GetClient(ctx context.Context, id string) (models.ClientRecord, error) {
	return s.store.Get(ctx, id)
}

// DeleteClient 删除客户端；不存在时同样成功。
func (s *ClientService) DeleteClient(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	metrics.ClientMutations.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err == nil {
		log.WithField("client_id", id).Info("client deleted")
	}
	return err
}

// VerifySecret 校验明文密钥是否与客户端记录匹配。
func (s *ClientService) VerifySecret(ctx context.Context, id, plain string) (bool, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.encoder.Matches(rec.Secret, plain), nil
}

// validate 先做加密参数配对检查，再做能力声明检查。
func (s *ClientService) validate(ctx context.Context, rec models.ClientRecord) error {
	if err := ValidateMaxAge(rec); err != nil {
		return err
	}
	if err := ValidateEncryptionParity(rec); err != nil {
		return err
	}
	doc, err := s.discovery.Capabilities(ctx)
	if err != nil {
		return oauth.ServerError("Discovery capabilities unavailable.", err)
	}
	return ValidateCapabilities(rec, doc)
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
