package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/imulab-x/client-service/internal/discovery"
	"github.com/imulab-x/client-service/internal/models"
	"github.com/imulab-x/client-service/internal/oauth"
	"github.com/imulab-x/client-service/internal/storage"
)

// fakeResolver 记录每次远程解析调用，并按 URI 返回预设内容。
type fakeResolver struct {
	jwksCalls    []string
	requestCalls []string
	sectorCalls  []string
	bodies       map[string]string
	err          error
}

func (f *fakeResolver) ResolveJWKS(_ context.Context, jwksURI, inline string) (string, error) {
	if jwksURI != "" && inline != "" {
		return "", ErrJWKSConflict
	}
	if jwksURI == "" {
		return inline, nil
	}
	f.jwksCalls = append(f.jwksCalls, jwksURI)
	if f.err != nil {
		return "", f.err
	}
	return f.bodies[jwksURI], nil
}

func (f *fakeResolver) ResolveRequest(_ context.Context, uri string) (string, error) {
	f.requestCalls = append(f.requestCalls, uri)
	if f.err != nil {
		return "", f.err
	}
	return f.bodies[uri], nil
}

func (f *fakeResolver) ValidateSector(_ context.Context, uri string, redirects []string) error {
	if uri == "" {
		return nil
	}
	f.sectorCalls = append(f.sectorCalls, uri)
	if f.err != nil {
		return f.err
	}
	var listed []string
	if err := json.Unmarshal([]byte(f.bodies[uri]), &listed); err != nil {
		return err
	}
	return checkSectorRedirects(listed, redirects)
}

func (f *fakeResolver) calls() int { return len(f.jwksCalls) + len(f.requestCalls) + len(f.sectorCalls) }

var fixedNow = time.Unix(1_700_000_000, 0).UTC()

func newTestService(t *testing.T, res *fakeResolver) (*ClientService, *storage.MemoryClientStorage) {
	t.Helper()
	store := storage.NewMemoryClientStorage()
	svc := NewClientService(store, discovery.NewStatic(discovery.Sample()), res, NewBcryptEncoder(bcrypt.MinCost))
	svc.now = func() time.Time { return fixedNow }
	svc.newID = func() string { return "0123456789abcdef0123456789abcdef" }
	return svc, store
}

func TestEncryptionParitySharesOneError(t *testing.T) {
	base := models.NewBuilder(models.ClientRecord{}).Build()

	a := base
	a.IDTokenEncryptedResponseAlg = "RSA-OAEP"
	b := base
	b.RequestObjectEncryptionEnc = "A128GCM"
	c := base
	c.UserinfoEncryptedResponseAlg = "RSA1_5"

	for _, rec := range []models.ClientRecord{a, b, c} {
		err := ValidateEncryptionParity(rec)
		require.Same(t, ErrEncryptionParity, err)
	}

	ok := base
	ok.UserinfoEncryptedResponseAlg = "RSA-OAEP"
	ok.UserinfoEncryptedResponseEnc = "A256GCM"
	require.NoError(t, ValidateEncryptionParity(ok))
	require.NoError(t, ValidateEncryptionParity(base))
}

func TestCapabilitiesFirstFailureWins(t *testing.T) {
	doc := discovery.Sample()
	rec := models.NewBuilder(models.ClientRecord{
		ResponseTypes: []string{"code"},
		GrantTypes:    []string{"client_credentials"},
	}).Build()
	rec.TokenEndpointAuthMethod = "tls_client_auth"

	err := ValidateCapabilities(rec, &doc)
	var oe *oauth.Error
	require.True(t, errors.As(err, &oe))
	require.Equal(t, oauth.KindUnsupported, oe.Kind)
	require.Equal(t, "grant_type", oe.Param)

	rec.GrantTypes = []string{"authorization_code"}
	err = ValidateCapabilities(rec, &doc)
	require.True(t, errors.As(err, &oe))
	require.Equal(t, "token_endpoint_auth_method", oe.Param)

	rec.TokenEndpointAuthMethod = "client_secret_post"
	rec.Scopes = []string{"anything-goes"}
	rec.RequestURIs = []string{"https://not.checked/req"}
	require.NoError(t, ValidateCapabilities(rec, &doc))
}

func TestCapabilitiesCheckOrder(t *testing.T) {
	doc := discovery.Sample()
	setters := []struct {
		param string
		set   func(*models.ClientRecord)
	}{
		{"response_type", func(r *models.ClientRecord) { r.ResponseTypes = []string{"bogus"} }},
		{"grant_type", func(r *models.ClientRecord) { r.GrantTypes = []string{"bogus"} }},
		{"id_token_signed_response_alg", func(r *models.ClientRecord) { r.IDTokenSignedResponseAlg = "bogus" }},
		{"id_token_encrypted_response_alg", func(r *models.ClientRecord) { r.IDTokenEncryptedResponseAlg = "bogus" }},
		{"id_token_encrypted_response_enc", func(r *models.ClientRecord) { r.IDTokenEncryptedResponseEnc = "bogus" }},
		{"request_object_signing_alg", func(r *models.ClientRecord) { r.RequestObjectSigningAlg = "bogus" }},
		{"request_object_encryption_alg", func(r *models.ClientRecord) { r.RequestObjectEncryptionAlg = "bogus" }},
		{"request_object_encryption_enc", func(r *models.ClientRecord) { r.RequestObjectEncryptionEnc = "bogus" }},
		{"userinfo_signed_response_alg", func(r *models.ClientRecord) { r.UserinfoSignedResponseAlg = "bogus" }},
		{"userinfo_encrypted_response_alg", func(r *models.ClientRecord) { r.UserinfoEncryptedResponseAlg = "bogus" }},
		{"userinfo_encrypted_response_enc", func(r *models.ClientRecord) { r.UserinfoEncryptedResponseEnc = "bogus" }},
		{"token_endpoint_auth_method", func(r *models.ClientRecord) { r.TokenEndpointAuthMethod = "bogus" }},
		{"token_endpoint_auth_signing_alg", func(r *models.ClientRecord) { r.TokenEndpointAuthSigningAlg = "bogus" }},
	}
	base := models.NewBuilder(models.ClientRecord{
		ResponseTypes: []string{"code"},
		GrantTypes:    []string{"authorization_code"},
	}).Build()
	require.NoError(t, ValidateCapabilities(base, &doc))

	// 从第 i 个起全部置为不支持，报告的必须是第 i 个
	for i := range setters {
		t.Run(setters[i].param, func(t *testing.T) {
			rec := base
			for _, s := range setters[i:] {
				s.set(&rec)
			}
			err := ValidateCapabilities(rec, &doc)
			var oe *oauth.Error
			require.True(t, errors.As(err, &oe))
			require.Equal(t, oauth.KindUnsupported, oe.Kind)
			require.Equal(t, setters[i].param, oe.Param)
		})
	}
}

func TestCreateClientIssuesSecretAndResolvesDocuments(t *testing.T) {
	res := &fakeResolver{bodies: map[string]string{
		"https://rp.example.com/jwks":  `{"keys":[]}`,
		"https://rp.example.com/req/1": "req-1",
	}}
	svc, store := newTestService(t, res)

	rec, plain, err := svc.CreateClient(context.Background(), models.ClientRecord{
		RedirectURIs: []string{"https://rp.example.com/cb"},
		JWKSURI:      "https://rp.example.com/jwks",
		RequestURIs:  []string{"https://rp.example.com/req/1", ""},
	})
	require.NoError(t, err)

	require.Equal(t, "0123456789abcdef0123456789abcdef", rec.ID)
	require.Equal(t, "Client 0123456789abcdef0123456789abcdef", rec.Name)
	require.Equal(t, []string{"code"}, rec.ResponseTypes)
	require.Equal(t, []string{"authorization_code"}, rec.GrantTypes)
	require.Equal(t, fixedNow, rec.CreationTime)
	require.Equal(t, fixedNow, rec.LastUpdateTime)
	require.Equal(t, `{"keys":[]}`, rec.JWKS)
	require.Equal(t, map[string]string{"https://rp.example.com/req/1": "req-1"}, rec.Requests)

	require.Len(t, plain, clientSecretLength)
	require.NotEqual(t, plain, string(rec.Secret))
	require.NoError(t, bcrypt.CompareHashAndPassword(rec.Secret, []byte(plain)))

	stored, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec, stored)

	ok, err := svc.VerifySecret(context.Background(), rec.ID, plain)
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = svc.VerifySecret(context.Background(), rec.ID, "wrong")
	require.False(t, ok)
}

func TestCreatePrivateKeyClientHasNoSecret(t *testing.T) {
	svc, _ := newTestService(t, &fakeResolver{})

	rec, plain, err := svc.CreateClient(context.Background(), models.ClientRecord{
		TokenEndpointAuthMethod: oauth.AuthMethodPrivateKeyJWT,
		JWKS:                    `{"keys":[]}`,
		Secret:                  []byte("caller supplied"),
	})
	require.NoError(t, err)
	require.Empty(t, plain)
	require.Empty(t, rec.Secret)
	require.Equal(t, `{"keys":[]}`, rec.JWKS)
}

func TestCreateValidationRunsBeforeNetworkAndPersist(t *testing.T) {
	res := &fakeResolver{}
	svc, store := newTestService(t, res)

	_, _, err := svc.CreateClient(context.Background(), models.ClientRecord{
		IDTokenEncryptedResponseAlg: "RSA-OAEP",
		JWKSURI:                     "https://rp.example.com/jwks",
		RequestURIs:                 []string{"https://rp.example.com/req"},
	})
	require.Same(t, ErrEncryptionParity, err)

	_, _, err = svc.CreateClient(context.Background(), models.ClientRecord{
		GrantTypes: []string{"client_credentials"},
		JWKSURI:    "https://rp.example.com/jwks",
	})
	require.True(t, oauth.IsKind(err, oauth.KindUnsupported))

	require.Zero(t, res.calls())
	require.Zero(t, store.Len())
}

func TestCreateRejectsNegativeMaxAge(t *testing.T) {
	res := &fakeResolver{}
	svc, store := newTestService(t, res)

	_, _, err := svc.CreateClient(context.Background(), models.ClientRecord{
		DefaultMaxAge: -1,
		JWKSURI:       "https://rp.example.com/jwks",
	})
	require.Same(t, ErrNegativeMaxAge, err)
	require.Zero(t, res.calls())
	require.Zero(t, store.Len())

	require.NoError(t, ValidateMaxAge(models.ClientRecord{}))
	require.NoError(t, ValidateMaxAge(models.ClientRecord{DefaultMaxAge: 600}))
}

func TestCreateFetchFailureAbortsWithoutPersist(t *testing.T) {
	res := &fakeResolver{err: oauth.Unmet("Calling request_uri returned non-2xx code.")}
	svc, store := newTestService(t, res)

	_, _, err := svc.CreateClient(context.Background(), models.ClientRecord{
		RequestURIs: []string{"https://rp.example.com/req"},
	})
	require.True(t, oauth.IsKind(err, oauth.KindUnmet))
	require.Zero(t, store.Len())
}

func TestCreateRejectsJWKSConflict(t *testing.T) {
	svc, store := newTestService(t, &fakeResolver{})
	_, _, err := svc.CreateClient(context.Background(), models.ClientRecord{
		JWKSURI: "https://rp.example.com/jwks",
		JWKS:    `{"keys":[]}`,
	})
	require.Same(t, ErrJWKSConflict, err)
	require.Zero(t, store.Len())
}

func TestUpdateReconcilesRequests(t *testing.T) {
	res := &fakeResolver{bodies: map[string]string{
		"https://rp.example.com/a": "A",
		"https://rp.example.com/b": "B",
		"https://rp.example.com/c": "C",
	}}
	svc, _ := newTestService(t, res)
	ctx := context.Background()

	created, plain, err := svc.CreateClient(ctx, models.ClientRecord{
		RequestURIs: []string{"https://rp.example.com/a", "https://rp.example.com/b"},
	})
	require.NoError(t, err)
	require.Len(t, res.requestCalls, 2)

	later := fixedNow.Add(time.Hour)
	svc.now = func() time.Time { return later }
	res.bodies["https://rp.example.com/b"] = "B-changed"

	updated, err := svc.UpdateClient(ctx, created.ID, models.ClientRecord{
		Name:        "Renamed",
		RequestURIs: []string{"https://rp.example.com/b", "https://rp.example.com/c"},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"https://rp.example.com/a", "https://rp.example.com/b", "https://rp.example.com/c"}, res.requestCalls)
	require.Equal(t, map[string]string{
		"https://rp.example.com/b": "B",
		"https://rp.example.com/c": "C",
	}, updated.Requests)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, created.CreationTime, updated.CreationTime)
	require.Equal(t, later, updated.LastUpdateTime)
	require.Equal(t, created.Secret, updated.Secret)
	require.Equal(t, "Renamed", updated.Name)

	ok, err := svc.VerifySecret(ctx, created.ID, plain)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUpdateJWKSRefetchPolicy(t *testing.T) {
	res := &fakeResolver{bodies: map[string]string{
		"https://rp.example.com/jwks/1": `{"keys":[1]}`,
		"https://rp.example.com/jwks/2": `{"keys":[2]}`,
	}}
	svc, _ := newTestService(t, res)
	ctx := context.Background()

	created, _, err := svc.CreateClient(ctx, models.ClientRecord{JWKSURI: "https://rp.example.com/jwks/1"})
	require.NoError(t, err)
	require.Len(t, res.jwksCalls, 1)

	// 地址不变：不重新拉取，沿用已有内容
	same, err := svc.UpdateClient(ctx, created.ID, models.ClientRecord{JWKSURI: "https://rp.example.com/jwks/1"})
	require.NoError(t, err)
	require.Len(t, res.jwksCalls, 1)
	require.Equal(t, `{"keys":[1]}`, same.JWKS)

	// 地址变化且原地址非空：重新拉取
	moved, err := svc.UpdateClient(ctx, created.ID, models.ClientRecord{JWKSURI: "https://rp.example.com/jwks/2"})
	require.NoError(t, err)
	require.Len(t, res.jwksCalls, 2)
	require.Equal(t, `{"keys":[2]}`, moved.JWKS)
}

func TestUpdateWithoutPreviousJWKSURIDoesNotFetch(t *testing.T) {
	res := &fakeResolver{}
	svc, _ := newTestService(t, res)
	ctx := context.Background()

	created, _, err := svc.CreateClient(ctx, models.ClientRecord{JWKS: `{"keys":[]}`})
	require.NoError(t, err)

	updated, err := svc.UpdateClient(ctx, created.ID, models.ClientRecord{JWKSURI: "https://rp.example.com/jwks"})
	require.NoError(t, err)
	require.Empty(t, res.jwksCalls)
	require.Equal(t, "https://rp.example.com/jwks", updated.JWKSURI)
	require.Empty(t, updated.JWKS)
}

func TestUpdateUnknownClient(t *testing.T) {
	svc, _ := newTestService(t, &fakeResolver{})
	_, err := svc.UpdateClient(context.Background(), "nope", models.ClientRecord{})
	var oe *oauth.Error
	require.True(t, errors.As(err, &oe))
	require.Equal(t, oauth.CodeUnknownClient, oe.Code)
}

func TestUpdateValidatesMergedCandidate(t *testing.T) {
	res := &fakeResolver{}
	svc, store := newTestService(t, res)
	ctx := context.Background()

	created, _, err := svc.CreateClient(ctx, models.ClientRecord{Name: "Keep"})
	require.NoError(t, err)

	_, err = svc.UpdateClient(ctx, created.ID, models.ClientRecord{
		Name:                         "Changed",
		UserinfoEncryptedResponseEnc: "A128GCM",
		RequestURIs:                  []string{"https://rp.example.com/req"},
	})
	require.Same(t, ErrEncryptionParity, err)
	require.Zero(t, res.calls())

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Keep", got.Name)
}

func TestGetAndDelete(t *testing.T) {
	svc, _ := newTestService(t, &fakeResolver{})
	ctx := context.Background()

	created, _, err := svc.CreateClient(ctx, models.ClientRecord{})
	require.NoError(t, err)

	got, err := svc.GetClient(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)

	require.NoError(t, svc.DeleteClient(ctx, created.ID))
	require.NoError(t, svc.DeleteClient(ctx, created.ID))
	_, err = svc.GetClient(ctx, created.ID)
	require.True(t, oauth.IsKind(err, oauth.KindNotFound))
}

func TestSectorIdentifierMustListRedirects(t *testing.T) {
	const sector = "https://rp.example.com/sector.json"
	res := &fakeResolver{bodies: map[string]string{
		sector: `["https://rp.example.com/cb","https://rp.example.com/alt"]`,
	}}
	svc, store := newTestService(t, res)
	ctx := context.Background()

	_, _, err := svc.CreateClient(ctx, models.ClientRecord{
		RedirectURIs:        []string{"https://evil.example.com/cb"},
		SectorIdentifierURI: sector,
	})
	require.True(t, oauth.IsKind(err, oauth.KindUnmet))
	require.Zero(t, store.Len())

	rec, _, err := svc.CreateClient(ctx, models.ClientRecord{
		RedirectURIs:        []string{"https://rp.example.com/cb"},
		SectorIdentifierURI: sector,
	})
	require.NoError(t, err)
	require.Len(t, res.sectorCalls, 2)

	// 地址与重定向均未变化时不重新拉取
	_, err = svc.UpdateClient(ctx, rec.ID, models.ClientRecord{
		Name:                "Same",
		RedirectURIs:        []string{"https://rp.example.com/cb"},
		SectorIdentifierURI: sector,
	})
	require.NoError(t, err)
	require.Len(t, res.sectorCalls, 2)

	_, err = svc.UpdateClient(ctx, rec.ID, models.ClientRecord{
		RedirectURIs:        []string{"https://rp.example.com/cb", "https://rp.example.com/alt"},
		SectorIdentifierURI: sector,
	})
	require.NoError(t, err)
	require.Len(t, res.sectorCalls, 3)
}
