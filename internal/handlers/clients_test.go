package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/imulab-x/client-service/internal/config"
	"github.com/imulab-x/client-service/internal/discovery"
	"github.com/imulab-x/client-service/internal/services"
	"github.com/imulab-x/client-service/internal/storage"
)

func init() { gin.SetMode(gin.TestMode) }

type testEnv struct {
	router *gin.Engine
	store  *storage.MemoryClientStorage
}

func newTestEnv(t *testing.T, cfg config.Config, rdb *redis.Client, checks ...HealthCheck) *testEnv {
	t.Helper()
	store := storage.NewMemoryClientStorage()
	svc := services.NewClientService(store, discovery.NewStatic(discovery.Sample()),
		services.NewDocumentFetcher(cfg), services.NewBcryptEncoder(bcrypt.MinCost))
	r := gin.New()
	New(cfg, svc, rdb, checks...).RegisterRoutes(r)
	return &testEnv{router: r, store: store}
}

func (e *testEnv) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			_ = json.NewEncoder(&buf).Encode(v)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestClientLifecycle(t *testing.T) {
	jwks := `{"keys":[{"kty":"oct","k":"c2VjcmV0","kid":"k1"}]}`
	rp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(jwks))
	}))
	defer rp.Close()

	env := newTestEnv(t, config.Defaults(), nil)

	w := env.do(http.MethodPost, "/client", map[string]any{
		"client_name":   "Lifecycle",
		"redirect_uris": []string{"https://rp.example.com/cb"},
		"jwks_uri":      rp.URL + "/jwks",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id := created["client_id"].(string)
	require.Len(t, id, 32)
	require.Equal(t, "/client/"+id, created["registration_client_uri"])
	require.Equal(t, "/client/"+id, w.Header().Get("Location"))
	require.Len(t, created["client_secret"], 32)
	require.EqualValues(t, 0, created["client_secret_expires_at"])
	require.NotZero(t, created["client_id_issued_at"])
	require.Equal(t, "client_secret_basic", created["token_endpoint_auth_method"])
	require.NotContains(t, created, "jwks")

	stored, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, jwks, stored.JWKS)

	w = env.do(http.MethodGet, "/client/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.Equal(t, "no-cache", w.Header().Get("Pragma"))
	got := decode(t, w)
	require.Equal(t, "Lifecycle", got["client_name"])
	require.NotContains(t, got, "client_secret")

	w = env.do(http.MethodPut, "/client/"+id, map[string]any{
		"client_name": "Renamed",
		"jwks_uri":    rp.URL + "/jwks",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "Renamed", decode(t, w)["client_name"])

	w = env.do(http.MethodDelete, "/client/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/client/"+id, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	body := decode(t, w)
	require.Equal(t, "unknown_client", body["error"])
	require.Equal(t, "Client not found by id "+id+".", body["error_description"])
}

func TestCreatePublicClientOmitsSecret(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	w := env.do(http.MethodPost, "/client", map[string]any{
		"client_type":                "public",
		"token_endpoint_auth_method": "private_key_jwt",
		"jwks":                       `{"keys":[]}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	require.NotContains(t, body, "client_secret")
	require.Equal(t, `{"keys":[]}`, body["jwks"])
}

func TestCreateValidationErrors(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)

	w := env.do(http.MethodPost, "/client", map[string]any{
		"id_token_encrypted_response_alg": "RSA-OAEP",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	require.Equal(t, "invalid_request", body["error"])
	require.Equal(t, services.ErrEncryptionParity.Description, body["error_description"])

	w = env.do(http.MethodPost, "/client", map[string]any{"grant_types": []string{"client_credentials"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Value for parameter grant_type is unsupported.", decode(t, w)["error_description"])

	w = env.do(http.MethodPost, "/client", "{not json")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_request", decode(t, w)["error"])

	require.Zero(t, env.store.Len())
}

func TestUpdateUnknownClientReturns404(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	w := env.do(http.MethodPut, "/client/nope", map[string]any{"client_name": "x"})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "unknown_client", decode(t, w)["error"])
}

func TestMutationsRequireInitialAccessToken(t *testing.T) {
	cfg := config.Defaults()
	cfg.Registration.InitialAccessToken = "iat"
	env := newTestEnv(t, cfg, nil)

	require.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/client", map[string]any{}).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(http.MethodDelete, "/client/x", nil).Code)

	w := env.do(http.MethodPost, "/client", map[string]any{}, "Authorization", "Bearer iat")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["client_id"].(string)

	// 读取不需要令牌
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/client/"+id, nil).Code)
	require.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/client/"+id, nil, "Authorization", "Bearer iat").Code)
}

func TestCreateIsRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := config.Defaults()
	cfg.Limits.RegisterPerMinute = 1
	cfg.Limits.Window = time.Minute
	env := newTestEnv(t, cfg, rdb)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/client", map[string]any{}).Code)
	require.Equal(t, http.StatusTooManyRequests, env.do(http.MethodPost, "/client", map[string]any{}).Code)
	require.Equal(t, 1, env.store.Len())
}

func TestHealth(t *testing.T) {
	healthy := true
	env := newTestEnv(t, config.Defaults(), nil,
		HealthCheck{Name: "mysql", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "grpc_api", Check: func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("dial tcp 10.0.0.7:9090: not serving")
		}},
	)

	w := env.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "UP", decode(t, w)["status"])

	healthy = false
	w = env.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	require.Equal(t, "DOWN", body["status"])
	checks := body["checks"].([]any)
	require.Len(t, checks, 2)
	require.Equal(t, "DOWN", checks[1].(map[string]any)["status"])
	require.NotContains(t, checks[1].(map[string]any), "data")
	require.NotContains(t, w.Body.String(), "10.0.0.7")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	w := env.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "clients_registered_total")
}
