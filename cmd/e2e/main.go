package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/imulab-x/client-service/internal/oauth"
	"github.com/imulab-x/client-service/internal/rpc"
)

var baseURL *url.URL

// scenario 封装一次端到端巡检过程中共享的资源。
type scenario struct {
	client        *http.Client
	lookup        *rpc.LookupClient
	health        healthpb.HealthClient
	initialAccess string
	timeout       time.Duration
}

func banner(title string) {
	log.Infof("=== %s ===", title)
}

func step(format string, args ...interface{}) {
	log.Infof(" • "+format, args...)
}

type clientInfo struct {
	ClientID              string   `json:"client_id"`
	ClientSecret          string   `json:"client_secret"`
	ClientName            string   `json:"client_name"`
	RegistrationClientURI string   `json:"registration_client_uri"`
	RedirectURIs          []string `json:"redirect_uris"`
	IssuedAt              int64    `json:"client_id_issued_at"`
}

func main() {
	var (
		base          string
		grpcAddr      string
		initialAccess string
		timeout       time.Duration
		verbose       bool
	)

	flag.StringVar(&base, "base", "http://127.0.0.1:8080", "Base URL of the client service REST API")
	flag.StringVar(&grpcAddr, "grpc", "127.0.0.1:9090", "Address of the client lookup gRPC API")
	flag.StringVar(&initialAccess, "iat", "", "Initial access token for mutations if configured")
	flag.DurationVar(&timeout, "timeout", 20*time.Second, "Timeout for requests")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	var err error
	baseURL, err = url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		log.Fatalf("parse base url: %v", err)
	}

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial grpc: %v", err)
	}
	defer conn.Close()

	sc := &scenario{
		client:        &http.Client{Timeout: timeout},
		lookup:        rpc.NewLookupClient(conn),
		health:        healthpb.NewHealthClient(conn),
		initialAccess: initialAccess,
		timeout:       timeout,
	}
	sc.run()
}

func (s *scenario) run() {
	must := func(err error, msg string) {
		if err != nil {
			log.Fatalf("%s: %v", msg, err)
		}
	}

	log.Infof("E2E start -> %s", baseURL)

	banner("Health Checks")
	step("GET /health")
	must(s.expectStatus(http.MethodGet, "/health", nil, http.StatusOK, nil), "health")
	step("GET /metrics")
	must(s.expectStatus(http.MethodGet, "/metrics", nil, http.StatusOK, nil), "metrics")
	step("Check grpc health service")
	ctx, cancel := s.ctx()
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	cancel()
	must(err, "grpc health")
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("grpc health status %s", resp.GetStatus())
	}

	banner("Registration")
	redirectURI := "http://127.0.0.1:9999/cb"
	reg := s.registerClient(redirectURI)

	step("Reject parity violation (expect 400)")
	must(s.expectStatus(http.MethodPost, "/client", map[string]any{
		"id_token_encrypted_response_alg": "RSA-OAEP",
	}, http.StatusBadRequest, s.authHeader()), "parity violation")

	banner("Read & Update")
	step("GET %s", reg.RegistrationClientURI)
	var got clientInfo
	must(s.doJSON(http.MethodGet, reg.RegistrationClientURI, nil, nil, http.StatusOK, &got), "read client")
	if got.ClientID != reg.ClientID || got.ClientSecret != "" {
		log.Fatalf("unexpected read result: %+v", got)
	}

	step("PUT %s (rename)", reg.RegistrationClientURI)
	renamed := "E2E Renamed " + reg.ClientID[:8]
	must(s.doJSON(http.MethodPut, reg.RegistrationClientURI, map[string]any{
		"client_name":   renamed,
		"redirect_uris": []string{redirectURI},
	}, s.authHeader(), http.StatusOK, &got), "update client")
	if got.ClientName != renamed {
		log.Fatalf("update name mismatch: want %s got %s", renamed, got.ClientName)
	}

	banner("gRPC Lookup")
	step("Find %s", reg.ClientID)
	ctx, cancel = s.ctx()
	p, err := s.lookup.Find(ctx, reg.ClientID)
	cancel()
	must(err, "grpc find")
	if p.ClientName != renamed || len(p.RedirectURIs) != 1 || p.RedirectURIs[0] != redirectURI {
		log.Fatalf("grpc find mismatch: %+v", p)
	}

	banner("Delete")
	step("DELETE %s", reg.RegistrationClientURI)
	must(s.expectStatus(http.MethodDelete, reg.RegistrationClientURI, nil, http.StatusNoContent, s.authHeader()), "delete client")
	step("DELETE again is idempotent")
	must(s.expectStatus(http.MethodDelete, reg.RegistrationClientURI, nil, http.StatusNoContent, s.authHeader()), "delete again")
	step("GET after delete (expect 404)")
	must(s.expectStatus(http.MethodGet, reg.RegistrationClientURI, nil, http.StatusNotFound, nil), "read deleted")
	step("gRPC Find after delete (expect unknown_client)")
	ctx, cancel = s.ctx()
	_, err = s.lookup.Find(ctx, reg.ClientID)
	cancel()
	if !oauth.IsKind(err, oauth.KindNotFound) {
		log.Fatalf("grpc find after delete: want unknown_client, got %v", err)
	}

	log.Infof("E2E OK, client %s went through the full lifecycle", reg.ClientID)
}

func (s *scenario) registerClient(redirectURI string) clientInfo {
	step("POST /client")
	var reg clientInfo
	err := s.doJSON(http.MethodPost, "/client", map[string]any{
		"client_name":    "E2E Client",
		"redirect_uris":  []string{redirectURI},
		"response_types": []string{"code"},
		"grant_types":    []string{"authorization_code", "refresh_token"},
		"scopes":         []string{"openid", "profile"},
		"contacts":       []string{"e2e@example.com"},
	}, s.authHeader(), http.StatusCreated, &reg)
	if err != nil {
		log.Fatalf("register client: %v", err)
	}
	if reg.ClientID == "" || reg.ClientSecret == "" || reg.RegistrationClientURI == "" {
		log.Fatalf("registration response incomplete: %+v", reg)
	}
	step("registered client_id=%s issued_at=%d", reg.ClientID, reg.IssuedAt)
	return reg
}

func (s *scenario) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *scenario) authHeader() http.Header {
	if s.initialAccess == "" {
		return nil
	}
	return http.Header{"Authorization": {"Bearer " + s.initialAccess}}
}

func (s *scenario) expectStatus(method, path string, body any, want int, headers http.Header) error {
	return s.doJSON(method, path, body, headers, want, nil)
}

func (s *scenario) doJSON(method, path string, body any, headers http.Header, want int, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, resolve(path), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	log.WithFields(log.Fields{"method": method, "path": path, "status": resp.StatusCode}).Debug(safeTrunc(string(data), 400))
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: want %d got %d body=%s", method, path, want, resp.StatusCode, safeTrunc(string(data), 400))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func resolve(p string) string {
	u, err := url.Parse(p)
	if err != nil {
		return baseURL.String() + p
	}
	return baseURL.ResolveReference(u).String()
}

func safeTrunc(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
