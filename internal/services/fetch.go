package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/imulab-x/client-service/internal/config"
	"github.com/imulab-x/client-service/internal/metrics"
	"github.com/imulab-x/client-service/internal/oauth"
	"github.com/imulab-x/client-service/internal/utils"
)

// 被拉取的参数名，同时用于错误描述与指标标签。
const (
	ParamJWKSURI    = "jwks_uri"
	ParamRequestURI = "request_uri"
)

// DocumentResolver 解析客户端引用的远程文档。
type DocumentResolver interface {
	// ResolveJWKS 返回生效的 jwks：jwksURI 为空时原样返回 inline。
	ResolveJWKS(ctx context.Context, jwksURI, inline string) (string, error)
	// ResolveRequest 拉取 request_uri 指向的请求对象。
	ResolveRequest(ctx context.Context, requestURI string) (string, error)
	// ValidateSector 确认 sector_identifier_uri 列出了全部 redirect_uris。
	ValidateSector(ctx context.Context, uri string, redirects []string) error
}

// DocumentFetcher 通过 HTTP(S) 单次拉取远程文档，不重试、不跟随重定向。
type DocumentFetcher struct {
	hc      *http.Client
	maxBody int64
}

func NewDocumentFetcher(cfg config.Config) *DocumentFetcher {
	timeout := cfg.Fetch.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := cfg.Fetch.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	hc := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &DocumentFetcher{hc: hc, maxBody: maxBody}
}

func (f *DocumentFetcher) ResolveJWKS(ctx context.Context, jwksURI, inline string) (string, error) {
	if jwksURI != "" && inline != "" {
		return "", ErrJWKSConflict
	}
	if jwksURI == "" {
		return inline, nil
	}
	return f.fetch(ctx, jwksURI, ParamJWKSURI)
}

func (f *DocumentFetcher) ResolveRequest(ctx context.Context, requestURI string) (string, error) {
	if requestURI == "" {
		return "", nil
	}
	return f.fetch(ctx, requestURI, ParamRequestURI)
}

// ErrJWKSConflict 表示同时提供了 jwks 与 jwks_uri。
var ErrJWKSConflict = oauth.Unmet("Only one of jwks or jwks_uri can be used.")

func (f *DocumentFetcher) fetch(ctx context.Context, raw, param string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		metrics.RemoteFetches.WithLabelValues(param, "invalid_uri").Inc()
		return "", oauth.Unmet(fmt.Sprintf("Value for %s is not a valid URI.", param))
	}
	fragment := u.Fragment
	u.Fragment = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", oauth.ServerError(fmt.Sprintf("Error retrieving from %s.", param), err)
	}
	resp, err := f.hc.Do(req)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"param": param, "uri": u.String()}).Error("remote document fetch failed")
		outcome := "transport_error"
		if isTimeout(err) {
			outcome = "timeout"
		}
		metrics.RemoteFetches.WithLabelValues(param, outcome).Inc()
		return "", oauth.ServerError(fmt.Sprintf("Error retrieving from %s.", param), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		metrics.RemoteFetches.WithLabelValues(param, "bad_status").Inc()
		return "", oauth.Unmet(fmt.Sprintf("Calling %s returned non-2xx code.", param))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		metrics.RemoteFetches.WithLabelValues(param, "transport_error").Inc()
		return "", oauth.ServerError(fmt.Sprintf("Error retrieving from %s.", param), err)
	}
	if int64(len(body)) > f.maxBody {
		metrics.RemoteFetches.WithLabelValues(param, "too_large").Inc()
		return "", oauth.Unmet(fmt.Sprintf("Response from %s exceeds size limit.", param))
	}
	if len(body) == 0 {
		metrics.RemoteFetches.WithLabelValues(param, "empty_body").Inc()
		return "", oauth.Unmet(fmt.Sprintf("Calling %s returned empty body.", param))
	}
	if fragment != "" && !utils.DigestMatches(body, fragment) {
		metrics.RemoteFetches.WithLabelValues(param, "hash_mismatch").Inc()
		return "", oauth.Unmet(fmt.Sprintf("Hash from %s mismatch with body.", param))
	}
	metrics.RemoteFetches.WithLabelValues(param, "ok").Inc()
	return string(body), nil
}

// isTimeout 判断错误是否由超时引起。
func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
