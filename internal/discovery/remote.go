package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRemoteMaxTries = 10
	defaultRemoteInterval = 500 * time.Millisecond
	defaultRemoteTimeout  = 5 * time.Second
)

// RemoteOptions 控制远程 Discovery 拉取行为。
type RemoteOptions struct {
	// 单次请求超时
	Timeout time.Duration
	// 最大尝试次数（含首次）
	MaxTries uint
	// 首次重试间隔，之后指数退避
	InitialInterval time.Duration
	// 大于 0 时，缓存超过该时长后重新拉取；否则只拉取一次
	RefreshInterval time.Duration
	// 可选：自定义 HTTP 客户端（测试用）
	HTTPClient *http.Client
}

// Remote 从授权服务器的 .well-known/openid-configuration 拉取能力声明，
// 失败时按指数退避重试，成功后缓存。
type Remote struct {
	url  string
	opts RemoteOptions
	hc   *http.Client
	now  func() time.Time

	mu        sync.Mutex
	doc       *Document
	fetchedAt time.Time
}

func NewRemote(url string, opts RemoteOptions) *Remote {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRemoteTimeout
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = defaultRemoteMaxTries
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = defaultRemoteInterval
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Remote{url: url, opts: opts, hc: hc, now: time.Now}
}

// Capabilities 返回缓存的文档；缓存缺失或过期时同步拉取。
// 刷新失败但已有旧文档时继续使用旧文档。
func (r *Remote) Capabilities(ctx context.Context) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc != nil && (r.opts.RefreshInterval <= 0 || r.now().Sub(r.fetchedAt) < r.opts.RefreshInterval) {
		return r.doc, nil
	}
	doc, err := r.fetchWithRetry(ctx)
	if err != nil {
		if r.doc != nil {
			log.WithError(err).WithField("url", r.url).Warn("discovery refresh failed, serving cached document")
			return r.doc, nil
		}
		return nil, err
	}
	r.doc = doc
	r.fetchedAt = r.now()
	return r.doc, nil
}

func (r *Remote) fetchWithRetry(ctx context.Context) (*Document, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = r.opts.InitialInterval
	expBackoff.MaxInterval = 30 * r.opts.InitialInterval
	expBackoff.Reset()

	attempt := 0
	doc, err := backoff.Retry(ctx, func() (*Document, error) {
		attempt++
		return r.fetch(ctx)
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(r.opts.MaxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.WithError(err).WithFields(log.Fields{
				"url":     r.url,
				"attempt": attempt,
				"retry":   d.String(),
			}).Warn("discovery fetch failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch discovery from %s: %w", r.url, err)
	}
	return doc, nil
}

func (r *Remote) fetch(ctx context.Context) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	case resp.StatusCode/100 != 2:
		// 4xx 不会因为重试而改变
		return nil, backoff.Permanent(fmt.Errorf("http %d", resp.StatusCode))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode discovery: %w", err))
	}
	return &doc, nil
}
