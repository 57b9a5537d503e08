// 文件路径: internal/subscription/source.go
// 模块说明: 这是 internal 模块里的 source 逻辑，按订阅 URL 拉取节点并缓存；拉取失败时回退到最后一次成功的缓存。
package subscription

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thsrite/configflow/internal/cache"
	"github.com/thsrite/configflow/internal/model"
)

const (
	// DefaultUserAgent makes providers answer with the mihomo proxies document.
	DefaultUserAgent = "clash.meta"
	DefaultTimeout   = 30 * time.Second
	DefaultCacheTTL  = 10 * time.Minute

	maxBodySize = 32 << 20
)

// Source 提供订阅节点，结果可能来自缓存。
type Source interface {
	FetchNodes(ctx context.Context, sub model.Subscription) ([]model.Node, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, sub model.Subscription) ([]model.Node, error)

func (f SourceFunc) FetchNodes(ctx context.Context, sub model.Subscription) ([]model.Node, error) {
	return f(ctx, sub)
}

// Options 配置 HTTPSource。
type Options struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
	Retry     RetryConfig
	Cache     cache.Store
	Logger    *slog.Logger
}

// HTTPSource 通过 HTTP 拉取订阅。
type HTTPSource struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	cacheTTL  time.Duration
	retry     RetryConfig
	cache     cache.Store
	logger    *slog.Logger
}

// NewHTTPSource 创建订阅拉取器，未设置的选项使用默认值。
func NewHTTPSource(opts Options) *HTTPSource {
	s := &HTTPSource{
		client:    opts.Client,
		userAgent: strings.TrimSpace(opts.UserAgent),
		timeout:   opts.Timeout,
		cacheTTL:  opts.CacheTTL,
		retry:     opts.Retry,
		cache:     opts.Cache,
		logger:    opts.Logger,
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	if s.cache == nil {
		s.cache = cache.NewStore(cache.Options{DefaultTTL: s.cacheTTL})
	}
	s.cache = s.cache.Namespace("subscription")
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// FetchNodes 返回订阅节点：优先使用未过期缓存，其次在线拉取，失败时回退到旧缓存。
func (s *HTTPSource) FetchNodes(ctx context.Context, sub model.Subscription) ([]model.Node, error) {
	if cached, ok := s.cache.Get(ctx, sub.ID); ok {
		return cloneNodes(cached.([]model.Node)), nil
	}

	nodes, err := s.fetch(ctx, sub)
	if err == nil {
		s.cache.Set(ctx, sub.ID, nodes, s.cacheTTL)
		return cloneNodes(nodes), nil
	}

	if stale, ok := s.cache.GetStale(ctx, sub.ID); ok {
		s.logger.Warn("subscription fetch failed, serving cached nodes",
			"subscription", sub.Name, "error", err)
		return cloneNodes(stale.([]model.Node)), nil
	}
	return nil, err
}

func (s *HTTPSource) fetch(ctx context.Context, sub model.Subscription) ([]model.Node, error) {
	if strings.TrimSpace(sub.URL) == "" {
		return nil, fmt.Errorf("subscription %q has no url / 订阅缺少地址", sub.Name)
	}
	var body []byte
	err := DoWithRetry(ctx, s.retry, func(ctx context.Context) error {
		b, err := s.get(ctx, sub.URL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %q / 拉取订阅失败: %w", sub.Name, err)
	}

	parsed, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse subscription %q / 解析订阅失败: %w", sub.Name, err)
	}
	for _, perr := range parsed.Errors {
		s.logger.Debug("subscription entry skipped", "subscription", sub.Name, "error", perr)
	}
	s.logger.Info("subscription fetched",
		"subscription", sub.Name, "format", parsed.Format,
		"nodes", len(parsed.Nodes), "hash", parsed.ContentHash[:12])

	for i := range parsed.Nodes {
		parsed.Nodes[i].SubscriptionID = sub.ID
		parsed.Nodes[i].Enabled = true
		if parsed.Nodes[i].ID == "" {
			parsed.Nodes[i].ID = NodeID()
		}
	}
	return parsed.Nodes, nil
}

func (s *HTTPSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// NodeID returns a short random node ID.
func NodeID() string {
	return "node_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func cloneNodes(nodes []model.Node) []model.Node {
	out := make([]model.Node, len(nodes))
	copy(out, nodes)
	return out
}
