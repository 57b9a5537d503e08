// 文件路径: internal/prefetch/prefetch.go
// 模块说明: 这是 internal 模块里的 prefetch 逻辑，推送前并发预取下载项正文；失败只留空内容，不重试。
package prefetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thsrite/configflow/internal/metrics"
	"github.com/thsrite/configflow/internal/provider"
)

const (
	DefaultWorkers  = 8
	DefaultTimeout  = 30 * time.Second
	DefaultLoopback = "http://127.0.0.1:5001"

	maxBodySize = 64 << 20
)

// Options 配置预取器。
type Options struct {
	Workers int
	Timeout time.Duration
	// BaseURL 是本服务对外地址，以它开头的 URL 改写到 Loopback 以避免绕行外网。
	BaseURL  string
	Loopback string
	Client   *http.Client
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
}

// Prefetcher 使用固定宽度的 worker 池抓取下载项。
type Prefetcher struct {
	workers  int
	timeout  time.Duration
	baseURL  string
	loopback string
	client   *http.Client
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

func New(opts Options) *Prefetcher {
	p := &Prefetcher{
		workers:  opts.Workers,
		timeout:  opts.Timeout,
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		loopback: strings.TrimRight(strings.TrimSpace(opts.Loopback), "/"),
		client:   opts.Client,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if p.workers <= 0 {
		p.workers = DefaultWorkers
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.loopback == "" {
		p.loopback = DefaultLoopback
	}
	if p.client == nil {
		p.client = &http.Client{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// WithBase returns a copy that rewrites URLs under base instead of the configured BaseURL.
func (p *Prefetcher) WithBase(base string) *Prefetcher {
	cp := *p
	cp.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	return &cp
}

// Fill 为每个下载项填充 Content，返回成功数量。单项失败保持 Content 为空；ctx 取消时剩余项直接跳过。
func (p *Prefetcher) Fill(ctx context.Context, items []provider.Download) int {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	ok := make([]bool, len(items))
	for i := range items {
		i := i
		g.Go(func() error {
			item := &items[i]
			if item.URL == "" || ctx.Err() != nil {
				return nil
			}
			body, err := p.fetch(ctx, p.Rewrite(item.URL))
			if err != nil {
				item.Content = ""
				p.logger.Warn("prefetch failed, client will download the url itself",
					"name", item.Name, "url", item.URL, "error", err)
				p.metrics.ObservePrefetch(false)
				return nil
			}
			item.Content = body
			ok[i] = true
			p.logger.Info("prefetched", "name", item.Name, "bytes", len(body))
			p.metrics.ObservePrefetch(true)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, v := range ok {
		if v {
			n++
		}
	}
	return n
}

// Rewrite maps a self URL onto the loopback address.
func (p *Prefetcher) Rewrite(rawURL string) string {
	if p.baseURL != "" && strings.HasPrefix(rawURL, p.baseURL) {
		return p.loopback + strings.TrimPrefix(rawURL, p.baseURL)
	}
	return rawURL
}

func (p *Prefetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
