// 文件路径: internal/cache/store.go
// 模块说明: 这是 internal 模块里的 store 逻辑，用 go-cache 保存订阅节点等拉取结果，过期后仍保留最后一次成功的值供降级使用。
package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store 是拉取结果的缓存接口：Get 只返回未过期的值，GetStale 在过期后仍返回最后一次写入的值。
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Get(ctx context.Context, key string) (any, bool)
	GetStale(ctx context.Context, key string) (any, bool)
	Delete(ctx context.Context, key string)
	TTL(ctx context.Context, key string) (time.Duration, bool)
	Namespace(prefix string) Store
}

// Options 配置内存缓存行为。
type Options struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	Prefix          string
}

// NewStore 创建基于 go-cache 的缓存实现，并支持命名空间。
func NewStore(opts Options) Store {
	defaultTTL := opts.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	cleanup := opts.CleanupInterval
	if cleanup <= 0 {
		cleanup = defaultTTL
	}
	return &goCacheStore{
		fresh:      gocache.New(defaultTTL, cleanup),
		stale:      gocache.New(gocache.NoExpiration, 0),
		defaultTTL: defaultTTL,
		prefix:     normalizePrefix(opts.Prefix),
	}
}

type goCacheStore struct {
	fresh      *gocache.Cache
	stale      *gocache.Cache
	defaultTTL time.Duration
	prefix     string
}

func (s *goCacheStore) Set(_ context.Context, key string, value any, ttl time.Duration) {
	k := s.prefixed(key)
	s.fresh.Set(k, value, s.normalizeTTL(ttl))
	s.stale.Set(k, value, gocache.NoExpiration)
}

func (s *goCacheStore) Get(_ context.Context, key string) (any, bool) {
	return s.fresh.Get(s.prefixed(key))
}

func (s *goCacheStore) GetStale(_ context.Context, key string) (any, bool) {
	return s.stale.Get(s.prefixed(key))
}

func (s *goCacheStore) Delete(_ context.Context, key string) {
	k := s.prefixed(key)
	s.fresh.Delete(k)
	s.stale.Delete(k)
}

func (s *goCacheStore) TTL(_ context.Context, key string) (time.Duration, bool) {
	_, exp, ok := s.fresh.GetWithExpiration(s.prefixed(key))
	if !ok || exp.IsZero() {
		return 0, false
	}
	ttl := time.Until(exp)
	if ttl < 0 {
		return 0, false
	}
	return ttl, true
}

func (s *goCacheStore) Namespace(prefix string) Store {
	return &goCacheStore{
		fresh:      s.fresh,
		stale:      s.stale,
		defaultTTL: s.defaultTTL,
		prefix:     joinPrefixes(s.prefix, prefix),
	}
}

func (s *goCacheStore) prefixed(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return s.prefix
	}
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *goCacheStore) normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}

func normalizePrefix(prefix string) string {
	return strings.Trim(prefix, ": ")
}

func joinPrefixes(parts ...string) string {
	var normalized []string
	for _, part := range parts {
		if trimmed := normalizePrefix(part); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return strings.Join(normalized, ":")
}
