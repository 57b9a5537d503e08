package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config 汇总应用的全部配置。
type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	Log          LogConfig          `mapstructure:"log"`
	Snapshot     SnapshotConfig     `mapstructure:"snapshot"`
	Render       RenderConfig       `mapstructure:"render"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	Rules        RulesConfig        `mapstructure:"rules"`
	Prefetch     PrefetchConfig     `mapstructure:"prefetch"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// HTTPConfig 定义 HTTP 服务配置。
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig 定义日志配置。
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

// SnapshotConfig 指向配置快照文件（YAML 或 JSON）。
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

// RenderConfig 定义渲染默认值。
type RenderConfig struct {
	// BaseURL 在快照未设置 server_domain 时使用。
	BaseURL       string `mapstructure:"base_url"`
	NoResolveMode string `mapstructure:"no_resolve_mode"`
}

// ProvidersConfig 定义聚合 provider 的输出目录与刷新周期。
type ProvidersConfig struct {
	Dir                string `mapstructure:"dir"`
	AggregationRefresh string `mapstructure:"aggregation_refresh"`
}

// RulesConfig 定义本地规则库目录。
type RulesConfig struct {
	LocalDir string `mapstructure:"local_dir"`
}

// PrefetchConfig 定义预取 worker 池。
type PrefetchConfig struct {
	Workers  int           `mapstructure:"workers"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Loopback string        `mapstructure:"loopback"`
}

// SubscriptionConfig 定义订阅拉取。
type SubscriptionConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	MaxRetries int           `mapstructure:"max_retries"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// MetricsConfig 定义 Prometheus 指标配置。
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	// Token 非空时 /metrics 需要 Authorization: Bearer <token>。
	Token string `mapstructure:"token"`
}

func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
