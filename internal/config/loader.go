package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load 按默认值、配置文件、环境变量的顺序合并配置；path 非空时只读取该文件。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/configflow/")
	}

	v.SetEnvPrefix("CONFIGFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:5001")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("snapshot.path", "data/config.yaml")

	v.SetDefault("render.base_url", "")
	v.SetDefault("render.no_resolve_mode", "explicit")

	v.SetDefault("providers.dir", "data/providers")
	v.SetDefault("providers.aggregation_refresh", "@every 1h")

	v.SetDefault("rules.local_dir", "data/rules")

	v.SetDefault("prefetch.workers", 8)
	v.SetDefault("prefetch.timeout", "30s")
	v.SetDefault("prefetch.loopback", "http://127.0.0.1:5001")

	v.SetDefault("subscription.timeout", "30s")
	v.SetDefault("subscription.cache_ttl", "10m")
	v.SetDefault("subscription.max_retries", 2)
	v.SetDefault("subscription.user_agent", "clash.meta")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "configflow")
	v.SetDefault("metrics.token", "")
}
