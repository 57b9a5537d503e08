package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thsrite/configflow/internal/cache"
	"github.com/thsrite/configflow/internal/config"
	"github.com/thsrite/configflow/internal/decode"
	"github.com/thsrite/configflow/internal/metrics"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/prefetch"
	"github.com/thsrite/configflow/internal/provider"
	"github.com/thsrite/configflow/internal/rules"
	"github.com/thsrite/configflow/internal/subscription"
)

// components 是各子命令共用的运行时依赖。
type components struct {
	snapshots    model.SnapshotSource
	materializer *decode.Materializer
	source       subscription.Source
	aggregations *provider.AggregationBuilder
	prefetcher   *prefetch.Prefetcher
	recorder     *metrics.Recorder
	noResolve    rules.NoResolveMode
}

func buildComponents(cfg *config.Config, reg prometheus.Registerer) (*components, error) {
	noResolve, err := rules.ParseNoResolveMode(cfg.Render.NoResolveMode)
	if err != nil {
		return nil, fmt.Errorf("render.no_resolve_mode: %w", err)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled && reg != nil {
		recorder = metrics.New(cfg.Metrics.Namespace, reg)
	}

	retry := subscription.DefaultRetryConfig()
	retry.MaxRetries = cfg.Subscription.MaxRetries
	retry.Enabled = cfg.Subscription.MaxRetries > 0

	source := subscription.NewHTTPSource(subscription.Options{
		Client:    &http.Client{},
		UserAgent: cfg.Subscription.UserAgent,
		Timeout:   cfg.Subscription.Timeout,
		CacheTTL:  cfg.Subscription.CacheTTL,
		Retry:     retry,
		Cache:     cache.NewStore(cache.Options{DefaultTTL: cfg.Subscription.CacheTTL}),
		Logger:    logger,
	})

	materializer := decode.NewMaterializer(nil)
	return &components{
		snapshots:    model.FileSource{Path: cfg.Snapshot.Path},
		materializer: materializer,
		source:       source,
		aggregations: provider.NewAggregationBuilder(provider.AggregationOptions{
			Source:       source,
			Dir:          cfg.Providers.Dir,
			Materializer: materializer,
			Logger:       logger,
			Metrics:      recorder,
		}),
		prefetcher: prefetch.New(prefetch.Options{
			Workers:  cfg.Prefetch.Workers,
			Timeout:  cfg.Prefetch.Timeout,
			BaseURL:  cfg.Render.BaseURL,
			Loopback: cfg.Prefetch.Loopback,
			Logger:   logger,
			Metrics:  recorder,
		}),
		recorder:  recorder,
		noResolve: noResolve,
	}, nil
}
