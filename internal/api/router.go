// 文件路径: internal/api/router.go
// 模块说明: 这是 internal 模块里的 router 逻辑，挂载配置渲染、provider、规则库与下载清单接口，并统一加上日志、指标与 token 守卫。
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thsrite/configflow/internal/api/handler"
	"github.com/thsrite/configflow/internal/api/middleware"
	"github.com/thsrite/configflow/internal/config"
	"github.com/thsrite/configflow/internal/decode"
	"github.com/thsrite/configflow/internal/metrics"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/prefetch"
	"github.com/thsrite/configflow/internal/protocol"
	"github.com/thsrite/configflow/internal/provider"
	"github.com/thsrite/configflow/internal/rules"
	"github.com/thsrite/configflow/internal/subscription"
)

// Services 汇总路由依赖。Snapshots 必填，其余为空时对应接口返回错误或跳过。
type Services struct {
	Snapshots    model.SnapshotSource
	Manager      *protocol.Manager
	Aggregations *provider.AggregationBuilder
	Source       subscription.Source
	Rules        rules.LocalResolver
	Prefetcher   *prefetch.Prefetcher
	Materializer *decode.Materializer
	Recorder     *metrics.Recorder

	// BaseURL 是渲染默认地址；为空时使用请求自身的 scheme://host。
	BaseURL   string
	NoResolve rules.NoResolveMode
}

// RouterOptions controls the observability surface.
type RouterOptions struct {
	Metrics config.MetricsConfig
	// Registry 为空时使用 prometheus 默认注册表。
	Registry *prometheus.Registry
}

// NewRouter wires every endpoint onto a chi router.
func NewRouter(logger *slog.Logger, services Services, opts RouterOptions) http.Handler {
	if services.Snapshots == nil {
		panic("router requires a snapshot source")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(
		chiMiddleware.RequestID,
		chiMiddleware.RealIP,
	)

	if opts.Metrics.Enabled {
		mCfg := middleware.DefaultMetricsConfig()
		if opts.Metrics.Namespace != "" {
			mCfg.Namespace = opts.Metrics.Namespace
		}
		var reg prometheus.Registerer
		if opts.Registry != nil {
			reg = opts.Registry
		}
		r.Use(middleware.NewMetrics(mCfg, reg).Middleware(mCfg))
	}

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.Logger = logger
	// 订阅拉取与 provider 生成会比普通接口慢
	logCfg.SlowThreshold = 2 * time.Second
	r.Use(
		middleware.StructuredLogger(logCfg),
		chiMiddleware.Recoverer,
		chiMiddleware.Compress(5),
	)

	health := func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
	r.Get("/health", health)
	r.Get("/healthz", health)

	if opts.Metrics.Enabled {
		var metricsHandler http.Handler = promhttp.Handler()
		if opts.Registry != nil {
			metricsHandler = promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
		}
		if opts.Metrics.Token != "" {
			r.With(middleware.MetricsGuard(opts.Metrics.Token)).Handle("/metrics", metricsHandler)
		} else {
			r.Handle("/metrics", metricsHandler)
		}
	}

	registerAPIRoutes(r, logger, services)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		logger.Warn("unmapped route hit", "method", req.Method, "path", req.URL.Path)
		http.NotFound(w, req)
	})

	return r
}

func registerAPIRoutes(root chi.Router, logger *slog.Logger, services Services) {
	configHandler := handler.NewConfigHandler(services.Manager, services.BaseURL, services.NoResolve, services.Materializer, services.Recorder, logger)
	providerHandler := handler.NewProviderHandler(services.Aggregations, services.Source, logger)
	rulesHandler := handler.NewRulesHandler(services.Rules, logger)
	downloadsHandler := handler.NewDownloadsHandler(services.BaseURL, services.Prefetcher)

	root.Route("/api", func(api chi.Router) {
		// 本地规则库只读文件，客户端不会携带 token。
		api.Get("/rules/local/{name}", rulesHandler.Local)

		api.Group(func(guarded chi.Router) {
			guarded.Use(middleware.SnapshotGuard(services.Snapshots, logger))
			guarded.Get("/config/{dialect}", configHandler.Render)
			guarded.Get("/subscriptions/{id}/proxies", providerHandler.Subscription)
			guarded.Get("/aggregations/{id}/provider", providerHandler.Aggregation)
			guarded.Get("/downloads", downloadsHandler.List)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
