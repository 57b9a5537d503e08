// 文件路径: internal/api/handler/provider.go
// 模块说明: 这是 internal 模块里的 provider 逻辑，输出聚合 provider 与单个订阅的节点列表，format=surge 时输出 Surge 行格式。
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/thsrite/configflow/internal/api/requestctx"
	"github.com/thsrite/configflow/internal/provider"
	"github.com/thsrite/configflow/internal/subscription"
)

const (
	yamlContentType = "text/yaml; charset=utf-8"
	textContentType = "text/plain; charset=utf-8"
)

// ProviderHandler serves aggregation and subscription provider bodies.
type ProviderHandler struct {
	Aggregations *provider.AggregationBuilder
	Source       subscription.Source
	Logger       *slog.Logger
}

func NewProviderHandler(aggregations *provider.AggregationBuilder, source subscription.Source, logger *slog.Logger) *ProviderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderHandler{Aggregations: aggregations, Source: source, Logger: logger}
}

// Aggregation handles GET /api/aggregations/{id}/provider. The mihomo body is the freshly written provider file.
func (h *ProviderHandler) Aggregation(w http.ResponseWriter, r *http.Request) {
	snap := requestctx.SnapshotFromContext(r.Context())
	if snap == nil || h.Aggregations == nil {
		respondError(w, http.StatusInternalServerError, "aggregation builder unavailable / 聚合构建器不可用")
		return
	}
	aggID := chi.URLParam(r, "id")

	if isSurgeFormat(r) {
		body, collected, err := h.Aggregations.SurgeProvider(r.Context(), snap, aggID)
		if err != nil {
			h.fail(w, "aggregation", aggID, err)
			return
		}
		collected.Diagnostics.Log(r.Context(), h.Logger.With("aggregation", aggID))
		respondDocument(w, textContentType, []byte(body), nil)
		return
	}

	path, collected, err := h.Aggregations.Write(r.Context(), snap, aggID)
	if err != nil {
		h.fail(w, "aggregation", aggID, err)
		return
	}
	collected.Diagnostics.Log(r.Context(), h.Logger.With("aggregation", aggID))
	body, err := os.ReadFile(path)
	if err != nil {
		h.fail(w, "aggregation", aggID, err)
		return
	}
	respondDocument(w, yamlContentType, body, nil)
}

// Subscription handles GET /api/subscriptions/{id}/proxies.
func (h *ProviderHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	snap := requestctx.SnapshotFromContext(r.Context())
	if snap == nil {
		respondError(w, http.StatusInternalServerError, "snapshot missing / 缺少配置快照")
		return
	}
	subID := chi.URLParam(r, "id")
	format := "mihomo"
	contentType := yamlContentType
	if isSurgeFormat(r) {
		format = "surge"
		contentType = textContentType
	}
	body, diags, err := provider.SubscriptionProxies(r.Context(), h.Source, snap, subID, format)
	if err != nil {
		h.fail(w, "subscription", subID, err)
		return
	}
	diags.Log(r.Context(), h.Logger.With("subscription", subID))
	respondDocument(w, contentType, body, nil)
}

func (h *ProviderHandler) fail(w http.ResponseWriter, kind, id string, err error) {
	switch {
	case errors.Is(err, provider.ErrAggregationNotFound), errors.Is(err, provider.ErrSubscriptionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		h.Logger.Error("provider request failed", kind, id, "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

func isSurgeFormat(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), "surge")
}
