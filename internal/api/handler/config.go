// 文件路径: internal/api/handler/config.go
// 模块说明: 这是 internal 模块里的 config 逻辑，按方言渲染完整客户端配置（mihomo / surge / 分享链接）。
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thsrite/configflow/internal/api/requestctx"
	"github.com/thsrite/configflow/internal/decode"
	"github.com/thsrite/configflow/internal/metrics"
	"github.com/thsrite/configflow/internal/protocol"
	"github.com/thsrite/configflow/internal/rules"
)

// ConfigHandler renders client documents from the request snapshot.
type ConfigHandler struct {
	Manager      *protocol.Manager
	BaseURL      string
	NoResolve    rules.NoResolveMode
	Materializer *decode.Materializer
	Metrics      *metrics.Recorder
	Logger       *slog.Logger
}

func NewConfigHandler(manager *protocol.Manager, base string, noResolve rules.NoResolveMode, materializer *decode.Materializer, recorder *metrics.Recorder, logger *slog.Logger) *ConfigHandler {
	if manager == nil {
		manager = protocol.NewDefaultManager()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigHandler{
		Manager:      manager,
		BaseURL:      base,
		NoResolve:    noResolve,
		Materializer: materializer,
		Metrics:      recorder,
		Logger:       logger,
	}
}

// Render handles GET /api/config/{dialect}.
func (h *ConfigHandler) Render(w http.ResponseWriter, r *http.Request) {
	snap := requestctx.SnapshotFromContext(r.Context())
	if snap == nil {
		respondError(w, http.StatusInternalServerError, "snapshot missing / 缺少配置快照")
		return
	}
	dialect := chi.URLParam(r, "dialect")
	res, err := h.Manager.Build(protocol.BuildRequest{
		Context:      r.Context(),
		Snapshot:     snap,
		BaseURL:      baseURL(r, h.BaseURL),
		Flag:         dialect,
		UserAgent:    r.UserAgent(),
		NoResolve:    h.NoResolve,
		Materializer: h.Materializer,
		Logger:       h.Logger,
	})
	if err != nil {
		h.Metrics.ObserveRender(dialect, err, nil)
		if errors.Is(err, protocol.ErrNoBuilder) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.Logger.Error("render failed", "dialect", dialect, "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Metrics.ObserveRender(dialect, nil, res.Diagnostics)
	res.Diagnostics.Log(r.Context(), h.Logger.With("dialect", dialect))
	respondDocument(w, res.ContentType, res.Payload, res.Headers)
}
